package connect

import (
	"bufio"
	"fmt"
	cmdUtil "github.com/ValentinKolb/dNet/cmd/util"
	"github.com/ValentinKolb/dNet/rpc/client"
	"github.com/ValentinKolb/dNet/rpc/common"
	"github.com/ValentinKolb/dNet/rpc/serializer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"os"
	"strings"
	"time"
)

var (
	connectCmdConfig = &common.ClientConfig{}
	ConnectCmd       = &cobra.Command{
		Use:   "connect",
		Short: "Connect to a dNet chat server",
		Long: `Connect to a dNet chat server. Every line read from stdin is sent as chat message, the line /ping sends a ping and /quit closes the connection.
The configuration can be set via command line flags or environment variables. The format of the environment variables is DNET_<flag> (e.g. DNET_ENDPOINT=localhost:9000)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	key := "endpoint"
	ConnectCmd.PersistentFlags().String(key, "localhost:8080", cmdUtil.WrapString("The address of the dNet server (e.g. localhost:8080, /tmp/dnet.sock, ...)"))

	key = "dial-timeout"
	ConnectCmd.PersistentFlags().Duration(key, 5*time.Second, cmdUtil.WrapString("How long to wait for the connection to be established"))

	cmdUtil.SetupConnectionFlags(ConnectCmd)
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the client configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	frameConf, err := cmdUtil.GetFrameConf()
	if err != nil {
		return err
	}

	*connectCmdConfig = common.DefaultClientConfig()
	connectCmdConfig.Endpoint = viper.GetString("endpoint")
	connectCmdConfig.DialTimeout = viper.GetDuration("dial-timeout")
	connectCmdConfig.Frame = frameConf
	connectCmdConfig.Liveness = cmdUtil.GetLivenessConf()
	connectCmdConfig.Socket, connectCmdConfig.TCP = cmdUtil.GetSocketConf()
	connectCmdConfig.LogLevel = viper.GetString("log-level")

	return common.InitLoggers(connectCmdConfig.LogLevel)
}

func run(cmd *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}
	connector, err := cmdUtil.GetClientConnector()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	c := client.NewClient(*connectCmdConfig, connector, func(payload []byte) {
		printMessage(out, s, payload)
	})
	if err := cmdUtil.BuildPipeline(c.Pipeline(), s); err != nil {
		return err
	}

	// stop reading stdin once the server hangs up
	closed := make(chan struct{})
	c.RegisterListener(client.ListenerFunc(func(kind client.EventKind, _ []any) {
		if kind == client.CloseSuccess || kind == client.CloseFailed {
			select {
			case <-closed:
			default:
				close(closed)
			}
		}
	}))

	if err := c.Connect(); err != nil {
		return err
	}
	defer c.Close()

	lines := make(chan string)
	go readLines(os.Stdin, lines)

	for {
		select {
		case <-closed:
			fmt.Fprintln(out, "connection closed")
			return nil
		case line, ok := <-lines:
			if !ok || line == "/quit" {
				return nil
			}
			msg, skip := parseLine(line)
			if skip {
				continue
			}
			b, err := s.Serialize(*msg)
			if err != nil {
				return err
			}
			if err = c.Send(b); err != nil {
				return err
			}
		}
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func readLines(r io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}

// parseLine converts one line of user input into a message. skip is true for blank lines.
func parseLine(line string) (msg *common.Message, skip bool) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return nil, true
	case line == "/ping":
		return common.NewPingMessage(), false
	default:
		return common.NewChatMessage("", line), false
	}
}

// formatMessage renders a received message for the terminal
func formatMessage(msg *common.Message) string {
	switch msg.MsgType {
	case common.MsgTChat:
		return fmt.Sprintf("[%s] %s: %s", msg.SentAt().Format(time.TimeOnly), msg.From, msg.Body)
	case common.MsgTPong:
		return fmt.Sprintf("pong after %s", time.Since(msg.SentAt()).Round(time.Millisecond))
	case common.MsgTJoin:
		return fmt.Sprintf("* %s joined", msg.From)
	case common.MsgTLeave:
		return fmt.Sprintf("* %s left", msg.From)
	case common.MsgTError:
		return fmt.Sprintf("error: %s", msg.Err)
	default:
		return fmt.Sprintf("unexpected %s message", msg.MsgType)
	}
}

func printMessage(w io.Writer, s serializer.IMessageSerializer, payload []byte) {
	var msg common.Message
	if err := s.Deserialize(payload, &msg); err != nil {
		cmdUtil.Logger.Warningf("failed to decode message: %v", err)
		return
	}
	fmt.Fprintln(w, formatMessage(&msg))
}
