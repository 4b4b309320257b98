package util

import (
	"fmt"
	"github.com/ValentinKolb/dNet/lib/pipeline"
	"github.com/ValentinKolb/dNet/lib/pipeline/stages"
	"github.com/ValentinKolb/dNet/rpc/common"
	"github.com/ValentinKolb/dNet/rpc/serializer"
	"github.com/ValentinKolb/dNet/rpc/transport"
	"github.com/ValentinKolb/dNet/rpc/transport/tcp"
	"github.com/ValentinKolb/dNet/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strconv"
	"strings"
	"time"
)

var Logger = logger.GetLogger("cmd")

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Shared flags
// --------------------------------------------------------------------------

// SetupConnectionFlags adds the framing, liveness, socket and pipeline flags shared by serve and connect
func SetupConnectionFlags(cmd *cobra.Command) {
	key := "delimiter"
	cmd.PersistentFlags().String(key, "0x0A", WrapString("The byte that terminates every frame (decimal, 0x hex or a single character). Both peers must use the same value"))

	key = "max-read"
	cmd.PersistentFlags().Int(key, 1024, WrapString("The maximum number of bytes consumed per read of a connection"))

	key = "poll-window"
	cmd.PersistentFlags().Duration(key, 100*time.Microsecond, WrapString("How long a read waits for input before it moves on to the next connection"))

	key = "liveness-disabled"
	cmd.PersistentFlags().Bool(key, false, WrapString("Disable the detection of dead peers"))

	key = "liveness-interval"
	cmd.PersistentFlags().Duration(key, time.Second, WrapString("How often the liveness detector checks all connections"))

	key = "liveness-threshold"
	cmd.PersistentFlags().Duration(key, 5*time.Second, WrapString("A connection is probed if nothing was received for this long"))

	key = "liveness-probe-deadline"
	cmd.PersistentFlags().Duration(key, 20*time.Millisecond, WrapString("How long a single probe may block"))

	key = "liveness-max-probes"
	cmd.PersistentFlags().Int(key, 64, WrapString("The maximum number of probes running at the same time"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the socket write buffer (in KB, 0 keeps the OS default)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the socket read buffer (in KB, 0 keeps the OS default)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 30, WrapString("The keepalive interval (in seconds, only for tcp, 0 disables keepalive)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, -1, WrapString("The linger time (in seconds, only for tcp, -1 keeps the OS default)"))

	key = "zstd"
	cmd.PersistentFlags().Bool(key, false, WrapString("Compress every message with zstd (both peers must agree)"))

	key = "seal-key"
	cmd.PersistentFlags().String(key, "", WrapString("Encrypt every message with a key derived from this passphrase (both peers must agree)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// InitConfig loads the env files and configures viper to read DNET_<FLAG> variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dnet")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Config readers
// --------------------------------------------------------------------------

// ParseDelimiter parses a delimiter given as decimal, 0x hex or a single character
func ParseDelimiter(s string) (byte, error) {
	if len(s) == 1 {
		return s[0], nil
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid delimiter %q: %w", s, err)
	}
	return byte(v), nil
}

// GetFrameConf reads the framing configuration from viper
func GetFrameConf() (common.FrameConf, error) {
	delimiter, err := ParseDelimiter(viper.GetString("delimiter"))
	if err != nil {
		return common.FrameConf{}, err
	}
	return common.FrameConf{
		Delimiter:   delimiter,
		MaxReadSize: viper.GetInt("max-read"),
		PollWindow:  viper.GetDuration("poll-window"),
	}, nil
}

// GetLivenessConf reads the liveness configuration from viper
func GetLivenessConf() common.LivenessConf {
	return common.LivenessConf{
		Disabled:            viper.GetBool("liveness-disabled"),
		Interval:            viper.GetDuration("liveness-interval"),
		Threshold:           viper.GetDuration("liveness-threshold"),
		ProbeDeadline:       viper.GetDuration("liveness-probe-deadline"),
		MaxConcurrentProbes: viper.GetInt("liveness-max-probes"),
	}
}

// GetSocketConf reads the socket options from viper
func GetSocketConf() (common.SocketConf, common.TCPConf) {
	return common.SocketConf{
			WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		}, common.TCPConf{
			TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
			TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
		}
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IMessageSerializer, error) {
	return serializer.New(viper.GetString("serializer"))
}

// GetServerConnector creates the server connector based on configuration
func GetServerConnector() (transport.IServerConnector, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewServerConnector(), nil
	case "unix":
		return unix.NewServerConnector(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetClientConnector creates the client connector based on configuration
func GetClientConnector() (transport.IClientConnector, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewClientConnector(), nil
	case "unix":
		return unix.NewClientConnector(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// --------------------------------------------------------------------------
// Pipeline
// --------------------------------------------------------------------------

// BuildPipeline adds the stages selected by the flags to p.
// Outbound order is zstd, seal, base64 and inbound runs in reverse. Base64 is added whenever the
// payload may contain the delimiter, i.e. for serializers that are not text safe and after zstd or seal.
func BuildPipeline(p *pipeline.Pipeline, s serializer.IMessageSerializer) error {
	useZstd := viper.GetBool("zstd")
	passphrase := viper.GetString("seal-key")

	var key []byte
	if passphrase != "" {
		var err error
		if key, err = stages.DeriveKey(passphrase); err != nil {
			return err
		}
	}

	var out []pipeline.Stage
	if useZstd {
		out = append(out, stages.NewZstd(pipeline.Out))
	}
	if key != nil {
		out = append(out, stages.NewSeal(pipeline.Out, key))
	}
	if useZstd || key != nil || !s.TextSafe() {
		out = append(out, stages.NewBase64(pipeline.Out))
	}

	for _, stage := range out {
		if err := p.AddLayer(pipeline.Out, stage); err != nil {
			return err
		}
	}

	// inbound mirrors outbound
	for i := len(out) - 1; i >= 0; i-- {
		var stage pipeline.Stage
		switch st := out[i].(type) {
		case *stages.Zstd:
			stage = stages.NewZstd(pipeline.In)
		case *stages.Seal:
			stage = stages.NewSeal(pipeline.In, key)
		case *stages.Base64:
			stage = stages.NewBase64(pipeline.In)
		default:
			return fmt.Errorf("unknown stage %s", pipeline.StageName(st))
		}
		if err := p.AddLayer(pipeline.In, stage); err != nil {
			return err
		}
		Logger.Debugf("added stage %s", pipeline.StageName(stage))
	}
	return nil
}
