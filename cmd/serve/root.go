package serve

import (
	"errors"
	"fmt"
	"github.com/VictoriaMetrics/metrics"
	cmdUtil "github.com/ValentinKolb/dNet/cmd/util"
	"github.com/ValentinKolb/dNet/rpc/common"
	"github.com/ValentinKolb/dNet/rpc/server"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start a dNet chat server",
		Long:    `Start a dNet server that speaks the demo chat protocol. The configuration can be set via command line flags or environment variables. The format of the environment variables is DNET_<flag> (e.g. DNET_LIVENESS_THRESHOLD=10s)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the server will listen (e.g. localhost:8080, /tmp/dnet.sock, ...)"))

	key = "accept-timeout"
	ServeCmd.PersistentFlags().Duration(key, time.Second, cmdUtil.WrapString("How long a single accept call may block before it is retried"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("If set, expose prometheus metrics on this address under /metrics (e.g. localhost:9100)"))

	key = "stats-interval"
	ServeCmd.PersistentFlags().Duration(key, 0, cmdUtil.WrapString("If set, log the liveness detector statistics at this interval"))

	cmdUtil.SetupConnectionFlags(ServeCmd)
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	frameConf, err := cmdUtil.GetFrameConf()
	if err != nil {
		return err
	}

	*serveCmdConfig = common.DefaultServerConfig()
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.AcceptTimeout = viper.GetDuration("accept-timeout")
	serveCmdConfig.Frame = frameConf
	serveCmdConfig.Liveness = cmdUtil.GetLivenessConf()
	serveCmdConfig.Socket, serveCmdConfig.TCP = cmdUtil.GetSocketConf()
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run starts the dNet server and blocks until SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}
	connector, err := cmdUtil.GetServerConnector()
	if err != nil {
		return err
	}

	room := newChatRoom(s)
	serv := server.NewServer(*serveCmdConfig, connector, room.handle)
	room.attach(serv)

	if err := cmdUtil.BuildPipeline(serv.Pipeline(), s); err != nil {
		return err
	}

	cmdUtil.Logger.Infof(serveCmdConfig.String())

	if err := serv.Start(); err != nil {
		return err
	}

	if endpoint := viper.GetString("metrics-endpoint"); endpoint != "" {
		go serveMetrics(endpoint)
	}
	if interval := viper.GetDuration("stats-interval"); interval > 0 {
		if d := serv.Detector(); d != nil {
			go gometrics.Log(d.Metrics(), interval, statsLogger{})
		}
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals

	cmdUtil.Logger.Infof("shutting down")
	return serv.Close()
}

// serveMetrics exposes all VictoriaMetrics counters in the prometheus text format
func serveMetrics(endpoint string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	cmdUtil.Logger.Infof("metrics available at http://%s/metrics", endpoint)
	if err := http.ListenAndServe(endpoint, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cmdUtil.Logger.Errorf("metrics endpoint failed: %v", err)
	}
}

// statsLogger forwards the go-metrics log output to the cmd logger
type statsLogger struct{}

func (statsLogger) Printf(format string, v ...interface{}) {
	cmdUtil.Logger.Infof("%s", fmt.Sprintf(format, v...))
}
