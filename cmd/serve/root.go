package serve

import (
	"context"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdUtil "kvasir/cmd/util"
	"kvasir/server"
	"kvasir/server/common"
)

var (
	serveCmdConfig = &common.ServerConfig{}

	// ServeCmd represents the serve command
	ServeCmd = &cobra.Command{
		Use:     "serve",
		Short:   "Start the kvasir server",
		Long:    `Start the kvasir server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is KVASIR_<flag> (e.g. KVASIR_SAVE_INTERVAL=30)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "addr"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:9001", cmdUtil.WrapString("The TCP address the server listens on. Every worker binds its own listener to this address via SO_REUSEPORT"))

	key = "workers"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Number of event loop workers. 0 starts one worker per CPU core"))

	key = "engine"
	ServeCmd.PersistentFlags().String(key, "hashmap", cmdUtil.WrapString("Store engine to use (hashmap, sharded)"))

	key = "data-file"
	ServeCmd.PersistentFlags().String(key, "kvstore.dat", cmdUtil.WrapString("Path of the snapshot file. The store is seeded from it on startup and saved to it periodically and on shutdown. An empty path disables persistence"))

	key = "save-interval"
	ServeCmd.PersistentFlags().Int(key, 60, cmdUtil.WrapString("Interval in seconds between periodic snapshots. 0 saves on shutdown only"))

	key = "read-buffer"
	ServeCmd.PersistentFlags().Int(key, 64, cmdUtil.WrapString("The size of the per worker read buffer (in KB). This caps the size of a single request"))

	key = "poll-timeout"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("Poll timeout in milliseconds. Bounds how long a worker blocks in the poller before it rechecks the stop flag"))

	key = "pin-workers"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Pin each worker thread to a CPU core (best effort)"))

	key = "metrics-addr"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The listen address for the /metrics and pprof endpoints (e.g. localhost:6060). Empty disables the listener"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Addr = viper.GetString("addr")
	serveCmdConfig.Workers = viper.GetInt("workers")
	serveCmdConfig.Engine = viper.GetString("engine")
	serveCmdConfig.DataFile = viper.GetString("data-file")
	serveCmdConfig.SaveInterval = time.Duration(viper.GetInt("save-interval")) * time.Second
	serveCmdConfig.ReadBufferSize = viper.GetInt("read-buffer") * 1024
	serveCmdConfig.PollTimeout = time.Duration(viper.GetInt("poll-timeout")) * time.Millisecond
	serveCmdConfig.PinWorkers = viper.GetBool("pin-workers")
	serveCmdConfig.MetricsAddr = viper.GetString("metrics-addr")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return nil
}

// run starts the kvasir server and blocks until SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	// initialize the loggers
	common.InitLoggers(serveCmdConfig.LogLevel)

	srv, err := server.NewServer(*serveCmdConfig)
	if err != nil {
		return err
	}

	// shut down gracefully on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return srv.Run(ctx)
}

// initConfig reads in ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("kvasir")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}
