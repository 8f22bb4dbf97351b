package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	cmdUtil "github.com/ValentinKolb/tcsd/cmd/util"
	"github.com/ValentinKolb/tcsd/lib/device"
	"github.com/ValentinKolb/tcsd/lib/ps"
	"github.com/ValentinKolb/tcsd/lib/store/lstore"
	"github.com/ValentinKolb/tcsd/rpc/common"
	"github.com/ValentinKolb/tcsd/rpc/server"
	"github.com/google/gops/agent"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Start the tcsd daemon",
		Long: `Start the tcsd daemon with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is TCSD_<flag> (e.g. TCSD_MAX_THREADS=20).

The daemon refuses to start if the persistent store cannot be loaded.`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, fmt.Sprintf("0.0.0.0:%d", common.DefaultPort), cmdUtil.WrapString("The address on which the daemon will listen (host:port for tcp, a socket path for unix)"))

	key = "max-threads"
	ServeCmd.PersistentFlags().Int(key, common.DefaultMaxThreads, cmdUtil.WrapString("The maximum number of simultaneously served connections. Further connections are closed right after accept"))

	key = "buffer-size"
	ServeCmd.PersistentFlags().Int(key, common.DefaultBufferSize, cmdUtil.WrapString("The size of the per connection receive buffer in bytes. Requests with a larger body close the connection"))

	key = "remote-ops"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated list of operations remote (non loopback) peers may use, e.g. 'get-registered-key,enumerate-children'. open-context and close-context are always allowed"))

	key = "ps-file"
	ServeCmd.PersistentFlags().String(key, common.DefaultPSFile, cmdUtil.WrapString("The persistent store file holding the key hierarchy"))

	key = "dialect"
	ServeCmd.PersistentFlags().String(key, "versioned", cmdUtil.WrapString("The dialect used to write the persistent store (legacy, versioned). Both dialects are read"))

	key = "device"
	ServeCmd.PersistentFlags().String(key, "/dev/tpmrm0", cmdUtil.WrapString("The TPM to forward commands to: a device path, a socket path ending in .sock, tcp:host:port for a simulator or 'none'"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The address on which Prometheus metrics are served (e.g. localhost:9090), empty to disable"))

	key = "stats-interval"
	ServeCmd.PersistentFlags().Duration(key, 0, cmdUtil.WrapString("How often the device lock statistics are logged (e.g. 1m), 0 to disable"))

	key = "gops"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Start the gops diagnostics agent"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse remote operations
	serveCmdConfig.RemoteOps = nil
	if remoteOps := viper.GetString("remote-ops"); remoteOps != "" {
		for _, name := range strings.Split(remoteOps, ",") {
			ord, err := common.ParseOrdinal(strings.TrimSpace(name))
			if err != nil {
				return err
			}
			serveCmdConfig.RemoteOps = append(serveCmdConfig.RemoteOps, ord)
		}
	}

	// validate the dialect early, the store is opened in run
	if _, err := ps.ParseDialect(viper.GetString("dialect")); err != nil {
		return err
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Transport = viper.GetString("transport")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.MaxThreads = viper.GetInt("max-threads")
	serveCmdConfig.BufferSize = viper.GetInt("buffer-size")
	serveCmdConfig.PSFile = viper.GetString("ps-file")
	serveCmdConfig.Dialect = viper.GetString("dialect")
	serveCmdConfig.Device = viper.GetString("device")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.StatsInterval = viper.GetDuration("stats-interval")
	serveCmdConfig.Gops = viper.GetBool("gops")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.MaxThreads <= 0 {
		return fmt.Errorf("max-threads must be positive, got %d", serveCmdConfig.MaxThreads)
	}
	if serveCmdConfig.BufferSize < common.DefaultBufferSize {
		return fmt.Errorf("buffer-size must be at least %d bytes, got %d", common.DefaultBufferSize, serveCmdConfig.BufferSize)
	}

	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run starts the daemon and blocks until SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	if serveCmdConfig.Gops {
		if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
			return fmt.Errorf("failed to start gops agent: %w", err)
		}
		defer agent.Close()
	}

	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}
	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	// Load the key hierarchy, an unreadable store is fatal
	dialect, _ := ps.ParseDialect(serveCmdConfig.Dialect)
	keys, err := lstore.Open(serveCmdConfig.PSFile, dialect)
	if err != nil {
		return fmt.Errorf("failed to load persistent store: %w", err)
	}

	tpm, err := device.Open(serveCmdConfig.Device)
	if err != nil {
		return err
	}
	defer tpm.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
		keys,
		tpm,
	)

	return serv.Serve(ctx)
}
