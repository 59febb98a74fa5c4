package commands

import (
	"github.com/dcfnet/dcf/src/config"
	"github.com/dcfnet/dcf/src/dcf"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"mode":            "mode",
	"node-id":         "node_id",
	"host":            "host",
	"port":            "port",
	"rtt-threshold":   "rtt_threshold",
	"plugin":          "plugins.transport",
	"codec":           "codec",
	"log":             "log_level",
	"log-file":        "log_file",
	"timeout":         "timeout",
	"receive-timeout": "receive_timeout",
	"max-pool":        "max_pool",
	"service-listen":  "service_addr",
	"no-service":      "no_service",
	"probe-interval":  "probe_interval",
	"route-store":     "route_store",
	"peers-file":      "peers_file",
}

//NewRunCmd returns the command that starts a DCF node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run node",
		RunE:  runDCF,
	}
	AddNodeFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runDCF(cmd *cobra.Command, args []string) error {
	conf, err := nodeConfig(cmd)
	if err != nil {
		return err
	}

	engine := dcf.NewDCF(conf)

	if err := engine.Init(); err != nil {
		conf.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	return engine.Run()
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddNodeFlags adds flags to the commands that start a node
func AddNodeFlags(cmd *cobra.Command) {
	cmd.Flags().String("mode", config.DefaultMode.String(), "Operating mode: client, server, p2p, auto or master")
	cmd.Flags().String("node-id", "", "Node id (generated when empty)")
	cmd.Flags().String("host", config.DefaultHost, "Host the built-in network binds to")
	cmd.Flags().Int("port", config.DefaultPort, "Port the built-in network binds to")
	cmd.Flags().Int("rtt-threshold", config.DefaultRTTThreshold, "RTT threshold in milliseconds")
	cmd.Flags().String("plugin", config.DefaultPluginPath, "Plugin transport (websocket://, wamp://host:port/realm or a .so path)")
	cmd.Flags().String("codec", config.DefaultCodec, "Message codec: json or msgpack")
	cmd.Flags().String("log-file", "", "File receiving a JSON copy of the logs")
	cmd.Flags().Duration("timeout", config.DefaultTimeout, "Timeout of network requests")
	cmd.Flags().Duration("receive-timeout", config.DefaultReceiveTimeout, "Timeout of receive operations (0 blocks)")
	cmd.Flags().Int("max-pool", config.DefaultMaxPool, "Connection pool size max")
	cmd.Flags().String("service-listen", config.DefaultServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-service", false, "Disable HTTP service")
	cmd.Flags().Duration("probe-interval", config.DefaultProbeInterval, "Period of background RTT probes (0 disables)")
	cmd.Flags().String("route-store", "", "Directory of the on-disk RTT store")
	cmd.Flags().String("peers-file", "", "peers.json file appended to the configured peers")
}

// nodeConfig binds the flags of cmd that were set to their configuration keys
// and loads the resulting configuration.
func nodeConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := bindFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	return loadConfig()
}

// bindFlags only binds flags present on the command line, so that file and
// environment values are not masked by flag defaults.
func bindFlags(flags *pflag.FlagSet) error {
	var err error
	flags.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = _viper.BindPFlag(key, f)
	})
	return err
}
