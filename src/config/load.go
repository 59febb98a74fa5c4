package config

import (
	"fmt"
	"strings"

	"github.com/dcfnet/dcf/src/common"
	"github.com/dcfnet/dcf/src/peers"
	"github.com/google/uuid"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding file values,
// e.g. DCF_PORT or DCF_PLUGINS_TRANSPORT.
const EnvPrefix = "DCF"

// Keys read from the configuration source.
const (
	keyMode           = "mode"
	keyNodeID         = "node_id"
	keyPeers          = "peers"
	keyPeersFile      = "peers_file"
	keyHost           = "host"
	keyPort           = "port"
	keyRTTThreshold   = "rtt_threshold"
	keyPluginPath     = "plugin_path"
	keyPluginsTrans   = "plugins.transport"
	keyCodec          = "codec"
	keyLogLevel       = "log_level"
	keyLogFile        = "log_file"
	keyTimeout        = "timeout"
	keyReceiveTimeout = "receive_timeout"
	keyMaxPool        = "max_pool"
	keyServiceAddr    = "service_addr"
	keyNoService      = "no_service"
	keyProbeInterval  = "probe_interval"
	keyRouteStore     = "route_store"
	keyMasters        = "masters"
)

// NewViper returns a viper instance reading DCF_ environment variables, and the
// file at path when path is not empty.
func NewViper(path string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	}
	return v
}

// Load reads the configuration file at path and returns a fully populated
// Config. It fails with a ConfigLoad error if the file cannot be read or
// parsed, or if a value is out of range.
func Load(path string) (*Config, error) {
	v := NewViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, common.NewDCFErr(common.ConfigLoad, path, err)
	}
	return FromViper(v)
}

// FromViper builds a Config from values already registered in v, from a file,
// the environment, or bound command line flags. Missing values take their
// defaults.
func FromViper(v *viper.Viper) (*Config, error) {
	conf, err := decode(v)
	if err != nil {
		return nil, common.NewDCFErr(common.ConfigLoad, v.ConfigFileUsed(), err)
	}

	if conf.PeersFile != "" {
		extra, err := peers.NewJSONPeerSet(conf.PeersFile).PeerSet()
		if err != nil {
			return nil, common.NewDCFErr(common.ConfigLoad, conf.PeersFile, err)
		}
		conf.Peers = conf.PeerSet().Merge(extra).Peers
	}

	applyDefaults(conf)

	return conf, nil
}

// applyDefaults fills the values a configuration source may leave out. It runs
// once per load; afterwards the Config is complete.
func applyDefaults(conf *Config) {
	if conf.NodeID == "" {
		conf.NodeID = uuid.NewString()
	}
	if conf.Peers == nil {
		conf.Peers = []*peers.Peer{}
	}
	if conf.Host == "" {
		conf.Host = DefaultHost
	}
	if conf.Codec == "" {
		conf.Codec = DefaultCodec
	}
	if conf.LogLevel == "" {
		conf.LogLevel = DefaultLogLevel
	}
	if conf.Timeout <= 0 {
		conf.Timeout = DefaultTimeout
	}
	if conf.MaxPool <= 0 {
		conf.MaxPool = DefaultMaxPool
	}
	if conf.ServiceAddr == "" {
		conf.ServiceAddr = DefaultServiceAddr
	}
}

func decode(v *viper.Viper) (*Config, error) {
	conf := NewDefaultConfig()

	if v.IsSet(keyMode) {
		m, err := ParseMode(v.GetString(keyMode))
		if err != nil {
			return nil, err
		}
		conf.Mode = m
	}

	conf.NodeID = strings.TrimSpace(v.GetString(keyNodeID))

	ps, err := peers.ParsePeers(v.Get(keyPeers))
	if err != nil {
		return nil, err
	}
	conf.Peers = ps
	conf.PeersFile = v.GetString(keyPeersFile)

	if v.IsSet(keyHost) {
		conf.Host = v.GetString(keyHost)
	}

	if v.IsSet(keyPort) {
		if conf.Port, err = toPort(v.Get(keyPort)); err != nil {
			return nil, fmt.Errorf("%s: %v", keyPort, err)
		}
	}

	if v.IsSet(keyRTTThreshold) {
		if conf.RTTThreshold, err = toNonNegativeInt(v.Get(keyRTTThreshold)); err != nil {
			return nil, fmt.Errorf("%s: %v", keyRTTThreshold, err)
		}
	}

	// plugins.transport is the documented key; plugin_path is accepted so a
	// file can use the same name as Update.
	conf.PluginPath = v.GetString(keyPluginsTrans)
	if conf.PluginPath == "" {
		conf.PluginPath = v.GetString(keyPluginPath)
	}

	if v.IsSet(keyCodec) {
		conf.Codec = strings.ToLower(v.GetString(keyCodec))
	}
	if v.IsSet(keyLogLevel) {
		conf.LogLevel = v.GetString(keyLogLevel)
	}
	conf.LogFile = v.GetString(keyLogFile)

	if v.IsSet(keyTimeout) {
		if conf.Timeout, err = cast.ToDurationE(v.Get(keyTimeout)); err != nil {
			return nil, fmt.Errorf("%s: %v", keyTimeout, err)
		}
	}
	if v.IsSet(keyReceiveTimeout) {
		if conf.ReceiveTimeout, err = cast.ToDurationE(v.Get(keyReceiveTimeout)); err != nil {
			return nil, fmt.Errorf("%s: %v", keyReceiveTimeout, err)
		}
	}
	if v.IsSet(keyProbeInterval) {
		if conf.ProbeInterval, err = cast.ToDurationE(v.Get(keyProbeInterval)); err != nil {
			return nil, fmt.Errorf("%s: %v", keyProbeInterval, err)
		}
	}

	if v.IsSet(keyMaxPool) {
		if conf.MaxPool, err = toNonNegativeInt(v.Get(keyMaxPool)); err != nil {
			return nil, fmt.Errorf("%s: %v", keyMaxPool, err)
		}
	}

	if v.IsSet(keyServiceAddr) {
		conf.ServiceAddr = v.GetString(keyServiceAddr)
	}
	conf.NoService = v.GetBool(keyNoService)
	conf.RouteStore = v.GetString(keyRouteStore)

	if v.IsSet(keyMasters) {
		if conf.Masters, err = cast.ToStringSliceE(v.Get(keyMasters)); err != nil {
			return nil, fmt.Errorf("%s: %v", keyMasters, err)
		}
	}

	switch conf.Codec {
	case "json", "msgpack":
	default:
		return nil, fmt.Errorf("%s: unknown codec %q", keyCodec, conf.Codec)
	}

	return conf, nil
}
