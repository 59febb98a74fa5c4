package config

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/dcfnet/dcf/src/common"
	"github.com/dcfnet/dcf/src/peers"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default configuration values.
const (
	DefaultMode           = AutoMode
	DefaultHost           = "localhost"
	DefaultPort           = 50051
	DefaultRTTThreshold   = 50
	DefaultPluginPath     = ""
	DefaultCodec          = "json"
	DefaultLogLevel       = "info"
	DefaultTimeout        = 1000 * time.Millisecond
	DefaultReceiveTimeout = 0
	DefaultMaxPool        = 2
	DefaultServiceAddr    = "127.0.0.1:8000"
	DefaultProbeInterval  = 0
)

// Config contains all the configuration properties of a DCF node.
type Config struct {
	// Mode is the operating role the node starts in.
	Mode Mode `json:"mode"`

	// NodeID identifies this node as the sender of every message it creates.
	// It is generated when absent from the configuration source.
	NodeID string `json:"node_id"`

	// Peers are the destinations known at startup, in preference order for
	// routes of equal cost.
	Peers []*peers.Peer `json:"peers"`

	// PeersFile is an optional peers.json file whose entries are appended to
	// Peers at load time.
	PeersFile string `json:"peers_file,omitempty"`

	// Host and Port form the address the built-in network binds to in every
	// mode that serves inbound messages.
	Host string `json:"host"`
	Port int    `json:"port"`

	// RTTThreshold, in milliseconds, separates local from remote peers. Routes
	// above it are still used; the threshold is only a quality signal.
	RTTThreshold int `json:"rtt_threshold"`

	// PluginPath selects a plugin transport. Empty means the built-in network
	// is used. Read from plugins.transport in the configuration source.
	PluginPath string `json:"plugin_path"`

	// Codec names the message serialization format: json or msgpack.
	Codec string `json:"codec"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `json:"log_level"`

	// LogFile, when set, receives a copy of every log entry.
	LogFile string `json:"log_file,omitempty"`

	// Timeout bounds dials and request/response exchanges of the built-in
	// network.
	Timeout time.Duration `json:"timeout"`

	// ReceiveTimeout bounds how long a receive blocks. Zero blocks until data
	// arrives.
	ReceiveTimeout time.Duration `json:"receive_timeout"`

	// MaxPool controls how many connections are pooled per target.
	MaxPool int `json:"max_pool"`

	// ServiceAddr is the address:port of the HTTP status service. NoService
	// disables it.
	ServiceAddr string `json:"service_addr"`
	NoService   bool   `json:"no_service"`

	// ProbeInterval is the period of background RTT probes in routed modes.
	// Zero disables background probing.
	ProbeInterval time.Duration `json:"probe_interval"`

	// RouteStore is the directory of the on-disk RTT sample store. Empty keeps
	// samples in memory.
	RouteStore string `json:"route_store,omitempty"`

	// Masters, when not empty, restricts embedded control commands to messages
	// sent by one of these node ids.
	Masters []string `json:"masters,omitempty"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values. NodeID is left
// empty; Load generates one.
func NewDefaultConfig() *Config {
	return &Config{
		Mode:           DefaultMode,
		Peers:          []*peers.Peer{},
		Host:           DefaultHost,
		Port:           DefaultPort,
		RTTThreshold:   DefaultRTTThreshold,
		PluginPath:     DefaultPluginPath,
		Codec:          DefaultCodec,
		LogLevel:       DefaultLogLevel,
		Timeout:        DefaultTimeout,
		ReceiveTimeout: DefaultReceiveTimeout,
		MaxPool:        DefaultMaxPool,
		ServiceAddr:    DefaultServiceAddr,
		ProbeInterval:  DefaultProbeInterval,
	}
}

// NewTestConfig returns a config object with default values, a fixed node id,
// and a special logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.NodeID = t.Name()
	config.Host = "127.0.0.1"
	config.Port = 0
	config.Timeout = time.Second
	config.NoService = true
	config.logger = common.NewTestLogger(t, level)
	return config
}

// Clone returns a copy that shares nothing mutable with c, apart from the
// logger.
func (c *Config) Clone() *Config {
	clone := *c

	clone.Peers = make([]*peers.Peer, len(c.Peers))
	for i, p := range c.Peers {
		cp := *p
		clone.Peers[i] = &cp
	}

	if c.Masters != nil {
		clone.Masters = append([]string{}, c.Masters...)
	}

	return &clone
}

// BindAddr returns the host:port the built-in network listens on.
func (c *Config) BindAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Threshold returns RTTThreshold as a Duration.
func (c *Config) Threshold() time.Duration {
	return time.Duration(c.RTTThreshold) * time.Millisecond
}

// PeerSet returns the configured peers as a PeerSet.
func (c *Config) PeerSet() *peers.PeerSet {
	return peers.NewPeerSet(c.Peers)
}

// IsMaster reports whether control commands from sender are honoured.
func (c *Config) IsMaster(sender string) bool {
	if len(c.Masters) == 0 {
		return true
	}
	for _, m := range c.Masters {
		if m == sender {
			return true
		}
	}
	return false
}

// Logger returns a formatted logrus Entry, with prefix set to "dcf". When
// LogFile is set, every level is also written to that file.
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			pathMap := lfshook.PathMap{}
			for _, l := range logrus.AllLevels {
				pathMap[l] = c.LogFile
			}
			c.logger.Hooks.Add(lfshook.NewHook(
				pathMap,
				&logrus.JSONFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "dcf")
}

// LogLevel parses a string into a Logrus log level. Besides level names it
// accepts the numeric levels 0 (debug), 1 (info) and 2 (error). Anything else
// selects debug.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug", "0":
		return logrus.DebugLevel
	case "info", "1":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error", "2":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
