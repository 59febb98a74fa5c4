package dcf

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dcfnet/dcf/src/codec"
	"github.com/dcfnet/dcf/src/config"
	dnet "github.com/dcfnet/dcf/src/net"
	"github.com/dcfnet/dcf/src/node"
	"github.com/dcfnet/dcf/src/plugin"
	"github.com/dcfnet/dcf/src/redundancy"
	"github.com/dcfnet/dcf/src/service"
	"github.com/sirupsen/logrus"
)

// DCF is the engine wiring the components of a node together.
type DCF struct {
	Config     *config.Config
	Store      *config.Store
	Codec      codec.Codec
	Network    *dnet.Network
	Redundancy *redundancy.Redundancy
	Plugins    *plugin.Manager
	Node       *node.Node
	Service    *service.Service

	// TransportFactory overrides the TCP transports of the built-in network.
	// It must be set before Init.
	TransportFactory dnet.TransportFactory

	logger *logrus.Entry
}

// NewDCF creates an engine for conf. Nothing is started until Init and Run.
func NewDCF(conf *config.Config) *DCF {
	return &DCF{
		Config: conf,
	}
}

func (d *DCF) initStore() error {
	d.Store = config.NewStore(d.Config)
	d.logger = d.Store.Logger()

	d.logger.WithFields(logrus.Fields{
		"node_id":       d.Config.NodeID,
		"mode":          d.Config.Mode,
		"bind_addr":     d.Config.BindAddr(),
		"peers":         len(d.Config.Peers),
		"rtt_threshold": d.Config.RTTThreshold,
		"plugin_path":   d.Config.PluginPath,
		"codec":         d.Config.Codec,
		"service_addr":  d.Config.ServiceAddr,
		"route_store":   d.Config.RouteStore,
	}).Debug("Config")

	return nil
}

func (d *DCF) initCodec() error {
	c, err := codec.New(d.Config.Codec)
	if err != nil {
		return err
	}
	d.Codec = c
	return nil
}

func (d *DCF) initNetwork() error {
	logger := d.logger.WithField("component", "network")

	factory := d.TransportFactory
	if factory == nil {
		factory = dnet.TCPTransportFactory(d.Store, logger)
	}

	d.Network = dnet.NewNetwork(factory, d.Config.ReceiveTimeout, logger)

	return nil
}

func (d *DCF) initRedundancy() error {
	var routeStore redundancy.RouteStore

	if d.Config.RouteStore != "" {
		d.logger.WithField("path", d.Config.RouteStore).Debug("Opening route store")

		bs, err := redundancy.NewBadgerRouteStore(d.Config.RouteStore, d.logger)
		if err != nil {
			return err
		}
		routeStore = bs
	} else {
		routeStore = redundancy.NewInmemRouteStore()
	}

	// plugin peers do not answer the network's ping RPC
	var prober redundancy.Prober = d.Network
	if d.Config.PluginPath != "" {
		prober = redundancy.TCPProber{Timeout: d.Config.Timeout}
	}

	d.Redundancy = redundancy.NewRedundancy(d.Store, prober, routeStore, d.logger)

	return nil
}

func (d *DCF) initPlugins() error {
	d.Plugins = plugin.NewManager(d.Store, d.logger.WithField("component", "plugin"))
	return nil
}

func (d *DCF) initNode() error {
	d.Node = node.NewNode(
		d.Store,
		d.Codec,
		d.Network,
		d.Redundancy,
		d.Plugins,
		d.logger.WithField("component", "node"),
	)

	d.Node.OnClose(d.Redundancy.Close)

	return nil
}

func (d *DCF) initService() error {
	if d.Config.NoService || d.Config.ServiceAddr == "" {
		return nil
	}

	d.Service = service.NewService(d.Config.ServiceAddr, d.Node, d.Redundancy, d.logger)
	d.Node.OnClose(d.Service.Shutdown)

	return nil
}

// Init creates every component. It does not open network connections.
func (d *DCF) Init() error {
	if err := d.initStore(); err != nil {
		return err
	}

	if err := d.initCodec(); err != nil {
		return err
	}

	if err := d.initNetwork(); err != nil {
		return err
	}

	if err := d.initRedundancy(); err != nil {
		return err
	}

	if err := d.initPlugins(); err != nil {
		return err
	}

	if err := d.initNode(); err != nil {
		return err
	}

	if err := d.initService(); err != nil {
		return err
	}

	return nil
}

// Start starts the node and the HTTP service.
func (d *DCF) Start() error {
	if d.Node == nil {
		return fmt.Errorf("engine not initialised")
	}

	if err := d.Node.Start(); err != nil {
		return err
	}

	if d.Service != nil {
		go d.Service.Serve()
	}

	return nil
}

// Run starts the engine, logs incoming messages in the listening modes, and
// blocks until SIGINT or SIGTERM.
func (d *DCF) Run() error {
	if err := d.Start(); err != nil {
		return err
	}

	if d.Node.Mode().Listens() {
		d.Node.Listen(func(m *codec.Message) {
			d.logger.WithFields(logrus.Fields{
				"sender":    m.Sender,
				"recipient": m.Recipient,
				"bytes":     len(m.Data),
			}).Info("Message")
		})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh

	d.logger.WithField("signal", sig).Info("Shutting down")

	return d.Shutdown()
}

// Shutdown stops the node and releases every resource. It may be called more
// than once.
func (d *DCF) Shutdown() error {
	if d.Node == nil {
		return nil
	}
	return d.Node.Close()
}
