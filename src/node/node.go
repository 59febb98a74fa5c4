package node

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/dcfnet/dcf/src/codec"
	"github.com/dcfnet/dcf/src/common"
	"github.com/dcfnet/dcf/src/config"
	dnet "github.com/dcfnet/dcf/src/net"
	"github.com/dcfnet/dcf/src/node/state"
	"github.com/dcfnet/dcf/src/plugin"
	"github.com/dcfnet/dcf/src/redundancy"
	"github.com/sirupsen/logrus"
)

// Network is the byte-level transport the node falls back to when no plugin is
// configured.
type Network interface {
	Start(mode config.Mode) error
	Stop() error
	Send(payload []byte, target string) ([]byte, error)
	Receive() ([]byte, error)
	SetResponder(r dnet.Responder)
}

// Router resolves recipients to routes in the routed modes.
type Router interface {
	Start(mode config.Mode) error
	Stop() error
	GetOptimalRoute(recipient string) (redundancy.Route, error)
}

// PluginSource hands out the plugin transport to use, if any.
type PluginSource interface {
	Transport() (plugin.Transport, error)
	SetResponder(func([]byte) []byte)
	Close() error
}

// ReplyHandler computes the data of the reply sent back for an inbound
// message.
type ReplyHandler func(request *codec.Message) []byte

// Node is a DCF node.
type Node struct {
	// lifecycleLock serialises Start, Stop, SetMode and Close.
	lifecycleLock sync.Mutex
	state.Manager

	mode uint32

	store   *config.Store
	codec   codec.Codec
	network Network
	router  Router
	plugins PluginSource

	replyHandler atomic.Value

	// pluginLock keeps one request in flight on the plugin transport, so that
	// each reply can be matched to its request.
	pluginLock sync.Mutex

	closeOnce sync.Once
	closers   []func() error

	start   time.Time
	metrics *nodeMetrics

	logger *logrus.Entry
}

// NewNode creates a stopped node in the mode of the current configuration.
// plugins may be nil.
func NewNode(store *config.Store,
	cdc codec.Codec,
	network Network,
	router Router,
	plugins PluginSource,
	logger *logrus.Entry,
) *Node {
	conf := store.Current()

	n := &Node{
		mode:    uint32(conf.Mode),
		store:   store,
		codec:   cdc,
		network: network,
		router:  router,
		plugins: plugins,
		metrics: newNodeMetrics(),
		logger:  logger.WithField("node_id", conf.NodeID),
	}

	n.replyHandler.Store(ReplyHandler(func(*codec.Message) []byte { return nil }))

	store.HandleMode(n.SetMode)

	network.SetResponder(n.respond)
	if plugins != nil {
		plugins.SetResponder(n.respond)
	}

	return n
}

// OnClose registers a function run by Close after the node is stopped, in
// registration order.
func (n *Node) OnClose(f func() error) {
	n.lifecycleLock.Lock()
	defer n.lifecycleLock.Unlock()
	n.closers = append(n.closers, f)
}

// Mode returns the current operating mode.
func (n *Node) Mode() config.Mode {
	return config.Mode(atomic.LoadUint32(&n.mode))
}

// ID returns the node id of the current configuration.
func (n *Node) ID() string {
	return n.store.Current().NodeID
}

// Store returns the configuration store of the node.
func (n *Node) Store() *config.Store {
	return n.store
}

// Start initialises the network and routing layers for the current mode.
func (n *Node) Start() error {
	n.lifecycleLock.Lock()
	defer n.lifecycleLock.Unlock()

	if n.GetState() == state.Running {
		return common.NewDCFErr(common.AlreadyRunning, n.ID(), nil)
	}

	mode := n.Mode()

	if err := n.initLayers(mode); err != nil {
		return err
	}

	n.start = time.Now()
	n.SetState(state.Running)

	n.logger.WithField("mode", mode).Info("Node started")

	return nil
}

// initLayers starts the network, then the routing layer. The network is
// stopped again when routing fails.
func (n *Node) initLayers(mode config.Mode) error {
	if err := n.network.Start(mode); err != nil {
		return common.NewDCFErr(common.Transport, "network", err)
	}

	if err := n.router.Start(mode); err != nil {
		if serr := n.network.Stop(); serr != nil {
			n.logger.WithError(serr).Error("Failed to roll back network")
		}
		return common.NewDCFErr(common.Transport, "redundancy", err)
	}

	return nil
}

// Stop tears down the network and routing layers.
func (n *Node) Stop() error {
	n.lifecycleLock.Lock()
	defer n.lifecycleLock.Unlock()

	if n.GetState() != state.Running {
		return common.NewDCFErr(common.NotRunning, n.ID(), nil)
	}

	n.SetState(state.Stopped)

	var firstErr error
	if err := n.router.Stop(); err != nil {
		n.logger.WithError(err).Error("Failed to stop redundancy layer")
		firstErr = err
	}
	if err := n.network.Stop(); err != nil {
		n.logger.WithError(err).Error("Failed to stop network")
		if firstErr == nil {
			firstErr = err
		}
	}

	n.logger.Info("Node stopped")

	return firstErr
}

// SetMode switches the operating mode. A running node re-initialises its
// network and routing layers for the new mode and stays running. When the new
// layers cannot be initialised, the node goes back to the previous mode and
// the error is returned.
func (n *Node) SetMode(mode config.Mode) error {
	if !mode.Valid() {
		return common.NewDCFErr(common.InvalidMode, mode.String(), nil)
	}

	n.lifecycleLock.Lock()
	defer n.lifecycleLock.Unlock()

	old := n.Mode()

	logger := n.logger.WithFields(logrus.Fields{
		"from": old,
		"to":   mode,
	})

	if n.GetState() == state.Running {
		if err := n.router.Stop(); err != nil {
			n.logger.WithError(err).Error("Failed to stop redundancy layer")
		}

		if err := n.initLayers(mode); err != nil {
			logger.WithError(err).Error("Mode change failed, restoring previous mode")
			n.restoreLayers(old)
			return err
		}
	}

	atomic.StoreUint32(&n.mode, uint32(mode))
	n.store.RecordMode(mode)

	logger.Info("Mode changed")

	return nil
}

// restoreLayers re-initialises the layers of mode after a failed switch. The
// node is stopped if that fails too. Called with lifecycleLock held.
func (n *Node) restoreLayers(mode config.Mode) {
	err := n.initLayers(mode)
	if err == nil {
		return
	}
	n.logger.WithError(err).Error("Failed to restore previous mode, stopping")

	n.SetState(state.Stopped)
	if err := n.network.Stop(); err != nil {
		n.logger.WithError(err).Error("Failed to stop network")
	}
}

// SetLogLevel changes the level of the node's logger. Unknown levels select
// debug.
func (n *Node) SetLogLevel(level string) {
	lvl := config.LogLevel(level)
	n.logger.Logger.SetLevel(lvl)
	n.logger.WithField("level", lvl).Info("Log level changed")
}

// SetReplyHandler sets the function computing the data of replies to inbound
// messages. A nil handler restores empty replies.
func (n *Node) SetReplyHandler(h ReplyHandler) {
	if h == nil {
		h = func(*codec.Message) []byte { return nil }
	}
	n.replyHandler.Store(h)
}

// Close stops the node if it is running, then releases plugin transports and
// the resources registered with OnClose. Only the first call has an effect.
func (n *Node) Close() error {
	var err error

	n.closeOnce.Do(func() {
		if serr := n.Stop(); serr != nil && !common.IsDCFErr(serr, common.NotRunning) {
			err = serr
		}

		if n.plugins != nil {
			if perr := n.plugins.Close(); perr != nil && err == nil {
				err = perr
			}
		}

		n.WaitRoutines()

		n.lifecycleLock.Lock()
		closers := n.closers
		n.lifecycleLock.Unlock()

		for _, f := range closers {
			if cerr := f(); cerr != nil && err == nil {
				err = cerr
			}
		}

		n.logger.Debug("Node closed")
	})

	return err
}

// Metrics returns the metric set of the node.
func (n *Node) Metrics() *metrics.Set {
	return n.metrics.set
}
