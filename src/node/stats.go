package node

import (
	"errors"
	"strconv"
	"time"

	"github.com/VictoriaMetrics/metrics"
	dnet "github.com/dcfnet/dcf/src/net"
	"github.com/dcfnet/dcf/src/node/state"
	"github.com/dcfnet/dcf/src/plugin"
)

type nodeMetrics struct {
	set                 *metrics.Set
	sent                *metrics.Counter
	received            *metrics.Counter
	controlApplied      *metrics.Counter
	controlIgnored      *metrics.Counter
	transportErrors     *metrics.Counter
	serializationErrors *metrics.Counter
}

func newNodeMetrics() *nodeMetrics {
	set := metrics.NewSet()
	return &nodeMetrics{
		set:                 set,
		sent:                set.NewCounter("dcf_messages_sent_total"),
		received:            set.NewCounter("dcf_messages_received_total"),
		controlApplied:      set.NewCounter(`dcf_control_commands_total{result="applied"}`),
		controlIgnored:      set.NewCounter(`dcf_control_commands_total{result="ignored"}`),
		transportErrors:     set.NewCounter(`dcf_errors_total{type="transport"}`),
		serializationErrors: set.NewCounter(`dcf_errors_total{type="serialization"}`),
	}
}

// GetStats returns a snapshot of the node state and counters.
func (n *Node) GetStats() map[string]string {
	conf := n.store.Current()

	uptime := "0s"
	if n.GetState() == state.Running {
		n.lifecycleLock.Lock()
		start := n.start
		n.lifecycleLock.Unlock()
		uptime = time.Since(start).Round(time.Millisecond).String()
	}

	u := func(c *metrics.Counter) string {
		return strconv.FormatUint(c.Get(), 10)
	}

	return map[string]string{
		"node_id":              conf.NodeID,
		"state":                n.GetState().String(),
		"mode":                 n.Mode().String(),
		"host":                 conf.Host,
		"port":                 strconv.Itoa(conf.Port),
		"rtt_threshold":        strconv.Itoa(conf.RTTThreshold),
		"plugin_path":          conf.PluginPath,
		"codec":                n.codec.Name(),
		"num_peers":            strconv.Itoa(len(conf.Peers)),
		"uptime":               uptime,
		"messages_sent":        u(n.metrics.sent),
		"messages_received":    u(n.metrics.received),
		"control_applied":      u(n.metrics.controlApplied),
		"control_ignored":      u(n.metrics.controlIgnored),
		"transport_errors":     u(n.metrics.transportErrors),
		"serialization_errors": u(n.metrics.serializationErrors),
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, dnet.ErrReceiveTimeout) || errors.Is(err, plugin.ErrTimeout)
}
