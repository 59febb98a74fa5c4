package node

import (
	"fmt"

	"github.com/dcfnet/dcf/src/codec"
	"github.com/dcfnet/dcf/src/common"
	"github.com/dcfnet/dcf/src/config"
	"github.com/dcfnet/dcf/src/node/state"
	"github.com/dcfnet/dcf/src/plugin"
	"github.com/sirupsen/logrus"
)

// SendMessage wraps data in a message for recipient, delivers it, and returns
// the reply. In the p2p and auto modes the message goes through the optimal
// route; when no route is known it is sent to recipient directly.
func (n *Node) SendMessage(data []byte, recipient string) (*codec.Message, error) {
	if n.GetState() != state.Running {
		return nil, common.NewDCFErr(common.NotRunning, n.ID(), nil)
	}

	conf := n.store.Current()

	msg := codec.NewMessage(data, conf.NodeID, recipient)
	raw, err := n.codec.Marshal(msg)
	if err != nil {
		n.metrics.serializationErrors.Inc()
		return nil, common.NewDCFErr(common.Serialization, recipient, err)
	}

	target := n.destination(recipient)

	reply, err := n.exchange(raw, target, msg.Sequence)
	if err != nil {
		return nil, err
	}

	n.metrics.sent.Inc()

	n.logger.WithFields(logrus.Fields{
		"recipient": recipient,
		"target":    target,
		"bytes":     len(raw),
	}).Debug("Message sent")

	return reply, nil
}

func (n *Node) destination(recipient string) string {
	if !n.Mode().Routed() {
		return recipient
	}

	route, err := n.router.GetOptimalRoute(recipient)
	if err != nil {
		n.logger.WithError(err).WithField("recipient", recipient).Warn("No route, sending directly")
		return recipient
	}

	return route.Peer
}

// exchange delivers raw to target through the plugin transport if one is
// configured, and through the network otherwise, and returns the reply
// carrying sequence.
func (n *Node) exchange(raw []byte, target, sequence string) (*codec.Message, error) {
	t, err := n.pluginTransport()
	if err != nil {
		n.metrics.transportErrors.Inc()
		return nil, err
	}
	if t != nil {
		return n.pluginExchange(t, raw, target, sequence)
	}

	resp, err := n.network.Send(raw, target)
	if err != nil {
		return nil, n.transportErr(target, err)
	}

	reply, err := n.decodeReply(resp, target)
	if err != nil {
		return nil, err
	}
	if reply.Sequence != sequence {
		return nil, n.transportErr(target, fmt.Errorf("reply %q does not answer request %q", reply.Sequence, sequence))
	}
	return reply, nil
}

// pluginExchange sends one request at a time over t. Replies to earlier
// requests that timed out are dropped until the one carrying sequence arrives.
func (n *Node) pluginExchange(t plugin.Transport, raw []byte, target, sequence string) (*codec.Message, error) {
	n.pluginLock.Lock()
	defer n.pluginLock.Unlock()

	if err := t.Send(raw, target); err != nil {
		return nil, n.transportErr(target, err)
	}

	receive := t.Receive
	if r, ok := t.(plugin.Replier); ok {
		receive = r.ReceiveReply
	}

	for {
		resp, err := receive()
		if err != nil {
			return nil, n.transportErr(target, err)
		}

		reply, err := n.decodeReply(resp, target)
		if err != nil {
			return nil, err
		}
		if reply.Sequence == sequence {
			return reply, nil
		}

		n.logger.WithFields(logrus.Fields{
			"target":   target,
			"sequence": reply.Sequence,
		}).Debug("Dropping stale reply")
	}
}

func (n *Node) pluginTransport() (plugin.Transport, error) {
	if n.plugins == nil {
		return nil, nil
	}
	return n.plugins.Transport()
}

func (n *Node) decodeReply(resp []byte, target string) (*codec.Message, error) {
	reply, err := n.codec.Deserialize(resp)
	if err != nil {
		n.metrics.serializationErrors.Inc()
		return nil, common.NewDCFErr(common.Serialization, target, err)
	}
	return reply, nil
}

func (n *Node) transportErr(target string, err error) error {
	n.metrics.transportErrors.Inc()
	return common.NewDCFErr(common.Transport, target, err)
}

// ReceiveMessage blocks until a message arrives and returns it. In auto mode
// the payload is first inspected for control commands.
func (n *Node) ReceiveMessage() (*codec.Message, error) {
	if n.GetState() != state.Running {
		return nil, common.NewDCFErr(common.NotRunning, n.ID(), nil)
	}

	raw, err := n.receiveRaw()
	if err != nil {
		if common.IsDCFErr(err, common.PluginLoad) {
			return nil, err
		}
		return nil, common.NewDCFErr(common.Transport, "receive", err)
	}

	auto := n.Mode() == config.AutoMode

	topLevel := false
	if auto {
		topLevel = n.handleTopLevel(raw)
	}

	msg, err := n.codec.Deserialize(raw)
	if err != nil {
		n.metrics.serializationErrors.Inc()
		return nil, common.NewDCFErr(common.Serialization, "receive", err)
	}

	if auto && !topLevel {
		n.handleEmbedded(msg)
	}

	n.metrics.received.Inc()

	n.logger.WithFields(logrus.Fields{
		"sender": msg.Sender,
		"bytes":  len(raw),
	}).Debug("Message received")

	return msg, nil
}

// receiveRaw reads the next inbound request. Replies to our own sends are
// never returned here.
func (n *Node) receiveRaw() ([]byte, error) {
	t, err := n.pluginTransport()
	if err != nil {
		return nil, err
	}
	if t != nil {
		return t.Receive()
	}
	return n.network.Receive()
}

// respond builds the serialized reply to an inbound request.
func (n *Node) respond(request []byte) []byte {
	id := n.ID()

	var reply *codec.Message

	req, err := n.codec.Deserialize(request)
	if err != nil {
		n.logger.WithError(err).Debug("Replying to undecodable request")
		reply = (&codec.Message{}).Reply(id, nil)
	} else {
		handler := n.replyHandler.Load().(ReplyHandler)
		reply = req.Reply(id, handler(req))
	}

	raw, err := n.codec.Marshal(reply)
	if err != nil {
		n.logger.WithError(err).Error("Failed to serialize reply")
		return nil
	}
	return raw
}

// Listen receives messages in the background and passes them to handler until
// the node stops or receiving fails for a reason other than a timeout.
func (n *Node) Listen(handler func(*codec.Message)) bool {
	return n.GoFunc(func() {
		for {
			msg, err := n.ReceiveMessage()
			if err != nil {
				if n.GetState() != state.Running {
					return
				}
				if isTimeout(err) {
					continue
				}
				n.logger.WithError(err).Error("Receive failed")
				return
			}
			handler(msg)
		}
	})
}
