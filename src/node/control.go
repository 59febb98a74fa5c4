package node

import (
	"fmt"

	"github.com/dcfnet/dcf/src/codec"
	"github.com/dcfnet/dcf/src/config"
	"github.com/sirupsen/logrus"
)

// handleTopLevel applies raw when it is a control command by itself, and
// reports whether it was one.
func (n *Node) handleTopLevel(raw []byte) bool {
	cmd, ok := codec.ParseControl(n.codec, raw)
	if !ok {
		return false
	}

	if len(n.store.Current().Masters) > 0 {
		n.metrics.controlIgnored.Inc()
		n.logger.WithField("command", cmd.Command).Warn("Ignoring control command without sender")
		return true
	}

	n.apply(cmd, "")
	return true
}

// handleEmbedded applies the control command carried in the data of msg, if
// any.
func (n *Node) handleEmbedded(msg *codec.Message) {
	cmd, ok := codec.ParseControl(n.codec, msg.Data)
	if !ok {
		return
	}

	if !n.store.Current().IsMaster(msg.Sender) {
		n.metrics.controlIgnored.Inc()
		n.logger.WithFields(logrus.Fields{
			"command": cmd.Command,
			"sender":  msg.Sender,
		}).Warn("Ignoring control command from unknown master")
		return
	}

	n.apply(cmd, msg.Sender)
}

func (n *Node) apply(cmd *codec.ControlCommand, sender string) {
	logger := n.logger.WithFields(logrus.Fields{
		"command": cmd.Command,
		"sender":  sender,
	})

	if err := n.execute(cmd); err != nil {
		n.metrics.controlIgnored.Inc()
		logger.WithError(err).Warn("Control command ignored")
		return
	}

	n.metrics.controlApplied.Inc()
	logger.Info("Control command applied")
}

func (n *Node) execute(cmd *codec.ControlCommand) error {
	switch cmd.Command {
	case codec.SetRoleCommand:
		mode, err := config.ParseMode(cmd.Role)
		if err != nil {
			return err
		}
		return n.SetMode(mode)
	case codec.UpdateConfigCommand:
		// mode updates reach SetMode through the store's mode handler
		return n.store.Update(cmd.Key, cmd.Value)
	default:
		return fmt.Errorf("unknown command %q", cmd.Command)
	}
}
