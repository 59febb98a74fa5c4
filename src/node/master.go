package node

import (
	"github.com/dcfnet/dcf/src/codec"
	"github.com/dcfnet/dcf/src/common"
	"github.com/dcfnet/dcf/src/config"
)

// AssignRole asks target to switch to mode. Only a node in master mode may
// send commands.
func (n *Node) AssignRole(target string, mode config.Mode) (*codec.Message, error) {
	if !mode.Valid() {
		return nil, common.NewDCFErr(common.InvalidMode, mode.String(), nil)
	}
	return n.sendCommand(target, codec.NewSetRole(mode.String()))
}

// PushConfig asks target to set one configuration key.
func (n *Node) PushConfig(target, key string, value interface{}) (*codec.Message, error) {
	return n.sendCommand(target, codec.NewUpdateConfig(key, value))
}

func (n *Node) sendCommand(target string, cmd *codec.ControlCommand) (*codec.Message, error) {
	if mode := n.Mode(); mode != config.MasterMode {
		return nil, common.NewDCFErr(common.InvalidMode, mode.String(), nil)
	}

	data, err := n.codec.Marshal(cmd)
	if err != nil {
		return nil, common.NewDCFErr(common.Serialization, cmd.Command, err)
	}

	return n.SendMessage(data, target)
}
