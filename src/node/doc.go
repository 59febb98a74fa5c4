// Package node implements the runtime of a DCF node.
//
// A Node is a small state machine, Stopped or Running, that owns the operating
// mode of the node and drives two collaborators: the built-in network, which
// moves bytes, and the redundancy layer, which picks routes in the p2p and
// auto modes. A plugin transport, when configured, replaces the network for
// sending and receiving.
//
// Modes
//
// The mode decides how the network listens and whether routes are optimised:
//
//	client  dials out only; receiving fails
//	server  listens, sends directly
//	p2p     listens, sends through the optimal route
//	auto    like p2p, and obeys control commands
//	master  listens, sends directly, may push commands to other nodes
//
// SetMode may be called at any time. On a running node it re-initialises the
// network and routing layers in place; the node stays Running.
//
// Control Channel
//
// In auto mode every received payload is inspected for a control command,
// either as the whole payload or embedded in the data of a message:
//
//	{"command": "set_role", "role": "server"}
//	{"command": "update_config", "key": "rtt_threshold", "value": 80}
//
// Commands that cannot be applied are logged and dropped; the message itself is
// still returned to the caller. When the masters list of the configuration is
// not empty, only embedded commands from one of those senders are applied.
package node
