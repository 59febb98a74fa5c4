// Package codec serializes the messages exchanged by DCF nodes.
//
// A Message carries application data together with the id of the node that
// created it and the recipient it is addressed to. Two wire formats are
// available, both built on ugorji/go/codec: canonical JSON, the default, and
// msgpack. Nodes talking to each other must use the same format.
//
// The package also defines the control commands a master embeds in the
// message stream to reconfigure nodes running in auto mode:
//
//	{"command": "set_role", "role": "server"}
//	{"command": "update_config", "key": "rtt_threshold", "value": "30"}
//
// A command is either the whole payload, or the Data of an ordinary Message.
// ParseControl never fails: anything that does not decode to a command is an
// ordinary payload.
package codec
