// Package config defines the configuration for a DCF node.
//
// Configuration is read once, at startup, from a structured file (JSON, YAML or
// TOML, chosen by extension) and from DCF_ prefixed environment variables:
//
//	mode: p2p                 # client, server, p2p, auto or master
//	node_id: node-1           # generated if absent
//	host: 0.0.0.0
//	port: 50051
//	rtt_threshold: 50         # milliseconds
//	peers:
//	  - 10.0.0.2:50051
//	  - {addr: 10.0.0.3:50051, rtt: 20}
//	plugins:
//	  transport: websocket    # see package plugin
//
// Load applies defaults exactly once and returns a fully populated Config. That
// value is never modified afterwards: live changes go through a Store, which
// keeps the loaded snapshot next to a current cell that Update replaces
// atomically. The same Update is used by local callers and by remote
// update_config control commands, so both are validated identically.
package config
