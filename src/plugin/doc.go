// Package plugin resolves the optional plugin transport of a DCF node.
//
// A plugin transport replaces the built-in network for both directions: when
// one is configured, every send and every receive of the node goes through it.
// The node configuration selects it with plugins.transport (plugin_path once
// loaded), using one of these forms:
//
//	websocket                  gorilla/websocket transport on host:port+1
//	websocket://0.0.0.0:7000   same, on an explicit listen address
//	wamp://relay:8080/realm    WAMP RPC through a relay router (see Relay)
//	/path/to/transport.so      Go plugin exporting PluginVersion and NewTransport
//
// Additional transports can be made available with Register, in the manner of
// database/sql drivers.
//
// A Go plugin must export:
//
//	var PluginVersion = "1.0"
//	func NewTransport() plugin.Transport
//
// The Manager loads the transport lazily, the first time the node asks for it,
// and loads it again when plugin_path is changed through a config update.
package plugin
