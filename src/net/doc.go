// Package net implements the built-in network layer of a DCF node.
//
// At the bottom sits the Transport interface, used to send and receive RPC
// requests between nodes. There are two implementations:
//
// - Inmem: in-memory transport used only for testing. Transports find each
// other through explicit Connect calls or through a shared InmemHub.
//
// - TCP: a NetworkTransport over a plain TCP StreamLayer, with a small pool of
// idle connections per target.
//
// Two RPCs exist. A MessageRequest carries a serialized message and is handed
// to the consumer of the receiving transport, which produces the reply. A
// PingRequest is answered by the transport itself and is used to measure
// round-trip times.
//
// On top of the transports, Network implements the byte-level operations the
// node runtime consumes: Start(mode), Stop, Send (send and wait for the reply),
// Receive and Ping. Every mode except client serves inbound messages. In client
// mode the network binds an ephemeral port, only dials out, and Receive fails
// with ErrNotListening.
package net
