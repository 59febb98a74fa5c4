// Package peers defines the peer descriptors a DCF node is configured with and
// implements functions to manage collections of them.
//
// A peer is identified by its network address. It may carry a moniker, which
// is a non-unique user-friendly name, and an initial round-trip-time estimate.
// The redundancy layer treats every peer as a candidate destination: either as
// the recipient itself, or as a relay towards another recipient.
//
// Peer entries come from the node configuration, or from a peers.json file. In
// both places an entry is either a plain "host:port" string, or a record:
//
//	{"addr": "10.0.0.2:50051", "moniker": "b", "rtt": 20}
//
// where rtt is expressed in milliseconds. "address" and "host" are accepted as
// aliases of "addr", and "cost" as an alias of "rtt".
package peers
