// Package redundancy maintains the route table of a node and picks the route
// a message should take.
//
// Every configured peer is a candidate next hop. Its cost is the median of the
// last RTT samples recorded for it, or the cost given in the configuration
// when it was never measured. GetOptimalRoute considers, for a recipient:
//
//  - the hops registered with SetRoute,
//  - the recipient itself when it is a known peer,
//  - every other reachable peer, as a relay.
//
// Measured routes rank before unmeasured ones, cheaper before more expensive,
// and ties keep configuration order. The rtt_threshold is advisory: a route
// above it is returned and a warning logged. When nothing qualifies the call
// fails with a NoRoute error and the caller decides what to do.
//
// RTT samples come from a Prober, from RecordRTT, and from the RouteStore they
// were flushed to at the last Stop.
package redundancy
