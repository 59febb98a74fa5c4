package net

// Transport provides an interface for network transports
// to allow a node to communicate with other nodes.
type Transport interface {

	// Starts the transport listening
	Listen()

	// Consumer returns a channel that can be used to
	// consume and respond to RPC requests. Ping requests are never delivered
	// on this channel.
	Consumer() <-chan RPC

	// LocalAddr is used to return our local address
	LocalAddr() string

	// AdvertiseAddr is used to return our advertise address where other peers
	// can reach us
	AdvertiseAddr() string

	// Message sends a payload to the target node and waits for its reply.
	Message(target string, args *MessageRequest, resp *MessageResponse) error

	// Ping sends a PingRequest to the target node.
	Ping(target string, args *PingRequest, resp *PingResponse) error

	// Close permanently closes a transport, stopping
	// any associated goroutines and freeing other resources.
	Close() error
}
