package net

// MessageRequest carries one serialized message to a remote node.
type MessageRequest struct {
	FromAddr string
	Payload  []byte
}

// MessageResponse carries the remote node's reply to a MessageRequest.
type MessageResponse struct {
	Payload []byte
}

// PingRequest is answered by the transport itself, without involving the
// consumer. It is used to measure round-trip times.
type PingRequest struct {
	FromAddr string
}

// PingResponse answers a PingRequest.
type PingResponse struct {
	Addr string
}

// RPCResponse captures both a response and a potential error.
type RPCResponse struct {
	Response interface{}
	Error    error
}

// RPC encapsulates an RPC request and provides a response mechanism.
type RPC struct {
	Command  interface{}
	RespChan chan<- RPCResponse
}

// Respond is used to respond with a response, error or both. The response
// channel is buffered so Respond never blocks.
func (r *RPC) Respond(resp interface{}, err error) {
	r.RespChan <- RPCResponse{resp, err}
}
