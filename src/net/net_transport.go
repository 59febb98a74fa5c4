package net

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

const (
	rpcMessage uint8 = iota
	rpcPing
)

// ErrTransportShutdown is returned when operations on a transport are invoked
// after it was closed.
var ErrTransportShutdown = errors.New("transport shutdown")

// StreamLayer provides the low level stream abstraction under a
// NetworkTransport.
type StreamLayer interface {
	net.Listener

	// Dial creates a new outgoing connection.
	Dial(address string, timeout time.Duration) (net.Conn, error)

	// AdvertiseAddr returns the address other nodes reach this stream at.
	AdvertiseAddr() string
}

/*
NetworkTransport carries DCF RPCs over a StreamLayer.

A request frame is one byte with the rpc type followed by the msgpack encoded
request. The reply is an error string followed by the response, both msgpack
encoded. Pings are answered by the transport itself. Message requests are
handed to the Consumer channel and answered by whoever reads it, which is how
the node produces its reply messages.
*/
type NetworkTransport struct {
	stream    StreamLayer
	pool      *connPool
	consumeCh chan RPC
	timeout   time.Duration

	closeOnce sync.Once
	closed    chan struct{}

	logger *logrus.Entry
}

// NewNetworkTransport creates a transport on stream. maxPool bounds the idle
// connections kept per target, and timeout is applied to every exchange.
func NewNetworkTransport(stream StreamLayer, maxPool int, timeout time.Duration, logger *logrus.Entry) *NetworkTransport {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	return &NetworkTransport{
		stream:    stream,
		pool:      newConnPool(maxPool),
		consumeCh: make(chan RPC),
		timeout:   timeout,
		closed:    make(chan struct{}),
		logger:    logger,
	}
}

// Close stops accepting connections and drops the pooled ones.
func (n *NetworkTransport) Close() error {
	var err error
	n.closeOnce.Do(func() {
		close(n.closed)
		err = n.stream.Close()
		n.pool.drain()
	})
	return err
}

func (n *NetworkTransport) isClosed() bool {
	select {
	case <-n.closed:
		return true
	default:
		return false
	}
}

// Consumer implements the Transport interface.
func (n *NetworkTransport) Consumer() <-chan RPC {
	return n.consumeCh
}

// LocalAddr implements the Transport interface.
func (n *NetworkTransport) LocalAddr() string {
	if addr := n.stream.Addr(); addr != nil {
		return addr.String()
	}
	return ""
}

// AdvertiseAddr implements the Transport interface.
func (n *NetworkTransport) AdvertiseAddr() string {
	return n.stream.AdvertiseAddr()
}

// Message implements the Transport interface.
func (n *NetworkTransport) Message(target string, args *MessageRequest, resp *MessageResponse) error {
	return n.roundTrip(target, rpcMessage, args, resp)
}

// Ping implements the Transport interface.
func (n *NetworkTransport) Ping(target string, args *PingRequest, resp *PingResponse) error {
	return n.roundTrip(target, rpcPing, args, resp)
}

func (n *NetworkTransport) roundTrip(target string, rpcType uint8, args, resp interface{}) error {
	if n.isClosed() {
		return ErrTransportShutdown
	}

	conn := n.pool.take(target)
	if conn == nil {
		c, err := n.stream.Dial(target, n.timeout)
		if err != nil {
			return err
		}
		conn = newStreamConn(target, c)
	}

	reusable, err := conn.call(rpcType, args, resp, n.timeout)
	if reusable {
		n.pool.put(conn)
	}
	return err
}

// Listen accepts inbound connections until the transport is closed.
func (n *NetworkTransport) Listen() {
	for {
		conn, err := n.stream.Accept()
		if err != nil {
			if n.isClosed() {
				return
			}
			n.logger.WithError(err).Error("Failed to accept connection")
			continue
		}

		n.logger.WithField("from", conn.RemoteAddr()).Debug("Accepted connection")

		go n.serveConn(conn)
	}
}

// serveConn answers the requests of one inbound connection until it is closed.
func (n *NetworkTransport) serveConn(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReaderSize(conn, bufSize)
	w := bufio.NewWriterSize(conn, bufSize)
	dec := codec.NewDecoder(r, wireHandle)
	enc := codec.NewEncoder(w, wireHandle)

	for {
		rpcType, err := r.ReadByte()
		if err == nil {
			err = n.dispatch(rpcType, dec, enc)
		}
		if err == nil {
			err = w.Flush()
		}

		switch {
		case err == nil:
			continue
		case err == io.EOF:
		case err == ErrTransportShutdown:
			n.logger.Debug("Dropping connection")
		default:
			n.logger.WithError(err).Error("Failed to serve request")
		}
		return
	}
}

// dispatch decodes one request and writes its reply.
func (n *NetworkTransport) dispatch(rpcType uint8, dec *codec.Decoder, enc *codec.Encoder) error {
	switch rpcType {
	case rpcPing:
		var req PingRequest
		if err := dec.Decode(&req); err != nil {
			return err
		}
		return writeReply(enc, RPCResponse{Response: &PingResponse{Addr: n.AdvertiseAddr()}})

	case rpcMessage:
		var req MessageRequest
		if err := dec.Decode(&req); err != nil {
			return err
		}

		respCh := make(chan RPCResponse, 1)

		select {
		case n.consumeCh <- RPC{Command: &req, RespChan: respCh}:
		case <-n.closed:
			return ErrTransportShutdown
		}

		select {
		case resp := <-respCh:
			return writeReply(enc, resp)
		case <-n.closed:
			return ErrTransportShutdown
		}

	default:
		return fmt.Errorf("unknown rpc type %d", rpcType)
	}
}

func writeReply(enc *codec.Encoder, resp RPCResponse) error {
	var remoteErr string
	if resp.Error != nil {
		remoteErr = resp.Error.Error()
	}
	if err := enc.Encode(remoteErr); err != nil {
		return err
	}
	return enc.Encode(resp.Response)
}
