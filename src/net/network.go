package net

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/dcfnet/dcf/src/config"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotListening is returned by Receive in modes that do not serve inbound
	// messages.
	ErrNotListening = errors.New("network is not listening in this mode")

	// ErrReceiveTimeout is returned by Receive when no message arrived within
	// the receive timeout.
	ErrReceiveTimeout = errors.New("receive timed out")
)

// TransportFactory creates the transport a Network uses in a given mode. It is
// called on Start, and again whenever a mode change switches between listening
// and non-listening modes.
type TransportFactory func(mode config.Mode) (Transport, error)

// TCPTransportFactory returns a factory binding TCP transports to the host and
// port currently configured in store. Non-listening modes bind an ephemeral
// port, since they only dial out.
func TCPTransportFactory(store *config.Store, logger *logrus.Entry) TransportFactory {
	return func(mode config.Mode) (Transport, error) {
		conf := store.Current()
		bindAddr := conf.BindAddr()
		if !mode.Listens() {
			bindAddr = net.JoinHostPort(conf.Host, strconv.Itoa(0))
		}
		return NewTCPTransport(bindAddr, "", conf.MaxPool, conf.Timeout, logger)
	}
}

// InmemTransportFactory returns a factory registering in-memory transports
// under addr in hub.
func InmemTransportFactory(hub *InmemHub, addr string) TransportFactory {
	return func(mode config.Mode) (Transport, error) {
		return hub.NewTransport(addr), nil
	}
}

// Responder builds the reply to an inbound payload.
type Responder func(request []byte) []byte

// Network is the built-in network layer of a node. It owns one Transport at a
// time and exposes the byte-level operations the node runtime needs:
// send-and-response, receive, and ping.
type Network struct {
	sync.RWMutex

	factory        TransportFactory
	trans          Transport
	listening      bool
	running        bool
	mode           config.Mode
	reset          chan struct{}
	responder      Responder
	receiveTimeout time.Duration

	logger *logrus.Entry
}

// NewNetwork creates a stopped Network. A zero receiveTimeout makes Receive
// block until a message arrives.
func NewNetwork(factory TransportFactory, receiveTimeout time.Duration, logger *logrus.Entry) *Network {
	return &Network{
		factory:        factory,
		receiveTimeout: receiveTimeout,
		reset:          make(chan struct{}),
		logger:         logger,
	}
}

// SetResponder sets the function answering inbound messages. Without one,
// requests are echoed back.
func (n *Network) SetResponder(r Responder) {
	n.Lock()
	defer n.Unlock()
	n.responder = r
}

// Start prepares the network for mode. It may be called on a running network to
// switch modes: the current transport is kept when the new mode listens the
// same way, and replaced otherwise. On error the network keeps its previous
// transport and mode.
func (n *Network) Start(mode config.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid mode %d", mode)
	}

	n.Lock()
	defer n.Unlock()

	if n.trans != nil && n.listening == mode.Listens() {
		n.mode = mode
		n.running = true
		return nil
	}

	// the current transport stays in place if the new one cannot be built
	trans, err := n.factory(mode)
	if err != nil {
		return err
	}

	n.closeTransport()

	if mode.Listens() {
		go trans.Listen()
	}

	n.trans = trans
	n.listening = mode.Listens()
	n.mode = mode
	n.running = true

	n.logger.WithFields(logrus.Fields{
		"mode":      mode,
		"addr":      trans.LocalAddr(),
		"listening": n.listening,
	}).Debug("Network started")

	return nil
}

// Stop closes the transport. Stopping a stopped network is a no-op.
func (n *Network) Stop() error {
	n.Lock()
	defer n.Unlock()

	if !n.running {
		return nil
	}
	n.running = false

	err := n.closeTransport()
	n.logger.Debug("Network stopped")
	return err
}

// closeTransport must be called with the lock held. It wakes up blocked
// receivers.
func (n *Network) closeTransport() error {
	if n.trans == nil {
		return nil
	}
	close(n.reset)
	n.reset = make(chan struct{})
	err := n.trans.Close()
	n.trans = nil
	return err
}

// LocalAddr returns the address of the current transport, or an empty string
// when stopped.
func (n *Network) LocalAddr() string {
	n.RLock()
	defer n.RUnlock()
	if n.trans == nil {
		return ""
	}
	return n.trans.AdvertiseAddr()
}

// Mode returns the mode of the last Start.
func (n *Network) Mode() config.Mode {
	n.RLock()
	defer n.RUnlock()
	return n.mode
}

func (n *Network) current() (Transport, bool) {
	n.RLock()
	defer n.RUnlock()
	return n.trans, n.running && n.trans != nil
}

// Send delivers payload to target and returns the reply.
func (n *Network) Send(payload []byte, target string) ([]byte, error) {
	trans, ok := n.current()
	if !ok {
		return nil, ErrTransportShutdown
	}

	req := MessageRequest{
		FromAddr: trans.AdvertiseAddr(),
		Payload:  payload,
	}
	var resp MessageResponse
	if err := trans.Message(target, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// Ping measures the round-trip time to target.
func (n *Network) Ping(target string) (time.Duration, error) {
	trans, ok := n.current()
	if !ok {
		return 0, ErrTransportShutdown
	}

	start := time.Now()
	var resp PingResponse
	if err := trans.Ping(target, &PingRequest{FromAddr: trans.AdvertiseAddr()}, &resp); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Receive blocks until an inbound message arrives, answers it through the
// responder, and returns its payload. A mode switch that replaces the
// transport does not interrupt Receive; stopping the network does.
func (n *Network) Receive() ([]byte, error) {
	var timeout <-chan time.Time
	if n.receiveTimeout > 0 {
		timer := time.NewTimer(n.receiveTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		n.RLock()
		trans, reset, running, listening, responder := n.trans, n.reset, n.running, n.listening, n.responder
		n.RUnlock()

		if !running || trans == nil {
			return nil, ErrTransportShutdown
		}
		if !listening {
			return nil, ErrNotListening
		}

		select {
		case rpc := <-trans.Consumer():
			req, ok := rpc.Command.(*MessageRequest)
			if !ok {
				rpc.Respond(nil, fmt.Errorf("unexpected command %T", rpc.Command))
				continue
			}

			reply := req.Payload
			if responder != nil {
				reply = responder(req.Payload)
			}
			rpc.Respond(&MessageResponse{Payload: reply}, nil)

			n.logger.WithFields(logrus.Fields{
				"from":  req.FromAddr,
				"bytes": len(req.Payload),
			}).Debug("Received message")

			return req.Payload, nil
		case <-reset:
			continue
		case <-timeout:
			return nil, ErrReceiveTimeout
		}
	}
}
