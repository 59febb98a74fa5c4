package net

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NewInmemAddr returns a new in-memory addr with
// a randomly generate UUID as the ID.
func NewInmemAddr() string {
	return uuid.NewString()
}

// InmemHub lets in-memory transports find each other by address, including
// transports created after the caller, which is what a Network does every time
// it switches between listening and non-listening modes.
type InmemHub struct {
	sync.RWMutex
	transports map[string]*InmemTransport
}

// NewInmemHub ...
func NewInmemHub() *InmemHub {
	return &InmemHub{transports: make(map[string]*InmemTransport)}
}

// NewTransport creates a transport registered in the hub under addr, replacing
// any previous one.
func (h *InmemHub) NewTransport(addr string) *InmemTransport {
	_, trans := NewInmemTransport(addr)
	trans.hub = h
	h.Lock()
	h.transports[trans.localAddr] = trans
	h.Unlock()
	return trans
}

func (h *InmemHub) lookup(addr string) (*InmemTransport, bool) {
	h.RLock()
	defer h.RUnlock()
	t, ok := h.transports[addr]
	return t, ok
}

func (h *InmemHub) remove(t *InmemTransport) {
	h.Lock()
	defer h.Unlock()
	if h.transports[t.localAddr] == t {
		delete(h.transports, t.localAddr)
	}
}

// InmemTransport Implements the Transport interface, to allow DCF nodes to be
// tested in-memory without going over a network.
type InmemTransport struct {
	sync.RWMutex
	consumerCh chan RPC
	localAddr  string
	peers      map[string]*InmemTransport
	hub        *InmemHub
	timeout    time.Duration
	shutdownCh chan struct{}
	closeOnce  sync.Once
}

// NewInmemTransport is used to initialize a new transport
// and generates a random local address if none is specified
func NewInmemTransport(addr string) (string, *InmemTransport) {
	if addr == "" {
		addr = NewInmemAddr()
	}
	trans := &InmemTransport{
		consumerCh: make(chan RPC, 16),
		localAddr:  addr,
		peers:      make(map[string]*InmemTransport),
		timeout:    500 * time.Millisecond,
		shutdownCh: make(chan struct{}),
	}
	return addr, trans
}

// SetTimeout changes how long requests wait for a reply.
func (i *InmemTransport) SetTimeout(timeout time.Duration) {
	i.Lock()
	defer i.Unlock()
	i.timeout = timeout
}

// Consumer implements the Transport interface.
func (i *InmemTransport) Consumer() <-chan RPC {
	return i.consumerCh
}

// LocalAddr implements the Transport interface.
func (i *InmemTransport) LocalAddr() string {
	return i.localAddr
}

// AdvertiseAddr implements the Transport interface.
func (i *InmemTransport) AdvertiseAddr() string {
	return i.localAddr
}

// Message implements the Transport interface.
func (i *InmemTransport) Message(target string, args *MessageRequest, resp *MessageResponse) error {
	rpcResp, err := i.makeRPC(target, args)
	if err != nil {
		return err
	}

	out, ok := rpcResp.Response.(*MessageResponse)
	if !ok {
		return fmt.Errorf("unexpected response %T", rpcResp.Response)
	}
	*resp = *out
	return nil
}

// Ping implements the Transport interface. The target answers directly.
func (i *InmemTransport) Ping(target string, args *PingRequest, resp *PingResponse) error {
	peer, err := i.peer(target)
	if err != nil {
		return err
	}
	if peer.closed() {
		return ErrTransportShutdown
	}
	resp.Addr = peer.localAddr
	return nil
}

func (i *InmemTransport) peer(target string) (*InmemTransport, error) {
	i.RLock()
	peer, ok := i.peers[target]
	hub := i.hub
	i.RUnlock()

	if !ok && hub != nil {
		peer, ok = hub.lookup(target)
	}

	if !ok {
		return nil, fmt.Errorf("failed to connect to peer: %v", target)
	}
	return peer, nil
}

func (i *InmemTransport) makeRPC(target string, args interface{}) (rpcResp RPCResponse, err error) {
	if i.closed() {
		err = ErrTransportShutdown
		return
	}

	peer, err := i.peer(target)
	if err != nil {
		return
	}

	i.RLock()
	timeout := i.timeout
	i.RUnlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// Send the RPC over
	respCh := make(chan RPCResponse, 1)
	select {
	case peer.consumerCh <- RPC{Command: args, RespChan: respCh}:
	case <-peer.shutdownCh:
		err = ErrTransportShutdown
		return
	case <-timer.C:
		err = fmt.Errorf("command timed out")
		return
	}

	// Wait for a response
	select {
	case rpcResp = <-respCh:
		if rpcResp.Error != nil {
			err = rpcResp.Error
		}
	case <-timer.C:
		err = fmt.Errorf("command timed out")
	}
	return
}

// Connect is used to connect this transport to another transport for
// a given peer name. This allows for local routing.
func (i *InmemTransport) Connect(peer string, t Transport) {
	trans := t.(*InmemTransport)
	i.Lock()
	defer i.Unlock()
	i.peers[peer] = trans
}

// Disconnect is used to remove the ability to route to a given peer.
func (i *InmemTransport) Disconnect(peer string) {
	i.Lock()
	defer i.Unlock()
	delete(i.peers, peer)
}

// DisconnectAll is used to remove all routes to peers.
func (i *InmemTransport) DisconnectAll() {
	i.Lock()
	defer i.Unlock()
	i.peers = make(map[string]*InmemTransport)
}

func (i *InmemTransport) closed() bool {
	select {
	case <-i.shutdownCh:
		return true
	default:
		return false
	}
}

// Close is used to permanently disable the transport
func (i *InmemTransport) Close() error {
	i.closeOnce.Do(func() {
		close(i.shutdownCh)
		if i.hub != nil {
			i.hub.remove(i)
		}
		i.DisconnectAll()
	})
	return nil
}

// Listen is an empty function as there is no need to defer
// initialisation of the InMem service
func (i *InmemTransport) Listen() {
}
