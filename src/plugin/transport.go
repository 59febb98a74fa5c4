package plugin

import (
	"errors"
	"time"
)

// PluginVersion is the interface version a Go plugin must declare.
const PluginVersion = "1.0"

var (
	// ErrClosed is returned by operations on a closed transport.
	ErrClosed = errors.New("plugin transport closed")

	// ErrTimeout is returned by Receive when nothing arrived in time.
	ErrTimeout = errors.New("plugin transport receive timed out")
)

// Transport moves serialized messages between nodes in place of the built-in
// network.
type Transport interface {
	// Setup prepares the transport for a node configured with host and port.
	Setup(host string, port int) error

	// Send delivers data to target without waiting for a reply.
	Send(data []byte, target string) error

	// Receive returns the next inbound request. Transports implementing Replier
	// never return replies to their own sends here.
	Receive() ([]byte, error)

	// Close releases every resource held by the transport.
	Close() error
}

// Replier is implemented by transports that keep replies to Send apart from
// inbound requests. The node waits for its replies with ReceiveReply, so that a
// concurrent Receive cannot consume them. Transports without it have their
// replies read through Receive.
type Replier interface {
	ReceiveReply() ([]byte, error)
}

// Responder is implemented by transports able to answer inbound requests
// in-line. The node installs a function building its reply message.
type Responder interface {
	SetResponder(func(request []byte) []byte)
}

// inbox queues inbound payloads, keeping replies to our own sends apart from
// requests sent by others.
type inbox struct {
	requests       chan []byte
	replies        chan []byte
	closed         chan struct{}
	requestTimeout time.Duration
	replyTimeout   time.Duration
}

// newInbox creates an inbox. A zero timeout blocks until data arrives.
func newInbox(requestTimeout, replyTimeout time.Duration) *inbox {
	return &inbox{
		requests:       make(chan []byte, 64),
		replies:        make(chan []byte, 64),
		closed:         make(chan struct{}),
		requestTimeout: requestTimeout,
		replyTimeout:   replyTimeout,
	}
}

func (b *inbox) push(ch chan []byte, data []byte) error {
	select {
	case ch <- data:
		return nil
	case <-b.closed:
		return ErrClosed
	}
}

func (b *inbox) receiveRequest() ([]byte, error) {
	return b.wait(b.requests, b.requestTimeout)
}

func (b *inbox) receiveReply() ([]byte, error) {
	return b.wait(b.replies, b.replyTimeout)
}

func (b *inbox) wait(ch chan []byte, timeout time.Duration) ([]byte, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case r := <-ch:
		return r, nil
	case <-b.closed:
		return nil, ErrClosed
	case <-expired:
		return nil, ErrTimeout
	}
}

func (b *inbox) close() {
	select {
	case <-b.closed:
	default:
		close(b.closed)
	}
}
