package plugin

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dcfnet/dcf/src/config"
	"github.com/gammazero/nexus/v3/client"
	"github.com/gammazero/nexus/v3/wamp"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultRealm is the WAMP realm used when the plugin path names none.
	DefaultRealm = "dcf"

	// ErrProcessingMessage is the WAMP error returned when a delivered message
	// could not be handled by the callee.
	ErrProcessingMessage = "io.dcf.processing_message"

	procedurePrefix = "dcf.node."
)

// WAMPTransport relays messages through a WAMP router. Every node registers a
// procedure named after its address, and Send calls the procedure of the
// target. The result of the call is the target's reply.
type WAMPTransport struct {
	routerURL string
	config    client.Config
	client    *client.Client
	procedure string

	responderLock sync.RWMutex
	responder     func([]byte) []byte

	inbox  *inbox
	logger *logrus.Entry
}

// NewWAMPTransport creates a transport connecting to the router at routerURL
// (for example ws://localhost:8000/) in the given realm.
func NewWAMPTransport(routerURL, realm string, timeout, receiveTimeout time.Duration, logger *logrus.Entry) *WAMPTransport {
	entry := logger.WithField("plugin", "wamp")
	return &WAMPTransport{
		routerURL: routerURL,
		config: client.Config{
			Realm:           realm,
			ResponseTimeout: timeout,
			Logger:          entry,
		},
		inbox:  newInbox(receiveTimeout, timeout),
		logger: entry,
	}
}

// newWAMPFromPath parses "host:port/realm".
func newWAMPFromPath(arg string, conf *config.Config, logger *logrus.Entry) (Transport, error) {
	addr, realm := arg, DefaultRealm
	if i := strings.Index(arg, "/"); i >= 0 {
		addr = arg[:i]
		if r := strings.Trim(arg[i+1:], "/"); r != "" {
			realm = r
		}
	}
	if addr == "" {
		return nil, fmt.Errorf("wamp plugin needs a router address")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return nil, fmt.Errorf("wamp router address %q: %v", addr, err)
	}

	return NewWAMPTransport(fmt.Sprintf("ws://%s/", addr), realm, conf.Timeout, conf.ReceiveTimeout, logger), nil
}

// ProcedureName returns the WAMP procedure under which the node listening on
// addr receives messages.
func ProcedureName(addr string) string {
	return procedurePrefix + strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, addr)
}

// Setup implements the Transport interface. It connects to the router and
// registers the procedure for host:port.
func (w *WAMPTransport) Setup(host string, port int) error {
	cli, err := client.ConnectNet(context.Background(), w.routerURL, w.config)
	if err != nil {
		return err
	}

	procedure := ProcedureName(net.JoinHostPort(host, strconv.Itoa(port)))
	if err := cli.Register(procedure, w.callHandler, nil); err != nil {
		cli.Close()
		w.logger.WithError(err).Error("Failed to register procedure")
		return err
	}

	w.client = cli
	w.procedure = procedure

	w.logger.WithField("procedure", procedure).Debug("Registered procedure with router")

	return nil
}

// SetResponder implements the Responder interface.
func (w *WAMPTransport) SetResponder(r func([]byte) []byte) {
	w.responderLock.Lock()
	defer w.responderLock.Unlock()
	w.responder = r
}

// Send implements the Transport interface. A non-empty result is queued for
// Receive as a reply.
func (w *WAMPTransport) Send(data []byte, target string) error {
	if w.client == nil {
		return ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.config.ResponseTimeout)
	defer cancel()

	args := wamp.List{base64.StdEncoding.EncodeToString(data)}

	result, err := w.client.Call(ctx, ProcedureName(target), nil, args, nil, nil)
	if err != nil {
		return err
	}

	if len(result.Arguments) == 0 {
		return nil
	}

	enc, ok := wamp.AsString(result.Arguments[0])
	if !ok || enc == "" {
		return nil
	}

	reply, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return err
	}

	return w.inbox.push(w.inbox.replies, reply)
}

// Receive implements the Transport interface.
func (w *WAMPTransport) Receive() ([]byte, error) {
	return w.inbox.receiveRequest()
}

// ReceiveReply implements the Replier interface.
func (w *WAMPTransport) ReceiveReply() ([]byte, error) {
	return w.inbox.receiveReply()
}

// Close implements the Transport interface.
func (w *WAMPTransport) Close() error {
	w.inbox.close()
	if w.client == nil {
		return nil
	}
	w.client.Unregister(w.procedure)
	return w.client.Close()
}

func (w *WAMPTransport) callHandler(ctx context.Context, inv *wamp.Invocation) client.InvokeResult {
	if len(inv.Arguments) != 1 {
		return errResult(fmt.Sprintf("Invocation should contain 1 argument, not %d", len(inv.Arguments)))
	}

	enc, ok := wamp.AsString(inv.Arguments[0])
	if !ok {
		return errResult("Error reading invocation argument")
	}

	data, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return errResult(fmt.Sprintf("Error decoding payload: %v", err))
	}

	if err := w.inbox.push(w.inbox.requests, data); err != nil {
		return errResult(err.Error())
	}

	w.responderLock.RLock()
	responder := w.responder
	w.responderLock.RUnlock()

	if responder == nil {
		return client.InvokeResult{Args: wamp.List{""}}
	}

	return client.InvokeResult{
		Args: wamp.List{base64.StdEncoding.EncodeToString(responder(data))},
	}
}

func errResult(msg string) client.InvokeResult {
	return client.InvokeResult{
		Err:  ErrProcessingMessage,
		Args: wamp.List{msg},
	}
}
