package plugin

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/dcfnet/dcf/src/config"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const websocketPath = "/dcf"

// WebsocketTransport sends each message as one binary websocket frame.
// Connections opened by Send carry replies back; connections accepted by the
// listener carry requests, each answered in-line when a responder is set.
type WebsocketTransport struct {
	listenAddr string
	timeout    time.Duration

	upgrader websocket.Upgrader
	dialer   *websocket.Dialer

	listener net.Listener
	server   *http.Server

	connsLock sync.Mutex
	conns     map[string]*websocket.Conn

	responderLock sync.RWMutex
	responder     func([]byte) []byte

	inbox  *inbox
	logger *logrus.Entry
}

// NewWebsocketTransport creates a transport listening on listenAddr once set
// up. An empty listenAddr makes Setup listen on host:port+1, leaving host:port
// to the built-in network.
func NewWebsocketTransport(listenAddr string, timeout, receiveTimeout time.Duration, logger *logrus.Entry) *WebsocketTransport {
	return &WebsocketTransport{
		listenAddr: listenAddr,
		timeout:    timeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		dialer: &websocket.Dialer{
			HandshakeTimeout: timeout,
		},
		conns:  make(map[string]*websocket.Conn),
		inbox:  newInbox(receiveTimeout, timeout),
		logger: logger.WithField("plugin", "websocket"),
	}
}

func newWebsocketFromPath(arg string, conf *config.Config, logger *logrus.Entry) (Transport, error) {
	return NewWebsocketTransport(arg, conf.Timeout, conf.ReceiveTimeout, logger), nil
}

// Setup implements the Transport interface.
func (w *WebsocketTransport) Setup(host string, port int) error {
	addr := w.listenAddr
	if addr == "" {
		addr = net.JoinHostPort(host, strconv.Itoa(port+1))
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc(websocketPath, w.serveWS)

	w.listener = ln
	w.server = &http.Server{Handler: mux}

	go func() {
		if err := w.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			w.logger.WithError(err).Error("Websocket server stopped")
		}
	}()

	w.logger.WithField("addr", ln.Addr().String()).Debug("Websocket transport listening")

	return nil
}

// Addr returns the address the transport listens on.
func (w *WebsocketTransport) Addr() string {
	if w.listener == nil {
		return ""
	}
	return w.listener.Addr().String()
}

// SetResponder implements the Responder interface.
func (w *WebsocketTransport) SetResponder(r func([]byte) []byte) {
	w.responderLock.Lock()
	defer w.responderLock.Unlock()
	w.responder = r
}

func (w *WebsocketTransport) serveWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.WithError(err).Debug("Upgrade failed")
		return
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		if err := w.inbox.push(w.inbox.requests, data); err != nil {
			return
		}

		w.responderLock.RLock()
		responder := w.responder
		w.responderLock.RUnlock()

		if responder == nil {
			continue
		}

		if w.timeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(w.timeout))
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, responder(data)); err != nil {
			w.logger.WithError(err).Debug("Failed to write reply")
			return
		}
	}
}

// Send implements the Transport interface.
func (w *WebsocketTransport) Send(data []byte, target string) error {
	w.connsLock.Lock()
	defer w.connsLock.Unlock()

	conn, ok := w.conns[target]
	if !ok {
		u := url.URL{Scheme: "ws", Host: target, Path: websocketPath}
		c, _, err := w.dialer.Dial(u.String(), nil)
		if err != nil {
			return fmt.Errorf("dialing %s: %v", target, err)
		}
		conn = c
		w.conns[target] = conn
		go w.readReplies(target, conn)
	}

	if w.timeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(w.timeout))
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		delete(w.conns, target)
		conn.Close()
		return err
	}
	return nil
}

func (w *WebsocketTransport) readReplies(target string, conn *websocket.Conn) {
	defer func() {
		w.connsLock.Lock()
		if w.conns[target] == conn {
			delete(w.conns, target)
		}
		w.connsLock.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := w.inbox.push(w.inbox.replies, data); err != nil {
			return
		}
	}
}

// Receive implements the Transport interface.
func (w *WebsocketTransport) Receive() ([]byte, error) {
	return w.inbox.receiveRequest()
}

// ReceiveReply implements the Replier interface.
func (w *WebsocketTransport) ReceiveReply() ([]byte, error) {
	return w.inbox.receiveReply()
}

// Close implements the Transport interface.
func (w *WebsocketTransport) Close() error {
	w.inbox.close()

	w.connsLock.Lock()
	for target, conn := range w.conns {
		conn.Close()
		delete(w.conns, target)
	}
	w.connsLock.Unlock()

	if w.server != nil {
		return w.server.Close()
	}
	return nil
}
