package plugin

import (
	"sync"
	"testing"
	"time"

	"github.com/dcfnet/dcf/src/common"
	"github.com/dcfnet/dcf/src/config"
	"github.com/sirupsen/logrus"
)

type loopbackTransport struct {
	sync.Mutex
	arg       string
	host      string
	port      int
	closed    bool
	responder func([]byte) []byte
	inbox     *inbox
}

func (l *loopbackTransport) Setup(host string, port int) error {
	l.host, l.port = host, port
	return nil
}

func (l *loopbackTransport) Send(data []byte, target string) error {
	l.Lock()
	r := l.responder
	l.Unlock()
	if r != nil {
		return l.inbox.push(l.inbox.replies, r(data))
	}
	return l.inbox.push(l.inbox.requests, data)
}

func (l *loopbackTransport) Receive() ([]byte, error) {
	return l.inbox.receiveRequest()
}

func (l *loopbackTransport) ReceiveReply() ([]byte, error) {
	return l.inbox.receiveReply()
}

func (l *loopbackTransport) Close() error {
	l.Lock()
	defer l.Unlock()
	l.closed = true
	l.inbox.close()
	return nil
}

func (l *loopbackTransport) SetResponder(r func([]byte) []byte) {
	l.Lock()
	defer l.Unlock()
	l.responder = r
}

var loaded []*loopbackTransport

func init() {
	Register("loopback", func(arg string, conf *config.Config, logger *logrus.Entry) (Transport, error) {
		t := &loopbackTransport{arg: arg, inbox: newInbox(conf.ReceiveTimeout, conf.Timeout)}
		loaded = append(loaded, t)
		return t, nil
	})
}

func TestManagerNoPlugin(t *testing.T) {
	store := config.NewStore(config.NewTestConfig(t, common.TestLogLevel))
	m := NewManager(store, store.Logger())

	tr, err := m.Transport()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if tr != nil {
		t.Fatalf("expected no transport, got %T", tr)
	}
}

func TestManagerLoadAndReload(t *testing.T) {
	loaded = nil

	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.PluginPath = "loopback://first"
	conf.Port = 9000
	store := config.NewStore(conf)

	m := NewManager(store, store.Logger())
	defer m.Close()

	tr, err := m.Transport()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	first, ok := tr.(*loopbackTransport)
	if !ok {
		t.Fatalf("expected loopback transport, got %T", tr)
	}
	if first.arg != "first" || first.port != 9000 {
		t.Fatalf("unexpected setup: arg=%s port=%d", first.arg, first.port)
	}

	again, err := m.Transport()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if again != tr {
		t.Fatalf("transport should be reused while plugin_path is unchanged")
	}

	if err := store.Update(config.UpdatePluginPath, "loopback://second"); err != nil {
		t.Fatalf("err: %v", err)
	}

	tr, err = m.Transport()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	second := tr.(*loopbackTransport)
	if second.arg != "second" {
		t.Fatalf("expected reloaded transport, got arg %s", second.arg)
	}
	if !first.closed {
		t.Fatalf("previous transport should be closed")
	}
	if m.Path() != "loopback://second" {
		t.Fatalf("unexpected path %s", m.Path())
	}

	if err := store.Update(config.UpdatePluginPath, ""); err != nil {
		t.Fatalf("err: %v", err)
	}
	tr, err = m.Transport()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if tr != nil || !second.closed {
		t.Fatalf("clearing plugin_path should release the transport")
	}
}

func TestManagerResponder(t *testing.T) {
	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.PluginPath = "loopback"
	store := config.NewStore(conf)

	m := NewManager(store, store.Logger())
	defer m.Close()

	m.SetResponder(func(req []byte) []byte {
		return append([]byte("re:"), req...)
	})

	tr, err := m.Transport()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if err := tr.Send([]byte("hi"), "anyone"); err != nil {
		t.Fatalf("err: %v", err)
	}
	resp, err := tr.(Replier).ReceiveReply()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if string(resp) != "re:hi" {
		t.Fatalf("unexpected reply %q", resp)
	}
}

func TestManagerLoadErrors(t *testing.T) {
	paths := []string{
		"nosuchplugin://x",
		"/nonexistent/transport.so",
		"wamp://",
	}

	for _, p := range paths {
		conf := config.NewTestConfig(t, common.TestLogLevel)
		conf.PluginPath = p
		store := config.NewStore(conf)
		m := NewManager(store, store.Logger())

		_, err := m.Transport()
		if !common.IsDCFErr(err, common.PluginLoad) {
			t.Fatalf("%s: expected PluginLoad error, got %v", p, err)
		}
		if m.Path() != "" {
			t.Fatalf("%s: failed load should not be recorded", p)
		}
	}
}

func TestRegistered(t *testing.T) {
	names := Registered()
	want := map[string]bool{"websocket": false, "wamp": false}
	for _, n := range names {
		if _, ok := want[n]; ok {
			want[n] = true
		}
	}
	for n, found := range want {
		if !found {
			t.Fatalf("%s should be registered, got %v", n, names)
		}
	}
}

func TestInboxSeparatesReplies(t *testing.T) {
	b := newInbox(50*time.Millisecond, 50*time.Millisecond)
	defer b.close()

	if err := b.push(b.replies, []byte("reply")); err != nil {
		t.Fatalf("err: %v", err)
	}

	if _, err := b.receiveRequest(); err != ErrTimeout {
		t.Fatalf("a pending reply should not be received as a request, got %v", err)
	}

	if err := b.push(b.requests, []byte("request")); err != nil {
		t.Fatalf("err: %v", err)
	}

	reply, err := b.receiveReply()
	if err != nil || string(reply) != "reply" {
		t.Fatalf("expected reply, got %q, %v", reply, err)
	}
	req, err := b.receiveRequest()
	if err != nil || string(req) != "request" {
		t.Fatalf("expected request, got %q, %v", req, err)
	}

	b.close()
	if _, err := b.receiveReply(); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
