package plugin

import (
	"fmt"
	"testing"
	"time"

	"github.com/dcfnet/dcf/src/common"
	"github.com/dcfnet/dcf/src/config"
)

func TestWAMPRelay(t *testing.T) {
	logger := common.NewTestEntry(t, common.TestLogLevel)

	relay, err := NewRelay("127.0.0.1:0", DefaultRealm, "", "", logger)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if err := relay.Listen(); err != nil {
		t.Fatalf("err: %v", err)
	}
	go relay.Run()
	defer relay.Shutdown()

	url := fmt.Sprintf("ws://%s/", relay.Addr())

	callee := NewWAMPTransport(url, DefaultRealm, time.Second, time.Second, logger)
	if err := callee.Setup("127.0.0.1", 7001); err != nil {
		t.Fatalf("err: %v", err)
	}
	defer callee.Close()

	callee.SetResponder(func(req []byte) []byte {
		return append([]byte("ack:"), req...)
	})

	caller := NewWAMPTransport(url, DefaultRealm, time.Second, time.Second, logger)
	if err := caller.Setup("127.0.0.1", 7002); err != nil {
		t.Fatalf("err: %v", err)
	}
	defer caller.Close()

	if err := caller.Send([]byte("hello"), "127.0.0.1:7001"); err != nil {
		t.Fatalf("err: %v", err)
	}

	req, err := callee.Receive()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if string(req) != "hello" {
		t.Fatalf("expected hello, got %q", req)
	}

	resp, err := caller.ReceiveReply()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if string(resp) != "ack:hello" {
		t.Fatalf("expected ack:hello, got %q", resp)
	}

	if err := caller.Send([]byte("lost"), "127.0.0.1:7999"); err == nil {
		t.Fatalf("calling an unregistered node should fail")
	}
}

func TestWAMPFromPath(t *testing.T) {
	conf := config.NewTestConfig(t, common.TestLogLevel)
	logger := common.NewTestEntry(t, common.TestLogLevel)

	cases := []struct {
		arg   string
		url   string
		realm string
	}{
		{"relay:8000", "ws://relay:8000/", DefaultRealm},
		{"relay:8000/office", "ws://relay:8000/", "office"},
		{"10.0.0.1:9000/office/", "ws://10.0.0.1:9000/", "office"},
	}

	for _, c := range cases {
		tr, err := newWAMPFromPath(c.arg, conf, logger)
		if err != nil {
			t.Fatalf("%s: err: %v", c.arg, err)
		}
		w := tr.(*WAMPTransport)
		if w.routerURL != c.url || w.config.Realm != c.realm {
			t.Fatalf("%s: got %s %s", c.arg, w.routerURL, w.config.Realm)
		}
	}

	if _, err := newWAMPFromPath("norport", conf, logger); err == nil {
		t.Fatalf("expected error for address without port")
	}
}

func TestProcedureName(t *testing.T) {
	if p := ProcedureName("127.0.0.1:7001"); p != "dcf.node.127_0_0_1_7001" {
		t.Fatalf("unexpected procedure %s", p)
	}
}
