package net

import (
	"reflect"
	"testing"
	"time"

	"github.com/dcfnet/dcf/src/common"
)

const (
	INMEM = iota
	TCP
	numTestTransports // NOTE: must be last
)

func NewTestTransport(ttype int, addr string, t *testing.T) Transport {
	switch ttype {
	case INMEM:
		_, it := NewInmemTransport(addr)
		return it
	case TCP:
		tt, err := NewTCPTransport(addr, "", 2, time.Second, common.NewTestEntry(t, common.TestLogLevel))
		if err != nil {
			t.Fatal(err)
		}
		go tt.Listen()
		return tt
	default:
		panic("Unknown transport type")
	}
}

func connectInmem(ttype int, trans1, trans2 Transport) {
	if ttype != INMEM {
		return
	}
	itrans1 := trans1.(*InmemTransport)
	itrans2 := trans2.(*InmemTransport)
	itrans1.Connect(itrans2.LocalAddr(), itrans2)
	itrans2.Connect(itrans1.LocalAddr(), itrans1)
}

func TestTransport_StartStop(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans := NewTestTransport(ttype, "127.0.0.1:0", t)
		if err := trans.Close(); err != nil {
			t.Fatalf("err: %v", err)
		}
		// closing twice is harmless
		if err := trans.Close(); err != nil {
			t.Fatalf("err: %v", err)
		}
	}
}

func TestTransport_Message(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, "127.0.0.1:0", t)
		defer trans1.Close()
		rpcCh := trans1.Consumer()

		args := MessageRequest{
			FromAddr: "node-2",
			Payload:  []byte("hello"),
		}
		resp := MessageResponse{
			Payload: []byte("world"),
		}

		errCh := make(chan string, 1)
		go func() {
			select {
			case rpc := <-rpcCh:
				req := rpc.Command.(*MessageRequest)
				if !reflect.DeepEqual(req, &args) {
					errCh <- "command mismatch"
				}
				rpc.Respond(&resp, nil)
			case <-time.After(time.Second):
				errCh <- "timeout"
			}
			close(errCh)
		}()

		trans2 := NewTestTransport(ttype, "127.0.0.1:0", t)
		defer trans2.Close()
		connectInmem(ttype, trans1, trans2)

		// Send twice to exercise pooled connections
		for i := 0; i < 2; i++ {
			if i == 1 {
				go func() {
					rpc := <-rpcCh
					rpc.Respond(&resp, nil)
				}()
			}
			var out MessageResponse
			if err := trans2.Message(trans1.LocalAddr(), &args, &out); err != nil {
				t.Fatalf("err: %v", err)
			}
			if !reflect.DeepEqual(resp, out) {
				t.Fatalf("response mismatch: %#v %#v", resp, out)
			}
		}

		if msg, ok := <-errCh; ok {
			t.Fatalf("%s", msg)
		}
	}
}

func TestTransport_MessageError(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, "127.0.0.1:0", t)
		defer trans1.Close()

		go func() {
			rpc := <-trans1.Consumer()
			rpc.Respond(nil, errTest)
		}()

		trans2 := NewTestTransport(ttype, "127.0.0.1:0", t)
		defer trans2.Close()
		connectInmem(ttype, trans1, trans2)

		var out MessageResponse
		err := trans2.Message(trans1.LocalAddr(), &MessageRequest{Payload: []byte("x")}, &out)
		if err == nil || err.Error() != errTest.Error() {
			t.Fatalf("expected %v, got %v", errTest, err)
		}
	}
}

func TestTransport_Ping(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, "127.0.0.1:0", t)
		defer trans1.Close()

		trans2 := NewTestTransport(ttype, "127.0.0.1:0", t)
		defer trans2.Close()
		connectInmem(ttype, trans1, trans2)

		var out PingResponse
		if err := trans2.Ping(trans1.LocalAddr(), &PingRequest{FromAddr: trans2.LocalAddr()}, &out); err != nil {
			t.Fatalf("err: %v", err)
		}
		if out.Addr != trans1.AdvertiseAddr() {
			t.Fatalf("ping answered by %s, expected %s", out.Addr, trans1.AdvertiseAddr())
		}

		// nothing should have reached the consumer
		select {
		case rpc := <-trans1.Consumer():
			t.Fatalf("ping should not be dispatched: %#v", rpc.Command)
		default:
		}
	}
}

func TestTransport_Unreachable(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans := NewTestTransport(ttype, "127.0.0.1:0", t)
		defer trans.Close()

		var out MessageResponse
		if err := trans.Message("127.0.0.1:1", &MessageRequest{}, &out); err == nil {
			t.Fatalf("sending to an unreachable address should fail")
		}
	}
}
