package node

import (
	"testing"
	"time"

	"github.com/dcfnet/dcf/src/codec"
	"github.com/dcfnet/dcf/src/common"
	"github.com/dcfnet/dcf/src/config"
	dnet "github.com/dcfnet/dcf/src/net"
	"github.com/dcfnet/dcf/src/peers"
)

func newAutoNode(t *testing.T, hub *dnet.InmemHub, addr string, masters ...string) *testNode {
	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.NodeID = addr
	conf.Mode = config.AutoMode
	conf.ReceiveTimeout = 2 * time.Second
	conf.Masters = masters
	n := newTestNodeFromConfig(t, hub, addr, conf, nil)
	startNode(t, n)
	return n
}

// sendRaw delivers payload to target as is, bypassing the codec.
func sendRaw(t *testing.T, hub *dnet.InmemHub, payload []byte, target string) {
	logger := common.NewTestEntry(t, common.TestLogLevel)
	network := dnet.NewNetwork(dnet.InmemTransportFactory(hub, "raw"), 0, logger)
	if err := network.Start(config.ClientMode); err != nil {
		t.Fatalf("err: %v", err)
	}
	defer network.Stop()

	if _, err := network.Send(payload, target); err != nil {
		t.Fatalf("err: %v", err)
	}
}

func TestAssignRole(t *testing.T) {
	hub := dnet.NewInmemHub()

	master := newTestNode(t, hub, "master", config.MasterMode)
	startNode(t, master)
	worker := newAutoNode(t, hub, "worker")

	ch := receiveAsync(worker)

	if _, err := master.AssignRole("worker", config.ServerMode); err != nil {
		t.Fatalf("err: %v", err)
	}

	msg := waitReceived(t, ch)
	if msg.Sender != "master" {
		t.Fatalf("message should still be returned, got %+v", msg)
	}

	if worker.Mode() != config.ServerMode {
		t.Fatalf("mode should be server, not %v", worker.Mode())
	}
	if worker.GetState().String() != "Running" {
		t.Fatalf("worker should keep running")
	}
	if worker.GetStats()["control_applied"] != "1" {
		t.Fatalf("control command should be counted: %v", worker.GetStats())
	}
}

func TestPushConfig(t *testing.T) {
	hub := dnet.NewInmemHub()

	master := newTestNode(t, hub, "master", config.MasterMode)
	startNode(t, master)
	worker := newAutoNode(t, hub, "worker")

	ch := receiveAsync(worker)
	if _, err := master.PushConfig("worker", config.UpdateRTTThreshold, 80); err != nil {
		t.Fatalf("err: %v", err)
	}
	waitReceived(t, ch)

	if th := worker.Store().Current().RTTThreshold; th != 80 {
		t.Fatalf("rtt_threshold should be 80, not %d", th)
	}

	// an invalid key is ignored and the message still delivered
	ch = receiveAsync(worker)
	if _, err := master.PushConfig("worker", "secret", "x"); err != nil {
		t.Fatalf("err: %v", err)
	}
	if msg := waitReceived(t, ch); msg == nil {
		t.Fatalf("message should be returned")
	}
	if worker.GetStats()["control_ignored"] != "1" {
		t.Fatalf("ignored command should be counted: %v", worker.GetStats())
	}

	// mode through update_config goes through SetMode
	ch = receiveAsync(worker)
	if _, err := master.PushConfig("worker", config.UpdateMode, "p2p"); err != nil {
		t.Fatalf("err: %v", err)
	}
	waitReceived(t, ch)
	if worker.Mode() != config.P2PMode {
		t.Fatalf("mode should be p2p, not %v", worker.Mode())
	}
}

func TestTopLevelCommand(t *testing.T) {
	hub := dnet.NewInmemHub()
	worker := newAutoNode(t, hub, "worker")

	ch := receiveAsync(worker)
	sendRaw(t, hub, []byte(`{"command":"set_role","role":"client"}`), "worker")
	waitReceived(t, ch)

	if worker.Mode() != config.ClientMode {
		t.Fatalf("mode should be client, not %v", worker.Mode())
	}
}

func TestMalformedCommandsIgnored(t *testing.T) {
	hub := dnet.NewInmemHub()
	worker := newAutoNode(t, hub, "worker")
	sender := newTestNode(t, hub, "sender", config.ServerMode)
	startNode(t, sender)

	payloads := [][]byte{
		[]byte(`{"command":"set_role","role":"wizard"}`),
		[]byte(`{"command":"self_destruct"}`),
		[]byte(`{"command":"update_config","key":"port","value":-4}`),
		[]byte(`{"command":`),
	}

	for _, p := range payloads {
		ch := receiveAsync(worker)
		if _, err := sender.SendMessage(p, "worker"); err != nil {
			t.Fatalf("err: %v", err)
		}
		msg := waitReceived(t, ch)
		if string(msg.Data) != string(p) {
			t.Fatalf("message should be returned intact, got %q", msg.Data)
		}
	}

	if worker.Mode() != config.AutoMode {
		t.Fatalf("mode should not change, got %v", worker.Mode())
	}
	if worker.Store().Current().Port != 0 {
		t.Fatalf("port should not change")
	}
}

func TestCommandsIgnoredOutsideAuto(t *testing.T) {
	hub := dnet.NewInmemHub()

	worker := newTestNode(t, hub, "worker", config.ServerMode)
	startNode(t, worker)
	master := newTestNode(t, hub, "master", config.MasterMode)
	startNode(t, master)

	ch := receiveAsync(worker)
	if _, err := master.AssignRole("worker", config.ClientMode); err != nil {
		t.Fatalf("err: %v", err)
	}
	waitReceived(t, ch)

	if worker.Mode() != config.ServerMode {
		t.Fatalf("server node should ignore commands, got %v", worker.Mode())
	}
}

func TestMastersAllowlist(t *testing.T) {
	hub := dnet.NewInmemHub()

	worker := newAutoNode(t, hub, "worker", "boss")
	intruder := newTestNode(t, hub, "intruder", config.MasterMode)
	startNode(t, intruder)
	boss := newTestNode(t, hub, "boss", config.MasterMode)
	startNode(t, boss)

	ch := receiveAsync(worker)
	if _, err := intruder.AssignRole("worker", config.ClientMode); err != nil {
		t.Fatalf("err: %v", err)
	}
	waitReceived(t, ch)
	if worker.Mode() != config.AutoMode {
		t.Fatalf("command from unlisted sender should be ignored")
	}

	ch = receiveAsync(worker)
	sendRaw(t, hub, []byte(`{"command":"set_role","role":"client"}`), "worker")
	waitReceived(t, ch)
	if worker.Mode() != config.AutoMode {
		t.Fatalf("top-level command should be ignored with an allowlist")
	}

	ch = receiveAsync(worker)
	if _, err := boss.AssignRole("worker", config.P2PMode); err != nil {
		t.Fatalf("err: %v", err)
	}
	waitReceived(t, ch)
	if worker.Mode() != config.P2PMode {
		t.Fatalf("command from master should be applied, got %v", worker.Mode())
	}
}

func TestEmbeddedCommandMsgpack(t *testing.T) {
	hub := dnet.NewInmemHub()

	build := func(addr string, mode config.Mode) *testNode {
		conf := config.NewTestConfig(t, common.TestLogLevel)
		conf.NodeID = addr
		conf.Mode = mode
		conf.Codec = codec.Msgpack
		conf.ReceiveTimeout = 2 * time.Second
		n := newTestNodeFromConfig(t, hub, addr, conf, nil)
		startNode(t, n)
		return n
	}

	worker := build("worker", config.AutoMode)
	master := build("master", config.MasterMode)

	ch := receiveAsync(worker)
	if _, err := master.AssignRole("worker", config.ServerMode); err != nil {
		t.Fatalf("err: %v", err)
	}
	waitReceived(t, ch)

	if worker.Mode() != config.ServerMode {
		t.Fatalf("mode should be server, not %v", worker.Mode())
	}
}

func TestSetRoleChangesDestination(t *testing.T) {
	hub := dnet.NewInmemHub()

	master := newTestNode(t, hub, "master", config.MasterMode)
	relay := newTestNode(t, hub, "relay", config.ServerMode)
	x := newTestNode(t, hub, "x", config.ServerMode)
	startNode(t, master)
	startNode(t, relay)
	startNode(t, x)

	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.NodeID = "worker"
	conf.Mode = config.AutoMode
	conf.ReceiveTimeout = 2 * time.Second
	conf.Peers = []*peers.Peer{{NetAddr: "relay", RTT: 10 * time.Millisecond}}
	worker := newTestNodeFromConfig(t, hub, "worker", conf, nil)
	startNode(t, worker)

	chR := receiveAsync(relay)
	if _, err := worker.SendMessage([]byte("routed"), "x"); err != nil {
		t.Fatalf("err: %v", err)
	}
	if msg := waitReceived(t, chR); msg.Recipient != "x" {
		t.Fatalf("relay should carry the auto-mode message, got %+v", msg)
	}

	ch := receiveAsync(worker)
	if _, err := master.AssignRole("worker", config.ServerMode); err != nil {
		t.Fatalf("err: %v", err)
	}
	waitReceived(t, ch)

	if worker.Mode() != config.ServerMode {
		t.Fatalf("worker should be in server mode, not %v", worker.Mode())
	}

	chR = receiveAsync(relay)
	chX := receiveAsync(x)

	if _, err := worker.SendMessage([]byte("direct"), "x"); err != nil {
		t.Fatalf("err: %v", err)
	}
	if msg := waitReceived(t, chX); string(msg.Data) != "direct" {
		t.Fatalf("x should receive the message directly, got %+v", msg)
	}
	expectNothing(t, chR, "relay")
}
