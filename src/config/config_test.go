package config

import (
	"io/ioutil"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/dcfnet/dcf/src/common"
	"github.com/dcfnet/dcf/src/peers"
)

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	if err := ioutil.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("err: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeFile(t, "dcf.json", `{}`)

	conf, err := Load(path)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if conf.Mode != AutoMode {
		t.Fatalf("mode should be auto, not %v", conf.Mode)
	}
	if conf.NodeID == "" {
		t.Fatalf("node_id should be generated")
	}
	if len(conf.Peers) != 0 || conf.Peers == nil {
		t.Fatalf("peers should be an empty list, not %v", conf.Peers)
	}
	if conf.Host != DefaultHost {
		t.Fatalf("host should be %s, not %s", DefaultHost, conf.Host)
	}
	if conf.Port != 50051 {
		t.Fatalf("port should be 50051, not %d", conf.Port)
	}
	if conf.RTTThreshold != 50 {
		t.Fatalf("rtt_threshold should be 50, not %d", conf.RTTThreshold)
	}
	if conf.PluginPath != "" {
		t.Fatalf("plugin_path should be empty, not %s", conf.PluginPath)
	}

	other, err := Load(path)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if other.NodeID == conf.NodeID {
		t.Fatalf("generated node ids should differ between loads")
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "dcf.yaml", `
mode: P2P
node_id: node-1
host: 0.0.0.0
port: 6000
rtt_threshold: 40
timeout: 250ms
codec: msgpack
peers:
  - 10.0.0.1:50051
  - addr: 10.0.0.2:50051
    rtt: 20
plugins:
  transport: websocket
masters:
  - master-1
`)

	conf, err := Load(path)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if conf.Mode != P2PMode {
		t.Fatalf("mode should be p2p, not %v", conf.Mode)
	}
	if conf.NodeID != "node-1" {
		t.Fatalf("node_id should be node-1, not %s", conf.NodeID)
	}
	if conf.BindAddr() != "0.0.0.0:6000" {
		t.Fatalf("bind addr should be 0.0.0.0:6000, not %s", conf.BindAddr())
	}
	if conf.Threshold() != 40*time.Millisecond {
		t.Fatalf("threshold should be 40ms, not %v", conf.Threshold())
	}
	if conf.Timeout != 250*time.Millisecond {
		t.Fatalf("timeout should be 250ms, not %v", conf.Timeout)
	}
	if conf.Codec != "msgpack" {
		t.Fatalf("codec should be msgpack, not %s", conf.Codec)
	}
	if conf.PluginPath != "websocket" {
		t.Fatalf("plugin_path should be websocket, not %s", conf.PluginPath)
	}

	expected := []*peers.Peer{
		{NetAddr: "10.0.0.1:50051", RTT: peers.UnknownRTT},
		{NetAddr: "10.0.0.2:50051", RTT: 20 * time.Millisecond},
	}
	if !reflect.DeepEqual(conf.Peers, expected) {
		t.Fatalf("peers should be %v, not %v", expected, conf.Peers)
	}

	if !conf.IsMaster("master-1") || conf.IsMaster("intruder") {
		t.Fatalf("masters allowlist not applied")
	}
}

func TestLoadPeersFile(t *testing.T) {
	dir := t.TempDir()
	if err := peers.NewJSONPeerSet(dir).Write([]*peers.Peer{
		peers.NewPeer("10.0.0.1:50051", ""),
		peers.NewPeer("10.0.0.9:50051", "nine"),
	}); err != nil {
		t.Fatalf("err: %v", err)
	}

	path := writeFile(t, "dcf.json", `{
		"peers": ["10.0.0.1:50051"],
		"peers_file": "`+filepath.Join(dir, peers.DefaultPeersFile)+`"
	}`)

	conf, err := Load(path)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	addrs := conf.PeerSet().Addrs()
	if !reflect.DeepEqual(addrs, []string{"10.0.0.1:50051", "10.0.0.9:50051"}) {
		t.Fatalf("unexpected peers %v", addrs)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"malformed":     `{"mode": `,
		"bad mode":      `{"mode": "relay"}`,
		"negative port": `{"port": -1}`,
		"bad threshold": `{"rtt_threshold": "fast"}`,
		"bad peers":     `{"peers": [{"rtt": 3}]}`,
		"bad codec":     `{"codec": "xml"}`,
	}

	for name, content := range cases {
		path := writeFile(t, "dcf.json", content)
		_, err := Load(path)
		if !common.IsDCFErr(err, common.ConfigLoad) {
			t.Errorf("%s: expected ConfigLoad error, got %v", name, err)
		}
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if !common.IsDCFErr(err, common.ConfigLoad) {
		t.Fatalf("missing file: expected ConfigLoad error, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range Modes {
		parsed, err := ParseMode(m.String())
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		if parsed != m {
			t.Fatalf("ParseMode(%s) => %v", m, parsed)
		}
	}

	if m, err := ParseMode(" SERVER "); err != nil || m != ServerMode {
		t.Fatalf("ParseMode should ignore case and spaces, got %v, %v", m, err)
	}

	if _, err := ParseMode("relay"); err == nil {
		t.Fatalf("ParseMode(relay) should fail")
	}

	if Mode(42).Valid() {
		t.Fatalf("Mode(42) should not be valid")
	}
}

func TestModePolicies(t *testing.T) {
	for _, c := range []struct {
		mode    Mode
		listens bool
		routed  bool
	}{
		{ClientMode, false, false},
		{ServerMode, true, false},
		{P2PMode, true, true},
		{AutoMode, true, true},
		{MasterMode, true, false},
	} {
		if c.mode.Listens() != c.listens {
			t.Errorf("%v.Listens() should be %v", c.mode, c.listens)
		}
		if c.mode.Routed() != c.routed {
			t.Errorf("%v.Routed() should be %v", c.mode, c.routed)
		}
	}
}
