package codec

import (
	"bytes"
	"math/rand"
	"testing"
	"time"

	"github.com/spf13/cast"
)

func testCodecs(t *testing.T) []Codec {
	res := []Codec{}
	for _, name := range []string{JSON, Msgpack} {
		c, err := New(name)
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		res = append(res, c)
	}
	return res
}

func TestNewUnknown(t *testing.T) {
	if _, err := New("xml"); err == nil {
		t.Fatalf("New(xml) should fail")
	}
	c, err := New("")
	if err != nil || c.Name() != JSON {
		t.Fatalf("empty name should select json, got %v, %v", c, err)
	}
}

func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))

	payloads := [][]byte{
		[]byte("hello"),
		[]byte(`{"command":"set_role","role":"server"}`),
		{0x00, 0xff, 0x10, '"', '\\'},
		nil,
	}
	for i := 0; i < 10; i++ {
		p := make([]byte, r.Intn(512))
		r.Read(p)
		payloads = append(payloads, p)
	}

	for _, c := range testCodecs(t) {
		for _, data := range payloads {
			raw, err := c.Serialize(data, "node-a", "node-b")
			if err != nil {
				t.Fatalf("%s: err: %v", c.Name(), err)
			}

			msg, err := c.Deserialize(raw)
			if err != nil {
				t.Fatalf("%s: err: %v", c.Name(), err)
			}

			if !bytes.Equal(msg.Data, data) {
				t.Fatalf("%s: data should be %v, not %v", c.Name(), data, msg.Data)
			}
			if msg.Sender != "node-a" || msg.Recipient != "node-b" {
				t.Fatalf("%s: wrong addressing %s -> %s", c.Name(), msg.Sender, msg.Recipient)
			}
			if msg.Sequence == "" {
				t.Fatalf("%s: sequence should be set", c.Name())
			}
			if time.Since(msg.Time()) > time.Minute {
				t.Fatalf("%s: unexpected timestamp %v", c.Name(), msg.Time())
			}
		}
	}
}

func TestDeserializeErrors(t *testing.T) {
	for _, c := range testCodecs(t) {
		if _, err := c.Deserialize(nil); err == nil {
			t.Fatalf("%s: empty payload should fail", c.Name())
		}
	}

	if _, err := NewJSONCodec().Deserialize([]byte("not json at all")); err == nil {
		t.Fatalf("garbage should fail")
	}
}

func TestDeserializeCommand(t *testing.T) {
	// a bare command is still a (degenerate) message
	msg, err := NewJSONCodec().Deserialize([]byte(`{"command":"set_role","role":"server"}`))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if msg.Sender != "" || msg.Data != nil {
		t.Fatalf("expected an empty message, got %+v", msg)
	}
}

func TestParseControl(t *testing.T) {
	c := NewJSONCodec()

	cmd, ok := ParseControl(c, []byte(`{"command":"set_role","role":"server"}`))
	if !ok {
		t.Fatalf("set_role should parse")
	}
	if cmd.Command != SetRoleCommand || cmd.Role != "server" {
		t.Fatalf("unexpected command %+v", cmd)
	}

	cmd, ok = ParseControl(c, []byte(`{"command":"update_config","key":"rtt_threshold","value":"30"}`))
	if !ok {
		t.Fatalf("update_config should parse")
	}
	if cmd.Key != "rtt_threshold" || cast.ToString(cmd.Value) != "30" {
		t.Fatalf("unexpected command %+v", cmd)
	}

	cmd, ok = ParseControl(c, []byte(`{"command":"reboot"}`))
	if !ok || cmd.Command != "reboot" {
		t.Fatalf("unknown commands are still commands, got %+v", cmd)
	}

	msg, _ := c.Serialize([]byte("x"), "a", "b")
	for _, raw := range [][]byte{
		nil,
		[]byte("garbage"),
		[]byte(`{"role":"server"}`),
		[]byte(`{"command":""}`),
		msg,
	} {
		if cmd, ok := ParseControl(c, raw); ok {
			t.Fatalf("%q should not parse as a command, got %+v", raw, cmd)
		}
	}
}

func TestEmbeddedControl(t *testing.T) {
	for _, c := range testCodecs(t) {
		inner, err := c.Marshal(NewUpdateConfig("port", 8080))
		if err != nil {
			t.Fatalf("err: %v", err)
		}

		raw, err := c.Serialize(inner, "master", "node")
		if err != nil {
			t.Fatalf("err: %v", err)
		}

		msg, err := c.Deserialize(raw)
		if err != nil {
			t.Fatalf("err: %v", err)
		}

		cmd, ok := ParseControl(c, msg.Data)
		if !ok {
			t.Fatalf("%s: embedded command should parse", c.Name())
		}
		if cmd.Command != UpdateConfigCommand || cmd.Key != "port" || cast.ToInt(cmd.Value) != 8080 {
			t.Fatalf("%s: unexpected command %+v", c.Name(), cmd)
		}
	}
}

func TestReply(t *testing.T) {
	req := &Message{Sender: "a", Recipient: "b", Sequence: "seq-1"}
	rep := req.Reply("b", []byte("ok"))

	if rep.Sender != "b" || rep.Recipient != "a" || !rep.Sync || rep.Sequence != "seq-1" {
		t.Fatalf("unexpected reply %+v", rep)
	}
}
