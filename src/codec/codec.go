package codec

import (
	"fmt"
	"reflect"
	"time"

	"github.com/ugorji/go/codec"
)

// Names of the available codecs.
const (
	JSON    = "json"
	Msgpack = "msgpack"
)

// Codec turns application data into wire bytes and back.
type Codec interface {
	// Name returns the codec name, as used in configuration.
	Name() string

	// Serialize wraps data in a new Message from sender to recipient and
	// encodes it.
	Serialize(data []byte, sender, recipient string) ([]byte, error)

	// Deserialize decodes a Message.
	Deserialize(raw []byte) (*Message, error)

	// Marshal and Unmarshal encode arbitrary values in the codec's format.
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(raw []byte, v interface{}) error
}

// New returns the codec registered under name.
func New(name string) (Codec, error) {
	switch name {
	case JSON, "":
		return NewJSONCodec(), nil
	case Msgpack:
		return NewMsgpackCodec(), nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// handleCodec implements Codec on top of a ugorji Handle. Handles are safe for
// concurrent use once configured.
type handleCodec struct {
	name   string
	handle codec.Handle
	now    func() time.Time
}

// NewJSONCodec returns a Codec producing canonical JSON.
func NewJSONCodec() Codec {
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	jh.MapType = reflect.TypeOf(map[string]interface{}(nil))
	return &handleCodec{name: JSON, handle: jh, now: time.Now}
}

// NewMsgpackCodec returns a Codec producing msgpack.
func NewMsgpackCodec() Codec {
	mh := new(codec.MsgpackHandle)
	mh.Canonical = true
	mh.RawToString = true
	mh.WriteExt = true
	mh.MapType = reflect.TypeOf(map[string]interface{}(nil))
	return &handleCodec{name: Msgpack, handle: mh, now: time.Now}
}

func (c *handleCodec) Name() string {
	return c.name
}

func (c *handleCodec) Serialize(data []byte, sender, recipient string) ([]byte, error) {
	msg := NewMessage(data, sender, recipient)
	msg.Timestamp = c.now().UnixNano()
	return c.Marshal(msg)
}

func (c *handleCodec) Deserialize(raw []byte) (*Message, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	msg := new(Message)
	if err := c.Unmarshal(raw, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (c *handleCodec) Marshal(v interface{}) ([]byte, error) {
	var b []byte
	enc := codec.NewEncoderBytes(&b, c.handle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *handleCodec) Unmarshal(raw []byte, v interface{}) error {
	dec := codec.NewDecoderBytes(raw, c.handle)
	return dec.Decode(v)
}
