package codec

import (
	"time"

	"github.com/google/uuid"
)

// Message is the unit exchanged between nodes.
type Message struct {
	Sender    string `codec:"sender" json:"sender"`
	Recipient string `codec:"recipient" json:"recipient"`
	Data      []byte `codec:"data" json:"data"`
	// Timestamp is the creation time in Unix nanoseconds.
	Timestamp int64 `codec:"timestamp" json:"timestamp"`
	// Sync marks replies to a synchronous request.
	Sync bool `codec:"sync" json:"sync"`
	// Sequence correlates a reply with its request.
	Sequence string `codec:"sequence" json:"sequence"`
}

// NewMessage returns a Message from sender to recipient with a fresh
// Sequence.
func NewMessage(data []byte, sender, recipient string) *Message {
	return &Message{
		Sender:    sender,
		Recipient: recipient,
		Data:      data,
		Timestamp: time.Now().UnixNano(),
		Sequence:  uuid.NewString(),
	}
}

// Time returns Timestamp as a time.Time.
func (m *Message) Time() time.Time {
	return time.Unix(0, m.Timestamp)
}

// Reply returns a Message answering m, sent by sender.
func (m *Message) Reply(sender string, data []byte) *Message {
	return &Message{
		Sender:    sender,
		Recipient: m.Sender,
		Data:      data,
		Timestamp: time.Now().UnixNano(),
		Sync:      true,
		Sequence:  m.Sequence,
	}
}
