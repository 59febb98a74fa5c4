package config

import (
	"fmt"
	"strings"
)

// Mode is the operating role of a node.
type Mode uint32

const (
	// ClientMode only sends. Inbound messages are not served.
	ClientMode Mode = iota
	// ServerMode serves inbound messages and sends directly.
	ServerMode
	// P2PMode serves inbound messages and routes sends through the redundancy
	// layer.
	P2PMode
	// AutoMode behaves like P2PMode and also honours inbound control commands.
	AutoMode
	// MasterMode serves inbound messages and may push control commands to other
	// nodes.
	MasterMode
)

// Modes lists every recognised mode.
var Modes = []Mode{ClientMode, ServerMode, P2PMode, AutoMode, MasterMode}

// String ...
func (m Mode) String() string {
	switch m {
	case ClientMode:
		return "client"
	case ServerMode:
		return "server"
	case P2PMode:
		return "p2p"
	case AutoMode:
		return "auto"
	case MasterMode:
		return "master"
	default:
		return "unknown"
	}
}

// Valid reports whether m is one of the recognised modes.
func (m Mode) Valid() bool {
	return m <= MasterMode
}

// Listens reports whether the built-in network serves inbound messages in this
// mode.
func (m Mode) Listens() bool {
	return m.Valid() && m != ClientMode
}

// Routed reports whether sends resolve their destination through the
// redundancy layer.
func (m Mode) Routed() bool {
	return m == P2PMode || m == AutoMode
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid mode %d", uint32(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	mode, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "client":
		return ClientMode, nil
	case "server":
		return ServerMode, nil
	case "p2p":
		return P2PMode, nil
	case "auto":
		return AutoMode, nil
	case "master":
		return MasterMode, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}
