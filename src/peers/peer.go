package peers

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// UnknownRTT marks a peer that has never been measured.
const UnknownRTT time.Duration = -1

// Peer is a destination a node can reach directly.
type Peer struct {
	NetAddr string
	Moniker string
	// RTT is the configured or last known round-trip time. UnknownRTT when no
	// estimate exists.
	RTT time.Duration
}

// NewPeer creates a Peer with an unknown RTT.
func NewPeer(netAddr, moniker string) *Peer {
	return &Peer{
		NetAddr: netAddr,
		Moniker: moniker,
		RTT:     UnknownRTT,
	}
}

// HasRTT reports whether the peer carries an RTT estimate.
func (p *Peer) HasRTT() bool {
	return p.RTT >= 0
}

// String ...
func (p *Peer) String() string {
	if p.Moniker != "" {
		return fmt.Sprintf("%s(%s)", p.Moniker, p.NetAddr)
	}
	return p.NetAddr
}

// ParsePeer builds a Peer from a loosely typed config entry, as produced by
// viper or a JSON decoder.
func ParsePeer(entry interface{}) (*Peer, error) {
	if s, ok := entry.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, fmt.Errorf("empty peer address")
		}
		return NewPeer(s, ""), nil
	}

	m, err := cast.ToStringMapE(entry)
	if err != nil {
		return nil, fmt.Errorf("unsupported peer entry %v: %v", entry, err)
	}

	addr := ""
	for _, k := range []string{"addr", "address", "host", "netaddr"} {
		if v, ok := m[k]; ok {
			addr = strings.TrimSpace(cast.ToString(v))
			break
		}
	}
	if addr == "" {
		return nil, fmt.Errorf("peer entry %v has no address", entry)
	}

	peer := NewPeer(addr, cast.ToString(m["moniker"]))

	for _, k := range []string{"rtt", "cost"} {
		v, ok := m[k]
		if !ok {
			continue
		}
		ms, err := cast.ToInt64E(v)
		if err != nil || ms < 0 {
			return nil, fmt.Errorf("peer %s: invalid %s %v", addr, k, v)
		}
		peer.RTT = time.Duration(ms) * time.Millisecond
		break
	}

	return peer, nil
}

// ParsePeers parses a sequence of config entries. A nil input yields an empty
// slice.
func ParsePeers(entries interface{}) ([]*Peer, error) {
	if entries == nil {
		return []*Peer{}, nil
	}

	list, err := cast.ToSliceE(entries)
	if err != nil {
		return nil, fmt.Errorf("peers must be a list: %v", err)
	}

	res := make([]*Peer, 0, len(list))
	for _, e := range list {
		p, err := ParsePeer(e)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}

// MarshalJSON encodes the peer the way it is written in configuration files,
// with the RTT in milliseconds.
func (p *Peer) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.toEntry())
}

// toEntry is the inverse of ParsePeer, used when writing peers.json.
func (p *Peer) toEntry() map[string]interface{} {
	e := map[string]interface{}{"addr": p.NetAddr}
	if p.Moniker != "" {
		e["moniker"] = p.Moniker
	}
	if p.HasRTT() {
		e["rtt"] = p.RTT.Milliseconds()
	}
	return e
}
