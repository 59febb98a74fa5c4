package redundancy

import (
	"fmt"
	"time"

	"github.com/dcfnet/dcf/src/common"
	"github.com/dcfnet/dcf/src/peers"
)

// sampleWindow is the number of RTT samples kept per peer.
const sampleWindow = 5

// Route is a way of reaching Recipient through the next hop Peer.
type Route struct {
	Peer      string        `json:"peer"`
	Recipient string        `json:"recipient"`
	RTT       time.Duration `json:"rtt"`
	Reachable bool          `json:"reachable"`
	Measured  bool          `json:"measured"`
}

// Direct reports whether the route goes straight to the recipient.
func (r Route) Direct() bool {
	return r.Peer == r.Recipient
}

func (r Route) String() string {
	if r.Direct() {
		return fmt.Sprintf("%s (%v)", r.Peer, r.RTT)
	}
	return fmt.Sprintf("%s via %s (%v)", r.Recipient, r.Peer, r.RTT)
}

// peerState is the table entry of one peer. Values are replaced, never
// mutated in place.
type peerState struct {
	order      int
	moniker    string
	configured time.Duration
	samples    []time.Duration
	reachable  bool
	failed     bool
}

func (p peerState) rtt() (time.Duration, bool) {
	if len(p.samples) > 0 {
		return common.MedianDuration(p.samples), true
	}
	if p.configured >= 0 {
		return p.configured, true
	}
	return 0, false
}

func (p peerState) withSample(rtt time.Duration) peerState {
	samples := make([]time.Duration, 0, sampleWindow)
	samples = append(samples, p.samples...)
	samples = append(samples, rtt)
	if len(samples) > sampleWindow {
		samples = samples[len(samples)-sampleWindow:]
	}
	p.samples = samples
	p.reachable = !p.failed
	return p
}

func (p peerState) route(addr, recipient string) Route {
	rtt, measured := p.rtt()
	return Route{
		Peer:      addr,
		Recipient: recipient,
		RTT:       rtt,
		Reachable: p.reachable,
		Measured:  measured,
	}
}

func (p peerState) peer(addr string) *peers.Peer {
	res := peers.NewPeer(addr, p.moniker)
	if rtt, ok := p.rtt(); ok {
		res.RTT = rtt
	}
	return res
}

// Groups splits the peers of a node by the rtt_threshold.
type Groups struct {
	Local  []string `json:"local"`
	Remote []string `json:"remote"`
}
