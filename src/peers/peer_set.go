package peers

// PeerSet is an ordered set of Peers, indexed by address. Order is the order
// of first insertion and is used to break ties between routes of equal cost.
type PeerSet struct {
	Peers  []*Peer          `json:"peers"`
	ByAddr map[string]*Peer `json:"-"`
}

// NewPeerSet creates a new PeerSet from a list of Peers. Later duplicates of an
// address are dropped.
func NewPeerSet(peers []*Peer) *PeerSet {
	peerSet := &PeerSet{
		Peers:  make([]*Peer, 0, len(peers)),
		ByAddr: make(map[string]*Peer),
	}

	for _, peer := range peers {
		if _, ok := peerSet.ByAddr[peer.NetAddr]; ok {
			continue
		}
		peerSet.ByAddr[peer.NetAddr] = peer
		peerSet.Peers = append(peerSet.Peers, peer)
	}

	return peerSet
}

// WithNewPeer returns a new PeerSet with a list of peers including the new one.
func (peerSet *PeerSet) WithNewPeer(peer *Peer) *PeerSet {
	peers := append([]*Peer{}, peerSet.Peers...)
	return NewPeerSet(append(peers, peer))
}

// WithRemovedPeer returns a new PeerSet with a list of peers excluding the
// provided address.
func (peerSet *PeerSet) WithRemovedPeer(addr string) *PeerSet {
	peers := []*Peer{}
	for _, p := range peerSet.Peers {
		if p.NetAddr != addr {
			peers = append(peers, p)
		}
	}
	return NewPeerSet(peers)
}

// Addrs returns the PeerSet's slice of addresses.
func (peerSet *PeerSet) Addrs() []string {
	res := make([]string, 0, len(peerSet.Peers))
	for _, peer := range peerSet.Peers {
		res = append(res, peer.NetAddr)
	}
	return res
}

// Len returns the number of Peers in the PeerSet
func (peerSet *PeerSet) Len() int {
	return len(peerSet.Peers)
}

// Merge returns a new PeerSet with the peers of both sets, the receiver's
// first.
func (peerSet *PeerSet) Merge(other *PeerSet) *PeerSet {
	if other == nil {
		return peerSet
	}
	peers := append([]*Peer{}, peerSet.Peers...)
	return NewPeerSet(append(peers, other.Peers...))
}
