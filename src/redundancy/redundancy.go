package redundancy

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dcfnet/dcf/src/common"
	"github.com/dcfnet/dcf/src/config"
	"github.com/dcfnet/dcf/src/peers"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"
)

// Redundancy is the routing layer of a node.
type Redundancy struct {
	store      *config.Store
	prober     Prober
	routeStore RouteStore

	peers  *xsync.MapOf[string, peerState]
	routes *xsync.MapOf[string, []string]
	order  int64

	lifecycleLock sync.Mutex
	active        bool
	stopCh        chan struct{}
	wg            sync.WaitGroup

	logger *logrus.Entry
}

// NewRedundancy creates a routing layer seeded with the configured peers. A nil
// routeStore keeps samples in memory.
func NewRedundancy(store *config.Store, prober Prober, routeStore RouteStore, logger *logrus.Entry) *Redundancy {
	if routeStore == nil {
		routeStore = NewInmemRouteStore()
	}

	r := &Redundancy{
		store:      store,
		prober:     prober,
		routeStore: routeStore,
		peers:      xsync.NewMapOf[string, peerState](),
		routes:     xsync.NewMapOf[string, []string](),
		logger:     logger.WithField("component", "redundancy"),
	}

	for _, p := range store.Initial().PeerSet().Peers {
		r.addPeer(p)
	}

	return r
}

func (r *Redundancy) addPeer(p *peers.Peer) {
	order := int(atomic.AddInt64(&r.order, 1))
	r.peers.LoadOrStore(p.NetAddr, peerState{
		order:      order,
		moniker:    p.Moniker,
		configured: p.RTT,
		reachable:  true,
	})
}

// AddPeer adds a peer to the table. Known peers are left untouched.
func (r *Redundancy) AddPeer(p *peers.Peer) {
	r.addPeer(p)
}

// Start activates the routing layer for mode. Modes without routing, and a
// second Start, are no-ops.
func (r *Redundancy) Start(mode config.Mode) error {
	r.lifecycleLock.Lock()
	defer r.lifecycleLock.Unlock()

	if !mode.Routed() || r.active {
		return nil
	}

	saved, err := r.routeStore.Load()
	if err != nil {
		return err
	}
	for addr, window := range saved {
		r.peers.Compute(addr, func(old peerState, loaded bool) (peerState, bool) {
			if !loaded {
				return old, true
			}
			for _, rtt := range window {
				old = old.withSample(rtt)
			}
			return old, false
		})
	}

	r.active = true
	r.stopCh = make(chan struct{})

	interval := r.store.Current().ProbeInterval
	if interval > 0 && r.prober != nil {
		r.wg.Add(1)
		go r.probeLoop(interval, r.stopCh)
	}

	r.logger.WithFields(logrus.Fields{
		"mode":     mode,
		"peers":    r.peers.Size(),
		"restored": len(saved),
		"interval": interval,
	}).Debug("Routing started")

	return nil
}

// Stop stops background probing and flushes RTT samples to the route store.
func (r *Redundancy) Stop() error {
	r.lifecycleLock.Lock()
	defer r.lifecycleLock.Unlock()

	if !r.active {
		return nil
	}

	close(r.stopCh)
	r.wg.Wait()
	r.active = false

	samples := make(map[string][]time.Duration)
	r.peers.Range(func(addr string, state peerState) bool {
		if len(state.samples) > 0 {
			samples[addr] = state.samples
		}
		return true
	})

	if err := r.routeStore.Save(samples); err != nil {
		r.logger.WithError(err).Error("Failed to save RTT samples")
		return err
	}

	r.logger.Debug("Routing stopped")

	return nil
}

// Active reports whether the routing layer is started in a routed mode.
func (r *Redundancy) Active() bool {
	r.lifecycleLock.Lock()
	defer r.lifecycleLock.Unlock()
	return r.active
}

// Close stops the layer and closes the route store.
func (r *Redundancy) Close() error {
	if err := r.Stop(); err != nil {
		return err
	}
	return r.routeStore.Close()
}

func (r *Redundancy) probeLoop(interval time.Duration, stopCh chan struct{}) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.probeAll(false)
		case <-stopCh:
			return
		}
	}
}

func (r *Redundancy) probeAll(includeFailed bool) {
	for _, route := range r.Routes() {
		state, ok := r.peers.Load(route.Peer)
		if !ok || (state.failed && !includeFailed) {
			continue
		}
		r.HealthCheck(route.Peer)
	}
}

// SetRoute registers explicit next hops for recipient, replacing earlier ones.
// No hops removes the entry.
func (r *Redundancy) SetRoute(recipient string, hops ...string) {
	if len(hops) == 0 {
		r.routes.Delete(recipient)
		return
	}
	r.routes.Store(recipient, append([]string(nil), hops...))
}

// GetOptimalRoute selects the cheapest reachable route to recipient.
func (r *Redundancy) GetOptimalRoute(recipient string) (Route, error) {
	type candidate struct {
		Route
		order int
	}

	var candidates []candidate
	seen := make(map[string]bool)

	add := func(addr string, fallbackOrder int) {
		if seen[addr] {
			return
		}
		seen[addr] = true

		state, ok := r.peers.Load(addr)
		if !ok {
			state = peerState{
				order:      fallbackOrder,
				configured: peers.UnknownRTT,
				reachable:  true,
			}
		}
		route := state.route(addr, recipient)
		if !route.Reachable {
			return
		}
		candidates = append(candidates, candidate{route, state.order})
	}

	maxOrder := int(atomic.LoadInt64(&r.order))

	if hops, ok := r.routes.Load(recipient); ok {
		for i, hop := range hops {
			add(hop, maxOrder+1+i)
		}
	}

	if _, ok := r.peers.Load(recipient); ok {
		add(recipient, 0)
	}

	r.peers.Range(func(addr string, state peerState) bool {
		add(addr, state.order)
		return true
	})

	if len(candidates) == 0 {
		return Route{}, common.NewDCFErr(common.NoRoute, recipient, nil)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Measured != b.Measured {
			return a.Measured
		}
		if a.RTT != b.RTT {
			return a.RTT < b.RTT
		}
		return a.order < b.order
	})

	best := candidates[0].Route

	threshold := r.store.Current().Threshold()
	if best.Measured && best.RTT > threshold {
		r.logger.WithFields(logrus.Fields{
			"recipient": recipient,
			"route":     best.Peer,
			"rtt":       best.RTT,
			"threshold": threshold,
		}).Warn("Optimal route exceeds RTT threshold")
	}

	return best, nil
}

// RecordRTT adds an RTT sample for peer. Unknown peers join the table.
func (r *Redundancy) RecordRTT(peer string, rtt time.Duration) {
	r.addPeer(peers.NewPeer(peer, ""))
	r.peers.Compute(peer, func(old peerState, loaded bool) (peerState, bool) {
		return old.withSample(rtt), false
	})
}

// HealthCheck measures the RTT to peer and records it. A failed probe marks
// the peer unreachable.
func (r *Redundancy) HealthCheck(peer string) (time.Duration, error) {
	if r.prober == nil {
		return 0, common.NewDCFErr(common.Transport, peer, errNoProber)
	}

	rtt, err := r.prober.Ping(peer)
	if err != nil {
		r.setReachable(peer, false)
		r.logger.WithError(err).WithField("peer", peer).Debug("Health check failed")
		return 0, common.NewDCFErr(common.Transport, peer, err)
	}

	r.RecordRTT(peer, rtt)
	return rtt, nil
}

func (r *Redundancy) setReachable(peer string, reachable bool) {
	r.peers.Compute(peer, func(old peerState, loaded bool) (peerState, bool) {
		if !loaded {
			return old, true
		}
		old.reachable = reachable && !old.failed
		return old, false
	})
}

// GroupPeers probes every peer, then splits them into those within the RTT
// threshold and the others. Unreachable and unmeasured peers are remote.
func (r *Redundancy) GroupPeers() Groups {
	r.probeAll(false)

	threshold := r.store.Current().Threshold()
	groups := Groups{Local: []string{}, Remote: []string{}}

	for _, route := range r.Routes() {
		if route.Reachable && route.Measured && route.RTT <= threshold {
			groups.Local = append(groups.Local, route.Peer)
		} else {
			groups.Remote = append(groups.Remote, route.Peer)
		}
	}

	return groups
}

// SimulateFailure marks peer as failed. Probes do not bring it back; Heal does.
func (r *Redundancy) SimulateFailure(peer string) error {
	_, ok := r.peers.Compute(peer, func(old peerState, loaded bool) (peerState, bool) {
		if !loaded {
			return old, true
		}
		old.failed = true
		old.reachable = false
		return old, false
	})
	if !ok {
		return common.NewDCFErr(common.NoRoute, peer, nil)
	}

	r.logger.WithField("peer", peer).Info("Simulated failure")
	return nil
}

// Heal clears a simulated failure and probes peer again. The peer is reachable
// afterwards only if the probe succeeds.
func (r *Redundancy) Heal(peer string) error {
	_, ok := r.peers.Compute(peer, func(old peerState, loaded bool) (peerState, bool) {
		if !loaded {
			return old, true
		}
		old.failed = false
		return old, false
	})
	if !ok {
		return common.NewDCFErr(common.NoRoute, peer, nil)
	}

	if _, err := r.HealthCheck(peer); err != nil {
		return err
	}

	r.logger.WithField("peer", peer).Info("Healed")
	return nil
}

// Routes returns the direct route to every peer, in configuration order.
func (r *Redundancy) Routes() []Route {
	type entry struct {
		route Route
		order int
	}

	var entries []entry
	r.peers.Range(func(addr string, state peerState) bool {
		entries = append(entries, entry{state.route(addr, addr), state.order})
		return true
	})

	sort.Slice(entries, func(i, j int) bool { return entries[i].order < entries[j].order })

	res := make([]Route, len(entries))
	for i, e := range entries {
		res[i] = e.route
	}
	return res
}

// Peers returns the peers of the table with their current RTT estimate.
func (r *Redundancy) Peers() []*peers.Peer {
	routes := r.Routes()
	res := make([]*peers.Peer, 0, len(routes))
	for _, route := range routes {
		if state, ok := r.peers.Load(route.Peer); ok {
			res = append(res, state.peer(route.Peer))
		}
	}
	return res
}
