package redundancy

import (
	"sync"
	"time"
)

// RouteStore persists RTT samples across restarts of the routing layer.
type RouteStore interface {
	Load() (map[string][]time.Duration, error)
	Save(map[string][]time.Duration) error
	Close() error
}

// InmemRouteStore keeps samples in memory. It survives Stop/Start cycles but
// not the process.
type InmemRouteStore struct {
	sync.Mutex
	samples map[string][]time.Duration
}

// NewInmemRouteStore ...
func NewInmemRouteStore() *InmemRouteStore {
	return &InmemRouteStore{
		samples: make(map[string][]time.Duration),
	}
}

// Load implements RouteStore.
func (s *InmemRouteStore) Load() (map[string][]time.Duration, error) {
	s.Lock()
	defer s.Unlock()
	return copySamples(s.samples), nil
}

// Save implements RouteStore.
func (s *InmemRouteStore) Save(samples map[string][]time.Duration) error {
	s.Lock()
	defer s.Unlock()
	for addr, window := range copySamples(samples) {
		s.samples[addr] = window
	}
	return nil
}

// Close implements RouteStore.
func (s *InmemRouteStore) Close() error {
	return nil
}

func copySamples(in map[string][]time.Duration) map[string][]time.Duration {
	out := make(map[string][]time.Duration, len(in))
	for addr, window := range in {
		out[addr] = append([]time.Duration(nil), window...)
	}
	return out
}
