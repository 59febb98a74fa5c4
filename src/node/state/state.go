package state

import (
	"sync"
	"sync/atomic"
)

// State captures the lifecycle state of a DCF node: Stopped or Running.
type State uint32

const (
	// Stopped is the initial state. The node holds its configuration but no
	// transport, and refuses to send or receive.
	Stopped State = iota

	// Running is the state in which the network and routing layers are
	// initialised for the current mode.
	Running
)

// WGLIMIT is the maximum number of goroutines that can be launched through
// Manager.GoFunc
const WGLIMIT = 20

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Running:
		return "Running"
	default:
		return "Unknown"
	}
}

// Manager wraps a State with get and set methods. It is also used to limit the
// number of goroutines launched by the node, and to wait for all of them to
// complete.
type Manager struct {
	state   State
	wg      sync.WaitGroup
	wgCount int32
}

// GetState returns the current state.
func (m *Manager) GetState() State {
	return State(atomic.LoadUint32((*uint32)(&m.state)))
}

// SetState sets the state.
func (m *Manager) SetState(s State) {
	atomic.StoreUint32((*uint32)(&m.state), uint32(s))
}

// GoFunc runs f in a goroutine tracked by WaitRoutines, unless WGLIMIT
// goroutines are already running. It reports whether f was started.
func (m *Manager) GoFunc(f func()) bool {
	if atomic.AddInt32(&m.wgCount, 1) > WGLIMIT {
		atomic.AddInt32(&m.wgCount, -1)
		return false
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer atomic.AddInt32(&m.wgCount, -1)
		f()
	}()
	return true
}

// WaitRoutines blocks until every goroutine started by GoFunc returned.
func (m *Manager) WaitRoutines() {
	m.wg.Wait()
}
