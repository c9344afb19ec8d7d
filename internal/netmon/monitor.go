// Package netmon abstracts connectivity detection. The sync core never
// touches platform online/offline globals; it is told about transitions
// through a Monitor.
package netmon

import "sync"

// Monitor reports connectivity state and transition notifications.
type Monitor interface {
	// Online returns the last known connectivity state.
	Online() bool

	// Subscribe registers a callback invoked on every transition. The
	// returned function unsubscribes it.
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// ManualMonitor is a Monitor driven by its owner, typically the host
// runtime bridging native connectivity events, or a test.
type ManualMonitor struct {
	mu     sync.Mutex
	online bool
	subs   map[int]func(bool)
	nextID int
}

// NewManualMonitor creates a ManualMonitor with the given initial state.
func NewManualMonitor(initial bool) *ManualMonitor {
	return &ManualMonitor{
		online: initial,
		subs:   make(map[int]func(bool)),
	}
}

// Online returns the last known connectivity state.
func (m *ManualMonitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers a transition callback.
func (m *ManualMonitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// SetOnline records a new connectivity state. Subscribers are notified
// only on actual transitions.
func (m *ManualMonitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online

	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	// Callbacks run outside the lock so a subscriber may re-enter the
	// monitor.
	for _, fn := range subs {
		fn(online)
	}
}
