package connectivity

import (
	"context"
	"sync"
)

// Manual is a Signal whose state is set by the caller. Used by tests
// and by the CLI's --offline flag.
type Manual struct {
	mu        sync.Mutex
	online    bool
	listeners map[int]Listener
	nextID    int
}

var _ Signal = (*Manual)(nil)

// NewManual creates a manual signal with the given initial state.
func NewManual(online bool) *Manual {
	return &Manual{
		online:    online,
		listeners: make(map[int]Listener),
	}
}

// Fetch returns the current manual state.
func (m *Manual) Fetch(_ context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{Connected: m.online, Type: "manual"}, nil
}

// AddListener registers a transition listener.
func (m *Manual) AddListener(fn Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// SetOnline updates the state, notifying listeners on transitions.
func (m *Manual) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	fns := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	state := State{Connected: online, Type: "manual"}
	for _, fn := range fns {
		fn(state)
	}
}
