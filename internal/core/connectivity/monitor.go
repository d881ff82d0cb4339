package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldops/fieldsync/internal/core/logging"
)

// Prober checks reachability of the remote store. A nil error means
// online. Implementations must honor the context deadline.
type Prober func(ctx context.Context) error

// Monitor implements Signal by probing the remote store on an interval.
// Listeners are invoked only on state transitions, never on repeats.
type Monitor struct {
	probe    Prober
	interval time.Duration
	timeout  time.Duration
	log      zerolog.Logger

	mu        sync.Mutex
	online    bool
	known     bool
	listeners map[int]Listener
	nextID    int
}

var _ Signal = (*Monitor)(nil)

// NewMonitor creates a monitor that probes with the given function.
func NewMonitor(probe Prober, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Monitor{
		probe:     probe,
		interval:  interval,
		timeout:   5 * time.Second,
		log:       logging.Component("connectivity"),
		listeners: make(map[int]Listener),
	}
}

// Fetch probes immediately and returns the observed state. The result
// also feeds the transition tracking, so a Fetch that observes a flip
// notifies listeners.
func (m *Monitor) Fetch(ctx context.Context) (State, error) {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.probe(probeCtx)
	state := State{Connected: err == nil, Type: "probe"}
	m.apply(state)
	return state, nil
}

// AddListener registers a transition listener.
func (m *Monitor) AddListener(fn Listener) func() {
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

// Start probes on the configured interval until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Establish an initial state right away rather than waiting a
	// full interval.
	_, _ = m.Fetch(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = m.Fetch(ctx)
		}
	}
}

func (m *Monitor) apply(state State) {
	m.mu.Lock()
	changed := !m.known || m.online != state.Connected
	m.online = state.Connected
	m.known = true

	var fns []Listener
	if changed {
		fns = make([]Listener, 0, len(m.listeners))
		for _, fn := range m.listeners {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()

	if !changed {
		return
	}

	m.log.Info().Bool("online", state.Connected).Msg("connectivity changed")
	for _, fn := range fns {
		fn(state)
	}
}
