package session

import "sync"

// State of a session's lifecycle. Rows store no state column; the state
// machine lives in the manager's registry and is recovered as Active for
// rows that predate the process. A row with a final transcript is terminal
// no matter what the registry holds.
type State string

const (
	StateActive     State = "active"
	StateFinalizing State = "finalizing"
	StatePersisted  State = "persisted"
	StatePurged     State = "purged"
	StateFailed     State = "failed"
)

// entry carries the per-session append lock and lifecycle state. Appends for
// one session serialize on entry.mu; different sessions hold different
// entries and never contend.
type entry struct {
	mu    sync.Mutex
	state State
}

// registry keys locks by session id so mutual exclusion has real cross-call
// identity.
type registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]*entry)}
}

// get returns the entry for a session, creating it as Active on first sight.
func (r *registry) get(id string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		e = &entry{state: StateActive}
		r.entries[id] = e
	}
	return e
}

// lookup reports the state of a tracked session without creating an entry.
// Untracked ids are Active: either the row predates the process, or the
// entry was released after persist and the row carries the terminal state.
func (r *registry) lookup(id string) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[id]; ok {
		return e.currentState()
	}
	return StateActive
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// beginFinalize transitions Active or Failed to Finalizing. Failed sessions
// may retry because their working buffer was preserved.
func (e *entry) beginFinalize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateActive, StateFailed:
		e.state = StateFinalizing
		return nil
	case StateFinalizing:
		return ErrFinalizeInProgress
	default:
		return ErrAlreadyFinalized
	}
}

func (e *entry) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *entry) currentState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}
