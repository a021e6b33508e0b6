package logic

import (
	"sort"
	"sync"
	"time"
)

// Registry holds the press state of every currently asserted input.
// All methods are safe for concurrent use; each runs in one short critical
// section and performs no I/O.
type Registry struct {
	mu      sync.Mutex
	presses map[int]*PressState
	counts  EventCounts
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{presses: make(map[int]*PressState)}
}

// RecordPress starts an episode for pin at now. A press for a pin that is
// already tracked is ignored and reported as false, so an in-progress
// episode keeps its start time and alert history.
func (r *Registry) RecordPress(pin int, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.presses[pin]; ok {
		return false
	}
	r.presses[pin] = &PressState{Started: now}
	r.counts.Presses++
	return true
}

// RecordRelease removes and returns the state for pin.
// Returns false if pin was not pressed.
func (r *Registry) RecordRelease(pin int, now time.Time) (PressState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.presses[pin]
	if !ok {
		return PressState{}, false
	}
	delete(r.presses, pin)
	r.counts.Releases++
	if st.Alerted {
		r.counts.Resolutions++
	}
	return *st, true
}

// Scan calls fn for every tracked pin while holding the lock. fn may mutate
// the state in place but must not block.
func (r *Registry) Scan(fn func(pin int, st *PressState)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for pin, st := range r.presses {
		before := st.Alerts
		fn(pin, st)
		if st.Alerts > before {
			r.counts.Alerts += st.Alerts - before
		}
	}
}

// Len returns the number of tracked pins.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.presses)
}

// Get returns a copy of the state for pin.
func (r *Registry) Get(pin int) (PressState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.presses[pin]
	if !ok {
		return PressState{}, false
	}
	return *st, true
}

// Snapshot returns copies of all tracked entries ordered by pin.
func (r *Registry) Snapshot(names NameTable) []Silence {
	r.mu.Lock()
	out := make([]Silence, 0, len(r.presses))
	for pin, st := range r.presses {
		out = append(out, Silence{Pin: pin, Name: names.Name(pin), State: *st})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Pin < out[j].Pin })
	return out
}

// Counts returns a copy of the event counters.
func (r *Registry) Counts() EventCounts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts
}
