package logic

import "time"

// EdgeResult describes what a single edge did. Callers use it for logging.
type EdgeResult struct {
	Edge Edge
	// Changed is false for a press on an already tracked pin or a release
	// of a pin that was not tracked.
	Changed bool
	// State is the removed press state for a release.
	State PressState
	// Notification is set when a resolution was produced.
	Notification *Notification
	// Dropped is true if Notification could not be queued.
	Dropped bool
}

// Held returns how long the released input was held.
func (r EdgeResult) Held() time.Duration {
	if r.Edge.Kind != EdgeReleased || !r.Changed {
		return 0
	}
	return r.Edge.Time.Sub(r.State.Started)
}

// Monitor translates hardware edges into registry mutations and resolution
// notifications. HandleEdge is safe to call concurrently for different pins.
type Monitor struct {
	reg   *Registry
	names NameTable
	out   Enqueuer
}

// NewMonitor creates a Monitor writing to reg and queuing notifications on out.
func NewMonitor(reg *Registry, names NameTable, out Enqueuer) *Monitor {
	return &Monitor{reg: reg, names: names, out: out}
}

// HandleEdge applies a single debounced transition.
func (m *Monitor) HandleEdge(e Edge) EdgeResult {
	res := EdgeResult{Edge: e}

	switch e.Kind {
	case EdgeAsserted:
		// Silence has not crossed the threshold yet, nothing to send.
		res.Changed = m.reg.RecordPress(e.Pin, e.Time)

	case EdgeReleased:
		st, ok := m.reg.RecordRelease(e.Pin, e.Time)
		if !ok {
			return res
		}
		res.Changed = true
		res.State = st
		if !st.Alerted {
			return res
		}
		n := endedNotification(e.Pin, m.names.Name(e.Pin), st, e.Time)
		res.Notification = &n
		res.Dropped = !m.out.Enqueue(n)
	}

	return res
}

// Prime records a press for an input found asserted at startup, so a
// silence already in progress is tracked from first observation.
func (m *Monitor) Prime(pin int, now time.Time) EdgeResult {
	return m.HandleEdge(Edge{Pin: pin, Kind: EdgeAsserted, Time: now})
}
