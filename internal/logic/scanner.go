package logic

import (
	"sort"
	"time"
)

// ScanPeriod is how often the scanner should be driven.
const ScanPeriod = time.Second

// ScanResult lists the alerts produced by one scan.
type ScanResult struct {
	Queued  []Notification
	Dropped []Notification
}

// Scanner promotes long-held inputs to alerted state and emits ongoing
// silence notifications. It is driven by a single caller on a fixed period.
type Scanner struct {
	reg       *Registry
	names     NameTable
	out       Enqueuer
	threshold time.Duration
	repeat    time.Duration
}

// NewScanner creates a Scanner. threshold is the continuous silence needed
// before the first alert and repeat the minimum spacing between alerts.
func NewScanner(reg *Registry, names NameTable, out Enqueuer, threshold, repeat time.Duration) *Scanner {
	return &Scanner{
		reg:       reg,
		names:     names,
		out:       out,
		threshold: threshold,
		repeat:    repeat,
	}
}

// Scan checks every tracked input against now. Notifications are built under
// the registry lock and queued after it is released.
func (s *Scanner) Scan(now time.Time) ScanResult {
	var pending []Notification

	s.reg.Scan(func(pin int, st *PressState) {
		if now.Sub(st.Started) < s.threshold {
			return
		}
		if !s.due(st, now) {
			return
		}
		st.LastAlert = now
		st.Alerted = true
		st.Alerts++
		pending = append(pending, silenceNotification(pin, s.names.Name(pin), *st, now))
	})

	// Map iteration order is random; keep the output stable.
	sort.Slice(pending, func(i, j int) bool { return pending[i].Pin < pending[j].Pin })

	var res ScanResult
	for _, n := range pending {
		if s.out.Enqueue(n) {
			res.Queued = append(res.Queued, n)
		} else {
			res.Dropped = append(res.Dropped, n)
		}
	}
	return res
}

func (s *Scanner) due(st *PressState, now time.Time) bool {
	if st.LastAlert.IsZero() {
		return true
	}
	return now.Sub(st.LastAlert) >= s.repeat
}

// Heartbeat tracks when the next periodic status event is due.
type Heartbeat struct {
	startTime time.Time
	last      time.Time
}

// NewHeartbeat creates a Heartbeat. The startTime is used for uptime.
func NewHeartbeat(startTime time.Time) *Heartbeat {
	return &Heartbeat{startTime: startTime, last: startTime}
}

// Check returns heartbeat data if the interval has elapsed since the last
// heartbeat (or startup). Returns nil if the interval has not elapsed or if
// interval is <= 0 (disabled).
func (h *Heartbeat) Check(now time.Time, interval time.Duration, counts EventCounts) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(h.last) < interval {
		return nil
	}

	h.last = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(h.startTime),
		Counts:    counts,
	}
}
