package app

import (
	"sync/atomic"
	"time"
)

// Metrics counts session activity.
type Metrics struct {
	dispatched    atomic.Uint64
	rejected      atomic.Uint64
	reloads       atomic.Uint64
	resets        atomic.Uint64
	remoteUpdates atomic.Uint64

	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordDispatch records an action applied to the session state.
func (m *Metrics) RecordDispatch() { m.dispatched.Add(1) }

// RecordRejected records a change refused before reaching the reducer.
func (m *Metrics) RecordRejected() { m.rejected.Add(1) }

// RecordReload records a reload from storage.
func (m *Metrics) RecordReload() { m.reloads.Add(1) }

// RecordReset records a reset to defaults.
func (m *Metrics) RecordReset() { m.resets.Add(1) }

// RecordRemoteUpdate records a lobby update from the session host.
func (m *Metrics) RecordRemoteUpdate() { m.remoteUpdates.Add(1) }

// Snapshot returns a point-in-time view of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Uptime:        time.Since(m.startTime),
		Dispatched:    m.dispatched.Load(),
		Rejected:      m.rejected.Load(),
		Reloads:       m.reloads.Load(),
		Resets:        m.resets.Load(),
		RemoteUpdates: m.remoteUpdates.Load(),
	}
}

// Reset clears all counters.
func (m *Metrics) Reset() {
	m.dispatched.Store(0)
	m.rejected.Store(0)
	m.reloads.Store(0)
	m.resets.Store(0)
	m.remoteUpdates.Store(0)
	m.startTime = time.Now()
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	Uptime        time.Duration
	Dispatched    uint64
	Rejected      uint64
	Reloads       uint64
	Resets        uint64
	RemoteUpdates uint64
}

// RejectRate returns the percentage of attempted changes that were refused.
func (s MetricsSnapshot) RejectRate() float64 {
	total := s.Dispatched + s.Rejected
	if total == 0 {
		return 0
	}
	return float64(s.Rejected) / float64(total) * 100
}
