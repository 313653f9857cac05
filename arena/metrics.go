package arena

import "sync/atomic"

// Metrics records loop-level counters. Written by the loop goroutine, read
// from HTTP handlers.
type Metrics struct {
	TickCount       int64
	TotalTickNs     int64
	CommandsHandled int64
	CommandsDropped int64
	RecoveredPanics int64
	EventsEmitted   int64
}

func (m *Metrics) incHandled()      { atomic.AddInt64(&m.CommandsHandled, 1) }
func (m *Metrics) incDropped()      { atomic.AddInt64(&m.CommandsDropped, 1) }
func (m *Metrics) incPanics()       { atomic.AddInt64(&m.RecoveredPanics, 1) }
func (m *Metrics) addEmitted(n int) { atomic.AddInt64(&m.EventsEmitted, int64(n)) }
func (m *Metrics) addTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot returns a read-only copy for JSON output
func (m *Metrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":       tick,
		"avg_tick_ms":      avgMs,
		"commands_handled": atomic.LoadInt64(&m.CommandsHandled),
		"commands_dropped": atomic.LoadInt64(&m.CommandsDropped),
		"recovered_panics": atomic.LoadInt64(&m.RecoveredPanics),
		"events_emitted":   atomic.LoadInt64(&m.EventsEmitted),
	}
}
