package app

import "sync"

// RateGate implements the "record every Kth call" admission policy.
// The counter is process-wide, spans calls, and resets whenever it
// triggers a recording decision, so windows are counted from the last
// recorded call rather than from an absolute epoch.
type RateGate struct {
	mu     sync.Mutex
	period int
	count  int
}

// NewRateGate returns a gate recording one call per window of period
// answered calls. A period of 1 records every call; a period of zero
// or less disables recording.
func NewRateGate(period int) *RateGate {
	return &RateGate{period: period}
}

// ShouldRecord counts one answered call and reports whether it should
// be recorded. The counter increments unconditionally, whether or not
// the call later completes.
func (g *RateGate) ShouldRecord() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.period <= 0 {
		return false
	}
	g.count++
	if g.count%g.period == 0 {
		g.count = 0
		return true
	}
	return false
}
