package ledkit

import (
	"sync/atomic"
	"time"
)

// DefaultDebounceWindow is the refractory period after an accepted
// edge during which further edges on the same input are contact bounce.
const DefaultDebounceWindow = 200 * time.Millisecond

// Debouncer suppresses spurious re-triggers of mechanical switches.
// Each input has its own atomic timestamp cell, so edge deliveries for
// different inputs may run concurrently on different cores without a
// shared lock.
type Debouncer struct {
	window time.Duration
	last   []atomic.Int64
}

func NewDebouncer(inputs int, window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer{
		window: window,
		last:   make([]atomic.Int64, inputs),
	}
}

// Accept reports whether an edge on the given input at the given time
// is a genuine activation. The first edge on an input is always
// accepted; later edges are accepted only when the window has passed
// since the last accepted one. Out of range inputs are rejected.
func (d *Debouncer) Accept(input int, now time.Time) bool {
	if input < 0 || input >= len(d.last) {
		return false
	}

	cell := &d.last[input]
	nowNanos := now.UnixNano()
	lastNanos := cell.Load()

	if lastNanos != 0 && nowNanos-lastNanos < int64(d.window) {
		return false
	}

	cell.Store(nowNanos)
	return true
}
