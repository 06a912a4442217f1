package ledkit

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultTickInterval is the cadence of the background animator.
const DefaultTickInterval = 2 * time.Second

// ModeObserver is notified after every completed trigger dispatch.
// Observers run outside the state lock but on the dispatching
// goroutine, so they must not call back into the engine's dispatch
// path and must not block for long.
type ModeObserver interface {
	ModeChanged(status EngineStatus)
}

// EngineStatus is a consistent snapshot of the shared mode state.
type EngineStatus struct {
	Mode      Mode           `json:"-"`
	ModeName  string         `json:"mode"`
	Direction SweepDirection `json:"-"`
	DirName   string         `json:"direction"`
	Position  int            `json:"position"`
	Outputs   []bool         `json:"outputs"`
}

// Engine is the mode state machine driving the output bank. Triggers
// arrive from edge subscriptions (one goroutine per driver event
// source) and from remote injection surfaces; a single dispatch lock
// serializes them, so every trigger's stop/mutate/start sequence
// completes before the next one begins. The animator is a worker
// goroutine owned by the engine, at most one alive at any time.
type Engine struct {
	bank   *OutputBank
	tick   time.Duration
	logger *log.Logger

	// dispatchMu serializes whole trigger dispatches. It is the lock
	// under which the engine may block waiting for the old animator to
	// acknowledge termination.
	dispatchMu sync.Mutex

	// mu guards the mode state and, transitively, the bank. The
	// animator takes it for one tick's read-modify-write; holders must
	// never block on animator termination while holding it.
	mu        sync.Mutex
	mode      Mode
	direction SweepDirection
	position  int
	lastLit   int
	anim      *animator

	active    atomic.Int32
	observers []ModeObserver
}

// animator is the ownership token for one background worker. Closing
// stop requests termination; done is closed by the worker on exit.
type animator struct {
	stop chan struct{}
	done chan struct{}
}

func NewEngine(bank *OutputBank, tick time.Duration, logger *log.Logger) *Engine {
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		bank:    bank,
		tick:    tick,
		logger:  logger,
		mode:    ModeIdle,
		lastLit: -1,
	}
}

// Observe registers an observer. Not safe to call after triggers start
// flowing.
func (e *Engine) Observe(observer ModeObserver) {
	e.observers = append(e.observers, observer)
}

// HandleTrigger applies one debounced trigger activation. Unknown
// switch ids are logged and ignored, never an error: the trigger path
// completes or logs, it does not propagate.
func (e *Engine) HandleTrigger(switchId int) {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()

	if switchId < TriggerAllBlink || switchId > TriggerReset {
		e.logger.Debug("ignoring out of range trigger", "switch", switchId)
		return
	}

	// Stop the running animator and wait for it to acknowledge before
	// touching the mode state. This ordering keeps a just-stopped
	// animator's final tick from ever observing the new mode, and
	// keeps two animators from coexisting.
	e.stopAnimator()

	e.mu.Lock()
	switch switchId {
	case TriggerAllBlink:
		e.mode = ModeAllBlink
	case TriggerSweep:
		if e.mode == ModeSweep {
			e.direction = e.direction.Opposite()
		} else {
			e.direction = DirectionForward
		}
		e.mode = ModeSweep
		e.position = e.direction.StartIndex(e.bank.Size())
		e.lastLit = -1
	case TriggerManual:
		e.mode = ModeManual
		e.bank.Toggle(switchId)
	case TriggerReset:
		e.bank.ResetAll()
		e.mode = ModeIdle
		e.direction = DirectionForward
		e.position = 0
		e.lastLit = -1
	}

	if e.mode.Animated() {
		e.startAnimatorLocked()
	}
	status := e.statusLocked()
	e.mu.Unlock()

	e.logger.Info("trigger dispatched", "switch", switchId, "mode", status.ModeName)
	for _, observer := range e.observers {
		observer.ModeChanged(status)
	}
}

// Stop terminates any running animator and waits for it. Used at
// shutdown; stopping an idle engine is a no-op.
func (e *Engine) Stop() {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()

	e.stopAnimator()
}

// stopAnimator requests the current animator to stop and waits for the
// acknowledgment. Must be called with dispatchMu held and mu released:
// the worker needs mu to observe the stop request mid-tick.
func (e *Engine) stopAnimator() {
	e.mu.Lock()
	running := e.anim
	e.anim = nil
	if running != nil {
		close(running.stop)
	}
	e.mu.Unlock()

	if running != nil {
		<-running.done
	}
}

func (e *Engine) startAnimatorLocked() {
	if e.anim != nil {
		// stopAnimator always runs first in the dispatch sequence.
		e.logger.Error("animator already running, refusing to start another")
		return
	}

	running := &animator{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	e.anim = running
	e.active.Add(1)
	go e.runAnimator(running)
}

// runAnimator is the background worker: one tick per interval until
// the stop channel closes or the mode stops being animator driven.
func (e *Engine) runAnimator(a *animator) {
	defer close(a.done)
	defer e.active.Add(-1)

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
		}

		if !e.tickOnce(a) {
			return
		}
	}
}

// tickOnce performs one animator tick under the state lock. It returns
// false when the worker should exit: stop was requested while the
// ticker was sleeping, or the mode is no longer animator driven. In
// either case no output is mutated.
func (e *Engine) tickOnce(a *animator) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	select {
	case <-a.stop:
		return false
	default:
	}

	if e.bank.Size() == 0 {
		return false
	}

	switch e.mode {
	case ModeAllBlink:
		// Output 0 carries the alternation phase for the whole bank.
		next := !e.bank.State(0)
		for i := 0; i < e.bank.Size(); i++ {
			e.bank.Set(i, next)
		}
	case ModeSweep:
		if e.lastLit >= 0 {
			e.bank.Set(e.lastLit, false)
		}
		e.bank.Set(e.position, true)
		e.lastLit = e.position
		e.position = e.direction.Advance(e.position, e.bank.Size())
	default:
		return false
	}

	return true
}

func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

func (e *Engine) Direction() SweepDirection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.direction
}

func (e *Engine) Position() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

// Status returns a consistent snapshot of mode, direction, position
// and the output mirror.
func (e *Engine) Status() EngineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

func (e *Engine) statusLocked() EngineStatus {
	return EngineStatus{
		Mode:      e.mode,
		ModeName:  e.mode.String(),
		Direction: e.direction,
		DirName:   e.direction.String(),
		Position:  e.position,
		Outputs:   e.bank.States(),
	}
}
