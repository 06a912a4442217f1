package ledkit

// Mode is the current operating mode of the indicator bank. ModeIdle is
// the resting state; ModeAllBlink and ModeSweep are animator driven;
// ModeManual holds whatever the last toggle left on the outputs. The
// reset trigger is an action, not a resident mode: after it runs the
// engine is back in ModeIdle.
type Mode int

const (
	ModeIdle     Mode = iota - 1 // -1
	ModeAllBlink                 // 0
	ModeSweep                    // 1
	ModeManual                   // 2
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeAllBlink:
		return "all_blink"
	case ModeSweep:
		return "sweep"
	case ModeManual:
		return "manual"
	}
	return "unknown"
}

// Animated reports whether the mode is driven by the background animator.
func (m Mode) Animated() bool {
	return m == ModeAllBlink || m == ModeSweep
}

// Trigger switch ids, matching the logical input indices.
const (
	TriggerAllBlink = 0
	TriggerSweep    = 1
	TriggerManual   = 2
	TriggerReset    = 3
)

type SweepDirection int

const (
	DirectionForward SweepDirection = iota
	DirectionReverse
)

func (d SweepDirection) String() string {
	if d == DirectionReverse {
		return "reverse"
	}
	return "forward"
}

func (d SweepDirection) Opposite() SweepDirection {
	if d == DirectionForward {
		return DirectionReverse
	}
	return DirectionForward
}

// StartIndex is the first output lit when a sweep begins: leftmost when
// running forward, rightmost when running in reverse.
func (d SweepDirection) StartIndex(size int) int {
	if d == DirectionReverse {
		return size - 1
	}
	return 0
}

// Advance steps an output index one position in the sweep direction,
// wrapping around the bank.
func (d SweepDirection) Advance(position, size int) int {
	if size <= 0 {
		return position
	}
	if d == DirectionReverse {
		return (position - 1 + size) % size
	}
	return (position + 1) % size
}
