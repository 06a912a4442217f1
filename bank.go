package ledkit

import (
	"github.com/charmbracelet/log"

	"github.com/hubertat/ledkit/drivers"
)

// OutputBank is the addressable set of indicator outputs. It keeps a
// boolean mirror of every output so manual toggles and the blink
// alternation never need to read hardware. The bank has no lock of its
// own: all access goes through the engine's state lock.
type OutputBank struct {
	outputs []drivers.DigitalOutput
	states  []bool
	logger  *log.Logger
}

func NewOutputBank(outputs []drivers.DigitalOutput, logger *log.Logger) *OutputBank {
	if logger == nil {
		logger = log.Default()
	}
	return &OutputBank{
		outputs: outputs,
		states:  make([]bool, len(outputs)),
		logger:  logger,
	}
}

func (ob *OutputBank) Size() int {
	return len(ob.outputs)
}

// Set commits value to the output at index and updates the mirror.
// Out of range indices are ignored: spurious trigger ids must never
// take the handler down.
func (ob *OutputBank) Set(index int, value bool) {
	if index < 0 || index >= len(ob.outputs) {
		ob.logger.Debug("ignoring out of range output index", "index", index)
		return
	}

	err := ob.outputs[index].Set(value)
	if err != nil {
		ob.logger.Error("failed to set output", "index", index, "value", value, "err", err)
		return
	}
	ob.states[index] = value
}

// State returns the last known value of the output at index, false for
// out of range indices.
func (ob *OutputBank) State(index int) bool {
	if index < 0 || index >= len(ob.states) {
		return false
	}
	return ob.states[index]
}

func (ob *OutputBank) Toggle(index int) {
	ob.Set(index, !ob.State(index))
}

// ResetAll turns every output off.
func (ob *OutputBank) ResetAll() {
	for i := range ob.outputs {
		ob.Set(i, false)
	}
}

// States returns a copy of the output mirror.
func (ob *OutputBank) States() []bool {
	snapshot := make([]bool, len(ob.states))
	copy(snapshot, ob.states)
	return snapshot
}
