package drivers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/gpiod"
)

const chardevDriverName = "chardev"
const defaultChipName = "gpiochip0"
const chardevConsumer = "ledkit"

// ChardevIO drives GPIO lines through the Linux character device
// (github.com/warthog618/gpiod). Inputs are requested with rising edge
// detection, so edge subscribers get real kernel interrupts instead of
// a polling loop.
type ChardevIO struct {
	Chip          string
	InvertInputs  bool
	InvertOutputs bool

	chip    *gpiod.Chip
	inputs  []*ChardevInput
	outputs []*ChardevOutput
	isReady bool
}

type ChardevInput struct {
	pin    uint16
	invert bool
	line   *gpiod.Line

	mu        sync.Mutex
	listeners map[int]EdgeListener
	nextId    int
}

type ChardevOutput struct {
	pin    uint16
	invert bool
	line   *gpiod.Line
}

func (ci *ChardevInput) GetState() (state bool, err error) {
	value, err := ci.line.Value()
	if err != nil {
		return false, errors.Wrapf(err, "failed to read chardev input %d", ci.pin)
	}

	if ci.invert {
		state = value == 0
	} else {
		state = value == 1
	}

	return
}

func (ci *ChardevInput) SubscribeToEdge(listener EdgeListener) (func(), error) {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	id := ci.nextId
	ci.nextId++
	ci.listeners[id] = listener

	return func() {
		ci.mu.Lock()
		delete(ci.listeners, id)
		ci.mu.Unlock()
	}, nil
}

// handleEvent runs on the gpiod event goroutine, outside any caller
// context. Listeners must not block for long here.
func (ci *ChardevInput) handleEvent(evt gpiod.LineEvent) {
	if evt.Type != gpiod.LineEventRisingEdge {
		return
	}

	ci.mu.Lock()
	listeners := make([]EdgeListener, 0, len(ci.listeners))
	for _, l := range ci.listeners {
		listeners = append(listeners, l)
	}
	ci.mu.Unlock()

	event := EdgeEvent{Pin: ci.pin, Timestamp: time.Now()}
	for _, l := range listeners {
		l.FireEdge(event)
	}
}

func (co *ChardevOutput) GetState() (state bool, err error) {
	value, err := co.line.Value()
	if err != nil {
		return false, errors.Wrapf(err, "failed to read chardev output %d", co.pin)
	}

	if co.invert {
		state = value == 0
	} else {
		state = value == 1
	}

	return
}

func (co *ChardevOutput) Set(state bool) error {
	if co.invert {
		state = !state
	}

	value := 0
	if state {
		value = 1
	}

	return co.line.SetValue(value)
}

func (cio *ChardevIO) Setup(ctx context.Context, inputs []uint16, outputs []uint16) error {
	chipName := cio.Chip
	if len(chipName) == 0 {
		chipName = defaultChipName
	}

	chip, err := gpiod.NewChip(chipName, gpiod.WithConsumer(chardevConsumer))
	if err != nil {
		return errors.Wrapf(err, "failed to open gpio chip %s", chipName)
	}
	cio.chip = chip

	for _, inPin := range inputs {
		input := &ChardevInput{
			pin:       inPin,
			invert:    cio.InvertInputs,
			listeners: make(map[int]EdgeListener),
		}
		line, err := chip.RequestLine(int(inPin),
			gpiod.WithPullUp,
			gpiod.WithRisingEdge,
			gpiod.WithEventHandler(input.handleEvent))
		if err != nil {
			cio.releaseLines()
			return errors.Wrapf(err, "failed to request input line %d on %s", inPin, chipName)
		}
		input.line = line
		cio.inputs = append(cio.inputs, input)
	}

	for _, outPin := range outputs {
		line, err := chip.RequestLine(int(outPin), gpiod.AsOutput(0))
		if err != nil {
			cio.releaseLines()
			return errors.Wrapf(err, "failed to request output line %d on %s", outPin, chipName)
		}
		cio.outputs = append(cio.outputs, &ChardevOutput{
			pin:    outPin,
			invert: cio.InvertOutputs,
			line:   line,
		})
	}

	cio.isReady = true
	return nil
}

func (cio *ChardevIO) String() string {
	return chardevDriverName
}

func (cio *ChardevIO) IsReady() bool {
	return cio.isReady
}

func (cio *ChardevIO) Close() error {
	cio.isReady = false
	for _, output := range cio.outputs {
		output.Set(false)
	}
	cio.releaseLines()

	if cio.chip != nil {
		return cio.chip.Close()
	}
	return nil
}

func (cio *ChardevIO) releaseLines() {
	for _, input := range cio.inputs {
		input.line.Close()
	}
	for _, output := range cio.outputs {
		output.line.Close()
	}
	cio.inputs = nil
	cio.outputs = nil
}

func (cio *ChardevIO) GetInput(pin uint16) (DigitalInput, error) {
	for _, in := range cio.inputs {
		if in.pin == pin {
			return in, nil
		}
	}

	return nil, fmt.Errorf("ChardevIO Input (pin: %d) not found", pin)
}

func (cio *ChardevIO) GetOutput(pin uint16) (DigitalOutput, error) {
	for _, out := range cio.outputs {
		if out.pin == pin {
			return out, nil
		}
	}

	return nil, fmt.Errorf("ChardevIO Output (pin: %d) not found", pin)
}

func (cio *ChardevIO) GetAllIo() (inputs []uint16, outputs []uint16) {
	for _, input := range cio.inputs {
		inputs = append(inputs, input.pin)
	}
	for _, output := range cio.outputs {
		outputs = append(outputs, output.pin)
	}

	return
}
