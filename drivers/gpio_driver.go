package drivers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
)

const gpioDriverName = "gpio"

// edgePollInterval is how often subscribed inputs are scanned for a
// latched rising edge. The memory mapped interface has no event fd, so
// edge delivery is a polling loop; 10ms keeps worst case latency well
// below the 200ms debounce window.
const edgePollInterval = 10 * time.Millisecond

type GpIO struct {
	inputs  []*GpInput
	outputs []*GpOutput

	InvertInputs  bool
	InvertOutputs bool

	isReady  bool
	stopPoll chan struct{}
	pollDone chan struct{}
}

type GpInput struct {
	pin    uint8
	invert bool

	mu        sync.Mutex
	listeners map[int]EdgeListener
	nextId    int
	detecting bool
}

type GpOutput struct {
	pin    uint8
	invert bool
}

func (gpi *GpInput) GetState() (state bool, err error) {
	if gpi.invert {
		state = rpio.Pin(gpi.pin).Read() == rpio.Low
	} else {
		state = rpio.Pin(gpi.pin).Read() == rpio.High
	}

	return
}

func (gpi *GpInput) SubscribeToEdge(listener EdgeListener) (func(), error) {
	gpi.mu.Lock()
	defer gpi.mu.Unlock()

	if !gpi.detecting {
		rpio.Pin(gpi.pin).Detect(rpio.RiseEdge)
		gpi.detecting = true
	}

	id := gpi.nextId
	gpi.nextId++
	gpi.listeners[id] = listener

	return func() {
		gpi.mu.Lock()
		delete(gpi.listeners, id)
		gpi.mu.Unlock()
	}, nil
}

func (gpi *GpInput) pollEdge() {
	gpi.mu.Lock()
	if !gpi.detecting || len(gpi.listeners) == 0 {
		gpi.mu.Unlock()
		return
	}
	listeners := make([]EdgeListener, 0, len(gpi.listeners))
	for _, l := range gpi.listeners {
		listeners = append(listeners, l)
	}
	gpi.mu.Unlock()

	if !rpio.Pin(gpi.pin).EdgeDetected() {
		return
	}

	event := EdgeEvent{Pin: uint16(gpi.pin), Timestamp: time.Now()}
	for _, l := range listeners {
		l.FireEdge(event)
	}
}

func (gpo *GpOutput) Set(state bool) error {
	if gpo.invert {
		state = !state
	}
	if state {
		rpio.Pin(gpo.pin).High()
	} else {
		rpio.Pin(gpo.pin).Low()
	}

	return nil
}

func (gpo *GpOutput) GetState() (state bool, err error) {
	if gpo.invert {
		state = rpio.Pin(gpo.pin).Read() == rpio.Low
	} else {
		state = rpio.Pin(gpo.pin).Read() == rpio.High
	}

	return
}

func (gp *GpIO) Setup(ctx context.Context, inputs []uint16, outputs []uint16) error {
	err := rpio.Open()
	if err != nil {
		return errors.Wrapf(err, "failed to Setup gpio driver for pins: %v, %v; ", inputs, outputs)
	}
	for _, inPin := range inputs {
		if inPin > 255 {
			return errors.Errorf("inpin out of range (gpio takes uint8 pin)")
		}
		pin := rpio.Pin(inPin)
		pin.Input()
		pin.PullUp()
		gp.inputs = append(gp.inputs, &GpInput{
			pin:       uint8(inPin),
			invert:    gp.InvertInputs,
			listeners: make(map[int]EdgeListener),
		})
	}

	for _, outPin := range outputs {
		if outPin > 255 {
			return errors.Errorf("outpin out of range (gpio takes uint8 pin)")
		}
		pin := rpio.Pin(outPin)
		pin.Output()
		gp.outputs = append(gp.outputs, &GpOutput{pin: uint8(outPin), invert: gp.InvertOutputs})
	}

	gp.stopPoll = make(chan struct{})
	gp.pollDone = make(chan struct{})
	go gp.pollEdges(ctx)

	gp.isReady = true
	return nil
}

func (gp *GpIO) pollEdges(ctx context.Context) {
	defer close(gp.pollDone)

	ticker := time.NewTicker(edgePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-gp.stopPoll:
			return
		case <-ticker.C:
		}

		for _, input := range gp.inputs {
			input.pollEdge()
		}
	}
}

func (gp *GpIO) String() string {
	return gpioDriverName
}

func (gp *GpIO) IsReady() bool {
	return gp.isReady
}

func (gp *GpIO) Close() error {
	gp.isReady = false

	if gp.stopPoll != nil {
		close(gp.stopPoll)
		<-gp.pollDone
		gp.stopPoll = nil
	}

	for _, input := range gp.inputs {
		if input.detecting {
			rpio.Pin(input.pin).Detect(rpio.NoEdge)
		}
	}
	for _, output := range gp.outputs {
		output.Set(false)
	}
	return rpio.Close()
}

func (gp *GpIO) GetInput(id uint16) (input DigitalInput, err error) {
	if id > 255 {
		err = errors.Errorf("pin id out of range (gpio takes uint8 pin)")
		return
	}
	for _, in := range gp.inputs {
		if in.pin == uint8(id) {
			input = in
			return
		}
	}

	err = fmt.Errorf("GpIO Input (id: %d) not found", id)
	return
}

func (gp *GpIO) GetOutput(id uint16) (output DigitalOutput, err error) {
	if id > 255 {
		err = errors.Errorf("pin id out of range (gpio takes uint8 pin)")
		return
	}
	for _, out := range gp.outputs {
		if out.pin == uint8(id) {
			output = out
			return
		}
	}

	err = fmt.Errorf("GpIO Output (id: %d) not found", id)
	return
}

func (gp *GpIO) GetAllIo() (inputs []uint16, outputs []uint16) {
	for _, input := range gp.inputs {
		inputs = append(inputs, uint16(input.pin))
	}

	for _, output := range gp.outputs {
		outputs = append(outputs, uint16(output.pin))
	}

	return
}
