package drivers

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

const mockDriverName = "mock_driver"

type MockOutput struct {
	pin              uint16
	writeTo          io.Writer
	writeStateChange bool

	mu    sync.Mutex
	state bool
}

func (mo *MockOutput) GetState() (bool, error) {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	return mo.state, nil
}

func (mo *MockOutput) Set(state bool) error {
	mo.mu.Lock()
	changed := state != mo.state
	mo.state = state
	mo.mu.Unlock()

	if mo.writeStateChange && changed {
		fmt.Fprintf(mo.writeTo, "[pin %d] state changed to %v\n", mo.pin, state)
	}
	return nil
}

type MockInput struct {
	State bool
	pin   uint16

	mu        sync.Mutex
	listeners map[int]EdgeListener
	nextId    int
}

func (mi *MockInput) GetState() (bool, error) {
	return mi.State, nil
}

func (mi *MockInput) SubscribeToEdge(listener EdgeListener) (func(), error) {
	mi.mu.Lock()
	defer mi.mu.Unlock()

	if mi.listeners == nil {
		mi.listeners = make(map[int]EdgeListener)
	}

	id := mi.nextId
	mi.nextId++
	mi.listeners[id] = listener

	return func() {
		mi.mu.Lock()
		delete(mi.listeners, id)
		mi.mu.Unlock()
	}, nil
}

// Push simulates a rising edge on the input, delivering it to every
// subscribed listener from the caller's goroutine.
func (mi *MockInput) Push() {
	mi.PushAt(time.Now())
}

// PushAt is Push with a caller supplied timestamp, so debounce windows
// can be exercised without sleeping.
func (mi *MockInput) PushAt(ts time.Time) {
	mi.mu.Lock()
	listeners := make([]EdgeListener, 0, len(mi.listeners))
	for _, l := range mi.listeners {
		listeners = append(listeners, l)
	}
	mi.mu.Unlock()

	event := EdgeEvent{Pin: mi.pin, Timestamp: ts}
	for _, l := range listeners {
		l.FireEdge(event)
	}
}

type MockIoDriver struct {
	inputs  []*MockInput
	outputs []*MockOutput
	ready   bool

	// CloseError is returned from Close, for failure path tests.
	CloseError error `json:"-"`
}

func (md *MockIoDriver) Setup(ctx context.Context, inputs []uint16, outputs []uint16) error {
	for _, inPin := range inputs {
		md.inputs = append(md.inputs, &MockInput{pin: inPin})
	}
	for _, outPin := range outputs {
		md.outputs = append(md.outputs, &MockOutput{pin: outPin})
	}
	md.ready = true
	return nil
}

func (md *MockIoDriver) Close() error {
	md.ready = false
	return md.CloseError
}

func (md *MockIoDriver) String() string {
	return mockDriverName
}

func (md *MockIoDriver) IsReady() bool {
	return md.ready
}

func (md *MockIoDriver) GetInput(pin uint16) (DigitalInput, error) {
	for _, input := range md.inputs {
		if pin == input.pin {
			return input, nil
		}
	}
	return nil, fmt.Errorf("mock input %d not found", pin)
}

// GetMockInput exposes the concrete input so tests can inject edges.
func (md *MockIoDriver) GetMockInput(pin uint16) (*MockInput, error) {
	for _, input := range md.inputs {
		if pin == input.pin {
			return input, nil
		}
	}
	return nil, fmt.Errorf("mock input %d not found", pin)
}

func (md *MockIoDriver) GetOutput(pin uint16) (DigitalOutput, error) {
	for _, output := range md.outputs {
		if pin == output.pin {
			return output, nil
		}
	}
	return nil, fmt.Errorf("mock output %d not found", pin)
}

func (md *MockIoDriver) GetAllIo() (inputs []uint16, outputs []uint16) {
	for _, input := range md.inputs {
		inputs = append(inputs, input.pin)
	}
	for _, output := range md.outputs {
		outputs = append(outputs, output.pin)
	}
	return
}

func (md *MockIoDriver) MonitorStateChanges(writer io.Writer) {
	for _, out := range md.outputs {
		out.writeTo = writer
		out.writeStateChange = true
	}
}
