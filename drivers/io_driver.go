package drivers

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrEdgeNotSupported is returned by SubscribeToEdge on inputs whose
// hardware cannot deliver edge notifications (expander pins, mock pins
// without injection wired up).
var ErrEdgeNotSupported = errors.New("edge subscription not supported by this input")

type IoDriver interface {
	Setup(ctx context.Context, inputs []uint16, outputs []uint16) error
	Close() error
	String() string
	IsReady() bool
	GetInput(pin uint16) (DigitalInput, error)
	GetOutput(pin uint16) (DigitalOutput, error)
	GetAllIo() (inputs []uint16, outputs []uint16)
}

func MapAllIoDrivers() map[string]IoDriver {
	drivers := []IoDriver{
		&ChardevIO{},
		&GpIO{},
		&McpIO{},
		&MockIoDriver{},
	}

	mapped := make(map[string]IoDriver)
	for _, driver := range drivers {
		mapped[driver.String()] = driver
	}
	return mapped
}

type DigitalInput interface {
	GetState() (bool, error)
	SubscribeToEdge(listener EdgeListener) (cancel func(), err error)
}

type DigitalOutput interface {
	GetState() (bool, error)
	Set(bool) error
}

// EdgeEvent describes a single rising edge seen on an input pin.
// The timestamp is taken when the event is delivered, not when the
// hardware latched it; the debounce filter only needs delivery order.
type EdgeEvent struct {
	Pin       uint16
	Timestamp time.Time
}

type EdgeListener interface {
	FireEdge(EdgeEvent)
}
