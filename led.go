package ledkit

import (
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/brutella/hap/accessory"
	"github.com/pkg/errors"

	"github.com/hubertat/ledkit/drivers"
)

// Led is one indicator output of the bank. The engine owns the output
// value; the HomeKit accessory is a read-only mirror refreshed on the
// sync ticker.
type Led struct {
	Name       string
	State      bool
	DriverName string
	OutPin     uint16

	// Index is the logical position of the output in the bank,
	// starting from 0; the sweep runs across indices in order.
	Index int

	DisableHomekit bool

	output drivers.DigitalOutput
	driver drivers.IoDriver

	hk *accessory.Lightbulb

	lock sync.Mutex
}

func (led *Led) GetDriverName() string {
	return led.DriverName
}

func (led *Led) GetUniqueId() uint64 {
	hash := fnv.New64()
	hash.Write([]byte("Led_" + led.Name))
	return hash.Sum64()
}

func (led *Led) Init(driver drivers.IoDriver) error {
	// Already bound; nothing to redo.
	if led.output != nil {
		return nil
	}

	if !strings.EqualFold(driver.String(), led.DriverName) {
		return fmt.Errorf("Init failed, mismatched or incorrect driver")
	}

	if !driver.IsReady() {
		return fmt.Errorf("Init failed, driver not ready")
	}

	var err error

	led.driver = driver
	led.output, err = driver.GetOutput(led.OutPin)
	if err != nil {
		return errors.Wrap(err, "Init failed on getting output")
	}

	if led.DisableHomekit {
		return nil
	}

	info := accessory.Info{
		Name:         led.Name,
		SerialNumber: fmt.Sprintf("led:%s:%02d", led.DriverName, led.OutPin),
	}
	led.hk = accessory.NewLightbulb(info)

	return nil
}

func (led *Led) Sync() error {
	led.lock.Lock()
	defer led.lock.Unlock()

	state, err := led.output.GetState()
	if err != nil {
		return errors.Wrap(err, "Sync failed")
	}

	oldState := led.State
	led.State = state

	if oldState != led.State && led.hk != nil {
		led.hk.Lightbulb.On.SetValue(led.State)
	}

	return nil
}

func (led *Led) GetHk() *accessory.A {
	if led.hk == nil {
		return nil
	}
	return led.hk.A
}

// Output exposes the bound output for bank assembly.
func (led *Led) Output() drivers.DigitalOutput {
	return led.output
}
