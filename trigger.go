package ledkit

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/service"
	"github.com/pkg/errors"

	"github.com/hubertat/ledkit/drivers"
)

// TriggerSwitch is one physical mode switch. Every debounced rising
// edge on its input pin is dispatched to the engine as the configured
// switch id.
type TriggerSwitch struct {
	Name       string
	DriverName string
	InPin      uint16

	// SwitchId is the logical trigger index delivered to the engine:
	// 0 all blink, 1 sweep, 2 manual toggle, 3 reset.
	SwitchId int

	DisableHomekit bool

	engine   *Engine
	debounce *Debouncer
	input    drivers.DigitalInput
	driver   drivers.IoDriver
	cancel   func()

	hk *accessory.A
	ss *service.StatelessProgrammableSwitch
}

func (ts *TriggerSwitch) GetDriverName() string {
	return ts.DriverName
}

func (ts *TriggerSwitch) GetUniqueId() uint64 {
	hash := fnv.New64()
	hash.Write([]byte("TriggerSwitch_" + ts.Name))
	return hash.Sum64()
}

// attach wires the switch to the engine and debounce filter; must run
// before Init.
func (ts *TriggerSwitch) attach(engine *Engine, debounce *Debouncer) {
	ts.engine = engine
	ts.debounce = debounce
}

func (ts *TriggerSwitch) Init(driver drivers.IoDriver) error {
	if !strings.EqualFold(driver.String(), ts.DriverName) {
		return fmt.Errorf("Init failed, mismatched or incorrect driver")
	}

	if !driver.IsReady() {
		return fmt.Errorf("Init failed, driver not ready")
	}

	if ts.engine == nil || ts.debounce == nil {
		return fmt.Errorf("Init failed, trigger switch not attached to engine")
	}

	var err error

	ts.driver = driver
	ts.input, err = driver.GetInput(ts.InPin)
	if err != nil {
		return errors.Wrap(err, "Init failed on getting input")
	}

	ts.cancel, err = ts.input.SubscribeToEdge(ts)
	if err != nil {
		return errors.Wrap(err, "failed to subscribe to edge events")
	}

	if !ts.DisableHomekit {
		ts.hk = accessory.New(accessory.Info{
			Name: ts.Name,
		}, accessory.TypeProgrammableSwitch)

		ts.ss = service.NewStatelessProgrammableSwitch()
		ts.hk.AddS(ts.ss.S)
	}

	return nil
}

// FireEdge runs on the driver's event goroutine: debounce bookkeeping
// plus a dispatch, nothing that can fail upward.
func (ts *TriggerSwitch) FireEdge(event drivers.EdgeEvent) {
	if !ts.debounce.Accept(ts.SwitchId, event.Timestamp) {
		return
	}

	ts.engine.HandleTrigger(ts.SwitchId)

	if ts.ss != nil {
		ts.ss.ProgrammableSwitchEvent.SetValue(0)
	}
}

func (ts *TriggerSwitch) Sync() (err error) {
	return
}

func (ts *TriggerSwitch) GetHk() *accessory.A {
	return ts.hk
}

// Release drops the edge subscription.
func (ts *TriggerSwitch) Release() {
	if ts.cancel != nil {
		ts.cancel()
		ts.cancel = nil
	}
}
