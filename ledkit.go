package ledkit

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	dnslog "github.com/brutella/dnssd/log"
	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	hklog "github.com/brutella/hap/log"
	"github.com/pkg/errors"

	"github.com/hubertat/ledkit/drivers"
	"github.com/hubertat/ledkit/mqtt"
)

const defaultHomeKitDirectory = "./homekit"
const homeKitBridgeName = "ledkit"
const homeKitBridgeAuthor = "github.com/hubertat"

// LedKit assembles the indicator bank subsystem: the configured LEDs
// and trigger switches, the I/O drivers binding them to hardware, and
// the mode engine in between. The whole struct is unmarshalled from
// the JSON config file.
type LedKit struct {
	Name string

	Leds     []*Led
	Switches []*TriggerSwitch

	TickInterval   string
	DebounceWindow string

	HkPin       string
	HkDirectory string
	HkAddress   string
	HkDebug     bool

	MqttBroker      string
	MqttTopicPrefix string

	HttpAddr  string
	HttpToken string

	Influx *InfluxMonitor

	Chardev    *drivers.ChardevIO
	Gpio       *drivers.GpIO
	Mcp23017   *drivers.McpIO
	FakeDriver *drivers.MockIoDriver

	ioDrivers  map[string]drivers.IoDriver
	engine     *Engine
	bank       *OutputBank
	debounce   *Debouncer
	mqttClient *mqtt.MqttClient
	status     *StatusServer
	ticker     *time.Ticker
	logger     *log.Logger
}

type IO interface {
	Init(driver drivers.IoDriver) error
	GetDriverName() string
	Sync() error
}

type HkThing interface {
	GetHk() *accessory.A
	GetUniqueId() uint64
	Sync() error
}

func (lk *LedKit) getInPins(driverName string) (pins []uint16) {
	for _, ts := range lk.Switches {
		if strings.EqualFold(ts.DriverName, driverName) {
			pins = append(pins, ts.InPin)
		}
	}

	return
}

func (lk *LedKit) getOutPins(driverName string) (pins []uint16) {
	for _, led := range lk.Leds {
		if strings.EqualFold(led.DriverName, driverName) {
			pins = append(pins, led.OutPin)
		}
	}

	return
}

func (lk *LedKit) getIos() []IO {
	ios := []IO{}
	for _, led := range lk.Leds {
		ios = append(ios, led)
	}
	for _, ts := range lk.Switches {
		ios = append(ios, ts)
	}

	return ios
}

func (lk *LedKit) getHkThings() (things []HkThing) {
	for _, th := range lk.Leds {
		things = append(things, th)
	}
	for _, th := range lk.Switches {
		things = append(things, th)
	}

	return
}

func (lk *LedKit) InitDrivers(ctx context.Context) error {
	lk.ioDrivers = make(map[string]drivers.IoDriver)

	if lk.Chardev != nil {
		lk.ioDrivers[lk.Chardev.String()] = lk.Chardev
	}

	if lk.Gpio != nil {
		lk.ioDrivers[lk.Gpio.String()] = lk.Gpio
	}

	if lk.Mcp23017 != nil {
		lk.ioDrivers[lk.Mcp23017.String()] = lk.Mcp23017
	}

	if lk.FakeDriver != nil {
		lk.ioDrivers[lk.FakeDriver.String()] = lk.FakeDriver
	}

	for _, driver := range lk.ioDrivers {
		err := driver.Setup(ctx, lk.getInPins(driver.String()), lk.getOutPins(driver.String()))
		if err != nil {
			return errors.Wrapf(err, "failed to setup %s driver", driver)
		}
	}

	for _, io := range lk.getIos() {
		_, driverFound := lk.ioDrivers[io.GetDriverName()]
		if !driverFound {
			return errors.Errorf("driver %s not set up", io.GetDriverName())
		}
	}

	return nil
}

// InitIos assembles the output bank from the configured LEDs, creates
// the engine and debounce filter, and binds every trigger switch. Any
// failure here is fatal to startup: no partial state is left animating.
func (lk *LedKit) InitIos() error {
	tick := DefaultTickInterval
	if len(lk.TickInterval) > 0 {
		parsed, err := time.ParseDuration(lk.TickInterval)
		if err != nil {
			return errors.Wrap(err, "failed to parse TickInterval")
		}
		tick = parsed
	}

	window := DefaultDebounceWindow
	if len(lk.DebounceWindow) > 0 {
		parsed, err := time.ParseDuration(lk.DebounceWindow)
		if err != nil {
			return errors.Wrap(err, "failed to parse DebounceWindow")
		}
		window = parsed
	}

	if len(lk.Leds) == 0 {
		return errors.New("at least one led must be configured")
	}

	outputs, err := lk.orderedOutputs()
	if err != nil {
		return err
	}

	lk.bank = NewOutputBank(outputs, lk.getLogger())
	lk.engine = NewEngine(lk.bank, tick, lk.getLogger())

	maxId := 0
	for _, ts := range lk.Switches {
		if ts.SwitchId > maxId {
			maxId = ts.SwitchId
		}
	}
	lk.debounce = NewDebouncer(maxId+1, window)

	for _, ts := range lk.Switches {
		ts.attach(lk.engine, lk.debounce)
	}

	// Leds were already bound by orderedOutputs.
	for _, ts := range lk.Switches {
		err := ts.Init(lk.ioDrivers[ts.GetDriverName()])
		if err != nil {
			return errors.Wrap(err, "failed to init trigger switch")
		}
	}

	if lk.Influx != nil {
		err = lk.Influx.Init(lk.getLogger())
		if err != nil {
			return errors.Wrap(err, "failed to init influx monitor")
		}
		lk.engine.Observe(lk.Influx)
	}

	return nil
}

// orderedOutputs initializes LEDs first so their outputs are bound,
// then arranges them by logical index into the bank slots.
func (lk *LedKit) orderedOutputs() ([]drivers.DigitalOutput, error) {
	leds := make([]*Led, len(lk.Leds))
	copy(leds, lk.Leds)
	sort.Slice(leds, func(i, j int) bool { return leds[i].Index < leds[j].Index })

	outputs := make([]drivers.DigitalOutput, 0, len(leds))
	for slot, led := range leds {
		if led.Index != slot {
			return nil, errors.Errorf("led indices must cover 0..%d without gaps, got index %d", len(leds)-1, led.Index)
		}
		err := led.Init(lk.ioDrivers[led.GetDriverName()])
		if err != nil {
			return nil, errors.Wrapf(err, "failed to init led %s", led.Name)
		}
		outputs = append(outputs, led.Output())
	}

	return outputs, nil
}

// Engine exposes the mode engine for remote surfaces and tests.
func (lk *LedKit) Engine() *Engine {
	return lk.engine
}

func (lk *LedKit) getLogger() *log.Logger {
	if lk.logger == nil {
		lk.logger = log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "ledkit",
			Level:  log.GetLevel(),
		})
	}
	return lk.logger
}

func (lk *LedKit) StartTicker(interval time.Duration) {
	lk.ticker = time.NewTicker(interval)

	for range lk.ticker.C {
		for _, io := range lk.getIos() {
			err := io.Sync()
			if err != nil {
				lk.getLogger().Warn("received error from syncing io", "err", err)
			}
		}
	}
}

func (lk *LedKit) Close() (err error) {
	appendErr := func(closeErr error, msg string) {
		if closeErr == nil {
			return
		}
		if err == nil {
			err = errors.Wrap(closeErr, msg)
		} else {
			err = errors.Wrap(err, closeErr.Error())
		}
	}

	// Drop edge subscriptions first, so no late press can restart an
	// animator after the engine has stopped.
	for _, ts := range lk.Switches {
		ts.Release()
	}

	if lk.engine != nil {
		lk.engine.Stop()
	}

	if lk.ticker != nil {
		lk.ticker.Stop()
	}

	if lk.status != nil {
		appendErr(lk.status.Close(), "failed to close status server")
	}

	if lk.Influx != nil {
		lk.Influx.Close()
	}

	for _, driver := range lk.ioDrivers {
		if driver != nil {
			appendErr(driver.Close(), "failed to close io driver")
		}
	}

	return
}

func (lk *LedKit) PrintIoStatus(writer io.Writer) {
	fmt.Fprintln(writer)
	fmt.Fprintln(writer, "=== active io drivers ===")
	for driverName, driver := range lk.ioDrivers {
		fmt.Fprintln(writer, "________")
		fmt.Fprintf(writer, "| driver: %s\n", driverName)
		inputs, outputs := driver.GetAllIo()
		fmt.Fprintf(writer, "| in pins: ")
		for _, inpin := range inputs {
			fmt.Fprintf(writer, "%d, ", inpin)
		}
		fmt.Fprintf(writer, "\n| out pins: ")
		for _, outpin := range outputs {
			fmt.Fprintf(writer, "%d, ", outpin)
		}
		fmt.Fprintln(writer)
		fmt.Fprintln(writer, "--------")
	}
	fmt.Fprintln(writer, "-----------------------------")
	fmt.Fprintln(writer)
}

func (lk *LedKit) StartHomeKit(ctx context.Context, firmwareVersion string) error {
	hkName := lk.Name
	if len(hkName) < 1 {
		hkName = homeKitBridgeName
	}
	bridge := accessory.NewBridge(accessory.Info{
		Name:         hkName,
		Manufacturer: homeKitBridgeAuthor,
		Firmware:     firmwareVersion,
	})

	var store hap.Store
	if len(lk.HkDirectory) > 1 {
		store = hap.NewFsStore(lk.HkDirectory)
	} else {
		store = hap.NewFsStore(defaultHomeKitDirectory)
	}
	hkServer, err := hap.NewServer(store, bridge.A, lk.GetHkAccessories(firmwareVersion)...)
	if err != nil {
		return errors.Wrap(err, "failed to create HomeKit server")
	}
	hkServer.Pin = lk.HkPin
	if len(lk.HkAddress) > 0 {
		hkServer.Addr = lk.HkAddress
	}

	if lk.HkDebug {
		hklog.Debug.Enable()
		dnslog.Debug.Enable()
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	signal.Notify(c, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		<-c
		// Stop delivering signals.
		signal.Stop(c)
		// Cancel the context to stop the server.
		cancel()
	}()

	return hkServer.ListenAndServe(ctx)
}

func (lk *LedKit) GetHkAccessories(firmwareVersion string) (acc []*accessory.A) {
	acc = []*accessory.A{}

	for _, th := range lk.getHkThings() {
		accessory := th.GetHk()
		if accessory != nil {
			if accessory.Info != nil && accessory.Info.FirmwareRevision != nil {
				accessory.Info.FirmwareRevision.SetValue(firmwareVersion)
			}
			accessory.Id = th.GetUniqueId()
			acc = append(acc, accessory)
		}
	}

	return
}

// StartStatusServer exposes the engine snapshot and the remote trigger
// injection endpoint over HTTP. No-op when HttpAddr is not configured.
func (lk *LedKit) StartStatusServer() error {
	if len(lk.HttpAddr) == 0 {
		return nil
	}

	lk.status = NewStatusServer(lk.HttpAddr, lk.HttpToken, lk.engine, lk.getLogger())
	return lk.status.Start()
}

func (lk *LedKit) InitMqtt() (err error) {
	if len(lk.MqttBroker) == 0 {
		err = errors.New("mqtt broker not set")
		return
	}

	mc, err := mqtt.NewMqttClient(lk.MqttBroker, lk.Name)
	if err != nil {
		err = errors.Wrap(err, "failed to create mqtt client")
		return
	}

	lk.mqttClient = mc

	bridge := NewMqttBridge(mc, lk.MqttTopicPrefix, lk.engine, lk.getLogger())
	lk.engine.Observe(bridge)

	err = mc.Connect([]mqtt.MqttHandler{bridge})
	if err != nil {
		err = errors.Wrap(err, "failed to connect to mqtt broker")
	}

	return
}
