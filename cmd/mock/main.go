package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/hubertat/ledkit"
	"github.com/hubertat/ledkit/drivers"
)

var (
	Version string
	Build   string
)

// Runs the full subsystem on the mock driver, simulating switch
// presses from a timer so the indicator bank can be observed without
// hardware. Should work on MacOs.
func main() {
	var err error

	log.Println("ledkit started")
	log.Println("mock instance for testing purposes")

	lk := &ledkit.LedKit{
		Name:         "ledkit-mock",
		TickInterval: "500ms",
	}

	for i, name := range []string{"led left", "led mid-left", "led mid-right", "led right"} {
		lk.Leds = append(lk.Leds, &ledkit.Led{
			Name:           name,
			DriverName:     "mock_driver",
			OutPin:         uint16(i + 1),
			Index:          i,
			DisableHomekit: true,
		})
	}

	for i, name := range []string{"blink switch", "sweep switch", "manual switch", "reset switch"} {
		lk.Switches = append(lk.Switches, &ledkit.TriggerSwitch{
			Name:           name,
			DriverName:     "mock_driver",
			InPin:          uint16(i + 11),
			SwitchId:       i,
			DisableHomekit: true,
		})
	}

	lk.FakeDriver = &drivers.MockIoDriver{}

	log.Println("will init ledkit drivers...")
	err = lk.InitDrivers(context.Background())
	defer lk.Close()
	if err != nil {
		panic(err)
	}

	log.Println("will init ledkit IOs...")
	err = lk.InitIos()
	if err != nil {
		panic(err)
	}

	lk.FakeDriver.MonitorStateChanges(os.Stdout)

	lk.PrintIoStatus(os.Stdout)

	presses := []uint16{11, 12, 12, 13, 14}
	for _, pin := range presses {
		input, err := lk.FakeDriver.GetMockInput(pin)
		if err != nil {
			panic(err)
		}
		log.Printf("pressing switch on pin %d\n", pin)
		input.Push()
		time.Sleep(3 * time.Second)
	}

	log.Println("mock run finished")
}
