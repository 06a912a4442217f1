package ledkit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubertat/ledkit/drivers"
)

func newTestKit(t *testing.T) *LedKit {
	t.Helper()

	lk := &LedKit{
		Name:         "ledkit-test",
		TickInterval: "1h",
	}

	for i := 0; i < 4; i++ {
		lk.Leds = append(lk.Leds, &Led{
			Name:           "led",
			DriverName:     "mock_driver",
			OutPin:         uint16(i + 1),
			Index:          i,
			DisableHomekit: true,
		})
		lk.Switches = append(lk.Switches, &TriggerSwitch{
			Name:           "switch",
			DriverName:     "mock_driver",
			InPin:          uint16(i + 11),
			SwitchId:       i,
			DisableHomekit: true,
		})
	}

	lk.FakeDriver = &drivers.MockIoDriver{}

	require.NoError(t, lk.InitDrivers(context.Background()))
	require.NoError(t, lk.InitIos())
	t.Cleanup(func() { lk.Close() })

	return lk
}

func pressAt(t *testing.T, lk *LedKit, pin uint16, ts time.Time) {
	t.Helper()

	input, err := lk.FakeDriver.GetMockInput(pin)
	require.NoError(t, err)
	input.PushAt(ts)
}

func TestKitSwitchPressSelectsMode(t *testing.T) {
	lk := newTestKit(t)
	base := time.Now()

	pressAt(t, lk, 11, base)
	assert.Equal(t, ModeAllBlink, lk.Engine().Mode())

	pressAt(t, lk, 12, base.Add(time.Second))
	assert.Equal(t, ModeSweep, lk.Engine().Mode())
	assert.Equal(t, DirectionForward, lk.Engine().Direction())

	pressAt(t, lk, 14, base.Add(2*time.Second))
	assert.Equal(t, ModeIdle, lk.Engine().Mode())
}

func TestKitDebounceSuppressesDoubleEdge(t *testing.T) {
	lk := newTestKit(t)
	base := time.Now()

	pressAt(t, lk, 12, base)
	require.Equal(t, ModeSweep, lk.Engine().Mode())
	require.Equal(t, DirectionForward, lk.Engine().Direction())

	// Contact bounce 50ms later must not re-enter sweep.
	pressAt(t, lk, 12, base.Add(50*time.Millisecond))
	assert.Equal(t, DirectionForward, lk.Engine().Direction())

	// A genuine second press toggles direction.
	pressAt(t, lk, 12, base.Add(300*time.Millisecond))
	assert.Equal(t, DirectionReverse, lk.Engine().Direction())
}

func TestKitCloseStopsAnimatorAndReleasesDrivers(t *testing.T) {
	lk := newTestKit(t)

	pressAt(t, lk, 11, time.Now())
	require.Equal(t, int32(1), lk.Engine().active.Load())

	require.NoError(t, lk.Close())
	assert.Equal(t, int32(0), lk.Engine().active.Load())
	assert.False(t, lk.FakeDriver.IsReady())

	// Subscriptions are dropped before the engine stops, so an edge
	// arriving after Close must not restart an animator.
	pressAt(t, lk, 12, time.Now().Add(time.Second))
	assert.Equal(t, int32(0), lk.Engine().active.Load())
	assert.Equal(t, ModeAllBlink, lk.Engine().Mode())
}

func TestKitCloseReturnsDriverError(t *testing.T) {
	lk := newTestKit(t)
	lk.FakeDriver.CloseError = errors.New("i2c bus gone")

	err := lk.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "i2c bus gone")
}

func TestKitRejectsEmptyLedList(t *testing.T) {
	lk := &LedKit{FakeDriver: &drivers.MockIoDriver{}}

	require.NoError(t, lk.InitDrivers(context.Background()))
	err := lk.InitIos()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one led")
}

func TestLedInitRunsOnce(t *testing.T) {
	driver := &drivers.MockIoDriver{}
	require.NoError(t, driver.Setup(context.Background(), []uint16{}, []uint16{5}))

	led := &Led{Name: "led", DriverName: "mock_driver", OutPin: 5, Index: 0}
	require.NoError(t, led.Init(driver))

	output := led.Output()
	hk := led.GetHk()
	require.NotNil(t, output)
	require.NotNil(t, hk)

	// A second Init must keep the existing binding instead of
	// re-requesting the output and rebuilding the accessory.
	require.NoError(t, led.Init(driver))
	assert.Same(t, output, led.Output())
	assert.Same(t, hk, led.GetHk())
}

func TestKitRejectsGappedLedIndices(t *testing.T) {
	lk := &LedKit{
		Leds: []*Led{
			{Name: "a", DriverName: "mock_driver", OutPin: 1, Index: 0, DisableHomekit: true},
			{Name: "b", DriverName: "mock_driver", OutPin: 2, Index: 2, DisableHomekit: true},
		},
		FakeDriver: &drivers.MockIoDriver{},
	}

	require.NoError(t, lk.InitDrivers(context.Background()))
	err := lk.InitIos()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "indices")
}

func TestKitConfigUnmarshal(t *testing.T) {
	configJson := `{
		"Name": "hallway",
		"TickInterval": "2s",
		"DebounceWindow": "200ms",
		"HttpAddr": ":8811",
		"Leds": [
			{"Name": "led 0", "DriverName": "chardev", "OutPin": 23, "Index": 0},
			{"Name": "led 1", "DriverName": "chardev", "OutPin": 24, "Index": 1}
		],
		"Switches": [
			{"Name": "blink", "DriverName": "chardev", "InPin": 4, "SwitchId": 0}
		],
		"Chardev": {"Chip": "gpiochip0"}
	}`

	lk := &LedKit{}
	require.NoError(t, json.Unmarshal([]byte(configJson), lk))

	assert.Equal(t, "hallway", lk.Name)
	assert.Len(t, lk.Leds, 2)
	assert.Len(t, lk.Switches, 1)
	require.NotNil(t, lk.Chardev)
	assert.Equal(t, "gpiochip0", lk.Chardev.Chip)
	assert.Equal(t, uint16(24), lk.Leds[1].OutPin)
	assert.Equal(t, 0, lk.Switches[0].SwitchId)
}
