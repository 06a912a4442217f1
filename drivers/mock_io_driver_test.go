package drivers

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func assertBools(t testing.TB, got, want bool) {
	t.Helper()

	if got != want {
		t.Errorf("got %v want %v", got, want)
	}
}

func assertUint16Slices(t testing.TB, got, want []uint16) {
	t.Helper()

	if len(got) != len(want) {
		t.Errorf("len(got) = %d len(want) = %d", len(got), len(want))
		return
	}

	for key, val := range got {
		if want[key] != val {
			t.Errorf("for key [%d] got: %d want: %d", key, val, want[key])
		}
	}
}

func TestMockInputGetState(t *testing.T) {
	inEnabled := MockInput{State: true}
	inDisabled := MockInput{State: false}

	state, _ := inEnabled.GetState()
	if state != true {
		t.Error("MockInput GetState failed")
	}

	state, _ = inDisabled.GetState()
	if state != false {
		t.Error("MockInput GetState failed")
	}
}

func TestMockOutputSetAndGetState(t *testing.T) {
	out := MockOutput{}

	out.Set(true)
	state, _ := out.GetState()
	assertBools(t, state, true)

	out.Set(false)
	state, _ = out.GetState()
	assertBools(t, state, false)
}

func TestMockDriverSetup(t *testing.T) {
	driver := MockIoDriver{}

	assertBools(t, driver.IsReady(), false)

	ins := []uint16{2, 7}
	outs := []uint16{1}
	err := driver.Setup(context.Background(), ins, outs)
	if err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}

	assertBools(t, driver.IsReady(), true)

	gotIns, gotOuts := driver.GetAllIo()
	assertUint16Slices(t, gotIns, ins)
	assertUint16Slices(t, gotOuts, outs)

	_, err = driver.GetInput(3)
	if err == nil {
		t.Error("expected error for missing input, got nil")
	}

	_, err = driver.GetOutput(1)
	if err != nil {
		t.Errorf("expected output 1 present, got error: %v", err)
	}
}

type recordingListener struct {
	events []EdgeEvent
}

func (rl *recordingListener) FireEdge(event EdgeEvent) {
	rl.events = append(rl.events, event)
}

func TestMockInputEdgeInjection(t *testing.T) {
	driver := MockIoDriver{}
	err := driver.Setup(context.Background(), []uint16{4}, []uint16{})
	if err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}

	input, err := driver.GetMockInput(4)
	if err != nil {
		t.Fatalf("GetMockInput returned error: %v", err)
	}

	listener := &recordingListener{}
	cancel, err := input.SubscribeToEdge(listener)
	if err != nil {
		t.Fatalf("SubscribeToEdge returned error: %v", err)
	}

	ts := time.Now()
	input.PushAt(ts)
	input.PushAt(ts.Add(time.Second))

	if len(listener.events) != 2 {
		t.Fatalf("expected 2 edge events, got %d", len(listener.events))
	}
	if listener.events[0].Pin != 4 {
		t.Errorf("expected edge on pin 4, got %d", listener.events[0].Pin)
	}
	if !listener.events[1].Timestamp.Equal(ts.Add(time.Second)) {
		t.Errorf("timestamp not carried through: %v", listener.events[1].Timestamp)
	}

	cancel()
	input.Push()
	if len(listener.events) != 2 {
		t.Errorf("listener still firing after cancel, got %d events", len(listener.events))
	}
}

func TestMockOutputMonitorStateChanges(t *testing.T) {
	driver := MockIoDriver{}
	err := driver.Setup(context.Background(), []uint16{}, []uint16{9})
	if err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}

	buf := &bytes.Buffer{}
	driver.MonitorStateChanges(buf)

	out, _ := driver.GetOutput(9)
	out.Set(true)
	out.Set(true)
	out.Set(false)

	lines := strings.Count(buf.String(), "\n")
	if lines != 2 {
		t.Errorf("expected 2 state change lines, got %d:\n%s", lines, buf.String())
	}
}
