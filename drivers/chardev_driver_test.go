package drivers

import (
	"testing"
	"time"

	"github.com/warthog618/gpiod"
)

// Pins the handler signature expected by the line request options: the
// event handler goes through WithEventHandler, the edge selection
// options carry no arguments.
var _ = gpiod.WithEventHandler((&ChardevInput{}).handleEvent)

func TestChardevInputDeliversRisingEdges(t *testing.T) {
	input := &ChardevInput{
		pin:       23,
		listeners: make(map[int]EdgeListener),
	}

	listener := &recordingListener{}
	cancel, err := input.SubscribeToEdge(listener)
	if err != nil {
		t.Fatalf("SubscribeToEdge returned error: %v", err)
	}

	input.handleEvent(gpiod.LineEvent{
		Offset:    23,
		Timestamp: time.Second,
		Type:      gpiod.LineEventRisingEdge,
	})

	if len(listener.events) != 1 {
		t.Fatalf("expected 1 edge event, got %d", len(listener.events))
	}
	if listener.events[0].Pin != 23 {
		t.Errorf("expected edge on pin 23, got %d", listener.events[0].Pin)
	}

	input.handleEvent(gpiod.LineEvent{
		Offset: 23,
		Type:   gpiod.LineEventFallingEdge,
	})

	if len(listener.events) != 1 {
		t.Errorf("falling edge must be filtered out, got %d events", len(listener.events))
	}

	cancel()
	input.handleEvent(gpiod.LineEvent{
		Offset: 23,
		Type:   gpiod.LineEventRisingEdge,
	})
	if len(listener.events) != 1 {
		t.Errorf("listener still firing after cancel, got %d events", len(listener.events))
	}
}

func TestChardevDefaultChipName(t *testing.T) {
	if defaultChipName != "gpiochip0" {
		t.Errorf("unexpected default chip name: %s", defaultChipName)
	}
}
