package ledkit

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stalledWriteApi blocks every WritePoint until released, simulating
// an unreachable database.
type stalledWriteApi struct {
	release chan struct{}
	points  chan *write.Point
}

func (s *stalledWriteApi) WriteRecord(ctx context.Context, line ...string) error {
	return nil
}

func (s *stalledWriteApi) WritePoint(ctx context.Context, point ...*write.Point) error {
	<-s.release
	for _, p := range point {
		s.points <- p
	}
	return nil
}

func (s *stalledWriteApi) EnableBatching() {}

func (s *stalledWriteApi) Flush(ctx context.Context) error {
	return nil
}

func TestInfluxMonitorNeverBlocksDispatch(t *testing.T) {
	stub := &stalledWriteApi{
		release: make(chan struct{}),
		points:  make(chan *write.Point, 1),
	}
	im := &InfluxMonitor{
		Measurement: defaultInfluxMeasurement,
		writeApi:    stub,
		logger:      log.New(io.Discard),
	}

	start := time.Now()
	im.ModeChanged(EngineStatus{
		ModeName: "sweep",
		DirName:  "forward",
		Position: 1,
		Outputs:  []bool{true, false, false, false},
	})
	require.Less(t, time.Since(start), time.Second,
		"observer must return without waiting on the database")

	close(stub.release)
	select {
	case point := <-stub.points:
		assert.Equal(t, defaultInfluxMeasurement, point.Name())
	case <-time.After(time.Second):
		t.Fatal("mode transition point was never written")
	}
}

func TestInfluxMonitorInitRequiresHost(t *testing.T) {
	im := &InfluxMonitor{}
	require.Error(t, im.Init(log.New(io.Discard)))
}
