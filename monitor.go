package ledkit

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/pkg/errors"
)

const defaultInfluxMeasurement = "mode_transitions"
const influxWriteTimeout = 5 * time.Second

// InfluxMonitor records every mode transition as a point, purely as
// diagnostic telemetry. Writes run on their own goroutine and failures
// are logged and dropped: the trigger path never waits on the database.
type InfluxMonitor struct {
	Host         string
	Organization string
	Bucket       string
	Measurement  string
	Token        string

	client   influxdb2.Client
	writeApi api.WriteAPIBlocking
	logger   *log.Logger
}

func (im *InfluxMonitor) Init(logger *log.Logger) error {
	if len(im.Host) == 0 {
		return errors.New("influx host not set")
	}

	if len(im.Measurement) == 0 {
		im.Measurement = defaultInfluxMeasurement
	}

	if logger == nil {
		logger = log.Default()
	}
	im.logger = logger

	im.client = influxdb2.NewClient(im.Host, im.Token)
	im.writeApi = im.client.WriteAPIBlocking(im.Organization, im.Bucket)

	return nil
}

func (im *InfluxMonitor) ModeChanged(status EngineStatus) {
	if im.writeApi == nil {
		return
	}

	lit := 0
	for _, on := range status.Outputs {
		if on {
			lit++
		}
	}

	point := influxdb2.NewPoint(im.Measurement,
		map[string]string{
			"mode":      status.ModeName,
			"direction": status.DirName,
		},
		map[string]interface{}{
			"position":    status.Position,
			"outputs_lit": lit,
		},
		time.Now())

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), influxWriteTimeout)
		defer cancel()

		err := im.writeApi.WritePoint(ctx, point)
		if err != nil {
			im.logger.Warn("failed to write mode transition point", "err", err)
		}
	}()
}

func (im *InfluxMonitor) Close() {
	if im.client != nil {
		im.client.Close()
	}
}
