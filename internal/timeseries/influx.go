// Package timeseries exports moisture predictions to InfluxDB.
package timeseries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/corn-moisture/platform/config"
	"github.com/corn-moisture/platform/internal/logging"
	"github.com/corn-moisture/platform/types"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const (
	MeasurementPrediction = "moisture_prediction"
	MeasurementStatistics = "moisture_statistics"

	pingTimeout   = 5 * time.Second
	batchSize     = 100
	flushInterval = 10_000 // milliseconds
)

// pointWriter is the subset of api.WriteAPI used by Recorder.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Recorder queues prediction points on a non-blocking write API. Write
// failures arrive asynchronously and are logged.
type Recorder struct {
	client influxdb2.Client
	writer pointWriter
	log    logging.Logger
}

// NewRecorder connects to InfluxDB and checks it answers a ping.
func NewRecorder(ctx context.Context, cfg config.InfluxDBConfig, log logging.Logger) (*Recorder, error) {
	if !cfg.Enabled() {
		return nil, errors.New("influxdb url is required")
	}
	if strings.TrimSpace(cfg.Org) == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("influxdb org and bucket are required")
	}
	if log == nil {
		log = logging.Nop()
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(batchSize).
			SetFlushInterval(flushInterval),
	)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb ping: %w", err)
	}
	if !healthy {
		client.Close()
		return nil, errors.New("influxdb ping: server not healthy")
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	r := &Recorder{client: client, writer: writeAPI, log: log}
	go r.logErrors(writeAPI)
	return r, nil
}

func (r *Recorder) logErrors(writeAPI api.WriteAPI) {
	for err := range writeAPI.Errors() {
		r.log.Error(context.Background(), "influxdb write failed", "error", err)
	}
}

// Record queues the points of p. It never blocks on the network.
func (r *Recorder) Record(ctx context.Context, p types.Prediction) error {
	for _, point := range Points(p) {
		r.writer.WritePoint(point)
	}
	return nil
}

// Close flushes pending points and releases the client.
func (r *Recorder) Close() error {
	r.writer.Flush()
	if r.client != nil {
		r.client.Close()
	}
	return nil
}

// Points converts p into one point per numeric prediction item and, when
// the statistics parse, one summary point. All points carry date_time.
func Points(p types.Prediction) []*write.Point {
	var points []*write.Point
	ts := p.DateTime

	var items []types.PredictionItem
	if err := json.Unmarshal(p.Predictions, &items); err == nil {
		for i, item := range items {
			if item.Prediction == nil {
				continue
			}
			tags := map[string]string{
				"sensor_id": p.SensorID,
				"queue":     p.Queue,
				"item":      itemTag(item.ID, i),
			}
			points = append(points, write.NewPoint(MeasurementPrediction, tags,
				map[string]any{"percent": *item.Prediction}, ts))
		}
	}

	var summary types.Statistics
	if err := json.Unmarshal(p.Statistics, &summary); err == nil && summary.N > 0 {
		fields := map[string]any{
			"n":        summary.N,
			"min":      summary.Min,
			"max":      summary.Max,
			"range":    summary.Range,
			"average":  summary.Average,
			"sd":       summary.SD,
			"median":   summary.Median,
			"variance": summary.Variance,
			"skewness": summary.Skewness,
			"kurtosis": summary.Kurtosis,
		}
		if summary.CV != nil {
			fields["cv"] = *summary.CV
		}
		tags := map[string]string{"sensor_id": p.SensorID, "queue": p.Queue}
		points = append(points, write.NewPoint(MeasurementStatistics, tags, fields, ts))
	}

	return points
}

// itemTag renders the item id as a tag value, falling back to its 1-based position.
func itemTag(raw json.RawMessage, index int) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil && n != "" {
		return n.String()
	}
	return fmt.Sprint(index + 1)
}
