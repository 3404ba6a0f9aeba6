package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/corn-moisture/platform/internal/logging"
	"github.com/corn-moisture/platform/internal/stats"
	"github.com/corn-moisture/platform/types"
	"github.com/google/uuid"
)

// dateTimeLayouts are tried in order when parsing date_time.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// PredictionRepository defines persistence operations for predictions.
type PredictionRepository interface {
	Create(ctx context.Context, p types.Prediction) (types.Prediction, error)
	List(ctx context.Context) ([]types.Prediction, error)
	ListBySensor(ctx context.Context, sensorID string) ([]types.Prediction, error)
	ListByQueue(ctx context.Context, queue string) ([]types.Prediction, error)
	Update(ctx context.Context, id int64, upd types.PredictionUpdate) (types.Prediction, error)
	Delete(ctx context.Context, id int64) (types.Prediction, error)
}

// PredictionArchive keeps a copy of every stored prediction outside the database.
type PredictionArchive interface {
	Save(ctx context.Context, p types.Prediction) error
	Remove(ctx context.Context, p types.Prediction) error
}

// EventPublisher sends serialized events to a named channel.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// PredictionRecorder exports predictions to a time-series store.
type PredictionRecorder interface {
	Record(ctx context.Context, p types.Prediction) error
}

// PredictionInput is the body accepted when a prediction is created,
// over HTTP or from the ingest channel.
type PredictionInput struct {
	SensorID    string          `json:"sensor_id"`
	Queue       string          `json:"queue"`
	DateTime    string          `json:"date_time"`
	Predictions json.RawMessage `json:"predictions"`
	Statistics  json.RawMessage `json:"statistics"`
}

// PredictionPatchInput is the body accepted when a prediction is updated.
// Only these keys are writable.
type PredictionPatchInput struct {
	SensorID    *string         `json:"sensor_id"`
	Queue       *string         `json:"queue"`
	DateTime    *string         `json:"date_time"`
	Predictions json.RawMessage `json:"predictions"`
	Statistics  json.RawMessage `json:"statistics"`
}

// PredictionService encapsulates prediction use-cases.
type PredictionService struct {
	repo     PredictionRepository
	archive  PredictionArchive
	events   EventPublisher
	channel  string
	recorder PredictionRecorder
	log      logging.Logger
	now      func() time.Time
}

// PredictionOption configures optional collaborators of PredictionService.
type PredictionOption func(*PredictionService)

// WithArchive stores a JSON copy of each prediction after every change.
func WithArchive(archive PredictionArchive) PredictionOption {
	return func(s *PredictionService) { s.archive = archive }
}

// WithEvents publishes a PredictionEvent to channel after every change.
func WithEvents(publisher EventPublisher, channel string) PredictionOption {
	return func(s *PredictionService) {
		s.events = publisher
		s.channel = channel
	}
}

// WithRecorder exports created predictions as time-series points.
func WithRecorder(recorder PredictionRecorder) PredictionOption {
	return func(s *PredictionService) { s.recorder = recorder }
}

// WithPredictionLogger sets the logger used for side-effect failures.
func WithPredictionLogger(log logging.Logger) PredictionOption {
	return func(s *PredictionService) { s.log = log }
}

// NewPredictionService constructs a PredictionService over repo with the given options.
func NewPredictionService(repo PredictionRepository, opts ...PredictionOption) *PredictionService {
	s := &PredictionService{
		repo: repo,
		log:  logging.Nop(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the input, fills in queue and statistics when absent,
// and stores the prediction.
func (s *PredictionService) Create(ctx context.Context, in PredictionInput) (types.Prediction, error) {
	verr := &ValidationError{}

	sensorID := strings.TrimSpace(in.SensorID)
	if sensorID == "" {
		verr.add("sensor_id", "Sensor ID is required")
	}
	var dateTime time.Time
	if strings.TrimSpace(in.DateTime) == "" {
		verr.add("date_time", "Date time is required")
	} else if parsed, err := parseDateTime(in.DateTime); err != nil {
		verr.add("date_time", "Date time must be a valid timestamp")
	} else {
		dateTime = parsed
	}
	if !isJSONKind(in.Predictions, '[') {
		verr.add("predictions", "Predictions must be an array")
	}
	if len(in.Statistics) > 0 && !isNull(in.Statistics) && !isJSONKind(in.Statistics, '{') {
		verr.add("statistics", "Statistics must be an object")
	}
	if err := verr.err(); err != nil {
		return types.Prediction{}, err
	}

	queue := strings.TrimSpace(in.Queue)
	if queue == "" {
		queue = uuid.NewString()
	}
	statistics := in.Statistics
	if len(statistics) == 0 || isNull(statistics) {
		statistics = summarize(in.Predictions)
	}

	created, err := s.repo.Create(ctx, types.Prediction{
		SensorID:    sensorID,
		Queue:       queue,
		DateTime:    dateTime,
		Predictions: in.Predictions,
		Statistics:  statistics,
	})
	if err != nil {
		return types.Prediction{}, err
	}

	s.saveArchive(ctx, created)
	s.publish(ctx, types.PredictionCreated, created)
	if s.recorder != nil {
		if err := s.recorder.Record(ctx, created); err != nil {
			s.log.Warn(ctx, "record prediction", "id", created.ID, "error", err)
		}
	}
	return created, nil
}

func (s *PredictionService) List(ctx context.Context) ([]types.Prediction, error) {
	return s.repo.List(ctx)
}

func (s *PredictionService) ListBySensor(ctx context.Context, sensorID string) ([]types.Prediction, error) {
	return s.repo.ListBySensor(ctx, sensorID)
}

func (s *PredictionService) ListByQueue(ctx context.Context, queue string) ([]types.Prediction, error) {
	return s.repo.ListByQueue(ctx, queue)
}

// Update applies the allow-listed fields of in to prediction id.
func (s *PredictionService) Update(ctx context.Context, id int64, in PredictionPatchInput) (types.Prediction, error) {
	verr := &ValidationError{}
	var upd types.PredictionUpdate

	if in.SensorID != nil {
		sensorID := strings.TrimSpace(*in.SensorID)
		if sensorID == "" {
			verr.add("sensor_id", "Sensor ID is required")
		}
		upd.SensorID = &sensorID
	}
	if in.Queue != nil {
		queue := strings.TrimSpace(*in.Queue)
		if queue == "" {
			verr.add("queue", "Queue must not be empty")
		}
		upd.Queue = &queue
	}
	if in.DateTime != nil {
		parsed, err := parseDateTime(*in.DateTime)
		if err != nil {
			verr.add("date_time", "Date time must be a valid timestamp")
		}
		upd.DateTime = &parsed
	}
	if in.Predictions != nil {
		if !isJSONKind(in.Predictions, '[') {
			verr.add("predictions", "Predictions must be an array")
		}
		upd.Predictions = in.Predictions
	}
	if in.Statistics != nil {
		if !isJSONKind(in.Statistics, '{') {
			verr.add("statistics", "Statistics must be an object")
		}
		upd.Statistics = in.Statistics
	}
	if err := verr.err(); err != nil {
		return types.Prediction{}, err
	}
	if upd.Empty() {
		return types.Prediction{}, NewValidationError("body", "No updatable fields provided")
	}

	updated, err := s.repo.Update(ctx, id, upd)
	if err != nil {
		return types.Prediction{}, err
	}
	s.saveArchive(ctx, updated)
	s.publish(ctx, types.PredictionUpdated, updated)
	return updated, nil
}

// Delete removes prediction id and returns the removed row.
func (s *PredictionService) Delete(ctx context.Context, id int64) (types.Prediction, error) {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return types.Prediction{}, err
	}
	if s.archive != nil {
		if err := s.archive.Remove(ctx, deleted); err != nil {
			s.log.Warn(ctx, "remove archived prediction", "id", deleted.ID, "error", err)
		}
	}
	s.publish(ctx, types.PredictionDeleted, deleted)
	return deleted, nil
}

// Ingest stores one message from the ingest channel. Malformed messages are
// logged and dropped; storage failures are returned so the message is redelivered.
func (s *PredictionService) Ingest(ctx context.Context, data []byte) error {
	var in PredictionInput
	if err := json.Unmarshal(data, &in); err != nil {
		s.log.Warn(ctx, "drop malformed prediction message", "error", err)
		return nil
	}

	created, err := s.Create(ctx, in)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			s.log.Warn(ctx, "drop invalid prediction message", "error", err)
			return nil
		}
		return fmt.Errorf("ingest prediction: %w", err)
	}
	s.log.Info(ctx, "prediction ingested", "id", created.ID, "sensor_id", created.SensorID, "queue", created.Queue)
	return nil
}

func (s *PredictionService) saveArchive(ctx context.Context, p types.Prediction) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Save(ctx, p); err != nil {
		s.log.Warn(ctx, "archive prediction", "id", p.ID, "error", err)
	}
}

func (s *PredictionService) publish(ctx context.Context, eventType string, p types.Prediction) {
	if s.events == nil || s.channel == "" {
		return
	}
	data, err := json.Marshal(types.PredictionEvent{
		Type:       eventType,
		Prediction: p,
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		s.log.Error(ctx, "encode prediction event", "error", err)
		return
	}
	attrs := map[string]string{"type": eventType, "sensor_id": p.SensorID}
	if _, err := s.events.Publish(ctx, s.channel, data, attrs); err != nil {
		s.log.Warn(ctx, "publish prediction event", "type", eventType, "id", p.ID, "error", err)
	}
}

func parseDateTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date_time %q", raw)
}

// summarize derives statistics from the numeric prediction values.
// It returns an empty object when there are none.
func summarize(raw json.RawMessage) json.RawMessage {
	var items []types.PredictionItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return json.RawMessage(`{}`)
	}
	values := make([]float64, 0, len(items))
	for _, item := range items {
		if item.Prediction != nil {
			values = append(values, *item.Prediction)
		}
	}
	summary, ok := stats.Summarize(values)
	if !ok {
		return json.RawMessage(`{}`)
	}
	out, err := json.Marshal(summary)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return out
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isJSONKind(raw json.RawMessage, open byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == open && json.Valid(trimmed)
}
