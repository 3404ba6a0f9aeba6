package types

import (
	"encoding/json"
	"time"
)

// Prediction is one batch of moisture predictions for a sensor reading run.
type Prediction struct {
	// ID is the serial identifier of the record.
	ID int64 `json:"id" db:"id"`

	// SensorID identifies the sensor that produced the readings.
	SensorID string `json:"sensor_id" db:"sensor_id"`

	// Queue groups readings requested together so they can be fetched later.
	Queue string `json:"queue" db:"queue"`

	// DateTime is when the readings were taken.
	DateTime time.Time `json:"date_time" db:"date_time"`

	// Predictions is the ordered list of predicted values, stored as-is.
	Predictions json.RawMessage `json:"predictions" db:"predictions"`

	// Statistics is the summary of the run, stored as-is.
	Statistics json.RawMessage `json:"statistics" db:"statistics"`

	// CreatedAt is when the record was stored.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PredictionItem is the typed view of one entry of Prediction.Predictions.
// ID is kept raw because producers send both numbers and strings.
type PredictionItem struct {
	ID         json.RawMessage `json:"id"`
	Prediction *float64        `json:"prediction,omitempty"`
	Unit       string          `json:"unit,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Statistics is the typed view of Prediction.Statistics.
type Statistics struct {
	N        int      `json:"N"`
	Min      float64  `json:"min"`
	Max      float64  `json:"max"`
	Range    float64  `json:"range"`
	Average  float64  `json:"average"`
	SD       float64  `json:"SD"`
	CV       *float64 `json:"CV"`
	Median   float64  `json:"median"`
	Variance float64  `json:"variance"`
	Skewness float64  `json:"skewness"`
	Kurtosis float64  `json:"kurtosis"`
}

// Prediction event types published on the events channel.
const (
	PredictionCreated = "prediction.created"
	PredictionUpdated = "prediction.updated"
	PredictionDeleted = "prediction.deleted"
)

// PredictionEvent is the message published when a prediction changes.
type PredictionEvent struct {
	Type       string     `json:"type"`
	Prediction Prediction `json:"prediction"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// PredictionUpdate lists the prediction fields that may be patched.
// Nil fields are left untouched; id and created_at are never writable.
type PredictionUpdate struct {
	SensorID    *string
	Queue       *string
	DateTime    *time.Time
	Predictions json.RawMessage
	Statistics  json.RawMessage
}

// Empty reports whether no field is set.
func (u PredictionUpdate) Empty() bool {
	return u.SensorID == nil && u.Queue == nil && u.DateTime == nil && u.Predictions == nil && u.Statistics == nil
}
