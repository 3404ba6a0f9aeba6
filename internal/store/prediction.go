package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/corn-moisture/platform/types"
)

const predictionColumns = `id, sensor_id, queue, date_time, predictions, statistics, created_at`

// PredictionRepository handles persistence for moisture.predictions.
type PredictionRepository struct {
	db *sql.DB
}

// NewPredictionRepository constructs a PredictionRepository over db.
func NewPredictionRepository(db *sql.DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

func scanPrediction(row rowScanner) (types.Prediction, error) {
	var p types.Prediction
	var predictionsJSON, statisticsJSON []byte
	if err := row.Scan(
		&p.ID,
		&p.SensorID,
		&p.Queue,
		&p.DateTime,
		&predictionsJSON,
		&statisticsJSON,
		&p.CreatedAt,
	); err != nil {
		return types.Prediction{}, err
	}
	p.Predictions = json.RawMessage(predictionsJSON)
	p.Statistics = json.RawMessage(statisticsJSON)
	return p, nil
}

func (r *PredictionRepository) Create(ctx context.Context, p types.Prediction) (types.Prediction, error) {
	const query = `
		INSERT INTO moisture.predictions (sensor_id, queue, date_time, predictions, statistics)
		VALUES ($1, $2, $3, $4::jsonb, $5::jsonb)
		RETURNING ` + predictionColumns
	created, err := scanPrediction(r.db.QueryRowContext(
		ctx,
		query,
		p.SensorID,
		p.Queue,
		p.DateTime,
		jsonArg(p.Predictions, "[]"),
		jsonArg(p.Statistics, "{}"),
	))
	if err != nil {
		return types.Prediction{}, fmt.Errorf("create prediction: %w", err)
	}
	return created, nil
}

func (r *PredictionRepository) List(ctx context.Context) ([]types.Prediction, error) {
	const query = `SELECT ` + predictionColumns + ` FROM moisture.predictions ORDER BY id`
	return r.list(ctx, "list predictions", query)
}

func (r *PredictionRepository) ListBySensor(ctx context.Context, sensorID string) ([]types.Prediction, error) {
	const query = `SELECT ` + predictionColumns + ` FROM moisture.predictions WHERE sensor_id = $1 ORDER BY id`
	return r.list(ctx, "list predictions by sensor", query, sensorID)
}

func (r *PredictionRepository) ListByQueue(ctx context.Context, queue string) ([]types.Prediction, error) {
	const query = `SELECT ` + predictionColumns + ` FROM moisture.predictions WHERE queue = $1 ORDER BY id`
	return r.list(ctx, "list predictions by queue", query, queue)
}

func (r *PredictionRepository) list(ctx context.Context, op, query string, args ...any) ([]types.Prediction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	predictions := make([]types.Prediction, 0)
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		predictions = append(predictions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return predictions, nil
}

// Update writes only the allow-listed fields set in upd and returns the stored row.
func (r *PredictionRepository) Update(ctx context.Context, id int64, upd types.PredictionUpdate) (types.Prediction, error) {
	var set assignments
	if upd.SensorID != nil {
		set.add("sensor_id", *upd.SensorID)
	}
	if upd.Queue != nil {
		set.add("queue", *upd.Queue)
	}
	if upd.DateTime != nil {
		set.add("date_time", *upd.DateTime)
	}
	if upd.Predictions != nil {
		set.add("predictions", string(upd.Predictions))
	}
	if upd.Statistics != nil {
		set.add("statistics", string(upd.Statistics))
	}
	if set.empty() {
		return types.Prediction{}, errors.New("update prediction: no fields to update")
	}

	query := fmt.Sprintf(
		`UPDATE moisture.predictions SET %s WHERE id = $%d RETURNING %s`,
		set.set(), set.next(), predictionColumns,
	)
	args := append(set.args, id)

	p, err := scanPrediction(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Prediction{}, ErrNotFound
		}
		return types.Prediction{}, fmt.Errorf("update prediction: %w", err)
	}
	return p, nil
}

// Delete removes the prediction and returns the deleted row.
func (r *PredictionRepository) Delete(ctx context.Context, id int64) (types.Prediction, error) {
	const query = `DELETE FROM moisture.predictions WHERE id = $1 RETURNING ` + predictionColumns
	p, err := scanPrediction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Prediction{}, ErrNotFound
		}
		return types.Prediction{}, fmt.Errorf("delete prediction: %w", err)
	}
	return p, nil
}

func jsonArg(raw json.RawMessage, fallback string) string {
	if len(raw) == 0 {
		return fallback
	}
	return string(raw)
}
