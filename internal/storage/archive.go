package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/corn-moisture/platform/types"
)

const jsonContentType = "application/json"

// PredictionArchive stores each prediction as a JSON object.
type PredictionArchive struct {
	store *Storage
}

// NewPredictionArchive constructs a PredictionArchive that writes through store.
func NewPredictionArchive(store *Storage) *PredictionArchive {
	return &PredictionArchive{store: store}
}

// Save writes p to its key, replacing any earlier copy.
func (a *PredictionArchive) Save(ctx context.Context, p types.Prediction) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode prediction %d: %w", p.ID, err)
	}
	if err := a.store.Put(ctx, PredictionKey(p), bytes.NewReader(data), int64(len(data)), jsonContentType); err != nil {
		return fmt.Errorf("put prediction %d: %w", p.ID, err)
	}
	return nil
}

// Remove deletes the archived copy of p.
func (a *PredictionArchive) Remove(ctx context.Context, p types.Prediction) error {
	if err := a.store.Delete(ctx, PredictionKey(p)); err != nil {
		return fmt.Errorf("delete prediction %d: %w", p.ID, err)
	}
	return nil
}

// PredictionKey is predictions/<sensor_id>/<queue>/<id>.json with path
// segments escaped.
func PredictionKey(p types.Prediction) string {
	return fmt.Sprintf("predictions/%s/%s/%d.json",
		url.PathEscape(p.SensorID),
		url.PathEscape(p.Queue),
		p.ID,
	)
}
