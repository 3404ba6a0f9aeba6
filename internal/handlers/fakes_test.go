package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/corn-moisture/platform/internal/store"
	"github.com/corn-moisture/platform/types"
	"github.com/google/uuid"
)

type memUsers struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]types.User
	updates int
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[uuid.UUID]types.User)}
}

func (m *memUsers) List(ctx context.Context) ([]types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, u)
	}
	return out, nil
}

func (m *memUsers) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUsers) GetByUsername(ctx context.Context, username string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUsers) Create(ctx context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Username == user.Username || u.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	m.byID[user.ID] = user
	return user, nil
}

func (m *memUsers) Update(ctx context.Context, id uuid.UUID, upd types.UserUpdate) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	u, ok := m.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.Roles != nil {
		u.Roles = *upd.Roles
	}
	if upd.Port != nil {
		u.Port = *upd.Port
	}
	m.byID[id] = u
	return u, nil
}

func (m *memUsers) Delete(ctx context.Context, id uuid.UUID) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	delete(m.byID, id)
	return u, nil
}

type memTokens struct {
	mu     sync.Mutex
	tokens map[string]types.RefreshToken
}

func newMemTokens() *memTokens {
	return &memTokens{tokens: make(map[string]types.RefreshToken)}
}

func (m *memTokens) Create(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) (types.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt := types.RefreshToken{Token: token, UserID: userID, ExpiresAt: expiresAt, CreatedAt: time.Now().UTC()}
	m.tokens[token] = rt
	return rt, nil
}

func (m *memTokens) Find(ctx context.Context, token string) (types.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rt, ok := m.tokens[token]; ok {
		return rt, nil
	}
	return types.RefreshToken{}, store.ErrNotFound
}

func (m *memTokens) Update(ctx context.Context, oldToken, newToken string, newExpiresAt time.Time) (types.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.tokens[oldToken]
	if !ok {
		return types.RefreshToken{}, store.ErrNotFound
	}
	delete(m.tokens, oldToken)
	rt.Token, rt.ExpiresAt = newToken, newExpiresAt
	m.tokens[newToken] = rt
	return rt, nil
}

func (m *memTokens) Delete(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[token]; !ok {
		return store.ErrNotFound
	}
	delete(m.tokens, token)
	return nil
}

type memPredictions struct {
	mu   sync.Mutex
	rows []types.Prediction
}

func (m *memPredictions) Create(ctx context.Context, p types.Prediction) (types.Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = int64(len(m.rows) + 1)
	p.CreatedAt = time.Now().UTC()
	m.rows = append(m.rows, p)
	return p, nil
}

func (m *memPredictions) List(ctx context.Context) ([]types.Prediction, error) {
	return m.where(func(types.Prediction) bool { return true }), nil
}

func (m *memPredictions) ListBySensor(ctx context.Context, sensorID string) ([]types.Prediction, error) {
	return m.where(func(p types.Prediction) bool { return p.SensorID == sensorID }), nil
}

func (m *memPredictions) ListByQueue(ctx context.Context, queue string) ([]types.Prediction, error) {
	return m.where(func(p types.Prediction) bool { return p.Queue == queue }), nil
}

func (m *memPredictions) where(keep func(types.Prediction) bool) []types.Prediction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Prediction, 0)
	for _, p := range m.rows {
		if p.ID != 0 && keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func (m *memPredictions) Update(ctx context.Context, id int64, upd types.PredictionUpdate) (types.Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.rows {
		if p.ID != id {
			continue
		}
		if upd.Queue != nil {
			p.Queue = *upd.Queue
		}
		if upd.SensorID != nil {
			p.SensorID = *upd.SensorID
		}
		if upd.Predictions != nil {
			p.Predictions = upd.Predictions
		}
		m.rows[i] = p
		return p, nil
	}
	return types.Prediction{}, store.ErrNotFound
}

func (m *memPredictions) Delete(ctx context.Context, id int64) (types.Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.rows {
		if p.ID == id {
			m.rows[i].ID = 0
			return p, nil
		}
	}
	return types.Prediction{}, store.ErrNotFound
}
