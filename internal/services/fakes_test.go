package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/corn-moisture/platform/internal/store"
	"github.com/corn-moisture/platform/types"
	"github.com/google/uuid"
)

type fakeUserRepo struct {
	mu      sync.Mutex
	users   map[uuid.UUID]types.User
	updates int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]types.User)}
}

func (f *fakeUserRepo) List(ctx context.Context) ([]types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == user.Username || strings.EqualFold(u.Email, user.Email) {
			return types.User{}, store.ErrConflict
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, id uuid.UUID, upd types.UserUpdate) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	u, ok := f.users[id]
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
	f.users[id] = u
	return u, nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, id uuid.UUID) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	delete(f.users, id)
	return u, nil
}

type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]types.RefreshToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[string]types.RefreshToken)}
}

func (f *fakeTokenRepo) Create(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) (types.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tokens[token]; ok {
		return types.RefreshToken{}, store.ErrConflict
	}
	rt := types.RefreshToken{Token: token, UserID: userID, ExpiresAt: expiresAt, CreatedAt: time.Now()}
	f.tokens[token] = rt
	return rt, nil
}

func (f *fakeTokenRepo) Find(ctx context.Context, token string) (types.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rt, ok := f.tokens[token]
	if !ok {
		return types.RefreshToken{}, store.ErrNotFound
	}
	return rt, nil
}

func (f *fakeTokenRepo) Update(ctx context.Context, oldToken, newToken string, newExpiresAt time.Time) (types.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rt, ok := f.tokens[oldToken]
	if !ok {
		return types.RefreshToken{}, store.ErrNotFound
	}
	delete(f.tokens, oldToken)
	rt.Token = newToken
	rt.ExpiresAt = newExpiresAt
	f.tokens[newToken] = rt
	return rt, nil
}

func (f *fakeTokenRepo) Delete(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tokens[token]; !ok {
		return store.ErrNotFound
	}
	delete(f.tokens, token)
	return nil
}

type fakePredictionRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   []types.Prediction
	err    error
}

func (f *fakePredictionRepo) Create(ctx context.Context, p types.Prediction) (types.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return types.Prediction{}, f.err
	}
	f.nextID++
	p.ID = f.nextID
	p.CreatedAt = time.Now()
	f.rows = append(f.rows, p)
	return p, nil
}

func (f *fakePredictionRepo) List(ctx context.Context) ([]types.Prediction, error) {
	return f.filter(func(types.Prediction) bool { return true }), nil
}

func (f *fakePredictionRepo) ListBySensor(ctx context.Context, sensorID string) ([]types.Prediction, error) {
	return f.filter(func(p types.Prediction) bool { return p.SensorID == sensorID }), nil
}

func (f *fakePredictionRepo) ListByQueue(ctx context.Context, queue string) ([]types.Prediction, error) {
	return f.filter(func(p types.Prediction) bool { return p.Queue == queue }), nil
}

func (f *fakePredictionRepo) filter(keep func(types.Prediction) bool) []types.Prediction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Prediction, 0)
	for _, p := range f.rows {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakePredictionRepo) Update(ctx context.Context, id int64, upd types.PredictionUpdate) (types.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.rows {
		if p.ID != id {
			continue
		}
		if upd.SensorID != nil {
			p.SensorID = *upd.SensorID
		}
		if upd.Queue != nil {
			p.Queue = *upd.Queue
		}
		if upd.DateTime != nil {
			p.DateTime = *upd.DateTime
		}
		if upd.Predictions != nil {
			p.Predictions = upd.Predictions
		}
		if upd.Statistics != nil {
			p.Statistics = upd.Statistics
		}
		f.rows[i] = p
		return p, nil
	}
	return types.Prediction{}, store.ErrNotFound
}

func (f *fakePredictionRepo) Delete(ctx context.Context, id int64) (types.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.rows {
		if p.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return p, nil
		}
	}
	return types.Prediction{}, store.ErrNotFound
}

type fakeArchive struct {
	saved   []int64
	removed []int64
	err     error
}

func (f *fakeArchive) Save(ctx context.Context, p types.Prediction) error {
	f.saved = append(f.saved, p.ID)
	return f.err
}

func (f *fakeArchive) Remove(ctx context.Context, p types.Prediction) error {
	f.removed = append(f.removed, p.ID)
	return f.err
}

type published struct {
	channel string
	data    []byte
	attrs   map[string]string
}

type fakePublisher struct {
	messages []published
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	f.messages = append(f.messages, published{channel: channel, data: data, attrs: attrs})
	return "msg-1", nil
}

type fakeRecorder struct {
	recorded []types.Prediction
}

func (f *fakeRecorder) Record(ctx context.Context, p types.Prediction) error {
	f.recorded = append(f.recorded, p)
	return nil
}
