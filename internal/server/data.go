package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/corn-moisture/platform/config"
	"github.com/corn-moisture/platform/internal/db"
	"github.com/corn-moisture/platform/internal/handlers"
	"github.com/corn-moisture/platform/internal/logging"
	"github.com/corn-moisture/platform/internal/mq"
	"github.com/corn-moisture/platform/internal/ratelimit"
	"github.com/corn-moisture/platform/internal/services"
	"github.com/corn-moisture/platform/internal/storage"
	"github.com/corn-moisture/platform/internal/store"
	"github.com/corn-moisture/platform/internal/timeseries"
	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

const resubscribeDelay = 5 * time.Second

// dataDeps are the optional integrations of the data service. Any of them
// may be nil.
type dataDeps struct {
	storage  *storage.Storage
	mq       *mq.MQ
	recorder *timeseries.Recorder
}

// NewData opens the moisture database and every configured integration,
// then builds the data service. Resources opened before a failure are
// released.
func NewData(ctx context.Context, cfg config.DataConfig, log logging.Logger) (_ *Server, err error) {
	if log == nil {
		log = logging.Nop()
	}

	var opened []namedCloser
	defer func() {
		if err == nil {
			return
		}
		for i := len(opened) - 1; i >= 0; i-- {
			_ = opened[i].c.Close()
		}
	}()

	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	opened = append(opened, namedCloser{"database", conn})

	var deps dataDeps

	deps.storage, err = storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	if deps.storage != nil {
		opened = append(opened, namedCloser{"storage", deps.storage})
		log.Info(ctx, "prediction archive enabled", "backend", cfg.Storage.Backend)
	}

	deps.mq, err = mq.NewFromConfig(ctx, cfg.MQ)
	if err != nil {
		return nil, fmt.Errorf("init mq: %w", err)
	}
	if deps.mq != nil {
		opened = append(opened, namedCloser{"mq", deps.mq})
		log.Info(ctx, "messaging enabled", "backend", cfg.MQ.Backend)
	}

	if cfg.InfluxDB.Enabled() {
		deps.recorder, err = timeseries.NewRecorder(ctx, cfg.InfluxDB, log)
		if err != nil {
			return nil, fmt.Errorf("init influxdb: %w", err)
		}
		opened = append(opened, namedCloser{"influxdb", deps.recorder})
		log.Info(ctx, "time-series export enabled", "bucket", cfg.InfluxDB.Bucket)
	}

	s, err := newData(cfg, conn, deps, log)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, opened...)
	return s, nil
}

func newData(cfg config.DataConfig, conn *sql.DB, deps dataDeps, log logging.Logger) (*Server, error) {
	dev := cfg.IsDevelopment()
	proxies, err := ratelimit.NewProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}

	opts := []services.PredictionOption{services.WithPredictionLogger(log)}
	if deps.storage != nil {
		opts = append(opts, services.WithArchive(storage.NewPredictionArchive(deps.storage)))
	}
	if deps.mq != nil {
		opts = append(opts, services.WithEvents(deps.mq, cfg.PredictionEventsChannel))
	}
	if deps.recorder != nil {
		opts = append(opts, services.WithRecorder(deps.recorder))
	}
	predictionService := services.NewPredictionService(store.NewPredictionRepository(conn), opts...)

	limiter := ratelimit.New(cfg.RateLimit, proxies)

	r := chi.NewRouter()
	baseMiddleware(r, log, handlers.Recoverer(log, dev, handlers.ErrorFieldStyle))
	r.Use(handlers.CORS(nil, true))
	r.Use(limiter.Middleware)

	r.NotFound(handlers.NotFound(handlers.ErrorFieldStyle))
	r.Get("/health", handlers.DataHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(handlers.APIKey(cfg.APIKey, log))
		r.Route("/predictions", func(r chi.Router) {
			handlers.PredictionRouter(r, handlers.NewPredictionHandler(predictionService, log, dev))
		})
	})

	s := newServer(cfg.ServerPort, r, log)
	s.background(limiter.Cleanup)
	if deps.mq != nil && cfg.PredictionIngestChannel != "" {
		s.background(func(ctx context.Context) {
			consumeIngest(ctx, deps.mq, cfg.PredictionIngestChannel, predictionService, log)
		})
	}
	return s, nil
}

// consumeIngest feeds messages from channel into the prediction service,
// resubscribing after broker errors until ctx ends. Subscriptions start at
// most once per resubscribeDelay.
func consumeIngest(ctx context.Context, queue *mq.MQ, channel string, svc *services.PredictionService, log logging.Logger) {
	log = log.With("channel", channel)
	pace := rate.NewLimiter(rate.Every(resubscribeDelay), 1)
	for {
		if err := pace.Wait(ctx); err != nil {
			return
		}
		log.Info(ctx, "consuming predictions")
		err := queue.Subscribe(ctx, channel, func(ctx context.Context, msg mq.Message) error {
			return svc.Ingest(ctx, msg.Data)
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error(ctx, "ingest subscription stopped", "error", err)
		}
	}
}
