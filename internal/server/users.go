package server

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/corn-moisture/platform/config"
	"github.com/corn-moisture/platform/internal/auth"
	"github.com/corn-moisture/platform/internal/db"
	"github.com/corn-moisture/platform/internal/handlers"
	"github.com/corn-moisture/platform/internal/logging"
	"github.com/corn-moisture/platform/internal/ratelimit"
	"github.com/corn-moisture/platform/internal/services"
	"github.com/corn-moisture/platform/internal/store"
	"github.com/go-chi/chi/v5"
)

// NewUsers opens the users database and builds the users service.
func NewUsers(ctx context.Context, cfg config.UsersConfig, log logging.Logger) (*Server, error) {
	if log == nil {
		log = logging.Nop()
	}

	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	s, err := newUsers(cfg, conn, log)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	s.onClose("database", conn)
	return s, nil
}

func newUsers(cfg config.UsersConfig, conn *sql.DB, log logging.Logger) (*Server, error) {
	dev := cfg.IsDevelopment()
	proxies, err := ratelimit.NewProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	issuer := auth.NewTokenIssuer(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	userRepo := store.NewUserRepository(conn)
	tokenRepo := store.NewRefreshTokenRepository(conn)

	userService := services.NewUserService(userRepo)
	sessionService := services.NewSessionService(userService, tokenRepo, issuer, log)
	tokenService := services.NewRefreshTokenService(tokenRepo)

	globalLimiter := ratelimit.New(cfg.GlobalRateLimit, proxies)
	loginLimiter := ratelimit.New(cfg.LoginRateLimit, proxies)
	requireAuth := handlers.RequireAuth(issuer)

	r := chi.NewRouter()
	baseMiddleware(r, log, handlers.Recoverer(log, dev, handlers.MessageStyle))
	r.Use(handlers.CORS(cfg.AllowedOrigins, false))
	r.Use(globalLimiter.Middleware)

	r.NotFound(handlers.NotFound(handlers.MessageStyle))
	r.Get("/", handlers.Root)
	r.Get("/health", handlers.UsersHealth(time.Now()))

	r.Route("/v1", func(r chi.Router) {
		handlers.AuthRouter(r, handlers.NewAuthHandler(userService, sessionService, log, dev), loginLimiter.Middleware)
		r.Route("/refresh-tokens", func(r chi.Router) {
			handlers.RefreshTokenRouter(r, handlers.NewRefreshTokenHandler(tokenService, log, dev), requireAuth)
		})
		r.Route("/users", func(r chi.Router) {
			handlers.UserRouter(r, handlers.NewUserHandler(userService, log, dev), requireAuth)
		})
	})

	s := newServer(cfg.ServerPort, r, log)
	s.background(globalLimiter.Cleanup)
	s.background(loginLimiter.Cleanup)
	return s, nil
}
