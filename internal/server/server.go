// Package server assembles the users and data HTTP services from their
// repositories, services and handlers.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/corn-moisture/platform/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	requestTimeout  = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Server owns an HTTP listener plus every resource opened to build it.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        logging.Logger

	// tasks run alongside the listener and stop when Run's context ends.
	tasks   []func(ctx context.Context)
	closers []namedCloser
}

type namedCloser struct {
	name string
	c    io.Closer
}

func newServer(port int, router *chi.Mux, log logging.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: requestTimeout + 5*time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router: router,
		log:    log,
	}
}

func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) onClose(name string, c io.Closer) {
	s.closers = append(s.closers, namedCloser{name: name, c: c})
}

func (s *Server) background(task func(ctx context.Context)) {
	s.tasks = append(s.tasks, task)
}

// Run serves until ctx is cancelled or the listener fails, then drains
// in-flight requests and releases every resource.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, task := range s.tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task(ctx)
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "server listening", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		s.log.Info(ctx, "shutting down")
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			runErr = fmt.Errorf("shutdown: %w", err)
		}
		stop()
	}

	cancel()
	wg.Wait()
	s.close(context.Background())
	return runErr
}

// close releases resources in reverse order of acquisition.
func (s *Server) close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		nc := s.closers[i]
		if err := nc.c.Close(); err != nil {
			s.log.Error(ctx, "close failed", "resource", nc.name, "error", err)
		}
	}
	s.closers = nil
}

// baseMiddleware is the chain shared by both services.
func baseMiddleware(r chi.Router, log logging.Logger, recoverer func(http.Handler) http.Handler) {
	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger(log))
	r.Use(recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.SetHeader("X-Content-Type-Options", "nosniff"))
	r.Use(middleware.SetHeader("X-Frame-Options", "DENY"))
	r.Use(middleware.SetHeader("Referrer-Policy", "no-referrer"))
}
