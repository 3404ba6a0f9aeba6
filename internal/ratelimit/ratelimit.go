// Package ratelimit caps how many requests one client may make within a
// sliding time window.
package ratelimit

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/corn-moisture/platform/config"
)

const (
	cleanupInterval = 5 * time.Minute
	tooManyRequests = "Too many requests, please try again later."
)

// visitor holds the times of the requests a client made inside the current
// window, oldest first. It never holds more than max entries.
type visitor struct {
	hits []time.Time
}

// expire drops hits at or before cutoff.
func (v *visitor) expire(cutoff time.Time) {
	i := 0
	for i < len(v.hits) && !v.hits[i].After(cutoff) {
		i++
	}
	if i > 0 {
		v.hits = append(v.hits[:0], v.hits[i:]...)
	}
}

// Limiter admits at most max requests per client in any window-long span.
type Limiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	max      int
	window   time.Duration
	proxies  *Proxies
	now      func() time.Time
}

// New builds a Limiter keyed on the client address as resolved by proxies
// (nil trusts no forwarding header). Non-positive settings fall back to 100
// requests per 15 minutes.
func New(cfg config.RateLimitConfig, proxies *Proxies) *Limiter {
	maxRequests := cfg.Max
	if maxRequests <= 0 {
		maxRequests = 100
	}
	window := cfg.Window
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &Limiter{
		visitors: make(map[string]*visitor),
		max:      maxRequests,
		window:   window,
		proxies:  proxies,
		now:      time.Now,
	}
}

// Allow reports whether the client identified by key may proceed.
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.take(key)
	return ok
}

// take records a hit when the client is under the limit. Otherwise it
// returns how long until the oldest hit leaves the window.
func (l *Limiter) take(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{}
		l.visitors[key] = v
	}
	v.expire(now.Add(-l.window))

	if len(v.hits) >= l.max {
		return false, v.hits[0].Add(l.window).Sub(now)
	}
	v.hits = append(v.hits, now)
	return true, 0
}

// Cleanup drops visitors with no hit inside the window. It runs until ctx is done.
func (l *Limiter) Cleanup(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	cutoff := l.now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, v := range l.visitors {
		v.expire(cutoff)
		if len(v.hits) == 0 {
			delete(l.visitors, key)
		}
	}
}

// Middleware rejects requests over the limit with 429.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := l.take(l.proxies.ClientIP(r))
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": tooManyRequests})
			return
		}
		next.ServeHTTP(w, r)
	})
}
