package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/corn-moisture/platform/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func request(remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	req.RemoteAddr = remoteAddr
	return req
}

func fixedClock(l *Limiter, start time.Time) *time.Time {
	now := start
	l.now = func() time.Time { return now }
	return &now
}

func TestMiddleware_BlocksAfterMax(t *testing.T) {
	limiter := New(config.RateLimitConfig{Max: 3, Window: 15 * time.Minute}, nil)
	fixedClock(limiter, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	handler := limiter.Middleware(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request("10.0.0.1:1234"))
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, request("10.0.0.1:5678"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"message":"Too many requests, please try again later."}`, rec.Body.String())
	assert.Equal(t, "900", rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, request("10.0.0.2:1234"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_IgnoresForwardedHeadersFromClients(t *testing.T) {
	limiter := New(config.RateLimitConfig{Max: 2, Window: time.Minute}, nil)
	handler := limiter.Middleware(okHandler())

	codes := map[int]int{}
	for i := 0; i < 6; i++ {
		req := request("203.0.113.9:4000")
		req.Header.Set("X-Forwarded-For", "198.51.100."+string(rune('1'+i)))
		req.Header.Set("X-Real-IP", "198.51.100.200")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes[rec.Code]++
	}
	assert.Equal(t, map[int]int{http.StatusOK: 2, http.StatusTooManyRequests: 4}, codes)
}

func TestLimiter_WindowSlides(t *testing.T) {
	limiter := New(config.RateLimitConfig{Max: 2, Window: time.Minute}, nil)
	now := fixedClock(limiter, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	assert.True(t, limiter.Allow("a"))
	*now = now.Add(20 * time.Second)
	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))

	*now = now.Add(30 * time.Second)
	assert.False(t, limiter.Allow("a"), "first hit is still inside the window")

	*now = now.Add(10 * time.Second)
	assert.True(t, limiter.Allow("a"), "first hit left the window")
	assert.False(t, limiter.Allow("a"))
}

func TestLimiter_NeverExceedsMaxInAnyWindow(t *testing.T) {
	const maxRequests = 10
	window := 15 * time.Minute
	limiter := New(config.RateLimitConfig{Max: maxRequests, Window: window}, nil)
	now := fixedClock(limiter, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))

	var allowed []time.Time
	for i := 0; i < int((45 * time.Minute).Seconds()); i++ {
		if limiter.Allow("10.0.0.1") {
			allowed = append(allowed, *now)
		}
		*now = now.Add(time.Second)
	}

	require.NotEmpty(t, allowed)
	for i, start := range allowed {
		inWindow := 0
		for _, at := range allowed[i:] {
			if at.Sub(start) < window {
				inWindow++
			}
		}
		require.LessOrEqual(t, inWindow, maxRequests, "window starting %s", start.Format(time.TimeOnly))
	}
	assert.Len(t, allowed, 3*maxRequests)
}

func TestLimiter_Sweep(t *testing.T) {
	limiter := New(config.RateLimitConfig{Max: 1, Window: time.Minute}, nil)
	now := fixedClock(limiter, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	limiter.Allow("old")
	*now = now.Add(2 * time.Minute)
	limiter.Allow("fresh")
	limiter.sweep()

	assert.NotContains(t, limiter.visitors, "old")
	assert.Contains(t, limiter.visitors, "fresh")
}

func TestNew_Defaults(t *testing.T) {
	limiter := New(config.RateLimitConfig{}, nil)
	assert.Equal(t, 100, limiter.max)
	assert.Equal(t, 15*time.Minute, limiter.window)
}
