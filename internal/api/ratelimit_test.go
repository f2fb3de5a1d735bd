package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedClock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func TestRateLimiterBurstAndRefill(t *testing.T) {
	rl := NewRateLimiter(WithRouteLimits(map[string]RateLimitConfig{
		"/api/active": {RequestsPerSecond: 2, BurstSize: 2},
	}))
	clock, advance := fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	rl.now = clock

	for i := 0; i < 2; i++ {
		ok, _ := rl.Allow("/api/active")
		require.True(t, ok)
	}
	ok, wait := rl.Allow("/api/active")
	require.False(t, ok)
	require.Equal(t, 500*time.Millisecond, wait)

	advance(500 * time.Millisecond)
	ok, _ = rl.Allow("/api/active")
	require.True(t, ok)

	ok, _ = rl.Allow("/api/status")
	require.True(t, ok, "unlimited route")
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(
		WithRouteLimits(map[string]RateLimitConfig{"/api/toggle": {RequestsPerSecond: 0, BurstSize: 0}}),
		WithLimiterEnabled(false),
	)
	ok, _ := rl.Allow("/api/toggle")
	require.True(t, ok)
}

func TestRateLimiterStats(t *testing.T) {
	rl := NewRateLimiter(WithRouteLimits(map[string]RateLimitConfig{
		"/api/cycle": {RequestsPerSecond: 1, BurstSize: 1},
	}))
	clock, _ := fixedClock(time.Now())
	rl.now = clock

	rl.Allow("/api/cycle")
	rl.Allow("/api/cycle")

	stats := rl.Stats()
	require.Len(t, stats, len(DefaultRateLimits))
	for _, s := range stats {
		if s.Route != "/api/cycle" {
			continue
		}
		require.EqualValues(t, 2, s.TotalRequests)
		require.EqualValues(t, 1, s.DeniedRequests)
		require.InDelta(t, 0, s.Available, 0.001)
	}
	require.Equal(t, "/api/active", stats[0].Route)
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(WithRouteLimits(map[string]RateLimitConfig{
		"/api/toggle": {RequestsPerSecond: 0.5, BurstSize: 1},
	}))
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/toggle", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/toggle", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "2", rec.Header().Get("Retry-After"))
}
