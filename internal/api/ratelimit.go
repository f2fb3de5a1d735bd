package api

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"
)

// RateLimitConfig is a token bucket: a sustained rate plus a burst.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	BurstSize         int     `json:"burst_size"`
}

// DefaultRateLimits bounds the routes that drive the host. Each one can
// run a full mode synchronization.
var DefaultRateLimits = map[string]RateLimitConfig{
	"/api/active":      {RequestsPerSecond: 5, BurstSize: 10},
	"/api/cycle":       {RequestsPerSecond: 5, BurstSize: 10},
	"/api/toggle":      {RequestsPerSecond: 5, BurstSize: 10},
	"/api/reload-base": {RequestsPerSecond: 2, BurstSize: 4},
}

type tokenBucket struct {
	mu           sync.Mutex
	tokens       float64
	lastUpdate   time.Time
	ratePerSec   float64
	maxTokens    float64
	requestCount int64
	deniedCount  int64
}

func newTokenBucket(cfg RateLimitConfig, now time.Time) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(cfg.BurstSize),
		lastUpdate: now,
		ratePerSec: cfg.RequestsPerSecond,
		maxTokens:  float64(cfg.BurstSize),
	}
}

func (tb *tokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastUpdate).Seconds()
	if elapsed > 0 {
		tb.tokens = min(tb.tokens+elapsed*tb.ratePerSec, tb.maxTokens)
		tb.lastUpdate = now
	}
}

// allow consumes a token if one is available. On denial it returns how long
// until the next token.
func (tb *tokenBucket) allow(now time.Time) (bool, time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.requestCount++
	tb.refill(now)
	if tb.tokens >= 1.0 {
		tb.tokens--
		return true, 0
	}

	tb.deniedCount++
	if tb.ratePerSec <= 0 {
		return false, time.Minute
	}
	wait := time.Duration((1.0 - tb.tokens) / tb.ratePerSec * float64(time.Second))
	return false, wait
}

// RouteStats reports one bucket.
type RouteStats struct {
	Route          string  `json:"route"`
	Available      float64 `json:"available"`
	RequestsPerSec float64 `json:"requests_per_second"`
	BurstSize      int     `json:"burst_size"`
	TotalRequests  int64   `json:"total_requests"`
	DeniedRequests int64   `json:"denied_requests"`
}

// RateLimiter holds one token bucket per limited route.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	configs map[string]RateLimitConfig
	enabled bool
	now     func() time.Time
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRouteLimits overrides or adds per-route limits.
func WithRouteLimits(limits map[string]RateLimitConfig) RateLimiterOption {
	return func(rl *RateLimiter) {
		for route, cfg := range limits {
			rl.configs[route] = cfg
		}
	}
}

// WithLimiterEnabled turns limiting on or off.
func WithLimiterEnabled(enabled bool) RateLimiterOption {
	return func(rl *RateLimiter) { rl.enabled = enabled }
}

// NewRateLimiter creates a limiter seeded with DefaultRateLimits.
func NewRateLimiter(opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*tokenBucket),
		configs: make(map[string]RateLimitConfig),
		enabled: true,
		now:     time.Now,
	}
	for route, cfg := range DefaultRateLimits {
		rl.configs[route] = cfg
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Allow reports whether a request to route may proceed. Routes without a
// configured limit are always allowed.
func (rl *RateLimiter) Allow(route string) (bool, time.Duration) {
	if !rl.enabled {
		return true, 0
	}
	bucket := rl.bucket(route)
	if bucket == nil {
		return true, 0
	}
	return bucket.allow(rl.now())
}

func (rl *RateLimiter) bucket(route string) *tokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if bucket, ok := rl.buckets[route]; ok {
		return bucket
	}
	cfg, ok := rl.configs[route]
	if !ok {
		return nil
	}
	bucket := newTokenBucket(cfg, rl.now())
	rl.buckets[route] = bucket
	return bucket
}

// Stats returns a snapshot of every configured route, sorted by route.
func (rl *RateLimiter) Stats() []RouteStats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	stats := make([]RouteStats, 0, len(rl.configs))
	for route, cfg := range rl.configs {
		rs := RouteStats{
			Route:          route,
			RequestsPerSec: cfg.RequestsPerSecond,
			BurstSize:      cfg.BurstSize,
			Available:      float64(cfg.BurstSize),
		}
		if bucket, ok := rl.buckets[route]; ok {
			bucket.mu.Lock()
			bucket.refill(now)
			rs.Available = bucket.tokens
			rs.TotalRequests = bucket.requestCount
			rs.DeniedRequests = bucket.deniedCount
			bucket.mu.Unlock()
		}
		stats = append(stats, rs)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Route < stats[j].Route })
	return stats
}

// Middleware answers 429 with a Retry-After header once a route's bucket
// is empty.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ok, wait := rl.Allow(r.URL.Path); !ok {
			seconds := int(wait.Seconds())
			if wait > time.Duration(seconds)*time.Second {
				seconds++
			}
			w.Header().Set("Retry-After", strconv.Itoa(max(seconds, 1)))
			http.Error(w, "rate limit exceeded for "+r.URL.Path, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
