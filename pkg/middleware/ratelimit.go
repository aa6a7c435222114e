package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tutoria/dashboard/pkg/httputil"
	"github.com/tutoria/dashboard/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
}

// LoginRateLimitConfig returns the limits applied to sign-in attempts
func LoginRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Minute,
		BurstSize:         5,
	}
}

func (c *RateLimitConfig) capacity() int {
	return c.RequestsPerWindow + c.BurstSize
}

// Limiter decides whether another request for key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Config() *RateLimitConfig
}

// resetter is implemented by limiters that can forget a key, so a
// successful sign-in clears the failed attempts before it
type resetter interface {
	Reset(ctx context.Context, key string) error
}

// retryAfterer is implemented by limiters that know when key frees up
type retryAfterer interface {
	RetryAfter(ctx context.Context, key string) time.Duration
}

// RateLimiter is an in-memory token bucket limiter. Buckets start full at
// RequestsPerWindow+BurstSize and refill continuously at
// RequestsPerWindow per window.
type RateLimiter struct {
	config  *RateLimitConfig
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// NewRateLimiter creates an in-memory limiter; nil config means
// LoginRateLimitConfig
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = LoginRateLimitConfig()
	}
	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Config returns the limiter configuration
func (rl *RateLimiter) Config() *RateLimitConfig {
	return rl.config
}

func (rl *RateLimiter) refillRate() float64 {
	return float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds()
}

// refill brings key's bucket up to date; rl.mu must be held
func (rl *RateLimiter) refill(key string, now time.Time) *bucket {
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rl.config.capacity()), seen: now}
		rl.buckets[key] = b
		return b
	}
	b.tokens = math.Min(float64(rl.config.capacity()), b.tokens+now.Sub(b.seen).Seconds()*rl.refillRate())
	b.seen = now
	return b
}

// Allow takes one token from key's bucket
func (rl *RateLimiter) Allow(_ context.Context, key string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b := rl.refill(key, rl.now())
	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// Remaining returns the whole tokens left for key
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return int(rl.refill(key, rl.now()).tokens)
}

// RetryAfter returns how long until key has a token again
func (rl *RateLimiter) RetryAfter(_ context.Context, key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	missing := 1 - rl.refill(key, rl.now()).tokens
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / rl.refillRate() * float64(time.Second))
}

// Reset refills key's bucket
func (rl *RateLimiter) Reset(_ context.Context, key string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, key)
	return nil
}

// Cleanup drops buckets idle for more than two windows
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-2 * rl.config.WindowDuration)
	for key, b := range rl.buckets {
		if b.seen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanup runs Cleanup every window until ctx is done
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// statusRecorder remembers the status written by the wrapped handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// RateLimit rejects requests over the limiter's budget with 429. Keys are
// scope plus the client address. Limiter errors fail open. When the
// handler succeeds (status below 400) and the limiter supports it, the
// client's budget is reset.
func RateLimit(limiter Limiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":" + clientIP(r)
			logger := observability.FromContext(r.Context()).WithField("limit_key", key)

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.WithError(err).Warn("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", retryAfter(r.Context(), limiter, key))
				httputil.WriteErrorMessage(w, http.StatusTooManyRequests, "too many attempts, try again later")
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rs, ok := limiter.(resetter); ok && rec.status < http.StatusBadRequest {
				if err := rs.Reset(r.Context(), key); err != nil {
					logger.WithError(err).Warn("failed to reset rate limit")
				}
			}
		})
	}
}

// retryAfter renders the Retry-After seconds for key, at least 1
func retryAfter(ctx context.Context, limiter Limiter, key string) string {
	wait := limiter.Config().WindowDuration
	if ra, ok := limiter.(retryAfterer); ok {
		wait = ra.RetryAfter(ctx, key)
	}
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
