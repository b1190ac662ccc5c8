package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const globalScope = "global"

// RateLimitConfig is a fixed-window limit: at most RequestsPerWindow
// requests per key in each WindowDuration.
type RateLimitConfig struct {
	// Scope labels the limiter in metrics. Empty means "global".
	Scope             string
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Validate reports a non-positive request count or window.
func (c RateLimitConfig) Validate() error {
	switch {
	case c.RequestsPerWindow <= 0:
		return fmt.Errorf("RequestsPerWindow must be > 0 (got %d)", c.RequestsPerWindow)
	case c.WindowDuration <= 0:
		return fmt.Errorf("WindowDuration must be > 0 (got %s)", c.WindowDuration)
	}
	return nil
}

func (c RateLimitConfig) scope() string {
	if c.Scope == "" {
		return globalScope
	}
	return c.Scope
}

func perMinute(scope string, n int) RateLimitConfig {
	return RateLimitConfig{Scope: scope, RequestsPerWindow: n, WindowDuration: time.Minute}
}

// DefaultGlobalLimit applies to every request: 100 per minute.
func DefaultGlobalLimit() RateLimitConfig { return perMinute(globalScope, 100) }

// DefaultEmbedLimit guards the embed endpoint, which may call the provider:
// 10 per minute.
func DefaultEmbedLimit() RateLimitConfig { return perMinute("embed", 10) }

// DefaultSearchLimit guards search, which embeds the query on a cache miss:
// 30 per minute.
func DefaultSearchLimit() RateLimitConfig { return perMinute("search", 30) }

// RateLimitStore keeps per-key window counters.
type RateLimitStore interface {
	// Allow counts one request for key. remaining is what is left in the
	// current window; retryAfter is the whole seconds until the window
	// resets and is only set when the request is refused.
	Allow(ctx context.Context, key string, config RateLimitConfig) (allowed bool, remaining int, retryAfter int)
}

type bucket struct {
	hits   int
	resets time.Time
}

// InMemoryRateLimitStore is a process-local RateLimitStore. Expired windows
// stay in memory until Cleanup runs.
type InMemoryRateLimitStore struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
}

// NewInMemoryRateLimitStore creates an empty store.
func NewInMemoryRateLimitStore() *InMemoryRateLimitStore {
	return &InMemoryRateLimitStore{buckets: make(map[string]*bucket)}
}

// Allow implements RateLimitStore.
func (s *InMemoryRateLimitStore) Allow(_ context.Context, key string, config RateLimitConfig) (bool, int, int) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.buckets[key]
	if b == nil || now.After(b.resets) {
		b = &bucket{resets: now.Add(config.WindowDuration)}
		s.buckets[key] = b
	}
	if b.hits >= config.RequestsPerWindow {
		return false, 0, retryAfterSeconds(b.resets.Sub(now))
	}
	b.hits++
	return true, config.RequestsPerWindow - b.hits, 0
}

// Cleanup drops expired windows. Run it on an interval a few times the
// longest window in use.
func (s *InMemoryRateLimitStore) Cleanup() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, b := range s.buckets {
		if now.After(b.resets) {
			delete(s.buckets, key)
		}
	}
}

// retryAfterSeconds rounds d up to whole seconds, never below 1.
func retryAfterSeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 1)
}

// KeyFunc derives the rate limit key of a request.
type KeyFunc func(r *http.Request) string

// IPKeyFunc keys by client address: the first X-Forwarded-For hop, then
// X-Real-IP, then the host part of RemoteAddr.
func IPKeyFunc() KeyFunc {
	return func(r *http.Request) string {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
}

// UserKeyFunc keys authenticated callers as "user:<id>" and everyone else
// as "ip:<addr>".
func UserKeyFunc() KeyFunc {
	byIP := IPKeyFunc()
	return func(r *http.Request) string {
		if id := GetUserID(r.Context()); id != "" {
			return "user:" + id
		}
		return "ip:" + byIP(r)
	}
}

// ScopedKeyFunc appends ":<scope>" to the keys of kf so limiters sharing a
// store count separately.
func ScopedKeyFunc(scope string, kf KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		return kf(r) + ":" + scope
	}
}

// keyType is the metric label for a key built by UserKeyFunc.
func keyType(key string) string {
	if strings.HasPrefix(key, "user:") {
		return "user"
	}
	return "ip"
}

// RateLimiter refuses requests over config with 429 and the standard error
// envelope. Every response carries X-RateLimit-Limit and
// X-RateLimit-Remaining; refusals add Retry-After and X-RateLimit-Reset
// (unix seconds). metrics may be nil.
func RateLimiter(store RateLimitStore, config RateLimitConfig, keyFunc KeyFunc, metrics *Metrics) func(http.Handler) http.Handler {
	scope := config.scope()
	limit := strconv.Itoa(config.RequestsPerWindow)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			kind := keyType(key)
			if metrics != nil {
				metrics.IncRateLimitRequests(scope, kind)
			}

			allowed, remaining, retryAfter := store.Allow(r.Context(), key, config)
			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			if metrics != nil {
				metrics.IncRateLimitBlocked(scope, kind)
			}
			UpdateResponseContext(w, SetErrorCode(r.Context(), "rate_limited"))
			h.Set("Retry-After", strconv.Itoa(retryAfter))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Duration(retryAfter)*time.Second).Unix(), 10))
			writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests, retry later")
		})
	}
}

// writeJSONError writes the {"error":{"code","message"}} envelope for
// responses produced inside middleware.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
}
