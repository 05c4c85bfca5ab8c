package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/docsync/core/pkg/logger"
	"github.com/docsync/core/pkg/models/api"
)

// KeyedLimiter hands out one token bucket per key, e.g. per scheduler.
type KeyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
	burst    int
}

// NewKeyedLimiter allows burst requests per key, refilled one every interval.
// A non-positive interval disables limiting.
func NewKeyedLimiter(interval time.Duration, burst int) *KeyedLimiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	if burst < 1 {
		burst = 1
	}
	return &KeyedLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    limit,
		burst:    burst,
	}
}

func (k *KeyedLimiter) get(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.limiters[key]
	if !ok {
		l = rate.NewLimiter(k.every, k.burst)
		k.limiters[key] = l
	}
	return l
}

// Allow reports whether a request for key may proceed now, and if not how
// long the caller should wait.
func (k *KeyedLimiter) Allow(key string) (bool, time.Duration) {
	l := k.get(key)
	r := l.Reserve()
	if !r.OK() {
		return false, 0
	}
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return false, delay
	}
	return true, 0
}

// RateLimit rejects requests with 429 once the bucket selected by keyFn is empty.
func RateLimit(limiter *KeyedLimiter, keyFn func(*http.Request) string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			ok, wait := limiter.Allow(key)
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			log.Warn().
				Str("action", "rate_limited").
				Str("key", key).
				Str("path", r.URL.Path).
				Dur("retry_after", wait).
				Msg("Request rejected by rate limiter")

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(api.Response{Message: "Too many requests, try again later"})
		})
	}
}

// PathKey selects the limiter bucket from a path wildcard such as {key}.
func PathKey(name string) func(*http.Request) string {
	return func(r *http.Request) string {
		return r.PathValue(name)
	}
}
