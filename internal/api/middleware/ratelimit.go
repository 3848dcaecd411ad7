package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tasklane/convo/internal/metrics"
)

// RateLimit defines limits for an endpoint pattern.
type RateLimit struct {
	Requests int
	Window   time.Duration
	KeyFunc  func(r *http.Request) string
}

// RateLimiter implements fixed-window rate limiting backed by Redis.
type RateLimiter struct {
	client *redis.Client
	limits map[string]RateLimit
	logger zerolog.Logger
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(client *redis.Client, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		client: client,
		logger: logger,
		limits: map[string]RateLimit{
			"POST /messages":     {30, time.Minute, callerKey},
			"GET /tasks/":        {120, time.Minute, callerKey},
			"GET /conversations": {60, time.Minute, callerKey},
			"PUT /messages/":     {120, time.Minute, callerKey},
			"GET /ws":            {30, time.Minute, ipKey},
		},
	}
}

// callerKey keys the limit on the bearer token when present, falling back
// to the client IP. The token is hashed so raw credentials never become
// Redis keys.
func callerKey(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		sum := sha256.Sum256([]byte(strings.TrimPrefix(auth, "Bearer ")))
		return "ratelimit:user:" + hex.EncodeToString(sum[:8])
	}
	return ipKey(r)
}

// ipKey keys the limit on the client IP.
func ipKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ratelimit:ip:" + host
}

// match finds the limit for a request, longest pattern first.
func (rl *RateLimiter) match(r *http.Request) (RateLimit, bool) {
	pattern := r.Method + " " + r.URL.Path
	var best string
	for p := range rl.limits {
		if strings.HasPrefix(pattern, p) && len(p) > len(best) {
			best = p
		}
	}
	if best == "" {
		return RateLimit{}, false
	}
	return rl.limits[best], true
}

// Middleware enforces the configured limits. Redis failures fail open:
// chat availability beats strict limiting.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, ok := rl.match(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		window := time.Now().Unix() / int64(limit.Window.Seconds())
		key := fmt.Sprintf("%s:%d", limit.KeyFunc(r), window)

		count, err := rl.client.Incr(r.Context(), key).Result()
		if err != nil {
			rl.logger.Warn().Err(err).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}
		if count == 1 {
			rl.client.Expire(r.Context(), key, limit.Window)
		}

		remaining := int64(limit.Requests) - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(limit.Requests) {
			metrics.RateLimitHits.WithLabelValues(normalizePath(r.URL.Path)).Inc()
			w.Header().Set("Retry-After", strconv.Itoa(int(limit.Window.Seconds())))
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
