package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tagdesk/tagdesk/internal/auth"
	"github.com/tagdesk/tagdesk/internal/cache"
	"github.com/tagdesk/tagdesk/internal/model"
)

// Limiter takes tokens from named buckets.
type Limiter interface {
	Allow(ctx context.Context, bucket string, limit cache.Limit) (cache.Decision, error)
}

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter Limiter
	// Per API key limits, sized by the key's tier.
	APIEnabled bool
	// Per client IP limits on access password attempts.
	VerifyEnabled bool
	VerifyRPM     int
	VerifyBurst   int
}

// RateLimitAPI limits requests per API key. It must run after Auth.
// Unlimited-tier keys pass without touching Redis.
func RateLimitAPI(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return throttle(cfg, "api", func(r *http.Request) (string, cache.Limit, bool) {
		caller := auth.AuthFromContext(r.Context())
		if !cfg.APIEnabled || caller == nil {
			return "", cache.Limit{}, false
		}
		tier := model.LimitFor(caller.RateLimitTier)
		if tier.Unlimited() {
			return "", cache.Limit{}, false
		}
		return cache.APIKeyBucket(caller.KeyID), cache.Limit{PerMinute: tier.PerMinute, Burst: tier.Burst}, true
	})
}

// RateLimitVerify limits access password attempts per client IP.
func RateLimitVerify(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return throttle(cfg, "verify", func(r *http.Request) (string, cache.Limit, bool) {
		if !cfg.VerifyEnabled {
			return "", cache.Limit{}, false
		}
		return cache.VerifyBucket(getClientIP(r)), cache.Limit{PerMinute: cfg.VerifyRPM, Burst: cfg.VerifyBurst}, true
	})
}

// throttle takes a token from the bucket chosen by pick. Limiter errors let
// the request through.
func throttle(cfg RateLimitConfig, kind string, pick func(*http.Request) (string, cache.Limit, bool)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bucket, limit, ok := pick(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			d, err := cfg.Limiter.Allow(r.Context(), bucket, limit)
			if err != nil {
				cfg.Logger.Error("rate limit check failed",
					"type", kind,
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w.Header(), limit, d)
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			retry := retryAfterSeconds(d.RetryAfter)
			cfg.Logger.Warn("rate limit exceeded",
				"type", kind,
				"ip", getClientIP(r),
				"endpoint", r.Method+" "+r.URL.Path,
				"retry_after_seconds", retry,
				"request_id", GetRequestID(r.Context()),
			)
			writeRateLimitError(w, d.RetryAfter)
		})
	}
}

// writeRateLimitError writes a 429 Too Many Requests response.
func writeRateLimitError(w http.ResponseWriter, retryAfter time.Duration) {
	retry := retryAfterSeconds(retryAfter)
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	writeError(w, http.StatusTooManyRequests, "RATE_LIMITED",
		"Rate limit exceeded. Retry after "+strconv.Itoa(retry)+" seconds.")
}

func setRateLimitHeaders(h http.Header, limit cache.Limit, d cache.Decision) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.PerMinute))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

// retryAfterSeconds rounds up, so a client never retries too early.
func retryAfterSeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}

// getClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then
// the remote address without its port.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
