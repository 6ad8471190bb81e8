package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tagdesk/tagdesk/internal/auth"
	"github.com/tagdesk/tagdesk/internal/model"
)

// defaultMinAuthDuration pads every authentication so failures and cache
// hits take as long as a full Argon2id check.
const defaultMinAuthDuration = 200 * time.Millisecond

// KeyStore finds API keys by their visible prefix.
type KeyStore interface {
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
}

// AuthCache holds verified callers keyed by a digest of the plaintext key.
type AuthCache interface {
	GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger *slog.Logger
	Keys   KeyStore
	Cache  AuthCache
	// MinDuration overrides defaultMinAuthDuration. Negative disables padding.
	MinDuration time.Duration
}

// Auth authenticates API requests by key and stores the caller on the
// request context. Every failure answers the same 401.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	minDuration := cfg.MinDuration
	if minDuration == 0 {
		minDuration = defaultMinAuthDuration
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			defer func() {
				if wait := minDuration - time.Since(start); wait > 0 {
					time.Sleep(wait)
				}
			}()

			ctx := r.Context()
			fail := func(reason string) {
				cfg.Logger.Warn("authentication failed",
					"reason", reason,
					"ip", getClientIP(r),
					"endpoint", r.Method+" "+r.URL.Path,
					"request_id", GetRequestID(ctx),
				)
				writeAuthError(w)
			}

			key := extractAPIKey(r)
			if key == "" {
				fail("missing_key")
				return
			}
			parsed, err := auth.ParseAPIKey(key)
			if err != nil {
				fail("invalid_format")
				return
			}

			cacheKey := auth.QuickHash(key)
			caller, err := cfg.Cache.GetAuthContext(ctx, cacheKey)
			if err != nil {
				cfg.Logger.Warn("auth cache unavailable", "error", err)
			}
			cacheHit := caller != nil

			if !cacheHit {
				candidates, err := cfg.Keys.GetAPIKeysByPrefix(ctx, parsed.Prefix)
				if err != nil {
					cfg.Logger.Error("failed to look up API key", "error", err, "request_id", GetRequestID(ctx))
					writeAuthError(w)
					return
				}

				matched := matchKey(key, candidates)
				if matched == nil {
					fail("invalid_key")
					return
				}

				caller = matched.Caller()
				if err := cfg.Cache.SetAuthContext(ctx, cacheKey, caller); err != nil {
					cfg.Logger.Warn("failed to cache auth context", "error", err)
				}

				go func(ctx context.Context, keyID string) {
					if err := cfg.Keys.UpdateAPIKeyLastUsed(ctx, keyID); err != nil {
						cfg.Logger.Warn("failed to record API key use", "error", err, "key_id", keyID)
					}
				}(context.WithoutCancel(ctx), matched.ID)
			}

			cfg.Logger.Debug("authenticated",
				"key_id", caller.KeyID,
				"user_id", caller.UserID,
				"cache_hit", cacheHit,
				"request_id", GetRequestID(ctx),
			)
			next.ServeHTTP(w, r.WithContext(auth.ContextWithAuth(ctx, caller)))
		})
	}
}

// matchKey returns the unrevoked candidate whose hash verifies key. Several
// keys can share a prefix.
func matchKey(key string, candidates []*model.APIKey) *model.APIKey {
	for _, k := range candidates {
		if k.IsRevoked() {
			continue
		}
		if ok, err := auth.VerifyPassword(key, k.KeyHash); err == nil && ok {
			return k
		}
	}
	return nil
}

// extractAPIKey reads "Authorization: Bearer <key>", then "X-API-Key".
func extractAPIKey(r *http.Request) string {
	if key, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(key)
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func writeAuthError(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing API key")
}
