package middleware

import (
	"net/http"

	"github.com/tagdesk/tagdesk/internal/auth"
	"github.com/tagdesk/tagdesk/internal/model"
)

// RequireScope rejects callers whose key does not reach scope. It must run
// after Auth.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := auth.AuthFromContext(r.Context())
			if caller == nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}
			if !caller.HasScope(scope) {
				writeError(w, http.StatusForbidden, "INSUFFICIENT_SCOPE", "This action needs the "+scope+" scope")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRead guards listings and exports.
func RequireRead() func(http.Handler) http.Handler { return RequireScope(model.ScopeRead) }

// RequireWrite guards inventory and wallet changes.
func RequireWrite() func(http.Handler) http.Handler { return RequireScope(model.ScopeWrite) }

// RequireAdmin guards key, password and cache management.
func RequireAdmin() func(http.Handler) http.Handler { return RequireScope(model.ScopeAdmin) }
