// Package admin guards operator endpoints such as rule reloads.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	request "loanflow/pkg/platform/middleware/request"
)

// RequireAdminToken rejects requests whose X-Admin-Token header does not
// match expectedToken. An empty expectedToken disables the guarded routes.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if expectedToken == "" {
				logger.WarnContext(ctx, "admin endpoint called without a configured token",
					"request_id", request.GetRequestID(ctx),
					"path", r.URL.Path,
				)
				writeJSON(w, http.StatusForbidden, `{"error":"forbidden","error_description":"admin endpoints are disabled"}`)
				return
			}
			token := r.Header.Get("X-Admin-Token")
			// Constant-time comparison against timing attacks
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", request.GetRequestID(ctx),
					"path", r.URL.Path,
				)
				writeJSON(w, http.StatusUnauthorized, `{"error":"unauthorized","error_description":"admin token required"}`)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
