// Package admin gates authority-only routes on the shared admin token.
package admin

import (
	"log/slog"
	"net/http"

	"tessera/pkg/domain"
	"tessera/pkg/requestcontext"
)

// Header carries the authority token on admin requests.
const Header = "X-Admin-Token"

// RequireToken rejects requests whose token does not grant the configured
// capability. Handlers behind it re-derive the capability from the same
// header so services can run their own Grants check.
func RequireToken(authority domain.AdminCapability, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := domain.NewAdminCapability(r.Header.Get(Header))
			if !authority.Grants(presented) {
				ctx := r.Context()
				if logger != nil {
					logger.WarnContext(ctx, "admin token mismatch",
						"request_id", requestcontext.RequestID(ctx),
					)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"admin token required"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// FromRequest builds the capability presented on a request.
func FromRequest(r *http.Request) domain.AdminCapability {
	return domain.NewAdminCapability(r.Header.Get(Header))
}
