// Package requestid assigns each request an id for log correlation.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"tessera/pkg/requestcontext"
)

// Header carries the request id on both requests and responses.
const Header = "X-Request-ID"

// Middleware reuses the caller's request id when present, otherwise
// generates one, and echoes it back in the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(Header, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
