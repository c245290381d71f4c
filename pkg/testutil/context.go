package testutil

import (
	"net/http"
	"time"

	"tessera/pkg/requestcontext"
)

// WithRequestTime pins the request clock, simulating what the requesttime
// middleware does so handlers under test see a deterministic now.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithRequestID stamps a request id on the context, as the requestid
// middleware would.
func WithRequestID(req *http.Request, id string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), id))
}
