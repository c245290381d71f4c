// Package httputil centralizes JSON encoding and domain error translation
// for the HTTP transport.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "tessera/pkg/domain-errors"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError translates a domain error into a JSON error envelope. Internal
// errors omit the description so infrastructure details never leak.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeInternal
	message := ""
	var de *dErrors.Error
	if errors.As(err, &de) {
		code = de.Code
		message = de.Message
	}

	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal && message != "" {
		body["error_description"] = message
	}
	WriteJSON(w, ToHTTPStatus(code), body)
}

// Decode parses a JSON request body into T. A failure writes a 400 response
// and returns ok=false; the handler just returns.
func Decode[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidParameters, "malformed request body"))
		var zero T
		return zero, false
	}
	return req, true
}

// ToHTTPStatus maps domain error codes onto HTTP status codes.
func ToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeInvalidParameters,
		dErrors.CodeZeroCommitment,
		dErrors.CodeZeroPrincipal,
		dErrors.CodeZeroDuration,
		dErrors.CodeUnsupportedFeed:
		return http.StatusBadRequest
	case dErrors.CodeForbidden,
		dErrors.CodeNotEligible:
		return http.StatusForbidden
	case dErrors.CodeAssetNotFound:
		return http.StatusNotFound
	case dErrors.CodeAlreadyActive,
		dErrors.CodeNoActiveCommitment:
		return http.StatusConflict
	case dErrors.CodeInsufficientSupply,
		dErrors.CodeInsufficientPayment,
		dErrors.CodeInsufficientFee,
		dErrors.CodeBelowMinimumUnit,
		dErrors.CodeLockupActive,
		dErrors.CodeTransferRejected:
		return http.StatusUnprocessableEntity
	case dErrors.CodePriceUnavailable,
		dErrors.CodePriceStale:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
