// Package dErrors defines coded domain errors for the issuance/trading core.
//
// Services return these for every policy, economic, or validation failure so
// callers can branch on the code and read the offending value plus the limit
// it violated without re-querying state. Infrastructure facts (not found,
// conflict, unavailable) use pkg/platform/sentinel instead; services translate
// them at the boundary.
package dErrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. The set mirrors the core's failure
// taxonomy; every code means one corrective action for the caller.
type Code string

const (
	// CodeInvalidParameters: malformed or out-of-range input. Caller's fault,
	// never retried by the core.
	CodeInvalidParameters Code = "invalid_parameters"

	// CodeNotEligible: missing/inactive commitment or failed proof. Caller
	// must re-register or regenerate the proof.
	CodeNotEligible Code = "not_eligible"

	// CodeAssetNotFound: the referenced asset was never issued.
	CodeAssetNotFound Code = "asset_not_found"

	// CodePriceUnavailable / CodePriceStale: oracle dependency not ready.
	// Caller should retry after the next accepted update.
	CodePriceUnavailable Code = "price_unavailable"
	CodePriceStale       Code = "price_stale"

	// Economic preconditions. Caller must adjust the request.
	CodeInsufficientSupply  Code = "insufficient_supply"
	CodeInsufficientPayment Code = "insufficient_payment"

	// Transfer policy preconditions. Caller must wait or adjust the amount.
	CodeBelowMinimumUnit Code = "below_minimum_unit"
	CodeLockupActive     Code = "lockup_active"
	CodeTransferRejected Code = "transfer_rejected"

	// Oracle update rejections.
	CodeUnsupportedFeed Code = "unsupported_feed"
	CodeInsufficientFee Code = "insufficient_fee"

	// Commitment registry failures.
	CodeZeroCommitment     Code = "zero_commitment"
	CodeAlreadyActive      Code = "already_active"
	CodeNoActiveCommitment Code = "no_active_commitment"

	// Yield calculator failures.
	CodeZeroPrincipal Code = "zero_principal"
	CodeZeroDuration  Code = "zero_duration"

	// CodeForbidden: presented admin capability does not grant the operation.
	CodeForbidden Code = "forbidden"

	// CodeInternal: unexpected infrastructure failure surfaced to the caller.
	CodeInternal Code = "internal"
)

// Error is a coded domain error with structured context fields.
type Error struct {
	Code    Code
	Message string
	fields  map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// With attaches a structured context field (the offending value, the violated
// limit) and returns the error for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.fields == nil {
		e.fields = make(map[string]any, 2)
	}
	e.fields[key] = value
	return e
}

// Field returns a named context field, or nil if absent.
func (e *Error) Field(key string) any {
	return e.fields[key]
}

// New constructs a domain error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates an underlying error with a domain code. Returns nil when err
// is nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias of HasCode kept for call-site readability in tests.
func Is(err error, code Code) bool { return HasCode(err, code) }

// Field extracts a structured context field from err, or nil.
func Field(err error, key string) any {
	var de *Error
	if errors.As(err, &de) {
		return de.Field(key)
	}
	return nil
}
