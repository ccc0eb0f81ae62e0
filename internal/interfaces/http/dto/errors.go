package dto

import "net/http"

// Error codes surfaced by the API. Domain error codes pass through
// unchanged so clients see the same vocabulary in responses and in the
// audit trail.
const (
	ErrCodeUnknown  = "UNKNOWN"
	ErrCodeInternal = "INTERNAL"

	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeRateLimited  = "RATE_LIMITED"

	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeAlreadyExists       = "ALREADY_EXISTS"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeConcurrencyConflict = "CONCURRENCY_CONFLICT"

	ErrCodeInvalidPayload    = "INVALID_PAYLOAD"
	ErrCodeInvalidState      = "INVALID_STATE"
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodeExternalTransient = "EXTERNAL_TRANSIENT"
	ErrCodeExternalPermanent = "EXTERNAL_PERMANENT"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeRateLimited:  http.StatusTooManyRequests,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// A decision or retry against the wrong lifecycle state is a
	// conflict with current resource state, not a malformed request.
	ErrCodeInvalidState: http.StatusConflict,

	ErrCodeInvalidPayload:    http.StatusBadRequest,
	ErrCodeValidationFailed:  http.StatusUnprocessableEntity,
	ErrCodeExternalTransient: http.StatusBadGateway,
	ErrCodeExternalPermanent: http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
