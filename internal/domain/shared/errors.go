package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidPayload      = NewDomainError("INVALID_PAYLOAD", "Request payload is malformed")
	ErrConflict            = NewDomainError("CONFLICT", "Correlation ID is already bound to a different payload")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrValidationFailed    = NewDomainError("VALIDATION_FAILED", "Resource validation rejected the request")
	ErrExternalTransient   = NewDomainError("EXTERNAL_TRANSIENT", "External system is temporarily unavailable")
	ErrExternalPermanent   = NewDomainError("EXTERNAL_PERMANENT", "External system rejected the request")
)
