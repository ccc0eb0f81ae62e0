package connector

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a connector failure for retry purposes
type ErrorKind string

const (
	// KindTransient covers timeouts, 5xx responses and throttling. Safe to
	// retry with backoff.
	KindTransient ErrorKind = "TRANSIENT"

	// KindPermanent covers 4xx rejections other than throttling. Retrying
	// the same call will fail the same way.
	KindPermanent ErrorKind = "PERMANENT"
)

// Error is a classified failure from an external system call
type Error struct {
	Kind       ErrorKind
	System     string
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.System, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.System, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewTransientError wraps a retryable failure
func NewTransientError(system, op string, statusCode int, err error) *Error {
	return &Error{Kind: KindTransient, System: system, Op: op, StatusCode: statusCode, Err: err}
}

// NewPermanentError wraps a non-retryable failure
func NewPermanentError(system, op string, statusCode int, err error) *Error {
	return &Error{Kind: KindPermanent, System: system, Op: op, StatusCode: statusCode, Err: err}
}

// IsTransient reports whether the error is a retryable connector failure.
// Unclassified errors (network-level failures that never produced a
// response) count as transient.
func IsTransient(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == KindTransient
	}
	return err != nil
}

// IsPermanent reports whether the error is a non-retryable connector failure
func IsPermanent(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == KindPermanent
	}
	return false
}

// ClassifyStatus maps an HTTP status code to an error kind. Timeouts and
// connection errors never reach this; they are transient by construction.
func ClassifyStatus(status int) ErrorKind {
	switch {
	case status == 429:
		return KindTransient
	case status >= 500:
		return KindTransient
	default:
		return KindPermanent
	}
}
