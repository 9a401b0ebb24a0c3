package services

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the lifecycle engine. Controllers map these to
// HTTP status codes in exactly one place.
const (
	KindValidation         = "VALIDATION"
	KindUnauthenticated    = "UNAUTHENTICATED"
	KindForbidden          = "FORBIDDEN"
	KindNotFound           = "NOT_FOUND"
	KindInvalidTransition  = "INVALID_TRANSITION"
	KindSequenceGeneration = "SEQUENCE_GENERATION"
)

type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ServiceError is the one error type the engine returns. Every failure is a
// per-request outcome; none of them are fatal to the process.
type ServiceError struct {
	Kind    string
	Message string
	Fields  []FieldViolation
	cause   error
}

func (e *ServiceError) Error() string { return e.Message }

func (e *ServiceError) Unwrap() error { return e.cause }

// AsServiceError unwraps err into a *ServiceError if there is one.
func AsServiceError(err error) (*ServiceError, bool) {
	var serr *ServiceError
	if errors.As(err, &serr) {
		return serr, true
	}
	return nil, false
}

// NewValidationError reports the violations in the order they were found;
// the message is the first one.
func NewValidationError(violations ...FieldViolation) *ServiceError {
	msg := "validation failed"
	if len(violations) > 0 {
		msg = violations[0].Message
	}
	return &ServiceError{Kind: KindValidation, Message: msg, Fields: violations}
}

func Unauthenticatedf(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: KindUnauthenticated, Message: fmt.Sprintf(format, args...)}
}

func Forbiddenf(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidTransitionf(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: KindInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

// SequenceFailure wraps a counter-store error. The create that triggered it
// must be aborted; retrying is up to the caller.
func SequenceFailure(cause error) *ServiceError {
	return &ServiceError{
		Kind:    KindSequenceGeneration,
		Message: "Failed to generate unique CR ID. Please try again.",
		cause:   cause,
	}
}
