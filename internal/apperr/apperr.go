// Package apperr defines the domain error taxonomy shared by the services
// and mapped onto wire error codes by the API layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindUnauthenticated
	KindRejected
	KindUnavailable
	KindConflict
)

// String returns the wire name of the kind
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindRejected:
		return "moderation_rejected"
	case KindUnavailable:
		return "service_unavailable"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a classified domain error
type Error struct {
	Kind    Kind
	Message string

	// Score and Rationale are set for moderation rejections
	Score     int
	Rationale string

	cause error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether the caller may retry the same request unchanged
func (e *Error) Retryable() bool {
	return e.Kind == KindUnavailable
}

// Validation reports a client-caused input error
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing entity or one not in the required state
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Forbidden reports an actor lacking ownership or role
func Forbidden(format string, args ...interface{}) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// Unauthenticated reports a missing or invalid requester identity
func Unauthenticated(message string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: message}
}

// Conflict reports a uniqueness violation
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Rejected reports a moderation rejection with the score that caused it
func Rejected(score int, rationale string) *Error {
	return &Error{
		Kind:      KindRejected,
		Message:   fmt.Sprintf("thread is not relevant to the selected categories (relevance score %d)", score),
		Score:     score,
		Rationale: rationale,
	}
}

// Unavailable reports a transient dependency outage; no partial write happened
func Unavailable(message string) *Error {
	return &Error{Kind: KindUnavailable, Message: message}
}

// Internal wraps an unexpected failure
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, cause: cause}
}

// KindOf returns the kind of err, or KindInternal if err is not classified
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
