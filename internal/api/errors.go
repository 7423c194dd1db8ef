package api

import (
	"errors"

	"github.com/steemit/sdgforum/internal/apperr"
)

// Standard JSON-RPC error codes
const (
	ErrParseError     = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternalError  = -32603
)

// Application error codes in the server-defined range
const (
	ErrServer          = -32000
	ErrNotFound        = -32001
	ErrUnauthenticated = -32002
	ErrForbidden       = -32003
	ErrConflict        = -32009
	ErrRejected        = -32010
	ErrUnavailable     = -32011
)

// ErrorData is attached to every application error
type ErrorData struct {
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable,omitempty"`
	Score     *int   `json:"score,omitempty"`
	Rationale string `json:"rationale,omitempty"`
}

// codeFor maps a domain error kind to its JSON-RPC code
func codeFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return ErrInvalidParams
	case apperr.KindNotFound:
		return ErrNotFound
	case apperr.KindUnauthenticated:
		return ErrUnauthenticated
	case apperr.KindForbidden:
		return ErrForbidden
	case apperr.KindConflict:
		return ErrConflict
	case apperr.KindRejected:
		return ErrRejected
	case apperr.KindUnavailable:
		return ErrUnavailable
	default:
		return ErrServer
	}
}

// NewError converts a handler error into a JSON-RPC error. Internal
// failures do not leak their cause to the caller.
func NewError(err error) *JSONRPCError {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return &JSONRPCError{
			Code:    ErrServer,
			Message: "Server error",
			Data:    ErrorData{Kind: apperr.KindInternal.String()},
		}
	}

	data := ErrorData{
		Kind:      appErr.Kind.String(),
		Retryable: appErr.Retryable(),
	}
	message := appErr.Message

	switch appErr.Kind {
	case apperr.KindRejected:
		score := appErr.Score
		data.Score = &score
		data.Rationale = appErr.Rationale
	case apperr.KindInternal:
		message = "Server error"
	}

	return &JSONRPCError{
		Code:    codeFor(appErr.Kind),
		Message: message,
		Data:    data,
	}
}
