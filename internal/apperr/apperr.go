// Package apperr defines the error taxonomy shared by the personalization
// services and the HTTP layer.
//
// Services wrap failures with E so callers can classify them with errors.Is
// against the kind sentinels, while the underlying cause stays available for
// logging.
package apperr

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	// ErrUnauthorized means the caller identity is missing or invalid.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden means the caller is authenticated but not entitled to the resource.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound means a referenced post or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput means a required field is missing or the payload is malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmbeddingFailed means the embedding provider failed or returned a non-success response.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrStoreFailed means an underlying data-store call failed.
	ErrStoreFailed = errors.New("store failed")
)

// Error is a classified failure produced by a service operation.
type Error struct {
	Kind error  // one of the kind sentinels above
	Op   string // operation that failed, e.g. "embedder.EmbedPost"
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// E builds a classified error. A nil err yields an error carrying only the kind.
func E(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Invalid is shorthand for an ErrInvalidInput with a message.
func Invalid(op, msg string) error {
	return &Error{Kind: ErrInvalidInput, Op: op, Err: errors.New(msg)}
}

// KindOf returns the kind sentinel for err, or nil if err is unclassified.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrUnauthorized,
		ErrForbidden,
		ErrNotFound,
		ErrInvalidInput,
		ErrEmbeddingFailed,
		ErrStoreFailed,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Message returns the user-facing message of a classified error: the cause
// for invalid input, otherwise the kind text.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Kind == ErrInvalidInput && ae.Err != nil {
			return ae.Err.Error()
		}
		return ae.Kind.Error()
	}
	return "internal error"
}
