// Package apperr defines the domain error type shared by the reservation and
// event services. Every error carries a machine-readable Code; each Code
// belongs to exactly one Kind, and callers branch on the Kind (HTTP status)
// or on the Code (client-facing reason) with errors.Is.
package apperr

import "errors"

// Kind is the coarse error class. Transports map a Kind to a status code.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindInvalidState    Kind = "invalid_state"
	KindConflict        Kind = "conflict"
	KindForbidden       Kind = "forbidden"
	KindInvalidArgument Kind = "invalid_argument"
)

// Error is the domain error type.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message, safe to return to clients
	Cause   error  // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Kind returns the class of the error's code.
func (e *Error) Kind() Kind {
	return e.Code.Kind()
}

// Is reports whether target matches this error, either by code (another
// *Error) or by class (one of the Kind sentinels).
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case *Error:
		return e.Code == t.Code
	case *kindError:
		return e.Code.Kind() == t.kind
	}
	return false
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

type kindError struct{ kind Kind }

func (k *kindError) Error() string { return string(k.kind) }

// Class sentinels. errors.Is(err, ErrConflict) holds for every code whose
// Kind is KindConflict.
var (
	ErrNotFound        error = &kindError{kind: KindNotFound}
	ErrInvalidState    error = &kindError{kind: KindInvalidState}
	ErrConflict        error = &kindError{kind: KindConflict}
	ErrForbidden       error = &kindError{kind: KindForbidden}
	ErrInvalidArgument error = &kindError{kind: KindInvalidArgument}
)

// Code sentinels for the reasons callers most often branch on.
var (
	ErrEventNotFound       = New(CodeEventNotFound, "event not found")
	ErrReservationNotFound = New(CodeReservationNotFound, "reservation not found")
	ErrDuplicate           = New(CodeDuplicateReservation, "duplicate reservation")
	ErrCapacityExceeded    = New(CodeCapacityExceeded, "capacity exceeded")
	ErrAlreadyCanceled     = New(CodeAlreadyCanceled, "already canceled")
	ErrConcurrentUpdate    = New(CodeConcurrentUpdate, "reservation was modified concurrently")
)

// CodeOf returns the code of the first *Error in err's chain, or "" when err
// is not a domain error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// KindOf returns the class of err, or "" when err is not a domain error.
func KindOf(err error) Kind {
	return CodeOf(err).Kind()
}

// IsRetryable reports whether retrying the same request may succeed. Only
// a lost race on a status update qualifies; business conflicts such as a
// duplicate or a full event never do.
func IsRetryable(err error) bool {
	return CodeOf(err) == CodeConcurrentUpdate
}
