package core

import "errors"

// Error kinds. Every error returned by services wraps one of these.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrInternal         = errors.New("internal error")
	ErrConflict         = errors.New("conflict")
	ErrUnauthorized     = errors.New("unauthorized")
)

// Error carries a kind plus a user-facing message. Detail is only
// exposed for internal errors.
type Error struct {
	Kind    error
	Message string
	Detail  string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func InvalidInput(msg string) error {
	return &Error{Kind: ErrInvalidInput, Message: msg}
}

func NotFound(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

func Forbidden(msg string) error {
	return &Error{Kind: ErrForbidden, Message: msg}
}

func Conflict(msg string) error {
	return &Error{Kind: ErrConflict, Message: msg}
}

func MethodNotAllowed(msg string) error {
	return &Error{Kind: ErrMethodNotAllowed, Message: msg}
}

func Unauthorized(msg string) error {
	return &Error{Kind: ErrUnauthorized, Message: msg}
}

// Internal wraps cause as an internal error, keeping its text as detail.
func Internal(msg string, cause error) error {
	e := &Error{Kind: ErrInternal, Message: msg}
	if cause != nil {
		e.Detail = cause.Error()
	}
	return e
}

// MessageOf returns the user-facing message and detail of err.
func MessageOf(err error) (string, string) {
	var e *Error
	if errors.As(err, &e) {
		return e.Message, e.Detail
	}
	return err.Error(), ""
}
