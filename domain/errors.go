package domain

import "errors"

// ErrorCode classifies failures so transports can map them uniformly.
type ErrorCode string

const (
	ErrCodeNotFound    ErrorCode = "NOT_FOUND"
	ErrCodeInvalid     ErrorCode = "INVALID"
	ErrCodeGone        ErrorCode = "GONE"
	ErrCodeConflict    ErrorCode = "CONFLICT"
	ErrCodeOffline     ErrorCode = "OFFLINE"
	ErrCodeTransport   ErrorCode = "TRANSPORT"
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE"
	ErrCodeInternal    ErrorCode = "INTERNAL"
)

// Error is a classified domain error, optionally wrapping a cause.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

var (
	ErrTaskNotFound   = NewError(ErrCodeNotFound, "task not found")
	ErrTaskGone       = NewError(ErrCodeGone, "task is deleted")
	ErrEmptyTitle     = NewError(ErrCodeInvalid, "title must not be empty")
	ErrInvalidPayload = NewError(ErrCodeInvalid, "invalid payload")
	ErrOffline        = NewError(ErrCodeOffline, "remote authority unreachable")
	ErrSyncInFlight   = NewError(ErrCodeConflict, "sync already running")
)

// IsDomainError reports whether err carries the given code anywhere in
// its chain.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	return errors.As(err, &dErr) && dErr.Code == code
}
