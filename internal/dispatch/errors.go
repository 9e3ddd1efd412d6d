package dispatch

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes dispatch errors.
type ErrorCode string

const (
	// ErrCodeNotConnected indicates no backend session is bound.
	ErrCodeNotConnected ErrorCode = "NOT_CONNECTED"

	// ErrCodeBackendCallFailed indicates a backend action returned an error.
	ErrCodeBackendCallFailed ErrorCode = "BACKEND_CALL_FAILED"

	// ErrCodeTeardownFailed indicates the backend failed to close.
	// Never returned to callers; only logged.
	ErrCodeTeardownFailed ErrorCode = "TEARDOWN_FAILED"
)

// ErrNotConnected matches every NOT_CONNECTED error via errors.Is.
var ErrNotConnected = &Error{Code: ErrCodeNotConnected}

// Error is a dispatch failure with structured fields for diagnostics.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Modality is the presentation channel that failed.
	Modality Modality

	// Op is the backend operation (prepare, blank_screen, present, ...).
	Op string

	// Err is the underlying backend error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Modality != "" {
		msg = fmt.Sprintf("%s (%s", msg, e.Modality)
		if e.Op != "" {
			msg += " " + e.Op
		}
		msg += ")"
	}
	if e.Code == ErrCodeNotConnected && e.Err == nil {
		msg += ": backend is not connected to a presentation session"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors by code so that errors.Is(err, ErrNotConnected) works
// for any NOT_CONNECTED error regardless of modality.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Modality == "" && t.Op == "" && t.Err == nil
}

// IsNotConnected reports whether err is a NOT_CONNECTED error.
func IsNotConnected(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == ErrCodeNotConnected
	}
	return false
}

// IsBackendFailure reports whether err is a BACKEND_CALL_FAILED error.
func IsBackendFailure(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == ErrCodeBackendCallFailed
	}
	return false
}

func notConnected(m Modality) *Error {
	return &Error{Code: ErrCodeNotConnected, Modality: m}
}

func backendFailed(m Modality, op string, err error) *Error {
	return &Error{Code: ErrCodeBackendCallFailed, Modality: m, Op: op, Err: err}
}
