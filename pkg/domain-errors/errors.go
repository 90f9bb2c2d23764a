// Package dErrors provides coded domain errors.
//
// Services return these so transports can translate failures into stable
// wire-level codes without inspecting error strings. Infrastructure layers
// return pkg/platform/sentinel errors instead; services wrap those into
// coded errors at the module boundary.
package dErrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of domain failure. Codes are part of the API
// contract: handlers serialize them verbatim into error envelopes.
type Code string

const (
	CodeInvalidInput       Code = "invalid_input"
	CodeBadRequest         Code = "bad_request"
	CodeUnauthorized       Code = "unauthorized"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"

	// Reconciliation-specific codes. The UI relies on the distinction
	// between already_resolved ("someone else handled it") and
	// stale_request ("state drifted since the request was created").
	CodeSyncAlreadyRunning Code = "sync_already_running"
	CodeFetchFailure       Code = "fetch_failure"
	CodeAlreadyResolved    Code = "already_resolved"
	CodeStaleRequest       Code = "stale_request"
	CodeInvalidEscalation  Code = "invalid_escalation"
)

// Error is a domain error with a stable code and human-readable message.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. The cause stays
// reachable through errors.Is/errors.As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			break
		}
	}
	return false
}

// Is is a readability alias for HasCode used at call sites that read like
// dErrors.Is(err, dErrors.CodeBadRequest).
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the outermost code, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the outermost message, or the error text for
// non-domain errors.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// ToHTTPStatus maps a code onto the HTTP status handlers should emit.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeSyncAlreadyRunning, CodeAlreadyResolved, CodeStaleRequest, CodeInvalidEscalation, CodeInvariantViolation:
		return http.StatusConflict
	case CodeFetchFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
