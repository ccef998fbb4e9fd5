package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a machine-readable error code for domain rejections.
type Code string

const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeIllegalTransition Code = "ILLEGAL_TRANSITION"
	CodeGateBlocked       Code = "GATE_BLOCKED"
	CodeValidation        Code = "VALIDATION"
	CodeConflict          Code = "CONFLICT"
	CodeInvalidState      Code = "INVALID_STATE"
	CodeInvalidOperation  Code = "INVALID_OPERATION"
)

// Error is the domain error type. Allowed is set for illegal transitions and
// Missing for gate rejections so callers can render guidance.
type Error struct {
	Code    Code
	Message string
	Allowed []string
	Missing []string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return strings.ToLower(string(e.Code))
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound          = &Error{Code: CodeNotFound}
	ErrIllegalTransition = &Error{Code: CodeIllegalTransition}
	ErrGateBlocked       = &Error{Code: CodeGateBlocked}
	ErrValidation        = &Error{Code: CodeValidation}
	ErrConflict          = &Error{Code: CodeConflict}
	ErrInvalidState      = &Error{Code: CodeInvalidState}
	ErrInvalidOperation  = &Error{Code: CodeInvalidOperation}
)

func NotFound(kind, id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %q not found", kind, id)}
}

func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidState, Message: fmt.Sprintf(format, args...)}
}

func InvalidOperation(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidOperation, Message: fmt.Sprintf(format, args...)}
}

// IllegalTransition builds the rejection for a move outside the transition table.
func IllegalTransition(kind, from, to string, allowed []string) *Error {
	return &Error{
		Code:    CodeIllegalTransition,
		Message: fmt.Sprintf("%s transition not allowed: %s -> %s", kind, from, to),
		Allowed: allowed,
	}
}

// GateBlocked builds the rejection for a legal move with evidence missing.
func GateBlocked(from, to Stage, missing []string) *Error {
	return &Error{
		Code:    CodeGateBlocked,
		Message: fmt.Sprintf("stage change %s -> %s blocked: missing evidence %s", from, to, strings.Join(missing, ", ")),
		Missing: append([]string(nil), missing...),
	}
}

// CodeOf returns the domain code carried by err, or "" for infrastructure errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
