// Package errors provides coded errors for the scan and wheel core.
//
// Codes let callers tell a transport failure from a missing dataset or an
// unreadable cache entry without string matching:
//
//	err := errors.Wrap(errors.ErrCodeSourceError, "yahoo fetch", cause)
//	if errors.HasCode(err, errors.ErrCodeSourceError) { ... }
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies an error category.
type ErrorCode int

const (
	ErrCodeUnknown ErrorCode = 1

	// Validation
	ErrCodeInvalidRequest       ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInsufficientData     ErrorCode = 102

	// Data
	ErrCodeDataUnavailable ErrorCode = 200
	ErrCodeSourceError     ErrorCode = 201
	ErrCodeCacheCorruption ErrorCode = 202

	// Strategy
	ErrCodeStrategyPreconditionUnmet ErrorCode = 400
	ErrCodePositionState             ErrorCode = 401
)

var codeNames = map[ErrorCode]string{
	ErrCodeUnknown:                   "Unknown",
	ErrCodeInvalidRequest:            "InvalidRequest",
	ErrCodeInvalidConfiguration:      "InvalidConfiguration",
	ErrCodeInsufficientData:          "InsufficientData",
	ErrCodeDataUnavailable:           "DataUnavailable",
	ErrCodeSourceError:               "SourceError",
	ErrCodeCacheCorruption:           "CacheCorruption",
	ErrCodeStrategyPreconditionUnmet: "StrategyPreconditionUnmet",
	ErrCodePositionState:             "PositionState",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// Error is a structured error with a code, message and optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates an Error.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to cause.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Wrapf attaches a code and formatted message to cause.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is is errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode returns the outermost code in err's chain, or ErrCodeUnknown.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeUnknown
}

// HasCode reports whether any error in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}
