package stock

import (
	"fmt"

	errors "github.com/Laisky/errors/v2"
)

// ErrorCode identifies a machine-stable stock error code.
type ErrorCode string

const (
	ErrCodeValidation       ErrorCode = "VALIDATION_FAILED"
	ErrCodeUnknownOperation ErrorCode = "UNKNOWN_OPERATION"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeConflict         ErrorCode = "CONFLICT"
	ErrCodeStore            ErrorCode = "STORE_ERROR"
)

// ErrorKind groups error codes into the four failure families callers branch on.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindStore      ErrorKind = "store"
)

// Error captures a typed stock error with structured details.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]any
}

// Error returns the error message.
func (e *Error) Error() string {
	if e == nil {
		return "stock error: <nil>"
	}
	if e.Message == "" {
		return fmt.Sprintf("stock error: %s", e.Code)
	}
	return e.Message
}

// Kind maps the error code to its failure family.
func (e *Error) Kind() ErrorKind {
	if e == nil {
		return KindStore
	}
	switch e.Code {
	case ErrCodeValidation, ErrCodeUnknownOperation:
		return KindValidation
	case ErrCodeNotFound:
		return KindNotFound
	case ErrCodeConflict:
		return KindConflict
	default:
		return KindStore
	}
}

// NewError constructs a typed stock error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithDetail returns the error with one more detail entry set.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// newValidationError reports a rejected argument together with the violated constraint.
func newValidationError(field, constraint, message string) *Error {
	return NewError(ErrCodeValidation, message).
		WithDetail("field", field).
		WithDetail("constraint", constraint)
}

// newNotFoundError reports a missing record of the given entity.
func newNotFoundError(entity, message string) *Error {
	return NewError(ErrCodeNotFound, message).WithDetail("entity", entity)
}

// newStoreError wraps an unexpected backend failure, keeping its message verbatim.
func newStoreError(err error) *Error {
	if err == nil {
		return NewError(ErrCodeStore, "unknown store error")
	}
	return NewError(ErrCodeStore, err.Error())
}

// AsError extracts a typed stock error from the error chain.
func AsError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}

// IsCode reports whether the error chain contains the given code.
func IsCode(err error, code ErrorCode) bool {
	if typed, ok := AsError(err); ok {
		return typed.Code == code
	}
	return false
}
