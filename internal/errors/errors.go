package errors

import "errors"

// Code identifies a structured error type used across the application.
type Code string

const (
	// Generic codes
	CodeUnknown            Code = "unknown"
	CodeNotFound           Code = "not_found"
	CodeConfigurationError Code = "configuration_error"
	CodeStoreFailed        Code = "store_failed"

	// Update errors
	CodeInvalidVersionFormat Code = "invalid_version_format"
	CodeInsecureTransport    Code = "insecure_transport"
	CodeSizeLimitExceeded    Code = "size_limit_exceeded"
	CodeTransferFailed       Code = "transfer_failed"
	CodeIntegrityMismatch    Code = "integrity_mismatch"
	CodeCancelled            Code = "cancelled"
	CodeUpdateInProgress     Code = "update_in_progress"
)

// Error represents a structured error with a machine-readable code plus message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

// Unwrap returns the wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// New wraps an error with a code/message.
func New(code Code, msg string, err error) Error {
	return Error{Code: code, Message: msg, Err: err}
}

// CodeOf walks the error chain and returns the first structured code found.
func CodeOf(err error) Code {
	var structured Error
	if errors.As(err, &structured) {
		return structured.Code
	}
	return CodeUnknown
}

// IsCode reports whether the error (or its unwrap chain) matches the provided code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsSecurityEvent reports whether the error indicates hostile or tampered input
// rather than a transient fault.
func IsSecurityEvent(err error) bool {
	switch CodeOf(err) {
	case CodeInvalidVersionFormat, CodeInsecureTransport, CodeIntegrityMismatch:
		return true
	default:
		return false
	}
}
