package types

import "fmt"

// ErrorCode represents a unified error code across the bridge.
type ErrorCode string

// Capture error codes
const (
	ErrTimeout          ErrorCode = "TIMEOUT"
	ErrPermissionDenied ErrorCode = "PERMISSION_DENIED"
	ErrDeviceBusy       ErrorCode = "DEVICE_BUSY"
	ErrCaptureFailed    ErrorCode = "CAPTURE_FAILED"
)

// Collaboration error codes
const (
	ErrUnmatchedReply  ErrorCode = "UNMATCHED_REPLY"
	ErrExpired         ErrorCode = "EXPIRED"
	ErrDispatchPending ErrorCode = "DISPATCH_PENDING"
	ErrDeliveryFailed  ErrorCode = "DELIVERY_FAILED"
)

// Persistence error codes
const (
	ErrStoreIO  ErrorCode = "STORE_IO"
	ErrNotFound ErrorCode = "NOT_FOUND"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Channel    ChannelKind `json:"channel,omitempty"`
	Permission string      `json:"permission,omitempty"`
	Retryable  bool        `json:"retryable"`
	Cause      error       `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithChannel records which capture channel produced the error.
func (e *Error) WithChannel(channel ChannelKind) *Error {
	e.Channel = channel
	return e
}

// WithPermission records which OS permission was missing, so the external
// client can render a remediation hint.
func (e *Error) WithPermission(permission string) *Error {
	e.Permission = permission
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// StatusToCode maps a capture status to its error code.
// CaptureOK maps to the empty code.
func StatusToCode(status CaptureStatus) ErrorCode {
	switch status {
	case CaptureTimeout:
		return ErrTimeout
	case CapturePermissionDenied:
		return ErrPermissionDenied
	case CaptureDeviceBusy:
		return ErrDeviceBusy
	case CaptureFailed:
		return ErrCaptureFailed
	}
	return ""
}
