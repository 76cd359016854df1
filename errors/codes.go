package errors

import (
	"context"
	"errors"
)

// ErrorCode is a stable, string-based identifier for a failure class.
// Codes are intended for exit-status mapping and machine-readable output.
type ErrorCode string

const (
	// CodeInvalidConfig indicates a configuration error prevents the operation.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// CodeIO indicates a tree could not be listed, read or written.
	CodeIO ErrorCode = "IO_ERROR"

	// CodeNotFound indicates a requested path does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeTransferFailed indicates an individual action failed.
	CodeTransferFailed ErrorCode = "TRANSFER_FAILED"

	// CodeCancelled indicates the operation was cancelled.
	CodeCancelled ErrorCode = "CANCELLED"

	// CodeNotImplemented indicates the requested direction is not supported.
	CodeNotImplemented ErrorCode = "NOT_IMPLEMENTED"

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)

// CodeOf classifies err. Kinds are checked from most to least specific, so a
// transfer that failed because its source vanished reports CodeTransferFailed.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return CodeCancelled
	case errors.Is(err, ErrConfig):
		return CodeInvalidConfig
	case errors.Is(err, ErrUnsupported):
		return CodeNotImplemented
	case errors.Is(err, ErrTransfer):
		return CodeTransferFailed
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrIO):
		return CodeIO
	default:
		return CodeUnknown
	}
}

// Code returns the code of e's kind.
func (e *Error) Code() ErrorCode {
	return CodeOf(e)
}
