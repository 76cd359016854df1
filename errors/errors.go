// Package errors provides the error taxonomy for tree synchronization.
//
// Every failure surfaced by the engine is an *Error carrying one of the sentinel
// kinds below, so callers can branch with errors.Is regardless of how deeply the
// error was wrapped:
//
//	if errors.Is(err, errors.ErrCancelled) {
//	    // partial report is still valid
//	}
package errors

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. An *Error matches its kind with errors.Is.
var (
	// ErrConfig indicates unusable settings, such as a missing bucket.
	ErrConfig = errors.New("treesync: configuration failure")

	// ErrIO indicates listing, reading or writing a tree failed.
	ErrIO = errors.New("treesync: io failure")

	// ErrTransfer indicates a specific action could not be completed.
	ErrTransfer = errors.New("treesync: transfer failure")

	// ErrCancelled indicates the operation stopped because its context was cancelled.
	ErrCancelled = errors.New("treesync: cancelled")

	// ErrUnsupported indicates a direction or operation the engine declines to perform.
	ErrUnsupported = errors.New("treesync: unsupported operation")

	// ErrNotFound indicates the path does not exist in the tree.
	ErrNotFound = errors.New("treesync: not found")
)

// Error describes a failed operation against a tree.
type Error struct {
	// Op is the operation that failed (e.g., "list", "write", "sync")
	Op string

	// Kind is one of the sentinel kinds declared in this package
	Kind error

	// Tree describes the tree involved, if any
	Tree string

	// Path is the tree path involved, if any
	Path string

	// Err is the underlying cause
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	cause := e.Err
	if cause == nil {
		cause = e.Kind
	}
	switch {
	case e.Tree != "" && e.Path != "":
		return fmt.Sprintf("treesync.%s %s %s: %v", e.Op, e.Tree, e.Path, cause)
	case e.Tree != "":
		return fmt.Sprintf("treesync.%s %s: %v", e.Op, e.Tree, cause)
	case e.Path != "":
		return fmt.Sprintf("treesync.%s %s: %v", e.Op, e.Path, cause)
	default:
		return fmt.Sprintf("treesync.%s: %v", e.Op, cause)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// WithTree adds tree context to the error.
func (e *Error) WithTree(tree string) *Error {
	e.Tree = tree
	return e
}

// WithPath adds path context to the error.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithMessage prefixes the cause with message. A nil cause becomes message itself.
func (e *Error) WithMessage(message string) *Error {
	if e.Err == nil {
		e.Err = errors.New(message)
		return e
	}
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// New creates an Error of the given kind.
func New(op string, kind, err error) *Error {
	return &Error{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// NewConfigError creates a configuration failure with a plain message.
func NewConfigError(op, message string) *Error {
	return New(op, ErrConfig, nil).WithMessage(message)
}

// NewIOError wraps err as an I/O failure.
func NewIOError(op string, err error) *Error {
	return New(op, ErrIO, err)
}

// NewTransferError wraps err as the failure of the action touching path.
func NewTransferError(op, path string, err error) *Error {
	return New(op, ErrTransfer, err).WithPath(path)
}

// NewUnsupportedError creates an unsupported-operation failure.
func NewUnsupportedError(op, message string) *Error {
	return New(op, ErrUnsupported, nil).WithMessage(message)
}

// NewCancelledError wraps the context error that stopped op.
func NewCancelledError(op string, err error) *Error {
	return New(op, ErrCancelled, err)
}

// IsNotFound reports whether err indicates a missing path.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsCancelled reports whether err indicates cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsConfig reports whether err indicates a configuration failure.
func IsConfig(err error) bool {
	return errors.Is(err, ErrConfig)
}

// IsUnsupported reports whether err indicates an unsupported operation.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

// Is and As are re-exported so callers importing this package under the name
// errors keep access to the standard helpers.
var (
	Is = errors.Is
	As = errors.As
)
