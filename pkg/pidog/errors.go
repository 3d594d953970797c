package pidog

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a failed operation so callers can branch on the
// failure category.
type ErrorKind string

// Error kinds reported in Result.Kind and Error.Kind.
const (
	KindUnknownAction  ErrorKind = "unknown_action"
	KindTimeout        ErrorKind = "timeout"
	KindDeviceFault    ErrorKind = "device_fault"
	KindTransportFault ErrorKind = "transport_fault"
	KindCaptureFault   ErrorKind = "capture_fault"
)

// Sentinel errors for common conditions.
var (
	// ErrUnknownAction is returned when an action is not in the catalog.
	ErrUnknownAction = errors.New("unknown action")

	// ErrNoHardware is returned when the hardware binding cannot be reached.
	ErrNoHardware = errors.New("pidog: hardware not available")

	// ErrNotInitialized is returned when the hardware was never brought to
	// its stand pose.
	ErrNotInitialized = errors.New("pidog: hardware not initialized")

	// ErrShutdown is returned for calls made after Shutdown.
	ErrShutdown = errors.New("pidog: controller shut down")
)

// Error is a failed controller operation with its category.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("pidog [%s]: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("pidog %s [%s]: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap attaches a kind and operation to err. A nil err stays nil.
func Wrap(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the kind of err. Errors without an explicit kind are
// device faults, except deadline errors which are timeouts.
func KindOf(err error) ErrorKind {
	var pe *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return pe.Kind
	case errors.Is(err, ErrUnknownAction):
		return KindUnknownAction
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindDeviceFault
	}
}
