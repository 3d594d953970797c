package pidog

import "errors"

// Result is the outcome of an action. It travels unchanged through every
// layer: backend, HTTP service, remote client and dispatcher.
type Result struct {
	Success bool      `json:"success"`
	Action  string    `json:"action"`
	Error   string    `json:"error,omitempty"`
	Kind    ErrorKind `json:"error_kind,omitempty"`

	// Mock marks results produced by the simulated backend.
	Mock bool `json:"mock,omitempty"`
}

// Succeeded returns a successful result for action.
func Succeeded(action string) Result {
	return Result{Success: true, Action: action}
}

// Failed returns a failed result for action carrying err's message and kind.
func Failed(action string, err error) Result {
	if err == nil {
		err = errors.New("action failed")
	}
	msg := err.Error()
	var pe *Error
	if errors.As(err, &pe) {
		msg = pe.Err.Error()
	}
	return Result{
		Action: action,
		Error:  msg,
		Kind:   KindOf(err),
	}
}

// Err returns nil for a successful result and a typed *Error otherwise.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	kind := r.Kind
	if kind == "" {
		kind = KindDeviceFault
	}
	msg := r.Error
	if msg == "" {
		msg = "action failed"
	}
	return &Error{Kind: kind, Op: r.Action, Err: errors.New(msg)}
}

// Health is the readiness report of a hardware control service.
type Health struct {
	Status            string `json:"status"`
	HardwareAvailable bool   `json:"hardware_available"`
	CameraActive      bool   `json:"camera_active"`
	Mode              Mode   `json:"mode"`
}
