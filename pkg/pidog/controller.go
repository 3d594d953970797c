// Package pidog provides the hardware control plane for the SunFounder PiDog
// robot: a Controller abstraction with a real hardware variant driven through
// a Driver, a deterministic mock variant, and the frame and result types
// shared by every layer.
//
// Every Controller method is safe for concurrent use; implementations
// serialize access to the device.
package pidog

import (
	"context"

	"github.com/teslashibe/go-pidog/pkg/actions"
)

// Mode identifies a controller variant.
type Mode string

const (
	ModeHardware Mode = "hardware"
	ModeMock     Mode = "mock"
	ModeRemote   Mode = "remote"

	// ModeAuto is only valid for Select: probe hardware, fall back to mock.
	ModeAuto Mode = "auto"
)

// Controller drives the robot. Execute never returns a raw error: every
// failure is reported as a failed Result with a kind.
type Controller interface {
	// Initialize brings the robot to a known pose before accepting commands.
	Initialize(ctx context.Context) error

	// Execute runs one catalog action with already normalized parameters.
	Execute(ctx context.Context, action string, p actions.Params) Result

	// CaptureFrame returns the current camera frame.
	CaptureFrame(ctx context.Context) (Frame, error)

	// Shutdown parks the robot and releases the device. It is idempotent.
	Shutdown(ctx context.Context) error

	// Mode reports which variant this controller is.
	Mode() Mode
}

// CameraReporter is implemented by controllers that know whether their
// camera is streaming.
type CameraReporter interface {
	CameraActive() bool
}

// Ensure both variants implement Controller.
var (
	_ Controller = (*Hardware)(nil)
	_ Controller = (*Mock)(nil)
)
