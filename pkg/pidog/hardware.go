package pidog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-pidog/pkg/actions"
)

// Driver is the binding to the robot's motors and camera. Implementations
// need not be safe for concurrent use; Hardware serializes every call.
type Driver interface {
	// Do runs a non-directional action at the given speed.
	Do(ctx context.Context, action string, speed int) error

	// Walk runs a directional action for a number of steps.
	Walk(ctx context.Context, action string, steps, speed int) error

	// ReadFrame returns the current sensor buffer.
	ReadFrame(ctx context.Context) (RawFrame, error)

	// Close releases the camera and the motor controller.
	Close() error
}

// RawFrame is a sensor buffer as delivered by the driver.
type RawFrame struct {
	Width  int
	Height int
	Format PixelFormat
	Pix    []byte
}

// Poses and speeds used around the hardware lifecycle.
const (
	StandAction   = "stand"
	SitAction     = "sit"
	StandSpeed    = 80
	ShutdownSpeed = 50
)

// HardwareConfig holds the settle delays of the real backend.
type HardwareConfig struct {
	// StandSettle is waited after the initial stand pose.
	StandSettle time.Duration
	// ActionSettle is waited after each action so the motion completes.
	ActionSettle time.Duration
	// ShutdownSettle is waited after the final sit pose.
	ShutdownSettle time.Duration

	Catalog *actions.Catalog
	Logger  *slog.Logger
}

// HardwareOption configures a Hardware backend.
type HardwareOption func(*HardwareConfig)

// WithSettle sets the stand, action and shutdown settle delays.
func WithSettle(stand, action, shutdown time.Duration) HardwareOption {
	return func(c *HardwareConfig) {
		c.StandSettle, c.ActionSettle, c.ShutdownSettle = stand, action, shutdown
	}
}

// WithCatalog sets the catalog used to tell directional actions apart.
func WithCatalog(cat *actions.Catalog) HardwareOption {
	return func(c *HardwareConfig) { c.Catalog = cat }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) HardwareOption {
	return func(c *HardwareConfig) { c.Logger = l }
}

// DefaultHardwareConfig returns the settle delays the PiDog needs.
func DefaultHardwareConfig() HardwareConfig {
	return HardwareConfig{
		StandSettle:    time.Second,
		ActionSettle:   500 * time.Millisecond,
		ShutdownSettle: time.Second,
		Catalog:        actions.Default(),
		Logger:         slog.Default(),
	}
}

// Hardware is the real backend. A single mutex serializes every device
// call, including the settle wait after a motion.
type Hardware struct {
	driver Driver
	cfg    HardwareConfig

	mu          sync.Mutex
	initialized bool
	closed      bool

	// active mirrors initialized && !closed for readers that must not wait
	// behind a running motion.
	active atomic.Bool
}

// NewHardware wraps a connected driver.
func NewHardware(d Driver, opts ...HardwareOption) *Hardware {
	cfg := DefaultHardwareConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Catalog == nil {
		cfg.Catalog = actions.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Hardware{driver: d, cfg: cfg}
}

// Initialize drives the robot to the stand pose.
func (h *Hardware) Initialize(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return Wrap(KindDeviceFault, "initialize", ErrShutdown)
	}
	if h.initialized {
		return nil
	}

	h.cfg.Logger.Info("initializing pidog hardware")
	err := guard(func() error {
		return h.driver.Do(ctx, StandAction, StandSpeed)
	})
	if err != nil {
		return Wrap(KindOf(err), "initialize", err)
	}
	sleep(ctx, h.cfg.StandSettle)

	h.initialized = true
	h.active.Store(true)
	h.cfg.Logger.Info("pidog hardware initialized")
	return nil
}

// Execute runs one action and waits for it to settle.
func (h *Hardware) Execute(ctx context.Context, action string, p actions.Params) Result {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.closed:
		return Failed(action, Wrap(KindDeviceFault, action, ErrShutdown))
	case !h.initialized:
		return Failed(action, Wrap(KindDeviceFault, action, ErrNotInitialized))
	}

	directional := h.cfg.Catalog.IsDirectional(action)
	h.cfg.Logger.Info("executing action", "action", action, "speed", p.Speed, "steps", p.Steps)

	err := guard(func() error {
		if directional {
			return h.driver.Walk(ctx, action, p.Steps, p.Speed)
		}
		return h.driver.Do(ctx, action, p.Speed)
	})
	if err != nil {
		h.cfg.Logger.Error("action failed", "action", action, "error", err)
		return Failed(action, err)
	}

	sleep(ctx, h.cfg.ActionSettle)
	h.cfg.Logger.Info("action completed", "action", action)
	return Succeeded(action)
}

// CaptureFrame reads the sensor buffer and converts it to RGB.
func (h *Hardware) CaptureFrame(ctx context.Context) (Frame, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return Frame{}, Wrap(KindCaptureFault, "capture", ErrShutdown)
	}

	var raw RawFrame
	err := guard(func() error {
		var err error
		raw, err = h.driver.ReadFrame(ctx)
		return err
	})
	if err != nil {
		kind := KindCaptureFault
		if KindOf(err) == KindTimeout {
			kind = KindTimeout
		}
		return Frame{}, Wrap(kind, "capture", err)
	}

	f, err := FromRaw(raw.Width, raw.Height, raw.Format, raw.Pix)
	if err != nil {
		return Frame{}, Wrap(KindCaptureFault, "capture", err)
	}
	return f, nil
}

// Shutdown sits the robot down and closes the driver. Later calls are
// no-ops. Errors are logged and returned but never leave the device half
// closed: the driver is closed even if the sit pose fails.
func (h *Hardware) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	h.active.Store(false)

	h.cfg.Logger.Info("shutting down pidog hardware")
	var errs []error
	if h.initialized {
		if err := guard(func() error { return h.driver.Do(ctx, SitAction, ShutdownSpeed) }); err != nil {
			errs = append(errs, fmt.Errorf("sit: %w", err))
		} else {
			sleep(ctx, h.cfg.ShutdownSettle)
		}
	}
	if err := guard(h.driver.Close); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		h.cfg.Logger.Error("shutdown error", "error", err)
		return Wrap(KindDeviceFault, "shutdown", err)
	}
	h.cfg.Logger.Info("pidog shutdown complete")
	return nil
}

// Mode returns ModeHardware.
func (h *Hardware) Mode() Mode {
	return ModeHardware
}

// CameraActive reports whether the camera is streaming.
func (h *Hardware) CameraActive() bool {
	return h.active.Load()
}

// guard runs fn and converts a panic inside the binding into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Wrap(KindDeviceFault, "", fmt.Errorf("driver panic: %v", r))
		}
	}()
	return fn()
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
