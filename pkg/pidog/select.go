package pidog

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Prober connects to the hardware binding. It returns ErrNoHardware (or any
// error) when the binding is not reachable.
type Prober func(ctx context.Context) (Driver, error)

// SelectConfig controls variant selection.
type SelectConfig struct {
	// Mode is ModeAuto, ModeHardware or ModeMock. Empty means auto.
	Mode Mode

	// Probe connects to the hardware binding. A nil Probe means no hardware.
	Probe        Prober
	ProbeTimeout time.Duration

	// MockWidth and MockHeight size mock frames; zero keeps the default.
	MockWidth  int
	MockHeight int

	Hardware []HardwareOption
	Logger   *slog.Logger
}

// Select picks the controller variant once, at startup. In auto mode a
// failed probe selects the mock; in hardware mode it is an error.
func Select(ctx context.Context, cfg SelectConfig) (Controller, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mock := func() Controller {
		return NewMock(WithResolution(cfg.MockWidth, cfg.MockHeight), WithMockLogger(logger))
	}

	mode := cfg.Mode
	if mode == "" {
		mode = ModeAuto
	}

	switch mode {
	case ModeMock:
		logger.Info("hardware mode disabled, using mock pidog")
		return mock(), nil
	case ModeAuto, ModeHardware:
	default:
		return nil, fmt.Errorf("pidog: unknown mode %q", mode)
	}

	driver, err := probe(ctx, cfg)
	if err != nil {
		if mode == ModeHardware {
			return nil, fmt.Errorf("pidog: hardware required: %w", err)
		}
		logger.Warn("pidog hardware not available, using mock mode", "error", err)
		return mock(), nil
	}

	opts := append([]HardwareOption{WithLogger(logger)}, cfg.Hardware...)
	logger.Info("pidog hardware binding connected")
	return NewHardware(driver, opts...), nil
}

func probe(ctx context.Context, cfg SelectConfig) (Driver, error) {
	if cfg.Probe == nil {
		return nil, ErrNoHardware
	}
	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	d, err := cfg.Probe(pctx)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrNoHardware
	}
	return d, nil
}

// NewLocal selects a backend and initializes it: the in-process control
// agent. An initialization failure is logged and the controller is still
// returned, so actions report typed failures instead of stopping the host.
func NewLocal(ctx context.Context, cfg SelectConfig) (Controller, error) {
	c, err := Select(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := c.Initialize(ctx); err != nil {
		logger := cfg.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("pidog initialization failed", "mode", c.Mode(), "error", err)
	}
	return c, nil
}
