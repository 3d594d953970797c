package main

import (
	"log/slog"
	"strings"

	"github.com/spf13/pflag"

	"github.com/teslashibe/go-pidog/internal/config"
	"github.com/teslashibe/go-pidog/pkg/bridge"
	"github.com/teslashibe/go-pidog/pkg/camera"
	"github.com/teslashibe/go-pidog/pkg/pidog"
)

// cameraFlags overrides the configured camera settings.
type cameraFlags struct {
	width     int
	height    int
	framerate int
	quality   int
	preset    string
}

func (f *cameraFlags) register(fs *pflag.FlagSet) {
	fs.IntVar(&f.width, "width", 0, "camera frame width (0 keeps the configured value)")
	fs.IntVar(&f.height, "height", 0, "camera frame height (0 keeps the configured value)")
	fs.IntVar(&f.framerate, "fps", 0, "camera frames per second (0 keeps the configured value)")
	fs.IntVar(&f.quality, "quality", 0, "JPEG quality 1-100 (0 keeps the configured value)")
	fs.StringVar(&f.preset, "camera-preset", "", "camera preset: "+strings.Join(camera.PresetNames(), ", "))
}

// apply merges the flags into cfg and returns the streaming config.
func (f *cameraFlags) apply(cfg config.CameraConfig) camera.Config {
	out := camera.Config{
		Width:     cfg.Width,
		Height:    cfg.Height,
		Framerate: cfg.Framerate,
		Quality:   cfg.Quality,
	}
	if p := camera.GetPreset(f.preset); p != nil {
		out = *p
	}
	if f.width > 0 {
		out.Width = f.width
	}
	if f.height > 0 {
		out.Height = f.height
	}
	if f.framerate > 0 {
		out.Framerate = f.framerate
	}
	if f.quality > 0 {
		out.Quality = f.quality
	}
	return out
}

// selectConfig builds the variant selection for the local backend.
func selectConfig(cfg *config.Config, width, height int, logger *slog.Logger) pidog.SelectConfig {
	return pidog.SelectConfig{
		Mode: pidog.Mode(cfg.Mode),
		Probe: bridge.Prober(cfg.Bridge.Endpoint,
			bridge.WithProbeTimeout(cfg.Bridge.ProbeTimeout),
			bridge.WithCallTimeout(cfg.Bridge.CallTimeout),
			bridge.WithLogger(logger),
		),
		ProbeTimeout: cfg.Bridge.ProbeTimeout,
		MockWidth:    width,
		MockHeight:   height,
		Logger:       logger,
	}
}
