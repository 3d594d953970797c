// Package camera runs the PiDog camera loop: frames are pulled from a
// controller on a fixed cadence and pushed to a video sink.
package camera

import "time"

// Config holds the camera loop settings. They can be changed at runtime
// through a Manager.
type Config struct {
	Width     int `json:"width" yaml:"width"`         // Sink frame width in pixels
	Height    int `json:"height" yaml:"height"`       // Sink frame height in pixels
	Framerate int `json:"framerate" yaml:"framerate"` // Frames per second
	Quality   int `json:"quality" yaml:"quality"`     // JPEG quality 1-100
}

// Limits for Validate. Frames are scaled in software, so the bounds are
// about bandwidth rather than the sensor.
const (
	MinWidth     = 160
	MaxWidth     = 1920
	MinHeight    = 120
	MaxHeight    = 1080
	MaxFramerate = 30
)

// DefaultConfig streams 1280x720 at 5 fps, which keeps the remote path
// cheap.
func DefaultConfig() Config {
	return Config{
		Width:     1280,
		Height:    720,
		Framerate: 5,
		Quality:   80,
	}
}

// ServiceConfig matches the hardware service's 640x480 frames.
func ServiceConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 640
	cfg.Height = 480
	return cfg
}

// Period returns the time between two captures.
func (c Config) Period() time.Duration {
	if c.Framerate <= 0 {
		return time.Second / time.Duration(DefaultConfig().Framerate)
	}
	return time.Second / time.Duration(c.Framerate)
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Width < MinWidth || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 1920")
	}
	if c.Height < MinHeight || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 1080")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 30")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	return errors
}
