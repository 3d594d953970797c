// Package config loads go-pidog configuration from .env, an optional YAML
// file and environment variables, in that order of precedence (env wins).
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultPiHost          = "raspberrypi.local"
	DefaultPiPort          = 5000
	DefaultServiceAddr     = "0.0.0.0:5000"
	DefaultBridgeEndpoint  = "ipc:///tmp/pidog-sdk.sock"
	DefaultBridgeProbe     = 2 * time.Second
	DefaultBridgeCall      = 15 * time.Second
	DefaultDashboardAddr   = ":8181"
	DefaultCameraWidth     = 1280
	DefaultCameraHeight    = 720
	DefaultCameraFramerate = 5
	DefaultJPEGQuality     = 80
)

// Hardware modes accepted by PIDOG_MODE.
const (
	ModeAuto     = "auto"
	ModeHardware = "hardware"
	ModeMock     = "mock"
)

// Config holds all configuration for the pidog commands.
type Config struct {
	Mode     string          `yaml:"mode"`
	LogLevel string          `yaml:"log_level"`
	Remote   RemoteConfig    `yaml:"remote"`
	Service  ServiceConfig   `yaml:"service"`
	Bridge   BridgeConfig    `yaml:"bridge"`
	Camera   CameraConfig    `yaml:"camera"`
	Web      DashboardConfig `yaml:"dashboard"`
}

// RemoteConfig locates the hardware control service from the dialogue host.
// An empty Host means the hardware is driven in-process.
type RemoteConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ServiceConfig configures the hardware control service on the robot.
type ServiceConfig struct {
	Addr              string `yaml:"addr"`
	CatalogValidation bool   `yaml:"catalog_validation"`
}

// BridgeConfig configures the connection to the vendor SDK sidecar.
type BridgeConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	CallTimeout  time.Duration `yaml:"call_timeout"`
}

// CameraConfig configures the camera streaming loop.
type CameraConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	Framerate int `yaml:"framerate"`
	Quality   int `yaml:"quality"`
}

// DashboardConfig configures the operator dashboard / video sink.
type DashboardConfig struct {
	Addr    string `yaml:"addr"`
	Enabled bool   `yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Mode:     ModeAuto,
		LogLevel: "info",
		Remote: RemoteConfig{
			Port: DefaultPiPort,
		},
		Service: ServiceConfig{
			Addr: DefaultServiceAddr,
		},
		Bridge: BridgeConfig{
			Endpoint:     DefaultBridgeEndpoint,
			ProbeTimeout: DefaultBridgeProbe,
			CallTimeout:  DefaultBridgeCall,
		},
		Camera: CameraConfig{
			Width:     DefaultCameraWidth,
			Height:    DefaultCameraHeight,
			Framerate: DefaultCameraFramerate,
			Quality:   DefaultJPEGQuality,
		},
		Web: DashboardConfig{
			Addr:    DefaultDashboardAddr,
			Enabled: true,
		},
	}
}

// Load builds the configuration. The .env file is optional; path may be
// empty, in which case no YAML file is read.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Mode = getEnv("PIDOG_MODE", c.Mode)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Remote.Host = getEnv("PIDOG_PI_HOST", c.Remote.Host)
	c.Remote.Port = getEnvAsInt("PIDOG_PI_PORT", c.Remote.Port)
	c.Service.Addr = getEnv("PIDOG_SERVICE_ADDR", c.Service.Addr)
	c.Service.CatalogValidation = getEnvAsBool("PIDOG_CATALOG_VALIDATION", c.Service.CatalogValidation)
	c.Bridge.Endpoint = getEnv("PIDOG_BRIDGE_ENDPOINT", c.Bridge.Endpoint)
	c.Web.Addr = getEnv("PIDOG_DASHBOARD_ADDR", c.Web.Addr)
	c.Web.Enabled = getEnvAsBool("PIDOG_DASHBOARD", c.Web.Enabled)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	switch c.Mode {
	case ModeAuto, ModeHardware, ModeMock:
	default:
		errs = append(errs, fmt.Errorf("mode must be auto, hardware or mock, got %q", c.Mode))
	}
	if c.Remote.Port < 1 || c.Remote.Port > 65535 {
		errs = append(errs, fmt.Errorf("remote port out of range: %d", c.Remote.Port))
	}
	if _, _, err := net.SplitHostPort(c.Service.Addr); err != nil {
		errs = append(errs, fmt.Errorf("service addr %q: %w", c.Service.Addr, err))
	}
	if c.Bridge.Endpoint == "" {
		errs = append(errs, errors.New("bridge endpoint is required"))
	}
	if c.Bridge.ProbeTimeout <= 0 || c.Bridge.CallTimeout <= 0 {
		errs = append(errs, errors.New("bridge timeouts must be positive"))
	}
	if c.Camera.Width < 160 || c.Camera.Height < 120 {
		errs = append(errs, fmt.Errorf("camera resolution too small: %dx%d", c.Camera.Width, c.Camera.Height))
	}
	if c.Camera.Framerate < 1 || c.Camera.Framerate > 30 {
		errs = append(errs, fmt.Errorf("camera framerate must be between 1 and 30, got %d", c.Camera.Framerate))
	}
	if c.Camera.Quality < 1 || c.Camera.Quality > 100 {
		errs = append(errs, fmt.Errorf("camera quality must be between 1 and 100, got %d", c.Camera.Quality))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// RemoteURL returns the base URL of the hardware control service, or "" when
// no remote host is configured.
func (c *Config) RemoteURL() string {
	if c.Remote.Host == "" {
		return ""
	}
	return "http://" + net.JoinHostPort(c.Remote.Host, strconv.Itoa(c.Remote.Port))
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	v := strings.TrimSpace(getEnv(key, ""))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
