package camera

// Preset names for common configurations
const (
	PresetDefault = "default"
	PresetService = "service"
	PresetLow     = "low"
	PresetSmooth  = "smooth"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault: DefaultConfig(),
		PresetService: ServiceConfig(),
		PresetLow:     LowBandwidthConfig(),
		PresetSmooth:  SmoothConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{PresetDefault, PresetService, PresetLow, PresetSmooth}
}

// GetPreset returns a preset by name, or nil if not found.
func GetPreset(name string) *Config {
	cfg, ok := Presets()[name]
	if !ok {
		return nil
	}
	return &cfg
}

// LowBandwidthConfig is for a robot on weak Wi-Fi.
func LowBandwidthConfig() Config {
	return Config{Width: 320, Height: 240, Framerate: 2, Quality: 60}
}

// SmoothConfig trades bandwidth for motion: 10 fps at 640x480.
func SmoothConfig() Config {
	cfg := ServiceConfig()
	cfg.Framerate = 10
	return cfg
}
