package camera

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Patch is a partial configuration update. A preset, when set, replaces the
// whole configuration before the individual fields are applied.
type Patch struct {
	Preset    string `json:"preset,omitempty"`
	Width     *int   `json:"width,omitempty"`
	Height    *int   `json:"height,omitempty"`
	Framerate *int   `json:"framerate,omitempty"`
	Quality   *int   `json:"quality,omitempty"`
}

// Apply returns base with the patch applied. It does not validate.
func (p Patch) Apply(base Config) (Config, error) {
	cfg := base
	if p.Preset != "" {
		preset := GetPreset(p.Preset)
		if preset == nil {
			return base, fmt.Errorf("unknown preset %q (have %s)", p.Preset, strings.Join(PresetNames(), ", "))
		}
		cfg = *preset
	}
	for _, f := range []struct {
		src *int
		dst *int
	}{
		{p.Width, &cfg.Width},
		{p.Height, &cfg.Height},
		{p.Framerate, &cfg.Framerate},
		{p.Quality, &cfg.Quality},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	return cfg, nil
}

// Manager owns the streaming configuration shared by the camera loop and
// the dashboard. The loop reads it every cycle, so updates take effect on
// the next frame.
type Manager struct {
	mu       sync.RWMutex
	config   Config
	revision uint64
	watchers []func(Config)
}

// NewManager creates a manager starting from cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg}
}

// GetConfig returns the current configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Revision counts accepted updates.
func (m *Manager) Revision() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.revision
}

// Watch registers fn to be called with every accepted configuration.
func (m *Manager) Watch(fn func(Config)) {
	m.mu.Lock()
	m.watchers = append(m.watchers, fn)
	m.mu.Unlock()
}

// SetConfig replaces the configuration. An invalid configuration is rejected
// and the current one kept.
func (m *Manager) SetConfig(cfg Config) error {
	_, err := m.modify(func(Config) (Config, error) { return cfg, nil })
	return err
}

// Update applies a patch to the current configuration. Concurrent updates
// are applied one after the other, each to the result of the previous one.
func (m *Manager) Update(p Patch) (Config, error) {
	return m.modify(p.Apply)
}

// modify validates and stores fn(current) under the lock, then notifies
// watchers outside it.
func (m *Manager) modify(fn func(Config) (Config, error)) (Config, error) {
	m.mu.Lock()
	cfg, err := fn(m.config)
	if err == nil {
		if errs := cfg.Validate(); len(errs) > 0 {
			err = fmt.Errorf("camera: invalid config: %s", strings.Join(errs, "; "))
		}
	}
	if err != nil {
		cur := m.config
		m.mu.Unlock()
		return cur, err
	}
	m.config = cfg
	m.revision++
	watchers := slices.Clone(m.watchers)
	m.mu.Unlock()

	for _, fn := range watchers {
		fn(cfg)
	}
	return cfg, nil
}
