package pidog

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-pidog/pkg/actions"
)

// Mock is the simulated backend used when no hardware is present. Every
// action succeeds immediately and every frame carries a visible mock banner.
type Mock struct {
	width  int
	height int
	logger *slog.Logger

	mu     sync.Mutex
	counts map[string]int
}

// MockOption configures a Mock.
type MockOption func(*Mock)

// WithResolution sets the size of synthesized frames.
func WithResolution(width, height int) MockOption {
	return func(m *Mock) {
		if width > 0 && height > 0 {
			m.width, m.height = width, height
		}
	}
}

// WithMockLogger sets the structured logger.
func WithMockLogger(l *slog.Logger) MockOption {
	return func(m *Mock) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMock creates a mock backend producing default-resolution frames.
func NewMock(opts ...MockOption) *Mock {
	m := &Mock{
		width:  DefaultWidth,
		height: DefaultHeight,
		logger: slog.Default(),
		counts: make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize is a no-op.
func (m *Mock) Initialize(ctx context.Context) error {
	m.record("Initialize")
	m.logger.Info("using mock pidog (no hardware)")
	return nil
}

// Execute reports success without touching anything.
func (m *Mock) Execute(ctx context.Context, action string, p actions.Params) Result {
	m.record("Execute")
	m.logger.Info("mock action", "action", action, "speed", p.Speed, "steps", p.Steps)
	r := Succeeded(action)
	r.Mock = true
	return r
}

// CaptureFrame synthesizes a fresh frame with the mock banner.
func (m *Mock) CaptureFrame(ctx context.Context) (Frame, error) {
	m.record("CaptureFrame")
	return mockFrame(m.width, m.height), nil
}

// Shutdown is a no-op.
func (m *Mock) Shutdown(ctx context.Context) error {
	m.record("Shutdown")
	m.logger.Info("mock shutdown complete")
	return nil
}

// Mode returns ModeMock.
func (m *Mock) Mode() Mode {
	return ModeMock
}

// CameraActive is always true for the mock: it can always produce a frame.
func (m *Mock) CameraActive() bool {
	return true
}

func (m *Mock) record(method string) {
	m.mu.Lock()
	m.counts[method]++
	m.mu.Unlock()
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[method]
}
