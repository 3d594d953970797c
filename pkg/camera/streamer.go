package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-pidog/pkg/pidog"
)

// Errors returned by Streamer.Start.
var (
	ErrAlreadyStarted = errors.New("camera: streamer already started")
	ErrStopped        = errors.New("camera: streamer stopped")
)

// Source produces frames. Every pidog.Controller is a Source.
type Source interface {
	CaptureFrame(ctx context.Context) (pidog.Frame, error)
}

// Sink receives frames already scaled to the configured resolution.
type Sink interface {
	Publish(ctx context.Context, f pidog.Frame) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, f pidog.Frame) error

// Publish calls fn.
func (fn SinkFunc) Publish(ctx context.Context, f pidog.Frame) error {
	return fn(ctx, f)
}

// State is the lifecycle state of a Streamer.
type State int32

const (
	StateIdle State = iota
	StateStreaming
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Stats counts loop outcomes.
type Stats struct {
	Published  uint64 `json:"published"`
	Skipped    uint64 `json:"skipped"`
	SinkErrors uint64 `json:"sink_errors"`
}

// Loop timing defaults.
const (
	// DefaultGracePeriod bounds how long Stop waits for the running cycle.
	DefaultGracePeriod = 2 * time.Second

	// DefaultCaptureTimeout bounds a single capture.
	DefaultCaptureTimeout = time.Second
)

// Streamer pulls frames from a Source on a fixed cadence and publishes them.
// A failed or panicking capture skips that cycle only.
type Streamer struct {
	source  Source
	manager *Manager
	grace   time.Duration
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}

	published  atomic.Uint64
	skipped    atomic.Uint64
	sinkErrors atomic.Uint64
}

// Option configures a Streamer.
type Option func(*Streamer)

// WithManager shares a runtime-configurable Manager with the streamer.
func WithManager(m *Manager) Option {
	return func(s *Streamer) {
		if m != nil {
			s.manager = m
		}
	}
}

// WithConfig sets a fixed configuration.
func WithConfig(cfg Config) Option {
	return func(s *Streamer) { s.manager = NewManager(cfg) }
}

// WithGracePeriod bounds Stop.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Streamer) { s.grace = d }
}

// WithCaptureTimeout bounds each capture.
func WithCaptureTimeout(d time.Duration) Option {
	return func(s *Streamer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Streamer) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStreamer creates an idle streamer over src.
func NewStreamer(src Source, opts ...Option) *Streamer {
	s := &Streamer{
		source:  src,
		manager: NewManager(DefaultConfig()),
		grace:   DefaultGracePeriod,
		timeout: DefaultCaptureTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Manager returns the configuration manager.
func (s *Streamer) Manager() *Manager {
	return s.manager
}

// State returns the current lifecycle state.
func (s *Streamer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns the loop counters.
func (s *Streamer) Stats() Stats {
	return Stats{
		Published:  s.published.Load(),
		Skipped:    s.skipped.Load(),
		SinkErrors: s.sinkErrors.Load(),
	}
}

// Start begins streaming to sink. It may only be called once, from Idle.
// The loop runs until Stop is called or ctx is cancelled.
func (s *Streamer) Start(ctx context.Context, sink Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateStreaming:
		return ErrAlreadyStarted
	case StateStopped:
		return ErrStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = StateStreaming

	go s.run(ctx, sink, s.done)
	return nil
}

// Stop cancels the loop and waits at most the grace period for the running
// cycle. It is idempotent and safe to call before Start.
func (s *Streamer) Stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	prev := s.state
	s.state = StateStopped
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if prev != StateStreaming {
		return
	}
	cancel()

	t := time.NewTimer(s.grace)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		s.logger.Warn("camera loop did not stop within grace period", "grace", s.grace)
	}
	st := s.Stats()
	s.logger.Info("camera stream stopped", "published", st.Published, "skipped", st.Skipped)
}

func (s *Streamer) run(ctx context.Context, sink Sink, done chan struct{}) {
	defer close(done)

	period := s.manager.GetConfig().Period()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	s.logger.Info("camera streaming started", "period", period)

	for {
		s.cycle(ctx, sink)

		if p := s.manager.GetConfig().Period(); p != period {
			period = p
			ticker.Reset(period)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// cycle captures, scales and publishes one frame.
func (s *Streamer) cycle(ctx context.Context, sink Sink) {
	cfg := s.manager.GetConfig()

	frame, err := s.capture(ctx, s.timeout)
	if err != nil {
		s.skipped.Add(1)
		s.logger.Warn("camera frame skipped", "error", err)
		return
	}
	if ctx.Err() != nil {
		return
	}

	if cfg.Width > 0 && cfg.Height > 0 {
		frame = frame.Resize(cfg.Width, cfg.Height)
	}
	if err := sink.Publish(ctx, frame); err != nil {
		s.sinkErrors.Add(1)
		s.logger.Warn("camera publish failed", "error", err)
		return
	}
	s.published.Add(1)
}

func (s *Streamer) capture(ctx context.Context, timeout time.Duration) (f pidog.Frame, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("capture panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	f, err = s.source.CaptureFrame(ctx)
	if err != nil {
		return pidog.Frame{}, err
	}
	if !f.Valid() {
		return pidog.Frame{}, fmt.Errorf("invalid frame %dx%d", f.Width, f.Height)
	}
	return f, nil
}
