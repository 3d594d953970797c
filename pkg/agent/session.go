// Package agent glues the PiDog control plane to a conversational session:
// it exposes the action catalog as callable tools, streams the camera while
// the session is live, and tears everything down on exit.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/teslashibe/go-pidog/pkg/actions"
	"github.com/teslashibe/go-pidog/pkg/camera"
	"github.com/teslashibe/go-pidog/pkg/dispatch"
	"github.com/teslashibe/go-pidog/pkg/pidog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// GreetingAction is performed when the session starts.
const GreetingAction = "wag_tail"

// ErrAlreadyEntered is returned by a second Enter.
var ErrAlreadyEntered = errors.New("agent: session already entered")

// Session is one conversational session bound to a controller.
type Session struct {
	controller pidog.Controller
	dispatcher *dispatch.Dispatcher
	streamer   *camera.Streamer
	logger     *slog.Logger

	shutdownTimeout time.Duration

	mu      sync.Mutex
	entered bool
	exited  bool
}

// Option configures a Session.
type Option func(*sessionConfig)

type sessionConfig struct {
	catalog         *actions.Catalog
	camera          []camera.Option
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// WithCatalog sets the action catalog.
func WithCatalog(c *actions.Catalog) Option {
	return func(cfg *sessionConfig) { cfg.catalog = c }
}

// WithCamera passes options to the camera loop.
func WithCamera(opts ...camera.Option) Option {
	return func(cfg *sessionConfig) { cfg.camera = append(cfg.camera, opts...) }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *sessionConfig) { cfg.logger = l }
}

// WithShutdownTimeout bounds the controller shutdown in Exit.
func WithShutdownTimeout(d time.Duration) Option {
	return func(cfg *sessionConfig) { cfg.shutdownTimeout = d }
}

// NewSession creates a session for controller.
func NewSession(controller pidog.Controller, opts ...Option) *Session {
	cfg := sessionConfig{
		catalog:         actions.Default(),
		logger:          slog.Default(),
		shutdownTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.catalog == nil {
		cfg.catalog = actions.Default()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	logger := cfg.logger.With("component", "agent")

	camOpts := append([]camera.Option{camera.WithLogger(logger)}, cfg.camera...)
	return &Session{
		controller:      controller,
		dispatcher:      dispatch.New(controller, dispatch.WithCatalog(cfg.catalog), dispatch.WithLogger(logger)),
		streamer:        camera.NewStreamer(controller, camOpts...),
		logger:          logger,
		shutdownTimeout: cfg.shutdownTimeout,
	}
}

// Dispatcher returns the session's dispatcher.
func (s *Session) Dispatcher() *dispatch.Dispatcher {
	return s.dispatcher
}

// Streamer returns the session's camera loop.
func (s *Session) Streamer() *camera.Streamer {
	return s.streamer
}

// Tools returns one tool per catalog action.
func (s *Session) Tools() []Tool {
	schemas := s.dispatcher.Catalog().FunctionSchemas()
	tools := make([]Tool, 0, len(schemas))
	for _, fs := range schemas {
		name := fs.Name
		tools = append(tools, Tool{
			Name:        fs.Name,
			Description: fs.Description,
			Parameters:  fs.Parameters,
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				return encodeResult(s.dispatcher.Dispatch(ctx, name, args))
			},
		})
	}
	return tools
}

// Enter starts the camera loop toward sink and performs the greeting. A nil
// sink leaves the camera off. Enter does not fail on hardware problems.
func (s *Session) Enter(ctx context.Context, sink camera.Sink) error {
	s.mu.Lock()
	if s.entered {
		s.mu.Unlock()
		return ErrAlreadyEntered
	}
	s.entered = true
	s.mu.Unlock()

	s.logger.Info("pidog agent starting", "mode", s.controller.Mode())

	if sink != nil {
		if err := s.streamer.Start(ctx, sink); err != nil {
			s.logger.Error("failed to start camera", "error", err)
		} else {
			cfg := s.streamer.Manager().GetConfig()
			s.logger.Info("pidog camera streaming started", "width", cfg.Width, "height", cfg.Height, "fps", cfg.Framerate)
		}
	}

	s.logger.Info("performing greeting action", "action", GreetingAction)
	if r := s.dispatcher.Dispatch(ctx, GreetingAction, nil); !r.Success {
		s.logger.Warn("greeting action failed", "error", r.Error, "kind", r.Kind)
	}
	return nil
}

// HandleToolCall executes a model function call.
func (s *Session) HandleToolCall(ctx context.Context, call ToolCall) ToolResult {
	s.logger.Info("function called", "name", call.Name, "args", call.Arguments)

	r := s.dispatcher.Dispatch(ctx, call.Name, call.Arguments)
	if r.Success {
		s.logger.Info("action executed", "name", call.Name)
	} else {
		s.logger.Error("action failed", "name", call.Name, "error", r.Error, "kind", r.Kind)
	}

	out, err := encodeResult(r)
	return ToolResult{CallID: call.ID, Result: out, Error: err}
}

// Exit stops the camera loop and shuts the controller down. It is
// idempotent and bounded by the shutdown timeout.
func (s *Session) Exit(ctx context.Context) {
	s.mu.Lock()
	if s.exited {
		s.mu.Unlock()
		return
	}
	s.exited = true
	s.mu.Unlock()

	s.logger.Info("pidog agent shutting down")
	s.streamer.Stop()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := s.controller.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
	}
	s.logger.Info("pidog agent stopped")
}

func encodeResult(r pidog.Result) (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("agent: encode result: %w", err)
	}
	return string(b), nil
}
