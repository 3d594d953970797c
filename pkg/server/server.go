// Package server exposes one PiDog backend over HTTP so the dialogue
// process can run on another machine.
package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/teslashibe/go-pidog/pkg/actions"
	"github.com/teslashibe/go-pidog/pkg/pidog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server is the hardware control service.
type Server struct {
	app      *fiber.App
	backend  pidog.Controller
	catalog  *actions.Catalog
	validate bool
	quality  int
	logger   *slog.Logger

	// mu serializes calls into the backend.
	mu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithCatalogValidation rejects action names missing from the catalog with
// 404 before the backend is touched.
func WithCatalogValidation(enabled bool) Option {
	return func(s *Server) { s.validate = enabled }
}

// WithCatalog sets the catalog used for clamping and validation.
func WithCatalog(c *actions.Catalog) Option {
	return func(s *Server) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithJPEGQuality sets the quality of /camera/frame responses.
func WithJPEGQuality(q int) Option {
	return func(s *Server) { s.quality = q }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a server around backend. The backend should already be
// initialized.
func New(backend pidog.Controller, opts ...Option) *Server {
	s := &Server{
		backend: backend,
		catalog: actions.Default(),
		quality: pidog.DefaultJPEGQuality,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	app := fiber.New(fiber.Config{
		AppName:               "PiDog Hardware Server",
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: uuid.NewString,
	}))

	app.Get("/health", s.handleHealth)
	app.Post("/action/:name", s.handleAction)
	app.Get("/camera/frame", s.handleFrame)
	app.Post("/shutdown", s.handleShutdown)

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves HTTP on addr until Close is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("pidog hardware server listening", "addr", addr, "mode", s.backend.Mode())
	return s.app.Listen(addr)
}

// Close stops accepting requests and shuts the backend down.
func (s *Server) Close(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if serr := s.backend.Shutdown(ctx); serr != nil {
		s.logger.Error("backend shutdown error", "error", serr)
	}
	return err
}

func (s *Server) log(c *fiber.Ctx) *slog.Logger {
	return s.logger.With("request_id", c.GetRespHeader(fiber.HeaderXRequestID))
}
