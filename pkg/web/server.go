// Package web provides the operator dashboard for PiDog: a live camera feed
// over websocket, the action catalog and a way to trigger actions by hand.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/teslashibe/go-pidog/pkg/camera"
	"github.com/teslashibe/go-pidog/pkg/dispatch"
	"github.com/teslashibe/go-pidog/pkg/hub"
	"github.com/teslashibe/go-pidog/pkg/pidog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxLogs bounds the dashboard log buffer.
const maxLogs = 200

// LogEntry is one line in the dashboard activity log.
type LogEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // info, action, error
	Message string `json:"message"`
}

// Status is the body of GET /api/status.
type Status struct {
	Mode              pidog.Mode   `json:"mode"`
	HardwareAvailable bool         `json:"hardware_available"`
	CameraActive      bool         `json:"camera_active"`
	CameraState       string       `json:"camera_state"`
	Camera            camera.Stats `json:"camera"`
	Viewers           int          `json:"viewers"`
	FramesSent        uint64       `json:"frames_sent"`
}

// Server is the dashboard. It is also a camera.Sink: published frames are
// JPEG-encoded and pushed to every /ws/camera viewer.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	dispatcher *dispatch.Dispatcher
	streamer   *camera.Streamer
	quality    int

	cameraHub *hub.Hub
	eventHub  *hub.Hub

	latest atomic.Pointer[[]byte]
	frames atomic.Uint64

	logs   []LogEntry
	logsMu sync.RWMutex

	// mu guards the lifecycle fields below.
	mu       sync.Mutex
	cancel   context.CancelFunc
	ln       net.Listener
	shutdown   bool
	served     chan struct{}
	servedOnce sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithDispatcher enables the action endpoints.
func WithDispatcher(d *dispatch.Dispatcher) Option {
	return func(s *Server) { s.dispatcher = d }
}

// WithStreamer exposes camera loop stats and runtime configuration.
func WithStreamer(st *camera.Streamer) Option {
	return func(s *Server) { s.streamer = st }
}

// WithJPEGQuality sets the quality of streamed frames.
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

// NewServer creates a dashboard that will listen on addr.
func NewServer(addr string, opts ...Option) *Server {
	s := &Server{
		addr:    addr,
		logger:  slog.Default(),
		quality: pidog.DefaultJPEGQuality,
		logs:    make([]LogEntry, 0, maxLogs),
		served:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "web")
	s.cameraHub = hub.New("camera", hub.WithLogger(s.logger), hub.WithSnapshot(s.frameSnapshot))
	s.eventHub = hub.New("events", hub.WithLogger(s.logger), hub.WithSnapshot(s.logSnapshot))

	app := fiber.New(fiber.Config{
		AppName:               "PiDog Dashboard",
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})
	app.Use(cors.New())
	app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: uuid.NewString,
	}))

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/actions", s.handleListActions)
	api.Post("/actions/:name", s.handleTriggerAction)
	api.Get("/frame", s.handleFrame)
	api.Get("/camera", s.handleGetCamera)
	api.Post("/camera", s.handleSetCamera)
	api.Get("/logs", s.handleGetLogs)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/camera", websocket.New(s.cameraHub.Serve))
	app.Get("/ws/events", websocket.New(s.eventHub.Serve))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the hubs without listening. It is a no-op once the hubs run
// or after Shutdown.
func (s *Server) Run(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil || s.shutdown {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	go s.cameraHub.Run(ctx)
	go s.eventHub.Run(ctx)
}

// Listen starts the hubs and serves HTTP until Shutdown.
func (s *Server) Listen(ctx context.Context) error {
	s.Run(ctx)
	return s.serve()
}

// StartAsync starts the hubs and serves HTTP in a goroutine.
func (s *Server) StartAsync(ctx context.Context) {
	s.Run(ctx)
	go func() {
		if err := s.serve(); err != nil {
			s.logger.Error("web server error", "error", err)
		}
	}()
}

func (s *Server) serve() error {
	defer s.servedOnce.Do(func() { close(s.served) })

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("web dashboard listening", "addr", ln.Addr().String())
	err = s.app.Listener(ln)
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Shutdown stops the hubs and the HTTP server. Closing the listener also
// stops a server whose Listen had not yet started serving.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	if s.cancel != nil {
		s.cancel()
	}
	ln := s.ln
	s.mu.Unlock()

	err := s.app.ShutdownWithContext(ctx)
	if ln != nil {
		_ = ln.Close()
	}
	return err
}

// Publish implements camera.Sink. The streamer's quality setting, when
// present, wins over WithJPEGQuality so it can be changed at runtime.
func (s *Server) Publish(ctx context.Context, f pidog.Frame) error {
	quality := s.quality
	if s.streamer != nil {
		quality = s.streamer.Manager().GetConfig().Quality
	}
	data, err := pidog.EncodeJPEG(f, quality)
	if err != nil {
		return err
	}
	s.latest.Store(&data)
	s.frames.Add(1)
	s.cameraHub.BroadcastBinary(data)
	return nil
}

// AddLog records an activity entry and pushes it to /ws/events.
func (s *Server) AddLog(logType, message string) {
	entry := LogEntry{
		Time:    time.Now().Format("15:04:05"),
		Type:    logType,
		Message: message,
	}

	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogs {
		s.logs = s.logs[1:]
	}
	s.logsMu.Unlock()

	if err := s.eventHub.BroadcastJSON(entry); err != nil {
		s.logger.Warn("event broadcast failed", "error", err)
	}
}

// frameSnapshot sends a joining camera viewer the latest frame.
func (s *Server) frameSnapshot() []hub.Message {
	if p := s.latest.Load(); p != nil {
		return []hub.Message{hub.NewBinaryMessage(*p)}
	}
	return nil
}

// logSnapshot replays the activity log to a joining event viewer.
func (s *Server) logSnapshot() []hub.Message {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	msgs := make([]hub.Message, 0, len(s.logs))
	for _, e := range s.logs {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		msgs = append(msgs, hub.NewJSONMessage(data))
	}
	return msgs
}

// CameraHub returns the camera hub.
func (s *Server) CameraHub() *hub.Hub {
	return s.cameraHub
}

var _ camera.Sink = (*Server)(nil)
