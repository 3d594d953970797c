// Package remote implements pidog.Controller over HTTP against a hardware
// control service running on the robot.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/teslashibe/go-pidog/internal/httpc"
	"github.com/teslashibe/go-pidog/pkg/actions"
	"github.com/teslashibe/go-pidog/pkg/pidog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Timeouts bounds each kind of call.
type Timeouts struct {
	Health   time.Duration
	Frame    time.Duration
	Action   time.Duration
	Shutdown time.Duration
}

// DefaultTimeouts are short enough that a dead robot never stalls a
// conversation.
var DefaultTimeouts = Timeouts{
	Health:   2 * time.Second,
	Frame:    1 * time.Second,
	Action:   5 * time.Second,
	Shutdown: 2 * time.Second,
}

// maxFrameBytes caps a JPEG response body.
const maxFrameBytes = 16 << 20

// Client is a remote controller. Calls are serialized per client and never
// retried.
type Client struct {
	baseURL  string
	http     *http.Client
	timeouts Timeouts
	catalog  *actions.Catalog
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool

	reachable atomic.Bool
	hardware  atomic.Bool
	camera    atomic.Bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeouts overrides the per-call timeouts. Zero fields keep defaults.
func WithTimeouts(t Timeouts) Option {
	return func(c *Client) {
		if t.Health > 0 {
			c.timeouts.Health = t.Health
		}
		if t.Frame > 0 {
			c.timeouts.Frame = t.Frame
		}
		if t.Action > 0 {
			c.timeouts.Action = t.Action
		}
		if t.Shutdown > 0 {
			c.timeouts.Shutdown = t.Shutdown
		}
	}
}

// WithCatalog sets the catalog used for parameter clamping.
func WithCatalog(cat *actions.Catalog) Option {
	return func(c *Client) {
		if cat != nil {
			c.catalog = cat
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for the service at baseURL (for example
// "http://raspberrypi.local:5000") and probes its health. An unreachable
// service is logged, not returned: the client is usable and each call
// reports its own failure.
func New(ctx context.Context, baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("remote: invalid base URL %q", baseURL)
	}

	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpc.NewClient(httpc.DefaultTimeout),
		timeouts: DefaultTimeouts,
		catalog:  actions.Default(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "remote", "base_url", c.baseURL)

	h, err := c.Health(ctx)
	if err != nil {
		c.logger.Error("cannot connect to pidog hardware server", "error", err)
	} else {
		c.logger.Info("connected to pidog hardware server", "hardware_available", h.HardwareAvailable, "mode", h.Mode)
	}
	return c, nil
}

// BaseURL returns the service address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Reachable reports the outcome of the last health probe. It is advisory.
func (c *Client) Reachable() bool {
	return c.reachable.Load()
}

// HardwareAvailable reports whether the service last said it drives real
// hardware.
func (c *Client) HardwareAvailable() bool {
	return c.hardware.Load()
}

// CameraActive reports the service's camera state from the last probe.
func (c *Client) CameraActive() bool {
	return c.camera.Load()
}

// Health probes GET /health and refreshes the advisory state.
func (c *Client) Health(ctx context.Context) (pidog.Health, error) {
	var h pidog.Health
	resp, err := c.do(ctx, c.timeouts.Health, http.MethodGet, "/health", nil)
	if err != nil {
		c.reachable.Store(false)
		return h, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.reachable.Store(false)
		return h, pidog.Wrap(pidog.KindTransportFault, "health", fmt.Errorf("HTTP %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		c.reachable.Store(false)
		return h, pidog.Wrap(pidog.KindTransportFault, "health", err)
	}

	c.reachable.Store(true)
	c.hardware.Store(h.HardwareAvailable)
	c.camera.Store(h.CameraActive)
	return h, nil
}

// Initialize refreshes the health state. The service initializes its own
// backend at startup, so nothing else is needed.
func (c *Client) Initialize(ctx context.Context) error {
	_, err := c.Health(ctx)
	return err
}

// Execute posts an action to the service. Parameters are clamped first.
func (c *Client) Execute(ctx context.Context, action string, p actions.Params) pidog.Result {
	p = c.catalog.Clamp(action, p)
	body, err := json.Marshal(p)
	if err != nil {
		return pidog.Failed(action, pidog.Wrap(pidog.KindTransportFault, action, err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.do(ctx, c.timeouts.Action, http.MethodPost, "/action/"+url.PathEscape(action), body)
	if err != nil {
		c.logger.Error("remote action failed", "action", action, "error", err)
		return pidog.Failed(action, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pidog.Failed(action, pidog.Wrap(transportKind(err), action, err))
	}

	var result pidog.Result
	decodeErr := json.Unmarshal(data, &result)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("remote action failed", "action", action, "status", resp.StatusCode)
		// Keep the service's own failure when it sent one.
		if decodeErr == nil && result.Error != "" {
			result.Success = false
			if result.Action == "" {
				result.Action = action
			}
			return result
		}
		return pidog.Failed(action, pidog.Wrap(pidog.KindTransportFault, action, fmt.Errorf("HTTP %d", resp.StatusCode)))
	}
	if decodeErr != nil {
		return pidog.Failed(action, pidog.Wrap(pidog.KindTransportFault, action, decodeErr))
	}
	if result.Action == "" {
		result.Action = action
	}
	c.logger.Info("remote action executed", "action", action)
	return result
}

// CaptureFrame fetches one JPEG frame. Any failure yields a black frame of
// the default resolution and a nil error.
func (c *Client) CaptureFrame(ctx context.Context) (pidog.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := c.fetchFrame(ctx)
	if err != nil {
		c.logger.Warn("camera frame error", "error", err)
		return pidog.BlankFrame(), nil
	}
	return f, nil
}

func (c *Client) fetchFrame(ctx context.Context) (pidog.Frame, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Frame)
	defer cancel()

	resp, err := c.send(ctx, http.MethodGet, "/camera/frame", nil)
	if err != nil {
		return pidog.Frame{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return pidog.Frame{}, pidog.Wrap(pidog.KindTransportFault, "frame", fmt.Errorf("HTTP %d", resp.StatusCode))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes))
	if err != nil {
		return pidog.Frame{}, pidog.Wrap(transportKind(err), "frame", err)
	}
	f, err := pidog.DecodeJPEG(data)
	if err != nil {
		return pidog.Frame{}, pidog.Wrap(pidog.KindCaptureFault, "frame", err)
	}
	return f, nil
}

// Shutdown asks the service to park the robot. Failures are logged and
// swallowed; later calls do nothing.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	resp, err := c.do(ctx, c.timeouts.Shutdown, http.MethodPost, "/shutdown", nil)
	if err != nil {
		c.logger.Error("shutdown error", "error", err)
		return nil
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		c.logger.Info("pi hardware shutdown")
	} else {
		c.logger.Error("shutdown error", "status", resp.StatusCode)
	}
	return nil
}

// Mode returns ModeRemote.
func (c *Client) Mode() pidog.Mode {
	return pidog.ModeRemote
}

// do sends a request bounded by timeout. The body of a successful response
// must be closed by the caller; the context stays alive until then.
func (c *Client) do(ctx context.Context, timeout time.Duration, method, path string, body []byte) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, pidog.Wrap(pidog.KindTransportFault, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, pidog.Wrap(transportKind(err), path, err)
	}
	return resp, nil
}

// cancelBody releases the request context once the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func transportKind(err error) pidog.ErrorKind {
	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return pidog.KindTimeout
	case errors.As(err, &ne) && ne.Timeout():
		return pidog.KindTimeout
	default:
		return pidog.KindTransportFault
	}
}

var (
	_ pidog.Controller     = (*Client)(nil)
	_ pidog.CameraReporter = (*Client)(nil)
)
