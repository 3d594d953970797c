package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"syscall"
	"time"

	"github.com/pebbe/zmq4"

	"github.com/teslashibe/go-pidog/pkg/pidog"
)

// DefaultEndpoint is where the sidecar listens on the Pi.
const DefaultEndpoint = "ipc:///tmp/pidog-sdk.sock"

// ErrTimeout is returned when the sidecar does not answer in time.
var ErrTimeout = errors.New("bridge: sidecar did not respond")

// Config holds driver settings.
type Config struct {
	Endpoint string

	// ProbeTimeout bounds the ping sent by Dial.
	ProbeTimeout time.Duration

	// CallTimeout bounds every other round trip. Walks of many steps take
	// several seconds, so this is generous.
	CallTimeout time.Duration

	Logger *slog.Logger
}

// Option configures a Driver.
type Option func(*Config)

// WithProbeTimeout sets the ping timeout used by Dial.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Config) { c.ProbeTimeout = d }
}

// WithCallTimeout sets the round-trip timeout for actions and frames.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Config) { c.CallTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns the defaults for endpoint.
func DefaultConfig(endpoint string) Config {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return Config{
		Endpoint:     endpoint,
		ProbeTimeout: 2 * time.Second,
		CallTimeout:  15 * time.Second,
		Logger:       slog.Default(),
	}
}

// Driver implements pidog.Driver over a ZeroMQ REQ socket.
type Driver struct {
	cfg Config

	mu     sync.Mutex
	sock   *zmq4.Socket
	closed bool
}

var _ pidog.Driver = (*Driver)(nil)

// Dial connects to the sidecar and pings it. A sidecar that does not answer
// within the probe timeout yields pidog.ErrNoHardware.
func Dial(ctx context.Context, endpoint string, opts ...Option) (*Driver, error) {
	cfg := DefaultConfig(endpoint)
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	sock, err := zmq4.NewSocket(zmq4.REQ)
	if err != nil {
		return nil, fmt.Errorf("bridge: new socket: %w", err)
	}
	// Relaxed+correlate lets the socket recover from a lost reply instead of
	// wedging in the REQ state machine.
	for _, set := range []func() error{
		func() error { return sock.SetReqRelaxed(1) },
		func() error { return sock.SetReqCorrelate(1) },
		func() error { return sock.SetLinger(0) },
		func() error { return sock.SetSndtimeo(cfg.CallTimeout) },
	} {
		if err := set(); err != nil {
			_ = sock.Close()
			return nil, fmt.Errorf("bridge: socket option: %w", err)
		}
	}
	if err := sock.Connect(cfg.Endpoint); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("bridge: connect %s: %w", cfg.Endpoint, err)
	}

	d := &Driver{cfg: cfg, sock: sock}
	if _, err := d.call(ctx, Request{Op: OpPing}, cfg.ProbeTimeout); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("%w: %v", pidog.ErrNoHardware, err)
	}
	cfg.Logger.Info("pidog sidecar connected", "endpoint", cfg.Endpoint)
	return d, nil
}

// Prober returns a pidog.Prober that dials endpoint.
func Prober(endpoint string, opts ...Option) pidog.Prober {
	return func(ctx context.Context) (pidog.Driver, error) {
		d, err := Dial(ctx, endpoint, opts...)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

// Do runs a non-directional action.
func (d *Driver) Do(ctx context.Context, action string, speed int) error {
	_, err := d.call(ctx, Request{Op: OpDo, Action: action, Speed: speed}, d.cfg.CallTimeout)
	return err
}

// Walk runs a directional action.
func (d *Driver) Walk(ctx context.Context, action string, steps, speed int) error {
	_, err := d.call(ctx, Request{Op: OpWalk, Action: action, Steps: steps, Speed: speed}, d.cfg.CallTimeout)
	return err
}

// ReadFrame fetches the current camera buffer.
func (d *Driver) ReadFrame(ctx context.Context) (pidog.RawFrame, error) {
	rep, err := d.call(ctx, Request{Op: OpFrame}, d.cfg.CallTimeout)
	if err != nil {
		return pidog.RawFrame{}, err
	}
	format, err := pixelFormat(rep.Format)
	if err != nil {
		return pidog.RawFrame{}, err
	}
	return pidog.RawFrame{Width: rep.Width, Height: rep.Height, Format: format, Pix: rep.Pix}, nil
}

// Ping checks that the sidecar still answers.
func (d *Driver) Ping(ctx context.Context) error {
	_, err := d.call(ctx, Request{Op: OpPing}, d.cfg.ProbeTimeout)
	return err
}

// Release closes the socket without asking the sidecar to release the
// devices, leaving them to whoever connects next.
func (d *Driver) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.sock.Close(); err != nil {
		return fmt.Errorf("bridge: close socket: %w", err)
	}
	return nil
}

// Close tells the sidecar to release the devices and closes the socket.
func (d *Driver) Close() error {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return nil
	}

	_, callErr := d.call(context.Background(), Request{Op: OpClose}, d.cfg.ProbeTimeout)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	if err := d.sock.Close(); err != nil {
		return fmt.Errorf("bridge: close socket: %w", err)
	}
	return callErr
}

// call performs one request/reply round trip.
func (d *Driver) call(ctx context.Context, req Request, timeout time.Duration) (Reply, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return Reply{}, pidog.Wrap(pidog.KindTransportFault, req.Op, pidog.ErrShutdown)
	}
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return Reply{}, pidog.Wrap(pidog.KindTimeout, req.Op, ErrTimeout)
	}

	payload, err := EncodeRequest(req)
	if err != nil {
		return Reply{}, pidog.Wrap(pidog.KindTransportFault, req.Op, err)
	}
	if err := d.sock.SetRcvtimeo(timeout); err != nil {
		return Reply{}, pidog.Wrap(pidog.KindTransportFault, req.Op, err)
	}
	if _, err := d.sock.SendBytes(payload, 0); err != nil {
		return Reply{}, pidog.Wrap(transportKind(err), req.Op, fmt.Errorf("bridge: send: %w", err))
	}
	msg, err := d.sock.RecvBytes(0)
	if err != nil {
		if transportKind(err) == pidog.KindTimeout {
			d.cfg.Logger.Warn("sidecar timeout", "op", req.Op, "action", req.Action, "timeout", timeout)
			return Reply{}, pidog.Wrap(pidog.KindTimeout, req.Op, ErrTimeout)
		}
		return Reply{}, pidog.Wrap(pidog.KindTransportFault, req.Op, fmt.Errorf("bridge: recv: %w", err))
	}

	rep, err := DecodeReply(msg)
	if err != nil {
		return Reply{}, pidog.Wrap(pidog.KindTransportFault, req.Op, err)
	}
	if !rep.OK {
		msg := rep.Error
		if msg == "" {
			msg = "sidecar reported failure"
		}
		return rep, pidog.Wrap(pidog.KindDeviceFault, req.Op, errors.New(msg))
	}
	return rep, nil
}

func transportKind(err error) pidog.ErrorKind {
	if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
		return pidog.KindTimeout
	}
	return pidog.KindTransportFault
}
