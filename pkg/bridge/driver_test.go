package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/pebbe/zmq4"

	"github.com/teslashibe/go-pidog/pkg/pidog"
)

// fakeSidecar answers requests on a REP socket bound to a random TCP port.
type fakeSidecar struct {
	endpoint string
	done     chan struct{}
	wg       sync.WaitGroup

	mu   sync.Mutex
	seen []Request
}

func startSidecar(t *testing.T, handle func(Request) (Reply, bool)) *fakeSidecar {
	t.Helper()
	sock, err := zmq4.NewSocket(zmq4.REP)
	if err != nil {
		t.Fatalf("new socket: %v", err)
	}
	if err := sock.Bind("tcp://127.0.0.1:*"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	endpoint, err := sock.GetLastEndpoint()
	if err != nil {
		t.Fatalf("last endpoint: %v", err)
	}
	_ = sock.SetRcvtimeo(50 * time.Millisecond)
	_ = sock.SetLinger(0)

	s := &fakeSidecar{endpoint: endpoint, done: make(chan struct{})}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer sock.Close()
		for {
			select {
			case <-s.done:
				return
			default:
			}
			msg, err := sock.RecvBytes(0)
			if err != nil {
				continue
			}
			var req Request
			rep := Reply{OK: false, Error: "bad request"}
			send := true
			if dec, err := decodeRequest(msg); err == nil {
				req = dec
				s.mu.Lock()
				s.seen = append(s.seen, req)
				s.mu.Unlock()
				rep, send = handle(req)
			}
			if !send {
				continue
			}
			b, _ := encodeReply(rep)
			_, _ = sock.SendBytes(b, 0)
		}
	}()
	t.Cleanup(func() {
		close(s.done)
		s.wg.Wait()
	})
	return s
}

func (s *fakeSidecar) requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.seen...)
}

func okSidecar(req Request) (Reply, bool) {
	switch req.Op {
	case OpFrame:
		return Reply{OK: true, Width: 1, Height: 1, Format: "bgr", Pix: []byte{1, 2, 3}}, true
	case OpDo:
		if req.Action == "fly" {
			return Reply{OK: false, Error: "no wings"}, true
		}
	}
	return Reply{OK: true}, true
}

func testOpts() []Option {
	return []Option{WithProbeTimeout(time.Second), WithCallTimeout(time.Second)}
}

func TestDriver_RoundTrip(t *testing.T) {
	s := startSidecar(t, okSidecar)
	ctx := context.Background()

	d, err := Dial(ctx, s.endpoint, testOpts()...)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := d.Do(ctx, "sit", 50); err != nil {
		t.Errorf("Do: %v", err)
	}
	if err := d.Walk(ctx, "forward", 3, 80); err != nil {
		t.Errorf("Walk: %v", err)
	}
	raw, err := d.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if raw.Format != pidog.FormatBGR || raw.Width != 1 || len(raw.Pix) != 3 {
		t.Errorf("frame = %+v", raw)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	want := []Request{
		{Op: OpPing},
		{Op: OpDo, Action: "sit", Speed: 50},
		{Op: OpWalk, Action: "forward", Speed: 80, Steps: 3},
		{Op: OpFrame},
		{Op: OpClose},
	}
	if diff := cmp.Diff(want, s.requests()); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestDriver_DeviceFault(t *testing.T) {
	s := startSidecar(t, okSidecar)
	d, err := Dial(context.Background(), s.endpoint, testOpts()...)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer d.Close()

	err = d.Do(context.Background(), "fly", 80)
	if pidog.KindOf(err) != pidog.KindDeviceFault {
		t.Errorf("KindOf = %q, want device_fault (err=%v)", pidog.KindOf(err), err)
	}
	if r := pidog.Failed("fly", err); r.Error != "no wings" {
		t.Errorf("Failed message = %q", r.Error)
	}
}

func TestDriver_PingAndRelease(t *testing.T) {
	s := startSidecar(t, okSidecar)
	ctx := context.Background()

	d, err := Dial(ctx, s.endpoint, testOpts()...)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := d.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
	if err := d.Release(); err != nil {
		t.Errorf("Release: %v", err)
	}
	if err := d.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close after Release: %v", err)
	}
	if err := d.Ping(ctx); !errors.Is(err, pidog.ErrShutdown) {
		t.Errorf("Ping after Release = %v, want ErrShutdown", err)
	}

	want := []Request{{Op: OpPing}, {Op: OpPing}}
	if diff := cmp.Diff(want, s.requests()); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestDriver_Timeout(t *testing.T) {
	s := startSidecar(t, func(req Request) (Reply, bool) {
		if req.Op == OpWalk {
			time.Sleep(300 * time.Millisecond)
		}
		return Reply{OK: true}, true
	})
	d, err := Dial(context.Background(), s.endpoint,
		WithProbeTimeout(time.Second), WithCallTimeout(100*time.Millisecond))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer d.Close()

	err = d.Walk(context.Background(), "forward", 3, 80)
	if !errors.Is(err, ErrTimeout) || pidog.KindOf(err) != pidog.KindTimeout {
		t.Fatalf("Walk err = %v, want timeout", err)
	}
}

func TestDial_NoSidecar(t *testing.T) {
	start := time.Now()
	_, err := Dial(context.Background(), "tcp://127.0.0.1:1", WithProbeTimeout(100*time.Millisecond))
	if !errors.Is(err, pidog.ErrNoHardware) {
		t.Fatalf("err = %v, want ErrNoHardware", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("probe did not honor its timeout")
	}
}

func TestProber_SelectsHardware(t *testing.T) {
	s := startSidecar(t, okSidecar)
	c, err := pidog.Select(context.Background(), pidog.SelectConfig{
		Probe: Prober(s.endpoint, testOpts()...),
	})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if c.Mode() != pidog.ModeHardware {
		t.Errorf("Mode = %q, want hardware", c.Mode())
	}
	_ = c.Shutdown(context.Background())
}

func TestPixelFormat(t *testing.T) {
	if f, _ := pixelFormat("RGB888"); f != pidog.FormatRGB {
		t.Error("RGB888 should map to RGB")
	}
	if f, _ := pixelFormat(""); f != pidog.FormatBGR {
		t.Error("empty format should default to BGR")
	}
	if _, err := pixelFormat("yuv420"); err == nil {
		t.Error("expected error for yuv420")
	}
}

func decodeRequest(b []byte) (Request, error) {
	var r Request
	if err := cbor.Unmarshal(b, &r); err != nil {
		return Request{}, fmt.Errorf("bridge: decode request: %w", err)
	}
	return r, nil
}

func encodeReply(r Reply) ([]byte, error) {
	return cbor.Marshal(r)
}
