package camera

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-pidog/pkg/pidog"
)

// flakySource fails every third capture and panics when asked to.
type flakySource struct {
	calls    atomic.Int64
	panicAll bool
}

func (s *flakySource) CaptureFrame(ctx context.Context) (pidog.Frame, error) {
	n := s.calls.Add(1)
	if s.panicAll {
		panic("camera driver crashed")
	}
	if n%3 == 0 {
		return pidog.Frame{}, errors.New("sensor timeout")
	}
	return pidog.NewFrame(64, 48), nil
}

type recordingSink struct {
	mu     sync.Mutex
	frames []pidog.Frame
}

func (s *recordingSink) Publish(ctx context.Context, f pidog.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func smallConfig() Config {
	return Config{Width: 160, Height: 120, Framerate: 30, Quality: 80}
}

func TestCycle_SkipsFailedCaptures(t *testing.T) {
	src := &flakySource{}
	sink := &recordingSink{}
	s := NewStreamer(src, WithConfig(smallConfig()))

	for i := 0; i < 30; i++ {
		s.cycle(context.Background(), sink)
	}

	st := s.Stats()
	if st.Published != 20 || st.Skipped != 10 {
		t.Errorf("stats = %+v, want 20 published and 10 skipped", st)
	}
	for _, f := range sink.frames {
		if f.Width != 160 || f.Height != 120 {
			t.Fatalf("published frame %dx%d, want 160x120", f.Width, f.Height)
		}
	}
}

func TestCycle_RecoversPanic(t *testing.T) {
	s := NewStreamer(&flakySource{panicAll: true}, WithConfig(smallConfig()))
	sink := &recordingSink{}

	s.cycle(context.Background(), sink)
	s.cycle(context.Background(), sink)

	if st := s.Stats(); st.Skipped != 2 || st.Published != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestCycle_SinkError(t *testing.T) {
	s := NewStreamer(&flakySource{}, WithConfig(smallConfig()))
	sink := SinkFunc(func(ctx context.Context, f pidog.Frame) error {
		return errors.New("client gone")
	})
	s.cycle(context.Background(), sink)
	if st := s.Stats(); st.SinkErrors != 1 || st.Published != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestCycle_NoPublishAfterCancel(t *testing.T) {
	s := NewStreamer(&flakySource{}, WithConfig(smallConfig()))
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s.cycle(ctx, sink)
	if sink.count() != 0 {
		t.Error("frame published after cancellation")
	}
}

func TestStreamer_Lifecycle(t *testing.T) {
	src := &flakySource{}
	sink := &recordingSink{}
	s := NewStreamer(src, WithConfig(smallConfig()))

	if s.State() != StateIdle {
		t.Fatalf("initial state = %s", s.State())
	}
	if err := s.Start(context.Background(), sink); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(context.Background(), sink); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.Stats().Published < 4 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.Stats().Published == 0 {
		t.Fatalf("loop made no progress: %+v", s.Stats())
	}

	s.Stop()
	s.Stop()
	if s.State() != StateStopped {
		t.Errorf("state = %s, want stopped", s.State())
	}
	if err := s.Start(context.Background(), sink); !errors.Is(err, ErrStopped) {
		t.Errorf("Start after Stop = %v, want ErrStopped", err)
	}

	n := sink.count()
	time.Sleep(100 * time.Millisecond)
	if sink.count() != n {
		t.Error("frames published after Stop")
	}
}

func TestStreamer_StopBeforeStart(t *testing.T) {
	s := NewStreamer(&flakySource{})
	s.Stop()
	if s.State() != StateStopped {
		t.Errorf("state = %s", s.State())
	}
}

func TestStreamer_StopHonorsGrace(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	src := sourceFunc(func(ctx context.Context) (pidog.Frame, error) {
		<-block
		return pidog.NewFrame(1, 1), nil
	})
	s := NewStreamer(src, WithConfig(smallConfig()), WithGracePeriod(50*time.Millisecond))
	if err := s.Start(context.Background(), &recordingSink{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	s.Stop()
	if time.Since(start) > time.Second {
		t.Error("Stop blocked past its grace period")
	}
}

type sourceFunc func(ctx context.Context) (pidog.Frame, error)

func (fn sourceFunc) CaptureFrame(ctx context.Context) (pidog.Frame, error) { return fn(ctx) }

func TestStreamer_MockController(t *testing.T) {
	var got atomic.Int64
	sink := SinkFunc(func(ctx context.Context, f pidog.Frame) error {
		if f.Width == 1280 && f.Height == 720 {
			got.Add(1)
		}
		return nil
	})
	s := NewStreamer(pidog.NewMock(pidog.WithResolution(pidog.ServiceWidth, pidog.ServiceHeight)))
	if err := s.Start(context.Background(), sink); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for got.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got.Load() == 0 {
		t.Error("no 1280x720 frame published from a 640x480 source")
	}
}
