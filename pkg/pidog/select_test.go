package pidog

import (
	"context"
	"testing"
	"time"

	"github.com/teslashibe/go-pidog/pkg/actions"
)

func TestSelect(t *testing.T) {
	ok := func(ctx context.Context) (Driver, error) { return &fakeDriver{}, nil }
	fail := func(ctx context.Context) (Driver, error) { return nil, ErrNoHardware }

	tests := []struct {
		name    string
		cfg     SelectConfig
		want    Mode
		wantErr bool
	}{
		{"auto with hardware", SelectConfig{Probe: ok}, ModeHardware, false},
		{"auto without hardware", SelectConfig{Probe: fail}, ModeMock, false},
		{"auto without prober", SelectConfig{}, ModeMock, false},
		{"forced mock", SelectConfig{Mode: ModeMock, Probe: ok}, ModeMock, false},
		{"required hardware missing", SelectConfig{Mode: ModeHardware, Probe: fail}, "", true},
		{"unknown mode", SelectConfig{Mode: "laser"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Select(context.Background(), tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Select: %v", err)
			}
			if c.Mode() != tt.want {
				t.Errorf("Mode = %q, want %q", c.Mode(), tt.want)
			}
		})
	}
}

func TestSelect_ProbeTimeout(t *testing.T) {
	hang := func(ctx context.Context) (Driver, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	start := time.Now()
	c, err := Select(context.Background(), SelectConfig{Probe: hang, ProbeTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if c.Mode() != ModeMock {
		t.Errorf("Mode = %q, want mock", c.Mode())
	}
	if time.Since(start) > time.Second {
		t.Error("probe timeout not honored")
	}
}

func TestNewLocal_InitializesHardware(t *testing.T) {
	d := &fakeDriver{}
	c, err := NewLocal(context.Background(), SelectConfig{
		Probe:    func(ctx context.Context) (Driver, error) { return d, nil },
		Hardware: []HardwareOption{WithSettle(0, 0, 0)},
	})
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	if got := d.log(); len(got) != 1 || got[0] != "do stand 80" {
		t.Errorf("driver calls = %v", got)
	}
	if r := c.Execute(context.Background(), "sit", actions.Params{Speed: 50}); !r.Success {
		t.Errorf("Execute = %+v", r)
	}
}

func TestNewLocal_InitFailureKeepsController(t *testing.T) {
	d := &fakeDriver{panicOn: StandAction}
	c, err := NewLocal(context.Background(), SelectConfig{
		Probe:    func(ctx context.Context) (Driver, error) { return d, nil },
		Hardware: []HardwareOption{WithSettle(0, 0, 0)},
	})
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	r := c.Execute(context.Background(), "sit", actions.Params{Speed: 50})
	if r.Success || r.Kind != KindDeviceFault {
		t.Errorf("Execute = %+v", r)
	}
}
