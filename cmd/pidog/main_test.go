package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"

	"github.com/teslashibe/go-pidog/internal/config"
	"github.com/teslashibe/go-pidog/pkg/actions"
	"github.com/teslashibe/go-pidog/pkg/agent"
	"github.com/teslashibe/go-pidog/pkg/camera"
	"github.com/teslashibe/go-pidog/pkg/pidog"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServeToolCalls(t *testing.T) {
	mock := pidog.NewMock(pidog.WithMockLogger(discard()))
	session := agent.NewSession(mock, agent.WithLogger(discard()))

	in := strings.Join([]string{
		`{"id":"1","name":"sit","arguments":{"speed":60}}`,
		``,
		`not json`,
		`{"id":"2","name":"fly","arguments":{}}`,
	}, "\n")

	var out bytes.Buffer
	var seen []string
	onResult := func(call agent.ToolCall, _ toolOutput) { seen = append(seen, call.Name) }
	if err := serveToolCalls(context.Background(), strings.NewReader(in), &out, session, onResult, discard()); err != nil {
		t.Fatalf("serveToolCalls: %v", err)
	}

	var got []toolOutput
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var o toolOutput
		if err := json.Unmarshal(sc.Bytes(), &o); err != nil {
			t.Fatalf("decode %q: %v", sc.Text(), err)
		}
		got = append(got, o)
	}
	if len(got) != 3 {
		t.Fatalf("got %d output lines, want 3: %q", len(got), out.String())
	}

	var first pidog.Result
	if err := json.Unmarshal([]byte(got[0].Result), &first); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if got[0].CallID != "1" || !first.Success || first.Action != "sit" {
		t.Errorf("first = %+v, result %+v", got[0], first)
	}

	if got[1].CallID != "" || !strings.HasPrefix(got[1].Error, "invalid tool call") {
		t.Errorf("malformed line output = %+v", got[1])
	}

	var third pidog.Result
	if err := json.Unmarshal([]byte(got[2].Result), &third); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if third.Success || third.Kind != pidog.KindUnknownAction {
		t.Errorf("unknown action result = %+v", third)
	}

	if diff := cmp.Diff([]string{"sit", "fly"}, seen); diff != "" {
		t.Errorf("onResult calls mismatch (-want +got):\n%s", diff)
	}
	if n := mock.CallCount("Execute"); n != 1 {
		t.Errorf("Execute called %d times, want 1", n)
	}
}

func TestServeToolCalls_CanceledContext(t *testing.T) {
	session := agent.NewSession(pidog.NewMock(pidog.WithMockLogger(discard())), agent.WithLogger(discard()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, w := io.Pipe()
	defer w.Close()
	var out bytes.Buffer
	if err := serveToolCalls(ctx, r, &out, session, nil, discard()); err != nil {
		t.Fatalf("serveToolCalls: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestCameraFlags(t *testing.T) {
	base := config.Default().Camera

	tests := []struct {
		name string
		args []string
		want camera.Config
	}{
		{
			name: "config only",
			want: camera.Config{Width: base.Width, Height: base.Height, Framerate: base.Framerate, Quality: base.Quality},
		},
		{
			name: "preset",
			args: []string{"--camera-preset", "low"},
			want: camera.LowBandwidthConfig(),
		},
		{
			name: "preset with override",
			args: []string{"--camera-preset", "service", "--fps", "12", "--quality", "70"},
			want: camera.Config{Width: 640, Height: 480, Framerate: 12, Quality: 70},
		},
		{
			name: "unknown preset keeps config",
			args: []string{"--camera-preset", "cinema", "--width", "800", "--height", "600"},
			want: camera.Config{Width: 800, Height: 600, Framerate: base.Framerate, Quality: base.Quality},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f cameraFlags
			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			f.register(fs)
			if err := fs.Parse(tt.args); err != nil {
				t.Fatalf("parse: %v", err)
			}
			if diff := cmp.Diff(tt.want, f.apply(base)); diff != "" {
				t.Errorf("apply mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSelectConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = config.ModeMock

	c, err := pidog.Select(context.Background(), selectConfig(cfg, 320, 240, discard()))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if c.Mode() != pidog.ModeMock {
		t.Fatalf("Mode = %q, want mock", c.Mode())
	}
	f, err := c.CaptureFrame(context.Background())
	if err != nil {
		t.Fatalf("CaptureFrame: %v", err)
	}
	if f.Width != 320 || f.Height != 240 {
		t.Errorf("frame = %dx%d, want 320x240", f.Width, f.Height)
	}
}

func TestConnect_Remote(t *testing.T) {
	c, err := connect(context.Background(), "http://127.0.0.1:1", nil, discard())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if c.Mode() != pidog.ModeRemote {
		t.Errorf("Mode = %q, want remote", c.Mode())
	}
}

func TestPrintCatalog(t *testing.T) {
	var buf bytes.Buffer
	cat := actions.Default()
	if err := printCatalog(&buf, cat); err != nil {
		t.Fatalf("printCatalog: %v", err)
	}
	out := buf.String()
	for _, c := range cat.Categories() {
		if !strings.Contains(out, c.Name+":") {
			t.Errorf("missing category %q", c.Name)
		}
	}
	for _, a := range cat.List() {
		if !strings.Contains(out, a.Name) {
			t.Errorf("missing action %q", a.Name)
		}
	}
}
