package pidog

import (
	"bytes"
	"context"
	"testing"

	"github.com/teslashibe/go-pidog/pkg/actions"
)

func TestMock_Execute(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	if err := m.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	r := m.Execute(ctx, "sit", actions.Params{Speed: 80})
	if !r.Success || r.Action != "sit" || !r.Mock {
		t.Errorf("Execute = %+v", r)
	}
	if r.Error != "" || r.Kind != "" {
		t.Errorf("unexpected error fields: %+v", r)
	}
	if got := m.CallCount("Execute"); got != 1 {
		t.Errorf("CallCount(Execute) = %d, want 1", got)
	}
	if m.Mode() != ModeMock {
		t.Errorf("Mode = %q", m.Mode())
	}
}

func TestMock_CaptureFrame(t *testing.T) {
	m := NewMock()
	a, err := m.CaptureFrame(context.Background())
	if err != nil {
		t.Fatalf("CaptureFrame: %v", err)
	}
	if a.Width != DefaultWidth || a.Height != DefaultHeight || !a.Valid() {
		t.Fatalf("frame = %dx%d valid=%v", a.Width, a.Height, a.Valid())
	}

	b, _ := m.CaptureFrame(context.Background())
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("mock frames differ between calls")
	}
	if &a.Pix[0] == &b.Pix[0] {
		t.Error("mock frames share a buffer")
	}
}

func TestMock_Resolution(t *testing.T) {
	m := NewMock(WithResolution(ServiceWidth, ServiceHeight))
	f, _ := m.CaptureFrame(context.Background())
	if f.Width != ServiceWidth || f.Height != ServiceHeight {
		t.Errorf("frame = %dx%d", f.Width, f.Height)
	}
}

func TestMockFrame_Banner(t *testing.T) {
	for _, size := range [][2]int{{DefaultWidth, DefaultHeight}, {ServiceWidth, ServiceHeight}} {
		f := mockFrame(size[0], size[1])
		var green, white int
		for i := 0; i+2 < len(f.Pix); i += 3 {
			switch {
			case f.Pix[i] == 0 && f.Pix[i+1] == 255 && f.Pix[i+2] == 0:
				green++
			case f.Pix[i] == 255 && f.Pix[i+1] == 255 && f.Pix[i+2] == 255:
				white++
			}
		}
		if green == 0 {
			t.Errorf("%dx%d: no green title pixels", size[0], size[1])
		}
		if white == 0 {
			t.Errorf("%dx%d: no white subtitle pixels", size[0], size[1])
		}
		if r, g, b := f.RGB(0, 0); r|g|b != 0 {
			t.Errorf("%dx%d: background not black", size[0], size[1])
		}
	}
}

func TestMock_ShutdownIdempotent(t *testing.T) {
	m := NewMock()
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := m.Shutdown(ctx); err != nil {
			t.Fatalf("Shutdown #%d: %v", i+1, err)
		}
	}
	if n := m.CallCount("Shutdown"); n != 2 {
		t.Errorf("Shutdown called %d times, want 2", n)
	}
}
