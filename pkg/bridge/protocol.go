// Package bridge drives the PiDog through the vendor SDK sidecar: a small
// process that owns the servo bus and camera and answers CBOR requests on a
// ZeroMQ REP socket.
package bridge

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/teslashibe/go-pidog/pkg/pidog"
)

// Operations understood by the sidecar.
const (
	OpPing  = "ping"
	OpDo    = "do"
	OpWalk  = "walk"
	OpFrame = "frame"
	OpClose = "close"
)

// Request is one CBOR-encoded call to the sidecar.
type Request struct {
	Op     string `cbor:"op"`
	Action string `cbor:"action,omitempty"`
	Speed  int    `cbor:"speed,omitempty"`
	Steps  int    `cbor:"steps,omitempty"`
}

// Reply is the sidecar's answer. Frame fields are only set for OpFrame.
type Reply struct {
	OK     bool   `cbor:"ok"`
	Error  string `cbor:"error,omitempty"`
	Width  int    `cbor:"width,omitempty"`
	Height int    `cbor:"height,omitempty"`
	Format string `cbor:"format,omitempty"`
	Pix    []byte `cbor:"pix,omitempty"`
}

// EncodeRequest serializes a request.
func EncodeRequest(r Request) ([]byte, error) {
	b, err := cbor.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("bridge: encode %s: %w", r.Op, err)
	}
	return b, nil
}

// DecodeReply parses a reply.
func DecodeReply(b []byte) (Reply, error) {
	var r Reply
	if err := cbor.Unmarshal(b, &r); err != nil {
		return Reply{}, fmt.Errorf("bridge: decode reply: %w", err)
	}
	return r, nil
}

// pixelFormat maps the sidecar's format name. Picamera2 delivers BGR by
// default, so an empty name means BGR.
func pixelFormat(name string) (pidog.PixelFormat, error) {
	switch name {
	case "", "bgr", "BGR888":
		return pidog.FormatBGR, nil
	case "rgb", "RGB888":
		return pidog.FormatRGB, nil
	default:
		return 0, fmt.Errorf("bridge: unsupported pixel format %q", name)
	}
}
