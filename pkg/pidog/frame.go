package pidog

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	xdraw "golang.org/x/image/draw"
)

// Frame resolutions and encoding defaults.
const (
	DefaultWidth  = 1280
	DefaultHeight = 720

	// ServiceWidth and ServiceHeight size the hardware service's mock frames.
	ServiceWidth  = 640
	ServiceHeight = 480

	DefaultJPEGQuality = 80
)

// PixelFormat is the channel order of a raw sensor buffer.
type PixelFormat int

const (
	FormatRGB PixelFormat = iota
	FormatBGR
)

// Frame is an 8-bit RGB image stored row-major, 3 bytes per pixel.
// Frames are values; nothing retains a reference after handing one out.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// NewFrame returns a zero-filled (black) frame.
func NewFrame(width, height int) Frame {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return Frame{Width: width, Height: height, Pix: make([]byte, width*height*3)}
}

// BlankFrame returns a black frame of the default camera resolution.
func BlankFrame() Frame {
	return NewFrame(DefaultWidth, DefaultHeight)
}

// Valid reports whether the pixel buffer matches the dimensions.
func (f Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Pix) == f.Width*f.Height*3
}

// Blank reports whether every pixel is black.
func (f Frame) Blank() bool {
	for _, b := range f.Pix {
		if b != 0 {
			return false
		}
	}
	return true
}

// RGB returns the pixel at (x, y).
func (f Frame) RGB(x, y int) (r, g, b uint8) {
	i := (y*f.Width + x) * 3
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// Image converts the frame to an opaque RGBA image.
func (f Frame) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for src, dst := 0, 0; src+2 < len(f.Pix) && dst+3 < len(img.Pix); src, dst = src+3, dst+4 {
		img.Pix[dst] = f.Pix[src]
		img.Pix[dst+1] = f.Pix[src+1]
		img.Pix[dst+2] = f.Pix[src+2]
		img.Pix[dst+3] = 0xff
	}
	return img
}

// FromImage converts any image to a Frame, dropping alpha.
func FromImage(img image.Image) Frame {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		xdraw.Draw(rgba, rgba.Bounds(), img, b.Min, xdraw.Src)
	}

	f := NewFrame(b.Dx(), b.Dy())
	for y := 0; y < f.Height; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		out := f.Pix[y*f.Width*3:]
		for x := 0; x < f.Width; x++ {
			out[x*3] = row[x*4]
			out[x*3+1] = row[x*4+1]
			out[x*3+2] = row[x*4+2]
		}
	}
	return f
}

// FromRaw converts a raw sensor buffer to an RGB frame.
func FromRaw(width, height int, format PixelFormat, pix []byte) (Frame, error) {
	if width <= 0 || height <= 0 {
		return Frame{}, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	if len(pix) != width*height*3 {
		return Frame{}, fmt.Errorf("frame buffer is %d bytes, want %d", len(pix), width*height*3)
	}

	f := Frame{Width: width, Height: height, Pix: make([]byte, len(pix))}
	copy(f.Pix, pix)
	if format == FormatBGR {
		for i := 0; i+2 < len(f.Pix); i += 3 {
			f.Pix[i], f.Pix[i+2] = f.Pix[i+2], f.Pix[i]
		}
	}
	return f, nil
}

// Resize returns the frame scaled to width x height. A frame that already
// has that size is returned as is.
func (f Frame) Resize(width, height int) Frame {
	if f.Width == width && f.Height == height {
		return f
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), f.Image(), image.Rect(0, 0, f.Width, f.Height), xdraw.Src, nil)
	return FromImage(dst)
}

// EncodeJPEG encodes the frame as JPEG at the given quality (1-100).
func EncodeJPEG(f Frame, quality int) ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("encode jpeg: invalid frame %dx%d (%d bytes)", f.Width, f.Height, len(f.Pix))
	}
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.Image(), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeJPEG decodes JPEG bytes into a frame.
func DecodeJPEG(data []byte) (Frame, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return Frame{}, fmt.Errorf("decode jpeg: %w", err)
	}
	return FromImage(img), nil
}
