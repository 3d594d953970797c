package pidog

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Mock frame marker text.
const (
	MockTitle    = "MOCK PIDOG CAMERA"
	MockSubtitle = "Hardware will stream real video"
)

var (
	mockGreen = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	mockWhite = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// mockFrame renders a black frame with the mock banner baked into it.
func mockFrame(width, height int) Frame {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, xdraw.Src)

	scale := width / 320
	if scale < 1 {
		scale = 1
	}
	subScale := scale / 2
	if subScale < 1 {
		subScale = 1
	}
	drawText(img, MockTitle, mockGreen, height/2, scale)
	drawText(img, MockSubtitle, mockWhite, height/2+height/8, subScale)

	return FromImage(img)
}

// drawText renders text with the 7x13 bitmap font, scaled by an integer
// factor and centered horizontally around row centerY.
func drawText(dst *image.RGBA, text string, col color.Color, centerY, scale int) {
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil()
	h := face.Metrics().Height.Ceil()

	glyphs := image.NewRGBA(image.Rect(0, 0, w, h))
	d := font.Drawer{
		Dst:  glyphs,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(0, face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)

	b := dst.Bounds()
	x0 := (b.Dx() - w*scale) / 2
	y0 := centerY - h*scale/2
	target := image.Rect(x0, y0, x0+w*scale, y0+h*scale).Intersect(b)
	if target.Empty() {
		return
	}
	xdraw.NearestNeighbor.Scale(dst, image.Rect(x0, y0, x0+w*scale, y0+h*scale), glyphs, glyphs.Bounds(), xdraw.Over, nil)
}
