package render

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func createTestImage(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestComposeSolidTransparentPixelsShowBackground(t *testing.T) {
	img := createTestImage(16, 8, color.NRGBA{0, 255, 0, 0})
	out := Compose(img, Options{Zoom: 1, Mode: Solid, Background: color.NRGBA{255, 0, 0, 255}})

	assert.Equal(t, img.Bounds(), out.Bounds())
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			assert.Equal(t, color.NRGBA{255, 0, 0, 255}, out.NRGBAAt(x, y))
		}
	}
}

func TestComposeSolidOpaquePixelsUnchanged(t *testing.T) {
	img := createTestImage(6, 6, color.NRGBA{12, 34, 56, 255})
	out := Compose(img, Options{Zoom: 1, Mode: Solid, Background: color.NRGBA{255, 0, 0, 255}})
	assert.Equal(t, img.Pix, out.Pix)
}

func TestComposeSolidHalfAlphaBlends(t *testing.T) {
	img := createTestImage(2, 2, color.NRGBA{0, 0, 0, 128})
	out := Compose(img, Options{Zoom: 1, Mode: Solid, Background: color.NRGBA{255, 255, 255, 255}})

	c := out.NRGBAAt(0, 0)
	assert.InDelta(t, 127, int(c.R), 2)
	assert.Equal(t, uint8(255), c.A)
}

func TestComposeTransparentDrawsCheckerboard(t *testing.T) {
	img := createTestImage(30, 30, color.NRGBA{0, 0, 0, 0})
	out := Compose(img, Options{Zoom: 1, Mode: Transparent})

	assert.Equal(t, CheckerLight, out.NRGBAAt(0, 0))
	assert.Equal(t, CheckerLight, out.NRGBAAt(9, 9))
	assert.Equal(t, CheckerDark, out.NRGBAAt(10, 0))
	assert.Equal(t, CheckerDark, out.NRGBAAt(0, 10))
	assert.Equal(t, CheckerLight, out.NRGBAAt(10, 10))
}

func TestComposeZoom(t *testing.T) {
	img := createTestImage(100, 50, color.NRGBA{9, 9, 9, 255})

	out := Compose(img, Options{Zoom: 0.5, Mode: Solid})
	assert.Equal(t, image.Rect(0, 0, 50, 25), out.Bounds())

	out = Compose(img, Options{Zoom: 0.001, Mode: Transparent})
	assert.Equal(t, image.Rect(0, 0, 1, 1), out.Bounds(), "result is at least 1x1")
}

func TestFlatten(t *testing.T) {
	img := createTestImage(4, 4, color.NRGBA{0, 0, 0, 0})
	img.SetNRGBA(1, 1, color.NRGBA{10, 20, 30, 255})

	out := Flatten(img, color.NRGBA{240, 240, 240, 0})
	assert.Equal(t, color.NRGBA{240, 240, 240, 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{10, 20, 30, 255}, out.NRGBAAt(1, 1))
}

func TestSideBySide(t *testing.T) {
	left := createTestImage(10, 20, color.NRGBA{1, 1, 1, 255})
	right := createTestImage(10, 10, color.NRGBA{0, 0, 0, 0})

	out := SideBySide(left, right, Options{Zoom: 1, Mode: Solid, Background: color.NRGBA{0, 0, 255, 255}}, 4)
	assert.Equal(t, image.Rect(0, 0, 24, 20), out.Bounds())
	assert.Equal(t, color.NRGBA{1, 1, 1, 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{0, 0, 255, 255}, out.NRGBAAt(15, 10))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, out.NRGBAAt(15, 0), "padding above the shorter image")
}

func TestFitZoom(t *testing.T) {
	assert.Equal(t, 2.0, FitZoom(2, 100, 100))
	assert.Equal(t, 3.0, FitZoom(3, 0, 0))

	z := FitZoom(MaxZoom, 4000, 3000)
	assert.Less(t, z, MaxZoom)
	assert.LessOrEqual(t, 4000*z*3000*z, float64(MaxPixels)+1)
}

func TestScaleIgnoresInvalidFactor(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 7, 5))
	assert.Equal(t, img.Bounds(), Scale(img, math.NaN()).Bounds())
	assert.Equal(t, img.Bounds(), Scale(img, -2).Bounds())
}

func TestZoomSteps(t *testing.T) {
	assert.InDelta(t, 1.2, ZoomIn(1), 1e-9)
	assert.InDelta(t, 0.8, ZoomOut(1), 1e-9)
	assert.Equal(t, MaxZoom, ZoomIn(MaxZoom))
	assert.Equal(t, MinZoom, ZoomOut(MinZoom))
	assert.Equal(t, "solid", Solid.String())
	assert.Equal(t, "transparent", Transparent.String())
}
