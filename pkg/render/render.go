// Package render builds displayable rasters from processed images: zoomed
// previews over a transparency checkerboard or a solid background color.
//
// Every function here is pure; nothing is cached between calls, callers
// recompose on every zoom or background change.
package render

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Mode selects what is drawn behind a transparent image
type Mode int

const (
	// Transparent draws a checkerboard behind the image
	Transparent Mode = iota
	// Solid composites the image onto Options.Background
	Solid
)

func (m Mode) String() string {
	if m == Solid {
		return "solid"
	}
	return "transparent"
}

const (
	// CheckerSize is the side of one checkerboard square in pixels
	CheckerSize = 10

	MinZoom = 0.05
	MaxZoom = 20.0
	// MaxPixels caps the size of a zoomed raster regardless of the zoom factor
	MaxPixels = 40_000_000

	zoomInStep  = 1.2
	zoomOutStep = 0.8
)

var (
	CheckerLight = color.NRGBA{0xEE, 0xEE, 0xEE, 0xFF}
	CheckerDark  = color.NRGBA{0xCC, 0xCC, 0xCC, 0xFF}
)

// Options controls Compose
type Options struct {
	Zoom       float64
	Mode       Mode
	Background color.NRGBA
}

// Compose scales img by opts.Zoom with a Lanczos filter and draws it over
// the background selected by opts.Mode. The returned raster is opaque.
func Compose(img image.Image, opts Options) *image.NRGBA {
	scaled := Scale(img, opts.Zoom)
	b := scaled.Bounds()

	var canvas *image.NRGBA
	if opts.Mode == Solid {
		bg := opts.Background
		bg.A = 0xFF
		canvas = imaging.New(b.Dx(), b.Dy(), bg)
	} else {
		canvas = Checkerboard(b.Dx(), b.Dy())
	}
	return imaging.Overlay(canvas, scaled, image.Pt(0, 0), 1.0)
}

// Scale resizes img by factor using a Lanczos filter. The result is at least
// 1x1 and at most MaxPixels.
func Scale(img image.Image, factor float64) *image.NRGBA {
	if factor <= 0 || math.IsNaN(factor) {
		factor = 1
	}
	b := img.Bounds()
	factor = FitZoom(factor, b.Dx(), b.Dy())
	w := max(1, int(math.Round(float64(b.Dx())*factor)))
	h := max(1, int(math.Round(float64(b.Dy())*factor)))
	if w == b.Dx() && h == b.Dy() {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// Checkerboard returns a w x h raster of alternating CheckerLight/CheckerDark squares
func Checkerboard(w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := y * dst.Stride
		for x := 0; x < w; x++ {
			c := CheckerLight
			if (x/CheckerSize+y/CheckerSize)%2 == 1 {
				c = CheckerDark
			}
			i := row + x*4
			dst.Pix[i+0] = c.R
			dst.Pix[i+1] = c.G
			dst.Pix[i+2] = c.B
			dst.Pix[i+3] = c.A
		}
	}
	return dst
}

// Flatten composites img onto an opaque background of color bg using its
// alpha channel as the blend mask.
func Flatten(img image.Image, bg color.NRGBA) *image.NRGBA {
	b := img.Bounds()
	bg.A = 0xFF
	canvas := imaging.New(b.Dx(), b.Dy(), bg)
	return imaging.Overlay(canvas, imaging.Clone(img), image.Pt(0, 0), 1.0)
}

// SideBySide composes left and right with the same options and places them
// next to each other, vertically centered, separated by gap pixels.
func SideBySide(left, right image.Image, opts Options, gap int) *image.NRGBA {
	l := Compose(left, Options{Zoom: opts.Zoom, Mode: Solid, Background: color.NRGBA{0xFF, 0xFF, 0xFF, 0xFF}})
	r := Compose(right, opts)

	w := l.Bounds().Dx() + gap + r.Bounds().Dx()
	h := max(l.Bounds().Dy(), r.Bounds().Dy())
	dst := imaging.New(w, h, color.NRGBA{0xFF, 0xFF, 0xFF, 0xFF})
	dst = imaging.Paste(dst, l, image.Pt(0, (h-l.Bounds().Dy())/2))
	dst = imaging.Paste(dst, r, image.Pt(l.Bounds().Dx()+gap, (h-r.Bounds().Dy())/2))
	return dst
}

// FitZoom lowers z so that a w x h image scaled by z stays within MaxPixels
func FitZoom(z float64, w, h int) float64 {
	area := float64(w) * float64(h)
	if area <= 0 {
		return z
	}
	if limit := math.Sqrt(MaxPixels / area); z > limit {
		return limit
	}
	return z
}

// ZoomIn returns the next larger zoom factor
func ZoomIn(z float64) float64 { return clampZoom(z * zoomInStep) }

// ZoomOut returns the next smaller zoom factor
func ZoomOut(z float64) float64 { return clampZoom(z * zoomOutStep) }

func clampZoom(z float64) float64 {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}
