// Package cropper frames background-removed images: it trims transparent
// margins around the subject or fits the subject into a target aspect ratio
// by padding with transparent pixels. The subject is never cut.
package cropper

import (
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ErrNoSubject is returned when every pixel is (almost) transparent
var ErrNoSubject = errors.New("image has no opaque subject")

// AspectRatio represents common aspect ratios
type AspectRatio struct {
	Width  int
	Height int
	Name   string
}

// Ratio returns Width/Height
func (a AspectRatio) Ratio() float64 {
	return float64(a.Width) / float64(a.Height)
}

// IsZero reports whether no ratio is set
func (a AspectRatio) IsZero() bool {
	return a.Width == 0 || a.Height == 0
}

// Common aspect ratios
var (
	Square     = AspectRatio{1, 1, "square"}
	Portrait   = AspectRatio{3, 4, "portrait"}
	Landscape  = AspectRatio{4, 3, "landscape"}
	Widescreen = AspectRatio{16, 9, "widescreen"}
	Instagram  = AspectRatio{4, 5, "instagram"}
	Story      = AspectRatio{9, 16, "story"}
)

// CommonAspectRatios returns a list of commonly used aspect ratios
func CommonAspectRatios() []AspectRatio {
	return []AspectRatio{Square, Portrait, Landscape, Widescreen, Instagram, Story}
}

// ParseAspectRatio accepts a preset name ("square") or "W:H" ("16:9")
func ParseAspectRatio(s string) (AspectRatio, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, a := range CommonAspectRatios() {
		if a.Name == s {
			return a, nil
		}
	}

	w, h, ok := strings.Cut(s, ":")
	if ok {
		wi, errW := strconv.Atoi(w)
		hi, errH := strconv.Atoi(h)
		if errW == nil && errH == nil && wi > 0 && hi > 0 {
			return AspectRatio{Width: wi, Height: hi, Name: s}, nil
		}
	}
	return AspectRatio{}, errors.Errorf("invalid aspect ratio %q: want W:H or a preset name", s)
}

// CropConfig holds configuration for framing
type CropConfig struct {
	// AlphaThreshold is the alpha above which a pixel belongs to the subject
	AlphaThreshold uint8
	// PaddingRatio is the margin kept around the subject, relative to the
	// subject's larger side
	PaddingRatio float64
}

// Framing selects what Frame does. The zero value leaves images unchanged.
type Framing struct {
	Trim  bool
	Ratio AspectRatio
}

// SmartCropper provides subject-aware framing
type SmartCropper struct {
	config CropConfig
}

// New creates a new SmartCropper with default configuration
func New() *SmartCropper {
	return &SmartCropper{
		config: CropConfig{
			AlphaThreshold: 8,
			PaddingRatio:   0.05,
		},
	}
}

// NewWithConfig creates a new SmartCropper with custom configuration
func NewWithConfig(config CropConfig) *SmartCropper {
	return &SmartCropper{config: config}
}

// SubjectBounds returns the bounding box of the pixels whose alpha exceeds
// the threshold
func (c *SmartCropper) SubjectBounds(img *image.NRGBA) (image.Rectangle, bool) {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.Pix[row+(x-b.Min.X)*4+3] <= c.config.AlphaThreshold {
				continue
			}
			minX = min(minX, x)
			maxX = max(maxX, x)
			minY = min(minY, y)
			maxY = max(maxY, y)
		}
	}
	if maxX < minX {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// Trim crops img to its subject plus padding, clipped to the image
func (c *SmartCropper) Trim(img *image.NRGBA) (*image.NRGBA, error) {
	r, err := c.paddedSubject(img)
	if err != nil {
		return nil, err
	}
	return imaging.Crop(img, r.Intersect(img.Bounds())), nil
}

// CropToAspectRatio frames the subject in the given aspect ratio
func (c *SmartCropper) CropToAspectRatio(img *image.NRGBA, aspectRatio AspectRatio) (*image.NRGBA, error) {
	if aspectRatio.IsZero() {
		return nil, errors.New("aspect ratio is not set")
	}
	return c.CropToRatio(img, aspectRatio.Ratio())
}

// CropToRatio returns the smallest window of targetRatio that holds the
// padded subject, centered on it. Parts of the window outside the image are
// transparent.
func (c *SmartCropper) CropToRatio(img *image.NRGBA, targetRatio float64) (*image.NRGBA, error) {
	if targetRatio <= 0 || math.IsNaN(targetRatio) || math.IsInf(targetRatio, 0) {
		return nil, errors.Errorf("invalid aspect ratio %v", targetRatio)
	}
	s, err := c.paddedSubject(img)
	if err != nil {
		return nil, err
	}

	sw, sh := float64(s.Dx()), float64(s.Dy())
	w, h := sw, sh
	if sw/sh < targetRatio {
		w = sh * targetRatio
	} else {
		h = sw / targetRatio
	}
	cw, ch := int(math.Round(w)), int(math.Round(h))
	cx := float64(s.Min.X) + sw/2
	cy := float64(s.Min.Y) + sh/2
	origin := image.Pt(int(math.Round(cx-float64(cw)/2)), int(math.Round(cy-float64(ch)/2)))

	canvas := imaging.New(cw, ch, color.NRGBA{})
	pos := img.Bounds().Min.Sub(origin)
	return imaging.Paste(canvas, img, pos), nil
}

// Frame applies f. A ratio implies trimming to the subject.
func (c *SmartCropper) Frame(img *image.NRGBA, f Framing) (*image.NRGBA, error) {
	switch {
	case !f.Ratio.IsZero():
		return c.CropToAspectRatio(img, f.Ratio)
	case f.Trim:
		return c.Trim(img)
	}
	return img, nil
}

func (c *SmartCropper) paddedSubject(img *image.NRGBA) (image.Rectangle, error) {
	r, ok := c.SubjectBounds(img)
	if !ok {
		return image.Rectangle{}, ErrNoSubject
	}
	pad := int(math.Round(float64(max(r.Dx(), r.Dy())) * c.config.PaddingRatio))
	return r.Inset(-pad), nil
}
