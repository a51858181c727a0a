// Package vision implements a model-free segmentation backend. A saliency
// map combines local edge strength with the color distance from the
// estimated background (the mean of the image border); salient pixels
// become the foreground.
package vision

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/background-remover/pkg/segment"
)

// DetectionConfig holds configuration for saliency segmentation
type DetectionConfig struct {
	EdgeWeight  float64
	ColorWeight float64
	// Threshold is the normalized saliency at which a pixel starts to
	// become foreground; Softness is the width of the ramp to opaque.
	Threshold float64
	Softness  float64
	// BlurSigma smooths the matte. 0 disables smoothing.
	BlurSigma float64
	// BorderWidth is the border band used to estimate the background.
	// 0 picks 2% of the short side.
	BorderWidth int
}

// SubjectDetector is a segment.Remover that needs no model
type SubjectDetector struct {
	config DetectionConfig
}

var _ segment.Remover = (*SubjectDetector)(nil)

// New creates a new SubjectDetector with default configuration
func New() *SubjectDetector {
	return &SubjectDetector{
		config: DetectionConfig{
			EdgeWeight:  0.2,
			ColorWeight: 0.8,
			Threshold:   0.15,
			Softness:    0.1,
			BlurSigma:   1,
		},
	}
}

// NewWithConfig creates a new SubjectDetector with custom configuration
func NewWithConfig(config DetectionConfig) *SubjectDetector {
	if config.Softness <= 0 {
		config.Softness = 0.01
	}
	return &SubjectDetector{config: config}
}

// Remove computes the matte for img and applies it
func (d *SubjectDetector) Remove(ctx context.Context, img *image.NRGBA) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return segment.ApplyMatte(img, d.Matte(img)), nil
}

// Matte returns the foreground matte of img
func (d *SubjectDetector) Matte(img *image.NRGBA) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	saliency := d.SaliencyMap(img)

	matte := image.NewGray(image.Rect(0, 0, w, h))
	for i, s := range saliency {
		a := (s - d.config.Threshold) / d.config.Softness
		matte.Pix[i] = uint8(math.Round(clamp01(a) * 255))
	}

	if d.config.BlurSigma > 0 {
		blurred := imaging.Blur(matte, d.config.BlurSigma)
		for i := range matte.Pix {
			matte.Pix[i] = blurred.Pix[i*4]
		}
	}
	return matte
}

// SaliencyMap returns one value in [0, 1] per pixel, row major
func (d *SubjectDetector) SaliencyMap(img *image.NRGBA) []float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	bg := BackgroundColor(img, d.borderWidth(w, h))
	saliency := make([]float64, w*h)

	neighbors := [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
	maxDist := math.Sqrt(3) * 255
	maxVal := 0.0

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.NRGBAAt(b.Min.X+x, b.Min.Y+y)

			var edge float64
			n := 0
			for _, o := range neighbors {
				nx, ny := x+o[0], y+o[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				edge += colorDistance(c, img.NRGBAAt(b.Min.X+nx, b.Min.Y+ny))
				n++
			}
			if n > 0 {
				edge /= float64(n) * maxDist
			}

			s := d.config.EdgeWeight*edge + d.config.ColorWeight*colorDistance(c, bg)/maxDist
			saliency[y*w+x] = s
			if s > maxVal {
				maxVal = s
			}
		}
	}

	if maxVal > 0 {
		for i := range saliency {
			saliency[i] /= maxVal
		}
	}
	return saliency
}

func (d *SubjectDetector) borderWidth(w, h int) int {
	if d.config.BorderWidth > 0 {
		return d.config.BorderWidth
	}
	bw := min(w, h) / 50
	return max(bw, 1)
}

// BackgroundColor estimates the background as the mean color of a border
// band of the given width
func BackgroundColor(img *image.NRGBA, border int) color.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	var r, g, bl, n float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x >= border && x < w-border && y >= border && y < h-border {
				continue
			}
			c := img.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			r += float64(c.R)
			g += float64(c.G)
			bl += float64(c.B)
			n++
		}
	}
	if n == 0 {
		return color.NRGBA{A: 255}
	}
	return color.NRGBA{
		R: uint8(math.Round(r / n)),
		G: uint8(math.Round(g / n)),
		B: uint8(math.Round(bl / n)),
		A: 255,
	}
}

func colorDistance(a, b color.NRGBA) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
