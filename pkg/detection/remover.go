package detection

import (
	"context"
	"image"
	"math"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/menta2k/background-remover/pkg/client"
	"github.com/menta2k/background-remover/pkg/processing"
	"github.com/menta2k/background-remover/pkg/segment"
	"github.com/menta2k/background-remover/pkg/types"
)

const (
	// DefaultMaxDim is the longest side of the image sent to the model
	DefaultMaxDim = 1024
	// DefaultFeather is the falloff margin around the box, as a fraction of
	// the shorter image side
	DefaultFeather = 0.02
)

// BoxRemover keeps the subject box reported by a vision model and fades
// everything outside it to transparent. It is a coarse fallback for hosts
// without an ONNX runtime.
type BoxRemover struct {
	detector  *Detector
	processor *processing.Processor
	model     string
	maxDim    int
	feather   float64
	log       zerolog.Logger
}

var _ segment.Remover = (*BoxRemover)(nil)

// NewBoxRemover creates a remover that asks model through c
func NewBoxRemover(c client.VisionClient, model string, log zerolog.Logger) *BoxRemover {
	return &BoxRemover{
		detector:  NewDetector(c),
		processor: processing.NewProcessor(),
		model:     model,
		maxDim:    DefaultMaxDim,
		feather:   DefaultFeather,
		log:       log.With().Str("component", "detection").Logger(),
	}
}

// SetFeather changes the falloff margin, as a fraction of the shorter side
func (r *BoxRemover) SetFeather(f float64) {
	r.feather = math.Max(0, f)
}

func (r *BoxRemover) Remove(ctx context.Context, img *image.NRGBA) (image.Image, error) {
	b := img.Bounds()
	imgB64, err := r.processor.PrepareImageForModel(img, "jpg", r.maxDim, 85)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare image for model")
	}

	sentW, sentH := fitWithin(b.Dx(), b.Dy(), r.maxDim)
	res, err := r.detector.DetectSubject(ctx, r.model, imgB64, sentW, sentH)
	if err != nil {
		return nil, err
	}
	r.log.Debug().
		Str("label", res.Primary.Label).
		Float64("confidence", res.Primary.Confidence).
		Interface("box", res.Primary.Box).
		Msg("subject located")

	feather := int(math.Round(r.feather * float64(min(b.Dx(), b.Dy()))))
	return segment.ApplyMatte(img, BoxMatte(b.Dx(), b.Dy(), res.Primary.Box, feather)), nil
}

// BoxMatte returns a w x h matte that is 255 inside box and falls off
// linearly to 0 over feather pixels outside it
func BoxMatte(w, h int, box types.Box, feather int) *image.Gray {
	x0 := int(math.Round(box.X * float64(w)))
	y0 := int(math.Round(box.Y * float64(h)))
	x1 := max(x0+1, int(math.Round((box.X+box.W)*float64(w))))
	y1 := max(y0+1, int(math.Round((box.Y+box.H)*float64(h))))

	matte := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		dy := float64(max(y0-y, 0, y-(y1-1)))
		for x := 0; x < w; x++ {
			dx := float64(max(x0-x, 0, x-(x1-1)))
			var v uint8
			switch d := math.Hypot(dx, dy); {
			case d == 0:
				v = 255
			case float64(feather) > d:
				v = uint8(math.Round(255 * (1 - d/float64(feather))))
			}
			matte.Pix[y*matte.Stride+x] = v
		}
	}
	return matte
}

// fitWithin returns the size of a w x h image scaled down so that neither
// side exceeds maxDim
func fitWithin(w, h, maxDim int) (int, int) {
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}
	if w >= h {
		return maxDim, max(1, int(math.Round(float64(h)*float64(maxDim)/float64(w))))
	}
	return max(1, int(math.Round(float64(w)*float64(maxDim)/float64(h)))), maxDim
}
