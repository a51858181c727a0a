// Package segment runs background removal through a pluggable segmentation
// model.
//
// A model backend only has to implement Remover. The Pipeline normalizes the
// input, invokes the backend and turns every kind of backend failure into a
// *types.ProcessingError so callers can leave their state untouched.
package segment

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/menta2k/background-remover/pkg/types"
)

// Remover is a background segmentation model. Remove receives an RGBA image
// it may read but must not retain, and returns an image of the same size
// whose alpha channel marks the foreground.
type Remover interface {
	Remove(ctx context.Context, img *image.NRGBA) (image.Image, error)
}

// RemoverFunc adapts a function to the Remover interface
type RemoverFunc func(ctx context.Context, img *image.NRGBA) (image.Image, error)

func (f RemoverFunc) Remove(ctx context.Context, img *image.NRGBA) (image.Image, error) {
	return f(ctx, img)
}

// Pipeline wraps a Remover with input normalization and error handling
type Pipeline struct {
	remover Remover
	name    string
	log     zerolog.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithName sets the backend name reported in logs and errors
func WithName(name string) Option {
	return func(p *Pipeline) { p.name = name }
}

// WithLogger sets the pipeline logger
func WithLogger(log zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// NewPipeline creates a Pipeline around r
func NewPipeline(r Remover, opts ...Option) *Pipeline {
	p := &Pipeline{
		remover: r,
		name:    fmt.Sprintf("%T", r),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the backend name
func (p *Pipeline) Name() string { return p.name }

// RemoveBackground returns a new RGBA image in which background pixels carry
// alpha 0 and foreground pixels keep their color with the model's alpha.
// It performs no I/O. img is not modified.
func (p *Pipeline) RemoveBackground(ctx context.Context, img image.Image) (out *image.NRGBA, err error) {
	if img == nil {
		return nil, p.fail(types.ErrNoImage)
	}
	src := imaging.Clone(img)
	b := src.Bounds()
	if b.Empty() {
		return nil, p.fail(errors.New("empty image"))
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = p.fail(errors.Errorf("model panicked: %v", r))
		}
	}()

	start := time.Now()
	res, err := p.remover.Remove(ctx, src)
	if err != nil {
		return nil, p.fail(err)
	}
	if res == nil {
		return nil, p.fail(errors.New("model returned no image"))
	}
	if rb := res.Bounds(); rb.Dx() != b.Dx() || rb.Dy() != b.Dy() {
		return nil, p.fail(errors.Errorf("model returned %dx%d for a %dx%d input", rb.Dx(), rb.Dy(), b.Dx(), b.Dy()))
	}

	out = imaging.Clone(res)
	p.log.Debug().
		Str("backend", p.name).
		Int("width", b.Dx()).
		Int("height", b.Dy()).
		Dur("elapsed", time.Since(start)).
		Msg("background removed")
	return out, nil
}

func (p *Pipeline) fail(err error) error {
	p.log.Debug().Str("backend", p.name).Err(err).Msg("background removal failed")
	return &types.ProcessingError{Backend: p.name, Err: err}
}
