// Package bgremover removes image backgrounds.
//
// A Remover wraps one segmentation backend: a local ONNX Runtime model
// (U2-Net family), a vision model served by Ollama or llama.cpp that
// locates the subject, or a model-free saliency key. Results are RGBA
// images whose alpha channel holds the matte.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		bgremover "github.com/menta2k/background-remover"
//		"github.com/rs/zerolog"
//	)
//
//	func main() {
//		settings := bgremover.DefaultSettings()
//		settings.ModelPath = "models/u2net.onnx"
//
//		r, err := bgremover.New(settings, zerolog.Nop())
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer r.Close()
//
//		out, err := r.ProcessFile(context.Background(), "photo.jpg", "out", bgremover.PNG())
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("wrote %s", out)
//	}
//
// The package consists of these main components:
//
//  1. Pipeline (pkg/segment): validates input and runs a backend
//  2. Backends (pkg/segment/onnx, pkg/detection, pkg/vision): produce the matte
//  3. Processing (pkg/processing): decoding, encoding and export naming
//  4. Batch (pkg/batch): sequential folder processing
//  5. Cropper (pkg/cropper): trims or reframes the transparent result
package bgremover

import (
	"context"
	"image"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/menta2k/background-remover/internal/config"
	"github.com/menta2k/background-remover/internal/utils"
	"github.com/menta2k/background-remover/pkg/batch"
	"github.com/menta2k/background-remover/pkg/cropper"
	"github.com/menta2k/background-remover/pkg/detection"
	"github.com/menta2k/background-remover/pkg/llamacpp"
	"github.com/menta2k/background-remover/pkg/ollama"
	"github.com/menta2k/background-remover/pkg/processing"
	"github.com/menta2k/background-remover/pkg/segment"
	"github.com/menta2k/background-remover/pkg/segment/onnx"
	"github.com/menta2k/background-remover/pkg/types"
	"github.com/menta2k/background-remover/pkg/vision"
)

// Version of the background remover library
const Version = "1.0.0"

// Settings selects and configures the backend
type Settings = config.Settings

// Backend names a segmentation backend
type Backend = config.Backend

const (
	BackendONNX     = config.BackendONNX
	BackendOllama   = config.BackendOllama
	BackendLlamaCpp = config.BackendLlamaCpp
	BackendSaliency = config.BackendSaliency
)

// DefaultSettings returns the engine defaults
func DefaultSettings() Settings { return config.DefaultSettings() }

// SettingsFromEnv returns the defaults overridden by BGREMOVER_* variables
func SettingsFromEnv() Settings { return config.SettingsFromEnv() }

// PNG returns save options for a transparent PNG
func PNG() processing.SaveOptions {
	return processing.SaveOptions{Format: types.FormatPNG}
}

// JPEG returns save options for a JPEG flattened onto bg
func JPEG(quality int, bg types.RGB) processing.SaveOptions {
	return processing.SaveOptions{Format: types.FormatJPEG, Quality: quality, Background: bg}
}

// Remover provides a high-level interface for background removal
type Remover struct {
	pipeline  *segment.Pipeline
	processor *processing.Processor
	cropper   *cropper.SmartCropper
	framing   cropper.Framing
	closer    io.Closer
	log       zerolog.Logger
}

// New builds the backend named in s
func New(s Settings, log zerolog.Logger) (*Remover, error) {
	backend, closer, err := NewBackend(s, log)
	if err != nil {
		return nil, err
	}
	p := segment.NewPipeline(backend, segment.WithName(string(s.Backend)), segment.WithLogger(log))
	r := NewWithPipeline(p, log)
	r.closer = closer
	return r, nil
}

// NewWithPipeline wraps an existing pipeline
func NewWithPipeline(p *segment.Pipeline, log zerolog.Logger) *Remover {
	return &Remover{
		pipeline:  p,
		processor: processing.NewProcessor(),
		cropper:   cropper.New(),
		log:       log,
	}
}

// SetFraming makes ProcessFile trim or reframe every result
func (r *Remover) SetFraming(f cropper.Framing) {
	r.framing = f
}

// NewBackend creates the segment.Remover for s. The returned closer is nil
// for backends that hold no native resources.
func NewBackend(s Settings, log zerolog.Logger) (segment.Remover, io.Closer, error) {
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}

	switch s.Backend {
	case BackendONNX:
		cfg := onnx.DefaultConfig(utils.ExpandHome(s.ModelPath))
		cfg.LibraryPath = s.ORTLibrary
		cfg.Threads = s.Threads
		r, err := onnx.New(cfg)
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil
	case BackendOllama:
		c, err := ollama.NewClient(s.ModelURL, log)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to create Ollama client")
		}
		return detection.NewBoxRemover(c, s.VisionModel, log), nil, nil
	case BackendLlamaCpp:
		c, err := llamacpp.NewClient(s.ModelURL, log)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to create llama.cpp client")
		}
		return detection.NewBoxRemover(c, s.VisionModel, log), nil, nil
	case BackendSaliency:
		return vision.New(), nil, nil
	}
	return nil, nil, errors.Errorf("unknown backend %q", s.Backend)
}

// Pipeline returns the underlying pipeline
func (r *Remover) Pipeline() *segment.Pipeline { return r.pipeline }

// LoadImage loads an image from file
func (r *Remover) LoadImage(path string) (image.Image, error) {
	return r.processor.LoadImage(path)
}

// RemoveBackground runs the backend on img
func (r *Remover) RemoveBackground(ctx context.Context, img image.Image) (*image.NRGBA, error) {
	return r.pipeline.RemoveBackground(ctx, img)
}

// ProcessFile loads inputPath, removes its background and writes
// {outputDir}/{basename}_nobg.{ext}. It returns the written path.
func (r *Remover) ProcessFile(ctx context.Context, inputPath, outputDir string, opts processing.SaveOptions) (string, error) {
	img, err := r.processor.LoadImage(inputPath)
	if err != nil {
		return "", err
	}

	res, err := r.pipeline.RemoveBackground(ctx, img)
	if err != nil {
		return "", err
	}
	res, err = r.cropper.Frame(res, r.framing)
	if err != nil {
		return "", errors.Wrapf(err, "frame %s", inputPath)
	}

	if opts.Format == "" {
		opts.Format = types.FormatPNG
	}
	if err := utils.EnsureDir(outputDir); err != nil {
		return "", &types.SaveError{Path: outputDir, Err: err}
	}
	out := processing.OutputPath(inputPath, outputDir, opts.Format)
	if err := r.processor.SaveImage(res, out, opts); err != nil {
		return "", err
	}
	return out, nil
}

// ProcessDir processes every image in dir, skipping earlier outputs, and
// writes PNGs to outputDir
func (r *Remover) ProcessDir(ctx context.Context, dir, outputDir string) (*batch.Summary, error) {
	files, err := utils.ListImageFiles(dir, processing.OutputSuffix)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", dir)
	}
	return batch.NewRunner(r.pipeline, r.log).Run(ctx, files, outputDir, nil), nil
}

// Close releases native backend resources
func (r *Remover) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
