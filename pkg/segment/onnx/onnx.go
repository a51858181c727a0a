// Package onnx runs U2-Net style salient object segmentation models through
// ONNX Runtime.
package onnx

import (
	"context"
	"image"
	"os"
	"sync"

	"github.com/chewxy/math32"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/menta2k/background-remover/pkg/segment"
)

// Config holds the model and runtime settings
type Config struct {
	// ModelPath is the .onnx file
	ModelPath string
	// LibraryPath is the onnxruntime shared library. Empty uses the
	// library's platform default.
	LibraryPath string
	// InputSize is the square model input side
	InputSize int
	Mean      [3]float32
	Std       [3]float32
	// InputName and OutputName are discovered from the model when empty
	InputName  string
	OutputName string
	// Threads sets intra-op parallelism. 0 lets the runtime decide.
	Threads int
}

// DefaultConfig returns settings for u2net / u2netp / silueta models
func DefaultConfig(modelPath string) Config {
	return Config{
		ModelPath: modelPath,
		InputSize: 320,
		Mean:      [3]float32{0.485, 0.456, 0.406},
		Std:       [3]float32{0.229, 0.224, 0.225},
	}
}

// Remover is a segment.Remover backed by one ONNX Runtime session
type Remover struct {
	cfg     Config
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	mu      sync.Mutex
}

var _ segment.Remover = (*Remover)(nil)

// New loads the model and allocates its tensors
func New(cfg Config) (*Remover, error) {
	if cfg.InputSize <= 0 {
		cfg.InputSize = 320
	}
	if cfg.Std == ([3]float32{}) {
		def := DefaultConfig(cfg.ModelPath)
		cfg.Mean, cfg.Std = def.Mean, def.Std
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model %s", cfg.ModelPath)
	}

	if !ort.IsInitialized() {
		if cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrap(err, "error initializing ORT environment")
		}
	}

	if cfg.InputName == "" || cfg.OutputName == "" {
		inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
		if err != nil {
			return nil, errors.Wrap(err, "error reading model inputs and outputs")
		}
		if len(inputs) == 0 || len(outputs) == 0 {
			return nil, errors.New("model declares no inputs or outputs")
		}
		if cfg.InputName == "" {
			cfg.InputName = inputs[0].Name
		}
		if cfg.OutputName == "" {
			cfg.OutputName = outputs[0].Name
		}
	}

	size := int64(cfg.InputSize)
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, size, size))
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "error creating output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	defer options.Destroy()
	if cfg.Threads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.Threads); err != nil {
			input.Destroy()
			output.Destroy()
			return nil, errors.Wrap(err, "error setting thread count")
		}
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.Value{input},
		[]ort.Value{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "error creating ORT session")
	}

	return &Remover{cfg: cfg, session: session, input: input, output: output}, nil
}

// Remove predicts a foreground matte for img and applies it as alpha
func (r *Remover) Remove(ctx context.Context, img *image.NRGBA) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return nil, errors.New("session is closed")
	}

	size := r.cfg.InputSize
	if err := Preprocess(img, size, r.cfg.Mean, r.cfg.Std, r.input.GetData()); err != nil {
		return nil, err
	}
	if err := r.session.Run(); err != nil {
		return nil, errors.Wrap(err, "failed to run inference")
	}

	b := img.Bounds()
	matte := Postprocess(r.output.GetData(), size, b.Dx(), b.Dy())
	return segment.ApplyMatte(img, matte), nil
}

// Close releases the session and its tensors
func (r *Remover) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.input != nil {
		r.input.Destroy()
		r.input = nil
	}
	if r.output != nil {
		r.output.Destroy()
		r.output = nil
	}
	if r.session != nil {
		if err := r.session.Destroy(); err != nil {
			r.session = nil
			return errors.Wrap(err, "error destroying ORT session")
		}
		r.session = nil
	}
	return nil
}

// Preprocess resizes img to size x size, divides by the brightest channel
// value, normalizes each channel with mean and std, and writes the result
// into dst in NCHW order.
func Preprocess(img image.Image, size int, mean, std [3]float32, dst []float32) error {
	plane := size * size
	if len(dst) < plane*3 {
		return errors.Errorf("destination tensor only holds %d floats, needs %d", len(dst), plane*3)
	}

	scaled := resize.Resize(uint(size), uint(size), img, resize.Lanczos3)
	sb := scaled.Bounds()

	var peak float32
	i := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := scaled.At(sb.Min.X+x, sb.Min.Y+y).RGBA()
			rv, gv, bv := float32(r>>8), float32(g>>8), float32(b>>8)
			dst[i], dst[plane+i], dst[2*plane+i] = rv, gv, bv
			peak = math32.Max(peak, math32.Max(rv, math32.Max(gv, bv)))
			i++
		}
	}
	if peak == 0 {
		peak = 1
	}

	for c := 0; c < 3; c++ {
		ch := dst[c*plane : (c+1)*plane]
		for j := range ch {
			ch[j] = (ch[j]/peak - mean[c]) / std[c]
		}
	}
	return nil
}

// Postprocess min-max normalizes the first size x size plane of data into an
// 8-bit matte and scales it to w x h.
func Postprocess(data []float32, size, w, h int) *image.Gray {
	plane := data[:size*size]

	lo, hi := math32.Inf(1), math32.Inf(-1)
	for _, v := range plane {
		lo = math32.Min(lo, v)
		hi = math32.Max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	matte := image.NewGray(image.Rect(0, 0, size, size))
	for i, v := range plane {
		matte.Pix[i] = uint8(math32.Round((v - lo) / span * 255))
	}
	if w == size && h == size {
		return matte
	}
	return segment.ResizeMatte(matte, w, h)
}
