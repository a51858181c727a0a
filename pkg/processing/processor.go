package processing

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/background-remover/pkg/render"
	"github.com/menta2k/background-remover/pkg/types"
)

// SaveOptions controls how an image is encoded
type SaveOptions struct {
	Format     types.Format
	Quality    int
	Lossless   bool
	Background types.RGB
}

// Processor handles image decoding and encoding
type Processor struct{}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{}
}

// LoadImage loads an image from a file path with WebP support.
// Failures are reported as *types.LoadError.
func (p *Processor) LoadImage(path string) (image.Image, error) {
	img, err := p.loadImage(path)
	if err != nil {
		return nil, &types.LoadError{Path: path, Err: err}
	}
	return img, nil
}

func (p *Processor) loadImage(path string) (image.Image, error) {
	// Try imaging.Open (registered decoders, EXIF orientation applied)
	if img, err := imaging.Open(path, imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return p.decodeImageFromBytes(data)
}

// DecodeImage decodes an image from a reader. Failures are reported as *types.LoadError.
func (p *Processor) DecodeImage(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &types.LoadError{Err: errors.Wrap(err, "read image data")}
	}
	img, err := p.decodeImageFromBytes(data)
	if err != nil {
		return nil, &types.LoadError{Err: err}
	}
	return img, nil
}

// decodeImageFromBytes decodes an image from byte data with WebP support
func (p *Processor) decodeImageFromBytes(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, errors.New("image: unknown or unsupported format")
}

// PrepareImageForModel converts an image to base64 for sending to vision models
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default: // jpg
		if err := jpeg.Encode(&buf, render.Flatten(img, color.NRGBA{255, 255, 255, 255}), &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Encode writes img to w in the requested format. JPEG and BMP output is
// flattened onto opts.Background since neither keeps alpha.
func (p *Processor) Encode(w io.Writer, img image.Image, opts SaveOptions) error {
	quality := opts.Quality
	if quality < 1 || quality > 100 {
		quality = 90
	}

	switch opts.Format {
	case types.FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(w, img)
	case types.FormatJPEG:
		return imaging.Encode(w, render.Flatten(img, opts.Background.NRGBA()), imaging.JPEG, imaging.JPEGQuality(quality))
	case types.FormatWEBP:
		return webp.Encode(w, img, &webp.Options{Lossless: opts.Lossless, Quality: float32(quality)})
	case types.FormatBMP:
		return imaging.Encode(w, render.Flatten(img, opts.Background.NRGBA()), imaging.BMP)
	case types.FormatTIFF:
		return imaging.Encode(w, img, imaging.TIFF)
	case types.FormatGIF:
		return imaging.Encode(w, img, imaging.GIF, imaging.GIFNumColors(256))
	default:
		return errors.Errorf("unsupported output format: %q", opts.Format)
	}
}

// SaveImage saves an image to a file with the specified format and quality.
// Failures are reported as *types.SaveError; a partially written file is removed.
func (p *Processor) SaveImage(img image.Image, path string, opts SaveOptions) error {
	if opts.Format == "" {
		f, err := types.ParseFormat(filepath.Ext(path))
		if err != nil {
			return &types.SaveError{Path: path, Err: err}
		}
		opts.Format = f
	}

	f, err := os.Create(path)
	if err != nil {
		return &types.SaveError{Path: path, Err: err}
	}

	if err := p.Encode(f, img, opts); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return &types.SaveError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &types.SaveError{Path: path, Err: err}
	}
	return nil
}

// GetImageInfo returns basic information about an image
func (p *Processor) GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	info := ImageInfo{
		Width:    width,
		Height:   height,
		HasAlpha: hasUsefulAlpha(img),
	}
	if height > 0 {
		info.AspectRatio = float64(width) / float64(height)
	}
	return info
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int
	Height      int
	AspectRatio float64
	HasAlpha    bool
}

// hasUsefulAlpha reports whether any pixel is not fully opaque
func hasUsefulAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return false
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}
