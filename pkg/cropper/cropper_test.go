package cropper

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestImage creates a transparent image with an opaque red block
func createTestImage(width, height int, block image.Rectangle) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := block.Min.Y; y < block.Max.Y; y++ {
		for x := block.Min.X; x < block.Max.X; x++ {
			img.SetNRGBA(x, y, color.NRGBA{255, 0, 0, 255})
		}
	}
	return img
}

func noPadding() *SmartCropper {
	return NewWithConfig(CropConfig{AlphaThreshold: 8})
}

func TestSubjectBounds(t *testing.T) {
	img := createTestImage(40, 40, image.Rect(10, 10, 20, 30))
	r, ok := noPadding().SubjectBounds(img)
	require.True(t, ok)
	assert.Equal(t, image.Rect(10, 10, 20, 30), r)

	_, ok = noPadding().SubjectBounds(image.NewNRGBA(image.Rect(0, 0, 5, 5)))
	assert.False(t, ok)
}

func TestSubjectBoundsIgnoresFaintPixels(t *testing.T) {
	img := createTestImage(40, 40, image.Rect(10, 10, 20, 30))
	img.SetNRGBA(0, 0, color.NRGBA{255, 255, 255, 5})

	r, ok := noPadding().SubjectBounds(img)
	require.True(t, ok)
	assert.Equal(t, image.Rect(10, 10, 20, 30), r)
}

func TestTrim(t *testing.T) {
	img := createTestImage(40, 40, image.Rect(10, 10, 20, 30))

	out, err := noPadding().Trim(img)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 20), out.Bounds())
	assert.Equal(t, uint8(255), out.NRGBAAt(0, 0).A)

	out, err = New().Trim(img)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 12, 22), out.Bounds(), "one pixel of padding per side")
}

func TestTrimPaddingClippedToImage(t *testing.T) {
	img := createTestImage(20, 20, image.Rect(0, 0, 20, 20))
	out, err := New().Trim(img)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 20), out.Bounds())
}

func TestTrimNoSubject(t *testing.T) {
	_, err := New().Trim(image.NewNRGBA(image.Rect(0, 0, 5, 5)))
	assert.ErrorIs(t, err, ErrNoSubject)
}

func TestCropToAspectRatioCentersSubject(t *testing.T) {
	img := createTestImage(40, 40, image.Rect(10, 10, 20, 30))

	out, err := noPadding().CropToAspectRatio(img, Square)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 20), out.Bounds())
	assert.Equal(t, uint8(0), out.NRGBAAt(0, 0).A)
	assert.Equal(t, uint8(255), out.NRGBAAt(5, 0).A)
	assert.Equal(t, uint8(255), out.NRGBAAt(14, 19).A)
	assert.Equal(t, uint8(0), out.NRGBAAt(15, 19).A)
}

func TestCropToAspectRatioPadsBeyondImage(t *testing.T) {
	img := createTestImage(10, 20, image.Rect(0, 0, 10, 20))

	out, err := noPadding().CropToAspectRatio(img, Square)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 20), out.Bounds())
	assert.Equal(t, uint8(0), out.NRGBAAt(0, 10).A, "outside the source is transparent")
	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, out.NRGBAAt(5, 10))
}

func TestCropToAspectRatioWide(t *testing.T) {
	img := createTestImage(40, 40, image.Rect(10, 10, 20, 30))

	out, err := noPadding().CropToAspectRatio(img, AspectRatio{Width: 2, Height: 1})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 20), out.Bounds())
}

func TestCropToRatioInvalid(t *testing.T) {
	img := createTestImage(10, 10, image.Rect(0, 0, 5, 5))
	_, err := New().CropToRatio(img, 0)
	assert.Error(t, err)
	_, err = New().CropToAspectRatio(img, AspectRatio{})
	assert.Error(t, err)
}

func TestFrame(t *testing.T) {
	img := createTestImage(40, 40, image.Rect(10, 10, 20, 30))
	c := noPadding()

	out, err := c.Frame(img, Framing{})
	require.NoError(t, err)
	assert.Same(t, img, out)

	out, err = c.Frame(img, Framing{Trim: true})
	require.NoError(t, err)
	assert.Equal(t, 10, out.Bounds().Dx())

	out, err = c.Frame(img, Framing{Trim: true, Ratio: Square})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 20), out.Bounds())
}

func TestParseAspectRatio(t *testing.T) {
	tests := []struct {
		in      string
		want    AspectRatio
		wantErr bool
	}{
		{"square", Square, false},
		{"Story", Story, false},
		{"16:9", AspectRatio{16, 9, "16:9"}, false},
		{"0:1", AspectRatio{}, true},
		{"wide", AspectRatio{}, true},
		{"3x2", AspectRatio{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAspectRatio(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
