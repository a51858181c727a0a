package segment

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/background-remover/pkg/types"
)

func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 10), uint8(y * 10), 200, 255})
		}
	}
	return img
}

// leftHalf keeps the left half of the image opaque
var leftHalf = RemoverFunc(func(ctx context.Context, img *image.NRGBA) (image.Image, error) {
	b := img.Bounds()
	matte := image.NewGray(b)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx()/2; x++ {
			matte.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return ApplyMatte(img, matte), nil
})

func TestRemoveBackground(t *testing.T) {
	src := createTestImage(10, 4)
	p := NewPipeline(leftHalf, WithName("half"))

	out, err := p.RemoveBackground(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, src.Bounds(), out.Bounds())

	assert.Equal(t, src.NRGBAAt(2, 1), out.NRGBAAt(2, 1))
	assert.Equal(t, uint8(0), out.NRGBAAt(7, 1).A)
	assert.Equal(t, uint8(255), src.NRGBAAt(7, 1).A, "input must not be mutated")
	assert.Equal(t, "half", p.Name())
}

func TestRemoveBackgroundConvertsRGB(t *testing.T) {
	rgb := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range rgb.Pix {
		rgb.Pix[i] = 255
	}
	var got *image.NRGBA
	p := NewPipeline(RemoverFunc(func(ctx context.Context, img *image.NRGBA) (image.Image, error) {
		got = img
		return img, nil
	}))

	_, err := p.RemoveBackground(context.Background(), rgb)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint8(255), got.NRGBAAt(3, 3).A)
}

func TestRemoveBackgroundFailures(t *testing.T) {
	boom := errors.New("model exploded")
	tests := []struct {
		name    string
		remover Remover
		input   image.Image
		cause   error
	}{
		{
			name:    "remover error",
			remover: RemoverFunc(func(context.Context, *image.NRGBA) (image.Image, error) { return nil, boom }),
			input:   createTestImage(4, 4),
			cause:   boom,
		},
		{
			name:    "panic",
			remover: RemoverFunc(func(context.Context, *image.NRGBA) (image.Image, error) { panic("tensor shape") }),
			input:   createTestImage(4, 4),
		},
		{
			name:    "nil result",
			remover: RemoverFunc(func(context.Context, *image.NRGBA) (image.Image, error) { return nil, nil }),
			input:   createTestImage(4, 4),
		},
		{
			name: "wrong size",
			remover: RemoverFunc(func(context.Context, *image.NRGBA) (image.Image, error) {
				return image.NewNRGBA(image.Rect(0, 0, 2, 2)), nil
			}),
			input: createTestImage(4, 4),
		},
		{
			name:    "nil input",
			remover: leftHalf,
			input:   nil,
			cause:   types.ErrNoImage,
		},
		{
			name:    "empty input",
			remover: leftHalf,
			input:   image.NewNRGBA(image.Rect(0, 0, 0, 0)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NewPipeline(tt.remover).RemoveBackground(context.Background(), tt.input)
			require.Error(t, err)
			assert.Nil(t, out)

			var procErr *types.ProcessingError
			assert.True(t, errors.As(err, &procErr))
			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}
		})
	}
}

func TestApplyMatte(t *testing.T) {
	src := createTestImage(4, 2)
	matte := image.NewGray(image.Rect(0, 0, 4, 2))
	matte.SetGray(1, 1, color.Gray{Y: 77})

	out := ApplyMatte(src, matte)
	assert.Equal(t, uint8(77), out.NRGBAAt(1, 1).A)
	assert.Equal(t, uint8(0), out.NRGBAAt(0, 0).A)
	assert.Equal(t, src.NRGBAAt(1, 1).R, out.NRGBAAt(1, 1).R)
	assert.Equal(t, uint8(255), src.NRGBAAt(1, 1).A)
}

func TestApplyMatteResizes(t *testing.T) {
	src := createTestImage(8, 8)
	matte := image.NewGray(image.Rect(0, 0, 2, 2))
	for i := range matte.Pix {
		matte.Pix[i] = 255
	}

	out := ApplyMatte(src, matte)
	assert.Equal(t, src.Bounds(), out.Bounds())
	assert.Equal(t, uint8(255), out.NRGBAAt(4, 4).A)
}
