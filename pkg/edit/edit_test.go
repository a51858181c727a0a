package edit

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/background-remover/pkg/store"
)

func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x), uint8(y), 0, 255})
		}
	}
	return img
}

func TestCrop(t *testing.T) {
	src := createTestImage(20, 10)

	out, err := Crop(image.Rect(15, 8, 5, 2))(src)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 6), out.Bounds())
	assert.Equal(t, color.NRGBA{5, 2, 0, 255}, out.NRGBAAt(0, 0))
}

func TestCropClipsToBounds(t *testing.T) {
	out, err := Crop(image.Rect(-5, -5, 4, 100))(createTestImage(10, 10))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 10), out.Bounds())
}

func TestCropOutsideIsErrorAndStoreUnchanged(t *testing.T) {
	s := store.New()
	s.Load(createTestImage(10, 10))
	gen := s.Generation()

	assert.Error(t, s.ApplyEdit(Crop(image.Rect(20, 20, 30, 30))))
	assert.Error(t, s.ApplyEdit(Crop(image.Rect(3, 3, 3, 8))))
	assert.Equal(t, gen, s.Generation())
	assert.Equal(t, image.Rect(0, 0, 10, 10), s.Source().Bounds())
}

func TestRotate(t *testing.T) {
	src := createTestImage(20, 10)

	tests := []struct {
		degrees float64
		bounds  image.Rectangle
	}{
		{0, image.Rect(0, 0, 20, 10)},
		{90, image.Rect(0, 0, 10, 20)},
		{180, image.Rect(0, 0, 20, 10)},
		{-90, image.Rect(0, 0, 10, 20)},
		{450, image.Rect(0, 0, 10, 20)},
		{-450, image.Rect(0, 0, 10, 20)},
		{720, image.Rect(0, 0, 20, 10)},
	}
	for _, tt := range tests {
		out, err := Rotate(tt.degrees)(src)
		require.NoError(t, err)
		assert.Equal(t, tt.bounds, out.Bounds(), "rotate %v", tt.degrees)
	}

	out, err := Rotate(90)(src)
	require.NoError(t, err)
	assert.Equal(t, src.NRGBAAt(19, 0), out.NRGBAAt(0, 0), "counter-clockwise")
}

func TestRotateHugeAngle(t *testing.T) {
	out, err := Rotate(1e20)(createTestImage(20, 10))
	require.NoError(t, err)
	assert.False(t, out.Bounds().Empty())
}

func TestRotateRejectsNonFiniteAngles(t *testing.T) {
	for _, deg := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
		_, err := Rotate(deg)(createTestImage(4, 4))
		assert.Error(t, err, "rotate %v", deg)
	}

	s := store.New()
	s.Load(createTestImage(20, 10))
	gen := s.Generation()
	assert.Error(t, s.ApplyEdit(Rotate(math.NaN())))
	assert.Equal(t, gen, s.Generation())
	assert.Equal(t, 0, s.UndoDepth())
	assert.Equal(t, image.Rect(0, 0, 20, 10), s.Source().Bounds())
}

func TestNormalizeAngle(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{360, 0},
		{-90, 270},
		{-450, 270},
		{810, 90},
		{-360, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeAngle(tt.in), "normalize %v", tt.in)
	}
	got := normalizeAngle(1e20)
	assert.True(t, got >= 0 && got < 360)
}

func TestRotateArbitraryExpandsWithTransparentCorners(t *testing.T) {
	src := createTestImage(20, 20)
	out, err := Rotate(45)(src)
	require.NoError(t, err)

	assert.Greater(t, out.Bounds().Dx(), 20)
	assert.Greater(t, out.Bounds().Dy(), 20)
	assert.Equal(t, uint8(0), out.NRGBAAt(0, 0).A)
}

func TestFlips(t *testing.T) {
	src := createTestImage(4, 3)

	h, err := FlipHorizontal()(src)
	require.NoError(t, err)
	assert.Equal(t, src.NRGBAAt(3, 0), h.NRGBAAt(0, 0))

	v, err := FlipVertical()(src)
	require.NoError(t, err)
	assert.Equal(t, src.NRGBAAt(0, 2), v.NRGBAAt(0, 0))

	hh, err := FlipHorizontal()(h)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, hh.Pix)
}
