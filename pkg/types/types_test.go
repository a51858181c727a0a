package types

import (
	"fmt"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"png", FormatPNG},
		{"JPG", FormatJPEG},
		{".jpeg", FormatJPEG},
		{"webp", FormatWEBP},
		{"tif", FormatTIFF},
		{"bmp", FormatBMP},
		{"gif", FormatGIF},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseFormat("psd")
	assert.Error(t, err)
}

func TestFormatExtension(t *testing.T) {
	assert.Equal(t, "jpg", FormatJPEG.Extension())
	assert.Equal(t, "png", FormatPNG.Extension())
	assert.True(t, FormatPNG.SupportsAlpha())
	assert.False(t, FormatJPEG.SupportsAlpha())
	assert.False(t, FormatBMP.SupportsAlpha())
}

func TestRGB(t *testing.T) {
	c, err := ParseHex("#F0f0F0")
	require.NoError(t, err)
	assert.Equal(t, RGB{240, 240, 240}, c)
	assert.Equal(t, "#f0f0f0", c.Hex())
	assert.Equal(t, color.NRGBA{240, 240, 240, 255}, c.NRGBA())

	_, err = ParseHex("#fff")
	assert.Error(t, err)
	_, err = ParseHex("zzzzzz")
	assert.Error(t, err)

	assert.Equal(t, RGB{1, 2, 3}, RGBFromColor(color.NRGBA{1, 2, 3, 10}))
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("disk full")

	var saveErr *SaveError
	err := fmt.Errorf("export: %w", &SaveError{Path: "/out/a.png", Err: cause})
	require.True(t, errors.As(err, &saveErr))
	assert.Equal(t, "/out/a.png", saveErr.Path)
	assert.ErrorIs(t, err, cause)

	assert.Contains(t, (&LoadError{Path: "x.png", Err: cause}).Error(), "x.png")
	assert.Contains(t, (&ProcessingError{Backend: "onnx", Err: cause}).Error(), "onnx")
}

func TestBatchError(t *testing.T) {
	corrupt := &LoadError{Path: "b.png", Err: errors.New("bad header")}
	err := &BatchError{Total: 3, Failures: []BatchFailure{{Path: "b.png", Err: corrupt}}}

	assert.Contains(t, err.Error(), "1 of 3 files failed")
	assert.Contains(t, err.Error(), "b.png")

	var loadErr *LoadError
	assert.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "b.png", loadErr.Path)
}
