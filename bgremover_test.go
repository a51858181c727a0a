package bgremover

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/background-remover/pkg/cropper"
	"github.com/menta2k/background-remover/pkg/detection"
	"github.com/menta2k/background-remover/pkg/segment"
	"github.com/menta2k/background-remover/pkg/types"
)

// createTestImage creates a white square on a grey background
func createTestImage(width, height int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.NRGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.NRGBA{64, 64, 64, 255})
			}
		}
	}
	return img
}

// keepBright keeps pixels brighter than mid grey
var keepBright = segment.RemoverFunc(func(ctx context.Context, img *image.NRGBA) (image.Image, error) {
	matte := image.NewGray(img.Bounds())
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] > 128 {
			matte.Pix[i/4] = 255
		}
	}
	return segment.ApplyMatte(img, matte), nil
})

func writeTestPNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, createTestImage(30, 30)))
	require.NoError(t, f.Close())
}

func newTestRemover() *Remover {
	return NewWithPipeline(segment.NewPipeline(keepBright), zerolog.Nop())
}

func TestRemoveBackground(t *testing.T) {
	res, err := newTestRemover().RemoveBackground(context.Background(), createTestImage(30, 30))
	require.NoError(t, err)

	assert.Equal(t, uint8(0), res.NRGBAAt(0, 0).A)
	assert.Equal(t, uint8(255), res.NRGBAAt(15, 15).A)
}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "photo.png")
	writeTestPNG(t, in)
	out := filepath.Join(dir, "out")

	r := newTestRemover()
	path, err := r.ProcessFile(context.Background(), in, out, PNG())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "photo_nobg.png"), path)
	assert.FileExists(t, path)

	path, err = r.ProcessFile(context.Background(), in, out, JPEG(80, types.RGB{0, 0, 255}))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "photo_nobg.jpg"), path)

	loaded, err := r.LoadImage(path)
	require.NoError(t, err)
	_, _, b, _ := loaded.At(0, 0).RGBA()
	assert.Greater(t, b>>8, uint32(200))
}

func TestProcessFileTrim(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "photo.png")
	writeTestPNG(t, in)

	r := newTestRemover()
	r.SetFraming(cropper.Framing{Trim: true})
	path, err := r.ProcessFile(context.Background(), in, dir, PNG())
	require.NoError(t, err)

	img, err := r.LoadImage(path)
	require.NoError(t, err)
	assert.Less(t, img.Bounds().Dx(), 30)
}

func TestSaliencyBackend(t *testing.T) {
	s := DefaultSettings()
	s.Backend = BackendSaliency
	r, err := New(s, zerolog.Nop())
	require.NoError(t, err)
	defer r.Close()

	res, err := r.RemoveBackground(context.Background(), createTestImage(30, 30))
	require.NoError(t, err)
	assert.Equal(t, uint8(0), res.NRGBAAt(1, 1).A)
	assert.Greater(t, res.NRGBAAt(15, 15).A, uint8(250))
	assert.Equal(t, "saliency", r.Pipeline().Name())
}

func TestProcessFileMissingInput(t *testing.T) {
	_, err := newTestRemover().ProcessFile(context.Background(), "nope.png", t.TempDir(), PNG())

	var loadErr *types.LoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestProcessDir(t *testing.T) {
	dir := t.TempDir()
	writeTestPNG(t, filepath.Join(dir, "a.png"))
	writeTestPNG(t, filepath.Join(dir, "b.png"))
	writeTestPNG(t, filepath.Join(dir, "old_nobg.png"))

	sum, err := newTestRemover().ProcessDir(context.Background(), dir, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 2, sum.Succeeded)
	assert.NoError(t, sum.Err())
}

func TestNewBackend(t *testing.T) {
	s := DefaultSettings()
	s.Backend = BackendOllama
	r, closer, err := NewBackend(s, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, closer)
	assert.IsType(t, &detection.BoxRemover{}, r)

	s.Backend = BackendLlamaCpp
	s.ModelURL = "http://localhost:8080"
	r, _, err = NewBackend(s, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &detection.BoxRemover{}, r)
}

func TestNewBackendErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Settings)
	}{
		{"unknown backend", func(s *Settings) { s.Backend = "magic" }},
		{"bad url", func(s *Settings) { s.Backend = BackendOllama; s.ModelURL = "localhost" }},
		{"missing model", func(s *Settings) { s.ModelPath = "/does/not/exist.onnx" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.modify(&s)
			_, err := New(s, zerolog.Nop())
			assert.Error(t, err)
		})
	}
}

func TestCloseWithoutNativeBackend(t *testing.T) {
	assert.NoError(t, newTestRemover().Close())
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, Version, GetVersion())
}
