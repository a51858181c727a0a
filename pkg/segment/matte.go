package segment

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// ApplyMatte returns a copy of src whose alpha channel is replaced by matte.
// A matte of a different size is stretched to src with a Lanczos filter.
func ApplyMatte(src *image.NRGBA, matte *image.Gray) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if mb := matte.Bounds(); mb.Dx() != w || mb.Dy() != h || mb.Min != (image.Point{}) {
		matte = ResizeMatte(matte, w, h)
	}

	dst := imaging.Clone(src)
	for y := 0; y < h; y++ {
		row := y * dst.Stride
		mrow := y * matte.Stride
		for x := 0; x < w; x++ {
			dst.Pix[row+x*4+3] = matte.Pix[mrow+x]
		}
	}
	return dst
}

// ResizeMatte scales a matte to w x h using Lanczos resampling
func ResizeMatte(matte *image.Gray, w, h int) *image.Gray {
	scaled := resize.Resize(uint(w), uint(h), matte, resize.Lanczos3)
	if g, ok := scaled.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	out := image.NewGray(image.Rect(0, 0, w, h))
	sb := scaled.Bounds()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, _, _, _ := scaled.At(sb.Min.X+x, sb.Min.Y+y).RGBA()
			out.Pix[y*out.Stride+x] = uint8(r >> 8)
		}
	}
	return out
}
