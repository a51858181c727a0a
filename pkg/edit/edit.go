// Package edit provides the destructive source edits offered to the user.
// Each constructor returns a store.Transform.
package edit

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/menta2k/background-remover/pkg/store"
)

// Crop keeps the part of the image inside rect. The corners may be given in
// any order; the rectangle is clipped to the image bounds and an empty
// intersection is an error.
func Crop(rect image.Rectangle) store.Transform {
	return func(src *image.NRGBA) (*image.NRGBA, error) {
		r := rect.Canon().Intersect(src.Bounds())
		if r.Empty() {
			return nil, errors.Errorf("crop rectangle %v is outside the image %v", rect, src.Bounds())
		}
		return imaging.Crop(src, r), nil
	}
}

// Rotate rotates the image counter-clockwise by degrees, expanding the
// canvas to fit. Uncovered corners become transparent. NaN and infinite
// angles are rejected.
func Rotate(degrees float64) store.Transform {
	return func(src *image.NRGBA) (*image.NRGBA, error) {
		if math.IsNaN(degrees) || math.IsInf(degrees, 0) {
			return nil, errors.Errorf("invalid rotation angle %v", degrees)
		}
		switch norm := normalizeAngle(degrees); norm {
		case 0:
			return imaging.Clone(src), nil
		case 90:
			return imaging.Rotate90(src), nil
		case 180:
			return imaging.Rotate180(src), nil
		case 270:
			return imaging.Rotate270(src), nil
		default:
			return imaging.Rotate(src, norm, color.Transparent), nil
		}
	}
}

// FlipHorizontal mirrors the image left to right
func FlipHorizontal() store.Transform {
	return func(src *image.NRGBA) (*image.NRGBA, error) {
		return imaging.FlipH(src), nil
	}
}

// FlipVertical mirrors the image top to bottom
func FlipVertical() store.Transform {
	return func(src *image.NRGBA) (*image.NRGBA, error) {
		return imaging.FlipV(src), nil
	}
}

func normalizeAngle(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		d = 0
	}
	return d
}
