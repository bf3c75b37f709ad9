package rimage

import (
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ScaledSize returns the size an image of w x h takes after Resize by scale.
func ScaledSize(w, h int, scale float64) (int, int) {
	return int(math.Round(float64(w) * scale)), int(math.Round(float64(h) * scale))
}

// Resize scales img by scale. Shrinking averages the covered area and enlarging uses a cubic
// kernel. A scale of exactly 1 returns a copy.
func Resize(img *Image, scale float64) (*Image, error) {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, errors.Errorf("invalid scale %v", scale)
	}
	if scale == 1 {
		return img.Clone(), nil
	}
	w, h := ScaledSize(img.width, img.height, scale)
	if w < 1 || h < 1 {
		return nil, errors.Errorf("scale %v turns %dx%d into an empty image", scale, img.width, img.height)
	}
	filter := imaging.CatmullRom
	if scale < 1 {
		filter = imaging.Box
	}
	resized := imaging.Resize(img.ToStdImage(), w, h, filter)
	return NewImageFromStdImage(resized, img.channels == 1), nil
}
