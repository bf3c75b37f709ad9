package rimage

import (
	"math"

	"github.com/pkg/errors"
)

// Remap samples img at (mapX[k], mapY[k]) for every output pixel k with bilinear interpolation.
// Samples that fall outside img read as 0. Both tables are row-major and sized like img.
func Remap(img *Image, mapX, mapY []float32) (*Image, error) {
	n := img.width * img.height
	if len(mapX) != n || len(mapY) != n {
		return nil, errors.Errorf("remap tables hold %d/%d entries, image needs %d", len(mapX), len(mapY), n)
	}
	out := NewImage(img.width, img.height, img.channels)
	ch := img.channels

	sample := func(x, y, c int) float64 {
		if !img.In(x, y) {
			return 0
		}
		return float64(img.pix[img.offset(x, y)+c])
	}

	for y := 0; y < img.height; y++ {
		for x := 0; x < img.width; x++ {
			k := y*img.width + x
			sx, sy := float64(mapX[k]), float64(mapY[k])
			if math.IsNaN(sx) || math.IsNaN(sy) {
				continue
			}
			x0f, y0f := math.Floor(sx), math.Floor(sy)
			x0, y0 := int(x0f), int(y0f)
			if x0 < -1 || y0 < -1 || x0 >= img.width || y0 >= img.height {
				continue
			}
			ax, ay := sx-x0f, sy-y0f
			dst := k * ch
			for c := 0; c < ch; c++ {
				top := sample(x0, y0, c)*(1-ax) + sample(x0+1, y0, c)*ax
				bottom := sample(x0, y0+1, c)*(1-ax) + sample(x0+1, y0+1, c)*ax
				out.pix[dst+c] = saturate8(top*(1-ay) + bottom*ay)
			}
		}
	}
	return out, nil
}

func saturate8(v float64) uint8 {
	v = math.Round(v)
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}
