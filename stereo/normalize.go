package stereo

import (
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/hyyh619/StereoVision/rimage"
)

// DefaultFilterDepth is the depth beyond which FilterDisparity drops a match.
const DefaultFilterDepth = 5000.0

// NormalizeDisparity converts a fixed point disparity map into an 8-bit grey image. Values are
// scaled so that numDisparities maps to 255 and clamped into [0, 255]; invalid cells become 0.
// Maps from the variational matcher are already in pixel units and are only clamped.
func NormalizeDisparity(disp *rimage.DisparityMap, alg Algorithm, numDisparities int) *rimage.Image {
	if !disp.HasData() {
		return rimage.NewImage(0, 0, 1)
	}
	out := rimage.NewImage(disp.Width(), disp.Height(), 1)
	pix := out.Pix()
	if alg == AlgorithmVAR || numDisparities <= 0 {
		for i, v := range disp.Data() {
			pix[i] = saturate(float64(v))
		}
		return out
	}
	factor := 255 / (float64(numDisparities) * rimage.DisparityScale)
	for i, v := range disp.Data() {
		pix[i] = saturate(math.Round(float64(v) * factor))
	}
	return out
}

func saturate(v float64) uint8 {
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}

// FilterDisparity returns a copy of disp in which every cell reprojecting further than maxDepth
// is marked invalid.
func FilterDisparity(disp *rimage.DisparityMap, q Reprojection, maxDepth float64) *rimage.DisparityMap {
	if !disp.HasData() {
		return disp
	}
	out := disp.Clone()
	var group errgroup.Group
	for y := 0; y < out.Height(); y++ {
		y := y
		group.Go(func() error {
			row := out.Row(y)
			for x, d := range row {
				if d == rimage.InvalidDisparity {
					continue
				}
				if z := q.Depth(x, y, d); z > maxDepth {
					row[x] = rimage.InvalidDisparity
				}
			}
			return nil
		})
	}
	//nolint:errcheck
	group.Wait()
	return out
}
