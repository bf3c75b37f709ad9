// Package stereo computes disparity maps from rectified image pairs with block matching or
// semi-global matching, and turns them into depth.
package stereo

import (
	"github.com/pkg/errors"

	"github.com/hyyh619/StereoVision/rimage"
)

// A Matcher computes the disparity of a rectified image pair. Results are fixed point values in
// units of 1/16 pixel with rimage.InvalidDisparity for unmatched cells.
type Matcher interface {
	Algorithm() Algorithm
	Compute(left, right *rimage.Image) (*rimage.DisparityMap, error)
}

// NewMatcher builds the matcher selected by p.Algorithm.
func NewMatcher(p Params) (Matcher, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	switch p.Algorithm {
	case AlgorithmBM:
		return &blockMatcher{cfg: p.BlockMatchingConfig()}, nil
	case AlgorithmSGBM, AlgorithmHH:
		return &semiGlobalMatcher{cfg: p.SGBMConfig(), alg: p.Algorithm}, nil
	case AlgorithmVAR:
		return nil, errors.Wrap(ErrUnsupportedAlgorithm, "the variational matcher is not available")
	default:
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "algorithm %v", p.Algorithm)
	}
}

// ComputeDisparity matches a rectified pair with the algorithm selected by p. Pixels without a
// reliable match hold rimage.InvalidDisparity.
func ComputeDisparity(left, right *rimage.Image, p Params) (*rimage.DisparityMap, error) {
	m, err := NewMatcher(p)
	if err != nil {
		return nil, err
	}
	return m.Compute(left, right)
}

func checkPair(left, right *rimage.Image) error {
	if left.Empty() || right.Empty() {
		return errors.Wrap(ErrEmptyImage, "both views are required")
	}
	if left.Size() != right.Size() {
		return errors.Wrapf(ErrInvalidParameters, "view sizes differ: %v and %v", left.Size(), right.Size())
	}
	if left.Channels() != right.Channels() {
		return errors.Wrapf(ErrInvalidParameters, "channel counts differ: %d and %d", left.Channels(), right.Channels())
	}
	return nil
}

// leftRightCheck invalidates cells whose match, seen from the right view, points back to a
// disparity more than maxDiff pixels away. disp2 holds the best integer disparity found for
// every right view column, or minDisp-1 when that column was never matched.
func leftRightCheck(row []int16, disp2 []int, minDisp, maxDiff int) {
	if maxDiff < 0 {
		return
	}
	w := len(row)
	for x, d1 := range row {
		if d1 == rimage.InvalidDisparity {
			continue
		}
		dLo := int(d1) >> 4
		dHi := (int(d1) + rimage.DisparityScale - 1) >> 4
		xLo, xHi := x-dLo, x-dHi
		if xLo >= 0 && xLo < w && disp2[xLo] >= minDisp && abs(disp2[xLo]-dLo) > maxDiff &&
			xHi >= 0 && xHi < w && disp2[xHi] >= minDisp && abs(disp2[xHi]-dHi) > maxDiff {
			row[x] = rimage.InvalidDisparity
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
