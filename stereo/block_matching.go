package stereo

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hyyh619/StereoVision/rimage"
)

// blockMatcher finds, for every left pixel, the disparity with the smallest sum of absolute
// differences over a square block of x-Sobel filtered grey values.
type blockMatcher struct {
	cfg BlockMatchingConfig
}

// minRowsPerBand keeps bands large enough that the column sum setup stays cheap.
const minRowsPerBand = 16

func (bm *blockMatcher) Algorithm() Algorithm {
	return AlgorithmBM
}

func (bm *blockMatcher) Compute(left, right *rimage.Image) (*rimage.DisparityMap, error) {
	if err := checkPair(left, right); err != nil {
		return nil, err
	}
	cfg := bm.cfg
	w, h := left.Width(), left.Height()
	disp := rimage.NewInvalidDisparityMap(w, h)

	roi := validDisparityROI(cfg.ROI1, cfg.ROI2, left.Size(), cfg.MinDisparity, cfg.NumDisparities, cfg.BlockSize)
	if roi.Empty() {
		return disp, nil
	}

	lf := xSobelPrefilter(left.Gray(), 0, cfg.PreFilterCap)
	rf := xSobelPrefilter(right.Gray(), 0, cfg.PreFilterCap)

	bands := runtime.GOMAXPROCS(0)
	rowsPerBand := max((roi.Dy()+bands-1)/bands, minRowsPerBand)
	var group errgroup.Group
	for y0 := roi.Min.Y; y0 < roi.Max.Y; y0 += rowsPerBand {
		y0 := y0
		y1 := min(y0+rowsPerBand, roi.Max.Y)
		group.Go(func() error {
			bm.matchRows(lf, rf, w, disp, roi.Min.X, roi.Max.X, y0, y1)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	filterSpeckles(disp, rimage.InvalidDisparity, cfg.SpeckleWindowSize, cfg.SpeckleRange)
	return disp, nil
}

// matchRows fills rows [y0, y1) between columns [x0, x1). Every block touched lies inside the
// image, which the valid disparity rectangle guarantees.
func (bm *blockMatcher) matchRows(lf, rf []uint8, w int, disp *rimage.DisparityMap, x0, x1, y0, y1 int) {
	cfg := bm.cfg
	nd := cfg.NumDisparities
	half := cfg.BlockSize / 2
	flat := int32(cfg.PreFilterCap)

	// Per column sums over the current block rows, one entry per disparity.
	cs0, cs1 := x0-half, x1+half
	cols := cs1 - cs0
	colSAD := make([]int32, cols*nd)
	colTex := make([]int32, cols)
	addRow := func(y int, sign int32) {
		lrow, rrow := lf[y*w:(y+1)*w], rf[y*w:(y+1)*w]
		for x := cs0; x < cs1; x++ {
			lv := int32(lrow[x])
			colTex[x-cs0] += sign * abs32(lv-flat)
			sums := colSAD[(x-cs0)*nd : (x-cs0+1)*nd]
			for d := range sums {
				sums[d] += sign * abs32(lv-int32(rrow[x-d-cfg.MinDisparity]))
			}
		}
	}
	for y := y0 - half; y <= y0+half; y++ {
		addRow(y, 1)
	}

	sad := make([]int32, nd)
	disp2 := make([]int, w)
	disp2cost := make([]int32, w)
	for y := y0; y < y1; y++ {
		for x := range disp2 {
			disp2[x] = cfg.MinDisparity - 1
			disp2cost[x] = math.MaxInt32
		}
		row := disp.Row(y)

		// Window sums for the first column, then slide right.
		for d := range sad {
			sad[d] = 0
		}
		var tex int32
		for c := 0; c < cfg.BlockSize; c++ {
			tex += colTex[c]
			for d := range sad {
				sad[d] += colSAD[c*nd+d]
			}
		}
		for x := x0; x < x1; x++ {
			if x > x0 {
				in, out := x+half-cs0, x-half-1-cs0
				tex += colTex[in] - colTex[out]
				for d := range sad {
					sad[d] += colSAD[in*nd+d] - colSAD[out*nd+d]
				}
			}
			if tex < int32(cfg.TextureThreshold) {
				continue
			}
			best, cost := bm.bestDisparity(sad)
			if best < 0 {
				continue
			}
			if xr := x - best - cfg.MinDisparity; disp2cost[xr] > cost {
				disp2cost[xr] = cost
				disp2[xr] = best + cfg.MinDisparity
			}
			row[x] = subpixelBM(sad, best, cfg.MinDisparity)
		}
		leftRightCheck(row, disp2, cfg.MinDisparity, cfg.Disp12MaxDiff)

		if y+1 < y1 {
			addRow(y+half+1, 1)
			addRow(y-half, -1)
		}
	}
}

// bestDisparity returns the index of the lowest cost, or -1 when another disparity more than one
// step away comes within the uniqueness margin.
func (bm *blockMatcher) bestDisparity(sad []int32) (int, int32) {
	best, cost := 0, sad[0]
	for d, v := range sad {
		if v < cost {
			best, cost = d, v
		}
	}
	if ratio := int32(bm.cfg.UniquenessRatio); ratio > 0 {
		limit := cost + cost*ratio/100
		for d, v := range sad {
			if (d < best-1 || d > best+1) && v <= limit {
				return -1, cost
			}
		}
	}
	return best, cost
}

// subpixelBM refines the integer match with the ratio of the neighbouring costs. Costs beyond the
// ends of the range are mirrored.
func subpixelBM(sad []int32, best, minDisp int) int16 {
	nd := len(sad)
	at := func(d int) int32 {
		switch {
		case d < 0:
			return sad[1]
		case d >= nd:
			return sad[nd-2]
		default:
			return sad[d]
		}
	}
	lo, hi := at(best-1), at(best+1)
	den := lo + hi - 2*sad[best] + abs32(lo-hi)
	var corr int32
	if den != 0 {
		corr = (lo - hi) * 256 / den
	}
	return int16((int32(best+minDisp)*256 + corr + 15) >> 4)
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
