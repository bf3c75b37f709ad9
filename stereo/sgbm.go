package stereo

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hyyh619/StereoVision/rimage"
)

// semiGlobalMatcher aggregates Birchfield-Tomasi matching costs along several 1D paths with a
// small penalty P1 for disparity steps of one and a large penalty P2 for larger jumps.
type semiGlobalMatcher struct {
	cfg SGBMConfig
	alg Algorithm
}

// rawCostShift weights the intensity term against the gradient term.
const rawCostShift = 2

type pathDir struct{ dx, dy int }

var (
	singlePassPaths = []pathDir{{1, 0}, {-1, 0}, {0, 1}, {1, 1}, {-1, 1}}
	fullPaths       = append(append([]pathDir(nil), singlePassPaths...), pathDir{0, -1}, pathDir{1, -1}, pathDir{-1, -1})
)

func (sg *semiGlobalMatcher) Algorithm() Algorithm {
	return sg.alg
}

func (sg *semiGlobalMatcher) Compute(left, right *rimage.Image) (*rimage.DisparityMap, error) {
	if err := checkPair(left, right); err != nil {
		return nil, err
	}
	cfg := sg.cfg
	w, h := left.Width(), left.Height()
	disp := rimage.NewInvalidDisparityMap(w, h)

	// Columns left of minX can not see every disparity in the right view.
	minX := max(cfg.MinDisparity+cfg.NumDisparities, 0)
	if minX >= w {
		return disp, nil
	}
	layout := costLayout{width: w - minX, height: h, nd: cfg.NumDisparities, minX: minX}

	// The scratch volume holds the horizontal box sums, then the path totals.
	cost := sg.pixelCosts(left, right, layout)
	scratch := make([]int32, len(cost))
	boxAggregate(cost, scratch, layout, cfg.BlockSize/2)

	paths := singlePassPaths
	if cfg.FullDP {
		paths = fullPaths
	}
	total := scratch
	clear(total)
	for _, dir := range paths {
		aggregatePath(cost, total, layout, dir, int32(cfg.P1), int32(cfg.P2))
	}

	for y := 0; y < h; y++ {
		sg.selectRow(total[y*layout.width*layout.nd:(y+1)*layout.width*layout.nd], disp.Row(y), layout)
	}
	filterSpeckles(disp, rimage.InvalidDisparity, cfg.SpeckleWindowSize, rimage.DisparityScale*cfg.SpeckleRange)
	return disp, nil
}

// costLayout describes a cost volume indexed [y][x-minX][d].
type costLayout struct {
	width, height, nd, minX int
}

func (cl costLayout) at(x, y int) int {
	return (y*cl.width + x) * cl.nd
}

// pixelCosts sums, over all channels, the sampling insensitive difference of the x-Sobel
// responses and a quarter of the difference of the raw values. Rows are filled in parallel bands.
func (sg *semiGlobalMatcher) pixelCosts(left, right *rimage.Image, cl costLayout) []int32 {
	cost := make([]int32, cl.width*cl.height*cl.nd)
	cn := left.Channels()
	w := left.Width()

	type planes struct{ lf, rf, lraw, rraw []uint8 }
	chans := make([]planes, cn)
	for c := range chans {
		chans[c] = planes{
			lf:   xSobelPrefilter(left, c, sg.cfg.PreFilterCap),
			rf:   xSobelPrefilter(right, c, sg.cfg.PreFilterCap),
			lraw: channelPlane(left, c),
			rraw: channelPlane(right, c),
		}
	}

	bands := runtime.GOMAXPROCS(0)
	rowsPerBand := max((cl.height+bands-1)/bands, minRowsPerBand)
	var group errgroup.Group
	for y0 := 0; y0 < cl.height; y0 += rowsPerBand {
		y0 := y0
		y1 := min(y0+rowsPerBand, cl.height)
		group.Go(func() error {
			for y := y0; y < y1; y++ {
				for _, p := range chans {
					birchfieldTomasi(p.lf[y*w:(y+1)*w], p.rf[y*w:(y+1)*w], cost, cl, y, sg.cfg.MinDisparity, 0)
					birchfieldTomasi(p.lraw[y*w:(y+1)*w], p.rraw[y*w:(y+1)*w], cost, cl, y, sg.cfg.MinDisparity, rawCostShift)
				}
			}
			return nil
		})
	}
	//nolint:errcheck
	group.Wait()
	return cost
}

func channelPlane(img *rimage.Image, c int) []uint8 {
	cn := img.Channels()
	if cn == 1 {
		return img.Pix()
	}
	pix := img.Pix()
	out := make([]uint8, img.Width()*img.Height())
	for i := range out {
		out[i] = pix[i*cn+c]
	}
	return out
}

// birchfieldTomasi adds the dissimilarity of row y to dst. Each sample is compared against
// the range spanned by the half way points to its neighbours in the other view.
func birchfieldTomasi(lrow, rrow []uint8, dst []int32, cl costLayout, y, minDisp int, shift uint) {
	w := len(lrow)
	span := func(row []uint8, x int) (int32, int32, int32) {
		v := int32(row[x])
		lo, hi := v, v
		if x > 0 {
			n := (v + int32(row[x-1])) / 2
			lo, hi = min(lo, n), max(hi, n)
		}
		if x < w-1 {
			n := (v + int32(row[x+1])) / 2
			lo, hi = min(lo, n), max(hi, n)
		}
		return v, lo, hi
	}
	for x1 := 0; x1 < cl.width; x1++ {
		x := x1 + cl.minX
		u, u0, u1 := span(lrow, x)
		out := dst[cl.at(x1, y) : cl.at(x1, y)+cl.nd]
		for d := range out {
			v, v0, v1 := span(rrow, x-d-minDisp)
			c0 := max(0, u-v1, v0-u)
			c1 := max(0, v-u1, u0-v)
			out[d] += min(c0, c1) >> shift
		}
	}
}

// boxAggregate replaces cost with its sums over a (2*half+1) square, replicating the volume
// border. scratch must be as long as cost; its contents are overwritten.
func boxAggregate(cost, scratch []int32, cl costLayout, half int) {
	if half <= 0 {
		return
	}
	clear(scratch)
	for y := 0; y < cl.height; y++ {
		for x := 0; x < cl.width; x++ {
			dst := scratch[cl.at(x, y) : cl.at(x, y)+cl.nd]
			for k := -half; k <= half; k++ {
				xx := min(max(x+k, 0), cl.width-1)
				src := cost[cl.at(xx, y) : cl.at(xx, y)+cl.nd]
				for d := range dst {
					dst[d] += src[d]
				}
			}
		}
	}
	clear(cost)
	for y := 0; y < cl.height; y++ {
		dst := cost[cl.at(0, y) : cl.at(0, y)+cl.width*cl.nd]
		for k := -half; k <= half; k++ {
			yy := min(max(y+k, 0), cl.height-1)
			src := scratch[cl.at(0, yy) : cl.at(0, yy)+cl.width*cl.nd]
			for i := range dst {
				dst[i] += src[i]
			}
		}
	}
}

// aggregatePath runs the smoothness recursion along dir and adds the path costs into total:
//
//	L(p, d) = C(p, d) + min(L(p-r, d), L(p-r, d±1) + P1, min_k L(p-r, k) + P2) - min_k L(p-r, k)
//
// Paths start at the image border with L = C.
func aggregatePath(cost, total []int32, cl costLayout, dir pathDir, p1, p2 int32) {
	nd := cl.nd
	prev := make([]int32, cl.width*nd)
	cur := make([]int32, cl.width*nd)
	prevMin := make([]int32, cl.width)
	curMin := make([]int32, cl.width)

	yStart, yEnd, yStep := 0, cl.height, 1
	if dir.dy < 0 {
		yStart, yEnd, yStep = cl.height-1, -1, -1
	}
	xStart, xEnd, xStep := 0, cl.width, 1
	if dir.dx < 0 {
		xStart, xEnd, xStep = cl.width-1, -1, -1
	}

	for y := yStart; y != yEnd; y += yStep {
		py := y - dir.dy
		for x := xStart; x != xEnd; x += xStep {
			px := x - dir.dx
			var lp []int32
			var lpMin int32
			if px >= 0 && px < cl.width && py >= 0 && py < cl.height {
				if dir.dy == 0 {
					lp, lpMin = cur[px*nd:(px+1)*nd], curMin[px]
				} else {
					lp, lpMin = prev[px*nd:(px+1)*nd], prevMin[px]
				}
			}
			c := cost[cl.at(x, y) : cl.at(x, y)+nd]
			s := total[cl.at(x, y) : cl.at(x, y)+nd]
			lr := cur[x*nd : (x+1)*nd]
			minLr := int32(math.MaxInt32)
			for d := range lr {
				v := c[d]
				if lp != nil {
					best := min(lp[d], lpMin+p2)
					if d > 0 {
						best = min(best, lp[d-1]+p1)
					}
					if d < nd-1 {
						best = min(best, lp[d+1]+p1)
					}
					v += best - lpMin
				}
				lr[d] = v
				s[d] += v
				minLr = min(minLr, v)
			}
			curMin[x] = minLr
		}
		prev, cur = cur, prev
		prevMin, curMin = curMin, prevMin
	}
}

// selectRow picks the disparity with the lowest aggregated cost for every column, applies the
// uniqueness test and the left-right check, and refines the survivors with a parabola fit.
func (sg *semiGlobalMatcher) selectRow(total []int32, row []int16, cl costLayout) {
	cfg := sg.cfg
	nd := cl.nd
	w := len(row)
	disp2 := make([]int, w)
	disp2cost := make([]int32, w)
	for x := range disp2 {
		disp2[x] = cfg.MinDisparity - 1
		disp2cost[x] = math.MaxInt32
	}

	for x1 := 0; x1 < cl.width; x1++ {
		sp := total[x1*nd : (x1+1)*nd]
		best, minS := 0, sp[0]
		for d, v := range sp {
			if v < minS {
				best, minS = d, v
			}
		}
		unique := true
		for d, v := range sp {
			if int64(v)*int64(100-cfg.UniquenessRatio) < int64(minS)*100 && abs(best-d) > 1 {
				unique = false
				break
			}
		}
		if !unique {
			continue
		}

		x := x1 + cl.minX
		if xr := x - best - cfg.MinDisparity; disp2cost[xr] > minS {
			disp2cost[xr] = minS
			disp2[xr] = best + cfg.MinDisparity
		}

		val := best * rimage.DisparityScale
		if best > 0 && best < nd-1 {
			den := max(sp[best-1]+sp[best+1]-2*sp[best], 1)
			val += int((sp[best-1]-sp[best+1])*rimage.DisparityScale+den) / int(den*2)
		}
		row[x] = int16(val + cfg.MinDisparity*rimage.DisparityScale)
	}
	leftRightCheck(row, disp2, cfg.MinDisparity, cfg.Disp12MaxDiff)
}
