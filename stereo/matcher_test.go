package stereo

import (
	"image"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/hyyh619/StereoVision/rimage"
)

// texturePair returns a random texture and the same texture seen shift pixels further left, so
// every left pixel matches the right pixel shift columns before it.
func texturePair(w, h, channels, shift int) (*rimage.Image, *rimage.Image) {
	rng := rand.New(rand.NewSource(7))
	base := rimage.NewImage(w+shift, h, channels)
	for i := range base.Pix() {
		base.Pix()[i] = uint8(rng.Intn(256))
	}
	left := rimage.NewImage(w, h, channels)
	right := rimage.NewImage(w, h, channels)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < channels; c++ {
				left.SetXY(x, y, c, base.GetXY(x, y, c))
				right.SetXY(x, y, c, base.GetXY(x+shift, y, c))
			}
		}
	}
	return left, right
}

// fractionNear reports the share of cells in rect within tol of want.
func fractionNear(disp *rimage.DisparityMap, rect image.Rectangle, want, tol int) float64 {
	near, total := 0, 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			total++
			if d := int(disp.GetDisparity(x, y)); d >= want-tol && d <= want+tol {
				near++
			}
		}
	}
	return float64(near) / float64(total)
}

func TestComputeDisparityErrors(t *testing.T) {
	p, err := InitAlgorithm(1, image.Rectangle{}, image.Rectangle{}, 16, 0, 64, AlgorithmBM)
	test.That(t, err, test.ShouldBeNil)
	left, right := texturePair(64, 48, 1, 2)

	_, err = ComputeDisparity(rimage.NewImage(0, 0, 1), right, p)
	test.That(t, errors.Is(err, ErrEmptyImage), test.ShouldBeTrue)
	_, err = ComputeDisparity(left, nil, p)
	test.That(t, errors.Is(err, ErrEmptyImage), test.ShouldBeTrue)

	_, err = ComputeDisparity(left, rimage.NewImage(60, 48, 1), p)
	test.That(t, errors.Is(err, ErrInvalidParameters), test.ShouldBeTrue)

	p.Algorithm = AlgorithmVAR
	_, err = ComputeDisparity(left, right, p)
	test.That(t, errors.Is(err, ErrUnsupportedAlgorithm), test.ShouldBeTrue)

	_, err = NewMatcher(Params{Algorithm: AlgorithmSGBM, NumDisparities: 15, BlockSize: 3, Channels: 1})
	test.That(t, errors.Is(err, ErrInvalidParameters), test.ShouldBeTrue)
}

func TestBlockMatching(t *testing.T) {
	const shift = 5
	left, right := texturePair(160, 120, 1, shift)
	p, err := InitAlgorithm(1, image.Rectangle{}, image.Rectangle{}, 16, 0, 160, AlgorithmBM)
	test.That(t, err, test.ShouldBeNil)

	m, err := NewMatcher(p)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Algorithm(), test.ShouldEqual, AlgorithmBM)

	disp, err := m.Compute(left, right)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, disp.Width(), test.ShouldEqual, 160)
	test.That(t, disp.Height(), test.ShouldEqual, 120)

	// Left of numDisparities-1+blockSize/2 and inside the top and bottom borders nothing matches.
	valid := validDisparityROI(image.Rectangle{}, image.Rectangle{}, left.Size(), 0, 16, 9)
	test.That(t, valid, test.ShouldResemble, image.Rect(19, 4, 156, 116))
	for y := 0; y < 120; y++ {
		for x := 0; x < 160; x++ {
			if !image.Pt(x, y).In(valid) {
				test.That(t, disp.GetDisparity(x, y), test.ShouldEqual, rimage.InvalidDisparity)
			}
		}
	}
	test.That(t, fractionNear(disp, valid, shift*rimage.DisparityScale, 8), test.ShouldBeGreaterThan, 0.95)

	// The inputs are colour converted for block matching.
	colorLeft, colorRight := texturePair(160, 120, 3, shift)
	colorDisp, err := m.Compute(colorLeft, colorRight)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fractionNear(colorDisp, valid, shift*rimage.DisparityScale, 8), test.ShouldBeGreaterThan, 0.95)
}

func TestBlockMatchingROI(t *testing.T) {
	left, right := texturePair(160, 120, 1, 5)
	roi := image.Rect(30, 20, 130, 100)
	p, err := InitAlgorithm(1, roi, roi, 16, 9, 160, AlgorithmBM)
	test.That(t, err, test.ShouldBeNil)
	disp, err := ComputeDisparity(left, right, p)
	test.That(t, err, test.ShouldBeNil)

	valid := validDisparityROI(roi, roi, left.Size(), 0, 16, 9)
	test.That(t, valid, test.ShouldResemble, image.Rect(49, 24, 126, 96))
	test.That(t, disp.GetDisparity(40, 60), test.ShouldEqual, rimage.InvalidDisparity)
	test.That(t, disp.GetDisparity(80, 10), test.ShouldEqual, rimage.InvalidDisparity)
	test.That(t, fractionNear(disp, valid, 80, 8), test.ShouldBeGreaterThan, 0.95)

	// Rectangles reaching past the view are clipped to it.
	wide := image.Rect(-10, -10, 200, 150)
	test.That(t, validDisparityROI(wide, wide, left.Size(), 0, 16, 9), test.ShouldResemble, image.Rect(19, 4, 156, 116))
	p, err = InitAlgorithm(1, wide, wide, 16, 9, 160, AlgorithmBM)
	test.That(t, err, test.ShouldBeNil)
	disp, err = ComputeDisparity(left, right, p)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fractionNear(disp, image.Rect(19, 4, 156, 116), 80, 8), test.ShouldBeGreaterThan, 0.9)

	// A rectangle too small for one block leaves nothing to match.
	tiny := image.Rect(0, 0, 20, 20)
	p, err = InitAlgorithm(1, tiny, tiny, 16, 9, 160, AlgorithmBM)
	test.That(t, err, test.ShouldBeNil)
	disp, err = ComputeDisparity(left, right, p)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, disp.ValidCount(), test.ShouldEqual, 0)
}

func TestBlockMatchingTexturelessInput(t *testing.T) {
	flat := rimage.NewImage(96, 64, 1)
	for i := range flat.Pix() {
		flat.Pix()[i] = 128
	}
	p, err := InitAlgorithm(1, image.Rectangle{}, image.Rectangle{}, 16, 0, 96, AlgorithmBM)
	test.That(t, err, test.ShouldBeNil)
	disp, err := ComputeDisparity(flat, flat.Clone(), p)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, disp.ValidCount(), test.ShouldEqual, 0)
}

func TestSemiGlobalMatching(t *testing.T) {
	const shift = 6
	for _, tc := range []struct {
		alg      Algorithm
		channels int
	}{
		{AlgorithmSGBM, 1},
		{AlgorithmHH, 3},
	} {
		t.Run(tc.alg.String(), func(t *testing.T) {
			left, right := texturePair(120, 80, tc.channels, shift)
			p, err := InitAlgorithm(tc.channels, image.Rectangle{}, image.Rectangle{}, 16, 0, 120, tc.alg)
			test.That(t, err, test.ShouldBeNil)
			m, err := NewMatcher(p)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, m.Algorithm(), test.ShouldEqual, tc.alg)

			disp, err := m.Compute(left, right)
			test.That(t, err, test.ShouldBeNil)
			for y := 0; y < 80; y++ {
				for x := 0; x < 16; x++ {
					test.That(t, disp.GetDisparity(x, y), test.ShouldEqual, rimage.InvalidDisparity)
				}
			}
			inner := image.Rect(20, 4, 116, 76)
			test.That(t, fractionNear(disp, inner, shift*rimage.DisparityScale, 8), test.ShouldBeGreaterThan, 0.95)
		})
	}
}

func TestFilterSpeckles(t *testing.T) {
	disp := rimage.NewDisparityMap(20, 20)
	for i := range disp.Data() {
		disp.Data()[i] = 100
	}
	for y := 5; y < 8; y++ {
		for x := 5; x < 8; x++ {
			disp.Set(x, y, 400)
		}
	}
	disp.Set(15, 15, rimage.InvalidDisparity)

	filterSpeckles(disp, rimage.InvalidDisparity, 100, 32)
	test.That(t, disp.GetDisparity(6, 6), test.ShouldEqual, rimage.InvalidDisparity)
	test.That(t, disp.GetDisparity(5, 7), test.ShouldEqual, rimage.InvalidDisparity)
	test.That(t, disp.GetDisparity(0, 0), test.ShouldEqual, int16(100))
	test.That(t, disp.GetDisparity(8, 6), test.ShouldEqual, int16(100))
	test.That(t, disp.ValidCount(), test.ShouldEqual, 400-9-1)

	// A window of zero disables the filter.
	small := rimage.NewDisparityMap(3, 3)
	small.Set(1, 1, 500)
	filterSpeckles(small, rimage.InvalidDisparity, 0, 32)
	test.That(t, small.GetDisparity(1, 1), test.ShouldEqual, int16(500))
}

func TestLeftRightCheck(t *testing.T) {
	row := []int16{rimage.InvalidDisparity, 16, 32, 48, 16}
	disp2 := []int{1, 0, 5, -1, -1}
	leftRightCheck(row, disp2, 0, 1)
	// Column 2 matched right column 0, which prefers disparity 1: kept.
	test.That(t, row[2], test.ShouldEqual, int16(32))
	// Column 3 matched right column 0 with disparity 3, two steps off: dropped.
	test.That(t, row[3], test.ShouldEqual, rimage.InvalidDisparity)
	// Column 4 matched an unmatched right column: kept.
	test.That(t, row[4], test.ShouldEqual, int16(16))
	// Column 1 matched right column 0 with disparity 1: kept.
	test.That(t, row[1], test.ShouldEqual, int16(16))
}

func TestBoxAggregateInPlace(t *testing.T) {
	cl := costLayout{width: 4, height: 3, nd: 2}
	cost := make([]int32, cl.width*cl.height*cl.nd)
	for i := range cost {
		cost[i] = int32(i)
	}
	want := make([]int32, len(cost))
	for y := 0; y < cl.height; y++ {
		for x := 0; x < cl.width; x++ {
			for d := 0; d < cl.nd; d++ {
				for ky := -1; ky <= 1; ky++ {
					for kx := -1; kx <= 1; kx++ {
						yy := min(max(y+ky, 0), cl.height-1)
						xx := min(max(x+kx, 0), cl.width-1)
						want[cl.at(x, y)+d] += cost[cl.at(xx, yy)+d]
					}
				}
			}
		}
	}

	scratch := make([]int32, len(cost))
	for i := range scratch {
		scratch[i] = -1
	}
	boxAggregate(cost, scratch, cl, 1)
	test.That(t, cost, test.ShouldResemble, want)

	unchanged := append([]int32(nil), cost...)
	boxAggregate(cost, scratch, cl, 0)
	test.That(t, cost, test.ShouldResemble, unchanged)
}

func TestBirchfieldTomasiAccumulates(t *testing.T) {
	cl := costLayout{width: 2, height: 1, nd: 2, minX: 2}
	lrow := []uint8{0, 0, 40, 40}
	rrow := []uint8{40, 40, 0, 0}
	dst := make([]int32, cl.width*cl.nd)
	birchfieldTomasi(lrow, rrow, dst, cl, 0, 0, 0)
	once := append([]int32(nil), dst...)
	birchfieldTomasi(lrow, rrow, dst, cl, 0, 0, 0)
	for i := range dst {
		test.That(t, dst[i], test.ShouldEqual, 2*once[i])
	}
	// At x = 3 the right edge half way point halves the cost of disparity 1.
	test.That(t, once[cl.at(1, 0)], test.ShouldEqual, int32(40))
	test.That(t, once[cl.at(1, 0)+1], test.ShouldEqual, int32(20))
}
