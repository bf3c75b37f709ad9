package stereo

import (
	"image"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/hyyh619/StereoVision/rimage"
)

// testReprojection is the Q of a rectified pair with f = 300, principal point (160, 120) and a
// 60 unit baseline.
func testReprojection() Reprojection {
	return Reprojection{
		{1, 0, 0, -160},
		{0, 1, 0, -120},
		{0, 0, 0, 300},
		{0, 0, 1.0 / 60, 0},
	}
}

func TestNormalizeDisparity(t *testing.T) {
	disp := rimage.NewDisparityMap(6, 1)
	copy(disp.Data(), []int16{rimage.InvalidDisparity, 0, 100, 400, 48 * 16, 2000})

	out := NormalizeDisparity(disp, AlgorithmSGBM, 48)
	test.That(t, out.Channels(), test.ShouldEqual, 1)
	test.That(t, out.Size(), test.ShouldResemble, image.Pt(6, 1))
	test.That(t, out.Pix(), test.ShouldResemble, []uint8{0, 0, 33, 133, 255, 255})

	// Monotonic over the whole valid range.
	ramp := rimage.NewDisparityMap(48*16+1, 1)
	for i := range ramp.Data() {
		ramp.Data()[i] = int16(i)
	}
	pix := NormalizeDisparity(ramp, AlgorithmBM, 48).Pix()
	for i := 1; i < len(pix); i++ {
		test.That(t, pix[i], test.ShouldBeGreaterThanOrEqualTo, pix[i-1])
	}
	test.That(t, pix[len(pix)-1], test.ShouldEqual, uint8(255))

	varOut := NormalizeDisparity(disp, AlgorithmVAR, 48)
	test.That(t, varOut.Pix(), test.ShouldResemble, []uint8{0, 0, 100, 255, 255, 255})

	test.That(t, NormalizeDisparity(nil, AlgorithmBM, 48).Empty(), test.ShouldBeTrue)
}

func TestReprojection(t *testing.T) {
	q, err := NewReprojection(mat.NewDense(4, 4, []float64{
		1, 0, 0, -160,
		0, 1, 0, -120,
		0, 0, 0, 300,
		0, 0, 1.0 / 60, 0,
	}))
	test.That(t, err, test.ShouldBeNil)
	if diff := cmp.Diff(testReprojection(), q); diff != "" {
		t.Fatalf("unexpected matrix (-want +got):\n%s", diff)
	}

	_, err = NewReprojection(mat.NewDense(3, 4, nil))
	test.That(t, errors.Is(err, ErrConfig), test.ShouldBeTrue)
	_, err = NewReprojection(nil)
	test.That(t, errors.Is(err, ErrConfig), test.ShouldBeTrue)

	disp := rimage.NewDisparityMap(320, 240)
	disp.Set(200, 100, 8*16)
	before := disp.Clone()

	p := ReprojectPixel(disp, q, image.Pt(200, 100))
	test.That(t, p.Z, test.ShouldAlmostEqual, 300*60/8.0, 1e-9)
	test.That(t, p.X, test.ShouldAlmostEqual, 40*60/8.0, 1e-9)
	test.That(t, p.Y, test.ShouldAlmostEqual, -20*60/8.0, 1e-9)
	test.That(t, ReprojectPixel(disp, q, image.Pt(200, 100)), test.ShouldResemble, p)
	test.That(t, disp.Data(), test.ShouldResemble, before.Data())
	test.That(t, DepthAtPixel(disp, q, image.Pt(200, 100)), test.ShouldAlmostEqual, p.Z, 1e-9)

	outside := ReprojectPixel(disp, q, image.Pt(320, 0))
	test.That(t, math.IsNaN(outside.Z), test.ShouldBeTrue)
	test.That(t, math.IsNaN(DepthAtPixel(disp, q, image.Pt(-1, 5))), test.ShouldBeTrue)

	// With Q33 = 1 a zero disparity lands at z = Q23*16.
	q[3][3] = 1
	test.That(t, DepthAtPixel(disp, q, image.Pt(10, 10)), test.ShouldAlmostEqual, 300*16.0, 1e-9)
}

func TestIsValidDepth(t *testing.T) {
	test.That(t, IsValidDepth(1), test.ShouldBeTrue)
	test.That(t, IsValidDepth(1e-3), test.ShouldBeTrue)
	test.That(t, IsValidDepth(1e-9), test.ShouldBeFalse)
	test.That(t, IsValidDepth(0), test.ShouldBeFalse)
	test.That(t, IsValidDepth(-5), test.ShouldBeFalse)
	test.That(t, IsValidDepth(math.Inf(1)), test.ShouldBeFalse)
	test.That(t, IsValidDepth(math.NaN()), test.ShouldBeFalse)
}

func TestFilterDisparity(t *testing.T) {
	q := testReprojection()
	disp := rimage.NewInvalidDisparityMap(4, 1)
	disp.Set(0, 0, 2*16) // z = 9000
	disp.Set(1, 0, 8*16) // z = 2250
	disp.Set(2, 0, 0)    // z = +Inf
	filtered := FilterDisparity(disp, q, DefaultFilterDepth)

	test.That(t, filtered.Data(), test.ShouldResemble, []int16{
		rimage.InvalidDisparity, 8 * 16, rimage.InvalidDisparity, rimage.InvalidDisparity,
	})
	test.That(t, disp.GetDisparity(0, 0), test.ShouldEqual, int16(32))
}

func TestRegionGeometry(t *testing.T) {
	test.That(t, DefaultRegion, test.ShouldResemble, image.Rect(132, 92, 188, 148))
	test.That(t, RegionForSize(image.Pt(640, 480), Cull{}), test.ShouldResemble, image.Rect(292, 212, 348, 268))
	test.That(t, RegionForSize(image.Pt(320, 240), Cull{X: 10, Y: 20}), test.ShouldResemble, image.Rect(122, 72, 178, 128))
}

func TestRegionDepthGridAllInvalid(t *testing.T) {
	grid := ComputeRegionDepthGrid(rimage.NewInvalidDisparityMap(320, 240), testReprojection())
	for r := range grid {
		for c := range grid[r] {
			test.That(t, grid[r][c], test.ShouldEqual, MaxDepth)
		}
	}
	grid = ComputeRegionDepthGrid(nil, testReprojection())
	test.That(t, grid[1][1], test.ShouldEqual, MaxDepth)
}

func TestRegionDepthGridBlocks(t *testing.T) {
	q := testReprojection()
	disp := rimage.NewInvalidDisparityMap(320, 240)
	region := DefaultRegion

	// 56 / 3 gives 18 pixel blocks. Column 53 of the region is the last scanned one.
	disp.Set(region.Min.X+53, region.Min.Y, 10*16)
	// Column 54 is left over and never scanned, even though it is nearer.
	disp.Set(region.Min.X+54, region.Min.Y, 40*16)
	// Two hits in the centre cell keep the nearer one.
	disp.Set(region.Min.X+20, region.Min.Y+20, 5*16)
	disp.Set(region.Min.X+35, region.Min.Y+35, 6*16)

	grid := ComputeRegionDepthGrid(disp, q)
	want := RegionDepthGrid{
		{MaxDepth, MaxDepth, 300 * 60 / 10.0},
		{MaxDepth, 300 * 60 / 6.0, MaxDepth},
		{MaxDepth, MaxDepth, MaxDepth},
	}
	if diff := cmp.Diff(want, grid, cmp.Comparer(func(a, b float64) bool { return math.Abs(a-b) < 1e-9 })); diff != "" {
		t.Fatalf("unexpected grid (-want +got):\n%s", diff)
	}

	row, col, depth := grid.Nearest()
	test.That(t, row, test.ShouldEqual, 0)
	test.That(t, col, test.ShouldEqual, 2)
	test.That(t, depth, test.ShouldAlmostEqual, 1800, 1e-9)

	// A region hanging over the map border only scans what exists.
	edge := RegionDepthGridIn(disp, q, image.Rect(300, 220, 330, 250))
	test.That(t, edge[2][2], test.ShouldEqual, MaxDepth)
}
