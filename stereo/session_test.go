package stereo

import (
	"image"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/hyyh619/StereoVision/logging"
	"github.com/hyyh619/StereoVision/rimage"
	"github.com/hyyh619/StereoVision/rimage/transform"
)

// identityCalibration is an already rectified pair: equal cameras with f = 300 and a 60 unit
// baseline along x, so rectification leaves frames unchanged.
func identityCalibration(t *testing.T, size image.Point) *transform.StereoCalibration {
	t.Helper()
	cx, cy := float64(size.X)/2, float64(size.Y)/2
	m := mat.NewDense(3, 3, []float64{300, 0, cx, 0, 300, cy, 0, 0, 1})
	rot := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	trans := mat.NewDense(3, 1, []float64{-60, 0, 0})
	calib, err := transform.NewStereoCalibration(m, mat.NewDense(1, 5, nil), m, mat.NewDense(1, 5, nil), rot, trans, size)
	test.That(t, err, test.ShouldBeNil)
	return calib
}

func TestPrepareImages(t *testing.T) {
	left, right := texturePair(80, 60, 3, 4)
	leftCopy := left.Clone()

	outLeft, outRight, err := PrepareImages(left, right, 1, nil, Cull{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, outLeft.Pix(), test.ShouldResemble, left.Pix())
	test.That(t, outRight.Pix(), test.ShouldResemble, right.Pix())
	outLeft.Pix()[0]++
	test.That(t, left.Pix(), test.ShouldResemble, leftCopy.Pix())

	outLeft, outRight, err = PrepareImages(left, right, 0.5, nil, Cull{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, outLeft.Size(), test.ShouldResemble, image.Pt(40, 30))
	test.That(t, outRight.Size(), test.ShouldResemble, image.Pt(40, 30))
	test.That(t, outLeft.Channels(), test.ShouldEqual, 3)

	outLeft, _, err = PrepareImages(left, right, 2, nil, Cull{X: 10, Y: 5})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, outLeft.Size(), test.ShouldResemble, image.Pt(140, 110))

	outLeft, _, err = PrepareImages(left, right, 1, nil, Cull{X: 3, Y: 2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, outLeft.Size(), test.ShouldResemble, image.Pt(74, 56))
	test.That(t, outLeft.GetXY(0, 0, 1), test.ShouldEqual, left.GetXY(3, 2, 1))
	test.That(t, left.Pix(), test.ShouldResemble, leftCopy.Pix())
}

func TestPrepareImagesErrors(t *testing.T) {
	left, right := texturePair(80, 60, 1, 4)

	_, _, err := PrepareImages(nil, right, 1, nil, Cull{})
	test.That(t, errors.Is(err, ErrEmptyImage), test.ShouldBeTrue)

	_, _, err = PrepareImages(left, rimage.NewImage(80, 61, 1), 1, nil, Cull{})
	test.That(t, errors.Is(err, ErrInvalidParameters), test.ShouldBeTrue)

	_, _, err = PrepareImages(left, rimage.NewImage(80, 60, 3), 1, nil, Cull{})
	test.That(t, errors.Is(err, ErrInvalidParameters), test.ShouldBeTrue)

	_, _, err = PrepareImages(left, right, 0, nil, Cull{})
	test.That(t, errors.Is(err, ErrInvalidParameters), test.ShouldBeTrue)

	_, _, err = PrepareImages(left, right, 1, nil, Cull{X: 40})
	test.That(t, errors.Is(err, ErrConfig), test.ShouldBeTrue)

	_, _, err = PrepareImages(left, right, 1, nil, Cull{Y: -1})
	test.That(t, errors.Is(err, ErrConfig), test.ShouldBeTrue)

	// The tables are built for 80x60, a halved frame does not fit them.
	calib := identityCalibration(t, image.Pt(80, 60))
	_, _, err = PrepareImages(left, right, 0.5, calib, Cull{})
	test.That(t, errors.Is(err, ErrConfig), test.ShouldBeTrue)
}

func TestPrepareImagesRectifies(t *testing.T) {
	left, right := texturePair(80, 60, 1, 4)
	calib := identityCalibration(t, image.Pt(80, 60))
	outLeft, outRight, err := PrepareImages(left, right, 1, calib, Cull{})
	test.That(t, err, test.ShouldBeNil)
	for i, v := range outLeft.Pix() {
		test.That(t, int(v)-int(left.Pix()[i]), test.ShouldBeBetweenOrEqual, -1, 1)
	}
	for i, v := range outRight.Pix() {
		test.That(t, int(v)-int(right.Pix()[i]), test.ShouldBeBetweenOrEqual, -1, 1)
	}
}

func TestSessionWithoutCalibration(t *testing.T) {
	logger := logging.NewTestLogger(t)
	p, err := InitAlgorithm(1, image.Rectangle{}, image.Rectangle{}, 16, 0, 160, AlgorithmBM)
	test.That(t, err, test.ShouldBeNil)
	s, err := NewSession(logger, nil, p, SessionOptions{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Calibration(), test.ShouldBeNil)
	_, ok := s.Reprojection()
	test.That(t, ok, test.ShouldBeFalse)

	_, err = s.ReprojectPixel(image.Pt(1, 1))
	test.That(t, errors.Is(err, ErrConfig), test.ShouldBeTrue)

	left, right := texturePair(160, 120, 1, 5)
	frame, err := s.Process(left, right)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame.Grid, test.ShouldBeNil)
	test.That(t, frame.Normalized.Size(), test.ShouldResemble, image.Pt(160, 120))
	test.That(t, frame.Params.NumDisparities, test.ShouldEqual, 16)
	test.That(t, s.LastDisparity(), test.ShouldEqual, frame.Disparity)

	_, err = s.Compute(left, nil)
	test.That(t, errors.Is(err, ErrEmptyImage), test.ShouldBeTrue)

	_, err = NewSession(logger, nil, Params{Algorithm: AlgorithmVAR, NumDisparities: 16, BlockSize: 3, Channels: 1}, SessionOptions{})
	test.That(t, errors.Is(err, ErrUnsupportedAlgorithm), test.ShouldBeTrue)
	_, err = NewSession(logger, nil, p, SessionOptions{Scale: -1})
	test.That(t, errors.Is(err, ErrInvalidParameters), test.ShouldBeTrue)
}

func TestSessionDepth(t *testing.T) {
	logger := logging.NewTestLogger(t)
	size := image.Pt(320, 240)
	calib := identityCalibration(t, size)

	p, err := InitAlgorithm(1, calib.ROI1, calib.ROI2, 0, 0, size.X, AlgorithmBM)
	test.That(t, err, test.ShouldBeNil)
	s, err := NewSession(logger, calib, p, SessionOptions{FilterDepth: DefaultFilterDepth})
	test.That(t, err, test.ShouldBeNil)

	_, err = s.ReprojectPixel(image.Pt(160, 120))
	test.That(t, errors.Is(err, ErrEmptyImage), test.ShouldBeTrue)

	// An 8 pixel shift puts the scene at 300 * 60 / 8 = 2250.
	left, right := texturePair(size.X, size.Y, 1, 8)
	frame, err := s.Process(left, right)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame.Params.NumDisparities, test.ShouldEqual, 48)
	test.That(t, frame.Grid, test.ShouldNotBeNil)
	for r := range frame.Grid {
		for c := range frame.Grid[r] {
			test.That(t, frame.Grid[r][c], test.ShouldBeBetween, 2000, 2600)
		}
	}

	p3, err := s.ReprojectPixel(image.Pt(160, 120))
	test.That(t, err, test.ShouldBeNil)
	if d := s.LastDisparity().GetDisparity(160, 120); d != rimage.InvalidDisparity {
		test.That(t, p3.Z, test.ShouldBeBetween, 2000, 2600)
	}
}

func TestSessionCullWithCalibration(t *testing.T) {
	logger := logging.NewTestLogger(t)
	size := image.Pt(320, 240)
	calib := identityCalibration(t, size)
	cull := Cull{X: 10, Y: 10}

	p, err := InitAlgorithm(1, calib.ROI1, calib.ROI2, 0, 0, size.X, AlgorithmBM)
	test.That(t, err, test.ShouldBeNil)
	s, err := NewSession(logger, calib, p, SessionOptions{Cull: cull})
	test.That(t, err, test.ShouldBeNil)

	left, right := texturePair(size.X, size.Y, 1, 8)
	frame, err := s.Process(left, right)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame.Disparity.Bounds().Size(), test.ShouldResemble, image.Pt(300, 220))
	test.That(t, frame.Params.ROI1, test.ShouldResemble, calib.ROI1.Sub(image.Pt(10, 10)))
	test.That(t, frame.Disparity.ValidCount(), test.ShouldBeGreaterThan, 0)
	test.That(t, frame.Grid, test.ShouldNotBeNil)
	_, _, nearest := frame.Grid.Nearest()
	test.That(t, nearest, test.ShouldBeBetween, 2000, 2600)

	test.That(t, cullROI(image.Rectangle{}, cull), test.ShouldResemble, image.Rectangle{})
	test.That(t, cullROI(image.Rect(5, 5, 50, 50), Cull{}), test.ShouldResemble, image.Rect(5, 5, 50, 50))
}
