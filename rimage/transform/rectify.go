package transform

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Rectification is the result of aligning two calibrated views so that epipolar lines become
// image rows.
type Rectification struct {
	// R1 and R2 rotate each camera into the common rectified frame.
	R1, R2 *mat.Dense
	// P1 and P2 are the 3x4 projections of the rectified cameras.
	P1, P2 *mat.Dense
	// Q maps (x, y, disparity, 1) to homogeneous 3D points.
	Q *mat.Dense
	// ROI1 and ROI2 bound the pixels that only hold valid rectified data.
	ROI1, ROI2 image.Rectangle
}

// roiGridSize is the number of samples per side used to trace the rectified image border.
const roiGridSize = 9

// StereoRectify computes the rectifying rotations and projections for a stereo pair with the
// principal points of both rectified views made equal, so disparity at infinity is zero. R and T
// take points from the first camera frame to the second. Both views are rectified at size.
func StereoRectify(left, right *PinholeCameraModel, rot, trans *mat.Dense, size image.Point) (*Rectification, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, errors.Errorf("invalid rectification size %v", size)
	}
	if err := left.CheckValid(); err != nil {
		return nil, err
	}
	if err := right.CheckValid(); err != nil {
		return nil, err
	}
	if r, c := rot.Dims(); r != 3 || c != 3 {
		return nil, errors.Errorf("rotation must be 3x3, got %dx%d", r, c)
	}
	tVec, err := vectorFromDense(trans)
	if err != nil {
		return nil, errors.Wrap(err, "translation")
	}
	if tVec.Norm() == 0 {
		return nil, errors.New("translation between cameras is zero")
	}

	// Split the rotation in half so each camera turns by the same amount.
	om, err := RotationVector(rot)
	if err != nil {
		return nil, err
	}
	rHalf := Rodrigues(om.Mul(-0.5))
	t := mulVec(rHalf, tVec)

	// Rotate the baseline onto the closest image axis.
	idx := 1
	if math.Abs(t.X) > math.Abs(t.Y) {
		idx = 0
	}
	c := component(t, idx)
	var uu r3.Vector
	sign := 1.0
	if c <= 0 {
		sign = -1
	}
	if idx == 0 {
		uu.X = sign
	} else {
		uu.Y = sign
	}
	ww := t.Cross(uu)
	if nw := ww.Norm(); nw > 0 {
		ww = ww.Mul(math.Acos(math.Abs(c)/t.Norm()) / nw)
	}
	wR := Rodrigues(ww)

	var rect1, rect2 mat.Dense
	rect1.Mul(wR, rHalf.T())
	rect2.Mul(wR, rHalf)
	t = mulVec(&rect2, tVec)

	// Shared focal length along the axis perpendicular to the baseline.
	nx, ny := float64(size.X), float64(size.Y)
	fcNew := math.MaxFloat64
	for _, cam := range []*PinholeCameraModel{left, right} {
		fc := cam.Fy
		if idx == 1 {
			fc = cam.Fx
		}
		if k1 := radialK1(cam); k1 < 0 {
			fc *= 1 + k1*(nx*nx+ny*ny)/(4*fc*fc)
		}
		fcNew = math.Min(fcNew, fc)
	}

	// Centre each view on the mean of its projected corners.
	rects := []*mat.Dense{&rect1, &rect2}
	var cc [2]r2.Point
	for k, cam := range []*PinholeCameraModel{left, right} {
		var sum r2.Point
		for i := 0; i < 4; i++ {
			u := float64(i%2) * (nx - 1)
			v := float64(i/2) * (ny - 1)
			p := cam.UndistortPoint(u, v, rects[k], nil)
			sum = sum.Add(p.Mul(fcNew))
		}
		avg := sum.Mul(0.25)
		cc[k] = r2.Point{X: (nx-1)/2 - avg.X, Y: (ny-1)/2 - avg.Y}
	}
	ccShared := cc[0].Add(cc[1]).Mul(0.5)
	cc[0], cc[1] = ccShared, ccShared

	p1 := projectionMatrix(fcNew, cc[0])
	p2 := projectionMatrix(fcNew, cc[1])
	p2.Set(idx, 3, component(t, idx)*fcNew)

	tIdx := component(t, idx)
	ccDiff := cc[0].X - cc[1].X
	if idx == 1 {
		ccDiff = cc[0].Y - cc[1].Y
	}
	q := mat.NewDense(4, 4, []float64{
		1, 0, 0, -cc[0].X,
		0, 1, 0, -cc[0].Y,
		0, 0, 0, fcNew,
		0, 0, -1 / tIdx, ccDiff / tIdx,
	})

	bounds := image.Rect(0, 0, size.X, size.Y)
	return &Rectification{
		R1:   &rect1,
		R2:   &rect2,
		P1:   p1,
		P2:   p2,
		Q:    q,
		ROI1: validROI(left, &rect1, p1, size).Intersect(bounds),
		ROI2: validROI(right, &rect2, p2, size).Intersect(bounds),
	}, nil
}

func component(v r3.Vector, idx int) float64 {
	if idx == 0 {
		return v.X
	}
	return v.Y
}

func radialK1(cam *PinholeCameraModel) float64 {
	if cam.Distortion == nil {
		return 0
	}
	params := cam.Distortion.Parameters()
	if len(params) == 0 {
		return 0
	}
	return params[0]
}

func projectionMatrix(f float64, cc r2.Point) *mat.Dense {
	return mat.NewDense(3, 4, []float64{
		f, 0, cc.X, 0,
		0, f, cc.Y, 0,
		0, 0, 1, 0,
	})
}

// validROI traces the image border through undistortion and rectification and returns the
// largest axis aligned rectangle inside it.
func validROI(cam *PinholeCameraModel, rect, proj *mat.Dense, size image.Point) image.Rectangle {
	x0, y0 := -math.MaxFloat64, -math.MaxFloat64
	x1, y1 := math.MaxFloat64, math.MaxFloat64
	stepX := float64(size.X-1) / (roiGridSize - 1)
	stepY := float64(size.Y-1) / (roiGridSize - 1)
	for y := 0; y < roiGridSize; y++ {
		for x := 0; x < roiGridSize; x++ {
			p := cam.UndistortPoint(float64(x)*stepX, float64(y)*stepY, rect, proj)
			if x == 0 {
				x0 = math.Max(x0, p.X)
			}
			if x == roiGridSize-1 {
				x1 = math.Min(x1, p.X)
			}
			if y == 0 {
				y0 = math.Max(y0, p.Y)
			}
			if y == roiGridSize-1 {
				y1 = math.Min(y1, p.Y)
			}
		}
	}
	minX := int(math.Ceil(x0))
	minY := int(math.Ceil(y0))
	w := int(math.Floor(x1 - x0))
	h := int(math.Floor(y1 - y0))
	if w <= 0 || h <= 0 {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, minX+w, minY+h)
}
