// Package transform models calibrated cameras and rectifies stereo pairs.
package transform

import (
	"image"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"golang.org/x/sync/errgroup"
)

// ErrConfig reports unusable calibration input: missing or unreadable stores, missing entries,
// inconsistent sizes or geometry that cannot be rectified.
var ErrConfig = errors.New("configuration error")

// DefaultCalibrationSize is the frame size the stock calibration files were produced at.
var DefaultCalibrationSize = image.Pt(320, 240)

// Store keys.
const (
	KeyM1 = "M1"
	KeyD1 = "D1"
	KeyM2 = "M2"
	KeyD2 = "D2"
	KeyR  = "R"
	KeyT  = "T"
)

// StereoCalibration bundles everything one rectification of a camera pair produces. It is built
// once and never modified.
type StereoCalibration struct {
	// M1, D1, M2, D2 are the camera matrices and distortion coefficients after scaling.
	M1, D1, M2, D2 *mat.Dense
	// R and T take points from the left camera frame to the right one.
	R, T *mat.Dense
	Rectification
	// Left and Right rectify raw frames of the given Size.
	Left, Right *RemapTable
	Size        image.Point
}

// LoadCalibration reads M1/D1/M2/D2 from the intrinsic store and R/T from the extrinsic store,
// scales both camera matrices by scale and then from calibSize to targetSize, and rectifies the
// pair at targetSize. A zero calibSize means DefaultCalibrationSize.
func LoadCalibration(intrinsicPath, extrinsicPath string, scale float64, targetSize, calibSize image.Point) (*StereoCalibration, error) {
	if intrinsicPath == "" || extrinsicPath == "" {
		return nil, errors.Wrap(ErrConfig, "both intrinsic and extrinsic calibration files are required")
	}
	intrinsics, err := ReadCalibrationStore(intrinsicPath)
	if err != nil {
		return nil, err
	}
	extrinsics, err := ReadCalibrationStore(extrinsicPath)
	if err != nil {
		return nil, err
	}

	entries := map[string]*mat.Dense{}
	for _, key := range []string{KeyM1, KeyD1, KeyM2, KeyD2} {
		if entries[key], err = intrinsics.Matrix(key); err != nil {
			return nil, errors.Wrapf(err, "in %q", intrinsicPath)
		}
	}
	for _, key := range []string{KeyR, KeyT} {
		if entries[key], err = extrinsics.Matrix(key); err != nil {
			return nil, errors.Wrapf(err, "in %q", extrinsicPath)
		}
	}

	if calibSize == (image.Point{}) {
		calibSize = DefaultCalibrationSize
	}
	m1, err := scaleCameraMatrix(entries[KeyM1], scale, targetSize, calibSize)
	if err != nil {
		return nil, err
	}
	m2, err := scaleCameraMatrix(entries[KeyM2], scale, targetSize, calibSize)
	if err != nil {
		return nil, err
	}
	return NewStereoCalibration(m1, entries[KeyD1], m2, entries[KeyD2], entries[KeyR], entries[KeyT], targetSize)
}

// scaleCameraMatrix multiplies every entry by scale, then fx/cx by the width ratio and fy/cy by
// the height ratio when the target size differs from the calibration size.
func scaleCameraMatrix(m *mat.Dense, scale float64, targetSize, calibSize image.Point) (*mat.Dense, error) {
	if r, c := m.Dims(); r != 3 || c != 3 {
		return nil, errors.Wrapf(ErrConfig, "camera matrix must be 3x3, got %dx%d", r, c)
	}
	if scale <= 0 {
		return nil, errors.Wrapf(ErrConfig, "invalid calibration scale %v", scale)
	}
	if targetSize.X <= 0 || targetSize.Y <= 0 || calibSize.X <= 0 || calibSize.Y <= 0 {
		return nil, errors.Wrapf(ErrConfig, "invalid sizes target=%v calibration=%v", targetSize, calibSize)
	}
	var out mat.Dense
	out.Scale(scale, m)
	if targetSize != calibSize {
		sx := float64(targetSize.X) / float64(calibSize.X)
		sy := float64(targetSize.Y) / float64(calibSize.Y)
		out.Set(0, 0, out.At(0, 0)*sx)
		out.Set(0, 2, out.At(0, 2)*sx)
		out.Set(1, 1, out.At(1, 1)*sy)
		out.Set(1, 2, out.At(1, 2)*sy)
	}
	return &out, nil
}

// NewStereoCalibration rectifies an already scaled camera pair at size and builds both remap
// tables. R may be a 3x3 matrix or a rotation vector.
func NewStereoCalibration(m1, d1, m2, d2, rot, trans *mat.Dense, size image.Point) (*StereoCalibration, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, errors.Wrapf(ErrConfig, "invalid calibration target size %v", size)
	}
	if rot == nil || trans == nil {
		return nil, errors.Wrap(ErrConfig, "rotation and translation are required")
	}
	left, err := cameraModel(m1, d1, size)
	if err != nil {
		return nil, errors.Wrap(err, "left camera")
	}
	right, err := cameraModel(m2, d2, size)
	if err != nil {
		return nil, errors.Wrap(err, "right camera")
	}
	rotation, err := rotationFromStore(rot)
	if err != nil {
		return nil, errors.Wrap(ErrConfig, err.Error())
	}

	rect, err := StereoRectify(left, right, rotation, trans, size)
	if err != nil {
		return nil, errors.Wrap(ErrConfig, err.Error())
	}

	calib := &StereoCalibration{
		M1:            mat.DenseCopyOf(m1),
		D1:            left.Distortion.(*BrownConrady).Dense(),
		M2:            mat.DenseCopyOf(m2),
		D2:            right.Distortion.(*BrownConrady).Dense(),
		R:             rotation,
		T:             mat.DenseCopyOf(trans),
		Rectification: *rect,
		Size:          size,
	}

	var group errgroup.Group
	group.Go(func() error {
		table, err := NewRemapTable(left, rect.R1, rect.P1, size)
		calib.Left = table
		return err
	})
	group.Go(func() error {
		table, err := NewRemapTable(right, rect.R2, rect.P2, size)
		calib.Right = table
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, errors.Wrap(ErrConfig, err.Error())
	}
	return calib, nil
}

func cameraModel(m, d *mat.Dense, size image.Point) (*PinholeCameraModel, error) {
	intrinsics, err := NewPinholeCameraIntrinsicsFromMatrix(m, size)
	if err != nil {
		return nil, errors.Wrap(ErrConfig, err.Error())
	}
	distortion, err := NewBrownConradyFromDense(d)
	if err != nil {
		return nil, errors.Wrap(ErrConfig, err.Error())
	}
	if err := distortion.CheckValid(); err != nil {
		return nil, errors.Wrap(ErrConfig, err.Error())
	}
	return &PinholeCameraModel{PinholeCameraIntrinsics: intrinsics, Distortion: distortion}, nil
}
