package transform

import (
	"fmt"
	"image"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrNoIntrinsics is when a camera does not have usable intrinsic parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intrinsics are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective projection of a 3D scene to the 2D plane.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// NewPinholeCameraIntrinsicsFromMatrix reads fx, fy, cx and cy from a 3x3 camera matrix. Only
// those four entries are used, so a matrix scaled as a whole is read correctly.
func NewPinholeCameraIntrinsicsFromMatrix(m mat.Matrix, size image.Point) (*PinholeCameraIntrinsics, error) {
	if m == nil {
		return nil, NewNoIntrinsicsError("camera matrix is missing")
	}
	if rows, cols := m.Dims(); rows != 3 || cols != 3 {
		return nil, NewNoIntrinsicsError(fmt.Sprintf("camera matrix must be 3x3, got %dx%d", rows, cols))
	}
	params := &PinholeCameraIntrinsics{
		Width:  size.X,
		Height: size.Y,
		Fx:     m.At(0, 0),
		Fy:     m.At(1, 1),
		Ppx:    m.At(0, 2),
		Ppy:    m.At(1, 2),
	}
	return params, params.CheckValid()
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height))
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy))
	}
	return nil
}

// GetCameraMatrix creates a new camera matrix and returns it.
// Camera matrix:
// [[fx 0 ppx],
//
//	[0 fy ppy],
//	[0 0  1]]
func (params *PinholeCameraIntrinsics) GetCameraMatrix() *mat.Dense {
	if params == nil {
		return nil
	}
	cameraMatrix := mat.NewDense(3, 3, nil)
	cameraMatrix.Set(0, 0, params.Fx)
	cameraMatrix.Set(1, 1, params.Fy)
	cameraMatrix.Set(0, 2, params.Ppx)
	cameraMatrix.Set(1, 2, params.Ppy)
	cameraMatrix.Set(2, 2, 1)
	return cameraMatrix
}

// Normalize turns a pixel into normalized image coordinates.
func (params *PinholeCameraIntrinsics) Normalize(u, v float64) (float64, float64) {
	return (u - params.Ppx) / params.Fx, (v - params.Ppy) / params.Fy
}

// Denormalize turns normalized image coordinates into a pixel.
func (params *PinholeCameraIntrinsics) Denormalize(x, y float64) (float64, float64) {
	return x*params.Fx + params.Ppx, y*params.Fy + params.Ppy
}

// PinholeCameraModel is the model of a pinhole camera with lens distortion.
type PinholeCameraModel struct {
	*PinholeCameraIntrinsics `json:"intrinsic_parameters"`
	Distortion               Distorter `json:"distortion"`
}

// UndistortPoint removes the lens distortion from pixel (u, v), rotates the ray by rect and
// projects it with the 3x3 part of proj. rect and proj may be nil, in which case the result
// stays in normalized coordinates of the unrotated camera.
func (params *PinholeCameraModel) UndistortPoint(u, v float64, rect, proj mat.Matrix) r2.Point {
	x, y := params.Normalize(u, v)
	if params.Distortion != nil {
		x, y = params.Distortion.Undistort(x, y)
	}
	if rect != nil {
		ray := mulVec(rect, r3Vec(x, y, 1))
		x, y = ray.X/ray.Z, ray.Y/ray.Z
	}
	if proj != nil {
		p := mulVec(proj, r3Vec(x, y, 1))
		x, y = p.X/p.Z, p.Y/p.Z
	}
	return r2.Point{X: x, Y: y}
}
