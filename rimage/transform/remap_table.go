package transform

import (
	"image"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/hyyh619/StereoVision/rimage"
)

// RemapTable tells, for every pixel of a rectified image, where to sample the raw camera image.
type RemapTable struct {
	Width, Height int
	X, Y          []float32
}

// NewRemapTable builds the undistort plus rectify lookup for one camera. rect is the rectifying
// rotation and proj the rectified projection (3x3 or 3x4, only the left 3x3 block is used).
func NewRemapTable(cam *PinholeCameraModel, rect, proj mat.Matrix, size image.Point) (*RemapTable, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, errors.Errorf("invalid remap size %v", size)
	}
	if err := cam.CheckValid(); err != nil {
		return nil, err
	}
	if rect == nil {
		rect = eye(3)
	}
	if proj == nil {
		proj = cam.GetCameraMatrix()
	}

	newCam := mat.DenseCopyOf(proj).Slice(0, 3, 0, 3)
	var combined, inv mat.Dense
	combined.Mul(newCam, rect)
	if err := inv.Inverse(&combined); err != nil {
		return nil, errors.Wrap(err, "rectified projection is singular")
	}

	table := &RemapTable{
		Width:  size.X,
		Height: size.Y,
		X:      make([]float32, size.X*size.Y),
		Y:      make([]float32, size.X*size.Y),
	}
	for v := 0; v < size.Y; v++ {
		for u := 0; u < size.X; u++ {
			ray := mulVec(&inv, r3Vec(float64(u), float64(v), 1))
			x, y := ray.X/ray.Z, ray.Y/ray.Z
			if cam.Distortion != nil {
				x, y = cam.Distortion.Transform(x, y)
			}
			x, y = cam.Denormalize(x, y)
			k := v*size.X + u
			table.X[k] = float32(x)
			table.Y[k] = float32(y)
		}
	}
	return table, nil
}

// Size returns the table dimensions.
func (rt *RemapTable) Size() image.Point {
	return image.Pt(rt.Width, rt.Height)
}

// Apply warps img into the rectified frame.
func (rt *RemapTable) Apply(img *rimage.Image) (*rimage.Image, error) {
	if img.Size() != rt.Size() {
		return nil, errors.Wrapf(ErrConfig, "remap table is %v but image is %v", rt.Size(), img.Size())
	}
	return rimage.Remap(img, rt.X, rt.Y)
}
