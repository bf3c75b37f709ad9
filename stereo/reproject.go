package stereo

import (
	"image"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/hyyh619/StereoVision/rimage"
)

// float32Epsilon is the smallest positive depth treated as valid.
const float32Epsilon = 1.1920929e-07

// Reprojection is the 4x4 disparity to depth matrix Q of a rectified pair.
type Reprojection [4][4]float64

// NewReprojection copies a 4x4 matrix.
func NewReprojection(q mat.Matrix) (Reprojection, error) {
	var r Reprojection
	if q == nil {
		return r, errors.Wrap(ErrConfig, "reprojection matrix is missing")
	}
	if rows, cols := q.Dims(); rows != 4 || cols != 4 {
		return r, errors.Wrapf(ErrConfig, "reprojection matrix must be 4x4, got %dx%d", rows, cols)
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			r[i][j] = q.At(i, j)
		}
	}
	return r, nil
}

// Point reprojects pixel (x, y) with fixed point disparity d. The factor of 16 undoes the
// disparity scale.
func (r *Reprojection) Point(x, y int, d int16) r3.Vector {
	w := r[3][2]*float64(d) + r[3][3]
	return r3.Vector{
		X: (float64(x) + r[0][3]) / w * rimage.DisparityScale,
		Y: (float64(y) + r[1][3]) / w * rimage.DisparityScale,
		Z: r[2][3] / w * rimage.DisparityScale,
	}
}

// Depth is the Z component of Point.
func (r *Reprojection) Depth(x, y int, d int16) float64 {
	w := r[3][2]*float64(d) + r[3][3]
	return r[2][3] / w * rimage.DisparityScale
}

var nanVector = r3.Vector{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}

// ReprojectPixel returns the 3D point seen at pixel. Pixels outside the map yield NaN.
func ReprojectPixel(disp *rimage.DisparityMap, q Reprojection, pixel image.Point) r3.Vector {
	if !disp.HasData() || !disp.Contains(pixel.X, pixel.Y) {
		return nanVector
	}
	return q.Point(pixel.X, pixel.Y, disp.Get(pixel))
}

// DepthAtPixel returns the depth seen at pixel, NaN outside the map.
func DepthAtPixel(disp *rimage.DisparityMap, q Reprojection, pixel image.Point) float64 {
	if !disp.HasData() || !disp.Contains(pixel.X, pixel.Y) {
		return math.NaN()
	}
	return q.Depth(pixel.X, pixel.Y, disp.Get(pixel))
}

// IsValidDepth is true for finite depths above float32 epsilon.
func IsValidDepth(z float64) bool {
	return !math.IsNaN(z) && !math.IsInf(z, 0) && z > float32Epsilon
}
