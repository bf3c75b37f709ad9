package transform

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Rodrigues converts a rotation vector (axis scaled by angle in radians) to a 3x3 rotation matrix.
func Rodrigues(rvec r3.Vector) *mat.Dense {
	theta := rvec.Norm()
	if theta < 1e-12 {
		return eye(3)
	}
	k := rvec.Mul(1 / theta)
	c, s := math.Cos(theta), math.Sin(theta)
	oneMinusC := 1 - c

	return mat.NewDense(3, 3, []float64{
		c + oneMinusC*k.X*k.X, oneMinusC*k.X*k.Y - s*k.Z, oneMinusC*k.X*k.Z + s*k.Y,
		oneMinusC*k.Y*k.X + s*k.Z, c + oneMinusC*k.Y*k.Y, oneMinusC*k.Y*k.Z - s*k.X,
		oneMinusC*k.Z*k.X - s*k.Y, oneMinusC*k.Z*k.Y + s*k.X, c + oneMinusC*k.Z*k.Z,
	})
}

// RotationVector is the inverse of Rodrigues. The input is first projected onto the closest
// orthonormal matrix.
func RotationVector(rot mat.Matrix) (r3.Vector, error) {
	if rows, cols := rot.Dims(); rows != 3 || cols != 3 {
		return r3.Vector{}, errors.Errorf("rotation matrix must be 3x3, got %dx%d", rows, cols)
	}
	mats := performSVD(mat.DenseCopyOf(rot))
	if mats == nil {
		return r3.Vector{}, errors.New("rotation matrix SVD did not converge")
	}
	var r mat.Dense
	r.Mul(mats.U, mats.VT)

	rx := r.At(2, 1) - r.At(1, 2)
	ry := r.At(0, 2) - r.At(2, 0)
	rz := r.At(1, 0) - r.At(0, 1)

	s := math.Sqrt((rx*rx + ry*ry + rz*rz) * 0.25)
	c := (r.At(0, 0) + r.At(1, 1) + r.At(2, 2) - 1) * 0.5
	c = math.Max(-1, math.Min(1, c))
	theta := math.Acos(c)

	if s >= 1e-5 {
		vth := theta / (2 * s)
		return r3.Vector{X: rx * vth, Y: ry * vth, Z: rz * vth}, nil
	}
	if c > 0 {
		return r3.Vector{}, nil
	}

	// theta is close to pi, the axis comes from the diagonal.
	axis := r3.Vector{
		X: math.Sqrt(math.Max((r.At(0, 0)+1)*0.5, 0)),
		Y: math.Sqrt(math.Max((r.At(1, 1)+1)*0.5, 0)),
		Z: math.Sqrt(math.Max((r.At(2, 2)+1)*0.5, 0)),
	}
	if r.At(0, 1) < 0 {
		axis.Y = -axis.Y
	}
	if r.At(0, 2) < 0 {
		axis.Z = -axis.Z
	}
	if math.Abs(axis.X) < math.Abs(axis.Y) && math.Abs(axis.X) < math.Abs(axis.Z) &&
		(r.At(1, 2) > 0) != (axis.Y*axis.Z > 0) {
		axis.Z = -axis.Z
	}
	return axis.Normalize().Mul(theta), nil
}

// rotationFromStore accepts either a 3x3 matrix or a 3x1/1x3 rotation vector.
func rotationFromStore(m *mat.Dense) (*mat.Dense, error) {
	rows, cols := m.Dims()
	switch {
	case rows == 3 && cols == 3:
		return mat.DenseCopyOf(m), nil
	case rows*cols == 3 && (rows == 1 || cols == 1):
		raw := m.RawMatrix()
		vals := make([]float64, 0, 3)
		for i := 0; i < rows; i++ {
			vals = append(vals, raw.Data[i*raw.Stride:i*raw.Stride+cols]...)
		}
		return Rodrigues(r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]}), nil
	default:
		return nil, errors.Errorf("rotation must be 3x3 or a 3 element vector, got %dx%d", rows, cols)
	}
}

func vectorFromDense(m *mat.Dense) (r3.Vector, error) {
	rows, cols := m.Dims()
	if rows*cols != 3 || (rows != 1 && cols != 1) {
		return r3.Vector{}, errors.Errorf("expected a 3 element vector, got %dx%d", rows, cols)
	}
	if cols == 1 {
		return r3.Vector{X: m.At(0, 0), Y: m.At(1, 0), Z: m.At(2, 0)}, nil
	}
	return r3.Vector{X: m.At(0, 0), Y: m.At(0, 1), Z: m.At(0, 2)}, nil
}

func mulVec(m mat.Matrix, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}

func transposeDense(m *mat.Dense) *mat.Dense {
	nRows, nCols := m.Dims()
	m2 := mat.NewDense(nCols, nRows, nil)
	m2.Copy(m.T())
	return m2
}

// eye create an identity matrix of size nxn.
func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

type matsSVD struct {
	U  *mat.Dense
	VT *mat.Dense
}

func performSVD(inputMatrix *mat.Dense) *matsSVD {
	var svd mat.SVD
	if ok := svd.Factorize(inputMatrix, mat.SVDFull); !ok {
		return nil
	}
	u, v, vt := &mat.Dense{}, &mat.Dense{}, &mat.Dense{}
	svd.UTo(u)
	svd.VTo(v)
	vt.CloneFrom(v.T())
	return &matsSVD{U: u, VT: vt}
}

func r3Vec(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}
