package transform

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// BrownConrady is the lens model stored as D1/D2 in calibration files. Coefficients keep the
// OpenCV order k1, k2, p1, p2, k3.
type BrownConrady struct {
	RadialK1     float64 `json:"rk1"`
	RadialK2     float64 `json:"rk2"`
	TangentialP1 float64 `json:"tp1"`
	TangentialP2 float64 `json:"tp2"`
	RadialK3     float64 `json:"rk3"`
}

// NewBrownConrady reads up to five coefficients in OpenCV order. Missing ones are zero. Longer
// lists are accepted only when the extra (rational model) terms are all zero.
func NewBrownConrady(inp []float64) (*BrownConrady, error) {
	for i := 5; i < len(inp); i++ {
		if inp[i] != 0 {
			return nil, InvalidDistortionError("only k1, k2, p1, p2 and k3 are supported")
		}
	}
	coeffs := make([]float64, 5)
	copy(coeffs, inp)
	return &BrownConrady{coeffs[0], coeffs[1], coeffs[2], coeffs[3], coeffs[4]}, nil
}

// NewBrownConradyFromDense reads a 1xN or Nx1 coefficient matrix. A nil matrix means no distortion.
func NewBrownConradyFromDense(d *mat.Dense) (*BrownConrady, error) {
	if d == nil {
		return &BrownConrady{}, nil
	}
	rows, cols := d.Dims()
	if rows != 1 && cols != 1 {
		return nil, InvalidDistortionError("coefficients must be a row or column vector")
	}
	vals := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			vals = append(vals, d.At(i, j))
		}
	}
	return NewBrownConrady(vals)
}

// CheckValid checks that every coefficient is finite.
func (bc *BrownConrady) CheckValid() error {
	if bc == nil {
		return InvalidDistortionError("BrownConrady shaped distortion coefficients not provided")
	}
	for _, v := range bc.Parameters() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return InvalidDistortionError("coefficients must be finite")
		}
	}
	return nil
}

// ModelType returns the type of distortion model.
func (bc *BrownConrady) ModelType() DistortionType {
	return BrownConradyDistortionType
}

// Parameters returns the coefficients in OpenCV order.
func (bc *BrownConrady) Parameters() []float64 {
	if bc == nil {
		return []float64{}
	}
	return []float64{bc.RadialK1, bc.RadialK2, bc.TangentialP1, bc.TangentialP2, bc.RadialK3}
}

// Dense returns the coefficients as a 1x5 matrix.
func (bc *BrownConrady) Dense() *mat.Dense {
	return mat.NewDense(1, 5, bc.Parameters())
}

// Transform distorts a normalized image point:
//
//	x_d = x*(1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p1*x*y + p2*(r² + 2*x²)
//	y_d = y*(1 + k1*r² + k2*r⁴ + k3*r⁶) + p1*(r² + 2*y²) + 2*p2*x*y
func (bc *BrownConrady) Transform(x, y float64) (float64, float64) {
	if bc == nil {
		return x, y
	}
	r2 := x*x + y*y
	radial := 1 + ((bc.RadialK3*r2+bc.RadialK2)*r2+bc.RadialK1)*r2
	xd := x*radial + 2*bc.TangentialP1*x*y + bc.TangentialP2*(r2+2*x*x)
	yd := y*radial + bc.TangentialP1*(r2+2*y*y) + 2*bc.TangentialP2*x*y
	return xd, yd
}
