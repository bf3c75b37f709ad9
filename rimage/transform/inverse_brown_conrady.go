package transform

// Undistort inverts Transform with Newton-Raphson iterations started at the distorted point.
func (bc *BrownConrady) Undistort(xd, yd float64) (float64, float64) {
	if bc == nil {
		return xd, yd
	}
	k1, k2, k3 := bc.RadialK1, bc.RadialK2, bc.RadialK3
	p1, p2 := bc.TangentialP1, bc.TangentialP2

	xu, yu := xd, yd
	const maxIterations = 20
	const tolerance = 1e-12

	for i := 0; i < maxIterations; i++ {
		xEst, yEst := bc.Transform(xu, yu)
		errX := xEst - xd
		errY := yEst - yd
		if errX*errX+errY*errY < tolerance*tolerance {
			break
		}

		r2 := xu*xu + yu*yu
		radial := 1 + ((k3*r2+k2)*r2+k1)*r2
		dRadial := 2 * (k1 + 2*k2*r2 + 3*k3*r2*r2)

		// Jacobian of Transform at (xu, yu).
		dxdx := radial + xu*xu*dRadial + 2*p1*yu + 6*p2*xu
		dxdy := xu*yu*dRadial + 2*p1*xu + 2*p2*yu
		dydx := xu*yu*dRadial + 2*p1*xu + 2*p2*yu
		dydy := radial + yu*yu*dRadial + 6*p1*yu + 2*p2*xu

		det := dxdx*dydy - dxdy*dydx
		if det == 0 {
			break
		}
		xu -= (dydy*errX - dxdy*errY) / det
		yu -= (-dydx*errX + dxdx*errY) / det
	}
	return xu, yu
}
