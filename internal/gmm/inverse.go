package gmm

import "fmt"

// determinant3 expands a row-major 3x3 matrix along its first row.
func determinant3(c *[covSize]float64) float64 {
	return c[0]*(c[4]*c[8]-c[5]*c[7]) -
		c[1]*(c[3]*c[8]-c[5]*c[6]) +
		c[2]*(c[3]*c[7]-c[4]*c[6])
}

// invert returns the inverse and determinant of the covariance c.
//
// When the determinant is at or below SingularityThreshold and tol is
// positive, tol is added to each diagonal entry of c (in place) and the
// determinant recomputed once. A determinant that still does not exceed
// machine epsilon yields ErrDegenerateCovariance.
func invert(c *[covSize]float64, tol float64) (inv [covSize]float64, det float64, err error) {
	det = determinant3(c)
	if det <= SingularityThreshold && tol > 0 {
		// White noise on the diagonal.
		c[0] += tol
		c[4] += tol
		c[8] += tol
		det = determinant3(c)
	}

	if !(det > machineEpsilon) {
		return inv, det, fmt.Errorf("%w: determinant %g", ErrDegenerateCovariance, det)
	}

	// Adjugate over determinant.
	r := 1 / det
	inv[0] = (c[4]*c[8] - c[5]*c[7]) * r
	inv[1] = -(c[1]*c[8] - c[2]*c[7]) * r
	inv[2] = (c[1]*c[5] - c[2]*c[4]) * r
	inv[3] = -(c[3]*c[8] - c[5]*c[6]) * r
	inv[4] = (c[0]*c[8] - c[2]*c[6]) * r
	inv[5] = -(c[0]*c[5] - c[2]*c[3]) * r
	inv[6] = (c[3]*c[7] - c[4]*c[6]) * r
	inv[7] = -(c[0]*c[7] - c[1]*c[6]) * r
	inv[8] = (c[0]*c[4] - c[1]*c[3]) * r

	return inv, det, nil
}
