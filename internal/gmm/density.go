package gmm

import (
	"fmt"
	"math"
)

// JointDensity returns the mixture density of x: the weighted sum of the
// component densities.
func (m *Model) JointDensity(x Color) float64 {
	res := 0.0
	for c := 0; c < m.k; c++ {
		res += m.params[c] * m.ComponentDensity(c, x)
	}
	return res
}

// ComponentDensity returns the Gaussian density of x under component c,
// without the (2*pi)^(-3/2) constant. Disabled components return 0.
func (m *Model) ComponentDensity(c int, x Color) float64 {
	m.checkComponent(c)
	if !(m.params[c] > 0) {
		return 0
	}

	det := m.determinant[c]
	if !(det > machineEpsilon) {
		panic(fmt.Sprintf("gmm: component %d has weight %g but no valid inverse (determinant %g)",
			c, m.params[c], det))
	}

	mu := m.meanRef(c)
	d0 := x[0] - mu[0]
	d1 := x[1] - mu[1]
	d2 := x[2] - mu[2]

	inv := &m.inverse[c]
	mahalanobis := d0*(d0*inv[0]+d1*inv[3]+d2*inv[6]) +
		d1*(d0*inv[1]+d1*inv[4]+d2*inv[7]) +
		d2*(d0*inv[2]+d1*inv[5]+d2*inv[8])

	return 1 / math.Sqrt(det) * math.Exp(-0.5*mahalanobis)
}

// Classify returns the component under which x is most probable.
//
// The search keeps the first component whose density strictly exceeds the
// best so far, starting from 0. Ties go to the lower index, disabled
// components never win, and when every density is 0 the result is 0.
func (m *Model) Classify(x Color) int {
	k := 0
	best := 0.0
	for c := 0; c < m.k; c++ {
		p := m.ComponentDensity(c, x)
		if p > best {
			k = c
			best = p
		}
	}
	return k
}
