package gmm

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Component is a copy of one mixture component in gonum form.
type Component struct {
	Weight     float64
	Mean       *mat.VecDense
	Covariance *mat.SymDense // built from the upper triangle
}

// Component returns a copy of component c.
func (m *Model) Component(c int) Component {
	mu := m.Mean(c)
	cov := m.Covariance(c)

	sym := mat.NewSymDense(Channels, nil)
	for i := 0; i < Channels; i++ {
		for j := i; j < Channels; j++ {
			sym.SetSym(i, j, cov[i*Channels+j])
		}
	}

	return Component{
		Weight:     m.Weight(c),
		Mean:       mat.NewVecDense(Channels, mu[:]),
		Covariance: sym,
	}
}

// Normal returns the component as a normalised multivariate normal
// distribution. ok is false when the component is disabled or its
// covariance is not positive definite.
func (c Component) Normal() (n *distmv.Normal, ok bool) {
	if !(c.Weight > 0) {
		return nil, false
	}
	return distmv.NewNormal(mat.Col(nil, 0, c.Mean), c.Covariance, nil)
}
