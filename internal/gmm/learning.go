package gmm

import "fmt"

// Accumulator collects the sufficient statistics of one learning pass:
// per-component sums, sums of outer products and sample counts.
//
// Statistics are additive, so samples may be split across several
// accumulators (one per worker) and combined with Merge before Fit.
type Accumulator struct {
	sums   []Color
	prods  [][covSize]float64
	counts []int
	total  int
}

// NewAccumulator returns an empty accumulator for k components.
func NewAccumulator(k int) *Accumulator {
	return &Accumulator{
		sums:   make([]Color, k),
		prods:  make([][covSize]float64, k),
		counts: make([]int, k),
	}
}

// Components returns the number of components the accumulator tracks.
func (a *Accumulator) Components() int {
	return len(a.counts)
}

// Reset zeroes all statistics.
func (a *Accumulator) Reset() {
	for c := range a.counts {
		a.sums[c] = Color{}
		a.prods[c] = [covSize]float64{}
		a.counts[c] = 0
	}
	a.total = 0
}

// Add records sample x for component c. c must be in [0, Components()).
func (a *Accumulator) Add(c int, x Color) {
	s := &a.sums[c]
	s[0] += x[0]
	s[1] += x[1]
	s[2] += x[2]

	p := &a.prods[c]
	p[0] += x[0] * x[0]
	p[1] += x[0] * x[1]
	p[2] += x[0] * x[2]
	p[3] += x[1] * x[0]
	p[4] += x[1] * x[1]
	p[5] += x[1] * x[2]
	p[6] += x[2] * x[0]
	p[7] += x[2] * x[1]
	p[8] += x[2] * x[2]

	a.counts[c]++
	a.total++
}

// Merge adds the statistics of other into a.
func (a *Accumulator) Merge(other *Accumulator) error {
	if other.Components() != a.Components() {
		return fmt.Errorf("%w: merging %d-component accumulator into %d-component accumulator",
			ErrShapeMismatch, other.Components(), a.Components())
	}
	for c := range a.counts {
		for i := 0; i < Channels; i++ {
			a.sums[c][i] += other.sums[c][i]
		}
		for i := 0; i < covSize; i++ {
			a.prods[c][i] += other.prods[c][i]
		}
		a.counts[c] += other.counts[c]
	}
	a.total += other.total
	return nil
}

// Count returns the number of samples recorded for component c.
func (a *Accumulator) Count(c int) int {
	return a.counts[c]
}

// Total returns the number of samples recorded across all components.
func (a *Accumulator) Total() int {
	return a.total
}

// BeginPass starts a learning pass, discarding any statistics left over
// from an earlier one.
func (m *Model) BeginPass() {
	m.acc.Reset()
	m.state = StateAccumulating
}

// AddSample records colour x as belonging to component c in the current
// pass. It panics outside a pass or when c is out of range.
func (m *Model) AddSample(c int, x Color) {
	if m.state != StateAccumulating {
		panic("gmm: AddSample called outside a learning pass")
	}
	m.acc.Add(c, x)
}

// EndPass re-estimates the model from the samples of the current pass.
// On error the model is left as it was and the pass stays open.
func (m *Model) EndPass() error {
	if m.state != StateAccumulating {
		return ErrNoPass
	}
	return m.Fit(m.acc)
}

// fitted is the estimate for a single component, staged until every
// component has been inverted successfully.
type fitted struct {
	weight float64
	mean   [Channels]float64
	cov    [covSize]float64
	inv    [covSize]float64
	det    float64
}

// Fit re-estimates every component from acc and marks the model fitted.
//
// Components without samples are disabled (weight 0) and keep their stale
// mean and covariance. The others get weight n/total, the sample mean and
// the population covariance, regularised by LearningRegularization when
// near-singular. Nothing is applied unless all components succeed.
func (m *Model) Fit(acc *Accumulator) error {
	if acc.Components() != m.k {
		return fmt.Errorf("%w: accumulator has %d components, model has %d",
			ErrShapeMismatch, acc.Components(), m.k)
	}

	staged := make([]fitted, m.k)
	for c := 0; c < m.k; c++ {
		n := acc.counts[c]
		if n == 0 {
			continue
		}
		if acc.total <= 0 {
			panic(fmt.Sprintf("gmm: component %d has %d samples but the pass total is %d", c, n, acc.total))
		}

		f := &staged[c]
		fn := float64(n)
		f.weight = fn / float64(acc.total)

		s := &acc.sums[c]
		f.mean = [Channels]float64{s[0] / fn, s[1] / fn, s[2] / fn}

		p := &acc.prods[c]
		for i := 0; i < Channels; i++ {
			for j := 0; j < Channels; j++ {
				f.cov[i*Channels+j] = p[i*Channels+j]/fn - f.mean[i]*f.mean[j]
			}
		}

		inv, det, err := invert(&f.cov, LearningRegularization)
		if err != nil {
			return fmt.Errorf("component %d: %w", c, err)
		}
		f.inv = inv
		f.det = det
	}

	for c := 0; c < m.k; c++ {
		if acc.counts[c] == 0 {
			m.params[c] = 0
			continue
		}
		f := &staged[c]
		m.params[c] = f.weight
		*m.meanRef(c) = f.mean
		*m.covRef(c) = f.cov
		m.inverse[c] = f.inv
		m.determinant[c] = f.det
	}

	m.state = StateFitted
	return nil
}
