package gmm

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestSingleColorScenario(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	m.BeginPass()
	for i := 0; i < 100; i++ {
		m.AddSample(2, Color{10, 20, 30})
	}
	require.NoError(t, m.EndPass())

	assert.Equal(t, StateFitted, m.State())
	assert.Equal(t, []float64{0, 0, 1, 0, 0}, m.Weights())
	assert.Equal(t, Color{10, 20, 30}, m.Mean(2))

	near := m.ComponentDensity(2, Color{10, 20, 30})
	far := m.ComponentDensity(2, Color{1000, 1000, 1000})
	assert.Greater(t, near, 1e6*far)
	assert.InDelta(t, 1000.0, near, 1e-6)
}

func TestIdenticalSamplesAreRegularized(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	m.BeginPass()
	for i := 0; i < 25; i++ {
		m.AddSample(1, Color{64, 128, 32})
	}

	// Before the fit the population covariance is exactly zero.
	acc := m.acc
	n := float64(acc.Count(1))
	for i := 0; i < Channels; i++ {
		for j := 0; j < Channels; j++ {
			mi, mj := acc.sums[1][i]/n, acc.sums[1][j]/n
			assert.Zero(t, acc.prods[1][i*Channels+j]/n-mi*mj)
		}
	}

	require.NoError(t, m.EndPass())

	cov := m.Covariance(1)
	assert.Equal(t, diag(0.01, 0.01, 0.01), cov)
	assertIdentity(t, m.InverseCovariance(1), cov, 1e-9)
	assert.Greater(t, m.Determinant(1), machineEpsilon)
}

func TestWeightsSumToOne(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m, err := New(nil)
	require.NoError(t, err)

	for pass := 0; pass < 3; pass++ {
		m.BeginPass()
		for i := 0; i < 500; i++ {
			c := rng.Intn(ComponentCount - pass)
			m.AddSample(c, Color{rng.Float64() * 255, rng.Float64() * 255, rng.Float64() * 255})
		}
		require.NoError(t, m.EndPass())

		assert.InDelta(t, 1.0, floats.Sum(m.Weights()), 1e-12, "pass %d", pass)
		for _, w := range m.Weights() {
			assert.GreaterOrEqual(t, w, 0.0)
		}
	}
}

func TestFitEstimates(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	samples := []Color{{1, 2, 3}, {3, 2, 1}, {2, 4, 2}, {2, 0, 2}, {2, 2, 4}, {2, 2, 0}}
	m.BeginPass()
	for _, x := range samples {
		m.AddSample(0, x)
	}
	m.AddSample(4, Color{9, 9, 9})
	m.AddSample(4, Color{11, 7, 9})
	require.NoError(t, m.EndPass())

	assert.Equal(t, 0.75, m.Weight(0))
	assert.Equal(t, 0.25, m.Weight(4))
	assert.Equal(t, Color{2, 2, 2}, m.Mean(0))

	// Population covariance of the six samples.
	want := [covSize]float64{
		2.0 / 6, 0, -2.0 / 6,
		0, 8.0 / 6, 0,
		-2.0 / 6, 0, 10.0 / 6,
	}
	got := m.Covariance(0)
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12)
	}

	// Component 4 is rank one, so it must have been regularised.
	assert.InDelta(t, 1.01, m.Covariance(4)[0], 1e-15)
	assert.InDelta(t, -1.0, m.Covariance(4)[1], 1e-15)
	assertIdentity(t, m.InverseCovariance(4), m.Covariance(4), 1e-9)
}

func TestEmptyComponentIsDisabledAndRevived(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	m.BeginPass()
	m.AddSample(0, Color{10, 10, 10})
	m.AddSample(1, Color{200, 200, 200})
	require.NoError(t, m.EndPass())
	require.Equal(t, 2, m.ActiveComponents())

	m.BeginPass()
	m.AddSample(0, Color{10, 10, 10})
	require.NoError(t, m.EndPass())

	assert.Equal(t, 1.0, m.Weight(0))
	assert.Zero(t, m.Weight(1))
	assert.Equal(t, Color{200, 200, 200}, m.Mean(1), "disabled component keeps its stale mean")
	assert.Zero(t, m.ComponentDensity(1, Color{200, 200, 200}))
	assert.Equal(t, 0, m.Classify(Color{200, 200, 200}))

	m.BeginPass()
	m.AddSample(0, Color{10, 10, 10})
	m.AddSample(1, Color{100, 100, 100})
	require.NoError(t, m.EndPass())

	assert.Equal(t, 0.5, m.Weight(1))
	assert.Equal(t, Color{100, 100, 100}, m.Mean(1))
	assert.Equal(t, 1, m.Classify(Color{100, 100, 100}))
}

func TestBeginPassDiscardsPreviousStatistics(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	m.BeginPass()
	m.AddSample(3, Color{1, 1, 1})
	m.BeginPass()
	m.AddSample(2, Color{5, 5, 5})
	require.NoError(t, m.EndPass())

	assert.Zero(t, m.Weight(3))
	assert.Equal(t, 1.0, m.Weight(2))
}

func TestProtocolMisuse(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	assert.ErrorIs(t, m.EndPass(), ErrNoPass)
	assert.Panics(t, func() { m.AddSample(0, Color{}) })

	m.BeginPass()
	assert.Panics(t, func() { m.AddSample(ComponentCount, Color{}) })
	m.AddSample(0, Color{1, 2, 3})
	require.NoError(t, m.EndPass())

	assert.Panics(t, func() { m.AddSample(0, Color{}) }, "a fitted model needs a new pass")
	assert.ErrorIs(t, m.EndPass(), ErrNoPass)
}

func TestMergedAccumulatorsMatchSinglePass(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	type sample struct {
		c int
		x Color
	}
	samples := make([]sample, 1000)
	for i := range samples {
		samples[i] = sample{
			c: rng.Intn(ComponentCount - 1),
			x: Color{float64(rng.Intn(256)), float64(rng.Intn(256)), float64(rng.Intn(256))},
		}
	}

	single, err := New(nil)
	require.NoError(t, err)
	single.BeginPass()
	for _, s := range samples {
		single.AddSample(s.c, s.x)
	}
	require.NoError(t, single.EndPass())

	parts := []*Accumulator{NewAccumulator(ComponentCount), NewAccumulator(ComponentCount), NewAccumulator(ComponentCount)}
	for i, s := range samples {
		parts[i%len(parts)].Add(s.c, s.x)
	}
	merged := NewAccumulator(ComponentCount)
	for _, p := range parts {
		require.NoError(t, merged.Merge(p))
	}
	assert.Equal(t, len(samples), merged.Total())

	split, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, split.Fit(merged))

	assert.Equal(t, StateFitted, split.State())
	assert.InDeltaSlice(t, single.Params(), split.Params(), 1e-9)
	for c := 0; c < ComponentCount; c++ {
		assert.Equal(t, single.acc.Count(c), merged.Count(c))
	}
}

func TestMergeShapeMismatch(t *testing.T) {
	a := NewAccumulator(5)
	b := NewAccumulator(3)
	b.Add(0, Color{1, 1, 1})

	assert.ErrorIs(t, a.Merge(b), ErrShapeMismatch)
	assert.Zero(t, a.Total())

	m, err := New(nil)
	require.NoError(t, err)
	assert.ErrorIs(t, m.Fit(b), ErrShapeMismatch)
}

func TestFailedFitLeavesModelUntouched(t *testing.T) {
	m, err := New(buildParams(ComponentCount, loadedComponents))
	require.NoError(t, err)
	before := m.Params()

	acc := NewAccumulator(ComponentCount)
	acc.Add(4, Color{7, 8, 9})
	acc.Add(4, Color{9, 8, 7})
	// A negative definite estimate for component 0 survives one inflation.
	acc.counts[0] = 1
	acc.total++
	acc.prods[0] = diag(-1, -1, -1)

	err = m.Fit(acc)
	assert.ErrorIs(t, err, ErrDegenerateCovariance)
	assert.Contains(t, err.Error(), "component 0")
	assert.Equal(t, before, m.Params())
	assert.Equal(t, StateIdle, m.State())
	assert.Positive(t, m.ComponentDensity(3, Color{200, 180, 160}))
}

func TestFailedEndPassKeepsPassOpen(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	m.BeginPass()
	m.AddSample(1, Color{1, 1, 1})
	m.acc.prods[1] = diag(-5, -5, -5)

	require.ErrorIs(t, m.EndPass(), ErrDegenerateCovariance)
	assert.Equal(t, StateAccumulating, m.State())
	assert.Zero(t, m.Weight(1))
	assert.Equal(t, 1, m.acc.Total())
}

func TestTotalWithoutSamplesPanics(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	acc := NewAccumulator(ComponentCount)
	acc.counts[2] = 3
	assert.Panics(t, func() { _ = m.Fit(acc) })
}

func TestAccumulatorReset(t *testing.T) {
	acc := NewAccumulator(2)
	acc.Add(1, Color{1, 2, 3})
	acc.Reset()

	assert.Zero(t, acc.Total())
	assert.Zero(t, acc.Count(1))
	assert.Equal(t, Color{}, acc.sums[1])
	assert.Equal(t, [covSize]float64{}, acc.prods[1])
}
