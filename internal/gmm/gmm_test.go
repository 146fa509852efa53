package gmm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testComponent struct {
	weight float64
	mean   Color
	cov    [covSize]float64
}

// buildParams lays components out in the persisted order.
func buildParams(k int, comps map[int]testComponent) []float64 {
	params := make([]float64, ParamsLen(k))
	for c, tc := range comps {
		params[c] = tc.weight
		copy(params[k+c*Channels:], tc.mean[:])
		copy(params[k*(1+Channels)+c*covSize:], tc.cov[:])
	}
	return params
}

func diag(a, b, c float64) [covSize]float64 {
	return [covSize]float64{a, 0, 0, 0, b, 0, 0, 0, c}
}

var (
	warmCov = [covSize]float64{
		30, 5, 2,
		5, 20, 1,
		2, 1, 10,
	}
	loadedComponents = map[int]testComponent{
		0: {weight: 0.6, mean: Color{100, 50, 20}, cov: warmCov},
		3: {weight: 0.4, mean: Color{200, 180, 160}, cov: diag(50, 40, 30)},
	}
)

func TestNewZeroModel(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	assert.Equal(t, ComponentCount, m.Components())
	assert.Len(t, m.Params(), ComponentCount*13)
	assert.Equal(t, StateIdle, m.State())
	assert.Zero(t, m.ActiveComponents())
	for _, v := range m.Params() {
		assert.Zero(t, v)
	}

	m, err = New([]float64{})
	require.NoError(t, err)
	assert.Len(t, m.Params(), 65)
}

func TestNewShapeMismatch(t *testing.T) {
	tests := []struct {
		name   string
		k      int
		params []float64
	}{
		{"too short", ComponentCount, make([]float64, 64)},
		{"too long", ComponentCount, make([]float64, 66)},
		{"sized for other k", ComponentCount, make([]float64, ParamsLen(3))},
		{"nan", 1, []float64{math.NaN(), 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"inf", 1, []float64{0, math.Inf(1), 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"no components", 0, nil},
		{"too many components", MaxComponents + 1, nil},
		{"huge component count", math.MaxInt, nil},
		{"negative weight", 1, []float64{-0.5, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewWithComponents(tt.k, tt.params)
			assert.ErrorIs(t, err, ErrShapeMismatch)
			assert.Nil(t, m)
		})
	}
}

func TestNewLoadsAndInverts(t *testing.T) {
	params := buildParams(ComponentCount, loadedComponents)

	m, err := New(params)
	require.NoError(t, err)

	assert.Equal(t, 2, m.ActiveComponents())
	assert.Equal(t, []float64{0.6, 0, 0, 0.4, 0}, m.Weights())
	assert.Equal(t, Color{100, 50, 20}, m.Mean(0))
	assert.Equal(t, warmCov, m.Covariance(0))
	assert.InDelta(t, determinant3(&warmCov), m.Determinant(0), 1e-9)
	assert.InDelta(t, 50.0*40*30, m.Determinant(3), 1e-9)
	assert.Zero(t, m.Determinant(1), "disabled components are not inverted")
}

func TestNewRejectsDegenerateLoadedComponent(t *testing.T) {
	params := buildParams(ComponentCount, map[int]testComponent{
		2: {weight: 1, mean: Color{1, 2, 3}},
	})
	before := append([]float64(nil), params...)

	m, err := New(params)
	assert.ErrorIs(t, err, ErrDegenerateCovariance)
	assert.Nil(t, m)
	assert.Equal(t, before, params, "a loaded model is never repaired")
}

func TestNewIgnoresDisabledGarbage(t *testing.T) {
	// Stale, singular parameters behind a zero weight are never inspected.
	params := buildParams(ComponentCount, map[int]testComponent{
		1: {weight: 0, mean: Color{9, 9, 9}},
		4: {weight: 1, mean: Color{1, 1, 1}, cov: diag(1, 1, 1)},
	})

	m, err := New(params)
	require.NoError(t, err)
	assert.Equal(t, 1, m.ActiveComponents())
}

func TestParamsRoundTripWithoutHiddenMutation(t *testing.T) {
	params := buildParams(ComponentCount, loadedComponents)
	before := append([]float64(nil), params...)

	m, err := New(params)
	require.NoError(t, err)

	for _, x := range []Color{{100, 50, 20}, {0, 0, 0}, {255, 255, 255}, {200, 181, 158}} {
		m.JointDensity(x)
		m.Classify(x)
		for c := 0; c < m.Components(); c++ {
			m.ComponentDensity(c, x)
		}
	}

	assert.Equal(t, before, params)
	assert.Equal(t, before, m.Params())

	reloaded, err := New(m.Params())
	require.NoError(t, err)
	assert.Equal(t, m.Params(), reloaded.Params())
}

func TestParamsReturnsCopy(t *testing.T) {
	m, err := New(buildParams(ComponentCount, loadedComponents))
	require.NoError(t, err)

	p := m.Params()
	p[0] = 42
	assert.Equal(t, 0.6, m.Weight(0))
}

func TestSmallerComponentCount(t *testing.T) {
	params := buildParams(2, map[int]testComponent{
		1: {weight: 1, mean: Color{5, 5, 5}, cov: diag(2, 2, 2)},
	})

	m, err := NewWithComponents(2, params)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Components())
	assert.Equal(t, Color{5, 5, 5}, m.Mean(1))
	assert.Equal(t, 1, m.Classify(Color{5, 5, 5}))
}

func TestAccessorsPanicOutOfRange(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	assert.Panics(t, func() { m.Weight(ComponentCount) })
	assert.Panics(t, func() { m.Mean(-1) })
	assert.Panics(t, func() { m.ComponentDensity(7, Color{}) })
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "accumulating", StateAccumulating.String())
	assert.Equal(t, "fitted", StateFitted.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestCloneIsIndependent(t *testing.T) {
	m := loadedModel(t)
	c := m.Clone()

	assert.Equal(t, m.Params(), c.Params())
	x := Color{101, 52, 19}
	assert.Equal(t, m.JointDensity(x), c.JointDensity(x))

	c.BeginPass()
	c.AddSample(2, Color{1, 2, 3})
	require.NoError(t, c.EndPass())

	assert.Equal(t, 1.0, c.Weight(2))
	assert.Equal(t, 0.6, m.Weight(0), "the source model is unaffected")
	assert.Equal(t, StateIdle, m.State())

	m.BeginPass()
	assert.Equal(t, StateFitted, m.Clone().State(), "an open pass is not carried over")
}
