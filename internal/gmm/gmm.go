// Package gmm provides the Gaussian mixture colour model used to tell
// foreground pixels from background pixels during interactive segmentation.
//
// A Model holds K weighted 3-channel Gaussians in a flat parameter buffer
// laid out as
//
//	[w_0 .. w_K-1, mean_0(3) .. mean_K-1(3), cov_0(9) .. cov_K-1(9)]
//
// with covariances stored row-major. The same layout is used for
// persistence, see Params and New.
package gmm

import (
	"fmt"
	"math"
)

const (
	// ComponentCount is the number of Gaussians in a default model.
	ComponentCount = 5

	// MaxComponents bounds the component count of any model.
	MaxComponents = 64

	// Channels is the number of colour channels per sample.
	Channels = 3

	covSize = Channels * Channels

	// ParamsPerComponent is the number of float64 values each component
	// occupies in the flat parameter buffer (weight, mean, covariance).
	ParamsPerComponent = 1 + Channels + covSize

	// SingularityThreshold is the determinant at or below which a fitted
	// covariance gets regularised.
	SingularityThreshold = 1e-6

	// LearningRegularization is the variance added to each diagonal entry
	// of a near-singular covariance after a learning pass.
	LearningRegularization = 0.01

	// machineEpsilon is DBL_EPSILON.
	machineEpsilon = 0x1p-52
)

// Color is a single 3-channel colour sample.
type Color [Channels]float64

// State is the position of a Model in the learning protocol.
type State int

const (
	StateIdle         State = iota // never learned
	StateAccumulating              // between BeginPass and EndPass
	StateFitted                    // estimated at least once
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateFitted:
		return "fitted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Model is a mixture of Gaussians over colour samples.
// A Model is not safe for concurrent mutation.
type Model struct {
	k      int
	params []float64

	// Cached per component, valid only while the weight is positive.
	inverse     [][covSize]float64
	determinant []float64

	acc   *Accumulator
	state State
}

// ParamsLen returns the length of the flat parameter buffer for k components.
func ParamsLen(k int) int {
	return k * ParamsPerComponent
}

// New builds a model with ComponentCount components. A nil or empty params
// yields a zero model (all weights 0); otherwise params must hold exactly
// ParamsLen(ComponentCount) finite values.
func New(params []float64) (*Model, error) {
	return NewWithComponents(ComponentCount, params)
}

// NewWithComponents builds a model with k components from params.
//
// The buffer is copied. Weights must not be negative, and every component
// with a positive weight must have a non-degenerate covariance; a loaded
// model is never silently repaired.
func NewWithComponents(k int, params []float64) (*Model, error) {
	if k <= 0 || k > MaxComponents {
		return nil, fmt.Errorf("%w: component count %d not in [1, %d]", ErrShapeMismatch, k, MaxComponents)
	}
	if len(params) != 0 && len(params) != ParamsLen(k) {
		return nil, fmt.Errorf("%w: got %d values, want %d (%d components x %d)",
			ErrShapeMismatch, len(params), ParamsLen(k), k, ParamsPerComponent)
	}

	m := &Model{
		k:           k,
		params:      make([]float64, ParamsLen(k)),
		inverse:     make([][covSize]float64, k),
		determinant: make([]float64, k),
		acc:         NewAccumulator(k),
	}

	if len(params) == 0 {
		return m, nil
	}
	for i, v := range params {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: value %d is %v", ErrShapeMismatch, i, v)
		}
	}
	for c, w := range params[:k] {
		if w < 0 {
			return nil, fmt.Errorf("%w: component %d has negative weight %g", ErrShapeMismatch, c, w)
		}
	}
	copy(m.params, params)

	for c := 0; c < k; c++ {
		if !(m.params[c] > 0) {
			continue
		}
		inv, det, err := invert(m.covRef(c), 0)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", c, err)
		}
		m.inverse[c] = inv
		m.determinant[c] = det
	}

	return m, nil
}

// Clone returns an independent copy of m with an empty accumulator.
// An open learning pass is not carried over.
func (m *Model) Clone() *Model {
	c := &Model{
		k:           m.k,
		params:      append([]float64(nil), m.params...),
		inverse:     append([][covSize]float64(nil), m.inverse...),
		determinant: append([]float64(nil), m.determinant...),
		acc:         NewAccumulator(m.k),
		state:       m.state,
	}
	if c.state == StateAccumulating {
		c.state = StateIdle
		if m.ActiveComponents() > 0 {
			c.state = StateFitted
		}
	}
	return c
}

// Components returns the number of mixture components.
func (m *Model) Components() int {
	return m.k
}

// State returns the model's position in the learning protocol.
func (m *Model) State() State {
	return m.state
}

// Params returns a copy of the flat parameter buffer.
func (m *Model) Params() []float64 {
	out := make([]float64, len(m.params))
	copy(out, m.params)
	return out
}

// Weights returns a copy of the component weights.
func (m *Model) Weights() []float64 {
	out := make([]float64, m.k)
	copy(out, m.params[:m.k])
	return out
}

// Weight returns the weight of component c. A weight of 0 marks a disabled
// component whose mean and covariance are stale.
func (m *Model) Weight(c int) float64 {
	m.checkComponent(c)
	return m.params[c]
}

// Mean returns the mean of component c.
func (m *Model) Mean(c int) Color {
	return Color(*m.meanRef(c))
}

// Covariance returns the row-major covariance of component c.
func (m *Model) Covariance(c int) [covSize]float64 {
	return *m.covRef(c)
}

// InverseCovariance returns the cached row-major inverse covariance of
// component c. It is meaningless while the component is disabled.
func (m *Model) InverseCovariance(c int) [covSize]float64 {
	m.checkComponent(c)
	return m.inverse[c]
}

// Determinant returns the cached covariance determinant of component c.
func (m *Model) Determinant(c int) float64 {
	m.checkComponent(c)
	return m.determinant[c]
}

// ActiveComponents returns how many components have a positive weight.
func (m *Model) ActiveComponents() int {
	n := 0
	for c := 0; c < m.k; c++ {
		if m.params[c] > 0 {
			n++
		}
	}
	return n
}

// meanOffset and covOffset locate component c inside params:
// weights occupy [0, k), means [k, 4k), covariances [4k, 13k).
func (m *Model) meanOffset(c int) int {
	return m.k + c*Channels
}

func (m *Model) covOffset(c int) int {
	return m.k*(1+Channels) + c*covSize
}

func (m *Model) meanRef(c int) *[Channels]float64 {
	m.checkComponent(c)
	off := m.meanOffset(c)
	return (*[Channels]float64)(m.params[off : off+Channels])
}

func (m *Model) covRef(c int) *[covSize]float64 {
	m.checkComponent(c)
	off := m.covOffset(c)
	return (*[covSize]float64)(m.params[off : off+covSize])
}

func (m *Model) checkComponent(c int) {
	if c < 0 || c >= m.k {
		panic(fmt.Sprintf("gmm: component %d out of range [0, %d)", c, m.k))
	}
}
