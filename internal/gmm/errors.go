package gmm

import "errors"

var (
	// ErrShapeMismatch reports a parameter buffer or accumulator whose shape
	// does not match the model.
	ErrShapeMismatch = errors.New("gmm: parameter shape mismatch")

	// ErrDegenerateCovariance reports a covariance whose determinant is not
	// above machine epsilon, even after regularisation where it applies.
	ErrDegenerateCovariance = errors.New("gmm: degenerate covariance")

	// ErrNoPass reports EndPass without a preceding BeginPass.
	ErrNoPass = errors.New("gmm: no learning pass in progress")
)
