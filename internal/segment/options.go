package segment

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"colormix/internal/gmm"
)

// Options configures model initialisation and learning.
type Options struct {
	Components       int     `yaml:"components"`        // Gaussians per model
	Iterations       int     `yaml:"iterations"`        // assign/learn/relabel rounds
	Workers          int     `yaml:"workers"`           // goroutines accumulating statistics
	KMeansAttempts   int     `yaml:"kmeans_attempts"`   // clustering restarts during Init
	KMeansIterations int     `yaml:"kmeans_iterations"` // iterations per clustering attempt
	KMeansEpsilon    float64 `yaml:"kmeans_epsilon"`    // clustering convergence threshold, 0 disables it
}

// DefaultOptions returns default segmentation options.
func DefaultOptions() Options {
	return Options{
		Components:       gmm.ComponentCount,
		Iterations:       1,
		Workers:          runtime.GOMAXPROCS(0),
		KMeansAttempts:   1,
		KMeansIterations: 10,
		KMeansEpsilon:    0,
	}
}

// Validate checks the options for obviously unusable values.
func (o Options) Validate() error {
	if o.Components <= 0 {
		return fmt.Errorf("components must be positive, got %d", o.Components)
	}
	if o.Iterations < 0 {
		return fmt.Errorf("iterations must not be negative, got %d", o.Iterations)
	}
	if o.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", o.Workers)
	}
	if o.KMeansAttempts <= 0 || o.KMeansIterations <= 0 {
		return fmt.Errorf("k-means needs at least one attempt and iteration, got %d/%d",
			o.KMeansAttempts, o.KMeansIterations)
	}
	if o.KMeansEpsilon < 0 {
		return fmt.Errorf("k-means epsilon must not be negative, got %g", o.KMeansEpsilon)
	}
	return nil
}

// LoadOptions reads options from a YAML file. Keys missing from the file
// keep their DefaultOptions values.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("failed to read options: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("failed to parse options %s: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("options %s: %w", path, err)
	}
	return opts, nil
}
