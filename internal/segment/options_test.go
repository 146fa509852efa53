package segment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colormix/internal/gmm"
)

func TestDefaultOptionsAreValid(t *testing.T) {
	opts := DefaultOptions()
	require.NoError(t, opts.Validate())
	assert.Equal(t, gmm.ComponentCount, opts.Components)
	assert.Positive(t, opts.Workers)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{"no components", func(o *Options) { o.Components = 0 }},
		{"negative iterations", func(o *Options) { o.Iterations = -1 }},
		{"no workers", func(o *Options) { o.Workers = 0 }},
		{"no attempts", func(o *Options) { o.KMeansAttempts = 0 }},
		{"no kmeans iterations", func(o *Options) { o.KMeansIterations = 0 }},
		{"negative epsilon", func(o *Options) { o.KMeansEpsilon = -0.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.modify(&opts)
			assert.Error(t, opts.Validate())
		})
	}
}

func TestLoadOptions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "options.yaml")
	require.NoError(t, os.WriteFile(path, []byte("iterations: 8\nworkers: 2\nkmeans_epsilon: 0.25\n"), 0644))

	opts, err := LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, 8, opts.Iterations)
	assert.Equal(t, 2, opts.Workers)
	assert.Equal(t, 0.25, opts.KMeansEpsilon)
	assert.Equal(t, DefaultOptions().KMeansIterations, opts.KMeansIterations, "unset keys keep defaults")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("workers: 0\n"), 0644))
	_, err = LoadOptions(bad)
	assert.ErrorContains(t, err, "workers must be positive")

	garbage := filepath.Join(dir, "garbage.yaml")
	require.NoError(t, os.WriteFile(garbage, []byte("iterations: [\n"), 0644))
	_, err = LoadOptions(garbage)
	assert.ErrorContains(t, err, "failed to parse options")

	_, err = LoadOptions(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
