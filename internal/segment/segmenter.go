// Package segment drives foreground and background colour models through
// the expectation/maximisation rounds of an interactive segmentation.
//
// The graph cut that normally follows each round is not part of this
// package. DataTerms exposes the per-pixel costs such a cut would consume,
// and Relabel provides a per-pixel maximum-likelihood decision in its place.
package segment

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"colormix/internal/gmm"
)

// MaxDataTerm is the cost assigned to a pixel whose density is zero.
const MaxDataTerm = 1000.0

// ErrNoSamples is returned by Init when either model would be seeded from
// no pixels.
var ErrNoSamples = errors.New("segment: no foreground or no background samples")

// Clusterer splits samples into k groups, returning a group index in
// [0, k) per sample. It seeds the models before the first round.
type Clusterer func(samples []gmm.Color, k int) ([]int, error)

// Segmenter owns the foreground and background models.
type Segmenter struct {
	fg, bg  *gmm.Model
	opts    Options
	cluster Clusterer
	log     zerolog.Logger
}

// New creates a Segmenter with empty models.
func New(opts Options, cluster Clusterer, log zerolog.Logger) (*Segmenter, error) {
	fg, err := gmm.NewWithComponents(opts.Components, nil)
	if err != nil {
		return nil, err
	}
	bg, err := gmm.NewWithComponents(opts.Components, nil)
	if err != nil {
		return nil, err
	}
	return NewFromModels(fg, bg, opts, cluster, log)
}

// NewFromModels creates a Segmenter that continues from existing models,
// for instance ones loaded from disk.
func NewFromModels(fg, bg *gmm.Model, opts Options, cluster Clusterer, log zerolog.Logger) (*Segmenter, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if fg.Components() != opts.Components || bg.Components() != opts.Components {
		return nil, fmt.Errorf("%w: models have %d/%d components, options ask for %d",
			gmm.ErrShapeMismatch, fg.Components(), bg.Components(), opts.Components)
	}
	return &Segmenter{
		fg:      fg,
		bg:      bg,
		opts:    opts,
		cluster: cluster,
		log:     log.With().Str("component", "segment").Logger(),
	}, nil
}

// Foreground returns the foreground model.
func (s *Segmenter) Foreground() *gmm.Model { return s.fg }

// Background returns the background model.
func (s *Segmenter) Background() *gmm.Model { return s.bg }

func (s *Segmenter) model(l Label) *gmm.Model {
	if l.IsForeground() {
		return s.fg
	}
	return s.bg
}

func checkShape(samples []gmm.Color, mask Mask) error {
	if len(samples) == 0 {
		return fmt.Errorf("no samples")
	}
	if len(samples) != len(mask) {
		return fmt.Errorf("mask has %d labels for %d samples", len(mask), len(samples))
	}
	return nil
}

// Init seeds both models by clustering the foreground and background
// samples separately and learning one pass from the cluster labels.
func (s *Segmenter) Init(samples []gmm.Color, mask Mask) error {
	if err := checkShape(samples, mask); err != nil {
		return err
	}
	if s.cluster == nil {
		return fmt.Errorf("no clusterer configured")
	}

	var fgSamples, bgSamples []gmm.Color
	for i, x := range samples {
		if mask[i].IsForeground() {
			fgSamples = append(fgSamples, x)
		} else {
			bgSamples = append(bgSamples, x)
		}
	}
	if len(fgSamples) == 0 || len(bgSamples) == 0 {
		return fmt.Errorf("%w: %d foreground, %d background", ErrNoSamples, len(fgSamples), len(bgSamples))
	}

	fg := s.fg.Clone()
	if err := s.seed(fg, fgSamples); err != nil {
		return fmt.Errorf("foreground: %w", err)
	}
	bg := s.bg.Clone()
	if err := s.seed(bg, bgSamples); err != nil {
		return fmt.Errorf("background: %w", err)
	}
	s.fg, s.bg = fg, bg

	s.log.Debug().
		Int("fg_samples", len(fgSamples)).
		Int("bg_samples", len(bgSamples)).
		Int("fg_components", fg.ActiveComponents()).
		Int("bg_components", bg.ActiveComponents()).
		Msg("models initialised")
	return nil
}

func (s *Segmenter) seed(m *gmm.Model, samples []gmm.Color) error {
	k := m.Components()
	labels, err := s.cluster(samples, k)
	if err != nil {
		return fmt.Errorf("clustering failed: %w", err)
	}
	if len(labels) != len(samples) {
		return fmt.Errorf("clusterer returned %d labels for %d samples", len(labels), len(samples))
	}

	m.BeginPass()
	for i, x := range samples {
		if labels[i] < 0 || labels[i] >= k {
			return fmt.Errorf("cluster label %d out of range [0, %d)", labels[i], k)
		}
		m.AddSample(labels[i], x)
	}
	return m.EndPass()
}

// AssignComponents returns, per pixel, the most probable component of the
// model that matches the pixel's label.
func (s *Segmenter) AssignComponents(samples []gmm.Color, mask Mask) ([]int, error) {
	if err := checkShape(samples, mask); err != nil {
		return nil, err
	}
	comps := make([]int, len(samples))
	for i, x := range samples {
		comps[i] = s.model(mask[i]).Classify(x)
	}
	return comps, nil
}

// Learn re-estimates both models from the labelled samples and their
// component assignments. Statistics are gathered by opts.Workers goroutines,
// each with its own accumulators, and merged before a single fit per model.
// A side left without pixels gets every component disabled. Neither model
// changes unless both fits succeed.
func (s *Segmenter) Learn(ctx context.Context, samples []gmm.Color, mask Mask, comps []int) error {
	if err := checkShape(samples, mask); err != nil {
		return err
	}
	if len(comps) != len(samples) {
		return fmt.Errorf("%d component assignments for %d samples", len(comps), len(samples))
	}

	k := s.opts.Components
	workers := s.opts.Workers
	if workers > len(samples) {
		workers = len(samples)
	}
	chunk := (len(samples) + workers - 1) / workers

	fgParts := make([]*gmm.Accumulator, workers)
	bgParts := make([]*gmm.Accumulator, workers)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, len(samples))
		g.Go(func() error {
			fgAcc := gmm.NewAccumulator(k)
			bgAcc := gmm.NewAccumulator(k)
			for i := lo; i < hi; i++ {
				if (i-lo)%4096 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				c := comps[i]
				if c < 0 || c >= k {
					return fmt.Errorf("pixel %d: component %d out of range [0, %d)", i, c, k)
				}
				if mask[i].IsForeground() {
					fgAcc.Add(c, samples[i])
				} else {
					bgAcc.Add(c, samples[i])
				}
			}
			fgParts[w] = fgAcc
			bgParts[w] = bgAcc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fgAcc := gmm.NewAccumulator(k)
	bgAcc := gmm.NewAccumulator(k)
	for w := 0; w < workers; w++ {
		if err := fgAcc.Merge(fgParts[w]); err != nil {
			return err
		}
		if err := bgAcc.Merge(bgParts[w]); err != nil {
			return err
		}
	}
	if fgAcc.Total() == 0 || bgAcc.Total() == 0 {
		s.log.Warn().
			Int("fg_samples", fgAcc.Total()).
			Int("bg_samples", bgAcc.Total()).
			Msg("one side has no pixels, disabling its model")
	}

	fg := s.fg.Clone()
	if err := fg.Fit(fgAcc); err != nil {
		return fmt.Errorf("foreground: %w", err)
	}
	bg := s.bg.Clone()
	if err := bg.Fit(bgAcc); err != nil {
		return fmt.Errorf("background: %w", err)
	}
	s.fg, s.bg = fg, bg
	return nil
}

// DataTerm converts a mixture density into the cost -log(density), capped
// at MaxDataTerm. Densities above 1 give negative costs.
func DataTerm(density float64) float64 {
	if !(density > 0) {
		return MaxDataTerm
	}
	return math.Min(-math.Log(density), MaxDataTerm)
}

// DataTerms returns, per pixel, the cost of labelling it foreground and
// the cost of labelling it background.
func (s *Segmenter) DataTerms(samples []gmm.Color) (fgCost, bgCost []float64) {
	fgCost = make([]float64, len(samples))
	bgCost = make([]float64, len(samples))
	for i, x := range samples {
		fgCost[i] = DataTerm(s.fg.JointDensity(x))
		bgCost[i] = DataTerm(s.bg.JointDensity(x))
	}
	return fgCost, bgCost
}

// Relabel moves every probable pixel to whichever model explains it better,
// ties going to background, and returns how many labels changed. Hard labels
// are left alone.
func (s *Segmenter) Relabel(samples []gmm.Color, mask Mask) (int, error) {
	if err := checkShape(samples, mask); err != nil {
		return 0, err
	}
	changed := 0
	for i, x := range samples {
		if !mask[i].IsProbable() {
			continue
		}
		next := ProbableBackground
		if s.fg.JointDensity(x) > s.bg.JointDensity(x) {
			next = ProbableForeground
		}
		if next != mask[i] {
			mask[i] = next
			changed++
		}
	}
	return changed, nil
}

// Iterate runs n rounds of component assignment, learning and relabelling.
// It stops early once a round changes no labels.
func (s *Segmenter) Iterate(ctx context.Context, samples []gmm.Color, mask Mask, n int) error {
	for i := 0; i < n; i++ {
		comps, err := s.AssignComponents(samples, mask)
		if err != nil {
			return err
		}
		if err := s.Learn(ctx, samples, mask, comps); err != nil {
			return fmt.Errorf("iteration %d: %w", i, err)
		}
		changed, err := s.Relabel(samples, mask)
		if err != nil {
			return err
		}

		fgCount, bgCount := mask.Counts()
		s.log.Debug().
			Int("iteration", i).
			Int("relabelled", changed).
			Int("fg_pixels", fgCount).
			Int("bg_pixels", bgCount).
			Int("fg_components", s.fg.ActiveComponents()).
			Int("bg_components", s.bg.ActiveComponents()).
			Msg("segmentation round")

		if changed == 0 {
			break
		}
	}
	return nil
}
