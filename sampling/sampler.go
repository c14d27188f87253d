// Package sampling draws the balanced presence / pseudo-absence training
// sample from a feature matrix.
package sampling

import (
	"log/slog"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/firehazard/features"
	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"github.com/YuminosukeSato/firehazard/pkg/log"
	"github.com/YuminosukeSato/firehazard/sklearn/model_selection"
)

// Defaults of the reference flow.
const (
	DefaultPercentage = 1.0
	DefaultTestSize   = 0.33
	DefaultSeed       = 42
)

// Sample is a balanced train/test sample. Presence rows carry label 1 and
// pseudo-absence rows label 0.
type Sample struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest []float64
	Columns       []string

	// Presence is the number of presence rows drawn; as many absence rows
	// were drawn.
	Presence int
}

// Len returns the number of rows across both partitions.
func (s *Sample) Len() int { return len(s.YTrain) + len(s.YTest) }

// Sampler draws balanced samples.
type Sampler struct {
	percentage float64
	testSize   float64
	seed       int64
	logger     *slog.Logger
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithPercentage sets the fraction in (0, 1] of presence rows drawn.
func WithPercentage(p float64) Option {
	return func(s *Sampler) { s.percentage = p }
}

// WithTestSize sets the test fraction of the split.
func WithTestSize(f float64) Option {
	return func(s *Sampler) { s.testSize = f }
}

// WithSeed sets the random seed of both the draw and the split.
func WithSeed(seed int64) Option {
	return func(s *Sampler) { s.seed = seed }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sampler) { s.logger = l }
}

// NewSampler returns a sampler with percentage 1, test size 0.33 and seed 42
// unless overridden.
func NewSampler(opts ...Option) (*Sampler, error) {
	s := &Sampler{
		percentage: DefaultPercentage,
		testSize:   DefaultTestSize,
		seed:       DefaultSeed,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.OrDefault(s.logger)
	if !(s.percentage > 0 && s.percentage <= 1) {
		return nil, errors.NewValidationError("percentage", "must be in (0, 1]", s.percentage)
	}
	if !(s.testSize > 0 && s.testSize < 1) {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", s.testSize)
	}
	return s, nil
}

// Draw samples m. The matrix must carry a target.
func (s *Sampler) Draw(m *features.Matrix) (*Sample, error) {
	if m.Y == nil {
		return nil, errors.NewValueError("sampling.Draw", "feature matrix has no target")
	}
	return s.DrawXY(m.X, m.Y, m.Columns)
}

// DrawXY takes round(percentage × |presence|) rows where y != 0 and as many
// rows where y == 0, both without replacement, stacks presence over absence
// and splits the result into train and test.
func (s *Sampler) DrawXY(X mat.Matrix, y []float64, columns []string) (*Sample, error) {
	n, nFeatures := X.Dims()
	if len(y) != n {
		return nil, errors.NewDimensionError("sampling.Draw", n, len(y), 0)
	}
	if len(columns) != nFeatures {
		return nil, errors.NewDimensionError("sampling.Draw", nFeatures, len(columns), 1)
	}

	var presence, absence []int
	for i, v := range y {
		if v != 0 {
			presence = append(presence, i)
		} else {
			absence = append(absence, i)
		}
	}
	if len(presence) == 0 {
		return nil, errors.NewInsufficientDataError("sampling.Draw", "presence", 0, 1)
	}
	k := int(math.Round(s.percentage * float64(len(presence))))
	if k == 0 {
		return nil, errors.NewInsufficientDataError("sampling.Draw", "presence", k, 1)
	}
	if len(absence) < k {
		return nil, errors.NewInsufficientDataError("sampling.Draw", "absence", len(absence), k)
	}

	rng := rand.New(rand.NewSource(s.seed))
	rows := append(choose(rng, presence, k), choose(rng, absence, k)...)

	stacked := mat.NewDense(2*k, nFeatures, nil)
	labels := mat.NewDense(2*k, 1, nil)
	for i, src := range rows {
		for j := 0; j < nFeatures; j++ {
			stacked.Set(i, j, X.At(src, j))
		}
		if i < k {
			labels.Set(i, 0, 1)
		}
	}

	split, err := model_selection.TrainTestSplit(stacked, labels,
		model_selection.WithTestSize(s.testSize),
		model_selection.WithRandomState(s.seed),
	)
	if err != nil {
		return nil, errors.Wrap(err, "split balanced sample")
	}

	out := &Sample{
		XTrain:   split.XTrain,
		XTest:    split.XTest,
		YTrain:   mat.Col(nil, 0, split.YTrain),
		YTest:    mat.Col(nil, 0, split.YTest),
		Columns:  append([]string(nil), columns...),
		Presence: k,
	}
	s.logger.Info("balanced sample drawn",
		log.OperationKey, log.OperationSample,
		log.PresenceKey, k,
		log.AbsenceKey, k,
		log.SamplesKey, out.Len(),
		"sample.train", len(out.YTrain),
		"sample.test", len(out.YTest),
		log.RandomSeedKey, s.seed,
	)
	return out, nil
}

func choose(rng *rand.Rand, from []int, k int) []int {
	perm := rng.Perm(len(from))
	out := make([]int, k)
	for i := range out {
		out[i] = from[perm[i]]
	}
	return out
}
