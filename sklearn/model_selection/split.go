// Package model_selection provides the train/test split used before fitting
// the susceptibility model.
package model_selection

import (
	"math"
	"math/rand"

	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Split holds the four partitions returned by TrainTestSplit.
type Split struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest *mat.Dense

	// TrainIndex and TestIndex are the source rows of each partition.
	TrainIndex, TestIndex []int
}

type splitConfig struct {
	testSize    float64
	randomState int64
	shuffle     bool
}

// SplitOption configures TrainTestSplit.
type SplitOption func(*splitConfig)

// WithTestSize sets the test fraction in (0, 1).
func WithTestSize(size float64) SplitOption {
	return func(c *splitConfig) { c.testSize = size }
}

// WithRandomState seeds the shuffle.
func WithRandomState(seed int64) SplitOption {
	return func(c *splitConfig) { c.randomState = seed }
}

// WithShuffle toggles shuffling. Without it the last rows form the test set.
func WithShuffle(shuffle bool) SplitOption {
	return func(c *splitConfig) { c.shuffle = shuffle }
}

// TrainTestSplit partitions the rows of X and y. The test partition has
// ceil(testSize*n) rows and the train partition the rest; defaults are a
// 0.25 test fraction, seed 0 and shuffling on.
func TrainTestSplit(X, y mat.Matrix, opts ...SplitOption) (*Split, error) {
	cfg := splitConfig{testSize: 0.25, shuffle: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.testSize <= 0 || cfg.testSize >= 1 {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", cfg.testSize)
	}

	n, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if yRows != n {
		return nil, errors.NewDimensionError("TrainTestSplit", n, yRows, 0)
	}

	nTest := int(math.Ceil(cfg.testSize * float64(n)))
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, errors.NewInsufficientDataError("TrainTestSplit", "rows", n, 2)
	}

	var order []int
	if cfg.shuffle {
		order = rand.New(rand.NewSource(cfg.randomState)).Perm(n)
	} else {
		order = make([]int, n)
		for i := range order {
			order[i] = i
		}
		// keep source order: train first, test last
		order = append(order[nTrain:], order[:nTrain]...)
	}

	s := &Split{
		TestIndex:  append([]int(nil), order[:nTest]...),
		TrainIndex: append([]int(nil), order[nTest:]...),
	}
	s.XTest = gatherRows(X, s.TestIndex, nFeatures)
	s.XTrain = gatherRows(X, s.TrainIndex, nFeatures)
	s.YTest = gatherRows(y, s.TestIndex, yCols)
	s.YTrain = gatherRows(y, s.TrainIndex, yCols)
	return s, nil
}

func gatherRows(m mat.Matrix, rows []int, cols int) *mat.Dense {
	out := mat.NewDense(len(rows), cols, nil)
	for i, r := range rows {
		for j := 0; j < cols; j++ {
			out.Set(i, j, m.At(r, j))
		}
	}
	return out
}
