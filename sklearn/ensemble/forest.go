// Package ensemble implements a bagged random forest classifier on top of
// sklearn/tree.
package ensemble

import (
	"bytes"
	"encoding/gob"
	"math"
	"math/rand"

	"github.com/YuminosukeSato/firehazard/core/model"
	"github.com/YuminosukeSato/firehazard/core/parallel"
	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"github.com/YuminosukeSato/firehazard/sklearn/tree"
	"gonum.org/v1/gonum/mat"
)

// RandomForestClassifier averages the class probabilities of decision trees
// trained on bootstrap samples with random feature subsets.
//
// Tree i is seeded with randomState+i, so a fit is reproducible no matter
// how the trees are scheduled across goroutines.
type RandomForestClassifier struct {
	state *model.StateManager

	// Hyperparameters
	nEstimators     int
	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // 0 = sqrt(n_features), < 0 = all
	bootstrap       bool
	randomState     int64
	nJobs           int

	// Fitted attributes
	trees               []*tree.DecisionTreeClassifier
	classes_            []int
	nFeatures_          int
	featureImportances_ []float64
}

// Option is a functional option for RandomForestClassifier.
type Option func(*RandomForestClassifier)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nEstimators = n }
}

// WithCriterion sets the split criterion of every tree.
func WithCriterion(criterion string) Option {
	return func(rf *RandomForestClassifier) { rf.criterion = criterion }
}

// WithMaxDepth limits the depth of every tree. depth <= 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(rf *RandomForestClassifier) { rf.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum rows required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(rf *RandomForestClassifier) { rf.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum rows per leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(rf *RandomForestClassifier) { rf.minSamplesLeaf = n }
}

// WithMaxFeatures sets the features tried per split. 0 selects
// sqrt(n_features), a negative value selects all features.
func WithMaxFeatures(n int) Option {
	return func(rf *RandomForestClassifier) { rf.maxFeatures = n }
}

// WithBootstrap toggles bootstrap sampling of training rows.
func WithBootstrap(b bool) Option {
	return func(rf *RandomForestClassifier) { rf.bootstrap = b }
}

// WithRandomState sets the base seed.
func WithRandomState(seed int64) Option {
	return func(rf *RandomForestClassifier) { rf.randomState = seed }
}

// WithNJobs sets the worker count for fit and predict. n <= 0 uses all cores.
func WithNJobs(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nJobs = n }
}

// NewRandomForestClassifier creates a forest with scikit-learn's defaults.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		criterion:       "gini",
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		bootstrap:       true,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

func (rf *RandomForestClassifier) featuresPerSplit(nFeatures int) int {
	switch {
	case rf.maxFeatures < 0:
		return nFeatures
	case rf.maxFeatures == 0:
		k := int(math.Sqrt(float64(nFeatures)))
		if k < 1 {
			k = 1
		}
		return k
	default:
		return rf.maxFeatures
	}
}

// Fit trains nEstimators trees concurrently.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	if rf.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", rf.nEstimators)
	}
	n, nFeatures := X.Dims()
	if n == 0 || nFeatures == 0 {
		return errors.NewValueError("RandomForestClassifier.Fit", "empty training matrix")
	}
	if yRows, _ := y.Dims(); yRows != n {
		return errors.NewDimensionError("RandomForestClassifier.Fit", n, yRows, 0)
	}

	k := rf.featuresPerSplit(nFeatures)
	trees := make([]*tree.DecisionTreeClassifier, rf.nEstimators)

	err := parallel.ForEachN(rf.nEstimators, rf.nJobs, func(idx int) error {
		seed := rf.randomState + int64(idx)
		rnd := rand.New(rand.NewSource(seed))

		sampleIndices := make([]int, n)
		for j := range sampleIndices {
			if rf.bootstrap {
				sampleIndices[j] = rnd.Intn(n)
			} else {
				sampleIndices[j] = j
			}
		}

		t := tree.NewDecisionTreeClassifier(
			tree.WithCriterion(rf.criterion),
			tree.WithMaxDepth(rf.maxDepth),
			tree.WithMinSamplesSplit(rf.minSamplesSplit),
			tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
			tree.WithMaxFeatures(k),
			tree.WithRandomState(seed),
		)
		if err := t.FitIndices(X, y, sampleIndices); err != nil {
			return errors.Wrapf(err, "fit tree %d", idx)
		}
		trees[idx] = t
		return nil
	})
	if err != nil {
		return err
	}

	rf.trees = trees
	rf.classes_ = trees[0].Classes()
	rf.nFeatures_ = nFeatures
	rf.featureImportances_ = averageImportances(trees, nFeatures)
	rf.state.SetDimensions(nFeatures, n)
	rf.state.SetFitted()
	return nil
}

func averageImportances(trees []*tree.DecisionTreeClassifier, nFeatures int) []float64 {
	out := make([]float64, nFeatures)
	for _, t := range trees {
		for j, v := range t.RawFeatureImportances() {
			out[j] += v
		}
	}
	total := 0.0
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}

// PredictProba returns the mean class probabilities over all trees.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.RequireFitted("RandomForestClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	n, nFeatures := X.Dims()
	if err := rf.state.RequireFeatures("RandomForestClassifier.PredictProba", nFeatures); err != nil {
		return nil, err
	}

	if n == 0 {
		return nil, errors.NewValueError("RandomForestClassifier.PredictProba", "empty input matrix")
	}

	out := mat.NewDense(n, len(rf.classes_), nil)
	scale := 1 / float64(len(rf.trees))
	parallel.ParallelizeN(n, rf.nJobs, func(start, end int) {
		for _, t := range rf.trees {
			t.AccumulateProba(X, start, end, out)
		}
		for i := start; i < end; i++ {
			for c := range rf.classes_ {
				out.Set(i, c, out.At(i, c)*scale)
			}
		}
	})
	return out, nil
}

// Predict returns the class with the highest mean probability as n×1.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, k := proba.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		best := 0
		for c := 1; c < k; c++ {
			if proba.At(i, c) > proba.At(i, best) {
				best = c
			}
		}
		out.Set(i, 0, float64(rf.classes_[best]))
	}
	return out, nil
}

// Classes returns the sorted class labels.
func (rf *RandomForestClassifier) Classes() []int {
	return append([]int(nil), rf.classes_...)
}

// GetFeatureImportances returns the mean impurity-decrease importances.
func (rf *RandomForestClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), rf.featureImportances_...)
}

// Estimators returns the fitted trees.
func (rf *RandomForestClassifier) Estimators() []*tree.DecisionTreeClassifier {
	return rf.trees
}

// GetParams returns the model hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"criterion":         rf.criterion,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"random_state":      rf.randomState,
		"n_jobs":            rf.nJobs,
	}
}

type snapshot struct {
	NEstimators     int
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	Bootstrap       bool
	RandomState     int64

	Trees       []*tree.DecisionTreeClassifier
	Classes     []int
	NFeatures   int
	Importances []float64
	Fitted      bool
}

// GobEncode implements gob.GobEncoder.
func (rf *RandomForestClassifier) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(snapshot{
		NEstimators:     rf.nEstimators,
		Criterion:       rf.criterion,
		MaxDepth:        rf.maxDepth,
		MinSamplesSplit: rf.minSamplesSplit,
		MinSamplesLeaf:  rf.minSamplesLeaf,
		MaxFeatures:     rf.maxFeatures,
		Bootstrap:       rf.bootstrap,
		RandomState:     rf.randomState,

		Trees:       rf.trees,
		Classes:     rf.classes_,
		NFeatures:   rf.nFeatures_,
		Importances: rf.featureImportances_,
		Fitted:      rf.state.IsFitted(),
	})
	return buf.Bytes(), errors.Wrap(err, "encode random forest")
}

// GobDecode implements gob.GobDecoder.
func (rf *RandomForestClassifier) GobDecode(data []byte) error {
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return errors.Wrap(err, "decode random forest")
	}
	*rf = *NewRandomForestClassifier(
		WithNEstimators(s.NEstimators),
		WithCriterion(s.Criterion),
		WithMaxDepth(s.MaxDepth),
		WithMinSamplesSplit(s.MinSamplesSplit),
		WithMinSamplesLeaf(s.MinSamplesLeaf),
		WithMaxFeatures(s.MaxFeatures),
		WithBootstrap(s.Bootstrap),
		WithRandomState(s.RandomState),
	)
	rf.trees = s.Trees
	rf.classes_ = s.Classes
	rf.nFeatures_ = s.NFeatures
	rf.featureImportances_ = s.Importances
	rf.state.SetDimensions(s.NFeatures, 0)
	if s.Fitted {
		rf.state.SetFitted()
	}
	return nil
}
