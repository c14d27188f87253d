// Package tree implements a CART decision tree classifier.
//
// The tree is the base learner of the susceptibility random forest, so it
// supports training on a bootstrap index set (FitIndices) and random feature
// subsets per split (WithMaxFeatures) besides the plain Fit contract.
package tree

import (
	"bytes"
	"encoding/gob"
	"math"
	"math/rand"
	"sort"

	"github.com/YuminosukeSato/firehazard/core/model"
	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const impurityEpsilon = 1e-12

// Node is one node of a fitted tree. Fields are exported for gob.
type Node struct {
	Feature   int
	Threshold float64
	Left      *Node
	Right     *Node
	// Value holds the class distribution (fractions) of the training rows
	// that reached this node.
	Value    []float64
	Samples  int
	Impurity float64
	Leaf     bool
}

// DecisionTreeClassifier is a CART classifier with gini or entropy impurity.
type DecisionTreeClassifier struct {
	state *model.StateManager

	// Hyperparameters
	criterion       string // "gini" or "entropy"
	maxDepth        int    // <= 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // <= 0 means all features
	randomState     int64

	// Fitted attributes
	root                *Node
	classes_            []int
	nClasses_           int
	nFeatures_          int
	featureImportances_ []float64
	depth_              int
	nLeaves_            int

	rng *rand.Rand
}

// Option is a functional option for DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// WithCriterion sets the impurity criterion ("gini" or "entropy").
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) { dt.criterion = criterion }
}

// WithMaxDepth limits the tree depth. depth <= 0 grows until leaves are pure.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum rows required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum rows each child must keep.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many randomly chosen features are tried per split.
func WithMaxFeatures(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxFeatures = n }
}

// WithRandomState seeds feature subsampling.
func WithRandomState(seed int64) Option {
	return func(dt *DecisionTreeClassifier) { dt.randomState = seed }
}

// NewDecisionTreeClassifier creates a tree with scikit-learn's defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		randomState:     0,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// Fit trains the tree on every row of X.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	n, _ := X.Dims()
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return dt.FitIndices(X, y, indices)
}

// FitIndices trains the tree on the rows of X listed in indices, which may
// repeat (bootstrap). Classes are taken from all of y so that every tree of
// an ensemble shares the same probability columns.
func (dt *DecisionTreeClassifier) FitIndices(X, y mat.Matrix, indices []int) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "empty training matrix")
	}
	if yRows != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "y must be a column vector")
	}
	if len(indices) == 0 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "no training rows selected")
	}
	if err := dt.validateParams(); err != nil {
		return err
	}

	classIndex := dt.extractClasses(y)
	labels := make([]int, nSamples)
	for i := 0; i < nSamples; i++ {
		labels[i] = classIndex[int(y.At(i, 0))]
	}

	dt.nFeatures_ = nFeatures
	dt.featureImportances_ = make([]float64, nFeatures)
	dt.depth_ = 0
	dt.nLeaves_ = 0
	dt.rng = rand.New(rand.NewSource(dt.randomState))

	b := &builder{
		dt:     dt,
		X:      X,
		labels: labels,
		work:   append([]int(nil), indices...),
	}
	dt.root = b.grow(b.work, 0)

	total := 0.0
	for _, v := range dt.featureImportances_ {
		total += v
	}
	if total > 0 {
		for j := range dt.featureImportances_ {
			dt.featureImportances_[j] /= total
		}
	}

	dt.state.SetDimensions(nFeatures, len(indices))
	dt.state.SetFitted()
	return nil
}

func (dt *DecisionTreeClassifier) validateParams() error {
	switch {
	case dt.criterion != "gini" && dt.criterion != "entropy":
		return errors.NewValidationError("criterion", "must be 'gini' or 'entropy'", dt.criterion)
	case dt.minSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be >= 2", dt.minSamplesSplit)
	case dt.minSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", dt.minSamplesLeaf)
	}
	return nil
}

// extractClasses records the sorted unique labels and returns label → column.
func (dt *DecisionTreeClassifier) extractClasses(y mat.Matrix) map[int]int {
	rows, _ := y.Dims()
	seen := make(map[int]bool)
	for i := 0; i < rows; i++ {
		seen[int(y.At(i, 0))] = true
	}
	dt.classes_ = dt.classes_[:0]
	for c := range seen {
		dt.classes_ = append(dt.classes_, c)
	}
	sort.Ints(dt.classes_)
	dt.nClasses_ = len(dt.classes_)

	index := make(map[int]int, dt.nClasses_)
	for i, c := range dt.classes_ {
		index[c] = i
	}
	return index
}

type builder struct {
	dt     *DecisionTreeClassifier
	X      mat.Matrix
	labels []int
	work   []int
}

func (b *builder) counts(rows []int) []float64 {
	counts := make([]float64, b.dt.nClasses_)
	for _, r := range rows {
		counts[b.labels[r]]++
	}
	return counts
}

func (b *builder) impurity(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	if b.dt.criterion == "entropy" {
		e := 0.0
		for _, c := range counts {
			if c > 0 {
				p := c / n
				e -= p * math.Log2(p)
			}
		}
		return e
	}
	g := 1.0
	for _, c := range counts {
		p := c / n
		g -= p * p
	}
	return g
}

func (b *builder) grow(rows []int, depth int) *Node {
	dt := b.dt
	counts := b.counts(rows)
	n := float64(len(rows))
	impurity := b.impurity(counts, n)

	value := make([]float64, len(counts))
	for i, c := range counts {
		value[i] = c / n
	}
	node := &Node{Value: value, Samples: len(rows), Impurity: impurity, Leaf: true}

	if depth > dt.depth_ {
		dt.depth_ = depth
	}

	stop := impurity <= impurityEpsilon ||
		(dt.maxDepth > 0 && depth >= dt.maxDepth) ||
		len(rows) < dt.minSamplesSplit ||
		len(rows) < 2*dt.minSamplesLeaf
	if stop {
		dt.nLeaves_++
		return node
	}

	feature, threshold, childImpurity, ok := b.bestSplit(rows, counts)
	if !ok {
		dt.nLeaves_++
		return node
	}

	// partition rows in place: left = value <= threshold
	i, j := 0, len(rows)-1
	for i <= j {
		if b.X.At(rows[i], feature) <= threshold {
			i++
		} else {
			rows[i], rows[j] = rows[j], rows[i]
			j--
		}
	}
	left, right := rows[:i], rows[i:]

	dt.featureImportances_[feature] += n*impurity - childImpurity

	node.Leaf = false
	node.Feature = feature
	node.Threshold = threshold
	node.Left = b.grow(left, depth+1)
	node.Right = b.grow(right, depth+1)
	return node
}

// bestSplit returns the split minimising the weighted child impurity
// (n_left*imp_left + n_right*imp_right). Zero-gain splits are accepted so
// that impure nodes keep splitting, as scikit-learn does.
func (b *builder) bestSplit(rows []int, parentCounts []float64) (int, float64, float64, bool) {
	dt := b.dt
	n := len(rows)
	minLeaf := dt.minSamplesLeaf

	features := b.candidateFeatures()
	bestScore := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0

	sorted := make([]int, n)
	for _, f := range features {
		copy(sorted, rows)
		sort.Slice(sorted, func(a, c int) bool {
			return b.X.At(sorted[a], f) < b.X.At(sorted[c], f)
		})

		left := make([]float64, dt.nClasses_)
		right := append([]float64(nil), parentCounts...)
		for k := 0; k < n-1; k++ {
			lbl := b.labels[sorted[k]]
			left[lbl]++
			right[lbl]--

			v, next := b.X.At(sorted[k], f), b.X.At(sorted[k+1], f)
			if v == next {
				continue
			}
			nl, nr := k+1, n-k-1
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			score := float64(nl)*b.impurity(left, float64(nl)) + float64(nr)*b.impurity(right, float64(nr))
			if score < bestScore-impurityEpsilon {
				bestScore = score
				bestFeature = f
				bestThreshold = v + (next-v)/2
				if bestThreshold == next {
					bestThreshold = v
				}
			}
		}
	}
	if bestFeature < 0 {
		return 0, 0, 0, false
	}
	return bestFeature, bestThreshold, bestScore, true
}

func (b *builder) candidateFeatures() []int {
	nf := b.dt.nFeatures_
	k := b.dt.maxFeatures
	if k <= 0 || k >= nf {
		all := make([]int, nf)
		for i := range all {
			all[i] = i
		}
		return all
	}
	perm := b.dt.rng.Perm(nf)[:k]
	sort.Ints(perm)
	return perm
}

// leaf walks the tree for one row.
func (dt *DecisionTreeClassifier) leaf(X mat.Matrix, row int) *Node {
	node := dt.root
	for !node.Leaf {
		if X.At(row, node.Feature) <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}

func (dt *DecisionTreeClassifier) checkPredict(X mat.Matrix, method string) error {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", method); err != nil {
		return err
	}
	n, nFeatures := X.Dims()
	if n == 0 {
		return errors.NewValueError("DecisionTreeClassifier."+method, "empty input matrix")
	}
	return dt.state.RequireFeatures("DecisionTreeClassifier."+method, nFeatures)
}

// PredictProba returns an n×nClasses matrix of leaf class fractions.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkPredict(X, "PredictProba"); err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	out := mat.NewDense(n, dt.nClasses_, nil)
	for i := 0; i < n; i++ {
		out.SetRow(i, dt.leaf(X, i).Value)
	}
	return out, nil
}

// AccumulateProba adds this tree's class fractions for rows [start, end) of
// X into dst without allocating. Used by ensembles.
func (dt *DecisionTreeClassifier) AccumulateProba(X mat.Matrix, start, end int, dst *mat.Dense) {
	for i := start; i < end; i++ {
		value := dt.leaf(X, i).Value
		for c, p := range value {
			dst.Set(i, c, dst.At(i, c)+p)
		}
	}
}

// Predict returns the most probable class label per row as n×1.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkPredict(X, "Predict"); err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		value := dt.leaf(X, i).Value
		best := 0
		for c := 1; c < len(value); c++ {
			if value[c] > value[best] {
				best = c
			}
		}
		out.Set(i, 0, float64(dt.classes_[best]))
	}
	return out, nil
}

// Score returns the mean accuracy on X, y. An unfitted tree scores 0.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	n, _ := X.Dims()
	if n == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n)
}

// Classes returns the sorted class labels seen during fitting.
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.classes_...)
}

// GetFeatureImportances returns impurity-decrease importances summing to 1
// (all zeros if the tree is a single leaf).
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.featureImportances_...)
}

// RawFeatureImportances returns the fitted importances without copying.
func (dt *DecisionTreeClassifier) RawFeatureImportances() []float64 {
	return dt.featureImportances_
}

// GetDepth returns the depth of the deepest leaf (root = 0).
func (dt *DecisionTreeClassifier) GetDepth() int { return dt.depth_ }

// GetNLeaves returns the number of leaves.
func (dt *DecisionTreeClassifier) GetNLeaves() int { return dt.nLeaves_ }

// GetParams returns the model hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams sets the model hyperparameters.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "criterion":
			dt.criterion, ok = value.(string)
		case "max_depth":
			dt.maxDepth, ok = value.(int)
		case "min_samples_split":
			dt.minSamplesSplit, ok = value.(int)
		case "min_samples_leaf":
			dt.minSamplesLeaf, ok = value.(int)
		case "max_features":
			dt.maxFeatures, ok = value.(int)
		case "random_state":
			dt.randomState, ok = value.(int64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, "wrong type", value)
		}
	}
	return nil
}

// snapshot is the gob wire form of a fitted tree.
type snapshot struct {
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	RandomState     int64

	Root        *Node
	Classes     []int
	NFeatures   int
	Importances []float64
	Depth       int
	NLeaves     int
	Fitted      bool
}

// GobEncode implements gob.GobEncoder.
func (dt *DecisionTreeClassifier) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(snapshot{
		Criterion:       dt.criterion,
		MaxDepth:        dt.maxDepth,
		MinSamplesSplit: dt.minSamplesSplit,
		MinSamplesLeaf:  dt.minSamplesLeaf,
		MaxFeatures:     dt.maxFeatures,
		RandomState:     dt.randomState,

		Root:        dt.root,
		Classes:     dt.classes_,
		NFeatures:   dt.nFeatures_,
		Importances: dt.featureImportances_,
		Depth:       dt.depth_,
		NLeaves:     dt.nLeaves_,
		Fitted:      dt.state.IsFitted(),
	})
	return buf.Bytes(), errors.Wrap(err, "encode decision tree")
}

// GobDecode implements gob.GobDecoder.
func (dt *DecisionTreeClassifier) GobDecode(data []byte) error {
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return errors.Wrap(err, "decode decision tree")
	}
	*dt = *NewDecisionTreeClassifier(
		WithCriterion(s.Criterion),
		WithMaxDepth(s.MaxDepth),
		WithMinSamplesSplit(s.MinSamplesSplit),
		WithMinSamplesLeaf(s.MinSamplesLeaf),
		WithMaxFeatures(s.MaxFeatures),
		WithRandomState(s.RandomState),
	)
	dt.root = s.Root
	dt.classes_ = s.Classes
	dt.nClasses_ = len(s.Classes)
	dt.nFeatures_ = s.NFeatures
	dt.featureImportances_ = s.Importances
	dt.depth_ = s.Depth
	dt.nLeaves_ = s.NLeaves
	dt.state.SetDimensions(s.NFeatures, 0)
	if s.Fitted {
		dt.state.SetFitted()
	}
	return nil
}
