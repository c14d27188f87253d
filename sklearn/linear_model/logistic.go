package linear_model

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

// LogisticRegression implements L2-regularised logistic regression fitted by
// batch gradient descent. Two classes give a single binary model, more
// classes are fitted one-vs-rest.
type LogisticRegression struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	penalty      string  // Regularization: "l2" or "none"
	C            float64 // Inverse regularization strength (1/alpha)
	fitIntercept bool    // Whether to fit intercept
	randomState  int64   // Random seed, < 0 draws one
	maxIter      int     // Maximum iterations
	tol          float64 // Tolerance on the max absolute gradient

	// Model parameters
	coef_      [][]float64 // Coefficients (1 x n_features for binary, n_classes x n_features otherwise)
	intercept_ []float64   // Intercept terms
	classes_   []int       // Unique class labels
	nClasses_  int         // Number of classes
	nFeatures_ int         // Number of features
	nIter_     []int       // Actual iterations per fitted column

	rand *rand.Rand
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		randomState:  -1,
		maxIter:      100,
		tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	lr.seed()
	return lr
}

func (lr *LogisticRegression) seed() {
	if lr.randomState >= 0 {
		lr.rand = rand.New(rand.NewSource(lr.randomState))
	} else {
		lr.rand = rand.New(rand.NewSource(rand.Int63()))
	}
}

// WithLRPenalty sets the regularization type ("l2" or "none")
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.penalty = penalty }
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.C = c }
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.fitIntercept = fit }
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.maxIter = maxIter }
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.tol = tol }
}

// WithLRRandomState sets the random seed for weight initialization
func WithLRRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.randomState = seed }
}

// Fit trains the logistic regression model. A column that hits maxIter
// before the gradient drops below tol emits a ConvergenceWarning.
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewValueError("LogisticRegression.Fit", "empty training matrix")
	}
	if nSamples != yRows {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("LogisticRegression.Fit", "y must be a column vector")
	}
	if lr.penalty != "l2" && lr.penalty != "none" {
		return errors.NewValidationError("penalty", "must be 'l2' or 'none'", lr.penalty)
	}
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be > 0", lr.C)
	}
	if err := errors.CheckMatrix("LogisticRegression.Fit", X); err != nil {
		return err
	}

	lr.extractClasses(y)
	if lr.nClasses_ < 2 {
		return errors.NewInsufficientDataError("LogisticRegression.Fit", "classes", lr.nClasses_, 2)
	}
	lr.nFeatures_ = nFeatures
	lr.initializeWeights(nFeatures)

	columns := []int{1}
	if lr.nClasses_ > 2 {
		columns = make([]int, lr.nClasses_)
		for i := range columns {
			columns[i] = i
		}
	}

	target := make([]float64, nSamples)
	for k, classIdx := range columns {
		class := lr.classes_[classIdx]
		for i := 0; i < nSamples; i++ {
			target[i] = 0
			if int(y.At(i, 0)) == class {
				target[i] = 1
			}
		}
		lr.fitColumn(X, target, k)
		if lr.nIter_[k] >= lr.maxIter {
			errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.maxIter,
				"gradient descent did not reach tol; increase max_iter"))
		}
	}
	if err := errors.CheckNumericalStability("LogisticRegression.Fit", lr.intercept_); err != nil {
		return err
	}

	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	return nil
}

// extractClasses identifies unique class labels
func (lr *LogisticRegression) extractClasses(y mat.Matrix) {
	rows, _ := y.Dims()
	classMap := make(map[int]bool)
	for i := 0; i < rows; i++ {
		classMap[int(y.At(i, 0))] = true
	}
	lr.classes_ = make([]int, 0, len(classMap))
	for class := range classMap {
		lr.classes_ = append(lr.classes_, class)
	}
	sort.Ints(lr.classes_)
	lr.nClasses_ = len(lr.classes_)
}

// initializeWeights initializes model weights with small random values
func (lr *LogisticRegression) initializeWeights(nFeatures int) {
	n := 1
	if lr.nClasses_ > 2 {
		n = lr.nClasses_
	}
	lr.coef_ = make([][]float64, n)
	for i := range lr.coef_ {
		lr.coef_[i] = make([]float64, nFeatures)
		for j := range lr.coef_[i] {
			lr.coef_[i][j] = lr.rand.NormFloat64() * 0.01
		}
	}
	lr.intercept_ = make([]float64, n)
	lr.nIter_ = make([]int, n)
}

// fitColumn runs gradient descent for coefficient row k against a 0/1 target.
func (lr *LogisticRegression) fitColumn(X mat.Matrix, target []float64, k int) {
	nSamples, nFeatures := X.Dims()
	weights := lr.coef_[k]
	intercept := &lr.intercept_[k]

	lambda := 0.0
	if lr.penalty == "l2" {
		lambda = 1.0 / (lr.C * float64(nSamples))
	}
	// step bounded by the inverse Lipschitz constant of the penalized loss
	baseLearningRate := math.Min(1.0, 1.0/(0.25*maxRowNormSq(X, lr.fitIntercept)+lambda))
	gradWeights := make([]float64, nFeatures)

	for iter := 0; iter < lr.maxIter; iter++ {
		for j := range gradWeights {
			gradWeights[j] = 0
		}
		gradIntercept := 0.0

		for i := 0; i < nSamples; i++ {
			z := *intercept
			for j := 0; j < nFeatures; j++ {
				z += X.At(i, j) * weights[j]
			}
			residual := sigmoid(z) - target[i]
			gradIntercept += residual
			for j := 0; j < nFeatures; j++ {
				gradWeights[j] += residual * X.At(i, j)
			}
		}

		for j := range gradWeights {
			gradWeights[j] /= float64(nSamples)
		}
		gradIntercept /= float64(nSamples)

		for j := range weights {
			gradWeights[j] += lambda * weights[j]
		}

		learningRate := baseLearningRate / (1.0 + 0.01*float64(iter))
		for j := range weights {
			weights[j] -= learningRate * gradWeights[j]
		}
		if lr.fitIntercept {
			*intercept -= learningRate * gradIntercept
		}

		lr.nIter_[k] = iter + 1

		maxGrad := 0.0
		if lr.fitIntercept {
			maxGrad = math.Abs(gradIntercept)
		}
		for _, g := range gradWeights {
			maxGrad = math.Max(maxGrad, math.Abs(g))
		}
		if maxGrad < lr.tol {
			return
		}
	}
}

func maxRowNormSq(X mat.Matrix, intercept bool) float64 {
	rows, cols := X.Dims()
	best := 0.0
	for i := 0; i < rows; i++ {
		s := 0.0
		if intercept {
			s = 1
		}
		for j := 0; j < cols; j++ {
			v := X.At(i, j)
			s += v * v
		}
		best = math.Max(best, s)
	}
	return best
}

func (lr *LogisticRegression) decision(X mat.Matrix, i, k int) float64 {
	z := lr.intercept_[k]
	for j := 0; j < lr.nFeatures_; j++ {
		z += X.At(i, j) * lr.coef_[k][j]
	}
	return z
}

func (lr *LogisticRegression) checkPredict(X mat.Matrix, method string) error {
	if err := lr.state.RequireFitted("LogisticRegression", method); err != nil {
		return err
	}
	n, nFeatures := X.Dims()
	if n == 0 {
		return errors.NewValueError("LogisticRegression."+method, "empty input matrix")
	}
	return lr.state.RequireFeatures("LogisticRegression."+method, nFeatures)
}

// PredictProba returns probability estimates for each class. One-vs-rest
// scores are normalized per row.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.checkPredict(X, "PredictProba"); err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	probas := mat.NewDense(nSamples, lr.nClasses_, nil)
	for i := 0; i < nSamples; i++ {
		if lr.nClasses_ == 2 {
			p := sigmoid(lr.decision(X, i, 0))
			probas.Set(i, 0, 1-p)
			probas.Set(i, 1, p)
			continue
		}
		sum := 0.0
		for k := 0; k < lr.nClasses_; k++ {
			p := sigmoid(lr.decision(X, i, k))
			probas.Set(i, k, p)
			sum += p
		}
		for k := 0; k < lr.nClasses_; k++ {
			probas.Set(i, k, errors.SafeDivide(probas.At(i, k), sum))
		}
	}
	return probas, nil
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := X.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best := 0
		for k := 1; k < lr.nClasses_; k++ {
			if probas.At(i, k) > probas.At(i, best) {
				best = k
			}
		}
		predictions.Set(i, 0, float64(lr.classes_[best]))
	}
	return predictions, nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) float64 {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0.0
	}
	nSamples, _ := X.Dims()
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples)
}

// Classes returns the sorted class labels.
func (lr *LogisticRegression) Classes() []int {
	return append([]int(nil), lr.classes_...)
}

// Coef returns a copy of the coefficient rows.
func (lr *LogisticRegression) Coef() [][]float64 {
	out := make([][]float64, len(lr.coef_))
	for i, row := range lr.coef_ {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Intercept returns a copy of the intercepts.
func (lr *LogisticRegression) Intercept() []float64 {
	return append([]float64(nil), lr.intercept_...)
}

// NIter returns the iterations used per coefficient row.
func (lr *LogisticRegression) NIter() []int {
	return append([]int(nil), lr.nIter_...)
}

// GetFeatureImportances returns the absolute coefficients summed over rows
// and normalized to 1. Only meaningful on standardized features.
func (lr *LogisticRegression) GetFeatureImportances() []float64 {
	out := make([]float64, lr.nFeatures_)
	total := 0.0
	for _, row := range lr.coef_ {
		for j, w := range row {
			out[j] += math.Abs(w)
			total += math.Abs(w)
		}
	}
	for j := range out {
		out[j] = errors.SafeDivide(out[j], total)
	}
	return out
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"random_state":  lr.randomState,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
	}
}

// SetParams sets the model hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "penalty":
			lr.penalty, ok = value.(string)
		case "C":
			lr.C, ok = value.(float64)
		case "fit_intercept":
			lr.fitIntercept, ok = value.(bool)
		case "random_state":
			lr.randomState, ok = value.(int64)
			lr.seed()
		case "max_iter":
			lr.maxIter, ok = value.(int)
		case "tol":
			lr.tol, ok = value.(float64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, "wrong type", value)
		}
	}
	return nil
}

type logisticSnapshot struct {
	Penalty      string
	C            float64
	FitIntercept bool
	RandomState  int64
	MaxIter      int
	Tol          float64

	Coef      [][]float64
	Intercept []float64
	Classes   []int
	NFeatures int
	NIter     []int
	Fitted    bool
}

// GobEncode implements gob.GobEncoder.
func (lr *LogisticRegression) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(logisticSnapshot{
		Penalty:      lr.penalty,
		C:            lr.C,
		FitIntercept: lr.fitIntercept,
		RandomState:  lr.randomState,
		MaxIter:      lr.maxIter,
		Tol:          lr.tol,

		Coef:      lr.coef_,
		Intercept: lr.intercept_,
		Classes:   lr.classes_,
		NFeatures: lr.nFeatures_,
		NIter:     lr.nIter_,
		Fitted:    lr.state.IsFitted(),
	})
	return buf.Bytes(), errors.Wrap(err, "encode logistic regression")
}

// GobDecode implements gob.GobDecoder.
func (lr *LogisticRegression) GobDecode(data []byte) error {
	var s logisticSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return errors.Wrap(err, "decode logistic regression")
	}
	*lr = *NewLogisticRegression(
		WithLRPenalty(s.Penalty),
		WithLRC(s.C),
		WithLogisticFitIntercept(s.FitIntercept),
		WithLRRandomState(s.RandomState),
		WithLRMaxIter(s.MaxIter),
		WithLRTol(s.Tol),
	)
	lr.coef_ = s.Coef
	lr.intercept_ = s.Intercept
	lr.classes_ = s.Classes
	lr.nClasses_ = len(s.Classes)
	lr.nFeatures_ = s.NFeatures
	lr.nIter_ = s.NIter
	lr.state.SetDimensions(s.NFeatures, 0)
	if s.Fitted {
		lr.state.SetFitted()
	}
	return nil
}

// sigmoid computes the logistic function without overflowing exp.
func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + errors.StabilizeExp(-z))
}
