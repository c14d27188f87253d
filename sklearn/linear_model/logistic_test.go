package linear_model

import (
	"bytes"
	"encoding/gob"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/firehazard/pkg/errors"
)

func binaryData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(6, 2, []float64{
		-2, -1,
		-1, -2,
		-1.5, -1.5,
		2, 1,
		1, 2,
		1.5, 1.5,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})
	return X, y
}

func TestLogisticRegression_Binary(t *testing.T) {
	X, y := binaryData()
	lr := NewLogisticRegression(WithLRMaxIter(1000), WithLRRandomState(42))
	require.NoError(t, lr.Fit(X, y))

	assert.Equal(t, 1.0, lr.Score(X, y))
	assert.Equal(t, []int{0, 1}, lr.Classes())

	proba, err := lr.PredictProba(mat.NewDense(2, 2, []float64{-3, -3, 3, 3}))
	require.NoError(t, err)
	assert.Less(t, proba.At(0, 1), 0.5)
	assert.Greater(t, proba.At(1, 1), 0.5)
	for i := 0; i < 2; i++ {
		assert.InDelta(t, 1.0, proba.At(i, 0)+proba.At(i, 1), 1e-12)
	}

	coef := lr.Coef()
	require.Len(t, coef, 1)
	assert.Greater(t, coef[0][0], 0.0)
	assert.Greater(t, coef[0][1], 0.0)

	imp := lr.GetFeatureImportances()
	assert.InDelta(t, 1.0, imp[0]+imp[1], 1e-12)
}

func TestLogisticRegression_Regularization(t *testing.T) {
	X, y := binaryData()
	strong := NewLogisticRegression(WithLRC(0.01), WithLRMaxIter(500), WithLRRandomState(1))
	weak := NewLogisticRegression(WithLRC(100), WithLRMaxIter(500), WithLRRandomState(1))
	require.NoError(t, strong.Fit(X, y))
	require.NoError(t, weak.Fit(X, y))

	norm := func(lr *LogisticRegression) float64 {
		s := 0.0
		for _, w := range lr.Coef()[0] {
			s += w * w
		}
		return s
	}
	assert.Less(t, norm(strong), norm(weak))
	assert.Less(t, norm(strong), 0.1)
	for _, w := range strong.Coef()[0] {
		assert.False(t, math.IsNaN(w))
	}
}

func TestLogisticRegression_Multiclass(t *testing.T) {
	X := mat.NewDense(9, 1, []float64{-10, -9, -8, 0, 0.5, -0.5, 8, 9, 10})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})

	lr := NewLogisticRegression(WithLRMaxIter(300), WithLRRandomState(0))
	require.NoError(t, lr.Fit(X, y))
	assert.Len(t, lr.Coef(), 3)

	proba, err := lr.PredictProba(X)
	require.NoError(t, err)
	for i := 0; i < 9; i++ {
		sum := 0.0
		for k := 0; k < 3; k++ {
			sum += proba.At(i, k)
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}

	// the outer classes are separable one-vs-rest
	pred, err := lr.Predict(mat.NewDense(2, 1, []float64{-12, 12}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, pred.At(0, 0))
	assert.Equal(t, 2.0, pred.At(1, 0))
}

func TestLogisticRegression_ConvergenceWarning(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(nil)

	X, y := binaryData()
	lr := NewLogisticRegression(WithLRMaxIter(2), WithLRRandomState(0))
	require.NoError(t, lr.Fit(X, y))

	require.Len(t, warnings, 1)
	var cw *errors.ConvergenceWarning
	assert.ErrorAs(t, warnings[0], &cw)
	assert.Equal(t, []int{2}, lr.NIter())
}

func TestLogisticRegression_Errors(t *testing.T) {
	X, y := binaryData()

	lr := NewLogisticRegression()
	_, err := lr.Predict(X)
	var nf *errors.NotFittedError
	assert.ErrorAs(t, err, &nf)

	err = lr.Fit(X, mat.NewDense(6, 1, nil))
	var insErr *errors.InsufficientDataError
	assert.ErrorAs(t, err, &insErr)

	err = NewLogisticRegression(WithLRPenalty("l1")).Fit(X, y)
	var valErr *errors.ValidationError
	assert.ErrorAs(t, err, &valErr)

	require.NoError(t, lr.Fit(X, y))
	_, err = lr.PredictProba(mat.NewDense(1, 4, nil))
	var dimErr *errors.DimensionError
	assert.ErrorAs(t, err, &dimErr)
}

func TestLogisticRegression_Params(t *testing.T) {
	lr := NewLogisticRegression()
	params := lr.GetParams()
	assert.Equal(t, "l2", params["penalty"])
	assert.Equal(t, 1.0, params["C"])
	assert.Equal(t, 100, params["max_iter"])

	require.NoError(t, lr.SetParams(map[string]interface{}{"C": 0.5, "max_iter": 50}))
	assert.Equal(t, 0.5, lr.C)
	assert.Equal(t, 50, lr.maxIter)
	assert.Error(t, lr.SetParams(map[string]interface{}{"solver": "lbfgs"}))
	assert.Error(t, lr.SetParams(map[string]interface{}{"tol": "small"}))
}

func TestLogisticRegression_Gob(t *testing.T) {
	X, y := binaryData()
	lr := NewLogisticRegression(WithLRRandomState(42))
	require.NoError(t, lr.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(lr))
	restored := &LogisticRegression{}
	require.NoError(t, gob.NewDecoder(&buf).Decode(restored))

	want, err := lr.PredictProba(X)
	require.NoError(t, err)
	got, err := restored.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}
