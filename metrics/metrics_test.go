package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/firehazard/pkg/errors"
)

func vec(v []float64) *mat.VecDense {
	if len(v) == 0 {
		return nil
	}
	return mat.NewVecDense(len(v), v)
}

func TestAUC(t *testing.T) {
	errors.SetWarningHandler(func(error) {})

	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{name: "perfect ranking", yTrue: []float64{0, 0, 0, 1, 1, 1}, yPred: []float64{0.1, 0.2, 0.3, 0.7, 0.8, 0.9}, want: 1.0},
		{name: "inverted ranking", yTrue: []float64{0, 0, 0, 1, 1, 1}, yPred: []float64{0.9, 0.8, 0.7, 0.3, 0.2, 0.1}, want: 0.0},
		{name: "all tied scores", yTrue: []float64{0, 1, 0, 1}, yPred: []float64{0.5, 0.5, 0.5, 0.5}, want: 0.5},
		{name: "one swapped pair", yTrue: []float64{0, 0, 1, 1}, yPred: []float64{0.1, 0.4, 0.35, 0.8}, want: 0.75},
		{name: "only presence", yTrue: []float64{1, 1, 1}, yPred: []float64{0.2, 0.4, 0.9}, want: 0.5},
		{name: "only absence", yTrue: []float64{0, 0}, yPred: []float64{0.2, 0.4}, want: 0.5},
		{name: "fire counts are not labels", yTrue: []float64{0, 2, 1}, yPred: []float64{0.1, 0.5, 0.9}, wantErr: true},
		{name: "length mismatch", yTrue: []float64{0, 1}, yPred: []float64{0.5}, wantErr: true},
		{name: "empty", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AUC(vec(tt.yTrue), vec(tt.yPred))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestAUC_WarnsOnSingleClass(t *testing.T) {
	var warned []error
	errors.SetWarningHandler(func(w error) { warned = append(warned, w) })
	defer errors.SetWarningHandler(func(error) {})

	_, err := AUC(vec([]float64{1, 1}), vec([]float64{0.3, 0.6}))
	require.NoError(t, err)
	require.Len(t, warned, 1)

	var undefined *errors.UndefinedMetricWarning
	assert.True(t, errors.As(warned[0], &undefined))
}

func TestBinaryLogLoss(t *testing.T) {
	got, err := BinaryLogLoss(vec([]float64{0, 0, 1, 1}), vec([]float64{0.1, 0.2, 0.8, 0.9}))
	require.NoError(t, err)
	assert.InDelta(t, 0.164252, got, 1e-5)

	perfect, err := BinaryLogLoss(vec([]float64{0, 1}), vec([]float64{0, 1}))
	require.NoError(t, err)
	assert.Less(t, perfect, 1e-10)
	assert.False(t, math.IsInf(perfect, 0))

	_, err = BinaryLogLoss(vec([]float64{0, 0.5}), vec([]float64{0.1, 0.5}))
	assert.True(t, errors.Is(err, errors.ErrNotBinary))
}

func TestAccuracy(t *testing.T) {
	yTrue := vec([]float64{0, 1, 1, 0, 1})
	yPred := vec([]float64{0, 1, 0, 0, 1})

	acc, err := Accuracy(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, acc, 1e-12)

	_, err = Accuracy(nil, nil)
	assert.Error(t, err)
	_, err = Accuracy(vec([]float64{0, 1}), vec([]float64{0}))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}

func TestMSE(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   *mat.VecDense
		yPred   *mat.VecDense
		want    float64
		wantErr bool
	}{
		{name: "probability vs label", yTrue: vec([]float64{1, 0, 1, 0}), yPred: vec([]float64{0.5, 0.5, 1, 0}), want: 0.125},
		{name: "perfect", yTrue: vec([]float64{1, 2, 3}), yPred: vec([]float64{1, 2, 3}), want: 0},
		{name: "mismatch", yTrue: vec([]float64{1, 2, 3}), yPred: vec([]float64{1, 2}), wantErr: true},
		{name: "empty", yTrue: &mat.VecDense{}, yPred: &mat.VecDense{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MSE(tt.yTrue, tt.yPred)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func BenchmarkAUC(b *testing.B) {
	n := 10000
	yTrue := mat.NewVecDense(n, nil)
	yPred := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		yTrue.SetVec(i, float64(i%2))
		yPred.SetVec(i, float64((i*7919)%n)/float64(n))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = AUC(yTrue, yPred)
	}
}
