package errors

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "firehazard: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Score",
			kind:    "not fitted",
			wantMsg: "firehazard: Score: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())

			// スタックトレースにテストファイルが含まれること
			assert.Contains(t, fmt.Sprintf("%+v", err), "errors_test.go")

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestNewAlignmentError(t *testing.T) {
	err := NewShapeAlignmentError("features.Build", "slope", 5, 5, 4, 5)
	assert.Equal(t, `firehazard: features.Build: layer "slope" is not aligned: expected 5x5, got 4x5`, err.Error())

	var alignErr *AlignmentError
	require.True(t, As(err, &alignErr))
	assert.Equal(t, "slope", alignErr.Label)

	noLabel := NewAlignmentError("Score", "", "[a b]", "[b a]")
	assert.Equal(t, "firehazard: Score: inputs are not aligned: expected [a b], got [b a]", noLabel.Error())
}

func TestNewInsufficientDataError(t *testing.T) {
	err := NewInsufficientDataError("sampling.Draw", "presence", 0, 1)
	assert.Equal(t, "firehazard: sampling.Draw: insufficient presence: have 0, need at least 1", err.Error())

	var insErr *InsufficientDataError
	require.True(t, As(err, &insErr))
	assert.Equal(t, "presence", insErr.Class)
}

func TestNewClassificationRangeError(t *testing.T) {
	err := NewClassificationRangeError("hazard.Combine", "fuel", 5, 1, 4)
	assert.Equal(t, "firehazard: hazard.Combine: fuel class 5 out of range [1, 4]", err.Error())

	wrapped := Wrap(err, "building hazard map")
	var rangeErr *ClassificationRangeError
	require.True(t, As(wrapped, &rangeErr))
	assert.Equal(t, 5, rangeErr.Value)
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 10, 9, 1)
	assert.Equal(t, "firehazard: Predict: dimension mismatch on axis 1 (features). Expected 10, got 9", err.Error())

	var dimErr *DimensionError
	assert.True(t, As(err, &dimErr))
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("RandomForestClassifier", "PredictProba")
	assert.Equal(t, "firehazard: RandomForestClassifier: this model is not fitted yet. Call Fit() before using PredictProba()", err.Error())
}

func TestMarshalZerologObject(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	w := NewUnmappedCodeWarning("fuel", 999, 3)
	logger.Warn().Object("warning", w).Msg("unmapped")

	out := buf.String()
	assert.Contains(t, out, `"code":999`)
	assert.Contains(t, out, `"cells":3`)
	assert.Contains(t, out, `"type":"UnmappedCodeWarning"`)
}

func TestWarnDispatch(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(nil)

	Warn(NewUnmappedCodeWarning("fuel", 7, 1))
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Error(), "code 7")

	var viaZerolog int
	SetZerologWarnFunc(func(error) { viaZerolog++ })
	defer SetZerologWarnFunc(nil)

	Warn(NewConvergenceWarning("LogisticRegression", 100, ""))
	assert.Equal(t, 1, viaZerolog)
	assert.Len(t, got, 1, "zerolog sink takes precedence over the handler")
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "reading %s", "dem.tif")
	assert.True(t, Is(wrapped, ErrEmptyData))
	assert.True(t, strings.HasPrefix(wrapped.Error(), "reading dem.tif"))
}

func TestCheckMatrix(t *testing.T) {
	ok := denseStub{rows: 2, cols: 2, data: []float64{1, 2, 3, 4}}
	assert.NoError(t, CheckMatrix("build", ok))

	bad := denseStub{rows: 2, cols: 2, data: []float64{1, 2, math.NaN(), 4}}
	err := CheckMatrix("build", bad)
	require.Error(t, err)

	var numErr *NumericalInstabilityError
	require.True(t, As(err, &numErr))
	assert.Equal(t, 1, numErr.Iteration)
}

func TestCheckNumericalStability(t *testing.T) {
	assert.NoError(t, CheckNumericalStability("x", []float64{0, 1}))
	assert.Error(t, CheckNumericalStability("x", []float64{0, math.Inf(1)}))
}

type denseStub struct {
	rows, cols int
	data       []float64
}

func (d denseStub) At(i, j int) float64 { return d.data[i*d.cols+j] }
func (d denseStub) Dims() (int, int)    { return d.rows, d.cols }
