package susceptibility

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/firehazard/catalog"
	"github.com/YuminosukeSato/firehazard/features"
	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"github.com/YuminosukeSato/firehazard/raster"
	"github.com/YuminosukeSato/firehazard/sampling"
)

const side = 10

// gridMatrix is a 10x10 grid where fires burn the eastern half. The "dem"
// column is the column index, so the classes are separable; two corners
// are outside the mask.
func gridMatrix(t *testing.T) *features.Matrix {
	t.Helper()
	gr := raster.WithGeoref(raster.Georef{GeoTransform: [6]float64{0, 100, 0, 1000, 0, -100}})
	dem := make([]float64, side*side)
	perc0 := make([]float64, side*side)
	perc1 := make([]float64, side*side)
	fire := make([]float64, side*side)
	for i := range dem {
		r, c := i/side, i%side
		dem[i] = float64(c)
		perc0[i] = float64((r * 7) % 3)
		perc1[i] = float64((r*c + 1) % 5)
		if c >= side/2 {
			fire[i] = 1
		}
	}
	topo := catalog.New(catalog.KindTopography)
	veg := catalog.New(catalog.KindVegetation)
	for _, l := range []struct {
		c     *catalog.Catalog
		label string
		data  []float64
	}{{topo, "dem", dem}, {veg, "perc_0", perc0}, {veg, "perc_311", perc1}} {
		layer, err := raster.NewLayer(l.label, side, side, l.data, gr)
		require.NoError(t, err)
		require.NoError(t, l.c.Add(layer))
	}
	fires, err := raster.NewLayer("fires", side, side, fire, gr)
	require.NoError(t, err)

	mask := raster.NewMask(side, side, true)
	mask.Valid[0] = false
	mask.Valid[side*side-1] = false

	m, err := features.Build(mask, fires, []*catalog.Catalog{topo, veg})
	require.NoError(t, err)
	return m
}

func fitted(t *testing.T, cfg ClassifierConfig) (*Model, *sampling.Sample, *features.Matrix) {
	t.Helper()
	fm := gridMatrix(t)
	s, err := sampling.NewSampler()
	require.NoError(t, err)
	m, sample, err := Prepare(fm, s, cfg)
	require.NoError(t, err)
	require.NoError(t, m.FitSample(sample))
	return m, sample, fm
}

func TestModel_RandomForest(t *testing.T) {
	cfg := DefaultClassifierConfig()
	cfg.NEstimators = 10
	cfg.MaxFeatures = -1
	m, sample, fm := fitted(t, cfg)
	assert.Equal(t, RandomForest, m.Name())
	assert.Equal(t, []string{"dem", "perc_0", "perc_311"}, m.Columns())

	r, err := m.Evaluate(sample)
	require.NoError(t, err)
	assert.Greater(t, r.AUCTest, 0.95)
	assert.Greater(t, r.AUCTrain, 0.95)
	assert.GreaterOrEqual(t, r.Accuracy, 0.9)
	assert.Less(t, r.MSE, 0.1)
	assert.Greater(t, r.LogLoss, 0.0)
	require.Len(t, r.Importances, 2)
	assert.Equal(t, "dem", r.Importances[0].Name)
	assert.Equal(t, "perc", r.Importances[1].Name)

	score, err := m.Score(fm)
	require.NoError(t, err)
	assert.Equal(t, Label, score.Label())
	for i := 0; i < side*side; i++ {
		v := score.Value(i)
		if fm.Mask.Valid[i] {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
			assert.True(t, score.Valid(i))
		} else {
			assert.Equal(t, -1.0, v)
			assert.False(t, score.Valid(i))
		}
	}
	// east is more susceptible than west
	assert.Greater(t, score.At(5, 8), score.At(5, 1))
	assert.Equal(t, fm.Georef, score.Georef())
}

func TestModel_Logistic(t *testing.T) {
	cfg := DefaultClassifierConfig()
	cfg.Name = Logistic
	cfg.MaxIter = 500
	m, sample, fm := fitted(t, cfg)

	r, err := m.Evaluate(sample)
	require.NoError(t, err)
	assert.Greater(t, r.AUCTest, 0.9)

	score, err := m.Score(fm)
	require.NoError(t, err)
	assert.Greater(t, score.At(3, 9), score.At(3, 0))
}

// coinFlip predicts 0.5 for both classes and breaks ties towards class 0.
type coinFlip struct{}

func (coinFlip) Fit(X, y mat.Matrix) error { return nil }
func (coinFlip) Classes() []int { return []int{0, 1} }

func (coinFlip) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	n, _ := X.Dims()
	out := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, 0.5)
		out.Set(i, 1, 0.5)
	}
	return out, nil
}

func (coinFlip) Predict(X mat.Matrix) (mat.Matrix, error) {
	n, _ := X.Dims()
	return mat.NewDense(n, 1, nil), nil
}

func TestModel_EvaluateAccuracyUsesPredict(t *testing.T) {
	s := &sampling.Sample{
		XTrain:  mat.NewDense(2, 1, []float64{1, 2}),
		YTrain:  []float64{0, 1},
		XTest:   mat.NewDense(4, 1, []float64{1, 2, 3, 4}),
		YTest:   []float64{0, 0, 0, 1},
		Columns: []string{"dem"},
	}
	m := New("coin", coinFlip{})
	require.NoError(t, m.FitSample(s))

	r, err := m.Evaluate(s)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, r.Accuracy, 1e-12)
	assert.InDelta(t, 0.5, r.AUCTest, 1e-12)
	assert.InDelta(t, math.Ln2, r.LogLoss, 1e-12)
}

func TestModel_ColumnMismatch(t *testing.T) {
	cfg := DefaultClassifierConfig()
	cfg.NEstimators = 3
	m, _, fm := fitted(t, cfg)

	swapped := *fm
	swapped.Columns = []string{"perc_0", "dem", "perc_311"}
	_, err := m.Score(&swapped)
	var aerr *errors.AlignmentError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "perc_0", aerr.Label)

	swapped.Columns = []string{"dem"}
	_, err = m.Score(&swapped)
	require.ErrorAs(t, err, &aerr)
}

func TestModel_NotFitted(t *testing.T) {
	m, err := NewFromConfig(DefaultClassifierConfig())
	require.NoError(t, err)
	_, err = m.Score(gridMatrix(t))
	var nerr *errors.NotFittedError
	require.ErrorAs(t, err, &nerr)
	require.Error(t, m.Save(filepath.Join(t.TempDir(), "m.gob")))

	err = m.Fit(mat.NewDense(2, 1, []float64{1, 2}), []float64{0}, []string{"a"})
	var derr *errors.DimensionError
	require.ErrorAs(t, err, &derr)
}

func TestSaveLoad(t *testing.T) {
	for _, name := range []string{RandomForest, Logistic} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultClassifierConfig()
			cfg.Name = name
			cfg.NEstimators = 5
			m, _, fm := fitted(t, cfg)
			want, err := m.Score(fm)
			require.NoError(t, err)

			path := filepath.Join(t.TempDir(), "model.gob")
			require.NoError(t, m.Save(path))
			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, name, loaded.Name())
			assert.Equal(t, m.Columns(), loaded.Columns())

			got, err := loaded.Score(fm)
			require.NoError(t, err)
			assert.InDeltaSlice(t, want.Values(), got.Values(), 1e-12)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.gob"))
	require.Error(t, err)
}

func TestNewClassifier(t *testing.T) {
	var verr *errors.ValidationError
	_, err := NewClassifier(ClassifierConfig{Name: "svm"})
	require.ErrorAs(t, err, &verr)

	_, err = NewClassifier(ClassifierConfig{Name: RandomForest})
	require.ErrorAs(t, err, &verr)

	_, err = NewClassifier(ClassifierConfig{Name: Logistic, MaxIter: 10})
	require.ErrorAs(t, err, &verr)

	clf, err := NewClassifier(DefaultClassifierConfig())
	require.NoError(t, err)
	assert.NotNil(t, clf)
}

func TestAggregateImportances(t *testing.T) {
	got := AggregateImportances(
		[]string{"dem", "perc_0", "slope", "perc_311", "MAT"},
		[]float64{0.1, 0.2, 0.35, 0.3, 0.05},
	)
	require.Len(t, got, 4)
	assert.Equal(t, "perc", got[0].Name)
	assert.InDelta(t, 0.5, got[0].Value, 1e-12)
	assert.Equal(t, []string{"perc", "slope", "dem", "MAT"}, []string{got[0].Name, got[1].Name, got[2].Name, got[3].Name})

	assert.Nil(t, AggregateImportances([]string{"a"}, nil))
}
