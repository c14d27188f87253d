// Package susceptibility trains the fire occurrence classifier on a balanced
// sample and scores every valid pixel into a susceptibility raster.
package susceptibility

import (
	"log/slog"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/firehazard/core/model"
	"github.com/YuminosukeSato/firehazard/features"
	"github.com/YuminosukeSato/firehazard/metrics"
	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"github.com/YuminosukeSato/firehazard/pkg/log"
	"github.com/YuminosukeSato/firehazard/raster"
	"github.com/YuminosukeSato/firehazard/sampling"
)

// Label of scored layers; NoData marks cells outside the mask.
const (
	Label  = "susceptibility"
	NoData = -1.0
)

// DensityPrefix is the column prefix whose importances are reported summed.
const DensityPrefix = "perc_"

// Model is a classifier bound to the ordered feature columns it was
// trained on.
type Model struct {
	name    string
	clf     model.ProbabilisticClassifier
	columns []string
	state   *model.StateManager
	logger  *slog.Logger
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) { m.logger = l }
}

// New wraps clf. name is reported in logs.
func New(name string, clf model.ProbabilisticClassifier, opts ...Option) *Model {
	m := &Model{name: name, clf: clf, state: model.NewStateManager()}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = log.OrDefault(m.logger)
	return m
}

// NewFromConfig builds the classifier from cfg and wraps it.
func NewFromConfig(cfg ClassifierConfig, opts ...Option) (*Model, error) {
	clf, err := NewClassifier(cfg)
	if err != nil {
		return nil, err
	}
	name := cfg.Name
	if name == "" {
		name = RandomForest
	}
	return New(name, clf, opts...), nil
}

// Prepare draws the balanced sample from m and returns it with an unfitted
// model configured by cfg.
func Prepare(m *features.Matrix, s *sampling.Sampler, cfg ClassifierConfig, opts ...Option) (*Model, *sampling.Sample, error) {
	sample, err := s.Draw(m)
	if err != nil {
		return nil, nil, err
	}
	mdl, err := NewFromConfig(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	return mdl, sample, nil
}

// Name returns the classifier name.
func (m *Model) Name() string { return m.name }

// Columns returns the training columns.
func (m *Model) Columns() []string { return append([]string(nil), m.columns...) }

// Classifier returns the wrapped classifier.
func (m *Model) Classifier() model.ProbabilisticClassifier { return m.clf }

// Fit trains the classifier and records columns.
func (m *Model) Fit(X mat.Matrix, y []float64, columns []string) error {
	n, nFeatures := X.Dims()
	if n == 0 {
		return errors.NewValueError("susceptibility.Fit", "empty training matrix")
	}
	if len(y) != n {
		return errors.NewDimensionError("susceptibility.Fit", n, len(y), 0)
	}
	if len(columns) != nFeatures {
		return errors.NewDimensionError("susceptibility.Fit", nFeatures, len(columns), 1)
	}

	start := time.Now()
	if err := m.clf.Fit(X, mat.NewDense(n, 1, append([]float64(nil), y...))); err != nil {
		return errors.NewModelError("susceptibility.Fit", m.name, err)
	}
	m.columns = append([]string(nil), columns...)
	m.state.SetDimensions(nFeatures, n)
	m.state.SetFitted()

	m.logger.Info("susceptibility model fitted",
		log.OperationKey, log.OperationFit,
		log.ModelNameKey, m.name,
		log.SamplesKey, n,
		log.FeaturesKey, nFeatures,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// FitSample fits on the training partition of s.
func (m *Model) FitSample(s *sampling.Sample) error {
	return m.Fit(s.XTrain, s.YTrain, s.Columns)
}

// positive returns the class-1 probability of every row of X.
func (m *Model) positive(X mat.Matrix) ([]float64, error) {
	pos := -1
	for i, c := range m.clf.Classes() {
		if c == 1 {
			pos = i
		}
	}
	if pos < 0 {
		return nil, errors.NewValueError("susceptibility", "classifier was not trained with class 1")
	}
	proba, err := m.clf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := proba.Dims()
	out := make([]float64, n)
	for i := range out {
		out[i] = proba.At(i, pos)
	}
	return out, nil
}

// Evaluate reports AUC on both partitions and MSE, log loss, accuracy of the
// predicted labels and aggregated importances on the test partition.
func (m *Model) Evaluate(s *sampling.Sample) (*Report, error) {
	if err := m.state.RequireFitted("susceptibility.Model", "Evaluate"); err != nil {
		return nil, err
	}
	if err := m.checkColumns("susceptibility.Evaluate", s.Columns); err != nil {
		return nil, err
	}

	trainProba, err := m.positive(s.XTrain)
	if err != nil {
		return nil, err
	}
	testProba, err := m.positive(s.XTest)
	if err != nil {
		return nil, err
	}
	yTrain := mat.NewVecDense(len(s.YTrain), append([]float64(nil), s.YTrain...))
	yTest := mat.NewVecDense(len(s.YTest), append([]float64(nil), s.YTest...))
	pTrain := mat.NewVecDense(len(trainProba), trainProba)
	pTest := mat.NewVecDense(len(testProba), testProba)

	r := &Report{Model: m.name}
	if r.AUCTrain, err = metrics.AUC(yTrain, pTrain); err != nil {
		return nil, err
	}
	if r.AUCTest, err = metrics.AUC(yTest, pTest); err != nil {
		return nil, err
	}
	if r.MSE, err = metrics.MSE(yTest, pTest); err != nil {
		return nil, err
	}
	if r.LogLoss, err = metrics.BinaryLogLoss(yTest, pTest); err != nil {
		return nil, err
	}
	pred, err := m.clf.Predict(s.XTest)
	if err != nil {
		return nil, err
	}
	if r.Accuracy, err = metrics.Accuracy(yTest, mat.NewVecDense(len(s.YTest), mat.Col(nil, 0, pred))); err != nil {
		return nil, err
	}
	if fi, ok := m.clf.(model.FeatureImporter); ok {
		r.Importances = AggregateImportances(m.columns, fi.GetFeatureImportances())
	}

	m.logger.Info("susceptibility model evaluated",
		log.OperationKey, log.OperationEvaluate,
		slog.Any("report", r),
	)
	return r, nil
}

// Score predicts every row of fm and embeds the class-1 probabilities at the
// mask positions of a grid filled with -1.
func (m *Model) Score(fm *features.Matrix) (*raster.Layer, error) {
	if err := m.state.RequireFitted("susceptibility.Model", "Score"); err != nil {
		return nil, err
	}
	if err := m.checkColumns("susceptibility.Score", fm.Columns); err != nil {
		return nil, err
	}

	start := time.Now()
	proba, err := m.positive(fm.X)
	if err != nil {
		return nil, err
	}

	data := make([]float64, fm.Rows()*fm.Cols())
	for i := range data {
		data[i] = NoData
	}
	for k, cell := range fm.Mask.Indices() {
		data[cell] = proba[k]
	}

	out, err := raster.NewLayer(Label, fm.Rows(), fm.Cols(), data,
		raster.WithNoData(NoData), raster.WithGeoref(fm.Georef))
	if err != nil {
		return nil, err
	}
	m.logger.Info("susceptibility scored",
		log.OperationKey, log.OperationScore,
		log.ModelNameKey, m.name,
		log.ValidPixelsKey, len(proba),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (m *Model) checkColumns(op string, columns []string) error {
	if len(columns) != len(m.columns) {
		return errors.NewAlignmentError(op, "columns",
			strings.Join(m.columns, ","), strings.Join(columns, ","))
	}
	for i, c := range columns {
		if c != m.columns[i] {
			return errors.NewAlignmentError(op, c, m.columns[i], c)
		}
	}
	return nil
}
