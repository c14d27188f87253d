package susceptibility

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/firehazard/core/model"
	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"github.com/YuminosukeSato/firehazard/preprocessing"
	"github.com/YuminosukeSato/firehazard/sklearn/ensemble"
	"github.com/YuminosukeSato/firehazard/sklearn/linear_model"
)

// Classifier names accepted by NewClassifier.
const (
	RandomForest = "random_forest"
	Logistic     = "logistic"
)

// ClassifierConfig selects and parameterizes the susceptibility classifier.
type ClassifierConfig struct {
	Name string

	// random forest
	NEstimators int
	MaxDepth    int
	MaxFeatures int
	NJobs       int

	// logistic regression
	C       float64
	MaxIter int

	Seed int64
}

// DefaultClassifierConfig is a 50-tree random forest of depth 8, seed 42.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		Name:        RandomForest,
		NEstimators: 50,
		MaxDepth:    8,
		C:           1.0,
		MaxIter:     100,
		Seed:        42,
	}
}

// NewClassifier builds an unfitted classifier from cfg.
func NewClassifier(cfg ClassifierConfig) (model.ProbabilisticClassifier, error) {
	switch cfg.Name {
	case RandomForest, "":
		if cfg.NEstimators < 1 {
			return nil, errors.NewValidationError("n_estimators", "must be >= 1", cfg.NEstimators)
		}
		return ensemble.NewRandomForestClassifier(
			ensemble.WithNEstimators(cfg.NEstimators),
			ensemble.WithMaxDepth(cfg.MaxDepth),
			ensemble.WithMaxFeatures(cfg.MaxFeatures),
			ensemble.WithRandomState(cfg.Seed),
			ensemble.WithNJobs(cfg.NJobs),
		), nil
	case Logistic:
		if cfg.C <= 0 {
			return nil, errors.NewValidationError("C", "must be > 0", cfg.C)
		}
		if cfg.MaxIter < 1 {
			return nil, errors.NewValidationError("max_iter", "must be >= 1", cfg.MaxIter)
		}
		return NewScaledLogistic(
			linear_model.WithLRC(cfg.C),
			linear_model.WithLRMaxIter(cfg.MaxIter),
			linear_model.WithLRRandomState(cfg.Seed),
		), nil
	default:
		return nil, errors.NewValidationError("classifier", "unknown classifier", cfg.Name)
	}
}

// ScaledLogistic standardizes features before a logistic regression.
type ScaledLogistic struct {
	Scaler   *preprocessing.StandardScaler
	Logistic *linear_model.LogisticRegression
}

// NewScaledLogistic returns an unfitted scaler + logistic regression.
func NewScaledLogistic(opts ...linear_model.LogisticRegressionOption) *ScaledLogistic {
	return &ScaledLogistic{
		Scaler:   preprocessing.NewStandardScalerDefault(),
		Logistic: linear_model.NewLogisticRegression(opts...),
	}
}

// Fit fits the scaler, then the regression on the scaled features.
func (s *ScaledLogistic) Fit(X, y mat.Matrix) error {
	scaled, err := s.Scaler.FitTransform(X)
	if err != nil {
		return err
	}
	return s.Logistic.Fit(scaled, y)
}

// PredictProba scales X and returns the regression probabilities.
func (s *ScaledLogistic) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	scaled, err := s.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	return s.Logistic.PredictProba(scaled)
}

// Predict scales X and returns the predicted classes.
func (s *ScaledLogistic) Predict(X mat.Matrix) (mat.Matrix, error) {
	scaled, err := s.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	return s.Logistic.Predict(scaled)
}

// Classes returns the fitted classes.
func (s *ScaledLogistic) Classes() []int { return s.Logistic.Classes() }

// GetFeatureImportances returns normalized absolute coefficients.
func (s *ScaledLogistic) GetFeatureImportances() []float64 {
	return s.Logistic.GetFeatureImportances()
}
