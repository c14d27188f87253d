// Package model defines the classifier contracts the susceptibility model is
// written against, plus fitted-state tracking and gob persistence.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// ProbabilisticClassifier is a binary or multiclass classifier with
// probability output. PredictProba returns n×len(Classes()) with columns in
// ascending class order.
type ProbabilisticClassifier interface {
	Fitter
	Predictor

	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the unique classes seen during fitting, ascending.
	Classes() []int
}

// FeatureImporter is implemented by models that expose per-feature
// importances normalized to sum to 1.
type FeatureImporter interface {
	GetFeatureImportances() []float64
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}
