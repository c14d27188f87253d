package susceptibility

import (
	"github.com/YuminosukeSato/firehazard/core/model"
	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"github.com/YuminosukeSato/firehazard/sklearn/ensemble"
)

// saved is the gob form of a fitted Model. Exactly one classifier field is set.
type saved struct {
	Name    string
	Columns []string
	Forest  *ensemble.RandomForestClassifier
	Scaled  *ScaledLogistic
}

// Save writes the fitted model to path.
func (m *Model) Save(path string) error {
	if err := m.state.RequireFitted("susceptibility.Model", "Save"); err != nil {
		return err
	}
	s := saved{Name: m.name, Columns: m.columns}
	switch clf := m.clf.(type) {
	case *ensemble.RandomForestClassifier:
		s.Forest = clf
	case *ScaledLogistic:
		s.Scaled = clf
	default:
		return errors.NewValueError("susceptibility.Save", "unsupported classifier type")
	}
	return model.SaveModel(s, path)
}

// Load reads a model written by Save.
func Load(path string, opts ...Option) (*Model, error) {
	var s saved
	if err := model.LoadModel(&s, path); err != nil {
		return nil, err
	}
	var m *Model
	switch {
	case s.Forest != nil:
		m = New(s.Name, s.Forest, opts...)
	case s.Scaled != nil && s.Scaled.Scaler != nil && s.Scaled.Logistic != nil:
		m = New(s.Name, s.Scaled, opts...)
	default:
		return nil, errors.NewFormatError(path, "no classifier in model file")
	}
	m.columns = s.Columns
	m.state.SetDimensions(len(s.Columns), 0)
	m.state.SetFitted()
	return m, nil
}
