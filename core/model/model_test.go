package model

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/firehazard/pkg/errors"
)

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	assert.False(t, s.IsFitted())

	err := s.RequireFitted("RandomForestClassifier", "PredictProba")
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "PredictProba", nf.Method)

	s.SetDimensions(3, 10)
	s.SetFitted()
	assert.NoError(t, s.RequireFitted("m", "Predict"))
	assert.NoError(t, s.RequireFeatures("Predict", 3))

	var dimErr *errors.DimensionError
	require.True(t, errors.As(s.RequireFeatures("Predict", 4), &dimErr))
	assert.Equal(t, 3, dimErr.Expected)

	s.Reset()
	assert.False(t, s.IsFitted())
	nf2, ns := s.GetDimensions()
	assert.Zero(t, nf2)
	assert.Zero(t, ns)
}

type snapshot struct {
	Columns []string
	State   *StateManager
}

func TestSaveLoadRoundTrip(t *testing.T) {
	in := snapshot{Columns: []string{"dem", "perc_311"}, State: NewStateManager()}
	in.State.SetDimensions(2, 6)
	in.State.SetFitted()

	var buf bytes.Buffer
	require.NoError(t, SaveModelToWriter(&in, &buf))

	var out snapshot
	require.NoError(t, LoadModelFromReader(&out, &buf))
	assert.Equal(t, in.Columns, out.Columns)
	assert.True(t, out.State.IsFitted())

	path := t.TempDir() + "/model.gob"
	require.NoError(t, SaveModel(&in, path))
	var fromFile snapshot
	require.NoError(t, LoadModel(&fromFile, path))
	assert.Equal(t, 2, fromFile.State.NFeatures)

	assert.Error(t, LoadModel(&fromFile, t.TempDir()+"/missing.gob"))
}
