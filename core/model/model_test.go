package model

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/befresh/phmodel/pkg/errors"
)

type savedModel struct {
	Name    string
	Weights []float64
	State   *StateManager
}

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	assert.False(t, s.IsFitted())

	err := s.RequireFitted("DecisionTreeRegressor", "Predict")
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))

	s.SetDimensions(5, 100)
	s.SetFitted()
	assert.NoError(t, s.RequireFitted("DecisionTreeRegressor", "Predict"))

	nFeatures, nSamples := s.GetDimensions()
	assert.Equal(t, 5, nFeatures)
	assert.Equal(t, 100, nSamples)

	assert.NoError(t, s.CheckFeatures("Predict", 5))
	var dim *errors.DimensionError
	require.True(t, errors.As(s.CheckFeatures("Predict", 4), &dim))
	assert.Equal(t, 5, dim.Expected)
	assert.Equal(t, 4, dim.Got)

	s.Reset()
	assert.False(t, s.IsFitted())
}

func TestSaveLoadModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predict_ph")

	state := NewStateManager()
	state.SetDimensions(3, 10)
	state.SetFitted()
	in := &savedModel{Name: "forest", Weights: []float64{0.5, 0.25, 0.25}, State: state}

	require.NoError(t, SaveModel(in, path))

	var out savedModel
	require.NoError(t, LoadModel(&out, path))
	assert.Equal(t, in.Name, out.Name)
	assert.Equal(t, in.Weights, out.Weights)
	require.NotNil(t, out.State)
	assert.True(t, out.State.IsFitted())

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSaveModelOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gob")
	require.NoError(t, SaveModel(&savedModel{Name: "first"}, path))
	require.NoError(t, SaveModel(&savedModel{Name: "second"}, path))

	var out savedModel
	require.NoError(t, LoadModel(&out, path))
	assert.Equal(t, "second", out.Name)
}

func TestLoadModelErrors(t *testing.T) {
	var out savedModel
	assert.Error(t, LoadModel(&out, filepath.Join(t.TempDir(), "missing")))

	err := LoadModelFromReader(&out, bytes.NewBufferString("not gob"))
	var me *errors.ModelError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "LoadModel", me.Op)
	assert.Equal(t, "decode", me.Kind)
}

func TestSaveModelBadDirectory(t *testing.T) {
	err := SaveModel(&savedModel{}, filepath.Join(t.TempDir(), "nope", "model"))
	assert.Error(t, err)
}
