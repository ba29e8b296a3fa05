package ensemble

import (
	"bytes"
	"context"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/befresh/phmodel/core/model"
	"github.com/befresh/phmodel/pkg/errors"
)

// sensorLike builds a small regression problem where the last column drives
// the target the most.
func sensorLike(seed uint64, n int) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a, b, c := rng.Float64(), rng.Float64(), rng.Float64()
		X.SetRow(i, []float64{a, b, c})
		y.Set(i, 0, 6.5+0.1*a+0.3*b+1.2*c+0.05*rng.NormFloat64())
	}
	return X, y
}

func TestForestFitPredict(t *testing.T) {
	X, y := sensorLike(1, 200)

	rf := NewRandomForestRegressor().WithNEstimators(20).WithRandomState(10)
	require.NoError(t, rf.Fit(X, y))
	require.Len(t, rf.Trees, 20)

	pred, err := rf.Predict(X)
	require.NoError(t, err)
	rows, cols := pred.Dims()
	assert.Equal(t, 200, rows)
	assert.Equal(t, 1, cols)

	score, err := rf.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.8)
}

func TestForestDeterministicAcrossJobs(t *testing.T) {
	X, y := sensorLike(2, 150)

	serial := NewRandomForestRegressor().WithNEstimators(15).WithRandomState(10).WithNJobs(1)
	par := NewRandomForestRegressor().WithNEstimators(15).WithRandomState(10).WithNJobs(4)
	require.NoError(t, serial.Fit(X, y))
	require.NoError(t, par.Fit(X, y))

	a, err := serial.Predict(X)
	require.NoError(t, err)
	b, err := par.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a, b))

	other := NewRandomForestRegressor().WithNEstimators(15).WithRandomState(11)
	require.NoError(t, other.Fit(X, y))
	c, err := other.Predict(X)
	require.NoError(t, err)
	assert.False(t, mat.Equal(a, c))
}

func TestForestFeatureImportances(t *testing.T) {
	X, y := sensorLike(3, 300)

	rf := NewRandomForestRegressor().WithNEstimators(25).WithMaxDepth(8).WithRandomState(10)
	require.NoError(t, rf.Fit(X, y))

	imp, err := rf.FeatureImportances()
	require.NoError(t, err)
	require.Len(t, imp, 3)

	sum := 0.0
	for _, v := range imp {
		assert.GreaterOrEqual(t, v, 0.0)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, imp[2], imp[0])
}

func TestForestImportancesAllLeaves(t *testing.T) {
	X, _ := sensorLike(4, 30)
	y := mat.NewDense(30, 1, nil)
	for i := 0; i < 30; i++ {
		y.Set(i, 0, 7)
	}

	rf := NewRandomForestRegressor().WithNEstimators(5)
	require.NoError(t, rf.Fit(X, y))

	imp, err := rf.FeatureImportances()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, imp)
}

func TestForestWithoutBootstrapMatchesSingleTree(t *testing.T) {
	X := mat.NewDense(8, 1, []float64{0, 1, 2, 3, 4, 5, 6, 7})
	y := mat.NewDense(8, 1, []float64{0, 0, 1, 1, 4, 4, 9, 9})

	rf := NewRandomForestRegressor().WithNEstimators(3).WithBootstrap(false)
	require.NoError(t, rf.Fit(X, y))

	pred, err := rf.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 1, 4, 4, 9, 9}, mat.Col(nil, 0, pred))
}

func TestForestErrors(t *testing.T) {
	rf := NewRandomForestRegressor()

	_, err := rf.Predict(mat.NewDense(1, 3, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
	_, err = rf.FeatureImportances()
	assert.True(t, errors.As(err, &nf))

	bad := NewRandomForestRegressor().WithNEstimators(0)
	X, y := sensorLike(5, 10)
	assert.Error(t, bad.Fit(X, y))

	named := NewRandomForestRegressor().WithFeatureNames([]string{"only_one"})
	assert.Error(t, named.Fit(X, y))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewRandomForestRegressor().WithNEstimators(3).FitContext(ctx, X, y), context.Canceled)

	require.NoError(t, rf.WithNEstimators(2).Fit(X, y))
	_, err = rf.Predict(mat.NewDense(1, 2, nil))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
}

func TestForestParams(t *testing.T) {
	rf := NewRandomForestRegressor()
	require.NoError(t, rf.SetParams(map[string]interface{}{
		"n_estimators":      200,
		"max_depth":         20,
		"min_samples_split": 5,
		"min_samples_leaf":  4,
		"bootstrap":         false,
	}))
	assert.Equal(t, 200, rf.NEstimators)
	assert.Equal(t, 20, rf.MaxDepth)
	assert.Equal(t, 5, rf.MinSamplesSplit)
	assert.Equal(t, 4, rf.MinSamplesLeaf)
	assert.False(t, rf.Bootstrap)

	assert.Error(t, rf.SetParams(map[string]interface{}{"criterion": "squared_error"}))
	assert.Error(t, rf.SetParams(map[string]interface{}{"bootstrap": 1}))

	rf.FeatureNames = []string{"a", "b", "c"}
	clone := rf.Clone().(*RandomForestRegressor)
	assert.Equal(t, rf.GetParams(true), clone.GetParams(true))
	assert.Equal(t, rf.FeatureNames, clone.FeatureNames)
	assert.False(t, clone.State.IsFitted())
	assert.Nil(t, clone.Trees)
}

func TestForestPersistenceRoundTrip(t *testing.T) {
	X, y := sensorLike(6, 120)
	rf := NewRandomForestRegressor().
		WithNEstimators(10).
		WithRandomState(10).
		WithFeatureNames([]string{"temperature", "humidity", "nh3"})
	require.NoError(t, rf.Fit(X, y))

	path := filepath.Join(t.TempDir(), "predict_ph")
	require.NoError(t, model.SaveModel(rf, path))

	var loaded RandomForestRegressor
	require.NoError(t, model.LoadModel(&loaded, path))
	assert.Equal(t, rf.FeatureNames, loaded.FeatureNames)
	assert.True(t, loaded.State.IsFitted())

	want, err := rf.Predict(X)
	require.NoError(t, err)
	got, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(rf, &buf))
	assert.NotZero(t, buf.Len())
}

func TestRankImportances(t *testing.T) {
	names := []string{"elapsed_time", "temperature", "humidity", "gas", "nh3"}
	imp := []float64{0.1, 0.3, 0.1, 0.45, 0.05}

	ranked, err := RankImportances(names, imp)
	require.NoError(t, err)
	require.Len(t, ranked, 5)

	assert.Equal(t, "gas", ranked[0].Name)
	assert.Equal(t, 3, ranked[0].Index)
	assert.Equal(t, "temperature", ranked[1].Name)
	// equal importances: later column first
	assert.Equal(t, "humidity", ranked[2].Name)
	assert.Equal(t, "elapsed_time", ranked[3].Name)
	assert.Equal(t, 5, ranked[4].Rank)

	assert.Equal(t, "1. feature 'gas' (0.45)", ranked[0].String())

	_, err = RankImportances(names[:2], imp)
	assert.Error(t, err)
}

func TestRankImportancesTies(t *testing.T) {
	names := []string{"elapsed_time", "temperature", "humidity", "gas", "nh3"}

	tests := []struct {
		name string
		imp  []float64
		want []string
	}{
		{
			name: "two leaders",
			imp:  []float64{0.5, 0.5, 0, 0, 0},
			want: []string{"temperature", "elapsed_time", "nh3", "gas", "humidity"},
		},
		{
			name: "all zero",
			imp:  []float64{0, 0, 0, 0, 0},
			want: []string{"nh3", "gas", "humidity", "temperature", "elapsed_time"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranked, err := RankImportances(names, tt.imp)
			require.NoError(t, err)
			got := make([]string, len(ranked))
			for i, r := range ranked {
				got[i] = r.Name
				assert.Equal(t, i+1, r.Rank)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
