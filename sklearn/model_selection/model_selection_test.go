package model_selection

import (
	"context"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/befresh/phmodel/pkg/errors"
	"github.com/befresh/phmodel/pkg/log"
	"github.com/befresh/phmodel/sklearn/ensemble"
	"github.com/befresh/phmodel/sklearn/tree"
)

// interleaved returns a 1-feature problem whose rows are not sorted by x, so
// contiguous folds still cover the whole range.
func interleaved(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x := float64((i * 7) % n)
		X.Set(i, 0, x)
		y.Set(i, 0, math.Floor(x/float64(n)*4))
	}
	return X, y
}

func TestTrainTestSplit(t *testing.T) {
	X := mat.NewDense(10, 2, nil)
	y := mat.NewDense(10, 1, nil)
	for i := 0; i < 10; i++ {
		X.SetRow(i, []float64{float64(i), float64(10 * i)})
		y.Set(i, 0, float64(100*i))
	}

	s, err := TrainTestSplit(X, y, 0.2, 10)
	require.NoError(t, err)
	assert.Len(t, s.TestIndex, 2)
	assert.Len(t, s.TrainIndex, 8)

	all := append(append([]int(nil), s.TrainIndex...), s.TestIndex...)
	sort.Ints(all)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, all)

	for i, r := range s.TestIndex {
		assert.Equal(t, float64(r), s.XTest.At(i, 0))
		assert.Equal(t, float64(100*r), s.YTest.At(i, 0))
	}

	again, err := TrainTestSplit(X, y, 0.2, 10)
	require.NoError(t, err)
	assert.Equal(t, s.TestIndex, again.TestIndex)
	assert.True(t, mat.Equal(s.XTrain, again.XTrain))
}

func TestShuffleSplitIndicesRounding(t *testing.T) {
	// ceil(0.2 * 1001) = 201
	train, test, err := ShuffleSplitIndices(1001, 0.2, 10)
	require.NoError(t, err)
	assert.Len(t, test, 201)
	assert.Len(t, train, 800)

	_, _, err = ShuffleSplitIndices(10, 0, 10)
	assert.Error(t, err)
	_, _, err = ShuffleSplitIndices(10, 1, 10)
	assert.Error(t, err)
	_, _, err = ShuffleSplitIndices(1, 0.2, 10)
	assert.Error(t, err)

	_, err = TrainTestSplit(mat.NewDense(3, 1, nil), mat.NewDense(2, 1, nil), 0.2, 0)
	assert.Error(t, err)
}

func TestKFold(t *testing.T) {
	folds, err := NewKFold(3, false, 0).Split(10)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	assert.Equal(t, []int{0, 1, 2, 3}, folds[0].TestIndices)
	assert.Equal(t, []int{4, 5, 6}, folds[1].TestIndices)
	assert.Equal(t, []int{7, 8, 9}, folds[2].TestIndices)
	assert.Equal(t, []int{0, 1, 2, 3, 7, 8, 9}, folds[1].TrainIndices)

	_, err = NewKFold(1, false, 0).Split(10)
	assert.Error(t, err)
	_, err = NewKFold(5, false, 0).Split(4)
	assert.Error(t, err)

	a, err := NewKFold(3, true, 7).Split(12)
	require.NoError(t, err)
	b, err := NewKFold(3, true, 7).Split(12)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParameterGrid(t *testing.T) {
	got, err := ParameterGrid(ParamGrid{
		"b": {1, 2},
		"a": {10, 20},
	})
	require.NoError(t, err)
	assert.Equal(t, []Params{
		{"a": 10, "b": 1},
		{"a": 10, "b": 2},
		{"a": 20, "b": 1},
		{"a": 20, "b": 2},
	}, got)

	full, err := ParameterGrid(ParamGrid{
		"n_estimators":      {100, 200, 300},
		"max_depth":         {10, 20, 30},
		"min_samples_split": {2, 5, 10},
		"min_samples_leaf":  {1, 2, 4},
	})
	require.NoError(t, err)
	assert.Len(t, full, 81)
	assert.Equal(t, Params{"max_depth": 10, "min_samples_leaf": 1, "min_samples_split": 2, "n_estimators": 100}, full[0])
	assert.Equal(t, Params{"max_depth": 10, "min_samples_leaf": 1, "min_samples_split": 2, "n_estimators": 200}, full[1])

	_, err = ParameterGrid(ParamGrid{})
	assert.Error(t, err)
	_, err = ParameterGrid(ParamGrid{"max_depth": {}})
	assert.Error(t, err)
}

func TestParamsString(t *testing.T) {
	p := Params{"n_estimators": 300, "max_depth": 10, "min_samples_split": 2, "min_samples_leaf": 4}
	assert.Equal(t, "{'max_depth': 10, 'min_samples_leaf': 4, 'min_samples_split': 2, 'n_estimators': 300}", p.String())
	assert.Equal(t, "max_depth=10, min_samples_leaf=4, min_samples_split=2, n_estimators=300", p.Short())

	mixed := Params{"bootstrap": false, "criterion": "squared_error", "ccp_alpha": 0.0, "max_depth": nil}
	assert.Equal(t, "{'bootstrap': False, 'ccp_alpha': 0.0, 'criterion': 'squared_error', 'max_depth': None}", mixed.String())
}

func TestGetScorer(t *testing.T) {
	X, y := interleaved(30)
	reg := tree.NewDecisionTreeRegressor()
	require.NoError(t, reg.Fit(X, y))

	r2, err := GetScorer("")
	require.NoError(t, err)
	s, err := r2(reg, X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, s)

	bad := mat.NewDense(30, 1, nil)
	negMSE, err := GetScorer("neg_mean_squared_error")
	require.NoError(t, err)
	s, err = negMSE(reg, X, bad)
	require.NoError(t, err)
	assert.Less(t, s, 0.0)

	_, err = GetScorer("accuracy")
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestGridSearchSelectsDeeperTree(t *testing.T) {
	X, y := interleaved(60)

	gs := NewGridSearchCV(tree.NewDecisionTreeRegressor(), ParamGrid{
		"max_depth": {1, 3},
	})
	require.NoError(t, gs.Fit(X, y))

	best, err := gs.BestParams()
	require.NoError(t, err)
	assert.Equal(t, Params{"max_depth": 3}, best)

	idx, err := gs.BestIndex()
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	res, err := gs.CVResults()
	require.NoError(t, err)
	require.Len(t, res.SplitScores, 2)
	require.Len(t, res.SplitScores[1], 3)
	assert.Equal(t, []int{2, 1}, res.RankTestScore)

	score, err := gs.BestScore()
	require.NoError(t, err)
	mean := (res.SplitScores[1][0] + res.SplitScores[1][1] + res.SplitScores[1][2]) / 3
	assert.InDelta(t, mean, score, 1e-12)

	est, err := gs.BestEstimator()
	require.NoError(t, err)
	assert.Equal(t, 3, est.GetParams(false)["max_depth"])

	pred, err := gs.Predict(X)
	require.NoError(t, err)
	r, _ := pred.Dims()
	assert.Equal(t, 60, r)
}

func TestGridSearchTiesGoToFirstCandidate(t *testing.T) {
	X, y := interleaved(30)
	gs := NewGridSearchCV(tree.NewDecisionTreeRegressor(), ParamGrid{
		"random_state": {5, 6, 7},
	})
	require.NoError(t, gs.Fit(X, y))

	idx, err := gs.BestIndex()
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
}

func TestRankScores(t *testing.T) {
	ranks := rankScores([]float64{0.5, math.NaN(), 0.7, 0.7})
	assert.Equal(t, []int{3, 4, 1, 1}, ranks)
	assert.Equal(t, 2, bestIndex(ranks))

	assert.Equal(t, []int{1, 1}, rankScores([]float64{math.NaN(), math.NaN()}))
}

func TestGridSearchDeterministicAcrossJobs(t *testing.T) {
	X, y := interleaved(45)
	grid := ParamGrid{
		"n_estimators":     {5, 10},
		"min_samples_leaf": {1, 4},
	}
	base := ensemble.NewRandomForestRegressor().WithRandomState(10)

	serial := NewGridSearchCV(base, grid).WithNJobs(1)
	par := NewGridSearchCV(base, grid).WithNJobs(-1)
	require.NoError(t, serial.Fit(X, y))
	require.NoError(t, par.Fit(X, y))

	a, err := serial.CVResults()
	require.NoError(t, err)
	b, err := par.CVResults()
	require.NoError(t, err)
	assert.Equal(t, a.SplitScores, b.SplitScores)
	assert.Equal(t, a.RankTestScore, b.RankTestScore)
}

func TestCrossValScoreMatchesGridSearch(t *testing.T) {
	X, y := interleaved(30)
	est := tree.NewDecisionTreeRegressor().WithMaxDepth(2)

	scores, err := CrossValScore(context.Background(), est, X, y, 3, "r2", -1)
	require.NoError(t, err)
	require.Len(t, scores, 3)

	gs := NewGridSearchCV(tree.NewDecisionTreeRegressor(), ParamGrid{"max_depth": {2}}).WithRefit(false)
	require.NoError(t, gs.Fit(X, y))
	res, err := gs.CVResults()
	require.NoError(t, err)
	assert.Equal(t, scores, res.SplitScores[0])

	_, err = gs.BestEstimator()
	assert.Error(t, err)
}

func TestGridSearchErrors(t *testing.T) {
	X, y := interleaved(30)

	unfitted := NewGridSearchCV(tree.NewDecisionTreeRegressor(), ParamGrid{"max_depth": {1}})
	_, err := unfitted.BestParams()
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
	_, err = unfitted.BestScore()
	assert.True(t, errors.As(err, &nf))

	unknown := NewGridSearchCV(tree.NewDecisionTreeRegressor(), ParamGrid{"criterion": {"mse"}})
	assert.Error(t, unknown.Fit(X, y))

	assert.Error(t, NewGridSearchCV(tree.NewDecisionTreeRegressor(), ParamGrid{}).Fit(X, y))
	assert.Error(t, NewGridSearchCV(tree.NewDecisionTreeRegressor(), ParamGrid{"max_depth": {1}}).WithCV(1).Fit(X, y))
	assert.Error(t, NewGridSearchCV(tree.NewDecisionTreeRegressor(), ParamGrid{"max_depth": {1}}).WithCV(31).Fit(X, y))
	assert.Error(t, NewGridSearchCV(tree.NewDecisionTreeRegressor(), ParamGrid{"max_depth": {1}}).WithScoring("f1").Fit(X, y))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewGridSearchCV(tree.NewDecisionTreeRegressor(), ParamGrid{"max_depth": {1}}).FitContext(ctx, X, y)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGridSearchVerboseLogging(t *testing.T) {
	provider, _ := log.NewTestLoggerProvider(log.LevelDebug)
	log.SetProvider(provider)
	defer log.SetProvider(log.NewZerologProvider(log.LevelInfo))

	X, y := interleaved(30)
	gs := NewGridSearchCV(tree.NewDecisionTreeRegressor(), ParamGrid{"max_depth": {1, 2}}).WithVerbose(2)
	require.NoError(t, gs.Fit(X, y))

	logs := provider.Logger()
	assert.True(t, logs.ContainsMessage("Fitting 3 folds for each of 2 candidates, totalling 6 fits"))
	assert.True(t, logs.ContainsMessage("[CV 1/3] END max_depth=1"))
	assert.True(t, logs.ContainsField(log.CandidatesKey, 2.0))
}
