package model_selection

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/befresh/phmodel/core/model"
	"github.com/befresh/phmodel/core/parallel"
	"github.com/befresh/phmodel/pkg/errors"
	"github.com/befresh/phmodel/pkg/log"
)

// Estimator is what GridSearchCV can tune: a regressor that can be cloned
// and reconfigured through scikit-learn style parameters.
type Estimator interface {
	model.Estimator
	model.SKLearnCompatible
}

// contextFitter is implemented by estimators whose Fit can be cancelled.
type contextFitter interface {
	FitContext(ctx context.Context, X, y mat.Matrix) error
}

func fit(ctx context.Context, est Estimator, X, y mat.Matrix) error {
	if cf, ok := est.(contextFitter); ok {
		return cf.FitContext(ctx, X, y)
	}
	return est.Fit(X, y)
}

// CVResults mirrors scikit-learn's cv_results_, one entry per candidate in
// grid order.
type CVResults struct {
	Params        []Params
	SplitScores   [][]float64 // [candidate][fold]
	MeanTestScore []float64
	StdTestScore  []float64
	RankTestScore []int
	MeanFitTime   []time.Duration
}

// GridSearchCV exhaustively evaluates every candidate of ParamGrid with
// k-fold cross-validation and keeps the best mean score.
type GridSearchCV struct {
	Estimator Estimator
	ParamGrid ParamGrid
	CV        int    // Number of folds
	Scoring   string // Scorer name, "" means r2
	NJobs     int    // Parallel (candidate, fold) fits, -1 means all cores
	Refit     bool   // Refit the best candidate on the whole data
	Verbose   int    // 1 logs the search size, 2 also logs every fit

	cvResults     *CVResults
	bestIndex     int
	bestEstimator Estimator
	State         *model.StateManager
}

// NewGridSearchCV creates a search over grid with 3 folds, r2 scoring, one
// worker and refit enabled.
func NewGridSearchCV(est Estimator, grid ParamGrid) *GridSearchCV {
	return &GridSearchCV{
		Estimator: est,
		ParamGrid: grid,
		CV:        3,
		NJobs:     1,
		Refit:     true,
		State:     model.NewStateManager(),
	}
}

// WithCV sets the number of folds
func (g *GridSearchCV) WithCV(k int) *GridSearchCV {
	g.CV = k
	return g
}

// WithScoring sets the scorer name
func (g *GridSearchCV) WithScoring(name string) *GridSearchCV {
	g.Scoring = name
	return g
}

// WithNJobs sets the number of parallel workers
func (g *GridSearchCV) WithNJobs(n int) *GridSearchCV {
	g.NJobs = n
	return g
}

// WithRefit toggles refitting the best candidate
func (g *GridSearchCV) WithRefit(refit bool) *GridSearchCV {
	g.Refit = refit
	return g
}

// WithVerbose sets the verbosity level
func (g *GridSearchCV) WithVerbose(v int) *GridSearchCV {
	g.Verbose = v
	return g
}

// Fit runs the search on X (n×p) and y (n×1).
func (g *GridSearchCV) Fit(X, y mat.Matrix) error {
	return g.FitContext(context.Background(), X, y)
}

type foldData struct {
	XTrain, YTrain *mat.Dense
	XTest, YTest   *mat.Dense
}

// FitContext runs the search. Every (candidate, fold) pair is an independent
// job on a pool of NJobs workers; the first failing job cancels the rest.
func (g *GridSearchCV) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GridSearchCV.Fit")

	if g.Estimator == nil {
		return errors.NewValueError("GridSearchCV.Fit", "estimator is nil")
	}
	scorer, err := GetScorer(g.Scoring)
	if err != nil {
		return err
	}
	candidates, err := ParameterGrid(g.ParamGrid)
	if err != nil {
		return err
	}
	rows, cols := X.Dims()
	if yRows, _ := y.Dims(); yRows != rows {
		return errors.NewDimensionError("GridSearchCV.Fit", rows, yRows, 0)
	}
	splits, err := NewKFold(g.CV, false, 0).Split(rows)
	if err != nil {
		return err
	}

	// fold matrices are shared read-only by all candidates
	folds := make([]foldData, len(splits))
	for i, s := range splits {
		folds[i] = foldData{
			XTrain: SelectRows(X, s.TrainIndices),
			YTrain: SelectRows(y, s.TrainIndices),
			XTest:  SelectRows(X, s.TestIndices),
			YTest:  SelectRows(y, s.TestIndices),
		}
	}

	nCand, nFolds := len(candidates), len(folds)
	logger := log.GetLoggerWithName("model_selection").With(log.ModelNameKey, "GridSearchCV")
	if g.Verbose > 0 {
		logger.Info(fmt.Sprintf("Fitting %d folds for each of %d candidates, totalling %d fits",
			nFolds, nCand, nFolds*nCand),
			log.OperationKey, log.OperationSearch,
			log.CandidatesKey, nCand,
			log.FoldsKey, nFolds,
			log.SamplesKey, rows,
			log.FeaturesKey, cols,
			log.WorkersKey, parallel.EffectiveJobs(g.NJobs),
		)
	}

	scores := make([][]float64, nCand)
	fitTimes := make([][]time.Duration, nCand)
	for c := range scores {
		scores[c] = make([]float64, nFolds)
		fitTimes[c] = make([]time.Duration, nFolds)
	}

	err = parallel.ForEach(ctx, g.NJobs, nCand*nFolds, func(ctx context.Context, job int) error {
		c, f := job/nFolds, job%nFolds
		est, err := g.candidate(candidates[c])
		if err != nil {
			return err
		}

		start := time.Now()
		if err := fit(ctx, est, folds[f].XTrain, folds[f].YTrain); err != nil {
			return errors.Wrapf(err, "fitting candidate %s on fold %d", candidates[c].Short(), f)
		}
		fitTimes[c][f] = time.Since(start)

		score, err := scorer(est, folds[f].XTest, folds[f].YTest)
		if err != nil {
			return errors.Wrapf(err, "scoring candidate %s on fold %d", candidates[c].Short(), f)
		}
		scores[c][f] = score

		if g.Verbose > 1 {
			logger.Info(fmt.Sprintf("[CV %d/%d] END %s; score=%.3f; total time=%.1fs",
				f+1, nFolds, candidates[c].Short(), score, fitTimes[c][f].Seconds()),
				log.FoldKey, f,
				log.CVScoreKey, score,
				log.DurationMsKey, fitTimes[c][f],
			)
		}
		return nil
	})
	if err != nil {
		return err
	}

	res := &CVResults{
		Params:        candidates,
		SplitScores:   scores,
		MeanTestScore: make([]float64, nCand),
		StdTestScore:  make([]float64, nCand),
		MeanFitTime:   make([]time.Duration, nCand),
	}
	nonFinite := 0
	for c := range candidates {
		res.MeanTestScore[c] = stat.Mean(scores[c], nil)
		res.StdTestScore[c] = math.Sqrt(stat.PopVariance(scores[c], nil))
		var total time.Duration
		for _, d := range fitTimes[c] {
			total += d
		}
		res.MeanFitTime[c] = total / time.Duration(nFolds)
		if math.IsNaN(res.MeanTestScore[c]) || math.IsInf(res.MeanTestScore[c], 0) {
			nonFinite++
		}
	}
	if nonFinite > 0 {
		logger.Warn("One or more of the test scores are non-finite",
			"non_finite_candidates", nonFinite,
		)
	}
	res.RankTestScore = rankScores(res.MeanTestScore)

	g.cvResults = res
	g.bestIndex = bestIndex(res.RankTestScore)
	g.bestEstimator = nil

	if g.Refit {
		best, err := g.candidate(candidates[g.bestIndex])
		if err != nil {
			return err
		}
		if err := fit(ctx, best, X, y); err != nil {
			return errors.Wrap(err, "refitting best candidate")
		}
		g.bestEstimator = best
	}

	if g.State == nil {
		g.State = model.NewStateManager()
	}
	g.State.SetDimensions(cols, rows)
	g.State.SetFitted()

	if g.Verbose > 0 {
		logger.Info("Grid search finished",
			log.HyperParamsKey, candidates[g.bestIndex].String(),
			log.CVScoreKey, res.MeanTestScore[g.bestIndex],
		)
	}
	return nil
}

// candidate clones the base estimator and applies params.
func (g *GridSearchCV) candidate(params Params) (Estimator, error) {
	est, ok := g.Estimator.Clone().(Estimator)
	if !ok {
		return nil, errors.NewValueError("GridSearchCV", "Clone did not return an Estimator")
	}
	if err := est.SetParams(params); err != nil {
		return nil, err
	}
	return est, nil
}

// rankScores ranks descending with ties sharing the lowest rank; NaN ranks last.
func rankScores(mean []float64) []int {
	ranks := make([]int, len(mean))
	for i, s := range mean {
		better := 0
		for _, o := range mean {
			switch {
			case math.IsNaN(s):
				if !math.IsNaN(o) {
					better++
				}
			case !math.IsNaN(o) && o > s:
				better++
			}
		}
		ranks[i] = better + 1
	}
	return ranks
}

// bestIndex returns the first candidate with rank 1.
func bestIndex(ranks []int) int {
	for i, r := range ranks {
		if r == 1 {
			return i
		}
	}
	return 0
}

func (g *GridSearchCV) requireFitted(method string) error {
	if g.State == nil || g.cvResults == nil {
		return errors.NewNotFittedError("GridSearchCV", method)
	}
	return g.State.RequireFitted("GridSearchCV", method)
}

// BestParams returns the parameter setting with the best mean score.
func (g *GridSearchCV) BestParams() (Params, error) {
	if err := g.requireFitted("BestParams"); err != nil {
		return nil, err
	}
	out := make(Params, len(g.cvResults.Params[g.bestIndex]))
	for k, v := range g.cvResults.Params[g.bestIndex] {
		out[k] = v
	}
	return out, nil
}

// BestScore returns the mean cross-validated score of the best candidate.
func (g *GridSearchCV) BestScore() (float64, error) {
	if err := g.requireFitted("BestScore"); err != nil {
		return 0, err
	}
	return g.cvResults.MeanTestScore[g.bestIndex], nil
}

// BestIndex returns the grid position of the best candidate.
func (g *GridSearchCV) BestIndex() (int, error) {
	if err := g.requireFitted("BestIndex"); err != nil {
		return 0, err
	}
	return g.bestIndex, nil
}

// BestEstimator returns the best candidate refitted on the whole data.
// It fails when Refit is disabled.
func (g *GridSearchCV) BestEstimator() (Estimator, error) {
	if err := g.requireFitted("BestEstimator"); err != nil {
		return nil, err
	}
	if g.bestEstimator == nil {
		return nil, errors.NewValueError("GridSearchCV.BestEstimator", "refit is disabled")
	}
	return g.bestEstimator, nil
}

// CVResults returns the per-candidate results.
func (g *GridSearchCV) CVResults() (*CVResults, error) {
	if err := g.requireFitted("CVResults"); err != nil {
		return nil, err
	}
	return g.cvResults, nil
}

// Predict delegates to the refitted best estimator.
func (g *GridSearchCV) Predict(X mat.Matrix) (mat.Matrix, error) {
	best, err := g.BestEstimator()
	if err != nil {
		return nil, err
	}
	return best.Predict(X)
}
