// Package ensemble implements a random forest regressor on top of
// sklearn/tree, following scikit-learn's RandomForestRegressor.
package ensemble

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/befresh/phmodel/core/model"
	"github.com/befresh/phmodel/core/parallel"
	"github.com/befresh/phmodel/metrics"
	"github.com/befresh/phmodel/pkg/errors"
	"github.com/befresh/phmodel/pkg/log"
	"github.com/befresh/phmodel/sklearn/tree"
)

var (
	_ model.RegressorMixin     = (*RandomForestRegressor)(nil)
	_ model.FeatureImportancer = (*RandomForestRegressor)(nil)
)

// RandomForestRegressor averages bootstrapped regression trees.
type RandomForestRegressor struct {
	// Hyperparameters (matching scikit-learn)
	NEstimators     int  // Number of trees
	MaxDepth        int  // Maximum tree depth, 0 means unlimited
	MinSamplesSplit int  // Minimum samples required to split a node
	MinSamplesLeaf  int  // Minimum samples required in each leaf
	MaxFeatures     int  // Features considered per split, 0 means all
	Bootstrap       bool // Fit each tree on a bootstrap sample
	RandomState     int  // Random seed
	NJobs           int  // Parallel workers for Fit and Predict, -1 means all cores

	// Fitted state
	Trees        []*tree.DecisionTreeRegressor
	FeatureNames []string
	State        *model.StateManager
}

// NewRandomForestRegressor creates a forest with scikit-learn's defaults.
func NewRandomForestRegressor() *RandomForestRegressor {
	return &RandomForestRegressor{
		NEstimators:     100,
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     0,
		Bootstrap:       true,
		RandomState:     0,
		NJobs:           1,
		State:           model.NewStateManager(),
	}
}

// WithNEstimators sets the number of trees
func (rf *RandomForestRegressor) WithNEstimators(n int) *RandomForestRegressor {
	rf.NEstimators = n
	return rf
}

// WithMaxDepth sets the maximum depth
func (rf *RandomForestRegressor) WithMaxDepth(d int) *RandomForestRegressor {
	rf.MaxDepth = d
	return rf
}

// WithMinSamplesSplit sets the minimum number of samples to split a node
func (rf *RandomForestRegressor) WithMinSamplesSplit(n int) *RandomForestRegressor {
	rf.MinSamplesSplit = n
	return rf
}

// WithMinSamplesLeaf sets the minimum number of samples in a leaf
func (rf *RandomForestRegressor) WithMinSamplesLeaf(n int) *RandomForestRegressor {
	rf.MinSamplesLeaf = n
	return rf
}

// WithMaxFeatures sets the number of features examined per split
func (rf *RandomForestRegressor) WithMaxFeatures(n int) *RandomForestRegressor {
	rf.MaxFeatures = n
	return rf
}

// WithBootstrap toggles bootstrap sampling
func (rf *RandomForestRegressor) WithBootstrap(b bool) *RandomForestRegressor {
	rf.Bootstrap = b
	return rf
}

// WithRandomState sets the random seed
func (rf *RandomForestRegressor) WithRandomState(seed int) *RandomForestRegressor {
	rf.RandomState = seed
	return rf
}

// WithNJobs sets the number of parallel workers
func (rf *RandomForestRegressor) WithNJobs(n int) *RandomForestRegressor {
	rf.NJobs = n
	return rf
}

// WithFeatureNames attaches column names used by RankImportances callers
func (rf *RandomForestRegressor) WithFeatureNames(names []string) *RandomForestRegressor {
	rf.FeatureNames = append([]string(nil), names...)
	return rf
}

// Fit trains the forest on X (n×p) and y (n×1).
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	return rf.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cancellation between trees.
//
// Tree seeds are drawn sequentially from RandomState before any tree is
// built, so the fitted forest does not depend on NJobs.
func (rf *RandomForestRegressor) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")

	if rf.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", rf.NEstimators)
	}
	data, err := tree.NewDataset(X, y)
	if err != nil {
		return err
	}
	nSamples, nFeatures := data.NSamples(), data.NFeatures()
	if len(rf.FeatureNames) > 0 && len(rf.FeatureNames) != nFeatures {
		return errors.NewDimensionError("Fit", len(rf.FeatureNames), nFeatures, 1)
	}

	logger := log.GetLoggerWithName("ensemble").With(log.ModelNameKey, "RandomForestRegressor")
	start := time.Now()

	seedRNG := rand.New(rand.NewPCG(uint64(rf.RandomState), uint64(rf.RandomState)))
	seeds := make([]int, rf.NEstimators)
	for i := range seeds {
		seeds[i] = seedRNG.IntN(math.MaxInt32)
	}

	trees := make([]*tree.DecisionTreeRegressor, rf.NEstimators)
	err = parallel.ForEach(ctx, rf.NJobs, rf.NEstimators, func(_ context.Context, i int) error {
		t := tree.NewDecisionTreeRegressor().
			WithMaxDepth(rf.MaxDepth).
			WithMinSamplesSplit(rf.MinSamplesSplit).
			WithMinSamplesLeaf(rf.MinSamplesLeaf).
			WithMaxFeatures(rf.MaxFeatures).
			WithRandomState(seeds[i])

		var weights []float64
		if rf.Bootstrap {
			weights = bootstrapWeights(seeds[i], nSamples)
		}
		if err := t.FitDataset(data, weights); err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
		trees[i] = t
		return nil
	})
	if err != nil {
		return err
	}

	rf.Trees = trees
	if rf.State == nil {
		rf.State = model.NewStateManager()
	}
	rf.State.SetDimensions(nFeatures, nSamples)
	rf.State.SetFitted()

	logger.Debug("Forest fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		"n_estimators", rf.NEstimators,
		log.DurationMsKey, time.Since(start),
	)
	return nil
}

// bootstrapWeights draws n indices with replacement and returns how often
// each sample was drawn.
func bootstrapWeights(seed, n int) []float64 {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[rng.IntN(n)]++
	}
	return w
}

func (rf *RandomForestRegressor) requireFitted(method string) error {
	if rf.State == nil {
		return errors.NewNotFittedError("RandomForestRegressor", method)
	}
	return rf.State.RequireFitted("RandomForestRegressor", method)
}

// Predict returns the mean prediction of all trees as an n×1 matrix.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.requireFitted("Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := rf.State.CheckFeatures("Predict", cols); err != nil {
		return nil, err
	}

	out := make([]float64, rows)
	nTrees := float64(len(rf.Trees))
	parallel.ParallelizeN(rows, parallel.EffectiveJobs(rf.NJobs), func(start, end int) {
		row := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			sum := 0.0
			for _, t := range rf.Trees {
				sum += t.PredictRow(row)
			}
			out[i] = sum / nTrees
		}
	})
	return mat.NewDense(rows, 1, out), nil
}

// Score returns the coefficient of determination R^2 of the prediction
func (rf *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// FeatureImportances averages the importances of every tree that split at
// least once and renormalises the result to sum to 1. If no tree split, all
// importances are zero.
func (rf *RandomForestRegressor) FeatureImportances() ([]float64, error) {
	if err := rf.requireFitted("FeatureImportances"); err != nil {
		return nil, err
	}
	nFeatures, _ := rf.State.GetDimensions()
	mean := make([]float64, nFeatures)

	used := 0
	for _, t := range rf.Trees {
		if t.NodeCount() <= 1 {
			continue
		}
		imp, err := t.FeatureImportances()
		if err != nil {
			return nil, err
		}
		for j, v := range imp {
			mean[j] += v
		}
		used++
	}
	if used == 0 {
		return mean, nil
	}

	total := 0.0
	for j := range mean {
		mean[j] /= float64(used)
		total += mean[j]
	}
	for j := range mean {
		mean[j] = errors.SafeDivide(mean[j], total)
	}
	return mean, nil
}

// GetParams returns the parameters of the forest
func (rf *RandomForestRegressor) GetParams(deep bool) map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.NEstimators,
		"max_depth":         rf.MaxDepth,
		"min_samples_split": rf.MinSamplesSplit,
		"min_samples_leaf":  rf.MinSamplesLeaf,
		"max_features":      rf.MaxFeatures,
		"bootstrap":         rf.Bootstrap,
		"random_state":      rf.RandomState,
		"n_jobs":            rf.NJobs,
	}
}

// SetParams sets the parameters of the forest. Unknown keys are an error.
func (rf *RandomForestRegressor) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		if key == "bootstrap" {
			b, err := model.ParamBool(key, value)
			if err != nil {
				return err
			}
			rf.Bootstrap = b
			continue
		}

		var dst *int
		switch key {
		case "n_estimators":
			dst = &rf.NEstimators
		case "max_depth":
			dst = &rf.MaxDepth
		case "min_samples_split":
			dst = &rf.MinSamplesSplit
		case "min_samples_leaf":
			dst = &rf.MinSamplesLeaf
		case "max_features":
			dst = &rf.MaxFeatures
		case "random_state":
			dst = &rf.RandomState
		case "n_jobs":
			dst = &rf.NJobs
		default:
			return errors.NewValidationError(key, "unknown parameter for RandomForestRegressor", value)
		}
		v, err := model.ParamInt(key, value)
		if err != nil {
			return err
		}
		*dst = v
	}
	return nil
}

// Clone returns an unfitted forest with the same parameters and feature names.
func (rf *RandomForestRegressor) Clone() model.SKLearnCompatible {
	c := NewRandomForestRegressor()
	_ = c.SetParams(rf.GetParams(false))
	c.FeatureNames = append([]string(nil), rf.FeatureNames...)
	return c
}
