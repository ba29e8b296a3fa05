// Package tree implements a CART regression tree with a squared-error
// criterion, compatible with scikit-learn's DecisionTreeRegressor.
package tree

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/befresh/phmodel/core/model"
	"github.com/befresh/phmodel/core/parallel"
	"github.com/befresh/phmodel/metrics"
	"github.com/befresh/phmodel/pkg/errors"
)

var _ model.RegressorMixin = (*DecisionTreeRegressor)(nil)

// DecisionTreeRegressor is a regression tree grown greedily on squared error.
type DecisionTreeRegressor struct {
	// Hyperparameters (matching scikit-learn)
	MaxDepth        int // Maximum depth, 0 means unlimited
	MinSamplesSplit int // Minimum samples required to split a node
	MinSamplesLeaf  int // Minimum samples required in each leaf
	MaxFeatures     int // Features considered per split, 0 means all
	RandomState     int // Seed for the feature visiting order

	// Fitted tree
	Nodes []Node
	State *model.StateManager
}

// NewDecisionTreeRegressor creates a tree with scikit-learn's defaults.
func NewDecisionTreeRegressor() *DecisionTreeRegressor {
	return &DecisionTreeRegressor{
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     0,
		State:           model.NewStateManager(),
	}
}

// WithMaxDepth sets the maximum depth
func (t *DecisionTreeRegressor) WithMaxDepth(d int) *DecisionTreeRegressor {
	t.MaxDepth = d
	return t
}

// WithMinSamplesSplit sets the minimum number of samples to split a node
func (t *DecisionTreeRegressor) WithMinSamplesSplit(n int) *DecisionTreeRegressor {
	t.MinSamplesSplit = n
	return t
}

// WithMinSamplesLeaf sets the minimum number of samples in a leaf
func (t *DecisionTreeRegressor) WithMinSamplesLeaf(n int) *DecisionTreeRegressor {
	t.MinSamplesLeaf = n
	return t
}

// WithMaxFeatures sets the number of features examined per split
func (t *DecisionTreeRegressor) WithMaxFeatures(n int) *DecisionTreeRegressor {
	t.MaxFeatures = n
	return t
}

// WithRandomState sets the random seed
func (t *DecisionTreeRegressor) WithRandomState(seed int) *DecisionTreeRegressor {
	t.RandomState = seed
	return t
}

func (t *DecisionTreeRegressor) validate(nFeatures int) error {
	if t.MaxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be >= 0 (0 means unlimited)", t.MaxDepth)
	}
	if t.MinSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", t.MinSamplesSplit)
	}
	if t.MinSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", t.MinSamplesLeaf)
	}
	if t.MaxFeatures < 0 || t.MaxFeatures > nFeatures {
		return errors.NewValidationError("max_features", "must be in [0, n_features]", t.MaxFeatures)
	}
	return nil
}

// Fit builds the tree from X (n×p) and y (n×1).
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	return t.FitWeighted(X, y, nil)
}

// FitWeighted builds the tree with per-sample weights. Samples with zero
// weight are ignored; a nil slice weights every sample 1.
func (t *DecisionTreeRegressor) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	d, err := NewDataset(X, y)
	if err != nil {
		return err
	}
	return t.FitDataset(d, sampleWeight)
}

// FitDataset builds the tree from an already validated Dataset. The forest
// uses it to share one column-major copy between all of its trees.
func (t *DecisionTreeRegressor) FitDataset(d *Dataset, sampleWeight []float64) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	nSamples, nFeatures := d.NSamples(), d.NFeatures()
	if err := t.validate(nFeatures); err != nil {
		return err
	}
	if sampleWeight != nil {
		if len(sampleWeight) != nSamples {
			return errors.NewDimensionError("Fit", nSamples, len(sampleWeight), 0)
		}
		total := 0.0
		for _, w := range sampleWeight {
			if w < 0 {
				return errors.NewValueError("Fit", "sample weights must be non-negative")
			}
			total += w
		}
		if total == 0 {
			return errors.NewValueError("Fit", "sample weights sum to zero")
		}
	}

	maxDepth := t.MaxDepth
	if maxDepth == 0 {
		maxDepth = math.MaxInt32
	}
	maxFeatures := t.MaxFeatures
	if maxFeatures == 0 {
		maxFeatures = nFeatures
	}
	seed := uint64(t.RandomState)

	b := &builder{
		data:            d,
		weight:          sampleWeight,
		maxDepth:        maxDepth,
		minSamplesSplit: max(t.MinSamplesSplit, 2*t.MinSamplesLeaf),
		minSamplesLeaf:  t.MinSamplesLeaf,
		maxFeatures:     maxFeatures,
		rng:             rand.New(rand.NewPCG(seed, seed)),
	}
	t.Nodes = b.build()

	if t.State == nil {
		t.State = model.NewStateManager()
	}
	t.State.SetDimensions(nFeatures, nSamples)
	t.State.SetFitted()
	return nil
}

// PredictRow returns the prediction for a single sample. It does not check
// the fitted state or the row length.
func (t *DecisionTreeRegressor) PredictRow(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Predict returns an n×1 matrix of predictions.
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if t.State == nil {
		return nil, errors.NewNotFittedError("DecisionTreeRegressor", "Predict")
	}
	if err := t.State.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := t.State.CheckFeatures("Predict", cols); err != nil {
		return nil, err
	}

	out := make([]float64, rows)
	parallel.Parallelize(rows, func(start, end int) {
		row := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			out[i] = t.PredictRow(row)
		}
	})
	return mat.NewDense(rows, 1, out), nil
}

// Score returns the coefficient of determination R^2 of the prediction
func (t *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := t.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// FeatureImportances returns the normalised total impurity decrease
// contributed by each feature. A tree that never split yields all zeros.
func (t *DecisionTreeRegressor) FeatureImportances() ([]float64, error) {
	if t.State == nil || !t.State.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeRegressor", "FeatureImportances")
	}
	nFeatures, _ := t.State.GetDimensions()
	imp := make([]float64, nFeatures)

	for i := range t.Nodes {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			continue
		}
		l, r := &t.Nodes[n.Left], &t.Nodes[n.Right]
		imp[n.Feature] += n.WeightedNSamples*n.Impurity -
			l.WeightedNSamples*l.Impurity -
			r.WeightedNSamples*r.Impurity
	}

	root := t.Nodes[0].WeightedNSamples
	total := 0.0
	for i := range imp {
		imp[i] /= root
		total += imp[i]
	}
	if total > 0 {
		for i := range imp {
			imp[i] /= total
		}
	}
	return imp, nil
}

// NodeCount returns the number of nodes in the fitted tree.
func (t *DecisionTreeRegressor) NodeCount() int {
	return len(t.Nodes)
}

// Depth returns the depth of the fitted tree; a single leaf has depth 0.
func (t *DecisionTreeRegressor) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(i, d int) int
	walk = func(i, d int) int {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return d
		}
		return max(walk(n.Left, d+1), walk(n.Right, d+1))
	}
	return walk(0, 0)
}

// GetParams returns the parameters of the tree
func (t *DecisionTreeRegressor) GetParams(deep bool) map[string]interface{} {
	return map[string]interface{}{
		"max_depth":         t.MaxDepth,
		"min_samples_split": t.MinSamplesSplit,
		"min_samples_leaf":  t.MinSamplesLeaf,
		"max_features":      t.MaxFeatures,
		"random_state":      t.RandomState,
	}
}

// SetParams sets the parameters of the tree. Unknown keys are an error.
func (t *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var dst *int
		switch key {
		case "max_depth":
			dst = &t.MaxDepth
		case "min_samples_split":
			dst = &t.MinSamplesSplit
		case "min_samples_leaf":
			dst = &t.MinSamplesLeaf
		case "max_features":
			dst = &t.MaxFeatures
		case "random_state":
			dst = &t.RandomState
		default:
			return errors.NewValidationError(key, "unknown parameter for DecisionTreeRegressor", value)
		}
		v, err := model.ParamInt(key, value)
		if err != nil {
			return err
		}
		*dst = v
	}
	return nil
}

// Clone returns an unfitted tree with the same parameters.
func (t *DecisionTreeRegressor) Clone() model.SKLearnCompatible {
	c := NewDecisionTreeRegressor()
	c.MaxDepth = t.MaxDepth
	c.MinSamplesSplit = t.MinSamplesSplit
	c.MinSamplesLeaf = t.MinSamplesLeaf
	c.MaxFeatures = t.MaxFeatures
	c.RandomState = t.RandomState
	return c
}
