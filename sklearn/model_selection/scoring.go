package model_selection

import (
	"gonum.org/v1/gonum/mat"

	"github.com/befresh/phmodel/core/model"
	"github.com/befresh/phmodel/metrics"
	"github.com/befresh/phmodel/pkg/errors"
)

// Scorer evaluates a fitted estimator on held-out data. Greater is better:
// error metrics are negated.
type Scorer func(est model.Predictor, X, y mat.Matrix) (float64, error)

type metricFunc func(yTrue, yPred mat.Matrix) (float64, error)

func predictAndScore(metric metricFunc, sign float64) Scorer {
	return func(est model.Predictor, X, y mat.Matrix) (float64, error) {
		pred, err := est.Predict(X)
		if err != nil {
			return 0, err
		}
		v, err := metric(y, pred)
		if err != nil {
			return 0, err
		}
		return sign * v, nil
	}
}

var scorers = map[string]Scorer{
	"r2":                                 predictAndScore(metrics.R2ScoreMatrix, 1),
	"explained_variance":                 predictAndScore(metrics.ExplainedVarianceScoreMatrix, 1),
	"neg_mean_squared_error":             predictAndScore(metrics.MSEMatrix, -1),
	"neg_root_mean_squared_error":        predictAndScore(metrics.RMSEMatrix, -1),
	"neg_mean_absolute_error":            predictAndScore(metrics.MAEMatrix, -1),
	"neg_mean_absolute_percentage_error": predictAndScore(mapeFraction, -1),
}

// mapeFraction reports MAPE as a fraction, matching scikit-learn's scorer.
func mapeFraction(yTrue, yPred mat.Matrix) (float64, error) {
	v, err := metrics.MAPEMatrix(yTrue, yPred)
	return v / 100, err
}

// GetScorer resolves a scoring name. The empty name means R², the default
// score of a regressor.
func GetScorer(name string) (Scorer, error) {
	if name == "" {
		name = "r2"
	}
	s, ok := scorers[name]
	if !ok {
		return nil, errors.NewValidationError("scoring", "unknown scoring name", name)
	}
	return s, nil
}
