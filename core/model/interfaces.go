// Package model provides the shared estimator interfaces, fitted-state
// bookkeeping and gob persistence used by the regressors in sklearn/.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Fitter learns from X (n×p) and y (n×1).
type Fitter interface {
	Fit(X, y mat.Matrix) error
}

// Predictor returns an n×1 matrix of predictions for X.
type Predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator can be fitted and then used for prediction.
type Estimator interface {
	Fitter
	Predictor
}

// Scorer is the interface for models that can compute a score.
type Scorer interface {
	// Score returns the coefficient of determination R^2 of the prediction.
	Score(X, y mat.Matrix) (float64, error)
}

// Regressor combines interfaces for regression models.
type Regressor interface {
	Estimator
	Scorer
}

// FeatureImportancer is implemented by models that can attribute their
// predictions to input features, such as tree ensembles.
type FeatureImportancer interface {
	// FeatureImportances returns one non-negative value per feature that sums
	// to 1, or all zeros when the model never split.
	FeatureImportances() ([]float64, error)
}
