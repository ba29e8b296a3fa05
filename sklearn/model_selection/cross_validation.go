package model_selection

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/befresh/phmodel/core/parallel"
	"github.com/befresh/phmodel/pkg/errors"
)

// CrossValScore fits a clone of est on each of cv contiguous folds and
// returns the held-out score of every fold, in fold order.
func CrossValScore(ctx context.Context, est Estimator, X, y mat.Matrix, cv int, scoring string, nJobs int) ([]float64, error) {
	scorer, err := GetScorer(scoring)
	if err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	if yRows, _ := y.Dims(); yRows != rows {
		return nil, errors.NewDimensionError("CrossValScore", rows, yRows, 0)
	}
	folds, err := NewKFold(cv, false, 0).Split(rows)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(folds))
	err = parallel.ForEach(ctx, nJobs, len(folds), func(ctx context.Context, i int) error {
		clone, ok := est.Clone().(Estimator)
		if !ok {
			return errors.NewValueError("CrossValScore", "Clone did not return an Estimator")
		}
		f := folds[i]
		if err := fit(ctx, clone, SelectRows(X, f.TrainIndices), SelectRows(y, f.TrainIndices)); err != nil {
			return errors.Wrapf(err, "fold %d", i)
		}
		s, err := scorer(clone, SelectRows(X, f.TestIndices), SelectRows(y, f.TestIndices))
		if err != nil {
			return errors.Wrapf(err, "fold %d", i)
		}
		scores[i] = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}
