// Package model_selection provides data splitting, cross-validation and
// exhaustive hyperparameter search in the style of scikit-learn.
package model_selection

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/befresh/phmodel/pkg/errors"
)

// Split holds the result of TrainTestSplit. TrainIndex and TestIndex are the
// original row numbers of each partition, in partition order.
type Split struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest *mat.Dense

	TrainIndex []int
	TestIndex  []int
}

// ShuffleSplitIndices permutes [0, n) with randomState and returns the last
// n - ceil(testSize*n) positions as train and the first ceil(testSize*n) as test.
// The same (n, testSize, randomState) always gives the same partition.
func ShuffleSplitIndices(n int, testSize float64, randomState int) (train, test []int, err error) {
	if !(testSize > 0 && testSize < 1) {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest == 0 || nTrain == 0 {
		return nil, nil, errors.NewValueError("TrainTestSplit", fmt.Sprintf(
			"with n_samples=%d and test_size=%v one of the partitions is empty", n, testSize))
	}

	rng := rand.New(rand.NewPCG(uint64(randomState), uint64(randomState)))
	perm := rng.Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

// TrainTestSplit splits X (n×p) and y (n×1) into random train and test subsets.
func TrainTestSplit(X, y mat.Matrix, testSize float64, randomState int) (*Split, error) {
	rows, _ := X.Dims()
	yRows, yCols := y.Dims()
	if rows != yRows {
		return nil, errors.NewDimensionError("TrainTestSplit", rows, yRows, 0)
	}
	if yCols != 1 {
		return nil, errors.NewDimensionError("TrainTestSplit", 1, yCols, 1)
	}

	train, test, err := ShuffleSplitIndices(rows, testSize, randomState)
	if err != nil {
		return nil, err
	}

	return &Split{
		XTrain:     SelectRows(X, train),
		XTest:      SelectRows(X, test),
		YTrain:     SelectRows(y, train),
		YTest:      SelectRows(y, test),
		TrainIndex: train,
		TestIndex:  test,
	}, nil
}

// SelectRows copies the given rows of m into a new matrix. An empty idx
// yields an empty matrix.
func SelectRows(m mat.Matrix, idx []int) *mat.Dense {
	if len(idx) == 0 {
		return &mat.Dense{}
	}
	_, cols := m.Dims()
	out := mat.NewDense(len(idx), cols, nil)
	row := make([]float64, cols)
	for i, r := range idx {
		mat.Row(row, r, m)
		out.SetRow(i, row)
	}
	return out
}
