package tree

import (
	"gonum.org/v1/gonum/mat"

	"github.com/befresh/phmodel/pkg/errors"
)

// Dataset is a column-major copy of a training set.
//
// Split search walks one feature at a time, so features are stored as
// contiguous columns. A Dataset is read-only after construction and can be
// shared by every tree of a forest.
type Dataset struct {
	Cols [][]float64
	Y    []float64
}

// NewDataset validates X (n×p) and y (n×1) and copies them column-major.
func NewDataset(X, y mat.Matrix) (*Dataset, error) {
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()

	if rows == 0 || cols == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "NewDataset")
	}
	if rows != yRows {
		return nil, errors.NewDimensionError("Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return nil, errors.NewDimensionError("Fit", 1, yCols, 1)
	}

	d := &Dataset{
		Cols: make([][]float64, cols),
		Y:    mat.Col(nil, 0, y),
	}
	for j := 0; j < cols; j++ {
		d.Cols[j] = mat.Col(nil, j, X)
		if err := errors.CheckNumericalStability("Fit", d.Cols[j]); err != nil {
			return nil, err
		}
	}
	if err := errors.CheckNumericalStability("Fit", d.Y); err != nil {
		return nil, err
	}
	return d, nil
}

// NSamples returns the number of rows.
func (d *Dataset) NSamples() int { return len(d.Y) }

// NFeatures returns the number of columns.
func (d *Dataset) NFeatures() int { return len(d.Cols) }
