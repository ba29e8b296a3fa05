// Package dataset loads sensor readings and turns them into the feature
// matrix and target vector used for training.
//
// Two sources produce the same SensorTable: a CSV export (CSVSource) and the
// sensor warehouse (ClickHouseSource). Column names are normalised the same
// way for both, so "ph values" becomes "ph_values".
package dataset

import (
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/befresh/phmodel/pkg/errors"
)

// Column names after normalisation.
const (
	TimeColumn        = "time"
	ElapsedTimeColumn = "elapsed_time"
	TargetColumn      = "ph_values"
)

// FeatureColumns is the feature order of the training matrix.
var FeatureColumns = []string{ElapsedTimeColumn, "temperature", "humidity", "gas", "nh3"}

// sensorColumns are the measured columns every source converts to float64.
var sensorColumns = []string{"temperature", "humidity", "gas", "nh3", TargetColumn}

// NormalizeColumnName replaces every space with an underscore.
func NormalizeColumnName(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}

// SensorTable is a loaded batch of readings. Columns holds every numeric
// column keyed by its normalised name, Names keeps the source order.
type SensorTable struct {
	Time    []time.Time
	Names   []string
	Columns map[string][]float64
}

// NewSensorTable creates an empty table with the given numeric columns.
func NewSensorTable(names []string) *SensorTable {
	t := &SensorTable{
		Names:   make([]string, 0, len(names)),
		Columns: make(map[string][]float64, len(names)),
	}
	for _, n := range names {
		t.Names = append(t.Names, n)
		t.Columns[n] = nil
	}
	return t
}

// Len returns the number of rows.
func (t *SensorTable) Len() int {
	return len(t.Time)
}

// HasColumn reports whether name is a numeric column of the table.
func (t *SensorTable) HasColumn(name string) bool {
	_, ok := t.Columns[name]
	return ok
}

// ElapsedMinutes returns the minutes between each timestamp and the first
// one. Rows are not sorted, so values are monotonic only when the input is.
func (t *SensorTable) ElapsedMinutes() []float64 {
	out := make([]float64, len(t.Time))
	if len(t.Time) == 0 {
		return out
	}
	first := t.Time[0]
	for i, ts := range t.Time {
		out[i] = ts.Sub(first).Minutes()
	}
	return out
}

// WithElapsedTime adds (or replaces) the elapsed_time column and returns t.
func (t *SensorTable) WithElapsedTime() *SensorTable {
	if !t.HasColumn(ElapsedTimeColumn) {
		t.Names = append(t.Names, ElapsedTimeColumn)
	}
	t.Columns[ElapsedTimeColumn] = t.ElapsedMinutes()
	return t
}

// Matrix builds X (n×len(features)) and y (n×1) from the named columns.
// Every value used must be finite.
func (t *SensorTable) Matrix(features []string, target string) (X, y *mat.Dense, err error) {
	n := t.Len()
	if n == 0 {
		return nil, nil, errors.Wrap(errors.ErrEmptyData, "SensorTable.Matrix")
	}
	if len(features) == 0 {
		return nil, nil, errors.NewValueError("SensorTable.Matrix", "no feature columns selected")
	}

	cols := make([][]float64, len(features))
	for j, name := range features {
		col, err := t.column(name)
		if err != nil {
			return nil, nil, err
		}
		cols[j] = col
	}
	yCol, err := t.column(target)
	if err != nil {
		return nil, nil, err
	}

	X = mat.NewDense(n, len(features), nil)
	for j, col := range cols {
		X.SetCol(j, col)
	}
	y = mat.NewDense(n, 1, nil)
	y.SetCol(0, yCol)
	return X, y, nil
}

func (t *SensorTable) column(name string) ([]float64, error) {
	col, ok := t.Columns[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrMissingColumn, "%q", name)
	}
	if len(col) != t.Len() {
		return nil, errors.NewDimensionError("SensorTable."+name, t.Len(), len(col), 0)
	}
	for i, v := range col {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.Newf("column %q row %d: non-finite value %v", name, i, v)
		}
	}
	return col, nil
}
