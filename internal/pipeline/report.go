package pipeline

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/mat"

	"github.com/befresh/phmodel/metrics"
	"github.com/befresh/phmodel/pkg/errors"
	"github.com/befresh/phmodel/sklearn/ensemble"
	"github.com/befresh/phmodel/sklearn/model_selection"
)

// Column names of the prediction table.
const (
	indexColumn     = "index"
	actualColumn    = "Actual"
	predictedColumn = "Predicted"
)

// PredictionTable pairs every test row (by its row number in the input)
// with its actual and predicted pH.
type PredictionTable struct {
	df dataframe.DataFrame
}

// NewPredictionTable builds the table from n×1 actual and predicted values.
func NewPredictionTable(index []int, actual, predicted mat.Matrix) (*PredictionTable, error) {
	n, ac := actual.Dims()
	pn, pc := predicted.Dims()
	if pn != n || ac != 1 || pc != 1 {
		return nil, errors.NewInputShapeError("report", []int{n, 1}, []int{pn, pc})
	}
	if len(index) != n {
		return nil, errors.NewDimensionError("NewPredictionTable", n, len(index), 0)
	}

	df := dataframe.New(
		series.New(index, series.Int, indexColumn),
		series.New(mat.Col(nil, 0, actual), series.Float, actualColumn),
		series.New(mat.Col(nil, 0, predicted), series.Float, predictedColumn),
	)
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "failed to build prediction table")
	}
	return &PredictionTable{df: df}, nil
}

// Len returns the number of rows.
func (t *PredictionTable) Len() int { return t.df.Nrow() }

// DataFrame exposes the underlying dataframe.
func (t *PredictionTable) DataFrame() dataframe.DataFrame { return t.df }

// Index returns the input row numbers.
func (t *PredictionTable) Index() ([]int, error) {
	return t.df.Col(indexColumn).Int()
}

func (t *PredictionTable) Actual() []float64    { return t.df.Col(actualColumn).Float() }
func (t *PredictionTable) Predicted() []float64 { return t.df.Col(predictedColumn).Float() }

// WriteTo prints the table with right aligned columns, the row number first.
func (t *PredictionTable) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	tw := tabwriter.NewWriter(cw, 0, 0, 2, ' ', tabwriter.AlignRight)

	idx, err := t.Index()
	if err != nil {
		return 0, err
	}
	actual, pred := t.Actual(), t.Predicted()

	fmt.Fprintf(tw, "\t%s\t%s\t\n", actualColumn, predictedColumn)
	for i := range idx {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n",
			strconv.Itoa(idx[i]), metrics.FormatFloat(actual[i]), metrics.FormatFloat(pred[i]))
	}
	err = tw.Flush()
	return cw.n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Report prints the console summary of a run. The first write error is kept
// and every later call becomes a no-op.
type Report struct {
	w   io.Writer
	err error
}

func NewReport(w io.Writer) *Report {
	if w == nil {
		w = io.Discard
	}
	return &Report{w: w}
}

func (r *Report) printf(format string, args ...interface{}) {
	if r.err != nil {
		return
	}
	_, r.err = fmt.Fprintf(r.w, format, args...)
}

func (r *Report) BestParams(p model_selection.Params) {
	r.printf("Best Parameters: %s\n", p)
}

func (r *Report) Metrics(mse, rmse, r2 float64) {
	r.printf("Mean Squared Error: %s\n", metrics.FormatFloat(mse))
	r.printf("Root Mean Squared Error: %s\n", metrics.FormatFloat(rmse))
	r.printf("R-squared: %s\n", metrics.FormatFloat(r2))
}

func (r *Report) Ranking(ranking []ensemble.RankedFeature) {
	r.printf("Feature ranking:\n")
	for _, f := range ranking {
		r.printf("%s\n", f)
	}
}

func (r *Report) Predictions(t *PredictionTable) {
	if r.err != nil {
		return
	}
	_, r.err = t.WriteTo(r.w)
}

// Err returns the first write error.
func (r *Report) Err() error { return r.err }
