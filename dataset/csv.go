package dataset

import (
	"context"
	"io"
	"math"
	"os"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/befresh/phmodel/pkg/errors"
)

// ReadCSV parses a comma separated export with a header row. Every column is
// read as text first so that timestamps and numbers get their own error
// messages. Column names are normalised with NormalizeColumnName.
func ReadCSV(r io.Reader) (*SensorTable, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "failed to parse CSV")
	}
	return FromDataFrame(df)
}

// FromDataFrame converts a dataframe whose columns hold text or numbers into
// a SensorTable. The time column is required. Only the sensor columns are
// converted and must be numeric; any other column is ignored, whatever it
// holds. Missing sensor columns are reported by Matrix.
func FromDataFrame(df dataframe.DataFrame) (*SensorTable, error) {
	if df.Err != nil {
		return nil, errors.WithStack(df.Err)
	}
	if df.Nrow() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "no rows in input")
	}

	seen := make(map[string]bool, df.Ncol())
	for _, old := range df.Names() {
		name := NormalizeColumnName(old)
		if seen[name] {
			return nil, errors.NewValidationError("column", "duplicate column after normalisation", name)
		}
		seen[name] = true
		if name != old {
			df = df.Rename(name, old)
		}
	}
	if !seen[TimeColumn] {
		return nil, errors.Wrapf(errors.ErrMissingColumn, "%q", TimeColumn)
	}

	wanted := make(map[string]bool, len(sensorColumns))
	for _, n := range sensorColumns {
		wanted[n] = true
	}
	names := make([]string, 0, len(sensorColumns))
	for _, n := range df.Names() {
		if wanted[n] {
			names = append(names, n)
		}
	}
	table := NewSensorTable(names)

	times, err := parseTimes(df.Col(TimeColumn).Records())
	if err != nil {
		return nil, err
	}
	table.Time = times

	for _, name := range names {
		col := df.Col(name)
		values := col.Float()
		raw := col.Records()
		for i, v := range values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.Newf("column %q row %d: %q is not a finite number", name, i, raw[i])
			}
		}
		table.Columns[name] = values
	}
	return table, nil
}

// parseTimes accepts the formats pandas' to_datetime guesses for sensor
// exports. Timestamps without a zone are read as UTC.
func parseTimes(raw []string) ([]time.Time, error) {
	out := make([]time.Time, len(raw))
	for i, s := range raw {
		ts, err := dateparse.ParseIn(s, time.UTC)
		if err != nil {
			return nil, errors.Wrapf(err, "column %q row %d: invalid timestamp %q", TimeColumn, i, s)
		}
		out[i] = ts
	}
	return out, nil
}

// CSVSource reads readings from a file.
type CSVSource struct {
	Path string
}

// Load opens Path and parses it with ReadCSV.
func (s CSVSource) Load(ctx context.Context) (*SensorTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", s.Path)
	}
	defer f.Close()

	table, err := ReadCSV(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", s.Path)
	}
	return table, nil
}

// Describe names the source for logs.
func (s CSVSource) Describe() string {
	return "csv:" + s.Path
}
