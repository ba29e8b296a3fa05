package dataset

import "context"

// Source loads a SensorTable. Column names are already normalised.
type Source interface {
	Load(ctx context.Context) (*SensorTable, error)
	Describe() string
}

var (
	_ Source = CSVSource{}
	_ Source = (*ClickHouseSource)(nil)
)
