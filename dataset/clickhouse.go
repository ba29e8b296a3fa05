package dataset

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/befresh/phmodel/pkg/errors"
	"github.com/befresh/phmodel/pkg/log"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ClickHouseConfig holds connection settings for the sensor warehouse.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Table    string

	DialTimeout time.Duration
}

// ClickHouseSource reads readings from a ClickHouse table with one row per
// timestamp.
type ClickHouseSource struct {
	cfg  ClickHouseConfig
	conn driver.Conn
}

// NewClickHouseSource validates cfg. The connection is opened lazily by Load.
func NewClickHouseSource(cfg ClickHouseConfig) (*ClickHouseSource, error) {
	if cfg.Addr == "" {
		return nil, errors.NewValidationError("clickhouse.addr", "address is required", cfg.Addr)
	}
	if !identPattern.MatchString(cfg.Table) {
		return nil, errors.NewValidationError("clickhouse.table", "invalid table name", cfg.Table)
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &ClickHouseSource{cfg: cfg}, nil
}

// Open connects and pings the server.
func (s *ClickHouseSource) Open(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{s.cfg.Addr},
		Auth: clickhouse.Auth{
			Database: s.cfg.Database,
			Username: s.cfg.Username,
			Password: s.cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: s.cfg.DialTimeout,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to connect to ClickHouse")
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return errors.Wrap(err, "failed to ping ClickHouse")
	}
	s.conn = conn

	log.GetLoggerWithName("dataset").Info("Connected to ClickHouse",
		log.SourceKey, s.Describe(),
	)
	return nil
}

// Close releases the connection.
func (s *ClickHouseSource) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// query selects every reading ordered by time. Values are cast to Float64
// so that integer or Float32 columns scan the same way.
func (s *ClickHouseSource) query() string {
	casts := make([]string, len(sensorColumns))
	for i, c := range sensorColumns {
		casts[i] = fmt.Sprintf("toFloat64(%s) AS %s", c, c)
	}
	return fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY %s",
		TimeColumn, strings.Join(casts, ", "), s.cfg.Table, TimeColumn)
}

// Load reads the whole table.
func (s *ClickHouseSource) Load(ctx context.Context) (*SensorTable, error) {
	if err := s.Open(ctx); err != nil {
		return nil, err
	}

	rows, err := s.conn.Query(ctx, s.query())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query %s", s.cfg.Table)
	}
	defer rows.Close()

	table := NewSensorTable(sensorColumns)
	for rows.Next() {
		var (
			ts                              time.Time
			temperature, humidity, gas, nh3 float64
			ph                              float64
		)
		if err := rows.Scan(&ts, &temperature, &humidity, &gas, &nh3, &ph); err != nil {
			return nil, errors.Wrap(err, "failed to scan sensor row")
		}
		table.Time = append(table.Time, ts.UTC())
		for i, v := range []float64{temperature, humidity, gas, nh3, ph} {
			table.Columns[sensorColumns[i]] = append(table.Columns[sensorColumns[i]], v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read sensor rows")
	}
	if table.Len() == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyData, "no rows in %s", s.cfg.Table)
	}
	return table, nil
}

// Describe names the source for logs.
func (s *ClickHouseSource) Describe() string {
	return fmt.Sprintf("clickhouse://%s/%s.%s", s.cfg.Addr, s.cfg.Database, s.cfg.Table)
}
