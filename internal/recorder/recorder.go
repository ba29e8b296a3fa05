// Package recorder stores a summary of every training run so that repeated
// runs can be compared.
package recorder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/befresh/phmodel/pkg/errors"
)

// Run is the summary of one pipeline execution.
type Run struct {
	ID         uuid.UUID
	StartedAt  time.Time
	Duration   time.Duration
	Source     string
	NTrain     int
	NTest      int
	BestParams string
	BestScore  float64
	MSE        float64
	RMSE       float64
	R2         float64
	Features   []string
	Importance []float64
	ModelPath  string
}

// Recorder persists run summaries.
type Recorder interface {
	RecordRun(ctx context.Context, run Run) error
	Close() error
}

// Nop discards runs. It is used when no DSN is configured.
type Nop struct{}

func (Nop) RecordRun(context.Context, Run) error { return nil }
func (Nop) Close() error                         { return nil }

const schema = `
	CREATE TABLE IF NOT EXISTS training_runs (
		run_id          UUID PRIMARY KEY,
		started_at      TIMESTAMPTZ NOT NULL,
		duration_ms     BIGINT NOT NULL,
		source          TEXT NOT NULL,
		n_train         INTEGER NOT NULL,
		n_test          INTEGER NOT NULL,
		best_params     TEXT NOT NULL,
		best_cv_score   DOUBLE PRECISION,
		mse             DOUBLE PRECISION,
		rmse            DOUBLE PRECISION,
		r2              DOUBLE PRECISION,
		features        TEXT[] NOT NULL,
		importances     DOUBLE PRECISION[] NOT NULL,
		model_path      TEXT NOT NULL,
		recorded_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

const insertRun = `
	INSERT INTO training_runs (
		run_id, started_at, duration_ms, source,
		n_train, n_test, best_params, best_cv_score,
		mse, rmse, r2, features, importances, model_path
	) VALUES (
		:run_id, :started_at, :duration_ms, :source,
		:n_train, :n_test, :best_params, :best_cv_score,
		:mse, :rmse, :r2, :features, :importances, :model_path
	)`

// runRow is the database shape of Run.
type runRow struct {
	RunID       string          `db:"run_id"`
	StartedAt   time.Time       `db:"started_at"`
	DurationMs  int64           `db:"duration_ms"`
	Source      string          `db:"source"`
	NTrain      int             `db:"n_train"`
	NTest       int             `db:"n_test"`
	BestParams  string          `db:"best_params"`
	BestScore   float64         `db:"best_cv_score"`
	MSE         float64         `db:"mse"`
	RMSE        float64         `db:"rmse"`
	R2          float64         `db:"r2"`
	Features    pq.StringArray  `db:"features"`
	Importances pq.Float64Array `db:"importances"`
	ModelPath   string          `db:"model_path"`
}

func newRunRow(run Run) runRow {
	return runRow{
		RunID:       run.ID.String(),
		StartedAt:   run.StartedAt.UTC(),
		DurationMs:  run.Duration.Milliseconds(),
		Source:      run.Source,
		NTrain:      run.NTrain,
		NTest:       run.NTest,
		BestParams:  run.BestParams,
		BestScore:   run.BestScore,
		MSE:         run.MSE,
		RMSE:        run.RMSE,
		R2:          run.R2,
		Features:    pq.StringArray(run.Features),
		Importances: pq.Float64Array(run.Importance),
		ModelPath:   run.ModelPath,
	}
}

// PostgresRecorder writes runs to the training_runs table.
type PostgresRecorder struct {
	db *sqlx.DB
}

func NewPostgresRecorder(db *sqlx.DB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

// Connect opens a Postgres connection for dsn and creates the table if needed.
func Connect(ctx context.Context, dsn string) (*PostgresRecorder, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to recorder database")
	}
	r := NewPostgresRecorder(db)
	if err := r.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// EnsureSchema creates training_runs if it does not exist.
func (r *PostgresRecorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to create training_runs")
	}
	return nil
}

func (r *PostgresRecorder) RecordRun(ctx context.Context, run Run) error {
	if run.ID == uuid.Nil {
		return errors.NewValidationError("run.id", "run id is required", run.ID.String())
	}
	if len(run.Features) != len(run.Importance) {
		return errors.NewDimensionError("RecordRun", len(run.Features), len(run.Importance), 0)
	}
	if _, err := r.db.NamedExecContext(ctx, insertRun, newRunRow(run)); err != nil {
		return errors.Wrapf(err, "failed to record run %s", run.ID)
	}
	return nil
}

func (r *PostgresRecorder) Close() error {
	return r.db.Close()
}
