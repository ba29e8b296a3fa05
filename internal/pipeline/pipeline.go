// Package pipeline wires loading, search, evaluation, reporting and
// persistence into one training run.
package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/befresh/phmodel/core/model"
	"github.com/befresh/phmodel/dataset"
	"github.com/befresh/phmodel/internal/config"
	"github.com/befresh/phmodel/internal/recorder"
	"github.com/befresh/phmodel/metrics"
	"github.com/befresh/phmodel/pkg/errors"
	"github.com/befresh/phmodel/pkg/log"
	"github.com/befresh/phmodel/sklearn/ensemble"
	"github.com/befresh/phmodel/sklearn/model_selection"
	"github.com/befresh/phmodel/visualize"
)

// DefaultParamGrid is the search space for the forest, 81 candidates.
func DefaultParamGrid() model_selection.ParamGrid {
	return model_selection.ParamGrid{
		"n_estimators":      {100, 200, 300},
		"max_depth":         {10, 20, 30},
		"min_samples_split": {2, 5, 10},
		"min_samples_leaf":  {1, 2, 4},
	}
}

// Result is everything a run produced.
type Result struct {
	RunID      uuid.UUID
	BestParams model_selection.Params
	BestScore  float64
	MSE        float64
	RMSE       float64
	R2         float64
	Ranking    []ensemble.RankedFeature
	Table      *PredictionTable
	Model      *ensemble.RandomForestRegressor
	NTrain     int
	NTest      int
}

// Pipeline is one configured training run. Source and Recorder default to
// what Config selects; tests replace them.
type Pipeline struct {
	Config   *config.Config
	Grid     model_selection.ParamGrid
	Source   dataset.Source
	Recorder recorder.Recorder
	Out      io.Writer
}

// New builds a pipeline for cfg that prints its report to out.
func New(cfg *config.Config, out io.Writer) *Pipeline {
	return &Pipeline{
		Config: cfg,
		Grid:   DefaultParamGrid(),
		Out:    out,
	}
}

// Run validates cfg and executes a pipeline built from it.
func Run(ctx context.Context, cfg *config.Config, out io.Writer) (*Result, error) {
	return New(cfg, out).Run(ctx)
}

// Run loads the readings, tunes and evaluates the forest, prints the report,
// and writes the chart and the model.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	cfg := p.Config
	if cfg == nil {
		return nil, errors.NewValueError("pipeline.Run", "config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	runID := uuid.New()
	logger := log.GetLoggerWithName("pipeline").With(log.EstimatorIDKey, runID.String())

	src, closeSource, err := p.source()
	if err != nil {
		return nil, err
	}
	defer closeSource()

	rec, err := p.recorder(ctx)
	if err != nil {
		return nil, err
	}
	defer rec.Close()

	// load and preprocess
	table, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load sensor data")
	}
	X, y, err := table.WithElapsedTime().Matrix(dataset.FeatureColumns, dataset.TargetColumn)
	if err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	logger.Info("Sensor data loaded",
		log.OperationKey, log.OperationLoad,
		log.SourceKey, src.Describe(),
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
	)

	split, err := model_selection.TrainTestSplit(X, y, cfg.TestSize, cfg.RandomSeed)
	if err != nil {
		return nil, err
	}

	// hyperparameter search
	base := ensemble.NewRandomForestRegressor().WithRandomState(cfg.RandomSeed)
	search := model_selection.NewGridSearchCV(base, p.Grid).
		WithCV(cfg.CVFolds).
		WithNJobs(cfg.NJobs).
		WithVerbose(cfg.Verbose)
	if err := search.FitContext(ctx, split.XTrain, split.YTrain); err != nil {
		return nil, errors.Wrap(err, "grid search failed")
	}
	bestParams, err := search.BestParams()
	if err != nil {
		return nil, err
	}
	bestScore, err := search.BestScore()
	if err != nil {
		return nil, err
	}
	report := NewReport(p.Out)
	report.BestParams(bestParams)

	// refit a fresh forest with the winning parameters
	forest := ensemble.NewRandomForestRegressor().
		WithRandomState(cfg.RandomSeed).
		WithNJobs(cfg.NJobs).
		WithFeatureNames(dataset.FeatureColumns)
	if err := forest.SetParams(bestParams); err != nil {
		return nil, err
	}
	if err := forest.FitContext(ctx, split.XTrain, split.YTrain); err != nil {
		return nil, errors.Wrap(err, "failed to fit final model")
	}

	pred, err := forest.Predict(split.XTest)
	if err != nil {
		return nil, err
	}
	res := &Result{
		RunID:      runID,
		BestParams: bestParams,
		BestScore:  bestScore,
		Model:      forest,
		NTrain:     len(split.TrainIndex),
		NTest:      len(split.TestIndex),
	}
	if err := evaluate(res, split.YTest, pred); err != nil {
		return nil, err
	}
	report.Metrics(res.MSE, res.RMSE, res.R2)
	logger.Info("Model evaluated",
		log.OperationKey, log.OperationScore,
		log.HyperParamsKey, bestParams.String(),
		log.CVScoreKey, bestScore,
		log.MSEKey, res.MSE,
		log.RMSEKey, res.RMSE,
		log.R2ScoreKey, res.R2,
	)

	importances, err := forest.FeatureImportances()
	if err != nil {
		return nil, err
	}
	res.Ranking, err = ensemble.RankImportances(forest.FeatureNames, importances)
	if err != nil {
		return nil, err
	}
	report.Ranking(res.Ranking)

	if cfg.ChartPath != "" {
		if err := visualize.SaveImportanceChart(cfg.ChartPath, res.Ranking); err != nil {
			return nil, err
		}
	}

	res.Table, err = NewPredictionTable(split.TestIndex, split.YTest, pred)
	if err != nil {
		return nil, err
	}
	report.Predictions(res.Table)
	if err := report.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to write report")
	}

	if err := model.SaveModel(forest, cfg.ModelPath); err != nil {
		return nil, err
	}
	logger.Info("Model saved",
		log.OperationKey, log.OperationSave,
		"path", cfg.ModelPath,
	)

	err = rec.RecordRun(ctx, recorder.Run{
		ID:         runID,
		StartedAt:  started,
		Duration:   time.Since(started),
		Source:     src.Describe(),
		NTrain:     res.NTrain,
		NTest:      res.NTest,
		BestParams: bestParams.String(),
		BestScore:  bestScore,
		MSE:        res.MSE,
		RMSE:       res.RMSE,
		R2:         res.R2,
		Features:   forest.FeatureNames,
		Importance: importances,
		ModelPath:  cfg.ModelPath,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Pipeline finished", log.DurationMsKey, time.Since(started))
	return res, nil
}

func evaluate(res *Result, yTrue, yPred mat.Matrix) error {
	var err error
	if res.MSE, err = metrics.MSEMatrix(yTrue, yPred); err != nil {
		return err
	}
	if res.RMSE, err = metrics.RMSEMatrix(yTrue, yPred); err != nil {
		return err
	}
	if res.R2, err = metrics.R2ScoreMatrix(yTrue, yPred); err != nil {
		return err
	}
	// R² may be NaN for a constant test target; the errors must be finite
	if err := errors.CheckScalar("mse", res.MSE); err != nil {
		return err
	}
	return errors.CheckScalar("rmse", res.RMSE)
}

func (p *Pipeline) source() (dataset.Source, func(), error) {
	if p.Source != nil {
		return p.Source, func() {}, nil
	}
	cfg := p.Config
	switch cfg.DataSource {
	case config.SourceClickHouse:
		src, err := dataset.NewClickHouseSource(dataset.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDB,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePass,
			Table:    cfg.ClickHouseTable,
		})
		if err != nil {
			return nil, nil, err
		}
		return src, func() { _ = src.Close() }, nil
	default:
		return dataset.CSVSource{Path: cfg.DataPath}, func() {}, nil
	}
}

func (p *Pipeline) recorder(ctx context.Context) (recorder.Recorder, error) {
	if p.Recorder != nil {
		return p.Recorder, nil
	}
	if p.Config.RecorderDSN == "" {
		return recorder.Nop{}, nil
	}
	return recorder.Connect(ctx, p.Config.RecorderDSN)
}
