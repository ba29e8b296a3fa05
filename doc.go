// Package phmodel trains a model that predicts the pH of stored food from
// the sensor readings of a smart container.
//
// The module contains a small scikit-learn style library built on gonum
// matrices and the command that uses it:
//
//   - sklearn/tree: CART regression tree (squared error, sample weights)
//   - sklearn/ensemble: RandomForestRegressor and feature ranking
//   - sklearn/model_selection: TrainTestSplit, KFold, GridSearchCV, CrossValScore
//   - metrics: MSE, RMSE, MAE, R², MAPE, explained variance
//   - dataset: CSV and ClickHouse loaders, elapsed time feature
//   - visualize: feature importance bar chart
//   - core/model: estimator interfaces, state tracking, gob persistence
//   - core/parallel: bounded worker pools
//   - pkg/errors, pkg/log: error taxonomy and structured logging
//   - cmd/predictph: the training pipeline
//
// # Quick Start
//
//	table, err := dataset.CSVSource{Path: "data_sensor.csv"}.Load(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	X, y, err := table.WithElapsedTime().Matrix(dataset.FeatureColumns, dataset.TargetColumn)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	split, err := model_selection.TrainTestSplit(X, y, 0.2, 10)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	search := model_selection.NewGridSearchCV(
//	    ensemble.NewRandomForestRegressor().WithRandomState(10),
//	    model_selection.ParamGrid{"max_depth": {10, 20, 30}},
//	).WithNJobs(-1)
//	if err := search.Fit(split.XTrain, split.YTrain); err != nil {
//	    log.Fatal(err)
//	}
//	best, _ := search.BestParams()
//	fmt.Println("Best Parameters:", best)
//
// # scikit-learn Compatibility
//
// Estimators expose their hyperparameters through GetParams/SetParams with
// scikit-learn names (n_estimators, max_depth, min_samples_split, ...), and
// Clone returns an unfitted copy. This is what GridSearchCV relies on.
//
// # Reproducibility
//
// Splits, bootstrap samples and feature orders are drawn from seeded PCG
// generators. A forest fitted with the same seed gives the same trees for
// any number of workers.
package phmodel
