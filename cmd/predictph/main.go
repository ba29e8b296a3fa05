// Command predictph trains the pH regression model from sensor readings.
//
// It tunes a random forest with a 3-fold grid search, prints the evaluation
// report and feature ranking to stdout, saves the importance chart and writes
// the model to predict_ph. Settings come from the environment (see
// internal/config); logs go to stderr.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/befresh/phmodel/internal/config"
	"github.com/befresh/phmodel/internal/pipeline"
	"github.com/befresh/phmodel/pkg/log"
)

func main() {
	cfg := config.Load()
	if !log.ValidLevel(cfg.LogLevel) {
		cfg.LogLevel = "info"
	}
	log.SetupLogger(cfg.LogLevel)
	logger := log.GetLoggerWithName("predictph")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting training run",
		log.SourceKey, cfg.DataSource,
		log.RandomSeedKey, cfg.RandomSeed,
		log.WorkersKey, cfg.NJobs,
	)
	if _, err := pipeline.Run(ctx, cfg, os.Stdout); err != nil {
		logger.Error("Training run failed", err)
		stop()
		os.Exit(1)
	}
}
