// Package config loads pipeline settings from the environment.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/befresh/phmodel/pkg/errors"
	"github.com/befresh/phmodel/pkg/log"
)

// Data sources
const (
	SourceCSV        = "csv"
	SourceClickHouse = "clickhouse"
)

type Config struct {
	// Input
	DataSource string
	DataPath   string

	// Outputs
	ModelPath string
	ChartPath string

	// Training
	RandomSeed int
	TestSize   float64
	CVFolds    int
	NJobs      int
	Verbose    int

	LogLevel string

	// ClickHouse Configuration
	ClickHouseAddr  string
	ClickHouseDB    string
	ClickHouseUser  string
	ClickHousePass  string
	ClickHouseTable string

	// Run recorder, disabled when empty
	RecorderDSN string
}

// Load reads an optional .env file and then the environment. Unset variables
// keep the defaults of the original training script.
func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		DataSource: getEnv("DATA_SOURCE", SourceCSV),
		DataPath:   getEnv("DATA_PATH", "data_sensor.csv"),

		ModelPath: getEnv("MODEL_PATH", "predict_ph"),
		ChartPath: getEnv("CHART_PATH", "feature_importance.png"),

		RandomSeed: getEnvInt("RANDOM_SEED", 10),
		TestSize:   getEnvFloat("TEST_SIZE", 0.2),
		CVFolds:    getEnvInt("CV_FOLDS", 3),
		NJobs:      getEnvInt("N_JOBS", -1),
		Verbose:    getEnvInt("VERBOSE", 2),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		ClickHouseAddr:  getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDB:    getEnv("CLICKHOUSE_DB", "befresh"),
		ClickHouseUser:  getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePass:  getEnv("CLICKHOUSE_PASS", ""),
		ClickHouseTable: getEnv("CLICKHOUSE_TABLE", "sensor_readings"),

		RecorderDSN: getEnv("RECORDER_DSN", ""),
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.DataSource {
	case SourceCSV:
		if c.DataPath == "" {
			return errors.NewValidationError("DATA_PATH", "must not be empty", c.DataPath)
		}
	case SourceClickHouse:
		if c.ClickHouseAddr == "" {
			return errors.NewValidationError("CLICKHOUSE_ADDR", "must not be empty", c.ClickHouseAddr)
		}
	default:
		return errors.NewValidationError("DATA_SOURCE", "must be csv or clickhouse", c.DataSource)
	}
	if c.ModelPath == "" {
		return errors.NewValidationError("MODEL_PATH", "must not be empty", c.ModelPath)
	}
	if c.TestSize <= 0 || c.TestSize >= 1 {
		return errors.NewValidationError("TEST_SIZE", "must be in (0, 1)", c.TestSize)
	}
	if c.CVFolds < 2 {
		return errors.NewValidationError("CV_FOLDS", "must be at least 2", c.CVFolds)
	}
	if c.NJobs == 0 {
		return errors.NewValidationError("N_JOBS", "must be positive or negative, not 0", c.NJobs)
	}
	if !log.ValidLevel(c.LogLevel) {
		return errors.NewValidationError("LOG_LEVEL", "must be debug, info, warn or error", c.LogLevel)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.GetLoggerWithName("config").Warn("failed to parse integer, using default",
			"key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return intValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.GetLoggerWithName("config").Warn("failed to parse float, using default",
			"key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return floatValue
}
