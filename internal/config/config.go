package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"dqa/internal/dataset"
	"dqa/internal/quality"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Pipeline            quality.Config
	DataPath            string
	LogDir              string
	OutputDir           string
	SnapshotDir         string
	ShardRows           int
	MetricsFile         string
	PostgresDSN         string
	PostgresTable       string
	EnableMermaidCharts bool
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	// 3. Resolve Data Paths
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	logDir := filepath.Join(dataPath, "logs")
	outputDir := getEnv("OUTPUT_DIR", filepath.Join(dataPath, "output"))

	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Warn().Err(err).Str("path", logDir).Msg("Failed to create log directory")
	}

	// 4. Pipeline parameters
	pipeline := quality.DefaultConfig()
	if pipeline.KeyMode, err = dataset.ParseKeyMode(getEnv("DQA_KEY_MODE", "DE")); err != nil {
		return nil, fmt.Errorf("DQA_KEY_MODE: %w", err)
	}
	if pipeline.Weighting, err = quality.ParseWeighting(getEnv("DQA_ROLLUP_WEIGHTING", "unweighted")); err != nil {
		return nil, fmt.Errorf("DQA_ROLLUP_WEIGHTING: %w", err)
	}
	pipeline.FacilityLevel = getEnvInt("DQA_FACILITY_LEVEL", 0)
	pipeline.RollupLevel = getEnvInt("DQA_ROLLUP_LEVEL", 0)
	pipeline.Outliers.SparseScoreThreshold = getEnvFloat("DQA_SPARSE_SCORE", pipeline.Outliers.SparseScoreThreshold)
	pipeline.Outliers.SparseCountThreshold = getEnvInt("DQA_SPARSE_COUNT", pipeline.Outliers.SparseCountThreshold)
	if err := pipeline.Outliers.Validate(); err != nil {
		return nil, err
	}

	cfg := &AppConfig{
		Pipeline:            pipeline,
		DataPath:            dataPath,
		LogDir:              logDir,
		OutputDir:           outputDir,
		SnapshotDir:         filepath.Join(outputDir, "stages"),
		ShardRows:           getEnvInt("DQA_SHARD_ROWS", 0),
		MetricsFile:         getEnv("DQA_METRICS_FILE", ""),
		PostgresDSN:         getEnv("DQA_POSTGRES_DSN", ""),
		PostgresTable:       getEnv("DQA_POSTGRES_TABLE", "dqa_rollup"),
		EnableMermaidCharts: getEnvBool("ENABLE_MERMAID_CHARTS", false),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-integer setting")
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-numeric setting")
	}
	return fallback
}
