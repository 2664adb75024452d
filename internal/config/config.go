package config

import (
	"os"
	"strconv"
	"strings"

	"incuba/domain/core"
	"incuba/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig `validate:"required"`
	Database DatabaseConfig
	Data     DataConfig
	Analysis AnalysisConfig `validate:"required"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string `validate:"required"`
}

// DatabaseConfig holds database connection settings. URL may be empty, in
// which case the server runs against the in-memory store.
type DatabaseConfig struct {
	URL     string
	SSLMode string
}

// DataConfig holds line-list ingestion settings
type DataConfig struct {
	LinelistFile string
	Epoch        core.Epoch
	LocalRegion  string
}

// AnalysisConfig holds estimation settings
type AnalysisConfig struct {
	Replicates         int
	Workers            int
	MaxFailureFrac     float64
	Seed               int64
	Quantiles          []float64
	MCMCIterations     int
	MCMCBurnInFraction float64
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{}

	// Load server configuration
	serverConfig := loadServerConfig()
	config.Server = *serverConfig

	// Load database configuration
	dbConfig := loadDatabaseConfig()
	config.Database = *dbConfig

	// Load data configuration
	dataConfig, err := loadDataConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load data configuration")
	}
	config.Data = *dataConfig

	// Load analysis configuration
	analysisConfig, err := loadAnalysisConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load analysis configuration")
	}
	config.Analysis = *analysisConfig

	// Validate required fields
	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port: getEnvOrDefault("PORT", "8080"),
	}
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URL:     getEnvOrDefault("DATABASE_URL", ""),
		SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
	}
}

func loadDataConfig() (*DataConfig, error) {
	epoch, err := core.ParseEpoch(getEnvOrDefault("REFERENCE_EPOCH", core.DefaultEpochDate))
	if err != nil {
		return nil, errors.ConfigInvalid("REFERENCE_EPOCH must be a YYYY-MM-DD date")
	}

	return &DataConfig{
		LinelistFile: getEnvOrDefault("LINELIST_FILE", ""),
		Epoch:        epoch,
		LocalRegion:  getEnvOrDefault("LOCAL_REGION", "wuhan"),
	}, nil
}

func loadAnalysisConfig() (*AnalysisConfig, error) {
	quantiles, err := ParseQuantiles(getEnvOrDefault("QUANTILES", DefaultQuantiles))
	if err != nil {
		return nil, err
	}

	return &AnalysisConfig{
		Replicates:         getEnvIntOrDefault("BOOTSTRAP_REPLICATES", 1000),
		Workers:            getEnvIntOrDefault("BOOTSTRAP_WORKERS", 4),
		MaxFailureFrac:     getEnvFloatOrDefault("BOOTSTRAP_MAX_FAILURE_FRAC", 0.10),
		Seed:               getEnvInt64OrDefault("RANDOM_SEED", 42),
		Quantiles:          quantiles,
		MCMCIterations:     getEnvIntOrDefault("MCMC_ITERATIONS", 20000),
		MCMCBurnInFraction: getEnvFloatOrDefault("MCMC_BURNIN_FRACTION", 0.2),
	}, nil
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("server port is required")
	}
	if err := config.Analysis.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate checks the analysis settings independently of the env surface,
// so flag-driven callers can reuse the same rules.
func (c *AnalysisConfig) Validate() error {
	if c.Replicates < 1 {
		return errors.ConfigInvalid("bootstrap replicates must be positive")
	}
	if c.Workers < 1 {
		return errors.ConfigInvalid("bootstrap workers must be positive")
	}
	if c.MaxFailureFrac < 0 || c.MaxFailureFrac >= 1 {
		return errors.ConfigInvalid("bootstrap max failure fraction must be in [0, 1)")
	}
	if len(c.Quantiles) == 0 {
		return errors.ConfigInvalid("at least one quantile is required")
	}
	for _, q := range c.Quantiles {
		if q <= 0 || q >= 1 {
			return errors.ConfigInvalid("quantiles must lie strictly between 0 and 1")
		}
	}
	if c.MCMCIterations < 1 {
		return errors.ConfigInvalid("mcmc iterations must be positive")
	}
	if c.MCMCBurnInFraction < 0 || c.MCMCBurnInFraction >= 1 {
		return errors.ConfigInvalid("mcmc burn-in fraction must be in [0, 1)")
	}
	return nil
}

// DefaultQuantiles is the reported quantile set when none is configured.
const DefaultQuantiles = "0.025,0.05,0.25,0.5,0.75,0.95,0.975"

// ParseQuantiles parses a comma-separated probability list
func ParseQuantiles(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	quantiles := make([]float64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		q, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, errors.ConfigInvalid("quantile list contains a non-number: " + part)
		}
		if q <= 0 || q >= 1 {
			return nil, errors.ConfigInvalid("quantiles must lie strictly between 0 and 1")
		}
		quantiles = append(quantiles, q)
	}
	if len(quantiles) == 0 {
		return nil, errors.ConfigInvalid("at least one quantile is required")
	}
	return quantiles, nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
