// Package config loads the run configuration from environment variables
// (populated from the .env file in main.go) and the optional table mapping file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for a run.
type Config struct {
	SourceDriver     string
	SourceConnString string
	TargetDriver     string
	TargetConnString string

	BatchSize    int
	CommitEvery  int
	WriteWorkers int

	RejectDir       string
	RejectDelimiter rune
	RejectHeader    bool

	MongoConnString string
	MongoDatabase   string
	MongoCollection string

	MappingFile string
	LogLevel    string
	LogFile     string
}

const (
	DefaultBatchSize   = 1000
	DefaultCommitEvery = 10
)

// LoadConfig loads application settings from environment variables.
// Only the target connection is required here; commands that read the
// source database check SourceConnString themselves.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		SourceDriver:     getenv("SOURCE_DRIVER", "sqlserver"),
		SourceConnString: os.Getenv("SOURCE_CONNECTION_STRING"),
		TargetDriver:     getenv("TARGET_DRIVER", "sqlserver"),
		TargetConnString: os.Getenv("TARGET_CONNECTION_STRING"),
		RejectDir:        getenv("REJECT_DIR", "rejected"),
		MongoConnString:  os.Getenv("MONGO_CONNECTION_STRING"),
		MongoDatabase:    getenv("MONGO_DATABASE", "donorsync"),
		MongoCollection:  getenv("MONGO_COLLECTION", "rejections"),
		MappingFile:      os.Getenv("MAPPING_FILE"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogFile:          os.Getenv("LOG_FILE"),
	}

	if cfg.TargetConnString == "" {
		return nil, errors.New("TARGET_CONNECTION_STRING environment variable not set")
	}

	var err error
	if cfg.BatchSize, err = positiveInt("BATCH_SIZE", DefaultBatchSize); err != nil {
		return nil, err
	}
	if cfg.CommitEvery, err = positiveInt("COMMIT_EVERY", DefaultCommitEvery); err != nil {
		return nil, err
	}
	if cfg.WriteWorkers, err = positiveInt("WRITE_WORKERS", 1); err != nil {
		return nil, err
	}

	delim := getenv("REJECT_DELIMITER", ",")
	r := []rune(delim)
	if len(r) != 1 || r[0] == '"' || r[0] == '\n' || r[0] == '\r' {
		return nil, fmt.Errorf("REJECT_DELIMITER must be a single character other than a quote or newline, got %q", delim)
	}
	cfg.RejectDelimiter = r[0]

	if v := os.Getenv("REJECT_HEADER"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("REJECT_HEADER: %w", err)
		}
		cfg.RejectHeader = b
	}

	return cfg, nil
}

// RequireSource fails when no source connection was configured.
func (c *Config) RequireSource() error {
	if c.SourceConnString == "" {
		return errors.New("SOURCE_CONNECTION_STRING environment variable not set")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func positiveInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("%s must be at least 1, got %d", key, n)
	}
	return n, nil
}
