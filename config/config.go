// Package config holds the settings of the converter. Values are read from
// SCHOLIX_* environment variables first; command line flags override them.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v11"

	"github.com/miku/scholixdump"
	"github.com/miku/scholixdump/filter"
)

var (
	ErrInvalidWorkers   = errors.New("workers must be positive")
	ErrInvalidBatchSize = errors.New("batch size must be positive")
	ErrInvalidIndex     = errors.New("index must be one of: memory, sqlite")
	ErrInvalidLogFormat = errors.New("log format must be one of: text, json")
)

// Config for a conversion run.
type Config struct {
	// Workers is the number of parallel conversion workers, defaults to the
	// number of CPUs.
	Workers int `env:"WORKERS"`
	// BatchSize is the number of records handed to a worker at once, also
	// used for batched index writes.
	BatchSize int `env:"BATCH_SIZE" envDefault:"10000"`
	// RecordsPerPart limits the number of records per output part file, zero
	// means a single file.
	RecordsPerPart int64 `env:"RECORDS_PER_PART" envDefault:"1000000"`
	// Index is the entity index to use for the join: memory or sqlite.
	Index string `env:"INDEX" envDefault:"memory"`
	// IndexDir is where the sqlite index is created.
	IndexDir string `env:"INDEX_DIR"`
	// KeepIndex keeps the sqlite index file after the run.
	KeepIndex bool `env:"KEEP_INDEX" envDefault:"false"`
	// SkipInvalid logs and skips undecodable records instead of failing.
	SkipInvalid bool `env:"SKIP_INVALID" envDefault:"false"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	// LogFile, if set, receives the logs, rotated.
	LogFile string `env:"LOG_FILE"`

	// HTTPRetries and HTTPTimeout apply to remote dump locations.
	HTTPRetries int           `env:"HTTP_RETRIES" envDefault:"3"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"1h"`

	DatasourceFilter string `env:"DATASOURCE_FILTER"`
	RelationFilter   string `env:"RELATION_FILTER"`
	SourcePidFilter  string `env:"SOURCE_PID_FILTER"`
	TargetPidFilter  string `env:"TARGET_PID_FILTER"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	return LoadEnv(nil)
}

// LoadEnv reads the configuration from the given environment; a nil map
// means the process environment.
func LoadEnv(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	opts := env.Options{Prefix: "SCHOLIX_"}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.IndexDir == "" {
		cfg.IndexDir = filepath.Join(xdg.CacheHome, scholixdump.AppName)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Workers < 1:
		return ErrInvalidWorkers
	case c.BatchSize < 1:
		return ErrInvalidBatchSize
	case c.Index != "memory" && c.Index != "sqlite":
		return ErrInvalidIndex
	case c.LogFormat != "text" && c.LogFormat != "json":
		return ErrInvalidLogFormat
	}
	return nil
}

// Filter returns the configured relationship filter.
func (c *Config) Filter() filter.Filter {
	return filter.Filter{
		Datasource:    c.DatasourceFilter,
		Relation:      c.RelationFilter,
		SourcePidType: c.SourcePidFilter,
		TargetPidType: c.TargetPidFilter,
	}
}
