// Package config loads Mite settings from a YAML file, MITE_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for configuration fields.
const (
	DefaultFileName         = "mite.yml"
	DefaultRepository       = "postgres"
	DefaultMigrationsDir    = "."
	DefaultTable            = "_migrations"
	DefaultLockTimeout      = 5 * time.Second
	DefaultStatementTimeout = 30 * time.Second
	DefaultVerifyDatabase   = "MiteVerify"
	DefaultLogLevel         = "info"
)

// ErrMissingDatabaseURL indicates no connection string was configured.
var ErrMissingDatabaseURL = errors.New("database URL is required (set database_url, MITE_DATABASE_URL or --database-url)")

// Config holds the application configuration loaded from file, environment, and flags.
type Config struct {
	Repository       string
	DatabaseURL      string
	MigrationsDir    string
	Table            string
	Permissive       bool
	Splitter         string
	LockTimeout      time.Duration
	StatementTimeout time.Duration
	VerifyDatabase   string
	LogLevel         string
}

// yamlConfig is the raw YAML file representation with string durations.
type yamlConfig struct {
	Repository       string `yaml:"repository,omitempty"`
	DatabaseURL      string `yaml:"database_url,omitempty"`
	MigrationsDir    string `yaml:"migrations_dir,omitempty"`
	Table            string `yaml:"table,omitempty"`
	Permissive       bool   `yaml:"permissive,omitempty"`
	Splitter         string `yaml:"splitter,omitempty"`
	LockTimeout      string `yaml:"lock_timeout,omitempty"`
	StatementTimeout string `yaml:"statement_timeout,omitempty"`
	VerifyDatabase   string `yaml:"verify_database,omitempty"`
	LogLevel         string `yaml:"log_level,omitempty"`
}

// New returns a Config populated with default values.
func New() *Config {
	return &Config{
		Repository:       DefaultRepository,
		MigrationsDir:    DefaultMigrationsDir,
		Table:            DefaultTable,
		LockTimeout:      DefaultLockTimeout,
		StatementTimeout: DefaultStatementTimeout,
		VerifyDatabase:   DefaultVerifyDatabase,
		LogLevel:         DefaultLogLevel,
	}
}

// Validate checks the fields every database command needs.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}

	return nil
}

// Load reads a YAML configuration file and returns a Config.
// If allowMissing is true and the file does not exist, defaults are returned.
func Load(path string, allowMissing bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return New(), nil
		}

		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return fromYAML(&raw)
}

// Write stores cfg at path as YAML, replacing any existing file.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(toYAML(cfg))
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}

	return nil
}

// fromYAML converts the raw YAML representation to a Config with defaults applied.
func fromYAML(raw *yamlConfig) (*Config, error) {
	cfg := New()

	setString(&cfg.Repository, raw.Repository)
	setString(&cfg.DatabaseURL, raw.DatabaseURL)
	setString(&cfg.MigrationsDir, raw.MigrationsDir)
	setString(&cfg.Table, raw.Table)
	setString(&cfg.Splitter, raw.Splitter)
	setString(&cfg.VerifyDatabase, raw.VerifyDatabase)
	setString(&cfg.LogLevel, raw.LogLevel)

	cfg.Permissive = raw.Permissive

	if err := setDuration(&cfg.LockTimeout, "lock_timeout", raw.LockTimeout); err != nil {
		return nil, err
	}

	if err := setDuration(&cfg.StatementTimeout, "statement_timeout", raw.StatementTimeout); err != nil {
		return nil, err
	}

	return cfg, nil
}

func toYAML(cfg *Config) yamlConfig {
	return yamlConfig{
		Repository:       cfg.Repository,
		DatabaseURL:      cfg.DatabaseURL,
		MigrationsDir:    cfg.MigrationsDir,
		Table:            cfg.Table,
		Permissive:       cfg.Permissive,
		Splitter:         cfg.Splitter,
		LockTimeout:      cfg.LockTimeout.String(),
		StatementTimeout: cfg.StatementTimeout.String(),
		VerifyDatabase:   cfg.VerifyDatabase,
		LogLevel:         cfg.LogLevel,
	}
}

// MergeEnv overrides config fields from MITE_* environment variables.
// Unparseable durations and booleans leave the field unchanged.
func MergeEnv(cfg *Config) {
	setString(&cfg.Repository, os.Getenv("MITE_REPOSITORY"))
	setString(&cfg.DatabaseURL, os.Getenv("MITE_DATABASE_URL"))
	setString(&cfg.MigrationsDir, os.Getenv("MITE_MIGRATIONS_DIR"))
	setString(&cfg.Table, os.Getenv("MITE_TABLE"))
	setString(&cfg.Splitter, os.Getenv("MITE_SPLITTER"))
	setString(&cfg.VerifyDatabase, os.Getenv("MITE_VERIFY_DATABASE"))
	setString(&cfg.LogLevel, os.Getenv("MITE_LOG_LEVEL"))

	if v := os.Getenv("MITE_PERMISSIVE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Permissive = b
		}
	}

	_ = setDuration(&cfg.LockTimeout, "MITE_LOCK_TIMEOUT", os.Getenv("MITE_LOCK_TIMEOUT"))
	_ = setDuration(&cfg.StatementTimeout, "MITE_STATEMENT_TIMEOUT", os.Getenv("MITE_STATEMENT_TIMEOUT"))
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, name, v string) error {
	if v == "" {
		return nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parsing %s %q: %w", name, v, err)
	}

	*dst = d

	return nil
}
