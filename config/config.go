// Package config loads the settings of a strata engine from a YAML file and
// the environment.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema"
)

// Config holds the engine settings. Environment variables override values
// read from the YAML file.
type Config struct {
	// Dialect is the SQL dialect of the backend.
	Dialect string `yaml:"dialect" env:"STRATA_DIALECT" env-default:"sqlite"`

	// IDProvider names the generator of join-row keys: uuid, uuid_string
	// or sequence.
	IDProvider string `yaml:"id_provider" env:"STRATA_ID_PROVIDER" env-default:"uuid"`

	// Columns names the system columns of entity tables.
	Columns schema.SystemColumns `yaml:"columns" env-prefix:"STRATA_COLUMN_"`

	// FailFast stops a check phase at its first validation error instead of
	// collecting all of them.
	FailFast bool `yaml:"fail_fast" env:"STRATA_FAIL_FAST"`

	// SlowThreshold is the duration above which a statement is logged as
	// slow. Zero disables query statistics.
	SlowThreshold time.Duration `yaml:"slow_threshold" env:"STRATA_SLOW_THRESHOLD" env-default:"200ms"`

	// Debug logs every statement sent to the backend.
	Debug bool `yaml:"debug" env:"STRATA_DEBUG"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Dialect:       dialect.SQLite,
		IDProvider:    "uuid",
		Columns:       schema.DefaultColumns(),
		SlowThreshold: 200 * time.Millisecond,
	}
}

// Load reads the configuration from the YAML file at path, then applies
// environment overrides. An empty path reads the environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config: reading environment: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the dialect and identifier provider names.
func (c *Config) Validate() error {
	switch c.Dialect {
	case dialect.SQLite, dialect.MySQL, dialect.Postgres:
	default:
		return fmt.Errorf("config: unsupported dialect %q", c.Dialect)
	}
	if _, err := c.IDs(); err != nil {
		return err
	}
	if c.SlowThreshold < 0 {
		return fmt.Errorf("config: negative slow threshold %s", c.SlowThreshold)
	}
	return nil
}

// IDs returns the identifier provider named by the configuration.
func (c *Config) IDs() (schema.IDProvider, error) {
	switch c.IDProvider {
	case "", "uuid":
		return schema.UUIDProvider{}, nil
	case "uuid_string":
		return schema.StringUUIDProvider{}, nil
	case "sequence":
		return schema.NewSequenceProvider(1), nil
	default:
		return nil, fmt.Errorf("config: unknown id provider %q", c.IDProvider)
	}
}

// RegistryOptions returns the options applying the configuration to a
// schema registry.
func (c *Config) RegistryOptions() []schema.RegistryOption {
	return []schema.RegistryOption{schema.WithColumns(c.Columns)}
}
