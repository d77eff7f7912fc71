// Package config loads datoms settings with viper.
//
// Precedence, lowest first: defaults, config file, DATOMS_* environment
// variables, command-line flags bound by the CLI. The loaded Config is
// passed explicitly to the compiler and store; nothing reads settings from
// package state.
package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/roach88/datoms/internal/compiler"
	"github.com/roach88/datoms/internal/logging"
	"github.com/roach88/datoms/internal/store"
)

// EnvPrefix prefixes every environment variable: DATOMS_DB_PATH,
// DATOMS_LOG_LEVEL, ...
const EnvPrefix = "DATOMS"

// Keys.
const (
	KeyDBPath        = "db_path"
	KeyStrict        = "strict"
	KeyEnforceSchema = "enforce_schema"
	KeyLogLevel      = "log.level"
	KeyLogJSON       = "log.json"
)

// Config is the resolved configuration.
type Config struct {
	DBPath        string    `mapstructure:"db_path"`
	Strict        bool      `mapstructure:"strict"`
	EnforceSchema bool      `mapstructure:"enforce_schema"`
	Log           LogConfig `mapstructure:"log"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// SetDefaults registers the default for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDBPath, "datoms.db")
	v.SetDefault(KeyStrict, true)
	v.SetDefault(KeyEnforceSchema, true)
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogJSON, false)
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads the config file and unmarshals v. An explicit path must exist;
// with no path, datoms.yaml or datoms.toml in the working directory is used
// when present.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	} else {
		v.SetConfigName("datoms")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "read config")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return &cfg, nil
}

// CompilerOptions returns the options Compile runs with.
func (c *Config) CompilerOptions() compiler.Options {
	return compiler.Options{Strict: c.Strict}
}

// StoreOptions returns the options the store opens with.
func (c *Config) StoreOptions(log *zap.SugaredLogger) store.Options {
	opts := store.DefaultOptions()
	opts.EnforceSchema = c.EnforceSchema
	opts.Logger = log
	return opts
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	return logging.Config{Level: c.Log.Level, JSON: c.Log.JSON}
}
