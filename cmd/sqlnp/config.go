package main

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the CLI settings. Every field can come from a flag or from
// an SQLNP_* environment variable; flags win.
type Config struct {
	Driver   string `mapstructure:"driver" validate:"omitempty,oneof=sqlite3 pgx mysql sqlserver"`
	DSN      string `mapstructure:"dsn"`
	Dialect  string `mapstructure:"dialect" validate:"omitempty,oneof=postgres mysql sqlite sqlserver"`
	LogLevel string `mapstructure:"log-level" validate:"oneof=debug info warn error"`
}

var validate = validator.New()

// newFlagSet declares the flags shared by every subcommand.
func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("driver", "", "database/sql driver: sqlite3, pgx, mysql or sqlserver")
	fs.String("dsn", "", "data source name (a file path for sqlite3)")
	fs.String("dialect", "", "placeholder dialect: postgres, mysql, sqlite or sqlserver (default from driver)")
	fs.String("log-level", "warn", "log level: debug, info, warn or error")
	fs.StringArrayP("param", "p", nil, "bind a parameter as name=value (repeatable)")
	return fs
}

// loadConfig merges parsed flags with SQLNP_* environment variables and
// validates the result.
func loadConfig(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SQLNP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, errors.Wrap(err, "bind flags")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if err := validate.Struct(cfg); err != nil {
		return Config{}, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// parseParams splits name=value pairs. Values are bound as strings.
func parseParams(raw []string) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for _, p := range raw {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, errors.Errorf("malformed --param %q, want name=value", p)
		}
		out[name] = value
	}
	return out, nil
}
