// Package config loads cosmongo settings from defaults, an optional YAML
// file, .env files and COSMONGO_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable: COSMONGO_URI,
// COSMONGO_DATABASE, ...
const EnvPrefix = "COSMONGO"

// Config holds the connection and logging settings.
type Config struct {
	// URI selects and addresses the backend: mongodb://, mongodb+srv://,
	// sqlite://<path> or file:<path>.
	URI string `mapstructure:"uri" json:"uri" yaml:"uri"`

	// Database is the database holding the containers.
	Database string `mapstructure:"database" json:"database" yaml:"database"`

	MaxPoolSize    uint64        `mapstructure:"max_pool_size" json:"max_pool_size" yaml:"max_pool_size"`
	MinPoolSize    uint64        `mapstructure:"min_pool_size" json:"min_pool_size" yaml:"min_pool_size"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" json:"connect_timeout" yaml:"connect_timeout"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `mapstructure:"log_level" json:"log_level" yaml:"log_level"`
}

// Backend kinds returned by BackendKind.
const (
	BackendMongo  = "mongo"
	BackendSQLite = "sqlite"
)

// LoadOptions controls where Load looks.
type LoadOptions struct {
	// Fs is the filesystem searched for config and .env files.
	// Defaults to the OS filesystem.
	Fs afero.Fs

	// ConfigFile, when set, is read instead of searching for
	// .cosmongo.yaml. It must exist.
	ConfigFile string

	// HomeDir overrides the home directory searched for .cosmongo.yaml.
	HomeDir string
}

// Load builds a Config. Sources, lowest priority first: defaults, the
// config file, .env, .env.local, the process environment.
//
// Values in .env never override variables already set in the process
// environment; values in .env.local do.
func Load(opts LoadOptions) (*Config, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	v := viper.New()
	v.SetFs(fs)

	v.SetDefault("uri", "")
	v.SetDefault("database", "")
	v.SetDefault("max_pool_size", 100)
	v.SetDefault("min_pool_size", 0)
	v.SetDefault("connect_timeout", "10s")
	v.SetDefault("log_level", "info")

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
	} else {
		home := opts.HomeDir
		if home == "" {
			var err error
			if home, err = homedir.Dir(); err != nil {
				slog.Debug("home directory unavailable", "error", err)
			}
		}
		v.SetConfigName(".cosmongo")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home != "" {
			v.AddConfigPath(home)
			v.AddConfigPath(filepath.Join(home, ".config", "cosmongo"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	if used := v.ConfigFileUsed(); used != "" {
		slog.Debug("config file loaded", "path", used)
	}

	if err := loadDotenv(fs, ".env", false); err != nil {
		return nil, err
	}
	if err := loadDotenv(fs, ".env.local", true); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// loadDotenv exports the variables of name into the process environment.
// A missing file is not an error.
func loadDotenv(fs afero.Fs, name string, override bool) error {
	if _, err := fs.Stat(name); err != nil {
		return nil
	}
	f, err := fs.Open(name)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	vars, err := godotenv.Parse(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	for key, value := range vars {
		if cur, ok := os.LookupEnv(key); ok && cur != "" && !override {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("%s: set %s: %w", name, key, err)
		}
	}
	slog.Debug("dotenv loaded", "file", name, "vars", len(vars))
	return nil
}

// Validate checks that the config can open a backend.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.URI == "" {
		result = multierror.Append(result, fmt.Errorf("uri is required (set %s_URI)", EnvPrefix))
	} else if _, err := c.BackendKind(); err != nil {
		result = multierror.Append(result, err)
	}
	if c.Database == "" {
		result = multierror.Append(result, fmt.Errorf("database is required (set %s_DATABASE)", EnvPrefix))
	}
	if c.MaxPoolSize > 0 && c.MinPoolSize > c.MaxPoolSize {
		result = multierror.Append(result, fmt.Errorf("min_pool_size %d exceeds max_pool_size %d", c.MinPoolSize, c.MaxPoolSize))
	}
	if c.ConnectTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("connect_timeout must not be negative"))
	}
	if _, err := c.SlogLevel(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// BackendKind derives the backend from the URI scheme.
func (c *Config) BackendKind() (string, error) {
	switch {
	case strings.HasPrefix(c.URI, "mongodb://"), strings.HasPrefix(c.URI, "mongodb+srv://"):
		return BackendMongo, nil
	case strings.HasPrefix(c.URI, "sqlite://"), strings.HasPrefix(c.URI, "file:"):
		return BackendSQLite, nil
	}
	return "", fmt.Errorf("uri %q: unsupported scheme (want mongodb://, mongodb+srv://, sqlite:// or file:)", redact(c.URI))
}

// SQLitePath returns the go-sqlite3 data source for a sqlite:// or file:
// URI. sqlite://:memory: gives a private in-memory database.
func (c *Config) SQLitePath() string {
	if rest, ok := strings.CutPrefix(c.URI, "sqlite://"); ok {
		return rest
	}
	return c.URI
}

// SlogLevel parses LogLevel. Empty means info.
func (c *Config) SlogLevel() (slog.Level, error) {
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Redacted returns a copy safe to print: URI credentials are masked.
func (c *Config) Redacted() Config {
	out := *c
	out.URI = redact(c.URI)
	return out
}

// redact masks the userinfo of a URI.
func redact(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	host := rest
	if i := strings.IndexAny(rest, "/?"); i >= 0 {
		host = rest[:i]
	}
	at := strings.LastIndex(host, "@")
	if at < 0 {
		return uri
	}
	return scheme + "://***@" + rest[at+1:]
}
