// Package config loads labcat settings from defaults, an optional file and
// LABCAT_* environment variables, in increasing precedence.
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. LABCAT_DATABASE_HOST.
const EnvPrefix = "LABCAT"

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig selects and tunes the catalog database.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // "mysql" or "sqlite"
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	Path     string `mapstructure:"path"` // sqlite only

	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	MaxOpenConns     int           `mapstructure:"max_open_conns"`
	// Debug logs every statement at debug level.
	Debug bool `mapstructure:"debug"`
}

// LogConfig configures the zap logger and its optional rotated file.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
	Dev        bool   `mapstructure:"dev"`
}

// SetDefaults registers the default value of every key. Registering all keys
// also lets AutomaticEnv overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "labcat")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "labcat")
	v.SetDefault("database.path", "labcat.db")
	v.SetDefault("database.connect_timeout", 10*time.Second)
	v.SetDefault("database.statement_timeout", 0)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.debug", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", false)
	v.SetDefault("log.dev", false)
}

// NewViper returns a viper instance with defaults and environment binding.
// If path is non-empty the file is read; its format follows the extension.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if path == "" {
		return v, nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config file %s", path)
	}
	return v, nil
}

// Load reads the configuration from path (optional) and the environment,
// then validates it.
func Load(path string) (*Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return nil, err
	}
	return LoadWithViper(v)
}

// LoadWithViper unmarshals and validates the configuration held by v.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that cannot open a database.
func (c *Config) Validate() error {
	d := c.Database
	switch d.Driver {
	case "mysql":
		if d.Host == "" || d.Name == "" {
			return errors.New("database.host and database.name are required for mysql")
		}
		if d.Port <= 0 || d.Port > 65535 {
			return errors.Newf("database.port %d is out of range", d.Port)
		}
	case "sqlite":
		if d.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	default:
		return errors.WithHint(
			errors.Newf("unsupported database.driver %q", d.Driver),
			"use mysql or sqlite",
		)
	}
	if d.ConnectTimeout < 0 || d.StatementTimeout < 0 {
		return errors.New("database timeouts must not be negative")
	}
	if d.MaxOpenConns < 0 {
		return errors.Newf("database.max_open_conns %d must not be negative", d.MaxOpenConns)
	}
	if c.Log.MaxSize < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAge < 0 {
		return errors.New("log rotation limits must not be negative")
	}
	return nil
}
