// Package config loads framegraph settings from a config file and
// FRAMEGRAPH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. FRAMEGRAPH_STORE_BACKEND.
const EnvPrefix = "FRAMEGRAPH"

// Store backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
)

// Backends lists the supported store backends.
var Backends = []string{BackendFile, BackendRedis, BackendMongo}

// Config holds all application configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Eval    EvalConfig    `mapstructure:"eval"`
	Store   StoreConfig   `mapstructure:"store"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type EvalConfig struct {
	Parallel bool          `mapstructure:"parallel"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type StoreConfig struct {
	Backend string      `mapstructure:"backend"`
	Dir     string      `mapstructure:"dir"`
	Format  string      `mapstructure:"format"`
	Redis   RedisConfig `mapstructure:"redis"`
	Mongo   MongoConfig `mapstructure:"mongo"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

// LogLevel parses Log.Level, falling back to info.
func (c *Config) LogLevel() log.Level {
	lvl, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		warnings = append(warnings, fmt.Sprintf("log level '%s' is not recognized, using info", c.Log.Level))
	}

	if c.Eval.Timeout < 0 {
		warnings = append(warnings, fmt.Sprintf("eval timeout %s is negative and will be ignored", c.Eval.Timeout))
	}

	if !slices.Contains(Backends, c.Store.Backend) {
		warnings = append(warnings, fmt.Sprintf("store backend '%s' is unknown (want one of %s)", c.Store.Backend, strings.Join(Backends, ", ")))
	}

	switch c.Store.Format {
	case "json", "yaml", "yml", "toml":
	default:
		warnings = append(warnings, fmt.Sprintf("store format '%s' is unknown", c.Store.Format))
	}

	if c.Store.Backend == BackendRedis && c.Store.Redis.Addr == "" {
		warnings = append(warnings, "redis store is configured but store.redis.addr is empty")
	}

	if c.Store.Backend == BackendMongo && c.Store.Mongo.URI == "" {
		warnings = append(warnings, "mongo store is configured but store.mongo.uri is empty")
	}

	if c.Store.Redis.TTL < 0 {
		warnings = append(warnings, fmt.Sprintf("redis ttl %s is negative", c.Store.Redis.TTL))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0]", c.Tracing.SampleRate))
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		warnings = append(warnings, "tracing is enabled but tracing.endpoint is empty, spans will not be exported")
	}

	return warnings
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("eval.parallel", true)
	v.SetDefault("eval.timeout", time.Duration(0))
	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.dir", "")
	v.SetDefault("store.format", "yaml")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "framegraph:")
	v.SetDefault("store.redis.ttl", time.Duration(0))
	v.SetDefault("store.mongo.uri", "")
	v.SetDefault("store.mongo.database", "framegraph")
	v.SetDefault("store.mongo.collection", "projects")
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_rate", 1.0)
}

// Load reads configuration from path and the environment. With an empty
// path, a file named framegraph.{yaml,toml,json} is looked up in the working
// directory and in the user config directory; a missing file is not an
// error.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("framegraph")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "framegraph"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}
