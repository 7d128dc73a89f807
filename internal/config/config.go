package config

import (
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vango-dev/urlobserver/internal/errors"
)

const (
	// EnvPrefix prefixes environment overrides.
	EnvPrefix = "URLOBSERVER"

	// DefaultDwellTime matches the observer default.
	DefaultDwellTime = 2 * time.Second

	// DefaultAddr is the default WebSocket host address.
	DefaultAddr = ":8080"

	// DefaultPath is the default WebSocket endpoint.
	DefaultPath = "/ws"

	// DefaultMetricsAddr is the default Prometheus listener.
	DefaultMetricsAddr = ":9090"

	// DefaultArchivePrefix is the default object key prefix.
	DefaultArchivePrefix = "urlobserver/"
)

// Config is the complete configuration.
type Config struct {
	Observer ObserverConfig `mapstructure:"observer" yaml:"observer"`
	Routes   []RouteConfig  `mapstructure:"routes" yaml:"routes"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Archive  ArchiveConfig  `mapstructure:"archive" yaml:"archive"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`

	// path is where the config was loaded from.
	path string
}

// ObserverConfig mirrors the observer options.
type ObserverConfig struct {
	// DwellTime is the minimum gap between pushing clicks. Negative
	// disables coalescing.
	DwellTime time.Duration `mapstructure:"dwell_time" yaml:"dwell_time"`

	// Debug exposes the route table at /routes.
	Debug bool `mapstructure:"debug" yaml:"debug"`

	// EncodeSpaceAsPlus writes query spaces as '+' instead of %20.
	EncodeSpaceAsPlus bool `mapstructure:"encode_space_as_plus" yaml:"encode_space_as_plus"`
}

// RouteConfig is one route pattern.
type RouteConfig struct {
	Name    string `mapstructure:"name" yaml:"name"`
	Pattern string `mapstructure:"pattern" yaml:"pattern"`
}

// ServerConfig configures the WebSocket host.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr" yaml:"addr"`
	Path           string   `mapstructure:"path" yaml:"path"`
	MetricsAddr    string   `mapstructure:"metrics_addr" yaml:"metrics_addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// ArchiveConfig selects the S3 bucket for audit trails. An empty bucket
// disables archiving.
type ArchiveConfig struct {
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
	Region string `mapstructure:"region" yaml:"region"`
}

// Enabled reports whether a bucket is configured.
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// NewLogger builds a text or JSON logger writing to w.
func (l LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevels[strings.ToLower(l.Level)]}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("observer.dwell_time", DefaultDwellTime)
	v.SetDefault("observer.debug", false)
	v.SetDefault("observer.encode_space_as_plus", true)
	v.SetDefault("server.addr", DefaultAddr)
	v.SetDefault("server.path", DefaultPath)
	v.SetDefault("server.metrics_addr", DefaultMetricsAddr)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", DefaultArchivePrefix)
	v.SetDefault("archive.region", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// Defaults are valid unless the environment says otherwise.
		v := viper.New()
		setDefaults(v)
		cfg = &Config{}
		v.Unmarshal(cfg)
	}
	return cfg
}

// Load reads path (YAML or JSON by extension), applies defaults and
// environment overrides, and validates the result. An empty path loads
// defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.New("E101").WithDetail("%s", path).Wrap(err)
		}
	}

	cfg := &Config{path: path}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.New("E102").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the file the config was loaded from, or "".
func (c *Config) Path() string {
	return c.path
}

// Validate checks patterns and enumerated values.
func (c *Config) Validate() error {
	names := make(map[string]bool, len(c.Routes))
	for i, r := range c.Routes {
		if r.Pattern == "" {
			return errors.New("E100").WithDetail("routes[%d] has no pattern", i)
		}
		if _, err := regexp.Compile(r.Pattern); err != nil {
			return errors.New("E100").WithDetail("routes[%d] %q", i, r.Pattern).Wrap(err)
		}
		if r.Name != "" {
			if names[r.Name] {
				return errors.New("E102").WithDetail("duplicate route name %q", r.Name)
			}
			names[r.Name] = true
		}
	}

	if _, ok := logLevels[strings.ToLower(c.Logging.Level)]; !ok {
		return errors.New("E102").
			WithDetail("logging.level %q", c.Logging.Level).
			WithSuggestion("Use one of debug, info, warn, error")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return errors.New("E102").
			WithDetail("logging.format %q", c.Logging.Format).
			WithSuggestion("Use text or json")
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		return errors.New("E102").WithDetail("server.path %q must start with /", c.Server.Path)
	}
	return nil
}

// Patterns compiles the route patterns in file order.
func (c *Config) Patterns() ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(c.Routes))
	for i, r := range c.Routes {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, errors.New("E100").WithDetail("routes[%d] %q", i, r.Pattern).Wrap(err)
		}
		out = append(out, re)
	}
	return out, nil
}

// RouteName returns the configured name for pattern, or "".
func (c *Config) RouteName(pattern string) string {
	for _, r := range c.Routes {
		if r.Pattern == pattern {
			return r.Name
		}
	}
	return ""
}
