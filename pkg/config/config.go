// Package config loads forks settings from flags, the environment and
// $HOME/.forks/config.yaml through viper.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/fxding/forks/pkg/installer"
	"github.com/fxding/forks/pkg/osutil"
	"github.com/fxding/forks/pkg/search"
	"github.com/fxding/forks/pkg/sources"
	"github.com/fxding/forks/pkg/staleness"
	"github.com/fxding/forks/pkg/telemetry"
)

const (
	// EnvPrefix prefixes every environment override, e.g. FORKS_LOG_LEVEL.
	EnvPrefix = "FORKS"
	// DefaultRoot is the registry root relative to the home directory.
	DefaultRoot = ".forks"
)

// GitConfig configures the git binary and the host shorthands expand to.
type GitConfig struct {
	Binary string `mapstructure:"binary" json:"binary" yaml:"binary"`
	Host   string `mapstructure:"host" json:"host" yaml:"host"`
}

// InstallerConfig configures the external install command.
type InstallerConfig struct {
	Command string   `mapstructure:"command" json:"command" yaml:"command"`
	Args    []string `mapstructure:"args" json:"args" yaml:"args"`
	Path    string   `mapstructure:"path" json:"path" yaml:"path"`
}

// SweepConfig configures bulk refresh and the background sweep.
type SweepConfig struct {
	Interval    time.Duration `mapstructure:"interval" json:"interval" yaml:"interval"`
	MinInterval time.Duration `mapstructure:"min_interval" json:"min_interval" yaml:"min_interval"`
	Delay       time.Duration `mapstructure:"delay" json:"delay" yaml:"delay"`
}

// SearchConfig configures the skill directory client.
type SearchConfig struct {
	Endpoint string        `mapstructure:"endpoint" json:"endpoint" yaml:"endpoint"`
	Limit    int           `mapstructure:"limit" json:"limit" yaml:"limit"`
	Timeout  time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
}

// ServeConfig configures `forks serve`.
type ServeConfig struct {
	Host string `mapstructure:"host" json:"host" yaml:"host"`
	Port int    `mapstructure:"port" json:"port" yaml:"port"`
}

// TracingConfig configures OTLP tracing.
type TracingConfig struct {
	Enabled bool    `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Sampler string  `mapstructure:"sampler" json:"sampler" yaml:"sampler"`
	Ratio   float64 `mapstructure:"ratio" json:"ratio" yaml:"ratio"`
}

// Config is the resolved configuration.
type Config struct {
	RegistryRoot    string          `mapstructure:"registry_root" json:"registry_root" yaml:"registry_root"`
	LogLevel        string          `mapstructure:"log_level" json:"log_level" yaml:"log_level"`
	LogFormat       string          `mapstructure:"log_format" json:"log_format" yaml:"log_format"`
	IncludeInternal bool            `mapstructure:"include_internal" json:"include_internal" yaml:"include_internal"`
	Git             GitConfig       `mapstructure:"git" json:"git" yaml:"git"`
	Installer       InstallerConfig `mapstructure:"installer" json:"installer" yaml:"installer"`
	Sweep           SweepConfig     `mapstructure:"sweep" json:"sweep" yaml:"sweep"`
	Search          SearchConfig    `mapstructure:"search" json:"search" yaml:"search"`
	Serve           ServeConfig     `mapstructure:"serve" json:"serve" yaml:"serve"`
	Tracing         TracingConfig   `mapstructure:"tracing" json:"tracing" yaml:"tracing"`
}

// SetDefaults registers every key so environment overrides are visible to
// AllSettings.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("registry_root", filepath.Join("~", DefaultRoot))
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "fmt")
	v.SetDefault("include_internal", false)

	v.SetDefault("git.binary", "git")
	v.SetDefault("git.host", sources.DefaultHost)

	v.SetDefault("installer.command", installer.DefaultCommand)
	v.SetDefault("installer.args", installer.DefaultArgs)
	v.SetDefault("installer.path", installer.DefaultPath)

	v.SetDefault("sweep.interval", staleness.DefaultInterval)
	v.SetDefault("sweep.min_interval", staleness.DefaultMinInterval)
	v.SetDefault("sweep.delay", staleness.DefaultDelay)

	v.SetDefault("search.endpoint", search.DefaultEndpoint)
	v.SetDefault("search.limit", search.DefaultLimit)
	v.SetDefault("search.timeout", search.DefaultTimeout)

	v.SetDefault("serve.host", "localhost")
	v.SetDefault("serve.port", 8787)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sampler", telemetry.SamplerAlways)
	v.SetDefault("tracing.ratio", 1.0)
}

// Init wires environment lookup and reads config.yaml from $HOME/.forks or
// the working directory. A missing file is not an error.
func Init(v *viper.Viper) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join("$HOME", DefaultRoot))
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "failed to read config file")
	}
	return nil
}

// Load decodes the settings held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return cfg, errors.Wrap(err, "failed to create config decoder")
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return cfg, errors.Wrap(err, "failed to decode configuration")
	}

	root, err := osutil.ExpandHome(cfg.RegistryRoot)
	if err != nil {
		return cfg, err
	}
	cfg.RegistryRoot = root

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	if c.RegistryRoot == "" {
		return errors.New("registry_root cannot be empty")
	}
	if c.Sweep.Interval <= 0 {
		return errors.Errorf("sweep.interval must be positive, got %s", c.Sweep.Interval)
	}
	if c.Sweep.MinInterval < 0 || c.Sweep.Delay < 0 {
		return errors.New("sweep.min_interval and sweep.delay cannot be negative")
	}
	if c.Search.Limit <= 0 {
		return errors.Errorf("search.limit must be positive, got %d", c.Search.Limit)
	}
	switch c.Tracing.Sampler {
	case telemetry.SamplerAlways, telemetry.SamplerNever, telemetry.SamplerRatio:
	default:
		return errors.Errorf("unknown tracing.sampler %q", c.Tracing.Sampler)
	}
	return nil
}

// TelemetryConfig maps the tracing settings onto telemetry.Config.
func (c Config) TelemetryConfig(serviceVersion string) telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Tracing.Enabled,
		ServiceName:    "forks",
		ServiceVersion: serviceVersion,
		SamplerType:    c.Tracing.Sampler,
		SamplerRatio:   c.Tracing.Ratio,
	}
}
