package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxding/forks/pkg/telemetry"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	v := viper.New()
	require.NoError(t, Init(v))
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".forks"), cfg.RegistryRoot)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "fmt", cfg.LogFormat)
	assert.False(t, cfg.IncludeInternal)
	assert.Equal(t, GitConfig{Binary: "git", Host: "https://github.com"}, cfg.Git)
	assert.Equal(t, "npx", cfg.Installer.Command)
	assert.Equal(t, []string{"skills"}, cfg.Installer.Args)
	assert.Equal(t, SweepConfig{Interval: time.Hour, MinInterval: time.Hour, Delay: 2 * time.Second}, cfg.Sweep)
	assert.Equal(t, SearchConfig{Endpoint: "https://skills.sh/api/search", Limit: 10, Timeout: 10 * time.Second}, cfg.Search)
	assert.Equal(t, ServeConfig{Host: "localhost", Port: 8787}, cfg.Serve)
	assert.Equal(t, telemetry.SamplerAlways, cfg.Tracing.Sampler)
}

func TestLoadEnvOverrides(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("FORKS_LOG_LEVEL", "debug")
	t.Setenv("FORKS_SWEEP_INTERVAL", "30m")
	t.Setenv("FORKS_SEARCH_LIMIT", "25")
	t.Setenv("FORKS_GIT_BINARY", "/opt/git/bin/git")
	t.Setenv("FORKS_INCLUDE_INTERNAL", "true")

	v := viper.New()
	require.NoError(t, Init(v))
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Minute, cfg.Sweep.Interval)
	assert.Equal(t, 25, cfg.Search.Limit)
	assert.Equal(t, "/opt/git/bin/git", cfg.Git.Binary)
	assert.True(t, cfg.IncludeInternal)
}

func TestLoadConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".forks")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
registry_root: ~/skills-registry
installer:
  command: bunx
  args: ["skills@latest"]
sweep:
  delay: 0s
  min_interval: 15m
serve:
  port: 9000
tracing:
  enabled: true
  sampler: ratio
  ratio: 0.25
`), 0o644))

	v := viper.New()
	require.NoError(t, Init(v))
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "skills-registry"), cfg.RegistryRoot)
	assert.Equal(t, "bunx", cfg.Installer.Command)
	assert.Equal(t, []string{"skills@latest"}, cfg.Installer.Args)
	assert.Equal(t, time.Duration(0), cfg.Sweep.Delay)
	assert.Equal(t, 15*time.Minute, cfg.Sweep.MinInterval)
	assert.Equal(t, time.Hour, cfg.Sweep.Interval)
	assert.Equal(t, 9000, cfg.Serve.Port)

	tc := cfg.TelemetryConfig("1.2.3")
	assert.True(t, tc.Enabled)
	assert.Equal(t, telemetry.SamplerRatio, tc.SamplerType)
	assert.Equal(t, 0.25, tc.SamplerRatio)
	assert.Equal(t, "1.2.3", tc.ServiceVersion)
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".forks")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("sweep: [\n"), 0o644))

	err := Init(viper.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate(t *testing.T) {
	valid := Config{
		RegistryRoot: "/tmp/forks",
		Sweep:        SweepConfig{Interval: time.Hour},
		Search:       SearchConfig{Limit: 10},
		Tracing:      TracingConfig{Sampler: telemetry.SamplerNever},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty root", func(c *Config) { c.RegistryRoot = "" }, "registry_root"},
		{"zero interval", func(c *Config) { c.Sweep.Interval = 0 }, "sweep.interval"},
		{"negative delay", func(c *Config) { c.Sweep.Delay = -time.Second }, "cannot be negative"},
		{"zero limit", func(c *Config) { c.Search.Limit = 0 }, "search.limit"},
		{"bad sampler", func(c *Config) { c.Tracing.Sampler = "sometimes" }, "tracing.sampler"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
