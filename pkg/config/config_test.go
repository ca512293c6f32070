package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://fetlife.com", cfg.Site.BaseURL)
	assert.Equal(t, "https://fetlife.com/login", cfg.Site.LoginURL)
	assert.Equal(t, 2500*time.Millisecond, cfg.HTTP.RateLimitDelay.Std())
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout.Std())
	assert.Equal(t, 1, cfg.Download.Workers)
	assert.True(t, cfg.Download.SkipExisting)
	assert.Equal(t, 10*time.Minute, cfg.Download.RemuxTimeout.Std())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
site:
  base_url: https://example.com
  login_url: https://example.com/login
download:
  output_dir: /tmp/videos
  workers: 4
filter:
  min_duration: 300
http:
  rate_limit_delay: 1s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "https://example.com", cfg.Site.BaseURL)
	assert.Equal(t, "/tmp/videos", cfg.Download.OutputDir)
	assert.Equal(t, 4, cfg.Download.Workers)
	assert.Equal(t, 300, cfg.Filter.MinDuration)
	assert.Equal(t, time.Second, cfg.HTTP.RateLimitDelay.Std())
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("site: [not a map"), 0o644))

	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(path))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FETSCRAPER_USERNAME", "tester")
	t.Setenv("FETSCRAPER_PASSWORD", "hunter2")
	t.Setenv("FETSCRAPER_BASE_URL", "https://staging.example.com")
	t.Setenv("FETSCRAPER_WORKERS", "2")
	t.Setenv("FETSCRAPER_RATE_LIMIT_DELAY", "1.5")
	t.Setenv("FETSCRAPER_MIN_DURATION", "120")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "tester", cfg.Credentials.Username)
	assert.Equal(t, "hunter2", cfg.Credentials.Password)
	assert.Equal(t, "https://staging.example.com", cfg.Site.BaseURL)
	assert.Equal(t, "https://staging.example.com/login", cfg.Site.LoginURL)
	assert.Equal(t, 2, cfg.Download.Workers)
	assert.Equal(t, 1500*time.Millisecond, cfg.HTTP.RateLimitDelay.Std())
	assert.Equal(t, 120, cfg.Filter.MinDuration)
	assert.True(t, cfg.HasCredentials())
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("FETSCRAPER_WORKERS", "zero")

	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromEnv())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base URL", func(c *Config) { c.Site.BaseURL = "" }},
		{"non-http base URL", func(c *Config) { c.Site.BaseURL = "ftp://example.com" }},
		{"empty output dir", func(c *Config) { c.Download.OutputDir = "" }},
		{"zero workers", func(c *Config) { c.Download.Workers = 0 }},
		{"too many workers", func(c *Config) { c.Download.Workers = 50 }},
		{"negative min duration", func(c *Config) { c.Filter.MinDuration = -1 }},
		{"zero max pages", func(c *Config) { c.Filter.MaxPages = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFlagOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.applyFlags(map[string]interface{}{
		"output":       "/data/out",
		"workers":      3,
		"min-duration": 60,
		"limit":        25,
	})

	assert.Equal(t, "/data/out", cfg.Download.OutputDir)
	assert.Equal(t, 3, cfg.Download.Workers)
	assert.Equal(t, 60, cfg.Filter.MinDuration)
	assert.Equal(t, 25, cfg.Filter.Limit)
}
