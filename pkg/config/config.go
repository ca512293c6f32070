package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the scraper
type Config struct {
	// Site endpoints
	Site SiteConfig `yaml:"site" json:"site"`

	// Credentials (environment only, never written to the config file)
	Credentials CredentialsConfig `yaml:"-" json:"-"`

	// HTTP client behavior
	HTTP HTTPConfig `yaml:"http" json:"http"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Listing filters
	Filter FilterConfig `yaml:"filter" json:"filter"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SiteConfig holds the target site URLs
type SiteConfig struct {
	BaseURL   string `yaml:"base_url" json:"base_url"`
	LoginURL  string `yaml:"login_url" json:"login_url"`
	SearchURL string `yaml:"search_url" json:"search_url"`
}

// CredentialsConfig holds login credentials
type CredentialsConfig struct {
	Username string
	Password string
}

// HTTPConfig holds transport-level settings
type HTTPConfig struct {
	RateLimitDelay Duration `yaml:"rate_limit_delay" json:"rate_limit_delay"`
	Timeout        Duration `yaml:"timeout" json:"timeout"`
	MaxRetries     int      `yaml:"max_retries" json:"max_retries"`
	UserAgent      string   `yaml:"user_agent" json:"user_agent"`
}

// DownloadConfig holds download-specific settings
type DownloadConfig struct {
	OutputDir    string   `yaml:"output_dir" json:"output_dir"`
	Workers      int      `yaml:"workers" json:"workers"`
	SkipExisting bool     `yaml:"skip_existing" json:"skip_existing"`
	RemuxTimeout Duration `yaml:"remux_timeout" json:"remux_timeout"`
	FFmpegBinary string   `yaml:"ffmpeg_binary" json:"ffmpeg_binary"`
}

// FilterConfig holds listing filter settings
type FilterConfig struct {
	MinDuration int `yaml:"min_duration" json:"min_duration"`
	Limit       int `yaml:"limit" json:"limit"`
	MaxPages    int `yaml:"max_pages" json:"max_pages"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	// Quiet suppresses progress bars and the banner, flag-only
	Quiet bool `yaml:"-" json:"-"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL:   "https://fetlife.com",
			LoginURL:  "https://fetlife.com/login",
			SearchURL: "https://fetlife.com/search",
		},
		HTTP: HTTPConfig{
			RateLimitDelay: Duration(2500 * time.Millisecond),
			Timeout:        Duration(30 * time.Second),
			MaxRetries:     3,
			UserAgent:      "FetScraper/1.0 (Personal Use)",
		},
		Download: DownloadConfig{
			OutputDir:    "./downloads",
			Workers:      1,
			SkipExisting: true,
			RemuxTimeout: Duration(10 * time.Minute),
			FFmpegBinary: "ffmpeg",
		},
		Filter: FilterConfig{
			MinDuration: 0,
			Limit:       0,
			MaxPages:    100,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the effective configuration: defaults, then the config file,
// then environment variables, then command-line overrides.
func Load(configFile string, flags map[string]interface{}) (*Config, error) {
	cfg := DefaultConfig()

	// .env values become visible to LoadFromEnv; absence is not an error
	_ = godotenv.Load()

	if err := cfg.LoadFromFile(configFile); err != nil {
		return nil, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	cfg.applyFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // no config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for a config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".fetscraper.yaml",
		".fetscraper.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "fetscraper", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".fetscraper.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("FETSCRAPER_USERNAME"); v != "" {
		c.Credentials.Username = v
	}
	if v := os.Getenv("FETSCRAPER_PASSWORD"); v != "" {
		c.Credentials.Password = v
	}
	if v := os.Getenv("FETSCRAPER_BASE_URL"); v != "" {
		c.Site.BaseURL = v
		c.Site.LoginURL = v + "/login"
		c.Site.SearchURL = v + "/search"
	}
	if v := os.Getenv("FETSCRAPER_OUTPUT_DIR"); v != "" {
		c.Download.OutputDir = v
	}
	if v := os.Getenv("FETSCRAPER_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid FETSCRAPER_WORKERS value: %q", v)
		}
		c.Download.Workers = n
	}
	if v := os.Getenv("FETSCRAPER_RATE_LIMIT_DELAY"); v != "" {
		seconds, err := strconv.ParseFloat(v, 64)
		if err != nil || seconds < 0 {
			return fmt.Errorf("invalid FETSCRAPER_RATE_LIMIT_DELAY value: %q", v)
		}
		c.HTTP.RateLimitDelay = Duration(seconds * float64(time.Second))
	}
	if v := os.Getenv("FETSCRAPER_MIN_DURATION"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid FETSCRAPER_MIN_DURATION value: %q", v)
		}
		c.Filter.MinDuration = n
	}
	if v := os.Getenv("FETSCRAPER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// applyFlags applies command-line overrides collected by the CLI layer
func (c *Config) applyFlags(flags map[string]interface{}) {
	if flags == nil {
		return
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Download.OutputDir = v
	}
	if v, ok := flags["workers"].(int); ok && v > 0 {
		c.Download.Workers = v
	}
	if v, ok := flags["min-duration"].(int); ok && v > 0 {
		c.Filter.MinDuration = v
	}
	if v, ok := flags["limit"].(int); ok && v > 0 {
		c.Filter.Limit = v
	}
	if v, ok := flags["rate-limit-delay"].(time.Duration); ok && v > 0 {
		c.HTTP.RateLimitDelay = Duration(v)
	}
	if v, ok := flags["skip-existing"].(bool); ok {
		c.Download.SkipExisting = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["quiet"].(bool); ok {
		c.Logging.Quiet = v
	}
}

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	var errs []error

	if c.Site.BaseURL == "" {
		errs = append(errs, errors.New("base URL is required"))
	}
	if !strings.HasPrefix(c.Site.BaseURL, "http://") && !strings.HasPrefix(c.Site.BaseURL, "https://") {
		errs = append(errs, errors.New("base URL must start with http:// or https://"))
	}
	if c.Download.OutputDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Download.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	if c.Download.Workers > 10 {
		errs = append(errs, errors.New("workers should not exceed 10"))
	}
	if c.HTTP.RateLimitDelay < 0 {
		errs = append(errs, errors.New("rate limit delay cannot be negative"))
	}
	if c.HTTP.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Filter.MinDuration < 0 {
		errs = append(errs, errors.New("min duration cannot be negative"))
	}
	if c.Filter.MaxPages <= 0 {
		errs = append(errs, errors.New("max pages must be positive"))
	}

	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// HasCredentials reports whether a username and password are configured
func (c *Config) HasCredentials() bool {
	return c.Credentials.Username != "" && c.Credentials.Password != ""
}

// EnsureOutputDir creates the download directory if it does not exist
func (c *Config) EnsureOutputDir() error {
	return os.MkdirAll(c.Download.OutputDir, 0o755)
}
