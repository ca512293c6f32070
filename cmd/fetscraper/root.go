package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/OEngineer/fetscraper/pkg/auth"
	"github.com/OEngineer/fetscraper/pkg/config"
	"github.com/OEngineer/fetscraper/pkg/logger"
	"github.com/OEngineer/fetscraper/pkg/scraper"
	"github.com/OEngineer/fetscraper/pkg/ui"
)

var (
	// Version information, set at build time
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool

	// Shared scrape flags
	outputDir      string
	workers        int
	minDuration    int
	limit          int
	rateLimitDelay time.Duration
	skipExisting   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fetscraper",
	Short: "Download videos from your FetLife account",
	Long: `FetScraper is a command-line tool for archiving videos from FetLife.

Features:
  - Logs in with your own account credentials
  - Search-based and per-member video discovery
  - Duration filtering to skip short clips
  - Resumable downloads with a persistent history file
  - HLS streams remuxed to MP4 through ffmpeg
  - Polite rate limiting with automatic retry

Credentials are read from the system keychain (use 'fetscraper auth login'
to store them), an encrypted file, or the FETSCRAPER_USERNAME and
FETSCRAPER_PASSWORD environment variables.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cmd.Name() != "version" && cmd.Name() != "help" && !quiet {
			ui.PrintLogo()
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./fetscraper.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress banner and progress output")

	rootCmd.SetVersionTemplate(`FetScraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// addScrapeFlags registers the flags shared by the search and profile commands
func addScrapeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for downloads")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "number of concurrent downloads")
	cmd.Flags().IntVar(&minDuration, "min-duration", 0, "skip videos shorter than this many seconds")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "stop after collecting this many videos")
	cmd.Flags().DurationVar(&rateLimitDelay, "rate-limit-delay", 0, "minimum delay between requests")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", true, "record already present files instead of refetching")
}

// loadConfig resolves the configuration from defaults, file, environment
// and the shared flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := make(map[string]interface{})
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if workers > 0 {
		flags["workers"] = workers
	}
	if minDuration > 0 {
		flags["min-duration"] = minDuration
	}
	if limit > 0 {
		flags["limit"] = limit
	}
	if rateLimitDelay > 0 {
		flags["rate-limit-delay"] = rateLimitDelay
	}
	if cmd.Flags().Changed("skip-existing") {
		flags["skip-existing"] = skipExisting
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if quiet {
		flags["quiet"] = true
	}

	return config.Load(configFile, flags)
}

// newScraper builds a logged-out scraper from the resolved config,
// filling in stored credentials when the environment carries none.
func newScraper(cmd *cobra.Command) (*scraper.Scraper, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	if !cfg.HasCredentials() {
		if manager, err := auth.NewManager(); err == nil {
			if creds, err := manager.Retrieve(); err == nil {
				cfg.Credentials.Username = creds.Username
				cfg.Credentials.Password = creds.Password
			}
		}
	}

	s, err := newScraperWithConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	return s, cfg, nil
}

// newScraperWithConfig initializes logging and builds the scraper
func newScraperWithConfig(cfg *config.Config) (*scraper.Scraper, error) {
	if err := logger.Initialize(cfg.Logging.Level); err != nil {
		return nil, err
	}
	return scraper.New(cfg)
}

// login authenticates and, at debug level, dumps the fetched login page
// so CSRF extraction failures can be inspected.
func login(s *scraper.Scraper, cfg *config.Config) error {
	if !cfg.HasCredentials() {
		ui.PrintError("No credentials found", "run 'fetscraper auth login' or set FETSCRAPER_USERNAME and FETSCRAPER_PASSWORD")
		os.Exit(1)
	}

	err := s.Login()
	if err != nil && cfg.Logging.Level == "debug" {
		if body := s.LoginPageBody(); len(body) > 0 {
			dump := filepath.Join(os.TempDir(), "fetscraper_login_page.html")
			if writeErr := os.WriteFile(dump, body, 0o600); writeErr == nil {
				ui.PrintInfo("Login page dumped to", dump)
			}
		}
	}
	return err
}
