package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/OEngineer/fetscraper/pkg/config"
	"github.com/OEngineer/fetscraper/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage FetScraper configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as 'fetscraper.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	Long: `Show the configuration after merging all sources. Credentials are
never part of the output.`,
	Run: runConfigShow,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Run:   runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# FetScraper Configuration File
#
# Credentials are never read from this file. Use 'fetscraper auth login'
# or the FETSCRAPER_USERNAME and FETSCRAPER_PASSWORD environment variables.

# Site endpoints
site:
  base_url: "https://fetlife.com"
  login_url: "https://fetlife.com/login"
  search_url: "https://fetlife.com/search/videos"

# HTTP client behavior
http:
  # Minimum delay between requests
  rate_limit_delay: 2.5s
  # Per-request timeout
  timeout: 30s
  # Retry attempts for transient failures
  max_retries: 3
  user_agent: ""

# Download settings
download:
  output_dir: "./downloads"
  # Concurrent downloads, 1-10
  workers: 1
  # Record already present files instead of refetching them
  skip_existing: true
  # Kill a stuck ffmpeg remux after this long
  remux_timeout: 10m
  ffmpeg_binary: "ffmpeg"

# Listing filters
filter:
  # Skip videos shorter than this many seconds
  min_duration: 0
  # Stop after collecting this many videos, 0 for no cap
  limit: 0
  # Hard cap on listing pages walked
  max_pages: 100

# Logging
logging:
  # debug, info, warn, error
  level: "info"
`

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = "fetscraper.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o644); err != nil {
		ui.PrintError("Failed to write configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Created " + configPath)
	fmt.Println("\nEdit the file, then store your credentials with:")
	fmt.Println("  fetscraper auth login")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		ui.PrintError("Failed to render configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight("Resolved configuration")
	fmt.Println()
	fmt.Print(string(out))
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	path := configFile
	if path == "" {
		path = "fetscraper.yaml"
	}

	if _, err := os.Stat(path); err != nil {
		ui.PrintError("Configuration file not found", path)
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		ui.PrintError("Invalid configuration", err.Error())
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		ui.PrintError("Invalid configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration is valid: " + path)
}
