package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/OEngineer/fetscraper/pkg/media"
	"github.com/OEngineer/fetscraper/pkg/ui"
)

var listOnly bool

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search for videos and download the matches",
	Long: `Search the site's video listing for a query and download every match.

Pages are walked until the listing is exhausted, the --limit is reached,
or the page cap trips. Videos shorter than --min-duration are skipped.`,
	Example: `  # Download everything matching a query
  fetscraper search "rope suspension"

  # Keep only videos of at least five minutes, stop after ten
  fetscraper search shibari --min-duration 300 --limit 10

  # List the matches without downloading
  fetscraper search shibari --list`,
	Args: cobra.ExactArgs(1),
	Run:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	addScrapeFlags(searchCmd)
	searchCmd.Flags().BoolVar(&listOnly, "list", false, "print the matches without downloading")
}

func runSearch(cmd *cobra.Command, args []string) {
	query := strings.TrimSpace(args[0])
	ui.PrintInfo("Search query", query)

	s, cfg, err := newScraper(cmd)
	if err != nil {
		ui.PrintError("Failed to initialize", err.Error())
		os.Exit(1)
	}

	if err := login(s, cfg); err != nil {
		ui.PrintError("Login failed", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Logged in")

	if listOnly {
		recs, err := s.SearchVideos(query)
		if err != nil {
			ui.PrintError("Search failed", err.Error())
			os.Exit(1)
		}
		printRecords(recs)
		return
	}

	stats, err := s.SearchAndDownload(signalContext(), query)
	if err != nil {
		ui.PrintError("Search failed", err.Error())
		os.Exit(1)
	}

	ui.PrintSummary(stats.Total, stats.Success, stats.Skipped, stats.Failed)
	if stats.Failed > 0 {
		os.Exit(1)
	}
}

// printRecords lists matched videos without downloading them
func printRecords(recs []media.Record) {
	if len(recs) == 0 {
		ui.PrintWarning("No videos matched")
		return
	}
	for _, rec := range recs {
		fmt.Printf("%s  %-8s  %s (by %s)\n",
			rec.ID, media.FormatDuration(rec.Duration), rec.Title, rec.Uploader)
	}
	ui.PrintInfo("Matched", fmt.Sprintf("%d videos", len(recs)))
}

// signalContext returns a context cancelled by SIGINT or SIGTERM
func signalContext() context.Context {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	_ = stop // released on process exit
	return ctx
}
