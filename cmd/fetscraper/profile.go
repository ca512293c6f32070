package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OEngineer/fetscraper/pkg/ui"
)

// profileCmd represents the profile command
var profileCmd = &cobra.Command{
	Use:   "profile <user>",
	Short: "Download all videos of one member",
	Long: `Download every video a member has uploaded.

The member can be given as a numeric user ID, a profile URL, or a
nickname. Nicknames are resolved through the member search and must
match a result exactly (ignoring case).`,
	Example: `  # By numeric ID
  fetscraper profile 12345

  # By profile URL
  fetscraper profile https://fetlife.com/users/12345

  # By nickname, keeping only longer videos
  fetscraper profile some_nickname --min-duration 120`,
	Args: cobra.ExactArgs(1),
	Run:  runProfile,
}

func init() {
	rootCmd.AddCommand(profileCmd)
	addScrapeFlags(profileCmd)
	profileCmd.Flags().BoolVar(&listOnly, "list", false, "print the matches without downloading")
}

func runProfile(cmd *cobra.Command, args []string) {
	identifier := strings.TrimSpace(args[0])
	ui.PrintInfo("Target member", identifier)

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
		recs, err := s.ProfileVideos(identifier)
		if err != nil {
			ui.PrintError("Listing failed", err.Error())
			os.Exit(1)
		}
		printRecords(recs)
		return
	}

	stats, err := s.DownloadProfile(signalContext(), identifier)
	if err != nil {
		ui.PrintError("Download failed", err.Error())
		os.Exit(1)
	}

	ui.PrintSummary(stats.Total, stats.Success, stats.Skipped, stats.Failed)
	if stats.Failed > 0 {
		os.Exit(1)
	}
}
