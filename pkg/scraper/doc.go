// Package scraper provides the core functionality for archiving videos.
//
// The scraper package orchestrates an entire run, coordinating the site
// client, authentication, listing discovery and the downloader.
//
// Usage:
//
//	cfg, err := config.Load("", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	s, err := scraper.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := s.Login(); err != nil {
//	    log.Fatal(err)
//	}
//
//	stats, err := s.SearchAndDownload(context.Background(), "rope")
//
// Rate Limiting:
//
// Every request goes through the client's interval gate, so the
// configured delay holds across search, profile walks and downloads,
// no matter how many workers are running.
//
// Storage:
//
// Downloaded videos land under {output}/{uploader}/{title}_{id}.mp4 and
// completed IDs are recorded in a history file, so interrupted runs
// resume without refetching.
package scraper
