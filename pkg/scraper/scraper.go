package scraper

import (
	"context"

	"github.com/OEngineer/fetscraper/internal/downloader"
	"github.com/OEngineer/fetscraper/pkg/auth"
	"github.com/OEngineer/fetscraper/pkg/config"
	"github.com/OEngineer/fetscraper/pkg/download"
	"github.com/OEngineer/fetscraper/pkg/errors"
	"github.com/OEngineer/fetscraper/pkg/fetlife"
	"github.com/OEngineer/fetscraper/pkg/listing"
	"github.com/OEngineer/fetscraper/pkg/logger"
	"github.com/OEngineer/fetscraper/pkg/media"
	"github.com/OEngineer/fetscraper/pkg/ui"
)

// Scraper wires the site client, authenticator and downloader together
// for one run. Create it, call Login once, then search or walk profiles.
type Scraper struct {
	client        *fetlife.Client
	authenticator *auth.Authenticator
	dl            *download.Downloader
	config        *config.Config
	logger        logger.Logger
}

// New creates a scraper from the resolved configuration
func New(cfg *config.Config) (*Scraper, error) {
	log := logger.GetLogger()

	if err := cfg.EnsureOutputDir(); err != nil {
		return nil, err
	}

	client := fetlife.NewClient(fetlife.Options{
		Timeout:        cfg.HTTP.Timeout.Std(),
		RateLimitDelay: cfg.HTTP.RateLimitDelay.Std(),
		MaxRetries:     cfg.HTTP.MaxRetries,
		UserAgent:      cfg.HTTP.UserAgent,
		Logger:         log,
	})

	authenticator := auth.NewAuthenticator(client, cfg.Site.BaseURL, cfg.Site.LoginURL, log)

	dl := download.New(client, download.Options{
		OutputDir:    cfg.Download.OutputDir,
		BaseURL:      cfg.Site.BaseURL,
		SkipExisting: cfg.Download.SkipExisting,
		ShowProgress: cfg.Download.Workers <= 1 && !cfg.Logging.Quiet,
		Remuxer: &download.FFmpegRemuxer{
			Binary:  cfg.Download.FFmpegBinary,
			Timeout: cfg.Download.RemuxTimeout.Std(),
			Logger:  log,
		},
		Logger: log,
	})

	return &Scraper{
		client:        client,
		authenticator: authenticator,
		dl:            dl,
		config:        cfg,
		logger:        log,
	}, nil
}

// Login authenticates the underlying client with the configured
// credentials. Everything else requires a successful login first.
func (s *Scraper) Login() error {
	if !s.config.HasCredentials() {
		return errors.Auth("no credentials configured")
	}
	return s.authenticator.Login(s.config.Credentials.Username, s.config.Credentials.Password)
}

// LoginPageBody returns the last login page fetched, for debugging
// failed logins.
func (s *Scraper) LoginPageBody() []byte {
	return s.authenticator.LoginPageBody()
}

// VerifySession probes whether the session is still authenticated
func (s *Scraper) VerifySession() bool {
	return s.authenticator.Verify()
}

// SearchVideos walks the search listing for query and returns the
// filtered records without downloading anything.
func (s *Scraper) SearchVideos(query string) ([]media.Record, error) {
	return listing.SearchVideos(s.client, s.config.Site.BaseURL, query, s.listingOptions(), s.logger)
}

// ProfileVideos walks a member's video listing and returns the filtered
// records without downloading anything.
func (s *Scraper) ProfileVideos(identifier string) ([]media.Record, error) {
	return listing.ProfileVideos(s.client, s.config.Site.BaseURL, identifier, s.listingOptions(), s.logger)
}

// SearchAndDownload searches for query and downloads every matching video
func (s *Scraper) SearchAndDownload(ctx context.Context, query string) (download.Stats, error) {
	recs, err := s.SearchVideos(query)
	if err != nil {
		return download.Stats{}, err
	}
	return s.downloadAll(ctx, recs), nil
}

// DownloadProfile downloads every matching video of one member
func (s *Scraper) DownloadProfile(ctx context.Context, identifier string) (download.Stats, error) {
	recs, err := s.ProfileVideos(identifier)
	if err != nil {
		return download.Stats{}, err
	}
	return s.downloadAll(ctx, recs), nil
}

// downloadAll fans records out over the worker pool, or runs them
// sequentially when a single worker is configured.
func (s *Scraper) downloadAll(ctx context.Context, recs []media.Record) download.Stats {
	if len(recs) == 0 {
		s.logger.Info("nothing to download")
		return download.Stats{}
	}

	workers := s.config.Download.Workers
	if workers <= 1 {
		return s.dl.DownloadMany(ctx, recs)
	}

	// Per-file bars interleave badly across workers, so concurrent runs
	// get a single batch bar instead.
	tracker := ui.NewBatchTracker(len(recs), s.config.Logging.Quiet)
	stats := downloader.Run(ctx, workers, s.dl, recs, s.logger, func(downloader.Result) {
		tracker.Increment()
	})
	tracker.Finish()
	return stats
}

func (s *Scraper) listingOptions() listing.Options {
	return listing.Options{
		MinDuration: s.config.Filter.MinDuration,
		Limit:       s.config.Filter.Limit,
		MaxPages:    s.config.Filter.MaxPages,
	}
}
