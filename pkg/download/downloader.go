package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cheggaaa/pb/v3"

	"github.com/OEngineer/fetscraper/pkg/errors"
	"github.com/OEngineer/fetscraper/pkg/fetlife"
	"github.com/OEngineer/fetscraper/pkg/listing"
	"github.com/OEngineer/fetscraper/pkg/logger"
	"github.com/OEngineer/fetscraper/pkg/media"
)

// Outcome classifies the result of one download attempt
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stats aggregates the outcomes of a batch
type Stats struct {
	Total   int
	Success int
	Skipped int
	Failed  int
}

// Options configures a Downloader
type Options struct {
	// OutputDir is the root under which per-uploader directories are created
	OutputDir string
	// BaseURL absolutizes relative stream and page URLs
	BaseURL string
	// SkipExisting records an ID as done when its target file already exists
	SkipExisting bool
	// ShowProgress renders a byte progress bar for direct downloads
	ShowProgress bool
	// Remuxer handles HLS streams; defaults to FFmpegRemuxer
	Remuxer Remuxer
	// Ledger overrides the ledger, mainly so workers can share one
	Ledger *Ledger
	Logger logger.Logger
}

// Downloader fetches video streams to disk, keeping a persistent ledger
// so interrupted runs resume where they left off.
type Downloader struct {
	client       *fetlife.Client
	ledger       *Ledger
	remuxer      Remuxer
	outputDir    string
	baseURL      string
	skipExisting bool
	showProgress bool
	log          logger.Logger
}

func New(client *fetlife.Client, opts Options) *Downloader {
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if opts.Remuxer == nil {
		opts.Remuxer = &FFmpegRemuxer{Logger: opts.Logger}
	}
	if opts.Ledger == nil {
		opts.Ledger = OpenLedger(opts.OutputDir, opts.Logger)
	}

	return &Downloader{
		client:       client,
		ledger:       opts.Ledger,
		remuxer:      opts.Remuxer,
		outputDir:    opts.OutputDir,
		baseURL:      opts.BaseURL,
		skipExisting: opts.SkipExisting,
		showProgress: opts.ShowProgress,
		log:          opts.Logger,
	}
}

// Ledger exposes the shared download history
func (d *Downloader) Ledger() *Ledger {
	return d.ledger
}

// TargetPath is <output>/<uploader>/<title>_<id>.mp4, with both path
// components sanitized for the filesystem.
func (d *Downloader) TargetPath(rec media.Record) string {
	return filepath.Join(
		d.outputDir,
		media.SanitizeFilename(rec.Uploader),
		fmt.Sprintf("%s_%s.mp4", media.SanitizeFilename(rec.Title), rec.ID),
	)
}

// ResolveStreamURL returns the stream source for a record, fetching the
// video page when the listing did not carry one.
func (d *Downloader) ResolveStreamURL(ctx context.Context, rec media.Record) (string, error) {
	if rec.StreamURL != "" {
		return d.absolutize(rec.StreamURL), nil
	}
	if rec.PageURL == "" {
		return "", errors.Resolution("video %s has neither stream nor page URL", rec.ID)
	}

	resp, err := d.client.Get(rec.PageURL)
	if err != nil {
		return "", err
	}

	src := listing.ExtractStreamURL(resp.Body, d.log)
	if src == "" {
		return "", errors.Resolution("no stream source on video page %s", rec.PageURL)
	}
	return d.absolutize(src), nil
}

// DownloadOne fetches a single record. With skipExisting set, IDs
// already in the ledger are skipped; a successful fetch records the ID
// before returning.
func (d *Downloader) DownloadOne(ctx context.Context, rec media.Record) (Outcome, error) {
	log := d.log.WithFields(map[string]interface{}{
		"video_id": rec.ID,
		"title":    rec.Title,
	})

	path := d.TargetPath(rec)
	if d.skipExisting {
		if d.ledger.Has(rec.ID) {
			log.Debug("already downloaded, skipping")
			return OutcomeSkipped, nil
		}
		if _, err := os.Stat(path); err == nil {
			log.Debug("file exists, recording and skipping")
			if err := d.ledger.Add(rec.ID); err != nil {
				log.WithError(err).Warn("could not persist download history")
			}
			return OutcomeSkipped, nil
		}
	}

	streamURL, err := d.ResolveStreamURL(ctx, rec)
	if err != nil {
		return OutcomeFailed, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return OutcomeFailed, errors.Download("create directory for %s: %v", path, err)
	}

	log.WithField("dest", path).Info("downloading")

	if isHLS(streamURL) {
		err = d.remuxer.CopyTo(ctx, streamURL, path)
	} else {
		err = d.downloadDirect(ctx, streamURL, path)
	}
	if err != nil {
		return OutcomeFailed, err
	}

	if err := d.ledger.Add(rec.ID); err != nil {
		log.WithError(err).Warn("could not persist download history")
	}
	return OutcomeSuccess, nil
}

// DownloadMany fetches records one after another. A failed record is
// counted and logged, never aborts the batch; only context cancellation
// cuts the run short.
func (d *Downloader) DownloadMany(ctx context.Context, recs []media.Record) Stats {
	stats := Stats{Total: len(recs)}

	for _, rec := range recs {
		if ctx.Err() != nil {
			d.log.Warn("download batch cancelled")
			break
		}

		outcome, err := d.DownloadOne(ctx, rec)
		switch outcome {
		case OutcomeSuccess:
			stats.Success++
		case OutcomeSkipped:
			stats.Skipped++
		case OutcomeFailed:
			stats.Failed++
			d.log.WithError(err).WithField("video_id", rec.ID).Error("download failed")
		}
	}

	return stats
}

// downloadDirect streams a progressive file to disk. A partial file is
// removed on any error so a resumed run starts clean.
func (d *Downloader) downloadDirect(ctx context.Context, streamURL, path string) error {
	stream, err := d.client.OpenStream(ctx, streamURL)
	if err != nil {
		return err
	}
	defer stream.Body.Close()

	f, err := os.Create(path)
	if err != nil {
		return errors.Download("create %s: %v", path, err)
	}

	var src io.Reader = stream.Body
	var bar *pb.ProgressBar
	if d.showProgress && stream.ContentLength > 0 {
		bar = pb.Full.Start64(stream.ContentLength)
		bar.Set(pb.Bytes, true)
		src = bar.NewProxyReader(stream.Body)
	}

	_, err = io.Copy(f, src)
	closeErr := f.Close()
	if bar != nil {
		bar.Finish()
	}

	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return errors.Download("write %s: %v", path, err)
	}
	return nil
}

func (d *Downloader) absolutize(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return strings.TrimRight(d.baseURL, "/") + u
}

func isHLS(u string) bool {
	return strings.Contains(u, ".m3u8")
}
