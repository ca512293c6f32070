package listing

import (
	"github.com/OEngineer/fetscraper/pkg/logger"
	"github.com/OEngineer/fetscraper/pkg/media"
)

const (
	// DefaultMaxPages bounds a listing walk that never terminates on its own
	DefaultMaxPages = 100
	// DefaultMaxEmptyStreak stops a walk after this many consecutive pages
	// where every item was filtered out
	DefaultMaxEmptyStreak = 3
)

// Options controls pagination and filtering of a listing walk
type Options struct {
	// MinDuration drops records shorter than this many seconds; records
	// with unknown duration (zero) are dropped too when it is set
	MinDuration int
	// Limit caps the total number of records collected; zero means no cap
	Limit int
	// MaxPages caps the number of pages fetched; zero means DefaultMaxPages
	MaxPages int
	// MaxEmptyStreak stops the walk after this many consecutive fully
	// filtered pages; zero means DefaultMaxEmptyStreak
	MaxEmptyStreak int
}

func (o Options) withDefaults() Options {
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	if o.MaxEmptyStreak <= 0 {
		o.MaxEmptyStreak = DefaultMaxEmptyStreak
	}
	return o
}

// PageFetcher fetches and parses one listing page. Pages are numbered
// from 1.
type PageFetcher func(page int) (*Page, error)

// Paginate walks a listing page by page, filtering and collecting
// records until the listing is exhausted, the limit is reached, or a
// safety bound trips. A fetch error aborts the walk.
func Paginate(fetch PageFetcher, opts Options, log logger.Logger) ([]media.Record, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	opts = opts.withDefaults()

	var out []media.Record
	emptyStreak := 0

	for page := 1; page <= opts.MaxPages; page++ {
		p, err := fetch(page)
		if err != nil {
			return nil, err
		}

		kept := 0
		for _, rec := range p.Records {
			if opts.MinDuration > 0 && rec.Duration < opts.MinDuration {
				continue
			}
			out = append(out, rec)
			kept++
			if opts.Limit > 0 && len(out) >= opts.Limit {
				log.WithFields(map[string]interface{}{
					"page":  page,
					"total": len(out),
				}).Debug("reached collection limit")
				return out, nil
			}
		}

		log.WithFields(map[string]interface{}{
			"page": page,
			"raw":  p.RawCount,
			"kept": kept,
		}).Debug("parsed listing page")

		if p.RawCount == 0 || !p.HasNext {
			break
		}

		if kept == 0 {
			emptyStreak++
			if emptyStreak >= opts.MaxEmptyStreak {
				log.WithField("pages", emptyStreak).Warn("stopping walk, every recent page was filtered out")
				break
			}
		} else {
			emptyStreak = 0
		}
	}

	return out, nil
}
