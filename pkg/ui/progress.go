package ui

import (
	"time"

	"github.com/cheggaaa/pb/v3"
)

// BatchTracker renders a progress bar over a batch of videos and keeps
// simple rate statistics for the end-of-run summary.
type BatchTracker struct {
	bar       *pb.ProgressBar
	quiet     bool
	startTime time.Time
	done      int
}

// NewBatchTracker creates a tracker for total videos. In quiet mode no
// bar is rendered and only the counters are kept.
func NewBatchTracker(total int, quiet bool) *BatchTracker {
	t := &BatchTracker{
		quiet:     quiet,
		startTime: time.Now(),
	}

	if !quiet && total > 0 {
		tmpl := `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{rtime . "ETA %s"}}`
		bar := pb.ProgressBarTemplate(tmpl).Start(total)
		bar.Set("prefix", "Videos: ")
		t.bar = bar
	}

	return t
}

// Increment advances the bar by one finished video
func (t *BatchTracker) Increment() {
	t.done++
	if t.bar != nil {
		t.bar.Increment()
	}
}

// Finish stops the bar and returns the elapsed wall time
func (t *BatchTracker) Finish() time.Duration {
	if t.bar != nil {
		t.bar.Finish()
	}
	return time.Since(t.startTime)
}

// Rate returns finished videos per minute
func (t *BatchTracker) Rate() float64 {
	elapsed := time.Since(t.startTime).Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(t.done) / elapsed
}

// Done returns the number of finished videos
func (t *BatchTracker) Done() int {
	return t.done
}
