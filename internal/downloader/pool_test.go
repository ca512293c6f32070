package downloader

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OEngineer/fetscraper/pkg/download"
	"github.com/OEngineer/fetscraper/pkg/errors"
	"github.com/OEngineer/fetscraper/pkg/logger"
	"github.com/OEngineer/fetscraper/pkg/media"
)

// mockFetcher counts downloads and fails the IDs it is told to
type mockFetcher struct {
	mu      sync.Mutex
	calls   int32
	delay   time.Duration
	failIDs map[string]bool
	seen    map[string]int
}

func newMockFetcher(failIDs ...string) *mockFetcher {
	f := &mockFetcher{failIDs: make(map[string]bool), seen: make(map[string]int)}
	for _, id := range failIDs {
		f.failIDs[id] = true
	}
	return f
}

func (f *mockFetcher) DownloadOne(ctx context.Context, rec media.Record) (download.Outcome, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return download.OutcomeFailed, ctx.Err()
		}
	}

	f.mu.Lock()
	f.seen[rec.ID]++
	f.mu.Unlock()

	if f.failIDs[rec.ID] {
		return download.OutcomeFailed, errors.Download("mock failure for %s", rec.ID)
	}
	return download.OutcomeSuccess, nil
}

func records(n int) []media.Record {
	recs := make([]media.Record, n)
	for i := range recs {
		recs[i] = media.Record{ID: strconv.Itoa(i + 1), Title: "clip", Uploader: "u"}
	}
	return recs
}

func TestRunProcessesAllRecords(t *testing.T) {
	fetcher := newMockFetcher()

	stats := Run(context.Background(), 3, fetcher, records(10), logger.GetLogger())

	assert.Equal(t, download.Stats{Total: 10, Success: 10}, stats)
	assert.Equal(t, int32(10), atomic.LoadInt32(&fetcher.calls))
}

func TestRunCountsFailuresWithoutAborting(t *testing.T) {
	fetcher := newMockFetcher("3", "7")

	stats := Run(context.Background(), 2, fetcher, records(10), logger.GetLogger())

	assert.Equal(t, download.Stats{Total: 10, Success: 8, Failed: 2}, stats)
}

func TestRunSingleWorkerIsSequential(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.delay = 5 * time.Millisecond

	start := time.Now()
	stats := Run(context.Background(), 1, fetcher, records(4), logger.GetLogger())

	assert.Equal(t, 4, stats.Success)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestRunEachRecordFetchedOnce(t *testing.T) {
	fetcher := newMockFetcher()

	Run(context.Background(), 4, fetcher, records(20), logger.GetLogger())

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	require.Len(t, fetcher.seen, 20)
	for id, count := range fetcher.seen {
		assert.Equal(t, 1, count, "record %s fetched more than once", id)
	}
}

func TestRunStopsSubmittingOnCancel(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.delay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(15 * time.Millisecond)
		cancel()
	}()

	stats := Run(ctx, 1, fetcher, records(50), logger.GetLogger())

	assert.Less(t, stats.Success, 50, "cancellation cuts the batch short")
	assert.Equal(t, 50, stats.Total)
}

func TestRunDuplicateIDsSkipOrDedupe(t *testing.T) {
	fetcher := newMockFetcher()
	recs := append(records(3), media.Record{ID: "2", Title: "dup", Uploader: "u"})

	stats := Run(context.Background(), 2, fetcher, recs, logger.GetLogger())

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 0, stats.Failed)
	// The duplicate either lands after the first finished (client-level
	// dedupe is the ledger's job) or is skipped while in flight
	assert.Equal(t, 4, stats.Success+stats.Skipped)
}
