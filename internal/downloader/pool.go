package downloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/OEngineer/fetscraper/pkg/download"
	"github.com/OEngineer/fetscraper/pkg/logger"
	"github.com/OEngineer/fetscraper/pkg/media"
)

// VideoFetcher downloads a single video record
type VideoFetcher interface {
	DownloadOne(ctx context.Context, rec media.Record) (download.Outcome, error)
}

// Result is the outcome of one pool job
type Result struct {
	Record   media.Record
	Outcome  download.Outcome
	Err      error
	Duration time.Duration
}

// Pool runs video downloads across a fixed set of workers. Request
// pacing is the client's concern, so workers share its rate limiter
// transparently; the pool only claims each video ID so two workers
// never fetch the same one.
type Pool struct {
	numWorkers  int
	jobQueue    chan media.Record
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	fetcher     VideoFetcher
	logger      logger.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewPool creates a pool of numWorkers workers feeding from a buffered
// job queue.
func NewPool(ctx context.Context, numWorkers int, fetcher VideoFetcher, log logger.Logger) *Pool {
	ctx, cancel := context.WithCancel(ctx)

	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	return &Pool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan media.Record, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		fetcher:     fetcher,
		logger:      log,
		inFlight:    make(map[string]bool),
	}
}

// Start launches the workers
func (p *Pool) Start() {
	p.logger.InfoWithFields("Starting download workers", map[string]interface{}{
		"num_workers": p.numWorkers,
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop closes the job queue, waits for the workers to drain it, then
// closes the result queue.
func (p *Pool) Stop() {
	close(p.jobQueue)
	p.wg.Wait()
	close(p.resultQueue)
	p.cancel()
}

// Submit queues one record for download
func (p *Pool) Submit(rec media.Record) error {
	select {
	case p.jobQueue <- rec:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the channel download outcomes arrive on
func (p *Pool) Results() <-chan Result {
	return p.resultQueue
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for rec := range p.jobQueue {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		result := p.process(rec, id)

		select {
		case p.resultQueue <- result:
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pool) process(rec media.Record, workerID int) Result {
	start := time.Now()

	if !p.claim(rec.ID) {
		p.logger.DebugWithFields("Video already being fetched by another worker", map[string]interface{}{
			"worker_id": workerID,
			"video_id":  rec.ID,
		})
		return Result{Record: rec, Outcome: download.OutcomeSkipped, Duration: time.Since(start)}
	}
	defer p.release(rec.ID)

	outcome, err := p.fetcher.DownloadOne(p.ctx, rec)
	result := Result{Record: rec, Outcome: outcome, Err: err, Duration: time.Since(start)}

	if err != nil {
		p.logger.ErrorWithFields("Worker failed to download video", map[string]interface{}{
			"worker_id": workerID,
			"video_id":  rec.ID,
			"error":     err.Error(),
			"duration":  result.Duration,
		})
	} else {
		p.logger.DebugWithFields("Worker finished job", map[string]interface{}{
			"worker_id": workerID,
			"video_id":  rec.ID,
			"outcome":   outcome.String(),
			"duration":  result.Duration,
		})
	}

	return result
}

func (p *Pool) claim(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight[id] {
		return false
	}
	p.inFlight[id] = true
	return true
}

func (p *Pool) release(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, id)
}

// Run pushes every record through a pool and aggregates the outcomes.
// Cancelling ctx stops submissions; records never processed are not
// counted in any outcome bucket. Any onResult callbacks are invoked
// from the aggregating goroutine as results arrive.
func Run(ctx context.Context, numWorkers int, fetcher VideoFetcher, recs []media.Record, log logger.Logger, onResult ...func(Result)) download.Stats {
	if log == nil {
		log = logger.GetLogger()
	}

	pool := NewPool(ctx, numWorkers, fetcher, log)
	pool.Start()

	go func() {
		defer pool.Stop()
		for _, rec := range recs {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if err := pool.Submit(rec); err != nil {
				return
			}
		}
	}()

	stats := download.Stats{Total: len(recs)}
	for res := range pool.Results() {
		for _, fn := range onResult {
			fn(res)
		}
		switch res.Outcome {
		case download.OutcomeSuccess:
			stats.Success++
		case download.OutcomeSkipped:
			stats.Skipped++
		case download.OutcomeFailed:
			stats.Failed++
		}
	}
	return stats
}
