package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for download batches.
var (
	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "formsite_downloads_total",
		Help: "Completed download tasks by outcome",
	}, []string{"outcome"})

	downloadRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "formsite_download_retries_total",
		Help: "Total download task retries",
	})

	downloadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "formsite_download_duration_seconds",
		Help:    "Per-file download duration in seconds by outcome",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"outcome"})
)

// errPermanent marks failures that must not be retried: HTTP 403/404 and
// malformed URLs.
var errPermanent = errors.New("permanent download failure")

// Options configures a download batch.
type Options struct {
	// Workers is the fixed pool size; the worker count is the concurrency
	// cap, every worker holds at most one download at a time.
	Workers int

	// Timeout applies per file download attempt.
	Timeout time.Duration

	// MaxAttempts bounds attempts per task for retryable failures.
	MaxAttempts int
}

// DefaultOptions returns a modest default configuration.
func DefaultOptions() Options {
	return Options{
		Workers:     5,
		Timeout:     160 * time.Second,
		MaxAttempts: 3,
	}
}

// Orchestrator runs download batches over a shared HTTP client.
type Orchestrator struct {
	httpClient *http.Client
	opts       Options
	logger     zerolog.Logger
}

// NewOrchestrator creates an orchestrator. A nil httpClient gets a default
// client; per-attempt timeouts come from Options, not the client.
func NewOrchestrator(httpClient *http.Client, opts Options) *Orchestrator {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	return &Orchestrator{
		httpClient: httpClient,
		opts:       opts,
		logger:     log.With().Str("component", "downloader").Logger(),
	}
}

// Run downloads every task and aggregates outcomes. Per-task failures are
// isolated; the batch itself only errors on context cancellation. Workers
// keep draining until no task can still produce a retry: the queue closes
// only once every task has reached a terminal state.
func (o *Orchestrator) Run(ctx context.Context, tasks []Task) (*Report, error) {
	report := newReport()
	if len(tasks) == 0 {
		return report, nil
	}

	// Each task has exactly one live instance, so the buffer can hold the
	// whole worklist and re-enqueues never block.
	queue := make(chan Task, len(tasks))
	var pending sync.WaitGroup
	pending.Add(len(tasks))
	for _, task := range tasks {
		queue <- task
	}
	go func() {
		pending.Wait()
		close(queue)
	}()

	var workers sync.WaitGroup
	for i := 0; i < o.opts.Workers; i++ {
		workers.Add(1)
		go func(workerID int) {
			defer workers.Done()
			o.worker(ctx, workerID, queue, &pending, report)
		}(i)
	}
	workers.Wait()

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("download batch interrupted: %w", err)
	}

	o.logger.Info().
		Int("success", report.Success).
		Int("failed", report.Failed).
		Int("tasks", len(tasks)).
		Msg("Download batch complete")
	return report, nil
}

// worker pulls tasks until the queue closes, re-enqueueing retryable
// failures with an incremented attempt count.
func (o *Orchestrator) worker(ctx context.Context, workerID int, queue chan Task, pending *sync.WaitGroup, report *Report) {
	for task := range queue {
		if ctx.Err() != nil {
			// Drain without downloading so the closer goroutine finishes.
			report.markFail(task.URL, "cancelled")
			pending.Done()
			continue
		}

		start := time.Now()
		err := o.downloadOnce(ctx, task)
		if err == nil {
			downloadsTotal.WithLabelValues("success").Inc()
			downloadDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
			report.markSuccess(task.URL)
			o.logger.Debug().
				Int("worker_id", workerID).
				Str("url", task.URL).
				Str("path", task.Path).
				Msg("Download complete")
			pending.Done()
			continue
		}

		attemptsDone := task.Attempt + 1
		if !errors.Is(err, errPermanent) && attemptsDone < o.opts.MaxAttempts {
			downloadRetriesTotal.Inc()
			o.logger.Warn().
				Err(err).
				Int("worker_id", workerID).
				Str("url", task.URL).
				Int("attempt", attemptsDone).
				Msg("Download failed, re-enqueueing")
			task.Attempt = attemptsDone
			queue <- task
			continue
		}

		downloadsTotal.WithLabelValues("failed").Inc()
		downloadDuration.WithLabelValues("failed").Observe(time.Since(start).Seconds())
		report.markFail(task.URL, err.Error())
		o.logger.Error().
			Err(err).
			Int("worker_id", workerID).
			Str("url", task.URL).
			Int("attempts", attemptsDone).
			Msg("Download permanently failed")
		pending.Done()
	}
}

// downloadOnce performs a single attempt: stream to a temporary path, then
// atomically rename to the destination so a partial file never lands at
// the final name.
func (o *Orchestrator) downloadOnce(ctx context.Context, task Task) error {
	attemptCtx := ctx
	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, task.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: malformed url: %v", errPermanent, err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: HTTP %d", errPermanent, resp.StatusCode)
	default:
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(task.Path), 0o755); err != nil {
		return fmt.Errorf("create target dir: %w", err)
	}

	tmpPath := task.Path + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, task.Path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalize %s: %w", task.Path, err)
	}
	return nil
}
