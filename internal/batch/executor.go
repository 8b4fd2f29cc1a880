package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/youming-ai/umuo-transcriber/internal/observability"
	"github.com/youming-ai/umuo-transcriber/internal/resilience"
)

// maxRetryBackoff caps the exponential backoff between batch attempts.
const maxRetryBackoff = 30 * time.Second

// Status classifies progress events emitted during a batch run.
type Status string

const (
	StatusStarted    Status = "started"
	StatusProcessing Status = "processing"
	StatusRetrying   Status = "retrying"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Progress is reported after every completed batch group.
type Progress struct {
	Processed    int
	Total        int
	Percentage   float64
	CurrentBatch int
	TotalBatches int
	Status       Status
}

// ProgressFunc receives progress events. Invocations are serialized.
type ProgressFunc func(Progress)

// Performance captures timing of one Process call.
type Performance struct {
	Duration   time.Duration
	RetryCount int
}

// Result aggregates one Process call. A failed batch contributes its error
// but does not discard sibling batches' results.
type Result[R any] struct {
	Success     bool
	Results     []R
	Errors      []error
	Performance Performance
}

// Worker processes one batch of items and returns one result per item.
type Worker[T, R any] func(ctx context.Context, items []T) ([]R, error)

// BatchError records a batch that exhausted its retries.
type BatchError struct {
	Batch    int
	Attempts int
	Err      error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d failed after %d attempts: %v", e.Batch, e.Attempts, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// ErrMemoryPressure marks an attempt skipped because memory usage crossed
// the configured threshold.
type ErrMemoryPressure struct {
	UsedPercent float64
	Threshold   float64
}

func (e *ErrMemoryPressure) Error() string {
	return fmt.Sprintf("memory usage %.1f%% exceeds threshold %.1f%%", e.UsedPercent, e.Threshold)
}

// MemoryUsageFunc reports system memory usage percent. Injectable for tests.
type MemoryUsageFunc func() (float64, error)

func systemMemoryUsage() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

// Executor partitions item lists into fixed-size batches and runs them with
// bounded concurrency, sequential per-batch retries, and memory-pressure
// checks before every attempt.
type Executor[T, R any] struct {
	cfg         *Config
	onProgress  ProgressFunc
	memUsage    MemoryUsageFunc
	isRetryable func(error) bool
	logger      zerolog.Logger

	emitMu        sync.Mutex
	mu            sync.Mutex
	history       []time.Duration
	sampleCounter int
}

// Option configures an Executor.
type Option[T, R any] func(*Executor[T, R])

// WithProgress registers a progress callback.
func WithProgress[T, R any](fn ProgressFunc) Option[T, R] {
	return func(e *Executor[T, R]) {
		e.onProgress = fn
	}
}

// WithMemoryUsage overrides the system memory probe.
func WithMemoryUsage[T, R any](fn MemoryUsageFunc) Option[T, R] {
	return func(e *Executor[T, R]) {
		e.memUsage = fn
	}
}

// WithRetryable installs a predicate consulted after every failed attempt.
// A false return stops retrying that batch immediately; without the
// predicate every error is retried.
func WithRetryable[T, R any](fn func(error) bool) Option[T, R] {
	return func(e *Executor[T, R]) {
		e.isRetryable = fn
	}
}

// NewExecutor validates cfg up front and builds an executor. Config
// violations are reported here, never at Process time.
func NewExecutor[T, R any](cfg *Config, opts ...Option[T, R]) (*Executor[T, R], error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Executor[T, R]{
		cfg:      cfg,
		memUsage: systemMemoryUsage,
		logger:   observability.WithComponent("batch"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Process partitions items in original order and runs batches concurrently.
// Results map back positionally: batch order and within-batch order are
// preserved. Empty input returns an immediate successful empty result.
func (e *Executor[T, R]) Process(ctx context.Context, items []T, worker Worker[T, R]) *Result[R] {
	start := time.Now()

	if len(items) == 0 {
		return &Result[R]{Success: true, Performance: Performance{Duration: time.Since(start)}}
	}

	batches := partition(items, e.cfg.BatchSize)
	totalBatches := len(batches)

	e.emit(Progress{Total: len(items), TotalBatches: totalBatches, Status: StatusStarted})

	type batchOutcome struct {
		results []R
		err     *BatchError
	}

	outcomes := make([]batchOutcome, totalBatches)
	sem := make(chan struct{}, e.cfg.MaxConcurrent)
	var wg sync.WaitGroup

	var progressMu sync.Mutex
	processed := 0
	completedBatches := 0
	totalRetries := 0

	for i, b := range batches {
		wg.Add(1)
		go func(idx int, batch []T) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			batchStart := time.Now()
			results, retries, err := e.runBatch(ctx, idx, batch, worker)
			batchDuration := time.Since(batchStart)

			progressMu.Lock()
			processed += len(batch)
			completedBatches++
			totalRetries += retries
			status := StatusProcessing
			if err != nil {
				status = StatusFailed
			}
			e.recordDuration(batchDuration)
			e.emit(Progress{
				Processed:    processed,
				Total:        len(items),
				Percentage:   float64(processed) / float64(len(items)) * 100,
				CurrentBatch: completedBatches,
				TotalBatches: totalBatches,
				Status:       status,
			})
			progressMu.Unlock()

			if err != nil {
				outcomes[idx] = batchOutcome{err: &BatchError{Batch: idx, Attempts: retries + 1, Err: err}}
				return
			}
			outcomes[idx] = batchOutcome{results: results}
		}(i, b)
	}
	wg.Wait()

	res := &Result[R]{Success: true}
	for _, o := range outcomes {
		if o.err != nil {
			res.Success = false
			res.Errors = append(res.Errors, o.err)
			continue
		}
		res.Results = append(res.Results, o.results...)
	}
	res.Performance = Performance{Duration: time.Since(start), RetryCount: totalRetries}

	final := StatusCompleted
	if !res.Success {
		final = StatusFailed
	}
	e.emit(Progress{
		Processed:    processed,
		Total:        len(items),
		Percentage:   100,
		CurrentBatch: totalBatches,
		TotalBatches: totalBatches,
		Status:       final,
	})

	return res
}

// runBatch executes one batch with sequential retries and exponential
// backoff. The memory check runs before every attempt; over threshold the
// attempt fails fast without invoking the worker.
func (e *Executor[T, R]) runBatch(ctx context.Context, idx int, batch []T, worker Worker[T, R]) ([]R, int, error) {
	var lastErr error
	retries := 0

	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return nil, retries, lastErr
		}

		if attempt > 0 {
			retries++
			observability.RecordBatchRetry()
			e.emit(Progress{Status: StatusRetrying, CurrentBatch: idx + 1})

			delay := resilience.CalculateBackoff(attempt-1, e.cfg.RetryDelay, maxRetryBackoff, 2.0)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, retries, lastErr
			case <-timer.C:
			}
		}

		if used, err := e.memUsage(); err == nil && used > e.cfg.MemoryThresholdPercent {
			lastErr = &ErrMemoryPressure{UsedPercent: used, Threshold: e.cfg.MemoryThresholdPercent}
			e.logger.Warn().Int("batch", idx).Float64("used_percent", used).Msg("skipping attempt under memory pressure")
			continue
		}

		results, err := worker(ctx, batch)
		if err == nil {
			if len(results) != len(batch) {
				return nil, retries, fmt.Errorf("worker returned %d results for %d items", len(results), len(batch))
			}
			return results, retries, nil
		}
		lastErr = err
		if e.isRetryable != nil && !e.isRetryable(err) {
			return nil, retries, lastErr
		}
	}

	return nil, retries, lastErr
}

func (e *Executor[T, R]) emit(p Progress) {
	if e.onProgress == nil {
		return
	}
	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	e.onProgress(p)
}

// recordDuration keeps a bounded, sampled history of batch timings.
func (e *Executor[T, R]) recordDuration(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sampleCounter++
	if e.cfg.SamplingRate > 1 && e.sampleCounter%e.cfg.SamplingRate != 0 {
		return
	}
	e.history = append(e.history, d)
	if len(e.history) > e.cfg.MaxHistorySize {
		e.history = e.history[len(e.history)-e.cfg.MaxHistorySize:]
	}
}

// History returns recorded batch timings, oldest first.
func (e *Executor[T, R]) History() []time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]time.Duration, len(e.history))
	copy(out, e.history)
	return out
}

// partition splits items into fixed-size groups preserving order.
func partition[T any](items []T, size int) [][]T {
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
