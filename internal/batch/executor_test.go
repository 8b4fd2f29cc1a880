package batch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"
)

func fastConfig() *Config {
	return &Config{
		BatchSize:              3,
		MaxRetries:             2,
		RetryDelay:             time.Millisecond,
		MaxConcurrent:          2,
		SamplingRate:           1,
		MaxHistorySize:         10,
		MemoryThresholdPercent: 99,
	}
}

func noMemPressure() (float64, error) { return 10, nil }

func TestProcess_AllSucceed(t *testing.T) {
	e, err := NewExecutor[int, string](fastConfig(), WithMemoryUsage[int, string](noMemPressure))
	if err != nil {
		t.Fatalf("NewExecutor failed: %v", err)
	}

	items := []int{1, 2, 3, 4, 5, 6, 7}
	res := e.Process(context.Background(), items, func(ctx context.Context, batch []int) ([]string, error) {
		out := make([]string, len(batch))
		for i, v := range batch {
			out[i] = strconv.Itoa(v)
		}
		return out, nil
	})

	if !res.Success {
		t.Error("Expected success")
	}
	if len(res.Results) != len(items) {
		t.Fatalf("Expected %d results, got %d", len(items), len(res.Results))
	}
	// Positional mapping preserved across batches
	for i, v := range items {
		if res.Results[i] != strconv.Itoa(v) {
			t.Errorf("result %d: expected %q, got %q", i, strconv.Itoa(v), res.Results[i])
		}
	}
	if len(res.Errors) != 0 {
		t.Errorf("Expected no errors, got %v", res.Errors)
	}
}

func TestProcess_EmptyInput(t *testing.T) {
	e, _ := NewExecutor[int, int](fastConfig(), WithMemoryUsage[int, int](noMemPressure))

	invoked := false
	res := e.Process(context.Background(), nil, func(ctx context.Context, batch []int) ([]int, error) {
		invoked = true
		return nil, nil
	})

	if !res.Success {
		t.Error("Expected success for empty input")
	}
	if invoked {
		t.Error("Worker must not be invoked for empty input")
	}
	if len(res.Results) != 0 {
		t.Errorf("Expected empty results, got %d", len(res.Results))
	}
}

func TestProcess_PartialFailure(t *testing.T) {
	// Batch containing item 4 (second batch of size 3) always fails;
	// siblings keep their results.
	e, _ := NewExecutor[int, int](fastConfig(), WithMemoryUsage[int, int](noMemPressure))

	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9}
	res := e.Process(context.Background(), items, func(ctx context.Context, batch []int) ([]int, error) {
		for _, v := range batch {
			if v == 4 {
				return nil, errors.New("poison item")
			}
		}
		return batch, nil
	})

	if res.Success {
		t.Error("Expected success=false")
	}
	if len(res.Results) != 6 {
		t.Errorf("Expected 6 results (9 items - 3 in failed batch), got %d", len(res.Results))
	}
	if len(res.Errors) != 1 {
		t.Fatalf("Expected exactly 1 error after retries exhausted, got %d", len(res.Errors))
	}

	var batchErr *BatchError
	if !errors.As(res.Errors[0], &batchErr) {
		t.Fatalf("Expected *BatchError, got %T", res.Errors[0])
	}
	if batchErr.Batch != 1 {
		t.Errorf("Expected batch index 1, got %d", batchErr.Batch)
	}
	if batchErr.Attempts != 3 {
		t.Errorf("Expected 3 attempts (1 + 2 retries), got %d", batchErr.Attempts)
	}
}

func TestProcess_RetryThenSucceed(t *testing.T) {
	e, _ := NewExecutor[int, int](fastConfig(), WithMemoryUsage[int, int](noMemPressure))

	var mu sync.Mutex
	attempts := 0
	res := e.Process(context.Background(), []int{1, 2}, func(ctx context.Context, batch []int) ([]int, error) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 3 {
			return nil, errors.New("transient")
		}
		return batch, nil
	})

	if !res.Success {
		t.Errorf("Expected success after retries, got errors %v", res.Errors)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if res.Performance.RetryCount != 2 {
		t.Errorf("Expected retry count 2, got %d", res.Performance.RetryCount)
	}
}

func TestProcess_PermanentErrorStopsRetries(t *testing.T) {
	permanent := errors.New("bad credentials")
	e, err := NewExecutor[int, int](fastConfig(),
		WithMemoryUsage[int, int](noMemPressure),
		WithRetryable[int, int](func(err error) bool { return !errors.Is(err, permanent) }),
	)
	if err != nil {
		t.Fatalf("NewExecutor failed: %v", err)
	}

	invocations := 0
	res := e.Process(context.Background(), []int{1, 2}, func(ctx context.Context, batch []int) ([]int, error) {
		invocations++
		return nil, permanent
	})

	if res.Success {
		t.Error("Expected failure")
	}
	if invocations != 1 {
		t.Errorf("Permanent error must not be retried; worker ran %d times, want 1", invocations)
	}

	var batchErr *BatchError
	if !errors.As(res.Errors[0], &batchErr) {
		t.Fatalf("Expected *BatchError, got %T", res.Errors[0])
	}
	if batchErr.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1 (failed on first occurrence)", batchErr.Attempts)
	}
}

func TestProcess_RetryableErrorStillRetried(t *testing.T) {
	transient := errors.New("rate limited")
	e, err := NewExecutor[int, int](fastConfig(),
		WithMemoryUsage[int, int](noMemPressure),
		WithRetryable[int, int](func(err error) bool { return errors.Is(err, transient) }),
	)
	if err != nil {
		t.Fatalf("NewExecutor failed: %v", err)
	}

	invocations := 0
	res := e.Process(context.Background(), []int{1}, func(ctx context.Context, batch []int) ([]int, error) {
		invocations++
		if invocations < 3 {
			return nil, transient
		}
		return []int{1}, nil
	})

	if !res.Success {
		t.Fatalf("Expected success after transient retries, got %v", res.Errors)
	}
	if invocations != 3 {
		t.Errorf("Expected 3 invocations, got %d", invocations)
	}
}

func TestProcess_MemoryPressureFailsFast(t *testing.T) {
	e, _ := NewExecutor[int, int](fastConfig(), WithMemoryUsage[int, int](func() (float64, error) {
		return 99.5, nil
	}))

	invoked := false
	res := e.Process(context.Background(), []int{1}, func(ctx context.Context, batch []int) ([]int, error) {
		invoked = true
		return batch, nil
	})

	if res.Success {
		t.Error("Expected failure under memory pressure")
	}
	if invoked {
		t.Error("Worker must not be invoked under memory pressure")
	}

	var memErr *ErrMemoryPressure
	if len(res.Errors) != 1 || !errors.As(res.Errors[0], &memErr) {
		t.Fatalf("Expected ErrMemoryPressure, got %v", res.Errors)
	}
}

func TestProcess_ProgressEvents(t *testing.T) {
	var mu sync.Mutex
	var statuses []Status

	cfg := fastConfig()
	cfg.MaxConcurrent = 1
	e, _ := NewExecutor[int, int](cfg,
		WithMemoryUsage[int, int](noMemPressure),
		WithProgress[int, int](func(p Progress) {
			mu.Lock()
			statuses = append(statuses, p.Status)
			mu.Unlock()
		}))

	res := e.Process(context.Background(), []int{1, 2, 3, 4, 5, 6}, func(ctx context.Context, batch []int) ([]int, error) {
		return batch, nil
	})
	if !res.Success {
		t.Fatalf("Expected success, got %v", res.Errors)
	}

	if len(statuses) < 4 {
		t.Fatalf("Expected at least started + 2 processing + completed events, got %v", statuses)
	}
	if statuses[0] != StatusStarted {
		t.Errorf("Expected first event 'started', got %q", statuses[0])
	}
	if statuses[len(statuses)-1] != StatusCompleted {
		t.Errorf("Expected last event 'completed', got %q", statuses[len(statuses)-1])
	}
}

func TestProcess_ContextCancellation(t *testing.T) {
	e, _ := NewExecutor[int, int](fastConfig(), WithMemoryUsage[int, int](noMemPressure))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := e.Process(ctx, []int{1, 2, 3}, func(ctx context.Context, batch []int) ([]int, error) {
		return batch, nil
	})

	if res.Success {
		t.Error("Expected failure for cancelled context")
	}
}

func TestProcess_ResultCountMismatch(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxRetries = 0
	e, _ := NewExecutor[int, int](cfg, WithMemoryUsage[int, int](noMemPressure))

	res := e.Process(context.Background(), []int{1, 2}, func(ctx context.Context, batch []int) ([]int, error) {
		return []int{1}, nil
	})
	if res.Success {
		t.Error("Expected failure when worker returns wrong result count")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid default", func(c *Config) {}, false},
		{"batch size zero", func(c *Config) { c.BatchSize = 0 }, true},
		{"batch size over cap", func(c *Config) { c.BatchSize = 1001 }, true},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, true},
		{"retries over cap", func(c *Config) { c.MaxRetries = 11 }, true},
		{"concurrency zero", func(c *Config) { c.MaxConcurrent = 0 }, true},
		{"concurrency over cap", func(c *Config) { c.MaxConcurrent = 11 }, true},
		{"zero sampling", func(c *Config) { c.SamplingRate = 0 }, true},
		{"zero history", func(c *Config) { c.MaxHistorySize = 0 }, true},
		{"bad memory threshold", func(c *Config) { c.MemoryThresholdPercent = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewExecutor_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 0
	if _, err := NewExecutor[int, int](cfg); err == nil {
		t.Error("Expected config validation error from NewExecutor")
	}
}

func TestStorageConfig_SerialWrites(t *testing.T) {
	cfg := StorageConfig()
	if cfg.MaxConcurrent != 1 {
		t.Errorf("Storage preset must serialize batches, got concurrency %d", cfg.MaxConcurrent)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Storage preset invalid: %v", err)
	}
}

func TestAdaptiveConfig_Scales(t *testing.T) {
	small := AdaptiveConfig(5)
	large := AdaptiveConfig(5000)

	if small.BatchSize >= large.BatchSize {
		t.Errorf("Expected batch size to scale with cardinality: %d vs %d", small.BatchSize, large.BatchSize)
	}
	if small.MaxConcurrent >= large.MaxConcurrent {
		t.Errorf("Expected concurrency to scale with cardinality: %d vs %d", small.MaxConcurrent, large.MaxConcurrent)
	}
	for _, n := range []int{0, 1, 10, 100, 1000, 100000} {
		if err := AdaptiveConfig(n).Validate(); err != nil {
			t.Errorf("AdaptiveConfig(%d) invalid: %v", n, err)
		}
	}
}

func TestPartition(t *testing.T) {
	items := make([]int, 10)
	for i := range items {
		items[i] = i
	}

	batches := partition(items, 3)
	if len(batches) != 4 {
		t.Fatalf("Expected 4 batches, got %d", len(batches))
	}
	sizes := []int{3, 3, 3, 1}
	idx := 0
	for bi, b := range batches {
		if len(b) != sizes[bi] {
			t.Errorf("batch %d: expected size %d, got %d", bi, sizes[bi], len(b))
		}
		for _, v := range b {
			if v != idx {
				t.Errorf("Expected item %d in order, got %d", idx, v)
			}
			idx++
		}
	}
}

func TestHistory_Bounded(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxHistorySize = 2
	cfg.BatchSize = 1
	cfg.MaxConcurrent = 1
	e, _ := NewExecutor[int, int](cfg, WithMemoryUsage[int, int](noMemPressure))

	items := []int{1, 2, 3, 4, 5}
	res := e.Process(context.Background(), items, func(ctx context.Context, batch []int) ([]int, error) {
		return batch, nil
	})
	if !res.Success {
		t.Fatalf("Expected success, got %v", res.Errors)
	}

	if h := e.History(); len(h) > 2 {
		t.Errorf("Expected history bounded at 2, got %d", len(h))
	}
}

func TestHistory_RecordsPerBatchDuration(t *testing.T) {
	cfg := fastConfig()
	cfg.BatchSize = 1
	cfg.MaxConcurrent = 1
	e, _ := NewExecutor[int, int](cfg, WithMemoryUsage[int, int](noMemPressure))

	const perBatch = 30 * time.Millisecond
	res := e.Process(context.Background(), []int{1, 2, 3}, func(ctx context.Context, batch []int) ([]int, error) {
		time.Sleep(perBatch)
		return batch, nil
	})
	if !res.Success {
		t.Fatalf("Expected success, got %v", res.Errors)
	}

	h := e.History()
	if len(h) != 3 {
		t.Fatalf("Expected 3 recorded batches, got %d", len(h))
	}
	// each entry times its own batch, not the elapsed run: the last
	// serial batch must not accumulate its predecessors' time
	for i, d := range h {
		if d < perBatch {
			t.Errorf("entry %d = %v, want at least %v", i, d, perBatch)
		}
		if d >= res.Performance.Duration {
			t.Errorf("entry %d = %v, not below the whole run's %v", i, d, res.Performance.Duration)
		}
	}
}

func ExampleExecutor_Process() {
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	e, _ := NewExecutor[int, int](cfg, WithMemoryUsage[int, int](func() (float64, error) { return 0, nil }))

	res := e.Process(context.Background(), []int{1, 2, 3}, func(ctx context.Context, batch []int) ([]int, error) {
		out := make([]int, len(batch))
		for i, v := range batch {
			out[i] = v * 10
		}
		return out, nil
	})
	fmt.Println(res.Success, res.Results)
	// Output: true [10 20 30]
}
