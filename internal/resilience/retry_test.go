package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_Success(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func(ctx context.Context) error {
		attempts++
		return nil
	}, DefaultRetryConfig(), nil)

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestRetry_FailureThenSuccess(t *testing.T) {
	config := &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        100 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}

	attempts := 0
	err := Retry(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, config, nil)

	if err != nil {
		t.Errorf("Expected no error after retries, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_MaxAttempts(t *testing.T) {
	config := &RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        100 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}

	attempts := 0
	err := Retry(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("persistent error")
	}, config, nil)

	if err == nil {
		t.Error("Expected error after max attempts")
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestRetry_NonRetryableError(t *testing.T) {
	config := &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        100 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}

	attempts := 0
	isRetryable := func(err error) bool {
		return false
	}

	err := Retry(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("non-retryable error")
	}, config, isRetryable)

	if err == nil {
		t.Error("Expected error")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for non-retryable error, got %d", attempts)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	config := &RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        1 * time.Second,
		BackoffMultiplier: 2.0,
	}

	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := Retry(ctx, func(ctx context.Context) error {
		attempts++
		cancel() // cancel during first attempt; backoff sleep must abort
		return errors.New("failing")
	}, config, nil)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt after cancellation, got %d", attempts)
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		attempt        int
		initialBackoff time.Duration
		maxBackoff     time.Duration
		multiplier     float64
		expected       time.Duration
	}{
		{0, 100 * time.Millisecond, 1 * time.Second, 2.0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond, 1 * time.Second, 2.0, 200 * time.Millisecond},
		{2, 100 * time.Millisecond, 1 * time.Second, 2.0, 400 * time.Millisecond},
		{5, 100 * time.Millisecond, 1 * time.Second, 2.0, 1 * time.Second}, // Capped at max
	}

	for _, tt := range tests {
		backoff := CalculateBackoff(tt.attempt, tt.initialBackoff, tt.maxBackoff, tt.multiplier)
		if backoff != tt.expected {
			t.Errorf("attempt %d: expected backoff %v, got %v", tt.attempt, tt.expected, backoff)
		}
	}
}
