package batch

import (
	"fmt"
	"time"
)

// Config bounds one executor's behavior. All fields are validated up front
// by Validate, never at Process time.
type Config struct {
	BatchSize              int           // Items per batch (1..1000)
	MaxRetries             int           // Retries per batch after the first attempt (0..10)
	RetryDelay             time.Duration // Base delay for exponential backoff
	MaxConcurrent          int           // Concurrent batches (1..10)
	SamplingRate           int           // Record every Nth batch timing (1 = all)
	MaxHistorySize         int           // Bound on recorded timings
	MemoryThresholdPercent float64       // Attempts fail fast above this system memory usage
}

// DefaultConfig returns a general-purpose configuration.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:              10,
		MaxRetries:             3,
		RetryDelay:             500 * time.Millisecond,
		MaxConcurrent:          3,
		SamplingRate:           1,
		MaxHistorySize:         100,
		MemoryThresholdPercent: 90,
	}
}

// StorageConfig returns the database-oriented preset: small batches at
// concurrency 1 to respect the serial-write constraints of the storage
// collaborator.
func StorageConfig() *Config {
	return &Config{
		BatchSize:              25,
		MaxRetries:             2,
		RetryDelay:             200 * time.Millisecond,
		MaxConcurrent:          1,
		SamplingRate:           1,
		MaxHistorySize:         50,
		MemoryThresholdPercent: 95,
	}
}

// AdaptiveConfig returns a preset whose batch size and concurrency scale
// with input cardinality.
func AdaptiveConfig(itemCount int) *Config {
	cfg := DefaultConfig()
	switch {
	case itemCount <= 10:
		cfg.BatchSize = 2
		cfg.MaxConcurrent = 1
	case itemCount <= 100:
		cfg.BatchSize = 10
		cfg.MaxConcurrent = 2
	case itemCount <= 1000:
		cfg.BatchSize = 50
		cfg.MaxConcurrent = 4
	default:
		cfg.BatchSize = 100
		cfg.MaxConcurrent = 8
	}
	return cfg
}

// Validate reports the first configuration bound violation.
func (c *Config) Validate() error {
	if c.BatchSize < 1 || c.BatchSize > 1000 {
		return fmt.Errorf("batch size must be in [1, 1000], got %d", c.BatchSize)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("max retries must be in [0, 10], got %d", c.MaxRetries)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay must be non-negative, got %v", c.RetryDelay)
	}
	if c.MaxConcurrent < 1 || c.MaxConcurrent > 10 {
		return fmt.Errorf("max concurrent batches must be in [1, 10], got %d", c.MaxConcurrent)
	}
	if c.SamplingRate < 1 {
		return fmt.Errorf("sampling rate must be at least 1, got %d", c.SamplingRate)
	}
	if c.MaxHistorySize < 1 {
		return fmt.Errorf("max history size must be at least 1, got %d", c.MaxHistorySize)
	}
	if c.MemoryThresholdPercent <= 0 || c.MemoryThresholdPercent > 100 {
		return fmt.Errorf("memory threshold must be in (0, 100], got %v", c.MemoryThresholdPercent)
	}
	return nil
}
