package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the transcription service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Transcription provider configuration
	ProviderURL     string  `envconfig:"PROVIDER_URL" default:"https://api.openai.com/v1"`
	ProviderAPIKey  string  `envconfig:"PROVIDER_API_KEY" required:"true"`
	ProviderModel   string  `envconfig:"PROVIDER_MODEL" default:"whisper-1"`
	ProviderTimeout int     `envconfig:"PROVIDER_TIMEOUT" default:"120"` // seconds, overall per-call timeout
	Language        string  `envconfig:"LANGUAGE" default:"en"`          // default language hint (en, es, fr, etc.)
	Temperature     float64 `envconfig:"TEMPERATURE" default:"0"`

	// Audio segmentation configuration
	ChunkSeconds          float64 `envconfig:"CHUNK_SECONDS" default:"45"`            // Duration of each transcription chunk
	ChunkOverlapSeconds   float64 `envconfig:"CHUNK_OVERLAP_SECONDS" default:"5"`     // Overlap between adjacent chunks
	ChunkThresholdSeconds float64 `envconfig:"CHUNK_THRESHOLD_SECONDS" default:"60"`  // Files longer than this are chunked
	MaxAudioBytes         int64   `envconfig:"MAX_AUDIO_BYTES" default:"104857600"`   // Hard ceiling on decodable input (100MB)
	MaxChunks             int     `envconfig:"MAX_CHUNKS" default:"120"`              // Safety cap on chunks per file
	MaxTranscribeSeconds  float64 `envconfig:"MAX_TRANSCRIBE_SECONDS" default:"1800"` // Inputs are truncated past this duration

	// Storage configuration
	StorageChunkBytes int64 `envconfig:"STORAGE_CHUNK_BYTES" default:"4194304"` // Blob chunk size for large source files

	// Scheduler configuration
	WorkerPoolSize  int   `envconfig:"WORKER_POOL_SIZE" default:"2"`         // Concurrent tasks across all files
	AvgTaskSeconds  int   `envconfig:"AVG_TASK_SECONDS" default:"30"`        // Empirical constant for wait estimates
	EventBufferSize int   `envconfig:"EVENT_BUFFER_SIZE" default:"64"`       // Per-subscriber event channel depth
	MaxUploadBytes  int64 `envconfig:"MAX_UPLOAD_BYTES" default:"209715200"` // HTTP upload limit

	// Batch execution configuration
	BatchSize              int     `envconfig:"BATCH_SIZE" default:"4"`
	BatchMaxRetries        int     `envconfig:"BATCH_MAX_RETRIES" default:"3"`
	BatchRetryDelay        int     `envconfig:"BATCH_RETRY_DELAY" default:"500"` // milliseconds
	BatchMaxConcurrent     int     `envconfig:"BATCH_MAX_CONCURRENT" default:"2"`
	MemoryThresholdPercent float64 `envconfig:"MEMORY_THRESHOLD_PERCENT" default:"90"` // Abort batch attempts above this usage

	// Result cache configuration
	CacheCapacity   int `envconfig:"CACHE_CAPACITY" default:"50"`
	CacheTTLMinutes int `envconfig:"CACHE_TTL_MINUTES" default:"30"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum provider retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints that envconfig tags cannot express
func (c *Config) Validate() error {
	if c.ProviderAPIKey == "" {
		return fmt.Errorf("PROVIDER_API_KEY is required")
	}
	if c.ChunkSeconds <= 0 {
		return fmt.Errorf("CHUNK_SECONDS must be positive, got %v", c.ChunkSeconds)
	}
	if c.ChunkOverlapSeconds < 0 || c.ChunkOverlapSeconds >= c.ChunkSeconds {
		return fmt.Errorf("CHUNK_OVERLAP_SECONDS must be in [0, CHUNK_SECONDS), got %v", c.ChunkOverlapSeconds)
	}
	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("WORKER_POOL_SIZE must be at least 1, got %d", c.WorkerPoolSize)
	}
	if c.MaxChunks < 1 {
		return fmt.Errorf("MAX_CHUNKS must be at least 1, got %d", c.MaxChunks)
	}
	return nil
}

// ProviderTimeoutDuration returns the overall provider call timeout
func (c *Config) ProviderTimeoutDuration() time.Duration {
	return time.Duration(c.ProviderTimeout) * time.Second
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
