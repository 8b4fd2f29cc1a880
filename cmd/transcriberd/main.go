package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/youming-ai/umuo-transcriber/internal/audio"
	"github.com/youming-ai/umuo-transcriber/internal/batch"
	"github.com/youming-ai/umuo-transcriber/internal/config"
	"github.com/youming-ai/umuo-transcriber/internal/observability"
	"github.com/youming-ai/umuo-transcriber/internal/resilience"
	"github.com/youming-ai/umuo-transcriber/internal/scheduler"
	"github.com/youming-ai/umuo-transcriber/internal/server"
	"github.com/youming-ai/umuo-transcriber/internal/store"
	"github.com/youming-ai/umuo-transcriber/internal/transcriber"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("provider_url", cfg.ProviderURL).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Transcriber service starting")

	// Wire the pipeline: store, segmenter, provider, client, scheduler
	st := store.NewMemoryStore()
	segmenter := audio.NewSegmenter(cfg.MaxAudioBytes, cfg.MaxChunks)

	provider := transcriber.NewHTTPProvider(cfg.ProviderURL, cfg.ProviderAPIKey, cfg.ProviderModel, cfg.ProviderTimeoutDuration())
	client := transcriber.NewClient(provider, segmenter, &transcriber.ClientConfig{
		MaxAudioBytes:        cfg.MaxAudioBytes,
		MaxTranscribeSeconds: cfg.MaxTranscribeSeconds,
		CacheCapacity:        cfg.CacheCapacity,
		CacheTTL:             time.Duration(cfg.CacheTTLMinutes) * time.Minute,
		Retry: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
		},
		BreakerMaxFailures:  cfg.CircuitBreakerMaxFailures,
		BreakerResetTimeout: time.Duration(cfg.CircuitBreakerResetTimeout) * time.Second,
	})
	defer client.Close()

	sched := scheduler.New(st, client, segmenter, &scheduler.Config{
		MaxConcurrency:        cfg.WorkerPoolSize,
		ChunkSeconds:          cfg.ChunkSeconds,
		OverlapSeconds:        cfg.ChunkOverlapSeconds,
		ChunkThresholdSeconds: cfg.ChunkThresholdSeconds,
		AvgTaskDuration:       time.Duration(cfg.AvgTaskSeconds) * time.Second,
		EventBufferSize:       cfg.EventBufferSize,
		Batch: &batch.Config{
			BatchSize:              cfg.BatchSize,
			MaxRetries:             cfg.BatchMaxRetries,
			RetryDelay:             time.Duration(cfg.BatchRetryDelay) * time.Millisecond,
			MaxConcurrent:          cfg.BatchMaxConcurrent,
			SamplingRate:           1,
			MaxHistorySize:         100,
			MemoryThresholdPercent: cfg.MemoryThresholdPercent,
		},
	})
	defer sched.Close()

	// Create HTTP server
	mux := http.NewServeMux()
	server.New(cfg, st, sched).Register(mux)

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness endpoint
	providerCheck := func(ctx context.Context) (bool, error) {
		// Validates config only; no provider call, to avoid API costs
		if cfg.ProviderAPIKey == "" {
			return false, fmt.Errorf("provider API key not configured")
		}
		return true, nil
	}
	storeCheck := func(ctx context.Context) (bool, error) {
		_, err := st.GetFile(ctx, "readiness-probe")
		if err != nil && err != store.ErrNotFound {
			return false, err
		}
		return true, nil
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"provider": providerCheck,
		"store":    storeCheck,
	}))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/v1/events", cfg.Port)).
			Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
