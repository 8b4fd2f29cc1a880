package config

import (
	"os"
	"testing"
)

func TestLoad(t *testing.T) {
	os.Setenv("PROVIDER_API_KEY", "test-provider-key")
	defer os.Unsetenv("PROVIDER_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ProviderAPIKey != "test-provider-key" {
		t.Errorf("Expected ProviderAPIKey 'test-provider-key', got '%s'", cfg.ProviderAPIKey)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("PROVIDER_API_KEY")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when required keys are missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("PROVIDER_API_KEY", "test-provider-key")
	defer os.Unsetenv("PROVIDER_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}

	if cfg.ProviderModel != "whisper-1" {
		t.Errorf("Expected default ProviderModel 'whisper-1', got '%s'", cfg.ProviderModel)
	}

	if cfg.Language != "en" {
		t.Errorf("Expected default Language 'en', got '%s'", cfg.Language)
	}

	if cfg.ChunkSeconds != 45 {
		t.Errorf("Expected default ChunkSeconds 45, got %v", cfg.ChunkSeconds)
	}

	if cfg.ChunkOverlapSeconds != 5 {
		t.Errorf("Expected default ChunkOverlapSeconds 5, got %v", cfg.ChunkOverlapSeconds)
	}

	if cfg.MaxChunks != 120 {
		t.Errorf("Expected default MaxChunks 120, got %d", cfg.MaxChunks)
	}

	if cfg.WorkerPoolSize != 2 {
		t.Errorf("Expected default WorkerPoolSize 2, got %d", cfg.WorkerPoolSize)
	}

	if cfg.CacheCapacity != 50 {
		t.Errorf("Expected default CacheCapacity 50, got %d", cfg.CacheCapacity)
	}
}

func TestLoad_InvalidOverlap(t *testing.T) {
	os.Setenv("PROVIDER_API_KEY", "test-provider-key")
	os.Setenv("CHUNK_SECONDS", "10")
	os.Setenv("CHUNK_OVERLAP_SECONDS", "10")
	defer os.Unsetenv("PROVIDER_API_KEY")
	defer os.Unsetenv("CHUNK_SECONDS")
	defer os.Unsetenv("CHUNK_OVERLAP_SECONDS")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when overlap >= chunk duration")
	}
}

func TestLoad_ResilienceDefaults(t *testing.T) {
	os.Setenv("PROVIDER_API_KEY", "test-provider-key")
	defer os.Unsetenv("PROVIDER_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.CircuitBreakerMaxFailures != 5 {
		t.Errorf("Expected default CircuitBreakerMaxFailures 5, got %d", cfg.CircuitBreakerMaxFailures)
	}

	if cfg.RetryMaxAttempts != 3 {
		t.Errorf("Expected default RetryMaxAttempts 3, got %d", cfg.RetryMaxAttempts)
	}

	if cfg.RetryInitialBackoff != 100 {
		t.Errorf("Expected default RetryInitialBackoff 100, got %d", cfg.RetryInitialBackoff)
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_KEY", "test-value")
	defer os.Unsetenv("TEST_KEY")

	value := GetEnv("TEST_KEY", "default")
	if value != "test-value" {
		t.Errorf("Expected 'test-value', got '%s'", value)
	}

	value = GetEnv("NON_EXISTENT_KEY", "default")
	if value != "default" {
		t.Errorf("Expected 'default', got '%s'", value)
	}
}
