package transcriber

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/youming-ai/umuo-transcriber/internal/audio"
	"github.com/youming-ai/umuo-transcriber/internal/observability"
	"github.com/youming-ai/umuo-transcriber/internal/resilience"
)

// File is the audio input to one transcription call. Name, Size and ModTime
// form the file identity half of the cache key.
type File struct {
	Name    string
	Size    int64
	ModTime time.Time
	Data    []byte
}

// Options tune one transcription call.
type Options struct {
	Language    string
	Model       string
	Prompt      string
	Temperature float64
	OnProgress  func(percent float64)
}

// Result is the reconstructed transcription of one audio blob.
type Result struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

// ClientConfig bounds the client's pre-processing and caching behavior.
type ClientConfig struct {
	MaxAudioBytes        int64   // Inputs above this are truncated and re-encoded
	MaxTranscribeSeconds float64 // Maximum duration sent to the provider
	CacheCapacity        int
	CacheTTL             time.Duration
	Retry                *resilience.RetryConfig
	BreakerMaxFailures   int
	BreakerResetTimeout  time.Duration
}

// DefaultClientConfig returns production defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		MaxAudioBytes:        25 * 1024 * 1024,
		MaxTranscribeSeconds: 1800,
		CacheCapacity:        50,
		CacheTTL:             30 * time.Minute,
		Retry:                resilience.DefaultRetryConfig(),
		BreakerMaxFailures:   5,
		BreakerResetTimeout:  30 * time.Second,
	}
}

// Client wraps one provider call with pre-processing, caching, circuit
// breaking and classified retries. Construct explicitly and pass by
// reference; there is no package-level instance.
type Client struct {
	provider  Provider
	cfg       *ClientConfig
	cache     *resultCache
	breaker   *resilience.CircuitBreaker
	segmenter *audio.Segmenter
	logger    zerolog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewClient builds a client. The background cache sweep it starts is owned
// by the client and stops on Close.
func NewClient(provider Provider, segmenter *audio.Segmenter, cfg *ClientConfig) *Client {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}
	c := &Client{
		provider:  provider,
		cfg:       cfg,
		cache:     newResultCache(cfg.CacheCapacity, cfg.CacheTTL),
		breaker:   resilience.NewCircuitBreaker("provider", cfg.BreakerMaxFailures, cfg.BreakerResetTimeout),
		segmenter: segmenter,
		logger:    observability.WithComponent("transcriber"),
		done:      make(chan struct{}),
	}

	go c.sweepLoop()
	return c
}

// Close stops the background cache sweep.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) sweepLoop() {
	interval := c.cfg.CacheTTL
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.cache.sweep()
		}
	}
}

// Transcribe runs the full resilient call: pre-process, cache lookup,
// provider call with classified retries, segment reconstruction, cache
// store. Failures come back as *Error taxonomy members.
func (c *Client) Transcribe(ctx context.Context, file File, opts Options) (*Result, error) {
	if len(file.Data) == 0 {
		return nil, NewError(CodeInvalidFormat, fmt.Errorf("%s: empty audio data", file.Name))
	}

	params := Params{
		Filename:    file.Name,
		Language:    opts.Language,
		Model:       opts.Model,
		Prompt:      opts.Prompt,
		Temperature: opts.Temperature,
	}

	key := cacheKey(file, params)
	if cached, ok := c.cache.Get(key); ok {
		observability.RecordCacheHit()
		c.logger.Debug().Str("file", file.Name).Msg("transcription cache hit")
		c.reportProgress(opts, 100)
		return cached, nil
	}
	observability.RecordCacheMiss()

	payload, err := c.preprocess(file)
	if err != nil {
		return nil, err
	}
	c.reportProgress(opts, 10)

	resp, err := c.callProvider(ctx, payload, params)
	if err != nil {
		classified := Classify(err)
		observability.RecordError(string(classified.Code), "transcriber")
		return nil, classified
	}
	c.reportProgress(opts, 90)

	result := &Result{
		Text:     resp.Text,
		Language: resp.Language,
		Duration: resp.Duration,
		Segments: buildSegments(resp),
	}
	if result.Language == "" {
		result.Language = opts.Language
	}

	c.cache.Put(key, result)
	c.reportProgress(opts, 100)
	return result, nil
}

// preprocess validates decodable input and truncates oversized input to
// the maximum duration, re-encoding it to canonical WAV before the
// network call.
func (c *Client) preprocess(file File) ([]byte, error) {
	// Silent audio would cost a provider call for an empty transcript.
	if samples, _, err := audio.Decode(file.Data); err == nil && audio.CalculateRMS(samples) == 0 {
		return nil, NewError(CodeInvalidFormat, fmt.Errorf("%s: audio contains only silence", file.Name))
	}

	if int64(len(file.Data)) <= c.cfg.MaxAudioBytes {
		if c.cfg.MaxTranscribeSeconds <= 0 {
			return file.Data, nil
		}
		// Non-WAV containers pass through untouched; the provider decodes them.
		dur, err := c.segmenter.Duration(file.Data)
		if err != nil || dur <= c.cfg.MaxTranscribeSeconds {
			return file.Data, nil
		}
	}

	truncated, dur, err := c.segmenter.Truncate(file.Name, file.Data, c.cfg.MaxTranscribeSeconds)
	if err != nil {
		return nil, NewError(CodeInvalidFormat, err)
	}
	c.logger.Warn().
		Str("file", file.Name).
		Float64("kept_seconds", dur).
		Msg("input exceeded limits; truncated before provider call")
	return truncated, nil
}

// callProvider performs the network call behind the circuit breaker, with
// retries gated on the classified error's retryability.
func (c *Client) callProvider(ctx context.Context, payload []byte, params Params) (*Response, error) {
	var resp *Response

	err := resilience.Retry(ctx, func(ctx context.Context) error {
		return c.breaker.Call(func() error {
			start := time.Now()
			r, err := c.provider.Transcribe(ctx, payload, params)
			observability.RecordProviderRequest(err == nil, start)
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
	}, c.cfg.Retry, func(err error) bool {
		return Classify(err).Retryable
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) reportProgress(opts Options, percent float64) {
	if opts.OnProgress != nil {
		opts.OnProgress(percent)
	}
}

// CacheLen reports the number of cached results. Exposed for diagnostics.
func (c *Client) CacheLen() int {
	return c.cache.Len()
}
