package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Params are the transcription options passed through to the provider.
type Params struct {
	Filename    string
	Language    string
	Model       string
	Prompt      string
	Temperature float64
}

// Word is a single word with provider timing.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// RawSegment is a provider-native timestamped segment.
type RawSegment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
	Words      []Word  `json:"words,omitempty"`
}

// Response is the provider's answer for one audio blob. Segments and Words
// are both optional; callers fall back per the reconstruction policy.
type Response struct {
	Text     string       `json:"text"`
	Language string       `json:"language,omitempty"`
	Duration float64      `json:"duration,omitempty"`
	Segments []RawSegment `json:"segments,omitempty"`
	Words    []Word       `json:"words,omitempty"`
}

// Provider is the sole network dependency of the transcription client:
// raw audio bytes plus params in, text with optional timings out.
type Provider interface {
	Transcribe(ctx context.Context, audio []byte, p Params) (*Response, error)
}

// ProviderError carries the HTTP status and body of a failed provider call
// so classification can map it onto the error taxonomy.
type ProviderError struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.Status, e.Body)
}

// HTTPProvider calls a whisper-style speech-to-text HTTP API using a
// multipart upload. The overall call carries a fixed timeout.
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewHTTPProvider creates a provider client. baseURL may point at any
// OpenAI-compatible endpoint, including local servers.
func NewHTTPProvider(baseURL, apiKey, model string, timeout time.Duration) *HTTPProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "whisper-1"
	}
	return &HTTPProvider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Transcribe uploads the audio blob and decodes the verbose response.
func (p *HTTPProvider) Transcribe(ctx context.Context, audio []byte, params Params) (*Response, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	filename := params.Filename
	if filename == "" {
		filename = "audio.wav"
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, fmt.Errorf("writing audio payload: %w", err)
	}

	model := params.Model
	if model == "" {
		model = p.model
	}
	_ = mw.WriteField("model", model)
	_ = mw.WriteField("response_format", "verbose_json")
	_ = mw.WriteField("timestamp_granularities[]", "segment")
	if params.Language != "" {
		_ = mw.WriteField("language", params.Language)
	}
	if params.Prompt != "" {
		_ = mw.WriteField("prompt", params.Prompt)
	}
	if params.Temperature != 0 {
		_ = mw.WriteField("temperature", strconv.FormatFloat(params.Temperature, 'f', -1, 64))
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	endpoint := p.baseURL + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ProviderError{
			Status:     resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding provider response: %w", err)
	}
	return &out, nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
