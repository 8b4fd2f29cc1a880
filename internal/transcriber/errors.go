package transcriber

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/youming-ai/umuo-transcriber/internal/resilience"
)

// Code identifies one member of the transcription error taxonomy.
type Code string

const (
	CodeAuthentication Code = "authentication"
	CodeRateLimit      Code = "rate_limit"
	CodeTimeout        Code = "timeout"
	CodeFileTooLarge   Code = "file_too_large"
	CodeInvalidFormat  Code = "invalid_format"
	CodeQuotaExceeded  Code = "quota_exceeded"
	CodeUnknown        Code = "unknown"
)

// Error is a classified transcription failure. Hint is the user-facing
// remediation string; Err keeps the original cause for diagnostics.
type Error struct {
	Code       Code
	Retryable  bool
	Hint       string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError attaches a taxonomy code to an error at the throw site.
func NewError(code Code, err error) *Error {
	out := &Error{Code: code, Err: err}
	out.Retryable, out.Hint = codeDefaults(code)
	return out
}

func codeDefaults(code Code) (retryable bool, hint string) {
	switch code {
	case CodeAuthentication:
		return false, "check the provider API credentials"
	case CodeRateLimit:
		return true, "provider rate limit hit; the request will be retried with backoff"
	case CodeTimeout:
		return true, "the provider call timed out; the request will be retried"
	case CodeFileTooLarge:
		return false, "reduce the file size or duration and resubmit"
	case CodeInvalidFormat:
		return false, "convert the audio to a supported format and resubmit"
	case CodeQuotaExceeded:
		return false, "provider quota exhausted; wait for the quota to reset"
	default:
		return true, "an unexpected error occurred; the request will be retried"
	}
}

// Classify maps an arbitrary failure onto the taxonomy. Typed errors pass
// through unchanged; provider HTTP failures map by status code; message
// substring matching is only the fallback adapter for opaque upstream
// errors.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		out := classifyStatus(provErr.Status)
		out.Err = err
		out.RetryAfter = provErr.RetryAfter
		return out
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(CodeTimeout, err)
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		// Open circuit means the provider is unhealthy; retry later.
		return NewError(CodeUnknown, err)
	}

	return classifyMessage(err)
}

func classifyStatus(status int) *Error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewError(CodeAuthentication, nil)
	case status == http.StatusTooManyRequests:
		return NewError(CodeRateLimit, nil)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return NewError(CodeTimeout, nil)
	case status == http.StatusRequestEntityTooLarge:
		return NewError(CodeFileTooLarge, nil)
	case status == http.StatusUnsupportedMediaType || status == http.StatusUnprocessableEntity:
		return NewError(CodeInvalidFormat, nil)
	case status == http.StatusPaymentRequired:
		return NewError(CodeQuotaExceeded, nil)
	case status >= 500:
		return NewError(CodeUnknown, nil)
	default:
		return NewError(CodeUnknown, nil)
	}
}

// classifyMessage is the substring fallback for errors whose upstream type
// is opaque. Precedence follows the taxonomy order.
func classifyMessage(err error) *Error {
	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "401", "unauthorized", "invalid api key", "authentication"):
		return NewError(CodeAuthentication, err)
	case containsAny(msg, "429", "rate limit", "too many requests"):
		return NewError(CodeRateLimit, err)
	case containsAny(msg, "timeout", "deadline exceeded", "i/o timeout"):
		return NewError(CodeTimeout, err)
	case containsAny(msg, "file too large", "request entity too large", "maximum content size"):
		return NewError(CodeFileTooLarge, err)
	case containsAny(msg, "invalid format", "unsupported media", "could not decode", "invalid file"):
		return NewError(CodeInvalidFormat, err)
	case containsAny(msg, "quota", "insufficient_quota", "billing"):
		return NewError(CodeQuotaExceeded, err)
	default:
		return NewError(CodeUnknown, err)
	}
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
