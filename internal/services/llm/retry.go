// -----------------------------------------------------------------------
// Retry - Error classification and backoff policy for provider calls
// -----------------------------------------------------------------------

package llm

import (
	"context"
	"errors"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/cogito/internal/models"
)

// RetryConfig defines retry behavior for transient provider failures.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts after the first call
	MaxRetries int

	// InitialBackoff is the wait time before the first retry
	InitialBackoff time.Duration

	// MaxBackoff is the maximum wait time between retries
	MaxBackoff time.Duration

	// BackoffMultiplier is applied to backoff on each retry
	BackoffMultiplier float64

	// JitterFraction randomizes each backoff by +/- this fraction
	JitterFraction float64
}

// Default retry constants for provider calls.
const (
	DefaultMaxRetries        = 3
	DefaultInitialBackoff    = 500 * time.Millisecond
	DefaultMaxBackoff        = 30 * time.Second
	DefaultBackoffMultiplier = 2.0
	DefaultJitterFraction    = 0.25
)

// NewDefaultRetryConfig returns a RetryConfig with the default provider
// retry policy.
func NewDefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        DefaultMaxRetries,
		InitialBackoff:    DefaultInitialBackoff,
		MaxBackoff:        DefaultMaxBackoff,
		BackoffMultiplier: DefaultBackoffMultiplier,
		JitterFraction:    DefaultJitterFraction,
	}
}

// IsRateLimitError checks if an error is a provider rate limit error.
// Matches 429 status codes and RESOURCE_EXHAUSTED errors.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "quota")
}

// IsTimeoutError checks if an error is a deadline expiry on a provider call.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "408")
}

// transientStatusCodes are HTTP statuses worth retrying.
var transientStatusCodes = []string{"429", "500", "502", "503", "504", "529"}

// IsTransientError reports whether a provider error is worth retrying.
// Rate limits, timeouts and 5xx-class failures are transient; everything
// else (auth failures, malformed requests) is permanent.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if IsTimeoutError(err) || IsRateLimitError(err) {
		return true
	}
	errStr := err.Error()
	for _, code := range transientStatusCodes {
		if strings.Contains(errStr, code) {
			return true
		}
	}
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "overloaded_error") ||
		strings.Contains(errStr, "UNAVAILABLE")
}

// ClassifyError maps a provider-call error onto the orchestration error
// taxonomy. Context cancellation is distinguished from deadline expiry so
// caller aborts are not reported as provider timeouts.
func ClassifyError(err error) models.ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return models.ErrorKindCancelled
	case IsTimeoutError(err):
		return models.ErrorKindTimeout
	case IsRateLimitError(err):
		return models.ErrorKindRateLimited
	default:
		return models.ErrorKindProviderError
	}
}

// retryDelayRegex matches "Please retry in Xs" or "retryDelay:Xs" patterns
var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay parses the API-suggested retry delay from a provider
// error. Returns 0 if no delay is found in the error message.
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}

	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}

	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}

	return time.Duration(seconds * float64(time.Second))
}

// CalculateBackoff computes the backoff duration before retry number
// attempt (0-based). If apiDelay > 0 (from ExtractRetryDelay), it overrides
// the exponential schedule. The result is capped at MaxBackoff, then
// jittered by +/- JitterFraction.
func (c *RetryConfig) CalculateBackoff(attempt int, apiDelay time.Duration) time.Duration {
	if apiDelay > 0 {
		return apiDelay
	}

	backoff := float64(c.InitialBackoff)
	for i := 0; i < attempt; i++ {
		backoff *= c.BackoffMultiplier
	}
	if backoff > float64(c.MaxBackoff) {
		backoff = float64(c.MaxBackoff)
	}

	if c.JitterFraction > 0 {
		jitter := backoff * c.JitterFraction * (rand.Float64()*2 - 1)
		backoff += jitter
	}
	if backoff < 0 {
		backoff = 0
	}
	return time.Duration(backoff)
}
