package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/cogito/internal/models"
)

func TestIsRateLimitError(t *testing.T) {
	assert.True(t, IsRateLimitError(errors.New("Error 429: too many requests")))
	assert.True(t, IsRateLimitError(errors.New("RESOURCE_EXHAUSTED: quota exceeded")))
	assert.False(t, IsRateLimitError(errors.New("invalid api key")))
	assert.False(t, IsRateLimitError(nil))
}

func TestIsTransientError(t *testing.T) {
	assert.True(t, IsTransientError(errors.New("503 service unavailable")))
	assert.True(t, IsTransientError(errors.New("overloaded_error: try later")))
	assert.True(t, IsTransientError(context.DeadlineExceeded))
	assert.False(t, IsTransientError(errors.New("401 unauthorized")))
	assert.False(t, IsTransientError(context.Canceled))
	assert.False(t, IsTransientError(nil))
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.ErrorKind
	}{
		{"cancelled", context.Canceled, models.ErrorKindCancelled},
		{"wrapped cancelled", fmt.Errorf("call failed: %w", context.Canceled), models.ErrorKindCancelled},
		{"deadline", context.DeadlineExceeded, models.ErrorKindTimeout},
		{"wrapped deadline", fmt.Errorf("call failed: %w", context.DeadlineExceeded), models.ErrorKindTimeout},
		{"rate limited", errors.New("Error 429, Status: RESOURCE_EXHAUSTED"), models.ErrorKindRateLimited},
		{"provider 500", errors.New("500 internal error"), models.ErrorKindProviderError},
		{"auth", errors.New("invalid x-api-key"), models.ErrorKindProviderError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestExtractRetryDelay(t *testing.T) {
	err := errors.New("Error 429, Message: quota exceeded. Please retry in 45.387061394s., Status: RESOURCE_EXHAUSTED")
	delay := ExtractRetryDelay(err)
	assert.InDelta(t, 45.387, delay.Seconds(), 0.01)

	assert.Equal(t, time.Duration(0), ExtractRetryDelay(errors.New("no delay here")))
	assert.Equal(t, time.Duration(0), ExtractRetryDelay(nil))
}

func TestCalculateBackoffSchedule(t *testing.T) {
	c := &RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}

	assert.Equal(t, 500*time.Millisecond, c.CalculateBackoff(0, 0))
	assert.Equal(t, time.Second, c.CalculateBackoff(1, 0))
	assert.Equal(t, 2*time.Second, c.CalculateBackoff(2, 0))
}

func TestCalculateBackoffCap(t *testing.T) {
	c := NewDefaultRetryConfig()
	c.JitterFraction = 0

	assert.Equal(t, DefaultMaxBackoff, c.CalculateBackoff(20, 0))
}

func TestCalculateBackoffAPIDelayOverrides(t *testing.T) {
	c := NewDefaultRetryConfig()
	assert.Equal(t, 10*time.Second, c.CalculateBackoff(0, 10*time.Second))
}

func TestCalculateBackoffJitterBounds(t *testing.T) {
	c := NewDefaultRetryConfig()

	for i := 0; i < 100; i++ {
		b := c.CalculateBackoff(1, 0)
		// Attempt 1 base is 1s; jitter is +/- 25%.
		assert.GreaterOrEqual(t, b, 750*time.Millisecond)
		assert.LessOrEqual(t, b, 1250*time.Millisecond)
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("word"))
	assert.Equal(t, 13, EstimateTokens("one two three four five six seven eight nine ten"))
}

func TestEstimateCostPrefixMatch(t *testing.T) {
	// 1000 prompt + 1000 completion tokens of claude-sonnet.
	cost := EstimateCost("claude-sonnet-4-20250514", 1000, 1000)
	assert.InDelta(t, 0.018, cost, 1e-9)

	// gemini-2.5-flash beats the generic gemini prefix.
	cost = EstimateCost("gemini-2.5-flash", 1000, 0)
	assert.InDelta(t, 0.0003, cost, 1e-9)

	// Unknown model falls back to default pricing.
	cost = EstimateCost("mystery-model", 1000, 0)
	assert.InDelta(t, 0.003, cost, 1e-9)
}
