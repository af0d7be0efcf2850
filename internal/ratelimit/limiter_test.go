package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

func TestTryReserveBothOrNothing(t *testing.T) {
	l := NewLimiter(BucketConfig{RequestCapacity: 10, TokenCapacity: 100}, testLogger())

	// Plenty of requests, not enough tokens: neither bucket is debited.
	ok, _ := l.TryReserve("claude-sonnet", 1, 500)
	assert.False(t, ok)

	snaps := l.Snapshot()
	require.Len(t, snaps, 1)
	assert.Equal(t, 10.0, snaps[0].RequestsAvailable)
	assert.Equal(t, 100.0, snaps[0].TokensAvailable)

	ok, wait := l.TryReserve("claude-sonnet", 1, 50)
	assert.True(t, ok)
	assert.Equal(t, time.Duration(0), wait)
}

func TestZeroRefillWaitHint(t *testing.T) {
	l := NewLimiter(BucketConfig{RequestCapacity: 1, TokenCapacity: 10}, testLogger())

	ok, _ := l.TryReserve("gemini-flash", 1, 10)
	require.True(t, ok)

	ok, wait := l.TryReserve("gemini-flash", 1, 1)
	assert.False(t, ok)
	assert.Equal(t, NoRefill, wait, "zero refill rate must report an indefinite wait")
}

func TestFitsReportsImpossibleReservations(t *testing.T) {
	l := NewLimiter(BucketConfig{RequestCapacity: 2, RequestRefillPerSecond: 2, TokenCapacity: 100, TokenRefillPerSecond: 100}, testLogger())

	assert.True(t, l.Fits("claude-sonnet", 1, 100))
	assert.False(t, l.Fits("claude-sonnet", 1, 101), "cost above token capacity can never reserve")
	assert.False(t, l.Fits("claude-sonnet", 3, 10), "cost above request capacity can never reserve")

	// Fits ignores current availability; a drained bucket still fits.
	ok, _ := l.TryReserve("claude-sonnet", 2, 100)
	require.True(t, ok)
	assert.True(t, l.Fits("claude-sonnet", 2, 100))
}

func TestManualRefill(t *testing.T) {
	l := NewLimiter(BucketConfig{RequestCapacity: 2, TokenCapacity: 20}, testLogger())

	ok, _ := l.TryReserve("claude-haiku", 2, 20)
	require.True(t, ok)
	ok, _ = l.TryReserve("claude-haiku", 1, 1)
	require.False(t, ok)

	l.Refill("claude-haiku", 1, 10)

	select {
	case <-l.Refilled():
	default:
		t.Fatal("expected refill event signal")
	}

	ok, _ = l.TryReserve("claude-haiku", 1, 10)
	assert.True(t, ok)
}

func TestRefillNeverExceedsCapacity(t *testing.T) {
	l := NewLimiter(BucketConfig{RequestCapacity: 5, TokenCapacity: 50}, testLogger())

	l.Refill("claude-sonnet", 1000, 1000)

	snaps := l.Snapshot()
	require.Len(t, snaps, 1)
	assert.Equal(t, 5.0, snaps[0].RequestsAvailable)
	assert.Equal(t, 50.0, snaps[0].TokensAvailable)
}

func TestModelsAreIndependent(t *testing.T) {
	l := NewLimiter(BucketConfig{RequestCapacity: 1, TokenCapacity: 10}, testLogger())

	ok, _ := l.TryReserve("claude-sonnet", 1, 10)
	require.True(t, ok)

	// Saturating one model must not affect another.
	ok, _ = l.TryReserve("gemini-pro", 1, 10)
	assert.True(t, ok)
}

func TestContinuousRefillWaitHint(t *testing.T) {
	l := NewLimiter(BucketConfig{RequestCapacity: 10, RequestRefillPerSecond: 10, TokenCapacity: 1000, TokenRefillPerSecond: 1000}, testLogger())

	ok, _ := l.TryReserve("claude-sonnet", 10, 1000)
	require.True(t, ok)

	ok, wait := l.TryReserve("claude-sonnet", 5, 100)
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, time.Second)
}

func TestConcurrentReservationsStayWithinBounds(t *testing.T) {
	const capacity = 100.0
	l := NewLimiter(BucketConfig{RequestCapacity: capacity, TokenCapacity: capacity * 10}, testLogger())

	var granted int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.TryReserve("claude-sonnet", 1, 10); ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(capacity), granted)

	snaps := l.Snapshot()
	require.Len(t, snaps, 1)
	assert.GreaterOrEqual(t, snaps[0].RequestsAvailable, 0.0)
	assert.GreaterOrEqual(t, snaps[0].TokensAvailable, 0.0)
	assert.LessOrEqual(t, snaps[0].RequestsAvailable, capacity)
}

func TestConfigureResetsToFull(t *testing.T) {
	l := NewLimiter(BucketConfig{RequestCapacity: 1, TokenCapacity: 10}, testLogger())

	ok, _ := l.TryReserve("claude-sonnet", 1, 10)
	require.True(t, ok)

	l.Configure("claude-sonnet", BucketConfig{RequestCapacity: 3, TokenCapacity: 30})

	for i := 0; i < 3; i++ {
		ok, _ = l.TryReserve("claude-sonnet", 1, 10)
		assert.True(t, ok, "reservation %d after reconfigure", i)
	}
	ok, _ = l.TryReserve("claude-sonnet", 1, 10)
	assert.False(t, ok)
}
