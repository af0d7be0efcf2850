// -----------------------------------------------------------------------
// Rate Limiter - Per-model dual token buckets (requests + provider tokens)
// -----------------------------------------------------------------------

package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

// NoRefill is the wait hint returned when a bucket has a zero refill rate:
// the deficit will never clear on its own and the caller must wait for a
// manual refill event.
const NoRefill = time.Duration(math.MaxInt64)

// BucketConfig describes the request-rate and token-rate ceilings for one model.
type BucketConfig struct {
	RequestCapacity        float64
	RequestRefillPerSecond float64
	TokenCapacity          float64
	TokenRefillPerSecond   float64
}

// BucketSnapshot is a read-only view of one model's buckets for metrics.
type BucketSnapshot struct {
	Model             string  `json:"model"`
	RequestsAvailable float64 `json:"requests_available"`
	RequestCapacity   float64 `json:"request_capacity"`
	TokensAvailable   float64 `json:"tokens_available"`
	TokenCapacity     float64 `json:"token_capacity"`
}

// Utilization returns how much of the request bucket is consumed, 0..1.
func (s BucketSnapshot) Utilization() float64 {
	if s.RequestCapacity <= 0 {
		return 0
	}
	return 1 - s.RequestsAvailable/s.RequestCapacity
}

// bucket is a single token bucket with lazy continuous refill. Callers hold
// the owning model's mutex.
type bucket struct {
	capacity   float64
	refillRate float64 // tokens per second
	available  float64
	lastRefill time.Time
}

func (b *bucket) refill(now time.Time) {
	if b.refillRate > 0 {
		elapsed := now.Sub(b.lastRefill).Seconds()
		b.available = math.Min(b.capacity, b.available+elapsed*b.refillRate)
	}
	b.lastRefill = now
}

// waitFor estimates how long until n tokens are available. Assumes refill has
// just run.
func (b *bucket) waitFor(n float64) time.Duration {
	deficit := n - b.available
	if deficit <= 0 {
		return 0
	}
	if b.refillRate <= 0 {
		return NoRefill
	}
	return time.Duration(deficit / b.refillRate * float64(time.Second))
}

// add tops the bucket up by n, capped at capacity.
func (b *bucket) add(n float64) {
	b.available = math.Min(b.capacity, b.available+n)
}

// modelBuckets pairs the request-count and provider-token buckets for one
// model behind a single mutex so a reservation is both-or-nothing.
type modelBuckets struct {
	mu       sync.Mutex
	requests bucket
	tokens   bucket
}

// Limiter enforces per-model request-rate and token-rate ceilings. Buckets
// for different models are independent: one saturated model never blocks
// reservations for another.
type Limiter struct {
	mu       sync.RWMutex
	models   map[string]*modelBuckets
	defaults BucketConfig
	logger   arbor.ILogger

	// refilled signals manual refill events so the dispatcher can rescan
	// deferred jobs without polling.
	refilled chan struct{}
}

// NewLimiter creates a limiter. Models not explicitly configured get the
// default bucket config on first reservation. Buckets start full.
func NewLimiter(defaults BucketConfig, logger arbor.ILogger) *Limiter {
	return &Limiter{
		models:   make(map[string]*modelBuckets),
		defaults: defaults,
		logger:   logger,
		refilled: make(chan struct{}, 1),
	}
}

// Configure sets the bucket config for a model, resetting it to full.
func (l *Limiter) Configure(model string, cfg BucketConfig) {
	now := time.Now()
	mb := &modelBuckets{
		requests: bucket{capacity: cfg.RequestCapacity, refillRate: cfg.RequestRefillPerSecond, available: cfg.RequestCapacity, lastRefill: now},
		tokens:   bucket{capacity: cfg.TokenCapacity, refillRate: cfg.TokenRefillPerSecond, available: cfg.TokenCapacity, lastRefill: now},
	}
	l.mu.Lock()
	l.models[model] = mb
	l.mu.Unlock()

	l.logger.Debug().
		Str("model", model).
		Int("request_capacity", int(cfg.RequestCapacity)).
		Int("token_capacity", int(cfg.TokenCapacity)).
		Msg("Rate limit bucket configured")
}

func (l *Limiter) forModel(model string) *modelBuckets {
	l.mu.RLock()
	mb, ok := l.models[model]
	l.mu.RUnlock()
	if ok {
		return mb
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if mb, ok = l.models[model]; ok {
		return mb
	}
	now := time.Now()
	mb = &modelBuckets{
		requests: bucket{capacity: l.defaults.RequestCapacity, refillRate: l.defaults.RequestRefillPerSecond, available: l.defaults.RequestCapacity, lastRefill: now},
		tokens:   bucket{capacity: l.defaults.TokenCapacity, refillRate: l.defaults.TokenRefillPerSecond, available: l.defaults.TokenCapacity, lastRefill: now},
	}
	l.models[model] = mb
	return mb
}

// TryReserve atomically takes requestCost from the request bucket and
// tokenCost from the token bucket for the model. Either both reservations
// succeed or neither does; on failure it returns the estimated wait until
// enough tokens will exist (NoRefill when the deficit can only clear via a
// manual refill).
func (l *Limiter) TryReserve(model string, requestCost, tokenCost float64) (bool, time.Duration) {
	mb := l.forModel(model)
	mb.mu.Lock()
	defer mb.mu.Unlock()

	now := time.Now()
	mb.requests.refill(now)
	mb.tokens.refill(now)

	if mb.requests.available >= requestCost && mb.tokens.available >= tokenCost {
		mb.requests.available -= requestCost
		mb.tokens.available -= tokenCost
		return true, 0
	}

	wait := mb.requests.waitFor(requestCost)
	if tw := mb.tokens.waitFor(tokenCost); tw > wait {
		wait = tw
	}
	return false, wait
}

// Fits reports whether a reservation of this size can ever succeed for the
// model, regardless of current availability. A cost above bucket capacity
// never clears no matter how long the caller waits, so such jobs must fail
// instead of deferring.
func (l *Limiter) Fits(model string, requestCost, tokenCost float64) bool {
	mb := l.forModel(model)
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return requestCost <= mb.requests.capacity && tokenCost <= mb.tokens.capacity
}

// Refill manually tops up a model's buckets, capped at capacity, and signals
// the refill event. Used by tests and by operators unblocking a drained model.
func (l *Limiter) Refill(model string, requests, tokens float64) {
	mb := l.forModel(model)
	mb.mu.Lock()
	mb.requests.add(requests)
	mb.tokens.add(tokens)
	mb.mu.Unlock()

	select {
	case l.refilled <- struct{}{}:
	default:
	}
}

// Refilled returns a channel that receives after a manual refill event.
func (l *Limiter) Refilled() <-chan struct{} {
	return l.refilled
}

// Snapshot returns per-model bucket state for metrics. Read-only.
func (l *Limiter) Snapshot() []BucketSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]BucketSnapshot, 0, len(l.models))
	now := time.Now()
	for model, mb := range l.models {
		mb.mu.Lock()
		mb.requests.refill(now)
		mb.tokens.refill(now)
		out = append(out, BucketSnapshot{
			Model:             model,
			RequestsAvailable: mb.requests.available,
			RequestCapacity:   mb.requests.capacity,
			TokensAvailable:   mb.tokens.available,
			TokenCapacity:     mb.tokens.capacity,
		})
		mb.mu.Unlock()
	}
	return out
}
