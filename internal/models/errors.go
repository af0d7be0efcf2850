package models

import "errors"

// ErrorKind classifies job failures for callers and analytics.
type ErrorKind string

const (
	// ErrorKindOverloaded means admission was rejected because the queue was full.
	ErrorKindOverloaded ErrorKind = "overloaded"
	// ErrorKindRateLimited covers the rate gate: jobs deferred for bucket
	// refill carry it internally, and a job whose estimated cost exceeds the
	// bucket capacity outright fails permanently with this kind.
	ErrorKindRateLimited ErrorKind = "rate_limited"
	// ErrorKindTimeout means the provider call exceeded its per-attempt timeout.
	ErrorKindTimeout ErrorKind = "timeout"
	// ErrorKindProviderError covers provider-side errors (4xx permanent, 5xx transient).
	ErrorKindProviderError ErrorKind = "provider_error"
	// ErrorKindValidationFailed means the output never satisfied its schema after repair.
	ErrorKindValidationFailed ErrorKind = "validation_failed"
	// ErrorKindCancelled means the caller withdrew the job.
	ErrorKindCancelled ErrorKind = "cancelled"
)

var (
	// ErrOverloaded is returned by Submit when the admission queue is at capacity.
	ErrOverloaded = errors.New("admission queue at capacity")

	// ErrJobNotFound is returned when a job ID does not match a known job.
	ErrJobNotFound = errors.New("job not found")

	// ErrShuttingDown is returned by Submit after shutdown has begun.
	ErrShuttingDown = errors.New("orchestrator shutting down")

	// ErrCancelled is attached to jobs that terminate via cancellation.
	ErrCancelled = errors.New("job cancelled")

	// ErrExceedsRateBudget is attached to jobs whose estimated token cost can
	// never fit the model's bucket capacity.
	ErrExceedsRateBudget = errors.New("estimated cost exceeds model rate budget")
)
