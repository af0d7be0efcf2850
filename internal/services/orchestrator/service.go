// -----------------------------------------------------------------------
// Orchestrator - Public submission surface over queue, limiter, dispatcher
// -----------------------------------------------------------------------

package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cogito/internal/common"
	"github.com/ternarybob/cogito/internal/interfaces"
	"github.com/ternarybob/cogito/internal/models"
	"github.com/ternarybob/cogito/internal/queue"
	"github.com/ternarybob/cogito/internal/ratelimit"
	"github.com/ternarybob/cogito/internal/schemas"
	"github.com/ternarybob/cogito/internal/services/llm"
)

// SubmitRequest describes one job submission.
type SubmitRequest struct {
	Kind     models.JobKind
	Priority int
	Model    string
	Payload  models.JobPayload
}

// Metrics is a point-in-time view of orchestrator state.
type Metrics struct {
	QueueDepth        int                        `json:"queue_depth"`
	Deferred          int                        `json:"deferred"`
	Rejections        uint64                     `json:"rejections"`
	Dispatched        uint64                     `json:"dispatched"`
	Succeeded         uint64                     `json:"succeeded"`
	Failed            uint64                     `json:"failed"`
	DroppedLogEntries uint64                     `json:"dropped_log_entries"`
	RateLimits        []ratelimit.BucketSnapshot `json:"rate_limits"`
	AvgLatencyMs      map[string]int64           `json:"avg_latency_ms"`
}

// Service is the orchestration entry point. It owns the admission queue,
// the rate limiter and the dispatcher, and tracks every live job so it can
// be cancelled or awaited by ID.
type Service struct {
	cfg        *common.Config
	factory    *llm.ProviderFactory
	queue      *queue.AdmissionQueue
	limiter    *ratelimit.Limiter
	dispatcher *queue.Dispatcher
	registry   *schemas.Registry
	store      interfaces.InteractionStorage
	logger     arbor.ILogger

	mu       sync.RWMutex
	jobs     map[string]*models.Job
	shutdown bool
}

// NewService wires the orchestrator from configuration.
func NewService(
	cfg *common.Config,
	factory *llm.ProviderFactory,
	store interfaces.InteractionStorage,
	logger arbor.ILogger,
) (*Service, error) {
	pollInterval, err := time.ParseDuration(cfg.Queue.PollInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid queue.poll_interval %q: %w", cfg.Queue.PollInterval, err)
	}

	limiter := ratelimit.NewLimiter(ratelimit.BucketConfig{
		RequestCapacity:        cfg.RateLimit.RequestCapacity,
		RequestRefillPerSecond: cfg.RateLimit.RequestRefillPerSecond,
		TokenCapacity:          cfg.RateLimit.TokenCapacity,
		TokenRefillPerSecond:   cfg.RateLimit.TokenRefillPerSecond,
	}, logger)
	for model, mc := range cfg.RateLimit.Models {
		limiter.Configure(model, ratelimit.BucketConfig{
			RequestCapacity:        mc.RequestCapacity,
			RequestRefillPerSecond: mc.RequestRefillPerSecond,
			TokenCapacity:          mc.TokenCapacity,
			TokenRefillPerSecond:   mc.TokenRefillPerSecond,
		})
	}

	retry, err := retryConfigFrom(&cfg.Retry)
	if err != nil {
		return nil, err
	}

	admission := queue.NewAdmissionQueue(cfg.Queue.Capacity, logger)
	registry := schemas.NewRegistry()
	dispatcher := queue.NewDispatcher(
		queue.DispatcherConfig{
			MaxConcurrency: cfg.Queue.MaxConcurrency,
			PollInterval:   pollInterval,
		},
		admission, limiter, factory, registry, store, retry, logger,
	)

	return &Service{
		cfg:        cfg,
		factory:    factory,
		queue:      admission,
		limiter:    limiter,
		dispatcher: dispatcher,
		registry:   registry,
		store:      store,
		logger:     logger,
		jobs:       make(map[string]*models.Job),
	}, nil
}

func retryConfigFrom(rc *common.RetryConfig) (*llm.RetryConfig, error) {
	initial, err := time.ParseDuration(rc.InitialBackoff)
	if err != nil {
		return nil, fmt.Errorf("invalid retry.initial_backoff %q: %w", rc.InitialBackoff, err)
	}
	max, err := time.ParseDuration(rc.MaxBackoff)
	if err != nil {
		return nil, fmt.Errorf("invalid retry.max_backoff %q: %w", rc.MaxBackoff, err)
	}
	return &llm.RetryConfig{
		MaxRetries:        rc.MaxRetries,
		InitialBackoff:    initial,
		MaxBackoff:        max,
		BackoffMultiplier: rc.BackoffMultiplier,
		JitterFraction:    llm.DefaultJitterFraction,
	}, nil
}

// Start launches the dispatcher.
func (s *Service) Start() {
	s.dispatcher.Start()
	s.logger.Info().
		Int("queue_capacity", s.cfg.Queue.Capacity).
		Int("max_concurrency", s.cfg.Queue.MaxConcurrency).
		Msg("Orchestrator started")
}

// Submit admits a job asynchronously. The returned handle reports state and
// delivers the result; submission errors (Overloaded, unknown schema,
// shutdown) are returned immediately.
func (s *Service) Submit(req SubmitRequest) (*queue.Handle, error) {
	if !s.registry.Known(req.Payload.SchemaID) {
		return nil, fmt.Errorf("unknown schema %q", req.Payload.SchemaID)
	}

	model := req.Model
	if model == "" {
		model = s.factory.GetDefaultModel(s.factory.DetectProvider(""))
	}
	model = s.factory.NormalizeModel(model)

	job := models.NewJob(req.Kind, req.Priority, req.Payload, model)

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil, models.ErrShuttingDown
	}
	s.jobs[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Submit(job); err != nil {
		s.mu.Lock()
		delete(s.jobs, job.ID)
		s.mu.Unlock()
		return nil, err
	}

	s.logger.Debug().
		Str("job_id", job.ID).
		Str("kind", string(job.Kind)).
		Str("model", model).
		Int("priority", req.Priority).
		Msg("Job submitted")

	go s.reapWhenDone(job)
	return queue.NewHandle(job), nil
}

// SubmitWait admits a job and blocks until it completes or ctx is done.
func (s *Service) SubmitWait(ctx context.Context, req SubmitRequest) (interface{}, error) {
	handle, err := s.Submit(req)
	if err != nil {
		return nil, err
	}

	state, result, err := handle.Await(ctx)
	if state.IsTerminal() && state != models.JobStateSucceeded {
		if err != nil {
			return nil, fmt.Errorf("job %s ended %s: %w", handle.JobID(), state, err)
		}
		return nil, fmt.Errorf("job %s ended %s", handle.JobID(), state)
	}
	if err != nil {
		// Await gave up before the job turned terminal, usually a ctx deadline.
		return nil, err
	}
	return result, nil
}

// SubmitBatch admits several jobs as independent submissions. Each element
// succeeds or is rejected on its own; one rejection never unwinds the rest.
func (s *Service) SubmitBatch(reqs []SubmitRequest) ([]*queue.Handle, []error) {
	handles := make([]*queue.Handle, len(reqs))
	errs := make([]error, len(reqs))
	for i, req := range reqs {
		handles[i], errs[i] = s.Submit(req)
	}
	return handles, errs
}

// Cancel requests cooperative cancellation of a job by ID. Queued jobs are
// finalized at the next dispatch scan; executing jobs stop at the next
// attempt boundary. Terminal jobs are not found.
func (s *Service) Cancel(jobID string) error {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return models.ErrJobNotFound
	}
	job.RequestCancel()
	s.logger.Debug().Str("job_id", jobID).Msg("Cancellation requested")
	return nil
}

// Job returns a handle for a live job by ID.
func (s *Service) Job(jobID string) (*queue.Handle, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, models.ErrJobNotFound
	}
	return queue.NewHandle(job), nil
}

// Metrics returns a snapshot of queue, dispatch and rate-limit state.
func (s *Service) Metrics() Metrics {
	dispatched, succeeded, failed, dropped := s.dispatcher.Counters()
	latencies := make(map[string]int64)
	for kind, lat := range s.dispatcher.AvgLatency() {
		latencies[string(kind)] = lat.Milliseconds()
	}
	return Metrics{
		QueueDepth:        s.queue.Depth(),
		Deferred:          s.dispatcher.DeferredCount(),
		Rejections:        s.queue.Rejections(),
		Dispatched:        dispatched,
		Succeeded:         succeeded,
		Failed:            failed,
		DroppedLogEntries: dropped,
		RateLimits:        s.limiter.Snapshot(),
		AvgLatencyMs:      latencies,
	}
}

// RefillModel manually tops up a model's rate buckets.
func (s *Service) RefillModel(model string, requests, tokens float64) {
	s.limiter.Refill(s.factory.NormalizeModel(model), requests, tokens)
}

// Shutdown rejects new submissions, abandons queued work and drains
// in-flight jobs. Bounded by ctx.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	s.logger.Info().Msg("Orchestrator shutting down")
	err := s.dispatcher.Shutdown(ctx)
	s.factory.Close()
	return err
}

// reapWhenDone drops the job from the live registry once it is terminal.
// Results remain reachable through handles held by callers.
func (s *Service) reapWhenDone(job *models.Job) {
	<-job.Done()
	s.mu.Lock()
	delete(s.jobs, job.ID)
	s.mu.Unlock()
}
