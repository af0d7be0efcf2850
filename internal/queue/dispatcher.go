// -----------------------------------------------------------------------
// Dispatcher - Pulls admitted jobs, enforces rate limits, runs attempts
// -----------------------------------------------------------------------

package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cogito/internal/interfaces"
	"github.com/ternarybob/cogito/internal/models"
	"github.com/ternarybob/cogito/internal/ratelimit"
	"github.com/ternarybob/cogito/internal/schemas"
	"github.com/ternarybob/cogito/internal/services/llm"
)

// ProviderSource resolves a model string to a provider client.
type ProviderSource interface {
	ProviderFor(ctx context.Context, model string) (interfaces.Provider, error)
}

// DispatcherConfig sizes the worker pool.
type DispatcherConfig struct {
	MaxConcurrency int
	PollInterval   time.Duration
}

// Dispatcher moves jobs from the admission queue through rate limiting,
// provider execution, validation and logging. Jobs whose model bucket is
// saturated are deferred per model and merged back against the queue by
// (priority, seq) once budget returns, while other models' jobs keep flowing.
type Dispatcher struct {
	cfg       DispatcherConfig
	queue     *AdmissionQueue
	limiter   *ratelimit.Limiter
	providers ProviderSource
	registry  *schemas.Registry
	store     interfaces.InteractionStorage
	retry     *llm.RetryConfig
	logger    arbor.ILogger

	// slots is the worker pool semaphore.
	slots chan struct{}
	// slotFreed wakes the scheduler when a worker finishes.
	slotFreed chan struct{}

	mu         sync.Mutex
	deferred   map[string][]*models.Job
	deferredAt map[string]time.Time

	latMu    sync.Mutex
	latTotal map[models.JobKind]time.Duration
	latCount map[models.JobKind]int

	stopOnce sync.Once
	stopping chan struct{}
	runCtx   context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	loopDone chan struct{}

	dispatched  atomic.Uint64
	succeeded   atomic.Uint64
	failed      atomic.Uint64
	droppedLogs atomic.Uint64
}

// NewDispatcher wires the dispatcher. Call Start to begin scheduling.
func NewDispatcher(
	cfg DispatcherConfig,
	queue *AdmissionQueue,
	limiter *ratelimit.Limiter,
	providers ProviderSource,
	registry *schemas.Registry,
	store interfaces.InteractionStorage,
	retry *llm.RetryConfig,
	logger arbor.ILogger,
) *Dispatcher {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	runCtx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		cfg:        cfg,
		queue:      queue,
		limiter:    limiter,
		providers:  providers,
		registry:   registry,
		store:      store,
		retry:      retry,
		logger:     logger,
		slots:      make(chan struct{}, cfg.MaxConcurrency),
		slotFreed:  make(chan struct{}, 1),
		deferred:   make(map[string][]*models.Job),
		deferredAt: make(map[string]time.Time),
		latTotal:   make(map[models.JobKind]time.Duration),
		latCount:   make(map[models.JobKind]int),
		stopping:   make(chan struct{}),
		runCtx:     runCtx,
		cancel:     cancel,
		loopDone:   make(chan struct{}),
	}
}

// Start launches the scheduling loop.
func (d *Dispatcher) Start() {
	go d.run()
	d.logger.Info().
		Int("max_concurrency", d.cfg.MaxConcurrency).
		Msg("Dispatcher started")
}

func (d *Dispatcher) run() {
	defer close(d.loopDone)

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		d.schedule()

		select {
		case <-d.stopping:
			return
		case <-d.queue.Submitted():
		case <-d.limiter.Refilled():
			// A refill may unblock models waiting on a manual top-up.
			d.mu.Lock()
			for model := range d.deferredAt {
				d.deferredAt[model] = time.Time{}
			}
			d.mu.Unlock()
		case <-d.slotFreed:
		case <-ticker.C:
		}
	}
}

// schedule dispatches as many jobs as free workers and rate budgets allow.
// Deferred and freshly queued jobs compete on (priority, seq), so a deferral
// never costs a job its place in line but never lets it jump past higher
// priority work submitted while it waited.
func (d *Dispatcher) schedule() {
	for {
		if !d.acquireSlot() {
			return
		}
		job := d.nextRunnable()
		if job == nil {
			d.releaseSlot()
			return
		}
		cost := d.tokenCost(job)
		ok, wait := d.limiter.TryReserve(job.Model, 1, cost)
		if !ok {
			d.releaseSlot()
			if !d.limiter.Fits(job.Model, 1, cost) {
				// No amount of waiting makes this reservation possible.
				d.failed.Add(1)
				job.CompleteFailure(models.ErrorKindRateLimited,
					fmt.Errorf("%w: model %s, estimated tokens %.0f", models.ErrExceedsRateBudget, job.Model, cost))
				continue
			}
			d.park(job, wait)
			continue
		}
		d.launch(job)
	}
}

// nextRunnable picks the next job by (priority, seq) across the admission
// heap and every deferred list whose wait has elapsed, removing it from its
// source. Saturated models still inside their wait window are skipped so
// other models keep flowing. Returns nil when nothing is runnable.
func (d *Dispatcher) nextRunnable() *models.Job {
	now := time.Now()

	d.mu.Lock()
	var best *models.Job
	var bestModel string
	for model, list := range d.deferred {
		for len(list) > 0 {
			head := list[0]
			if head.State().IsTerminal() {
				// Already finalized elsewhere; drop without recounting.
				list = list[1:]
				continue
			}
			if head.CancelRequested() {
				head.CompleteFailure(models.ErrorKindCancelled, models.ErrCancelled)
				d.failed.Add(1)
				list = list[1:]
				continue
			}
			break
		}
		if len(list) == 0 {
			delete(d.deferred, model)
			delete(d.deferredAt, model)
			continue
		}
		d.deferred[model] = list
		if now.Before(d.deferredAt[model]) {
			continue
		}
		if head := list[0]; best == nil || orderBefore(head, best) {
			best, bestModel = head, model
		}
	}
	d.mu.Unlock()

	if peeked := d.queue.Peek(); peeked != nil && (best == nil || orderBefore(peeked, best)) {
		if job := d.queue.Next(); job != nil {
			return job
		}
	}
	if best == nil {
		return nil
	}

	d.mu.Lock()
	if list := d.deferred[bestModel]; len(list) > 0 && list[0] == best {
		d.deferred[bestModel] = list[1:]
	}
	d.mu.Unlock()
	return best
}

func deferUntil(now time.Time, wait time.Duration) time.Time {
	if wait == ratelimit.NoRefill {
		// Only a manual refill event can clear this model.
		return now.Add(24 * time.Hour)
	}
	return now.Add(wait)
}

// park stores a job whose reservation failed until its model has budget
// again. Each model's deferred list stays ordered by (priority, seq), so a
// re-parked job keeps its place and later high-priority arrivals sort ahead.
func (d *Dispatcher) park(job *models.Job, wait time.Duration) {
	d.mu.Lock()
	d.deferred[job.Model] = insertOrdered(d.deferred[job.Model], job)
	if until := deferUntil(time.Now(), wait); until.After(d.deferredAt[job.Model]) {
		d.deferredAt[job.Model] = until
	}
	d.mu.Unlock()

	d.logger.Debug().
		Str("job_id", job.ID).
		Str("model", job.Model).
		Str("wait", wait.String()).
		Msg("Job deferred, rate limit saturated")
}

func insertOrdered(list []*models.Job, job *models.Job) []*models.Job {
	i := len(list)
	for i > 0 && orderBefore(job, list[i-1]) {
		i--
	}
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = job
	return list
}

func (d *Dispatcher) acquireSlot() bool {
	select {
	case d.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (d *Dispatcher) releaseSlot() {
	<-d.slots
}

func (d *Dispatcher) launch(job *models.Job) {
	d.dispatched.Add(1)
	d.wg.Add(1)
	go d.execute(job)
}

// tokenCost estimates the provider-token budget a job will consume, used
// for the token bucket reservation.
func (d *Dispatcher) tokenCost(job *models.Job) float64 {
	cost := llm.EstimateTokens(job.Payload.Prompt) + llm.EstimateTokens(job.Payload.System)
	if cost <= 0 {
		cost = 1
	}
	return float64(cost)
}

// execute runs the attempt loop for one job: provider call, retry on
// transient failure, schema validation with at most one repair follow-up.
// Every attempt produces exactly one interaction log entry before the job
// reaches a terminal state.
func (d *Dispatcher) execute(job *models.Job) {
	defer d.wg.Done()
	defer d.recordLatency(job)
	defer func() {
		d.releaseSlot()
		select {
		case d.slotFreed <- struct{}{}:
		default:
		}
	}()

	job.Transition(models.JobStateExecuting)

	provider, err := d.providers.ProviderFor(d.runCtx, job.Model)
	if err != nil {
		d.failed.Add(1)
		job.CompleteFailure(models.ErrorKindProviderError, err)
		return
	}

	prompt := job.Payload.Prompt
	isRepair := false
	repairUsed := false
	transientRetries := 0
	attemptNum := 0

	for {
		if job.CancelRequested() {
			d.failed.Add(1)
			job.CompleteFailure(models.ErrorKindCancelled, models.ErrCancelled)
			return
		}

		attemptNum++
		attempt := &models.Attempt{
			ID:        uuid.New().String(),
			JobID:     job.ID,
			Number:    attemptNum,
			StartedAt: time.Now(),
			Repair:    isRepair,
		}

		resp, callErr := provider.GenerateContent(d.runCtx, &interfaces.ContentRequest{
			Messages: []interfaces.Message{{Role: "user", Content: prompt}},
			Model:    job.Model,
		})
		attempt.EndedAt = time.Now()

		if callErr != nil {
			attempt.Error = callErr.Error()
			attempt.ErrorKind = llm.ClassifyError(callErr)
		} else {
			attempt.RawResponse = resp.Text
			attempt.PromptTokens = resp.Usage.PromptTokens
			attempt.CompletionTokens = resp.Usage.CompletionTokens
			if attempt.PromptTokens == 0 {
				attempt.PromptTokens = llm.EstimateTokens(prompt)
			}
			if attempt.CompletionTokens == 0 {
				attempt.CompletionTokens = llm.EstimateTokens(resp.Text)
			}
			attempt.TotalTokens = attempt.PromptTokens + attempt.CompletionTokens
			attempt.EstimatedCost = llm.EstimateCost(job.Model, attempt.PromptTokens, attempt.CompletionTokens)
		}

		job.AddAttempt(attempt)
		d.appendLog(job, attempt, prompt)

		if callErr != nil {
			kind := attempt.ErrorKind
			if kind == models.ErrorKindCancelled {
				d.failed.Add(1)
				job.CompleteFailure(kind, callErr)
				return
			}
			if llm.IsTransientError(callErr) && transientRetries < d.retry.MaxRetries {
				backoff := d.retry.CalculateBackoff(transientRetries, llm.ExtractRetryDelay(callErr))
				transientRetries++
				d.logger.Warn().
					Str("job_id", job.ID).
					Int("attempt", attemptNum).
					Str("backoff", backoff.String()).
					Err(callErr).
					Msg("Transient provider failure, retrying")
				select {
				case <-time.After(backoff):
					continue
				case <-d.runCtx.Done():
					d.failed.Add(1)
					job.CompleteFailure(models.ErrorKindCancelled, models.ErrShuttingDown)
					return
				}
			}
			d.failed.Add(1)
			job.CompleteFailure(kind, callErr)
			return
		}

		job.Transition(models.JobStateValidating)
		result, parseErr := d.registry.Parse(job.Payload.SchemaID, resp.Text)
		if parseErr == nil {
			d.succeeded.Add(1)
			job.CompleteSuccess(result)
			return
		}

		if !repairUsed {
			repairUsed = true
			isRepair = true
			prompt = schemas.BuildRepairPrompt(job.Payload.SchemaID, resp.Text, parseErr)
			d.logger.Debug().
				Str("job_id", job.ID).
				Err(parseErr).
				Msg("Schema mismatch, issuing repair attempt")
			continue
		}

		d.failed.Add(1)
		job.CompleteFailure(models.ErrorKindValidationFailed, parseErr)
		return
	}
}

// appendLog writes the interaction entry for one attempt. Log failures never
// fail the job; they increment the dropped counter.
func (d *Dispatcher) appendLog(job *models.Job, attempt *models.Attempt, prompt string) {
	entry := models.NewInteractionLogEntry(job, attempt, prompt)
	if err := d.store.Append(&entry); err != nil {
		d.droppedLogs.Add(1)
		d.logger.Warn().
			Str("job_id", job.ID).
			Int("attempt", attempt.Number).
			Err(err).
			Msg("Failed to append interaction log entry")
	}
}

// recordLatency folds a finished job's submit-to-terminal duration into the
// per-kind averages.
func (d *Dispatcher) recordLatency(job *models.Job) {
	lat := job.Latency()
	if lat <= 0 {
		return
	}
	d.latMu.Lock()
	d.latTotal[job.Kind] += lat
	d.latCount[job.Kind]++
	d.latMu.Unlock()
}

// AvgLatency returns the mean submit-to-terminal duration per job kind for
// jobs that reached a worker.
func (d *Dispatcher) AvgLatency() map[models.JobKind]time.Duration {
	d.latMu.Lock()
	defer d.latMu.Unlock()

	out := make(map[models.JobKind]time.Duration, len(d.latTotal))
	for kind, total := range d.latTotal {
		out[kind] = total / time.Duration(d.latCount[kind])
	}
	return out
}

// DeferredCount returns the number of jobs parked behind saturated models.
func (d *Dispatcher) DeferredCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, list := range d.deferred {
		n += len(list)
	}
	return n
}

// Counters returns dispatch totals for metrics.
func (d *Dispatcher) Counters() (dispatched, succeeded, failed, droppedLogs uint64) {
	return d.dispatched.Load(), d.succeeded.Load(), d.failed.Load(), d.droppedLogs.Load()
}

// Shutdown stops scheduling, fails queued and deferred jobs, and waits for
// in-flight jobs to drain. When ctx expires first, remaining workers are
// cancelled hard and their jobs fail.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	var err error
	d.stopOnce.Do(func() {
		d.queue.Close()
		close(d.stopping)
		<-d.loopDone

		drained := d.queue.Drain()

		d.mu.Lock()
		for _, list := range d.deferred {
			for _, job := range list {
				job.CompleteFailure(models.ErrorKindCancelled, models.ErrShuttingDown)
				drained++
			}
		}
		d.deferred = make(map[string][]*models.Job)
		d.mu.Unlock()

		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			d.cancel()
			<-done
			err = ctx.Err()
		}
		d.cancel()

		d.logger.Info().
			Int("abandoned", drained).
			Msg("Dispatcher stopped")
	})
	return err
}
