// -----------------------------------------------------------------------
// Admission Queue - Bounded priority queue gating work into the dispatcher
// -----------------------------------------------------------------------

package queue

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cogito/internal/models"
)

// orderBefore reports whether a dispatches before b: lower priority value
// first, admission sequence breaking ties so equal-priority jobs stay FIFO.
func orderBefore(a, b *models.Job) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.Seq < b.Seq
}

// jobHeap orders by (priority, seq): lower priority value first, FIFO within
// a priority class.
type jobHeap []*models.Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool { return orderBefore(h[i], h[j]) }

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) { *h = append(*h, x.(*models.Job)) }

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return job
}

// AdmissionQueue is the bounded entry point for jobs. Submissions beyond
// capacity are rejected immediately with ErrOverloaded rather than blocking
// the caller.
type AdmissionQueue struct {
	mu       sync.Mutex
	heap     jobHeap
	byID     map[string]*models.Job
	capacity int
	closed   bool

	nextSeq    atomic.Uint64
	rejections atomic.Uint64

	// submitted wakes the dispatcher when new work arrives.
	submitted chan struct{}

	logger arbor.ILogger
}

// NewAdmissionQueue creates a queue holding at most capacity pending jobs.
func NewAdmissionQueue(capacity int, logger arbor.ILogger) *AdmissionQueue {
	q := &AdmissionQueue{
		heap:      make(jobHeap, 0, capacity),
		byID:      make(map[string]*models.Job),
		capacity:  capacity,
		submitted: make(chan struct{}, 1),
		logger:    logger,
	}
	heap.Init(&q.heap)
	return q
}

// Submit admits a job or rejects it. Rejection reasons are ErrOverloaded when
// the queue is full and ErrShuttingDown once Close has been called. The job's
// sequence number is assigned here; it fixes FIFO order within a priority
// class for the job's lifetime.
func (q *AdmissionQueue) Submit(job *models.Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		job.CompleteFailure(models.ErrorKindOverloaded, models.ErrShuttingDown)
		return models.ErrShuttingDown
	}
	if len(q.heap) >= q.capacity {
		q.rejections.Add(1)
		q.mu.Unlock()

		q.logger.Warn().
			Str("job_id", job.ID).
			Int("capacity", q.capacity).
			Msg("Admission queue full, rejecting job")

		job.CompleteFailure(models.ErrorKindOverloaded, models.ErrOverloaded)
		return models.ErrOverloaded
	}

	job.Seq = q.nextSeq.Add(1)
	heap.Push(&q.heap, job)
	q.byID[job.ID] = job
	job.Transition(models.JobStateQueued)
	q.mu.Unlock()

	select {
	case q.submitted <- struct{}{}:
	default:
	}
	return nil
}

// Next pops the highest-priority job, skipping jobs cancelled while queued.
// Returns nil when the queue is empty.
func (q *AdmissionQueue) Next() *models.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.heap) > 0 {
		job := heap.Pop(&q.heap).(*models.Job)
		delete(q.byID, job.ID)
		if job.CancelRequested() {
			job.CompleteFailure(models.ErrorKindCancelled, models.ErrCancelled)
			continue
		}
		job.Transition(models.JobStateDispatched)
		return job
	}
	return nil
}

// Peek returns the job Next would pop without removing it. Cancelled jobs at
// the head are finalized and dropped so the answer reflects dispatchable work.
// Returns nil when the queue is empty.
func (q *AdmissionQueue) Peek() *models.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.heap) > 0 {
		job := q.heap[0]
		if !job.CancelRequested() {
			return job
		}
		heap.Pop(&q.heap)
		delete(q.byID, job.ID)
		job.CompleteFailure(models.ErrorKindCancelled, models.ErrCancelled)
	}
	return nil
}

// Cancel marks a queued job cancelled. Jobs already handed to the dispatcher
// are not found here; the dispatcher handles their cancellation.
func (q *AdmissionQueue) Cancel(jobID string) error {
	q.mu.Lock()
	job, ok := q.byID[jobID]
	q.mu.Unlock()
	if !ok {
		return models.ErrJobNotFound
	}
	// Lazy removal: the job stays in the heap and Next skips it.
	job.RequestCancel()
	return nil
}

// Depth returns the count of pending jobs, including lazily-cancelled ones.
func (q *AdmissionQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// Rejections returns the count of submissions refused for capacity.
func (q *AdmissionQueue) Rejections() uint64 {
	return q.rejections.Load()
}

// Submitted returns a channel that receives after a submission, letting the
// dispatcher wake without polling.
func (q *AdmissionQueue) Submitted() <-chan struct{} {
	return q.submitted
}

// Close stops admission. Queued jobs remain and drain through Next; new
// submissions fail with ErrShuttingDown.
func (q *AdmissionQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// Drain fails every remaining queued job. Called when shutdown abandons the
// backlog instead of executing it.
func (q *AdmissionQueue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for len(q.heap) > 0 {
		job := heap.Pop(&q.heap).(*models.Job)
		delete(q.byID, job.ID)
		job.CompleteFailure(models.ErrorKindCancelled, models.ErrShuttingDown)
		n++
	}
	return n
}

// Handle is the caller's view of a submitted job: poll state or block for
// the result.
type Handle struct {
	job *models.Job
}

// NewHandle wraps a job for callers outside the queue package.
func NewHandle(job *models.Job) *Handle {
	return &Handle{job: job}
}

// JobID returns the wrapped job's identifier.
func (h *Handle) JobID() string { return h.job.ID }

// State returns the job's current lifecycle state.
func (h *Handle) State() models.JobState { return h.job.State() }

// Await blocks until the job reaches a terminal state or ctx is done. On a
// context deadline the job keeps running; only its result delivery is
// abandoned.
func (h *Handle) Await(ctx context.Context) (models.JobState, interface{}, error) {
	select {
	case <-h.job.Done():
	case <-ctx.Done():
		return h.job.State(), nil, ctx.Err()
	}
	return h.job.Result()
}
