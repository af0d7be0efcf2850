// -----------------------------------------------------------------------
// Job - Unit of LLM orchestration work and its lifecycle state machine
// -----------------------------------------------------------------------

package models

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobKind identifies which prompt template and output schema apply to a job.
type JobKind string

const (
	JobKindGenerate  JobKind = "generate"
	JobKindEvaluate  JobKind = "evaluate"
	JobKindIterate   JobKind = "iterate"
	JobKindSummarize JobKind = "summarize"
)

// JobState is the lifecycle state of a job. The string values are stable and
// exposed as-is to the calling layer for display and analytics.
type JobState string

const (
	JobStateQueued     JobState = "queued"
	JobStateDispatched JobState = "dispatched"
	JobStateExecuting  JobState = "executing"
	JobStateValidating JobState = "validating"
	JobStateSucceeded  JobState = "succeeded"
	JobStateFailed     JobState = "failed"
	JobStateRejected   JobState = "rejected"
	JobStateCancelled  JobState = "cancelled"
)

// IsTerminal reports whether the state is final. Terminal states are immutable.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateSucceeded, JobStateFailed, JobStateRejected, JobStateCancelled:
		return true
	}
	return false
}

// JobPayload is the structured input for a job. Prompt and System are the
// rendered prompt text; Context preserves the builder inputs for analytics.
type JobPayload struct {
	SchemaID string                 `json:"schema_id"`
	Prompt   string                 `json:"prompt"`
	System   string                 `json:"system,omitempty"`
	Context  map[string]interface{} `json:"context,omitempty"`
	UserID   string                 `json:"user_id,omitempty"`
	IdeaID   string                 `json:"idea_id,omitempty"`
}

// Job is one unit of orchestration work. All state mutation goes through the
// guarded methods below; once a terminal state is reached the job is frozen
// and its done channel is closed.
type Job struct {
	ID       string
	Kind     JobKind
	Priority int
	Payload  JobPayload
	Model    string

	// Seq is the admission sequence number, assigned by the queue. Ties on
	// Priority are broken by Seq so equal-priority jobs dispatch FIFO.
	Seq uint64

	mu          sync.Mutex
	state       JobState
	submittedAt time.Time
	completedAt time.Time
	attempts    []*Attempt
	result      interface{}
	err         error
	errKind     ErrorKind
	cancelReq   bool
	done        chan struct{}
}

// NewJob creates a job in the Queued state.
func NewJob(kind JobKind, priority int, payload JobPayload, model string) *Job {
	return &Job{
		ID:          uuid.New().String(),
		Kind:        kind,
		Priority:    priority,
		Payload:     payload,
		Model:       model,
		state:       JobStateQueued,
		submittedAt: time.Now(),
		done:        make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// SubmittedAt returns the submission timestamp.
func (j *Job) SubmittedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.submittedAt
}

// CompletedAt returns the completion timestamp, zero while non-terminal.
func (j *Job) CompletedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.completedAt
}

// Transition moves the job to a non-terminal working state. Transitions out
// of a terminal state are ignored.
func (j *Job) Transition(next JobState) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.IsTerminal() {
		return
	}
	j.state = next
}

// CompleteSuccess marks the job Succeeded with its parsed structured result.
func (j *Job) CompleteSuccess(result interface{}) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.IsTerminal() {
		return
	}
	j.state = JobStateSucceeded
	j.result = result
	j.completedAt = time.Now()
	close(j.done)
}

// CompleteFailure marks the job terminal with the given failure kind. The
// kind selects the terminal state: Cancelled and Rejected map to their own
// states, everything else is Failed.
func (j *Job) CompleteFailure(kind ErrorKind, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.IsTerminal() {
		return
	}
	switch kind {
	case ErrorKindCancelled:
		j.state = JobStateCancelled
	case ErrorKindOverloaded:
		j.state = JobStateRejected
	default:
		j.state = JobStateFailed
	}
	j.errKind = kind
	j.err = err
	j.completedAt = time.Now()
	close(j.done)
}

// RequestCancel flags the job for cooperative cancellation. Workers check the
// flag at attempt boundaries; an in-flight provider call is never aborted.
func (j *Job) RequestCancel() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancelReq = true
}

// CancelRequested reports whether cancellation has been requested.
func (j *Job) CancelRequested() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelReq
}

// AddAttempt appends a completed attempt record. Attempts are append-only.
func (j *Job) AddAttempt(a *Attempt) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.attempts = append(j.attempts, a)
}

// Attempts returns a copy of the attempt records so far.
func (j *Job) Attempts() []*Attempt {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*Attempt, len(j.attempts))
	copy(out, j.attempts)
	return out
}

// Done returns a channel closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Result returns the terminal state, parsed result and failure (if any).
// Before the job is terminal, result and err are nil.
func (j *Job) Result() (JobState, interface{}, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state, j.result, j.err
}

// FailureKind returns the error taxonomy kind for a failed job.
func (j *Job) FailureKind() ErrorKind {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.errKind
}

// Latency returns the submit-to-terminal duration, zero while non-terminal.
func (j *Job) Latency() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.completedAt.IsZero() {
		return 0
	}
	return j.completedAt.Sub(j.submittedAt)
}
