// -----------------------------------------------------------------------
// InteractionLogEntry - Immutable analytics record of one provider attempt
// -----------------------------------------------------------------------

package models

import "time"

// InteractionLogEntry is the persisted, immutable record derived from a
// completed attempt. Exactly one entry is appended per attempt, success or
// failure, before the job's terminal state is reported. Entries are never
// mutated or deleted by this layer; retention is the caller's concern.
type InteractionLogEntry struct {
	ID            string  `json:"id"`
	JobID         string  `json:"job_id" badgerhold:"index"`
	AttemptNumber int     `json:"attempt_number"`
	Operation     JobKind `json:"operation" badgerhold:"index"`
	Model         string  `json:"model"`
	UserID        string  `json:"user_id,omitempty" badgerhold:"index"`
	IdeaID        string  `json:"idea_id,omitempty"`

	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Repair    bool      `json:"repair,omitempty"`

	Prompt   string `json:"prompt,omitempty"`
	Response string `json:"response,omitempty"`

	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	EstimatedCost    float64 `json:"estimated_cost"`
	DurationMs       int64   `json:"duration_ms"`

	CreatedAt time.Time `json:"created_at"`
}

// NewInteractionLogEntry builds a log entry from a completed attempt.
func NewInteractionLogEntry(job *Job, attempt *Attempt, prompt string) InteractionLogEntry {
	return InteractionLogEntry{
		JobID:            job.ID,
		AttemptNumber:    attempt.Number,
		Operation:        job.Kind,
		Model:            job.Model,
		UserID:           job.Payload.UserID,
		IdeaID:           job.Payload.IdeaID,
		Success:          attempt.Succeeded(),
		Error:            attempt.Error,
		ErrorKind:        attempt.ErrorKind,
		Repair:           attempt.Repair,
		Prompt:           prompt,
		Response:         attempt.RawResponse,
		PromptTokens:     attempt.PromptTokens,
		CompletionTokens: attempt.CompletionTokens,
		TotalTokens:      attempt.TotalTokens,
		EstimatedCost:    attempt.EstimatedCost,
		DurationMs:       attempt.Duration().Milliseconds(),
		CreatedAt:        time.Now(),
	}
}
