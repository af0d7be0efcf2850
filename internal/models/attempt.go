package models

import "time"

// Attempt is one execution try of a job against the provider. A job may own
// several attempts due to retry and repair. Attempts are owned by their job
// and never mutated after EndedAt is set.
type Attempt struct {
	ID        string    `json:"id"`
	JobID     string    `json:"job_id"`
	Number    int       `json:"attempt_number"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	RawResponse string    `json:"raw_response,omitempty"`
	Error       string    `json:"error,omitempty"`
	ErrorKind   ErrorKind `json:"error_kind,omitempty"`

	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	EstimatedCost    float64 `json:"estimated_cost"`

	// Repair marks the corrective follow-up attempt issued after a schema
	// mismatch. At most one per job.
	Repair bool `json:"repair,omitempty"`
}

// Succeeded reports whether the provider call itself completed without error.
// Schema conformance is judged separately by the validator.
func (a *Attempt) Succeeded() bool {
	return a.Error == ""
}

// Duration returns how long the attempt ran.
func (a *Attempt) Duration() time.Duration {
	return a.EndedAt.Sub(a.StartedAt)
}
