package interfaces

import (
	"time"

	"github.com/ternarybob/cogito/internal/models"
)

// InteractionStorage persists one log entry per provider attempt. Append is
// called synchronously from the dispatch path before a job completes.
type InteractionStorage interface {
	// Append writes one entry. Failures are reported to the caller so the
	// dropped-entry counter can be maintained; they never fail the job.
	Append(entry *models.InteractionLogEntry) error

	// GetByJob returns all entries for a job in attempt order.
	GetByJob(jobID string) ([]*models.InteractionLogEntry, error)

	// ListRecent returns the most recent entries, newest first.
	ListRecent(limit int) ([]*models.InteractionLogEntry, error)

	// ListRange returns entries created within [from, to), oldest first.
	ListRange(from, to time.Time) ([]*models.InteractionLogEntry, error)

	// ListByUser returns a user's entries, newest first.
	ListByUser(userID string, limit int) ([]*models.InteractionLogEntry, error)

	// Count returns the total number of stored entries.
	Count() (int, error)
}

// StorageManager provides access to the storage backend lifecycle.
type StorageManager interface {
	InteractionStorage() InteractionStorage
	Close() error
}
