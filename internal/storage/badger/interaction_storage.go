package badger

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/cogito/internal/interfaces"
	"github.com/ternarybob/cogito/internal/models"
)

// entrySequence ensures unique, time-ordered keys even when multiple entries
// are written within the same nanosecond.
var entrySequence uint64

// InteractionStorage implements the InteractionStorage interface for Badger
type InteractionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewInteractionStorage creates a new InteractionStorage instance
func NewInteractionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.InteractionStorage {
	return &InteractionStorage{
		db:     db,
		logger: logger,
	}
}

// Append writes one entry. The key is timestamp-prefixed so raw key iteration
// follows insertion order.
func (s *InteractionStorage) Append(entry *models.InteractionLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	seq := atomic.AddUint64(&entrySequence, 1)
	key := fmt.Sprintf("%d_%d_%s", entry.CreatedAt.UnixNano(), seq, entry.ID)

	if err := s.db.Store().Insert(key, entry); err != nil {
		return fmt.Errorf("failed to append interaction entry: %w", err)
	}
	return nil
}

// GetByJob returns all entries for a job in attempt order.
func (s *InteractionStorage) GetByJob(jobID string) ([]*models.InteractionLogEntry, error) {
	var entries []*models.InteractionLogEntry
	query := badgerhold.Where("JobID").Eq(jobID).Index("JobID").SortBy("AttemptNumber")
	if err := s.db.Store().Find(&entries, query); err != nil {
		return nil, fmt.Errorf("failed to get entries for job: %w", err)
	}
	return entries, nil
}

// ListRecent returns the most recent entries, newest first.
func (s *InteractionStorage) ListRecent(limit int) ([]*models.InteractionLogEntry, error) {
	var entries []*models.InteractionLogEntry
	query := badgerhold.Where("ID").Ne("").SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := s.db.Store().Find(&entries, query); err != nil {
		return nil, fmt.Errorf("failed to list recent entries: %w", err)
	}
	return entries, nil
}

// ListRange returns entries created within [from, to), oldest first.
func (s *InteractionStorage) ListRange(from, to time.Time) ([]*models.InteractionLogEntry, error) {
	var entries []*models.InteractionLogEntry
	query := badgerhold.Where("CreatedAt").Ge(from).And("CreatedAt").Lt(to).SortBy("CreatedAt")
	if err := s.db.Store().Find(&entries, query); err != nil {
		return nil, fmt.Errorf("failed to list entries in range: %w", err)
	}
	return entries, nil
}

// ListByUser returns a user's entries, newest first.
func (s *InteractionStorage) ListByUser(userID string, limit int) ([]*models.InteractionLogEntry, error) {
	var entries []*models.InteractionLogEntry
	query := badgerhold.Where("UserID").Eq(userID).Index("UserID").SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := s.db.Store().Find(&entries, query); err != nil {
		return nil, fmt.Errorf("failed to list entries for user: %w", err)
	}
	return entries, nil
}

// Count returns the total number of stored entries.
func (s *InteractionStorage) Count() (int, error) {
	count, err := s.db.Store().Count(&models.InteractionLogEntry{}, badgerhold.Where("ID").Ne(""))
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return int(count), nil
}
