package badger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/cogito/internal/interfaces"
	"github.com/ternarybob/cogito/internal/models"
)

func newTestStorage(t *testing.T) interfaces.InteractionStorage {
	t.Helper()

	tmpDir := t.TempDir()
	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	db := &BadgerDB{store: store}
	return NewInteractionStorage(db, arbor.NewLogger())
}

func newTestEntry(jobID string, attempt int, createdAt time.Time) *models.InteractionLogEntry {
	return &models.InteractionLogEntry{
		JobID:            jobID,
		AttemptNumber:    attempt,
		Operation:        models.JobKindGenerate,
		Model:            "claude-sonnet-4-20250514",
		UserID:           "user-1",
		Success:          true,
		PromptTokens:     120,
		CompletionTokens: 340,
		TotalTokens:      460,
		EstimatedCost:    0.0055,
		DurationMs:       900,
		CreatedAt:        createdAt,
	}
}

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	s := newTestStorage(t)

	entry := newTestEntry("job-1", 1, time.Time{})
	require.NoError(t, s.Append(entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestGetByJobOrdersAttempts(t *testing.T) {
	s := newTestStorage(t)

	now := time.Now()
	require.NoError(t, s.Append(newTestEntry("job-1", 2, now.Add(time.Second))))
	require.NoError(t, s.Append(newTestEntry("job-1", 1, now)))
	require.NoError(t, s.Append(newTestEntry("job-2", 1, now)))

	entries, err := s.GetByJob("job-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].AttemptNumber)
	assert.Equal(t, 2, entries[1].AttemptNumber)
}

func TestListRecentNewestFirst(t *testing.T) {
	s := newTestStorage(t)

	now := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(newTestEntry("job-1", i+1, now.Add(time.Duration(i)*time.Second))))
	}

	entries, err := s.ListRecent(3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 5, entries[0].AttemptNumber)
	assert.Equal(t, 3, entries[2].AttemptNumber)
}

func TestListRangeHalfOpen(t *testing.T) {
	s := newTestStorage(t)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Append(newTestEntry("job-1", 1, base)))
	require.NoError(t, s.Append(newTestEntry("job-2", 1, base.Add(time.Hour))))
	require.NoError(t, s.Append(newTestEntry("job-3", 1, base.Add(2*time.Hour))))

	entries, err := s.ListRange(base, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "job-1", entries[0].JobID)
	assert.Equal(t, "job-2", entries[1].JobID)
}

func TestListByUser(t *testing.T) {
	s := newTestStorage(t)

	now := time.Now()
	mine := newTestEntry("job-1", 1, now)
	theirs := newTestEntry("job-2", 1, now)
	theirs.UserID = "user-2"
	require.NoError(t, s.Append(mine))
	require.NoError(t, s.Append(theirs))

	entries, err := s.ListByUser("user-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "job-1", entries[0].JobID)
}

func TestCount(t *testing.T) {
	s := newTestStorage(t)

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, s.Append(newTestEntry("job-1", 1, time.Now())))
	require.NoError(t, s.Append(newTestEntry("job-1", 2, time.Now())))

	n, err = s.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
