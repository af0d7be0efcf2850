package badger

import (
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cogito/internal/common"
	"github.com/ternarybob/cogito/internal/interfaces"
)

// gcInterval is how often value log garbage collection runs.
const gcInterval = 10 * time.Minute

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db          *BadgerDB
	interaction interfaces.InteractionStorage
	logger      arbor.ILogger
	stopGC      chan struct{}
	gcDone      chan struct{}
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:          db,
		interaction: NewInteractionStorage(db, logger),
		logger:      logger,
		stopGC:      make(chan struct{}),
		gcDone:      make(chan struct{}),
	}
	go manager.runGCLoop()

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// InteractionStorage returns the Interaction storage interface
func (m *Manager) InteractionStorage() interfaces.InteractionStorage {
	return m.interaction
}

// runGCLoop periodically reclaims value log space until Close is called.
func (m *Manager) runGCLoop() {
	defer close(m.gcDone)

	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopGC:
			return
		case <-ticker.C:
			if err := m.db.RunGC(0.5); err != nil {
				m.logger.Warn().Err(err).Msg("Badger value log GC failed")
			}
		}
	}
}

// Close stops maintenance and closes the database connection
func (m *Manager) Close() error {
	m.logger.Debug().Msg("Closing Badger storage manager")
	close(m.stopGC)
	<-m.gcDone
	return m.db.Close()
}
