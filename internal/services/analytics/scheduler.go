// -----------------------------------------------------------------------
// Scheduler - Periodic usage rollup logging
// -----------------------------------------------------------------------

package analytics

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// Scheduler runs the usage rollup on a cron schedule and logs the result.
type Scheduler struct {
	service *Service
	cron    *cron.Cron
	logger  arbor.ILogger
}

// NewScheduler creates a rollup scheduler over the analytics service.
func NewScheduler(service *Service, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		service: service,
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
	}
}

// Start begins scheduled rollups. The schedule uses the six-field cron
// format with seconds.
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		// Default: hourly on the hour
		schedule = "0 0 * * * *"
	}

	_, err := s.cron.AddFunc(schedule, func() {
		s.runRollup()
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", schedule).
		Msg("Analytics rollup scheduler started")

	return nil
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info().Msg("Analytics rollup scheduler stopped")
}

// RunNow triggers an immediate rollup.
func (s *Scheduler) RunNow() {
	s.logger.Info().Msg("Triggering immediate analytics rollup")
	go s.runRollup()
}

func (s *Scheduler) runRollup() {
	now := time.Now()
	report, err := s.service.UsageReport(now.Add(-24*time.Hour), now)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("Analytics rollup failed")
		return
	}

	s.logger.Info().
		Int("attempts", report.Attempts).
		Int("successes", report.Successes).
		Int("failures", report.Failures).
		Int("total_tokens", report.TotalTokens).
		Str("estimated_cost", fmt.Sprintf("$%.4f", report.EstimatedCost)).
		Msg("Analytics rollup completed")
}
