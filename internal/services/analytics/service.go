// -----------------------------------------------------------------------
// Analytics - Usage and cost rollups over the interaction log
// -----------------------------------------------------------------------

package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cogito/internal/interfaces"
	"github.com/ternarybob/cogito/internal/models"
)

// OperationUsage aggregates attempts for one job kind.
type OperationUsage struct {
	Operation        models.JobKind `json:"operation"`
	Attempts         int            `json:"attempts"`
	Successes        int            `json:"successes"`
	Failures         int            `json:"failures"`
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	TotalTokens      int            `json:"total_tokens"`
	EstimatedCost    float64        `json:"estimated_cost"`
	AvgDurationMs    int64          `json:"avg_duration_ms"`
}

// DailyUsage aggregates attempts for one calendar day (UTC).
type DailyUsage struct {
	Date          string  `json:"date"`
	Attempts      int     `json:"attempts"`
	Successes     int     `json:"successes"`
	TotalTokens   int     `json:"total_tokens"`
	EstimatedCost float64 `json:"estimated_cost"`
}

// UsageReport is the full rollup for a time window.
type UsageReport struct {
	From             time.Time        `json:"from"`
	To               time.Time        `json:"to"`
	Attempts         int              `json:"attempts"`
	Successes        int              `json:"successes"`
	Failures         int              `json:"failures"`
	Repairs          int              `json:"repairs"`
	PromptTokens     int              `json:"prompt_tokens"`
	CompletionTokens int              `json:"completion_tokens"`
	TotalTokens      int              `json:"total_tokens"`
	EstimatedCost    float64          `json:"estimated_cost"`
	SuccessRate      float64          `json:"success_rate"`
	ByOperation      []OperationUsage `json:"by_operation"`
	ByModel          map[string]int   `json:"by_model"`
	Daily            []DailyUsage     `json:"daily"`
}

// Service computes usage and cost rollups from stored interaction entries.
type Service struct {
	store  interfaces.InteractionStorage
	logger arbor.ILogger
}

// NewService creates an analytics service over the given store.
func NewService(store interfaces.InteractionStorage, logger arbor.ILogger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// UsageReport rolls up all entries in [from, to).
func (s *Service) UsageReport(from, to time.Time) (*UsageReport, error) {
	entries, err := s.store.ListRange(from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list interaction entries: %w", err)
	}
	return buildReport(from, to, entries), nil
}

// UserUsageReport rolls up the most recent entries for one user. Entries are
// keyed by the user passed at submission; jobs submitted without a user are
// not included.
func (s *Service) UserUsageReport(userID string, limit int) (*UsageReport, error) {
	entries, err := s.store.ListByUser(userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries for user %s: %w", userID, err)
	}

	var from, to time.Time
	for _, e := range entries {
		if from.IsZero() || e.CreatedAt.Before(from) {
			from = e.CreatedAt
		}
		if e.CreatedAt.After(to) {
			to = e.CreatedAt
		}
	}
	return buildReport(from, to, entries), nil
}

func buildReport(from, to time.Time, entries []*models.InteractionLogEntry) *UsageReport {
	report := &UsageReport{
		From:    from,
		To:      to,
		ByModel: make(map[string]int),
	}

	type opAgg struct {
		usage      OperationUsage
		durationMs int64
	}
	byOp := make(map[models.JobKind]*opAgg)
	byDay := make(map[string]*DailyUsage)

	for _, e := range entries {
		report.Attempts++
		if e.Success {
			report.Successes++
		} else {
			report.Failures++
		}
		if e.Repair {
			report.Repairs++
		}
		report.PromptTokens += e.PromptTokens
		report.CompletionTokens += e.CompletionTokens
		report.TotalTokens += e.TotalTokens
		report.EstimatedCost += e.EstimatedCost
		report.ByModel[e.Model]++

		agg, ok := byOp[e.Operation]
		if !ok {
			agg = &opAgg{usage: OperationUsage{Operation: e.Operation}}
			byOp[e.Operation] = agg
		}
		agg.usage.Attempts++
		if e.Success {
			agg.usage.Successes++
		} else {
			agg.usage.Failures++
		}
		agg.usage.PromptTokens += e.PromptTokens
		agg.usage.CompletionTokens += e.CompletionTokens
		agg.usage.TotalTokens += e.TotalTokens
		agg.usage.EstimatedCost += e.EstimatedCost
		agg.durationMs += e.DurationMs

		day := e.CreatedAt.UTC().Format("2006-01-02")
		du, ok := byDay[day]
		if !ok {
			du = &DailyUsage{Date: day}
			byDay[day] = du
		}
		du.Attempts++
		if e.Success {
			du.Successes++
		}
		du.TotalTokens += e.TotalTokens
		du.EstimatedCost += e.EstimatedCost
	}

	if report.Attempts > 0 {
		report.SuccessRate = float64(report.Successes) / float64(report.Attempts)
	}

	for _, kind := range []models.JobKind{
		models.JobKindGenerate,
		models.JobKindEvaluate,
		models.JobKindIterate,
		models.JobKindSummarize,
	} {
		agg, ok := byOp[kind]
		if !ok {
			continue
		}
		if agg.usage.Attempts > 0 {
			agg.usage.AvgDurationMs = agg.durationMs / int64(agg.usage.Attempts)
		}
		report.ByOperation = append(report.ByOperation, agg.usage)
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)
	for _, day := range days {
		report.Daily = append(report.Daily, *byDay[day])
	}

	return report
}
