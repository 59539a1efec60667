package services

import (
	"fmt"
	"time"

	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	repositories "github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/security"
)

// SummaryService computes the per-day rollup. Rebuilding a day is
// idempotent: the summary row is keyed on its date and replaced whole.
type SummaryService struct {
	events    *repositories.SQLEventRepository
	journeys  *repositories.SQLJourneyRepository
	summaries *repositories.SQLSummaryRepository
	logger    *logging.ChanneledLogger
}

// NewSummaryService creates a new summary service with its dependencies.
func NewSummaryService(
	events *repositories.SQLEventRepository,
	journeys *repositories.SQLJourneyRepository,
	summaries *repositories.SQLSummaryRepository,
	logger *logging.ChanneledLogger,
) *SummaryService {
	return &SummaryService{
		events:    events,
		journeys:  journeys,
		summaries: summaries,
		logger:    logger,
	}
}

// BuildDay computes and stores the summary for one calendar day. The
// day is marked complete only when it lies fully in the past.
func (s *SummaryService) BuildDay(day time.Time, now time.Time) (*analytics.DailySummary, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	s.logger.Report().Info("Building daily summary", "date", dayStart.Format("2006-01-02"))

	events, err := s.events.FindReportEventsInRange(dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load day events: %w", err)
	}

	stats, err := s.journeys.StatsInRange(dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load journey stats: %w", err)
	}

	summary := &analytics.DailySummary{
		ID:                 security.GenerateULID(),
		Date:               dayStart,
		TotalSessions:      stats.TotalSessions,
		AvgSessionDuration: stats.AvgDurationSeconds,
		TopPages:           analytics.TopPages(events, 10),
		TopSearches:        analytics.TopSearches(events, 20),
		IsComplete:         !dayEnd.After(now),
	}
	if stats.TotalSessions > 0 {
		summary.BounceRate = round1f(float64(stats.BounceSessions) / float64(stats.TotalSessions) * 100)
	}

	visitors := make(map[string]struct{})
	for _, event := range events {
		switch event.Type {
		case analytics.EventPageView:
			summary.TotalPageViews++
		case analytics.EventError:
			summary.ErrorCount++
		}
		if event.SessionID != "" {
			visitors[event.SessionID] = struct{}{}
		}
	}
	summary.UniqueVisitors = len(visitors)

	if err := s.summaries.Upsert(summary); err != nil {
		return nil, err
	}

	s.logger.Report().Info("Daily summary stored",
		"date", dayStart.Format("2006-01-02"),
		"pageViews", summary.TotalPageViews,
		"visitors", summary.UniqueVisitors)
	return summary, nil
}

// Range returns stored summaries between two dates inclusive.
func (s *SummaryService) Range(startDate, endDate time.Time) ([]*analytics.DailySummary, error) {
	return s.summaries.FindByDateRange(startDate, endDate)
}
