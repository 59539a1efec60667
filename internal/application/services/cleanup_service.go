package services

import (
	"time"

	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	repositories "github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/analytics"
)

// CleanupService enforces the retention windows configured in settings.
type CleanupService struct {
	events       *repositories.SQLEventRepository
	customEvents *repositories.SQLCustomEventRepository
	summaries    *repositories.SQLSummaryRepository
	debugLogs    *repositories.SQLDebugLogRepository
	settings     *SettingsService
	logger       *logging.ChanneledLogger
}

// NewCleanupService creates a new cleanup service with its dependencies.
func NewCleanupService(
	events *repositories.SQLEventRepository,
	customEvents *repositories.SQLCustomEventRepository,
	summaries *repositories.SQLSummaryRepository,
	debugLogs *repositories.SQLDebugLogRepository,
	settings *SettingsService,
	logger *logging.ChanneledLogger,
) *CleanupService {
	return &CleanupService{
		events:       events,
		customEvents: customEvents,
		summaries:    summaries,
		debugLogs:    debugLogs,
		settings:     settings,
		logger:       logger,
	}
}

// Run deletes expired rows across every retained table. Each table is
// handled independently: a failure on one does not stop the others.
func (s *CleanupService) Run(now time.Time) {
	settings := s.settings.Current()
	if settings == nil {
		return
	}

	eventCutoff := now.AddDate(0, 0, -settings.RawEventRetentionDays)
	if removed, err := s.events.DeleteOlderThan(eventCutoff); err != nil {
		s.logger.System().Error("Event retention cleanup failed", "error", err.Error())
	} else if removed > 0 {
		s.logger.System().Info("Expired events removed", "count", removed)
	}

	if removed, err := s.customEvents.DeleteOlderThan(eventCutoff); err != nil {
		s.logger.System().Error("Custom event retention cleanup failed", "error", err.Error())
	} else if removed > 0 {
		s.logger.System().Info("Expired custom events removed", "count", removed)
	}

	summaryCutoff := now.AddDate(0, 0, -settings.DailySummaryRetentionDays)
	if removed, err := s.summaries.DeleteOlderThan(summaryCutoff); err != nil {
		s.logger.System().Error("Summary retention cleanup failed", "error", err.Error())
	} else if removed > 0 {
		s.logger.System().Info("Expired summaries removed", "count", removed)
	}

	debugCutoff := now.AddDate(0, 0, -settings.DebugLogRetentionDays)
	if removed, err := s.debugLogs.DeleteOlderThan(debugCutoff); err != nil {
		s.logger.System().Error("Debug log retention cleanup failed", "error", err.Error())
	} else if removed > 0 {
		s.logger.System().Info("Expired debug logs removed", "count", removed)
	}
}
