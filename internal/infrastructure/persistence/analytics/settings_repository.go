package analytics

import (
	"fmt"
	"time"

	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/database"
	"github.com/AmPepSoc/analytics-go/pkg/config"
)

// SQLSettingsRepository reads and writes the singleton settings row.
type SQLSettingsRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLSettingsRepository creates a new instance of the repository.
func NewSQLSettingsRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLSettingsRepository {
	return &SQLSettingsRepository{
		db:     db,
		logger: logger,
	}
}

// Load reads the settings row. The row is seeded at schema creation, so
// a missing row is an error rather than an implicit default.
func (r *SQLSettingsRepository) Load() (*analytics.Settings, error) {
	const query = `
		SELECT enabled, track_page_views, track_searches, track_errors, track_downloads,
			sampling_rate, max_events_per_minute,
			raw_event_retention_days, daily_summary_retention_days, debug_log_retention_days,
			bot_user_agents, report_recipients, send_weekly_reports, report_day,
			debug_mode, test_mode, updated_at
		FROM analytics_settings
		WHERE id = 1`

	start := time.Now()
	var (
		settings     analytics.Settings
		botAgents    string
		recipients   string
		updatedAtStr string
	)
	err := r.db.QueryRow(query).Scan(
		&settings.Enabled,
		&settings.TrackPageViews,
		&settings.TrackSearches,
		&settings.TrackErrors,
		&settings.TrackDownloads,
		&settings.SamplingRate,
		&settings.MaxEventsPerMinute,
		&settings.RawEventRetentionDays,
		&settings.DailySummaryRetentionDays,
		&settings.DebugLogRetentionDays,
		&botAgents,
		&recipients,
		&settings.SendWeeklyReports,
		&settings.ReportDay,
		&settings.DebugMode,
		&settings.TestMode,
		&updatedAtStr,
	)
	if err != nil {
		r.logger.Database().Error("Settings load failed", "error", err.Error())
		return nil, fmt.Errorf("failed to load analytics settings: %w", err)
	}

	if err := unmarshalJSON(botAgents, &settings.BotUserAgents); err != nil {
		return nil, fmt.Errorf("failed to decode bot agent list: %w", err)
	}
	if err := unmarshalJSON(recipients, &settings.ReportRecipients); err != nil {
		return nil, fmt.Errorf("failed to decode recipient list: %w", err)
	}
	settings.UpdatedAt, err = parseTimestamp(updatedAtStr)
	if err != nil {
		return nil, err
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return &settings, nil
}

// Save overwrites the singleton settings row.
func (r *SQLSettingsRepository) Save(settings *analytics.Settings) error {
	const query = `
		UPDATE analytics_settings SET
			enabled = ?, track_page_views = ?, track_searches = ?, track_errors = ?, track_downloads = ?,
			sampling_rate = ?, max_events_per_minute = ?,
			raw_event_retention_days = ?, daily_summary_retention_days = ?, debug_log_retention_days = ?,
			bot_user_agents = ?, report_recipients = ?, send_weekly_reports = ?, report_day = ?,
			debug_mode = ?, test_mode = ?, updated_at = ?
		WHERE id = 1`

	botAgents, err := marshalJSON(settings.BotUserAgents, "[]")
	if err != nil {
		return err
	}
	recipients, err := marshalJSON(settings.ReportRecipients, "[]")
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = r.db.Exec(
		query,
		settings.Enabled,
		settings.TrackPageViews,
		settings.TrackSearches,
		settings.TrackErrors,
		settings.TrackDownloads,
		settings.SamplingRate,
		settings.MaxEventsPerMinute,
		settings.RawEventRetentionDays,
		settings.DailySummaryRetentionDays,
		settings.DebugLogRetentionDays,
		botAgents,
		recipients,
		settings.SendWeeklyReports,
		settings.ReportDay,
		settings.DebugMode,
		settings.TestMode,
		settings.UpdatedAt.Format(sqliteTimeFormat),
	)
	if err != nil {
		r.logger.Database().Error("Settings save failed", "error", err.Error())
		return fmt.Errorf("failed to save analytics settings: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return nil
}
