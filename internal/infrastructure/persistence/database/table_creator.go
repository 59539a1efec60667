// Package database provides schema instantiation
package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
)

// TableCreator handles the creation of the analytics database schema.
type TableCreator struct{}

// NewTableCreator creates a new TableCreator.
func NewTableCreator() *TableCreator {
	return &TableCreator{}
}

// CreateSchema executes all necessary queries to build the database tables and indexes.
func (tc *TableCreator) CreateSchema(db *sql.DB) error {
	for _, tableSQL := range tables {
		if _, err := db.Exec(tableSQL); err != nil {
			return fmt.Errorf("failed to create table for query [%s]: %w", tableSQL, err)
		}
	}

	for _, indexSQL := range indexes {
		if _, err := db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index for query [%s]: %w", indexSQL, err)
		}
	}
	return nil
}

// SeedInitialSettings idempotently writes the singleton settings row so the
// pipeline has a configuration to read on first boot.
func (tc *TableCreator) SeedInitialSettings(db *sql.DB) error {
	var exists bool
	err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM analytics_settings WHERE id = 1)").Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check for settings row: %w", err)
	}
	if exists {
		return nil
	}

	defaults := analytics.DefaultSettings()
	botAgents, err := json.Marshal(defaults.BotUserAgents)
	if err != nil {
		return fmt.Errorf("failed to marshal default bot agents: %w", err)
	}
	recipients, err := json.Marshal(defaults.ReportRecipients)
	if err != nil {
		return fmt.Errorf("failed to marshal default recipients: %w", err)
	}

	_, err = db.Exec(`INSERT INTO analytics_settings (
		id, enabled, track_page_views, track_searches, track_errors, track_downloads,
		sampling_rate, max_events_per_minute,
		raw_event_retention_days, daily_summary_retention_days, debug_log_retention_days,
		bot_user_agents, report_recipients, send_weekly_reports, report_day,
		debug_mode, test_mode, updated_at
	) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		defaults.Enabled, defaults.TrackPageViews, defaults.TrackSearches, defaults.TrackErrors, defaults.TrackDownloads,
		defaults.SamplingRate, defaults.MaxEventsPerMinute,
		defaults.RawEventRetentionDays, defaults.DailySummaryRetentionDays, defaults.DebugLogRetentionDays,
		string(botAgents), string(recipients), defaults.SendWeeklyReports, defaults.ReportDay,
		defaults.DebugMode, defaults.TestMode, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert default settings: %w", err)
	}
	return nil
}

var tables = []string{
	`CREATE TABLE IF NOT EXISTS events (id TEXT PRIMARY KEY, event_type TEXT NOT NULL, timestamp TIMESTAMP NOT NULL, session_id TEXT NOT NULL, user_id TEXT, ip_address TEXT, user_agent TEXT, page_url TEXT, referrer_url TEXT, event_data TEXT NOT NULL DEFAULT '{}', processing_status TEXT NOT NULL DEFAULT 'pending', error_count INTEGER NOT NULL DEFAULT 0, last_error TEXT, page_load_time_ms INTEGER, is_bot BOOLEAN NOT NULL DEFAULT 0)`,
	`CREATE TABLE IF NOT EXISTS custom_events (event_id TEXT PRIMARY KEY, name TEXT NOT NULL, category TEXT NOT NULL DEFAULT 'general', session_id TEXT NOT NULL, user_id TEXT, timestamp TIMESTAMP NOT NULL, properties TEXT NOT NULL DEFAULT '{}', value REAL, page_url TEXT, referrer_url TEXT, user_agent TEXT, ip_address TEXT, processed BOOLEAN NOT NULL DEFAULT 0, processed_at TIMESTAMP)`,
	`CREATE TABLE IF NOT EXISTS journeys (id TEXT PRIMARY KEY, session_id TEXT NOT NULL UNIQUE, user_id TEXT, start_time TIMESTAMP NOT NULL, end_time TIMESTAMP, duration_seconds INTEGER NOT NULL DEFAULT 0, entry_page TEXT, exit_page TEXT, page_path TEXT NOT NULL DEFAULT '[]', page_count INTEGER NOT NULL DEFAULT 0, is_bounce BOOLEAN NOT NULL DEFAULT 1, completed_goal TEXT, conversion_value REAL, total_events INTEGER NOT NULL DEFAULT 0, search_count INTEGER NOT NULL DEFAULT 0, error_count INTEGER NOT NULL DEFAULT 0, device_type TEXT, referrer_domain TEXT)`,
	`CREATE TABLE IF NOT EXISTS ab_tests (id TEXT PRIMARY KEY, name TEXT NOT NULL UNIQUE, description TEXT, is_active BOOLEAN NOT NULL DEFAULT 0, start_date TIMESTAMP, end_date TIMESTAMP, traffic_allocation REAL NOT NULL DEFAULT 1.0, variants TEXT NOT NULL DEFAULT '{}', primary_goal TEXT, secondary_goals TEXT NOT NULL DEFAULT '[]', total_participants INTEGER NOT NULL DEFAULT 0, conversions TEXT NOT NULL DEFAULT '{}')`,
	`CREATE TABLE IF NOT EXISTS ab_test_participations (id TEXT PRIMARY KEY, test_id TEXT NOT NULL REFERENCES ab_tests(id), session_id TEXT NOT NULL, user_id TEXT, variant TEXT NOT NULL, assigned_at TIMESTAMP NOT NULL, converted BOOLEAN NOT NULL DEFAULT 0, conversion_goal TEXT, converted_at TIMESTAMP, conversion_value REAL, UNIQUE(test_id, session_id))`,
	`CREATE TABLE IF NOT EXISTS conversion_funnels (id TEXT PRIMARY KEY, name TEXT NOT NULL UNIQUE, description TEXT, steps TEXT NOT NULL DEFAULT '[]', is_active BOOLEAN NOT NULL DEFAULT 1, time_window_hours INTEGER NOT NULL DEFAULT 24, total_entries INTEGER NOT NULL DEFAULT 0, total_completions INTEGER NOT NULL DEFAULT 0, conversion_rate REAL NOT NULL DEFAULT 0)`,
	`CREATE TABLE IF NOT EXISTS daily_summaries (id TEXT PRIMARY KEY, date DATE NOT NULL UNIQUE, total_page_views INTEGER NOT NULL DEFAULT 0, unique_visitors INTEGER NOT NULL DEFAULT 0, total_sessions INTEGER NOT NULL DEFAULT 0, avg_session_duration INTEGER NOT NULL DEFAULT 0, bounce_rate REAL NOT NULL DEFAULT 0, top_pages TEXT NOT NULL DEFAULT '[]', top_searches TEXT NOT NULL DEFAULT '[]', error_count INTEGER NOT NULL DEFAULT 0, is_complete BOOLEAN NOT NULL DEFAULT 0)`,
	`CREATE TABLE IF NOT EXISTS weekly_reports (id TEXT PRIMARY KEY, week_start DATE NOT NULL, week_end DATE NOT NULL, report_data TEXT, sent_to TEXT NOT NULL DEFAULT '[]', sent_at TIMESTAMP, is_generated BOOLEAN NOT NULL DEFAULT 0, is_sent BOOLEAN NOT NULL DEFAULT 0, generation_errors TEXT, created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP, UNIQUE(week_start, week_end))`,
	`CREATE TABLE IF NOT EXISTS debug_logs (id INTEGER PRIMARY KEY AUTOINCREMENT, timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP, level TEXT NOT NULL, message TEXT NOT NULL, context TEXT NOT NULL DEFAULT '{}')`,
	`CREATE TABLE IF NOT EXISTS analytics_settings (id INTEGER PRIMARY KEY CHECK (id = 1), enabled BOOLEAN NOT NULL DEFAULT 1, track_page_views BOOLEAN NOT NULL DEFAULT 1, track_searches BOOLEAN NOT NULL DEFAULT 1, track_errors BOOLEAN NOT NULL DEFAULT 1, track_downloads BOOLEAN NOT NULL DEFAULT 1, sampling_rate REAL NOT NULL DEFAULT 1.0, max_events_per_minute INTEGER NOT NULL DEFAULT 1000, raw_event_retention_days INTEGER NOT NULL DEFAULT 30, daily_summary_retention_days INTEGER NOT NULL DEFAULT 365, debug_log_retention_days INTEGER NOT NULL DEFAULT 7, bot_user_agents TEXT NOT NULL DEFAULT '[]', report_recipients TEXT NOT NULL DEFAULT '[]', send_weekly_reports BOOLEAN NOT NULL DEFAULT 1, report_day INTEGER NOT NULL DEFAULT 1, debug_mode BOOLEAN NOT NULL DEFAULT 0, test_mode BOOLEAN NOT NULL DEFAULT 0, updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_events_session_id ON events(session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_events_type_timestamp ON events(event_type, timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_events_status ON events(processing_status)`,
	`CREATE INDEX IF NOT EXISTS idx_custom_events_session_id ON custom_events(session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_custom_events_name_timestamp ON custom_events(name, timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_custom_events_processed ON custom_events(processed)`,
	`CREATE INDEX IF NOT EXISTS idx_journeys_session_id ON journeys(session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_journeys_start_time ON journeys(start_time)`,
	`CREATE INDEX IF NOT EXISTS idx_participations_test_id ON ab_test_participations(test_id)`,
	`CREATE INDEX IF NOT EXISTS idx_participations_session_id ON ab_test_participations(session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_daily_summaries_date ON daily_summaries(date)`,
	`CREATE INDEX IF NOT EXISTS idx_weekly_reports_week ON weekly_reports(week_start, week_end)`,
	`CREATE INDEX IF NOT EXISTS idx_debug_logs_timestamp ON debug_logs(timestamp)`,
}
