package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
	repositories "github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/analytics"
)

var settingsTestColumns = []string{
	"enabled", "track_page_views", "track_searches", "track_errors", "track_downloads",
	"sampling_rate", "max_events_per_minute",
	"raw_event_retention_days", "daily_summary_retention_days", "debug_log_retention_days",
	"bot_user_agents", "report_recipients", "send_weekly_reports", "report_day",
	"debug_mode", "test_mode", "updated_at",
}

func TestNewSettingsServiceLoadsSnapshot(t *testing.T) {
	db, mock := newTestDB(t)
	repo := repositories.NewSQLSettingsRepository(db, newTestLogger(t))

	rows := sqlmock.NewRows(settingsTestColumns).
		AddRow(true, true, true, true, true, 0.5, 1000, 30, 365, 7,
			`["bot","crawler"]`, `["board@example.org"]`, true, 1, false, false, "2026-03-02 10:00:00")
	mock.ExpectQuery("SELECT (.+) FROM analytics_settings").WillReturnRows(rows)

	svc, err := NewSettingsService(repo, newTestLogger(t))
	require.NoError(t, err)

	settings := svc.Current()
	require.NotNil(t, settings)
	assert.Equal(t, 0.5, settings.SamplingRate)
	assert.Equal(t, []string{"bot", "crawler"}, settings.BotUserAgents)
	assert.Equal(t, []string{"board@example.org"}, settings.ReportRecipients)

	// A second read inside the TTL serves the snapshot without a query.
	assert.Same(t, settings, svc.Current())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsServiceUpdateSwapsSnapshot(t *testing.T) {
	db, mock := newTestDB(t)
	repo := repositories.NewSQLSettingsRepository(db, newTestLogger(t))

	svc := newSettingsService(t, analytics.DefaultSettings())
	svc.repo = repo

	mock.ExpectExec("UPDATE analytics_settings").WillReturnResult(sqlmock.NewResult(0, 1))

	updated := analytics.DefaultSettings()
	updated.SamplingRate = 0.25
	require.NoError(t, svc.Update(updated))

	assert.Equal(t, 0.25, svc.Current().SamplingRate)
	assert.WithinDuration(t, time.Now().UTC(), svc.Current().UpdatedAt, time.Minute)
	assert.NoError(t, mock.ExpectationsWereMet())
}
