package analytics

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
)

var journeyTestColumns = []string{
	"id", "session_id", "user_id", "start_time", "end_time", "duration_seconds",
	"entry_page", "exit_page", "page_path", "page_count", "is_bounce", "completed_goal",
	"conversion_value", "total_events", "search_count", "error_count", "device_type", "referrer_domain",
}

func TestJourneyRepositoryFindBySessionID(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewSQLJourneyRepository(db, newTestLogger(t))

	rows := sqlmock.NewRows(journeyTestColumns).
		AddRow("j1", "s1", nil, "2026-03-02 10:00:00", "2026-03-02 10:05:00", 300,
			"/a", "/b", `["/a","/b"]`, 2, false, "", nil, 2, 0, 0, "desktop", "example.org")

	mock.ExpectQuery("SELECT (.+) FROM journeys WHERE session_id").
		WithArgs("s1").
		WillReturnRows(rows)

	journey, err := repo.FindBySessionID("s1")
	require.NoError(t, err)
	assert.Equal(t, "j1", journey.ID)
	assert.Equal(t, []string{"/a", "/b"}, journey.PagePath)
	assert.Equal(t, 300, journey.DurationSeconds)
	assert.False(t, journey.IsBounce)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJourneyRepositoryFindBySessionIDNotFound(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewSQLJourneyRepository(db, newTestLogger(t))

	mock.ExpectQuery("SELECT (.+) FROM journeys WHERE session_id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(journeyTestColumns))

	_, err := repo.FindBySessionID("missing")
	assert.ErrorIs(t, err, ErrJourneyNotFound)
}

func TestJourneyRepositoryInsertUniqueViolation(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewSQLJourneyRepository(db, newTestLogger(t))

	mock.ExpectExec("INSERT INTO journeys").
		WillReturnError(errors.New("UNIQUE constraint failed: journeys.session_id"))

	journey := analytics.NewJourney("s1", nil, "/a", "", "desktop", time.Now().UTC())
	journey.ID = "j1"

	err := repo.Insert(journey)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: journeys.session_id")))
	assert.True(t, IsUniqueViolation(errors.New("SQLite error: unique constraint violation")))
	assert.False(t, IsUniqueViolation(errors.New("disk I/O error")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestJourneyRepositoryStatsInRange(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewSQLJourneyRepository(db, newTestLogger(t))

	rows := sqlmock.NewRows([]string{"total", "bounces", "avg_duration", "avg_pages", "converted"}).
		AddRow(10, 4, 125.5, 3.2, 2)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(rows)

	stats, err := repo.StatsInRange(time.Now().AddDate(0, 0, -7), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 10, stats.TotalSessions)
	assert.Equal(t, 4, stats.BounceSessions)
	assert.Equal(t, 125, stats.AvgDurationSeconds)
	assert.Equal(t, 3.2, stats.AvgPages)
	assert.Equal(t, 2, stats.ConvertedSessions)
}
