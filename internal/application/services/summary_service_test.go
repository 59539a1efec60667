package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	repositories "github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/analytics"
)

func newSummaryService(t *testing.T) (*SummaryService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newTestDB(t)
	logger := newTestLogger(t)
	return NewSummaryService(
		repositories.NewSQLEventRepository(db, logger),
		repositories.NewSQLJourneyRepository(db, logger),
		repositories.NewSQLSummaryRepository(db, logger),
		logger,
	), mock
}

func TestBuildDayKeepsTwentyTopSearches(t *testing.T) {
	svc, mock := newSummaryService(t)

	// 25 distinct queries on the day; the rollup keeps the 20 busiest.
	eventRows := sqlmock.NewRows([]string{
		"event_type", "session_id", "page_url", "event_data", "timestamp", "processing_status",
	})
	for i := 0; i < 25; i++ {
		eventRows.AddRow("search", fmt.Sprintf("s%d", i), "/catalog",
			fmt.Sprintf(`{"query": "topic-%02d"}`, i), "2026-08-20 10:00:00", "processed")
	}
	mock.ExpectQuery("FROM events").WillReturnRows(eventRows)

	statsRows := sqlmock.NewRows([]string{"total", "bounces", "avg_duration", "avg_pages", "converted"}).
		AddRow(25, 5, 60.0, 2.0, 0)
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(statsRows)

	mock.ExpectExec("INSERT INTO daily_summaries").
		WillReturnResult(sqlmock.NewResult(1, 1))

	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	summary, err := svc.BuildDay(day, day.AddDate(0, 0, 2))
	require.NoError(t, err)

	assert.Len(t, summary.TopSearches, 20)
	assert.True(t, summary.IsComplete)
	assert.Equal(t, 25, summary.UniqueVisitors)
	assert.NoError(t, mock.ExpectationsWereMet())
}
