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

func TestEventRepositoryStore(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewSQLEventRepository(db, newTestLogger(t))

	loadTime := 120
	event := &analytics.Event{
		ID:               "evt-1",
		Type:             analytics.EventPageView,
		Timestamp:        time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		SessionID:        "s1",
		IPAddress:        "203.0.113.9",
		UserAgent:        "Mozilla/5.0",
		PageURL:          "https://example.org/news/",
		EventData:        map[string]any{"status_code": 200},
		ProcessingStatus: analytics.StatusProcessed,
		PageLoadTimeMS:   &loadTime,
	}

	mock.ExpectExec("INSERT INTO events").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Store(event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryStoreFailure(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewSQLEventRepository(db, newTestLogger(t))

	mock.ExpectExec("INSERT INTO events").
		WillReturnError(errors.New("disk I/O error"))

	err := repo.Store(&analytics.Event{ID: "evt-1", Type: analytics.EventPageView})
	assert.ErrorContains(t, err, "failed to store event")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryFindRetryable(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewSQLEventRepository(db, newTestLogger(t))

	columns := []string{
		"id", "event_type", "timestamp", "session_id", "user_id", "ip_address", "user_agent",
		"page_url", "referrer_url", "event_data", "processing_status", "error_count", "last_error",
		"page_load_time_ms", "is_bot",
	}
	rows := sqlmock.NewRows(columns).
		AddRow("evt-1", "page_view", "2026-03-02 10:00:00", "s1", nil, "", "",
			"/a", "", `{}`, "failed", 1, "timeout", nil, false)

	mock.ExpectQuery("SELECT (.+) FROM events").
		WithArgs(10).
		WillReturnRows(rows)

	events, err := repo.FindRetryable(10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-1", events[0].ID)
	assert.Equal(t, analytics.StatusFailed, events[0].ProcessingStatus)
	assert.True(t, events[0].ShouldRetry())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryCountEventsInRange(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewSQLEventRepository(db, newTestLogger(t))

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := repo.CountEventsInRange(time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 42, count)
}

func TestEventRepositoryFindReportEventsExtractsQuery(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewSQLEventRepository(db, newTestLogger(t))

	rows := sqlmock.NewRows([]string{"event_type", "session_id", "page_url", "event_data", "timestamp", "processing_status"}).
		AddRow("search", "s1", "/search", `{"query":"optics"}`, "2026-03-02 10:00:00", "processed").
		AddRow("page_view", "s1", "/news/", `{}`, "2026-03-02 10:01:00", "processed")

	mock.ExpectQuery("SELECT (.+) FROM events").
		WillReturnRows(rows)

	events, err := repo.FindReportEventsInRange(time.Now().AddDate(0, 0, -7), time.Now())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "optics", events[0].Query)
	assert.Equal(t, analytics.EventPageView, events[1].Type)
}
