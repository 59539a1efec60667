package middleware

import (
	"database/sql"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmPepSoc/analytics-go/internal/application/services"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	repositories "github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/database"
)

func newTrackingTestLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToFile:    false,
		OutputToConsole: false,
		JSONFormat:      true,
		DefaultLevel:    slog.LevelError + 1,
	})
	require.NoError(t, err)
	return logger
}

var trackingSettingsColumns = []string{
	"enabled", "track_page_views", "track_searches", "track_errors", "track_downloads",
	"sampling_rate", "max_events_per_minute",
	"raw_event_retention_days", "daily_summary_retention_days", "debug_log_retention_days",
	"bot_user_agents", "report_recipients", "send_weekly_reports", "report_day",
	"debug_mode", "test_mode", "updated_at",
}

// trackingTestRouter builds a router with the full session + tracking
// middleware chain backed by a mocked database. The settings snapshot
// is loaded once at construction; everything after that is the SQL the
// middleware itself produces.
func trackingTestRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })
	db := &database.DB{DB: rawDB}
	logger := newTrackingTestLogger(t)

	rows := sqlmock.NewRows(trackingSettingsColumns).
		AddRow(true, true, true, true, true, 1.0, 1000, 30, 365, 7,
			`["bot","crawler","spider"]`, `[]`, false, 1, false, false, "2026-03-02 10:00:00")
	mock.ExpectQuery("SELECT (.+) FROM analytics_settings").WillReturnRows(rows)

	settings, err := services.NewSettingsService(repositories.NewSQLSettingsRepository(db, logger), logger)
	require.NoError(t, err)

	tracking := services.NewTrackingService(repositories.NewSQLEventRepository(db, logger), settings, logger)
	journeys := services.NewJourneyService(repositories.NewSQLJourneyRepository(db, logger), logger)
	debugLogs := repositories.NewSQLDebugLogRepository(db, logger)

	r := gin.New()
	r.Use(SessionMiddleware())
	r.Use(TrackingMiddleware(tracking, journeys, debugLogs, logger))
	r.GET("/news/", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/catalog", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom/", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	return r, mock
}

// expectJourneyFirstVisit mocks the get-or-create-then-update cycle a
// first page view triggers for a fresh session.
func expectJourneyFirstVisit(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("FROM journeys WHERE session_id").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO journeys").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE journeys SET").WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestTrackingMiddlewareRecordsPageViewAndJourney(t *testing.T) {
	r, mock := trackingTestRouter(t)

	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(1, 1))
	expectJourneyFirstVisit(mock)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/news/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackingMiddlewareRecordsNotFound(t *testing.T) {
	r, mock := trackingTestRouter(t)

	// One error event, no page view and no journey work.
	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(1, 1))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/does-not-exist/", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackingMiddlewareSkipsServerErrorsOutsideDebugMode(t *testing.T) {
	r, mock := trackingTestRouter(t)

	// No expectations: a 500 must leave no trace in the store.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackingMiddlewareSkipsExcludedPaths(t *testing.T) {
	r, mock := trackingTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackingMiddlewareRecordsSearchEvent(t *testing.T) {
	r, mock := trackingTestRouter(t)

	// Page view first, then the search event, then the journey cycle.
	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(2, 1))
	expectJourneyFirstVisit(mock)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/catalog?search=lasers", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackingMiddlewareIgnoresUnrecognizedSearchParam(t *testing.T) {
	r, mock := trackingTestRouter(t)

	// "query" is not a search parameter; only the page view is stored.
	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(1, 1))
	expectJourneyFirstVisit(mock)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/catalog?query=lasers", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func searchTestContext(t *testing.T, target string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	return c
}

func TestSearchQueryParameterPrecedence(t *testing.T) {
	assert.Equal(t, "lasers", searchQuery(searchTestContext(t, "/catalog?search=lasers")))
	assert.Equal(t, "optics", searchQuery(searchTestContext(t, "/catalog?q=optics")))
	assert.Equal(t, "lasers", searchQuery(searchTestContext(t, "/catalog?search=lasers&q=optics")))
	assert.Equal(t, "", searchQuery(searchTestContext(t, "/catalog?query=lasers")))
}

func TestResultsPageDefaultsToFirst(t *testing.T) {
	assert.Equal(t, 3, resultsPage(searchTestContext(t, "/catalog?search=x&page=3")))
	assert.Equal(t, 1, resultsPage(searchTestContext(t, "/catalog?search=x")))
	assert.Equal(t, 1, resultsPage(searchTestContext(t, "/catalog?search=x&page=0")))
	assert.Equal(t, 1, resultsPage(searchTestContext(t, "/catalog?search=x&page=abc")))
}

func TestResidualFiltersExcludeSearchAndPagination(t *testing.T) {
	c := searchTestContext(t, "/catalog?search=lasers&q=dup&page=2&topic=optics&year=2026")
	assert.Equal(t, map[string]string{"topic": "optics", "year": "2026"}, residualFilters(c))
}
