package handlers

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmPepSoc/analytics-go/internal/application/services"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	repositories "github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/database"
	"github.com/AmPepSoc/analytics-go/internal/presentation/http/middleware"
	"github.com/AmPepSoc/analytics-go/pkg/config"
)

func newHandlerTestLogger(t *testing.T) *logging.ChanneledLogger {
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

func experimentTestRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })
	db := &database.DB{DB: rawDB}
	logger := newHandlerTestLogger(t)

	experiments := services.NewExperimentService(
		repositories.NewSQLExperimentRepository(db, logger),
		services.NewJourneyService(repositories.NewSQLJourneyRepository(db, logger), logger),
		logger,
	)
	h := NewExperimentHandlers(experiments, logger)

	r := gin.New()
	r.Use(middleware.SessionMiddleware())
	r.POST("/api/v1/analytics/ab-tests/:name/variant", h.PostVariant)
	r.POST("/api/v1/analytics/ab-tests/:name/conversion", h.PostConversion)
	return r, mock
}

func storedExperimentRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "description", "is_active", "start_date", "end_date",
		"traffic_allocation", "variants", "primary_goal", "secondary_goals",
		"total_participants", "conversions",
	}).AddRow("t1", "cta-color", "", true, nil, nil, 1.0, `{"a": {}, "b": {}}`, "signup", "[]", 2, "{}")
}

func storedParticipationRow(sessionID string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "test_id", "session_id", "user_id", "variant", "assigned_at",
		"converted", "conversion_goal", "converted_at", "conversion_value",
	}).AddRow("p1", "t1", sessionID, nil, "b", "2026-08-20 10:00:00", false, "", nil, nil)
}

func TestPostVariantReadsSessionFromBody(t *testing.T) {
	r, mock := experimentTestRouter(t)

	mock.ExpectQuery("FROM ab_tests WHERE name").
		WithArgs("cta-color").
		WillReturnRows(storedExperimentRow())
	mock.ExpectQuery("FROM ab_test_participations").
		WithArgs("t1", "sdk-session").
		WillReturnRows(storedParticipationRow("sdk-session"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analytics/ab-tests/cta-color/variant",
		strings.NewReader(`{"session_id": "sdk-session"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"variant": "b"}`, w.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostVariantFallsBackToSessionCookie(t *testing.T) {
	r, mock := experimentTestRouter(t)

	mock.ExpectQuery("FROM ab_tests WHERE name").
		WithArgs("cta-color").
		WillReturnRows(storedExperimentRow())
	mock.ExpectQuery("FROM ab_test_participations").
		WithArgs("t1", "browser-session").
		WillReturnRows(storedParticipationRow("browser-session"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analytics/ab-tests/cta-color/variant", nil)
	req.AddCookie(&http.Cookie{Name: config.SessionCookieName, Value: "browser-session"})
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"variant": "b"}`, w.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostVariantUnknownTestReturns404(t *testing.T) {
	r, mock := experimentTestRouter(t)

	mock.ExpectQuery("FROM ab_tests WHERE name").
		WithArgs("no-such-test").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analytics/ab-tests/no-such-test/variant",
		strings.NewReader(`{"session_id": "s1"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostConversionReadsGoalAndValueFromBody(t *testing.T) {
	r, mock := experimentTestRouter(t)

	mock.ExpectQuery("FROM ab_tests WHERE name").
		WithArgs("cta-color").
		WillReturnRows(storedExperimentRow())
	mock.ExpectQuery("FROM ab_test_participations").
		WithArgs("t1", "sdk-session").
		WillReturnRows(storedParticipationRow("sdk-session"))
	mock.ExpectExec("UPDATE ab_test_participations").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analytics/ab-tests/cta-color/conversion",
		strings.NewReader(`{"session_id": "sdk-session", "goal": "signup", "value": 49.5}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success": true, "converted": true}`, w.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}
