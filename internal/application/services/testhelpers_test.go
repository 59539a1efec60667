package services

import (
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/database"
)

func newTestDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &database.DB{DB: db}, mock
}

func newTestLogger(t *testing.T) *logging.ChanneledLogger {
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

// newSettingsService seeds a service with a fixed snapshot and a TTL long
// enough that tests never hit the database for a refresh.
func newSettingsService(t *testing.T, settings *analytics.Settings) *SettingsService {
	t.Helper()
	s := &SettingsService{
		logger: newTestLogger(t),
		ttl:    time.Hour,
	}
	s.snapshot.Store(settings)
	s.lastRefresh.Store(time.Now().UnixNano())
	return s
}
