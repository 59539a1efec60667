package analytics

import (
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/database"
)

// newTestDB returns a sqlmock-backed DB wrapper for repository tests.
func newTestDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &database.DB{DB: db}, mock
}

// newTestLogger returns a logger that stays quiet below the error level
// and never touches the filesystem.
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
