package analytics

import (
	"fmt"
	"time"

	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/database"
	"github.com/AmPepSoc/analytics-go/pkg/config"
)

// SQLDebugLogRepository persists tracking failures captured by the
// middleware error boundary. Writes here must never themselves fail the
// request path, so callers treat errors as advisory.
type SQLDebugLogRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLDebugLogRepository creates a new instance of the repository.
func NewSQLDebugLogRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLDebugLogRepository {
	return &SQLDebugLogRepository{
		db:     db,
		logger: logger,
	}
}

// Insert records one debug entry.
func (r *SQLDebugLogRepository) Insert(level, message string, context map[string]any) error {
	const query = `INSERT INTO debug_logs (timestamp, level, message, context) VALUES (?, ?, ?, ?)`

	contextJSON, err := marshalJSON(context, "{}")
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = r.db.Exec(query, time.Now().UTC().Format(sqliteTimeFormat), level, message, contextJSON)
	if err != nil {
		r.logger.Database().Error("Debug log insert failed", "error", err.Error(), "level", level)
		return fmt.Errorf("failed to insert debug log: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return nil
}

// DeleteOlderThan removes debug entries past their retention cutoff.
func (r *SQLDebugLogRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	const query = `DELETE FROM debug_logs WHERE timestamp < ?`

	start := time.Now()
	result, err := r.db.Exec(query, cutoff.Format(sqliteTimeFormat))
	if err != nil {
		r.logger.Database().Error("Debug log retention delete failed", "error", err.Error(), "cutoff", cutoff)
		return 0, fmt.Errorf("failed to delete expired debug logs: %w", err)
	}

	removed, _ := result.RowsAffected()
	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery("BULK_"+query, duration)
	}
	return removed, nil
}
