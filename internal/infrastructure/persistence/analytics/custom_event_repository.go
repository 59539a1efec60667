package analytics

import (
	"fmt"
	"time"

	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/database"
	"github.com/AmPepSoc/analytics-go/pkg/config"
)

// SQLCustomEventRepository handles client-reported event persistence.
type SQLCustomEventRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLCustomEventRepository creates a new instance of the repository.
func NewSQLCustomEventRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLCustomEventRepository {
	return &SQLCustomEventRepository{
		db:     db,
		logger: logger,
	}
}

// Store saves one client-reported event to the database.
func (r *SQLCustomEventRepository) Store(event *analytics.CustomEvent) error {
	const query = `
		INSERT INTO custom_events (event_id, name, category, session_id, user_id, timestamp,
			properties, value, page_url, referrer_url, user_agent, ip_address, processed, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	properties, err := marshalJSON(event.Properties, "{}")
	if err != nil {
		return err
	}

	start := time.Now()
	r.logger.Database().Debug("Executing custom event insert",
		"eventId", event.EventID,
		"name", event.Name,
		"category", event.Category)

	_, err = r.db.Exec(
		query,
		event.EventID,
		event.Name,
		event.Category,
		event.SessionID,
		event.UserID,
		event.Timestamp.Format(sqliteTimeFormat),
		properties,
		event.Value,
		event.PageURL,
		event.ReferrerURL,
		event.UserAgent,
		event.IPAddress,
		event.Processed,
		formatNullableTimestamp(event.ProcessedAt),
	)
	if err != nil {
		r.logger.Database().Error("Custom event insert failed",
			"error", err.Error(),
			"eventId", event.EventID,
			"name", event.Name)
		return fmt.Errorf("failed to store custom event: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return nil
}

// FindByNamesInRange loads custom events matching any of the given names
// inside a time window, ordered by session then time. Funnel analysis
// walks this ordering directly.
func (r *SQLCustomEventRepository) FindByNamesInRange(names []string, startTime, endTime time.Time) ([]*analytics.CustomEvent, error) {
	if len(names) == 0 {
		return []*analytics.CustomEvent{}, nil
	}

	placeholders := ""
	for i := range names {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
	}

	query := fmt.Sprintf(`
		SELECT event_id, name, category, session_id, user_id, timestamp, properties, value
		FROM custom_events
		WHERE timestamp >= ? AND timestamp < ? AND name IN (%s)
		ORDER BY session_id, timestamp`, placeholders)

	args := make([]any, 0, 2+len(names))
	args = append(args, startTime.Format(sqliteTimeFormat))
	args = append(args, endTime.Format(sqliteTimeFormat))
	for _, name := range names {
		args = append(args, name)
	}

	start := time.Now()
	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Database().Error("Failed to query custom events in range",
			"error", err.Error(),
			"startTime", startTime,
			"endTime", endTime)
		return nil, fmt.Errorf("failed to query custom events: %w", err)
	}
	defer rows.Close()

	var events []*analytics.CustomEvent
	for rows.Next() {
		var (
			event        analytics.CustomEvent
			timestampStr string
			properties   string
		)
		err := rows.Scan(
			&event.EventID,
			&event.Name,
			&event.Category,
			&event.SessionID,
			&event.UserID,
			&timestampStr,
			&properties,
			&event.Value,
		)
		if err != nil {
			r.logger.Database().Error("Failed to scan custom event row", "error", err.Error())
			continue
		}

		event.Timestamp, err = parseTimestamp(timestampStr)
		if err != nil {
			r.logger.Database().Error("Failed to parse custom event timestamp", "error", err.Error(), "timestamp", timestampStr)
			continue
		}
		if err := unmarshalJSON(properties, &event.Properties); err != nil {
			r.logger.Database().Error("Failed to decode custom event properties", "error", err.Error(), "eventId", event.EventID)
			continue
		}

		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		r.logger.Database().Error("Row iteration error for custom events", "error", err.Error())
		return nil, err
	}

	duration := time.Since(start)
	r.logger.Database().Info("Custom events loaded in range",
		"startTime", startTime,
		"endTime", endTime,
		"count", len(events),
		"duration", duration)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return events, nil
}

// MarkProcessed flags a batch of custom events as consumed by downstream jobs.
func (r *SQLCustomEventRepository) MarkProcessed(eventIDs []string, processedAt time.Time) error {
	if len(eventIDs) == 0 {
		return nil
	}

	placeholders := ""
	for i := range eventIDs {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
	}
	query := fmt.Sprintf(`UPDATE custom_events SET processed = 1, processed_at = ? WHERE event_id IN (%s)`, placeholders)

	args := make([]any, 0, 1+len(eventIDs))
	args = append(args, processedAt.Format(sqliteTimeFormat))
	for _, id := range eventIDs {
		args = append(args, id)
	}

	start := time.Now()
	_, err := r.db.Exec(query, args...)
	if err != nil {
		r.logger.Database().Error("Custom event processed update failed", "error", err.Error(), "count", len(eventIDs))
		return fmt.Errorf("failed to mark custom events processed: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return nil
}

// DeleteOlderThan removes custom events past their retention cutoff.
func (r *SQLCustomEventRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	const query = `DELETE FROM custom_events WHERE timestamp < ?`

	start := time.Now()
	result, err := r.db.Exec(query, cutoff.Format(sqliteTimeFormat))
	if err != nil {
		r.logger.Database().Error("Custom event retention delete failed", "error", err.Error(), "cutoff", cutoff)
		return 0, fmt.Errorf("failed to delete expired custom events: %w", err)
	}

	removed, _ := result.RowsAffected()
	duration := time.Since(start)
	r.logger.Database().Info("Custom event retention delete completed",
		"cutoff", cutoff,
		"removed", removed,
		"duration", duration)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery("BULK_"+query, duration)
	}
	return removed, nil
}
