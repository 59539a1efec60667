// Package analytics provides the concrete SQL-based implementations
// for analytics event persistence.
//
// PURPOSE: Store observed user events to database as they happen
// - Server-observed events → events table
// - Client-reported events → custom_events table
//
// This is SEPARATE from rollup computation which reads these tables in bulk.
package analytics

import (
	"fmt"
	"time"

	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/database"
	"github.com/AmPepSoc/analytics-go/pkg/config"
)

// SQLEventRepository handles raw event persistence to database.
type SQLEventRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLEventRepository creates a new instance of the repository.
func NewSQLEventRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLEventRepository {
	return &SQLEventRepository{
		db:     db,
		logger: logger,
	}
}

// Store saves one observed event to the database.
func (r *SQLEventRepository) Store(event *analytics.Event) error {
	const query = `
		INSERT INTO events (id, event_type, timestamp, session_id, user_id, ip_address, user_agent,
			page_url, referrer_url, event_data, processing_status, error_count, last_error,
			page_load_time_ms, is_bot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	eventData, err := marshalJSON(event.EventData, "{}")
	if err != nil {
		return err
	}

	start := time.Now()
	r.logger.Database().Debug("Executing event insert",
		"eventId", event.ID,
		"eventType", string(event.Type))

	_, err = r.db.Exec(
		query,
		event.ID,
		string(event.Type),
		event.Timestamp.Format(sqliteTimeFormat),
		event.SessionID,
		event.UserID,
		event.IPAddress,
		event.UserAgent,
		event.PageURL,
		event.ReferrerURL,
		eventData,
		string(event.ProcessingStatus),
		event.ErrorCount,
		event.LastError,
		event.PageLoadTimeMS,
		event.IsBot,
	)
	if err != nil {
		r.logger.Database().Error("Event insert failed",
			"error", err.Error(),
			"eventId", event.ID,
			"eventType", string(event.Type))
		return fmt.Errorf("failed to store event: %w", err)
	}

	duration := time.Since(start)
	r.logger.Database().Debug("Event insert completed",
		"eventId", event.ID,
		"eventType", string(event.Type),
		"duration", duration)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return nil
}

// UpdateProcessingState persists the processing outcome of an event.
func (r *SQLEventRepository) UpdateProcessingState(event *analytics.Event) error {
	const query = `
		UPDATE events SET processing_status = ?, error_count = ?, last_error = ?
		WHERE id = ?`

	start := time.Now()
	_, err := r.db.Exec(query,
		string(event.ProcessingStatus),
		event.ErrorCount,
		event.LastError,
		event.ID,
	)
	if err != nil {
		r.logger.Database().Error("Event state update failed",
			"error", err.Error(),
			"eventId", event.ID,
			"status", string(event.ProcessingStatus))
		return fmt.Errorf("failed to update event state: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return nil
}

// FindRetryable returns failed events still under the retry limit, oldest first.
func (r *SQLEventRepository) FindRetryable(limit int) ([]*analytics.Event, error) {
	const query = `
		SELECT id, event_type, timestamp, session_id, user_id, ip_address, user_agent,
			page_url, referrer_url, event_data, processing_status, error_count, last_error,
			page_load_time_ms, is_bot
		FROM events
		WHERE processing_status IN ('failed', 'retry') AND error_count < 3
		ORDER BY timestamp
		LIMIT ?`

	start := time.Now()
	rows, err := r.db.Query(query, limit)
	if err != nil {
		r.logger.Database().Error("Failed to query retryable events", "error", err.Error())
		return nil, fmt.Errorf("failed to query retryable events: %w", err)
	}
	defer rows.Close()

	var events []*analytics.Event
	for rows.Next() {
		event, err := r.scanEvent(rows)
		if err != nil {
			r.logger.Database().Error("Failed to scan event row", "error", err.Error())
			continue
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		r.logger.Database().Error("Row iteration error for retryable events", "error", err.Error())
		return nil, err
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return events, nil
}

// FindReportEventsInRange loads the slim event projection for rollup
// computation. Bot traffic is excluded at the query level.
func (r *SQLEventRepository) FindReportEventsInRange(startTime, endTime time.Time) ([]analytics.ReportEvent, error) {
	const query = `
		SELECT event_type, session_id, page_url, event_data, timestamp, processing_status
		FROM events
		WHERE timestamp >= ? AND timestamp < ? AND is_bot = 0
		ORDER BY timestamp`

	start := time.Now()
	r.logger.Database().Debug("Loading report events in range",
		"startTime", startTime,
		"endTime", endTime)

	rows, err := r.db.Query(query,
		startTime.Format(sqliteTimeFormat),
		endTime.Format(sqliteTimeFormat))
	if err != nil {
		r.logger.Database().Error("Failed to query report events in range",
			"error", err.Error(),
			"startTime", startTime,
			"endTime", endTime)
		return nil, fmt.Errorf("failed to query report events: %w", err)
	}
	defer rows.Close()

	var events []analytics.ReportEvent
	for rows.Next() {
		var (
			eventType    string
			sessionID    string
			pageURL      *string
			eventData    string
			timestampStr string
			status       string
		)
		if err := rows.Scan(&eventType, &sessionID, &pageURL, &eventData, &timestampStr, &status); err != nil {
			r.logger.Database().Error("Failed to scan report event row", "error", err.Error())
			continue
		}

		timestamp, err := parseTimestamp(timestampStr)
		if err != nil {
			r.logger.Database().Error("Failed to parse report event timestamp", "error", err.Error(), "timestamp", timestampStr)
			continue
		}

		event := analytics.ReportEvent{
			Type:      analytics.EventType(eventType),
			SessionID: sessionID,
			Timestamp: timestamp,
			Status:    analytics.ProcessingStatus(status),
		}
		if pageURL != nil {
			event.PageURL = *pageURL
		}

		// Search queries live inside the event payload.
		var payload map[string]any
		if err := unmarshalJSON(eventData, &payload); err == nil {
			if q, ok := payload["query"].(string); ok {
				event.Query = q
			}
		}

		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		r.logger.Database().Error("Row iteration error for report events", "error", err.Error())
		return nil, err
	}

	duration := time.Since(start)
	r.logger.Database().Info("Report events loaded in range",
		"startTime", startTime,
		"endTime", endTime,
		"count", len(events),
		"duration", duration)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return events, nil
}

// CountEventsInRange counts non-bot events in a time window.
func (r *SQLEventRepository) CountEventsInRange(startTime, endTime time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM events WHERE timestamp >= ? AND timestamp < ? AND is_bot = 0`

	start := time.Now()
	var count int
	err := r.db.QueryRow(query,
		startTime.Format(sqliteTimeFormat),
		endTime.Format(sqliteTimeFormat)).Scan(&count)
	if err != nil {
		r.logger.Database().Error("Failed to count events", "error", err.Error(), "startTime", startTime, "endTime", endTime)
		return 0, fmt.Errorf("failed to count events: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return count, nil
}

// CountFailedInRange counts events whose pipeline processing failed in
// a time window.
func (r *SQLEventRepository) CountFailedInRange(startTime, endTime time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM events WHERE timestamp >= ? AND timestamp < ? AND is_bot = 0 AND processing_status IN ('failed', 'retry')`

	start := time.Now()
	var count int
	err := r.db.QueryRow(query,
		startTime.Format(sqliteTimeFormat),
		endTime.Format(sqliteTimeFormat)).Scan(&count)
	if err != nil {
		r.logger.Database().Error("Failed to count failed events", "error", err.Error(), "startTime", startTime, "endTime", endTime)
		return 0, fmt.Errorf("failed to count failed events: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return count, nil
}

// DeleteOlderThan removes raw events past their retention cutoff and
// returns the number of rows removed.
func (r *SQLEventRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	const query = `DELETE FROM events WHERE timestamp < ?`

	start := time.Now()
	result, err := r.db.Exec(query, cutoff.Format(sqliteTimeFormat))
	if err != nil {
		r.logger.Database().Error("Event retention delete failed", "error", err.Error(), "cutoff", cutoff)
		return 0, fmt.Errorf("failed to delete expired events: %w", err)
	}

	removed, _ := result.RowsAffected()
	duration := time.Since(start)
	r.logger.Database().Info("Event retention delete completed",
		"cutoff", cutoff,
		"removed", removed,
		"duration", duration)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery("BULK_"+query, duration)
	}
	return removed, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLEventRepository) scanEvent(row rowScanner) (*analytics.Event, error) {
	var (
		event        analytics.Event
		eventType    string
		timestampStr string
		eventData    string
		status       string
	)
	err := row.Scan(
		&event.ID,
		&eventType,
		&timestampStr,
		&event.SessionID,
		&event.UserID,
		&event.IPAddress,
		&event.UserAgent,
		&event.PageURL,
		&event.ReferrerURL,
		&eventData,
		&status,
		&event.ErrorCount,
		&event.LastError,
		&event.PageLoadTimeMS,
		&event.IsBot,
	)
	if err != nil {
		return nil, err
	}

	event.Type = analytics.EventType(eventType)
	event.ProcessingStatus = analytics.ProcessingStatus(status)
	event.Timestamp, err = parseTimestamp(timestampStr)
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(eventData, &event.EventData); err != nil {
		return nil, fmt.Errorf("failed to decode event data: %w", err)
	}
	return &event, nil
}
