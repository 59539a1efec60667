package analytics

import (
	"fmt"
	"time"

	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/database"
	"github.com/AmPepSoc/analytics-go/pkg/config"
)

// SQLSummaryRepository handles daily summary persistence.
type SQLSummaryRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLSummaryRepository creates a new instance of the repository.
func NewSQLSummaryRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLSummaryRepository {
	return &SQLSummaryRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert writes the rollup row for one day. Recomputing a day replaces
// its previous row, keyed on the UNIQUE date column.
func (r *SQLSummaryRepository) Upsert(summary *analytics.DailySummary) error {
	const query = `
		INSERT INTO daily_summaries (id, date, total_page_views, unique_visitors, total_sessions,
			avg_session_duration, bounce_rate, top_pages, top_searches, error_count, is_complete)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			total_page_views = excluded.total_page_views,
			unique_visitors = excluded.unique_visitors,
			total_sessions = excluded.total_sessions,
			avg_session_duration = excluded.avg_session_duration,
			bounce_rate = excluded.bounce_rate,
			top_pages = excluded.top_pages,
			top_searches = excluded.top_searches,
			error_count = excluded.error_count,
			is_complete = excluded.is_complete`

	topPages, err := marshalJSON(summary.TopPages, "[]")
	if err != nil {
		return err
	}
	topSearches, err := marshalJSON(summary.TopSearches, "[]")
	if err != nil {
		return err
	}

	start := time.Now()
	r.logger.Database().Debug("Executing daily summary upsert", "date", summary.Date.Format(dateFormat))

	_, err = r.db.Exec(
		query,
		summary.ID,
		summary.Date.Format(dateFormat),
		summary.TotalPageViews,
		summary.UniqueVisitors,
		summary.TotalSessions,
		summary.AvgSessionDuration,
		summary.BounceRate,
		topPages,
		topSearches,
		summary.ErrorCount,
		summary.IsComplete,
	)
	if err != nil {
		r.logger.Database().Error("Daily summary upsert failed", "error", err.Error(), "date", summary.Date.Format(dateFormat))
		return fmt.Errorf("failed to upsert daily summary: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return nil
}

// FindByDateRange loads summaries inside a date range, oldest first.
func (r *SQLSummaryRepository) FindByDateRange(startDate, endDate time.Time) ([]*analytics.DailySummary, error) {
	const query = `
		SELECT id, date, total_page_views, unique_visitors, total_sessions, avg_session_duration,
			bounce_rate, top_pages, top_searches, error_count, is_complete
		FROM daily_summaries
		WHERE date >= ? AND date <= ?
		ORDER BY date`

	start := time.Now()
	rows, err := r.db.Query(query, startDate.Format(dateFormat), endDate.Format(dateFormat))
	if err != nil {
		r.logger.Database().Error("Failed to query daily summaries", "error", err.Error())
		return nil, fmt.Errorf("failed to query daily summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*analytics.DailySummary
	for rows.Next() {
		var (
			summary     analytics.DailySummary
			dateStr     string
			topPages    string
			topSearches string
		)
		err := rows.Scan(
			&summary.ID,
			&dateStr,
			&summary.TotalPageViews,
			&summary.UniqueVisitors,
			&summary.TotalSessions,
			&summary.AvgSessionDuration,
			&summary.BounceRate,
			&topPages,
			&topSearches,
			&summary.ErrorCount,
			&summary.IsComplete,
		)
		if err != nil {
			r.logger.Database().Error("Failed to scan daily summary row", "error", err.Error())
			continue
		}

		summary.Date, err = parseTimestamp(dateStr)
		if err != nil {
			r.logger.Database().Error("Failed to parse summary date", "error", err.Error(), "date", dateStr)
			continue
		}
		if err := unmarshalJSON(topPages, &summary.TopPages); err != nil {
			r.logger.Database().Error("Failed to decode summary top pages", "error", err.Error())
			continue
		}
		if err := unmarshalJSON(topSearches, &summary.TopSearches); err != nil {
			r.logger.Database().Error("Failed to decode summary top searches", "error", err.Error())
			continue
		}

		summaries = append(summaries, &summary)
	}
	if err := rows.Err(); err != nil {
		r.logger.Database().Error("Row iteration error for daily summaries", "error", err.Error())
		return nil, err
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return summaries, nil
}

// DeleteOlderThan removes summaries past their retention cutoff.
func (r *SQLSummaryRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	const query = `DELETE FROM daily_summaries WHERE date < ?`

	start := time.Now()
	result, err := r.db.Exec(query, cutoff.Format(dateFormat))
	if err != nil {
		r.logger.Database().Error("Daily summary retention delete failed", "error", err.Error(), "cutoff", cutoff)
		return 0, fmt.Errorf("failed to delete expired summaries: %w", err)
	}

	removed, _ := result.RowsAffected()
	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery("BULK_"+query, duration)
	}
	return removed, nil
}
