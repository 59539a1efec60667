package analytics

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/database"
	"github.com/AmPepSoc/analytics-go/pkg/config"
)

// ErrReportNotFound is returned when no weekly report exists for a week.
var ErrReportNotFound = errors.New("weekly report not found")

// SQLReportRepository handles weekly report persistence.
type SQLReportRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLReportRepository creates a new instance of the repository.
func NewSQLReportRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLReportRepository {
	return &SQLReportRepository{
		db:     db,
		logger: logger,
	}
}

const dateFormat = "2006-01-02"

// FindByWeek loads the report row for one week, or ErrReportNotFound.
func (r *SQLReportRepository) FindByWeek(weekStart, weekEnd time.Time) (*analytics.WeeklyReport, error) {
	const query = `
		SELECT id, week_start, week_end, report_data, sent_to, sent_at, is_generated, is_sent,
			generation_errors, created_at
		FROM weekly_reports
		WHERE week_start = ? AND week_end = ?`

	start := time.Now()
	row := r.db.QueryRow(query, weekStart.Format(dateFormat), weekEnd.Format(dateFormat))
	report, err := r.scanReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		r.logger.Database().Error("Weekly report lookup failed", "error", err.Error())
		return nil, fmt.Errorf("failed to load weekly report: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return report, nil
}

// Insert creates the report row for one week. UNIQUE violations on
// (week_start, week_end) mean a concurrent generation won; callers
// re-read with FindByWeek.
func (r *SQLReportRepository) Insert(report *analytics.WeeklyReport) error {
	const query = `
		INSERT INTO weekly_reports (id, week_start, week_end, report_data, sent_to, sent_at,
			is_generated, is_sent, generation_errors, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	reportData, err := marshalJSON(report.ReportData, "null")
	if err != nil {
		return err
	}
	sentTo, err := marshalJSON(report.SentTo, "[]")
	if err != nil {
		return err
	}

	start := time.Now()
	r.logger.Database().Debug("Executing weekly report insert",
		"reportId", report.ID,
		"weekStart", report.WeekStart.Format(dateFormat))

	_, err = r.db.Exec(
		query,
		report.ID,
		report.WeekStart.Format(dateFormat),
		report.WeekEnd.Format(dateFormat),
		reportData,
		sentTo,
		formatNullableTimestamp(report.SentAt),
		report.IsGenerated,
		report.IsSent,
		report.GenerationErrors,
		report.CreatedAt.Format(sqliteTimeFormat),
	)
	if err != nil {
		if !IsUniqueViolation(err) {
			r.logger.Database().Error("Weekly report insert failed", "error", err.Error(), "reportId", report.ID)
		}
		return fmt.Errorf("failed to insert weekly report: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return nil
}

// UpdateGeneration persists the outcome of a generation run.
func (r *SQLReportRepository) UpdateGeneration(report *analytics.WeeklyReport) error {
	const query = `
		UPDATE weekly_reports SET report_data = ?, is_generated = ?, generation_errors = ?
		WHERE id = ?`

	reportData, err := marshalJSON(report.ReportData, "null")
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = r.db.Exec(query, reportData, report.IsGenerated, report.GenerationErrors, report.ID)
	if err != nil {
		r.logger.Database().Error("Weekly report generation update failed", "error", err.Error(), "reportId", report.ID)
		return fmt.Errorf("failed to update weekly report: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return nil
}

// MarkSent records a successful delivery.
func (r *SQLReportRepository) MarkSent(report *analytics.WeeklyReport) error {
	const query = `UPDATE weekly_reports SET is_sent = 1, sent_to = ?, sent_at = ? WHERE id = ?`

	sentTo, err := marshalJSON(report.SentTo, "[]")
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = r.db.Exec(query, sentTo, formatNullableTimestamp(report.SentAt), report.ID)
	if err != nil {
		r.logger.Database().Error("Weekly report sent update failed", "error", err.Error(), "reportId", report.ID)
		return fmt.Errorf("failed to mark weekly report sent: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return nil
}

func (r *SQLReportRepository) scanReport(row rowScanner) (*analytics.WeeklyReport, error) {
	var (
		report       analytics.WeeklyReport
		weekStartStr string
		weekEndStr   string
		reportData   *string
		sentTo       string
		sentAtStr    *string
		createdAtStr string
	)
	err := row.Scan(
		&report.ID,
		&weekStartStr,
		&weekEndStr,
		&reportData,
		&sentTo,
		&sentAtStr,
		&report.IsGenerated,
		&report.IsSent,
		&report.GenerationErrors,
		&createdAtStr,
	)
	if err != nil {
		return nil, err
	}

	report.WeekStart, err = parseTimestamp(weekStartStr)
	if err != nil {
		return nil, err
	}
	report.WeekEnd, err = parseTimestamp(weekEndStr)
	if err != nil {
		return nil, err
	}
	report.SentAt, err = parseNullableTimestamp(sentAtStr)
	if err != nil {
		return nil, err
	}
	report.CreatedAt, err = parseTimestamp(createdAtStr)
	if err != nil {
		return nil, err
	}
	if reportData != nil && *reportData != "" && *reportData != "null" {
		if err := unmarshalJSON(*reportData, &report.ReportData); err != nil {
			return nil, fmt.Errorf("failed to decode report data: %w", err)
		}
	}
	if err := unmarshalJSON(sentTo, &report.SentTo); err != nil {
		return nil, fmt.Errorf("failed to decode report recipients: %w", err)
	}
	return &report, nil
}
