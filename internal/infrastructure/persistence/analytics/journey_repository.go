package analytics

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/database"
	"github.com/AmPepSoc/analytics-go/pkg/config"
)

// ErrJourneyNotFound is returned when no journey row exists for a session.
var ErrJourneyNotFound = errors.New("journey not found")

// SQLJourneyRepository handles session journey persistence.
type SQLJourneyRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLJourneyRepository creates a new instance of the repository.
func NewSQLJourneyRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLJourneyRepository {
	return &SQLJourneyRepository{
		db:     db,
		logger: logger,
	}
}

const journeyColumns = `id, session_id, user_id, start_time, end_time, duration_seconds,
	entry_page, exit_page, page_path, page_count, is_bounce, completed_goal, conversion_value,
	total_events, search_count, error_count, device_type, referrer_domain`

// FindBySessionID loads the journey for one session, or ErrJourneyNotFound.
func (r *SQLJourneyRepository) FindBySessionID(sessionID string) (*analytics.Journey, error) {
	query := fmt.Sprintf(`SELECT %s FROM journeys WHERE session_id = ?`, journeyColumns)

	start := time.Now()
	row := r.db.QueryRow(query, sessionID)
	journey, err := r.scanJourney(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJourneyNotFound
		}
		r.logger.Database().Error("Journey lookup failed", "error", err.Error())
		return nil, fmt.Errorf("failed to load journey: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return journey, nil
}

// Insert creates a new journey row. A UNIQUE violation on session_id means
// another writer created the row first; callers detect that with
// IsUniqueViolation and re-read.
func (r *SQLJourneyRepository) Insert(journey *analytics.Journey) error {
	query := fmt.Sprintf(`INSERT INTO journeys (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, journeyColumns)

	pagePath, err := marshalJSON(journey.PagePath, "[]")
	if err != nil {
		return err
	}

	start := time.Now()
	r.logger.Database().Debug("Executing journey insert", "journeyId", journey.ID)

	_, err = r.db.Exec(
		query,
		journey.ID,
		journey.SessionID,
		journey.UserID,
		journey.StartTime.Format(sqliteTimeFormat),
		formatNullableTimestamp(journey.EndTime),
		journey.DurationSeconds,
		journey.EntryPage,
		journey.ExitPage,
		pagePath,
		journey.PageCount,
		journey.IsBounce,
		journey.CompletedGoal,
		journey.ConversionValue,
		journey.TotalEvents,
		journey.SearchCount,
		journey.ErrorCount,
		journey.DeviceType,
		journey.ReferrerDomain,
	)
	if err != nil {
		if !IsUniqueViolation(err) {
			r.logger.Database().Error("Journey insert failed", "error", err.Error(), "journeyId", journey.ID)
		}
		return fmt.Errorf("failed to insert journey: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return nil
}

// Update persists the mutable portion of a journey row.
func (r *SQLJourneyRepository) Update(journey *analytics.Journey) error {
	const query = `
		UPDATE journeys SET user_id = ?, end_time = ?, duration_seconds = ?, exit_page = ?,
			page_path = ?, page_count = ?, is_bounce = ?, completed_goal = ?, conversion_value = ?,
			total_events = ?, search_count = ?, error_count = ?
		WHERE id = ?`

	pagePath, err := marshalJSON(journey.PagePath, "[]")
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = r.db.Exec(
		query,
		journey.UserID,
		formatNullableTimestamp(journey.EndTime),
		journey.DurationSeconds,
		journey.ExitPage,
		pagePath,
		journey.PageCount,
		journey.IsBounce,
		journey.CompletedGoal,
		journey.ConversionValue,
		journey.TotalEvents,
		journey.SearchCount,
		journey.ErrorCount,
		journey.ID,
	)
	if err != nil {
		r.logger.Database().Error("Journey update failed", "error", err.Error(), "journeyId", journey.ID)
		return fmt.Errorf("failed to update journey: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return nil
}

// FindStartedInRange loads journeys whose session began inside a time
// window, newest first, bounded by limit.
func (r *SQLJourneyRepository) FindStartedInRange(startTime, endTime time.Time, limit int) ([]*analytics.Journey, error) {
	query := fmt.Sprintf(`SELECT %s FROM journeys WHERE start_time >= ? AND start_time < ? ORDER BY start_time DESC LIMIT ?`, journeyColumns)

	start := time.Now()
	rows, err := r.db.Query(query,
		startTime.Format(sqliteTimeFormat),
		endTime.Format(sqliteTimeFormat),
		limit)
	if err != nil {
		r.logger.Database().Error("Failed to query journeys in range", "error", err.Error())
		return nil, fmt.Errorf("failed to query journeys: %w", err)
	}
	defer rows.Close()

	var journeys []*analytics.Journey
	for rows.Next() {
		journey, err := r.scanJourney(rows)
		if err != nil {
			r.logger.Database().Error("Failed to scan journey row", "error", err.Error())
			continue
		}
		journeys = append(journeys, journey)
	}
	if err := rows.Err(); err != nil {
		r.logger.Database().Error("Row iteration error for journeys", "error", err.Error())
		return nil, err
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return journeys, nil
}

// JourneyStats aggregates journeys that started inside a time window.
type JourneyStats struct {
	TotalSessions      int
	BounceSessions     int
	AvgDurationSeconds int
	AvgPages           float64
	ConvertedSessions  int
}

// StatsInRange computes session aggregates for rollup jobs.
func (r *SQLJourneyRepository) StatsInRange(startTime, endTime time.Time) (*JourneyStats, error) {
	const query = `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN is_bounce = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(duration_seconds), 0),
			COALESCE(AVG(page_count), 0),
			COALESCE(SUM(CASE WHEN completed_goal IS NOT NULL AND completed_goal != '' THEN 1 ELSE 0 END), 0)
		FROM journeys
		WHERE start_time >= ? AND start_time < ?`

	start := time.Now()
	var stats JourneyStats
	var avgDuration float64
	err := r.db.QueryRow(query,
		startTime.Format(sqliteTimeFormat),
		endTime.Format(sqliteTimeFormat)).Scan(
		&stats.TotalSessions,
		&stats.BounceSessions,
		&avgDuration,
		&stats.AvgPages,
		&stats.ConvertedSessions,
	)
	if err != nil {
		r.logger.Database().Error("Journey stats query failed", "error", err.Error(), "startTime", startTime, "endTime", endTime)
		return nil, fmt.Errorf("failed to compute journey stats: %w", err)
	}
	stats.AvgDurationSeconds = int(avgDuration)

	duration := time.Since(start)
	r.logger.Database().Info("Journey stats computed",
		"startTime", startTime,
		"endTime", endTime,
		"sessions", stats.TotalSessions,
		"duration", duration)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return &stats, nil
}

// IsUniqueViolation reports whether an error is a UNIQUE constraint
// failure, for both the sqlite3 and libsql drivers.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed")
}

func (r *SQLJourneyRepository) scanJourney(row rowScanner) (*analytics.Journey, error) {
	var (
		journey      analytics.Journey
		startTimeStr string
		endTimeStr   *string
		pagePath     string
	)
	err := row.Scan(
		&journey.ID,
		&journey.SessionID,
		&journey.UserID,
		&startTimeStr,
		&endTimeStr,
		&journey.DurationSeconds,
		&journey.EntryPage,
		&journey.ExitPage,
		&pagePath,
		&journey.PageCount,
		&journey.IsBounce,
		&journey.CompletedGoal,
		&journey.ConversionValue,
		&journey.TotalEvents,
		&journey.SearchCount,
		&journey.ErrorCount,
		&journey.DeviceType,
		&journey.ReferrerDomain,
	)
	if err != nil {
		return nil, err
	}

	journey.StartTime, err = parseTimestamp(startTimeStr)
	if err != nil {
		return nil, err
	}
	journey.EndTime, err = parseNullableTimestamp(endTimeStr)
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(pagePath, &journey.PagePath); err != nil {
		return nil, fmt.Errorf("failed to decode journey page path: %w", err)
	}
	return &journey, nil
}
