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

// ErrExperimentNotFound is returned when no test row matches a lookup.
var ErrExperimentNotFound = errors.New("experiment not found")

// ErrParticipationNotFound is returned when a session has no participation row.
var ErrParticipationNotFound = errors.New("participation not found")

// SQLExperimentRepository handles A/B test and participation persistence.
type SQLExperimentRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLExperimentRepository creates a new instance of the repository.
func NewSQLExperimentRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLExperimentRepository {
	return &SQLExperimentRepository{
		db:     db,
		logger: logger,
	}
}

const experimentColumns = `id, name, description, is_active, start_date, end_date,
	traffic_allocation, variants, primary_goal, secondary_goals, total_participants, conversions`

// FindByName loads one test by its unique name.
func (r *SQLExperimentRepository) FindByName(name string) (*analytics.Experiment, error) {
	query := fmt.Sprintf(`SELECT %s FROM ab_tests WHERE name = ?`, experimentColumns)
	return r.findOne(query, name)
}

// FindByID loads one test by id.
func (r *SQLExperimentRepository) FindByID(id string) (*analytics.Experiment, error) {
	query := fmt.Sprintf(`SELECT %s FROM ab_tests WHERE id = ?`, experimentColumns)
	return r.findOne(query, id)
}

func (r *SQLExperimentRepository) findOne(query string, arg any) (*analytics.Experiment, error) {
	start := time.Now()
	row := r.db.QueryRow(query, arg)
	test, err := r.scanExperiment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExperimentNotFound
		}
		r.logger.Database().Error("Experiment lookup failed", "error", err.Error())
		return nil, fmt.Errorf("failed to load experiment: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return test, nil
}

// ListActive loads every currently active test.
func (r *SQLExperimentRepository) ListActive() ([]*analytics.Experiment, error) {
	query := fmt.Sprintf(`SELECT %s FROM ab_tests WHERE is_active = 1 ORDER BY name`, experimentColumns)

	start := time.Now()
	rows, err := r.db.Query(query)
	if err != nil {
		r.logger.Database().Error("Failed to query active experiments", "error", err.Error())
		return nil, fmt.Errorf("failed to query active experiments: %w", err)
	}
	defer rows.Close()

	var tests []*analytics.Experiment
	for rows.Next() {
		test, err := r.scanExperiment(rows)
		if err != nil {
			r.logger.Database().Error("Failed to scan experiment row", "error", err.Error())
			continue
		}
		tests = append(tests, test)
	}
	if err := rows.Err(); err != nil {
		r.logger.Database().Error("Row iteration error for experiments", "error", err.Error())
		return nil, err
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return tests, nil
}

// Insert creates a new test definition.
func (r *SQLExperimentRepository) Insert(test *analytics.Experiment) error {
	query := fmt.Sprintf(`INSERT INTO ab_tests (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, experimentColumns)

	variants, err := marshalJSON(test.Variants, "{}")
	if err != nil {
		return err
	}
	secondaryGoals, err := marshalJSON(test.SecondaryGoals, "[]")
	if err != nil {
		return err
	}
	conversions, err := marshalJSON(test.Conversions, "{}")
	if err != nil {
		return err
	}

	start := time.Now()
	r.logger.Database().Debug("Executing experiment insert", "testId", test.ID, "name", test.Name)

	_, err = r.db.Exec(
		query,
		test.ID,
		test.Name,
		test.Description,
		test.IsActive,
		formatNullableTimestamp(test.StartDate),
		formatNullableTimestamp(test.EndDate),
		test.TrafficAllocation,
		variants,
		test.PrimaryGoal,
		secondaryGoals,
		test.TotalParticipants,
		conversions,
	)
	if err != nil {
		r.logger.Database().Error("Experiment insert failed", "error", err.Error(), "testId", test.ID, "name", test.Name)
		return fmt.Errorf("failed to insert experiment: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return nil
}

// IncrementParticipants bumps the participant counter after a new
// participation row lands.
func (r *SQLExperimentRepository) IncrementParticipants(testID string) error {
	const query = `UPDATE ab_tests SET total_participants = total_participants + 1 WHERE id = ?`

	start := time.Now()
	_, err := r.db.Exec(query, testID)
	if err != nil {
		r.logger.Database().Error("Participant increment failed", "error", err.Error(), "testId", testID)
		return fmt.Errorf("failed to increment participants: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return nil
}

// FindParticipation loads a session's participation in one test.
func (r *SQLExperimentRepository) FindParticipation(testID, sessionID string) (*analytics.Participation, error) {
	const query = `
		SELECT id, test_id, session_id, user_id, variant, assigned_at, converted,
			conversion_goal, converted_at, conversion_value
		FROM ab_test_participations
		WHERE test_id = ? AND session_id = ?`

	start := time.Now()
	row := r.db.QueryRow(query, testID, sessionID)
	participation, err := r.scanParticipation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipationNotFound
		}
		r.logger.Database().Error("Participation lookup failed", "error", err.Error(), "testId", testID)
		return nil, fmt.Errorf("failed to load participation: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return participation, nil
}

// InsertParticipation creates the single participation row for a
// (test, session) pair. UNIQUE violations mean a concurrent writer won;
// callers re-read with FindParticipation.
func (r *SQLExperimentRepository) InsertParticipation(p *analytics.Participation) error {
	const query = `
		INSERT INTO ab_test_participations (id, test_id, session_id, user_id, variant, assigned_at,
			converted, conversion_goal, converted_at, conversion_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	_, err := r.db.Exec(
		query,
		p.ID,
		p.TestID,
		p.SessionID,
		p.UserID,
		p.Variant,
		p.AssignedAt.Format(sqliteTimeFormat),
		p.Converted,
		p.ConversionGoal,
		formatNullableTimestamp(p.ConvertedAt),
		p.ConversionValue,
	)
	if err != nil {
		if !IsUniqueViolation(err) {
			r.logger.Database().Error("Participation insert failed", "error", err.Error(), "testId", p.TestID)
		}
		return fmt.Errorf("failed to insert participation: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return nil
}

// MarkParticipationConverted flips a participation to converted only if
// it has not converted yet, and reports whether this call won the flip.
func (r *SQLExperimentRepository) MarkParticipationConverted(p *analytics.Participation) (bool, error) {
	const query = `
		UPDATE ab_test_participations
		SET converted = 1, conversion_goal = ?, converted_at = ?, conversion_value = ?
		WHERE id = ? AND converted = 0`

	start := time.Now()
	result, err := r.db.Exec(
		query,
		p.ConversionGoal,
		formatNullableTimestamp(p.ConvertedAt),
		p.ConversionValue,
		p.ID,
	)
	if err != nil {
		r.logger.Database().Error("Participation conversion update failed", "error", err.Error(), "participationId", p.ID)
		return false, fmt.Errorf("failed to mark participation converted: %w", err)
	}
	affected, _ := result.RowsAffected()

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return affected == 1, nil
}

// VariantResult is one variant's aggregate outcome inside a test.
type VariantResult struct {
	Variant        string  `json:"variant"`
	Participants   int     `json:"participants"`
	Conversions    int     `json:"conversions"`
	ConversionRate float64 `json:"conversion_rate"`
}

// Results computes per-variant participation and conversion counts.
func (r *SQLExperimentRepository) Results(testID string) ([]VariantResult, error) {
	const query = `
		SELECT variant, COUNT(*),
			COALESCE(SUM(CASE WHEN converted = 1 THEN 1 ELSE 0 END), 0)
		FROM ab_test_participations
		WHERE test_id = ?
		GROUP BY variant
		ORDER BY variant`

	start := time.Now()
	rows, err := r.db.Query(query, testID)
	if err != nil {
		r.logger.Database().Error("Experiment results query failed", "error", err.Error(), "testId", testID)
		return nil, fmt.Errorf("failed to query experiment results: %w", err)
	}
	defer rows.Close()

	var results []VariantResult
	for rows.Next() {
		var vr VariantResult
		if err := rows.Scan(&vr.Variant, &vr.Participants, &vr.Conversions); err != nil {
			r.logger.Database().Error("Failed to scan variant result row", "error", err.Error())
			continue
		}
		if vr.Participants > 0 {
			vr.ConversionRate = float64(vr.Conversions) / float64(vr.Participants) * 100
		}
		results = append(results, vr)
	}
	if err := rows.Err(); err != nil {
		r.logger.Database().Error("Row iteration error for variant results", "error", err.Error())
		return nil, err
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return results, nil
}

func (r *SQLExperimentRepository) scanExperiment(row rowScanner) (*analytics.Experiment, error) {
	var (
		test           analytics.Experiment
		startDateStr   *string
		endDateStr     *string
		variants       string
		secondaryGoals string
		conversions    string
	)
	err := row.Scan(
		&test.ID,
		&test.Name,
		&test.Description,
		&test.IsActive,
		&startDateStr,
		&endDateStr,
		&test.TrafficAllocation,
		&variants,
		&test.PrimaryGoal,
		&secondaryGoals,
		&test.TotalParticipants,
		&conversions,
	)
	if err != nil {
		return nil, err
	}

	test.StartDate, err = parseNullableTimestamp(startDateStr)
	if err != nil {
		return nil, err
	}
	test.EndDate, err = parseNullableTimestamp(endDateStr)
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(variants, &test.Variants); err != nil {
		return nil, fmt.Errorf("failed to decode experiment variants: %w", err)
	}
	if err := unmarshalJSON(secondaryGoals, &test.SecondaryGoals); err != nil {
		return nil, fmt.Errorf("failed to decode experiment goals: %w", err)
	}
	if err := unmarshalJSON(conversions, &test.Conversions); err != nil {
		return nil, fmt.Errorf("failed to decode experiment conversions: %w", err)
	}
	return &test, nil
}

func (r *SQLExperimentRepository) scanParticipation(row rowScanner) (*analytics.Participation, error) {
	var (
		p              analytics.Participation
		assignedAtStr  string
		convertedAtStr *string
	)
	err := row.Scan(
		&p.ID,
		&p.TestID,
		&p.SessionID,
		&p.UserID,
		&p.Variant,
		&assignedAtStr,
		&p.Converted,
		&p.ConversionGoal,
		&convertedAtStr,
		&p.ConversionValue,
	)
	if err != nil {
		return nil, err
	}

	p.AssignedAt, err = parseTimestamp(assignedAtStr)
	if err != nil {
		return nil, err
	}
	p.ConvertedAt, err = parseNullableTimestamp(convertedAtStr)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
