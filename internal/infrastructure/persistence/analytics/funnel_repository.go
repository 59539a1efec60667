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

// ErrFunnelNotFound is returned when no funnel row matches a lookup.
var ErrFunnelNotFound = errors.New("funnel not found")

// SQLFunnelRepository handles conversion funnel persistence.
type SQLFunnelRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLFunnelRepository creates a new instance of the repository.
func NewSQLFunnelRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLFunnelRepository {
	return &SQLFunnelRepository{
		db:     db,
		logger: logger,
	}
}

const funnelColumns = `id, name, description, steps, is_active, time_window_hours,
	total_entries, total_completions, conversion_rate`

// FindByName loads one funnel by its unique name.
func (r *SQLFunnelRepository) FindByName(name string) (*analytics.Funnel, error) {
	query := fmt.Sprintf(`SELECT %s FROM conversion_funnels WHERE name = ?`, funnelColumns)

	start := time.Now()
	row := r.db.QueryRow(query, name)
	funnel, err := r.scanFunnel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFunnelNotFound
		}
		r.logger.Database().Error("Funnel lookup failed", "error", err.Error(), "name", name)
		return nil, fmt.Errorf("failed to load funnel: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return funnel, nil
}

// ListActive loads every active funnel definition.
func (r *SQLFunnelRepository) ListActive() ([]*analytics.Funnel, error) {
	query := fmt.Sprintf(`SELECT %s FROM conversion_funnels WHERE is_active = 1 ORDER BY name`, funnelColumns)

	start := time.Now()
	rows, err := r.db.Query(query)
	if err != nil {
		r.logger.Database().Error("Failed to query active funnels", "error", err.Error())
		return nil, fmt.Errorf("failed to query active funnels: %w", err)
	}
	defer rows.Close()

	var funnels []*analytics.Funnel
	for rows.Next() {
		funnel, err := r.scanFunnel(rows)
		if err != nil {
			r.logger.Database().Error("Failed to scan funnel row", "error", err.Error())
			continue
		}
		funnels = append(funnels, funnel)
	}
	if err := rows.Err(); err != nil {
		r.logger.Database().Error("Row iteration error for funnels", "error", err.Error())
		return nil, err
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return funnels, nil
}

// Insert creates a new funnel definition.
func (r *SQLFunnelRepository) Insert(funnel *analytics.Funnel) error {
	query := fmt.Sprintf(`INSERT INTO conversion_funnels (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, funnelColumns)

	steps, err := marshalJSON(funnel.Steps, "[]")
	if err != nil {
		return err
	}

	start := time.Now()
	r.logger.Database().Debug("Executing funnel insert", "funnelId", funnel.ID, "name", funnel.Name)

	_, err = r.db.Exec(
		query,
		funnel.ID,
		funnel.Name,
		funnel.Description,
		steps,
		funnel.IsActive,
		funnel.TimeWindowHours,
		funnel.TotalEntries,
		funnel.TotalCompletions,
		funnel.ConversionRate,
	)
	if err != nil {
		r.logger.Database().Error("Funnel insert failed", "error", err.Error(), "funnelId", funnel.ID, "name", funnel.Name)
		return fmt.Errorf("failed to insert funnel: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return nil
}

// UpdateStats persists recomputed funnel aggregates.
func (r *SQLFunnelRepository) UpdateStats(funnel *analytics.Funnel) error {
	const query = `
		UPDATE conversion_funnels SET total_entries = ?, total_completions = ?, conversion_rate = ?
		WHERE id = ?`

	start := time.Now()
	_, err := r.db.Exec(query,
		funnel.TotalEntries,
		funnel.TotalCompletions,
		funnel.ConversionRate,
		funnel.ID,
	)
	if err != nil {
		r.logger.Database().Error("Funnel stats update failed", "error", err.Error(), "funnelId", funnel.ID)
		return fmt.Errorf("failed to update funnel stats: %w", err)
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return nil
}

func (r *SQLFunnelRepository) scanFunnel(row rowScanner) (*analytics.Funnel, error) {
	var (
		funnel analytics.Funnel
		steps  string
	)
	err := row.Scan(
		&funnel.ID,
		&funnel.Name,
		&funnel.Description,
		&steps,
		&funnel.IsActive,
		&funnel.TimeWindowHours,
		&funnel.TotalEntries,
		&funnel.TotalCompletions,
		&funnel.ConversionRate,
	)
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(steps, &funnel.Steps); err != nil {
		return nil, fmt.Errorf("failed to decode funnel steps: %w", err)
	}
	return &funnel, nil
}
