package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	repositories "github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/database"
)

// HealthHandlers reports pipeline health: database reachability and the
// failed-event rate over the last 24 hours.
type HealthHandlers struct {
	db     *database.DB
	events *repositories.SQLEventRepository
	logger *logging.ChanneledLogger
}

// NewHealthHandlers creates health handlers with injected dependencies
func NewHealthHandlers(db *database.DB, events *repositories.SQLEventRepository, logger *logging.ChanneledLogger) *HealthHandlers {
	return &HealthHandlers{
		db:     db,
		events: events,
		logger: logger,
	}
}

// GetHealthz handles GET /healthz - liveness probe
func (h *HealthHandlers) GetHealthz(c *gin.Context) {
	if err := h.db.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "database": "unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetHealth handles GET /api/v1/analytics/health (staff)
func (h *HealthHandlers) GetHealth(c *gin.Context) {
	now := time.Now().UTC()
	since := now.Add(-24 * time.Hour)

	total, err := h.events.CountEventsInRange(since, now)
	if err != nil {
		h.logger.System().Error("Health event count failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Health check failed"})
		return
	}
	failed, err := h.events.CountFailedInRange(since, now)
	if err != nil {
		h.logger.System().Error("Health failed-event count failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Health check failed"})
		return
	}

	errorRate := 0.0
	if total > 0 {
		errorRate = float64(failed) / float64(total) * 100
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        analytics.HealthStatus(errorRate),
		"error_rate":    errorRate,
		"failed_events": failed,
		"total_events":  total,
		"window_hours":  24,
	})
}
