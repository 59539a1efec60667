// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AmPepSoc/analytics-go/internal/application/services"
	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	"github.com/AmPepSoc/analytics-go/internal/presentation/http/middleware"
)

// IngestHandlers serves the bulk event submission endpoint.
type IngestHandlers struct {
	ingestion *services.IngestionService
	settings  *services.SettingsService
	logger    *logging.ChanneledLogger
}

// NewIngestHandlers creates ingest handlers with injected dependencies
func NewIngestHandlers(ingestion *services.IngestionService, settings *services.SettingsService, logger *logging.ChanneledLogger) *IngestHandlers {
	return &IngestHandlers{
		ingestion: ingestion,
		settings:  settings,
		logger:    logger,
	}
}

// PostEvents handles POST /api/v1/analytics/events - bulk custom event ingestion
func (h *IngestHandlers) PostEvents(c *gin.Context) {
	start := time.Now()

	settings := h.settings.Current()
	if settings == nil || !settings.Enabled {
		c.JSON(http.StatusForbidden, gin.H{"error": "Analytics disabled"})
		return
	}

	var batch services.BatchRequest
	if err := c.ShouldBindJSON(&batch); err != nil {
		h.logger.Tracking().Error("Batch request JSON binding failed", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	if batch.SessionID == "" {
		batch.SessionID = middleware.GetSessionID(c)
	}
	batch.UserAgent = c.Request.UserAgent()
	batch.IPAddress = analytics.ClientIP(
		c.GetHeader("X-Forwarded-For"),
		c.GetHeader("X-Real-IP"),
		c.Request.RemoteAddr,
	)

	result := h.ingestion.IngestBatch(&batch)

	h.logger.Tracking().Info("Batch ingested",
		"eventsCreated", result.EventsCreated,
		"errors", len(result.Errors),
		"duration", time.Since(start))

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"events_created": result.EventsCreated,
		"errors":         result.Errors,
	})
}
