package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AmPepSoc/analytics-go/internal/application/services"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	repositories "github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/analytics"
	"github.com/AmPepSoc/analytics-go/internal/presentation/http/middleware"
)

// JourneyHandlers serves the staff journey analysis and the visitor's
// own journey.
type JourneyHandlers struct {
	journeys *services.JourneyService
	analysis *services.JourneyAnalysisService
	logger   *logging.ChanneledLogger
}

// NewJourneyHandlers creates journey handlers with injected dependencies
func NewJourneyHandlers(journeys *services.JourneyService, analysis *services.JourneyAnalysisService, logger *logging.ChanneledLogger) *JourneyHandlers {
	return &JourneyHandlers{
		journeys: journeys,
		analysis: analysis,
		logger:   logger,
	}
}

// GetAnalysis handles GET /api/v1/analytics/journeys?days=N (staff)
func (h *JourneyHandlers) GetAnalysis(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	start := time.Now()

	analysis, err := h.analysis.Analyze(days)
	if err != nil {
		h.logger.Journey().Error("Journey analysis failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Journey analysis failed"})
		return
	}

	h.logger.Journey().Debug("Journey analysis served", "days", days, "duration", time.Since(start))
	c.JSON(http.StatusOK, analysis)
}

// GetOwnJourney handles GET /api/v1/analytics/journey - the caller's
// session journey, used by the client SDK for debugging.
func (h *JourneyHandlers) GetOwnJourney(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)
	if sessionID == "" {
		c.JSON(http.StatusOK, gin.H{"journey": nil})
		return
	}

	journey, err := h.journeys.Get(sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrJourneyNotFound) {
			c.JSON(http.StatusOK, gin.H{"journey": nil})
			return
		}
		h.logger.Journey().Error("Journey lookup failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Journey lookup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"journey": gin.H{
		"page_count":       journey.PageCount,
		"duration_seconds": journey.DurationSeconds,
		"entry_page":       journey.EntryPage,
		"is_bounce":        journey.IsBounce,
		"completed_goal":   journey.CompletedGoal,
	}})
}
