package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AmPepSoc/analytics-go/internal/application/services"
	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	"github.com/AmPepSoc/analytics-go/internal/presentation/http/middleware"
)

// ExperimentHandlers serves A/B test assignment, conversion, and results.
type ExperimentHandlers struct {
	experiments *services.ExperimentService
	logger      *logging.ChanneledLogger
}

// NewExperimentHandlers creates experiment handlers with injected dependencies
func NewExperimentHandlers(experiments *services.ExperimentService, logger *logging.ChanneledLogger) *ExperimentHandlers {
	return &ExperimentHandlers{
		experiments: experiments,
		logger:      logger,
	}
}

// PostVariant handles POST /api/v1/analytics/ab-tests/:name/variant
func (h *ExperimentHandlers) PostVariant(c *gin.Context) {
	testName := c.Param("name")

	var req struct {
		SessionID string  `json:"session_id"`
		UserID    *string `json:"user_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	// SDK clients send the session in the body; browser callers rely on
	// the cookie.
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = middleware.GetSessionID(c)
	}

	variant, err := h.experiments.GetVariant(testName, sessionID, req.UserID)
	if err != nil {
		if errors.Is(err, services.ErrUnknownExperiment) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Test not found"})
			return
		}
		h.logger.Experiment().Error("Variant assignment failed", "test", testName, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Variant assignment failed"})
		return
	}

	// A session outside the test gets a null variant, which the client
	// treats as "serve the default".
	if variant == "" {
		c.JSON(http.StatusOK, gin.H{"variant": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"variant": variant})
}

// PostConversion handles POST /api/v1/analytics/ab-tests/:name/conversion
func (h *ExperimentHandlers) PostConversion(c *gin.Context) {
	testName := c.Param("name")

	var req struct {
		SessionID string   `json:"session_id"`
		Goal      string   `json:"goal"`
		Value     *float64 `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = middleware.GetSessionID(c)
	}

	converted, err := h.experiments.ConvertForTest(testName, sessionID, req.Goal, req.Value)
	if err != nil {
		if errors.Is(err, services.ErrUnknownExperiment) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Test not found"})
			return
		}
		h.logger.Experiment().Error("Conversion failed", "test", testName, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Conversion failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "converted": converted})
}

// GetResults handles GET /api/v1/analytics/ab-tests/:name/results (staff)
func (h *ExperimentHandlers) GetResults(c *gin.Context) {
	testName := c.Param("name")
	start := time.Now()

	results, err := h.experiments.Results(testName)
	if err != nil {
		if errors.Is(err, services.ErrUnknownExperiment) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Test not found"})
			return
		}
		h.logger.Experiment().Error("Results query failed", "test", testName, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Results query failed"})
		return
	}

	h.logger.Experiment().Debug("Results served", "test", testName, "duration", time.Since(start))
	c.JSON(http.StatusOK, results)
}

// PostCreate handles POST /api/v1/analytics/ab-tests (staff)
func (h *ExperimentHandlers) PostCreate(c *gin.Context) {
	var req struct {
		Name              string                    `json:"name" binding:"required"`
		Description       string                    `json:"description"`
		Variants          map[string]map[string]any `json:"variants" binding:"required"`
		TrafficAllocation float64                   `json:"traffic_allocation"`
		PrimaryGoal       string                    `json:"primary_goal" binding:"required"`
		SecondaryGoals    []string                  `json:"secondary_goals"`
		IsActive          bool                      `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	allocation := req.TrafficAllocation
	if allocation <= 0 || allocation > 1 {
		allocation = 1.0
	}

	test := &analytics.Experiment{
		Name:              req.Name,
		Description:       req.Description,
		Variants:          req.Variants,
		TrafficAllocation: allocation,
		PrimaryGoal:       req.PrimaryGoal,
		SecondaryGoals:    req.SecondaryGoals,
		IsActive:          req.IsActive,
	}
	if err := h.experiments.Create(test); err != nil {
		h.logger.Experiment().Error("Test creation failed", "name", req.Name, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Test creation failed"})
		return
	}

	h.logger.Experiment().Info("Test created", "name", req.Name)
	c.JSON(http.StatusCreated, gin.H{"success": true, "id": test.ID})
}
