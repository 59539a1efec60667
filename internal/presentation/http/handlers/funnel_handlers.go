package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AmPepSoc/analytics-go/internal/application/services"
	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
)

// FunnelHandlers serves conversion funnel analysis and administration.
type FunnelHandlers struct {
	funnels *services.FunnelService
	logger  *logging.ChanneledLogger
}

// NewFunnelHandlers creates funnel handlers with injected dependencies
func NewFunnelHandlers(funnels *services.FunnelService, logger *logging.ChanneledLogger) *FunnelHandlers {
	return &FunnelHandlers{
		funnels: funnels,
		logger:  logger,
	}
}

// GetAnalysis handles GET /api/v1/analytics/funnels/:name?days=N (staff)
func (h *FunnelHandlers) GetAnalysis(c *gin.Context) {
	name := c.Param("name")
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	start := time.Now()

	analysis, err := h.funnels.Analyze(name, days)
	if err != nil {
		if errors.Is(err, services.ErrUnknownFunnel) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Funnel not found"})
			return
		}
		h.logger.System().Error("Funnel analysis failed", "funnel", name, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Funnel analysis failed"})
		return
	}

	h.logger.System().Debug("Funnel analysis served", "funnel", name, "duration", time.Since(start))
	c.JSON(http.StatusOK, analysis)
}

// GetList handles GET /api/v1/analytics/funnels (staff)
func (h *FunnelHandlers) GetList(c *gin.Context) {
	funnels, err := h.funnels.List()
	if err != nil {
		h.logger.System().Error("Funnel list failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Funnel list failed"})
		return
	}

	names := make([]gin.H, 0, len(funnels))
	for _, funnel := range funnels {
		names = append(names, gin.H{
			"name":            funnel.Name,
			"description":     funnel.Description,
			"steps":           len(funnel.Steps),
			"conversion_rate": funnel.ConversionRate,
		})
	}
	c.JSON(http.StatusOK, gin.H{"funnels": names})
}

// PostCreate handles POST /api/v1/analytics/funnels (staff)
func (h *FunnelHandlers) PostCreate(c *gin.Context) {
	var req struct {
		Name            string                 `json:"name" binding:"required"`
		Description     string                 `json:"description"`
		Steps           []analytics.FunnelStep `json:"steps" binding:"required"`
		TimeWindowHours int                    `json:"time_window_hours"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	funnel := &analytics.Funnel{
		Name:            req.Name,
		Description:     req.Description,
		Steps:           req.Steps,
		TimeWindowHours: req.TimeWindowHours,
		IsActive:        true,
	}
	if err := h.funnels.Create(funnel); err != nil {
		h.logger.System().Error("Funnel creation failed", "name", req.Name, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Funnel creation failed"})
		return
	}

	h.logger.System().Info("Funnel created", "name", req.Name, "steps", len(req.Steps))
	c.JSON(http.StatusCreated, gin.H{"success": true, "id": funnel.ID})
}
