package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AmPepSoc/analytics-go/internal/application/services"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
)

// ReportHandlers serves weekly report generation and retrieval plus the
// daily summary range query.
type ReportHandlers struct {
	reports   *services.ReportService
	summaries *services.SummaryService
	logger    *logging.ChanneledLogger
}

// NewReportHandlers creates report handlers with injected dependencies
func NewReportHandlers(reports *services.ReportService, summaries *services.SummaryService, logger *logging.ChanneledLogger) *ReportHandlers {
	return &ReportHandlers{
		reports:   reports,
		summaries: summaries,
		logger:    logger,
	}
}

// PostWeeklyReport handles POST /api/v1/analytics/reports/weekly (staff)
func (h *ReportHandlers) PostWeeklyReport(c *gin.Context) {
	var req struct {
		WeekStart string `json:"week_start"`
		Force     bool   `json:"force"`
		Send      bool   `json:"send"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	weekStart := services.DefaultWeekStart(time.Now().UTC())
	if req.WeekStart != "" {
		parsed, err := time.Parse("2006-01-02", req.WeekStart)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "week_start must be YYYY-MM-DD"})
			return
		}
		weekStart = parsed
	}

	report, err := h.reports.Generate(weekStart, req.Force)
	if err != nil {
		if errors.Is(err, services.ErrReportExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "Report already generated", "report_id": report.ID})
			return
		}
		h.logger.Report().Error("Report generation failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Report generation failed"})
		return
	}

	sent := false
	if req.Send {
		sent, err = h.reports.Send(report, nil)
		if err != nil {
			h.logger.Report().Error("Report delivery failed", "reportId", report.ID, "error", err.Error())
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"report_id": report.ID,
		"sent":      sent,
		"report":    report.ReportData,
	})
}

// GetSummaries handles GET /api/v1/analytics/summaries?start=&end= (staff)
func (h *ReportHandlers) GetSummaries(c *gin.Context) {
	now := time.Now().UTC()
	end := now
	start := now.AddDate(0, 0, -30)

	if v := c.Query("start"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start must be YYYY-MM-DD"})
			return
		}
		start = parsed
	}
	if v := c.Query("end"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end must be YYYY-MM-DD"})
			return
		}
		end = parsed
	}

	summaries, err := h.summaries.Range(start, end)
	if err != nil {
		h.logger.Report().Error("Summary range query failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Summary query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"summaries": summaries})
}
