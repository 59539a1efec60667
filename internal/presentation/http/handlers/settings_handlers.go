package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AmPepSoc/analytics-go/internal/application/services"
	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
)

// settingsPayload is the wire form of the runtime settings row.
type settingsPayload struct {
	Enabled        bool `json:"enabled"`
	TrackPageViews bool `json:"track_page_views"`
	TrackSearches  bool `json:"track_searches"`
	TrackErrors    bool `json:"track_errors"`
	TrackDownloads bool `json:"track_downloads"`

	SamplingRate       float64 `json:"sampling_rate"`
	MaxEventsPerMinute int     `json:"max_events_per_minute"`

	RawEventRetentionDays     int `json:"raw_event_retention_days"`
	DailySummaryRetentionDays int `json:"daily_summary_retention_days"`
	DebugLogRetentionDays     int `json:"debug_log_retention_days"`

	BotUserAgents []string `json:"bot_user_agents"`

	ReportRecipients  []string `json:"report_recipients"`
	SendWeeklyReports bool     `json:"send_weekly_reports"`
	ReportDay         int      `json:"report_day"`

	DebugMode bool `json:"debug_mode"`
	TestMode  bool `json:"test_mode"`
}

// SettingsHandlers serves the staff settings read/update endpoints.
type SettingsHandlers struct {
	settings *services.SettingsService
	logger   *logging.ChanneledLogger
}

// NewSettingsHandlers creates settings handlers with injected dependencies
func NewSettingsHandlers(settings *services.SettingsService, logger *logging.ChanneledLogger) *SettingsHandlers {
	return &SettingsHandlers{
		settings: settings,
		logger:   logger,
	}
}

// GetSettings handles GET /api/v1/analytics/settings (staff)
func (h *SettingsHandlers) GetSettings(c *gin.Context) {
	settings := h.settings.Current()
	if settings == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Settings unavailable"})
		return
	}
	c.JSON(http.StatusOK, toPayload(settings))
}

// PutSettings handles PUT /api/v1/analytics/settings (staff)
func (h *SettingsHandlers) PutSettings(c *gin.Context) {
	var payload settingsPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if payload.SamplingRate < 0 || payload.SamplingRate > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sampling_rate must be between 0 and 1"})
		return
	}

	settings := fromPayload(&payload)
	settings.UpdatedAt = time.Now().UTC()
	if err := h.settings.Update(settings); err != nil {
		h.logger.System().Error("Settings update failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Settings update failed"})
		return
	}

	h.logger.System().Info("Settings updated",
		"enabled", settings.Enabled,
		"samplingRate", settings.SamplingRate,
		"debugMode", settings.DebugMode)
	c.JSON(http.StatusOK, toPayload(settings))
}

func toPayload(s *analytics.Settings) *settingsPayload {
	return &settingsPayload{
		Enabled:                   s.Enabled,
		TrackPageViews:            s.TrackPageViews,
		TrackSearches:             s.TrackSearches,
		TrackErrors:               s.TrackErrors,
		TrackDownloads:            s.TrackDownloads,
		SamplingRate:              s.SamplingRate,
		MaxEventsPerMinute:        s.MaxEventsPerMinute,
		RawEventRetentionDays:     s.RawEventRetentionDays,
		DailySummaryRetentionDays: s.DailySummaryRetentionDays,
		DebugLogRetentionDays:     s.DebugLogRetentionDays,
		BotUserAgents:             s.BotUserAgents,
		ReportRecipients:          s.ReportRecipients,
		SendWeeklyReports:         s.SendWeeklyReports,
		ReportDay:                 s.ReportDay,
		DebugMode:                 s.DebugMode,
		TestMode:                  s.TestMode,
	}
}

func fromPayload(p *settingsPayload) *analytics.Settings {
	return &analytics.Settings{
		Enabled:                   p.Enabled,
		TrackPageViews:            p.TrackPageViews,
		TrackSearches:             p.TrackSearches,
		TrackErrors:               p.TrackErrors,
		TrackDownloads:            p.TrackDownloads,
		SamplingRate:              p.SamplingRate,
		MaxEventsPerMinute:        p.MaxEventsPerMinute,
		RawEventRetentionDays:     p.RawEventRetentionDays,
		DailySummaryRetentionDays: p.DailySummaryRetentionDays,
		DebugLogRetentionDays:     p.DebugLogRetentionDays,
		BotUserAgents:             p.BotUserAgents,
		ReportRecipients:          p.ReportRecipients,
		SendWeeklyReports:         p.SendWeeklyReports,
		ReportDay:                 p.ReportDay,
		DebugMode:                 p.DebugMode,
		TestMode:                  p.TestMode,
	}
}
