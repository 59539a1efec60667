package services

import (
	"math/rand"
	"strings"
	"time"

	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/metrics"
	repositories "github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/security"
)

// Paths the tracker never records: operational surfaces and asset trees.
var excludedPathPrefixes = []string{"/admin/", "/static/", "/media/", "/__debug__/", "/metrics", "/healthz"}

var excludedExtensions = []string{".js", ".css", ".png", ".jpg", ".ico", ".xml", ".txt"}

// RequestInfo carries the request attributes the tracker needs, decoupled
// from the HTTP framework.
type RequestInfo struct {
	SessionID   string
	UserID      *string
	IPAddress   string
	UserAgent   string
	PageURL     string
	ReferrerURL string
	Method      string
	Path        string
	StatusCode  int
	IsAjax      bool
	ElapsedMS   int
	IsBot       bool
}

// TrackingService turns observed requests into stored analytics events.
// Every method is best-effort: failures are logged and counted, never
// propagated to the visitor's request.
type TrackingService struct {
	events   *repositories.SQLEventRepository
	settings *SettingsService
	logger   *logging.ChanneledLogger
}

// NewTrackingService creates a new tracking service with its dependencies.
func NewTrackingService(events *repositories.SQLEventRepository, settings *SettingsService, logger *logging.ChanneledLogger) *TrackingService {
	return &TrackingService{
		events:   events,
		settings: settings,
		logger:   logger,
	}
}

// ShouldTrack decides whether a request path enters the pipeline at all.
// Any internal failure here means "do not track".
func (s *TrackingService) ShouldTrack(path string) bool {
	settings := s.settings.Current()
	if settings == nil || !settings.Enabled {
		return false
	}

	for _, prefix := range excludedPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			metrics.EventsDropped.WithLabelValues("excluded").Inc()
			return false
		}
	}
	for _, ext := range excludedExtensions {
		if strings.HasSuffix(path, ext) {
			metrics.EventsDropped.WithLabelValues("excluded").Inc()
			return false
		}
	}

	if settings.SamplingRate < 1.0 && rand.Float64() > settings.SamplingRate {
		metrics.EventsDropped.WithLabelValues("sampled").Inc()
		return false
	}

	return true
}

// ClassifyBot applies the configured bot patterns to a user agent.
func (s *TrackingService) ClassifyBot(userAgent string) bool {
	settings := s.settings.Current()
	var patterns []string
	if settings != nil {
		patterns = settings.BotUserAgents
	}
	return analytics.IsBot(userAgent, patterns)
}

// DebugMode reports whether the pipeline is in debug mode, which stores
// bot traffic and failed responses it would otherwise skip.
func (s *TrackingService) DebugMode() bool {
	settings := s.settings.Current()
	return settings != nil && settings.DebugMode
}

// TrackPageView records a completed page request.
func (s *TrackingService) TrackPageView(info RequestInfo) error {
	settings := s.settings.Current()
	if settings == nil || !settings.TrackPageViews {
		return nil
	}

	// Bot requests are skipped outside debug mode.
	if info.IsBot && !settings.DebugMode {
		metrics.EventsDropped.WithLabelValues("bot").Inc()
		return nil
	}

	elapsed := info.ElapsedMS
	event := &analytics.Event{
		ID:          security.GenerateULID(),
		Type:        analytics.EventPageView,
		Timestamp:   time.Now().UTC(),
		SessionID:   info.SessionID,
		UserID:      info.UserID,
		IPAddress:   info.IPAddress,
		UserAgent:   analytics.Truncate(info.UserAgent, analytics.MaxUserAgentLen),
		PageURL:     analytics.SanitizeURL(info.PageURL),
		ReferrerURL: analytics.Truncate(info.ReferrerURL, analytics.MaxURLLen),
		EventData: map[string]any{
			"status_code": info.StatusCode,
			"method":      info.Method,
			"is_ajax":     info.IsAjax,
		},
		ProcessingStatus: analytics.StatusProcessed,
		PageLoadTimeMS:   &elapsed,
		IsBot:            info.IsBot,
	}

	if err := s.events.Store(event); err != nil {
		return err
	}
	metrics.EventsTracked.WithLabelValues(string(analytics.EventPageView)).Inc()
	return nil
}

// TrackSearch records a search query observed on a request.
func (s *TrackingService) TrackSearch(info RequestInfo, query string, resultsPage int, filters map[string]string) error {
	settings := s.settings.Current()
	if settings == nil || !settings.TrackSearches {
		return nil
	}

	filterData := make(map[string]any, len(filters))
	for k, v := range filters {
		filterData[k] = v
	}

	event := &analytics.Event{
		ID:        security.GenerateULID(),
		Type:      analytics.EventSearch,
		Timestamp: time.Now().UTC(),
		SessionID: info.SessionID,
		UserID:    info.UserID,
		PageURL:   analytics.SanitizeURL(info.PageURL),
		EventData: map[string]any{
			"query":        analytics.Truncate(query, analytics.MaxSearchQueryLen),
			"results_page": resultsPage,
			"filters":      filterData,
		},
		ProcessingStatus: analytics.StatusProcessed,
		IsBot:            info.IsBot,
	}

	if err := s.events.Store(event); err != nil {
		return err
	}
	metrics.EventsTracked.WithLabelValues(string(analytics.EventSearch)).Inc()
	return nil
}

// TrackNotFound records a 404 response. Other failure statuses are
// deliberately not stored outside debug mode.
func (s *TrackingService) TrackNotFound(info RequestInfo) error {
	settings := s.settings.Current()
	if settings == nil || !settings.TrackErrors {
		return nil
	}

	event := &analytics.Event{
		ID:          security.GenerateULID(),
		Type:        analytics.EventError,
		Timestamp:   time.Now().UTC(),
		SessionID:   info.SessionID,
		UserID:      info.UserID,
		PageURL:     analytics.SanitizeURL(info.PageURL),
		ReferrerURL: analytics.Truncate(info.ReferrerURL, analytics.MaxURLLen),
		EventData: map[string]any{
			"error_type": "404",
			"path":       info.Path,
		},
		ProcessingStatus: analytics.StatusProcessed,
		IsBot:            info.IsBot,
	}

	if err := s.events.Store(event); err != nil {
		return err
	}
	metrics.EventsTracked.WithLabelValues(string(analytics.EventError)).Inc()
	return nil
}

// TrackPanic records an application error surfaced as a panic during
// request handling. The panic itself is re-raised by the middleware.
func (s *TrackingService) TrackPanic(info RequestInfo, panicValue any) error {
	settings := s.settings.Current()
	if settings == nil || !settings.TrackErrors {
		return nil
	}

	message := ""
	switch v := panicValue.(type) {
	case error:
		message = v.Error()
	case string:
		message = v
	default:
		message = "unhandled panic"
	}

	event := &analytics.Event{
		ID:        security.GenerateULID(),
		Type:      analytics.EventError,
		Timestamp: time.Now().UTC(),
		SessionID: info.SessionID,
		UserID:    info.UserID,
		PageURL:   analytics.SanitizeURL(info.PageURL),
		EventData: map[string]any{
			"error_type":    "panic",
			"error_message": analytics.Truncate(message, 500),
		},
		ProcessingStatus: analytics.StatusProcessed,
		IsBot:            info.IsBot,
	}

	if err := s.events.Store(event); err != nil {
		return err
	}
	metrics.EventsTracked.WithLabelValues(string(analytics.EventError)).Inc()
	return nil
}
