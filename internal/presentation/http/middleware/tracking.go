package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AmPepSoc/analytics-go/internal/application/services"
	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/metrics"
	repositories "github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/analytics"
)

// TrackingMiddleware observes every request and feeds the analytics
// pipeline. All tracking runs behind a single error boundary: a failure
// anywhere in it is logged and counted, and the visitor's response is
// served as if analytics did not exist. Panics raised by downstream
// handlers are recorded and then re-raised unchanged.
func TrackingMiddleware(
	tracking *services.TrackingService,
	journeys *services.JourneyService,
	debugLogs *repositories.SQLDebugLogRepository,
	logger *logging.ChanneledLogger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if !tracking.ShouldTrack(path) {
			c.Next()
			return
		}

		start := time.Now()
		info := requestInfo(c)
		info.IsBot = tracking.ClassifyBot(info.UserAgent)

		defer func() {
			if panicValue := recover(); panicValue != nil {
				guard(debugLogs, logger, "track_panic", func() error {
					return tracking.TrackPanic(info, panicValue)
				})
				panic(panicValue)
			}
		}()

		c.Next()

		info.ElapsedMS = int(time.Since(start).Milliseconds())
		info.StatusCode = c.Writer.Status()

		switch {
		case info.StatusCode == http.StatusNotFound:
			guard(debugLogs, logger, "track_not_found", func() error {
				return tracking.TrackNotFound(info)
			})
		case info.StatusCode >= 400 && !tracking.DebugMode():
			// Other failure statuses are not recorded.
		default:
			guard(debugLogs, logger, "track_page_view", func() error {
				return tracking.TrackPageView(info)
			})
			if query := searchQuery(c); query != "" {
				guard(debugLogs, logger, "track_search", func() error {
					return tracking.TrackSearch(info, query, resultsPage(c), residualFilters(c))
				})
			}
			if !info.IsBot || tracking.DebugMode() {
				guard(debugLogs, logger, "journey_update", func() error {
					return journeys.RecordVisit(services.PageVisit{
						SessionID:   info.SessionID,
						UserID:      info.UserID,
						PageURL:     info.PageURL,
						ReferrerURL: info.ReferrerURL,
						UserAgent:   info.UserAgent,
						IsSearch:    searchQuery(c) != "",
						IsError:     false,
					})
				})
			}
		}
	}
}

// requestInfo snapshots the request attributes tracking needs before
// the handler chain can mutate anything.
func requestInfo(c *gin.Context) services.RequestInfo {
	userAgent := c.Request.UserAgent()
	pageURL := c.Request.URL.String()
	if c.Request.Host != "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		pageURL = scheme + "://" + c.Request.Host + c.Request.URL.String()
	}

	return services.RequestInfo{
		SessionID: GetSessionID(c),
		IPAddress: analytics.ClientIP(
			c.GetHeader("X-Forwarded-For"),
			c.GetHeader("X-Real-IP"),
			c.Request.RemoteAddr,
		),
		UserAgent:   userAgent,
		PageURL:     pageURL,
		ReferrerURL: c.Request.Referer(),
		Method:      c.Request.Method,
		Path:        c.Request.URL.Path,
		IsAjax:      c.GetHeader("X-Requested-With") == "XMLHttpRequest",
	}
}

// searchQuery extracts the search term from the request, if any.
// Both the CMS search form ("search") and the short form ("q") count.
func searchQuery(c *gin.Context) string {
	if q := c.Query("search"); q != "" {
		return q
	}
	return c.Query("q")
}

// resultsPage returns the pagination position of a search request.
func resultsPage(c *gin.Context) int {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// residualFilters returns the non-search, non-pagination query
// parameters, which the search event records as active filters.
func residualFilters(c *gin.Context) map[string]string {
	filters := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if key == "search" || key == "q" || key == "page" || len(values) == 0 {
			continue
		}
		filters[key] = values[0]
	}
	return filters
}

// guard is the tracking error boundary. Failures land in debug_logs
// when possible and in the system log either way; they never propagate.
func guard(debugLogs *repositories.SQLDebugLogRepository, logger *logging.ChanneledLogger, operation string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.TrackingFailures.Inc()
			logger.Tracking().Error("Tracking step panicked", "operation", operation, "panic", r)
		}
	}()

	if err := fn(); err != nil {
		metrics.TrackingFailures.Inc()
		logger.Tracking().Error("Tracking step failed", "operation", operation, "error", err.Error())
		if dbErr := debugLogs.Insert("error", "tracking failure", map[string]any{
			"operation": operation,
			"error":     err.Error(),
		}); dbErr != nil {
			logger.System().Warn("Debug log write failed", "error", dbErr.Error())
		}
	}
}
