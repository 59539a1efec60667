// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AmPepSoc/analytics-go/internal/application/container"
	"github.com/AmPepSoc/analytics-go/internal/presentation/http/handlers"
	"github.com/AmPepSoc/analytics-go/internal/presentation/http/middleware"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.SessionMiddleware())
	r.Use(middleware.TrackingMiddleware(
		container.TrackingService,
		container.JourneyService,
		container.DebugLogRepo,
		container.Logger,
	))

	// Initialize handlers
	ingestHandlers := handlers.NewIngestHandlers(container.IngestionService, container.SettingsService, container.Logger)
	experimentHandlers := handlers.NewExperimentHandlers(container.ExperimentService, container.Logger)
	journeyHandlers := handlers.NewJourneyHandlers(container.JourneyService, container.JourneyAnalysisService, container.Logger)
	funnelHandlers := handlers.NewFunnelHandlers(container.FunnelService, container.Logger)
	reportHandlers := handlers.NewReportHandlers(container.ReportService, container.SummaryService, container.Logger)
	settingsHandlers := handlers.NewSettingsHandlers(container.SettingsService, container.Logger)
	authHandlers := handlers.NewAuthHandlers(container.Logger)
	healthHandlers := handlers.NewHealthHandlers(container.DB, container.EventRepo, container.Logger)

	// Operational endpoints, outside the tracked API surface
	r.GET("/healthz", healthHandlers.GetHealthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		// Authentication
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandlers.PostLogin)
			auth.POST("/logout", authHandlers.PostLogout)
			auth.GET("/status", authHandlers.GetAuthStatus)
		}

		// Public tracking surface used by the client SDK
		analytics := api.Group("/analytics")
		{
			analytics.POST("/events", ingestHandlers.PostEvents)
			analytics.GET("/journey", journeyHandlers.GetOwnJourney)
			analytics.POST("/ab-tests/:name/variant", experimentHandlers.PostVariant)
			analytics.POST("/ab-tests/:name/conversion", experimentHandlers.PostConversion)

			// Staff read and admin endpoints
			staff := analytics.Group("")
			staff.Use(middleware.StaffAuthMiddleware(container.Logger))
			{
				staff.GET("/journeys", journeyHandlers.GetAnalysis)
				staff.GET("/funnels", funnelHandlers.GetList)
				staff.POST("/funnels", funnelHandlers.PostCreate)
				staff.GET("/funnels/:name", funnelHandlers.GetAnalysis)
				staff.GET("/ab-tests/:name/results", experimentHandlers.GetResults)
				staff.POST("/ab-tests", experimentHandlers.PostCreate)
				staff.POST("/reports/weekly", reportHandlers.PostWeeklyReport)
				staff.GET("/summaries", reportHandlers.GetSummaries)
				staff.GET("/settings", settingsHandlers.GetSettings)
				staff.PUT("/settings", settingsHandlers.PutSettings)
				staff.GET("/health", healthHandlers.GetHealth)
			}
		}
	}

	return r
}
