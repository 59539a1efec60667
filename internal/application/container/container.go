// Package container provides dependency injection for all singleton services
package container

import (
	"fmt"

	"github.com/AmPepSoc/analytics-go/internal/application/services"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/email"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	repositories "github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/database"
	"github.com/AmPepSoc/analytics-go/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Infrastructure
	DB     *database.DB
	Logger *logging.ChanneledLogger
	Mailer email.Service

	// Repositories
	EventRepo       *repositories.SQLEventRepository
	CustomEventRepo *repositories.SQLCustomEventRepository
	JourneyRepo     *repositories.SQLJourneyRepository
	ExperimentRepo  *repositories.SQLExperimentRepository
	FunnelRepo      *repositories.SQLFunnelRepository
	ReportRepo      *repositories.SQLReportRepository
	SummaryRepo     *repositories.SQLSummaryRepository
	SettingsRepo    *repositories.SQLSettingsRepository
	DebugLogRepo    *repositories.SQLDebugLogRepository

	// Application services
	SettingsService        *services.SettingsService
	TrackingService        *services.TrackingService
	JourneyService         *services.JourneyService
	JourneyAnalysisService *services.JourneyAnalysisService
	ExperimentService      *services.ExperimentService
	IngestionService       *services.IngestionService
	FunnelService          *services.FunnelService
	ReportService          *services.ReportService
	SummaryService         *services.SummaryService
	CleanupService         *services.CleanupService
}

// NewContainer connects the database, prepares the schema, and wires
// every repository and service.
func NewContainer(logger *logging.ChanneledLogger) (*Container, error) {
	db, err := database.NewConnectionWithLogger(config.DBDriver, config.DBDataSource, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	tableCreator := database.NewTableCreator()
	if err := tableCreator.CreateSchema(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if err := tableCreator.SeedInitialSettings(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed settings: %w", err)
	}

	c := &Container{
		DB:     db,
		Logger: logger,
	}

	// Email delivery is optional: without an API key reports stay unsent.
	mailer, err := email.NewService()
	if err != nil {
		logger.Email().Warn("Email delivery disabled", "reason", err.Error())
	} else {
		c.Mailer = mailer
	}

	c.EventRepo = repositories.NewSQLEventRepository(db, logger)
	c.CustomEventRepo = repositories.NewSQLCustomEventRepository(db, logger)
	c.JourneyRepo = repositories.NewSQLJourneyRepository(db, logger)
	c.ExperimentRepo = repositories.NewSQLExperimentRepository(db, logger)
	c.FunnelRepo = repositories.NewSQLFunnelRepository(db, logger)
	c.ReportRepo = repositories.NewSQLReportRepository(db, logger)
	c.SummaryRepo = repositories.NewSQLSummaryRepository(db, logger)
	c.SettingsRepo = repositories.NewSQLSettingsRepository(db, logger)
	c.DebugLogRepo = repositories.NewSQLDebugLogRepository(db, logger)

	c.SettingsService, err = services.NewSettingsService(c.SettingsRepo, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	c.TrackingService = services.NewTrackingService(c.EventRepo, c.SettingsService, logger)
	c.JourneyService = services.NewJourneyService(c.JourneyRepo, logger)
	c.JourneyAnalysisService = services.NewJourneyAnalysisService(c.JourneyRepo, logger)
	c.ExperimentService = services.NewExperimentService(c.ExperimentRepo, c.JourneyService, logger)
	c.IngestionService = services.NewIngestionService(c.CustomEventRepo, c.JourneyService, c.ExperimentService, logger)
	c.FunnelService = services.NewFunnelService(c.FunnelRepo, c.CustomEventRepo, logger)
	c.ReportService = services.NewReportService(c.EventRepo, c.ReportRepo, c.DebugLogRepo, c.SettingsService, c.Mailer, logger)
	c.SummaryService = services.NewSummaryService(c.EventRepo, c.JourneyRepo, c.SummaryRepo, logger)
	c.CleanupService = services.NewCleanupService(c.EventRepo, c.CustomEventRepo, c.SummaryRepo, c.DebugLogRepo, c.SettingsService, logger)

	return c, nil
}

// Close releases the container's infrastructure resources.
func (c *Container) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
