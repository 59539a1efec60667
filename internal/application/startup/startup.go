// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AmPepSoc/analytics-go/internal/application/container"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/database"
	"github.com/AmPepSoc/analytics-go/internal/presentation/http/server"
	"github.com/AmPepSoc/analytics-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// Initialize performs the complete startup sequence
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	// Step 1: Channeled logging
	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logger.Close()

	logger.Startup().Info("Starting analytics service")

	// Step 2: Database preflight -- fail fast with a clear message before
	// the container starts migrating schema against an unreachable store.
	preflightStart := time.Now()
	if err := database.VerifyDataSource(config.DBDriver, config.DBDataSource); err != nil {
		logger.LogStartupPhase("db_preflight", time.Since(preflightStart), false, map[string]any{"error": err.Error()})
		return fmt.Errorf("database preflight failed: %w", err)
	}
	logger.LogStartupPhase("db_preflight", time.Since(preflightStart), true, map[string]any{"driver": config.DBDriver})

	// Step 3: Dependency injection container (database, schema, services)
	containerStart := time.Now()
	appContainer, err := container.NewContainer(logger)
	if err != nil {
		logger.LogStartupPhase("container", time.Since(containerStart), false, map[string]any{"error": err.Error()})
		return fmt.Errorf("container initialization failed: %w", err)
	}
	defer appContainer.Close()
	logger.LogStartupPhase("container", time.Since(containerStart), true, nil)

	// Step 4: HTTP server
	serverStart := time.Now()
	port := os.Getenv("PORT")
	if port == "" {
		port = config.Port
	}
	httpServer := server.New(port, appContainer)
	logger.LogStartupPhase("http_server", time.Since(serverStart), true, map[string]any{"port": port})

	// Step 5: Graceful shutdown wiring
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"port", port)

	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")

	shutdownStart := time.Now()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	if err := appContainer.Close(); err != nil {
		logger.Shutdown().Error("Error closing database", "error", err.Error())
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
