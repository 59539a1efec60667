package main

import (
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/AmPepSoc/analytics-go/internal/application/container"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
)

func main() {
	dateFlag := flag.String("date", "", "day to summarize (YYYY-MM-DD, default: yesterday)")
	skipCleanup := flag.Bool("skip-cleanup", false, "skip the retention cleanup pass")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found -- config defaults will be used")
	}

	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logger.Close()

	appContainer, err := container.NewContainer(logger)
	if err != nil {
		log.Fatalf("Initialization failed: %v", err)
	}
	defer appContainer.Close()

	now := time.Now().UTC()
	day := now.AddDate(0, 0, -1)
	if *dateFlag != "" {
		day, err = time.Parse("2006-01-02", *dateFlag)
		if err != nil {
			log.Fatalf("Invalid -date %q: must be YYYY-MM-DD", *dateFlag)
		}
	}

	summary, err := appContainer.SummaryService.BuildDay(day, now)
	if err != nil {
		log.Fatalf("Daily summary failed: %v", err)
	}
	log.Printf("Summary for %s: %d page views, %d visitors, %d sessions",
		summary.Date.Format("2006-01-02"), summary.TotalPageViews,
		summary.UniqueVisitors, summary.TotalSessions)

	if !*skipCleanup {
		appContainer.CleanupService.Run(now)
	}
}
