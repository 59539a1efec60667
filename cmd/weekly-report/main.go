package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/AmPepSoc/analytics-go/internal/application/container"
	"github.com/AmPepSoc/analytics-go/internal/application/services"
	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
)

func main() {
	weekStartFlag := flag.String("week-start", "", "Monday of the report week (YYYY-MM-DD, default: last completed week)")
	dryRun := flag.Bool("dry-run", false, "print the report instead of emailing it")
	force := flag.Bool("force", false, "regenerate even if the week already has a report")
	emails := flag.String("email", "", "comma-separated recipients (default: configured recipient list)")
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

	weekStart := services.DefaultWeekStart(time.Now().UTC())
	if *weekStartFlag != "" {
		weekStart, err = time.Parse("2006-01-02", *weekStartFlag)
		if err != nil {
			log.Fatalf("Invalid -week-start %q: must be YYYY-MM-DD", *weekStartFlag)
		}
	}

	settings := appContainer.SettingsService.Current()
	if !shouldRunScheduled(settings, *force, *emails, *dryRun) {
		log.Println("Weekly reports are disabled in analytics settings; nothing to do")
		return
	}

	report, err := appContainer.ReportService.Generate(weekStart, *force)
	if err != nil {
		if errors.Is(err, services.ErrReportExists) {
			log.Printf("Report for week %s already generated (use -force to regenerate)",
				weekStart.Format("2006-01-02"))
			os.Exit(0)
		}
		log.Fatalf("Report generation failed: %v", err)
	}

	if *dryRun {
		fmt.Println(services.RenderTextReport(report.ReportData))
		return
	}

	var recipients []string
	if *emails != "" {
		for _, addr := range strings.Split(*emails, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				recipients = append(recipients, addr)
			}
		}
	}

	// The weekly-send toggle gates scheduled delivery; an explicit
	// recipient list overrides it.
	if len(recipients) == 0 && (settings == nil || !settings.SendWeeklyReports) {
		log.Println("Weekly report delivery is disabled in settings; report generated but not sent")
		return
	}

	sent, err := appContainer.ReportService.Send(report, recipients)
	if err != nil {
		log.Fatalf("Report delivery failed: %v", err)
	}
	if sent {
		log.Printf("Weekly report %s sent", report.ID)
	} else {
		log.Println("No recipients configured; report generated but not sent")
	}
}

// shouldRunScheduled decides whether a plain invocation does any work.
// The scheduled job is a no-op when analytics or the weekly report is
// switched off; -force, -email, and -dry-run are operator overrides
// and run regardless.
func shouldRunScheduled(settings *analytics.Settings, force bool, emails string, dryRun bool) bool {
	if force || emails != "" || dryRun {
		return true
	}
	return settings != nil && settings.Enabled && settings.SendWeeklyReports
}
