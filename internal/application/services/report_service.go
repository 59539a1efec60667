package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/email"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/email/templates"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/metrics"
	repositories "github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/security"
)

// ErrReportExists is returned when a week already has a generated report
// and regeneration was not forced.
var ErrReportExists = errors.New("report already generated for week")

// ReportService generates, persists, and delivers the weekly rollup.
type ReportService struct {
	events    *repositories.SQLEventRepository
	reports   *repositories.SQLReportRepository
	debugLogs *repositories.SQLDebugLogRepository
	settings  *SettingsService
	mailer    email.Service
	logger    *logging.ChanneledLogger
}

// NewReportService creates a new report service with its dependencies.
// The mailer may be nil; sending then reports an error instead of a
// delivery.
func NewReportService(
	events *repositories.SQLEventRepository,
	reports *repositories.SQLReportRepository,
	debugLogs *repositories.SQLDebugLogRepository,
	settings *SettingsService,
	mailer email.Service,
	logger *logging.ChanneledLogger,
) *ReportService {
	return &ReportService{
		events:    events,
		reports:   reports,
		debugLogs: debugLogs,
		settings:  settings,
		mailer:    mailer,
		logger:    logger,
	}
}

// DefaultWeekStart returns the Monday of the most recently completed week.
func DefaultWeekStart(now time.Time) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	daysSinceMonday := (int(today.Weekday()) + 6) % 7
	return today.AddDate(0, 0, -daysSinceMonday-7)
}

// Generate computes and persists the report for one week. An existing
// generated report short-circuits with ErrReportExists unless force is
// set. Generation failures are recorded on the report row and in the
// debug log, then returned.
func (s *ReportService) Generate(weekStart time.Time, force bool) (*analytics.WeeklyReport, error) {
	weekEnd := weekStart.AddDate(0, 0, 6)

	s.logger.Report().Info("Generating weekly report",
		"weekStart", weekStart.Format("2006-01-02"),
		"weekEnd", weekEnd.Format("2006-01-02"))

	report, err := s.reports.FindByWeek(weekStart, weekEnd)
	if err != nil {
		if !errors.Is(err, repositories.ErrReportNotFound) {
			return nil, err
		}
		report = &analytics.WeeklyReport{
			ID:        security.GenerateULID(),
			WeekStart: weekStart,
			WeekEnd:   weekEnd,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.reports.Insert(report); err != nil {
			if !repositories.IsUniqueViolation(err) {
				return nil, err
			}
			// Another generation run created the row first; adopt it.
			report, err = s.reports.FindByWeek(weekStart, weekEnd)
			if err != nil {
				return nil, err
			}
		}
	}

	if report.IsGenerated && !force {
		return report, ErrReportExists
	}

	data, err := s.computeReportData(weekStart, weekEnd)
	if err != nil {
		report.IsGenerated = false
		report.GenerationErrors = err.Error()
		if updateErr := s.reports.UpdateGeneration(report); updateErr != nil {
			s.logger.Report().Error("Failed to record generation error", "error", updateErr.Error())
		}
		if logErr := s.debugLogs.Insert("ERROR", "Weekly report generation failed: "+err.Error(), map[string]any{
			"week_start": weekStart.Format("2006-01-02"),
		}); logErr != nil {
			s.logger.Report().Error("Failed to write debug log", "error", logErr.Error())
		}
		return nil, err
	}

	report.ReportData = data
	report.IsGenerated = true
	report.GenerationErrors = ""
	if err := s.reports.UpdateGeneration(report); err != nil {
		return nil, err
	}

	metrics.ReportsGenerated.Inc()
	s.logger.Report().Info("Weekly report generated", "reportId", report.ID)
	return report, nil
}

func (s *ReportService) computeReportData(weekStart, weekEnd time.Time) (*analytics.WeeklyReportData, error) {
	// The end bound is exclusive, so query through the day after week end.
	weekEvents, err := s.events.FindReportEventsInRange(weekStart, weekEnd.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to load week events: %w", err)
	}

	prevEvents, err := s.events.FindReportEventsInRange(weekStart.AddDate(0, 0, -7), weekStart)
	if err != nil {
		return nil, fmt.Errorf("failed to load previous week events: %w", err)
	}

	return analytics.BuildWeeklyReportData(weekStart, weekEvents, prevEvents, time.Now()), nil
}

// Send delivers a generated report. When recipients is empty the
// configured recipient list is used; an empty configuration means the
// report stays unsent without error.
func (s *ReportService) Send(report *analytics.WeeklyReport, recipients []string) (bool, error) {
	if !report.IsGenerated || report.ReportData == nil {
		return false, errors.New("cannot send a report that was not generated")
	}

	if len(recipients) == 0 {
		if settings := s.settings.Current(); settings != nil {
			recipients = settings.ReportRecipients
		}
	}
	if len(recipients) == 0 {
		s.logger.Report().Warn("No recipients configured, report not sent", "reportId", report.ID)
		return false, nil
	}
	if s.mailer == nil {
		return false, errors.New("email service is not configured")
	}

	subject := fmt.Sprintf("Weekly Analytics Report - %s to %s",
		report.WeekStart.Format("2006-01-02"), report.WeekEnd.Format("2006-01-02"))

	htmlBody, err := templates.RenderWeeklyReport(report.ReportData)
	if err != nil {
		// Text delivery still goes out when HTML rendering breaks.
		s.logger.Report().Warn("HTML report rendering failed, sending text only", "error", err.Error())
		htmlBody = ""
	}

	if err := s.mailer.SendWeeklyReport(recipients, subject, RenderTextReport(report.ReportData), htmlBody); err != nil {
		// Delivery failure is recorded on the row; the report data stays.
		report.GenerationErrors = fmt.Sprintf("send failed: %v", err)
		if updateErr := s.reports.UpdateGeneration(report); updateErr != nil {
			s.logger.Report().Warn("Failed to record send error", "error", updateErr.Error())
		}
		return false, err
	}

	report.SentTo = recipients
	now := time.Now().UTC()
	report.SentAt = &now
	report.IsSent = true
	if err := s.reports.MarkSent(report); err != nil {
		return false, err
	}

	s.logger.Report().Info("Weekly report sent",
		"reportId", report.ID, "recipients", len(recipients))
	return true, nil
}

func metricLabel(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// RenderTextReport formats the report payload as the plain-text email body.
func RenderTextReport(data *analytics.WeeklyReportData) string {
	var b strings.Builder

	b.WriteString("WEEKLY ANALYTICS REPORT\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&b, "Week: %s to %s\n\n", data.WeekStart, data.WeekEnd)

	b.WriteString("KEY METRICS\n")
	b.WriteString(strings.Repeat("-", 20) + "\n")
	for _, name := range []string{"page_views", "unique_visitors", "searches", "errors"} {
		m := data.Metrics[name]
		direction := "="
		if m.ChangeDirection == "up" {
			direction = "+"
		} else if m.ChangeDirection == "down" {
			direction = "-"
		}
		change := m.Change
		if change < 0 {
			change = -change
		}
		fmt.Fprintf(&b, "%-15s %8d (%s %.1f%%)\n", metricLabel(name), m.Current, direction, change)
	}
	b.WriteString("\n")

	if len(data.Insights) > 0 {
		b.WriteString("KEY INSIGHTS\n")
		b.WriteString(strings.Repeat("-", 20) + "\n")
		for _, insight := range data.Insights {
			fmt.Fprintf(&b, "* %s\n", insight)
		}
		b.WriteString("\n")
	}

	b.WriteString("TOP PAGES\n")
	b.WriteString(strings.Repeat("-", 20) + "\n")
	for i, page := range data.TopPages {
		if i >= 5 {
			break
		}
		url := page.PageURL
		if len(url) > 40 {
			url = url[:37] + "..."
		}
		fmt.Fprintf(&b, "%d. %-40s %6d views\n", i+1, url, page.Views)
	}
	b.WriteString("\n")

	if len(data.TopSearches) > 0 {
		b.WriteString("TOP SEARCHES\n")
		b.WriteString(strings.Repeat("-", 20) + "\n")
		for i, search := range data.TopSearches {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&b, "%d. %-40s %6d\n", i+1, search.Query, search.Count)
		}
		b.WriteString("\n")
	}

	b.WriteString("DAILY BREAKDOWN\n")
	b.WriteString(strings.Repeat("-", 20) + "\n")
	for _, day := range data.DailyStats {
		fmt.Fprintf(&b, "%-10s %s: %d views, %d visitors, %d searches\n",
			day.DayName, day.Date, day.PageViews, day.Visitors, day.Searches)
	}
	b.WriteString("\n")

	b.WriteString("SYSTEM HEALTH\n")
	b.WriteString(strings.Repeat("-", 20) + "\n")
	fmt.Fprintf(&b, "Status: %s\n", analytics.HealthStatus(data.Health.ErrorRate))
	fmt.Fprintf(&b, "Error rate: %.2f%% (%d of %d events failed)\n",
		data.Health.ErrorRate, data.Health.FailedEvents, data.Health.TotalEvents)
	fmt.Fprintf(&b, "\nGenerated at: %s\n", data.GeneratedAt)

	return b.String()
}
