package analytics

import (
	"fmt"
	"sort"
	"time"
)

// ReportEvent is the slim projection of an event row that the rollup
// computations consume. Repositories map rows into this shape so the
// report math stays a pure function over slices.
type ReportEvent struct {
	Type      EventType
	SessionID string
	PageURL   string
	Query     string
	Timestamp time.Time
	Status    ProcessingStatus
}

// MetricComparison is one week-over-week metric with its change.
type MetricComparison struct {
	Current         int     `json:"current"`
	Previous        int     `json:"previous"`
	Change          float64 `json:"change"`
	ChangeDirection string  `json:"change_direction"`
}

// PageCount pairs a page URL with its view count.
type PageCount struct {
	PageURL string `json:"page_url"`
	Views   int    `json:"views"`
}

// SearchCount pairs a search query with its frequency.
type SearchCount struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// DailyStat is one day's core metrics inside a weekly report.
type DailyStat struct {
	Date      string `json:"date"`
	DayName   string `json:"day_name"`
	PageViews int    `json:"page_views"`
	Visitors  int    `json:"visitors"`
	Searches  int    `json:"searches"`
}

// SystemHealth summarizes pipeline write failures for the week.
type SystemHealth struct {
	ErrorRate    float64 `json:"error_rate"`
	FailedEvents int     `json:"failed_events"`
	TotalEvents  int     `json:"total_events"`
}

// WeeklyReportData is the computed payload stored on a WeeklyReport row.
type WeeklyReportData struct {
	WeekStart   string                      `json:"week_start"`
	WeekEnd     string                      `json:"week_end"`
	GeneratedAt string                      `json:"generated_at"`
	Metrics     map[string]MetricComparison `json:"metrics"`
	TopPages    []PageCount                 `json:"top_pages"`
	TopSearches []SearchCount               `json:"top_searches"`
	DailyStats  []DailyStat                 `json:"daily_stats"`
	Health      SystemHealth                `json:"system_health"`
	Insights    []string                    `json:"insights"`
}

// WeeklyReport is the stored rollup row for one week. ReportData is a
// regenerable cache over the event table, never a source of truth.
type WeeklyReport struct {
	ID               string
	WeekStart        time.Time
	WeekEnd          time.Time
	ReportData       *WeeklyReportData
	SentTo           []string
	SentAt           *time.Time
	IsGenerated      bool
	IsSent           bool
	GenerationErrors string
	CreatedAt        time.Time
}

// DailySummary is the per-day rollup row, idempotently recomputable.
type DailySummary struct {
	ID                 string
	Date               time.Time
	TotalPageViews     int
	UniqueVisitors     int
	TotalSessions      int
	AvgSessionDuration int
	BounceRate         float64
	TopPages           []PageCount
	TopSearches        []SearchCount
	ErrorCount         int
	IsComplete         bool
}

// CompareMetric computes a week-over-week percentage change.
// A metric going from 0 to anything positive counts as +100%; 0 to 0
// is 0%.
func CompareMetric(current, previous int) MetricComparison {
	var change float64
	switch {
	case previous > 0:
		change = float64(current-previous) / float64(previous) * 100
	case current > 0:
		change = 100
	default:
		change = 0
	}
	change = round1(change)

	direction := "same"
	if change > 0 {
		direction = "up"
	} else if change < 0 {
		direction = "down"
	}
	return MetricComparison{
		Current:         current,
		Previous:        previous,
		Change:          change,
		ChangeDirection: direction,
	}
}

// BuildWeeklyReportData computes the full weekly rollup from the raw
// event projections of the target week and the week before it. Both
// slices must already exclude bot traffic.
func BuildWeeklyReportData(weekStart time.Time, events, prevEvents []ReportEvent, now time.Time) *WeeklyReportData {
	weekEnd := weekStart.AddDate(0, 0, 6)

	metrics := map[string]MetricComparison{
		"page_views":      CompareMetric(countByType(events, EventPageView), countByType(prevEvents, EventPageView)),
		"unique_visitors": CompareMetric(distinctSessions(events), distinctSessions(prevEvents)),
		"searches":        CompareMetric(countByType(events, EventSearch), countByType(prevEvents, EventSearch)),
		"errors":          CompareMetric(countByType(events, EventError), countByType(prevEvents, EventError)),
	}

	daily := make([]DailyStat, 0, 7)
	for day := weekStart; !day.After(weekEnd); day = day.AddDate(0, 0, 1) {
		dayEvents := filterDay(events, day)
		daily = append(daily, DailyStat{
			Date:      day.Format("2006-01-02"),
			DayName:   day.Weekday().String(),
			PageViews: countByType(dayEvents, EventPageView),
			Visitors:  distinctSessions(dayEvents),
			Searches:  countByType(dayEvents, EventSearch),
		})
	}

	failed := 0
	for _, e := range events {
		if e.Status == StatusFailed {
			failed++
		}
	}
	health := SystemHealth{FailedEvents: failed, TotalEvents: len(events)}
	if len(events) > 0 {
		health.ErrorRate = round2(float64(failed) / float64(len(events)) * 100)
	}

	data := &WeeklyReportData{
		WeekStart:   weekStart.Format("2006-01-02"),
		WeekEnd:     weekEnd.Format("2006-01-02"),
		GeneratedAt: now.UTC().Format(time.RFC3339),
		Metrics:     metrics,
		TopPages:    TopPages(events, 10),
		TopSearches: TopSearches(events, 10),
		DailyStats:  daily,
		Health:      health,
	}
	data.Insights = buildInsights(metrics, daily)
	return data
}

// TopPages ranks page URLs by page-view count, ties broken by URL so
// output order is stable.
func TopPages(events []ReportEvent, limit int) []PageCount {
	counts := make(map[string]int)
	for _, e := range events {
		if e.Type == EventPageView && e.PageURL != "" {
			counts[e.PageURL]++
		}
	}
	pages := make([]PageCount, 0, len(counts))
	for url, n := range counts {
		pages = append(pages, PageCount{PageURL: url, Views: n})
	}
	sort.Slice(pages, func(i, j int) bool {
		if pages[i].Views != pages[j].Views {
			return pages[i].Views > pages[j].Views
		}
		return pages[i].PageURL < pages[j].PageURL
	})
	if len(pages) > limit {
		pages = pages[:limit]
	}
	return pages
}

// TopSearches ranks search queries by frequency, case-sensitive exact
// match, ties broken by query string.
func TopSearches(events []ReportEvent, limit int) []SearchCount {
	counts := make(map[string]int)
	for _, e := range events {
		if e.Type == EventSearch && e.Query != "" {
			counts[e.Query]++
		}
	}
	searches := make([]SearchCount, 0, len(counts))
	for q, n := range counts {
		searches = append(searches, SearchCount{Query: q, Count: n})
	}
	sort.Slice(searches, func(i, j int) bool {
		if searches[i].Count != searches[j].Count {
			return searches[i].Count > searches[j].Count
		}
		return searches[i].Query < searches[j].Query
	})
	if len(searches) > limit {
		searches = searches[:limit]
	}
	return searches
}

// HealthStatus maps a failure rate to the ok/warning/error bands shown
// on staff dashboards.
func HealthStatus(errorRate float64) string {
	switch {
	case errorRate < 5:
		return "ok"
	case errorRate < 20:
		return "warning"
	default:
		return "error"
	}
}

func buildInsights(metrics map[string]MetricComparison, daily []DailyStat) []string {
	var insights []string

	pv := metrics["page_views"]
	if pv.Change > 50 {
		insights = append(insights, fmt.Sprintf("Page views increased by %.1f%%", pv.Change))
	} else if pv.Change < -30 {
		insights = append(insights, fmt.Sprintf("Page views decreased by %.1f%%", -pv.Change))
	}

	searches := metrics["searches"]
	if searches.Current > searches.Previous*2 && searches.Previous > 0 {
		insights = append(insights, "Search activity doubled compared to previous week")
	}

	if errs := metrics["errors"]; errs.Current > 10 {
		insights = append(insights, fmt.Sprintf("%d errors occurred this week", errs.Current))
	}

	best := DailyStat{}
	for _, day := range daily {
		if day.PageViews > best.PageViews {
			best = day
		}
	}
	if best.PageViews > 0 {
		insights = append(insights, fmt.Sprintf("Best day: %s with %d page views", best.DayName, best.PageViews))
	}

	return insights
}

func countByType(events []ReportEvent, t EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func distinctSessions(events []ReportEvent) int {
	seen := make(map[string]struct{})
	for _, e := range events {
		if e.SessionID != "" {
			seen[e.SessionID] = struct{}{}
		}
	}
	return len(seen)
}

func filterDay(events []ReportEvent, day time.Time) []ReportEvent {
	var out []ReportEvent
	y, m, d := day.Date()
	for _, e := range events {
		ey, em, ed := e.Timestamp.Date()
		if ey == y && em == m && ed == d {
			out = append(out, e)
		}
	}
	return out
}

func round1(v float64) float64 {
	if v < 0 {
		return float64(int(v*10-0.5)) / 10
	}
	return float64(int(v*10+0.5)) / 10
}

func round2(v float64) float64 {
	if v < 0 {
		return float64(int(v*100-0.5)) / 100
	}
	return float64(int(v*100+0.5)) / 100
}
