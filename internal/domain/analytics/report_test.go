package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompareMetricRegularChange(t *testing.T) {
	m := CompareMetric(150, 100)
	assert.Equal(t, 50.0, m.Change)
	assert.Equal(t, "up", m.ChangeDirection)

	m = CompareMetric(50, 100)
	assert.Equal(t, -50.0, m.Change)
	assert.Equal(t, "down", m.ChangeDirection)
}

func TestCompareMetricFromZero(t *testing.T) {
	m := CompareMetric(12, 0)
	assert.Equal(t, 100.0, m.Change)
	assert.Equal(t, "up", m.ChangeDirection)
}

func TestCompareMetricZeroToZero(t *testing.T) {
	m := CompareMetric(0, 0)
	assert.Equal(t, 0.0, m.Change)
	assert.Equal(t, "same", m.ChangeDirection)
}

func TestHealthStatusBands(t *testing.T) {
	assert.Equal(t, "ok", HealthStatus(0))
	assert.Equal(t, "ok", HealthStatus(4.9))
	assert.Equal(t, "warning", HealthStatus(5))
	assert.Equal(t, "warning", HealthStatus(19.9))
	assert.Equal(t, "error", HealthStatus(20))
	assert.Equal(t, "error", HealthStatus(80))
}

func TestTopPagesRankingAndTies(t *testing.T) {
	events := []ReportEvent{
		{Type: EventPageView, PageURL: "/a"},
		{Type: EventPageView, PageURL: "/a"},
		{Type: EventPageView, PageURL: "/b"},
		{Type: EventPageView, PageURL: "/c"},
		{Type: EventSearch, PageURL: "/ignored"},
	}

	pages := TopPages(events, 10)
	assert.Equal(t, []PageCount{
		{PageURL: "/a", Views: 2},
		{PageURL: "/b", Views: 1},
		{PageURL: "/c", Views: 1},
	}, pages)
}

func TestTopSearchesCaseSensitive(t *testing.T) {
	events := []ReportEvent{
		{Type: EventSearch, Query: "Laser"},
		{Type: EventSearch, Query: "laser"},
		{Type: EventSearch, Query: "laser"},
	}

	searches := TopSearches(events, 10)
	assert.Equal(t, []SearchCount{
		{Query: "laser", Count: 2},
		{Query: "Laser", Count: 1},
	}, searches)
}

func TestBuildWeeklyReportData(t *testing.T) {
	weekStart := time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC) // a Monday
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	events := []ReportEvent{
		{Type: EventPageView, SessionID: "s1", PageURL: "/news/", Timestamp: weekStart, Status: StatusProcessed},
		{Type: EventPageView, SessionID: "s1", PageURL: "/news/", Timestamp: weekStart.Add(time.Hour), Status: StatusProcessed},
		{Type: EventPageView, SessionID: "s2", PageURL: "/about/", Timestamp: weekStart.AddDate(0, 0, 2), Status: StatusProcessed},
		{Type: EventSearch, SessionID: "s2", Query: "optics", Timestamp: weekStart.AddDate(0, 0, 2), Status: StatusProcessed},
		{Type: EventError, SessionID: "s3", Timestamp: weekStart.AddDate(0, 0, 4), Status: StatusFailed},
	}
	prevEvents := []ReportEvent{
		{Type: EventPageView, SessionID: "p1", PageURL: "/news/", Timestamp: weekStart.AddDate(0, 0, -7), Status: StatusProcessed},
	}

	data := BuildWeeklyReportData(weekStart, events, prevEvents, now)

	assert.Equal(t, "2026-02-23", data.WeekStart)
	assert.Equal(t, "2026-03-01", data.WeekEnd)

	assert.Equal(t, 3, data.Metrics["page_views"].Current)
	assert.Equal(t, 1, data.Metrics["page_views"].Previous)
	assert.Equal(t, 200.0, data.Metrics["page_views"].Change)

	// Searches went 0 -> 1, which reports as +100.
	assert.Equal(t, 100.0, data.Metrics["searches"].Change)
	assert.Equal(t, "up", data.Metrics["searches"].ChangeDirection)

	assert.Equal(t, 3, data.Metrics["unique_visitors"].Current)

	assert.Len(t, data.DailyStats, 7)
	assert.Equal(t, "Monday", data.DailyStats[0].DayName)
	assert.Equal(t, 2, data.DailyStats[0].PageViews)
	assert.Equal(t, 1, data.DailyStats[2].PageViews)

	assert.Equal(t, PageCount{PageURL: "/news/", Views: 2}, data.TopPages[0])
	assert.Equal(t, []SearchCount{{Query: "optics", Count: 1}}, data.TopSearches)

	assert.Equal(t, 1, data.Health.FailedEvents)
	assert.Equal(t, 5, data.Health.TotalEvents)
	assert.Equal(t, 20.0, data.Health.ErrorRate)

	assert.Contains(t, data.Insights, "Page views increased by 200.0%")
	assert.Contains(t, data.Insights, "Best day: Monday with 2 page views")
}
