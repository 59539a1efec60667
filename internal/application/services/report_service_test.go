package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
)

func TestDefaultWeekStart(t *testing.T) {
	// A Wednesday: the report covers the Monday of the previous week.
	now := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC), DefaultWeekStart(now))

	// Run on a Monday: still the previous full week, not today.
	now = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC), DefaultWeekStart(now))

	// Sunday rolls back to the Monday eight days earlier.
	now = time.Date(2026, 3, 8, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC), DefaultWeekStart(now))
}

func TestRenderTextReport(t *testing.T) {
	weekStart := time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC)
	events := []analytics.ReportEvent{
		{Type: analytics.EventPageView, SessionID: "s1", PageURL: "/news/", Timestamp: weekStart, Status: analytics.StatusProcessed},
		{Type: analytics.EventSearch, SessionID: "s1", Query: "optics", Timestamp: weekStart, Status: analytics.StatusProcessed},
	}
	data := analytics.BuildWeeklyReportData(weekStart, events, nil, weekStart.AddDate(0, 0, 8))

	body := RenderTextReport(data)

	assert.Contains(t, body, "WEEKLY ANALYTICS REPORT")
	assert.Contains(t, body, "2026-02-23")
	assert.Contains(t, body, "/news/")
	assert.Contains(t, body, "optics")
}
