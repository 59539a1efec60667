package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewJourneyFirstVisitIsBounce(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	journey := NewJourney("s1", nil, "/a", "example.org", "desktop", now)
	journey.AddPageVisit("/a")

	assert.Equal(t, 1, journey.PageCount)
	assert.True(t, journey.IsBounce)
	assert.Equal(t, "/a", journey.ExitPage)
}

func TestAddPageVisitSuppressesConsecutiveDuplicates(t *testing.T) {
	journey := NewJourney("s1", nil, "/a", "", "desktop", time.Now())

	assert.True(t, journey.AddPageVisit("/a"))
	assert.False(t, journey.AddPageVisit("/a"))
	assert.Equal(t, 1, journey.PageCount)
	assert.True(t, journey.IsBounce)
}

func TestAddPageVisitRevisitCounts(t *testing.T) {
	journey := NewJourney("s1", nil, "/a", "", "desktop", time.Now())
	journey.AddPageVisit("/a")
	journey.AddPageVisit("/b")
	journey.AddPageVisit("/a")

	assert.Equal(t, []string{"/a", "/b", "/a"}, journey.PagePath)
	assert.Equal(t, 3, journey.PageCount)
	assert.False(t, journey.IsBounce)
	assert.Equal(t, "/a", journey.ExitPage)
}

func TestAddPageVisitIgnoresEmptyURL(t *testing.T) {
	journey := NewJourney("s1", nil, "/a", "", "desktop", time.Now())
	assert.False(t, journey.AddPageVisit(""))
	assert.Equal(t, 0, journey.PageCount)
}

func TestTouchComputesDuration(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	journey := NewJourney("s1", nil, "/a", "", "desktop", start)

	journey.Touch(start.Add(90 * time.Second))
	assert.Equal(t, 90, journey.DurationSeconds)
	assert.Equal(t, start.Add(90*time.Second), *journey.EndTime)
}

func TestTouchClampsDuration(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	journey := NewJourney("s1", nil, "/a", "", "desktop", start)

	journey.Touch(start.Add(-time.Minute))
	assert.Equal(t, 0, journey.DurationSeconds)

	journey.Touch(start.Add(48 * time.Hour))
	assert.Equal(t, 86400, journey.DurationSeconds)
}

func TestMarkGoalCompletedLastWins(t *testing.T) {
	journey := NewJourney("s1", nil, "/a", "", "desktop", time.Now())

	first := 10.0
	second := 25.0
	journey.MarkGoalCompleted("signup", &first)
	journey.MarkGoalCompleted("purchase", &second)

	assert.Equal(t, "purchase", journey.CompletedGoal)
	assert.Equal(t, 25.0, *journey.ConversionValue)
}
