package services

import (
	"sort"
	"strings"
	"time"

	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	repositories "github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/analytics"
)

// maxPathSamples bounds how many journeys feed the common-path analysis.
const maxPathSamples = 100

// JourneyMetrics is the aggregate block of a journey analysis response.
type JourneyMetrics struct {
	TotalJourneys      int     `json:"total_journeys"`
	AvgPagesPerJourney float64 `json:"avg_pages_per_journey"`
	AvgDurationMinutes float64 `json:"avg_duration_minutes"`
	BounceRatePercent  float64 `json:"bounce_rate_percent"`
}

// PageFrequency pairs a page with how many journeys it appeared in.
type PageFrequency struct {
	Page  string `json:"page"`
	Count int    `json:"count"`
}

// PathFrequency pairs a browsing path with its occurrence count.
type PathFrequency struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// GoalFrequency pairs a completed goal with its occurrence count.
type GoalFrequency struct {
	Goal  string `json:"goal"`
	Count int    `json:"count"`
}

// JourneyAnalysis is the staff-facing journey report over a date range.
type JourneyAnalysis struct {
	Metrics     JourneyMetrics  `json:"metrics"`
	EntryPages  []PageFrequency `json:"entry_pages"`
	ExitPages   []PageFrequency `json:"exit_pages"`
	CommonPaths []PathFrequency `json:"common_paths"`
	Conversions []GoalFrequency `json:"conversions"`
}

// JourneyAnalysisService computes browsing-behavior reports from stored
// journeys.
type JourneyAnalysisService struct {
	journeys *repositories.SQLJourneyRepository
	logger   *logging.ChanneledLogger
}

// NewJourneyAnalysisService creates a new analysis service with its dependencies.
func NewJourneyAnalysisService(journeys *repositories.SQLJourneyRepository, logger *logging.ChanneledLogger) *JourneyAnalysisService {
	return &JourneyAnalysisService{
		journeys: journeys,
		logger:   logger,
	}
}

// Analyze computes the journey report for sessions started in the last
// `days` days.
func (s *JourneyAnalysisService) Analyze(days int) (*JourneyAnalysis, error) {
	if days <= 0 {
		days = 7
	}
	now := time.Now().UTC()
	startTime := now.AddDate(0, 0, -days)

	stats, err := s.journeys.StatsInRange(startTime, now)
	if err != nil {
		return nil, err
	}

	analysis := &JourneyAnalysis{
		Metrics: JourneyMetrics{
			TotalJourneys:      stats.TotalSessions,
			AvgPagesPerJourney: round1f(stats.AvgPages),
			AvgDurationMinutes: round1f(float64(stats.AvgDurationSeconds) / 60),
		},
		EntryPages:  []PageFrequency{},
		ExitPages:   []PageFrequency{},
		CommonPaths: []PathFrequency{},
		Conversions: []GoalFrequency{},
	}
	if stats.TotalSessions > 0 {
		analysis.Metrics.BounceRatePercent = round1f(float64(stats.BounceSessions) / float64(stats.TotalSessions) * 100)
	}

	// Page and path distributions come from a bounded sample of recent
	// journeys rather than a full scan.
	sample, err := s.journeys.FindStartedInRange(startTime, now, maxPathSamples*10)
	if err != nil {
		return nil, err
	}

	entryCounts := make(map[string]int)
	exitCounts := make(map[string]int)
	pathCounts := make(map[string]int)
	goalCounts := make(map[string]int)
	pathSamples := 0

	for _, journey := range sample {
		if journey.EntryPage != "" {
			entryCounts[journey.EntryPage]++
		}
		if journey.ExitPage != "" {
			exitCounts[journey.ExitPage]++
		}
		if journey.CompletedGoal != "" {
			goalCounts[journey.CompletedGoal]++
		}
		if pathSamples < maxPathSamples && journey.PageCount >= 2 && journey.PageCount <= 5 {
			prefix := journey.PagePath
			if len(prefix) > 3 {
				prefix = prefix[:3]
			}
			pathCounts[strings.Join(prefix, " -> ")]++
			pathSamples++
		}
	}

	analysis.EntryPages = topPages(entryCounts, 10)
	analysis.ExitPages = topPages(exitCounts, 10)
	analysis.CommonPaths = topPaths(pathCounts, 10)
	analysis.Conversions = topGoals(goalCounts)
	return analysis, nil
}

func topPages(counts map[string]int, limit int) []PageFrequency {
	pages := make([]PageFrequency, 0, len(counts))
	for page, n := range counts {
		pages = append(pages, PageFrequency{Page: page, Count: n})
	}
	sort.Slice(pages, func(i, j int) bool {
		if pages[i].Count != pages[j].Count {
			return pages[i].Count > pages[j].Count
		}
		return pages[i].Page < pages[j].Page
	})
	if len(pages) > limit {
		pages = pages[:limit]
	}
	return pages
}

func topPaths(counts map[string]int, limit int) []PathFrequency {
	paths := make([]PathFrequency, 0, len(counts))
	for path, n := range counts {
		paths = append(paths, PathFrequency{Path: path, Count: n})
	}
	sort.Slice(paths, func(i, j int) bool {
		if paths[i].Count != paths[j].Count {
			return paths[i].Count > paths[j].Count
		}
		return paths[i].Path < paths[j].Path
	})
	if len(paths) > limit {
		paths = paths[:limit]
	}
	return paths
}

func topGoals(counts map[string]int) []GoalFrequency {
	goals := make([]GoalFrequency, 0, len(counts))
	for goal, n := range counts {
		goals = append(goals, GoalFrequency{Goal: goal, Count: n})
	}
	sort.Slice(goals, func(i, j int) bool {
		if goals[i].Count != goals[j].Count {
			return goals[i].Count > goals[j].Count
		}
		return goals[i].Goal < goals[j].Goal
	})
	return goals
}

func round1f(v float64) float64 {
	if v < 0 {
		return float64(int(v*10-0.5)) / 10
	}
	return float64(int(v*10+0.5)) / 10
}
