package services

import (
	"errors"
	"time"

	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	repositories "github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/security"
)

// ErrUnknownFunnel is returned when a named funnel does not exist or is
// inactive.
var ErrUnknownFunnel = errors.New("unknown funnel")

// FunnelStepAnalysis is one step's outcome inside a funnel analysis.
type FunnelStepAnalysis struct {
	StepNumber     int     `json:"step_number"`
	StepName       string  `json:"step_name"`
	TotalUsers     int     `json:"total_users"`
	ConversionRate float64 `json:"conversion_rate"`
}

// FunnelAnalysis is the staff-facing funnel report.
type FunnelAnalysis struct {
	Name                  string               `json:"name"`
	Description           string               `json:"description"`
	OverallConversionRate float64              `json:"overall_conversion_rate"`
	Steps                 []FunnelStepAnalysis `json:"steps"`
}

// FunnelService analyzes conversion funnels against stored custom events.
type FunnelService struct {
	funnels      *repositories.SQLFunnelRepository
	customEvents *repositories.SQLCustomEventRepository
	logger       *logging.ChanneledLogger
}

// NewFunnelService creates a new funnel service with its dependencies.
func NewFunnelService(funnels *repositories.SQLFunnelRepository, customEvents *repositories.SQLCustomEventRepository, logger *logging.ChanneledLogger) *FunnelService {
	return &FunnelService{
		funnels:      funnels,
		customEvents: customEvents,
		logger:       logger,
	}
}

// Analyze computes per-step user counts and step-to-step conversion
// rates for a funnel over the last `days` days, and refreshes the stored
// funnel aggregates as a side effect.
func (s *FunnelService) Analyze(funnelName string, days int) (*FunnelAnalysis, error) {
	funnel, err := s.funnels.FindByName(funnelName)
	if err != nil {
		if errors.Is(err, repositories.ErrFunnelNotFound) {
			return nil, ErrUnknownFunnel
		}
		return nil, err
	}
	if !funnel.IsActive {
		return nil, ErrUnknownFunnel
	}

	if days <= 0 {
		days = 30
	}
	now := time.Now().UTC()
	startTime := now.AddDate(0, 0, -days)

	eventNames := make([]string, 0, len(funnel.Steps))
	for _, step := range funnel.Steps {
		eventNames = append(eventNames, step.EventName)
	}

	events, err := s.customEvents.FindByNamesInRange(eventNames, startTime, now)
	if err != nil {
		return nil, err
	}

	// Distinct sessions per step event name.
	sessionsPerStep := make(map[string]map[string]struct{}, len(funnel.Steps))
	for _, event := range events {
		sessions := sessionsPerStep[event.Name]
		if sessions == nil {
			sessions = make(map[string]struct{})
			sessionsPerStep[event.Name] = sessions
		}
		sessions[event.SessionID] = struct{}{}
	}

	analysis := &FunnelAnalysis{
		Name:                  funnel.Name,
		Description:           funnel.Description,
		OverallConversionRate: funnel.ConversionRate,
		Steps:                 make([]FunnelStepAnalysis, 0, len(funnel.Steps)),
	}

	for i, step := range funnel.Steps {
		analysis.Steps = append(analysis.Steps, FunnelStepAnalysis{
			StepNumber: i + 1,
			StepName:   step.Name,
			TotalUsers: len(sessionsPerStep[step.EventName]),
		})
	}

	// Conversion rate of each step relative to the one before it.
	for i := 1; i < len(analysis.Steps); i++ {
		prev := analysis.Steps[i-1].TotalUsers
		if prev > 0 {
			analysis.Steps[i].ConversionRate = round1f(float64(analysis.Steps[i].TotalUsers) / float64(prev) * 100)
		}
	}

	s.refreshStoredStats(funnel, analysis)
	return analysis, nil
}

func (s *FunnelService) refreshStoredStats(funnel *analytics.Funnel, analysis *FunnelAnalysis) {
	if len(analysis.Steps) == 0 {
		return
	}

	entries := analysis.Steps[0].TotalUsers
	completions := analysis.Steps[len(analysis.Steps)-1].TotalUsers
	funnel.TotalEntries = entries
	funnel.TotalCompletions = completions
	if entries > 0 {
		funnel.ConversionRate = round1f(float64(completions) / float64(entries) * 100)
	} else {
		funnel.ConversionRate = 0
	}

	if err := s.funnels.UpdateStats(funnel); err != nil {
		s.logger.System().Warn("Funnel stats refresh failed",
			"error", err.Error(), "funnel", funnel.Name)
	}
	analysis.OverallConversionRate = funnel.ConversionRate
}

// Create registers a new funnel definition.
func (s *FunnelService) Create(funnel *analytics.Funnel) error {
	if funnel.ID == "" {
		funnel.ID = security.GenerateULID()
	}
	if funnel.TimeWindowHours <= 0 {
		funnel.TimeWindowHours = 24
	}
	return s.funnels.Insert(funnel)
}

// List returns every active funnel.
func (s *FunnelService) List() ([]*analytics.Funnel, error) {
	return s.funnels.ListActive()
}
