package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/metrics"
	repositories "github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/security"
)

// ErrUnknownExperiment is returned when a named test does not exist.
var ErrUnknownExperiment = errors.New("unknown experiment")

// ExperimentService runs the A/B testing engine: deterministic variant
// assignment, participation bookkeeping, and conversion accounting.
type ExperimentService struct {
	experiments *repositories.SQLExperimentRepository
	journeys    *JourneyService
	logger      *logging.ChanneledLogger
}

// NewExperimentService creates a new experiment service with its dependencies.
func NewExperimentService(experiments *repositories.SQLExperimentRepository, journeys *JourneyService, logger *logging.ChanneledLogger) *ExperimentService {
	return &ExperimentService{
		experiments: experiments,
		journeys:    journeys,
		logger:      logger,
	}
}

// GetVariant returns the variant for a session in a named test, creating
// the participation row on first sight. Sessions outside the test get "".
// Assignment is a pure function of (test id, session id), so the answer
// never changes across calls or restarts.
func (s *ExperimentService) GetVariant(testName, sessionID string, userID *string) (string, error) {
	test, err := s.experiments.FindByName(testName)
	if err != nil {
		if errors.Is(err, repositories.ErrExperimentNotFound) {
			return "", ErrUnknownExperiment
		}
		return "", err
	}

	// A stored participation is authoritative and is never recomputed:
	// the session keeps its variant even if the allocation or variant
	// set changes after assignment.
	existing, err := s.experiments.FindParticipation(test.ID, sessionID)
	if err == nil {
		return existing.Variant, nil
	}
	if !errors.Is(err, repositories.ErrParticipationNotFound) {
		return "", err
	}

	variant := test.AssignVariant(sessionID)
	if variant == "" {
		return "", nil
	}

	participation := &analytics.Participation{
		ID:         security.GenerateULID(),
		TestID:     test.ID,
		SessionID:  sessionID,
		UserID:     userID,
		Variant:    variant,
		AssignedAt: time.Now().UTC(),
	}
	if err := s.experiments.InsertParticipation(participation); err != nil {
		if repositories.IsUniqueViolation(err) {
			// Concurrent first sight; the stored row is authoritative.
			existing, err := s.experiments.FindParticipation(test.ID, sessionID)
			if err != nil {
				return "", err
			}
			return existing.Variant, nil
		}
		return "", err
	}

	if err := s.experiments.IncrementParticipants(test.ID); err != nil {
		s.logger.Experiment().Warn("Participant counter update failed",
			"error", err.Error(), "testId", test.ID)
	}
	metrics.ExperimentAssignments.Inc()
	s.logger.Experiment().Debug("Variant assigned",
		"test", testName, "variant", variant)
	return variant, nil
}

// RecordConversion credits a goal against every active test the session
// participates in whose goals match. Each participation converts at most
// once; repeats are ignored. The session's journey is stamped with the
// goal regardless of test membership.
func (s *ExperimentService) RecordConversion(sessionID, goal string, value *float64) (int, error) {
	if sessionID == "" || goal == "" {
		return 0, nil
	}

	tests, err := s.experiments.ListActive()
	if err != nil {
		return 0, err
	}

	converted := 0
	for _, test := range tests {
		if !test.MatchesGoal(goal) {
			continue
		}

		participation, err := s.experiments.FindParticipation(test.ID, sessionID)
		if err != nil {
			if errors.Is(err, repositories.ErrParticipationNotFound) {
				continue
			}
			return converted, err
		}

		if !participation.MarkConverted(goal, value, time.Now().UTC()) {
			continue
		}

		won, err := s.experiments.MarkParticipationConverted(participation)
		if err != nil {
			return converted, err
		}
		if won {
			converted++
			metrics.ExperimentConversions.Inc()
			s.logger.Experiment().Info("Conversion recorded",
				"test", test.Name, "variant", participation.Variant, "goal", goal)
		}
	}

	if err := s.journeys.CompleteGoal(sessionID, goal, value); err != nil {
		s.logger.Experiment().Warn("Journey goal update failed",
			"error", err.Error(), "goal", goal)
	}
	return converted, nil
}

// ConvertForTest credits a goal against one named test. A missing goal
// defaults to the test's primary goal. Returns whether this call was
// the one that converted the participation.
func (s *ExperimentService) ConvertForTest(testName, sessionID, goal string, value *float64) (bool, error) {
	test, err := s.experiments.FindByName(testName)
	if err != nil {
		if errors.Is(err, repositories.ErrExperimentNotFound) {
			return false, ErrUnknownExperiment
		}
		return false, err
	}
	if goal == "" {
		goal = test.PrimaryGoal
	}
	if sessionID == "" || !test.IsActive || !test.MatchesGoal(goal) {
		return false, nil
	}

	participation, err := s.experiments.FindParticipation(test.ID, sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipationNotFound) {
			return false, nil
		}
		return false, err
	}

	won := false
	if participation.MarkConverted(goal, value, time.Now().UTC()) {
		won, err = s.experiments.MarkParticipationConverted(participation)
		if err != nil {
			return false, err
		}
		if won {
			metrics.ExperimentConversions.Inc()
			s.logger.Experiment().Info("Conversion recorded",
				"test", test.Name, "variant", participation.Variant, "goal", goal)
		}
	}

	if err := s.journeys.CompleteGoal(sessionID, goal, value); err != nil {
		s.logger.Experiment().Warn("Journey goal update failed",
			"error", err.Error(), "goal", goal)
	}
	return won, nil
}

// ExperimentResults is the per-test outcome summary served to staff.
type ExperimentResults struct {
	Name              string                       `json:"name"`
	IsActive          bool                         `json:"is_active"`
	TrafficAllocation float64                      `json:"traffic_allocation"`
	PrimaryGoal       string                       `json:"primary_goal"`
	TotalParticipants int                          `json:"total_participants"`
	Variants          []repositories.VariantResult `json:"variants"`
}

// Results aggregates per-variant participation and conversion counts.
func (s *ExperimentService) Results(testName string) (*ExperimentResults, error) {
	test, err := s.experiments.FindByName(testName)
	if err != nil {
		if errors.Is(err, repositories.ErrExperimentNotFound) {
			return nil, ErrUnknownExperiment
		}
		return nil, err
	}

	variants, err := s.experiments.Results(test.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute results for %s: %w", testName, err)
	}

	return &ExperimentResults{
		Name:              test.Name,
		IsActive:          test.IsActive,
		TrafficAllocation: test.TrafficAllocation,
		PrimaryGoal:       test.PrimaryGoal,
		TotalParticipants: test.TotalParticipants,
		Variants:          variants,
	}, nil
}

// Create registers a new test definition.
func (s *ExperimentService) Create(test *analytics.Experiment) error {
	if test.ID == "" {
		test.ID = security.GenerateULID()
	}
	if test.Conversions == nil {
		test.Conversions = make(map[string]int)
	}
	return s.experiments.Insert(test)
}
