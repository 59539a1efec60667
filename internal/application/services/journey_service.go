package services

import (
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/metrics"
	repositories "github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/security"
	"github.com/AmPepSoc/analytics-go/pkg/config"
)

// JourneyService maintains the per-session journey rows. Updates for the
// same session are serialized through a striped lock so concurrent
// requests from one visitor cannot interleave read-modify-write cycles.
type JourneyService struct {
	journeys *repositories.SQLJourneyRepository
	logger   *logging.ChanneledLogger
	stripes  []sync.Mutex
}

// NewJourneyService creates a new journey service with its dependencies.
func NewJourneyService(journeys *repositories.SQLJourneyRepository, logger *logging.ChanneledLogger) *JourneyService {
	stripes := config.JourneyLockStripes
	if stripes < 1 {
		stripes = 1
	}
	return &JourneyService{
		journeys: journeys,
		logger:   logger,
		stripes:  make([]sync.Mutex, stripes),
	}
}

func (s *JourneyService) lockFor(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return &s.stripes[h.Sum32()%uint32(len(s.stripes))]
}

// PageVisit carries the attributes of one page view feeding a journey.
type PageVisit struct {
	SessionID   string
	UserID      *string
	PageURL     string
	ReferrerURL string
	UserAgent   string
	IsSearch    bool
	IsError     bool
}

// RecordVisit folds one page view into the session's journey, creating
// the journey on first sight of the session.
func (s *JourneyService) RecordVisit(visit PageVisit) error {
	if visit.SessionID == "" {
		return nil
	}

	mu := s.lockFor(visit.SessionID)
	mu.Lock()
	defer mu.Unlock()

	now := time.Now().UTC()
	pageURL := analytics.SanitizeURL(visit.PageURL)

	journey, err := s.getOrCreate(visit, pageURL, now)
	if err != nil {
		return err
	}

	journey.AddPageVisit(pageURL)
	journey.TotalEvents++
	if visit.IsSearch {
		journey.SearchCount++
	}
	if visit.IsError {
		journey.ErrorCount++
	}
	if visit.UserID != nil {
		journey.UserID = visit.UserID
	}
	journey.Touch(now)

	if err := s.journeys.Update(journey); err != nil {
		return err
	}
	metrics.JourneysUpdated.Inc()
	return nil
}

// CompleteGoal stamps a conversion goal onto the session's journey.
// Repeat completions overwrite: the journey reflects the latest goal.
func (s *JourneyService) CompleteGoal(sessionID, goal string, value *float64) error {
	if sessionID == "" || goal == "" {
		return nil
	}

	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	journey, err := s.journeys.FindBySessionID(sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrJourneyNotFound) {
			// A conversion without any tracked page view has no journey
			// to stamp. Not an error.
			return nil
		}
		return err
	}

	journey.MarkGoalCompleted(goal, value)
	return s.journeys.Update(journey)
}

// Get returns the journey for a session, or ErrJourneyNotFound.
func (s *JourneyService) Get(sessionID string) (*analytics.Journey, error) {
	return s.journeys.FindBySessionID(sessionID)
}

func (s *JourneyService) getOrCreate(visit PageVisit, pageURL string, now time.Time) (*analytics.Journey, error) {
	journey, err := s.journeys.FindBySessionID(visit.SessionID)
	if err == nil {
		return journey, nil
	}
	if !errors.Is(err, repositories.ErrJourneyNotFound) {
		return nil, err
	}

	journey = analytics.NewJourney(
		visit.SessionID,
		visit.UserID,
		pageURL,
		analytics.ExtractDomain(visit.ReferrerURL),
		analytics.DetectDeviceType(visit.UserAgent),
		now,
	)
	journey.ID = security.GenerateULID()

	if err := s.journeys.Insert(journey); err != nil {
		// A concurrent request on another process created the row first.
		if repositories.IsUniqueViolation(err) {
			return s.journeys.FindBySessionID(visit.SessionID)
		}
		return nil, err
	}
	return journey, nil
}
