package services

import (
	"fmt"
	"time"

	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/metrics"
	repositories "github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/security"
	"github.com/AmPepSoc/analytics-go/pkg/config"
)

// IncomingEvent is one client-submitted event inside a batch.
type IncomingEvent struct {
	Name        string         `json:"name"`
	Category    string         `json:"category"`
	Properties  map[string]any `json:"properties"`
	Value       *float64       `json:"value"`
	Timestamp   string         `json:"timestamp"`
	PageURL     string         `json:"page_url"`
	ReferrerURL string         `json:"referrer_url"`
}

// BatchRequest is the bulk tracking payload submitted by the client SDK.
type BatchRequest struct {
	Events    []IncomingEvent `json:"events"`
	SessionID string          `json:"session_id"`
	UserID    *string         `json:"user_id"`

	// Filled in by the handler from the request, not the payload.
	UserAgent string `json:"-"`
	IPAddress string `json:"-"`
}

// BatchResult reports how a batch fared. A batch succeeds partially:
// one bad event never poisons its neighbors.
type BatchResult struct {
	EventsCreated int      `json:"events_created"`
	Errors        []string `json:"errors,omitempty"`
}

// IngestionService processes bulk custom event submissions. Events past
// the batch cap are silently dropped, matching the SDK's own batching.
type IngestionService struct {
	customEvents *repositories.SQLCustomEventRepository
	journeys     *JourneyService
	experiments  *ExperimentService
	logger       *logging.ChanneledLogger
	maxBatch     int

	// sideEffects dispatches on the well-known event names that carry
	// pipeline semantics beyond storage.
	sideEffects map[string]func(*IngestionService, *IncomingEvent, *BatchRequest)
}

// NewIngestionService creates a new ingestion service with its dependencies.
func NewIngestionService(customEvents *repositories.SQLCustomEventRepository, journeys *JourneyService, experiments *ExperimentService, logger *logging.ChanneledLogger) *IngestionService {
	s := &IngestionService{
		customEvents: customEvents,
		journeys:     journeys,
		experiments:  experiments,
		logger:       logger,
		maxBatch:     config.MaxBatchEvents,
	}
	s.sideEffects = map[string]func(*IngestionService, *IncomingEvent, *BatchRequest){
		"page_view":       (*IngestionService).applyPageView,
		"conversion_goal": (*IngestionService).applyConversionGoal,
	}
	return s
}

// IngestBatch stores up to the batch cap of events from one submission.
// Each event is isolated: a failure is recorded in the result and the
// loop continues.
func (s *IngestionService) IngestBatch(batch *BatchRequest) *BatchResult {
	result := &BatchResult{}

	events := batch.Events
	if len(events) > s.maxBatch {
		events = events[:s.maxBatch]
	}

	var createdIDs []string
	for i := range events {
		incoming := &events[i]
		event, err := s.storeOne(incoming, batch)
		if err != nil {
			s.logger.Tracking().Error("Error processing custom event",
				"error", err.Error(), "name", incoming.Name)
			result.Errors = append(result.Errors, err.Error())
			continue
		}

		createdIDs = append(createdIDs, event.EventID)
		result.EventsCreated++
		metrics.EventsTracked.WithLabelValues(string(analytics.EventCustom)).Inc()

		if apply, ok := s.sideEffects[event.Name]; ok {
			apply(s, incoming, batch)
		}
	}

	if len(createdIDs) > 0 {
		if err := s.customEvents.MarkProcessed(createdIDs, time.Now().UTC()); err != nil {
			s.logger.Tracking().Warn("Failed to mark batch processed", "error", err.Error())
		}
	}
	return result
}

func (s *IngestionService) storeOne(incoming *IncomingEvent, batch *BatchRequest) (*analytics.CustomEvent, error) {
	if incoming.Name == "" {
		return nil, fmt.Errorf("event name is required")
	}

	category := incoming.Category
	if category == "" {
		category = "custom"
	}

	timestamp := time.Now().UTC()
	if incoming.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, incoming.Timestamp); err == nil {
			timestamp = parsed.UTC()
		}
	}

	event := &analytics.CustomEvent{
		EventID:     security.GenerateULID(),
		Name:        analytics.Truncate(incoming.Name, analytics.MaxEventNameLen),
		Category:    analytics.Truncate(category, analytics.MaxEventCategoryLen),
		SessionID:   batch.SessionID,
		UserID:      batch.UserID,
		Timestamp:   timestamp,
		Properties:  incoming.Properties,
		Value:       incoming.Value,
		PageURL:     analytics.SanitizeURL(incoming.PageURL),
		ReferrerURL: analytics.SanitizeURL(incoming.ReferrerURL),
		UserAgent:   analytics.Truncate(batch.UserAgent, analytics.MaxUserAgentLen),
		IPAddress:   batch.IPAddress,
	}

	if err := s.customEvents.Store(event); err != nil {
		return nil, err
	}
	return event, nil
}

// applyPageView folds a client-reported page view into the session journey.
func (s *IngestionService) applyPageView(incoming *IncomingEvent, batch *BatchRequest) {
	if batch.SessionID == "" {
		return
	}

	pageURL, _ := incoming.Properties["url"].(string)
	referrer, _ := incoming.Properties["referrer"].(string)
	if pageURL == "" {
		return
	}

	err := s.journeys.RecordVisit(PageVisit{
		SessionID:   batch.SessionID,
		UserID:      batch.UserID,
		PageURL:     pageURL,
		ReferrerURL: referrer,
		UserAgent:   batch.UserAgent,
	})
	if err != nil {
		s.logger.Journey().Error("Journey update error", "error", err.Error())
	}
}

// applyConversionGoal credits a goal completion to the session's journey
// and any matching experiments.
func (s *IngestionService) applyConversionGoal(incoming *IncomingEvent, batch *BatchRequest) {
	goalName, _ := incoming.Properties["goal_name"].(string)
	if goalName == "" {
		return
	}

	var goalValue *float64
	if v, ok := incoming.Properties["goal_value"].(float64); ok {
		goalValue = &v
	}

	if _, err := s.experiments.RecordConversion(batch.SessionID, goalName, goalValue); err != nil {
		s.logger.Experiment().Error("Conversion handling error", "error", err.Error())
	}
}
