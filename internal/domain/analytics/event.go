// Package analytics holds the domain model for the event tracking
// pipeline: raw events, session journeys, experiments, and the derived
// report types. Everything in this package is persistence-agnostic.
package analytics

import (
	"fmt"
	"time"
)

// EventType is the closed set of event kinds the pipeline understands.
type EventType string

const (
	EventPageView   EventType = "page_view"
	EventSearch     EventType = "search"
	EventClick      EventType = "click"
	EventFormSubmit EventType = "form_submit"
	EventDownload   EventType = "download"
	EventError      EventType = "error"
	EventAPICall    EventType = "api_call"
	EventCustom     EventType = "custom"
)

// ParseEventType maps a wire string to an EventType. Unknown kinds
// collapse to EventCustom rather than failing, matching the ingestion
// contract of never rejecting a whole batch over one odd name.
func ParseEventType(s string) EventType {
	switch EventType(s) {
	case EventPageView, EventSearch, EventClick, EventFormSubmit,
		EventDownload, EventError, EventAPICall, EventCustom:
		return EventType(s)
	}
	return EventCustom
}

// ProcessingStatus tracks an event's position in the write/retry lifecycle.
type ProcessingStatus string

const (
	StatusPending   ProcessingStatus = "pending"
	StatusProcessed ProcessingStatus = "processed"
	StatusFailed    ProcessingStatus = "failed"
	StatusRetry     ProcessingStatus = "retry"
)

// maxEventRetries bounds how many times a failed event is re-attempted.
const maxEventRetries = 3

// Event is one server-observed user action. Rows are append-mostly:
// after creation only the processing status fields change.
type Event struct {
	ID               string
	Type             EventType
	Timestamp        time.Time
	SessionID        string
	UserID           *string
	IPAddress        string
	UserAgent        string
	PageURL          string
	ReferrerURL      string
	EventData        map[string]any
	ProcessingStatus ProcessingStatus
	ErrorCount       int
	LastError        string
	PageLoadTimeMS   *int
	IsBot            bool
}

// MarkFailed records a processing failure. This is the only path that
// increments ErrorCount.
func (e *Event) MarkFailed(message string, now time.Time) {
	e.ProcessingStatus = StatusFailed
	e.ErrorCount++
	e.LastError = fmt.Sprintf("%s: %s", now.UTC().Format(time.RFC3339), message)
}

// ShouldRetry reports whether a failed event is still retry-eligible.
func (e *Event) ShouldRetry() bool {
	return e.ErrorCount < maxEventRetries && e.ProcessingStatus == StatusFailed
}
