package analytics

import (
	"time"
	"unicode/utf8"
)

// Field limits for client-submitted data. Anything longer is truncated,
// never rejected.
const (
	MaxEventNameLen     = 100
	MaxEventCategoryLen = 50
	MaxUserAgentLen     = 500
	MaxURLLen           = 500
	MaxSearchQueryLen   = 200
)

// CustomEvent is a client-reported structured event submitted through
// the bulk ingestion endpoint. It is distinct from the server-observed
// Event table: the client controls name, category, and properties.
type CustomEvent struct {
	EventID     string
	Name        string
	Category    string
	SessionID   string
	UserID      *string
	Timestamp   time.Time
	Properties  map[string]any
	Value       *float64
	PageURL     string
	ReferrerURL string
	UserAgent   string
	IPAddress   string
	Processed   bool
	ProcessedAt *time.Time
}

// Truncate clips client-controlled fields to their storage limits.
// Limits are in characters, not bytes, so multi-byte input is never
// cut mid-rune.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// Funnel defines a conversion funnel: an ordered list of named steps,
// each tied to a custom event name, analyzed over a time window.
type Funnel struct {
	ID               string
	Name             string
	Description      string
	Steps            []FunnelStep
	IsActive         bool
	TimeWindowHours  int
	TotalEntries     int
	TotalCompletions int
	ConversionRate   float64
}

// FunnelStep is one stage of a funnel.
type FunnelStep struct {
	Name      string `json:"name"`
	EventName string `json:"event_name"`
}
