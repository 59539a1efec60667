package analytics

import "time"

// maxJourneyDurationSeconds caps journey duration at 24h. Sessions that
// idle longer than that are stale cookies, not day-long visits.
const maxJourneyDurationSeconds = 86400

// Journey is the mutable per-session aggregate of one browsing session:
// the ordered page path plus derived bounce/duration/conversion state.
// There is exactly one Journey per session id.
type Journey struct {
	ID              string
	SessionID       string
	UserID          *string
	StartTime       time.Time
	EndTime         *time.Time
	DurationSeconds int
	EntryPage       string
	ExitPage        string
	PagePath        []string
	PageCount       int
	IsBounce        bool
	CompletedGoal   string
	ConversionValue *float64
	TotalEvents     int
	SearchCount     int
	ErrorCount      int
	DeviceType      string
	ReferrerDomain  string
}

// NewJourney creates the journey record for a session's first page view.
func NewJourney(sessionID string, userID *string, entryPage, referrerDomain, deviceType string, now time.Time) *Journey {
	return &Journey{
		SessionID:      sessionID,
		UserID:         userID,
		StartTime:      now,
		EntryPage:      entryPage,
		ReferrerDomain: referrerDomain,
		DeviceType:     deviceType,
	}
}

// AddPageVisit appends a page to the journey path and recomputes the
// derived fields. A URL equal to the current last entry is ignored, so
// reloads never inflate the page count. Reports whether the path changed.
func (j *Journey) AddPageVisit(pageURL string) bool {
	if pageURL == "" {
		return false
	}
	if n := len(j.PagePath); n > 0 && j.PagePath[n-1] == pageURL {
		return false
	}
	j.PagePath = append(j.PagePath, pageURL)
	j.PageCount = len(j.PagePath)
	j.ExitPage = pageURL
	j.IsBounce = j.PageCount == 1
	return true
}

// Touch stamps the journey's end time and recomputes its duration.
// Duration clamps to [0, 24h]; clock skew never yields a negative value.
func (j *Journey) Touch(now time.Time) {
	end := now
	j.EndTime = &end
	seconds := int(end.Sub(j.StartTime).Seconds())
	if seconds < 0 {
		seconds = 0
	}
	if seconds > maxJourneyDurationSeconds {
		seconds = maxJourneyDurationSeconds
	}
	j.DurationSeconds = seconds
}

// MarkGoalCompleted records a conversion goal on the journey.
// Re-invocation overwrites: last goal wins.
func (j *Journey) MarkGoalCompleted(goal string, value *float64) {
	j.CompletedGoal = goal
	j.ConversionValue = value
}
