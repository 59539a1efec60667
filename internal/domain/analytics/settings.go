package analytics

import "time"

// Settings is the runtime analytics configuration: a single database
// row, read through an immutable in-memory snapshot that the config
// service swaps atomically on refresh. Handlers and middleware must
// never mutate a snapshot they were handed.
type Settings struct {
	Enabled        bool
	TrackPageViews bool
	TrackSearches  bool
	TrackErrors    bool
	TrackDownloads bool

	SamplingRate       float64
	MaxEventsPerMinute int

	RawEventRetentionDays     int
	DailySummaryRetentionDays int
	DebugLogRetentionDays     int

	BotUserAgents []string

	ReportRecipients  []string
	SendWeeklyReports bool
	ReportDay         int

	DebugMode bool
	TestMode  bool

	UpdatedAt time.Time
}

// DefaultSettings returns the configuration written on first boot.
func DefaultSettings() *Settings {
	return &Settings{
		Enabled:                   true,
		TrackPageViews:            true,
		TrackSearches:             true,
		TrackErrors:               true,
		TrackDownloads:            true,
		SamplingRate:              1.0,
		MaxEventsPerMinute:        1000,
		RawEventRetentionDays:     30,
		DailySummaryRetentionDays: 365,
		DebugLogRetentionDays:     7,
		BotUserAgents: []string{
			"bot", "crawler", "spider", "scraper", "googlebot",
			"bingbot", "slackbot", "twitterbot", "facebookexternalhit",
		},
		ReportRecipients:  []string{},
		SendWeeklyReports: true,
		ReportDay:         1,
	}
}
