package analytics

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestParseEventTypeKnownKinds(t *testing.T) {
	assert.Equal(t, EventPageView, ParseEventType("page_view"))
	assert.Equal(t, EventSearch, ParseEventType("search"))
	assert.Equal(t, EventError, ParseEventType("error"))
}

func TestParseEventTypeUnknownCollapsesToCustom(t *testing.T) {
	assert.Equal(t, EventCustom, ParseEventType("made_up_kind"))
	assert.Equal(t, EventCustom, ParseEventType(""))
}

func TestMarkFailedIncrementsErrorCount(t *testing.T) {
	event := &Event{ProcessingStatus: StatusPending}
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	event.MarkFailed("insert failed", now)

	assert.Equal(t, StatusFailed, event.ProcessingStatus)
	assert.Equal(t, 1, event.ErrorCount)
	assert.Contains(t, event.LastError, "insert failed")
	assert.Contains(t, event.LastError, "2026-03-02")
}

func TestShouldRetryRespectsLimit(t *testing.T) {
	event := &Event{ProcessingStatus: StatusPending}
	now := time.Now()

	event.MarkFailed("first", now)
	assert.True(t, event.ShouldRetry())
	event.MarkFailed("second", now)
	assert.True(t, event.ShouldRetry())
	event.MarkFailed("third", now)
	assert.False(t, event.ShouldRetry())
}

func TestShouldRetryOnlyAppliesToFailedEvents(t *testing.T) {
	event := &Event{ProcessingStatus: StatusProcessed}
	assert.False(t, event.ShouldRetry())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "abcde", Truncate("abcdefgh", 5))
	assert.Equal(t, "", Truncate("", 5))
}

func TestTruncateCountsRunesNotBytes(t *testing.T) {
	// Each of these runes is multiple bytes in UTF-8; the cut must land
	// on a rune boundary and the result must stay valid.
	assert.Equal(t, "héllo", Truncate("héllo wörld", 5))
	assert.Equal(t, "日本語", Truncate("日本語のクエリ", 3))
	assert.True(t, utf8.ValidString(Truncate("αβγδε", 2)))
	assert.Equal(t, "αβ", Truncate("αβγδε", 2))
}
