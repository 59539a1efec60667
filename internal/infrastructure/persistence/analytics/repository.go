// Package analytics provides the concrete SQL-based implementations
// for analytics persistence: raw events, custom events, journeys,
// experiments, funnels, rollups, and runtime settings.
package analytics

import (
	"encoding/json"
	"fmt"
	"time"
)

// sqliteTimeFormat is the timestamp layout written to the database.
const sqliteTimeFormat = "2006-01-02 15:04:05"

// parseTimestamp handles multiple timestamp formats
func parseTimestamp(timestampStr string) (time.Time, error) {
	// Try RFC3339 first
	if t, err := time.Parse(time.RFC3339, timestampStr); err == nil {
		return t, nil
	}

	// Try SQLite format
	if t, err := time.Parse(sqliteTimeFormat, timestampStr); err == nil {
		return t, nil
	}

	// Try ISO format with milliseconds
	if t, err := time.Parse("2006-01-02T15:04:05.000Z", timestampStr); err == nil {
		return t, nil
	}

	// Try date-only columns
	if t, err := time.Parse("2006-01-02", timestampStr); err == nil {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp format: %s", timestampStr)
}

// parseNullableTimestamp maps an optional column value to *time.Time.
func parseNullableTimestamp(timestampStr *string) (*time.Time, error) {
	if timestampStr == nil || *timestampStr == "" {
		return nil, nil
	}
	t, err := parseTimestamp(*timestampStr)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// formatNullableTimestamp maps *time.Time to an optional column value.
func formatNullableTimestamp(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(sqliteTimeFormat)
}

// marshalJSON serializes a JSON column value, defaulting to the given
// literal when the value is empty.
func marshalJSON(v any, empty string) (string, error) {
	if v == nil {
		return empty, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON column: %w", err)
	}
	return string(data), nil
}

// unmarshalJSON deserializes a JSON column into dst, tolerating empty
// columns.
func unmarshalJSON(raw string, dst any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}
