package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
)

func TestShouldRunScheduledHonorsSettings(t *testing.T) {
	enabled := analytics.DefaultSettings()
	enabled.Enabled = true
	enabled.SendWeeklyReports = true

	assert.True(t, shouldRunScheduled(enabled, false, "", false))

	analyticsOff := analytics.DefaultSettings()
	analyticsOff.Enabled = false
	analyticsOff.SendWeeklyReports = true
	assert.False(t, shouldRunScheduled(analyticsOff, false, "", false))

	reportsOff := analytics.DefaultSettings()
	reportsOff.Enabled = true
	reportsOff.SendWeeklyReports = false
	assert.False(t, shouldRunScheduled(reportsOff, false, "", false))

	assert.False(t, shouldRunScheduled(nil, false, "", false))
}

func TestShouldRunScheduledOperatorOverrides(t *testing.T) {
	off := analytics.DefaultSettings()
	off.Enabled = false
	off.SendWeeklyReports = false

	assert.True(t, shouldRunScheduled(off, true, "", false))
	assert.True(t, shouldRunScheduled(off, false, "board@example.org", false))
	assert.True(t, shouldRunScheduled(off, false, "", true))
}
