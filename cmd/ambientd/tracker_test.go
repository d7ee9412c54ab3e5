package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func trackerAt(start time.Time) (*tracker, *time.Time) {
	clock := start
	tr := newTracker()
	tr.now = func() time.Time { return clock }
	tr.focusStart = start
	tr.day = start.Format("2006-01-02")
	return tr, &clock
}

func TestTrackerFocusAccumulatesWhilePresent(t *testing.T) {
	start := time.Date(2026, 5, 2, 9, 0, 0, 0, time.Local)
	tr, clock := trackerAt(start)

	*clock = start.Add(42 * time.Minute)
	assert.InDelta(t, 42.0, tr.focusMinutes(), 0.01)
}

func TestTrackerLongAbsenceCountsAsBreakAndResetsFocus(t *testing.T) {
	start := time.Date(2026, 5, 2, 9, 0, 0, 0, time.Local)
	tr, clock := trackerAt(start)

	*clock = start.Add(60 * time.Minute)
	tr.setPresent(false, 0)
	assert.Zero(t, tr.focusMinutes())

	*clock = start.Add(70 * time.Minute)
	tr.setPresent(true, 10*time.Minute)

	assert.Equal(t, 1, tr.breaksTaken())

	// The stretch restarts from the return.
	*clock = start.Add(75 * time.Minute)
	assert.InDelta(t, 5.0, tr.focusMinutes(), 0.01)
}

func TestTrackerShortAbsenceIsNotABreak(t *testing.T) {
	start := time.Date(2026, 5, 2, 9, 0, 0, 0, time.Local)
	tr, clock := trackerAt(start)

	*clock = start.Add(30 * time.Minute)
	tr.setPresent(false, 0)
	*clock = start.Add(31 * time.Minute)
	tr.setPresent(true, time.Minute)

	assert.Zero(t, tr.breaksTaken())
}

func TestTrackerDayStats(t *testing.T) {
	start := time.Date(2026, 5, 2, 9, 0, 0, 0, time.Local)
	tr, clock := trackerAt(start)

	tr.observePosture(80)
	tr.observePosture(70)
	tr.noteVoiceCommand()
	tr.noteAlert()
	tr.noteAlert()

	*clock = start.Add(90 * time.Minute)
	stats := tr.dayStats()

	assert.Equal(t, 76, stats.AdherencePercent)
	assert.Equal(t, 75, stats.AvgPostureScore)
	assert.Equal(t, 1, stats.VoiceCommands)
	assert.Equal(t, 90, stats.FocusMinutes)
}

func TestTrackerRolloverResetsDayAggregates(t *testing.T) {
	start := time.Date(2026, 5, 2, 23, 50, 0, 0, time.Local)
	tr, clock := trackerAt(start)

	tr.noteAlert()
	tr.observePosture(50)
	tr.setPresent(false, 0)
	tr.setPresent(true, 10*time.Minute)
	assert.Equal(t, 1, tr.breaksTaken())

	*clock = start.Add(20 * time.Minute)
	tr.noteVoiceCommand()

	stats := tr.dayStats()
	assert.Equal(t, 100, stats.AdherencePercent)
	assert.Equal(t, 0, stats.BreaksTaken)
	assert.Equal(t, 1, stats.VoiceCommands)
}
