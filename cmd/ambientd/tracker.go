package main

import (
	"sync"
	"time"

	"github.com/holoself/go-ambient/pkg/summary"
)

// breakThreshold is the least time away from the desk that counts as a
// real break rather than a glance elsewhere.
const breakThreshold = 5 * time.Minute

// tracker folds estimator transitions into the session and day
// aggregates the rules engine, dashboard and daily recap consume.
type tracker struct {
	mu sync.Mutex

	present    bool
	focusStart time.Time
	focusDone  time.Duration

	day           string
	breaks        int
	postureSum    int
	postureCount  int
	voiceCommands int
	alerts        int

	now func() time.Time
}

func newTracker() *tracker {
	now := time.Now
	return &tracker{
		present:    true,
		focusStart: now(),
		day:        now().Format("2006-01-02"),
		now:        now,
	}
}

// rollover resets the day aggregates when the date changes.
// Caller holds t.mu.
func (t *tracker) rollover() {
	today := t.now().Format("2006-01-02")
	if today == t.day {
		return
	}
	t.day = today
	t.breaks = 0
	t.postureSum = 0
	t.postureCount = 0
	t.voiceCommands = 0
	t.alerts = 0
	t.focusDone = 0
	if t.present {
		t.focusStart = t.now()
	}
}

// setPresent records a presence transition.
func (t *tracker) setPresent(present bool, away time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()

	if present == t.present {
		return
	}
	t.present = present

	if present {
		if away >= breakThreshold {
			t.breaks++
		}
		t.focusStart = t.now()
		return
	}
	if !t.focusStart.IsZero() {
		t.focusDone += t.now().Sub(t.focusStart)
	}
}

// focusMinutes is the length of the current unbroken stretch at the
// desk, zero while away.
func (t *tracker) focusMinutes() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.present || t.focusStart.IsZero() {
		return 0
	}
	return t.now().Sub(t.focusStart).Minutes()
}

func (t *tracker) observePosture(score int) {
	if score <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	t.postureSum += score
	t.postureCount++
}

func (t *tracker) noteVoiceCommand() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	t.voiceCommands++
}

func (t *tracker) noteAlert() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	t.alerts++
}

func (t *tracker) breaksTaken() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.breaks
}

// dayStats snapshots the day aggregates. Adherence starts at 100 and
// loses 12 points per emitted alert; alerts only fire when guidance
// was not being followed, so they are the cheapest proxy available
// without persistence.
func (t *tracker) dayStats() summary.DayStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()

	adherence := 100 - 12*t.alerts
	if adherence < 0 {
		adherence = 0
	}

	avgPosture := 0
	if t.postureCount > 0 {
		avgPosture = t.postureSum / t.postureCount
	}

	focus := t.focusDone
	if t.present && !t.focusStart.IsZero() {
		focus += t.now().Sub(t.focusStart)
	}

	return summary.DayStats{
		AdherencePercent: adherence,
		BreaksTaken:      t.breaks,
		AvgPostureScore:  avgPosture,
		FocusMinutes:     int(focus.Minutes()),
		VoiceCommands:    t.voiceCommands,
	}
}
