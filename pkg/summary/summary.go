// Package summary produces the spoken end-of-day recap. A scheduler
// checks the clock once a minute and fires during the first few
// minutes after the target hour, at most once per calendar day.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DayStats is the daily aggregate the recap is composed from.
type DayStats struct {
	// AdherencePercent is how much of the day's break and posture
	// guidance was followed, 0-100.
	AdherencePercent int `json:"adherence_percent"`

	// BreaksTaken counts breaks over the day.
	BreaksTaken int `json:"breaks_taken"`

	// AvgPostureScore is the day's mean posture score, 0-100.
	AvgPostureScore int `json:"avg_posture_score"`

	// FocusMinutes is total focused time over the day.
	FocusMinutes int `json:"focus_minutes"`

	// VoiceCommands counts completed voice interactions.
	VoiceCommands int `json:"voice_commands"`
}

// StatsFunc supplies the current day aggregate.
type StatsFunc func() DayStats

// SpeakFunc delivers the composed recap, normally by enqueueing a
// speech task.
type SpeakFunc func(text string)

// Config holds scheduler settings.
type Config struct {
	// Hour is the local hour the recap fires after. Default: 22.
	Hour int `yaml:"hour" json:"hour"`

	// WindowMinutes is how many minutes past the hour the recap may
	// still fire. Default: 5.
	WindowMinutes int `yaml:"window_minutes" json:"window_minutes"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Hour:          22,
		WindowMinutes: 5,
	}
}

// Scheduler fires the daily recap.
type Scheduler struct {
	cfg    Config
	logger *slog.Logger
	stats  StatsFunc
	speak  SpeakFunc

	// now is swapped in tests.
	now func() time.Time

	mu         sync.Mutex
	lastFired  string
	firedToday bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a daily recap scheduler.
func New(cfg Config, stats StatsFunc, speak SpeakFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WindowMinutes <= 0 {
		cfg.WindowMinutes = 5
	}

	return &Scheduler{
		cfg:    cfg,
		logger: logger.With("component", "summary"),
		stats:  stats,
		speak:  speak,
		now:    time.Now,
	}
}

// Start begins the once-a-minute clock check.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Check()
			}
		}
	}()

	s.logger.Info("daily recap scheduled", "hour", s.cfg.Hour)
}

// Stop cancels the clock check.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// Check runs one clock check and fires the recap when due.
// The last-fired date is the real idempotency guard; the fired flag is
// reset shortly after midnight so a clock jump cannot wedge it.
func (s *Scheduler) Check() {
	now := s.now()
	today := now.Format("2006-01-02")

	s.mu.Lock()
	if now.Hour() == 0 && now.Minute() < 10 && s.lastFired != today {
		s.firedToday = false
	}
	due := now.Hour() == s.cfg.Hour &&
		now.Minute() < s.cfg.WindowMinutes &&
		s.lastFired != today &&
		!s.firedToday
	if due {
		s.lastFired = today
		s.firedToday = true
	}
	s.mu.Unlock()

	if !due {
		return
	}

	text := Compose(s.stats())
	s.logger.Info("daily recap fired", "date", today)
	if s.speak != nil {
		s.speak(text)
	}
}

// Compose renders the recap text from a day aggregate. Phrasing is
// banded on adherence.
func Compose(d DayStats) string {
	var opener string
	switch {
	case d.AdherencePercent >= 90:
		opener = "Excellent day."
	case d.AdherencePercent >= 70:
		opener = "Good day overall."
	default:
		opener = "Room to improve tomorrow."
	}

	var posture string
	switch {
	case d.AvgPostureScore >= 80:
		posture = "great posture"
	case d.AvgPostureScore >= 60:
		posture = "okay posture"
	default:
		posture = "posture that needs work"
	}

	breaks := fmt.Sprintf("%d breaks", d.BreaksTaken)
	if d.BreaksTaken == 1 {
		breaks = "1 break"
	}

	text := fmt.Sprintf(
		"%s You followed %d percent of your wellness guidance, took %s, and kept %s at a score of %d across %d focused minutes.",
		opener, d.AdherencePercent, breaks, posture, d.AvgPostureScore, d.FocusMinutes,
	)
	if d.VoiceCommands > 0 {
		text += fmt.Sprintf(" You used %d voice commands.", d.VoiceCommands)
	}
	return text
}
