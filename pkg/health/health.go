// Package health turns the ambient estimator outputs into wellness
// alerts. A rules engine evaluates a snapshot of current metrics on a
// timer; when several rules fire in the same pass, only the most urgent
// alert is emitted, and a global cooldown keeps the engine from
// nagging.
package health

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/holoself/go-ambient/pkg/cadence"
)

// Alert is one emitted wellness notification.
type Alert struct {
	// ID uniquely identifies the alert.
	ID string `json:"id"`

	// Type labels the rule that produced it.
	Type string `json:"type"`

	// Message is the human text to deliver.
	Message string `json:"message"`

	// Priority orders urgency; lower is more urgent.
	Priority int `json:"priority"`

	// Timestamp is when the alert fired.
	Timestamp time.Time `json:"timestamp"`
}

// Metrics is the snapshot the rules evaluate. The aggregator fills it
// from the estimators each tick.
type Metrics struct {
	// Present reports whether anyone is at the desk.
	Present bool `json:"present"`

	// FocusMinutes is continuous presence time since the last break.
	FocusMinutes float64 `json:"focus_minutes"`

	// BreaksTaken counts breaks in the current work session.
	BreaksTaken int `json:"breaks_taken"`

	// PostureScore is the smoothed 0-100 posture score.
	PostureScore int `json:"posture_score"`

	// WPM is the current typing speed.
	WPM int `json:"wpm"`

	// WPMTrend is the short-term typing speed direction.
	WPMTrend cadence.Trend `json:"wpm_trend"`

	// Fatigue is the cadence fatigue band.
	Fatigue cadence.Fatigue `json:"fatigue"`

	// BlinksPerMinute is the estimated blink rate, 0 when unknown.
	BlinksPerMinute int `json:"blinks_per_minute"`
}

// rule is one wellness heuristic.
// Declaration order is the tie-break between equal priorities.
type rule struct {
	alertType string
	message   string
	priority  int
	when      func(m Metrics) bool
}

// defaultRules returns the built-in rule table.
func defaultRules() []rule {
	return []rule{
		{
			alertType: "typing_fatigue",
			message:   "Your typing is slowing down after a long stretch. A short break will help.",
			priority:  1,
			when: func(m Metrics) bool {
				return m.WPMTrend == cadence.TrendDeclining && m.FocusMinutes > 90
			},
		},
		{
			alertType: "posture_critical",
			message:   "Your posture needs attention. Sit back and straighten up.",
			priority:  1,
			when: func(m Metrics) bool {
				return m.PostureScore > 0 && m.PostureScore < 50
			},
		},
		{
			alertType: "long_session",
			message:   "You've been at it for over two hours without a break. Step away for a few minutes.",
			priority:  2,
			when: func(m Metrics) bool {
				return m.FocusMinutes > 120 && m.BreaksTaken == 0
			},
		},
		{
			alertType: "posture_strain",
			message:   "Long stretch with slipping posture. Stand up and reset.",
			priority:  2,
			when: func(m Metrics) bool {
				return m.FocusMinutes > 45 && m.PostureScore > 0 && m.PostureScore < 70
			},
		},
		{
			alertType: "micro_break",
			message:   "Another hour on the clock. Give your eyes and hands a minute.",
			priority:  3,
			when: func(m Metrics) bool {
				return m.FocusMinutes > 60 && math.Mod(m.FocusMinutes, 60) < 6
			},
		},
	}
}

// Config holds rules engine settings.
type Config struct {
	// Interval between evaluations. Default: 5m.
	Interval time.Duration `yaml:"interval" json:"interval"`

	// InitialDelay before the first evaluation, so estimators have
	// data. Default: 30s.
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`

	// MinAlertGap is the global cooldown between any two alerts.
	// Default: 10m.
	MinAlertGap time.Duration `yaml:"min_alert_gap" json:"min_alert_gap"`

	// HistorySize caps the retained alert history. Default: 20.
	HistorySize int `yaml:"history_size" json:"history_size"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:     5 * time.Minute,
		InitialDelay: 30 * time.Second,
		MinAlertGap:  10 * time.Minute,
		HistorySize:  20,
	}
}

// MetricsFunc supplies the current snapshot to the engine.
type MetricsFunc func() Metrics

// Callbacks groups the engine event hooks.
type Callbacks struct {
	// OnAlert fires for every emitted alert.
	OnAlert func(alert Alert)
}

// Engine evaluates the rule table on a timer.
type Engine struct {
	cfg     Config
	logger  *slog.Logger
	metrics MetricsFunc
	rules   []rule
	cb      Callbacks

	mu        sync.Mutex
	history   []Alert
	lastAlert time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a rules engine over the given metrics source.
func New(cfg Config, metrics MetricsFunc, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 20
	}

	return &Engine{
		cfg:     cfg,
		logger:  logger.With("component", "health"),
		metrics: metrics,
		rules:   defaultRules(),
	}
}

// SetCallbacks installs the event hooks. Call before Start.
func (e *Engine) SetCallbacks(cb Callbacks) {
	e.cb = cb
}

// Start begins periodic evaluation after the initial delay.
func (e *Engine) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})

	go func() {
		defer close(e.done)

		// One-shot delay before the first pass; the estimators need a
		// little runway before their numbers mean anything.
		select {
		case <-ctx.Done():
			return
		case <-time.After(e.cfg.InitialDelay):
		}
		e.Evaluate()

		ticker := time.NewTicker(e.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.Evaluate()
			}
		}
	}()

	e.logger.Info("rules engine started",
		"interval", e.cfg.Interval,
		"min_alert_gap", e.cfg.MinAlertGap,
	)
}

// Stop cancels the evaluation loop.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

// Evaluate runs one pass over the rule table.
// All matching rules are collected first; the lowest priority number
// wins and ties go to declaration order. Nothing fires while the desk
// is empty or the global cooldown is open.
func (e *Engine) Evaluate() {
	m := e.metrics()
	if !m.Present {
		return
	}

	e.mu.Lock()
	if !e.lastAlert.IsZero() && time.Since(e.lastAlert) < e.cfg.MinAlertGap {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	var winner *rule
	matched := 0
	for i := range e.rules {
		r := &e.rules[i]
		if !r.when(m) {
			continue
		}
		matched++
		if winner == nil || r.priority < winner.priority {
			winner = r
		}
	}
	if winner == nil {
		return
	}

	alert := Alert{
		ID:        uuid.New().String(),
		Type:      winner.alertType,
		Message:   winner.message,
		Priority:  winner.priority,
		Timestamp: time.Now(),
	}

	e.mu.Lock()
	e.lastAlert = alert.Timestamp
	e.history = append(e.history, alert)
	if len(e.history) > e.cfg.HistorySize {
		e.history = e.history[len(e.history)-e.cfg.HistorySize:]
	}
	e.mu.Unlock()

	e.logger.Info("alert emitted",
		"type", alert.Type,
		"priority", alert.Priority,
		"rules_matched", matched,
	)

	if e.cb.OnAlert != nil {
		e.cb.OnAlert(alert)
	}
}

// History returns a copy of the retained alerts, oldest first.
func (e *Engine) History() []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Alert, len(e.history))
	copy(out, e.history)
	return out
}

// AlertsSince counts alerts emitted at or after t.
func (e *Engine) AlertsSince(t time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, a := range e.history {
		if !a.Timestamp.Before(t) {
			n++
		}
	}
	return n
}
