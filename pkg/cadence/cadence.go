// Package cadence monitors typing rhythm from raw key-press timestamps.
//
// Keystrokes are retained in a short rolling window and condensed into a
// words-per-minute figure, a short-term trend, and a fatigue estimate
// relative to a per-session baseline. The baseline is a ratchet captured
// during an initial calibration period and frozen afterwards, so fatigue
// can never silently lower its own detection threshold.
package cadence

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Trend describes the short-term WPM direction.
type Trend string

const (
	TrendRising    Trend = "rising"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// Fatigue bands the WPM drop relative to the session baseline.
type Fatigue string

const (
	FatigueNone     Fatigue = "none"
	FatigueMild     Fatigue = "mild"
	FatigueModerate Fatigue = "moderate"
	FatigueHigh     Fatigue = "high"
)

// Snapshot is the cadence state exposed to consumers.
type Snapshot struct {
	WPM            int     `json:"wpm"`
	Trend          Trend   `json:"trend"`
	Fatigue        Fatigue `json:"fatigue"`
	SessionMinutes int     `json:"session_minutes"`
	Baseline       int     `json:"baseline"`
}

// KeyEvent is a raw key press delivered to the monitor.
type KeyEvent struct {
	// Rune is the produced character, 0 for non-character keys.
	Rune rune

	// Name identifies non-character keys ("Backspace", "Enter", "Shift",
	// "ArrowLeft", ...). Ignored when Rune is set.
	Name string

	// Time of the press. Zero means now.
	Time time.Time
}

// countable reports whether the event contributes to cadence.
// Character-producing keys plus Backspace and Enter count; modifier-only
// and navigation keys do not.
func (e KeyEvent) countable() bool {
	if e.Rune != 0 {
		return true
	}
	switch e.Name {
	case "Backspace", "Enter":
		return true
	}
	return false
}

// Config holds cadence monitoring settings.
type Config struct {
	// Window is the rolling keystroke window. Default: 60s.
	Window time.Duration `yaml:"window" json:"window"`

	// Interval between evaluation ticks. Default: 5s.
	Interval time.Duration `yaml:"interval" json:"interval"`

	// Calibration is the baseline capture period from session start.
	// Default: 5m.
	Calibration time.Duration `yaml:"calibration" json:"calibration"`

	// TrendSamples is how many WPM samples feed the trend split.
	// Default: 12 (~1 minute at the default interval).
	TrendSamples int `yaml:"trend_samples" json:"trend_samples"`

	// RisingFactor / DecliningFactor bound the "stable" band in the
	// split-half comparison. Defaults: 1.1, 0.9.
	RisingFactor    float64 `yaml:"rising_factor" json:"rising_factor"`
	DecliningFactor float64 `yaml:"declining_factor" json:"declining_factor"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Window:          60 * time.Second,
		Interval:        5 * time.Second,
		Calibration:     5 * time.Minute,
		TrendSamples:    12,
		RisingFactor:    1.1,
		DecliningFactor: 0.9,
	}
}

// Monitor owns the cadence state for one session.
type Monitor struct {
	cfg    Config
	logger *slog.Logger

	mu           sync.Mutex
	events       []time.Time
	samples      []int
	baseline     int
	calClosed    bool
	sessionStart time.Time
	snapshot     Snapshot

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a cadence monitor. The session clock starts immediately.
// Non-positive timing fields fall back to their defaults.
func New(cfg Config, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Calibration <= 0 {
		cfg.Calibration = def.Calibration
	}
	if cfg.TrendSamples <= 0 {
		cfg.TrendSamples = def.TrendSamples
	}

	return &Monitor{
		cfg:          cfg,
		logger:       logger.With("component", "cadence"),
		sessionStart: time.Now(),
		snapshot: Snapshot{
			Trend:   TrendStable,
			Fatigue: FatigueNone,
		},
	}
}

// Record delivers a key press to the monitor.
// Non-countable keys are dropped at the door.
func (m *Monitor) Record(e KeyEvent) {
	if !e.countable() {
		return
	}
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ts)
}

// Start begins the evaluation tick loop.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Evaluate()
			}
		}
	}()

	m.logger.Info("cadence monitor started",
		"window", m.cfg.Window,
		"calibration", m.cfg.Calibration,
	)
}

// Stop cancels the tick loop.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
}

// Snapshot returns the latest cadence snapshot.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// Baseline returns the current session baseline WPM.
func (m *Monitor) Baseline() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baseline
}

// Evaluate performs a single evaluation tick: prune the window, compute
// WPM, update baseline/trend/fatigue.
// Exported so tests can drive the monitor without the timer loop.
func (m *Monitor) Evaluate() {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Prune the rolling window.
	cutoff := now.Add(-m.cfg.Window)
	i := 0
	for i < len(m.events) && m.events[i].Before(cutoff) {
		i++
	}
	m.events = m.events[i:]

	// WPM at 5 chars per word, scaled from window length to a minute.
	wpm := int(float64(len(m.events)) / 5 * (60000 / float64(m.cfg.Window.Milliseconds())))

	m.samples = append(m.samples, wpm)
	if len(m.samples) > m.cfg.TrendSamples {
		m.samples = m.samples[len(m.samples)-m.cfg.TrendSamples:]
	}

	// Baseline ratchet: only grows, and only until calibration closes.
	elapsed := now.Sub(m.sessionStart)
	if !m.calClosed {
		if wpm > m.baseline {
			m.baseline = wpm
		}
		if elapsed >= m.cfg.Calibration && m.baseline > 0 {
			m.calClosed = true
			m.logger.Info("wpm baseline frozen", "baseline", m.baseline)
		}
	}

	m.snapshot = Snapshot{
		WPM:            wpm,
		Trend:          m.trend(),
		Fatigue:        m.fatigue(wpm),
		SessionMinutes: int(elapsed.Minutes()),
		Baseline:       m.baseline,
	}
}

// trend splits the sample history into halves and compares averages.
func (m *Monitor) trend() Trend {
	if len(m.samples) < m.cfg.TrendSamples {
		return TrendStable
	}

	half := len(m.samples) / 2
	firstAvg := avg(m.samples[:half])
	secondAvg := avg(m.samples[half:])

	if firstAvg == 0 {
		if secondAvg > 0 {
			return TrendRising
		}
		return TrendStable
	}

	switch {
	case secondAvg > firstAvg*m.cfg.RisingFactor:
		return TrendRising
	case secondAvg < firstAvg*m.cfg.DecliningFactor:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// fatigue bands the relative drop from baseline.
// Only meaningful once calibration has closed.
func (m *Monitor) fatigue(wpm int) Fatigue {
	if !m.calClosed || m.baseline == 0 {
		return FatigueNone
	}

	drop := 1 - float64(wpm)/float64(m.baseline)
	switch {
	case drop >= 0.5:
		return FatigueHigh
	case drop >= 0.3:
		return FatigueModerate
	case drop >= 0.15:
		return FatigueMild
	default:
		return FatigueNone
	}
}

func avg(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}
