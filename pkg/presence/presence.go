// Package presence detects whether the user is at the desk.
//
// Detection is intensity-statistics based: the standard deviation of luma
// across a center-weighted zone of the sampled frame. Textured content
// (skin, facial features) produces high variance; a flat wall or an empty
// chair produces low variance. The classification is intentionally noisy
// and smoothed with hysteresis rather than per-frame.
package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/holoself/go-ambient/pkg/vision"
)

// State is the presence snapshot exposed to consumers.
type State struct {
	IsPresent       bool          `json:"is_present"`
	AwayDuration    time.Duration `json:"away_duration"`
	LastSeenAt      time.Time     `json:"last_seen_at"`
	DeviceAvailable bool          `json:"device_available"`
}

// Config holds presence detection settings.
type Config struct {
	// Interval between evaluation ticks. Default: 2s.
	Interval time.Duration `yaml:"interval" json:"interval"`

	// AbsenceThreshold is how long the zone must stay flat before a
	// present user is marked away. A single low-variance frame never
	// flips presence (hysteresis against motion blur and blinking).
	// Default: 10s.
	AbsenceThreshold time.Duration `yaml:"absence_threshold" json:"absence_threshold"`

	// VarianceThreshold is the luma stddev above which the zone is
	// considered to contain a face. Empirically tuned, not load-bearing.
	// Default: 35.
	VarianceThreshold float64 `yaml:"variance_threshold" json:"variance_threshold"`

	// Zone is the center-weighted region evaluated on each tick:
	// the middle 40% of the width and middle 70% of the height.
	Zone vision.Rect `yaml:"zone" json:"zone"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:          2 * time.Second,
		AbsenceThreshold:  10 * time.Second,
		VarianceThreshold: 35,
		Zone:              vision.Rect{X0: 0.3, Y0: 0.15, X1: 0.7, Y1: 0.85},
	}
}

// Callbacks groups the presence transition hooks.
// Each fires exactly once per transition.
type Callbacks struct {
	// OnLeave fires on a present -> absent transition.
	OnLeave func()

	// OnReturn fires on an absent -> present transition with the time
	// spent away.
	OnReturn func(away time.Duration)
}

// Detector owns the PresenceState and mutates it only from its own
// evaluation tick.
type Detector struct {
	cfg    Config
	src    vision.Source
	logger *slog.Logger

	mu    sync.Mutex
	state State
	cbs   Callbacks

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a presence detector sampling from src.
func New(src vision.Source, cfg Config, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}

	return &Detector{
		cfg:    cfg,
		src:    src,
		logger: logger.With("component", "presence"),
		state: State{
			// Fail-open: until proven otherwise the user is present, so
			// proactive features keep running on degraded hardware.
			IsPresent:       true,
			LastSeenAt:      time.Now(),
			DeviceAvailable: true,
		},
	}
}

// SetCallbacks installs the transition hooks. Call before Start.
func (d *Detector) SetCallbacks(cbs Callbacks) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cbs = cbs
}

// Start begins the evaluation tick loop.
func (d *Detector) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.Evaluate(ctx)
			}
		}
	}()

	d.logger.Info("presence detector started",
		"interval", d.cfg.Interval,
		"absence_threshold", d.cfg.AbsenceThreshold,
	)
}

// Stop cancels the tick loop.
func (d *Detector) Stop() {
	if d.cancel != nil {
		d.cancel()
		<-d.done
	}
}

// State returns the latest presence snapshot.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Evaluate performs a single evaluation tick.
// Exported so tests can drive the detector without the timer loop.
func (d *Detector) Evaluate(ctx context.Context) {
	now := time.Now()

	frame, err := d.src.Sample(ctx)
	if err != nil {
		d.onDeviceUnavailable(now)
		return
	}

	sd := frame.RegionStdDev(d.cfg.Zone)

	d.mu.Lock()
	d.state.DeviceAvailable = true

	var onLeave func()
	var onReturn func(time.Duration)
	var away time.Duration

	if sd >= d.cfg.VarianceThreshold {
		if !d.state.IsPresent {
			away = now.Sub(d.state.LastSeenAt)
			d.state.IsPresent = true
			d.state.AwayDuration = 0
			onReturn = d.cbs.OnReturn
			d.logger.Info("user returned", "away", away)
		}
		d.state.LastSeenAt = now
	} else {
		if d.state.IsPresent && now.Sub(d.state.LastSeenAt) >= d.cfg.AbsenceThreshold {
			d.state.IsPresent = false
			onLeave = d.cbs.OnLeave
			d.logger.Info("user left", "last_seen", d.state.LastSeenAt)
		}
		if !d.state.IsPresent {
			d.state.AwayDuration = now.Sub(d.state.LastSeenAt)
		}
	}
	d.mu.Unlock()

	// Callbacks run outside the lock.
	if onLeave != nil {
		onLeave()
	}
	if onReturn != nil {
		onReturn(away)
	}
}

// onDeviceUnavailable handles a failed sample: presence fails open.
func (d *Detector) onDeviceUnavailable(now time.Time) {
	d.mu.Lock()

	wasAvailable := d.state.DeviceAvailable
	d.state.DeviceAvailable = false

	var onReturn func(time.Duration)
	var away time.Duration
	if !d.state.IsPresent {
		away = now.Sub(d.state.LastSeenAt)
		d.state.IsPresent = true
		d.state.AwayDuration = 0
		onReturn = d.cbs.OnReturn
	}
	d.state.LastSeenAt = now
	d.mu.Unlock()

	if wasAvailable {
		d.logger.Warn("capture device unavailable, presence failing open")
	}
	if onReturn != nil {
		onReturn(away)
	}
}
