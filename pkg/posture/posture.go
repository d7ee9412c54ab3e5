// Package posture estimates sitting posture from the sampled frame.
//
// The estimator tracks the brightness-weighted centroid of the frame: a
// user sitting upright keeps the bright head region near the vertical
// center, slouching drags it low, leaning into the screen pushes it high.
// Raw scores are smoothed over a rolling window before classification so
// single-frame noise never flips the posture state.
package posture

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/holoself/go-ambient/pkg/vision"
)

// Point is a normalized frame position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// State is the posture snapshot exposed to consumers.
type State struct {
	// Score is the smoothed posture score in [0,100].
	Score int `json:"score"`

	// IsBad reports whether the smoothed score is below the bad cutoff.
	IsBad bool `json:"is_bad"`

	// BadDuration is how long the current bad streak has lasted.
	BadDuration time.Duration `json:"bad_duration"`

	// HeadPosition is the latest usable centroid, nil before the first
	// usable frame.
	HeadPosition *Point `json:"head_position,omitempty"`
}

// Config holds posture estimation settings.
type Config struct {
	// Interval between evaluation ticks. Default: 2s.
	Interval time.Duration `yaml:"interval" json:"interval"`

	// MinWeight is the minimum total centroid weight for a frame to be
	// usable. Ticks below it are skipped entirely so blank frames cannot
	// drift the score. Default: 500.
	MinWeight float64 `yaml:"min_weight" json:"min_weight"`

	// LowY is the centroid height beyond which the user is slouching
	// (remember Y grows downward). Default: 0.62.
	LowY float64 `yaml:"low_y" json:"low_y"`

	// HighY is the centroid height above which the user is leaning into
	// the screen. Default: 0.35.
	HighY float64 `yaml:"high_y" json:"high_y"`

	// MaxHorizontalDev is the tolerated horizontal centroid deviation
	// from center before penalties apply. Default: 0.15.
	MaxHorizontalDev float64 `yaml:"max_horizontal_dev" json:"max_horizontal_dev"`

	// SmoothingWindow is the number of raw scores averaged before the
	// score is exposed. Default: 10.
	SmoothingWindow int `yaml:"smoothing_window" json:"smoothing_window"`

	// BadScoreCutoff is the smoothed score below which posture is bad.
	// Default: 60.
	BadScoreCutoff int `yaml:"bad_score_cutoff" json:"bad_score_cutoff"`

	// BadPostureThreshold is how long a bad streak must last before the
	// OnBadPosture hook fires. Default: 5m.
	BadPostureThreshold time.Duration `yaml:"bad_posture_threshold" json:"bad_posture_threshold"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:            2 * time.Second,
		MinWeight:           500,
		LowY:                0.62,
		HighY:               0.35,
		MaxHorizontalDev:    0.15,
		SmoothingWindow:     10,
		BadScoreCutoff:      60,
		BadPostureThreshold: 5 * time.Minute,
	}
}

// Callbacks groups the posture hooks.
type Callbacks struct {
	// OnBadPosture fires exactly once per bad streak, when the streak
	// exceeds BadPostureThreshold. It is re-armed when posture recovers.
	OnBadPosture func(duration time.Duration)
}

// Estimator owns the PostureState.
type Estimator struct {
	cfg    Config
	src    vision.Source
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	scores  []int // rolling raw scores, newest last
	badFrom time.Time
	alerted bool
	cbs     Callbacks

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a posture estimator sampling from src.
// Presence and posture may share the same source; sampling is independent.
func New(src vision.Source, cfg Config, logger *slog.Logger) *Estimator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Estimator{
		cfg:    cfg,
		src:    src,
		logger: logger.With("component", "posture"),
		state:  State{Score: 100},
	}
}

// SetCallbacks installs the posture hooks. Call before Start.
func (e *Estimator) SetCallbacks(cbs Callbacks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cbs = cbs
}

// Start begins the evaluation tick loop.
func (e *Estimator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})

	go func() {
		defer close(e.done)
		ticker := time.NewTicker(e.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.Evaluate(ctx)
			}
		}
	}()

	e.logger.Info("posture estimator started", "interval", e.cfg.Interval)
}

// Stop cancels the tick loop.
func (e *Estimator) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

// State returns the latest posture snapshot.
func (e *Estimator) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Evaluate performs a single evaluation tick.
// Exported so tests can drive the estimator without the timer loop.
func (e *Estimator) Evaluate(ctx context.Context) {
	frame, err := e.src.Sample(ctx)
	if err != nil {
		// Device errors are absorbed: the last smoothed state stands.
		return
	}

	cx, cy, weight := frame.Centroid()
	if weight < e.cfg.MinWeight {
		// No usable bright region; skipping avoids score drift on blank
		// frames.
		return
	}

	raw := e.scoreFor(cx, cy)
	now := time.Now()

	e.mu.Lock()

	e.scores = append(e.scores, raw)
	if len(e.scores) > e.cfg.SmoothingWindow {
		e.scores = e.scores[len(e.scores)-e.cfg.SmoothingWindow:]
	}
	sum := 0
	for _, s := range e.scores {
		sum += s
	}
	smoothed := sum / len(e.scores)

	e.state.Score = smoothed
	e.state.HeadPosition = &Point{X: cx, Y: cy}

	var onBad func(time.Duration)
	var streak time.Duration

	if smoothed < e.cfg.BadScoreCutoff {
		if !e.state.IsBad {
			e.state.IsBad = true
			e.badFrom = now
		}
		streak = now.Sub(e.badFrom)
		e.state.BadDuration = streak
		if streak >= e.cfg.BadPostureThreshold && !e.alerted {
			e.alerted = true
			onBad = e.cbs.OnBadPosture
		}
	} else {
		e.state.IsBad = false
		e.state.BadDuration = 0
		e.alerted = false
	}
	e.mu.Unlock()

	if onBad != nil {
		e.logger.Info("bad posture streak", "duration", streak, "score", smoothed)
		onBad(streak)
	}
}

// scoreFor computes the raw instantaneous score for a centroid.
func (e *Estimator) scoreFor(cx, cy float64) int {
	score := 100.0

	if cy > e.cfg.LowY {
		// Slouching: up to 60 points as the centroid sinks.
		span := 1 - e.cfg.LowY
		if span <= 0 {
			span = 1
		}
		score -= math.Min(60, (cy-e.cfg.LowY)/span*60)
	} else if cy < e.cfg.HighY {
		// Leaning into the screen: up to 40 points.
		span := e.cfg.HighY
		if span <= 0 {
			span = 1
		}
		score -= math.Min(40, (e.cfg.HighY-cy)/span*40)
	}

	dev := math.Abs(cx - 0.5)
	if dev > e.cfg.MaxHorizontalDev {
		span := 0.5 - e.cfg.MaxHorizontalDev
		if span <= 0 {
			span = 1
		}
		score -= math.Min(20, (dev-e.cfg.MaxHorizontalDev)/span*20)
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(math.Round(score))
}
