// Package blink estimates the user's blink rate from eye-region brightness.
//
// A blink momentarily darkens the eye region (eyelid covers the sclera).
// The estimator calibrates a personal brightness-drop threshold during an
// initial observation window, then counts debounced drops and normalizes
// them toward a per-minute rate. Detection is statistics based and noisy;
// classification bands are deliberately wide.
package blink

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/holoself/go-ambient/pkg/vision"
)

// Status classifies the blink rate.
type Status string

const (
	// StatusNormal is a typical 10-20 blinks/minute.
	StatusNormal Status = "normal"
	// StatusLow indicates fatigue or deep focus (under 10/minute).
	StatusLow Status = "low"
	// StatusHigh indicates stress or dry eyes (over 20/minute).
	StatusHigh Status = "high"
)

// Stats is the blink snapshot exposed to consumers.
type Stats struct {
	BlinksPerMinute int    `json:"blinks_per_minute"`
	Status          Status `json:"status"`
	Calibrated      bool   `json:"calibrated"`
}

// Config holds blink estimation settings.
type Config struct {
	// SampleInterval between eye-region samples. Default: 66ms (~15 Hz).
	SampleInterval time.Duration `yaml:"sample_interval" json:"sample_interval"`

	// EyeZone is the sub-rectangle sampled for brightness.
	EyeZone vision.Rect `yaml:"eye_zone" json:"eye_zone"`

	// CalibrationFrames is the number of samples used to build the
	// personal threshold. Calibration is one-way: it completes once and
	// never reruns within a session. Default: 30.
	CalibrationFrames int `yaml:"calibration_frames" json:"calibration_frames"`

	// DropRatio scales the calibrated average brightness into the blink
	// threshold. Empirically tuned, not load-bearing. Default: 0.03.
	DropRatio float64 `yaml:"drop_ratio" json:"drop_ratio"`

	// Debounce is the minimum gap between counted blinks, guarding
	// against double-counting one long blink. Default: 200ms.
	Debounce time.Duration `yaml:"debounce" json:"debounce"`

	// RateInterval between per-minute rate recalculations. Default: 5s.
	RateInterval time.Duration `yaml:"rate_interval" json:"rate_interval"`

	// LowThreshold / HighThreshold bound the "normal" band. Defaults: 10, 20.
	LowThreshold  int `yaml:"low_threshold" json:"low_threshold"`
	HighThreshold int `yaml:"high_threshold" json:"high_threshold"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SampleInterval:    66 * time.Millisecond,
		EyeZone:           vision.Rect{X0: 0.3, Y0: 0.25, X1: 0.7, Y1: 0.5},
		CalibrationFrames: 30,
		DropRatio:         0.03,
		Debounce:          200 * time.Millisecond,
		RateInterval:      5 * time.Second,
		LowThreshold:      10,
		HighThreshold:     20,
	}
}

// Opener opens a dedicated capture session for the estimator.
// Blink tracking never shares a session with presence/posture.
type Opener func() (vision.Source, error)

// Estimator owns the BlinkStats.
// Lifecycle is explicit: Start opens the capture session, Stop releases it
// and clears all derived state. There is no silent background tracking.
type Estimator struct {
	cfg    Config
	open   Opener
	logger *slog.Logger

	mu    sync.Mutex
	src   vision.Source
	stats Stats

	// Calibration
	history    []float64
	threshold  float64
	calibrated bool

	// Counting
	prevBrightness float64
	havePrev       bool
	blinkCount     int
	lastBlink      time.Time
	startedAt      time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a blink estimator. The capture session is not opened until
// Start.
func New(open Opener, cfg Config, logger *slog.Logger) *Estimator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Estimator{
		cfg:    cfg,
		open:   open,
		logger: logger.With("component", "blink"),
	}
}

// Start opens the capture session and begins sampling.
func (e *Estimator) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.src != nil {
		e.mu.Unlock()
		return nil
	}

	src, err := e.open()
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.src = src
	e.startedAt = time.Now()
	e.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})

	go e.run(ctx)

	e.logger.Info("blink estimator started",
		"sample_interval", e.cfg.SampleInterval,
		"calibration_frames", e.cfg.CalibrationFrames,
	)
	return nil
}

// Stop releases the capture session and clears all derived state.
func (e *Estimator) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
		e.cancel = nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.src != nil {
		e.src.Close()
		e.src = nil
	}
	e.stats = Stats{}
	e.history = nil
	e.threshold = 0
	e.calibrated = false
	e.havePrev = false
	e.blinkCount = 0
	e.lastBlink = time.Time{}

	e.logger.Info("blink estimator stopped")
}

// Stats returns the latest blink snapshot.
func (e *Estimator) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *Estimator) run(ctx context.Context) {
	defer close(e.done)

	sample := time.NewTicker(e.cfg.SampleInterval)
	defer sample.Stop()
	rate := time.NewTicker(e.cfg.RateInterval)
	defer rate.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sample.C:
			e.SampleOnce(ctx)
		case <-rate.C:
			e.RecalcRate()
		}
	}
}

// SampleOnce takes one eye-region brightness sample.
// Exported so tests can drive the estimator without the ticker loop.
func (e *Estimator) SampleOnce(ctx context.Context) {
	e.mu.Lock()
	src := e.src
	e.mu.Unlock()
	if src == nil {
		return
	}

	frame, err := src.Sample(ctx)
	if err != nil {
		// Not enough signal is not an error; skip the tick.
		return
	}
	brightness := frame.RegionMean(e.cfg.EyeZone)
	now := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.calibrated {
		e.history = append(e.history, brightness)
		if len(e.history) >= e.cfg.CalibrationFrames {
			sum := 0.0
			for _, b := range e.history {
				sum += b
			}
			avg := sum / float64(len(e.history))
			e.threshold = avg * e.cfg.DropRatio
			e.calibrated = true
			e.stats.Calibrated = true
			e.history = nil
			e.logger.Info("blink threshold calibrated", "threshold", e.threshold)
		}
		e.prevBrightness = brightness
		e.havePrev = true
		return
	}

	if e.havePrev {
		drop := e.prevBrightness - brightness
		if drop > e.threshold && now.Sub(e.lastBlink) >= e.cfg.Debounce {
			e.blinkCount++
			e.lastBlink = now
		}
	}
	e.prevBrightness = brightness
	e.havePrev = true
}

// RecalcRate recomputes blinks-per-minute.
// The elapsed time is floored at one minute so short observation windows
// are never over-amplified into alarming rates.
func (e *Estimator) RecalcRate() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.startedAt.IsZero() {
		return
	}

	elapsed := time.Since(e.startedAt).Seconds()
	if elapsed < 60 {
		elapsed = 60
	}
	bpm := int(float64(e.blinkCount) / elapsed * 60)

	e.stats.BlinksPerMinute = bpm
	switch {
	case !e.calibrated:
		// No classification before calibration completes.
		e.stats.Status = ""
	case bpm < e.cfg.LowThreshold:
		e.stats.Status = StatusLow
	case bpm > e.cfg.HighThreshold:
		e.stats.Status = StatusHigh
	default:
		e.stats.Status = StatusNormal
	}
}
