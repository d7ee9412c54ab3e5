package posture

import (
	"context"
	"testing"
	"time"

	"github.com/holoself/go-ambient/pkg/vision"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Interval = 10 * time.Millisecond
	cfg.BadPostureThreshold = 80 * time.Millisecond
	cfg.MinWeight = 100
	return cfg
}

func upright() *vision.Frame {
	return vision.SpotFrame(160, 120, 0.5, 0.45, 10, 255)
}

func slouched() *vision.Frame {
	return vision.SpotFrame(160, 120, 0.5, 0.9, 10, 255)
}

func TestPosture_UprightScoresHigh(t *testing.T) {
	src := vision.NewMockSource(vision.DefaultConfig())
	e := New(src, testConfig(), nil)
	ctx := context.Background()

	src.Push(upright())
	for i := 0; i < 10; i++ {
		e.Evaluate(ctx)
	}

	st := e.State()
	if st.Score < 80 {
		t.Errorf("Expected upright score >= 80, got %d", st.Score)
	}
	if st.IsBad {
		t.Error("Expected upright posture not to be bad")
	}
	if st.HeadPosition == nil {
		t.Fatal("Expected head position after usable frames")
	}
}

func TestPosture_SlouchScoresLowerThanUpright(t *testing.T) {
	// Monotonic behavior: lower centroid means lower score.
	cfg := testConfig()
	src := vision.NewMockSource(vision.DefaultConfig())
	e := New(src, cfg, nil)
	ctx := context.Background()

	prev := 101
	for _, cy := range []float64{0.45, 0.7, 0.8, 0.92} {
		src.Push(vision.SpotFrame(160, 120, 0.5, cy, 10, 255))
		score := 0
		// Flood the smoothing window so the score reflects this pose only.
		for i := 0; i < cfg.SmoothingWindow; i++ {
			e.Evaluate(ctx)
		}
		score = e.State().Score
		if score >= prev {
			t.Errorf("Expected score to drop as centroid sinks (cy=%v): prev=%d got=%d", cy, prev, score)
		}
		prev = score
	}
}

func TestPosture_ScoreStaysInRange(t *testing.T) {
	src := vision.NewMockSource(vision.DefaultConfig())
	e := New(src, testConfig(), nil)
	ctx := context.Background()

	positions := []struct{ cx, cy float64 }{
		{0.5, 0.02}, {0.5, 0.98}, {0.02, 0.98}, {0.98, 0.02}, {0.5, 0.5},
	}
	for _, p := range positions {
		src.Push(vision.SpotFrame(160, 120, p.cx, p.cy, 10, 255))
		e.Evaluate(ctx)
		score := e.State().Score
		if score < 0 || score > 100 {
			t.Errorf("Score out of range at (%v,%v): %d", p.cx, p.cy, score)
		}
	}
}

func TestPosture_SmoothingLimitsSwing(t *testing.T) {
	cfg := testConfig()
	src := vision.NewMockSource(vision.DefaultConfig())
	e := New(src, cfg, nil)
	ctx := context.Background()

	src.Push(upright())
	for i := 0; i < cfg.SmoothingWindow; i++ {
		e.Evaluate(ctx)
	}
	high := e.State().Score

	// One terrible frame cannot collapse the smoothed score.
	src.Push(slouched())
	e.Evaluate(ctx)
	after := e.State().Score

	if after < high-25 {
		t.Errorf("Single bad frame moved smoothed score too far: %d -> %d", high, after)
	}
	if after >= high {
		t.Errorf("Expected score to move down at all: %d -> %d", high, after)
	}
}

func TestPosture_BlankFrameSkipsTick(t *testing.T) {
	src := vision.NewMockSource(vision.DefaultConfig())
	e := New(src, testConfig(), nil)
	ctx := context.Background()

	src.Push(upright())
	for i := 0; i < 5; i++ {
		e.Evaluate(ctx)
	}
	before := e.State()

	src.Push(vision.UniformFrame(160, 120, 0))
	e.Evaluate(ctx)
	after := e.State()

	if after.Score != before.Score {
		t.Errorf("Expected blank frame to be skipped: %d -> %d", before.Score, after.Score)
	}
}

func TestPosture_BadStreakFiresOnce(t *testing.T) {
	cfg := testConfig()
	src := vision.NewMockSource(vision.DefaultConfig())
	e := New(src, cfg, nil)
	ctx := context.Background()

	fired := 0
	var firedAfter time.Duration
	e.SetCallbacks(Callbacks{OnBadPosture: func(d time.Duration) {
		fired++
		firedAfter = d
	}})

	// Declining sequence, then hold bad posture long enough to latch.
	src.Push(slouched())
	deadline := time.Now().Add(cfg.BadPostureThreshold + 60*time.Millisecond)
	for time.Now().Before(deadline) {
		e.Evaluate(ctx)
		time.Sleep(10 * time.Millisecond)
	}
	// A few more ticks must not re-fire.
	e.Evaluate(ctx)
	e.Evaluate(ctx)

	if fired != 1 {
		t.Fatalf("Expected OnBadPosture exactly once, got %d", fired)
	}
	if firedAfter < cfg.BadPostureThreshold {
		t.Errorf("Expected streak duration >= threshold, got %v", firedAfter)
	}

	// Recovery re-arms the latch.
	src.Push(upright())
	for i := 0; i < cfg.SmoothingWindow; i++ {
		e.Evaluate(ctx)
	}
	if e.State().IsBad {
		t.Error("Expected recovery after upright frames")
	}

	// The smoothing window has to drain the upright scores before the bad
	// state re-latches, so give this streak extra headroom.
	src.Push(slouched())
	deadline = time.Now().Add(cfg.BadPostureThreshold + 250*time.Millisecond)
	for time.Now().Before(deadline) {
		e.Evaluate(ctx)
		time.Sleep(10 * time.Millisecond)
	}
	if fired != 2 {
		t.Errorf("Expected OnBadPosture to fire again after recovery, got %d", fired)
	}
}
