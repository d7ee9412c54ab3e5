package cadence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Window = 100 * time.Millisecond
	cfg.Interval = 10 * time.Millisecond
	cfg.TrendSamples = 4
	return cfg
}

// inject records n character presses stamped at the given time.
func inject(m *Monitor, n int, at time.Time) {
	for i := 0; i < n; i++ {
		m.Record(KeyEvent{Rune: 'a', Time: at})
	}
}

func TestRecord_FiltersKeys(t *testing.T) {
	m := New(testConfig(), nil)

	m.Record(KeyEvent{Rune: 'a'})
	m.Record(KeyEvent{Rune: ' '})
	m.Record(KeyEvent{Name: "Backspace"})
	m.Record(KeyEvent{Name: "Enter"})
	m.Record(KeyEvent{Name: "Shift"})
	m.Record(KeyEvent{Name: "ArrowLeft"})
	m.Record(KeyEvent{Name: "Control"})

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Len(t, m.events, 4, "only character keys, Backspace and Enter should count")
}

func TestNew_FloorsZeroConfig(t *testing.T) {
	m := New(Config{}, nil)
	def := DefaultConfig()

	assert.Equal(t, def.Window, m.cfg.Window)
	assert.Equal(t, def.Interval, m.cfg.Interval)
	assert.Equal(t, def.Calibration, m.cfg.Calibration)
	assert.Equal(t, def.TrendSamples, m.cfg.TrendSamples)

	// A zero window must not poison the WPM division.
	inject(m, 10, time.Now())
	m.Evaluate()
	assert.Equal(t, 2, m.Snapshot().WPM, "10 keys over the floored 60s window")
}

func TestEvaluate_ComputesWPM(t *testing.T) {
	cfg := testConfig()
	m := New(cfg, nil)

	// 10 keys in a 100ms window scale to 1200 WPM at 5 chars per word.
	inject(m, 10, time.Now())
	m.Evaluate()

	snap := m.Snapshot()
	assert.Equal(t, 1200, snap.WPM)
}

func TestEvaluate_PrunesWindow(t *testing.T) {
	cfg := testConfig()
	m := New(cfg, nil)

	inject(m, 10, time.Now().Add(-2*cfg.Window))
	inject(m, 5, time.Now())
	m.Evaluate()

	snap := m.Snapshot()
	assert.Equal(t, 600, snap.WPM, "stale keys should not count")
}

func TestBaseline_RatchetsUpOnly(t *testing.T) {
	cfg := testConfig()
	cfg.Calibration = time.Hour
	m := New(cfg, nil)

	inject(m, 5, time.Now())
	m.Evaluate()
	require.Equal(t, 600, m.Baseline())

	time.Sleep(cfg.Window + 20*time.Millisecond)
	inject(m, 2, time.Now())
	m.Evaluate()

	assert.Equal(t, 600, m.Baseline(), "baseline should not drop with slower typing")
	assert.Equal(t, FatigueNone, m.Snapshot().Fatigue, "no fatigue during calibration")
}

func TestBaseline_DoesNotCloseAtZero(t *testing.T) {
	cfg := testConfig()
	cfg.Calibration = time.Millisecond
	m := New(cfg, nil)

	time.Sleep(5 * time.Millisecond)
	m.Evaluate()
	require.False(t, m.calClosed, "calibration must stay open until a baseline exists")

	inject(m, 5, time.Now())
	m.Evaluate()
	assert.True(t, m.calClosed)
	assert.Equal(t, 600, m.Baseline())
}

func TestFatigue_BandsDropFromBaseline(t *testing.T) {
	cfg := testConfig()
	cfg.Calibration = time.Millisecond
	m := New(cfg, nil)

	time.Sleep(5 * time.Millisecond)
	inject(m, 10, time.Now())
	m.Evaluate()
	require.Equal(t, 1200, m.Baseline())
	require.True(t, m.calClosed)

	cases := []struct {
		name string
		keys int
		want Fatigue
	}{
		{"no drop", 10, FatigueNone},
		{"mild drop", 8, FatigueMild},         // 960 WPM, 20% down
		{"moderate drop", 6, FatigueModerate}, // 720 WPM, 40% down
		{"high drop", 4, FatigueHigh},         // 480 WPM, 60% down
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			time.Sleep(cfg.Window + 20*time.Millisecond)
			inject(m, tc.keys, time.Now())
			m.Evaluate()
			assert.Equal(t, tc.want, m.Snapshot().Fatigue)
		})
	}
}

func TestTrend_RequiresFullHistory(t *testing.T) {
	m := New(testConfig(), nil)

	inject(m, 10, time.Now())
	m.Evaluate()

	assert.Equal(t, TrendStable, m.Snapshot().Trend, "too few samples should read stable")
}

func TestTrend_SplitHalfComparison(t *testing.T) {
	cases := []struct {
		name string
		keys []int
		want Trend
	}{
		{"rising", []int{5, 5, 10, 10}, TrendRising},
		{"declining", []int{10, 10, 5, 5}, TrendDeclining},
		{"stable", []int{8, 8, 8, 8}, TrendStable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			m := New(cfg, nil)

			for _, n := range tc.keys {
				inject(m, n, time.Now())
				m.Evaluate()
				time.Sleep(cfg.Window + 20*time.Millisecond)
			}

			assert.Equal(t, tc.want, m.Snapshot().Trend)
		})
	}
}

func TestMonitor_StartStop(t *testing.T) {
	cfg := testConfig()
	m := New(cfg, nil)

	m.Start(context.Background())
	inject(m, 10, time.Now())
	time.Sleep(3 * cfg.Interval)
	m.Stop()

	assert.NotZero(t, m.Snapshot().WPM, "tick loop should have evaluated")
}
