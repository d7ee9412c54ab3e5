package summary

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScheduler(clock *time.Time) (*Scheduler, *[]string) {
	var spoken []string
	s := New(DefaultConfig(),
		func() DayStats {
			return DayStats{
				AdherencePercent: 85,
				BreaksTaken:      4,
				AvgPostureScore:  78,
				FocusMinutes:     320,
			}
		},
		func(text string) { spoken = append(spoken, text) },
		nil,
	)
	s.now = func() time.Time { return *clock }
	return s, &spoken
}

func TestSchedulerFiresInWindow(t *testing.T) {
	clock := time.Date(2026, 3, 14, 22, 2, 0, 0, time.Local)
	s, spoken := testScheduler(&clock)

	s.Check()

	require.Len(t, *spoken, 1)
	assert.Contains(t, (*spoken)[0], "Good day overall")
}

func TestSchedulerSkipsOutsideWindow(t *testing.T) {
	cases := []struct {
		name  string
		clock time.Time
	}{
		{"before hour", time.Date(2026, 3, 14, 21, 59, 0, 0, time.Local)},
		{"past window", time.Date(2026, 3, 14, 22, 5, 0, 0, time.Local)},
		{"next hour", time.Date(2026, 3, 14, 23, 0, 0, 0, time.Local)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clock := tc.clock
			s, spoken := testScheduler(&clock)

			s.Check()

			assert.Empty(t, *spoken)
		})
	}
}

func TestSchedulerFiresOncePerDay(t *testing.T) {
	clock := time.Date(2026, 3, 14, 22, 0, 0, 0, time.Local)
	s, spoken := testScheduler(&clock)

	// Every minute inside the window still yields a single recap.
	for m := 0; m < 5; m++ {
		clock = time.Date(2026, 3, 14, 22, m, 0, 0, time.Local)
		s.Check()
	}
	assert.Len(t, *spoken, 1)

	// The next calendar day fires again.
	clock = time.Date(2026, 3, 15, 0, 3, 0, 0, time.Local)
	s.Check()
	clock = time.Date(2026, 3, 15, 22, 1, 0, 0, time.Local)
	s.Check()
	assert.Len(t, *spoken, 2)
}

func TestSchedulerDateGuardSurvivesMidnightReset(t *testing.T) {
	// A recap fired at 23:58 with a late target hour must not repeat
	// after the post-midnight flag reset on the same date guard.
	clock := time.Date(2026, 3, 14, 22, 1, 0, 0, time.Local)
	s, spoken := testScheduler(&clock)
	s.Check()
	require.Len(t, *spoken, 1)

	clock = time.Date(2026, 3, 15, 0, 5, 0, 0, time.Local)
	s.Check()
	assert.Len(t, *spoken, 1)
}

func TestComposeBands(t *testing.T) {
	cases := []struct {
		adherence int
		want      string
	}{
		{95, "Excellent day."},
		{90, "Excellent day."},
		{75, "Good day overall."},
		{70, "Good day overall."},
		{40, "Room to improve tomorrow."},
	}
	for _, tc := range cases {
		text := Compose(DayStats{AdherencePercent: tc.adherence})
		assert.True(t, strings.HasPrefix(text, tc.want),
			"adherence %d: got %q", tc.adherence, text)
	}
}

func TestComposePostureAndBreakPhrasing(t *testing.T) {
	one := Compose(DayStats{AdherencePercent: 80, BreaksTaken: 1, AvgPostureScore: 85})
	many := Compose(DayStats{AdherencePercent: 80, BreaksTaken: 3, AvgPostureScore: 65})
	poor := Compose(DayStats{AdherencePercent: 80, AvgPostureScore: 40})

	assert.Contains(t, one, "took 1 break,")
	assert.Contains(t, one, "great posture")
	assert.Contains(t, many, "took 3 breaks,")
	assert.Contains(t, many, "okay posture")
	assert.Contains(t, poor, "posture that needs work")
}

func TestComposeMentionsVoiceCommandsOnlyWhenUsed(t *testing.T) {
	with := Compose(DayStats{AdherencePercent: 80, VoiceCommands: 3})
	without := Compose(DayStats{AdherencePercent: 80})

	assert.Contains(t, with, "3 voice commands")
	assert.NotContains(t, without, "voice commands")
}
