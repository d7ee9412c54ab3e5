package hotkey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenerFiresOnMatchingChord(t *testing.T) {
	l := NewKeyListener()
	fired := 0
	require.NoError(t, l.Bind("ctrl+shift+space", func() { fired++ }))

	l.Feed(Event{Key: "space", Ctrl: true, Shift: true, Time: time.Now()})
	l.Feed(Event{Key: "space", Ctrl: true, Shift: true, Time: time.Now()})

	assert.Equal(t, 2, fired)
}

func TestListenerIgnoresPartialChord(t *testing.T) {
	l := NewKeyListener()
	fired := 0
	require.NoError(t, l.Bind("ctrl+shift+space", func() { fired++ }))

	l.Feed(Event{Key: "space", Ctrl: true})
	l.Feed(Event{Key: "space", Shift: true})
	l.Feed(Event{Key: "space"})
	l.Feed(Event{Key: "a", Ctrl: true, Shift: true})

	assert.Zero(t, fired)
}

func TestListenerChordOrderAndCaseDoNotMatter(t *testing.T) {
	l := NewKeyListener()
	fired := 0
	require.NoError(t, l.Bind("Shift+Ctrl+Space", func() { fired++ }))

	l.Feed(Event{Key: "space", Ctrl: true, Shift: true})

	assert.Equal(t, 1, fired)
}

func TestListenerRebindReplaces(t *testing.T) {
	l := NewKeyListener()
	first, second := 0, 0
	require.NoError(t, l.Bind("ctrl+space", func() { first++ }))
	require.NoError(t, l.Bind("ctrl+space", func() { second++ }))

	l.Feed(Event{Key: "space", Ctrl: true})

	assert.Zero(t, first)
	assert.Equal(t, 1, second)
}

func TestListenerEmptyChordRejected(t *testing.T) {
	l := NewKeyListener()
	assert.ErrorIs(t, l.Bind("ctrl+shift", nil), ErrEmptyChord)
	assert.ErrorIs(t, l.Bind("", nil), ErrEmptyChord)
}

func TestListenerClosedStopsFiring(t *testing.T) {
	l := NewKeyListener()
	fired := 0
	require.NoError(t, l.Bind("ctrl+space", func() { fired++ }))
	require.NoError(t, l.Close())

	l.Feed(Event{Key: "space", Ctrl: true})

	assert.Zero(t, fired)
}

func TestNoopBinder(t *testing.T) {
	var b Binder = Noop{}
	assert.NoError(t, b.Bind("ctrl+space", func() {}))
	assert.NoError(t, b.Close())
}
