// Package hotkey binds activation chords to actions. A true OS-global
// registration is not always available, so the package is built around
// a small Binder interface with a key-event listener fallback that is
// always usable wherever key events already flow.
package hotkey

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrEmptyChord is returned when Bind is called with no keys.
var ErrEmptyChord = errors.New("hotkey: empty chord")

// Binder registers activation chords.
type Binder interface {
	// Bind attaches fn to a chord like "ctrl+shift+space". Binding an
	// already-bound chord replaces the previous action; a chord never
	// fires twice for one press.
	Bind(chord string, fn func()) error

	// Close releases all bindings.
	Close() error
}

// Event is one key press as seen by the listener, with the modifiers
// held at press time.
type Event struct {
	// Key is the non-modifier key name, lowercase ("space", "a", "f5").
	Key string

	// Ctrl, Shift, Alt, Meta report held modifiers.
	Ctrl  bool
	Shift bool
	Alt   bool
	Meta  bool

	// Time is when the press happened.
	Time time.Time
}

// chordKey canonicalizes a chord string so "shift+ctrl+Space" and
// "ctrl+shift+space" bind the same slot.
func chordKey(chord string) (string, error) {
	parts := strings.Split(strings.ToLower(chord), "+")
	var mods []string
	key := ""
	for _, p := range parts {
		p = strings.TrimSpace(p)
		switch p {
		case "":
			continue
		case "ctrl", "control":
			mods = append(mods, "ctrl")
		case "shift":
			mods = append(mods, "shift")
		case "alt", "option":
			mods = append(mods, "alt")
		case "meta", "cmd", "super", "win":
			mods = append(mods, "meta")
		default:
			key = p
		}
	}
	if key == "" {
		return "", ErrEmptyChord
	}
	sort.Strings(mods)
	return strings.Join(append(mods, key), "+"), nil
}

// eventKey renders an event in the same canonical form as chordKey.
func eventKey(ev Event) string {
	var mods []string
	if ev.Alt {
		mods = append(mods, "alt")
	}
	if ev.Ctrl {
		mods = append(mods, "ctrl")
	}
	if ev.Meta {
		mods = append(mods, "meta")
	}
	if ev.Shift {
		mods = append(mods, "shift")
	}
	return strings.Join(append(mods, strings.ToLower(ev.Key)), "+")
}

// KeyListener is the fallback Binder. It matches chords against key
// events fed by whatever tap already delivers keystrokes to the
// cadence monitor.
type KeyListener struct {
	mu       sync.Mutex
	bindings map[string]func()
	closed   bool
}

// NewKeyListener creates an empty listener.
func NewKeyListener() *KeyListener {
	return &KeyListener{bindings: make(map[string]func())}
}

var _ Binder = (*KeyListener)(nil)

// Bind attaches fn to chord, replacing any previous binding.
func (l *KeyListener) Bind(chord string, fn func()) error {
	key, err := chordKey(chord)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bindings[key] = fn
	return nil
}

// Feed delivers one key event. The matched action runs on the caller's
// goroutine.
func (l *KeyListener) Feed(ev Event) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	fn := l.bindings[eventKey(ev)]
	l.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Close drops all bindings and ignores further events.
func (l *KeyListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bindings = make(map[string]func())
	l.closed = true
	return nil
}

// Noop is a Binder for headless runs. Bind succeeds and nothing fires.
type Noop struct{}

var _ Binder = Noop{}

func (Noop) Bind(string, func()) error { return nil }
func (Noop) Close() error              { return nil }
