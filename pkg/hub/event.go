// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern. Every
// estimator and the rules engine publish typed events through it; the
// dashboard subscribes over /ws/events.
package hub

import (
	"encoding/json"
	"time"
)

// Event types published by the engine.
const (
	EventPresence = "presence"
	EventPosture  = "posture"
	EventBlink    = "blink"
	EventCadence  = "cadence"
	EventVoice    = "voice"
	EventAlert    = "alert"
	EventSummary  = "summary"
	EventAgent    = "agent"
)

// Event is the envelope delivered to every subscriber.
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEvent wraps a payload in an envelope. Marshal failure returns a
// zero Event and the error; callers usually pass structs that cannot
// fail to encode.
func NewEvent(eventType string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   data,
	}, nil
}

// Encode renders the full envelope as JSON.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
