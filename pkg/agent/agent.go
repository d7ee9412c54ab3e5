// Package agent talks to an external reasoning service that composes
// wellness nudges from the engine's current state. The service is an
// opaque HTTP endpoint; only the message shape is agreed.
package agent

import (
	"context"
	"errors"
)

// Message is one nudge produced by the reasoning service.
type Message struct {
	// Text is what to show or speak.
	Text string `json:"text"`

	// Category labels the nudge ("hydration", "posture", "movement").
	Category string `json:"category"`

	// Priority orders competing nudges; lower is more urgent.
	Priority int `json:"priority"`

	// Action hints how to deliver the message ("speak", "notify", "").
	Action string `json:"action"`
}

// Provider fetches nudges.
type Provider interface {
	// NextMessage asks the service for a nudge given the current
	// engine state. A nil message with nil error means nothing to say.
	NextMessage(ctx context.Context, state map[string]interface{}) (*Message, error)

	// Health checks service reachability.
	Health(ctx context.Context) error
}

// ErrNoBaseURL is returned when the client has no endpoint configured.
var ErrNoBaseURL = errors.New("agent: base URL required")
