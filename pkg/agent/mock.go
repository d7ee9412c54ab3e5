package agent

import (
	"context"
	"sync"
)

// Mock implements Provider for testing.
type Mock struct {
	// NextMessageFunc is called when NextMessage is invoked.
	// If nil, Msg and Err are returned.
	NextMessageFunc func(ctx context.Context, state map[string]interface{}) (*Message, error)

	// Msg and Err are the default return values.
	Msg *Message
	Err error

	mu        sync.Mutex
	calls     int
	lastState map[string]interface{}
}

// NextMessage records the call and returns the configured result.
func (m *Mock) NextMessage(ctx context.Context, state map[string]interface{}) (*Message, error) {
	m.mu.Lock()
	m.calls++
	m.lastState = state
	m.mu.Unlock()

	if m.NextMessageFunc != nil {
		return m.NextMessageFunc(ctx, state)
	}
	return m.Msg, m.Err
}

// Health always succeeds.
func (m *Mock) Health(ctx context.Context) error {
	return nil
}

// Calls returns how many times NextMessage was invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastState returns the most recent state payload.
func (m *Mock) LastState() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastState
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
