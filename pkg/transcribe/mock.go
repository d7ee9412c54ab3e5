package transcribe

import (
	"context"
	"sync"
)

// Mock implements Transcriber for testing.
type Mock struct {
	// TranscribeFunc is called when Transcribe is invoked.
	// If nil, Text and Err are returned.
	TranscribeFunc func(ctx context.Context, pcm []byte, sampleRate int) (string, error)

	// Text and Err are the default return values.
	Text string
	Err  error

	mu       sync.Mutex
	calls    int
	lastPCM  []byte
	lastRate int
}

// Transcribe records the call and returns the configured result.
func (m *Mock) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	m.mu.Lock()
	m.calls++
	m.lastPCM = pcm
	m.lastRate = sampleRate
	m.mu.Unlock()

	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, pcm, sampleRate)
	}
	return m.Text, m.Err
}

// Calls returns how many times Transcribe was invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastSegment returns the most recent segment and its rate.
func (m *Mock) LastSegment() ([]byte, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPCM, m.lastRate
}

// Verify Mock implements Transcriber at compile time.
var _ Transcriber = (*Mock)(nil)
