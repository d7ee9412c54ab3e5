package vision

import (
	"context"
	"sync"
)

// MockSource is a scripted Source for testing.
// Frames are served from a queue; when the queue is empty, GenerateFunc is
// called if set, otherwise Fail/last-frame behavior applies.
type MockSource struct {
	cfg Config

	mu     sync.Mutex
	frames []*Frame
	last   *Frame
	closed bool

	// GenerateFunc produces a frame when the script queue is empty.
	GenerateFunc func() *Frame

	// Err, when set, is returned by every Sample call.
	// Used to simulate a missing or dying capture device.
	Err error

	// SampleCount tracks how many times Sample was called.
	SampleCount int
}

// NewMockSource creates an empty mock source.
func NewMockSource(cfg Config) *MockSource {
	return &MockSource{cfg: cfg}
}

// Push appends frames to the script queue.
func (m *MockSource) Push(frames ...*Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, frames...)
}

// Sample pops the next scripted frame. When the script is exhausted the
// last frame is repeated, so a single pushed frame behaves like a static
// scene.
func (m *MockSource) Sample(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.SampleCount++

	if m.closed {
		return nil, ErrSourceClosed
	}
	if m.Err != nil {
		return nil, m.Err
	}

	if len(m.frames) > 0 {
		f := m.frames[0]
		m.frames = m.frames[1:]
		m.last = f
		return f, nil
	}
	if m.GenerateFunc != nil {
		return m.GenerateFunc(), nil
	}
	if m.last != nil {
		return m.last, nil
	}
	return nil, ErrDeviceUnavailable
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return "mock"
}

// Close marks the source closed.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// UniformFrame builds a frame with every pixel at the given luma value.
func UniformFrame(w, h int, value float64) *Frame {
	luma := make([]float64, w*h)
	for i := range luma {
		luma[i] = value
	}
	return &Frame{Width: w, Height: h, Luma: luma}
}

// NoisyFrame builds a frame with a deterministic high-variance checker
// pattern alternating between lo and hi. Useful for presence tests where
// texture matters more than content.
func NoisyFrame(w, h int, lo, hi float64) *Frame {
	f := UniformFrame(w, h, lo)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				f.Luma[y*w+x] = hi
			}
		}
	}
	return f
}

// SpotFrame builds a dark frame with a bright square centered at the given
// normalized position. Useful for centroid tests (posture).
func SpotFrame(w, h int, cx, cy float64, radius int, value float64) *Frame {
	f := UniformFrame(w, h, 0)
	px := int(cx * float64(w))
	py := int(cy * float64(h))
	for y := py - radius; y <= py+radius; y++ {
		for x := px - radius; x <= px+radius; x++ {
			if x >= 0 && y >= 0 && x < w && y < h {
				f.Luma[y*w+x] = value
			}
		}
	}
	return f
}

// Verify MockSource implements Source at compile time.
var _ Source = (*MockSource)(nil)
