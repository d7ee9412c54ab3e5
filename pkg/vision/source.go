package vision

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Sentinel errors for capture failures.
var (
	// ErrDeviceUnavailable is returned when the capture device cannot be
	// opened or stops delivering frames.
	ErrDeviceUnavailable = errors.New("vision: capture device unavailable")

	// ErrSourceClosed is returned when sampling from a closed source.
	ErrSourceClosed = errors.New("vision: source closed")
)

// Source delivers downscaled grayscale frames from a capture device.
// A Source may be shared by several estimators sampling independently
// (presence and posture share one session; blink opens its own).
type Source interface {
	// Sample grabs the current frame, downscaled to the configured buffer
	// size. Returns ErrDeviceUnavailable if the device cannot deliver.
	Sample(ctx context.Context) (*Frame, error)

	// Name returns the backend name (e.g. "webcam", "mock").
	Name() string

	// Close releases the capture device.
	io.Closer
}

// Backend selects the capture implementation.
type Backend string

const (
	// BackendAuto selects the webcam when available, mock otherwise.
	BackendAuto Backend = "auto"
	// BackendWebcam uses a gocv video capture device.
	BackendWebcam Backend = "webcam"
	// BackendMock uses a scripted in-memory source for testing.
	BackendMock Backend = "mock"
)

// Config holds frame sampling configuration.
type Config struct {
	// Backend selects the capture implementation. Default: auto.
	Backend Backend `yaml:"backend" json:"backend"`

	// DeviceID is the capture device index. Default: 0.
	DeviceID int `yaml:"device_id" json:"device_id"`

	// Width and Height are the downscaled buffer dimensions.
	// Downscaling is mandatory; estimator math never touches the native
	// resolution. Default: 160x120.
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:  BackendAuto,
		DeviceID: 0,
		Width:    160,
		Height:   120,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("buffer dimensions must be positive, got %dx%d", c.Width, c.Height)
	}
	return nil
}

// Open creates a Source for the given configuration.
// With BackendAuto, a webcam open failure falls back to an error (not a
// mock): estimators handle the degraded state themselves, fail-open or
// fail-closed per their own contract.
func Open(cfg Config) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	switch cfg.Backend {
	case BackendMock:
		return NewMockSource(cfg), nil
	case BackendWebcam, BackendAuto:
		return openWebcam(cfg)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}
