// Package audioio provides audio capture and playback for the desk agent.
//
// Two real backends are supported:
//   - cmd  - spawns arecord/aplay (or configured equivalents) and moves
//     raw PCM16 over pipes. No cgo, works wherever the tools exist.
//   - mock - synthetic audio for tests and machines without devices.
//
// The backend is selected automatically from the platform, or explicitly
// via configuration.
package audioio

import (
	"fmt"
	"time"
)

// Backend identifies an audio backend.
type Backend string

const (
	// BackendAuto selects the best available backend for the platform.
	BackendAuto Backend = "auto"
	// BackendCmd pipes PCM through external capture/playback commands.
	BackendCmd Backend = "cmd"
	// BackendMock generates synthetic audio for testing.
	BackendMock Backend = "mock"
)

// Config holds audio I/O settings.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto".
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the capture/playback rate in Hz.
	// Default: 16000, the rate speech transcription expects.
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of audio channels. Default: 1.
	Channels int `yaml:"channels" json:"channels"`

	// BufferDuration is the size of one chunk.
	// Default: 20ms (320 samples at 16kHz).
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`

	// Device is the device identifier passed to the capture/playback
	// command ("default", "hw:1,0", ...). Empty uses the system default.
	Device string `yaml:"device" json:"device"`

	// RecordCmd and PlayCmd override the external commands used by the
	// cmd backend. Defaults: "arecord" and "aplay" on Linux, "sox"
	// wrappers elsewhere.
	RecordCmd string `yaml:"record_cmd" json:"record_cmd"`
	PlayCmd   string `yaml:"play_cmd" json:"play_cmd"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     16000,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// BufferSize returns the number of samples per chunk per channel.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

// BufferBytes returns the size of one chunk in bytes (int16 samples).
func (c *Config) BufferBytes() int {
	return c.BufferSize() * c.Channels * 2
}
