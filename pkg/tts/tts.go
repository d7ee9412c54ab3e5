// Package tts provides a unified interface for text-to-speech providers.
//
// Cartesia is the primary backend, with a local command-line synthesizer
// (say/espeak) as an offline fallback. All providers implement the
// Provider interface, so callers can switch or chain them without
// changing code.
//
// Example usage:
//
//	provider, _ := tts.NewCartesia(
//	    tts.WithAPIKey(os.Getenv("CARTESIA_API_KEY")),
//	    tts.WithVoice("voice-id"),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "Time to stand up")
//	// result.Audio contains WAV bytes
package tts

import (
	"context"
	"time"
)

// Provider defines the TTS provider interface.
type Provider interface {
	// Synthesize converts text to audio, returning the complete buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Stream converts text to audio with chunked output for lower
	// time-to-first-byte.
	Stream(ctx context.Context, text string) (AudioStream, error)

	// Health checks provider connectivity and credential validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioStream is a chunked audio response.
// Read until it returns nil, then Close.
type AudioStream interface {
	// Read returns the next audio chunk, or nil when complete.
	Read() ([]byte, error)

	// Close stops the stream and releases resources.
	Close() error

	// Format returns the audio format metadata.
	Format() AudioFormat
}

// AudioResult is a complete synthesis result.
type AudioResult struct {
	// Audio contains the raw audio bytes in the specified format.
	Audio []byte

	// Format describes the container and encoding.
	Format AudioFormat

	// Duration is the estimated playback duration.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the time to last byte in milliseconds.
	LatencyMs int64
}

// Container identifies the audio container format.
type Container string

const (
	// ContainerWAV wraps PCM in a RIFF header.
	ContainerWAV Container = "wav"
	// ContainerRaw is headerless PCM.
	ContainerRaw Container = "raw"
	// ContainerMP3 is compressed MP3.
	ContainerMP3 Container = "mp3"
)

// Encoding identifies the sample encoding inside the container.
type Encoding string

const (
	// EncodingPCMS16LE is 16-bit signed little-endian PCM.
	EncodingPCMS16LE Encoding = "pcm_s16le"
	// EncodingPCMF32LE is 32-bit float little-endian PCM.
	EncodingPCMF32LE Encoding = "pcm_f32le"
	// EncodingPCMMuLaw is 8-bit mu-law PCM (telephony).
	EncodingPCMMuLaw Encoding = "pcm_mulaw"
)

// AudioFormat describes the audio output parameters.
type AudioFormat struct {
	// Container is the wrapping format.
	Container Container

	// Encoding is the sample encoding.
	Encoding Encoding

	// SampleRate in Hz.
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int

	// BitDepth for PCM encodings.
	BitDepth int
}

// VoiceControls tunes delivery for providers that support it.
type VoiceControls struct {
	// Speed is "slowest", "slow", "normal", "fast", or "fastest".
	// Empty leaves the provider default.
	Speed string

	// Emotion lists emotion tags like "positivity" or "curiosity:high".
	Emotion []string
}

// estimatePCMDuration estimates playback time for PCM16 payloads.
func estimatePCMDuration(byteCount, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	seconds := float64(byteCount/2) / float64(sampleRate)
	return time.Duration(seconds * float64(time.Second))
}
