// Package transcribe converts captured speech segments to text.
//
// The production implementation shells out to a local whisper.cpp
// binary, so no audio ever leaves the machine. A mock implementation
// backs tests.
package transcribe

import "context"

// Transcriber converts a PCM16 segment to text.
type Transcriber interface {
	// Transcribe converts mono PCM16 audio at the given rate to text.
	Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error)
}

// Status describes transcriber availability.
type Status struct {
	// Available reports whether transcription can run.
	Available bool `json:"available"`

	// Binary is the resolved whisper.cpp executable path.
	Binary string `json:"binary,omitempty"`

	// Model is the resolved model file path.
	Model string `json:"model,omitempty"`

	// Reason explains unavailability.
	Reason string `json:"reason,omitempty"`
}
