package tts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"
)

const providerNative = "native"

// Native implements Provider using the operating system's speech
// synthesizer. It is the offline fallback when the API is unreachable:
// robotic, but always available.
//
// macOS uses `say`; elsewhere `espeak` (or espeak-ng) is expected on
// PATH.
type Native struct {
	config *Config
	logger *slog.Logger
	binary string
}

// NewNative creates a local synthesizer provider.
func NewNative(opts ...Option) (*Native, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	binary, err := findSynthesizer()
	if err != nil {
		return nil, err
	}

	return &Native{
		config: cfg,
		logger: cfg.Logger.With("component", "tts.native"),
		binary: binary,
	}, nil
}

// findSynthesizer locates the platform speech binary.
func findSynthesizer() (string, error) {
	var candidates []string
	if runtime.GOOS == "darwin" {
		candidates = []string{"say"}
	} else {
		candidates = []string{"espeak-ng", "espeak"}
	}

	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrNoSynthesizer
}

// Synthesize renders text to WAV with the local synthesizer.
func (n *Native) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	audio, err := n.run(ctx, text)
	if err != nil {
		return nil, WrapError(providerNative, err)
	}

	latency := time.Since(start).Milliseconds()
	n.logger.Debug("synthesized audio locally",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"binary", filepath.Base(n.binary),
	)

	return &AudioResult{
		Audio: audio,
		Format: AudioFormat{
			Container:  ContainerWAV,
			Encoding:   EncodingPCMS16LE,
			SampleRate: n.sampleRate(),
			Channels:   1,
			BitDepth:   16,
		},
		CharCount: len(text),
		LatencyMs: latency,
		Duration:  estimatePCMDuration(len(audio), n.sampleRate()),
	}, nil
}

// run executes the synthesizer and returns WAV bytes.
func (n *Native) run(ctx context.Context, text string) ([]byte, error) {
	switch filepath.Base(n.binary) {
	case "say":
		// say cannot write WAV to stdout; go through a temp file.
		f, err := os.CreateTemp("", "tts-*.wav")
		if err != nil {
			return nil, err
		}
		path := f.Name()
		f.Close()
		defer os.Remove(path)

		cmd := exec.CommandContext(ctx, n.binary,
			"-o", path,
			"--data-format=LEI16@22050",
			"--file-format=WAVE",
			text,
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			return nil, fmt.Errorf("say: %w: %s", err, out)
		}
		return os.ReadFile(path)

	default: // espeak variants write WAV to stdout
		cmd := exec.CommandContext(ctx, n.binary, "--stdout", text)
		out, err := cmd.Output()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(n.binary), err)
		}
		return out, nil
	}
}

// Stream wraps Synthesize; local synthesis is fast enough that chunked
// delivery buys nothing.
func (n *Native) Stream(ctx context.Context, text string) (AudioStream, error) {
	result, err := n.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	return &bufferStream{data: result.Audio, format: result.Format}, nil
}

// Health verifies the synthesizer binary still exists.
func (n *Native) Health(ctx context.Context) error {
	if _, err := os.Stat(n.binary); err != nil {
		return WrapError(providerNative, ErrNoSynthesizer)
	}
	return nil
}

// Close is a no-op.
func (n *Native) Close() error {
	return nil
}

// sampleRate returns the output rate of the platform synthesizer.
// Both say (as configured above) and espeak produce 22.05kHz mono.
func (n *Native) sampleRate() int {
	return 22050
}

// bufferStream serves a complete buffer through the stream interface.
type bufferStream struct {
	data   []byte
	format AudioFormat
	pos    int
}

func (s *bufferStream) Read() ([]byte, error) {
	if s.pos >= len(s.data) {
		return nil, nil
	}
	end := s.pos + 4096
	if end > len(s.data) {
		end = len(s.data)
	}
	chunk := s.data[s.pos:end]
	s.pos = end
	return chunk, nil
}

func (s *bufferStream) Close() error {
	s.pos = len(s.data)
	return nil
}

func (s *bufferStream) Format() AudioFormat {
	return s.format
}

// Verify Native implements Provider at compile time.
var _ Provider = (*Native)(nil)
