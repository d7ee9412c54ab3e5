package transcribe

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Discovery environment variables. Explicit paths beat discovery.
const (
	envBinary = "WHISPER_CPP_BIN"
	envModel  = "WHISPER_MODEL"
)

// ErrNotAvailable is returned when no whisper.cpp install was found.
var ErrNotAvailable = errors.New("transcribe: whisper.cpp not available")

// binaryCandidates are tried on PATH, newest CLI name first.
var binaryCandidates = []string{"whisper-cli", "whisper-cpp", "whisper", "main"}

// modelCandidates are tried inside each model directory.
var modelCandidates = []string{
	"ggml-base.en.bin",
	"ggml-base.bin",
	"ggml-small.en.bin",
	"ggml-small.bin",
	"ggml-tiny.en.bin",
}

// Config holds whisper.cpp settings.
type Config struct {
	// BinaryPath is the whisper.cpp executable. Empty triggers discovery.
	BinaryPath string `yaml:"binary_path" json:"binary_path"`

	// ModelPath is the ggml model file. Empty triggers discovery.
	ModelPath string `yaml:"model_path" json:"model_path"`

	// Language passed to the model. Default: "en".
	Language string `yaml:"language" json:"language"`

	// Threads used for inference. 0 lets whisper.cpp decide.
	Threads int `yaml:"threads" json:"threads"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{Language: "en"}
}

// WhisperCpp transcribes by invoking a local whisper.cpp build.
type WhisperCpp struct {
	cfg    Config
	logger *slog.Logger
	binary string
	model  string
	reason string
}

// NewWhisperCpp creates a whisper.cpp transcriber, resolving the binary
// and model. A missing install is not an error at construction time;
// Status reports it and Transcribe fails with ErrNotAvailable.
func NewWhisperCpp(cfg Config, logger *slog.Logger) *WhisperCpp {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}

	w := &WhisperCpp{
		cfg:    cfg,
		logger: logger.With("component", "transcribe"),
	}

	w.binary, w.model, w.reason = resolve(cfg)
	if w.binary != "" && w.model != "" {
		w.logger.Info("whisper.cpp resolved", "binary", w.binary, "model", w.model)
	} else {
		w.logger.Warn("whisper.cpp unavailable", "reason", w.reason)
	}
	return w
}

// resolve finds the executable and model: explicit config first, then
// environment, then well-known locations.
func resolve(cfg Config) (binary, model, reason string) {
	binary = cfg.BinaryPath
	if binary == "" {
		binary = os.Getenv(envBinary)
	}
	if binary == "" {
		binary = findBinary()
	}
	if binary == "" {
		return "", "", "no whisper.cpp binary found"
	}
	if _, err := os.Stat(binary); err != nil {
		if resolved, lookErr := exec.LookPath(binary); lookErr == nil {
			binary = resolved
		} else {
			return "", "", fmt.Sprintf("binary %q does not exist", binary)
		}
	}

	model = cfg.ModelPath
	if model == "" {
		model = os.Getenv(envModel)
	}
	if model == "" {
		model = findModel()
	}
	if model == "" {
		return binary, "", "no ggml model found"
	}
	if _, err := os.Stat(model); err != nil {
		return binary, "", fmt.Sprintf("model %q does not exist", model)
	}

	return binary, model, ""
}

func findBinary() string {
	for _, name := range binaryCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	for _, name := range binaryCandidates {
		path := filepath.Join(home, "whisper.cpp", name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func findModel() string {
	dirs := []string{"/usr/local/share/whisper", "/usr/share/whisper"}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append([]string{
			filepath.Join(home, "whisper.cpp", "models"),
			filepath.Join(home, ".cache", "whisper"),
		}, dirs...)
	}

	for _, dir := range dirs {
		for _, name := range modelCandidates {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// Status reports whether transcription can run and with what.
func (w *WhisperCpp) Status() Status {
	if w.binary == "" || w.model == "" {
		return Status{Available: false, Binary: w.binary, Reason: w.reason}
	}
	return Status{Available: true, Binary: w.binary, Model: w.model}
}

// Transcribe writes the segment to a temp WAV and runs whisper.cpp.
func (w *WhisperCpp) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	if w.binary == "" || w.model == "" {
		return "", fmt.Errorf("%w: %s", ErrNotAvailable, w.reason)
	}
	if len(pcm) == 0 {
		return "", nil
	}

	f, err := os.CreateTemp("", "capture-*.wav")
	if err != nil {
		return "", fmt.Errorf("create temp wav: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(wavBytes(pcm, sampleRate)); err != nil {
		f.Close()
		return "", fmt.Errorf("write temp wav: %w", err)
	}
	f.Close()

	args := []string{
		"-m", w.model,
		"-f", path,
		"-l", w.cfg.Language,
		"--no-timestamps",
	}
	if w.cfg.Threads > 0 {
		args = append(args, "-t", fmt.Sprint(w.cfg.Threads))
	}

	cmd := exec.CommandContext(ctx, w.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("whisper.cpp: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	text := cleanTranscript(stdout.String())
	w.logger.Debug("transcribed segment", "bytes", len(pcm), "chars", len(text))
	return text, nil
}

// cleanTranscript strips whitespace and non-speech markers like
// [BLANK_AUDIO] or (wind blowing) that whisper emits for noise.
func cleanTranscript(raw string) string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			continue
		}
		if strings.HasPrefix(line, "(") && strings.HasSuffix(line, ")") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, " ")
}

// wavBytes wraps mono PCM16 in a RIFF header.
func wavBytes(pcm []byte, sampleRate int) []byte {
	var buf bytes.Buffer

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// Verify WhisperCpp implements Transcriber at compile time.
var _ Transcriber = (*WhisperCpp)(nil)
