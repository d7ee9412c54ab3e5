package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"
)

// flushTimeout bounds how long Flush waits for the playback process.
const flushTimeout = 30 * time.Second

// defaultRecordCmd returns the platform capture command.
func defaultRecordCmd() string {
	if runtime.GOOS == "darwin" {
		return "rec" // sox
	}
	return "arecord"
}

// defaultPlayCmd returns the platform playback command.
func defaultPlayCmd() string {
	if runtime.GOOS == "darwin" {
		return "play" // sox
	}
	return "aplay"
}

// recordArgs builds the argument list for the capture command.
func recordArgs(cmd string, cfg Config) []string {
	if cmd == "rec" || cmd == "sox" {
		return []string{
			"-q",
			"-t", "raw",
			"-b", "16", "-e", "signed-integer", "-L",
			"-r", strconv.Itoa(cfg.SampleRate),
			"-c", strconv.Itoa(cfg.Channels),
			"-",
		}
	}

	args := []string{
		"-q",
		"-f", "S16_LE",
		"-r", strconv.Itoa(cfg.SampleRate),
		"-c", strconv.Itoa(cfg.Channels),
		"-t", "raw",
	}
	if cfg.Device != "" {
		args = append(args, "-D", cfg.Device)
	}
	return args
}

// playArgs builds the argument list for the playback command.
func playArgs(cmd string, cfg Config) []string {
	if cmd == "play" || cmd == "sox" {
		return []string{
			"-q",
			"-t", "raw",
			"-b", "16", "-e", "signed-integer", "-L",
			"-r", strconv.Itoa(cfg.SampleRate),
			"-c", strconv.Itoa(cfg.Channels),
			"-",
		}
	}

	args := []string{
		"-q",
		"-f", "S16_LE",
		"-r", strconv.Itoa(cfg.SampleRate),
		"-c", strconv.Itoa(cfg.Channels),
		"-t", "raw",
	}
	if cfg.Device != "" {
		args = append(args, "-D", cfg.Device)
	}
	return args
}

// CmdSource captures audio by spawning an external recorder process and
// reading raw PCM16 from its stdout.
type CmdSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	cmd      *exec.Cmd
	stdout   io.ReadCloser
	streamCh chan AudioChunk
	stopCh   chan struct{}
}

// NewCmdSource creates a command-backed audio source.
func NewCmdSource(cfg Config, logger *slog.Logger) (*CmdSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.RecordCmd
	if name == "" {
		name = defaultRecordCmd()
	}
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("capture command %q not found: %w", name, err)
	}
	cfg.RecordCmd = name

	return &CmdSource{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Start spawns the recorder and begins reading chunks.
func (s *CmdSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	cmd := exec.Command(s.cfg.RecordCmd, recordArgs(s.cfg.RecordCmd, s.cfg)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.cfg.RecordCmd, err)
	}

	s.cmd = cmd
	s.stdout = stdout
	s.running = true
	s.streamCh = make(chan AudioChunk, 10)
	s.stopCh = make(chan struct{})

	go s.readLoop(ctx, stdout, s.streamCh, s.stopCh)

	s.logger.Info("audio capture started",
		"cmd", s.cfg.RecordCmd,
		"sample_rate", s.cfg.SampleRate,
		"channels", s.cfg.Channels,
	)

	return nil
}

func (s *CmdSource) readLoop(ctx context.Context, r io.Reader, out chan<- AudioChunk, stop <-chan struct{}) {
	defer close(out)

	buf := make([]byte, s.cfg.BufferBytes())
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}

		if _, err := io.ReadFull(r, buf); err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				s.logger.Warn("audio capture read failed", "error", err)
			}
			return
		}

		var chunk AudioChunk
		chunk.FromBytes(buf, s.cfg.SampleRate, s.cfg.Channels)

		select {
		case out <- chunk:
		default:
			// Consumer is behind, drop the chunk rather than stall capture.
		}
	}
}

// Stop halts capture and kills the recorder process.
func (s *CmdSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *CmdSource) stopLocked() error {
	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)

	if s.stdout != nil {
		s.stdout.Close()
		s.stdout = nil
	}
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
		s.cmd.Wait()
	}
	s.cmd = nil

	s.logger.Info("audio capture stopped")
	return nil
}

// Read returns the next captured chunk.
func (s *CmdSource) Read(ctx context.Context) (AudioChunk, error) {
	s.mu.Lock()
	ch := s.streamCh
	s.mu.Unlock()

	if ch == nil {
		return AudioChunk{}, io.EOF
	}

	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the capture channel.
func (s *CmdSource) Stream() <-chan AudioChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the audio configuration.
func (s *CmdSource) Config() Config { return s.cfg }

// Name returns "cmd".
func (s *CmdSource) Name() string { return "cmd" }

// Close stops capture permanently.
func (s *CmdSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.stopLocked()
}

// CmdSink plays audio by piping raw PCM16 into an external player process.
// The pipeline is started lazily on the first Write and restarted if the
// process dies mid-stream.
type CmdSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	closed  bool
	playing bool
	cmd     *exec.Cmd
	stdin   io.WriteCloser
}

// NewCmdSink creates a command-backed audio sink.
func NewCmdSink(cfg Config, logger *slog.Logger) (*CmdSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.PlayCmd
	if name == "" {
		name = defaultPlayCmd()
	}
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("playback command %q not found: %w", name, err)
	}
	cfg.PlayCmd = name

	return &CmdSink{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Start is a no-op; the player process is spawned on first Write.
func (k *CmdSink) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return io.ErrClosedPipe
	}
	return nil
}

// startLocked spawns the player pipeline. Caller holds mu.
func (k *CmdSink) startLocked() error {
	cmd := exec.Command(k.cfg.PlayCmd, playArgs(k.cfg.PlayCmd, k.cfg)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", k.cfg.PlayCmd, err)
	}

	k.cmd = cmd
	k.stdin = stdin
	k.playing = true

	k.logger.Debug("audio playback pipeline started", "cmd", k.cfg.PlayCmd)
	return nil
}

// Write streams a chunk into the player.
func (k *CmdSink) Write(ctx context.Context, chunk AudioChunk) error {
	if len(chunk.Samples) == 0 {
		return nil
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return io.ErrClosedPipe
	}
	if !k.playing {
		if err := k.startLocked(); err != nil {
			return err
		}
	}

	if _, err := k.stdin.Write(chunk.Bytes()); err != nil {
		// Pipeline died. Tear down so the next Write respawns it.
		k.killLocked()
		return fmt.Errorf("write to playback pipeline: %w", err)
	}
	return nil
}

// Flush closes the pipeline stdin and waits for playback to drain.
func (k *CmdSink) Flush(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.playing {
		return nil
	}

	if k.stdin != nil {
		k.stdin.Close()
		k.stdin = nil
	}

	done := make(chan error, 1)
	cmd := k.cmd
	go func() {
		if cmd != nil {
			done <- cmd.Wait()
		} else {
			done <- nil
		}
	}()

	select {
	case <-ctx.Done():
		k.killLocked()
		return ctx.Err()
	case <-time.After(flushTimeout):
		k.killLocked()
		return fmt.Errorf("playback flush timed out after %v", flushTimeout)
	case <-done:
	}

	k.playing = false
	k.cmd = nil
	return nil
}

// Clear kills the pipeline, discarding any buffered audio.
func (k *CmdSink) Clear() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.killLocked()
	return nil
}

// killLocked tears down the player process. Caller holds mu.
func (k *CmdSink) killLocked() {
	if k.stdin != nil {
		k.stdin.Close()
		k.stdin = nil
	}
	if k.cmd != nil && k.cmd.Process != nil {
		k.cmd.Process.Kill()
		k.cmd.Wait()
	}
	k.cmd = nil
	k.playing = false
}

// Stop halts playback.
func (k *CmdSink) Stop() error {
	return k.Clear()
}

// Config returns the audio configuration.
func (k *CmdSink) Config() Config { return k.cfg }

// Name returns "cmd".
func (k *CmdSink) Name() string { return "cmd" }

// Close stops playback permanently.
func (k *CmdSink) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	k.killLocked()
	return nil
}

var (
	_ Source = (*CmdSource)(nil)
	_ Sink   = (*CmdSink)(nil)
)
