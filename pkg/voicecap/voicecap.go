// Package voicecap implements push-to-talk voice capture.
//
// A Controller owns a strict session cycle: ready -> listening ->
// processing -> cooldown -> ready. Activation opens the microphone and
// buffers PCM while a simple energy detector watches for the end of
// speech; a completed utterance is handed to a Transcriber and the
// transcript surfaces through a callback. Sessions that time out or are
// aborted before an utterance completes skip transcription and move
// straight to cooldown. Whatever path a session takes out of listening,
// the microphone is released before the next state.
package voicecap

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/holoself/go-ambient/pkg/audioio"
)

// State is the capture session state.
type State int

const (
	// StateReady means no session is active and Activate will be accepted.
	StateReady State = iota
	// StateListening means the microphone is open and buffering.
	StateListening
	// StateProcessing means a captured segment is being transcribed.
	StateProcessing
	// StateCooldown is the hold-off period before the next session.
	StateCooldown
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Common errors returned by the controller.
var (
	ErrNotReady     = errors.New("voicecap: session already in progress")
	ErrNotListening = errors.New("voicecap: no active listening session")
	ErrClosed       = errors.New("voicecap: controller closed")
)

// Transcriber converts a PCM16 segment to text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error)
}

// Config holds voice capture settings.
type Config struct {
	// Audio is the capture configuration.
	Audio audioio.Config `yaml:"audio" json:"audio"`

	// Sensitivity is the normalized RMS energy above which a chunk
	// counts as speech. Default: 0.005.
	Sensitivity float64 `yaml:"sensitivity" json:"sensitivity"`

	// ListenTimeout bounds one listening session. Default: 30s.
	ListenTimeout time.Duration `yaml:"listen_timeout" json:"listen_timeout"`

	// SilenceHold is how much trailing silence ends the capture once
	// enough speech has been heard. Default: 1500ms.
	SilenceHold time.Duration `yaml:"silence_hold" json:"silence_hold"`

	// MinSpeech is the least accumulated speech before silence can end
	// the session. Default: 550ms.
	MinSpeech time.Duration `yaml:"min_speech" json:"min_speech"`

	// MinSegmentBytes is the smallest segment worth transcribing.
	// Shorter captures are discarded. Default: 8000 (250ms at 16kHz).
	MinSegmentBytes int `yaml:"min_segment_bytes" json:"min_segment_bytes"`

	// Cooldown is the pause before the controller accepts the next
	// activation. Default: 2s.
	Cooldown time.Duration `yaml:"cooldown" json:"cooldown"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Audio:           audioio.DefaultConfig(),
		Sensitivity:     0.005,
		ListenTimeout:   30 * time.Second,
		SilenceHold:     1500 * time.Millisecond,
		MinSpeech:       550 * time.Millisecond,
		MinSegmentBytes: 8000,
		Cooldown:        2 * time.Second,
	}
}

// Callbacks groups the controller event hooks.
type Callbacks struct {
	// OnStateChange fires on every transition with the new state.
	OnStateChange func(s State)

	// OnTranscript fires with the text of a completed capture.
	OnTranscript func(text string)

	// OnError fires when a session fails (device or transcription).
	OnError func(err error)
}

// SourceOpener creates the microphone source for one session.
type SourceOpener func() (audioio.Source, error)

// Controller runs push-to-talk capture sessions.
type Controller struct {
	cfg         Config
	logger      *slog.Logger
	open        SourceOpener
	transcriber Transcriber
	cb          Callbacks

	mu     sync.Mutex
	state  State
	closed bool
	cancel context.CancelFunc
}

// Option configures a Controller.
type Option func(*Controller)

// WithSourceOpener overrides how the microphone is opened.
// Tests use this to inject a mock source.
func WithSourceOpener(open SourceOpener) Option {
	return func(c *Controller) { c.open = open }
}

// New creates a voice capture controller.
func New(cfg Config, transcriber Transcriber, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		cfg:         cfg,
		logger:      logger.With("component", "voicecap"),
		transcriber: transcriber,
		state:       StateReady,
	}
	c.open = func() (audioio.Source, error) {
		return audioio.NewSource(cfg.Audio, logger)
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SetCallbacks installs the event hooks. Call before Activate.
func (c *Controller) SetCallbacks(cb Callbacks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cb = cb
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Activate starts a listening session.
// Only valid from the ready state; any other state returns ErrNotReady.
func (c *Controller) Activate(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateReady {
		c.mu.Unlock()
		return ErrNotReady
	}

	src, err := c.open()
	if err != nil {
		c.mu.Unlock()
		c.emitError(err)
		return err
	}
	if err := src.Start(ctx); err != nil {
		src.Close()
		c.mu.Unlock()
		c.emitError(err)
		return err
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = StateListening
	c.mu.Unlock()

	c.emitState(StateListening)
	c.logger.Info("listening started")

	go c.listen(sessionCtx, src)
	return nil
}

// Deactivate aborts the current listening session. The buffered audio
// is discarded, not transcribed. Only valid while listening; any other
// state returns ErrNotListening.
func (c *Controller) Deactivate() error {
	c.mu.Lock()
	if c.state != StateListening {
		c.mu.Unlock()
		return ErrNotListening
	}
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// Close releases the controller. An active session is cancelled.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.closed = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// listen buffers microphone audio until speech ends, the session times
// out, or Deactivate cancels it. Only a completed utterance, at least
// MinSpeech of speech followed by the silence hold, moves on to
// transcription; timeout and cancellation discard the buffer. The
// source is always released before the next state.
func (c *Controller) listen(ctx context.Context, src audioio.Source) {
	var (
		segment    []byte
		speechDur  time.Duration
		silenceDur time.Duration
		completed  bool
	)

	timeout := time.NewTimer(c.cfg.ListenTimeout)
	defer timeout.Stop()

	stream := src.Stream()

capture:
	for {
		select {
		case <-ctx.Done():
			break capture
		case <-timeout.C:
			c.logger.Info("listening timed out", "timeout", c.cfg.ListenTimeout)
			break capture
		case chunk, ok := <-stream:
			if !ok {
				break capture
			}

			segment = append(segment, chunk.Bytes()...)
			dur := time.Duration(chunk.Duration() * float64(time.Second))

			if chunk.RMS() >= c.cfg.Sensitivity {
				speechDur += dur
				silenceDur = 0
			} else if speechDur >= c.cfg.MinSpeech {
				silenceDur += dur
				if silenceDur >= c.cfg.SilenceHold {
					completed = true
					c.logger.Info("speech ended", "speech", speechDur)
					break capture
				}
			}
		}
	}

	// Microphone is released no matter how the session ended.
	src.Stop()
	src.Close()

	if !completed {
		c.discard(len(segment))
		return
	}
	c.process(segment)
}

// discard drops a session that ended without a completed utterance and
// goes straight to cooldown, never touching the transcriber.
func (c *Controller) discard(bytes int) {
	c.mu.Lock()
	c.cancel = nil
	c.mu.Unlock()

	c.logger.Info("no utterance captured, discarding", "bytes", bytes)
	c.cooldown()
}

// process transcribes the captured segment, then enters cooldown.
func (c *Controller) process(segment []byte) {
	c.mu.Lock()
	c.state = StateProcessing
	c.cancel = nil
	c.mu.Unlock()
	c.emitState(StateProcessing)

	if len(segment) < c.cfg.MinSegmentBytes {
		c.logger.Info("segment too short, discarding", "bytes", len(segment))
		c.cooldown()
		return
	}

	ctx, cancelTx := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancelTx()

	text, err := c.transcriber.Transcribe(ctx, segment, c.cfg.Audio.SampleRate)
	if err != nil {
		c.logger.Error("transcription failed", "error", err)
		c.emitError(err)
		c.cooldown()
		return
	}

	c.logger.Info("transcription done", "chars", len(text))
	if text != "" && c.cb.OnTranscript != nil {
		c.cb.OnTranscript(text)
	}
	c.cooldown()
}

// cooldown holds the controller before re-arming.
func (c *Controller) cooldown() {
	c.mu.Lock()
	c.state = StateCooldown
	c.mu.Unlock()
	c.emitState(StateCooldown)

	time.AfterFunc(c.cfg.Cooldown, func() {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.state = StateReady
		c.mu.Unlock()
		c.emitState(StateReady)
	})
}

func (c *Controller) emitState(s State) {
	if c.cb.OnStateChange != nil {
		c.cb.OnStateChange(s)
	}
}

func (c *Controller) emitError(err error) {
	if c.cb.OnError != nil {
		c.cb.OnError(err)
	}
}
