// Package speech plays synthesized audio through a single serialized
// queue. One worker drains the queue, so utterances never overlap; a
// failed playback is logged and dropped rather than stalling the line.
package speech

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/holoself/go-ambient/pkg/audioio"
)

// Common errors returned by the queue.
var (
	ErrQueueFull = errors.New("speech: queue full")
	ErrQueueDone = errors.New("speech: queue stopped")
)

// Producer synthesizes the utterance audio. It is called only when the
// task reaches the head of the queue, so synthesis cost is paid in
// playback order and never wasted on tasks discarded at shutdown.
type Producer func(ctx context.Context) ([]byte, error)

// Task is one utterance waiting for playback.
type Task struct {
	// ID uniquely identifies the task.
	ID string

	// Label describes the utterance for logging ("alert", "summary").
	Label string

	produce  Producer
	enqueued time.Time
}

// Config holds playback queue settings.
type Config struct {
	// Audio is the sink configuration.
	Audio audioio.Config `yaml:"audio" json:"audio"`

	// QueueSize is the maximum number of pending utterances.
	// Default: 32.
	QueueSize int `yaml:"queue_size" json:"queue_size"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	cfg := Config{
		Audio:     audioio.DefaultConfig(),
		QueueSize: 32,
	}
	// Synthesized speech arrives at 24kHz.
	cfg.Audio.SampleRate = 24000
	return cfg
}

// Callbacks groups the queue event hooks.
type Callbacks struct {
	// OnPlaybackStart fires when an utterance begins playing.
	OnPlaybackStart func(task Task)

	// OnPlaybackEnd fires when an utterance finishes or fails.
	OnPlaybackEnd func(task Task, err error)
}

// SinkFactory creates the playback sink. The queue recreates the sink
// after a playback failure, so a dead device does not poison the line.
type SinkFactory func() (audioio.Sink, error)

// Queue serializes speech playback.
type Queue struct {
	cfg     Config
	logger  *slog.Logger
	newSink SinkFactory
	cb      Callbacks

	tasks chan Task

	mu       sync.Mutex
	sink     audioio.Sink
	speaking bool
	started  bool
	stopped  bool

	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Queue.
type Option func(*Queue)

// WithSinkFactory overrides how the playback sink is created.
func WithSinkFactory(f SinkFactory) Option {
	return func(q *Queue) { q.newSink = f }
}

// New creates a speech queue.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}

	q := &Queue{
		cfg:    cfg,
		logger: logger.With("component", "speech"),
		tasks:  make(chan Task, cfg.QueueSize),
	}
	q.newSink = func() (audioio.Sink, error) {
		return audioio.NewSink(cfg.Audio, logger)
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// SetCallbacks installs the event hooks. Call before Start.
func (q *Queue) SetCallbacks(cb Callbacks) {
	q.cb = cb
}

// Start launches the playback worker.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	ctx, q.cancel = context.WithCancel(ctx)
	q.done = make(chan struct{})
	q.mu.Unlock()

	go q.run(ctx)
}

// Stop drains nothing: pending tasks are discarded and the worker exits.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	cancel := q.cancel
	done := q.done
	sink := q.sink
	q.sink = nil
	q.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if sink != nil {
		sink.Clear()
		sink.Close()
	}
}

// Enqueue adds an utterance producer to the back of the queue and
// returns its task ID. A full queue rejects rather than blocks.
func (q *Queue) Enqueue(label string, produce Producer) (string, error) {
	q.mu.Lock()
	stopped := q.stopped
	q.mu.Unlock()
	if stopped {
		return "", ErrQueueDone
	}

	task := Task{
		ID:       uuid.New().String(),
		Label:    label,
		produce:  produce,
		enqueued: time.Now(),
	}

	select {
	case q.tasks <- task:
		q.logger.Debug("utterance queued", "id", task.ID, "label", label)
		return task.ID, nil
	default:
		return "", ErrQueueFull
	}
}

// EnqueueAudio queues already-synthesized audio bytes.
func (q *Queue) EnqueueAudio(label string, audio []byte) (string, error) {
	return q.Enqueue(label, func(context.Context) ([]byte, error) {
		return audio, nil
	})
}

// Pending returns the number of queued utterances not yet started.
func (q *Queue) Pending() int {
	return len(q.tasks)
}

// Speaking reports whether an utterance is currently playing.
func (q *Queue) Speaking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.speaking
}

// run is the single playback worker. Strict FIFO, one task at a time.
func (q *Queue) run(ctx context.Context) {
	defer close(q.done)

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-q.tasks:
			q.play(ctx, task)
		}
	}
}

// play decodes and writes one utterance to the sink.
func (q *Queue) play(ctx context.Context, task Task) {
	q.mu.Lock()
	q.speaking = true
	q.mu.Unlock()

	if q.cb.OnPlaybackStart != nil {
		q.cb.OnPlaybackStart(task)
	}

	audio, err := task.produce(ctx)
	if err == nil {
		err = q.playAudio(ctx, audio)
	}
	if err != nil {
		q.logger.Error("playback failed, dropping utterance",
			"id", task.ID, "label", task.Label, "error", err)
	} else {
		q.logger.Info("utterance played",
			"id", task.ID, "label", task.Label, "wait", time.Since(task.enqueued))
	}

	q.mu.Lock()
	q.speaking = false
	q.mu.Unlock()

	if q.cb.OnPlaybackEnd != nil {
		q.cb.OnPlaybackEnd(task, err)
	}
}

func (q *Queue) playAudio(ctx context.Context, audio []byte) error {
	dec, err := decodeAudio(audio, q.cfg.Audio.SampleRate)
	if err != nil {
		return err
	}

	samples := dec.samples
	if dec.channels == 2 {
		samples = audioio.StereoToMono(samples)
	}
	if dec.sampleRate != q.cfg.Audio.SampleRate {
		samples = audioio.Resample(samples, dec.sampleRate, q.cfg.Audio.SampleRate)
	}

	sink, err := q.acquireSink(ctx)
	if err != nil {
		return err
	}

	// Write in sink-sized chunks so Clear can interrupt long utterances.
	step := q.cfg.Audio.BufferSize()
	if step <= 0 {
		step = len(samples)
	}
	for start := 0; start < len(samples); start += step {
		end := start + step
		if end > len(samples) {
			end = len(samples)
		}
		chunk := audioio.AudioChunk{
			Samples:    samples[start:end],
			SampleRate: q.cfg.Audio.SampleRate,
			Channels:   1,
		}
		if err := sink.Write(ctx, chunk); err != nil {
			q.dropSink()
			return err
		}
	}

	if err := sink.Flush(ctx); err != nil {
		q.dropSink()
		return err
	}
	return nil
}

// acquireSink returns the live sink, creating one if needed.
func (q *Queue) acquireSink(ctx context.Context) (audioio.Sink, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.sink != nil {
		return q.sink, nil
	}

	sink, err := q.newSink()
	if err != nil {
		return nil, err
	}
	if err := sink.Start(ctx); err != nil {
		sink.Close()
		return nil, err
	}
	q.sink = sink
	return sink, nil
}

// dropSink discards a sink that failed mid-playback. The next task gets
// a fresh one.
func (q *Queue) dropSink() {
	q.mu.Lock()
	sink := q.sink
	q.sink = nil
	q.mu.Unlock()

	if sink != nil {
		sink.Close()
	}
}
