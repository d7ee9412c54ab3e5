package speech

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/holoself/go-ambient/pkg/audioio"
)

func testQueueConfig() Config {
	cfg := DefaultConfig()
	cfg.Audio.Backend = audioio.BackendMock
	cfg.QueueSize = 8
	return cfg
}

// rawPCM returns n silence samples as raw bytes.
func rawPCM(n int) []byte {
	return make([]byte, n*2)
}

func TestQueue_StrictFIFO(t *testing.T) {
	cfg := testQueueConfig()
	sink := audioio.NewMockSink(cfg.Audio, nil)
	q := New(cfg, nil, WithSinkFactory(func() (audioio.Sink, error) {
		return sink, nil
	}))

	var (
		mu    sync.Mutex
		order []string
	)
	done := make(chan struct{}, 8)
	q.SetCallbacks(Callbacks{
		OnPlaybackStart: func(task Task) {
			mu.Lock()
			order = append(order, task.Label)
			mu.Unlock()
		},
		OnPlaybackEnd: func(Task, error) { done <- struct{}{} },
	})

	labels := []string{"first", "second", "third", "fourth"}
	for _, l := range labels {
		if _, err := q.EnqueueAudio(l, rawPCM(480)); err != nil {
			t.Fatal(err)
		}
	}

	q.Start(context.Background())
	defer q.Stop()

	for range labels {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for playback")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i, l := range labels {
		if order[i] != l {
			t.Fatalf("playback order = %v, want %v", order, labels)
		}
	}
}

func TestQueue_OneActiveUtterance(t *testing.T) {
	cfg := testQueueConfig()
	q := New(cfg, nil, WithSinkFactory(func() (audioio.Sink, error) {
		return audioio.NewMockSink(cfg.Audio, nil), nil
	}))

	var active, maxActive atomic.Int32
	done := make(chan struct{}, 16)
	q.SetCallbacks(Callbacks{
		OnPlaybackStart: func(Task) {
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
		},
		OnPlaybackEnd: func(Task, error) {
			active.Add(-1)
			done <- struct{}{}
		},
	})

	q.Start(context.Background())
	defer q.Stop()

	const n = 6
	for i := 0; i < n; i++ {
		if _, err := q.EnqueueAudio("tick", rawPCM(2400)); err != nil {
			t.Fatal(err)
		}
	}

	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for playback")
		}
	}

	if maxActive.Load() != 1 {
		t.Errorf("max concurrent utterances = %d, want 1", maxActive.Load())
	}
}

func TestQueue_FailedPlaybackDoesNotStall(t *testing.T) {
	cfg := testQueueConfig()

	bad := audioio.NewMockSink(cfg.Audio, nil)
	bad.FailWrites = true
	good := audioio.NewMockSink(cfg.Audio, nil)

	var factoryCalls atomic.Int32
	q := New(cfg, nil, WithSinkFactory(func() (audioio.Sink, error) {
		if factoryCalls.Add(1) == 1 {
			return bad, nil
		}
		return good, nil
	}))

	var (
		mu   sync.Mutex
		errs []error
	)
	done := make(chan struct{}, 4)
	q.SetCallbacks(Callbacks{
		OnPlaybackEnd: func(_ Task, err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			done <- struct{}{}
		},
	})

	q.Start(context.Background())
	defer q.Stop()

	q.EnqueueAudio("doomed", rawPCM(480))
	q.EnqueueAudio("survivor", rawPCM(480))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for playback")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if errs[0] == nil {
		t.Error("first utterance should have failed")
	}
	if errs[1] != nil {
		t.Errorf("second utterance should have played on a fresh sink, got %v", errs[1])
	}
	if factoryCalls.Load() != 2 {
		t.Errorf("factory calls = %d, want 2 (dead sink replaced)", factoryCalls.Load())
	}
	if good.WrittenSamples() == 0 {
		t.Error("replacement sink received no audio")
	}
}

func TestQueue_ProducerRunsAtHeadOfLine(t *testing.T) {
	cfg := testQueueConfig()
	q := New(cfg, nil, WithSinkFactory(func() (audioio.Sink, error) {
		return audioio.NewMockSink(cfg.Audio, nil), nil
	}))

	var produced atomic.Int32
	done := make(chan struct{}, 4)
	q.SetCallbacks(Callbacks{
		OnPlaybackEnd: func(Task, error) { done <- struct{}{} },
	})

	// Synthesis must not run at enqueue time.
	for i := 0; i < 3; i++ {
		_, err := q.Enqueue("lazy", func(context.Context) ([]byte, error) {
			produced.Add(1)
			return rawPCM(480), nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if produced.Load() != 0 {
		t.Fatalf("produced %d utterances before playback started", produced.Load())
	}

	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for playback")
		}
	}
	if produced.Load() != 3 {
		t.Errorf("produced = %d, want 3", produced.Load())
	}
}

func TestQueue_ProducerFailureDoesNotStall(t *testing.T) {
	cfg := testQueueConfig()
	q := New(cfg, nil, WithSinkFactory(func() (audioio.Sink, error) {
		return audioio.NewMockSink(cfg.Audio, nil), nil
	}))

	var (
		mu   sync.Mutex
		errs []error
	)
	done := make(chan struct{}, 2)
	q.SetCallbacks(Callbacks{
		OnPlaybackEnd: func(_ Task, err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			done <- struct{}{}
		},
	})

	q.Start(context.Background())
	defer q.Stop()

	q.Enqueue("broken", func(context.Context) ([]byte, error) {
		return nil, context.DeadlineExceeded
	})
	q.EnqueueAudio("fine", rawPCM(480))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for playback")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if errs[0] == nil {
		t.Error("failed synthesis should surface on the first utterance")
	}
	if errs[1] != nil {
		t.Errorf("second utterance should have played, got %v", errs[1])
	}
}

func TestQueue_FullRejects(t *testing.T) {
	cfg := testQueueConfig()
	cfg.QueueSize = 2
	q := New(cfg, nil, WithSinkFactory(func() (audioio.Sink, error) {
		return audioio.NewMockSink(cfg.Audio, nil), nil
	}))
	// Not started, so nothing drains.

	q.EnqueueAudio("a", rawPCM(480))
	q.EnqueueAudio("b", rawPCM(480))
	if _, err := q.EnqueueAudio("c", rawPCM(480)); err != ErrQueueFull {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}
	if q.Pending() != 2 {
		t.Errorf("pending = %d, want 2", q.Pending())
	}
}

func TestQueue_ResamplesToSinkRate(t *testing.T) {
	cfg := testQueueConfig()
	sink := audioio.NewMockSink(cfg.Audio, nil)
	q := New(cfg, nil, WithSinkFactory(func() (audioio.Sink, error) {
		return sink, nil
	}))

	done := make(chan struct{}, 1)
	q.SetCallbacks(Callbacks{
		OnPlaybackEnd: func(Task, error) { done <- struct{}{} },
	})

	// 12000 samples at 48kHz should become 6000 at the 24kHz sink.
	wav := buildWAV(make([]int16, 12000), 48000, 1)
	q.Start(context.Background())
	defer q.Stop()

	if _, err := q.EnqueueAudio("wav", wav); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for playback")
	}

	if got := sink.WrittenSamples(); got != 6000 {
		t.Errorf("sink received %d samples, want 6000", got)
	}
}
