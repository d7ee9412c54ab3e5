package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// registerFake attaches a subscriber without a websocket connection so
// the fan-out loop can be exercised directly.
func registerFake(h *Hub, buffer int) *Client {
	c := &Client{hub: h, send: make(chan []byte, buffer)}
	h.register <- c
	return c
}

func TestHubDeliversEventsToSubscribers(t *testing.T) {
	h := New(nil)
	go h.Run(context.Background())

	c := registerFake(h, 4)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	require.NoError(t, h.Publish(EventPosture, map[string]int{"score": 72}))

	select {
	case data := <-c.send:
		var ev Event
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, EventPosture, ev.Type)
		assert.JSONEq(t, `{"score":72}`, string(ev.Payload))
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event never delivered")
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	h := New(nil)
	go h.Run(context.Background())

	c := registerFake(h, 1)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	// Nobody drains c.send; the second event overflows its buffer and
	// the subscriber is evicted.
	require.NoError(t, h.Publish(EventBlink, map[string]int{"rate": 14}))
	require.NoError(t, h.Publish(EventBlink, map[string]int{"rate": 15}))

	require.Eventually(t, func() bool { return h.ClientCount() == 0 },
		time.Second, 5*time.Millisecond)

	// The channel was closed on eviction.
	<-c.send
	_, open := <-c.send
	assert.False(t, open)
}

func TestHubPublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	h := New(nil)
	go h.Run(context.Background())

	for i := 0; i < 10; i++ {
		require.NoError(t, h.Publish(EventCadence, map[string]int{"wpm": i}))
	}
}

func TestHubPublishRejectsUnencodablePayload(t *testing.T) {
	h := New(nil)
	assert.Error(t, h.Publish(EventAlert, make(chan int)))
}

func TestHubShutdownClosesSubscribers(t *testing.T) {
	h := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	c := registerFake(h, 1)
	require.Eventually(t, func() bool { return h.IsRunning() },
		time.Second, 5*time.Millisecond)

	cancel()
	<-done

	_, open := <-c.send
	assert.False(t, open)
	assert.False(t, h.IsRunning())
}
