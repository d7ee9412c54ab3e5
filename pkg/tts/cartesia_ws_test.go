package tts

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStreamServer upgrades one connection and answers each synthesis
// request with two audio chunks followed by a done frame.
func fakeStreamServer(t *testing.T, chunks [][]byte) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("api_key"))
		assert.NotEmpty(t, r.URL.Query().Get("cartesia_version"))

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var req struct {
				ContextID  string `json:"context_id"`
				Transcript string `json:"transcript"`
				OutputFmt  struct {
					Container string `json:"container"`
				} `json:"output_format"`
			}
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			assert.NotEmpty(t, req.ContextID)
			assert.Equal(t, string(ContainerRaw), req.OutputFmt.Container,
				"streaming requests must ask for headerless audio")

			for _, chunk := range chunks {
				conn.WriteJSON(map[string]any{
					"type":       "chunk",
					"context_id": req.ContextID,
					"data":       base64.StdEncoding.EncodeToString(chunk),
				})
			}
			conn.WriteJSON(map[string]any{
				"type":       "done",
				"context_id": req.ContextID,
				"done":       true,
			})
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestCartesiaWS_StreamsChunks(t *testing.T) {
	chunks := [][]byte{{1, 2, 3, 4}, {5, 6, 7, 8}}
	server := fakeStreamServer(t, chunks)
	defer server.Close()

	client, err := NewCartesiaWS(
		WithAPIKey("test-key"),
		WithVoice("test-voice"),
		WithBaseURL(wsURL(server)),
	)
	require.NoError(t, err)
	defer client.Close()

	var (
		mu    sync.Mutex
		audio []byte
		done  = make(chan string, 1)
	)
	client.OnAudio = func(_ string, pcm []byte) {
		mu.Lock()
		audio = append(audio, pcm...)
		mu.Unlock()
	}
	client.OnDone = func(contextID string) { done <- contextID }

	require.NoError(t, client.Connect(context.Background()))
	assert.True(t, client.IsConnected())

	contextID, err := client.Speak("hello there")
	require.NoError(t, err)
	require.NotEmpty(t, contextID)

	select {
	case id := <-done:
		assert.Equal(t, contextID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the done frame")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, audio)
}

func TestCartesiaWS_SpeakRequiresConnection(t *testing.T) {
	client, err := NewCartesiaWS(
		WithAPIKey("test-key"),
		WithVoice("test-voice"),
	)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Speak("nope")
	assert.ErrorContains(t, err, "not connected")
}

func TestCartesiaWS_RequiresVoice(t *testing.T) {
	_, err := NewCartesiaWS(WithAPIKey("test-key"))
	assert.ErrorIs(t, err, ErrNoVoiceID)
}
