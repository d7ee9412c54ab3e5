package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	cartesiaWSBaseURL  = "wss://api.cartesia.ai/tts/websocket"
	keepaliveInterval  = 30 * time.Second
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// CartesiaWS streams synthesis over a persistent WebSocket for the
// lowest time-to-first-audio. Audio chunks arrive via the OnAudio
// callback; each Speak call is one synthesis context.
type CartesiaWS struct {
	config *Config
	logger *slog.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	connected bool

	// Callbacks
	OnAudio      func(contextID string, pcm []byte) // each audio chunk
	OnDone       func(contextID string)             // context finished
	OnError      func(err error)
	OnDisconnect func()

	ctx          context.Context
	cancel       context.CancelFunc
	closeCh      chan struct{}
	closeOnce    sync.Once
	reconnecting bool
}

// NewCartesiaWS creates a WebSocket-based Cartesia TTS client.
func NewCartesiaWS(opts ...Option) (*CartesiaWS, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.ValidateWithVoice(); err != nil {
		return nil, err
	}

	// WebSocket streaming wants raw PCM, the RIFF header has no place
	// in a chunk stream.
	cfg.Container = ContainerRaw

	return &CartesiaWS{
		config:  cfg,
		logger:  cfg.Logger.With("component", "tts.cartesia_ws"),
		closeCh: make(chan struct{}),
	}, nil
}

// Connect establishes the WebSocket connection.
func (w *CartesiaWS) Connect(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	if err := w.dial(); err != nil {
		return err
	}

	go w.readLoop()
	go w.keepaliveLoop()

	return nil
}

// dial opens the socket. The API key travels in the query string, as
// the service expects for browser clients.
func (w *CartesiaWS) dial() error {
	w.connMu.Lock()
	defer w.connMu.Unlock()

	base := w.config.BaseURL
	if base == "" {
		base = cartesiaWSBaseURL
	}
	url := fmt.Sprintf("%s?api_key=%s&cartesia_version=%s", base, w.config.APIKey, cartesiaVersion)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(w.ctx, url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	w.conn = conn
	w.connected = true
	w.logger.Info("websocket connected", "voice", w.config.VoiceID, "model", w.config.ModelID)
	return nil
}

// Speak submits one utterance for streaming synthesis and returns its
// context ID. Chunks for the context arrive through OnAudio.
func (w *CartesiaWS) Speak(text string) (string, error) {
	w.connMu.Lock()
	conn := w.conn
	connected := w.connected
	w.connMu.Unlock()

	if !connected || conn == nil {
		return "", fmt.Errorf("tts [%s]: websocket not connected", providerCartesia)
	}

	contextID := uuid.New().String()
	req := map[string]interface{}{
		"context_id": contextID,
		"model_id":   w.config.ModelID,
		"transcript": text,
		"language":   w.config.Language,
		"voice": map[string]interface{}{
			"mode": "id",
			"id":   w.config.VoiceID,
		},
		"output_format": map[string]interface{}{
			"container":   string(ContainerRaw),
			"encoding":    string(w.config.Encoding),
			"sample_rate": w.config.SampleRate,
		},
	}

	w.connMu.Lock()
	err := conn.WriteJSON(req)
	w.connMu.Unlock()
	if err != nil {
		w.handleDisconnect()
		return "", fmt.Errorf("send synthesis request: %w", err)
	}
	return contextID, nil
}

// readLoop delivers audio chunks until the client closes.
func (w *CartesiaWS) readLoop() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.closeCh:
			return
		default:
		}

		w.connMu.Lock()
		conn := w.conn
		w.connMu.Unlock()

		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				w.logger.Error("websocket read error", "error", err)
			}
			w.handleDisconnect()
			continue
		}

		var resp struct {
			Type      string `json:"type"`
			ContextID string `json:"context_id"`
			Data      string `json:"data"`
			Done      bool   `json:"done"`
			Error     string `json:"error"`
		}
		if err := json.Unmarshal(message, &resp); err != nil {
			w.logger.Warn("failed to parse response", "error", err)
			continue
		}

		switch {
		case resp.Error != "":
			w.logger.Error("synthesis error", "context", resp.ContextID, "error", resp.Error)
			if w.OnError != nil {
				w.OnError(fmt.Errorf("tts [%s]: %s", providerCartesia, resp.Error))
			}
		case resp.Data != "":
			audio, err := base64.StdEncoding.DecodeString(resp.Data)
			if err != nil {
				w.logger.Warn("failed to decode audio chunk", "error", err)
				continue
			}
			if w.OnAudio != nil {
				w.OnAudio(resp.ContextID, audio)
			}
		}

		if resp.Done && w.OnDone != nil {
			w.OnDone(resp.ContextID)
		}
	}
}

// keepaliveLoop pings to hold the connection open between utterances.
func (w *CartesiaWS) keepaliveLoop() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.closeCh:
			return
		case <-ticker.C:
			w.connMu.Lock()
			conn := w.conn
			connected := w.connected
			w.connMu.Unlock()

			if !connected || conn == nil {
				continue
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				w.logger.Warn("keepalive ping failed", "error", err)
				w.handleDisconnect()
			}
		}
	}
}

// handleDisconnect drops the dead connection and kicks off reconnection.
func (w *CartesiaWS) handleDisconnect() {
	w.connMu.Lock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
	wasReconnecting := w.reconnecting
	w.reconnecting = true
	w.connMu.Unlock()

	if w.OnDisconnect != nil {
		w.OnDisconnect()
	}

	if !wasReconnecting {
		go w.reconnectLoop()
	}
}

// reconnectLoop redials with exponential backoff.
func (w *CartesiaWS) reconnectLoop() {
	delay := reconnectBaseDelay

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.closeCh:
			return
		default:
		}

		w.logger.Info("attempting to reconnect", "delay", delay)
		time.Sleep(delay)

		if err := w.dial(); err != nil {
			w.logger.Error("reconnect failed", "error", err)
			delay *= 2
			if delay > reconnectMaxDelay {
				delay = reconnectMaxDelay
			}
			continue
		}

		w.connMu.Lock()
		w.reconnecting = false
		w.connMu.Unlock()
		w.logger.Info("reconnected")
		return
	}
}

// IsConnected reports whether the socket is up.
func (w *CartesiaWS) IsConnected() bool {
	w.connMu.Lock()
	defer w.connMu.Unlock()
	return w.connected
}

// Close terminates the connection.
func (w *CartesiaWS) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeOnce.Do(func() { close(w.closeCh) })

	w.connMu.Lock()
	defer w.connMu.Unlock()

	if w.conn != nil {
		w.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
	return nil
}
