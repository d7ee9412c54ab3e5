package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/holoself/go-ambient/internal/httpc"
)

const (
	cartesiaBaseURL  = "https://api.cartesia.ai"
	cartesiaVersion  = "2024-06-10"
	providerCartesia = "cartesia"
)

// Cartesia model IDs.
const (
	// ModelSonic2 is the current low-latency voice model.
	ModelSonic2 = "sonic-2"

	// ModelSonicTurbo trades some quality for the lowest latency.
	ModelSonicTurbo = "sonic-turbo"
)

// Cartesia implements Provider for the Cartesia TTS API.
type Cartesia struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewCartesia creates a Cartesia TTS provider.
func NewCartesia(opts ...Option) (*Cartesia, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.ValidateWithVoice(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = cartesiaBaseURL
	}

	return &Cartesia{
		config:  cfg,
		client:  httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "tts.cartesia"),
		baseURL: baseURL,
	}, nil
}

// Synthesize converts text to audio, returning the complete buffer.
func (c *Cartesia) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	body, err := json.Marshal(c.buildPayload(text))
	if err != nil {
		return nil, WrapError(providerCartesia, fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/tts/bytes", bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerCartesia, fmt.Errorf("create request: %w", err))
	}
	c.setHeaders(req)

	resp, err := c.doWithRetry(ctx, req, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerCartesia, fmt.Errorf("read response: %w", err))
	}

	latency := time.Since(start).Milliseconds()
	c.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"model", c.config.ModelID,
	)

	return &AudioResult{
		Audio:     audio,
		Format:    c.config.Format(),
		CharCount: len(text),
		LatencyMs: latency,
		Duration:  estimatePCMDuration(len(audio), c.config.SampleRate),
	}, nil
}

// Stream converts text to audio, reading the response incrementally.
func (c *Cartesia) Stream(ctx context.Context, text string) (AudioStream, error) {
	body, err := json.Marshal(c.buildPayload(text))
	if err != nil {
		return nil, WrapError(providerCartesia, fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/tts/bytes", bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerCartesia, fmt.Errorf("create request: %w", err))
	}
	c.setHeaders(req)

	client := httpc.NewClient(c.config.StreamTimeout)
	resp, err := client.Do(req)
	if err != nil {
		return nil, WrapError(providerCartesia, fmt.Errorf("stream request: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.parseError(resp)
	}

	return &httpStream{
		body:   resp.Body,
		format: c.config.Format(),
	}, nil
}

// Health verifies API connectivity and the API key.
func (c *Cartesia) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/voices", nil)
	if err != nil {
		return WrapError(providerCartesia, err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return WrapError(providerCartesia, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}
	return nil
}

// Close releases resources held by the provider.
func (c *Cartesia) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// VoiceID returns the configured voice ID.
func (c *Cartesia) VoiceID() string {
	return c.config.VoiceID
}

// buildPayload constructs the /tts/bytes request body.
func (c *Cartesia) buildPayload(text string) map[string]interface{} {
	voice := map[string]interface{}{
		"mode": "id",
		"id":   c.config.VoiceID,
	}

	controls := map[string]interface{}{}
	if c.config.VoiceControls.Speed != "" {
		controls["speed"] = c.config.VoiceControls.Speed
	}
	if len(c.config.VoiceControls.Emotion) > 0 {
		controls["emotion"] = c.config.VoiceControls.Emotion
	}
	if len(controls) > 0 {
		voice["__experimental_controls"] = controls
	}

	return map[string]interface{}{
		"model_id":   c.config.ModelID,
		"transcript": text,
		"voice":      voice,
		"language":   c.config.Language,
		"output_format": map[string]interface{}{
			"container":   string(c.config.Container),
			"encoding":    string(c.config.Encoding),
			"sample_rate": c.config.SampleRate,
		},
	}
}

// setHeaders sets the required API headers.
func (c *Cartesia) setHeaders(req *http.Request) {
	req.Header.Set("X-API-Key", c.config.APIKey)
	req.Header.Set("Cartesia-Version", cartesiaVersion)
	req.Header.Set("Content-Type", "application/json")
}

// doWithRetry performs the request, retrying 429s and 5xxs.
func (c *Cartesia) doWithRetry(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = WrapError(providerCartesia, err)
			continue
		}

		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			lastErr = c.parseError(resp)
			resp.Body.Close()
			c.logger.Warn("retrying request",
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// parseError reads and parses an error response.
func (c *Cartesia) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error string `json:"error"`
	}

	message := string(body)
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		message = errResp.Error
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Provider:   providerCartesia,
	}
}

// httpStream wraps an HTTP response body as an AudioStream.
type httpStream struct {
	body   io.ReadCloser
	format AudioFormat
	buf    [4096]byte
}

func (s *httpStream) Read() ([]byte, error) {
	n, err := s.body.Read(s.buf[:])
	if err == io.EOF {
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, s.buf[:n])
			return chunk, nil
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	chunk := make([]byte, n)
	copy(chunk, s.buf[:n])
	return chunk, nil
}

func (s *httpStream) Close() error {
	return s.body.Close()
}

func (s *httpStream) Format() AudioFormat {
	return s.format
}

// Verify Cartesia implements Provider at compile time.
var _ Provider = (*Cartesia)(nil)
