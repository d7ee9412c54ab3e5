package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/holoself/go-ambient/internal/httpc"
)

// Config holds agent client settings.
type Config struct {
	// BaseURL is the service endpoint, without trailing slash.
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout bounds one request. Default: 30s.
	Timeout time.Duration

	// Logger for request logging.
	Logger *slog.Logger
}

// Option is a functional option for the client.
type Option func(*Config)

// WithBaseURL sets the service endpoint.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAPIKey sets the bearer token.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// Client is the HTTP agent provider.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates an agent client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Config{
		Timeout: 30 * time.Second,
		Logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.BaseURL == "" {
		return nil, ErrNoBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	return &Client{
		cfg:    cfg,
		http:   httpc.NewClient(cfg.Timeout),
		logger: cfg.Logger.With("component", "agent"),
	}, nil
}

// NextMessage posts the engine state and returns the service's nudge.
// HTTP 204 means the service has nothing to say right now.
func (c *Client) NextMessage(ctx context.Context, state map[string]interface{}) (*Message, error) {
	body, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("agent: marshal state: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/message", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("agent: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent: request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("agent: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var msg Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("agent: decode response: %w", err)
	}

	c.logger.Debug("nudge received",
		"category", msg.Category,
		"priority", msg.Priority,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	if msg.Text == "" {
		return nil, nil
	}
	return &msg, nil
}

// Health probes the service.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("agent: health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("agent: health status %d", resp.StatusCode)
	}
	return nil
}

// Verify Client implements Provider at compile time.
var _ Provider = (*Client)(nil)
