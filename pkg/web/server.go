// Package web serves the local dashboard: JSON snapshots of the
// ambient state plus a websocket event stream.
package web

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/holoself/go-ambient/pkg/health"
	"github.com/holoself/go-ambient/pkg/hub"
	"github.com/holoself/go-ambient/pkg/summary"
)

// State is the dashboard snapshot of everything the engine currently
// believes.
type State struct {
	Present         bool    `json:"present"`
	AwayMinutes     float64 `json:"away_minutes"`
	CameraAvailable bool    `json:"camera_available"`

	PostureScore      int     `json:"posture_score"`
	BadPostureMinutes float64 `json:"bad_posture_minutes"`

	BlinksPerMinute int `json:"blinks_per_minute"`

	WPM        int    `json:"wpm"`
	WPMTrend   string `json:"wpm_trend"`
	Fatigue    string `json:"fatigue"`
	FocusMin   int    `json:"focus_minutes"`
	BreakCount int    `json:"breaks_taken"`

	VoiceState string `json:"voice_state"`
	Speaking   bool   `json:"speaking"`
	QueueDepth int    `json:"queue_depth"`

	AgentConnected bool `json:"agent_connected"`
}

// Providers supplies the snapshots the endpoints serve. Nil funcs
// degrade the corresponding endpoint to an empty response.
type Providers struct {
	State  func() State
	Alerts func() []health.Alert
	Stats  func() summary.DayStats
}

// KeyPress is one reported keystroke. Rune is empty for named keys.
type KeyPress struct {
	Rune  string `json:"rune"`
	Name  string `json:"name"`
	Ctrl  bool   `json:"ctrl"`
	Shift bool   `json:"shift"`
	Alt   bool   `json:"alt"`
	Meta  bool   `json:"meta"`
}

// Callbacks groups the dashboard actions.
type Callbacks struct {
	// OnSpeak enqueues arbitrary text for playback.
	OnSpeak func(text string) error

	// OnVoiceToggle toggles the push-to-talk capture session.
	OnVoiceToggle func() error

	// OnKeys receives batched keystrokes from the reporting shim.
	OnKeys func(events []KeyPress)
}

// Config holds dashboard server settings.
type Config struct {
	// Addr is the listen address. Default: "127.0.0.1:8790".
	Addr string `yaml:"addr" json:"addr"`

	// Enabled turns the dashboard on. Default: true.
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:    "127.0.0.1:8790",
		Enabled: true,
	}
}

// Server is the dashboard HTTP and websocket server.
type Server struct {
	cfg    Config
	logger *slog.Logger
	app    *fiber.App

	events *hub.Hub

	mu        sync.RWMutex
	providers Providers
	callbacks Callbacks
}

// NewServer builds the dashboard server over the given event hub.
func NewServer(cfg Config, events *hub.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		logger: logger.With("component", "web"),
		events: events,
	}

	app := fiber.New(fiber.Config{
		AppName:               "ambient dashboard",
		DisableStartupMessage: true,
	})

	// Local-only tooling talks to it from file:// and dev servers.
	app.Use(cors.New())

	app.Get("/healthz", s.handleHealthz)

	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Get("/alerts", s.handleAlerts)
	api.Get("/stats", s.handleStats)
	api.Post("/speak", s.handleSpeak)
	api.Post("/voice/toggle", s.handleVoiceToggle)
	api.Post("/keys", s.handleKeys)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// SetProviders installs the snapshot suppliers.
func (s *Server) SetProviders(p Providers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers = p
}

// SetCallbacks installs the dashboard actions.
func (s *Server) SetCallbacks(cb Callbacks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = cb
}

// Start listens on the configured address. Blocks; call in a
// goroutine.
func (s *Server) Start() error {
	s.logger.Info("dashboard listening", "addr", s.cfg.Addr)
	return s.app.Listen(s.cfg.Addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
