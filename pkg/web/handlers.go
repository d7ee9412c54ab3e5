package web

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/holoself/go-ambient/pkg/health"
	"github.com/holoself/go-ambient/pkg/hub"
)

func (s *Server) handleHealthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleState(c *fiber.Ctx) error {
	s.mu.RLock()
	provide := s.providers.State
	s.mu.RUnlock()

	if provide == nil {
		return c.JSON(State{})
	}
	return c.JSON(provide())
}

func (s *Server) handleAlerts(c *fiber.Ctx) error {
	s.mu.RLock()
	provide := s.providers.Alerts
	s.mu.RUnlock()

	if provide == nil {
		return c.JSON([]health.Alert{})
	}
	alerts := provide()
	if alerts == nil {
		alerts = []health.Alert{}
	}
	return c.JSON(alerts)
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	s.mu.RLock()
	provide := s.providers.Stats
	s.mu.RUnlock()

	if provide == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "day statistics unavailable",
		})
	}
	return c.JSON(provide())
}

// SpeakRequest is the manual speak action body.
type SpeakRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSpeak(c *fiber.Ctx) error {
	var req SpeakRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid body",
		})
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "text is required",
		})
	}

	s.mu.RLock()
	speak := s.callbacks.OnSpeak
	s.mu.RUnlock()

	if speak == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "speech unavailable",
		})
	}
	if err := speak(req.Text); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"queued": true})
}

func (s *Server) handleVoiceToggle(c *fiber.Ctx) error {
	s.mu.RLock()
	toggle := s.callbacks.OnVoiceToggle
	s.mu.RUnlock()

	if toggle == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "voice capture unavailable",
		})
	}
	if err := toggle(); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"toggled": true})
}

func (s *Server) handleKeys(c *fiber.Ctx) error {
	var events []KeyPress
	if err := c.BodyParser(&events); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid body",
		})
	}

	s.mu.RLock()
	onKeys := s.callbacks.OnKeys
	s.mu.RUnlock()

	if onKeys != nil && len(events) > 0 {
		onKeys(events)
	}
	return c.JSON(fiber.Map{"accepted": len(events)})
}

// handleEventsWS streams the live event feed to one subscriber.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	if s.events == nil {
		c.Close()
		return
	}
	client := hub.NewClient(s.events, c)
	client.Run()
}
