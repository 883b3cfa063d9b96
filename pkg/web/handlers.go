package web

import (
	"github.com/gofiber/fiber/v2"

	"github.com/poblanc/go-avatar/pkg/animation"
)

// statusResponse is the /api/status payload.
type statusResponse struct {
	Connection struct {
		State             string  `json:"state"`
		ClientID          string  `json:"client_id"`
		ReconnectAttempts int     `json:"reconnect_attempts"`
		AverageLatencyMs  float64 `json:"average_latency_ms"`
	} `json:"connection"`
	Animation struct {
		State             string             `json:"state"`
		CurrentExpression string             `json:"current_expression"`
		MouthSyncActive   bool               `json:"mouth_sync_active"`
		Parameters        map[string]float64 `json:"parameters"`
	} `json:"animation"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	var resp statusResponse

	cs := s.conn.Status()
	resp.Connection.State = cs.State.String()
	resp.Connection.ClientID = cs.ClientID
	resp.Connection.ReconnectAttempts = cs.ReconnectAttempts
	resp.Connection.AverageLatencyMs = float64(cs.AverageLatency.Microseconds()) / 1000

	resp.Animation.State = s.scheduler.State().String()
	resp.Animation.CurrentExpression = s.scheduler.CurrentExpression()
	resp.Animation.MouthSyncActive = s.scheduler.MouthSyncActive()
	resp.Animation.Parameters = s.engine.Snapshot()

	return c.JSON(resp)
}

func (s *Server) handleListExpressions(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"expressions": s.registry.Names()})
}

func (s *Server) handleGetExpression(c *fiber.Ctx) error {
	data, err := s.registry.ExportExpression(c.Params("name"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	c.Set("Content-Type", "application/json")
	return c.Send(data)
}

func (s *Server) handleCreateExpression(c *fiber.Ctx) error {
	name, err := s.registry.ImportExpression(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"name": name})
}

// animateRequest is the POST /api/animate body.
type animateRequest struct {
	Expression string  `json:"expression"`
	Intensity  float64 `json:"intensity"`
	Duration   float64 `json:"duration"`
}

func (s *Server) handleAnimate(c *fiber.Ctx) error {
	var req animateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed body"})
	}
	if req.Expression == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "expression required"})
	}
	if !s.registry.Has(req.Expression) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown expression"})
	}
	if req.Intensity <= 0 {
		req.Intensity = 1.0
	}
	if req.Duration <= 0 {
		req.Duration = 2.0
	}

	started := s.scheduler.TriggerContextualAnimation(animation.Request{
		Expression: req.Expression,
		Intensity:  req.Intensity,
		Duration:   req.Duration,
	})
	if !started {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "throttled"})
	}
	return c.JSON(fiber.Map{
		"started":    true,
		"expression": req.Expression,
	})
}
