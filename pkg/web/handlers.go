package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/sitposture/pkg/hub"
)

// handleHealth reports liveness
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleStatus returns the session's current status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Snapshot())
}

// handleConfig returns the classification parameters in effect
func (s *Server) handleConfig(c *fiber.Ctx) error {
	return c.JSON(s.cfg)
}

// handlePostureWS streams posture results, starting with the current status
func (s *Server) handlePostureWS(c *websocket.Conn) {
	client := hub.NewClient(s.postureHub, c)

	// Safe before Run: the write pump has not started yet
	c.WriteJSON(s.Snapshot())
	client.Run()
}

// handleCameraWS streams JPEG frames
func (s *Server) handleCameraWS(c *websocket.Conn) {
	hub.NewClient(s.cameraHub, c).Run()
}
