package web

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-pidog/pkg/actions"
	"github.com/teslashibe/go-pidog/pkg/camera"
	"github.com/teslashibe/go-pidog/pkg/pidog"
)

// handleStatus reports the controller and camera state.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	st := Status{
		Viewers:    s.cameraHub.ClientCount(),
		FramesSent: s.frames.Load(),
	}
	if s.dispatcher != nil {
		ctrl := s.dispatcher.Controller()
		st.Mode = ctrl.Mode()
		st.HardwareAvailable = ctrl.Mode() == pidog.ModeHardware
		if r, ok := ctrl.(pidog.CameraReporter); ok {
			st.CameraActive = r.CameraActive()
		}
	}
	if s.streamer != nil {
		st.CameraState = s.streamer.State().String()
		st.Camera = s.streamer.Stats()
	}
	return c.JSON(st)
}

// handleListActions returns the catalog grouped by category.
func (s *Server) handleListActions(c *fiber.Ctx) error {
	cat := actions.Default()
	if s.dispatcher != nil {
		cat = s.dispatcher.Catalog()
	}

	type category struct {
		Name    string           `json:"name"`
		Actions []actions.Action `json:"actions"`
	}
	out := make([]category, 0, 6)
	for _, g := range cat.Categories() {
		out = append(out, category{Name: g.Name, Actions: g.Actions})
	}
	return c.JSON(out)
}

// TriggerActionRequest is the body for triggering an action by hand.
type TriggerActionRequest struct {
	Args map[string]any `json:"args"`
}

// handleTriggerAction dispatches an action from the dashboard.
func (s *Server) handleTriggerAction(c *fiber.Ctx) error {
	name := c.Params("name")

	if s.dispatcher == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "action dispatch not configured",
		})
	}

	var req TriggerActionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}

	result := s.dispatcher.Dispatch(c.UserContext(), name, req.Args)
	if result.Success {
		s.AddLog("action", "Manual: "+name)
	} else {
		s.AddLog("error", fmt.Sprintf("Manual: %s failed: %s", name, result.Error))
	}

	status := fiber.StatusOK
	switch {
	case result.Kind == pidog.KindUnknownAction:
		status = fiber.StatusNotFound
	case !result.Success:
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(result)
}

// handleFrame returns the most recently streamed JPEG.
func (s *Server) handleFrame(c *fiber.Ctx) error {
	data := s.latest.Load()
	if data == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no frame yet"})
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	return c.Send(*data)
}

// handleGetCamera returns the camera loop configuration.
func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	if s.streamer == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "camera not configured"})
	}
	return c.JSON(s.streamer.Manager().GetConfig())
}

// handleSetCamera updates width, height, framerate, quality or preset.
func (s *Server) handleSetCamera(c *fiber.Ctx) error {
	if s.streamer == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "camera not configured"})
	}
	var patch camera.Patch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	cfg, err := s.streamer.Manager().Update(patch)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	s.AddLog("info", fmt.Sprintf("Camera: %dx%d @ %dfps", cfg.Width, cfg.Height, cfg.Framerate))
	return c.JSON(cfg)
}

// handleGetLogs returns recent activity.
func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	return c.JSON(s.logs)
}
