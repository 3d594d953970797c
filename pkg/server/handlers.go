package server

import (
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-pidog/pkg/actions"
	"github.com/teslashibe/go-pidog/pkg/pidog"
)

// handleHealth reports the backend variant and camera readiness. It never
// waits for a running action.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	camera := false
	if r, ok := s.backend.(pidog.CameraReporter); ok {
		camera = r.CameraActive()
	}
	return c.JSON(pidog.Health{
		Status:            "ok",
		HardwareAvailable: s.backend.Mode() == pidog.ModeHardware,
		CameraActive:      camera,
		Mode:              s.backend.Mode(),
	})
}

// handleAction executes one action. The body {speed?, steps?} is optional.
func (s *Server) handleAction(c *fiber.Ctx) error {
	name := c.Params("name")
	logger := s.log(c)

	args := map[string]any{}
	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"action":  name,
				"error":   "invalid JSON body",
			})
		}
	}

	req := actions.ParseArgs(name, args)
	params, err := s.catalog.Normalize(req)
	if err != nil {
		if s.validate {
			logger.Warn("rejected unknown action", "action", name)
			return c.Status(fiber.StatusNotFound).JSON(pidog.Failed(name, pidog.ErrUnknownAction))
		}
		// Unvalidated names go to the backend as-is, with generic bounds.
		params = s.catalog.Clamp(name, paramsOf(req))
	}

	s.mu.Lock()
	result := s.backend.Execute(c.UserContext(), name, params)
	s.mu.Unlock()

	if !result.Success {
		logger.Error("action failed", "action", name, "error", result.Error, "kind", result.Kind)
		return c.Status(fiber.StatusInternalServerError).JSON(result)
	}
	logger.Info("action executed", "action", name, "speed", params.Speed, "steps", params.Steps)
	return c.JSON(result)
}

func paramsOf(req actions.Request) actions.Params {
	p := actions.Params{Speed: actions.DefaultSpeed}
	if req.Speed != nil {
		p.Speed = *req.Speed
	}
	return p
}

// handleFrame returns the current camera frame as JPEG.
func (s *Server) handleFrame(c *fiber.Ctx) error {
	s.mu.Lock()
	frame, err := s.backend.CaptureFrame(c.UserContext())
	s.mu.Unlock()

	if err != nil {
		s.log(c).Error("camera error", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":      "Camera unavailable",
			"error_kind": pidog.KindOf(err),
		})
	}

	data, err := pidog.EncodeJPEG(frame, s.quality)
	if err != nil {
		s.log(c).Error("frame encode error", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":      "Camera unavailable",
			"error_kind": pidog.KindCaptureFault,
		})
	}

	c.Set(fiber.HeaderContentType, "image/jpeg")
	return c.Send(data)
}

// handleShutdown parks the robot. It always reports success.
func (s *Server) handleShutdown(c *fiber.Ctx) error {
	s.mu.Lock()
	err := s.backend.Shutdown(c.UserContext())
	s.mu.Unlock()

	if err != nil {
		s.log(c).Error("shutdown error", "error", err)
	} else {
		s.log(c).Info("hardware shutdown")
	}
	return c.JSON(fiber.Map{"success": true})
}
