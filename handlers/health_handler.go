package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type HealthHandler struct {
	Check func() error
}

func NewHealthHandler(check func() error) *HealthHandler {
	return &HealthHandler{Check: check}
}

// GetHealth reports 503 when the database is unreachable.
func (h *HealthHandler) GetHealth(c *fiber.Ctx) error {
	if err := h.Check(); err != nil {
		logrus.Warnf("Health check failed: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":    "unavailable",
			"error":     err.Error(),
			"timestamp": time.Now().Unix(),
		})
	}
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}
