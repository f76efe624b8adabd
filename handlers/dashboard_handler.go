package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/surajvsk/ipo-subbrocker/models"
)

type DashboardSource interface {
	Summary(ctx context.Context, brokerCode string) (*models.DashboardSummary, error)
}

type DashboardHandler struct {
	Service DashboardSource
}

func NewDashboardHandler(service DashboardSource) *DashboardHandler {
	return &DashboardHandler{Service: service}
}

func (h *DashboardHandler) GetSummary(c *fiber.Ctx) error {
	summary, err := h.Service.Summary(c.UserContext(), currentPrincipal(c).ScopeBrokerCode())
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, summary)
}
