package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/surajvsk/ipo-subbrocker/models"
)

type UPIHandlerStore interface {
	ListHandlers(ctx context.Context) ([]models.UPIHandler, error)
	CreateHandler(ctx context.Context, name string) (*models.UPIHandler, error)
	DeleteHandler(ctx context.Context, id uuid.UUID) error
}

// UPIHandler serves the list of UPI handles clients may pay from.
type UPIHandler struct {
	Service UPIHandlerStore
}

func NewUPIHandler(service UPIHandlerStore) *UPIHandler {
	return &UPIHandler{Service: service}
}

type upiHandlerRequest struct {
	Name string `json:"name" validate:"required"`
}

func (h *UPIHandler) GetHandlers(c *fiber.Ctx) error {
	handlers, err := h.Service.ListHandlers(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, handlers)
}

func (h *UPIHandler) CreateHandler(c *fiber.Ctx) error {
	var req upiHandlerRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	handler, err := h.Service.CreateHandler(c.UserContext(), req.Name)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusCreated, handler)
}

func (h *UPIHandler) DeleteHandler(c *fiber.Ctx) error {
	id, ok, err := parseUUIDParam(c, "id")
	if !ok {
		return err
	}

	if err := h.Service.DeleteHandler(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "UPI handler deleted",
	})
}
