package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/surajvsk/ipo-subbrocker/models"
)

type IPOStore interface {
	FetchIPO(ctx context.Context, id uuid.UUID) (*models.IPO, error)
	FetchIPOs(ctx context.Context, filter models.IPOFilter) ([]models.IPO, error)
	CreateIPO(ctx context.Context, ipo *models.IPO) (*models.IPO, error)
	UpdateIPO(ctx context.Context, id uuid.UUID, ipo *models.IPO) (*models.IPO, error)
	DeleteIPO(ctx context.Context, id uuid.UUID) error
}

type IPOHandler struct {
	Service IPOStore
}

func NewIPOHandler(service IPOStore) *IPOHandler {
	return &IPOHandler{Service: service}
}

type ipoRequest struct {
	Name         string             `json:"name" validate:"required"`
	Category     models.IPOCategory `json:"category" validate:"required,oneof=Mainboard SME"`
	Status       models.IPOStatus   `json:"status" validate:"omitempty,oneof=Upcoming Active Closed Listed"`
	PriceBandMin decimal.Decimal    `json:"price_band_min"`
	PriceBandMax decimal.Decimal    `json:"price_band_max"`
	LotSize      int                `json:"lot_size" validate:"required,min=1"`
	RetailMaxLot int                `json:"retail_max_lot" validate:"required,min=1"`
	HNIMaxAmount decimal.Decimal    `json:"hni_max_amount"`
}

func (r ipoRequest) toModel() *models.IPO {
	return &models.IPO{
		Name:         r.Name,
		Category:     r.Category,
		Status:       r.Status,
		PriceBandMin: r.PriceBandMin,
		PriceBandMax: r.PriceBandMax,
		LotSize:      r.LotSize,
		RetailMaxLot: r.RetailMaxLot,
		HNIMaxAmount: r.HNIMaxAmount,
	}
}

func (h *IPOHandler) GetIPOs(c *fiber.Ctx) error {
	filter := models.IPOFilter{
		Category: models.IPOCategory(c.Query("category")),
		Status:   models.IPOStatus(c.Query("status")),
	}
	if filter.Category != "" && !filter.Category.Valid() {
		return failure(c, fiber.StatusBadRequest, "Invalid category")
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return failure(c, fiber.StatusBadRequest, "Invalid status")
	}

	ipos, err := h.Service.FetchIPOs(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    ipos,
		"count":   len(ipos),
	})
}

func (h *IPOHandler) GetIPOByID(c *fiber.Ctx) error {
	id, ok, err := parseUUIDParam(c, "id")
	if !ok {
		return err
	}

	ipo, err := h.Service.FetchIPO(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	if ipo == nil {
		return failure(c, fiber.StatusNotFound, "IPO not found")
	}
	return success(c, fiber.StatusOK, ipo)
}

func (h *IPOHandler) CreateIPO(c *fiber.Ctx) error {
	var req ipoRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	ipo, err := h.Service.CreateIPO(c.UserContext(), req.toModel())
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusCreated, ipo)
}

func (h *IPOHandler) UpdateIPO(c *fiber.Ctx) error {
	id, ok, err := parseUUIDParam(c, "id")
	if !ok {
		return err
	}
	var req ipoRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	ipo, err := h.Service.UpdateIPO(c.UserContext(), id, req.toModel())
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, ipo)
}

func (h *IPOHandler) DeleteIPO(c *fiber.Ctx) error {
	id, ok, err := parseUUIDParam(c, "id")
	if !ok {
		return err
	}

	if err := h.Service.DeleteIPO(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "IPO deleted",
	})
}
