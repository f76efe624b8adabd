package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/surajvsk/ipo-subbrocker/models"
	"github.com/surajvsk/ipo-subbrocker/services"
)

type BrokerStore interface {
	ListBrokers(ctx context.Context) ([]models.Broker, error)
	CreateBroker(ctx context.Context, input services.NewBroker) (*models.Broker, error)
	UpdateBroker(ctx context.Context, id uuid.UUID, update models.BrokerUpdate) (*models.Broker, error)
	DeleteBroker(ctx context.Context, id uuid.UUID) error
}

// BrokerHandler is the admin's sub-broker management.
type BrokerHandler struct {
	Service BrokerStore
}

func NewBrokerHandler(service BrokerStore) *BrokerHandler {
	return &BrokerHandler{Service: service}
}

type brokerRequest struct {
	BrokerCode     string            `json:"broker_code" validate:"required"`
	Username       string            `json:"username" validate:"required"`
	Password       string            `json:"password" validate:"required,min=6"`
	Mobile         string            `json:"mobile" validate:"required"`
	Email          string            `json:"email" validate:"required,email"`
	PAN            string            `json:"pan" validate:"required,len=10,alphanum"`
	Role           models.BrokerRole `json:"role" validate:"omitempty,oneof=admin subbroker"`
	BidPermission  bool              `json:"bid_permission"`
	LoginAccess    bool              `json:"login_access"`
	BillPermission bool              `json:"bill_permission"`
}

type brokerUpdateRequest struct {
	Mobile         *string `json:"mobile"`
	Email          *string `json:"email" validate:"omitempty,email"`
	PAN            *string `json:"pan" validate:"omitempty,len=10,alphanum"`
	Password       *string `json:"password" validate:"omitempty,min=6"`
	BidPermission  *bool   `json:"bid_permission"`
	LoginAccess    *bool   `json:"login_access"`
	BillPermission *bool   `json:"bill_permission"`
}

func (h *BrokerHandler) GetBrokers(c *fiber.Ctx) error {
	brokers, err := h.Service.ListBrokers(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    brokers,
		"count":   len(brokers),
	})
}

func (h *BrokerHandler) CreateBroker(c *fiber.Ctx) error {
	var req brokerRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	broker, err := h.Service.CreateBroker(c.UserContext(), services.NewBroker{
		BrokerCode:     req.BrokerCode,
		Username:       req.Username,
		Password:       req.Password,
		Mobile:         req.Mobile,
		Email:          req.Email,
		PAN:            req.PAN,
		Role:           req.Role,
		BidPermission:  req.BidPermission,
		LoginAccess:    req.LoginAccess,
		BillPermission: req.BillPermission,
	})
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusCreated, broker)
}

func (h *BrokerHandler) UpdateBroker(c *fiber.Ctx) error {
	id, ok, err := parseUUIDParam(c, "id")
	if !ok {
		return err
	}
	var req brokerUpdateRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	broker, err := h.Service.UpdateBroker(c.UserContext(), id, models.BrokerUpdate(req))
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, broker)
}

func (h *BrokerHandler) DeleteBroker(c *fiber.Ctx) error {
	id, ok, err := parseUUIDParam(c, "id")
	if !ok {
		return err
	}

	if err := h.Service.DeleteBroker(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Broker deleted",
	})
}
