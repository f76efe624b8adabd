package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/surajvsk/ipo-subbrocker/models"
)

type ClientStore interface {
	FetchClients(ctx context.Context, filter models.ClientFilter) ([]models.Client, error)
	CreateClient(ctx context.Context, client *models.Client) (*models.Client, error)
	UpdateClient(ctx context.Context, brokerCode string, id uuid.UUID, client *models.Client) (*models.Client, error)
	DeleteClient(ctx context.Context, brokerCode string, id uuid.UUID) error
}

// ClientHandler serves the client registry. Sub-brokers only see their own
// clients; admins see everyone's and must name the owner on create.
type ClientHandler struct {
	Service ClientStore
}

func NewClientHandler(service ClientStore) *ClientHandler {
	return &ClientHandler{Service: service}
}

type clientRequest struct {
	TradingCode string  `json:"trading_code" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	PAN         string  `json:"pan" validate:"required,len=10,alphanum"`
	DPID        string  `json:"dp_id"`
	UPIHandle   string  `json:"upi_handle"`
	Mobile      string  `json:"mobile"`
	Email       string  `json:"email" validate:"omitempty,email"`
	GroupCode   *string `json:"group_code"`
	UserID      *string `json:"user_id"`
	BrokerCode  string  `json:"broker_code"`
	BankName    *string `json:"bank_name"`
	Branch      *string `json:"branch"`
	ASBAAccount *string `json:"asba_account"`
}

func (r clientRequest) toModel(brokerCode string) *models.Client {
	return &models.Client{
		TradingCode: r.TradingCode,
		Name:        r.Name,
		PAN:         r.PAN,
		DPID:        r.DPID,
		UPIHandle:   r.UPIHandle,
		Mobile:      r.Mobile,
		Email:       r.Email,
		GroupCode:   r.GroupCode,
		UserID:      r.UserID,
		BrokerCode:  brokerCode,
		BankName:    r.BankName,
		Branch:      r.Branch,
		ASBAAccount: r.ASBAAccount,
	}
}

func (h *ClientHandler) GetClients(c *fiber.Ctx) error {
	principal := currentPrincipal(c)
	filter := models.ClientFilter{
		BrokerCode:  principal.ScopeBrokerCode(),
		TradingCode: c.Query("tradingCode"),
	}
	if principal.IsAdmin() {
		filter.BrokerCode = c.Query("brokerCode")
	}

	clients, err := h.Service.FetchClients(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    clients,
		"count":   len(clients),
	})
}

func (h *ClientHandler) CreateClient(c *fiber.Ctx) error {
	var req clientRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	principal := currentPrincipal(c)
	brokerCode := principal.BrokerCode
	if principal.IsAdmin() {
		if req.BrokerCode == "" {
			return validationFailure(c, "Request validation failed", []fieldError{{
				Code: "required", Field: "broker_code", Message: "broker_code is required",
			}})
		}
		brokerCode = req.BrokerCode
	}

	client, err := h.Service.CreateClient(c.UserContext(), req.toModel(brokerCode))
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusCreated, client)
}

func (h *ClientHandler) UpdateClient(c *fiber.Ctx) error {
	id, ok, err := parseUUIDParam(c, "id")
	if !ok {
		return err
	}
	var req clientRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	scope := currentPrincipal(c).ScopeBrokerCode()
	client, err := h.Service.UpdateClient(c.UserContext(), scope, id, req.toModel(scope))
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, client)
}

func (h *ClientHandler) DeleteClient(c *fiber.Ctx) error {
	id, ok, err := parseUUIDParam(c, "id")
	if !ok {
		return err
	}

	if err := h.Service.DeleteClient(c.UserContext(), currentPrincipal(c).ScopeBrokerCode(), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Client deleted",
	})
}
