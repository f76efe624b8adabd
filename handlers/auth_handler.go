package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/surajvsk/ipo-subbrocker/services"
)

type Authenticator interface {
	Login(ctx context.Context, username, password string) (*services.TokenResponse, error)
}

type AuthHandler struct {
	Service Authenticator
}

func NewAuthHandler(service Authenticator) *AuthHandler {
	return &AuthHandler{Service: service}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	resp, err := h.Service.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, resp)
}
