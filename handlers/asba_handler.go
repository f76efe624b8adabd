package handlers

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/surajvsk/ipo-subbrocker/models"
	"github.com/surajvsk/ipo-subbrocker/services"
)

type ASBARenderer interface {
	BuildForm(ctx context.Context, brokerCode string, req services.ASBARequest) (*models.ASBAForm, error)
	RenderHTML(form *models.ASBAForm) ([]byte, error)
	RenderPDF(ctx context.Context, form *models.ASBAForm) ([]byte, error)
}

type ASBAHandler struct {
	Service ASBARenderer
}

func NewASBAHandler(service ASBARenderer) *ASBAHandler {
	return &ASBAHandler{Service: service}
}

type asbaRequest struct {
	IPOID     uuid.UUID        `json:"ipo_id" validate:"required"`
	ClientID  uuid.UUID        `json:"client_id" validate:"required"`
	Quantity  int              `json:"quantity"`
	Price     *decimal.Decimal `json:"price"`
	UseCutoff bool             `json:"use_cutoff"`
}

// CreateForm renders an ASBA form as HTML (default) or PDF (?format=pdf).
func (h *ASBAHandler) CreateForm(c *fiber.Ctx) error {
	format := c.Query("format", "html")
	if format != "html" && format != "pdf" {
		return failure(c, fiber.StatusBadRequest, "format must be html or pdf")
	}

	var req asbaRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	form, err := h.Service.BuildForm(c.UserContext(), currentPrincipal(c).ScopeBrokerCode(), services.ASBARequest{
		IPOID:     req.IPOID,
		ClientID:  req.ClientID,
		Quantity:  req.Quantity,
		Price:     req.Price,
		UseCutoff: req.UseCutoff,
	})
	if err != nil {
		return respondError(c, err)
	}

	if format == "pdf" {
		pdf, err := h.Service.RenderPDF(c.UserContext(), form)
		if err != nil {
			return respondError(c, err)
		}
		c.Set(fiber.HeaderContentType, "application/pdf")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="asba-%s.pdf"`, form.ClientCode))
		return c.Send(pdf)
	}

	html, err := h.Service.RenderHTML(form)
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(html)
}
