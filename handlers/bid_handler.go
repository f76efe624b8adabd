package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/surajvsk/ipo-subbrocker/bidding"
	"github.com/surajvsk/ipo-subbrocker/models"
)

type BidLister interface {
	FetchBids(ctx context.Context, filter models.BidFilter) ([]models.Bid, error)
	UpdateBidStatus(ctx context.Context, id uuid.UUID, update models.BidStatusUpdate) (*models.Bid, error)
}

// CacheInvalidator is told when bids change so cached summaries are dropped.
type CacheInvalidator interface {
	Invalidate()
}

type BidHandler struct {
	Workflow  *bidding.Workflow
	Bids      BidLister
	Dashboard CacheInvalidator
}

func NewBidHandler(workflow *bidding.Workflow, bids BidLister, dashboard CacheInvalidator) *BidHandler {
	return &BidHandler{Workflow: workflow, Bids: bids, Dashboard: dashboard}
}

type bidTermsRequest struct {
	IPOID     uuid.UUID          `json:"ipo_id" validate:"required"`
	Category  models.BidCategory `json:"category"`
	Quantity  int                `json:"quantity"`
	Price     *decimal.Decimal   `json:"price"`
	UseCutoff bool               `json:"use_cutoff"`
}

func (r bidTermsRequest) terms() bidding.BidTerms {
	return bidding.BidTerms{
		Category:  r.Category,
		Quantity:  r.Quantity,
		Price:     r.Price,
		UseCutoff: r.UseCutoff,
	}
}

// placeBidsRequest carries BrokerCode only for admins bidding on a
// sub-broker's behalf.
type placeBidsRequest struct {
	bidTermsRequest
	ClientIDs  []uuid.UUID `json:"client_ids"`
	BrokerCode string      `json:"broker_code"`
}

func (h *BidHandler) GetBids(c *fiber.Ctx) error {
	filter := models.BidFilter{BrokerCode: currentPrincipal(c).ScopeBrokerCode()}
	if raw := c.Query("ipoId"); raw != "" {
		ipoID, err := uuid.Parse(raw)
		if err != nil {
			return failure(c, fiber.StatusBadRequest, "Invalid ipoId")
		}
		filter.IPOID = &ipoID
	}

	bids, err := h.Bids.FetchBids(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    bids,
		"count":   len(bids),
	})
}

// EligibleClients lists the caller's clients without a bid on the IPO.
func (h *BidHandler) EligibleClients(c *fiber.Ctx) error {
	ipoID, ok, err := parseUUIDParam(c, "id")
	if !ok {
		return err
	}

	principal := currentPrincipal(c)
	brokerCode := principal.ScopeBrokerCode()
	if principal.IsAdmin() {
		brokerCode = c.Query("brokerCode")
	}

	clients, err := h.Workflow.EligibleClients(c.UserContext(), brokerCode, ipoID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    clients,
		"count":   len(clients),
	})
}

// ValidateBid checks terms without writing anything.
func (h *BidHandler) ValidateBid(c *fiber.Ctx) error {
	var req bidTermsRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	accepted, err := h.Workflow.Validate(c.UserContext(), req.IPOID, req.terms())
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, accepted)
}

// PlaceBids answers 201 when every client got a bid, 207 on partial success
// and 422 when none did.
func (h *BidHandler) PlaceBids(c *fiber.Ctx) error {
	var req placeBidsRequest
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

	result, err := h.Workflow.PlaceBids(c.UserContext(), bidding.PlaceBidsRequest{
		BrokerCode: brokerCode,
		IPOID:      req.IPOID,
		Terms:      req.terms(),
		ClientIDs:  req.ClientIDs,
	})
	if err != nil {
		return respondError(c, err)
	}

	if result.Created > 0 {
		h.Dashboard.Invalidate()
	}

	status := fiber.StatusCreated
	switch result.State() {
	case bidding.BatchPartial:
		status = fiber.StatusMultiStatus
	case bidding.BatchNoneSubmitted:
		status = fiber.StatusUnprocessableEntity
	}

	logrus.WithFields(logrus.Fields{
		"broker_code": brokerCode,
		"ipo_id":      req.IPOID,
		"created":     result.Created,
		"failed":      result.Failed,
		"state":       result.State(),
	}).Info("Bid batch placed")

	return c.Status(status).JSON(fiber.Map{
		"success": result.Created > 0,
		"data":    result,
		"state":   result.State(),
	})
}

// CancelBid deletes a bid so the client can bid again.
func (h *BidHandler) CancelBid(c *fiber.Ctx) error {
	id, ok, err := parseUUIDParam(c, "id")
	if !ok {
		return err
	}

	if err := h.Workflow.CancelBid(c.UserContext(), currentPrincipal(c).ScopeBrokerCode(), id); err != nil {
		return respondError(c, err)
	}
	h.Dashboard.Invalidate()
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Bid cancelled",
	})
}

// UpdateBidStatus records exchange or sponsor-bank progress (admin).
func (h *BidHandler) UpdateBidStatus(c *fiber.Ctx) error {
	id, ok, err := parseUUIDParam(c, "id")
	if !ok {
		return err
	}
	var req models.BidStatusUpdate
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	bid, err := h.Bids.UpdateBidStatus(c.UserContext(), id, req)
	if err != nil {
		return respondError(c, err)
	}
	h.Dashboard.Invalidate()
	return success(c, fiber.StatusOK, bid)
}
