package bidding

import (
	"context"

	"github.com/google/uuid"
	"github.com/surajvsk/ipo-subbrocker/models"
)

// IPOCatalog reads IPOs. FetchIPO returns nil, nil when the IPO does not exist.
type IPOCatalog interface {
	FetchIPO(ctx context.Context, id uuid.UUID) (*models.IPO, error)
	FetchIPOs(ctx context.Context, filter models.IPOFilter) ([]models.IPO, error)
}

// ClientRegistry reads a broker's clients.
type ClientRegistry interface {
	FetchClients(ctx context.Context, filter models.ClientFilter) ([]models.Client, error)
}

// BidStore persists bids. FetchBid returns nil, nil for an unknown id.
// CreateBid returns ErrDuplicateBid or ErrApplicationNumberTaken (possibly
// wrapped) on uniqueness violations, and DeleteBid returns a *NotFoundError
// when no bid has the id.
type BidStore interface {
	FetchBids(ctx context.Context, filter models.BidFilter) ([]models.Bid, error)
	FetchBid(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	CreateBid(ctx context.Context, input models.BidInput) (*models.Bid, error)
	DeleteBid(ctx context.Context, id uuid.UUID) error
}
