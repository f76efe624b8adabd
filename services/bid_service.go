package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/surajvsk/ipo-subbrocker/bidding"
	"github.com/surajvsk/ipo-subbrocker/models"
	"github.com/surajvsk/ipo-subbrocker/shared"
)

const bidColumns = `id, ipo_id, ipo_name, client_code, client_name, pan, upi_handle,
	quantity, price, amount, use_cutoff, category, application_number, broker_code,
	exchange_code, exchange_status, sponsor_bank_status, dp_status, exchange_updated_at,
	created_at, updated_at`

// BidService is the Postgres bid store used by the bidding workflow.
type BidService struct {
	sqlStore
}

func NewBidService(db *sql.DB) *BidService {
	return &BidService{sqlStore: newSQLStore(db)}
}

var _ bidding.BidStore = (*BidService)(nil)

func scanBid(row rowScanner) (*models.Bid, error) {
	var bid models.Bid
	err := row.Scan(
		&bid.ID, &bid.IPOID, &bid.IPOName, &bid.ClientCode, &bid.ClientName, &bid.PAN, &bid.UPIHandle,
		&bid.Quantity, &bid.Price, &bid.Amount, &bid.UseCutoff, &bid.Category, &bid.ApplicationNumber, &bid.BrokerCode,
		&bid.ExchangeCode, &bid.ExchangeStatus, &bid.SponsorBankStatus, &bid.DPStatus, &bid.ExchangeUpdatedAt,
		&bid.CreatedAt, &bid.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

// FetchBids lists bids, newest first. Empty filter fields match every bid.
func (s *BidService) FetchBids(ctx context.Context, filter models.BidFilter) ([]models.Bid, error) {
	var conditions []string
	var args []interface{}
	if filter.IPOID != nil {
		args = append(args, *filter.IPOID)
		conditions = append(conditions, fmt.Sprintf("ipo_id = $%d", len(args)))
	}
	if filter.BrokerCode != "" {
		args = append(args, filter.BrokerCode)
		conditions = append(conditions, fmt.Sprintf("broker_code = $%d", len(args)))
	}

	query := "SELECT " + bidColumns + " FROM bids"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	var bids []models.Bid
	err := s.run(ctx, func() error {
		rows, err := s.DB.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		bids = bids[:0]
		for rows.Next() {
			bid, err := scanBid(rows)
			if err != nil {
				return err
			}
			bids = append(bids, *bid)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	return bids, nil
}

func (s *BidService) FetchBid(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	var bid *models.Bid
	err := s.run(ctx, func() error {
		var err error
		bid, err = scanBid(s.DB.QueryRowContext(ctx, "SELECT "+bidColumns+" FROM bids WHERE id = $1", id))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}
	return bid, nil
}

// CreateBid inserts one bid with pending exchange statuses. The insert is
// attempted once; a transient failure is returned to the submitter as a write
// error because the row may already be committed.
func (s *BidService) CreateBid(ctx context.Context, input models.BidInput) (*models.Bid, error) {
	query := `
		INSERT INTO bids (
			ipo_id, ipo_name, client_code, client_name, pan, upi_handle,
			quantity, price, amount, use_cutoff, category, application_number, broker_code,
			exchange_code, exchange_status, sponsor_bank_status, dp_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING ` + bidColumns

	var bid *models.Bid
	err := s.runOnce(func() error {
		var err error
		bid, err = scanBid(s.DB.QueryRowContext(ctx, query,
			input.IPOID, input.IPOName, input.ClientCode, input.ClientName, input.PAN, input.UPIHandle,
			input.Quantity, input.Price, input.Amount, input.UseCutoff, input.Category, input.ApplicationNumber, input.BrokerCode,
			models.DefaultExchangeCode, models.ExchangeStatusPending, models.SponsorBankStatusPending, models.DefaultDPStatus,
		))
		return err
	})
	if err != nil {
		return nil, mapBidWriteError(err, input)
	}

	logrus.WithFields(logrus.Fields{
		"bid_id":             bid.ID,
		"ipo_id":             bid.IPOID,
		"client_code":        bid.ClientCode,
		"application_number": bid.ApplicationNumber,
	}).Debug("Bid created")

	return bid, nil
}

// mapBidWriteError translates constraint violations into the sentinel errors
// the submitter branches on.
func mapBidWriteError(err error, input models.BidInput) error {
	if constraint, ok := violatedConstraint(err, pgUniqueViolation); ok {
		switch constraint {
		case "bids_ipo_client_key":
			return fmt.Errorf("client %s: %w", input.ClientCode, bidding.ErrDuplicateBid)
		case "bids_application_number_key":
			return fmt.Errorf("application number %s: %w", input.ApplicationNumber, bidding.ErrApplicationNumberTaken)
		}
	}
	if _, ok := violatedConstraint(err, pgForeignKeyViolation); ok {
		return &bidding.NotFoundError{Entity: "ipo", ID: input.IPOID.String()}
	}
	return fmt.Errorf("failed to insert bid: %w", err)
}

func (s *BidService) DeleteBid(ctx context.Context, id uuid.UUID) error {
	var affected int64
	err := s.run(ctx, func() error {
		result, err := s.DB.ExecContext(ctx, "DELETE FROM bids WHERE id = $1", id)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete bid: %w", err)
	}
	if affected == 0 {
		return &bidding.NotFoundError{Entity: "bid", ID: id.String()}
	}
	return nil
}

// UpdateBidStatus applies exchange pipeline changes. Setting the exchange
// status stamps exchange_updated_at.
func (s *BidService) UpdateBidStatus(ctx context.Context, id uuid.UUID, update models.BidStatusUpdate) (*models.Bid, error) {
	var sets []string
	var args []interface{}
	if update.ExchangeStatus != nil {
		if !update.ExchangeStatus.Valid() {
			return nil, shared.NewValidationError("BidService", "UpdateBidStatus",
				fmt.Sprintf("unknown exchange status %q", *update.ExchangeStatus))
		}
		args = append(args, *update.ExchangeStatus)
		sets = append(sets, fmt.Sprintf("exchange_status = $%d", len(args)), "exchange_updated_at = NOW()")
	}
	if update.SponsorBankStatus != nil {
		if !update.SponsorBankStatus.Valid() {
			return nil, shared.NewValidationError("BidService", "UpdateBidStatus",
				fmt.Sprintf("unknown sponsor bank status %q", *update.SponsorBankStatus))
		}
		args = append(args, *update.SponsorBankStatus)
		sets = append(sets, fmt.Sprintf("sponsor_bank_status = $%d", len(args)))
	}
	if update.DPStatus != nil {
		args = append(args, *update.DPStatus)
		sets = append(sets, fmt.Sprintf("dp_status = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil, shared.NewValidationError("BidService", "UpdateBidStatus", "no status fields to update")
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE bids SET %s, updated_at = NOW() WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), bidColumns)

	var bid *models.Bid
	err := s.run(ctx, func() error {
		var err error
		bid, err = scanBid(s.DB.QueryRowContext(ctx, query, args...))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.NewNotFoundError("BidService", "UpdateBidStatus", "bid", id.String())
	}
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "UPDATE_FAILED", "BidService", "UpdateBidStatus", shared.IsRetryableError(err))
	}
	return bid, nil
}

// PendingByIPO counts bids still pending at the exchange, per IPO.
func (s *BidService) PendingByIPO(ctx context.Context) ([]models.PendingBidCount, error) {
	query := `
		SELECT ipo_id::text, ipo_name, COUNT(*)
		FROM bids
		WHERE exchange_status = $1
		GROUP BY ipo_id, ipo_name
		ORDER BY COUNT(*) DESC
	`
	var counts []models.PendingBidCount
	err := s.run(ctx, func() error {
		rows, err := s.DB.QueryContext(ctx, query, models.ExchangeStatusPending)
		if err != nil {
			return err
		}
		defer rows.Close()

		counts = counts[:0]
		for rows.Next() {
			var c models.PendingBidCount
			if err := rows.Scan(&c.IPOID, &c.IPOName, &c.Pending); err != nil {
				return err
			}
			counts = append(counts, c)
		}
		return rows.Err()
	})
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to count pending bids: %w", err)
	}
	return counts, nil
}
