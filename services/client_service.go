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

const clientColumns = `id, trading_code, name, pan, dp_id, upi_handle, mobile, email,
	group_code, user_id, broker_code, bank_name, branch, asba_account, created_at, updated_at`

// ClientService is the Postgres client registry. Every mutating call is
// scoped to a broker code; an empty code means an admin caller.
type ClientService struct {
	sqlStore
}

func NewClientService(db *sql.DB) *ClientService {
	return &ClientService{sqlStore: newSQLStore(db)}
}

var _ bidding.ClientRegistry = (*ClientService)(nil)

func scanClient(row rowScanner) (*models.Client, error) {
	var c models.Client
	err := row.Scan(
		&c.ID, &c.TradingCode, &c.Name, &c.PAN, &c.DPID, &c.UPIHandle, &c.Mobile, &c.Email,
		&c.GroupCode, &c.UserID, &c.BrokerCode, &c.BankName, &c.Branch, &c.ASBAAccount, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FetchClients lists clients ordered by trading code.
func (s *ClientService) FetchClients(ctx context.Context, filter models.ClientFilter) ([]models.Client, error) {
	var conditions []string
	var args []interface{}
	if filter.BrokerCode != "" {
		args = append(args, filter.BrokerCode)
		conditions = append(conditions, fmt.Sprintf("broker_code = $%d", len(args)))
	}
	if filter.TradingCode != "" {
		args = append(args, filter.TradingCode)
		conditions = append(conditions, fmt.Sprintf("trading_code = $%d", len(args)))
	}

	query := "SELECT " + clientColumns + " FROM clients"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY trading_code"

	var clients []models.Client
	err := s.run(ctx, func() error {
		rows, err := s.DB.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		clients = clients[:0]
		for rows.Next() {
			c, err := scanClient(rows)
			if err != nil {
				return err
			}
			clients = append(clients, *c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	return clients, nil
}

// GetClient returns the client if it exists and belongs to brokerCode.
func (s *ClientService) GetClient(ctx context.Context, brokerCode string, id uuid.UUID) (*models.Client, error) {
	var client *models.Client
	err := s.run(ctx, func() error {
		var err error
		client, err = scanClient(s.DB.QueryRowContext(ctx, "SELECT "+clientColumns+" FROM clients WHERE id = $1", id))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) || (err == nil && brokerCode != "" && client.BrokerCode != brokerCode) {
		return nil, shared.NewNotFoundError("ClientService", "GetClient", "client", id.String())
	}
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "QUERY_FAILED", "ClientService", "GetClient", shared.IsRetryableError(err))
	}
	return client, nil
}

func validateClient(operation string, c *models.Client) error {
	var problems []string
	if strings.TrimSpace(c.TradingCode) == "" {
		problems = append(problems, "trading code is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		problems = append(problems, "name is required")
	}
	if strings.TrimSpace(c.PAN) == "" {
		problems = append(problems, "PAN is required")
	}
	if strings.TrimSpace(c.BrokerCode) == "" {
		problems = append(problems, "broker code is required")
	}
	if len(problems) > 0 {
		return shared.NewValidationError("ClientService", operation, strings.Join(problems, "; ")).WithDetails(problems)
	}
	return nil
}

func mapClientWriteError(err error, operation string, c *models.Client) error {
	if constraint, ok := violatedConstraint(err, pgUniqueViolation); ok && constraint == "clients_broker_trading_code_key" {
		return shared.NewConflictError("ClientService", operation,
			fmt.Sprintf("trading code %s already exists for broker %s", c.TradingCode, c.BrokerCode), err)
	}
	return shared.WrapError(err, shared.ErrorCategoryDatabase, "WRITE_FAILED", "ClientService", operation, shared.IsRetryableError(err))
}

// CreateClient registers a client under client.BrokerCode.
func (s *ClientService) CreateClient(ctx context.Context, client *models.Client) (*models.Client, error) {
	if err := validateClient("CreateClient", client); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO clients (trading_code, name, pan, dp_id, upi_handle, mobile, email,
			group_code, user_id, broker_code, bank_name, branch, asba_account)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + clientColumns

	var created *models.Client
	err := s.run(ctx, func() error {
		var err error
		created, err = scanClient(s.DB.QueryRowContext(ctx, query,
			client.TradingCode, client.Name, strings.ToUpper(client.PAN), client.DPID, client.UPIHandle, client.Mobile, client.Email,
			client.GroupCode, client.UserID, client.BrokerCode, client.BankName, client.Branch, client.ASBAAccount,
		))
		return err
	})
	if err != nil {
		return nil, mapClientWriteError(err, "CreateClient", client)
	}

	logrus.WithFields(logrus.Fields{
		"client_id":    created.ID,
		"trading_code": created.TradingCode,
		"broker_code":  created.BrokerCode,
	}).Info("Client created")
	return created, nil
}

// UpdateClient replaces a client's details. The owning broker never changes.
func (s *ClientService) UpdateClient(ctx context.Context, brokerCode string, id uuid.UUID, client *models.Client) (*models.Client, error) {
	existing, err := s.GetClient(ctx, brokerCode, id)
	if err != nil {
		return nil, err
	}
	client.BrokerCode = existing.BrokerCode
	if err := validateClient("UpdateClient", client); err != nil {
		return nil, err
	}
	if client.TradingCode != existing.TradingCode {
		hasBids, err := s.hasBids(ctx, existing)
		if err != nil {
			return nil, err
		}
		if err := checkTradingCodeChange(existing, client, hasBids); err != nil {
			return nil, err
		}
	}

	query := `
		UPDATE clients SET trading_code = $1, name = $2, pan = $3, dp_id = $4, upi_handle = $5,
			mobile = $6, email = $7, group_code = $8, user_id = $9, bank_name = $10, branch = $11,
			asba_account = $12, updated_at = NOW()
		WHERE id = $13
		RETURNING ` + clientColumns

	var updated *models.Client
	err = s.run(ctx, func() error {
		var err error
		updated, err = scanClient(s.DB.QueryRowContext(ctx, query,
			client.TradingCode, client.Name, strings.ToUpper(client.PAN), client.DPID, client.UPIHandle,
			client.Mobile, client.Email, client.GroupCode, client.UserID, client.BankName, client.Branch,
			client.ASBAAccount, id,
		))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.NewNotFoundError("ClientService", "UpdateClient", "client", id.String())
	}
	if err != nil {
		return nil, mapClientWriteError(err, "UpdateClient", client)
	}
	return updated, nil
}

func (s *ClientService) hasBids(ctx context.Context, client *models.Client) (bool, error) {
	var exists bool
	err := s.run(ctx, func() error {
		return s.DB.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM bids WHERE client_code = $1 AND broker_code = $2)",
			client.TradingCode, client.BrokerCode,
		).Scan(&exists)
	})
	if err != nil {
		return false, shared.WrapError(err, shared.ErrorCategoryDatabase, "QUERY_FAILED", "ClientService", "UpdateClient", shared.IsRetryableError(err))
	}
	return exists, nil
}

// checkTradingCodeChange refuses to rename a client that already has bids.
// Eligibility keys on the trading code, so a rename would reopen those IPOs.
func checkTradingCodeChange(existing, updated *models.Client, hasBids bool) error {
	if !hasBids || existing.TradingCode == updated.TradingCode {
		return nil
	}
	return shared.NewConflictError("ClientService", "UpdateClient",
		fmt.Sprintf("trading code %s has bids and cannot be changed", existing.TradingCode), nil)
}

// DeleteClient removes a client. Existing bids keep their copied client fields.
func (s *ClientService) DeleteClient(ctx context.Context, brokerCode string, id uuid.UUID) error {
	if _, err := s.GetClient(ctx, brokerCode, id); err != nil {
		return err
	}

	var affected int64
	err := s.run(ctx, func() error {
		result, err := s.DB.ExecContext(ctx, "DELETE FROM clients WHERE id = $1", id)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return shared.WrapError(err, shared.ErrorCategoryDatabase, "DELETE_FAILED", "ClientService", "DeleteClient", shared.IsRetryableError(err))
	}
	if affected == 0 {
		return shared.NewNotFoundError("ClientService", "DeleteClient", "client", id.String())
	}

	logrus.WithFields(logrus.Fields{
		"client_id":   id,
		"broker_code": brokerCode,
	}).Info("Client deleted")
	return nil
}
