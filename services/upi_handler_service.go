package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/surajvsk/ipo-subbrocker/models"
	"github.com/surajvsk/ipo-subbrocker/shared"
)

// UPIHandlerService keeps the list of UPI suffixes offered when entering clients.
type UPIHandlerService struct {
	sqlStore
}

func NewUPIHandlerService(db *sql.DB) *UPIHandlerService {
	return &UPIHandlerService{sqlStore: newSQLStore(db)}
}

func (s *UPIHandlerService) ListHandlers(ctx context.Context) ([]models.UPIHandler, error) {
	var handlers []models.UPIHandler
	err := s.run(ctx, func() error {
		rows, err := s.DB.QueryContext(ctx, "SELECT id, name, created_at FROM upi_handlers ORDER BY name")
		if err != nil {
			return err
		}
		defer rows.Close()

		handlers = handlers[:0]
		for rows.Next() {
			var h models.UPIHandler
			if err := rows.Scan(&h.ID, &h.Name, &h.CreatedAt); err != nil {
				return err
			}
			handlers = append(handlers, h)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query UPI handlers: %w", err)
	}
	return handlers, nil
}

func (s *UPIHandlerService) CreateHandler(ctx context.Context, name string) (*models.UPIHandler, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("UPIHandlerService", "CreateHandler", "name is required")
	}

	var h models.UPIHandler
	err := s.run(ctx, func() error {
		return s.DB.QueryRowContext(ctx,
			"INSERT INTO upi_handlers (name) VALUES ($1) RETURNING id, name, created_at", name,
		).Scan(&h.ID, &h.Name, &h.CreatedAt)
	})
	if constraint, ok := violatedConstraint(err, pgUniqueViolation); ok && constraint == "upi_handlers_name_key" {
		return nil, shared.NewConflictError("UPIHandlerService", "CreateHandler",
			fmt.Sprintf("UPI handler %s already exists", name), err)
	}
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "INSERT_FAILED", "UPIHandlerService", "CreateHandler", shared.IsRetryableError(err))
	}
	return &h, nil
}

func (s *UPIHandlerService) DeleteHandler(ctx context.Context, id uuid.UUID) error {
	var affected int64
	err := s.run(ctx, func() error {
		result, err := s.DB.ExecContext(ctx, "DELETE FROM upi_handlers WHERE id = $1", id)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return shared.WrapError(err, shared.ErrorCategoryDatabase, "DELETE_FAILED", "UPIHandlerService", "DeleteHandler", shared.IsRetryableError(err))
	}
	if affected == 0 {
		return shared.NewNotFoundError("UPIHandlerService", "DeleteHandler", "upi handler", id.String())
	}
	return nil
}
