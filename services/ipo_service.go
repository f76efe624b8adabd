package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/surajvsk/ipo-subbrocker/bidding"
	"github.com/surajvsk/ipo-subbrocker/models"
	"github.com/surajvsk/ipo-subbrocker/shared"
)

// IPOAuditLogger provides audit logging for catalog changes
type IPOAuditLogger struct {
	serviceName string
}

// NewIPOAuditLogger creates a new audit logger
func NewIPOAuditLogger() *IPOAuditLogger {
	return &IPOAuditLogger{
		serviceName: "ipo-service",
	}
}

// LogIPOCreation logs IPO creation
func (a *IPOAuditLogger) LogIPOCreation(ipo *models.IPO, err error) {
	entry := shared.AuditEntry{
		Timestamp:   time.Now(),
		ServiceName: a.serviceName,
		Operation:   "CREATE",
		EntityType:  "IPO",
		EntityID:    ipo.ID.String(),
		Success:     err == nil,
		ErrorMsg:    shared.ErrorMessage(err),
		Metadata: map[string]interface{}{
			"name":     ipo.Name,
			"category": ipo.Category,
			"status":   ipo.Status,
		},
	}

	shared.LogAuditEntry(entry)
}

// LogIPOUpdate logs IPO updates with before/after comparison
func (a *IPOAuditLogger) LogIPOUpdate(before, after *models.IPO, err error) {
	changes := a.calculateIPOChanges(before, after)

	entry := shared.AuditEntry{
		Timestamp:   time.Now(),
		ServiceName: a.serviceName,
		Operation:   "UPDATE",
		EntityType:  "IPO",
		EntityID:    after.ID.String(),
		Changes:     changes,
		Success:     err == nil,
		ErrorMsg:    shared.ErrorMessage(err),
		Metadata: map[string]interface{}{
			"name":          after.Name,
			"changes_count": len(changes),
		},
	}

	shared.LogAuditEntry(entry)
}

// LogIPODeletion logs IPO removal
func (a *IPOAuditLogger) LogIPODeletion(id uuid.UUID, err error) {
	shared.LogAuditEntry(shared.AuditEntry{
		Timestamp:   time.Now(),
		ServiceName: a.serviceName,
		Operation:   "DELETE",
		EntityType:  "IPO",
		EntityID:    id.String(),
		Success:     err == nil,
		ErrorMsg:    shared.ErrorMessage(err),
	})
}

// calculateIPOChanges compares two IPO objects and returns the changes
func (a *IPOAuditLogger) calculateIPOChanges(before, after *models.IPO) map[string]interface{} {
	changes := make(map[string]interface{})
	change := func(field string, was, now interface{}) {
		changes[field] = map[string]interface{}{"before": was, "after": now}
	}

	if before.Name != after.Name {
		change("name", before.Name, after.Name)
	}
	if before.Category != after.Category {
		change("category", before.Category, after.Category)
	}
	if before.Status != after.Status {
		change("status", before.Status, after.Status)
	}
	if !before.PriceBandMin.Equal(after.PriceBandMin) {
		change("price_band_min", before.PriceBandMin, after.PriceBandMin)
	}
	if !before.PriceBandMax.Equal(after.PriceBandMax) {
		change("price_band_max", before.PriceBandMax, after.PriceBandMax)
	}
	if before.LotSize != after.LotSize {
		change("lot_size", before.LotSize, after.LotSize)
	}
	if before.RetailMaxLot != after.RetailMaxLot {
		change("retail_max_lot", before.RetailMaxLot, after.RetailMaxLot)
	}
	if !before.HNIMaxAmount.Equal(after.HNIMaxAmount) {
		change("hni_max_amount", before.HNIMaxAmount, after.HNIMaxAmount)
	}

	return changes
}

const ipoColumns = `id, name, category, status, price_band_min, price_band_max,
	lot_size, retail_max_lot, hni_max_amount, created_at, updated_at`

// IPOService is the Postgres IPO catalog.
type IPOService struct {
	sqlStore
	auditLogger    *IPOAuditLogger
	serviceMetrics *shared.ServiceMetrics
}

func NewIPOService(db *sql.DB) *IPOService {
	return &IPOService{
		sqlStore:       newSQLStore(db),
		auditLogger:    NewIPOAuditLogger(),
		serviceMetrics: shared.NewServiceMetrics("IPO_Service"),
	}
}

var _ bidding.IPOCatalog = (*IPOService)(nil)

// Metrics exposes request counters for the admin metrics endpoint.
func (s *IPOService) Metrics() *shared.ServiceMetrics {
	return s.serviceMetrics
}

func scanIPO(row rowScanner) (*models.IPO, error) {
	var ipo models.IPO
	err := row.Scan(
		&ipo.ID, &ipo.Name, &ipo.Category, &ipo.Status, &ipo.PriceBandMin, &ipo.PriceBandMax,
		&ipo.LotSize, &ipo.RetailMaxLot, &ipo.HNIMaxAmount, &ipo.CreatedAt, &ipo.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ipo, nil
}

// FetchIPO returns nil, nil when no IPO has the id.
func (s *IPOService) FetchIPO(ctx context.Context, id uuid.UUID) (*models.IPO, error) {
	start := time.Now()
	var ipo *models.IPO
	err := s.run(ctx, func() error {
		var err error
		ipo, err = scanIPO(s.DB.QueryRowContext(ctx, "SELECT "+ipoColumns+" FROM ipos WHERE id = $1", id))
		return err
	})
	s.serviceMetrics.RecordRequest(err == nil || errors.Is(err, sql.ErrNoRows), time.Since(start))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get IPO: %w", err)
	}
	return ipo, nil
}

// FetchIPOs lists IPOs, newest first. Empty filter fields match every IPO.
func (s *IPOService) FetchIPOs(ctx context.Context, filter models.IPOFilter) ([]models.IPO, error) {
	start := time.Now()

	var conditions []string
	var args []interface{}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := "SELECT " + ipoColumns + " FROM ipos"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, name"

	var ipos []models.IPO
	err := s.run(ctx, func() error {
		rows, err := s.DB.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		ipos = ipos[:0]
		for rows.Next() {
			ipo, err := scanIPO(rows)
			if err != nil {
				return err
			}
			ipos = append(ipos, *ipo)
		}
		return rows.Err()
	})
	s.serviceMetrics.RecordRequest(err == nil, time.Since(start))

	if err != nil {
		return nil, fmt.Errorf("failed to query IPOs: %w", err)
	}
	return ipos, nil
}

func validateIPO(operation string, ipo *models.IPO) error {
	var problems []string
	if strings.TrimSpace(ipo.Name) == "" {
		problems = append(problems, "name is required")
	}
	if !ipo.Category.Valid() {
		problems = append(problems, fmt.Sprintf("unknown category %q", ipo.Category))
	}
	if !ipo.Status.Valid() {
		problems = append(problems, fmt.Sprintf("unknown status %q", ipo.Status))
	}
	problems = append(problems, ipo.LimitViolations()...)
	if len(problems) > 0 {
		return shared.NewValidationError("IPOService", operation, strings.Join(problems, "; ")).
			WithDetails(problems)
	}
	return nil
}

// CreateIPO inserts a new IPO after checking its bidding limits.
func (s *IPOService) CreateIPO(ctx context.Context, ipo *models.IPO) (*models.IPO, error) {
	if ipo.Status == "" {
		ipo.Status = models.IPOStatusUpcoming
	}
	if err := validateIPO("CreateIPO", ipo); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO ipos (name, category, status, price_band_min, price_band_max, lot_size, retail_max_lot, hni_max_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + ipoColumns

	var created *models.IPO
	err := s.run(ctx, func() error {
		var err error
		created, err = scanIPO(s.DB.QueryRowContext(ctx, query,
			ipo.Name, ipo.Category, ipo.Status, ipo.PriceBandMin, ipo.PriceBandMax,
			ipo.LotSize, ipo.RetailMaxLot, ipo.HNIMaxAmount,
		))
		return err
	})
	if err != nil {
		s.auditLogger.LogIPOCreation(ipo, err)
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "INSERT_FAILED", "IPOService", "CreateIPO", shared.IsRetryableError(err))
	}

	s.auditLogger.LogIPOCreation(created, nil)
	return created, nil
}

// UpdateIPO replaces the editable fields of an existing IPO.
func (s *IPOService) UpdateIPO(ctx context.Context, id uuid.UUID, ipo *models.IPO) (*models.IPO, error) {
	if err := validateIPO("UpdateIPO", ipo); err != nil {
		return nil, err
	}

	before, err := s.FetchIPO(ctx, id)
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "QUERY_FAILED", "IPOService", "UpdateIPO", shared.IsRetryableError(err))
	}
	if before == nil {
		return nil, shared.NewNotFoundError("IPOService", "UpdateIPO", "ipo", id.String())
	}

	query := `
		UPDATE ipos SET name = $1, category = $2, status = $3, price_band_min = $4, price_band_max = $5,
			lot_size = $6, retail_max_lot = $7, hni_max_amount = $8, updated_at = NOW()
		WHERE id = $9
		RETURNING ` + ipoColumns

	var updated *models.IPO
	err = s.run(ctx, func() error {
		var err error
		updated, err = scanIPO(s.DB.QueryRowContext(ctx, query,
			ipo.Name, ipo.Category, ipo.Status, ipo.PriceBandMin, ipo.PriceBandMax,
			ipo.LotSize, ipo.RetailMaxLot, ipo.HNIMaxAmount, id,
		))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.NewNotFoundError("IPOService", "UpdateIPO", "ipo", id.String())
	}
	if err != nil {
		s.auditLogger.LogIPOUpdate(before, before, err)
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "UPDATE_FAILED", "IPOService", "UpdateIPO", shared.IsRetryableError(err))
	}

	s.auditLogger.LogIPOUpdate(before, updated, nil)
	return updated, nil
}

// DeleteIPO removes an IPO. IPOs that already have bids cannot be deleted.
func (s *IPOService) DeleteIPO(ctx context.Context, id uuid.UUID) error {
	var affected int64
	err := s.run(ctx, func() error {
		result, err := s.DB.ExecContext(ctx, "DELETE FROM ipos WHERE id = $1", id)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if _, ok := violatedConstraint(err, pgForeignKeyViolation); ok {
		err = shared.NewConflictError("IPOService", "DeleteIPO", "IPO has bids and cannot be deleted", err)
		s.auditLogger.LogIPODeletion(id, err)
		return err
	}
	if err != nil {
		s.auditLogger.LogIPODeletion(id, err)
		return shared.WrapError(err, shared.ErrorCategoryDatabase, "DELETE_FAILED", "IPOService", "DeleteIPO", shared.IsRetryableError(err))
	}
	if affected == 0 {
		return shared.NewNotFoundError("IPOService", "DeleteIPO", "ipo", id.String())
	}

	s.auditLogger.LogIPODeletion(id, nil)
	return nil
}
