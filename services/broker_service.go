package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/surajvsk/ipo-subbrocker/models"
	"github.com/surajvsk/ipo-subbrocker/shared"
	"golang.org/x/crypto/bcrypt"
)

const brokerColumns = `id, broker_code, username, password_hash, mobile, email, pan, role,
	bid_permission, login_access, bill_permission, created_at, updated_at`

// NewBroker is the admin's request to open a sub-broker account.
type NewBroker struct {
	BrokerCode     string
	Username       string
	Password       string
	Mobile         string
	Email          string
	PAN            string
	Role           models.BrokerRole
	BidPermission  bool
	LoginAccess    bool
	BillPermission bool
}

// BrokerService manages portal accounts.
type BrokerService struct {
	sqlStore
}

func NewBrokerService(db *sql.DB) *BrokerService {
	return &BrokerService{sqlStore: newSQLStore(db)}
}

func scanBroker(row rowScanner) (*models.Broker, error) {
	var b models.Broker
	err := row.Scan(
		&b.ID, &b.BrokerCode, &b.Username, &b.PasswordHash, &b.Mobile, &b.Email, &b.PAN, &b.Role,
		&b.BidPermission, &b.LoginAccess, &b.BillPermission, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *BrokerService) ListBrokers(ctx context.Context) ([]models.Broker, error) {
	var brokers []models.Broker
	err := s.run(ctx, func() error {
		rows, err := s.DB.QueryContext(ctx, "SELECT "+brokerColumns+" FROM brokers ORDER BY broker_code")
		if err != nil {
			return err
		}
		defer rows.Close()

		brokers = brokers[:0]
		for rows.Next() {
			b, err := scanBroker(rows)
			if err != nil {
				return err
			}
			brokers = append(brokers, *b)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query brokers: %w", err)
	}
	return brokers, nil
}

func (s *BrokerService) getBrokerBy(ctx context.Context, column string, value interface{}) (*models.Broker, error) {
	var broker *models.Broker
	err := s.run(ctx, func() error {
		var err error
		broker, err = scanBroker(s.DB.QueryRowContext(ctx,
			"SELECT "+brokerColumns+" FROM brokers WHERE "+column+" = $1", value))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get broker by %s: %w", column, err)
	}
	return broker, nil
}

// GetBrokerByID returns nil, nil when no broker has the id.
func (s *BrokerService) GetBrokerByID(ctx context.Context, id uuid.UUID) (*models.Broker, error) {
	return s.getBrokerBy(ctx, "id", id)
}

// GetBrokerByUsername returns nil, nil for an unknown username.
func (s *BrokerService) GetBrokerByUsername(ctx context.Context, username string) (*models.Broker, error) {
	return s.getBrokerBy(ctx, "username", username)
}

// GetBrokerByCode returns nil, nil for an unknown broker code.
func (s *BrokerService) GetBrokerByCode(ctx context.Context, brokerCode string) (*models.Broker, error) {
	return s.getBrokerBy(ctx, "broker_code", brokerCode)
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func validateNewBroker(input NewBroker) error {
	fields := []struct{ name, value string }{
		{"broker code", input.BrokerCode},
		{"username", input.Username},
		{"password", input.Password},
		{"mobile", input.Mobile},
		{"email", input.Email},
		{"PAN", input.PAN},
	}
	var missing []string
	for _, field := range fields {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return shared.NewValidationError("BrokerService", "CreateBroker",
			"missing required fields: "+strings.Join(missing, ", ")).WithDetails(missing)
	}
	if input.Role != models.BrokerRoleAdmin && input.Role != models.BrokerRoleSubBroker {
		return shared.NewValidationError("BrokerService", "CreateBroker", fmt.Sprintf("unknown role %q", input.Role))
	}
	return nil
}

func mapBrokerWriteError(err error, operation string) error {
	if constraint, ok := violatedConstraint(err, pgUniqueViolation); ok {
		switch constraint {
		case "brokers_broker_code_key":
			return shared.NewConflictError("BrokerService", operation, "broker code already exists", err)
		case "brokers_username_key":
			return shared.NewConflictError("BrokerService", operation, "username already exists", err)
		}
	}
	return shared.WrapError(err, shared.ErrorCategoryDatabase, "WRITE_FAILED", "BrokerService", operation, shared.IsRetryableError(err))
}

// CreateBroker opens an account. The password is stored as a bcrypt hash.
func (s *BrokerService) CreateBroker(ctx context.Context, input NewBroker) (*models.Broker, error) {
	if input.Role == "" {
		input.Role = models.BrokerRoleSubBroker
	}
	if err := validateNewBroker(input); err != nil {
		return nil, err
	}

	passwordHash, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO brokers (broker_code, username, password_hash, mobile, email, pan, role,
			bid_permission, login_access, bill_permission)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + brokerColumns

	var broker *models.Broker
	err = s.run(ctx, func() error {
		var err error
		broker, err = scanBroker(s.DB.QueryRowContext(ctx, query,
			input.BrokerCode, input.Username, passwordHash, input.Mobile, input.Email, strings.ToUpper(input.PAN), input.Role,
			input.BidPermission, input.LoginAccess, input.BillPermission,
		))
		return err
	})
	if err != nil {
		return nil, mapBrokerWriteError(err, "CreateBroker")
	}

	logrus.WithFields(logrus.Fields{
		"broker_code": broker.BrokerCode,
		"username":    broker.Username,
		"role":        broker.Role,
	}).Info("Broker created")
	return broker, nil
}

// UpdateBroker applies the non-nil fields of update.
func (s *BrokerService) UpdateBroker(ctx context.Context, id uuid.UUID, update models.BrokerUpdate) (*models.Broker, error) {
	var sets []string
	var args []interface{}
	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Mobile != nil {
		set("mobile", *update.Mobile)
	}
	if update.Email != nil {
		set("email", *update.Email)
	}
	if update.PAN != nil {
		set("pan", strings.ToUpper(*update.PAN))
	}
	if update.Password != nil {
		if strings.TrimSpace(*update.Password) == "" {
			return nil, shared.NewValidationError("BrokerService", "UpdateBroker", "password cannot be empty")
		}
		passwordHash, err := hashPassword(*update.Password)
		if err != nil {
			return nil, err
		}
		set("password_hash", passwordHash)
	}
	if update.BidPermission != nil {
		set("bid_permission", *update.BidPermission)
	}
	if update.LoginAccess != nil {
		set("login_access", *update.LoginAccess)
	}
	if update.BillPermission != nil {
		set("bill_permission", *update.BillPermission)
	}
	if len(sets) == 0 {
		return nil, shared.NewValidationError("BrokerService", "UpdateBroker", "no fields to update")
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE brokers SET %s, updated_at = NOW() WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), brokerColumns)

	var broker *models.Broker
	err := s.run(ctx, func() error {
		var err error
		broker, err = scanBroker(s.DB.QueryRowContext(ctx, query, args...))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.NewNotFoundError("BrokerService", "UpdateBroker", "broker", id.String())
	}
	if err != nil {
		return nil, mapBrokerWriteError(err, "UpdateBroker")
	}
	return broker, nil
}

func (s *BrokerService) DeleteBroker(ctx context.Context, id uuid.UUID) error {
	var affected int64
	err := s.run(ctx, func() error {
		result, err := s.DB.ExecContext(ctx, "DELETE FROM brokers WHERE id = $1", id)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return shared.WrapError(err, shared.ErrorCategoryDatabase, "DELETE_FAILED", "BrokerService", "DeleteBroker", shared.IsRetryableError(err))
	}
	if affected == 0 {
		return shared.NewNotFoundError("BrokerService", "DeleteBroker", "broker", id.String())
	}
	return nil
}

// EnsureAdmin creates the bootstrap admin account when username is unused.
func (s *BrokerService) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		logrus.Warn("Admin credentials not configured, skipping admin bootstrap")
		return nil
	}

	existing, err := s.GetBrokerByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	_, err = s.CreateBroker(ctx, NewBroker{
		BrokerCode:     "ADMIN",
		Username:       username,
		Password:       password,
		Mobile:         "0000000000",
		Email:          username + "@localhost",
		PAN:            "AAAAA0000A",
		Role:           models.BrokerRoleAdmin,
		BidPermission:  true,
		LoginAccess:    true,
		BillPermission: true,
	})
	if err != nil {
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}
	logrus.WithField("username", username).Info("Bootstrapped admin account")
	return nil
}
