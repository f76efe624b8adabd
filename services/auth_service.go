package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/surajvsk/ipo-subbrocker/models"
	"github.com/surajvsk/ipo-subbrocker/shared"
	"golang.org/x/crypto/bcrypt"
)

// BrokerLookup finds an account by login name. It returns nil, nil when the
// username is unknown.
type BrokerLookup interface {
	GetBrokerByUsername(ctx context.Context, username string) (*models.Broker, error)
}

// Claims is the token payload.
type Claims struct {
	jwt.RegisteredClaims
	BrokerCode    string            `json:"broker_code"`
	Role          models.BrokerRole `json:"role"`
	BidPermission bool              `json:"bid_permission"`
}

// Principal is the authenticated caller, as carried through request handling.
type Principal struct {
	BrokerCode    string
	Username      string
	Role          models.BrokerRole
	BidPermission bool
}

func (p Principal) IsAdmin() bool {
	return p.Role == models.BrokerRoleAdmin
}

// ScopeBrokerCode is the broker code data access is restricted to. Admins
// are unrestricted.
func (p Principal) ScopeBrokerCode() string {
	if p.IsAdmin() {
		return ""
	}
	return p.BrokerCode
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	Token      string         `json:"token"`
	Expiration time.Time      `json:"expiration"`
	Broker     *models.Broker `json:"broker"`
}

// AuthService issues and verifies HS256 tokens for portal accounts.
type AuthService struct {
	brokers   BrokerLookup
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewAuthService(brokers BrokerLookup, jwtSecret string, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		brokers:   brokers,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

func invalidCredentials() error {
	return shared.NewServiceError(shared.ErrorCategoryAuthentication, "INVALID_CREDENTIALS",
		"invalid username or password", "AuthService", "Login", false, nil)
}

// Login checks the password and issues a token. Sub-brokers need login access.
func (s *AuthService) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	broker, err := s.brokers.GetBrokerByUsername(ctx, username)
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "LOOKUP_FAILED", "AuthService", "Login", shared.IsRetryableError(err))
	}
	if broker == nil {
		return nil, invalidCredentials()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(broker.PasswordHash), []byte(password)); err != nil {
		logrus.WithField("username", username).Warn("Failed login attempt")
		return nil, invalidCredentials()
	}
	if broker.Role != models.BrokerRoleAdmin && !broker.LoginAccess {
		return nil, shared.NewServiceError(shared.ErrorCategoryAuthorization, "LOGIN_DISABLED",
			"login access is disabled for this account", "AuthService", "Login", false, nil)
	}

	now := time.Now()
	expiration := now.Add(s.tokenTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   broker.Username,
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
		BrokerCode:    broker.BrokerCode,
		Role:          broker.Role,
		BidPermission: broker.BidPermission,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"broker_code": broker.BrokerCode,
		"role":        broker.Role,
	}).Info("Broker logged in")

	return &TokenResponse{Token: token, Expiration: expiration, Broker: broker}, nil
}

// ParseToken verifies signature and expiry and returns the caller.
func (s *AuthService) ParseToken(tokenString string) (*Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, shared.NewServiceError(shared.ErrorCategoryAuthentication, "INVALID_TOKEN",
			"invalid or expired token", "AuthService", "ParseToken", false, err)
	}
	if claims.BrokerCode == "" {
		return nil, shared.NewServiceError(shared.ErrorCategoryAuthentication, "INVALID_TOKEN",
			"invalid token payload", "AuthService", "ParseToken", false, nil)
	}

	return &Principal{
		BrokerCode:    claims.BrokerCode,
		Username:      claims.Subject,
		Role:          claims.Role,
		BidPermission: claims.BidPermission,
	}, nil
}
