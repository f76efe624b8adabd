package models

import (
	"time"

	"github.com/google/uuid"
)

type BrokerRole string

const (
	BrokerRoleAdmin     BrokerRole = "admin"
	BrokerRoleSubBroker BrokerRole = "subbroker"
)

// Broker is a portal account. Sub-brokers own clients and bids through
// BrokerCode; admins manage the catalog and other accounts.
type Broker struct {
	ID           uuid.UUID  `json:"id"`
	BrokerCode   string     `json:"broker_code"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Mobile       string     `json:"mobile"`
	Email        string     `json:"email"`
	PAN          string     `json:"pan"`
	Role         BrokerRole `json:"role"`

	// Permissions
	BidPermission  bool `json:"bid_permission"`
	LoginAccess    bool `json:"login_access"`
	BillPermission bool `json:"bill_permission"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BrokerUpdate carries optional changes; nil fields are left untouched.
type BrokerUpdate struct {
	Mobile         *string `json:"mobile"`
	Email          *string `json:"email"`
	PAN            *string `json:"pan"`
	Password       *string `json:"password"`
	BidPermission  *bool   `json:"bid_permission"`
	LoginAccess    *bool   `json:"login_access"`
	BillPermission *bool   `json:"bill_permission"`
}

type UPIHandler struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
