package models

import (
	"time"

	"github.com/google/uuid"
)

// Client is an investor a broker may bid on behalf of. TradingCode is unique
// within a broker and is the key bids refer to.
type Client struct {
	ID          uuid.UUID `json:"id"`
	TradingCode string    `json:"trading_code"`
	Name        string    `json:"name"`
	PAN         string    `json:"pan"`
	DPID        string    `json:"dp_id"`
	UPIHandle   string    `json:"upi_handle"`
	Mobile      string    `json:"mobile"`
	Email       string    `json:"email"`
	GroupCode   *string   `json:"group_code,omitempty"`
	UserID      *string   `json:"user_id,omitempty"`
	BrokerCode  string    `json:"broker_code"`

	// Bank details used on ASBA forms
	BankName    *string `json:"bank_name,omitempty"`
	Branch      *string `json:"branch,omitempty"`
	ASBAAccount *string `json:"asba_account,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ClientFilter struct {
	BrokerCode  string `json:"broker_code,omitempty"`
	TradingCode string `json:"trading_code,omitempty"`
}
