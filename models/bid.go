package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BidCategory string

const (
	BidCategoryRetail BidCategory = "Retail"
	BidCategoryHNI    BidCategory = "HNI"
)

func (c BidCategory) Valid() bool {
	return c == BidCategoryRetail || c == BidCategoryHNI
}

type ExchangeStatus string

const (
	ExchangeStatusPending                ExchangeStatus = "Pending"
	ExchangeStatusAccepted               ExchangeStatus = "Accepted"
	ExchangeStatusRejectedByUPI          ExchangeStatus = "Rejected by UPI"
	ExchangeStatusRejectedByInvestor     ExchangeStatus = "Rejected by Investor"
	ExchangeStatusRejectedByInvestorBank ExchangeStatus = "Rejected by Investor Bank"
	ExchangeStatusRejectedBySponsorBank  ExchangeStatus = "Rejected by Sponsor Bank"
)

var ExchangeStatuses = []ExchangeStatus{
	ExchangeStatusPending,
	ExchangeStatusAccepted,
	ExchangeStatusRejectedByUPI,
	ExchangeStatusRejectedByInvestor,
	ExchangeStatusRejectedByInvestorBank,
	ExchangeStatusRejectedBySponsorBank,
}

func (s ExchangeStatus) Valid() bool {
	for _, known := range ExchangeStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type SponsorBankStatus string

const (
	SponsorBankStatusPending  SponsorBankStatus = "Pending"
	SponsorBankStatusAccepted SponsorBankStatus = "Accepted"
	SponsorBankStatusRejected SponsorBankStatus = "Rejected"
)

func (s SponsorBankStatus) Valid() bool {
	return s == SponsorBankStatusPending || s == SponsorBankStatusAccepted || s == SponsorBankStatusRejected
}

const (
	DefaultExchangeCode = "NSE"
	DefaultDPStatus     = "Active"
)

// Bid is one client's application for an IPO. Status fields are owned by the
// exchange pipeline; bid placement only sets their defaults.
type Bid struct {
	ID                uuid.UUID       `json:"id"`
	IPOID             uuid.UUID       `json:"ipo_id"`
	IPOName           string          `json:"ipo_name"`
	ClientCode        string          `json:"client_code"`
	ClientName        string          `json:"client_name"`
	PAN               string          `json:"pan"`
	UPIHandle         string          `json:"upi_handle"`
	Quantity          int             `json:"quantity"`
	Price             decimal.Decimal `json:"price"`
	Amount            decimal.Decimal `json:"amount"`
	UseCutoff         bool            `json:"use_cutoff"`
	Category          BidCategory     `json:"category"`
	ApplicationNumber string          `json:"application_number"`
	BrokerCode        string          `json:"broker_code"`

	// Exchange pipeline
	ExchangeCode      string            `json:"exchange_code"`
	ExchangeStatus    ExchangeStatus    `json:"exchange_status"`
	SponsorBankStatus SponsorBankStatus `json:"sponsor_bank_status"`
	DPStatus          string            `json:"dp_status"`
	ExchangeUpdatedAt *time.Time        `json:"exchange_updated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BidInput is what the submitter hands to the store. Identifier and status
// fields are assigned by the store.
type BidInput struct {
	IPOID             uuid.UUID
	IPOName           string
	ClientCode        string
	ClientName        string
	PAN               string
	UPIHandle         string
	Quantity          int
	Price             decimal.Decimal
	Amount            decimal.Decimal
	UseCutoff         bool
	Category          BidCategory
	ApplicationNumber string
	BrokerCode        string
}

type BidFilter struct {
	IPOID      *uuid.UUID `json:"ipo_id,omitempty"`
	BrokerCode string     `json:"broker_code,omitempty"`
}

type BidStatusUpdate struct {
	ExchangeStatus    *ExchangeStatus    `json:"exchange_status"`
	SponsorBankStatus *SponsorBankStatus `json:"sponsor_bank_status"`
	DPStatus          *string            `json:"dp_status"`
}
