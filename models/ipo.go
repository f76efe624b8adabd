package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type IPOCategory string

const (
	IPOCategoryMainboard IPOCategory = "Mainboard"
	IPOCategorySME       IPOCategory = "SME"
)

type IPOStatus string

const (
	IPOStatusUpcoming IPOStatus = "Upcoming"
	IPOStatusActive   IPOStatus = "Active"
	IPOStatusClosed   IPOStatus = "Closed"
	IPOStatusListed   IPOStatus = "Listed"
)

// IPO is an issue open (or about to open) for bidding. Price band and HNI
// limit are whole currency units carried as decimals so that amount
// arithmetic never goes through floats.
type IPO struct {
	ID       uuid.UUID   `json:"id"`
	Name     string      `json:"name"`
	Category IPOCategory `json:"category"`
	Status   IPOStatus   `json:"status"`

	// Bidding limits
	PriceBandMin decimal.Decimal `json:"price_band_min"`
	PriceBandMax decimal.Decimal `json:"price_band_max"`
	LotSize      int             `json:"lot_size"`
	RetailMaxLot int             `json:"retail_max_lot"`
	HNIMaxAmount decimal.Decimal `json:"hni_max_amount"`

	// Audit fields
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IPOFilter narrows catalog reads. Empty fields match everything.
type IPOFilter struct {
	Category IPOCategory `json:"category,omitempty"`
	Status   IPOStatus   `json:"status,omitempty"`
}

func (c IPOCategory) Valid() bool {
	return c == IPOCategoryMainboard || c == IPOCategorySME
}

func (s IPOStatus) Valid() bool {
	switch s {
	case IPOStatusUpcoming, IPOStatusActive, IPOStatusClosed, IPOStatusListed:
		return true
	}
	return false
}

// LimitViolations reports which catalog invariants the IPO breaks. An empty
// result means the IPO can be offered for bidding.
func (i *IPO) LimitViolations() []string {
	var problems []string
	if i.PriceBandMin.IsNegative() || i.PriceBandMax.IsNegative() {
		problems = append(problems, "price band must be non-negative")
	}
	if !i.PriceBandMin.Equal(i.PriceBandMin.Truncate(0)) || !i.PriceBandMax.Equal(i.PriceBandMax.Truncate(0)) {
		problems = append(problems, "price band must be whole numbers")
	}
	if i.PriceBandMin.GreaterThan(i.PriceBandMax) {
		problems = append(problems, "price band minimum exceeds maximum")
	}
	if i.LotSize <= 0 {
		problems = append(problems, "lot size must be positive")
	}
	if i.RetailMaxLot <= 0 {
		problems = append(problems, "retail max lot must be positive")
	}
	if !i.HNIMaxAmount.IsPositive() {
		problems = append(problems, "HNI max amount must be positive")
	}
	return problems
}
