package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ASBAForm holds the fields printed on an Application Supported by Blocked
// Amount form.
type ASBAForm struct {
	IPOName         string          `json:"ipo_name"`
	ClientName      string          `json:"client_name"`
	ClientCode      string          `json:"client_code"`
	PAN             string          `json:"pan"`
	DPID            string          `json:"dp_id"`
	UPIHandle       string          `json:"upi_handle"`
	Quantity        int             `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Category        BidCategory     `json:"category"`
	BankName        string          `json:"bank_name"`
	Branch          string          `json:"branch"`
	ASBAAccount     string          `json:"asba_account"`
	Mobile          string          `json:"mobile"`
	Email           string          `json:"email"`
	BrokerCode      string          `json:"broker_code"`
	ApplicationDate time.Time       `json:"application_date"`
}
