package models

import "time"

// DashboardSummary aggregates the portal's landing counters. BrokerCode is
// empty for the admin-wide view.
type DashboardSummary struct {
	BrokerCode        string                    `json:"broker_code,omitempty"`
	TotalIPOs         int                       `json:"total_ipos"`
	ActiveIPOs        int                       `json:"active_ipos"`
	TotalApplications int                       `json:"total_applications"`
	TotalClients      int                       `json:"total_clients"`
	TotalBrokers      int                       `json:"total_brokers"`
	ByExchangeStatus  map[ExchangeStatus]int    `json:"by_exchange_status"`
	BySponsorStatus   map[SponsorBankStatus]int `json:"by_sponsor_bank_status"`
	ByIPOCategory     map[IPOCategory]int       `json:"by_ipo_category"`
	GeneratedAt       time.Time                 `json:"generated_at"`
}

// PendingBidCount is one row of the pending-at-exchange report.
type PendingBidCount struct {
	IPOID   string `json:"ipo_id"`
	IPOName string `json:"ipo_name"`
	Pending int    `json:"pending"`
}
