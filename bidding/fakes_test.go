package bidding

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/surajvsk/ipo-subbrocker/models"
)

// memoryStore is an in-memory catalog, registry and bid store with the same
// uniqueness rules as the Postgres schema.
type memoryStore struct {
	mu      sync.Mutex
	ipos    map[uuid.UUID]models.IPO
	clients []models.Client
	bids    []models.Bid

	writes      int
	failWrites  map[int]error
	fetchErr    error
	clientsErr  error
	writeDelay  time.Duration
	onEachWrite func(n int)
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		ipos:       make(map[uuid.UUID]models.IPO),
		failWrites: make(map[int]error),
	}
}

func (m *memoryStore) FetchIPO(_ context.Context, id uuid.UUID) (*models.IPO, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	ipo, ok := m.ipos[id]
	if !ok {
		return nil, nil
	}
	return &ipo, nil
}

func (m *memoryStore) FetchIPOs(_ context.Context, filter models.IPOFilter) ([]models.IPO, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.IPO
	for _, ipo := range m.ipos {
		if filter.Category != "" && ipo.Category != filter.Category {
			continue
		}
		if filter.Status != "" && ipo.Status != filter.Status {
			continue
		}
		out = append(out, ipo)
	}
	return out, nil
}

func (m *memoryStore) FetchClients(_ context.Context, filter models.ClientFilter) ([]models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clientsErr != nil {
		return nil, m.clientsErr
	}
	var out []models.Client
	for _, c := range m.clients {
		if filter.BrokerCode != "" && c.BrokerCode != filter.BrokerCode {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *memoryStore) FetchBids(_ context.Context, filter models.BidFilter) ([]models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	var out []models.Bid
	for _, b := range m.bids {
		if filter.IPOID != nil && b.IPOID != *filter.IPOID {
			continue
		}
		if filter.BrokerCode != "" && b.BrokerCode != filter.BrokerCode {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (m *memoryStore) FetchBid(_ context.Context, id uuid.UUID) (*models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bids {
		if b.ID == id {
			bid := b
			return &bid, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) CreateBid(ctx context.Context, input models.BidInput) (*models.Bid, error) {
	if m.writeDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.writeDelay):
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.writes++
	if m.onEachWrite != nil {
		m.onEachWrite(m.writes)
	}
	if err, ok := m.failWrites[m.writes]; ok {
		return nil, err
	}
	for _, b := range m.bids {
		if b.IPOID == input.IPOID && b.ClientCode == input.ClientCode {
			return nil, ErrDuplicateBid
		}
		if b.ApplicationNumber == input.ApplicationNumber {
			return nil, ErrApplicationNumberTaken
		}
	}

	now := time.Now()
	bid := models.Bid{
		ID:                uuid.New(),
		IPOID:             input.IPOID,
		IPOName:           input.IPOName,
		ClientCode:        input.ClientCode,
		ClientName:        input.ClientName,
		PAN:               input.PAN,
		UPIHandle:         input.UPIHandle,
		Quantity:          input.Quantity,
		Price:             input.Price,
		Amount:            input.Amount,
		UseCutoff:         input.UseCutoff,
		Category:          input.Category,
		ApplicationNumber: input.ApplicationNumber,
		BrokerCode:        input.BrokerCode,
		ExchangeCode:      models.DefaultExchangeCode,
		ExchangeStatus:    models.ExchangeStatusPending,
		SponsorBankStatus: models.SponsorBankStatusPending,
		DPStatus:          models.DefaultDPStatus,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	m.bids = append(m.bids, bid)
	return &bid, nil
}

func (m *memoryStore) DeleteBid(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range m.bids {
		if b.ID == id {
			m.bids = append(m.bids[:i], m.bids[i+1:]...)
			return nil
		}
	}
	return &NotFoundError{Entity: "bid", ID: id.String()}
}

func (m *memoryStore) bidCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bids)
}

// fixedNumbers hands out a scripted sequence, then falls back to UUIDs.
type fixedNumbers struct {
	mu       sync.Mutex
	sequence []string
}

func (f *fixedNumbers) Next() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sequence) == 0 {
		return UUIDApplicationNumbers{}.Next()
	}
	next := f.sequence[0]
	f.sequence = f.sequence[1:]
	return next
}

var errStoreUnavailable = errors.New("connection reset by peer")

func referenceIPO() *models.IPO {
	return &models.IPO{
		ID:           uuid.New(),
		Name:         "Acme Industries",
		Category:     models.IPOCategoryMainboard,
		Status:       models.IPOStatusActive,
		PriceBandMin: decimal.NewFromInt(100),
		PriceBandMax: decimal.NewFromInt(110),
		LotSize:      10,
		RetailMaxLot: 5,
		HNIMaxAmount: decimal.NewFromInt(1000000),
	}
}

func newClient(brokerCode, tradingCode string) models.Client {
	return models.Client{
		ID:          uuid.New(),
		TradingCode: tradingCode,
		Name:        "Client " + tradingCode,
		PAN:         "ABCDE1234F",
		UPIHandle:   tradingCode + "@upi",
		BrokerCode:  brokerCode,
	}
}

func priceOf(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}
