package services

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surajvsk/ipo-subbrocker/bidding"
	"github.com/surajvsk/ipo-subbrocker/database"
	"github.com/surajvsk/ipo-subbrocker/models"
	"github.com/surajvsk/ipo-subbrocker/shared"
)

// integrationSuite runs the Postgres-backed services against TEST_DATABASE_URL.
type integrationSuite struct {
	db        *sql.DB
	ipos      *IPOService
	clients   *ClientService
	bids      *BidService
	brokers   *BrokerService
	upi       *UPIHandlerService
	dashboard *DashboardService
	workflow  *bidding.Workflow
}

var migrateOnce sync.Once

func setupIntegrationSuite(t *testing.T) *integrationSuite {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("Skipping integration tests - TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		t.Skipf("Skipping integration tests - database ping failed: %v", err)
	}

	var migrateErr error
	migrateOnce.Do(func() { migrateErr = database.Migrate(dbURL) })
	require.NoError(t, migrateErr)

	_, err = db.Exec("TRUNCATE bids, clients, ipos, brokers, upi_handlers CASCADE")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	config := shared.NewDefaultUnifiedConfiguration()
	suite := &integrationSuite{
		db:        db,
		ipos:      NewIPOService(db),
		clients:   NewClientService(db),
		bids:      NewBidService(db),
		brokers:   NewBrokerService(db),
		upi:       NewUPIHandlerService(db),
		dashboard: NewDashboardService(db, NewCacheService(config.Cache), time.Minute),
	}
	suite.workflow = bidding.NewWorkflow(suite.ipos, suite.clients, suite.bids,
		bidding.NewBatchSubmitter(suite.bids, config.Batch))
	return suite
}

func (s *integrationSuite) createIPO(t *testing.T) *models.IPO {
	t.Helper()
	ipo, err := s.ipos.CreateIPO(context.Background(), &models.IPO{
		Name:         "Acme Industries " + uuid.NewString()[:8],
		Category:     models.IPOCategoryMainboard,
		Status:       models.IPOStatusActive,
		PriceBandMin: decimal.NewFromInt(95),
		PriceBandMax: decimal.NewFromInt(100),
		LotSize:      100,
		RetailMaxLot: 10,
		HNIMaxAmount: decimal.NewFromInt(500000),
	})
	require.NoError(t, err)
	return ipo
}

func (s *integrationSuite) createClient(t *testing.T, brokerCode, tradingCode string) *models.Client {
	t.Helper()
	client, err := s.clients.CreateClient(context.Background(), &models.Client{
		TradingCode: tradingCode,
		Name:        "Client " + tradingCode,
		PAN:         "abcde1234f",
		DPID:        "IN300000",
		UPIHandle:   tradingCode + "@upi",
		Mobile:      "9999999999",
		Email:       tradingCode + "@example.com",
		BrokerCode:  brokerCode,
	})
	require.NoError(t, err)
	return client
}

func TestIntegrationIPOCatalog(t *testing.T) {
	suite := setupIntegrationSuite(t)
	ctx := context.Background()

	ipo := suite.createIPO(t)
	assert.NotEqual(t, uuid.Nil, ipo.ID)

	fetched, err := suite.ipos.FetchIPO(ctx, ipo.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.True(t, fetched.HNIMaxAmount.Equal(decimal.NewFromInt(500000)))

	missing, err := suite.ipos.FetchIPO(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	list, err := suite.ipos.FetchIPOs(ctx, models.IPOFilter{Category: models.IPOCategorySME})
	require.NoError(t, err)
	assert.Empty(t, list)

	fetched.Status = models.IPOStatusClosed
	updated, err := suite.ipos.UpdateIPO(ctx, ipo.ID, fetched)
	require.NoError(t, err)
	assert.Equal(t, models.IPOStatusClosed, updated.Status)

	_, err = suite.ipos.CreateIPO(ctx, &models.IPO{Name: "Broken", Category: models.IPOCategorySME})
	requireCategory(t, err, shared.ErrorCategoryValidation)

	require.NoError(t, suite.ipos.DeleteIPO(ctx, ipo.ID))
	requireCategory(t, suite.ipos.DeleteIPO(ctx, ipo.ID), shared.ErrorCategoryNotFound)
}

func TestIntegrationClientRegistryScoping(t *testing.T) {
	suite := setupIntegrationSuite(t)
	ctx := context.Background()

	client := suite.createClient(t, "SB001", "C001")
	assert.Equal(t, "ABCDE1234F", client.PAN)

	_, err := suite.clients.CreateClient(ctx, &models.Client{
		TradingCode: "C001", Name: "Dup", PAN: "ABCDE1234F", BrokerCode: "SB001",
	})
	requireCategory(t, err, shared.ErrorCategoryConflict)

	// the same trading code under another broker is a different client
	suite.createClient(t, "SB002", "C001")

	_, err = suite.clients.GetClient(ctx, "SB002", client.ID)
	requireCategory(t, err, shared.ErrorCategoryNotFound)

	client.Name = "Renamed"
	updated, err := suite.clients.UpdateClient(ctx, "", client.ID, client)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "SB001", updated.BrokerCode)

	requireCategory(t, suite.clients.DeleteClient(ctx, "SB002", client.ID), shared.ErrorCategoryNotFound)
	require.NoError(t, suite.clients.DeleteClient(ctx, "SB001", client.ID))
}

func TestIntegrationBatchPlacementAndCancellation(t *testing.T) {
	suite := setupIntegrationSuite(t)
	ctx := context.Background()

	ipo := suite.createIPO(t)
	first := suite.createClient(t, "SB001", "C001")
	second := suite.createClient(t, "SB001", "C002")

	result, err := suite.workflow.PlaceBids(ctx, bidding.PlaceBidsRequest{
		BrokerCode: "SB001",
		IPOID:      ipo.ID,
		Terms:      bidding.BidTerms{Category: models.BidCategoryRetail, Quantity: 200, UseCutoff: true},
		ClientIDs:  []uuid.UUID{first.ID, second.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, bidding.BatchAllSubmitted, result.State())

	bids, err := suite.bids.FetchBids(ctx, models.BidFilter{IPOID: &ipo.ID})
	require.NoError(t, err)
	require.Len(t, bids, 2)
	for _, bid := range bids {
		assert.True(t, bid.Amount.Equal(decimal.NewFromInt(20000)))
		assert.Equal(t, models.ExchangeStatusPending, bid.ExchangeStatus)
		assert.Equal(t, models.DefaultExchangeCode, bid.ExchangeCode)
	}

	// the store itself rejects a second bid for the same pair
	_, err = suite.bids.CreateBid(ctx, models.BidInput{
		IPOID: ipo.ID, IPOName: ipo.Name, ClientCode: "C001", ClientName: "Client C001",
		Quantity: 100, Price: decimal.NewFromInt(100), Amount: decimal.NewFromInt(10000),
		Category: models.BidCategoryRetail, ApplicationNumber: uuid.NewString(), BrokerCode: "SB001",
	})
	assert.ErrorIs(t, err, bidding.ErrDuplicateBid)

	// a client with bids keeps its trading code
	renamed := *first
	renamed.TradingCode = "C001X"
	_, err = suite.clients.UpdateClient(ctx, "SB001", first.ID, &renamed)
	requireCategory(t, err, shared.ErrorCategoryConflict)
	renamed.TradingCode = first.TradingCode
	renamed.Name = "Renamed"
	_, err = suite.clients.UpdateClient(ctx, "SB001", first.ID, &renamed)
	require.NoError(t, err)

	eligible, err := suite.workflow.EligibleClients(ctx, "SB001", ipo.ID)
	require.NoError(t, err)
	assert.Empty(t, eligible)

	accepted := models.ExchangeStatusAccepted
	updated, err := suite.bids.UpdateBidStatus(ctx, bids[0].ID, models.BidStatusUpdate{ExchangeStatus: &accepted})
	require.NoError(t, err)
	assert.Equal(t, models.ExchangeStatusAccepted, updated.ExchangeStatus)
	assert.NotNil(t, updated.ExchangeUpdatedAt)

	pending, err := suite.bids.PendingByIPO(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Pending)

	assert.True(t, bidding.IsNotFound(suite.workflow.CancelBid(ctx, "SB002", bids[1].ID)))
	require.NoError(t, suite.workflow.CancelBid(ctx, "SB001", bids[1].ID))

	eligible, err = suite.workflow.EligibleClients(ctx, "SB001", ipo.ID)
	require.NoError(t, err)
	assert.Len(t, eligible, 1)

	summary, err := suite.dashboard.Refresh(ctx, "SB001")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalApplications)
	assert.Equal(t, 2, summary.TotalClients)
	assert.Equal(t, 1, summary.ByIPOCategory[models.IPOCategoryMainboard])

	// an IPO with bids cannot be removed from the catalog
	requireCategory(t, suite.ipos.DeleteIPO(ctx, ipo.ID), shared.ErrorCategoryConflict)
}

func TestIntegrationBrokersAndUPIHandlers(t *testing.T) {
	suite := setupIntegrationSuite(t)
	ctx := context.Background()

	require.NoError(t, suite.brokers.EnsureAdmin(ctx, "root", "rootpw"))
	require.NoError(t, suite.brokers.EnsureAdmin(ctx, "root", "ignored"))

	admin, err := suite.brokers.GetBrokerByUsername(ctx, "root")
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.Equal(t, models.BrokerRoleAdmin, admin.Role)

	input := NewBroker{
		BrokerCode: "SB001", Username: "ravi", Password: "pw", Mobile: "9999999999",
		Email: "ravi@example.com", PAN: "abcde1234f", LoginAccess: true,
	}
	broker, err := suite.brokers.CreateBroker(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, models.BrokerRoleSubBroker, broker.Role)

	_, err = suite.brokers.CreateBroker(ctx, input)
	requireCategory(t, err, shared.ErrorCategoryConflict)

	auth := NewAuthService(suite.brokers, "secret", time.Hour)
	_, err = auth.Login(ctx, "ravi", "pw")
	require.NoError(t, err)

	disabled := false
	_, err = suite.brokers.UpdateBroker(ctx, broker.ID, models.BrokerUpdate{LoginAccess: &disabled})
	require.NoError(t, err)
	_, err = auth.Login(ctx, "ravi", "pw")
	requireCategory(t, err, shared.ErrorCategoryAuthorization)

	require.NoError(t, suite.brokers.DeleteBroker(ctx, broker.ID))
	requireCategory(t, suite.brokers.DeleteBroker(ctx, broker.ID), shared.ErrorCategoryNotFound)

	handler, err := suite.upi.CreateHandler(ctx, "okaxis")
	require.NoError(t, err)
	_, err = suite.upi.CreateHandler(ctx, "okaxis")
	requireCategory(t, err, shared.ErrorCategoryConflict)

	handlers, err := suite.upi.ListHandlers(ctx)
	require.NoError(t, err)
	assert.Len(t, handlers, 1)
	require.NoError(t, suite.upi.DeleteHandler(ctx, handler.ID))
}
