package bidding

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surajvsk/ipo-subbrocker/models"
)

type workflowFixture struct {
	store    *memoryStore
	workflow *Workflow
	ipo      *models.IPO
	clients  []models.Client
}

func newWorkflowFixture() *workflowFixture {
	store := newMemoryStore()
	ipo := referenceIPO()
	store.ipos[ipo.ID] = *ipo
	store.clients = []models.Client{
		newClient("SB01", "C1"),
		newClient("SB01", "C2"),
		newClient("SB01", "C3"),
		newClient("SB02", "D1"),
	}
	return &workflowFixture{
		store:    store,
		workflow: NewWorkflow(store, store, store, NewBatchSubmitter(store, batchConfig(2))),
		ipo:      ipo,
		clients:  store.clients,
	}
}

func (f *workflowFixture) request(ids ...uuid.UUID) PlaceBidsRequest {
	return PlaceBidsRequest{
		BrokerCode: "SB01",
		IPOID:      f.ipo.ID,
		Terms:      BidTerms{Category: models.BidCategoryRetail, Quantity: 10, Price: priceOf(100)},
		ClientIDs:  ids,
	}
}

func TestWorkflowEligibleClientsScopedToBrokerAndExistingBids(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	eligible, err := f.workflow.EligibleClients(ctx, "SB01", f.ipo.ID)
	require.NoError(t, err)
	assert.Len(t, eligible, 3)

	_, err = f.workflow.PlaceBids(ctx, f.request(f.clients[1].ID))
	require.NoError(t, err)

	eligible, err = f.workflow.EligibleClients(ctx, "SB01", f.ipo.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.Client{f.clients[0], f.clients[2]}, eligible)
}

func TestWorkflowPlaceBidsReportsIneligibleSelections(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	_, err := f.workflow.PlaceBids(ctx, f.request(f.clients[0].ID))
	require.NoError(t, err)

	unknown := uuid.New()
	result, err := f.workflow.PlaceBids(ctx, f.request(f.clients[0].ID, f.clients[1].ID, f.clients[3].ID, unknown, f.clients[1].ID))
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 4, "repeated ids collapse")
	assert.Equal(t, FailureNotEligible, result.Outcomes[0].Kind, "already bid")
	assert.Equal(t, OutcomeCreated, result.Outcomes[1].Status)
	assert.Equal(t, FailureNotEligible, result.Outcomes[2].Kind, "another broker's client")
	assert.Equal(t, FailureNotEligible, result.Outcomes[3].Kind, "unknown client")
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 3, result.Failed)
	assert.Empty(t, result.WriteErrors())
	assert.Equal(t, 2, f.store.bidCount())
}

func TestWorkflowPlaceBidsValidatesBeforeAnyWrite(t *testing.T) {
	f := newWorkflowFixture()
	req := f.request()
	req.Terms.Quantity = 25

	result, err := f.workflow.PlaceBids(context.Background(), req)

	assert.Nil(t, result)
	assert.ElementsMatch(t, []string{CodeQuantityLotMultiple, CodeNoClientsSelected}, validationCodes(t, err))
	assert.Equal(t, 0, f.store.writes)
}

func TestWorkflowRejectsIPOsThatAreNotOpen(t *testing.T) {
	ctx := context.Background()
	for _, status := range []models.IPOStatus{models.IPOStatusUpcoming, models.IPOStatusClosed, models.IPOStatusListed} {
		t.Run(string(status), func(t *testing.T) {
			f := newWorkflowFixture()
			f.ipo.Status = status
			f.store.ipos[f.ipo.ID] = *f.ipo

			result, err := f.workflow.PlaceBids(ctx, f.request(f.clients[0].ID, f.clients[1].ID))
			assert.Nil(t, result)
			assert.Equal(t, []string{CodeIPONotOpen}, validationCodes(t, err))
			assert.Equal(t, 0, f.store.writes)
			assert.Equal(t, 0, f.store.bidCount())

			_, err = f.workflow.Validate(ctx, f.ipo.ID, f.request().Terms)
			assert.Equal(t, []string{CodeIPONotOpen}, validationCodes(t, err))

			_, err = f.workflow.EligibleClients(ctx, "SB01", f.ipo.ID)
			assert.Equal(t, []string{CodeIPONotOpen}, validationCodes(t, err))
		})
	}
}

func TestWorkflowFetchFailureAbortsBeforeWrites(t *testing.T) {
	f := newWorkflowFixture()
	f.store.clientsErr = errStoreUnavailable

	result, err := f.workflow.PlaceBids(context.Background(), f.request(f.clients[0].ID))

	assert.Nil(t, result)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "clients", fetchErr.Source)
	assert.Equal(t, 0, f.store.writes)
}

func TestWorkflowUnknownIPOIsNotFound(t *testing.T) {
	f := newWorkflowFixture()

	_, err := f.workflow.EligibleClients(context.Background(), "SB01", uuid.New())

	assert.True(t, IsNotFound(err))
}

func TestWorkflowCancelBidMakesClientEligibleAgain(t *testing.T) {
	f := newWorkflowFixture()
	ctx := context.Background()

	result, err := f.workflow.PlaceBids(ctx, f.request(f.clients[0].ID))
	require.NoError(t, err)
	bidID := result.Outcomes[0].Bid.ID

	err = f.workflow.CancelBid(ctx, "SB02", bidID)
	assert.True(t, IsNotFound(err), "other brokers cannot cancel")

	require.NoError(t, f.workflow.CancelBid(ctx, "SB01", bidID))
	assert.True(t, IsNotFound(f.workflow.CancelBid(ctx, "SB01", bidID)))

	eligible, err := f.workflow.EligibleClients(ctx, "SB01", f.ipo.ID)
	require.NoError(t, err)
	assert.Len(t, eligible, 3)
}
