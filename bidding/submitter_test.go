package bidding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surajvsk/ipo-subbrocker/models"
	"github.com/surajvsk/ipo-subbrocker/shared"
)

func acceptedTemplate(t *testing.T, ipo *models.IPO, quantity int, price int64) BidTemplate {
	t.Helper()
	accepted, err := ValidateBid(ipo, BidTerms{Category: models.BidCategoryRetail, Quantity: quantity, Price: priceOf(price)})
	require.NoError(t, err)
	return BidTemplate{IPO: ipo, Terms: *accepted, BrokerCode: "SB01"}
}

func batchConfig(concurrency int) shared.BatchConfig {
	return shared.BatchConfig{MaxConcurrency: concurrency, ApplicationNumberRetries: 3}
}

func TestSubmitTwoClientsCreatesDistinctPendingBids(t *testing.T) {
	store := newMemoryStore()
	ipo := referenceIPO()
	clients := []models.Client{newClient("SB01", "C1"), newClient("SB01", "C2")}

	result, err := NewBatchSubmitter(store, batchConfig(2)).Submit(context.Background(), acceptedTemplate(t, ipo, 10, 100), clients)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, BatchAllSubmitted, result.State())
	require.Len(t, result.Outcomes, 2)

	first, second := result.Outcomes[0].Bid, result.Outcomes[1].Bid
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ApplicationNumber, second.ApplicationNumber)
	for i, bid := range []*models.Bid{first, second} {
		assert.Equal(t, clients[i].TradingCode, bid.ClientCode)
		assert.True(t, bid.Amount.Equal(decimal.NewFromInt(1000)))
		assert.Equal(t, models.BidCategoryRetail, bid.Category)
		assert.Equal(t, models.ExchangeStatusPending, bid.ExchangeStatus)
		assert.Equal(t, models.SponsorBankStatusPending, bid.SponsorBankStatus)
		assert.Regexp(t, `^APP[0-9A-F]{16}$`, bid.ApplicationNumber)
	}
	assert.Equal(t, 2, store.bidCount())
}

func TestSubmitContinuesPastSecondWriteFailure(t *testing.T) {
	const n = 6
	store := newMemoryStore()
	store.failWrites[2] = errors.New("store rejected write")
	clients := makeClients(n)

	// Sequential so that "write #2" is the second client.
	result, err := NewBatchSubmitter(store, batchConfig(1)).Submit(context.Background(), acceptedTemplate(t, referenceIPO(), 10, 100), clients)
	require.NoError(t, err)

	assert.Equal(t, n-1, store.bidCount())
	assert.Equal(t, n-1, result.Created)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, BatchPartial, result.State())

	writeErrs := result.WriteErrors()
	require.Len(t, writeErrs, 1)
	assert.Equal(t, clients[1].TradingCode, writeErrs[0].ClientCode)
	assert.Equal(t, OutcomeFailed, result.Outcomes[1].Status)
	assert.Equal(t, FailureWrite, result.Outcomes[1].Kind)
	assert.Contains(t, result.ErrorSummary, "5 successes and 1 failures")
}

func TestSubmitConcurrentlyPersistsEveryClient(t *testing.T) {
	store := newMemoryStore()
	store.writeDelay = time.Millisecond
	clients := makeClients(40)

	result, err := NewBatchSubmitter(store, batchConfig(8)).Submit(context.Background(), acceptedTemplate(t, referenceIPO(), 20, 105), clients)
	require.NoError(t, err)

	assert.Equal(t, 40, result.Created)
	seen := make(map[string]bool)
	for i, outcome := range result.Outcomes {
		require.Equal(t, OutcomeCreated, outcome.Status)
		assert.Equal(t, clients[i].ID, outcome.ClientID, "outcomes keep selection order")
		assert.False(t, seen[outcome.Bid.ApplicationNumber], "duplicate application number")
		seen[outcome.Bid.ApplicationNumber] = true
	}
}

func TestSubmitEmptySelectionWritesNothing(t *testing.T) {
	store := newMemoryStore()

	result, err := NewBatchSubmitter(store, batchConfig(2)).Submit(context.Background(), acceptedTemplate(t, referenceIPO(), 10, 100), nil)

	assert.Nil(t, result)
	assert.Equal(t, []string{CodeNoClientsSelected}, validationCodes(t, err))
	assert.Equal(t, 0, store.writes)
}

func TestSubmitRegeneratesCollidingApplicationNumber(t *testing.T) {
	store := newMemoryStore()
	numbers := &fixedNumbers{sequence: []string{"APP0000000000000001", "APP0000000000000001", "APP0000000000000002"}}
	clients := makeClients(2)

	result, err := NewBatchSubmitter(store, batchConfig(1)).
		WithApplicationNumbers(numbers).
		Submit(context.Background(), acceptedTemplate(t, referenceIPO(), 10, 100), clients)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, "APP0000000000000001", result.Outcomes[0].Bid.ApplicationNumber)
	assert.Equal(t, "APP0000000000000002", result.Outcomes[1].Bid.ApplicationNumber)
}

func TestSubmitReportsDuplicatePairAsWriteError(t *testing.T) {
	store := newMemoryStore()
	ipo := referenceIPO()
	client := newClient("SB01", "C1")
	submitter := NewBatchSubmitter(store, batchConfig(1))

	_, err := submitter.Submit(context.Background(), acceptedTemplate(t, ipo, 10, 100), []models.Client{client})
	require.NoError(t, err)

	// Same pair placed again, as a racing session would.
	result, err := submitter.Submit(context.Background(), acceptedTemplate(t, ipo, 10, 100), []models.Client{client})
	require.NoError(t, err)

	assert.Equal(t, BatchNoneSubmitted, result.State())
	assert.Equal(t, FailureDuplicate, result.Outcomes[0].Kind)
	require.Len(t, result.WriteErrors(), 1)
	assert.ErrorIs(t, result.WriteErrors()[0], ErrDuplicateBid)
	assert.Equal(t, 1, store.bidCount())
}

func TestSubmitCancelledMidBatchKeepsCreatedBids(t *testing.T) {
	store := newMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.onEachWrite = func(n int) {
		if n == 2 {
			cancel()
		}
	}
	clients := makeClients(5)

	result, err := NewBatchSubmitter(store, batchConfig(1)).Submit(ctx, acceptedTemplate(t, referenceIPO(), 10, 100), clients)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 3, result.Failed)
	assert.Equal(t, BatchPartial, result.State())
	for _, outcome := range result.Outcomes[2:] {
		assert.Equal(t, FailureCancelled, outcome.Kind)
	}
	assert.Equal(t, 2, store.bidCount())
}
