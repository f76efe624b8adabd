package bidding

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/surajvsk/ipo-subbrocker/models"
	"golang.org/x/sync/errgroup"
)

// PlaceBidsRequest asks for one bid per selected client on an IPO.
type PlaceBidsRequest struct {
	BrokerCode string
	IPOID      uuid.UUID
	Terms      BidTerms
	ClientIDs  []uuid.UUID
}

// Workflow wires the validator, the eligibility filter and the submitter to
// the catalog, registry and store. The broker is always an explicit argument.
type Workflow struct {
	catalog   IPOCatalog
	clients   ClientRegistry
	bids      BidStore
	submitter *BatchSubmitter
	audit     *AuditLogger
}

func NewWorkflow(catalog IPOCatalog, clients ClientRegistry, bids BidStore, submitter *BatchSubmitter) *Workflow {
	return &Workflow{
		catalog:   catalog,
		clients:   clients,
		bids:      bids,
		submitter: submitter,
		audit:     NewAuditLogger(),
	}
}

// LoadIPO returns the IPO or a *NotFoundError / *FetchError.
func (w *Workflow) LoadIPO(ctx context.Context, ipoID uuid.UUID) (*models.IPO, error) {
	ipo, err := w.catalog.FetchIPO(ctx, ipoID)
	if err != nil {
		return nil, &FetchError{Source: "ipo", Err: err}
	}
	if ipo == nil {
		return nil, &NotFoundError{Entity: "ipo", ID: ipoID.String()}
	}
	return ipo, nil
}

// LoadOpenIPO is LoadIPO restricted to IPOs whose status is Active. Any other
// status is reported as an ipo_not_open ValidationErrors.
func (w *Workflow) LoadOpenIPO(ctx context.Context, ipoID uuid.UUID) (*models.IPO, error) {
	ipo, err := w.LoadIPO(ctx, ipoID)
	if err != nil {
		return nil, err
	}
	if problem := notOpen(ipo); problem != nil {
		return nil, ValidationErrors{*problem}
	}
	return ipo, nil
}

func notOpen(ipo *models.IPO) *ValidationError {
	if ipo.Status == models.IPOStatusActive {
		return nil
	}
	return &ValidationError{Code: CodeIPONotOpen, Field: "ipo_id", Params: []interface{}{string(ipo.Status)}}
}

// Validate runs ValidateBid against the stored IPO.
func (w *Workflow) Validate(ctx context.Context, ipoID uuid.UUID, terms BidTerms) (*Accepted, error) {
	ipo, err := w.LoadOpenIPO(ctx, ipoID)
	if err != nil {
		return nil, err
	}
	return ValidateBid(ipo, terms)
}

// EligibleClients lists the broker's clients that have not bid on the IPO.
func (w *Workflow) EligibleClients(ctx context.Context, brokerCode string, ipoID uuid.UUID) ([]models.Client, error) {
	ipo, err := w.LoadOpenIPO(ctx, ipoID)
	if err != nil {
		return nil, err
	}
	return w.eligibleFor(ctx, brokerCode, ipo)
}

func (w *Workflow) eligibleFor(ctx context.Context, brokerCode string, ipo *models.IPO) ([]models.Client, error) {
	var (
		clients []models.Client
		bids    []models.Bid
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		clients, err = w.clients.FetchClients(groupCtx, models.ClientFilter{BrokerCode: brokerCode})
		if err != nil {
			return &FetchError{Source: "clients", Err: err}
		}
		return nil
	})
	group.Go(func() error {
		var err error
		// Every broker's bids: the (IPO, client code) pair is unique store-wide.
		bids, err = w.bids.FetchBids(groupCtx, models.BidFilter{IPOID: &ipo.ID})
		if err != nil {
			return &FetchError{Source: "bids", Err: err}
		}
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	return ComputeEligibleClients(clients, bids), nil
}

// PlaceBids validates the terms, recomputes eligibility and submits one bid
// per selected client. Selected ids that are unknown or already bid are
// reported as not_eligible outcomes; repeated ids are submitted once.
// Outcomes follow the order of req.ClientIDs.
func (w *Workflow) PlaceBids(ctx context.Context, req PlaceBidsRequest) (*BatchResult, error) {
	started := time.Now()
	logger := logrus.WithFields(logrus.Fields{
		"component":   "BidWorkflow",
		"operation":   "PlaceBids",
		"broker_code": req.BrokerCode,
		"ipo_id":      req.IPOID,
	})

	ipo, err := w.LoadIPO(ctx, req.IPOID)
	if err != nil {
		return nil, err
	}

	var errs ValidationErrors
	if problem := notOpen(ipo); problem != nil {
		errs = append(errs, *problem)
	}
	accepted, err := ValidateBid(ipo, req.Terms)
	if err != nil {
		var verrs ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, err
		}
		errs = append(errs, verrs...)
	}
	selection := uniqueIDs(req.ClientIDs)
	if len(selection) == 0 {
		errs = append(errs, ValidationError{Code: CodeNoClientsSelected, Field: "clients"})
	}
	if len(errs) > 0 {
		logger.WithField("errors", errs.Error()).Info("Bid placement rejected by validation")
		return nil, errs
	}

	eligible, err := w.eligibleFor(ctx, req.BrokerCode, ipo)
	if err != nil {
		logger.WithError(err).Error("Failed to compute eligible clients")
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Client, len(eligible))
	for _, client := range eligible {
		byID[client.ID] = client
	}

	outcomes := make([]ClientOutcome, len(selection))
	var (
		selected  []models.Client
		positions []int
	)
	for i, id := range selection {
		client, ok := byID[id]
		if !ok {
			notEligible := &NotFoundError{Entity: "eligible client", ID: id.String()}
			outcomes[i] = ClientOutcome{
				ClientID: id,
				Status:   OutcomeFailed,
				Kind:     FailureNotEligible,
				Reason:   notEligible.Error(),
				Err:      notEligible,
			}
			continue
		}
		selected = append(selected, client)
		positions = append(positions, i)
	}

	if len(selected) > 0 {
		submitted, err := w.submitter.Submit(ctx, BidTemplate{IPO: ipo, Terms: *accepted, BrokerCode: req.BrokerCode}, selected)
		if err != nil {
			return nil, err
		}
		for j, outcome := range submitted.Outcomes {
			outcomes[positions[j]] = outcome
		}
	}

	result := newBatchResult(outcomes, started)
	w.audit.LogBatchSubmission(req.BrokerCode, ipo.ID.String(), result)
	return result, nil
}

// CancelBid deletes a bid so its client becomes eligible again. An empty
// brokerCode cancels on behalf of an admin; otherwise the bid must belong to
// that broker.
func (w *Workflow) CancelBid(ctx context.Context, brokerCode string, bidID uuid.UUID) error {
	err := w.cancelBid(ctx, brokerCode, bidID)
	w.audit.LogCancellation(brokerCode, bidID.String(), err)
	return err
}

func (w *Workflow) cancelBid(ctx context.Context, brokerCode string, bidID uuid.UUID) error {
	bid, err := w.bids.FetchBid(ctx, bidID)
	if err != nil {
		return &FetchError{Source: "bid", Err: err}
	}
	if bid == nil || (brokerCode != "" && bid.BrokerCode != brokerCode) {
		return &NotFoundError{Entity: "bid", ID: bidID.String()}
	}
	return w.bids.DeleteBid(ctx, bidID)
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}
