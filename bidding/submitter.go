package bidding

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/surajvsk/ipo-subbrocker/models"
	"github.com/surajvsk/ipo-subbrocker/shared"
	"golang.org/x/sync/errgroup"
)

type OutcomeStatus string

const (
	OutcomeCreated OutcomeStatus = "created"
	OutcomeFailed  OutcomeStatus = "failed"
)

// FailureKind classifies a failed outcome.
type FailureKind string

const (
	FailureWrite       FailureKind = "write"
	FailureDuplicate   FailureKind = "duplicate"
	FailureCancelled   FailureKind = "cancelled"
	FailureNotEligible FailureKind = "not_eligible"
)

// ClientOutcome is the result of placing one client's bid. Bid is set for
// created outcomes; Kind, Reason and Err for failed ones.
type ClientOutcome struct {
	ClientID   uuid.UUID     `json:"client_id"`
	ClientCode string        `json:"client_code,omitempty"`
	ClientName string        `json:"client_name,omitempty"`
	Status     OutcomeStatus `json:"status"`
	Bid        *models.Bid   `json:"bid,omitempty"`
	Kind       FailureKind   `json:"failure_kind,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Err        error         `json:"-"`
}

type BatchState string

const (
	BatchNoneSubmitted BatchState = "none_submitted"
	BatchPartial       BatchState = "partial"
	BatchAllSubmitted  BatchState = "all_submitted"
)

// BatchResult aggregates per-client outcomes of one placement.
type BatchResult struct {
	Outcomes       []ClientOutcome `json:"outcomes"`
	Created        int             `json:"created"`
	Failed         int             `json:"failed"`
	ErrorSummary   string          `json:"error_summary,omitempty"`
	ProcessingTime time.Duration   `json:"processing_time"`
}

func newBatchResult(outcomes []ClientOutcome, started time.Time) *BatchResult {
	result := &BatchResult{Outcomes: outcomes, ProcessingTime: time.Since(started)}

	var sampleErrors []error
	for _, outcome := range outcomes {
		if outcome.Status == OutcomeCreated {
			result.Created++
			continue
		}
		result.Failed++
		if outcome.Err != nil && len(sampleErrors) < 3 {
			sampleErrors = append(sampleErrors, outcome.Err)
		}
	}
	if result.Failed > 0 {
		result.ErrorSummary = shared.BuildBatchProcessingErrorSummary(result.Created, result.Failed, sampleErrors)
	}
	return result
}

func (r *BatchResult) State() BatchState {
	switch {
	case r.Created == 0:
		return BatchNoneSubmitted
	case r.Failed == 0:
		return BatchAllSubmitted
	default:
		return BatchPartial
	}
}

// WriteErrors returns the write failures in outcome order.
func (r *BatchResult) WriteErrors() []*WriteError {
	var writeErrs []*WriteError
	for _, outcome := range r.Outcomes {
		var writeErr *WriteError
		if errors.As(outcome.Err, &writeErr) {
			writeErrs = append(writeErrs, writeErr)
		}
	}
	return writeErrs
}

// BidTemplate is the validated part shared by every bid of a batch.
type BidTemplate struct {
	IPO        *models.IPO
	Terms      Accepted
	BrokerCode string
}

// BatchSubmitter writes one bid per selected client. Writes run concurrently
// up to the configured limit and a failure never stops the others.
type BatchSubmitter struct {
	store   BidStore
	numbers ApplicationNumberGenerator
	config  shared.BatchConfig
	metrics *shared.ServiceMetrics
}

func NewBatchSubmitter(store BidStore, config shared.BatchConfig) *BatchSubmitter {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 1
	}
	if config.ApplicationNumberRetries <= 0 {
		config.ApplicationNumberRetries = 1
	}
	return &BatchSubmitter{
		store:   store,
		numbers: UUIDApplicationNumbers{},
		config:  config,
		metrics: shared.NewServiceMetrics("Batch_Bid_Submitter"),
	}
}

// WithApplicationNumbers replaces the application number generator.
func (s *BatchSubmitter) WithApplicationNumbers(numbers ApplicationNumberGenerator) *BatchSubmitter {
	s.numbers = numbers
	return s
}

func (s *BatchSubmitter) Metrics() *shared.ServiceMetrics {
	return s.metrics
}

// Submit places one bid per client. The returned error is non-nil only for
// an unusable request (no clients, no IPO); write failures are reported in
// the result. When ctx ends mid-batch, clients not yet written are reported
// as cancelled and bids already created stay persisted.
func (s *BatchSubmitter) Submit(ctx context.Context, template BidTemplate, clients []models.Client) (*BatchResult, error) {
	var errs ValidationErrors
	if template.IPO == nil {
		errs = append(errs, ValidationError{Code: CodeIPORequired, Field: "ipo"})
	}
	if len(clients) == 0 {
		errs = append(errs, ValidationError{Code: CodeNoClientsSelected, Field: "clients"})
	}
	if len(errs) > 0 {
		return nil, errs
	}

	started := time.Now()
	outcomes := make([]ClientOutcome, len(clients))

	var group errgroup.Group
	group.SetLimit(s.config.MaxConcurrency)
	for i, client := range clients {
		group.Go(func() error {
			outcomes[i] = s.submitOne(ctx, template, client)
			return nil
		})
	}
	_ = group.Wait()

	result := newBatchResult(outcomes, started)
	s.metrics.AddToCounter("bids_created", int64(result.Created))
	s.metrics.AddToCounter("bids_failed", int64(result.Failed))

	logrus.WithFields(logrus.Fields{
		"component":   "BatchSubmitter",
		"ipo_id":      template.IPO.ID,
		"broker_code": template.BrokerCode,
		"total":       len(clients),
		"created":     result.Created,
		"failed":      result.Failed,
		"duration":    result.ProcessingTime,
	}).Info("Bid batch submitted")

	return result, nil
}

func (s *BatchSubmitter) submitOne(ctx context.Context, template BidTemplate, client models.Client) ClientOutcome {
	outcome := ClientOutcome{
		ClientID:   client.ID,
		ClientCode: client.TradingCode,
		ClientName: client.Name,
	}

	if err := ctx.Err(); err != nil {
		return failOutcome(outcome, err)
	}

	input := models.BidInput{
		IPOID:      template.IPO.ID,
		IPOName:    template.IPO.Name,
		ClientCode: client.TradingCode,
		ClientName: client.Name,
		PAN:        client.PAN,
		UPIHandle:  client.UPIHandle,
		Quantity:   template.Terms.Quantity,
		Price:      template.Terms.Price,
		Amount:     template.Terms.Amount,
		UseCutoff:  template.Terms.UseCutoff,
		Category:   template.Terms.Category,
		BrokerCode: template.BrokerCode,
	}

	started := time.Now()
	var lastErr error
	for attempt := 0; attempt < s.config.ApplicationNumberRetries; attempt++ {
		input.ApplicationNumber = s.numbers.Next()

		bid, err := s.store.CreateBid(ctx, input)
		if err == nil {
			s.metrics.RecordRequest(true, time.Since(started))
			outcome.Status = OutcomeCreated
			outcome.Bid = bid
			return outcome
		}

		lastErr = err
		if !errors.Is(err, ErrApplicationNumberTaken) {
			break
		}
		logrus.WithFields(logrus.Fields{
			"client_code":        client.TradingCode,
			"application_number": input.ApplicationNumber,
			"attempt":            attempt + 1,
		}).Warn("Application number collision, regenerating")
	}

	s.metrics.RecordRequest(false, time.Since(started))
	logrus.WithFields(logrus.Fields{
		"component":   "BatchSubmitter",
		"client_code": client.TradingCode,
		"ipo_id":      template.IPO.ID,
		"error":       lastErr,
	}).Warn("Bid creation failed")

	return failOutcome(outcome, lastErr)
}

func failOutcome(outcome ClientOutcome, err error) ClientOutcome {
	outcome.Status = OutcomeFailed
	outcome.Err = &WriteError{ClientCode: outcome.ClientCode, Err: err}
	outcome.Reason = outcome.Err.Error()

	switch {
	case errors.Is(err, ErrDuplicateBid):
		outcome.Kind = FailureDuplicate
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome.Kind = FailureCancelled
	default:
		outcome.Kind = FailureWrite
	}
	return outcome
}
