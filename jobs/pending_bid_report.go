package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/surajvsk/ipo-subbrocker/models"
)

type PendingBidCounter interface {
	PendingByIPO(ctx context.Context) ([]models.PendingBidCount, error)
}

// PendingBidReportJob logs, per IPO, the bids the exchange has not yet
// acknowledged.
type PendingBidReportJob struct {
	Bids    PendingBidCounter
	Timeout time.Duration
}

func NewPendingBidReportJob(bids PendingBidCounter) *PendingBidReportJob {
	return &PendingBidReportJob{Bids: bids, Timeout: time.Minute}
}

func (j *PendingBidReportJob) Name() string { return "pending_bid_report" }

func (j *PendingBidReportJob) Run() {
	if _, err := j.Report(context.Background()); err != nil {
		logrus.Errorf("Pending bid report failed: %v", err)
	}
}

// Report returns the total pending count after logging each IPO's share.
func (j *PendingBidReportJob) Report(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, j.Timeout)
	defer cancel()

	counts, err := j.Bids.PendingByIPO(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, count := range counts {
		total += count.Pending
		logrus.WithFields(logrus.Fields{
			"ipo_id":   count.IPOID,
			"ipo_name": count.IPOName,
			"pending":  count.Pending,
		}).Info("Bids pending at exchange")
	}
	if total == 0 {
		logrus.Info("No bids pending at exchange")
	}
	return total, nil
}
