package bidding

import (
	"fmt"
	"time"

	"github.com/surajvsk/ipo-subbrocker/shared"
)

// AuditLogger writes one structured log line per bid-changing operation.
type AuditLogger struct {
	serviceName string
}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{serviceName: "bid-workflow"}
}

// LogBatchSubmission records the aggregate of one batch placement.
func (a *AuditLogger) LogBatchSubmission(brokerCode, ipoID string, result *BatchResult) {
	total := len(result.Outcomes)
	entry := shared.AuditEntry{
		Timestamp:   time.Now(),
		ServiceName: a.serviceName,
		Operation:   "BATCH_CREATE",
		EntityType:  "BID",
		EntityID:    ipoID,
		BrokerCode:  brokerCode,
		Success:     result.Failed == 0,
		Metadata: map[string]interface{}{
			"total_count":   total,
			"success_count": result.Created,
			"failure_count": result.Failed,
			"state":         result.State(),
		},
	}

	if result.Failed > 0 {
		errorSummary := fmt.Sprintf("Batch operation had %d failures out of %d total operations", result.Failed, total)
		entry.ErrorMsg = &errorSummary
	}

	shared.LogAuditEntry(entry)
}

// LogCancellation records a bid deletion ("rebid").
func (a *AuditLogger) LogCancellation(brokerCode, bidID string, err error) {
	shared.LogAuditEntry(shared.AuditEntry{
		Timestamp:   time.Now(),
		ServiceName: a.serviceName,
		Operation:   "DELETE",
		EntityType:  "BID",
		EntityID:    bidID,
		BrokerCode:  brokerCode,
		Success:     err == nil,
		ErrorMsg:    shared.ErrorMessage(err),
	})
}
