package shared

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AuditEntry is one audited change, written as a structured log line.
type AuditEntry struct {
	Timestamp   time.Time
	ServiceName string
	Operation   string
	EntityType  string
	EntityID    string
	BrokerCode  string
	Changes     map[string]interface{}
	Success     bool
	ErrorMsg    *string
	Metadata    map[string]interface{}
}

// ErrorMessage returns a pointer to err's message, or nil for a nil error.
func ErrorMessage(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}

// Fields flattens the entry into logrus fields. Metadata keys get a meta_
// prefix.
func (entry AuditEntry) Fields() logrus.Fields {
	fields := logrus.Fields{
		"audit_timestamp": entry.Timestamp,
		"service_name":    entry.ServiceName,
		"operation":       entry.Operation,
		"entity_type":     entry.EntityType,
		"entity_id":       entry.EntityID,
		"success":         entry.Success,
	}

	if entry.BrokerCode != "" {
		fields["broker_code"] = entry.BrokerCode
	}
	if entry.ErrorMsg != nil {
		fields["error_msg"] = *entry.ErrorMsg
	}
	if len(entry.Changes) > 0 {
		fields["changes"] = entry.Changes
	}
	for key, value := range entry.Metadata {
		fields["meta_"+key] = value
	}
	return fields
}

// LogAuditEntry writes the entry at Info, or Warn when the operation failed.
func LogAuditEntry(entry AuditEntry) {
	if entry.Success {
		logrus.WithFields(entry.Fields()).Info("Audit log entry")
	} else {
		logrus.WithFields(entry.Fields()).Warn("Audit log entry - operation failed")
	}
}
