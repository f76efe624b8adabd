package shared

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditEntryFields(t *testing.T) {
	entry := AuditEntry{
		Timestamp:   time.Now(),
		ServiceName: "bid-workflow",
		Operation:   "BATCH_CREATE",
		EntityType:  "BID",
		EntityID:    "ipo-1",
		BrokerCode:  "SB001",
		Success:     false,
		ErrorMsg:    ErrorMessage(errors.New("1 failure")),
		Metadata:    map[string]interface{}{"state": "partial"},
	}

	fields := entry.Fields()
	assert.Equal(t, "SB001", fields["broker_code"])
	assert.Equal(t, "1 failure", fields["error_msg"])
	assert.Equal(t, "partial", fields["meta_state"])
	assert.NotContains(t, fields, "changes")

	entry.BrokerCode = ""
	assert.NotContains(t, entry.Fields(), "broker_code")
	assert.Nil(t, ErrorMessage(nil))
}

func TestLogAuditEntryLevels(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	LogAuditEntry(AuditEntry{Operation: "DELETE", EntityType: "IPO", Success: true})
	LogAuditEntry(AuditEntry{Operation: "DELETE", EntityType: "IPO", Success: false})

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, logrus.InfoLevel, entries[0].Level)
	assert.Equal(t, logrus.WarnLevel, entries[1].Level)
	assert.Equal(t, "DELETE", entries[1].Data["operation"])
}
