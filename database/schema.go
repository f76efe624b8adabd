package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// requiredConstraints lists the uniqueness rules the bid workflow depends on.
var requiredConstraints = map[string][]string{
	"ipos":         {"ipos_pkey"},
	"brokers":      {"brokers_broker_code_key", "brokers_username_key"},
	"clients":      {"clients_broker_trading_code_key"},
	"bids":         {"bids_ipo_client_key", "bids_application_number_key"},
	"upi_handlers": {"upi_handlers_name_key"},
}

// SchemaReport lists what VerifySchema found missing.
type SchemaReport struct {
	MissingTables      []string
	MissingConstraints []string
}

func (r *SchemaReport) Valid() bool {
	return len(r.MissingTables) == 0 && len(r.MissingConstraints) == 0
}

// VerifySchema checks that every table and unique constraint exists.
func VerifySchema(ctx context.Context, db *sql.DB) (*SchemaReport, error) {
	report := &SchemaReport{}

	for table, constraints := range requiredConstraints {
		exists, err := tableExists(ctx, db, table)
		if err != nil {
			return nil, fmt.Errorf("failed to check table %s: %w", table, err)
		}
		if !exists {
			report.MissingTables = append(report.MissingTables, table)
			continue
		}

		present, err := tableConstraints(ctx, db, table)
		if err != nil {
			return nil, fmt.Errorf("failed to list constraints for %s: %w", table, err)
		}
		for _, name := range constraints {
			if !present[name] {
				report.MissingConstraints = append(report.MissingConstraints, name)
			}
		}
	}

	if !report.Valid() {
		logrus.WithFields(logrus.Fields{
			"missing_tables":      strings.Join(report.MissingTables, ","),
			"missing_constraints": strings.Join(report.MissingConstraints, ","),
		}).Warn("Schema verification found issues")
	}
	return report, nil
}

func tableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`
	var exists bool
	err := db.QueryRowContext(ctx, query, tableName).Scan(&exists)
	return exists, err
}

func tableConstraints(ctx context.Context, db *sql.DB, tableName string) (map[string]bool, error) {
	query := `
		SELECT constraint_name
		FROM information_schema.table_constraints
		WHERE table_schema = 'public' AND table_name = $1
	`
	rows, err := db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	constraints := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		constraints[name] = true
	}
	return constraints, rows.Err()
}
