package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/surajvsk/ipo-subbrocker/shared"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// sqlStore is the common base of the Postgres-backed services: a pool,
// retry policy for transient driver errors and query metrics.
type sqlStore struct {
	DB        *sql.DB
	retry     shared.RetryConfig
	dbMetrics *shared.DatabaseMetrics
}

func newSQLStore(db *sql.DB) sqlStore {
	config := shared.NewDefaultUnifiedConfiguration()
	return sqlStore{
		DB:        db,
		retry:     config.Retry,
		dbMetrics: shared.NewDatabaseMetrics(config.Database.SlowQueryThreshold),
	}
}

// run executes operation with retry and records its total duration.
func (s *sqlStore) run(ctx context.Context, operation func() error) error {
	start := time.Now()
	err := shared.ExecuteWithRetry(ctx, s.retry, operation)
	s.dbMetrics.RecordQuery(err == nil || errors.Is(err, sql.ErrNoRows), time.Since(start))
	return err
}

// runOnce executes a non-idempotent operation exactly once. A lost response
// after a commit must surface as an error, not as a second attempt.
func (s *sqlStore) runOnce(operation func() error) error {
	start := time.Now()
	err := operation()
	s.dbMetrics.RecordQuery(err == nil, time.Since(start))
	return err
}

// DatabaseMetrics exposes the service's query counters.
func (s *sqlStore) DatabaseMetrics() shared.DatabaseMetricsSnapshot {
	return s.dbMetrics.GetSnapshot()
}

// violatedConstraint returns the constraint name when err is a Postgres error
// with the given SQLSTATE code.
func violatedConstraint(err error, code string) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == code {
		return pqErr.Constraint, true
	}
	return "", false
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}
