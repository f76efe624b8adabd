package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/surajvsk/ipo-subbrocker/models"
	"github.com/surajvsk/ipo-subbrocker/shared"
	"golang.org/x/sync/errgroup"
)

const dashboardCachePrefix = "dashboard:"

// DashboardService aggregates the landing page counters. Summaries are
// cached per broker scope; the refresh job recomputes the admin view.
type DashboardService struct {
	sqlStore
	cache   *CacheService
	ttl     time.Duration
	compute func(ctx context.Context, brokerCode string) (*models.DashboardSummary, error)
}

func NewDashboardService(db *sql.DB, cache *CacheService, ttl time.Duration) *DashboardService {
	s := &DashboardService{
		sqlStore: newSQLStore(db),
		cache:    cache,
		ttl:      ttl,
	}
	s.compute = s.computeSummary
	return s
}

func dashboardCacheKey(brokerCode string) string {
	if brokerCode == "" {
		return dashboardCachePrefix + "all"
	}
	return dashboardCachePrefix + brokerCode
}

// Summary returns the cached summary for the scope, computing it on a miss.
// An empty brokerCode is the admin-wide view.
func (s *DashboardService) Summary(ctx context.Context, brokerCode string) (*models.DashboardSummary, error) {
	if cached, found := s.cache.Get(dashboardCacheKey(brokerCode)); found {
		if summary, ok := cached.(*models.DashboardSummary); ok {
			return summary, nil
		}
	}
	return s.Refresh(ctx, brokerCode)
}

// Refresh recomputes the summary and replaces the cached copy.
func (s *DashboardService) Refresh(ctx context.Context, brokerCode string) (*models.DashboardSummary, error) {
	summary, err := s.compute(ctx, brokerCode)
	if err != nil {
		return nil, err
	}
	s.cache.SetWithTTL(dashboardCacheKey(brokerCode), summary, s.ttl)
	return summary, nil
}

// Invalidate drops every cached summary, e.g. after bids change.
func (s *DashboardService) Invalidate() {
	s.cache.DeletePrefix(dashboardCachePrefix)
}

func (s *DashboardService) computeSummary(ctx context.Context, brokerCode string) (*models.DashboardSummary, error) {
	start := time.Now()
	summary := &models.DashboardSummary{
		BrokerCode:  brokerCode,
		GeneratedAt: start,
	}

	bidScope, bidArgs := "", []interface{}{}
	if brokerCode != "" {
		bidScope, bidArgs = " WHERE broker_code = $1", []interface{}{brokerCode}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.count(gctx, &summary.TotalIPOs, "SELECT COUNT(*) FROM ipos")
	})
	g.Go(func() error {
		return s.count(gctx, &summary.ActiveIPOs, "SELECT COUNT(*) FROM ipos WHERE status = $1", models.IPOStatusActive)
	})
	g.Go(func() error {
		return s.count(gctx, &summary.TotalApplications, "SELECT COUNT(*) FROM bids"+bidScope, bidArgs...)
	})
	g.Go(func() error {
		return s.count(gctx, &summary.TotalClients, "SELECT COUNT(*) FROM clients"+bidScope, bidArgs...)
	})
	if brokerCode == "" {
		g.Go(func() error {
			return s.count(gctx, &summary.TotalBrokers, "SELECT COUNT(*) FROM brokers WHERE role = $1", models.BrokerRoleSubBroker)
		})
	}
	g.Go(func() error {
		counts, err := s.groupCounts(gctx, "SELECT exchange_status, COUNT(*) FROM bids"+bidScope+" GROUP BY exchange_status", bidArgs...)
		if err != nil {
			return err
		}
		summary.ByExchangeStatus = make(map[models.ExchangeStatus]int, len(models.ExchangeStatuses))
		for _, status := range models.ExchangeStatuses {
			summary.ByExchangeStatus[status] = counts[string(status)]
		}
		return nil
	})
	g.Go(func() error {
		counts, err := s.groupCounts(gctx, "SELECT sponsor_bank_status, COUNT(*) FROM bids"+bidScope+" GROUP BY sponsor_bank_status", bidArgs...)
		if err != nil {
			return err
		}
		summary.BySponsorStatus = make(map[models.SponsorBankStatus]int)
		for status, n := range counts {
			summary.BySponsorStatus[models.SponsorBankStatus(status)] = n
		}
		return nil
	})
	g.Go(func() error {
		query := "SELECT i.category, COUNT(*) FROM bids b JOIN ipos i ON i.id = b.ipo_id"
		if brokerCode != "" {
			query += " WHERE b.broker_code = $1"
		}
		counts, err := s.groupCounts(gctx, query+" GROUP BY i.category", bidArgs...)
		if err != nil {
			return err
		}
		summary.ByIPOCategory = map[models.IPOCategory]int{
			models.IPOCategoryMainboard: counts[string(models.IPOCategoryMainboard)],
			models.IPOCategorySME:       counts[string(models.IPOCategorySME)],
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "AGGREGATE_FAILED", "DashboardService", "Summary", shared.IsRetryableError(err))
	}

	logrus.WithFields(logrus.Fields{
		"broker_code":        brokerCode,
		"total_applications": summary.TotalApplications,
		"duration":           time.Since(start),
	}).Debug("Dashboard summary computed")

	return summary, nil
}

func (s *DashboardService) count(ctx context.Context, dest *int, query string, args ...interface{}) error {
	err := s.run(ctx, func() error {
		return s.DB.QueryRowContext(ctx, query, args...).Scan(dest)
	})
	if err != nil {
		return fmt.Errorf("count query failed: %w", err)
	}
	return nil
}

func (s *DashboardService) groupCounts(ctx context.Context, query string, args ...interface{}) (map[string]int, error) {
	counts := make(map[string]int)
	err := s.run(ctx, func() error {
		rows, err := s.DB.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		clear(counts)
		for rows.Next() {
			var key string
			var n int
			if err := rows.Scan(&key, &n); err != nil {
				return err
			}
			counts[key] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("group count query failed: %w", err)
	}
	return counts, nil
}
