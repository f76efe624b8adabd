package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/surajvsk/ipo-subbrocker/models"
)

type DashboardRefresher interface {
	Refresh(ctx context.Context, brokerCode string) (*models.DashboardSummary, error)
}

// DashboardRefreshJob recomputes the admin-wide summary into the cache.
type DashboardRefreshJob struct {
	Dashboard DashboardRefresher
	Timeout   time.Duration
}

func NewDashboardRefreshJob(dashboard DashboardRefresher) *DashboardRefreshJob {
	return &DashboardRefreshJob{Dashboard: dashboard, Timeout: 2 * time.Minute}
}

func (j *DashboardRefreshJob) Name() string { return "dashboard_refresh" }

func (j *DashboardRefreshJob) Run() {
	if _, err := j.RunWithContext(context.Background()); err != nil {
		logrus.Errorf("Dashboard refresh failed: %v", err)
	}
}

// RunWithContext refreshes once and returns the new summary.
func (j *DashboardRefreshJob) RunWithContext(ctx context.Context) (*models.DashboardSummary, error) {
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(ctx, j.Timeout)
	defer cancel()

	summary, err := j.Dashboard.Refresh(ctx, "")
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"total_applications": summary.TotalApplications,
		"duration":           time.Since(startTime),
	}).Debug("Dashboard summary refreshed")
	return summary, nil
}
