package handlers

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/surajvsk/ipo-subbrocker/models"
	"github.com/surajvsk/ipo-subbrocker/services"
)

type IPOImportSource interface {
	Import(ctx context.Context, pageURL string) (*services.IPODraft, error)
}

type DashboardRefreshRunner interface {
	RunWithContext(ctx context.Context) (*models.DashboardSummary, error)
}

// MetricsProvider returns a JSON-encodable snapshot for /admin/metrics.
type MetricsProvider func() interface{}

type AdminHandler struct {
	Importer         IPOImportSource
	DashboardRefresh DashboardRefreshRunner
	Metrics          map[string]MetricsProvider
	ConnectionStats  func() sql.DBStats
}

func NewAdminHandler(importer IPOImportSource, refresh DashboardRefreshRunner, connectionStats func() sql.DBStats) *AdminHandler {
	return &AdminHandler{
		Importer:         importer,
		DashboardRefresh: refresh,
		Metrics:          make(map[string]MetricsProvider),
		ConnectionStats:  connectionStats,
	}
}

// RegisterMetrics adds a named snapshot to the metrics report.
func (h *AdminHandler) RegisterMetrics(name string, provider MetricsProvider) {
	h.Metrics[name] = provider
}

type importRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// ImportIPO scrapes an IPO detail page into a draft. Nothing is saved; the
// admin reviews the draft and posts it to /admin/ipos.
func (h *AdminHandler) ImportIPO(c *fiber.Ctx) error {
	var req importRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	logrus.WithField("url", req.URL).Info("IPO import requested")
	draft, err := h.Importer.Import(c.UserContext(), req.URL)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, draft)
}

// RefreshDashboard recomputes the cached admin summary on demand.
func (h *AdminHandler) RefreshDashboard(c *fiber.Ctx) error {
	startTime := time.Now()
	summary, err := h.DashboardRefresh.RunWithContext(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"data":     summary,
		"duration": time.Since(startTime).String(),
	})
}

func (h *AdminHandler) GetMetrics(c *fiber.Ctx) error {
	report := make(fiber.Map, len(h.Metrics)+1)
	for name, provider := range h.Metrics {
		report[name] = provider()
	}

	if h.ConnectionStats != nil {
		stats := h.ConnectionStats()
		report["connection_pool"] = fiber.Map{
			"max_open_connections": stats.MaxOpenConnections,
			"open_connections":     stats.OpenConnections,
			"in_use":               stats.InUse,
			"idle":                 stats.Idle,
			"wait_count":           stats.WaitCount,
			"wait_duration":        stats.WaitDuration.String(),
		}
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"data":      report,
		"timestamp": time.Now(),
	})
}
