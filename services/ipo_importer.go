package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/surajvsk/ipo-subbrocker/models"
	"github.com/surajvsk/ipo-subbrocker/shared"
)

// Exchange cap on a single retail application, in rupees.
var retailApplicationCap = decimal.NewFromInt(200000)

// IPODraft is an IPO scraped from a detail page. It is not persisted; the
// admin reviews it and submits it through the catalog.
type IPODraft struct {
	IPO       models.IPO `json:"ipo"`
	SourceURL string     `json:"source_url"`
	OpenDate  *time.Time `json:"open_date,omitempty"`
	CloseDate *time.Time `json:"close_date,omitempty"`
	Warnings  []string   `json:"warnings,omitempty"`
}

// IPOImporter scrapes IPO detail pages into catalog drafts
type IPOImporter struct {
	config      shared.ImporterConfig
	utility     *UtilityService
	rateLimiter *shared.RequestRateLimiter
	metrics     *shared.ServiceMetrics
	now         func() time.Time
}

// NewIPOImporter creates an importer limited to pages under config.BaseURL
func NewIPOImporter(config shared.ImporterConfig) *IPOImporter {
	return &IPOImporter{
		config:      config,
		utility:     NewUtilityService(),
		rateLimiter: shared.NewRequestRateLimiter(config.RequestRateLimit),
		metrics:     shared.NewServiceMetrics("IPOImporter"),
		now:         time.Now,
	}
}

func (s *IPOImporter) Metrics() *shared.ServiceMetrics {
	return s.metrics
}

// RequestCount is the number of page fetches admitted by the rate limiter.
func (s *IPOImporter) RequestCount() int64 {
	return s.rateLimiter.RequestCount()
}

// checkSource rejects URLs outside the configured import host.
func (s *IPOImporter) checkSource(pageURL string) (*url.URL, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, shared.NewValidationError("IPOImporter", "Import", "url must be an absolute http(s) URL")
	}
	if s.config.BaseURL == "" {
		return parsed, nil
	}
	base, err := url.Parse(s.config.BaseURL)
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryConfiguration, "INVALID_BASE_URL", "IPOImporter", "Import", false)
	}
	if !strings.EqualFold(parsed.Host, base.Host) {
		return nil, shared.NewValidationError("IPOImporter", "Import",
			fmt.Sprintf("imports are limited to %s", base.Host))
	}
	return parsed, nil
}

// Import fetches pageURL and parses it into a draft
func (s *IPOImporter) Import(ctx context.Context, pageURL string) (*IPODraft, error) {
	start := time.Now()
	logger := logrus.WithFields(logrus.Fields{
		"component": "IPOImporter",
		"url":       pageURL,
	})

	source, err := s.checkSource(pageURL)
	if err != nil {
		return nil, err
	}
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	c := colly.NewCollector()
	c.WithTransport(shared.NewPooledTransport(s.config.HTTPRequestTimeout))
	c.SetRequestTimeout(s.config.HTTPRequestTimeout)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		shared.SetBrowserLikeHeaders(*r.Headers, s.config.UserAgent)
	})

	var draft *IPODraft
	var parseErr, fetchErr error

	c.OnHTML("html", func(e *colly.HTMLElement) {
		draft, parseErr = s.parseDetailPage(e.DOM)
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
	})

	if err := c.Visit(source.String()); err != nil && fetchErr == nil {
		fetchErr = err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		fetchErr = ctxErr
	}

	switch {
	case fetchErr != nil:
		s.metrics.RecordRequest(false, time.Since(start))
		logger.WithError(fetchErr).Warn("IPO page fetch failed")
		return nil, shared.WrapError(fetchErr, shared.ErrorCategoryNetwork, "FETCH_FAILED", "IPOImporter", "Import", true)
	case parseErr != nil:
		s.metrics.RecordRequest(false, time.Since(start))
		logger.WithError(parseErr).Warn("IPO page could not be parsed")
		return nil, shared.NewValidationError("IPOImporter", "Import", parseErr.Error())
	case draft == nil:
		s.metrics.RecordRequest(false, time.Since(start))
		return nil, shared.NewValidationError("IPOImporter", "Import", "page has no HTML document")
	}

	draft.SourceURL = source.String()
	s.metrics.RecordRequest(true, time.Since(start))
	if len(draft.Warnings) > 0 {
		s.metrics.IncrementCustomCounter("drafts_with_warnings")
	}
	logger.WithFields(logrus.Fields{
		"name":     draft.IPO.Name,
		"category": draft.IPO.Category,
		"warnings": len(draft.Warnings),
		"duration": time.Since(start),
	}).Info("IPO page imported")
	return draft, nil
}

// parseDetailPage reads name, price band, lot size, category and dates from
// a detail page. Price band and lot size are required.
func (s *IPOImporter) parseDetailPage(doc *goquery.Selection) (*IPODraft, error) {
	name := s.extractName(doc)
	if name == "" {
		return nil, errors.New("page has no IPO name")
	}

	var rows []TableRow
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows = append(rows, s.utility.ParseHTMLTable(table)...)
	})
	field := func(fieldName string) string {
		if row, found := s.utility.FindTableRowByLabel(rows, s.utility.GetTargetLabelsForField(fieldName)); found {
			return row.Value
		}
		return ""
	}

	minPrice, maxPrice, ok := s.utility.ParsePriceBand(field("price_band"))
	if !ok {
		return nil, errors.New("price band not found")
	}
	lotSize, ok := s.utility.ParseInteger(field("lot_size"))
	if !ok || lotSize <= 0 {
		return nil, errors.New("lot size not found")
	}

	category := models.IPOCategoryMainboard
	for _, text := range []string{field("listing_at"), field("issue_type"), name} {
		if strings.Contains(strings.ToUpper(text), "SME") {
			category = models.IPOCategorySME
			break
		}
	}

	draft := &IPODraft{
		OpenDate:  s.utility.ParseDate(field("open_date")),
		CloseDate: s.utility.ParseDate(field("close_date")),
	}
	listingDate := s.utility.ParseDate(field("listing_date"))

	draft.IPO = models.IPO{
		Name:         name,
		Category:     category,
		Status:       s.utility.CalculateIPOStatus(s.now(), draft.OpenDate, draft.CloseDate, listingDate),
		PriceBandMin: minPrice.Truncate(0),
		PriceBandMax: maxPrice.Ceil(),
		LotSize:      lotSize,
		RetailMaxLot: retailMaxLots(maxPrice, lotSize),
	}

	if !minPrice.Equal(minPrice.Truncate(0)) || !maxPrice.Equal(maxPrice.Truncate(0)) {
		draft.Warnings = append(draft.Warnings, "fractional price band rounded to whole rupees")
	}
	if draft.OpenDate == nil || draft.CloseDate == nil {
		draft.Warnings = append(draft.Warnings, "issue dates not found; status defaults to Upcoming")
	}
	draft.Warnings = append(draft.Warnings, "hni_max_amount must be set before saving")

	return draft, nil
}

func (s *IPOImporter) extractName(doc *goquery.Selection) string {
	name := s.utility.NormalizeTextContent(doc.Find("h1").First().Text())
	if name == "" {
		name = s.utility.NormalizeTextContent(doc.Find("title").First().Text())
	}
	for _, suffix := range []string{" IPO Details", " IPO"} {
		if idx := strings.Index(name, suffix); idx > 0 {
			name = name[:idx]
			break
		}
	}
	return strings.TrimSpace(name)
}

// retailMaxLots is the largest lot count a retail application can take at
// the upper price without crossing the retail cap, never less than one.
func retailMaxLots(maxPrice decimal.Decimal, lotSize int) int {
	lotValue := maxPrice.Mul(decimal.NewFromInt(int64(lotSize)))
	if !lotValue.IsPositive() {
		return 1
	}
	lots := int(retailApplicationCap.Div(lotValue).Floor().IntPart())
	if lots < 1 {
		return 1
	}
	return lots
}
