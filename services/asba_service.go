package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/surajvsk/ipo-subbrocker/bidding"
	"github.com/surajvsk/ipo-subbrocker/models"
	"github.com/surajvsk/ipo-subbrocker/shared"
)

const asbaFormTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>ASBA Application - {{.IPOName}}</title>
<style>
body { font-family: Arial, sans-serif; font-size: 12px; margin: 24px; }
h1 { font-size: 16px; text-align: center; margin-bottom: 4px; }
h2 { font-size: 13px; border-bottom: 1px solid #333; margin-top: 18px; }
table { width: 100%; border-collapse: collapse; }
td { border: 1px solid #999; padding: 6px; }
td.label { width: 35%; background: #f2f2f2; font-weight: bold; }
.footer { margin-top: 32px; display: flex; justify-content: space-between; }
</style>
</head>
<body>
<h1>Application Supported by Blocked Amount</h1>
<p style="text-align:center">{{.IPOName}} ({{.Category}} category)</p>

<h2>Applicant</h2>
<table>
<tr><td class="label">Name</td><td>{{.ClientName}}</td></tr>
<tr><td class="label">Client Code</td><td>{{.ClientCode}}</td></tr>
<tr><td class="label">PAN</td><td>{{.PAN}}</td></tr>
<tr><td class="label">DP ID</td><td>{{.DPID}}</td></tr>
<tr><td class="label">UPI ID</td><td>{{.UPIHandle}}</td></tr>
<tr><td class="label">Mobile</td><td>{{.Mobile}}</td></tr>
<tr><td class="label">Email</td><td>{{.Email}}</td></tr>
</table>

<h2>Bid</h2>
<table>
<tr><td class="label">Quantity</td><td>{{.Quantity}}</td></tr>
<tr><td class="label">Price</td><td>{{.Price}}</td></tr>
<tr><td class="label">Amount to Block</td><td>{{.TotalAmount}}</td></tr>
</table>

<h2>Bank Account</h2>
<table>
<tr><td class="label">Bank</td><td>{{.BankName}}</td></tr>
<tr><td class="label">Branch</td><td>{{.Branch}}</td></tr>
<tr><td class="label">ASBA Account</td><td>{{.ASBAAccount}}</td></tr>
</table>

<div class="footer">
<span>Broker: {{.BrokerCode}}</span>
<span>Date: {{.ApplicationDate.Format "02-01-2006"}}</span>
<span>Signature: ____________________</span>
</div>
</body>
</html>
`

var asbaTemplate = template.Must(template.New("asba_form").Parse(asbaFormTemplate))

// ASBARequest asks for a printable form for one client's HNI application.
type ASBARequest struct {
	IPOID     uuid.UUID
	ClientID  uuid.UUID
	Quantity  int
	Price     *decimal.Decimal
	UseCutoff bool
}

type clientLookup interface {
	GetClient(ctx context.Context, brokerCode string, id uuid.UUID) (*models.Client, error)
}

// ASBAFormService builds and renders ASBA forms
type ASBAFormService struct {
	catalog    bidding.IPOCatalog
	clients    clientLookup
	pdfEnabled bool
	pdfTimeout time.Duration
	now        func() time.Time
	printPDF   func(ctx context.Context, html []byte) ([]byte, error)
}

func NewASBAFormService(catalog bidding.IPOCatalog, clients clientLookup, pdfEnabled bool) *ASBAFormService {
	return &ASBAFormService{
		catalog:    catalog,
		clients:    clients,
		pdfEnabled: pdfEnabled,
		pdfTimeout: 30 * time.Second,
		now:        time.Now,
		printPDF:   printHTMLToPDF,
	}
}

// BuildForm validates the terms as an HNI bid and fills in client and bank
// details. Validation failures come back as bidding.ValidationErrors.
func (s *ASBAFormService) BuildForm(ctx context.Context, brokerCode string, req ASBARequest) (*models.ASBAForm, error) {
	ipo, err := s.catalog.FetchIPO(ctx, req.IPOID)
	if err != nil {
		return nil, &bidding.FetchError{Source: "ipo", Err: err}
	}
	if ipo == nil {
		return nil, &bidding.NotFoundError{Entity: "ipo", ID: req.IPOID.String()}
	}

	accepted, err := bidding.ValidateBid(ipo, bidding.BidTerms{
		Category:  models.BidCategoryHNI,
		Quantity:  req.Quantity,
		Price:     req.Price,
		UseCutoff: req.UseCutoff,
	})
	if err != nil {
		return nil, err
	}

	client, err := s.clients.GetClient(ctx, brokerCode, req.ClientID)
	if err != nil {
		return nil, err
	}

	form := &models.ASBAForm{
		IPOName:         ipo.Name,
		ClientName:      client.Name,
		ClientCode:      client.TradingCode,
		PAN:             client.PAN,
		DPID:            client.DPID,
		UPIHandle:       client.UPIHandle,
		Quantity:        accepted.Quantity,
		Price:           accepted.Price,
		TotalAmount:     accepted.Amount,
		Category:        accepted.Category,
		BankName:        valueOrEmpty(client.BankName),
		Branch:          valueOrEmpty(client.Branch),
		ASBAAccount:     valueOrEmpty(client.ASBAAccount),
		Mobile:          client.Mobile,
		Email:           client.Email,
		BrokerCode:      client.BrokerCode,
		ApplicationDate: s.now(),
	}

	logrus.WithFields(logrus.Fields{
		"component":    "ASBAFormService",
		"ipo_id":       ipo.ID,
		"client_code":  form.ClientCode,
		"total_amount": form.TotalAmount.String(),
	}).Info("ASBA form prepared")
	return form, nil
}

// RenderHTML renders the printable form
func (s *ASBAFormService) RenderHTML(form *models.ASBAForm) ([]byte, error) {
	var buf bytes.Buffer
	if err := asbaTemplate.Execute(&buf, form); err != nil {
		return nil, fmt.Errorf("failed to render ASBA form: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderPDF prints the HTML form through headless Chrome
func (s *ASBAFormService) RenderPDF(ctx context.Context, form *models.ASBAForm) ([]byte, error) {
	if !s.pdfEnabled {
		return nil, shared.NewServiceError(shared.ErrorCategoryConfiguration, "PDF_DISABLED",
			"PDF rendering is disabled", "ASBAFormService", "RenderPDF", false, nil)
	}

	html, err := s.RenderHTML(form)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.pdfTimeout)
	defer cancel()

	start := time.Now()
	pdf, err := s.printPDF(ctx, html)
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryConfiguration, "PDF_RENDER_FAILED", "ASBAFormService", "RenderPDF", false)
	}

	logrus.WithFields(logrus.Fields{
		"component":   "ASBAFormService",
		"client_code": form.ClientCode,
		"bytes":       len(pdf),
		"duration":    time.Since(start),
	}).Info("ASBA PDF rendered")
	return pdf, nil
}

func printHTMLToPDF(ctx context.Context, html []byte) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-sandbox", true),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, string(html)).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome print failed: %w", err)
	}
	return pdf, nil
}

func valueOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
