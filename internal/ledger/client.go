package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/duespay/duespay/internal/config"
	domainLedger "github.com/duespay/duespay/internal/domain/ledger"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/httpclient"
	"github.com/duespay/duespay/internal/logger"
	"github.com/shopspring/decimal"
)

// Client is the HTTP implementation of the ledger collaborator. Every call
// is single-shot with a bounded timeout; transient failures surface to the
// caller and the next scheduled run retries naturally.
type Client struct {
	http    httpclient.Client
	baseURL string
	apiKey  string
	logger  *logger.Logger
}

// NewClient creates a ledger client from configuration
func NewClient(cfg *config.Configuration, log *logger.Logger) *Client {
	timeout := cfg.Ledger.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http:    httpclient.NewClientWithTimeout(timeout),
		baseURL: strings.TrimRight(cfg.Ledger.BaseURL, "/"),
		apiKey:  cfg.Ledger.APIKey,
		logger:  log,
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.apiKey,
		"Accept":        "application/json",
	}
}

// CreateInvoice performs the ledger's check-and-create. A 409 means a
// non-cancelled invoice already covers the period; the existing id is
// returned marked ErrAlreadyExists so callers can treat the run as
// idempotent.
func (c *Client) CreateInvoice(ctx context.Context, req *domainLedger.CreateInvoiceRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to encode invoice request").
			Mark(ierr.ErrSystem)
	}

	resp, err := c.http.Send(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL + "/v1/invoices",
		Headers: c.headers(),
		Body:    body,
	})
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Ledger invoice creation failed").
			WithReportableDetails(map[string]any{
				"schedule_id":    req.ScheduleID,
				"coverage_start": req.CoverageStart.Format(time.DateOnly),
			}).
			Mark(ierr.ErrLedger)
	}

	var out struct {
		ID string `json:"id"`
	}

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		if err := json.Unmarshal(resp.Body, &out); err != nil {
			return "", ierr.WithError(err).
				WithHint("Ledger returned an unreadable invoice response").
				Mark(ierr.ErrLedger)
		}
		return out.ID, nil
	case http.StatusConflict:
		if err := json.Unmarshal(resp.Body, &out); err != nil {
			return "", ierr.WithError(err).
				WithHint("Ledger returned an unreadable conflict response").
				Mark(ierr.ErrLedger)
		}
		return out.ID, ierr.NewError("invoice already exists for period").
			WithHint("A non-cancelled invoice already covers this period").
			WithReportableDetails(map[string]any{
				"invoice_id":  out.ID,
				"schedule_id": req.ScheduleID,
			}).
			Mark(ierr.ErrAlreadyExists)
	default:
		return "", c.statusError(resp, "invoice creation")
	}
}

// GetInvoice returns a single invoice by id
func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (*domainLedger.Invoice, error) {
	resp, err := c.http.Send(ctx, &httpclient.Request{
		Method:  http.MethodGet,
		URL:     fmt.Sprintf("%s/v1/invoices/%s", c.baseURL, url.PathEscape(invoiceID)),
		Headers: c.headers(),
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Ledger invoice lookup failed").
			WithReportableDetails(map[string]any{"invoice_id": invoiceID}).
			Mark(ierr.ErrLedger)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ierr.NewError("invoice not found").
			WithHint("Invoice was not found in the ledger").
			WithReportableDetails(map[string]any{"invoice_id": invoiceID}).
			Mark(ierr.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp, "invoice lookup")
	}

	var inv domainLedger.Invoice
	if err := json.Unmarshal(resp.Body, &inv); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Ledger returned an unreadable invoice").
			Mark(ierr.ErrLedger)
	}
	return &inv, nil
}

// GetOutstandingInvoices returns outstanding, non-cancelled invoices
// matching the filter
func (c *Client) GetOutstandingInvoices(ctx context.Context, filter *domainLedger.OutstandingInvoicesFilter) ([]*domainLedger.Invoice, error) {
	body, err := json.Marshal(filter)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to encode invoice filter").
			Mark(ierr.ErrSystem)
	}

	resp, err := c.http.Send(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL + "/v1/invoices/outstanding/search",
		Headers: c.headers(),
		Body:    body,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Ledger outstanding-invoice query failed").
			Mark(ierr.ErrLedger)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp, "outstanding-invoice query")
	}

	var out struct {
		Items []*domainLedger.Invoice `json:"items"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Ledger returned an unreadable invoice list").
			Mark(ierr.ErrLedger)
	}
	return out.Items, nil
}

// HasInvoiceForPeriod reports whether a non-cancelled invoice covers the
// given period for the schedule
func (c *Client) HasInvoiceForPeriod(ctx context.Context, scheduleID string, coverageStart string) (bool, error) {
	q := url.Values{}
	q.Set("schedule_id", scheduleID)
	q.Set("coverage_start", coverageStart)

	resp, err := c.http.Send(ctx, &httpclient.Request{
		Method:  http.MethodGet,
		URL:     c.baseURL + "/v1/invoices/period?" + q.Encode(),
		Headers: c.headers(),
	})
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Ledger period lookup failed").
			WithReportableDetails(map[string]any{
				"schedule_id":    scheduleID,
				"coverage_start": coverageStart,
			}).
			Mark(ierr.ErrLedger)
	}
	if resp.StatusCode != http.StatusOK {
		return false, c.statusError(resp, "period lookup")
	}

	var out struct {
		Exists bool `json:"exists"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return false, ierr.WithError(err).
			WithHint("Ledger returned an unreadable period response").
			Mark(ierr.ErrLedger)
	}
	return out.Exists, nil
}

// GetOutstandingAmount returns the open amount on an invoice
func (c *Client) GetOutstandingAmount(ctx context.Context, invoiceID string) (decimal.Decimal, error) {
	inv, err := c.GetInvoice(ctx, invoiceID)
	if err != nil {
		return decimal.Zero, err
	}
	return inv.Outstanding, nil
}

func (c *Client) statusError(resp *httpclient.Response, op string) error {
	c.logger.Errorw("ledger request failed",
		"operation", op,
		"status_code", resp.StatusCode,
	)
	return ierr.NewErrorf("ledger %s returned status %d", op, resp.StatusCode).
		WithHint("The ledger rejected the request").
		WithReportableDetails(map[string]any{
			"operation":   op,
			"status_code": resp.StatusCode,
		}).
		Mark(ierr.ErrLedger)
}
