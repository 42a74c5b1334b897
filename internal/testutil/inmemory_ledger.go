package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/duespay/duespay/internal/domain/ledger"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// InMemoryLedger implements ledger.Collaborator with the same check-and-create
// semantics the real ledger exposes: at most one non-cancelled invoice per
// (schedule, coverage period), duplicates reported with ErrAlreadyExists.
type InMemoryLedger struct {
	mu       sync.RWMutex
	invoices map[string]*ledger.Invoice
	periods  map[string]string // (schedule, coverage_start) -> invoice id
	seq      int

	// CreateErr, when set, fails every CreateInvoice call; tests use it to
	// simulate ledger outages
	CreateErr error
}

// NewInMemoryLedger creates a new in-memory ledger collaborator
func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		invoices: make(map[string]*ledger.Invoice),
		periods:  make(map[string]string),
	}
}

// Clear resets all stored data
func (l *InMemoryLedger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.invoices = make(map[string]*ledger.Invoice)
	l.periods = make(map[string]string)
	l.seq = 0
	l.CreateErr = nil
}

func periodLedgerKey(scheduleID string, coverageStart time.Time) string {
	return fmt.Sprintf("%s:%s", scheduleID, coverageStart.Format(time.DateOnly))
}

// AddInvoice seeds an invoice fixture directly, bypassing period checks
func (l *InMemoryLedger) AddInvoice(inv *ledger.Invoice) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.invoices[inv.ID] = inv
	if inv.InvoiceStatus != ledger.InvoiceStatusCancelled {
		l.periods[periodLedgerKey(inv.ScheduleID, inv.CoverageStart)] = inv.ID
	}
}

func (l *InMemoryLedger) CreateInvoice(ctx context.Context, req *ledger.CreateInvoiceRequest) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.CreateErr != nil {
		return "", l.CreateErr
	}

	key := periodLedgerKey(req.ScheduleID, req.CoverageStart)
	if existing, ok := l.periods[key]; ok {
		return existing, ierr.NewError("invoice already exists for period").
			WithHint("A non-cancelled invoice already covers this period").
			WithReportableDetails(map[string]any{
				"schedule_id":    req.ScheduleID,
				"coverage_start": req.CoverageStart.Format(time.DateOnly),
			}).
			Mark(ierr.ErrAlreadyExists)
	}

	l.seq++
	inv := &ledger.Invoice{
		ID:            fmt.Sprintf("inv_%06d", l.seq),
		ScheduleID:    req.ScheduleID,
		MemberID:      req.MemberID,
		Amount:        req.Amount,
		Outstanding:   req.Amount,
		Currency:      req.Currency,
		CoverageStart: req.CoverageStart,
		CoverageEnd:   req.CoverageEnd,
		InvoiceStatus: ledger.InvoiceStatusOutstanding,
		DueDate:       req.DueDate,
	}
	l.invoices[inv.ID] = inv
	l.periods[key] = inv.ID
	return inv.ID, nil
}

func (l *InMemoryLedger) GetInvoice(ctx context.Context, invoiceID string) (*ledger.Invoice, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	inv, ok := l.invoices[invoiceID]
	if !ok {
		return nil, ierr.NewError("invoice not found").
			WithHint("The requested invoice does not exist").
			WithReportableDetails(map[string]any{"invoice_id": invoiceID}).
			Mark(ierr.ErrNotFound)
	}
	return inv, nil
}

func (l *InMemoryLedger) GetOutstandingInvoices(ctx context.Context, filter *ledger.OutstandingInvoicesFilter) ([]*ledger.Invoice, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*ledger.Invoice, 0)
	for _, inv := range l.invoices {
		if inv.InvoiceStatus != ledger.InvoiceStatusOutstanding || !inv.Outstanding.IsPositive() {
			continue
		}
		if filter != nil {
			if len(filter.ScheduleIDs) > 0 && !lo.Contains(filter.ScheduleIDs, inv.ScheduleID) {
				continue
			}
			if filter.PaymentMethod != nil && inv.PaymentMethod != *filter.PaymentMethod {
				continue
			}
			if filter.DueBefore != nil && inv.DueDate.After(*filter.DueBefore) {
				continue
			}
		}
		out = append(out, inv)
	}
	// Stable order keeps batch composition deterministic across runs
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (l *InMemoryLedger) HasInvoiceForPeriod(ctx context.Context, scheduleID string, coverageStart string) (bool, error) {
	start, err := time.Parse(time.DateOnly, coverageStart)
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Coverage start must be a valid date").
			Mark(ierr.ErrValidation)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.periods[periodLedgerKey(scheduleID, start)]
	return ok, nil
}

func (l *InMemoryLedger) GetOutstandingAmount(ctx context.Context, invoiceID string) (decimal.Decimal, error) {
	inv, err := l.GetInvoice(ctx, invoiceID)
	if err != nil {
		return decimal.Zero, err
	}
	return inv.Outstanding, nil
}
