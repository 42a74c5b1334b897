package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Collaborator is the narrow interface to the external ledger/accounting
// system that owns invoices and payments. All calls carry bounded timeouts;
// a failure for one schedule must never abort processing of the others.
type Collaborator interface {
	// CreateInvoice performs a transactional check-and-create: if a
	// non-cancelled invoice already exists for the request's schedule and
	// coverage period (or its idempotency key), it returns that invoice's id
	// marked with ErrAlreadyExists instead of creating a duplicate.
	CreateInvoice(ctx context.Context, req *CreateInvoiceRequest) (string, error)

	// GetInvoice returns a single invoice by id
	GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error)

	// GetOutstandingInvoices returns outstanding, non-cancelled invoices
	// matching the filter
	GetOutstandingInvoices(ctx context.Context, filter *OutstandingInvoicesFilter) ([]*Invoice, error)

	// HasInvoiceForPeriod reports whether a non-cancelled invoice covers the
	// given period for the schedule
	HasInvoiceForPeriod(ctx context.Context, scheduleID string, coverageStart string) (bool, error)

	// GetOutstandingAmount returns the open amount on an invoice
	GetOutstandingAmount(ctx context.Context, invoiceID string) (decimal.Decimal, error)
}
