package ledger

import (
	"time"

	"github.com/duespay/duespay/internal/types"
	"github.com/shopspring/decimal"
)

// Invoice is the engine's read model of an invoice owned by the external
// ledger. Relations are carried as ids and resolved through the
// collaborator, never as embedded object graphs.
type Invoice struct {
	ID            string               `json:"id"`
	ScheduleID    string               `json:"schedule_id"`
	MemberID      string               `json:"member_id"`
	Amount        decimal.Decimal      `json:"amount"`
	Outstanding   decimal.Decimal      `json:"outstanding"`
	Currency      string               `json:"currency"`
	CoverageStart time.Time            `json:"coverage_start"`
	CoverageEnd   time.Time            `json:"coverage_end"`
	InvoiceStatus InvoiceStatus        `json:"invoice_status"`
	DueDate       time.Time            `json:"due_date"`
	PaymentMethod types.PaymentMethodType `json:"payment_method"`
	Metadata      types.Metadata       `json:"metadata,omitempty"`
}

// InvoiceStatus mirrors the ledger's invoice lifecycle as far as the engine
// needs it
type InvoiceStatus string

const (
	InvoiceStatusOutstanding InvoiceStatus = "OUTSTANDING"
	InvoiceStatusPaid        InvoiceStatus = "PAID"
	InvoiceStatusCancelled   InvoiceStatus = "CANCELLED"
)

// CreateInvoiceRequest is the transactional check-and-create payload. The
// ledger enforces at most one non-cancelled invoice per (schedule, coverage
// period), keyed by IdempotencyKey.
type CreateInvoiceRequest struct {
	ScheduleID     string          `json:"schedule_id"`
	MemberID       string          `json:"member_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	CoverageStart  time.Time       `json:"coverage_start"`
	CoverageEnd    time.Time       `json:"coverage_end"`
	DueDate        time.Time       `json:"due_date"`
	Description    string          `json:"description"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// OutstandingInvoicesFilter narrows the outstanding-invoice query
type OutstandingInvoicesFilter struct {
	ScheduleIDs   []string                 `json:"schedule_ids,omitempty"`
	PaymentMethod *types.PaymentMethodType `json:"payment_method,omitempty"`
	DueBefore     *time.Time               `json:"due_before,omitempty"`
}
