package schedule

import (
	"context"
	"time"

	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/types"
	"github.com/shopspring/decimal"
)

// InstallmentStatus tracks a payment-plan installment through invoicing
type InstallmentStatus string

const (
	InstallmentStatusPending  InstallmentStatus = "PENDING"
	InstallmentStatusInvoiced InstallmentStatus = "INVOICED"
	InstallmentStatusSettled  InstallmentStatus = "SETTLED"
)

// Installment is one agreed partial payment on a PAYMENT_PLAN schedule.
// Payment-plan invoicing is driven by these rows, not by the anchor-day
// projection of the parent schedule.
type Installment struct {
	ID         string            `db:"id" json:"id"`
	ScheduleID string            `db:"schedule_id" json:"schedule_id"`
	DueDate    time.Time         `db:"due_date" json:"due_date"`
	Amount     decimal.Decimal   `db:"amount" json:"amount"`
	InvoiceID  *string           `db:"invoice_id" json:"invoice_id,omitempty"`
	State      InstallmentStatus `db:"state" json:"state"`

	types.BaseModel
}

// Validate validates the installment
func (i *Installment) Validate() error {
	if i.ScheduleID == "" {
		return ierr.NewError("installment schedule id is required").
			WithHint("Installment must reference a schedule").
			Mark(ierr.ErrValidation)
	}
	if !i.Amount.IsPositive() {
		return ierr.NewError("invalid installment amount").
			WithHint("Installment amount must be greater than 0").
			Mark(ierr.ErrValidation)
	}
	if i.DueDate.IsZero() {
		return ierr.NewError("installment due date is required").
			WithHint("Installment due date is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// TableName returns the table name for the installment
func (i *Installment) TableName() string {
	return "payment_plan_installments"
}

// InstallmentRepository defines the interface for installment persistence
type InstallmentRepository interface {
	Create(ctx context.Context, installment *Installment) error
	Update(ctx context.Context, installment *Installment) error
	ListBySchedule(ctx context.Context, scheduleID string) ([]*Installment, error)

	// ListPendingDue returns PENDING installments due on or before horizon
	ListPendingDue(ctx context.Context, horizon string) ([]*Installment, error)
}
