package failure

import (
	"time"

	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/types"
	"github.com/shopspring/decimal"
)

// Record is one declined collection as reported by the bank. Records are
// append-only and never transition to Resolved without an explicit operator
// action.
type Record struct {
	// Unique identifier, fail_<ulid>
	ID string `db:"id" json:"id"`
	// ScheduleID references the billed dues schedule
	ScheduleID string `db:"schedule_id" json:"schedule_id"`
	// InvoiceID references the failed invoice in the ledger
	InvoiceID string `db:"invoice_id" json:"invoice_id"`
	// MandateID references the mandate the collection was drawn under
	MandateID string `db:"mandate_id" json:"mandate_id"`
	// BatchID references the batch the collection ran in, if known
	BatchID *string `db:"batch_id" json:"batch_id,omitempty"`
	// ReturnCode is the raw bank reason code
	ReturnCode string `db:"return_code" json:"return_code"`
	// FailureType is the classified taxonomy entry for the return code
	FailureType types.FailureType `db:"failure_type" json:"failure_type"`
	// Severity grades the failure for review triage
	Severity types.FailureSeverity `db:"severity" json:"severity"`
	// RecordStatus is PENDING_REVIEW until an operator resolves it
	RecordStatus types.FailureRecordStatus `db:"record_status" json:"record_status"`
	// Amount is the declined collection amount
	Amount decimal.Decimal `db:"amount" json:"amount"`
	// ResolutionNotes, ResolvedBy and ResolvedAt capture the manual outcome
	ResolutionNotes *string    `db:"resolution_notes" json:"resolution_notes,omitempty"`
	ResolvedBy      *string    `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`

	types.BaseModel
}

// Validate validates the failure record
func (r *Record) Validate() error {
	if r.ScheduleID == "" {
		return ierr.NewError("schedule id is required").
			WithHint("Failure record must reference a schedule").
			Mark(ierr.ErrValidation)
	}
	if r.InvoiceID == "" {
		return ierr.NewError("invoice id is required").
			WithHint("Failure record must reference an invoice").
			Mark(ierr.ErrValidation)
	}
	if r.ReturnCode == "" {
		return ierr.NewError("return code is required").
			WithHint("Failure record must carry the bank return code").
			Mark(ierr.ErrValidation)
	}
	if err := r.FailureType.Validate(); err != nil {
		return err
	}
	if err := r.Severity.Validate(); err != nil {
		return err
	}
	return r.RecordStatus.Validate()
}

// TableName returns the table name for the failure record
func (r *Record) TableName() string {
	return "failure_records"
}
