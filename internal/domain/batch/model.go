package batch

import (
	"fmt"
	"time"

	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Batch is a single grouped submission of collection transactions executed
// on one target date.
type Batch struct {
	// Unique identifier, batch_<ulid>
	ID string `db:"id" json:"id"`
	// BatchReference is the human-facing reference used in end-to-end ids
	BatchReference string `db:"batch_reference" json:"batch_reference"`
	// ExecutionDate is the requested collection date, always a business day
	ExecutionDate time.Time `db:"execution_date" json:"execution_date"`
	// SubmissionDeadline is the latest business day the file may be handed to
	// the bank while honoring pre-notification lead times
	SubmissionDeadline time.Time `db:"submission_deadline" json:"submission_deadline"`
	// BatchStatus is the batch lifecycle state
	BatchStatus types.BatchStatus `db:"batch_status" json:"batch_status"`
	// DeadlineWarning is set when the batch was composed after its own
	// submission deadline; the operator decides whether to defer
	DeadlineWarning bool `db:"deadline_warning" json:"deadline_warning"`
	// TotalAmount is the control sum over all transactions
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
	// Currency applies to all transactions in the batch
	Currency string `db:"currency" json:"currency"`

	// Transactions are loaded alongside the batch, ordered by line index
	Transactions []*Transaction `db:"-" json:"transactions,omitempty"`

	types.BaseModel
}

// Transaction is one collection line inside a batch. Its invoice carries the
// in-batch marker for as long as the parent batch is open.
type Transaction struct {
	// Unique identifier, txn_<ulid>
	ID string `db:"id" json:"id"`
	// BatchID links this line to its parent batch
	BatchID string `db:"batch_id" json:"batch_id"`
	// LineIndex orders transactions deterministically inside the batch
	LineIndex int `db:"line_index" json:"line_index"`
	// InvoiceID references the collected invoice in the ledger
	InvoiceID string `db:"invoice_id" json:"invoice_id"`
	// ScheduleID references the billed dues schedule
	ScheduleID string `db:"schedule_id" json:"schedule_id"`
	// MandateID references the authorizing mandate
	MandateID string `db:"mandate_id" json:"mandate_id"`
	// MemberName and IBAN identify the debtor in the bank file
	MemberName string `db:"member_name" json:"member_name"`
	IBAN       string `db:"iban" json:"iban"`
	BIC        string `db:"bic" json:"bic"`
	// MandateReference and MandateSignDate are required mandate-related info
	MandateReference string    `db:"mandate_reference" json:"mandate_reference"`
	MandateSignDate  time.Time `db:"mandate_sign_date" json:"mandate_sign_date"`
	// Amount collected for this line
	Amount   decimal.Decimal `db:"amount" json:"amount"`
	Currency string          `db:"currency" json:"currency"`
	// SequenceType is computed per mandate, never per batch
	SequenceType types.SequenceType `db:"sequence_type" json:"sequence_type"`
	// Description is the statement text shown to the member
	Description string `db:"description" json:"description"`

	types.BaseModel
}

// EndToEndID returns the scheme end-to-end identifier for this line,
// batch id plus line index
func (t *Transaction) EndToEndID() string {
	return fmt.Sprintf("%s-%d", t.BatchID, t.LineIndex)
}

// Validate validates the batch
func (b *Batch) Validate() error {
	if err := b.BatchStatus.Validate(); err != nil {
		return err
	}
	if b.ExecutionDate.IsZero() {
		return ierr.NewError("execution date is required").
			WithHint("Batch execution date is required").
			Mark(ierr.ErrValidation)
	}
	if b.SubmissionDeadline.After(b.ExecutionDate) {
		return ierr.NewError("submission deadline after execution date").
			WithHint("Submission deadline must precede the execution date").
			Mark(ierr.ErrInvariant)
	}
	return nil
}

// Validate validates the batch transaction
func (t *Transaction) Validate() error {
	if t.InvoiceID == "" {
		return ierr.NewError("invoice id is required").
			WithHint("Transaction must reference an invoice").
			Mark(ierr.ErrValidation)
	}
	if t.MandateID == "" {
		return ierr.NewError("mandate id is required").
			WithHint("Transaction must reference a mandate").
			Mark(ierr.ErrValidation)
	}
	if !t.Amount.IsPositive() {
		return ierr.NewError("invalid amount").
			WithHint("Transaction amount must be greater than 0").
			Mark(ierr.ErrValidation)
	}
	return t.SequenceType.Validate()
}

// ContainsFirstUse reports whether any transaction is a first-use collection,
// which subjects the whole batch to the longer lead time
func (b *Batch) ContainsFirstUse() bool {
	return lo.ContainsBy(b.Transactions, func(t *Transaction) bool {
		return t.SequenceType == types.SequenceTypeFirst
	})
}

// SummaryBySequenceType returns per-sequence-type line counts and sums
func (b *Batch) SummaryBySequenceType() map[types.SequenceType]SequenceSummary {
	out := make(map[types.SequenceType]SequenceSummary)
	for _, t := range b.Transactions {
		s := out[t.SequenceType]
		s.Count++
		s.Total = s.Total.Add(t.Amount)
		out[t.SequenceType] = s
	}
	return out
}

// SequenceSummary aggregates one sequence-type block of a batch
type SequenceSummary struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// TableName returns the table name for the batch
func (b *Batch) TableName() string {
	return "debit_batches"
}

// TableName returns the table name for the batch transaction
func (t *Transaction) TableName() string {
	return "debit_batch_transactions"
}
