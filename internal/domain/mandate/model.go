package mandate

import (
	"time"

	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/types"
)

// Mandate is a member's standing authorization permitting recurring debits
// from their account. At most one ACTIVE mandate exists per member per
// schedule.
type Mandate struct {
	// Unique identifier, mndt_<ulid>
	ID string `db:"id" json:"id"`
	// MandateReference is the human-facing reference carried in the bank file
	MandateReference string `db:"mandate_reference" json:"mandate_reference"`
	// MemberID references the authorizing party
	MemberID string `db:"member_id" json:"member_id"`
	// IBAN is the debtor account identifier
	IBAN string `db:"iban" json:"iban"`
	// BIC of the debtor's bank, derivable from the IBAN for domestic accounts
	BIC string `db:"bic" json:"bic"`
	// AccountHolder is the name on the debtor account
	AccountHolder string `db:"account_holder" json:"account_holder"`
	// MandateStatus is the authorization lifecycle state
	MandateStatus types.MandateStatus `db:"mandate_status" json:"mandate_status"`
	// SignDate is when the member signed the authorization
	SignDate time.Time `db:"sign_date" json:"sign_date"`
	// FirstPaymentAt is when the confirming out-of-band payment arrived
	FirstPaymentAt *time.Time `db:"first_payment_at" json:"first_payment_at,omitempty"`
	// LastUsedAt is the most recent successful collection under this mandate
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	// CancelledReason records why the mandate was cancelled
	CancelledReason *string `db:"cancelled_reason" json:"cancelled_reason,omitempty"`

	types.BaseModel
}

// Validate validates the mandate
func (m *Mandate) Validate() error {
	if m.MemberID == "" {
		return ierr.NewError("member id is required").
			WithHint("Member ID is required").
			Mark(ierr.ErrValidation)
	}
	if m.IBAN == "" {
		return ierr.NewError("iban is required").
			WithHint("IBAN is required").
			Mark(ierr.ErrValidation)
	}
	if err := m.MandateStatus.Validate(); err != nil {
		return err
	}
	if m.SignDate.IsZero() {
		return ierr.NewError("sign date is required").
			WithHint("Mandate sign date is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// NextSequenceType classifies the next collection under this mandate. FRST
// if and only if no successful usage has been recorded since the sign date;
// a mandate reused after re-signing reverts to FRST.
func (m *Mandate) NextSequenceType() types.SequenceType {
	if m.LastUsedAt == nil || m.LastUsedAt.Before(m.SignDate) {
		return types.SequenceTypeFirst
	}
	return types.SequenceTypeRecurring
}

// IsUsable reports whether collections may be drawn under this mandate
func (m *Mandate) IsUsable() bool {
	return m.MandateStatus == types.MandateStatusActive
}

// TableName returns the table name for the mandate
func (m *Mandate) TableName() string {
	return "mandates"
}
