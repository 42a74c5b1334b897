package schedule

import (
	"time"

	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/types"
	"github.com/shopspring/decimal"
)

// DuesSchedule is the billing relationship between the organization and one
// member: its cadence, amount, coverage window and collection state. Exactly
// one Active-or-GracePeriod schedule may exist per member at a time.
type DuesSchedule struct {
	// Unique identifier, sched_<ulid>
	ID string `db:"id" json:"id"`
	// MemberID references the owning party in the member store
	MemberID string `db:"member_id" json:"member_id"`
	// Cadence determines the invoicing rhythm
	Cadence types.BillingCadence `db:"cadence" json:"cadence"`
	// IntervalMonths applies only to CUSTOM cadence
	IntervalMonths int `db:"interval_months" json:"interval_months,omitempty"`
	// AnchorDay is the day-of-month derived from the membership start date;
	// clamped to month length when projected
	AnchorDay int `db:"anchor_day" json:"anchor_day"`
	// Amount is the current dues rate per coverage period
	Amount decimal.Decimal `db:"amount" json:"amount"`
	// Currency is a three-letter ISO code
	Currency string `db:"currency" json:"currency"`
	// CoverageStart/CoverageEnd delimit the period the latest invoice pays for
	CoverageStart *time.Time `db:"coverage_start" json:"coverage_start,omitempty"`
	CoverageEnd   *time.Time `db:"coverage_end" json:"coverage_end,omitempty"`
	// NextInvoiceDate is the anchor day projected into the nearest future month
	NextInvoiceDate time.Time `db:"next_invoice_date" json:"next_invoice_date"`
	// ScheduleStatus is the billing lifecycle state
	ScheduleStatus types.ScheduleStatus `db:"schedule_status" json:"schedule_status"`
	// PaymentMethod determines whether invoices are bank-collected
	PaymentMethod types.PaymentMethodType `db:"payment_method" json:"payment_method"`
	// MandateID links the active direct-debit authorization, if any
	MandateID *string `db:"mandate_id" json:"mandate_id,omitempty"`
	// ConsecutiveFailures counts bank-reported failures since the last success
	ConsecutiveFailures int `db:"consecutive_failures" json:"consecutive_failures"`
	// GenerationFailures counts consecutive ledger errors during invoice
	// generation; three in a row flags the schedule for manual review
	GenerationFailures int `db:"generation_failures" json:"generation_failures"`
	// GracePeriodExpiry is set when an operator grants a grace period
	GracePeriodExpiry *time.Time `db:"grace_period_expiry" json:"grace_period_expiry,omitempty"`
	// ReviewReason records why the schedule was parked in manual review
	ReviewReason *string `db:"review_reason" json:"review_reason,omitempty"`

	types.BaseModel
}

// Validate validates the dues schedule
func (s *DuesSchedule) Validate() error {
	if s.MemberID == "" {
		return ierr.NewError("member id is required").
			WithHint("Member ID is required").
			Mark(ierr.ErrValidation)
	}
	if err := s.Cadence.Validate(); err != nil {
		return err
	}
	if err := s.ScheduleStatus.Validate(); err != nil {
		return err
	}
	if err := s.PaymentMethod.Validate(); err != nil {
		return err
	}
	if s.AnchorDay < 1 || s.AnchorDay > 31 {
		return ierr.NewError("invalid anchor day").
			WithHint("Anchor day must be between 1 and 31").
			WithReportableDetails(map[string]any{"anchor_day": s.AnchorDay}).
			Mark(ierr.ErrValidation)
	}
	if s.Cadence == types.BillingCadenceCustom && s.IntervalMonths <= 0 {
		return ierr.NewError("custom cadence requires interval_months").
			WithHint("Custom cadence requires a positive interval in months").
			Mark(ierr.ErrValidation)
	}

	// Amount must be positive unless the schedule is parked
	parked := s.ScheduleStatus == types.ScheduleStatusPaused ||
		s.ScheduleStatus == types.ScheduleStatusCancelled
	if !parked && !s.Amount.IsPositive() {
		return ierr.NewError("invalid amount").
			WithHint("Amount must be greater than 0").
			WithReportableDetails(map[string]any{"amount": s.Amount.String()}).
			Mark(ierr.ErrValidation)
	}

	if s.CoverageStart != nil && s.CoverageEnd != nil && s.CoverageEnd.Before(*s.CoverageStart) {
		return ierr.NewError("coverage end before coverage start").
			WithHint("Coverage end must not precede coverage start").
			Mark(ierr.ErrInvariant)
	}

	if s.PaymentMethod == types.PaymentMethodTypeDirectDebit && s.MandateID == nil {
		return ierr.NewError("direct debit schedule without mandate").
			WithHint("A direct-debit schedule requires a linked mandate").
			WithReportableDetails(map[string]any{"schedule_id": s.ID}).
			Mark(ierr.ErrInvariant)
	}

	return nil
}

// IsEligibleForGeneration reports whether ordinary anchor-day invoice
// generation applies. PaymentPlan schedules invoice through their own
// installment path and are deliberately excluded here.
func (s *DuesSchedule) IsEligibleForGeneration() bool {
	return s.ScheduleStatus == types.ScheduleStatusActive
}

// CoveragePeriodFor computes the coverage window an invoice issued on
// invoiceDate pays for: [invoiceDate, invoiceDate + cadence − 1 day].
func (s *DuesSchedule) CoveragePeriodFor(invoiceDate time.Time) (time.Time, time.Time) {
	months := s.Cadence.IntervalMonths(s.IntervalMonths)
	end := types.AdvanceAnchorDate(invoiceDate, s.AnchorDay, months).AddDate(0, 0, -1)
	return types.DateOnly(invoiceDate), end
}

// TableName returns the table name for the dues schedule
func (s *DuesSchedule) TableName() string {
	return "dues_schedules"
}
