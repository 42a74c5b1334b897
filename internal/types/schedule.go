package types

import (
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/samber/lo"
)

// ScheduleStatus represents the lifecycle status of a dues schedule
type ScheduleStatus string

const (
	ScheduleStatusActive       ScheduleStatus = "ACTIVE"
	ScheduleStatusPaused       ScheduleStatus = "PAUSED"
	ScheduleStatusGracePeriod  ScheduleStatus = "GRACE_PERIOD"
	ScheduleStatusPaymentPlan  ScheduleStatus = "PAYMENT_PLAN"
	ScheduleStatusManualReview ScheduleStatus = "MANUAL_REVIEW"
	ScheduleStatusSuspended    ScheduleStatus = "SUSPENDED"
	ScheduleStatusCancelled    ScheduleStatus = "CANCELLED"
)

func (s ScheduleStatus) String() string {
	return string(s)
}

func (s ScheduleStatus) Validate() error {
	allowed := []ScheduleStatus{
		ScheduleStatusActive,
		ScheduleStatusPaused,
		ScheduleStatusGracePeriod,
		ScheduleStatusPaymentPlan,
		ScheduleStatusManualReview,
		ScheduleStatusSuspended,
		ScheduleStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid schedule status").
			WithHint("Invalid schedule status").
			WithReportableDetails(map[string]any{
				"allowed_values": allowed,
				"provided_value": s,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsTerminal returns true when no further automated transitions may leave
// this status. ManualReview is deliberately included: only an explicit
// operator action releases a schedule from review.
func (s ScheduleStatus) IsTerminal() bool {
	return s == ScheduleStatusCancelled ||
		s == ScheduleStatusSuspended ||
		s == ScheduleStatusManualReview
}

// BillingCadence represents how often a dues schedule invoices
type BillingCadence string

const (
	BillingCadenceMonthly BillingCadence = "MONTHLY"
	BillingCadenceAnnual  BillingCadence = "ANNUAL"
	BillingCadenceCustom  BillingCadence = "CUSTOM"
)

func (c BillingCadence) String() string {
	return string(c)
}

func (c BillingCadence) Validate() error {
	allowed := []BillingCadence{
		BillingCadenceMonthly,
		BillingCadenceAnnual,
		BillingCadenceCustom,
	}
	if !lo.Contains(allowed, c) {
		return ierr.NewError("invalid billing cadence").
			WithHint("Invalid billing cadence").
			WithReportableDetails(map[string]any{
				"allowed_values": allowed,
				"provided_value": c,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IntervalMonths returns the number of months between invoices. For CUSTOM
// cadence the schedule's own interval applies and customInterval is used.
func (c BillingCadence) IntervalMonths(customInterval int) int {
	switch c {
	case BillingCadenceAnnual:
		return 12
	case BillingCadenceCustom:
		if customInterval > 0 {
			return customInterval
		}
		return 1
	default:
		return 1
	}
}

// PaymentMethodType represents how a schedule's invoices are collected
type PaymentMethodType string

const (
	PaymentMethodTypeDirectDebit  PaymentMethodType = "DIRECT_DEBIT"
	PaymentMethodTypeBankTransfer PaymentMethodType = "BANK_TRANSFER"
)

func (t PaymentMethodType) String() string {
	return string(t)
}

func (t PaymentMethodType) Validate() error {
	allowed := []PaymentMethodType{
		PaymentMethodTypeDirectDebit,
		PaymentMethodTypeBankTransfer,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid payment method type").
			WithHint("Invalid payment method type").
			WithReportableDetails(map[string]any{
				"allowed_values": allowed,
				"provided_value": t,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ScheduleFilter represents the filter for listing dues schedules
type ScheduleFilter struct {
	*QueryFilter
	*TimeRangeFilter

	ScheduleIDs         []string        `form:"schedule_ids"`
	MemberID            *string         `form:"member_id"`
	ScheduleStatus      *ScheduleStatus `form:"schedule_status"`
	NextInvoiceDateLTE  *string         `form:"next_invoice_date_lte"`
	PaymentMethod       *string         `form:"payment_method"`
	GraceExpiryBefore   *string         `form:"grace_expiry_before"`
	WithLinkedMandateID *string         `form:"mandate_id"`
}

// NewNoLimitScheduleFilter creates a new schedule filter with no limit
func NewNoLimitScheduleFilter() *ScheduleFilter {
	return &ScheduleFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

// Validate validates the schedule filter
func (f *ScheduleFilter) Validate() error {
	if f == nil {
		return nil
	}
	if err := f.QueryFilter.Validate(); err != nil {
		return err
	}
	if err := f.TimeRangeFilter.Validate(); err != nil {
		return err
	}
	if f.ScheduleStatus != nil {
		if err := f.ScheduleStatus.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GetLimit implements BaseFilter interface
func (f *ScheduleFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return DefaultQueryFilter.GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

// GetOffset implements BaseFilter interface
func (f *ScheduleFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return DefaultQueryFilter.GetOffset()
	}
	return f.QueryFilter.GetOffset()
}

// GetStatus implements BaseFilter interface
func (f *ScheduleFilter) GetStatus() Status {
	if f.QueryFilter == nil {
		return DefaultQueryFilter.GetStatus()
	}
	return f.QueryFilter.GetStatus()
}

// GetSort implements BaseFilter interface
func (f *ScheduleFilter) GetSort() string {
	if f.QueryFilter == nil {
		return DefaultQueryFilter.GetSort()
	}
	return f.QueryFilter.GetSort()
}

// GetOrder implements BaseFilter interface
func (f *ScheduleFilter) GetOrder() string {
	if f.QueryFilter == nil {
		return DefaultQueryFilter.GetOrder()
	}
	return f.QueryFilter.GetOrder()
}

// IsUnlimited returns true if the filter has no limit
func (f *ScheduleFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return DefaultQueryFilter.IsUnlimited()
	}
	return f.QueryFilter.IsUnlimited()
}
