package types

import (
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/samber/lo"
)

// FailureType is the closed taxonomy of bank-reported collection failures.
// Unknown return codes always map to FailureTypeOther; string dispatch on
// raw codes is never used outside the classifier.
type FailureType string

const (
	FailureTypeInsufficientFunds FailureType = "INSUFFICIENT_FUNDS"
	FailureTypeAccountClosed     FailureType = "ACCOUNT_CLOSED"
	FailureTypeNoSuchAccount     FailureType = "NO_SUCH_ACCOUNT"
	FailureTypeAccountBlocked    FailureType = "ACCOUNT_BLOCKED"
	FailureTypeMandateCancelled  FailureType = "MANDATE_CANCELLED"
	FailureTypeDeceased          FailureType = "DECEASED"
	FailureTypeStoppedByPayer    FailureType = "STOPPED_BY_PAYER"
	FailureTypeIncorrectDetails  FailureType = "INCORRECT_DETAILS"
	FailureTypeMandateInvalid    FailureType = "MANDATE_INVALID"
	FailureTypeOther             FailureType = "OTHER"
)

func (t FailureType) String() string {
	return string(t)
}

func (t FailureType) Validate() error {
	allowed := []FailureType{
		FailureTypeInsufficientFunds,
		FailureTypeAccountClosed,
		FailureTypeNoSuchAccount,
		FailureTypeAccountBlocked,
		FailureTypeMandateCancelled,
		FailureTypeDeceased,
		FailureTypeStoppedByPayer,
		FailureTypeIncorrectDetails,
		FailureTypeMandateInvalid,
		FailureTypeOther,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid failure type").
			WithHint("Invalid failure type").
			WithReportableDetails(map[string]any{
				"allowed_values": allowed,
				"provided_value": t,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsTerminal reports whether this failure type invalidates the mandate
// itself. Terminal failures cancel the mandate and route the schedule to
// manual review immediately, regardless of the failure counter.
func (t FailureType) IsTerminal() bool {
	switch t {
	case FailureTypeAccountClosed,
		FailureTypeNoSuchAccount,
		FailureTypeMandateCancelled,
		FailureTypeDeceased,
		FailureTypeMandateInvalid:
		return true
	default:
		return false
	}
}

// FailureSeverity grades a failure for review triage
type FailureSeverity string

const (
	FailureSeverityLow      FailureSeverity = "LOW"
	FailureSeverityMedium   FailureSeverity = "MEDIUM"
	FailureSeverityHigh     FailureSeverity = "HIGH"
	FailureSeverityCritical FailureSeverity = "CRITICAL"
)

func (s FailureSeverity) String() string {
	return string(s)
}

func (s FailureSeverity) Validate() error {
	allowed := []FailureSeverity{
		FailureSeverityLow,
		FailureSeverityMedium,
		FailureSeverityHigh,
		FailureSeverityCritical,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid failure severity").
			WithHint("Invalid failure severity").
			WithReportableDetails(map[string]any{
				"allowed_values": allowed,
				"provided_value": s,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// FailureRecordStatus represents the review state of a failure record.
// Records never transition to Resolved automatically.
type FailureRecordStatus string

const (
	FailureRecordStatusPendingReview FailureRecordStatus = "PENDING_REVIEW"
	FailureRecordStatusResolved      FailureRecordStatus = "RESOLVED"
)

func (s FailureRecordStatus) String() string {
	return string(s)
}

func (s FailureRecordStatus) Validate() error {
	allowed := []FailureRecordStatus{
		FailureRecordStatusPendingReview,
		FailureRecordStatusResolved,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid failure record status").
			WithHint("Invalid failure record status").
			WithReportableDetails(map[string]any{
				"allowed_values": allowed,
				"provided_value": s,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// FailureFilter represents the filter for listing failure records
type FailureFilter struct {
	*QueryFilter
	*TimeRangeFilter

	ScheduleID    *string              `form:"schedule_id"`
	BatchID       *string              `form:"batch_id"`
	FailureType   *FailureType         `form:"failure_type"`
	FailureStatus *FailureRecordStatus `form:"failure_status"`
}

// NewNoLimitFailureFilter creates a new failure filter with no limit
func NewNoLimitFailureFilter() *FailureFilter {
	return &FailureFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

// Validate validates the failure filter
func (f *FailureFilter) Validate() error {
	if f == nil {
		return nil
	}
	if err := f.QueryFilter.Validate(); err != nil {
		return err
	}
	if err := f.TimeRangeFilter.Validate(); err != nil {
		return err
	}
	if f.FailureType != nil {
		if err := f.FailureType.Validate(); err != nil {
			return err
		}
	}
	if f.FailureStatus != nil {
		if err := f.FailureStatus.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GetLimit implements BaseFilter interface
func (f *FailureFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return DefaultQueryFilter.GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

// GetOffset implements BaseFilter interface
func (f *FailureFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return DefaultQueryFilter.GetOffset()
	}
	return f.QueryFilter.GetOffset()
}

// GetStatus implements BaseFilter interface
func (f *FailureFilter) GetStatus() Status {
	if f.QueryFilter == nil {
		return DefaultQueryFilter.GetStatus()
	}
	return f.QueryFilter.GetStatus()
}

// GetSort implements BaseFilter interface
func (f *FailureFilter) GetSort() string {
	if f.QueryFilter == nil {
		return DefaultQueryFilter.GetSort()
	}
	return f.QueryFilter.GetSort()
}

// GetOrder implements BaseFilter interface
func (f *FailureFilter) GetOrder() string {
	if f.QueryFilter == nil {
		return DefaultQueryFilter.GetOrder()
	}
	return f.QueryFilter.GetOrder()
}

// IsUnlimited returns true if the filter has no limit
func (f *FailureFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return DefaultQueryFilter.IsUnlimited()
	}
	return f.QueryFilter.IsUnlimited()
}
