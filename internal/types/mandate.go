package types

import (
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/samber/lo"
)

// MandateStatus represents the lifecycle status of a direct-debit mandate
type MandateStatus string

const (
	MandateStatusDraft     MandateStatus = "DRAFT"
	MandateStatusPending   MandateStatus = "PENDING"
	MandateStatusActive    MandateStatus = "ACTIVE"
	MandateStatusCancelled MandateStatus = "CANCELLED"
)

func (s MandateStatus) String() string {
	return string(s)
}

func (s MandateStatus) Validate() error {
	allowed := []MandateStatus{
		MandateStatusDraft,
		MandateStatusPending,
		MandateStatusActive,
		MandateStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid mandate status").
			WithHint("Invalid mandate status").
			WithReportableDetails(map[string]any{
				"allowed_values": allowed,
				"provided_value": s,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CanTransitionTo enforces the Draft → Pending → Active → Cancelled order.
// Cancellation is permitted from any non-terminal state.
func (s MandateStatus) CanTransitionTo(target MandateStatus) bool {
	if s == MandateStatusCancelled {
		return false
	}
	switch target {
	case MandateStatusPending:
		return s == MandateStatusDraft
	case MandateStatusActive:
		return s == MandateStatusPending
	case MandateStatusCancelled:
		return true
	default:
		return false
	}
}

// SequenceType classifies a direct-debit collection under the scheme's
// sequencing rules. FRST collections carry a longer pre-notification lead
// time than RCUR ones.
type SequenceType string

const (
	SequenceTypeFirst     SequenceType = "FRST"
	SequenceTypeRecurring SequenceType = "RCUR"
)

func (t SequenceType) String() string {
	return string(t)
}

func (t SequenceType) Validate() error {
	allowed := []SequenceType{
		SequenceTypeFirst,
		SequenceTypeRecurring,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid sequence type").
			WithHint("Invalid sequence type").
			WithReportableDetails(map[string]any{
				"allowed_values": allowed,
				"provided_value": t,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// MandateFilter represents the filter for listing mandates
type MandateFilter struct {
	*QueryFilter

	MandateIDs    []string       `form:"mandate_ids"`
	MemberID      *string        `form:"member_id"`
	MandateStatus *MandateStatus `form:"mandate_status"`
}

// NewNoLimitMandateFilter creates a new mandate filter with no limit
func NewNoLimitMandateFilter() *MandateFilter {
	return &MandateFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

// Validate validates the mandate filter
func (f *MandateFilter) Validate() error {
	if f == nil {
		return nil
	}
	if err := f.QueryFilter.Validate(); err != nil {
		return err
	}
	if f.MandateStatus != nil {
		if err := f.MandateStatus.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GetLimit implements BaseFilter interface
func (f *MandateFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return DefaultQueryFilter.GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

// GetOffset implements BaseFilter interface
func (f *MandateFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return DefaultQueryFilter.GetOffset()
	}
	return f.QueryFilter.GetOffset()
}

// GetStatus implements BaseFilter interface
func (f *MandateFilter) GetStatus() Status {
	if f.QueryFilter == nil {
		return DefaultQueryFilter.GetStatus()
	}
	return f.QueryFilter.GetStatus()
}

// GetSort implements BaseFilter interface
func (f *MandateFilter) GetSort() string {
	if f.QueryFilter == nil {
		return DefaultQueryFilter.GetSort()
	}
	return f.QueryFilter.GetSort()
}

// GetOrder implements BaseFilter interface
func (f *MandateFilter) GetOrder() string {
	if f.QueryFilter == nil {
		return DefaultQueryFilter.GetOrder()
	}
	return f.QueryFilter.GetOrder()
}

// IsUnlimited returns true if the filter has no limit
func (f *MandateFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return DefaultQueryFilter.IsUnlimited()
	}
	return f.QueryFilter.IsUnlimited()
}
