package types

import (
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/samber/lo"
)

// BatchStatus represents the lifecycle status of a direct-debit batch
type BatchStatus string

const (
	// BatchStatusOpen marks a composed batch whose invoices carry the
	// in-batch marker; no other open batch may reference them.
	BatchStatusOpen            BatchStatus = "OPEN"
	BatchStatusSubmitted       BatchStatus = "SUBMITTED"
	BatchStatusPartiallyFailed BatchStatus = "PARTIALLY_FAILED"
	BatchStatusFinalized       BatchStatus = "FINALIZED"
	BatchStatusCancelled       BatchStatus = "CANCELLED"
)

func (s BatchStatus) String() string {
	return string(s)
}

func (s BatchStatus) Validate() error {
	allowed := []BatchStatus{
		BatchStatusOpen,
		BatchStatusSubmitted,
		BatchStatusPartiallyFailed,
		BatchStatusFinalized,
		BatchStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid batch status").
			WithHint("Invalid batch status").
			WithReportableDetails(map[string]any{
				"allowed_values": allowed,
				"provided_value": s,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsOpen reports whether the batch still holds its invoices' in-batch markers
func (s BatchStatus) IsOpen() bool {
	return s == BatchStatusOpen || s == BatchStatusSubmitted || s == BatchStatusPartiallyFailed
}

// CanTransitionTo enforces the batch lifecycle: Open → Submitted →
// PartiallyFailed/Finalized; cancellation only before submission.
func (s BatchStatus) CanTransitionTo(target BatchStatus) bool {
	switch target {
	case BatchStatusSubmitted:
		return s == BatchStatusOpen
	case BatchStatusPartiallyFailed:
		return s == BatchStatusOpen || s == BatchStatusSubmitted
	case BatchStatusFinalized:
		return s.IsOpen()
	case BatchStatusCancelled:
		return s == BatchStatusOpen
	default:
		return false
	}
}

// BatchFilter represents the filter for listing batches
type BatchFilter struct {
	*QueryFilter
	*TimeRangeFilter

	BatchIDs    []string     `form:"batch_ids"`
	BatchStatus *BatchStatus `form:"batch_status"`
}

// NewNoLimitBatchFilter creates a new batch filter with no limit
func NewNoLimitBatchFilter() *BatchFilter {
	return &BatchFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

// Validate validates the batch filter
func (f *BatchFilter) Validate() error {
	if f == nil {
		return nil
	}
	if err := f.QueryFilter.Validate(); err != nil {
		return err
	}
	if err := f.TimeRangeFilter.Validate(); err != nil {
		return err
	}
	if f.BatchStatus != nil {
		if err := f.BatchStatus.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GetLimit implements BaseFilter interface
func (f *BatchFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return DefaultQueryFilter.GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

// GetOffset implements BaseFilter interface
func (f *BatchFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return DefaultQueryFilter.GetOffset()
	}
	return f.QueryFilter.GetOffset()
}

// GetStatus implements BaseFilter interface
func (f *BatchFilter) GetStatus() Status {
	if f.QueryFilter == nil {
		return DefaultQueryFilter.GetStatus()
	}
	return f.QueryFilter.GetStatus()
}

// GetSort implements BaseFilter interface
func (f *BatchFilter) GetSort() string {
	if f.QueryFilter == nil {
		return DefaultQueryFilter.GetSort()
	}
	return f.QueryFilter.GetSort()
}

// GetOrder implements BaseFilter interface
func (f *BatchFilter) GetOrder() string {
	if f.QueryFilter == nil {
		return DefaultQueryFilter.GetOrder()
	}
	return f.QueryFilter.GetOrder()
}

// IsUnlimited returns true if the filter has no limit
func (f *BatchFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return DefaultQueryFilter.IsUnlimited()
	}
	return f.QueryFilter.IsUnlimited()
}
