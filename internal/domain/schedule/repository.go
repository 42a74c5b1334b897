package schedule

import (
	"context"

	"github.com/duespay/duespay/internal/types"
)

// Repository defines the interface for dues schedule persistence
type Repository interface {
	Create(ctx context.Context, schedule *DuesSchedule) error
	Get(ctx context.Context, id string) (*DuesSchedule, error)
	Update(ctx context.Context, schedule *DuesSchedule) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter *types.ScheduleFilter) ([]*DuesSchedule, error)
	Count(ctx context.Context, filter *types.ScheduleFilter) (int, error)

	// GetActiveByMember returns the member's Active-or-GracePeriod schedule,
	// enforcing the one-active-schedule-per-member invariant at read time
	GetActiveByMember(ctx context.Context, memberID string) (*DuesSchedule, error)

	// ListDueForInvoicing returns ACTIVE schedules with
	// next_invoice_date <= horizon, the daily generation working set
	ListDueForInvoicing(ctx context.Context, horizon string) ([]*DuesSchedule, error)
}
