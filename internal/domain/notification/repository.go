package notification

import "context"

// Repository defines the interface for the notification dispatch log
type Repository interface {
	// Create appends a dispatch entry; implementations must reject a
	// duplicate (schedule, stage, period) key with ErrAlreadyExists
	Create(ctx context.Context, dispatch *Dispatch) error

	// Exists reports whether a stage already fired for this period
	Exists(ctx context.Context, scheduleID, stage, periodKey string) (bool, error)

	// ListBySchedule returns all dispatches for a schedule
	ListBySchedule(ctx context.Context, scheduleID string) ([]*Dispatch, error)
}

// Transport delivers a staged notification to a member. Implementations are
// external; failures are logged by the caller and never retried inline.
type Transport interface {
	Dispatch(ctx context.Context, memberID string, stage string, details map[string]string) (string, error)
}
