package notification

import (
	"time"

	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/types"
)

// Dispatch is one entry in the notification dispatch log. The unique
// (schedule, stage, period) key is the idempotency guard: each stage fires
// at most once per coverage period regardless of how often the scheduler
// runs.
type Dispatch struct {
	// Unique identifier, ntfy_<ulid>
	ID string `db:"id" json:"id"`
	// ScheduleID references the dues schedule the notification concerns
	ScheduleID string `db:"schedule_id" json:"schedule_id"`
	// MemberID is the recipient party
	MemberID string `db:"member_id" json:"member_id"`
	// Stage identifies the lifecycle communication
	Stage types.NotificationStage `db:"stage" json:"stage"`
	// PeriodKey scopes the dispatch to one coverage period
	PeriodKey string `db:"period_key" json:"period_key"`
	// DeliveryID is the transport's receipt for a successful dispatch
	DeliveryID *string `db:"delivery_id" json:"delivery_id,omitempty"`
	// DispatchedAt is when the transport accepted the notification
	DispatchedAt time.Time `db:"dispatched_at" json:"dispatched_at"`

	types.BaseModel
}

// Validate validates the dispatch entry
func (d *Dispatch) Validate() error {
	if d.ScheduleID == "" {
		return ierr.NewError("schedule id is required").
			WithHint("Dispatch must reference a schedule").
			Mark(ierr.ErrValidation)
	}
	if d.PeriodKey == "" {
		return ierr.NewError("period key is required").
			WithHint("Dispatch must carry a coverage period key").
			Mark(ierr.ErrValidation)
	}
	return d.Stage.Validate()
}

// TableName returns the table name for the dispatch log
func (d *Dispatch) TableName() string {
	return "notification_dispatches"
}
