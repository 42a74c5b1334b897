package repository

import (
	"context"

	"github.com/duespay/duespay/internal/domain/notification"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/logger"
	"github.com/duespay/duespay/internal/postgres"
)

type notificationRepository struct {
	client postgres.IClient
	log    *logger.Logger
}

// NewNotificationRepository creates the postgres dispatch log repository
func NewNotificationRepository(client postgres.IClient, log *logger.Logger) notification.Repository {
	return &notificationRepository{client: client, log: log}
}

const dispatchColumns = `id, schedule_id, member_id, stage, period_key, delivery_id, dispatched_at,
	status, created_at, updated_at, created_by, updated_by`

// Create appends a dispatch entry. The unique index on
// (schedule_id, stage, period_key) is the idempotency guarantee: a stage
// fires at most once per schedule per period.
func (r *notificationRepository) Create(ctx context.Context, d *notification.Dispatch) error {
	query := `INSERT INTO notification_dispatches (` + dispatchColumns + `) VALUES (
		:id, :schedule_id, :member_id, :stage, :period_key, :delivery_id, :dispatched_at,
		:status, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := r.client.Querier(ctx).NamedExecContext(ctx, query, d); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("This notification stage already fired for the period").
				WithReportableDetails(map[string]any{
					"schedule_id": d.ScheduleID,
					"stage":       d.Stage,
					"period_key":  d.PeriodKey,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to record notification dispatch").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *notificationRepository) Exists(ctx context.Context, scheduleID, stage, periodKey string) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM notification_dispatches
		WHERE schedule_id = $1 AND stage = $2 AND period_key = $3)`

	var exists bool
	if err := r.client.Querier(ctx).GetContext(ctx, &exists, query, scheduleID, stage, periodKey); err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to check notification dispatch log").
			Mark(ierr.ErrDatabase)
	}
	return exists, nil
}

func (r *notificationRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]*notification.Dispatch, error) {
	query := `SELECT ` + dispatchColumns + ` FROM notification_dispatches
		WHERE schedule_id = $1
		ORDER BY dispatched_at ASC`

	var out []*notification.Dispatch
	if err := r.client.Querier(ctx).SelectContext(ctx, &out, query, scheduleID); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list notification dispatches").
			Mark(ierr.ErrDatabase)
	}
	return out, nil
}
