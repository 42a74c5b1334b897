package repository

import (
	"context"

	"github.com/duespay/duespay/internal/domain/schedule"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/logger"
	"github.com/duespay/duespay/internal/postgres"
	"github.com/duespay/duespay/internal/types"
	"github.com/lib/pq"
)

type scheduleRepository struct {
	client postgres.IClient
	log    *logger.Logger
}

// NewScheduleRepository creates the postgres dues schedule repository
func NewScheduleRepository(client postgres.IClient, log *logger.Logger) schedule.Repository {
	return &scheduleRepository{client: client, log: log}
}

const scheduleColumns = `id, member_id, cadence, interval_months, anchor_day, amount, currency,
	coverage_start, coverage_end, next_invoice_date, schedule_status, payment_method,
	mandate_id, consecutive_failures, generation_failures, grace_period_expiry, review_reason,
	status, created_at, updated_at, created_by, updated_by`

const scheduleInsert = `INSERT INTO dues_schedules (` + scheduleColumns + `) VALUES (
	:id, :member_id, :cadence, :interval_months, :anchor_day, :amount, :currency,
	:coverage_start, :coverage_end, :next_invoice_date, :schedule_status, :payment_method,
	:mandate_id, :consecutive_failures, :generation_failures, :grace_period_expiry, :review_reason,
	:status, :created_at, :updated_at, :created_by, :updated_by)`

const scheduleUpdate = `UPDATE dues_schedules SET
	cadence = :cadence, interval_months = :interval_months, anchor_day = :anchor_day,
	amount = :amount, currency = :currency, coverage_start = :coverage_start,
	coverage_end = :coverage_end, next_invoice_date = :next_invoice_date,
	schedule_status = :schedule_status, payment_method = :payment_method,
	mandate_id = :mandate_id, consecutive_failures = :consecutive_failures,
	generation_failures = :generation_failures, grace_period_expiry = :grace_period_expiry,
	review_reason = :review_reason, status = :status, updated_at = :updated_at,
	updated_by = :updated_by
	WHERE id = :id`

func (r *scheduleRepository) Create(ctx context.Context, s *schedule.DuesSchedule) error {
	r.log.Debugw("creating dues schedule", "schedule_id", s.ID, "member_id", s.MemberID)

	if _, err := r.client.Querier(ctx).NamedExecContext(ctx, scheduleInsert, s); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("A conflicting schedule already exists for this member").
				WithReportableDetails(map[string]any{"member_id": s.MemberID}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create dues schedule").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *scheduleRepository) Get(ctx context.Context, id string) (*schedule.DuesSchedule, error) {
	var s schedule.DuesSchedule
	query := `SELECT ` + scheduleColumns + ` FROM dues_schedules WHERE id = $1 AND status != $2`
	err := r.client.Querier(ctx).GetContext(ctx, &s, query, id, types.StatusDeleted)
	if err != nil {
		if isNoRows(err) {
			return nil, ierr.NewError("schedule not found").
				WithHint("The requested dues schedule does not exist").
				WithReportableDetails(map[string]any{"schedule_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get dues schedule").
			Mark(ierr.ErrDatabase)
	}
	return &s, nil
}

func (r *scheduleRepository) Update(ctx context.Context, s *schedule.DuesSchedule) error {
	r.log.Debugw("updating dues schedule", "schedule_id", s.ID, "schedule_status", s.ScheduleStatus)

	res, err := r.client.Querier(ctx).NamedExecContext(ctx, scheduleUpdate, s)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update dues schedule").
			WithReportableDetails(map[string]any{"schedule_id": s.ID}).
			Mark(ierr.ErrDatabase)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ierr.NewError("schedule not found").
			WithHint("The requested dues schedule does not exist").
			WithReportableDetails(map[string]any{"schedule_id": s.ID}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *scheduleRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE dues_schedules SET status = $1, updated_at = now(), updated_by = $2 WHERE id = $3`
	res, err := r.client.Querier(ctx).ExecContext(ctx, query, types.StatusDeleted, types.GetOperatorID(ctx), id)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to delete dues schedule").
			Mark(ierr.ErrDatabase)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ierr.NewError("schedule not found").
			WithHint("The requested dues schedule does not exist").
			WithReportableDetails(map[string]any{"schedule_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *scheduleRepository) List(ctx context.Context, filter *types.ScheduleFilter) ([]*schedule.DuesSchedule, error) {
	qb := r.buildFilter(filter)
	query := `SELECT ` + scheduleColumns + ` FROM dues_schedules` + qb.clause() +
		orderAndPage(filter, []string{"created_at", "updated_at", "next_invoice_date", "member_id"}, "created_at")

	var out []*schedule.DuesSchedule
	if err := r.client.Querier(ctx).SelectContext(ctx, &out, query, qb.args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list dues schedules").
			Mark(ierr.ErrDatabase)
	}
	return out, nil
}

func (r *scheduleRepository) Count(ctx context.Context, filter *types.ScheduleFilter) (int, error) {
	qb := r.buildFilter(filter)
	query := `SELECT COUNT(*) FROM dues_schedules` + qb.clause()

	var count int
	if err := r.client.Querier(ctx).GetContext(ctx, &count, query, qb.args...); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count dues schedules").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}

func (r *scheduleRepository) GetActiveByMember(ctx context.Context, memberID string) (*schedule.DuesSchedule, error) {
	var s schedule.DuesSchedule
	query := `SELECT ` + scheduleColumns + ` FROM dues_schedules
		WHERE member_id = $1 AND schedule_status IN ($2, $3) AND status = $4
		ORDER BY created_at DESC LIMIT 1`
	err := r.client.Querier(ctx).GetContext(ctx, &s, query,
		memberID, types.ScheduleStatusActive, types.ScheduleStatusGracePeriod, types.StatusPublished)
	if err != nil {
		if isNoRows(err) {
			return nil, ierr.NewError("no active schedule for member").
				WithHint("The member has no active dues schedule").
				WithReportableDetails(map[string]any{"member_id": memberID}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get active schedule").
			Mark(ierr.ErrDatabase)
	}
	return &s, nil
}

func (r *scheduleRepository) ListDueForInvoicing(ctx context.Context, horizon string) ([]*schedule.DuesSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM dues_schedules
		WHERE schedule_status = $1 AND next_invoice_date <= $2 AND status = $3
		ORDER BY next_invoice_date ASC, id ASC`

	var out []*schedule.DuesSchedule
	err := r.client.Querier(ctx).SelectContext(ctx, &out, query,
		types.ScheduleStatusActive, horizon, types.StatusPublished)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list schedules due for invoicing").
			Mark(ierr.ErrDatabase)
	}
	return out, nil
}

func (r *scheduleRepository) buildFilter(filter *types.ScheduleFilter) *queryBuilder {
	qb := &queryBuilder{}
	qb.add("status != ?", types.StatusDeleted)
	if filter == nil {
		return qb
	}
	if len(filter.ScheduleIDs) > 0 {
		qb.add("id = ANY(?)", pq.Array(filter.ScheduleIDs))
	}
	if filter.MemberID != nil {
		qb.add("member_id = ?", *filter.MemberID)
	}
	if filter.ScheduleStatus != nil {
		qb.add("schedule_status = ?", *filter.ScheduleStatus)
	}
	if filter.NextInvoiceDateLTE != nil {
		qb.add("next_invoice_date <= ?", *filter.NextInvoiceDateLTE)
	}
	if filter.PaymentMethod != nil {
		qb.add("payment_method = ?", *filter.PaymentMethod)
	}
	if filter.GraceExpiryBefore != nil {
		qb.add("grace_period_expiry <= ?", *filter.GraceExpiryBefore)
	}
	if filter.WithLinkedMandateID != nil {
		qb.add("mandate_id = ?", *filter.WithLinkedMandateID)
	}
	if filter.TimeRangeFilter != nil {
		if filter.StartTime != nil {
			qb.add("created_at >= ?", *filter.StartTime)
		}
		if filter.EndTime != nil {
			qb.add("created_at <= ?", *filter.EndTime)
		}
	}
	return qb
}
