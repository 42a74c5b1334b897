package repository

import (
	"context"

	"github.com/duespay/duespay/internal/domain/failure"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/logger"
	"github.com/duespay/duespay/internal/postgres"
	"github.com/duespay/duespay/internal/types"
)

type failureRepository struct {
	client postgres.IClient
	log    *logger.Logger
}

// NewFailureRepository creates the postgres failure record repository
func NewFailureRepository(client postgres.IClient, log *logger.Logger) failure.Repository {
	return &failureRepository{client: client, log: log}
}

const failureColumns = `id, schedule_id, invoice_id, mandate_id, batch_id, return_code,
	failure_type, severity, record_status, amount, resolution_notes, resolved_by, resolved_at,
	status, created_at, updated_at, created_by, updated_by`

func (r *failureRepository) Create(ctx context.Context, rec *failure.Record) error {
	r.log.Infow("recording payment failure",
		"failure_id", rec.ID,
		"schedule_id", rec.ScheduleID,
		"return_code", rec.ReturnCode,
		"failure_type", rec.FailureType,
	)

	query := `INSERT INTO failure_records (` + failureColumns + `) VALUES (
		:id, :schedule_id, :invoice_id, :mandate_id, :batch_id, :return_code,
		:failure_type, :severity, :record_status, :amount, :resolution_notes, :resolved_by, :resolved_at,
		:status, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := r.client.Querier(ctx).NamedExecContext(ctx, query, rec); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create failure record").
			WithReportableDetails(map[string]any{"schedule_id": rec.ScheduleID}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *failureRepository) Get(ctx context.Context, id string) (*failure.Record, error) {
	var rec failure.Record
	query := `SELECT ` + failureColumns + ` FROM failure_records WHERE id = $1 AND status != $2`
	err := r.client.Querier(ctx).GetContext(ctx, &rec, query, id, types.StatusDeleted)
	if err != nil {
		if isNoRows(err) {
			return nil, ierr.NewError("failure record not found").
				WithHint("The requested failure record does not exist").
				WithReportableDetails(map[string]any{"failure_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get failure record").
			Mark(ierr.ErrDatabase)
	}
	return &rec, nil
}

// Update only touches resolution fields; classification is immutable once
// recorded.
func (r *failureRepository) Update(ctx context.Context, rec *failure.Record) error {
	query := `UPDATE failure_records SET
		record_status = :record_status, resolution_notes = :resolution_notes,
		resolved_by = :resolved_by, resolved_at = :resolved_at,
		updated_at = :updated_at, updated_by = :updated_by
		WHERE id = :id`
	res, err := r.client.Querier(ctx).NamedExecContext(ctx, query, rec)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update failure record").
			WithReportableDetails(map[string]any{"failure_id": rec.ID}).
			Mark(ierr.ErrDatabase)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ierr.NewError("failure record not found").
			WithHint("The requested failure record does not exist").
			WithReportableDetails(map[string]any{"failure_id": rec.ID}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *failureRepository) List(ctx context.Context, filter *types.FailureFilter) ([]*failure.Record, error) {
	qb := r.buildFilter(filter)
	query := `SELECT ` + failureColumns + ` FROM failure_records` + qb.clause() +
		orderAndPage(filter, []string{"created_at", "updated_at", "severity"}, "created_at")

	var out []*failure.Record
	if err := r.client.Querier(ctx).SelectContext(ctx, &out, query, qb.args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list failure records").
			Mark(ierr.ErrDatabase)
	}
	return out, nil
}

func (r *failureRepository) Count(ctx context.Context, filter *types.FailureFilter) (int, error) {
	qb := r.buildFilter(filter)
	query := `SELECT COUNT(*) FROM failure_records` + qb.clause()

	var count int
	if err := r.client.Querier(ctx).GetContext(ctx, &count, query, qb.args...); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count failure records").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}

func (r *failureRepository) buildFilter(filter *types.FailureFilter) *queryBuilder {
	qb := &queryBuilder{}
	qb.add("status != ?", types.StatusDeleted)
	if filter == nil {
		return qb
	}
	if filter.ScheduleID != nil {
		qb.add("schedule_id = ?", *filter.ScheduleID)
	}
	if filter.BatchID != nil {
		qb.add("batch_id = ?", *filter.BatchID)
	}
	if filter.FailureType != nil {
		qb.add("failure_type = ?", *filter.FailureType)
	}
	if filter.FailureStatus != nil {
		qb.add("record_status = ?", *filter.FailureStatus)
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
