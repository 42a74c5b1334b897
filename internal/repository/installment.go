package repository

import (
	"context"

	"github.com/duespay/duespay/internal/domain/schedule"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/logger"
	"github.com/duespay/duespay/internal/postgres"
	"github.com/duespay/duespay/internal/types"
)

type installmentRepository struct {
	client postgres.IClient
	log    *logger.Logger
}

// NewInstallmentRepository creates the postgres payment-plan installment
// repository
func NewInstallmentRepository(client postgres.IClient, log *logger.Logger) schedule.InstallmentRepository {
	return &installmentRepository{client: client, log: log}
}

const installmentColumns = `id, schedule_id, due_date, amount, invoice_id, state,
	status, created_at, updated_at, created_by, updated_by`

func (r *installmentRepository) Create(ctx context.Context, i *schedule.Installment) error {
	r.log.Debugw("creating installment", "installment_id", i.ID, "schedule_id", i.ScheduleID)

	query := `INSERT INTO payment_plan_installments (` + installmentColumns + `) VALUES (
		:id, :schedule_id, :due_date, :amount, :invoice_id, :state,
		:status, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := r.client.Querier(ctx).NamedExecContext(ctx, query, i); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create installment").
			WithReportableDetails(map[string]any{"schedule_id": i.ScheduleID}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *installmentRepository) Update(ctx context.Context, i *schedule.Installment) error {
	query := `UPDATE payment_plan_installments SET
		due_date = :due_date, amount = :amount, invoice_id = :invoice_id, state = :state,
		status = :status, updated_at = :updated_at, updated_by = :updated_by
		WHERE id = :id`
	res, err := r.client.Querier(ctx).NamedExecContext(ctx, query, i)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update installment").
			WithReportableDetails(map[string]any{"installment_id": i.ID}).
			Mark(ierr.ErrDatabase)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ierr.NewError("installment not found").
			WithHint("The requested installment does not exist").
			WithReportableDetails(map[string]any{"installment_id": i.ID}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *installmentRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]*schedule.Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM payment_plan_installments
		WHERE schedule_id = $1 AND status != $2
		ORDER BY due_date ASC`

	var out []*schedule.Installment
	if err := r.client.Querier(ctx).SelectContext(ctx, &out, query, scheduleID, types.StatusDeleted); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list installments").
			Mark(ierr.ErrDatabase)
	}
	return out, nil
}

func (r *installmentRepository) ListPendingDue(ctx context.Context, horizon string) ([]*schedule.Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM payment_plan_installments
		WHERE state = $1 AND due_date <= $2 AND status = $3
		ORDER BY due_date ASC, id ASC`

	var out []*schedule.Installment
	err := r.client.Querier(ctx).SelectContext(ctx, &out, query,
		schedule.InstallmentStatusPending, horizon, types.StatusPublished)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list pending installments").
			Mark(ierr.ErrDatabase)
	}
	return out, nil
}
