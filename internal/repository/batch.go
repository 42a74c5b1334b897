package repository

import (
	"context"

	"github.com/duespay/duespay/internal/domain/batch"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/logger"
	"github.com/duespay/duespay/internal/postgres"
	"github.com/duespay/duespay/internal/types"
	"github.com/lib/pq"
)

type batchRepository struct {
	client postgres.IClient
	log    *logger.Logger
}

// NewBatchRepository creates the postgres batch repository
func NewBatchRepository(client postgres.IClient, log *logger.Logger) batch.Repository {
	return &batchRepository{client: client, log: log}
}

const batchColumns = `id, batch_reference, execution_date, submission_deadline, batch_status,
	deadline_warning, total_amount, currency,
	status, created_at, updated_at, created_by, updated_by`

const transactionColumns = `id, batch_id, line_index, invoice_id, schedule_id, mandate_id,
	member_name, iban, bic, mandate_reference, mandate_sign_date, amount, currency,
	sequence_type, description,
	status, created_at, updated_at, created_by, updated_by`

// CreateWithTransactions persists the batch, its lines and one in-batch
// marker per invoice in a single transaction. The marker table's primary key
// on invoice_id is what makes concurrent composition safe: the second run to
// claim an invoice hits a unique violation and the whole batch rolls back.
func (r *batchRepository) CreateWithTransactions(ctx context.Context, b *batch.Batch, transactions []*batch.Transaction) error {
	r.log.Infow("creating batch",
		"batch_id", b.ID,
		"execution_date", b.ExecutionDate,
		"transaction_count", len(transactions),
	)

	return r.client.WithTx(ctx, func(ctx context.Context) error {
		q := r.client.Querier(ctx)

		batchInsert := `INSERT INTO debit_batches (` + batchColumns + `) VALUES (
			:id, :batch_reference, :execution_date, :submission_deadline, :batch_status,
			:deadline_warning, :total_amount, :currency,
			:status, :created_at, :updated_at, :created_by, :updated_by)`
		if _, err := q.NamedExecContext(ctx, batchInsert, b); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to create batch").
				Mark(ierr.ErrDatabase)
		}

		txnInsert := `INSERT INTO debit_batch_transactions (` + transactionColumns + `) VALUES (
			:id, :batch_id, :line_index, :invoice_id, :schedule_id, :mandate_id,
			:member_name, :iban, :bic, :mandate_reference, :mandate_sign_date, :amount, :currency,
			:sequence_type, :description,
			:status, :created_at, :updated_at, :created_by, :updated_by)`
		for _, t := range transactions {
			if _, err := q.NamedExecContext(ctx, txnInsert, t); err != nil {
				return ierr.WithError(err).
					WithHint("Failed to create batch transaction").
					WithReportableDetails(map[string]any{"invoice_id": t.InvoiceID}).
					Mark(ierr.ErrDatabase)
			}

			marker := `INSERT INTO batch_invoice_markers (invoice_id, batch_id, created_at) VALUES ($1, $2, now())`
			if _, err := q.ExecContext(ctx, marker, t.InvoiceID, b.ID); err != nil {
				if isUniqueViolation(err) {
					return ierr.WithError(err).
						WithHint("Invoice is already claimed by an open batch").
						WithReportableDetails(map[string]any{"invoice_id": t.InvoiceID}).
						Mark(ierr.ErrAlreadyExists)
				}
				return ierr.WithError(err).
					WithHint("Failed to claim invoice for batch").
					Mark(ierr.ErrDatabase)
			}
		}
		return nil
	})
}

func (r *batchRepository) Get(ctx context.Context, id string) (*batch.Batch, error) {
	var b batch.Batch
	query := `SELECT ` + batchColumns + ` FROM debit_batches WHERE id = $1 AND status != $2`
	err := r.client.Querier(ctx).GetContext(ctx, &b, query, id, types.StatusDeleted)
	if err != nil {
		if isNoRows(err) {
			return nil, ierr.NewError("batch not found").
				WithHint("The requested batch does not exist").
				WithReportableDetails(map[string]any{"batch_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get batch").
			Mark(ierr.ErrDatabase)
	}

	txns, err := r.ListTransactions(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Transactions = txns
	return &b, nil
}

// Update writes the batch and, when the batch has left the open states,
// releases its invoice markers in the same transaction so the invoices can
// be claimed again.
func (r *batchRepository) Update(ctx context.Context, b *batch.Batch) error {
	r.log.Debugw("updating batch", "batch_id", b.ID, "batch_status", b.BatchStatus)

	return r.client.WithTx(ctx, func(ctx context.Context) error {
		q := r.client.Querier(ctx)

		query := `UPDATE debit_batches SET
			batch_status = :batch_status, deadline_warning = :deadline_warning,
			total_amount = :total_amount, status = :status,
			updated_at = :updated_at, updated_by = :updated_by
			WHERE id = :id`
		res, err := q.NamedExecContext(ctx, query, b)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Failed to update batch").
				WithReportableDetails(map[string]any{"batch_id": b.ID}).
				Mark(ierr.ErrDatabase)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ierr.NewError("batch not found").
				WithHint("The requested batch does not exist").
				WithReportableDetails(map[string]any{"batch_id": b.ID}).
				Mark(ierr.ErrNotFound)
		}

		if !b.BatchStatus.IsOpen() {
			release := `DELETE FROM batch_invoice_markers WHERE batch_id = $1`
			if _, err := q.ExecContext(ctx, release, b.ID); err != nil {
				return ierr.WithError(err).
					WithHint("Failed to release batch invoice markers").
					Mark(ierr.ErrDatabase)
			}
		}
		return nil
	})
}

func (r *batchRepository) List(ctx context.Context, filter *types.BatchFilter) ([]*batch.Batch, error) {
	qb := r.buildFilter(filter)
	query := `SELECT ` + batchColumns + ` FROM debit_batches` + qb.clause() +
		orderAndPage(filter, []string{"created_at", "updated_at", "execution_date"}, "created_at")

	var out []*batch.Batch
	if err := r.client.Querier(ctx).SelectContext(ctx, &out, query, qb.args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list batches").
			Mark(ierr.ErrDatabase)
	}
	return out, nil
}

func (r *batchRepository) Count(ctx context.Context, filter *types.BatchFilter) (int, error) {
	qb := r.buildFilter(filter)
	query := `SELECT COUNT(*) FROM debit_batches` + qb.clause()

	var count int
	if err := r.client.Querier(ctx).GetContext(ctx, &count, query, qb.args...); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count batches").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}

func (r *batchRepository) ListTransactions(ctx context.Context, batchID string) ([]*batch.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM debit_batch_transactions
		WHERE batch_id = $1 AND status != $2
		ORDER BY line_index ASC`

	var out []*batch.Transaction
	if err := r.client.Querier(ctx).SelectContext(ctx, &out, query, batchID, types.StatusDeleted); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list batch transactions").
			Mark(ierr.ErrDatabase)
	}
	return out, nil
}

func (r *batchRepository) ListOpenInvoiceIDs(ctx context.Context) ([]string, error) {
	query := `SELECT invoice_id FROM batch_invoice_markers ORDER BY invoice_id`

	var out []string
	if err := r.client.Querier(ctx).SelectContext(ctx, &out, query); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list claimed invoices").
			Mark(ierr.ErrDatabase)
	}
	return out, nil
}

func (r *batchRepository) buildFilter(filter *types.BatchFilter) *queryBuilder {
	qb := &queryBuilder{}
	qb.add("status != ?", types.StatusDeleted)
	if filter == nil {
		return qb
	}
	if len(filter.BatchIDs) > 0 {
		qb.add("id = ANY(?)", pq.Array(filter.BatchIDs))
	}
	if filter.BatchStatus != nil {
		qb.add("batch_status = ?", *filter.BatchStatus)
	}
	if filter.TimeRangeFilter != nil {
		if filter.StartTime != nil {
			qb.add("execution_date >= ?", *filter.StartTime)
		}
		if filter.EndTime != nil {
			qb.add("execution_date <= ?", *filter.EndTime)
		}
	}
	return qb
}
