package repository

import (
	"context"

	"github.com/duespay/duespay/internal/cache"
	"github.com/duespay/duespay/internal/domain/mandate"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/logger"
	"github.com/duespay/duespay/internal/postgres"
	"github.com/duespay/duespay/internal/types"
	"github.com/lib/pq"
)

type mandateRepository struct {
	client postgres.IClient
	log    *logger.Logger
	cache  cache.Cache
}

// NewMandateRepository creates the postgres mandate repository
func NewMandateRepository(client postgres.IClient, log *logger.Logger, c cache.Cache) mandate.Repository {
	return &mandateRepository{client: client, log: log, cache: c}
}

const mandateColumns = `id, mandate_reference, member_id, iban, bic, account_holder,
	mandate_status, sign_date, first_payment_at, last_used_at, cancelled_reason,
	status, created_at, updated_at, created_by, updated_by`

func (r *mandateRepository) Create(ctx context.Context, m *mandate.Mandate) error {
	r.log.Debugw("creating mandate", "mandate_id", m.ID, "member_id", m.MemberID)

	query := `INSERT INTO mandates (` + mandateColumns + `) VALUES (
		:id, :mandate_reference, :member_id, :iban, :bic, :account_holder,
		:mandate_status, :sign_date, :first_payment_at, :last_used_at, :cancelled_reason,
		:status, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := r.client.Querier(ctx).NamedExecContext(ctx, query, m); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("A mandate with this reference already exists").
				WithReportableDetails(map[string]any{"mandate_reference": m.MandateReference}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create mandate").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *mandateRepository) Get(ctx context.Context, id string) (*mandate.Mandate, error) {
	key := cache.Key(cache.PrefixMandate, id)
	if v, ok := r.cache.Get(ctx, key); ok {
		if m, ok := v.(*mandate.Mandate); ok {
			return m, nil
		}
	}

	var m mandate.Mandate
	query := `SELECT ` + mandateColumns + ` FROM mandates WHERE id = $1 AND status != $2`
	err := r.client.Querier(ctx).GetContext(ctx, &m, query, id, types.StatusDeleted)
	if err != nil {
		if isNoRows(err) {
			return nil, ierr.NewError("mandate not found").
				WithHint("The requested mandate does not exist").
				WithReportableDetails(map[string]any{"mandate_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get mandate").
			Mark(ierr.ErrDatabase)
	}

	r.cache.Set(ctx, key, &m, 0)
	return &m, nil
}

func (r *mandateRepository) Update(ctx context.Context, m *mandate.Mandate) error {
	r.log.Debugw("updating mandate", "mandate_id", m.ID, "mandate_status", m.MandateStatus)

	query := `UPDATE mandates SET
		mandate_status = :mandate_status, first_payment_at = :first_payment_at,
		last_used_at = :last_used_at, cancelled_reason = :cancelled_reason,
		status = :status, updated_at = :updated_at, updated_by = :updated_by
		WHERE id = :id`
	res, err := r.client.Querier(ctx).NamedExecContext(ctx, query, m)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update mandate").
			WithReportableDetails(map[string]any{"mandate_id": m.ID}).
			Mark(ierr.ErrDatabase)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ierr.NewError("mandate not found").
			WithHint("The requested mandate does not exist").
			WithReportableDetails(map[string]any{"mandate_id": m.ID}).
			Mark(ierr.ErrNotFound)
	}

	r.cache.Delete(ctx, cache.Key(cache.PrefixMandate, m.ID))
	return nil
}

func (r *mandateRepository) List(ctx context.Context, filter *types.MandateFilter) ([]*mandate.Mandate, error) {
	qb := r.buildFilter(filter)
	query := `SELECT ` + mandateColumns + ` FROM mandates` + qb.clause() +
		orderAndPage(filter, []string{"created_at", "updated_at", "sign_date", "member_id"}, "created_at")

	var out []*mandate.Mandate
	if err := r.client.Querier(ctx).SelectContext(ctx, &out, query, qb.args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list mandates").
			Mark(ierr.ErrDatabase)
	}
	return out, nil
}

func (r *mandateRepository) Count(ctx context.Context, filter *types.MandateFilter) (int, error) {
	qb := r.buildFilter(filter)
	query := `SELECT COUNT(*) FROM mandates` + qb.clause()

	var count int
	if err := r.client.Querier(ctx).GetContext(ctx, &count, query, qb.args...); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count mandates").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}

func (r *mandateRepository) GetActiveByMember(ctx context.Context, memberID string) (*mandate.Mandate, error) {
	var m mandate.Mandate
	query := `SELECT ` + mandateColumns + ` FROM mandates
		WHERE member_id = $1 AND mandate_status = $2 AND status = $3
		ORDER BY sign_date DESC LIMIT 1`
	err := r.client.Querier(ctx).GetContext(ctx, &m, query,
		memberID, types.MandateStatusActive, types.StatusPublished)
	if err != nil {
		if isNoRows(err) {
			return nil, ierr.NewError("no active mandate for member").
				WithHint("The member has no active mandate").
				WithReportableDetails(map[string]any{"member_id": memberID}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get active mandate").
			Mark(ierr.ErrDatabase)
	}
	return &m, nil
}

func (r *mandateRepository) buildFilter(filter *types.MandateFilter) *queryBuilder {
	qb := &queryBuilder{}
	qb.add("status != ?", types.StatusDeleted)
	if filter == nil {
		return qb
	}
	if len(filter.MandateIDs) > 0 {
		qb.add("id = ANY(?)", pq.Array(filter.MandateIDs))
	}
	if filter.MemberID != nil {
		qb.add("member_id = ?", *filter.MemberID)
	}
	if filter.MandateStatus != nil {
		qb.add("mandate_status = ?", *filter.MandateStatus)
	}
	return qb
}
