package testutil

import (
	"context"

	"github.com/duespay/duespay/internal/domain/mandate"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/types"
)

// InMemoryMandateStore implements mandate.Repository
type InMemoryMandateStore struct {
	*InMemoryStore[*mandate.Mandate]
}

// NewInMemoryMandateStore creates a new in-memory mandate repository
func NewInMemoryMandateStore() *InMemoryMandateStore {
	return &InMemoryMandateStore{
		InMemoryStore: NewInMemoryStore[*mandate.Mandate](),
	}
}

func (m *InMemoryMandateStore) Create(ctx context.Context, mnd *mandate.Mandate) error {
	if mnd == nil {
		return ierr.NewError("mandate cannot be nil").
			WithHint("Mandate cannot be nil").
			Mark(ierr.ErrValidation)
	}
	if err := m.InMemoryStore.Create(ctx, mnd.ID, mnd); err != nil {
		return ierr.WithError(err).
			WithHint("Mandate already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	return nil
}

func (m *InMemoryMandateStore) Get(ctx context.Context, id string) (*mandate.Mandate, error) {
	mnd, err := m.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("mandate not found").
			WithHint("The requested mandate does not exist").
			WithReportableDetails(map[string]any{"mandate_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return mnd, nil
}

func (m *InMemoryMandateStore) Update(ctx context.Context, mnd *mandate.Mandate) error {
	if err := m.InMemoryStore.Update(ctx, mnd.ID, mnd); err != nil {
		return ierr.NewError("mandate not found").
			WithHint("The requested mandate does not exist").
			WithReportableDetails(map[string]any{"mandate_id": mnd.ID}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func mandateFilterFn(ctx context.Context, mnd *mandate.Mandate, filter interface{}) bool {
	if mnd.Status == types.StatusDeleted {
		return false
	}
	f, ok := filter.(*types.MandateFilter)
	if !ok || f == nil {
		return true
	}
	if len(f.MandateIDs) > 0 {
		found := false
		for _, id := range f.MandateIDs {
			if id == mnd.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.MemberID != nil && mnd.MemberID != *f.MemberID {
		return false
	}
	if f.MandateStatus != nil && mnd.MandateStatus != *f.MandateStatus {
		return false
	}
	return true
}

func (m *InMemoryMandateStore) List(ctx context.Context, filter *types.MandateFilter) ([]*mandate.Mandate, error) {
	return m.InMemoryStore.List(ctx, filter, mandateFilterFn,
		func(i, j *mandate.Mandate) bool {
			return i.CreatedAt.After(j.CreatedAt)
		})
}

func (m *InMemoryMandateStore) Count(ctx context.Context, filter *types.MandateFilter) (int, error) {
	return m.InMemoryStore.Count(ctx, filter, mandateFilterFn)
}

func (m *InMemoryMandateStore) GetActiveByMember(ctx context.Context, memberID string) (*mandate.Mandate, error) {
	all, err := m.InMemoryStore.List(ctx, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	for _, mnd := range all {
		if mnd.Status == types.StatusDeleted || mnd.MemberID != memberID {
			continue
		}
		if mnd.MandateStatus == types.MandateStatusActive {
			return mnd, nil
		}
	}
	return nil, ierr.NewError("no active mandate for member").
		WithHint("The member has no active mandate").
		WithReportableDetails(map[string]any{"member_id": memberID}).
		Mark(ierr.ErrNotFound)
}
