package testutil

import (
	"context"

	"github.com/duespay/duespay/internal/domain/failure"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/types"
	"github.com/samber/lo"
)

// InMemoryFailureStore implements failure.Repository
type InMemoryFailureStore struct {
	*InMemoryStore[*failure.Record]
}

// NewInMemoryFailureStore creates a new in-memory failure record repository
func NewInMemoryFailureStore() *InMemoryFailureStore {
	return &InMemoryFailureStore{
		InMemoryStore: NewInMemoryStore[*failure.Record](),
	}
}

func (s *InMemoryFailureStore) Create(ctx context.Context, record *failure.Record) error {
	if record == nil {
		return ierr.NewError("failure record cannot be nil").
			WithHint("Failure record cannot be nil").
			Mark(ierr.ErrValidation)
	}
	if err := s.InMemoryStore.Create(ctx, record.ID, record); err != nil {
		return ierr.WithError(err).
			WithHint("Failure record already exists").
			WithReportableDetails(map[string]any{"record_id": record.ID}).
			Mark(ierr.ErrAlreadyExists)
	}
	return nil
}

func (s *InMemoryFailureStore) Get(ctx context.Context, id string) (*failure.Record, error) {
	record, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("failure record not found").
			WithHint("The requested failure record does not exist").
			WithReportableDetails(map[string]any{"record_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return record, nil
}

func (s *InMemoryFailureStore) Update(ctx context.Context, record *failure.Record) error {
	if err := s.InMemoryStore.Update(ctx, record.ID, record); err != nil {
		return ierr.NewError("failure record not found").
			WithHint("The requested failure record does not exist").
			WithReportableDetails(map[string]any{"record_id": record.ID}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func failureFilterFn(ctx context.Context, r *failure.Record, filter interface{}) bool {
	if r.Status == types.StatusDeleted {
		return false
	}
	f, ok := filter.(*types.FailureFilter)
	if !ok || f == nil {
		return true
	}
	if f.ScheduleID != nil && r.ScheduleID != *f.ScheduleID {
		return false
	}
	if f.BatchID != nil && lo.FromPtr(r.BatchID) != *f.BatchID {
		return false
	}
	if f.FailureType != nil && r.FailureType != *f.FailureType {
		return false
	}
	if f.FailureStatus != nil && r.RecordStatus != *f.FailureStatus {
		return false
	}
	return true
}

func (s *InMemoryFailureStore) List(ctx context.Context, filter *types.FailureFilter) ([]*failure.Record, error) {
	return s.InMemoryStore.List(ctx, filter, failureFilterFn,
		func(i, j *failure.Record) bool {
			return i.CreatedAt.After(j.CreatedAt)
		})
}

func (s *InMemoryFailureStore) Count(ctx context.Context, filter *types.FailureFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, failureFilterFn)
}
