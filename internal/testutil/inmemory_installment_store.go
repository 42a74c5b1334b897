package testutil

import (
	"context"
	"time"

	"github.com/duespay/duespay/internal/domain/schedule"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/types"
)

// InMemoryInstallmentStore implements schedule.InstallmentRepository
type InMemoryInstallmentStore struct {
	*InMemoryStore[*schedule.Installment]
}

// NewInMemoryInstallmentStore creates a new in-memory installment repository
func NewInMemoryInstallmentStore() *InMemoryInstallmentStore {
	return &InMemoryInstallmentStore{
		InMemoryStore: NewInMemoryStore[*schedule.Installment](),
	}
}

func (m *InMemoryInstallmentStore) Create(ctx context.Context, i *schedule.Installment) error {
	if i == nil {
		return ierr.NewError("installment cannot be nil").
			WithHint("Installment cannot be nil").
			Mark(ierr.ErrValidation)
	}
	if err := m.InMemoryStore.Create(ctx, i.ID, i); err != nil {
		return ierr.WithError(err).
			WithHint("Installment already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	return nil
}

func (m *InMemoryInstallmentStore) Update(ctx context.Context, i *schedule.Installment) error {
	if err := m.InMemoryStore.Update(ctx, i.ID, i); err != nil {
		return ierr.NewError("installment not found").
			WithHint("The requested installment does not exist").
			WithReportableDetails(map[string]any{"installment_id": i.ID}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (m *InMemoryInstallmentStore) ListBySchedule(ctx context.Context, scheduleID string) ([]*schedule.Installment, error) {
	return m.InMemoryStore.List(ctx, nil,
		func(ctx context.Context, i *schedule.Installment, _ interface{}) bool {
			return i.Status != types.StatusDeleted && i.ScheduleID == scheduleID
		},
		func(i, j *schedule.Installment) bool {
			return i.DueDate.Before(j.DueDate)
		})
}

func (m *InMemoryInstallmentStore) ListPendingDue(ctx context.Context, horizon string) ([]*schedule.Installment, error) {
	limit, err := time.Parse(time.DateOnly, horizon)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid horizon date").
			Mark(ierr.ErrValidation)
	}

	return m.InMemoryStore.List(ctx, nil,
		func(ctx context.Context, i *schedule.Installment, _ interface{}) bool {
			return i.Status != types.StatusDeleted &&
				i.State == schedule.InstallmentStatusPending &&
				!i.DueDate.After(limit)
		},
		func(i, j *schedule.Installment) bool {
			return i.DueDate.Before(j.DueDate)
		})
}
