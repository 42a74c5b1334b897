package testutil

import (
	"context"
	"time"

	"github.com/duespay/duespay/internal/domain/schedule"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/types"
)

// InMemoryScheduleStore implements schedule.Repository
type InMemoryScheduleStore struct {
	*InMemoryStore[*schedule.DuesSchedule]
}

// NewInMemoryScheduleStore creates a new in-memory schedule repository
func NewInMemoryScheduleStore() *InMemoryScheduleStore {
	return &InMemoryScheduleStore{
		InMemoryStore: NewInMemoryStore[*schedule.DuesSchedule](),
	}
}

func (m *InMemoryScheduleStore) Create(ctx context.Context, s *schedule.DuesSchedule) error {
	if s == nil {
		return ierr.NewError("schedule cannot be nil").
			WithHint("Schedule cannot be nil").
			Mark(ierr.ErrValidation)
	}
	if err := m.InMemoryStore.Create(ctx, s.ID, s); err != nil {
		return ierr.WithError(err).
			WithHint("Schedule already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	return nil
}

func (m *InMemoryScheduleStore) Get(ctx context.Context, id string) (*schedule.DuesSchedule, error) {
	s, err := m.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("schedule not found").
			WithHint("The requested dues schedule does not exist").
			WithReportableDetails(map[string]any{"schedule_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return s, nil
}

func (m *InMemoryScheduleStore) Update(ctx context.Context, s *schedule.DuesSchedule) error {
	if err := m.InMemoryStore.Update(ctx, s.ID, s); err != nil {
		return ierr.NewError("schedule not found").
			WithHint("The requested dues schedule does not exist").
			WithReportableDetails(map[string]any{"schedule_id": s.ID}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (m *InMemoryScheduleStore) Delete(ctx context.Context, id string) error {
	s, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	s.Status = types.StatusDeleted
	return m.Update(ctx, s)
}

func scheduleFilterFn(ctx context.Context, s *schedule.DuesSchedule, filter interface{}) bool {
	if s.Status == types.StatusDeleted {
		return false
	}
	f, ok := filter.(*types.ScheduleFilter)
	if !ok || f == nil {
		return true
	}
	if len(f.ScheduleIDs) > 0 {
		found := false
		for _, id := range f.ScheduleIDs {
			if id == s.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.MemberID != nil && s.MemberID != *f.MemberID {
		return false
	}
	if f.ScheduleStatus != nil && s.ScheduleStatus != *f.ScheduleStatus {
		return false
	}
	if f.NextInvoiceDateLTE != nil {
		limit, err := time.Parse(time.DateOnly, *f.NextInvoiceDateLTE)
		if err != nil || s.NextInvoiceDate.After(limit) {
			return false
		}
	}
	if f.PaymentMethod != nil && string(s.PaymentMethod) != *f.PaymentMethod {
		return false
	}
	if f.GraceExpiryBefore != nil {
		if s.GracePeriodExpiry == nil {
			return false
		}
		limit, err := time.Parse(time.DateOnly, *f.GraceExpiryBefore)
		if err != nil || s.GracePeriodExpiry.After(limit) {
			return false
		}
	}
	if f.WithLinkedMandateID != nil {
		if s.MandateID == nil || *s.MandateID != *f.WithLinkedMandateID {
			return false
		}
	}
	return true
}

func (m *InMemoryScheduleStore) List(ctx context.Context, filter *types.ScheduleFilter) ([]*schedule.DuesSchedule, error) {
	return m.InMemoryStore.List(ctx, filter, scheduleFilterFn,
		func(i, j *schedule.DuesSchedule) bool {
			return i.CreatedAt.After(j.CreatedAt)
		})
}

func (m *InMemoryScheduleStore) Count(ctx context.Context, filter *types.ScheduleFilter) (int, error) {
	return m.InMemoryStore.Count(ctx, filter, scheduleFilterFn)
}

func (m *InMemoryScheduleStore) GetActiveByMember(ctx context.Context, memberID string) (*schedule.DuesSchedule, error) {
	all, err := m.InMemoryStore.List(ctx, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	for _, s := range all {
		if s.Status == types.StatusDeleted || s.MemberID != memberID {
			continue
		}
		if s.ScheduleStatus == types.ScheduleStatusActive ||
			s.ScheduleStatus == types.ScheduleStatusGracePeriod {
			return s, nil
		}
	}
	return nil, ierr.NewError("no active schedule for member").
		WithHint("The member has no active dues schedule").
		WithReportableDetails(map[string]any{"member_id": memberID}).
		Mark(ierr.ErrNotFound)
}

func (m *InMemoryScheduleStore) ListDueForInvoicing(ctx context.Context, horizon string) ([]*schedule.DuesSchedule, error) {
	limit, err := time.Parse(time.DateOnly, horizon)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid horizon date").
			Mark(ierr.ErrValidation)
	}

	return m.InMemoryStore.List(ctx, nil,
		func(ctx context.Context, s *schedule.DuesSchedule, _ interface{}) bool {
			return s.Status != types.StatusDeleted &&
				s.ScheduleStatus == types.ScheduleStatusActive &&
				!s.NextInvoiceDate.After(limit)
		},
		func(i, j *schedule.DuesSchedule) bool {
			if i.NextInvoiceDate.Equal(j.NextInvoiceDate) {
				return i.ID < j.ID
			}
			return i.NextInvoiceDate.Before(j.NextInvoiceDate)
		})
}
