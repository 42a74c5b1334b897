package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/duespay/duespay/internal/domain/notification"
	ierr "github.com/duespay/duespay/internal/errors"
)

// InMemoryNotificationStore implements notification.Repository. The
// (schedule, stage, period) key is enforced under one lock so a duplicate
// dispatch fails the way the unique index in postgres does.
type InMemoryNotificationStore struct {
	mu         sync.RWMutex
	dispatches map[string]*notification.Dispatch
	keys       map[string]string // (schedule, stage, period) -> dispatch id
}

// NewInMemoryNotificationStore creates a new in-memory dispatch log
func NewInMemoryNotificationStore() *InMemoryNotificationStore {
	return &InMemoryNotificationStore{
		dispatches: make(map[string]*notification.Dispatch),
		keys:       make(map[string]string),
	}
}

// Clear resets all stored data
func (s *InMemoryNotificationStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatches = make(map[string]*notification.Dispatch)
	s.keys = make(map[string]string)
}

func dispatchKey(scheduleID, stage, periodKey string) string {
	return fmt.Sprintf("%s:%s:%s", scheduleID, stage, periodKey)
}

func (s *InMemoryNotificationStore) Create(ctx context.Context, dispatch *notification.Dispatch) error {
	if dispatch == nil {
		return ierr.NewError("dispatch cannot be nil").
			WithHint("Dispatch cannot be nil").
			Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := dispatchKey(dispatch.ScheduleID, string(dispatch.Stage), dispatch.PeriodKey)
	if _, exists := s.keys[key]; exists {
		return ierr.NewError("notification already dispatched").
			WithHint("This stage already fired for the coverage period").
			WithReportableDetails(map[string]any{
				"schedule_id": dispatch.ScheduleID,
				"stage":       dispatch.Stage,
				"period_key":  dispatch.PeriodKey,
			}).
			Mark(ierr.ErrAlreadyExists)
	}

	s.dispatches[dispatch.ID] = dispatch
	s.keys[key] = dispatch.ID
	return nil
}

func (s *InMemoryNotificationStore) Exists(ctx context.Context, scheduleID, stage, periodKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.keys[dispatchKey(scheduleID, stage, periodKey)]
	return exists, nil
}

func (s *InMemoryNotificationStore) ListBySchedule(ctx context.Context, scheduleID string) ([]*notification.Dispatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*notification.Dispatch, 0)
	for _, d := range s.dispatches {
		if d.ScheduleID == scheduleID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DispatchedAt.Before(out[j].DispatchedAt)
	})
	return out, nil
}
