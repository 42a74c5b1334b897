package service

import (
	"context"
	"time"

	"github.com/duespay/duespay/internal/domain/mandate"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/types"
	"github.com/samber/lo"
)

// MandateService owns the direct-debit authorization lifecycle
type MandateService interface {
	CreateMandate(ctx context.Context, m *mandate.Mandate) error
	GetMandate(ctx context.Context, id string) (*mandate.Mandate, error)
	ListMandates(ctx context.Context, filter *types.MandateFilter) ([]*mandate.Mandate, error)

	// MarkPending moves a draft mandate to PENDING after the member's first
	// out-of-band payment
	MarkPending(ctx context.Context, id string) error

	// Activate moves a pending mandate to ACTIVE, enforcing at most one
	// active mandate per member
	Activate(ctx context.Context, id string) error

	// RecordSuccessfulUsage stamps last_used_at after a confirmed collection,
	// flipping the mandate's sequence type from FRST to RCUR
	RecordSuccessfulUsage(ctx context.Context, id string, usedAt time.Time) error

	// Cancel revokes the mandate; terminal from every state
	Cancel(ctx context.Context, id string, reason string) error
}

type mandateService struct {
	ServiceParams
}

// NewMandateService creates the mandate service
func NewMandateService(params ServiceParams) MandateService {
	return &mandateService{ServiceParams: params}
}

func (s *mandateService) CreateMandate(ctx context.Context, m *mandate.Mandate) error {
	if m.ID == "" {
		m.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_MANDATE)
	}
	if m.MandateReference == "" {
		m.MandateReference = types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_MANDATE)
	}
	if m.MandateStatus == "" {
		m.MandateStatus = types.MandateStatusDraft
	}
	m.BaseModel = types.GetDefaultBaseModel(ctx)

	if err := m.Validate(); err != nil {
		return err
	}
	return s.MandateRepo.Create(ctx, m)
}

func (s *mandateService) GetMandate(ctx context.Context, id string) (*mandate.Mandate, error) {
	return s.MandateRepo.Get(ctx, id)
}

func (s *mandateService) ListMandates(ctx context.Context, filter *types.MandateFilter) ([]*mandate.Mandate, error) {
	if filter == nil {
		filter = &types.MandateFilter{QueryFilter: types.NewDefaultQueryFilter()}
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.MandateRepo.List(ctx, filter)
}

func (s *mandateService) MarkPending(ctx context.Context, id string) error {
	return s.transition(ctx, id, types.MandateStatusPending, nil)
}

func (s *mandateService) Activate(ctx context.Context, id string) error {
	m, err := s.MandateRepo.Get(ctx, id)
	if err != nil {
		return err
	}

	// At most one active mandate per member
	active, err := s.MandateRepo.GetActiveByMember(ctx, m.MemberID)
	if err != nil && !ierr.IsNotFound(err) {
		return err
	}
	if active != nil && active.ID != id {
		return ierr.NewError("member already has an active mandate").
			WithHint("Cancel the existing mandate before activating a new one").
			WithReportableDetails(map[string]any{
				"member_id":           m.MemberID,
				"existing_mandate_id": active.ID,
			}).
			Mark(ierr.ErrAlreadyExists)
	}

	return s.transition(ctx, id, types.MandateStatusActive, nil)
}

func (s *mandateService) RecordSuccessfulUsage(ctx context.Context, id string, usedAt time.Time) error {
	m, err := s.MandateRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !m.IsUsable() {
		return ierr.NewError("mandate is not usable").
			WithHint("Only active mandates record usage").
			WithReportableDetails(map[string]any{
				"mandate_id": id,
				"status":     m.MandateStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	if m.FirstPaymentAt == nil {
		m.FirstPaymentAt = lo.ToPtr(usedAt)
	}
	m.LastUsedAt = lo.ToPtr(usedAt)
	m.UpdatedAt = time.Now().UTC()
	m.UpdatedBy = types.GetOperatorID(ctx)

	s.Logger.Infow("recorded mandate usage",
		"mandate_id", m.ID,
		"used_at", usedAt.Format(time.DateOnly),
		"next_sequence_type", m.NextSequenceType(),
	)
	return s.MandateRepo.Update(ctx, m)
}

func (s *mandateService) Cancel(ctx context.Context, id string, reason string) error {
	if err := s.transition(ctx, id, types.MandateStatusCancelled, &reason); err != nil {
		return err
	}

	event, err := types.NewOperatorEvent(types.EventMandateCancelled, map[string]any{
		"mandate_id": id,
		"reason":     reason,
	})
	if err == nil {
		if perr := s.EventPublisher.PublishEvent(ctx, event); perr != nil {
			s.Logger.Errorw("failed to publish mandate cancellation event",
				"mandate_id", id,
				"error", perr,
			)
		}
	}
	return nil
}

func (s *mandateService) transition(ctx context.Context, id string, target types.MandateStatus, reason *string) error {
	m, err := s.MandateRepo.Get(ctx, id)
	if err != nil {
		return err
	}

	if !m.MandateStatus.CanTransitionTo(target) {
		return ierr.NewError("invalid mandate transition").
			WithHint("The mandate cannot move to the requested status").
			WithReportableDetails(map[string]any{
				"mandate_id": id,
				"from":       m.MandateStatus,
				"to":         target,
			}).
			Mark(ierr.ErrInvalidTransition)
	}

	m.MandateStatus = target
	if target == types.MandateStatusCancelled {
		m.CancelledReason = reason
	}
	m.UpdatedAt = time.Now().UTC()
	m.UpdatedBy = types.GetOperatorID(ctx)

	return s.MandateRepo.Update(ctx, m)
}
