package service

import (
	"context"
	"fmt"
	"time"

	"github.com/duespay/duespay/internal/domain/ledger"
	"github.com/duespay/duespay/internal/domain/schedule"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/idempotency"
	"github.com/duespay/duespay/internal/types"
	"github.com/samber/lo"
)

// generationFailureThreshold is the number of consecutive ledger errors
// after which a schedule is parked for manual review
const generationFailureThreshold = 3

// GenerationRunReport summarizes one daily generation run
type GenerationRunReport struct {
	RunDate   time.Time `json:"run_date"`
	Generated int       `json:"generated"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Flagged   int       `json:"flagged"`
}

// GracePeriodSweepReport summarizes one grace-period sweep
type GracePeriodSweepReport struct {
	RunDate   time.Time `json:"run_date"`
	Swept     int       `json:"swept"`
	Suspended []string  `json:"suspended,omitempty"`
}

// DuesScheduleService owns the anniversary-based invoicing lifecycle
type DuesScheduleService interface {
	CreateSchedule(ctx context.Context, s *schedule.DuesSchedule) error
	GetSchedule(ctx context.Context, id string) (*schedule.DuesSchedule, error)
	UpdateScheduleStatus(ctx context.Context, id string, target types.ScheduleStatus, reason string) error
	ListSchedules(ctx context.Context, filter *types.ScheduleFilter) ([]*schedule.DuesSchedule, error)

	// ComputeNextInvoiceDate returns the next occurrence of the schedule's
	// anchor day on or after today, clamped to month length
	ComputeNextInvoiceDate(s *schedule.DuesSchedule, today time.Time) (time.Time, error)

	// IsEligibleForInvoice applies the generation eligibility rules
	IsEligibleForInvoice(ctx context.Context, s *schedule.DuesSchedule, today time.Time) (bool, error)

	// GenerateInvoice creates the next period's invoice through the ledger
	// and advances the schedule's coverage window
	GenerateInvoice(ctx context.Context, s *schedule.DuesSchedule) (string, error)

	// RunDailyGeneration processes every schedule due for invoicing with
	// per-schedule fault isolation
	RunDailyGeneration(ctx context.Context, today time.Time) (*GenerationRunReport, error)

	// GenerateInstallmentInvoices invoices due payment-plan installments
	GenerateInstallmentInvoices(ctx context.Context, today time.Time) (*GenerationRunReport, error)

	// SweepGracePeriods suspends schedules whose grace period has expired
	SweepGracePeriods(ctx context.Context, today time.Time) (*GracePeriodSweepReport, error)

	// StartGracePeriod is the operator action that parks an active schedule
	// in grace period until today + configured grace days
	StartGracePeriod(ctx context.Context, id string, today time.Time) error

	// CreatePaymentPlan parks the schedule in PAYMENT_PLAN and records the
	// agreed installments; invoicing then follows the installment table
	CreatePaymentPlan(ctx context.Context, scheduleID string, installments []*schedule.Installment) error

	// ListInstallments returns a schedule's payment-plan installments
	ListInstallments(ctx context.Context, scheduleID string) ([]*schedule.Installment, error)
}

type duesScheduleService struct {
	ServiceParams
}

// NewDuesScheduleService creates the dues schedule service
func NewDuesScheduleService(params ServiceParams) DuesScheduleService {
	return &duesScheduleService{ServiceParams: params}
}

func (s *duesScheduleService) CreateSchedule(ctx context.Context, sched *schedule.DuesSchedule) error {
	if sched.ID == "" {
		sched.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SCHEDULE)
	}
	sched.BaseModel = types.GetDefaultBaseModel(ctx)

	if sched.NextInvoiceDate.IsZero() {
		next, err := types.NextAnchorDate(time.Now().UTC(), sched.AnchorDay)
		if err != nil {
			return err
		}
		sched.NextInvoiceDate = next
	}
	if sched.Currency == "" {
		sched.Currency = s.Config.Billing.Currency
	}

	if err := sched.Validate(); err != nil {
		return err
	}

	// One Active-or-GracePeriod schedule per member
	existing, err := s.ScheduleRepo.GetActiveByMember(ctx, sched.MemberID)
	if err != nil && !ierr.IsNotFound(err) {
		return err
	}
	if existing != nil {
		return ierr.NewError("member already has an active schedule").
			WithHint("A member can have at most one active dues schedule").
			WithReportableDetails(map[string]any{
				"member_id":            sched.MemberID,
				"existing_schedule_id": existing.ID,
			}).
			Mark(ierr.ErrAlreadyExists)
	}

	return s.ScheduleRepo.Create(ctx, sched)
}

func (s *duesScheduleService) GetSchedule(ctx context.Context, id string) (*schedule.DuesSchedule, error) {
	return s.ScheduleRepo.Get(ctx, id)
}

func (s *duesScheduleService) ListSchedules(ctx context.Context, filter *types.ScheduleFilter) ([]*schedule.DuesSchedule, error) {
	if filter == nil {
		filter = &types.ScheduleFilter{QueryFilter: types.NewDefaultQueryFilter()}
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.ScheduleRepo.List(ctx, filter)
}

// UpdateScheduleStatus applies an operator-driven status change. Re-entry
// from MANUAL_REVIEW is allowed here and nowhere else in the system.
func (s *duesScheduleService) UpdateScheduleStatus(ctx context.Context, id string, target types.ScheduleStatus, reason string) error {
	if err := target.Validate(); err != nil {
		return err
	}

	sched, err := s.ScheduleRepo.Get(ctx, id)
	if err != nil {
		return err
	}

	if sched.ScheduleStatus == types.ScheduleStatusCancelled ||
		sched.ScheduleStatus == types.ScheduleStatusSuspended {
		return ierr.NewError("schedule is in a terminal state").
			WithHint("Cancelled or suspended schedules cannot change status").
			WithReportableDetails(map[string]any{
				"schedule_id": id,
				"status":      sched.ScheduleStatus,
			}).
			Mark(ierr.ErrInvalidTransition)
	}

	sched.ScheduleStatus = target
	if reason != "" {
		sched.ReviewReason = lo.ToPtr(reason)
	}
	if target == types.ScheduleStatusActive {
		sched.ReviewReason = nil
		sched.ConsecutiveFailures = 0
		sched.GenerationFailures = 0
		sched.GracePeriodExpiry = nil
	}
	sched.UpdatedAt = time.Now().UTC()
	sched.UpdatedBy = types.GetOperatorID(ctx)

	return s.ScheduleRepo.Update(ctx, sched)
}

func (s *duesScheduleService) ComputeNextInvoiceDate(sched *schedule.DuesSchedule, today time.Time) (time.Time, error) {
	return types.NextAnchorDate(today, sched.AnchorDay)
}

func (s *duesScheduleService) IsEligibleForInvoice(ctx context.Context, sched *schedule.DuesSchedule, today time.Time) (bool, error) {
	if !sched.IsEligibleForGeneration() {
		return false, nil
	}

	horizon := types.DateOnly(today).AddDate(0, 0, s.Config.Billing.InvoiceLookaheadDays)
	if sched.NextInvoiceDate.After(horizon) {
		return false, nil
	}

	coverageStart, _ := sched.CoveragePeriodFor(sched.NextInvoiceDate)
	exists, err := s.Ledger.HasInvoiceForPeriod(ctx, sched.ID, coverageStart.Format(time.DateOnly))
	if err != nil {
		return false, err
	}
	return !exists, nil
}

func (s *duesScheduleService) GenerateInvoice(ctx context.Context, sched *schedule.DuesSchedule) (string, error) {
	coverageStart, coverageEnd := sched.CoveragePeriodFor(sched.NextInvoiceDate)

	key := s.IdempGen.GenerateKey(idempotency.ScopeDuesInvoice, map[string]interface{}{
		"schedule_id":    sched.ID,
		"coverage_start": coverageStart.Format(time.DateOnly),
	})

	invoiceID, err := s.Ledger.CreateInvoice(ctx, &ledger.CreateInvoiceRequest{
		ScheduleID:    sched.ID,
		MemberID:      sched.MemberID,
		Amount:        sched.Amount,
		Currency:      sched.Currency,
		CoverageStart: coverageStart,
		CoverageEnd:   coverageEnd,
		DueDate:       sched.NextInvoiceDate,
		Description: fmt.Sprintf("Membership dues %s to %s",
			coverageStart.Format(time.DateOnly), coverageEnd.Format(time.DateOnly)),
		IdempotencyKey: key,
	})
	if err != nil && !ierr.IsAlreadyExists(err) {
		return "", err
	}
	if ierr.IsAlreadyExists(err) {
		s.Logger.Infow("invoice already exists for period, advancing schedule",
			"schedule_id", sched.ID,
			"invoice_id", invoiceID,
			"coverage_start", coverageStart.Format(time.DateOnly),
		)
	}

	// Advance the schedule past the invoiced period
	months := sched.Cadence.IntervalMonths(sched.IntervalMonths)
	sched.CoverageStart = lo.ToPtr(coverageStart)
	sched.CoverageEnd = lo.ToPtr(coverageEnd)
	sched.NextInvoiceDate = types.AdvanceAnchorDate(sched.NextInvoiceDate, sched.AnchorDay, months)
	sched.GenerationFailures = 0
	sched.UpdatedAt = time.Now().UTC()
	sched.UpdatedBy = types.GetOperatorID(ctx)

	if err := s.ScheduleRepo.Update(ctx, sched); err != nil {
		return "", err
	}

	s.Logger.Infow("generated dues invoice",
		"schedule_id", sched.ID,
		"invoice_id", invoiceID,
		"coverage_start", coverageStart.Format(time.DateOnly),
		"coverage_end", coverageEnd.Format(time.DateOnly),
		"next_invoice_date", sched.NextInvoiceDate.Format(time.DateOnly),
	)
	return invoiceID, nil
}

func (s *duesScheduleService) RunDailyGeneration(ctx context.Context, today time.Time) (*GenerationRunReport, error) {
	report := &GenerationRunReport{RunDate: types.DateOnly(today)}

	horizon := types.DateOnly(today).AddDate(0, 0, s.Config.Billing.InvoiceLookaheadDays)
	due, err := s.ScheduleRepo.ListDueForInvoicing(ctx, horizon.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("starting daily invoice generation",
		"run_date", report.RunDate.Format(time.DateOnly),
		"candidates", len(due),
	)

	for _, sched := range due {
		eligible, err := s.IsEligibleForInvoice(ctx, sched, today)
		if err != nil {
			report.Failed++
			s.recordGenerationFailure(ctx, sched, err, report)
			continue
		}
		if !eligible {
			report.Skipped++
			continue
		}

		if _, err := s.GenerateInvoice(ctx, sched); err != nil {
			report.Failed++
			s.recordGenerationFailure(ctx, sched, err, report)
			continue
		}
		report.Generated++
	}

	s.Logger.Infow("daily invoice generation finished",
		"generated", report.Generated,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"flagged", report.Flagged,
	)
	return report, nil
}

// recordGenerationFailure isolates one schedule's failure from the rest of
// the run and flags the schedule after three consecutive failed attempts
func (s *duesScheduleService) recordGenerationFailure(ctx context.Context, sched *schedule.DuesSchedule, cause error, report *GenerationRunReport) {
	s.Logger.Errorw("invoice generation failed for schedule",
		"schedule_id", sched.ID,
		"error", cause,
	)

	sched.GenerationFailures++
	if sched.GenerationFailures >= generationFailureThreshold {
		sched.ScheduleStatus = types.ScheduleStatusManualReview
		sched.ReviewReason = lo.ToPtr(fmt.Sprintf(
			"invoice generation failed %d consecutive times: %s",
			sched.GenerationFailures, cause.Error()))
		report.Flagged++
		s.publishScheduleEvent(ctx, types.EventScheduleManualReview, sched)
	}
	sched.UpdatedAt = time.Now().UTC()

	if err := s.ScheduleRepo.Update(ctx, sched); err != nil {
		s.Logger.Errorw("failed to persist generation failure count",
			"schedule_id", sched.ID,
			"error", err,
		)
	}
}

func (s *duesScheduleService) GenerateInstallmentInvoices(ctx context.Context, today time.Time) (*GenerationRunReport, error) {
	report := &GenerationRunReport{RunDate: types.DateOnly(today)}

	due, err := s.InstallmentRepo.ListPendingDue(ctx, types.DateOnly(today).Format(time.DateOnly))
	if err != nil {
		return nil, err
	}

	for _, inst := range due {
		sched, err := s.ScheduleRepo.Get(ctx, inst.ScheduleID)
		if err != nil {
			report.Failed++
			s.Logger.Errorw("installment references unknown schedule",
				"installment_id", inst.ID,
				"schedule_id", inst.ScheduleID,
				"error", err,
			)
			continue
		}
		if sched.ScheduleStatus != types.ScheduleStatusPaymentPlan {
			report.Skipped++
			continue
		}

		key := s.IdempGen.GenerateKey(idempotency.ScopeInstallmentInvoice, map[string]interface{}{
			"installment_id": inst.ID,
		})
		invoiceID, err := s.Ledger.CreateInvoice(ctx, &ledger.CreateInvoiceRequest{
			ScheduleID:     sched.ID,
			MemberID:       sched.MemberID,
			Amount:         inst.Amount,
			Currency:       sched.Currency,
			CoverageStart:  inst.DueDate,
			CoverageEnd:    inst.DueDate,
			DueDate:        inst.DueDate,
			Description:    fmt.Sprintf("Payment plan installment due %s", inst.DueDate.Format(time.DateOnly)),
			IdempotencyKey: key,
		})
		if err != nil && !ierr.IsAlreadyExists(err) {
			report.Failed++
			s.Logger.Errorw("installment invoicing failed",
				"installment_id", inst.ID,
				"error", err,
			)
			continue
		}

		inst.InvoiceID = lo.ToPtr(invoiceID)
		inst.State = schedule.InstallmentStatusInvoiced
		inst.UpdatedAt = time.Now().UTC()
		if err := s.InstallmentRepo.Update(ctx, inst); err != nil {
			report.Failed++
			s.Logger.Errorw("failed to mark installment invoiced",
				"installment_id", inst.ID,
				"error", err,
			)
			continue
		}
		report.Generated++
	}
	return report, nil
}

func (s *duesScheduleService) SweepGracePeriods(ctx context.Context, today time.Time) (*GracePeriodSweepReport, error) {
	report := &GracePeriodSweepReport{RunDate: types.DateOnly(today)}

	filter := &types.ScheduleFilter{
		QueryFilter:       types.NewNoLimitQueryFilter(),
		ScheduleStatus:    lo.ToPtr(types.ScheduleStatusGracePeriod),
		GraceExpiryBefore: lo.ToPtr(types.DateOnly(today).Format(time.DateOnly)),
	}
	expired, err := s.ScheduleRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	for _, sched := range expired {
		sched.ScheduleStatus = types.ScheduleStatusSuspended
		sched.ReviewReason = lo.ToPtr("grace period expired without resolution")
		sched.UpdatedAt = time.Now().UTC()
		if err := s.ScheduleRepo.Update(ctx, sched); err != nil {
			s.Logger.Errorw("failed to suspend schedule after grace period",
				"schedule_id", sched.ID,
				"error", err,
			)
			continue
		}
		report.Swept++
		report.Suspended = append(report.Suspended, sched.ID)
		s.publishScheduleEvent(ctx, types.EventScheduleSuspended, sched)
	}
	return report, nil
}

func (s *duesScheduleService) StartGracePeriod(ctx context.Context, id string, today time.Time) error {
	sched, err := s.ScheduleRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	if sched.ScheduleStatus != types.ScheduleStatusActive &&
		sched.ScheduleStatus != types.ScheduleStatusManualReview {
		return ierr.NewError("schedule cannot enter grace period").
			WithHint("Only active or manual-review schedules can enter grace period").
			WithReportableDetails(map[string]any{
				"schedule_id": id,
				"status":      sched.ScheduleStatus,
			}).
			Mark(ierr.ErrInvalidTransition)
	}

	expiry := types.DateOnly(today).AddDate(0, 0, s.Config.Billing.GracePeriodDays)
	sched.ScheduleStatus = types.ScheduleStatusGracePeriod
	sched.GracePeriodExpiry = lo.ToPtr(expiry)
	sched.UpdatedAt = time.Now().UTC()
	sched.UpdatedBy = types.GetOperatorID(ctx)

	if err := s.ScheduleRepo.Update(ctx, sched); err != nil {
		return err
	}
	s.publishScheduleEvent(ctx, types.EventScheduleGracePeriod, sched)
	return nil
}

func (s *duesScheduleService) CreatePaymentPlan(ctx context.Context, scheduleID string, installments []*schedule.Installment) error {
	if len(installments) == 0 {
		return ierr.NewError("payment plan requires installments").
			WithHint("A payment plan must contain at least one installment").
			Mark(ierr.ErrValidation)
	}

	sched, err := s.ScheduleRepo.Get(ctx, scheduleID)
	if err != nil {
		return err
	}
	if sched.ScheduleStatus == types.ScheduleStatusCancelled ||
		sched.ScheduleStatus == types.ScheduleStatusSuspended {
		return ierr.NewError("schedule is in a terminal state").
			WithHint("Cancelled or suspended schedules cannot enter a payment plan").
			WithReportableDetails(map[string]any{
				"schedule_id": scheduleID,
				"status":      sched.ScheduleStatus,
			}).
			Mark(ierr.ErrInvalidTransition)
	}

	for _, inst := range installments {
		if inst.ID == "" {
			inst.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INSTALLMENT)
		}
		inst.ScheduleID = scheduleID
		if inst.State == "" {
			inst.State = schedule.InstallmentStatusPending
		}
		inst.BaseModel = types.GetDefaultBaseModel(ctx)
		if err := inst.Validate(); err != nil {
			return err
		}
	}

	for _, inst := range installments {
		if err := s.InstallmentRepo.Create(ctx, inst); err != nil {
			return err
		}
	}

	sched.ScheduleStatus = types.ScheduleStatusPaymentPlan
	sched.ConsecutiveFailures = 0
	sched.UpdatedAt = time.Now().UTC()
	sched.UpdatedBy = types.GetOperatorID(ctx)
	return s.ScheduleRepo.Update(ctx, sched)
}

func (s *duesScheduleService) ListInstallments(ctx context.Context, scheduleID string) ([]*schedule.Installment, error) {
	if _, err := s.ScheduleRepo.Get(ctx, scheduleID); err != nil {
		return nil, err
	}
	return s.InstallmentRepo.ListBySchedule(ctx, scheduleID)
}

func (s *duesScheduleService) publishScheduleEvent(ctx context.Context, eventName string, sched *schedule.DuesSchedule) {
	event, err := types.NewOperatorEvent(eventName, map[string]any{
		"schedule_id": sched.ID,
		"member_id":   sched.MemberID,
		"status":      sched.ScheduleStatus,
		"reason":      lo.FromPtr(sched.ReviewReason),
	})
	if err != nil {
		s.Logger.Errorw("failed to build operator event", "error", err)
		return
	}
	if err := s.EventPublisher.PublishEvent(ctx, event); err != nil {
		s.Logger.Errorw("failed to publish operator event",
			"event_name", eventName,
			"schedule_id", sched.ID,
			"error", err,
		)
	}
}
