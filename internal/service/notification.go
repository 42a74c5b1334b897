package service

import (
	"context"
	"time"

	"github.com/duespay/duespay/internal/domain/notification"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/types"
	"github.com/samber/lo"
)

// NotificationRunReport summarizes one staged notification run
type NotificationRunReport struct {
	RunDate    time.Time `json:"run_date"`
	Dispatched int       `json:"dispatched"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
}

// NotificationService drives the staged dues communications and the
// scheme-mandated pre-notifications. The dispatch log makes every stage
// at-most-once per (schedule, stage, coverage period); transport failures
// are logged and picked up by the next run, never retried inline.
type NotificationService interface {
	// RunDuesStages fires every due stage whose offset lands on today
	RunDuesStages(ctx context.Context, today time.Time) (*NotificationRunReport, error)

	// SendPreNotifications fires the mandatory pre-notification for every
	// line of a composed batch
	SendPreNotifications(ctx context.Context, batchID string) (*NotificationRunReport, error)

	// ListDispatches returns a schedule's dispatch history
	ListDispatches(ctx context.Context, scheduleID string) ([]*notification.Dispatch, error)
}

type notificationService struct {
	ServiceParams
}

// NewNotificationService creates the notification service
func NewNotificationService(params ServiceParams) NotificationService {
	return &notificationService{ServiceParams: params}
}

func (s *notificationService) RunDuesStages(ctx context.Context, today time.Time) (*NotificationRunReport, error) {
	report := &NotificationRunReport{RunDate: types.DateOnly(today)}
	today = types.DateOnly(today)

	offsets := s.Config.Notifications.StageOffsets
	if len(offsets) == 0 {
		offsets = types.DefaultNotificationStageOffsets
	}

	// Overdue stages reference an already-invoiced period whose schedule has
	// advanced a full cadence ahead, so no next-invoice-date window can
	// bound the scan without losing them.
	schedules, err := s.ScheduleRepo.List(ctx, types.NewNoLimitScheduleFilter())
	if err != nil {
		return nil, err
	}

	for _, sched := range schedules {
		if sched.ScheduleStatus.IsTerminal() {
			continue
		}

		// Overdue stages key on the previous invoice date once the schedule
		// has advanced; the coverage window is the stable anchor.
		referenceDate := sched.NextInvoiceDate
		periodStart := referenceDate
		if sched.CoverageStart != nil {
			periodStart = *sched.CoverageStart
		}
		if sched.CoverageEnd != nil && !today.After(*sched.CoverageEnd) && sched.CoverageStart != nil {
			// Inside an invoiced period the stages run against its start
			referenceDate = *sched.CoverageStart
		}

		for _, offset := range offsets {
			stageDate := types.DateOnly(referenceDate).AddDate(0, 0, offset)
			if !stageDate.Equal(today) {
				continue
			}
			stage, err := types.DuesStageForOffset(offset)
			if err != nil {
				continue
			}

			if s.dispatchStage(ctx, sched.ID, sched.MemberID, stage,
				types.PeriodKey(periodStart.Format(time.DateOnly)),
				map[string]string{
					"invoice_date": referenceDate.Format(time.DateOnly),
					"amount":       sched.Amount.String(),
					"currency":     sched.Currency,
				}, report) {
				report.Dispatched++
			}
		}
	}

	s.Logger.Infow("staged notification run finished",
		"run_date", report.RunDate.Format(time.DateOnly),
		"dispatched", report.Dispatched,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

func (s *notificationService) SendPreNotifications(ctx context.Context, batchID string) (*NotificationRunReport, error) {
	report := &NotificationRunReport{RunDate: types.DateOnly(time.Now().UTC())}

	b, err := s.BatchRepo.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}

	for _, t := range b.Transactions {
		stage := types.NotificationStagePreNotifyRecurring
		if t.SequenceType == types.SequenceTypeFirst {
			stage = types.NotificationStagePreNotifyFirst
		}

		sched, err := s.ScheduleRepo.Get(ctx, t.ScheduleID)
		if err != nil {
			report.Failed++
			continue
		}

		// Pre-notifications key on the batch: one per line per collection
		if s.dispatchStage(ctx, t.ScheduleID, sched.MemberID, stage,
			"batch:"+b.ID,
			map[string]string{
				"execution_date":    b.ExecutionDate.Format(time.DateOnly),
				"amount":            t.Amount.String(),
				"currency":          t.Currency,
				"mandate_reference": t.MandateReference,
				"end_to_end_id":     t.EndToEndID(),
			}, report) {
			report.Dispatched++
		}
	}
	return report, nil
}

// dispatchStage performs one at-most-once staged delivery. Reports true only
// when a new dispatch happened; duplicates and failures feed the report
// counters directly.
func (s *notificationService) dispatchStage(
	ctx context.Context,
	scheduleID, memberID string,
	stage types.NotificationStage,
	periodKey string,
	details map[string]string,
	report *NotificationRunReport,
) bool {
	exists, err := s.NotificationRepo.Exists(ctx, scheduleID, stage.String(), periodKey)
	if err != nil {
		report.Failed++
		s.Logger.Errorw("failed to check dispatch log",
			"schedule_id", scheduleID,
			"stage", stage,
			"error", err,
		)
		return false
	}
	if exists {
		report.Skipped++
		return false
	}

	deliveryID, err := s.Transport.Dispatch(ctx, memberID, stage.String(), details)
	if err != nil {
		report.Failed++
		s.Logger.Errorw("notification delivery failed",
			"schedule_id", scheduleID,
			"member_id", memberID,
			"stage", stage,
			"error", err,
		)
		return false
	}

	dispatch := &notification.Dispatch{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_NOTIFICATION_DISPATCH),
		ScheduleID:   scheduleID,
		MemberID:     memberID,
		Stage:        stage,
		PeriodKey:    periodKey,
		DispatchedAt: time.Now().UTC(),
		BaseModel:    types.GetDefaultBaseModel(ctx),
	}
	if deliveryID != "" {
		dispatch.DeliveryID = lo.ToPtr(deliveryID)
	}

	if err := s.NotificationRepo.Create(ctx, dispatch); err != nil {
		if ierr.IsAlreadyExists(err) {
			// A concurrent run won the race; the stage fired exactly once
			report.Skipped++
			return false
		}
		report.Failed++
		s.Logger.Errorw("failed to record notification dispatch",
			"schedule_id", scheduleID,
			"stage", stage,
			"error", err,
		)
		return false
	}
	return true
}

func (s *notificationService) ListDispatches(ctx context.Context, scheduleID string) ([]*notification.Dispatch, error) {
	return s.NotificationRepo.ListBySchedule(ctx, scheduleID)
}
