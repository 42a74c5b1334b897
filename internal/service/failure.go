package service

import (
	"context"
	"fmt"
	"time"

	"github.com/duespay/duespay/internal/domain/failure"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// BankReturn is one failed collection reported by the bank
type BankReturn struct {
	InvoiceID  string          `json:"invoice_id"`
	MandateID  string          `json:"mandate_id"`
	ScheduleID string          `json:"schedule_id"`
	ReturnCode string          `json:"return_code"`
	Amount     decimal.Decimal `json:"amount"`
	BatchID    *string         `json:"batch_id,omitempty"`
}

// ReturnIngestionReport summarizes one bank-return ingestion run.
// ReviewFlagged and MandatesRevoked list only transitions this run actually
// performed, never failures that merely incremented a counter.
type ReturnIngestionReport struct {
	Processed       int      `json:"processed"`
	Failed          int      `json:"failed"`
	ReviewFlagged   []string `json:"review_flagged,omitempty"`
	MandatesRevoked []string `json:"mandates_revoked,omitempty"`
}

// FailureService owns the bank-return taxonomy and its consequences. A
// failed collection is never retried by the engine; every failure ends in a
// review queue entry, and terminal failures also revoke the mandate.
type FailureService interface {
	// Classify maps a return code to the failure taxonomy
	Classify(returnCode string) (types.FailureType, types.FailureSeverity)

	// HandleReturn records one bank return and applies its consequences to
	// the schedule and mandate
	HandleReturn(ctx context.Context, ret *BankReturn) (*failure.Record, error)

	// IngestBankReturns processes a status report's returns with per-return
	// fault isolation
	IngestBankReturns(ctx context.Context, batchID string, returns []*BankReturn) (*ReturnIngestionReport, error)

	// Resolve closes a failure record; the only path out of manual review
	Resolve(ctx context.Context, failureID string, notes string, reactivateSchedule bool) error

	GetFailure(ctx context.Context, id string) (*failure.Record, error)
	ListFailures(ctx context.Context, filter *types.FailureFilter) ([]*failure.Record, error)
}

type failureService struct {
	ServiceParams
	mandateService MandateService
}

// NewFailureService creates the failure service
func NewFailureService(params ServiceParams, mandateService MandateService) FailureService {
	return &failureService{ServiceParams: params, mandateService: mandateService}
}

func (s *failureService) Classify(returnCode string) (types.FailureType, types.FailureSeverity) {
	return failure.Classify(returnCode)
}

// returnOutcome reports what actually changed while applying one return, so
// ingestion reports never claim a transition that did not happen.
type returnOutcome struct {
	record         *failure.Record
	scheduleParked bool
	mandateRevoked bool
}

func (s *failureService) HandleReturn(ctx context.Context, ret *BankReturn) (*failure.Record, error) {
	outcome, err := s.handleReturn(ctx, ret)
	if err != nil {
		return nil, err
	}
	return outcome.record, nil
}

func (s *failureService) handleReturn(ctx context.Context, ret *BankReturn) (*returnOutcome, error) {
	failureType, severity := failure.Classify(ret.ReturnCode)

	record := &failure.Record{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_FAILURE_RECORD),
		ScheduleID:   ret.ScheduleID,
		InvoiceID:    ret.InvoiceID,
		MandateID:    ret.MandateID,
		BatchID:      ret.BatchID,
		ReturnCode:   ret.ReturnCode,
		FailureType:  failureType,
		Severity:     severity,
		RecordStatus: types.FailureRecordStatusPendingReview,
		Amount:       ret.Amount,
		BaseModel:    types.GetDefaultBaseModel(ctx),
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}
	if err := s.FailureRepo.Create(ctx, record); err != nil {
		return nil, err
	}

	outcome := &returnOutcome{record: record}

	// Terminal failure types revoke the mandate immediately; an already
	// cancelled mandate is left alone and not reported as revoked again
	if failureType.IsTerminal() && ret.MandateID != "" {
		reason := fmt.Sprintf("bank return %s (%s)", ret.ReturnCode, failureType)
		switch err := s.mandateService.Cancel(ctx, ret.MandateID, reason); {
		case err == nil:
			outcome.mandateRevoked = true
		case ierr.IsInvalidTransition(err):
		default:
			s.Logger.Errorw("failed to cancel mandate after terminal return",
				"mandate_id", ret.MandateID,
				"return_code", ret.ReturnCode,
				"error", err,
			)
		}
	}

	parked, err := s.applyScheduleConsequences(ctx, ret, failureType, record)
	if err != nil {
		s.Logger.Errorw("failed to apply failure consequences to schedule",
			"schedule_id", ret.ScheduleID,
			"error", err,
		)
	}
	outcome.scheduleParked = parked

	s.publishFailureEvent(ctx, record)
	return outcome, nil
}

// applyScheduleConsequences increments the consecutive failure counter and
// parks the schedule in manual review when warranted. Terminal failures park
// immediately regardless of the counter. Reports whether this return was the
// one that parked the schedule.
func (s *failureService) applyScheduleConsequences(ctx context.Context, ret *BankReturn, failureType types.FailureType, record *failure.Record) (bool, error) {
	sched, err := s.ScheduleRepo.Get(ctx, ret.ScheduleID)
	if err != nil {
		return false, err
	}

	sched.ConsecutiveFailures++
	review := failureType.IsTerminal() ||
		sched.ConsecutiveFailures > s.Config.Billing.MaxConsecutiveFailures

	parked := review && sched.ScheduleStatus != types.ScheduleStatusManualReview
	if parked {
		sched.ScheduleStatus = types.ScheduleStatusManualReview
		sched.ReviewReason = lo.ToPtr(fmt.Sprintf(
			"payment failed with %s (%s), %d consecutive failures",
			ret.ReturnCode, failureType, sched.ConsecutiveFailures))

		event, eerr := types.NewOperatorEvent(types.EventScheduleManualReview, map[string]any{
			"schedule_id": sched.ID,
			"failure_id":  record.ID,
			"return_code": ret.ReturnCode,
			"reason":      lo.FromPtr(sched.ReviewReason),
		})
		if eerr == nil {
			if perr := s.EventPublisher.PublishEvent(ctx, event); perr != nil {
				s.Logger.Errorw("failed to publish manual review event",
					"schedule_id", sched.ID,
					"error", perr,
				)
			}
		}
	}

	sched.UpdatedAt = time.Now().UTC()
	if err := s.ScheduleRepo.Update(ctx, sched); err != nil {
		return false, err
	}
	return parked, nil
}

func (s *failureService) IngestBankReturns(ctx context.Context, batchID string, returns []*BankReturn) (*ReturnIngestionReport, error) {
	report := &ReturnIngestionReport{}

	var txnByInvoice map[string]string
	if batchID != "" {
		txns, err := s.BatchRepo.ListTransactions(ctx, batchID)
		if err != nil {
			return nil, err
		}
		txnByInvoice = make(map[string]string, len(txns))
		for _, t := range txns {
			txnByInvoice[t.InvoiceID] = t.ScheduleID
		}
	}

	for _, ret := range returns {
		if batchID != "" {
			ret.BatchID = lo.ToPtr(batchID)
			if ret.ScheduleID == "" {
				ret.ScheduleID = txnByInvoice[ret.InvoiceID]
			}
		}

		outcome, err := s.handleReturn(ctx, ret)
		if err != nil {
			report.Failed++
			s.Logger.Errorw("failed to ingest bank return",
				"invoice_id", ret.InvoiceID,
				"return_code", ret.ReturnCode,
				"error", err,
			)
			continue
		}
		report.Processed++

		if outcome.mandateRevoked {
			report.MandatesRevoked = append(report.MandatesRevoked, ret.MandateID)
		}
		if outcome.scheduleParked {
			report.ReviewFlagged = append(report.ReviewFlagged, ret.ScheduleID)
		}
	}
	return report, nil
}

func (s *failureService) Resolve(ctx context.Context, failureID string, notes string, reactivateSchedule bool) error {
	record, err := s.FailureRepo.Get(ctx, failureID)
	if err != nil {
		return err
	}
	if record.RecordStatus == types.FailureRecordStatusResolved {
		return ierr.NewError("failure record already resolved").
			WithHint("The failure record was already resolved").
			WithReportableDetails(map[string]any{"failure_id": failureID}).
			Mark(ierr.ErrInvalidOperation)
	}

	now := time.Now().UTC()
	record.RecordStatus = types.FailureRecordStatusResolved
	record.ResolutionNotes = lo.ToPtr(notes)
	record.ResolvedBy = lo.ToPtr(types.GetOperatorID(ctx))
	record.ResolvedAt = lo.ToPtr(now)
	record.UpdatedAt = now
	record.UpdatedBy = types.GetOperatorID(ctx)

	if err := s.FailureRepo.Update(ctx, record); err != nil {
		return err
	}

	if reactivateSchedule {
		sched, err := s.ScheduleRepo.Get(ctx, record.ScheduleID)
		if err != nil {
			return err
		}
		if sched.ScheduleStatus == types.ScheduleStatusManualReview {
			sched.ScheduleStatus = types.ScheduleStatusActive
			sched.ConsecutiveFailures = 0
			sched.ReviewReason = nil
			sched.UpdatedAt = now
			sched.UpdatedBy = types.GetOperatorID(ctx)
			if err := s.ScheduleRepo.Update(ctx, sched); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *failureService) GetFailure(ctx context.Context, id string) (*failure.Record, error) {
	return s.FailureRepo.Get(ctx, id)
}

func (s *failureService) ListFailures(ctx context.Context, filter *types.FailureFilter) ([]*failure.Record, error) {
	if filter == nil {
		filter = &types.FailureFilter{QueryFilter: types.NewDefaultQueryFilter()}
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.FailureRepo.List(ctx, filter)
}

func (s *failureService) publishFailureEvent(ctx context.Context, record *failure.Record) {
	event, err := types.NewOperatorEvent(types.EventFailureRecorded, map[string]any{
		"failure_id":   record.ID,
		"schedule_id":  record.ScheduleID,
		"return_code":  record.ReturnCode,
		"failure_type": record.FailureType,
		"severity":     record.Severity,
	})
	if err != nil {
		s.Logger.Errorw("failed to build failure event", "error", err)
		return
	}
	if err := s.EventPublisher.PublishEvent(ctx, event); err != nil {
		s.Logger.Errorw("failed to publish failure event",
			"failure_id", record.ID,
			"error", err,
		)
	}
}
