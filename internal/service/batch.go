package service

import (
	"context"
	"fmt"
	"time"

	"github.com/duespay/duespay/internal/domain/batch"
	"github.com/duespay/duespay/internal/domain/ledger"
	"github.com/duespay/duespay/internal/domain/mandate"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// BatchItemResult is the outcome of one collection line after execution
type BatchItemResult struct {
	InvoiceID  string          `json:"invoice_id"`
	Success    bool            `json:"success"`
	ReturnCode string          `json:"return_code,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
}

// BatchSummary is the composition result surfaced to operators
type BatchSummary struct {
	BatchID            string                                       `json:"batch_id"`
	BatchReference     string                                       `json:"batch_reference"`
	ExecutionDate      time.Time                                    `json:"execution_date"`
	SubmissionDeadline time.Time                                    `json:"submission_deadline"`
	DeadlineWarning    bool                                         `json:"deadline_warning"`
	TotalAmount        decimal.Decimal                              `json:"total_amount"`
	Currency           string                                       `json:"currency"`
	BySequenceType     map[types.SequenceType]batch.SequenceSummary `json:"by_sequence_type"`
}

// BatchCompositionService builds and manages direct-debit collection batches
type BatchCompositionService interface {
	// SelectEligibleTransactions returns the collection lines that may enter
	// a new batch today
	SelectEligibleTransactions(ctx context.Context, today time.Time) ([]*batch.Transaction, error)

	// DetermineSequenceType classifies the mandate's next collection
	DetermineSequenceType(m *mandate.Mandate) types.SequenceType

	// ResolveExecutionWindow returns the next execution date: the configured
	// day-of-month shifted forward to a business day
	ResolveExecutionWindow(today time.Time) time.Time

	// ResolveSubmissionDeadline walks back the sequence-dependent lead time
	// in business days from the execution date
	ResolveSubmissionDeadline(executionDate time.Time, containsFirstUse bool) time.Time

	// BuildBatch selects, claims and persists a new batch atomically
	BuildBatch(ctx context.Context, today time.Time) (*BatchSummary, error)

	// GetCollectionFile re-emits the deterministic bank file for a batch
	GetCollectionFile(ctx context.Context, batchID string) ([]byte, error)

	// SubmitBatch marks an open batch as handed to the bank
	SubmitBatch(ctx context.Context, batchID string) error

	// FinalizeBatch closes a fully processed batch
	FinalizeBatch(ctx context.Context, batchID string) error

	// CancelBatch abandons an open batch and releases its invoice claims
	CancelBatch(ctx context.Context, batchID string) error

	// ProcessBatchResults applies per-line execution outcomes
	ProcessBatchResults(ctx context.Context, batchID string, results []*BatchItemResult) (*ReturnIngestionReport, error)

	GetBatch(ctx context.Context, batchID string) (*batch.Batch, error)
	ListBatches(ctx context.Context, filter *types.BatchFilter) ([]*batch.Batch, error)
}

type batchCompositionService struct {
	ServiceParams
	calendar       *types.Calendar
	mandateService MandateService
	failureService FailureService
}

// NewBatchCompositionService creates the batch composition service
func NewBatchCompositionService(
	params ServiceParams,
	mandateService MandateService,
	failureService FailureService,
) (BatchCompositionService, error) {
	calendar, err := types.NewCalendar(params.Config.Billing.Holidays)
	if err != nil {
		return nil, err
	}
	return &batchCompositionService{
		ServiceParams:  params,
		calendar:       calendar,
		mandateService: mandateService,
		failureService: failureService,
	}, nil
}

func (s *batchCompositionService) SelectEligibleTransactions(ctx context.Context, today time.Time) ([]*batch.Transaction, error) {
	invoices, err := s.Ledger.GetOutstandingInvoices(ctx, &ledger.OutstandingInvoicesFilter{
		PaymentMethod: lo.ToPtr(types.PaymentMethodTypeDirectDebit),
	})
	if err != nil {
		return nil, err
	}

	claimed, err := s.BatchRepo.ListOpenInvoiceIDs(ctx)
	if err != nil {
		return nil, err
	}
	claimedSet := lo.SliceToMap(claimed, func(id string) (string, struct{}) {
		return id, struct{}{}
	})

	var out []*batch.Transaction
	for _, inv := range invoices {
		if _, inBatch := claimedSet[inv.ID]; inBatch {
			continue
		}

		sched, err := s.ScheduleRepo.Get(ctx, inv.ScheduleID)
		if err != nil {
			s.Logger.Warnw("outstanding invoice references unknown schedule",
				"invoice_id", inv.ID,
				"schedule_id", inv.ScheduleID,
			)
			continue
		}
		if sched.ScheduleStatus != types.ScheduleStatusActive ||
			sched.PaymentMethod != types.PaymentMethodTypeDirectDebit ||
			sched.MandateID == nil {
			continue
		}

		m, err := s.MandateRepo.Get(ctx, *sched.MandateID)
		if err != nil {
			s.Logger.Warnw("schedule references unknown mandate",
				"schedule_id", sched.ID,
				"mandate_id", *sched.MandateID,
			)
			continue
		}
		if !m.IsUsable() {
			continue
		}

		memberName := m.AccountHolder
		if p, err := s.PartyStore.GetParty(ctx, sched.MemberID); err == nil {
			memberName = p.Name
		}

		out = append(out, &batch.Transaction{
			ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BATCH_TRANSACTION),
			InvoiceID:        inv.ID,
			ScheduleID:       sched.ID,
			MandateID:        m.ID,
			MemberName:       memberName,
			IBAN:             m.IBAN,
			BIC:              m.BIC,
			MandateReference: m.MandateReference,
			MandateSignDate:  m.SignDate,
			Amount:           inv.Outstanding,
			Currency:         inv.Currency,
			SequenceType:     s.DetermineSequenceType(m),
			Description: fmt.Sprintf("Membership dues %s to %s",
				inv.CoverageStart.Format(time.DateOnly), inv.CoverageEnd.Format(time.DateOnly)),
			BaseModel: types.GetDefaultBaseModel(ctx),
		})
	}
	return out, nil
}

func (s *batchCompositionService) DetermineSequenceType(m *mandate.Mandate) types.SequenceType {
	return m.NextSequenceType()
}

func (s *batchCompositionService) ResolveExecutionWindow(today time.Time) time.Time {
	day := s.Config.Billing.ExecutionDay
	target := time.Date(today.Year(), today.Month(), day, 0, 0, 0, 0, today.Location())
	if target.Before(types.DateOnly(today)) {
		target = types.AdvanceAnchorDate(target, day, 1)
	}
	return s.calendar.NextBusinessDay(target)
}

func (s *batchCompositionService) ResolveSubmissionDeadline(executionDate time.Time, containsFirstUse bool) time.Time {
	lead := s.Config.Billing.RcurLeadBusinessDays
	if containsFirstUse {
		lead = s.Config.Billing.FrstLeadBusinessDays
	}
	return s.calendar.SubtractBusinessDays(executionDate, lead)
}

func (s *batchCompositionService) BuildBatch(ctx context.Context, today time.Time) (*BatchSummary, error) {
	transactions, err := s.SelectEligibleTransactions(ctx, today)
	if err != nil {
		return nil, err
	}
	if len(transactions) == 0 {
		return nil, ierr.NewError("no eligible transactions").
			WithHint("No outstanding invoices are eligible for collection").
			Mark(ierr.ErrNotFound)
	}

	executionDate := s.ResolveExecutionWindow(today)

	containsFirstUse := lo.ContainsBy(transactions, func(t *batch.Transaction) bool {
		return t.SequenceType == types.SequenceTypeFirst
	})
	deadline := s.ResolveSubmissionDeadline(executionDate, containsFirstUse)

	// A batch whose submission window has already closed is still created,
	// but carries a warning the operator must act on.
	deadlineWarning := types.DateOnly(today).After(deadline)

	b := &batch.Batch{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BATCH),
		BatchReference:     types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_BATCH),
		ExecutionDate:      executionDate,
		SubmissionDeadline: deadline,
		BatchStatus:        types.BatchStatusOpen,
		DeadlineWarning:    deadlineWarning,
		Currency:           s.Config.Billing.Currency,
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}

	total := decimal.Zero
	for i, t := range transactions {
		t.BatchID = b.ID
		t.LineIndex = i
		total = total.Add(t.Amount)
	}
	b.TotalAmount = total
	b.Transactions = transactions

	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := s.BatchRepo.CreateWithTransactions(ctx, b, transactions); err != nil {
		return nil, err
	}

	s.publishBatchEvent(ctx, types.EventBatchCreated, b)
	if deadlineWarning {
		s.Logger.Warnw("batch created past its submission deadline",
			"batch_id", b.ID,
			"submission_deadline", deadline.Format(time.DateOnly),
			"execution_date", executionDate.Format(time.DateOnly),
		)
		s.publishBatchEvent(ctx, types.EventBatchDeadlineWarning, b)
	}

	return s.summarize(b), nil
}

func (s *batchCompositionService) GetCollectionFile(ctx context.Context, batchID string) ([]byte, error) {
	b, err := s.BatchRepo.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return s.SepaGenerator.Generate(b)
}

func (s *batchCompositionService) SubmitBatch(ctx context.Context, batchID string) error {
	return s.transition(ctx, batchID, types.BatchStatusSubmitted)
}

func (s *batchCompositionService) FinalizeBatch(ctx context.Context, batchID string) error {
	if err := s.transition(ctx, batchID, types.BatchStatusFinalized); err != nil {
		return err
	}
	b, err := s.BatchRepo.Get(ctx, batchID)
	if err == nil {
		s.publishBatchEvent(ctx, types.EventBatchFinalized, b)
	}
	return nil
}

func (s *batchCompositionService) CancelBatch(ctx context.Context, batchID string) error {
	return s.transition(ctx, batchID, types.BatchStatusCancelled)
}

func (s *batchCompositionService) transition(ctx context.Context, batchID string, target types.BatchStatus) error {
	b, err := s.BatchRepo.Get(ctx, batchID)
	if err != nil {
		return err
	}
	if !b.BatchStatus.CanTransitionTo(target) {
		return ierr.NewError("invalid batch transition").
			WithHint("The batch cannot move to the requested status").
			WithReportableDetails(map[string]any{
				"batch_id": batchID,
				"from":     b.BatchStatus,
				"to":       target,
			}).
			Mark(ierr.ErrInvalidTransition)
	}

	b.BatchStatus = target
	b.UpdatedAt = time.Now().UTC()
	b.UpdatedBy = types.GetOperatorID(ctx)
	return s.BatchRepo.Update(ctx, b)
}

// ProcessBatchResults applies execution outcomes line by line: successes
// record mandate usage and reset the schedule's failure counter; failures
// flow into the return taxonomy. Any failure leaves the batch
// PARTIALLY_FAILED, a full pass finalizes it.
func (s *batchCompositionService) ProcessBatchResults(ctx context.Context, batchID string, results []*BatchItemResult) (*ReturnIngestionReport, error) {
	b, err := s.BatchRepo.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if !b.BatchStatus.IsOpen() {
		return nil, ierr.NewError("batch is not awaiting results").
			WithHint("Results can only be processed for open or submitted batches").
			WithReportableDetails(map[string]any{
				"batch_id": batchID,
				"status":   b.BatchStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	txnByInvoice := make(map[string]*batch.Transaction, len(b.Transactions))
	for _, t := range b.Transactions {
		txnByInvoice[t.InvoiceID] = t
	}

	report := &ReturnIngestionReport{}
	anyFailed := false

	for _, res := range results {
		t, ok := txnByInvoice[res.InvoiceID]
		if !ok {
			report.Failed++
			s.Logger.Errorw("result references invoice outside batch",
				"batch_id", batchID,
				"invoice_id", res.InvoiceID,
			)
			continue
		}

		if res.Success {
			if err := s.handleSuccessfulLine(ctx, b, t); err != nil {
				report.Failed++
				continue
			}
			report.Processed++
			continue
		}

		anyFailed = true
		amount := res.Amount
		if amount.IsZero() {
			amount = t.Amount
		}
		sub, err := s.failureService.IngestBankReturns(ctx, batchID, []*BankReturn{{
			InvoiceID:  res.InvoiceID,
			MandateID:  t.MandateID,
			ScheduleID: t.ScheduleID,
			ReturnCode: res.ReturnCode,
			Amount:     amount,
		}})
		if err != nil {
			report.Failed++
			continue
		}
		report.Processed += sub.Processed
		report.Failed += sub.Failed
		report.ReviewFlagged = append(report.ReviewFlagged, sub.ReviewFlagged...)
		report.MandatesRevoked = append(report.MandatesRevoked, sub.MandatesRevoked...)
	}

	target := types.BatchStatusFinalized
	if anyFailed {
		target = types.BatchStatusPartiallyFailed
	}
	b.BatchStatus = target
	b.UpdatedAt = time.Now().UTC()
	b.UpdatedBy = types.GetOperatorID(ctx)
	if err := s.BatchRepo.Update(ctx, b); err != nil {
		return nil, err
	}
	if target == types.BatchStatusFinalized {
		s.publishBatchEvent(ctx, types.EventBatchFinalized, b)
	}

	return report, nil
}

// handleSuccessfulLine records mandate usage (flipping FRST to RCUR for the
// next collection) and clears the schedule's consecutive failure counter
func (s *batchCompositionService) handleSuccessfulLine(ctx context.Context, b *batch.Batch, t *batch.Transaction) error {
	if err := s.mandateService.RecordSuccessfulUsage(ctx, t.MandateID, b.ExecutionDate); err != nil {
		s.Logger.Errorw("failed to record mandate usage",
			"mandate_id", t.MandateID,
			"batch_id", b.ID,
			"error", err,
		)
		return err
	}

	sched, err := s.ScheduleRepo.Get(ctx, t.ScheduleID)
	if err != nil {
		return err
	}
	if sched.ConsecutiveFailures != 0 {
		sched.ConsecutiveFailures = 0
		sched.UpdatedAt = time.Now().UTC()
		if err := s.ScheduleRepo.Update(ctx, sched); err != nil {
			return err
		}
	}
	return nil
}

func (s *batchCompositionService) GetBatch(ctx context.Context, batchID string) (*batch.Batch, error) {
	return s.BatchRepo.Get(ctx, batchID)
}

func (s *batchCompositionService) ListBatches(ctx context.Context, filter *types.BatchFilter) ([]*batch.Batch, error) {
	if filter == nil {
		filter = &types.BatchFilter{QueryFilter: types.NewDefaultQueryFilter()}
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.BatchRepo.List(ctx, filter)
}

func (s *batchCompositionService) summarize(b *batch.Batch) *BatchSummary {
	return &BatchSummary{
		BatchID:            b.ID,
		BatchReference:     b.BatchReference,
		ExecutionDate:      b.ExecutionDate,
		SubmissionDeadline: b.SubmissionDeadline,
		DeadlineWarning:    b.DeadlineWarning,
		TotalAmount:        b.TotalAmount,
		Currency:           b.Currency,
		BySequenceType:     b.SummaryBySequenceType(),
	}
}

func (s *batchCompositionService) publishBatchEvent(ctx context.Context, eventName string, b *batch.Batch) {
	event, err := types.NewOperatorEvent(eventName, map[string]any{
		"batch_id":            b.ID,
		"batch_reference":     b.BatchReference,
		"execution_date":      b.ExecutionDate.Format(time.DateOnly),
		"submission_deadline": b.SubmissionDeadline.Format(time.DateOnly),
		"deadline_warning":    b.DeadlineWarning,
		"total_amount":        b.TotalAmount.String(),
	})
	if err != nil {
		s.Logger.Errorw("failed to build batch event", "error", err)
		return
	}
	if err := s.EventPublisher.PublishEvent(ctx, event); err != nil {
		s.Logger.Errorw("failed to publish batch event",
			"event_name", eventName,
			"batch_id", b.ID,
			"error", err,
		)
	}
}
