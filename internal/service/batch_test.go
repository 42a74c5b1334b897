package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/duespay/duespay/internal/domain/batch"
	"github.com/duespay/duespay/internal/domain/ledger"
	"github.com/duespay/duespay/internal/domain/mandate"
	"github.com/duespay/duespay/internal/domain/schedule"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/testutil"
	"github.com/duespay/duespay/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type BatchCompositionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service        BatchCompositionService
	mandateService MandateService
	failureService FailureService
}

func TestBatchCompositionService(t *testing.T) {
	suite.Run(t, new(BatchCompositionServiceSuite))
}

func (s *BatchCompositionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	params := ServiceParams{
		Logger:           s.GetLogger(),
		Config:           s.GetConfig(),
		DB:               s.GetDB(),
		ScheduleRepo:     s.GetStores().ScheduleRepo,
		InstallmentRepo:  s.GetStores().InstallmentRepo,
		MandateRepo:      s.GetStores().MandateRepo,
		BatchRepo:        s.GetStores().BatchRepo,
		FailureRepo:      s.GetStores().FailureRepo,
		NotificationRepo: s.GetStores().NotificationRepo,
		Ledger:           s.GetLedger(),
		PartyStore:       s.GetParties(),
		Transport:        s.GetTransport(),
		IdempGen:         s.GetIdempotencyGenerator(),
		SepaGenerator:    s.GetSepaGenerator(),
		EventPublisher:   s.GetPublisher(),
	}
	s.mandateService = NewMandateService(params)
	s.failureService = NewFailureService(params, s.mandateService)

	var err error
	s.service, err = NewBatchCompositionService(params, s.mandateService, s.failureService)
	s.Require().NoError(err)
}

// seedCollectible wires up one member with an active direct-debit schedule,
// an active mandate, and one outstanding invoice in the ledger.
func (s *BatchCompositionServiceSuite) seedCollectible(n int, lastUsed *time.Time) (*schedule.DuesSchedule, *mandate.Mandate, *ledger.Invoice) {
	memberID := fmt.Sprintf("member-%d", n)

	m := &mandate.Mandate{
		ID:               fmt.Sprintf("mndt_%03d", n),
		MandateReference: fmt.Sprintf("MND-%03d", n),
		MemberID:         memberID,
		IBAN:             "DE02120300000000202051",
		BIC:              "BYLADEM1001",
		AccountHolder:    fmt.Sprintf("Member %d", n),
		MandateStatus:    types.MandateStatusActive,
		SignDate:         time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		LastUsedAt:       lastUsed,
		BaseModel:        types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().MandateRepo.Create(s.GetContext(), m))

	sched := &schedule.DuesSchedule{
		ID:              fmt.Sprintf("sched_%03d", n),
		MemberID:        memberID,
		Cadence:         types.BillingCadenceMonthly,
		AnchorDay:       15,
		Amount:          decimal.NewFromFloat(25),
		Currency:        "EUR",
		NextInvoiceDate: time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC),
		ScheduleStatus:  types.ScheduleStatusActive,
		PaymentMethod:   types.PaymentMethodTypeDirectDebit,
		MandateID:       lo.ToPtr(m.ID),
		BaseModel:       types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().ScheduleRepo.Create(s.GetContext(), sched))

	inv := &ledger.Invoice{
		ID:            fmt.Sprintf("inv_%03d", n),
		ScheduleID:    sched.ID,
		MemberID:      memberID,
		Amount:        decimal.NewFromFloat(25),
		Outstanding:   decimal.NewFromFloat(25),
		Currency:      "EUR",
		CoverageStart: time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC),
		CoverageEnd:   time.Date(2025, 5, 14, 0, 0, 0, 0, time.UTC),
		InvoiceStatus: ledger.InvoiceStatusOutstanding,
		DueDate:       time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC),
		PaymentMethod: types.PaymentMethodTypeDirectDebit,
	}
	s.GetLedger().AddInvoice(inv)

	return sched, m, inv
}

func (s *BatchCompositionServiceSuite) TestResolveExecutionWindowSkipsWeekend() {
	// June 15th 2025 is a Sunday, execution shifts to Monday the 16th
	got := s.service.ResolveExecutionWindow(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	s.Equal("2025-06-16", got.Format(time.DateOnly))
	s.Equal(time.Monday, got.Weekday())

	// Past this month's execution day the window rolls to the next month
	got = s.service.ResolveExecutionWindow(time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC))
	s.Equal("2025-07-15", got.Format(time.DateOnly))
}

func (s *BatchCompositionServiceSuite) TestResolveSubmissionDeadline() {
	execution := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC) // Tuesday

	// First-use lead of 5 business days: Apr 14, 11, 10, 9, 8
	frst := s.service.ResolveSubmissionDeadline(execution, true)
	s.Equal("2025-04-08", frst.Format(time.DateOnly))

	// Recurring lead of 2 business days: Apr 14, 11
	rcur := s.service.ResolveSubmissionDeadline(execution, false)
	s.Equal("2025-04-11", rcur.Format(time.DateOnly))
}

func (s *BatchCompositionServiceSuite) TestSubmissionDeadlineNeverOnWeekend() {
	// Monday execution: walking back crosses the weekend in both cases
	execution := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)

	frst := s.service.ResolveSubmissionDeadline(execution, true)
	rcur := s.service.ResolveSubmissionDeadline(execution, false)

	s.Equal("2025-06-12", rcur.Format(time.DateOnly))
	s.Equal("2025-06-09", frst.Format(time.DateOnly))
	s.NotEqual(time.Saturday, frst.Weekday())
	s.NotEqual(time.Sunday, frst.Weekday())
	s.NotEqual(time.Saturday, rcur.Weekday())
	s.NotEqual(time.Sunday, rcur.Weekday())
}

func (s *BatchCompositionServiceSuite) TestSelectEligibleTransactions() {
	s.seedCollectible(1, nil)
	used := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	s.seedCollectible(2, &used)

	// A bank-transfer schedule's invoice never enters a batch
	other, _, _ := s.seedCollectible(3, nil)
	other.PaymentMethod = types.PaymentMethodTypeBankTransfer
	other.MandateID = nil
	s.NoError(s.GetStores().ScheduleRepo.Update(s.GetContext(), other))

	transactions, err := s.service.SelectEligibleTransactions(s.GetContext(), time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	s.NoError(err)
	s.Len(transactions, 2)

	byInvoice := lo.SliceToMap(transactions, func(t *batch.Transaction) (string, *batch.Transaction) {
		return t.InvoiceID, t
	})
	s.Equal(types.SequenceTypeFirst, byInvoice["inv_001"].SequenceType)
	s.Equal(types.SequenceTypeRecurring, byInvoice["inv_002"].SequenceType)
}

func (s *BatchCompositionServiceSuite) TestBuildBatchClaimsInvoices() {
	s.seedCollectible(1, nil)
	s.seedCollectible(2, nil)

	today := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	summary, err := s.service.BuildBatch(s.GetContext(), today)
	s.NoError(err)
	s.Equal("2025-04-15", summary.ExecutionDate.Format(time.DateOnly))
	s.False(summary.DeadlineWarning)
	s.True(summary.TotalAmount.Equal(decimal.NewFromFloat(50)))
	s.Equal(2, summary.BySequenceType[types.SequenceTypeFirst].Count)

	// Both invoices are claimed, so a second composition finds nothing
	_, err = s.service.BuildBatch(s.GetContext(), today)
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *BatchCompositionServiceSuite) TestConcurrentBuildBatchClaimsInvoiceOnce() {
	_, _, inv := s.seedCollectible(1, nil)
	today := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	// Two compositions race for the same invoice; the marker claim decides
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.service.BuildBatch(s.GetContext(), today)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		// The loser either lost the claim race or saw nothing left to select
		s.True(ierr.IsAlreadyExists(err) || ierr.IsNotFound(err))
	}
	s.Equal(1, successes)

	batches, err := s.service.ListBatches(s.GetContext(), nil)
	s.NoError(err)
	s.Len(batches, 1)

	claimed, err := s.GetStores().BatchRepo.ListOpenInvoiceIDs(s.GetContext())
	s.NoError(err)
	s.Equal([]string{inv.ID}, claimed)
}

func (s *BatchCompositionServiceSuite) TestCancelReleasesInvoiceClaims() {
	s.seedCollectible(1, nil)

	today := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	summary, err := s.service.BuildBatch(s.GetContext(), today)
	s.NoError(err)

	s.NoError(s.service.CancelBatch(s.GetContext(), summary.BatchID))

	claimed, err := s.GetStores().BatchRepo.ListOpenInvoiceIDs(s.GetContext())
	s.NoError(err)
	s.Empty(claimed)

	// The invoice is collectible again
	_, err = s.service.BuildBatch(s.GetContext(), today)
	s.NoError(err)
}

func (s *BatchCompositionServiceSuite) TestBuildBatchPastDeadlineWarns() {
	used := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	s.seedCollectible(1, &used)

	// Recurring deadline for the Apr 15 execution is Apr 11
	today := time.Date(2025, 4, 14, 0, 0, 0, 0, time.UTC)
	summary, err := s.service.BuildBatch(s.GetContext(), today)
	s.NoError(err)
	s.True(summary.DeadlineWarning)
	s.Equal("2025-04-11", summary.SubmissionDeadline.Format(time.DateOnly))

	b, err := s.service.GetBatch(s.GetContext(), summary.BatchID)
	s.NoError(err)
	s.True(b.DeadlineWarning)
	s.Equal(types.BatchStatusOpen, b.BatchStatus)
}

func (s *BatchCompositionServiceSuite) TestBatchLifecycle() {
	s.seedCollectible(1, nil)

	summary, err := s.service.BuildBatch(s.GetContext(), time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	s.NoError(err)

	// Cancel is only reachable from open
	s.NoError(s.service.SubmitBatch(s.GetContext(), summary.BatchID))
	err = s.service.CancelBatch(s.GetContext(), summary.BatchID)
	s.Error(err)
	s.True(ierr.IsInvalidTransition(err))

	s.NoError(s.service.FinalizeBatch(s.GetContext(), summary.BatchID))

	err = s.service.SubmitBatch(s.GetContext(), summary.BatchID)
	s.Error(err)
	s.True(ierr.IsInvalidTransition(err))
}

func (s *BatchCompositionServiceSuite) TestProcessBatchResultsAllSuccessful() {
	sched, m, inv := s.seedCollectible(1, nil)

	summary, err := s.service.BuildBatch(s.GetContext(), time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	s.NoError(err)
	s.NoError(s.service.SubmitBatch(s.GetContext(), summary.BatchID))

	report, err := s.service.ProcessBatchResults(s.GetContext(), summary.BatchID, []*BatchItemResult{
		{InvoiceID: inv.ID, Success: true},
	})
	s.NoError(err)
	s.Equal(1, report.Processed)

	b, err := s.service.GetBatch(s.GetContext(), summary.BatchID)
	s.NoError(err)
	s.Equal(types.BatchStatusFinalized, b.BatchStatus)

	// The mandate flips to recurring for the next collection
	gotMandate, err := s.GetStores().MandateRepo.Get(s.GetContext(), m.ID)
	s.NoError(err)
	s.Equal(types.SequenceTypeRecurring, gotMandate.NextSequenceType())
	s.Equal(summary.ExecutionDate, *gotMandate.LastUsedAt)

	gotSched, err := s.GetStores().ScheduleRepo.Get(s.GetContext(), sched.ID)
	s.NoError(err)
	s.Equal(0, gotSched.ConsecutiveFailures)
}

func (s *BatchCompositionServiceSuite) TestProcessBatchResultsTerminalFailure() {
	failedSched, failedMandate, failedInv := s.seedCollectible(1, nil)
	okSched, _, okInv := s.seedCollectible(2, nil)

	summary, err := s.service.BuildBatch(s.GetContext(), time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	s.NoError(err)
	s.NoError(s.service.SubmitBatch(s.GetContext(), summary.BatchID))

	report, err := s.service.ProcessBatchResults(s.GetContext(), summary.BatchID, []*BatchItemResult{
		{InvoiceID: failedInv.ID, Success: false, ReturnCode: "AC04"},
		{InvoiceID: okInv.ID, Success: true},
	})
	s.NoError(err)
	s.Equal(2, report.Processed)
	s.Contains(report.MandatesRevoked, failedMandate.ID)

	b, err := s.service.GetBatch(s.GetContext(), summary.BatchID)
	s.NoError(err)
	s.Equal(types.BatchStatusPartiallyFailed, b.BatchStatus)

	// Account closed revokes the mandate and parks the schedule
	gotMandate, err := s.GetStores().MandateRepo.Get(s.GetContext(), failedMandate.ID)
	s.NoError(err)
	s.Equal(types.MandateStatusCancelled, gotMandate.MandateStatus)

	gotSched, err := s.GetStores().ScheduleRepo.Get(s.GetContext(), failedSched.ID)
	s.NoError(err)
	s.Equal(types.ScheduleStatusManualReview, gotSched.ScheduleStatus)

	// The unrelated member is untouched
	gotOther, err := s.GetStores().ScheduleRepo.Get(s.GetContext(), okSched.ID)
	s.NoError(err)
	s.Equal(types.ScheduleStatusActive, gotOther.ScheduleStatus)
	s.Equal(0, gotOther.ConsecutiveFailures)

	records, err := s.failureService.ListFailures(s.GetContext(), &types.FailureFilter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		ScheduleID:  lo.ToPtr(failedSched.ID),
	})
	s.NoError(err)
	s.Len(records, 1)
	s.Equal(types.FailureTypeAccountClosed, records[0].FailureType)
}

func (s *BatchCompositionServiceSuite) TestGetCollectionFileIsDeterministic() {
	s.seedCollectible(1, nil)
	used := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	s.seedCollectible(2, &used)

	summary, err := s.service.BuildBatch(s.GetContext(), time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	s.NoError(err)

	first, err := s.service.GetCollectionFile(s.GetContext(), summary.BatchID)
	s.NoError(err)
	second, err := s.service.GetCollectionFile(s.GetContext(), summary.BatchID)
	s.NoError(err)
	s.Equal(first, second)
	s.Contains(string(first), "pain.008.001.08")
}
