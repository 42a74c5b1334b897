package service

import (
	"fmt"
	"testing"
	"time"

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

type NotificationServiceSuite struct {
	testutil.BaseServiceTestSuite
	service NotificationService
	params  ServiceParams
}

func TestNotificationService(t *testing.T) {
	suite.Run(t, new(NotificationServiceSuite))
}

func (s *NotificationServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	s.params = ServiceParams{
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
	s.service = NewNotificationService(s.params)
}

func (s *NotificationServiceSuite) newSchedule(id string, nextInvoice time.Time) *schedule.DuesSchedule {
	sched := &schedule.DuesSchedule{
		ID:              id,
		MemberID:        "member-" + id,
		Cadence:         types.BillingCadenceMonthly,
		AnchorDay:       nextInvoice.Day(),
		Amount:          decimal.NewFromFloat(25),
		Currency:        "EUR",
		NextInvoiceDate: nextInvoice,
		ScheduleStatus:  types.ScheduleStatusActive,
		PaymentMethod:   types.PaymentMethodTypeBankTransfer,
		BaseModel:       types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().ScheduleRepo.Create(s.GetContext(), sched))
	return sched
}

func (s *NotificationServiceSuite) TestUpcomingStageFiresOnce() {
	sched := s.newSchedule("sched_1", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))

	// Five days before the invoice date the upcoming stage fires
	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	report, err := s.service.RunDuesStages(s.GetContext(), today)
	s.NoError(err)
	s.Equal(1, report.Dispatched)

	dispatches := s.GetTransport().GetDispatches()
	s.Len(dispatches, 1)
	s.Equal(sched.MemberID, dispatches[0].MemberID)
	s.Equal(types.NotificationStageUpcoming.String(), dispatches[0].Stage)

	// Re-running the scheduler the same day is a no-op
	report, err = s.service.RunDuesStages(s.GetContext(), today)
	s.NoError(err)
	s.Equal(0, report.Dispatched)
	s.Equal(1, report.Skipped)
	s.Len(s.GetTransport().GetDispatches(), 1)
}

func (s *NotificationServiceSuite) TestDueStageOnInvoiceDate() {
	s.newSchedule("sched_1", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))

	report, err := s.service.RunDuesStages(s.GetContext(), time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	s.NoError(err)
	s.Equal(1, report.Dispatched)

	dispatches := s.GetTransport().GetDispatches()
	s.Equal(types.NotificationStageDue.String(), dispatches[0].Stage)
	s.Equal("2025-03-15", dispatches[0].Details["invoice_date"])
}

func (s *NotificationServiceSuite) TestOverdueStagesKeyOnCoveragePeriod() {
	sched := s.newSchedule("sched_1", time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC))

	// The March invoice was generated; its coverage window is the anchor
	sched.CoverageStart = lo.ToPtr(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	sched.CoverageEnd = lo.ToPtr(time.Date(2025, 4, 14, 0, 0, 0, 0, time.UTC))
	s.NoError(s.GetStores().ScheduleRepo.Update(s.GetContext(), sched))

	report, err := s.service.RunDuesStages(s.GetContext(), time.Date(2025, 3, 22, 0, 0, 0, 0, time.UTC))
	s.NoError(err)
	s.Equal(1, report.Dispatched)
	s.Equal(types.NotificationStageOverdue7.String(), s.GetTransport().GetDispatches()[0].Stage)

	history, err := s.service.ListDispatches(s.GetContext(), sched.ID)
	s.NoError(err)
	s.Len(history, 1)
	s.Equal(types.PeriodKey("2025-03-15"), history[0].PeriodKey)
}

func (s *NotificationServiceSuite) TestTerminalSchedulesSkipped() {
	sched := s.newSchedule("sched_1", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	sched.ScheduleStatus = types.ScheduleStatusSuspended
	s.NoError(s.GetStores().ScheduleRepo.Update(s.GetContext(), sched))

	report, err := s.service.RunDuesStages(s.GetContext(), time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	s.NoError(err)
	s.Equal(0, report.Dispatched)
	s.Empty(s.GetTransport().GetDispatches())
}

func (s *NotificationServiceSuite) TestTransportFailureIsLoggedNotRetried() {
	s.newSchedule("sched_1", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	s.GetTransport().Err = ierr.NewError("gateway timeout").Mark(ierr.ErrHTTPClient)

	today := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	report, err := s.service.RunDuesStages(s.GetContext(), today)
	s.NoError(err)
	s.Equal(0, report.Dispatched)
	s.Equal(1, report.Failed)

	// No dispatch was logged, so the next run picks the stage up again
	s.GetTransport().Err = nil
	report, err = s.service.RunDuesStages(s.GetContext(), today)
	s.NoError(err)
	s.Equal(1, report.Dispatched)
}

func (s *NotificationServiceSuite) TestSendPreNotifications() {
	mandateService := NewMandateService(s.params)
	failureService := NewFailureService(s.params, mandateService)
	batchService, err := NewBatchCompositionService(s.params, mandateService, failureService)
	s.Require().NoError(err)

	for i := 1; i <= 2; i++ {
		var lastUsed *time.Time
		if i == 2 {
			lastUsed = lo.ToPtr(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
		}
		s.seedCollectible(i, lastUsed)
	}

	summary, err := batchService.BuildBatch(s.GetContext(), time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)

	report, err := s.service.SendPreNotifications(s.GetContext(), summary.BatchID)
	s.NoError(err)
	s.Equal(2, report.Dispatched)

	stages := lo.Map(s.GetTransport().GetDispatches(), func(d testutil.RecordedDispatch, _ int) string {
		return d.Stage
	})
	s.Contains(stages, types.NotificationStagePreNotifyFirst.String())
	s.Contains(stages, types.NotificationStagePreNotifyRecurring.String())

	// Pre-notifications key on the batch, not the coverage period
	report, err = s.service.SendPreNotifications(s.GetContext(), summary.BatchID)
	s.NoError(err)
	s.Equal(0, report.Dispatched)
	s.Equal(2, report.Skipped)
}

// seedCollectible mirrors the batch suite's fixture for pre-notification runs
func (s *NotificationServiceSuite) seedCollectible(n int, lastUsed *time.Time) {
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

	s.GetLedger().AddInvoice(&ledger.Invoice{
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
	})
}
