package service

import (
	"testing"
	"time"

	"github.com/duespay/duespay/internal/domain/schedule"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/testutil"
	"github.com/duespay/duespay/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type DuesScheduleServiceSuite struct {
	testutil.BaseServiceTestSuite
	service DuesScheduleService
}

func TestDuesScheduleService(t *testing.T) {
	suite.Run(t, new(DuesScheduleServiceSuite))
}

func (s *DuesScheduleServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewDuesScheduleService(s.serviceParams())
}

func (s *DuesScheduleServiceSuite) serviceParams() ServiceParams {
	return ServiceParams{
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
}

func (s *DuesScheduleServiceSuite) newSchedule(memberID string, anchorDay int, nextInvoice time.Time) *schedule.DuesSchedule {
	return &schedule.DuesSchedule{
		MemberID:        memberID,
		Cadence:         types.BillingCadenceMonthly,
		AnchorDay:       anchorDay,
		Amount:          decimal.NewFromFloat(25),
		Currency:        "EUR",
		NextInvoiceDate: nextInvoice,
		ScheduleStatus:  types.ScheduleStatusActive,
		PaymentMethod:   types.PaymentMethodTypeBankTransfer,
	}
}

func (s *DuesScheduleServiceSuite) TestCreateScheduleDefaults() {
	sched := s.newSchedule("member-1", 15, time.Time{})
	err := s.service.CreateSchedule(s.GetContext(), sched)
	s.NoError(err)
	s.NotEmpty(sched.ID)
	s.Contains(sched.ID, "sched")
	s.False(sched.NextInvoiceDate.IsZero())
	s.Equal(15, sched.NextInvoiceDate.Day())
}

func (s *DuesScheduleServiceSuite) TestCreateScheduleOneActivePerMember() {
	first := s.newSchedule("member-1", 15, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	s.NoError(s.service.CreateSchedule(s.GetContext(), first))

	second := s.newSchedule("member-1", 1, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	err := s.service.CreateSchedule(s.GetContext(), second)
	s.Error(err)
	s.True(ierr.IsAlreadyExists(err))

	// A cancelled schedule no longer blocks a new one
	first.ScheduleStatus = types.ScheduleStatusCancelled
	s.NoError(s.GetStores().ScheduleRepo.Update(s.GetContext(), first))
	s.NoError(s.service.CreateSchedule(s.GetContext(), second))
}

func (s *DuesScheduleServiceSuite) TestGenerateInvoiceAdvancesCoverage() {
	sched := s.newSchedule("member-1", 15, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	s.NoError(s.service.CreateSchedule(s.GetContext(), sched))

	invoiceID, err := s.service.GenerateInvoice(s.GetContext(), sched)
	s.NoError(err)
	s.NotEmpty(invoiceID)

	// A monthly schedule anchored on the 15th covers 03-15 through 04-14
	s.Equal("2025-03-15", sched.CoverageStart.Format(time.DateOnly))
	s.Equal("2025-04-14", sched.CoverageEnd.Format(time.DateOnly))
	s.Equal("2025-04-15", sched.NextInvoiceDate.Format(time.DateOnly))

	inv, err := s.GetLedger().GetInvoice(s.GetContext(), invoiceID)
	s.NoError(err)
	s.Equal(sched.ID, inv.ScheduleID)
	s.True(inv.Amount.Equal(decimal.NewFromFloat(25)))
}

func (s *DuesScheduleServiceSuite) TestAnchorDayClampsToShortMonths() {
	sched := s.newSchedule("member-1", 31, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC))
	s.NoError(s.service.CreateSchedule(s.GetContext(), sched))

	_, err := s.service.GenerateInvoice(s.GetContext(), sched)
	s.NoError(err)
	s.Equal("2025-02-28", sched.NextInvoiceDate.Format(time.DateOnly))

	// The anchor recovers once the month is long enough again
	_, err = s.service.GenerateInvoice(s.GetContext(), sched)
	s.NoError(err)
	s.Equal("2025-03-31", sched.NextInvoiceDate.Format(time.DateOnly))
}

func (s *DuesScheduleServiceSuite) TestRunDailyGenerationIsIdempotent() {
	sched := s.newSchedule("member-1", 15, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	s.NoError(s.service.CreateSchedule(s.GetContext(), sched))

	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	report, err := s.service.RunDailyGeneration(s.GetContext(), today)
	s.NoError(err)
	s.Equal(1, report.Generated)
	s.Equal(0, report.Failed)

	// A second run on the same day must not produce a second invoice
	report, err = s.service.RunDailyGeneration(s.GetContext(), today)
	s.NoError(err)
	s.Equal(0, report.Generated)
	s.Equal(0, report.Failed)

	invoices, err := s.GetLedger().GetOutstandingInvoices(s.GetContext(), nil)
	s.NoError(err)
	s.Len(invoices, 1)
}

func (s *DuesScheduleServiceSuite) TestRunDailyGenerationSkipsPastLookahead() {
	// Next invoice date beyond today + 7 day lookahead
	sched := s.newSchedule("member-1", 15, time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC))
	s.NoError(s.service.CreateSchedule(s.GetContext(), sched))

	report, err := s.service.RunDailyGeneration(s.GetContext(), time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	s.NoError(err)
	s.Equal(0, report.Generated)
}

func (s *DuesScheduleServiceSuite) TestGenerationFailuresFlagManualReview() {
	sched := s.newSchedule("member-1", 15, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	s.NoError(s.service.CreateSchedule(s.GetContext(), sched))

	s.GetLedger().CreateErr = ierr.NewError("ledger unavailable").Mark(ierr.ErrHTTPClient)
	today := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	for i := 1; i <= 2; i++ {
		report, err := s.service.RunDailyGeneration(s.GetContext(), today)
		s.NoError(err)
		s.Equal(1, report.Failed)
		s.Equal(0, report.Flagged)

		got, err := s.GetStores().ScheduleRepo.Get(s.GetContext(), sched.ID)
		s.NoError(err)
		s.Equal(i, got.GenerationFailures)
		s.Equal(types.ScheduleStatusActive, got.ScheduleStatus)
	}

	// Third consecutive failure parks the schedule
	report, err := s.service.RunDailyGeneration(s.GetContext(), today)
	s.NoError(err)
	s.Equal(1, report.Failed)
	s.Equal(1, report.Flagged)

	got, err := s.GetStores().ScheduleRepo.Get(s.GetContext(), sched.ID)
	s.NoError(err)
	s.Equal(types.ScheduleStatusManualReview, got.ScheduleStatus)
	s.NotNil(got.ReviewReason)
}

func (s *DuesScheduleServiceSuite) TestGenerationFailureCounterResetsOnSuccess() {
	sched := s.newSchedule("member-1", 15, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	s.NoError(s.service.CreateSchedule(s.GetContext(), sched))

	today := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	s.GetLedger().CreateErr = ierr.NewError("ledger unavailable").Mark(ierr.ErrHTTPClient)
	_, err := s.service.RunDailyGeneration(s.GetContext(), today)
	s.NoError(err)
	_, err = s.service.RunDailyGeneration(s.GetContext(), today)
	s.NoError(err)

	s.GetLedger().CreateErr = nil
	report, err := s.service.RunDailyGeneration(s.GetContext(), today)
	s.NoError(err)
	s.Equal(1, report.Generated)

	got, err := s.GetStores().ScheduleRepo.Get(s.GetContext(), sched.ID)
	s.NoError(err)
	s.Equal(0, got.GenerationFailures)
	s.Equal(types.ScheduleStatusActive, got.ScheduleStatus)
}

func (s *DuesScheduleServiceSuite) TestStartGracePeriod() {
	sched := s.newSchedule("member-1", 15, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	s.NoError(s.service.CreateSchedule(s.GetContext(), sched))

	today := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	s.NoError(s.service.StartGracePeriod(s.GetContext(), sched.ID, today))

	got, err := s.GetStores().ScheduleRepo.Get(s.GetContext(), sched.ID)
	s.NoError(err)
	s.Equal(types.ScheduleStatusGracePeriod, got.ScheduleStatus)
	s.Equal("2025-03-15", got.GracePeriodExpiry.Format(time.DateOnly))
}

func (s *DuesScheduleServiceSuite) TestStartGracePeriodRejectsSuspended() {
	sched := s.newSchedule("member-1", 15, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	s.NoError(s.service.CreateSchedule(s.GetContext(), sched))

	sched.ScheduleStatus = types.ScheduleStatusSuspended
	s.NoError(s.GetStores().ScheduleRepo.Update(s.GetContext(), sched))

	err := s.service.StartGracePeriod(s.GetContext(), sched.ID, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	s.Error(err)
	s.True(ierr.IsInvalidTransition(err))
}

func (s *DuesScheduleServiceSuite) TestSweepGracePeriods() {
	expired := s.newSchedule("member-1", 15, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	s.NoError(s.service.CreateSchedule(s.GetContext(), expired))
	expired.ScheduleStatus = types.ScheduleStatusGracePeriod
	expired.GracePeriodExpiry = lo.ToPtr(time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC))
	s.NoError(s.GetStores().ScheduleRepo.Update(s.GetContext(), expired))

	running := s.newSchedule("member-2", 15, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	s.NoError(s.service.CreateSchedule(s.GetContext(), running))
	running.ScheduleStatus = types.ScheduleStatusGracePeriod
	running.GracePeriodExpiry = lo.ToPtr(time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC))
	s.NoError(s.GetStores().ScheduleRepo.Update(s.GetContext(), running))

	report, err := s.service.SweepGracePeriods(s.GetContext(), time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	s.NoError(err)
	s.Equal(1, report.Swept)
	s.Equal([]string{expired.ID}, report.Suspended)

	got, err := s.GetStores().ScheduleRepo.Get(s.GetContext(), expired.ID)
	s.NoError(err)
	s.Equal(types.ScheduleStatusSuspended, got.ScheduleStatus)

	got, err = s.GetStores().ScheduleRepo.Get(s.GetContext(), running.ID)
	s.NoError(err)
	s.Equal(types.ScheduleStatusGracePeriod, got.ScheduleStatus)
}

func (s *DuesScheduleServiceSuite) TestUpdateScheduleStatusReactivation() {
	sched := s.newSchedule("member-1", 15, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	s.NoError(s.service.CreateSchedule(s.GetContext(), sched))

	sched.ScheduleStatus = types.ScheduleStatusManualReview
	sched.ConsecutiveFailures = 3
	sched.ReviewReason = lo.ToPtr("payment failed")
	s.NoError(s.GetStores().ScheduleRepo.Update(s.GetContext(), sched))

	// Operator reactivation out of manual review resets the failure state
	s.NoError(s.service.UpdateScheduleStatus(s.GetContext(), sched.ID, types.ScheduleStatusActive, ""))

	got, err := s.GetStores().ScheduleRepo.Get(s.GetContext(), sched.ID)
	s.NoError(err)
	s.Equal(types.ScheduleStatusActive, got.ScheduleStatus)
	s.Equal(0, got.ConsecutiveFailures)
	s.Nil(got.ReviewReason)
}

func (s *DuesScheduleServiceSuite) TestUpdateScheduleStatusRejectsSuspended() {
	sched := s.newSchedule("member-1", 15, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	s.NoError(s.service.CreateSchedule(s.GetContext(), sched))

	sched.ScheduleStatus = types.ScheduleStatusSuspended
	s.NoError(s.GetStores().ScheduleRepo.Update(s.GetContext(), sched))

	err := s.service.UpdateScheduleStatus(s.GetContext(), sched.ID, types.ScheduleStatusActive, "")
	s.Error(err)
	s.True(ierr.IsInvalidTransition(err))
}

func (s *DuesScheduleServiceSuite) TestGenerateInstallmentInvoices() {
	sched := s.newSchedule("member-1", 15, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	s.NoError(s.service.CreateSchedule(s.GetContext(), sched))
	sched.ScheduleStatus = types.ScheduleStatusPaymentPlan
	s.NoError(s.GetStores().ScheduleRepo.Update(s.GetContext(), sched))

	due := &schedule.Installment{
		ID:         "inst_due",
		ScheduleID: sched.ID,
		Amount:     decimal.NewFromFloat(10),
		DueDate:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		State:      schedule.InstallmentStatusPending,
		BaseModel:  types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().InstallmentRepo.Create(s.GetContext(), due))

	future := &schedule.Installment{
		ID:         "inst_future",
		ScheduleID: sched.ID,
		Amount:     decimal.NewFromFloat(10),
		DueDate:    time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		State:      schedule.InstallmentStatusPending,
		BaseModel:  types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().InstallmentRepo.Create(s.GetContext(), future))

	report, err := s.service.GenerateInstallmentInvoices(s.GetContext(), time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	s.NoError(err)
	s.Equal(1, report.Generated)

	got, err := s.GetStores().InstallmentRepo.ListBySchedule(s.GetContext(), sched.ID)
	s.NoError(err)
	byID := lo.SliceToMap(got, func(i *schedule.Installment) (string, *schedule.Installment) {
		return i.ID, i
	})
	s.Equal(schedule.InstallmentStatusInvoiced, byID["inst_due"].State)
	s.NotNil(byID["inst_due"].InvoiceID)
	s.Equal(schedule.InstallmentStatusPending, byID["inst_future"].State)
}

func (s *DuesScheduleServiceSuite) TestCreatePaymentPlan() {
	sched := s.newSchedule("member-1", 15, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	s.NoError(s.service.CreateSchedule(s.GetContext(), sched))

	installments := []*schedule.Installment{
		{Amount: decimal.NewFromFloat(10), DueDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)},
		{Amount: decimal.NewFromFloat(15), DueDate: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)},
	}
	s.NoError(s.service.CreatePaymentPlan(s.GetContext(), sched.ID, installments))

	got, err := s.service.GetSchedule(s.GetContext(), sched.ID)
	s.NoError(err)
	s.Equal(types.ScheduleStatusPaymentPlan, got.ScheduleStatus)

	stored, err := s.service.ListInstallments(s.GetContext(), sched.ID)
	s.NoError(err)
	s.Len(stored, 2)
	for _, inst := range stored {
		s.Contains(inst.ID, "inst_")
		s.Equal(schedule.InstallmentStatusPending, inst.State)
		s.Equal(sched.ID, inst.ScheduleID)
	}
}

func (s *DuesScheduleServiceSuite) TestCreatePaymentPlanRejectsEmptyAndTerminal() {
	sched := s.newSchedule("member-1", 15, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	s.NoError(s.service.CreateSchedule(s.GetContext(), sched))

	err := s.service.CreatePaymentPlan(s.GetContext(), sched.ID, nil)
	s.Error(err)
	s.True(ierr.IsValidation(err))

	sched.ScheduleStatus = types.ScheduleStatusSuspended
	s.NoError(s.GetStores().ScheduleRepo.Update(s.GetContext(), sched))

	err = s.service.CreatePaymentPlan(s.GetContext(), sched.ID, []*schedule.Installment{
		{Amount: decimal.NewFromFloat(10), DueDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)},
	})
	s.Error(err)
	s.True(ierr.IsInvalidTransition(err))
}
