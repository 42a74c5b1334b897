package service

import (
	"testing"
	"time"

	"github.com/duespay/duespay/internal/domain/mandate"
	"github.com/duespay/duespay/internal/domain/schedule"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/testutil"
	"github.com/duespay/duespay/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type FailureServiceSuite struct {
	testutil.BaseServiceTestSuite
	service        FailureService
	mandateService MandateService
	testData       struct {
		schedule *schedule.DuesSchedule
		mandate  *mandate.Mandate
	}
}

func TestFailureService(t *testing.T) {
	suite.Run(t, new(FailureServiceSuite))
}

func (s *FailureServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	params := ServiceParams{
		Logger:         s.GetLogger(),
		Config:         s.GetConfig(),
		DB:             s.GetDB(),
		ScheduleRepo:   s.GetStores().ScheduleRepo,
		MandateRepo:    s.GetStores().MandateRepo,
		BatchRepo:      s.GetStores().BatchRepo,
		FailureRepo:    s.GetStores().FailureRepo,
		Ledger:         s.GetLedger(),
		EventPublisher: s.GetPublisher(),
	}
	s.mandateService = NewMandateService(params)
	s.service = NewFailureService(params, s.mandateService)
	s.setupTestData()
}

func (s *FailureServiceSuite) setupTestData() {
	s.testData.mandate = &mandate.Mandate{
		ID:               "mndt_test",
		MandateReference: "MND-TEST",
		MemberID:         "member-1",
		IBAN:             "DE02120300000000202051",
		BIC:              "BYLADEM1001",
		AccountHolder:    "Erika Mustermann",
		MandateStatus:    types.MandateStatusActive,
		SignDate:         time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		BaseModel:        types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().MandateRepo.Create(s.GetContext(), s.testData.mandate))

	s.testData.schedule = &schedule.DuesSchedule{
		ID:              "sched_test",
		MemberID:        "member-1",
		Cadence:         types.BillingCadenceMonthly,
		AnchorDay:       15,
		Amount:          decimal.NewFromFloat(25),
		Currency:        "EUR",
		NextInvoiceDate: time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC),
		ScheduleStatus:  types.ScheduleStatusActive,
		PaymentMethod:   types.PaymentMethodTypeDirectDebit,
		MandateID:       lo.ToPtr("mndt_test"),
		BaseModel:       types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().ScheduleRepo.Create(s.GetContext(), s.testData.schedule))
}

func (s *FailureServiceSuite) newReturn(code string) *BankReturn {
	return &BankReturn{
		InvoiceID:  "inv_test",
		MandateID:  s.testData.mandate.ID,
		ScheduleID: s.testData.schedule.ID,
		ReturnCode: code,
		Amount:     decimal.NewFromFloat(25),
	}
}

func (s *FailureServiceSuite) TestInsufficientFundsIncrementsCounter() {
	record, err := s.service.HandleReturn(s.GetContext(), s.newReturn("AM04"))
	s.NoError(err)
	s.Equal(types.FailureTypeInsufficientFunds, record.FailureType)
	s.Equal(types.FailureSeverityMedium, record.Severity)
	s.Equal(types.FailureRecordStatusPendingReview, record.RecordStatus)

	// Below the threshold the schedule stays active
	got, err := s.GetStores().ScheduleRepo.Get(s.GetContext(), s.testData.schedule.ID)
	s.NoError(err)
	s.Equal(types.ScheduleStatusActive, got.ScheduleStatus)
	s.Equal(1, got.ConsecutiveFailures)

	// The mandate survives a non-terminal failure
	gotMandate, err := s.GetStores().MandateRepo.Get(s.GetContext(), s.testData.mandate.ID)
	s.NoError(err)
	s.Equal(types.MandateStatusActive, gotMandate.MandateStatus)
}

func (s *FailureServiceSuite) TestConsecutiveFailuresTriggerReview() {
	// Threshold is 2: the third consecutive failure parks the schedule
	for i := 0; i < 2; i++ {
		_, err := s.service.HandleReturn(s.GetContext(), s.newReturn("AM04"))
		s.NoError(err)
	}
	got, err := s.GetStores().ScheduleRepo.Get(s.GetContext(), s.testData.schedule.ID)
	s.NoError(err)
	s.Equal(types.ScheduleStatusActive, got.ScheduleStatus)

	_, err = s.service.HandleReturn(s.GetContext(), s.newReturn("MS03"))
	s.NoError(err)

	got, err = s.GetStores().ScheduleRepo.Get(s.GetContext(), s.testData.schedule.ID)
	s.NoError(err)
	s.Equal(types.ScheduleStatusManualReview, got.ScheduleStatus)
	s.Equal(3, got.ConsecutiveFailures)
	s.NotNil(got.ReviewReason)
}

func (s *FailureServiceSuite) TestTerminalReturnRevokesMandateImmediately() {
	record, err := s.service.HandleReturn(s.GetContext(), s.newReturn("MD07"))
	s.NoError(err)
	s.Equal(types.FailureTypeDeceased, record.FailureType)
	s.Equal(types.FailureSeverityCritical, record.Severity)

	gotMandate, err := s.GetStores().MandateRepo.Get(s.GetContext(), s.testData.mandate.ID)
	s.NoError(err)
	s.Equal(types.MandateStatusCancelled, gotMandate.MandateStatus)

	// First failure, yet the schedule goes straight to review
	got, err := s.GetStores().ScheduleRepo.Get(s.GetContext(), s.testData.schedule.ID)
	s.NoError(err)
	s.Equal(types.ScheduleStatusManualReview, got.ScheduleStatus)
	s.Equal(1, got.ConsecutiveFailures)
}

func (s *FailureServiceSuite) TestUnknownReturnCodeRecordsOther() {
	record, err := s.service.HandleReturn(s.GetContext(), s.newReturn("XX99"))
	s.NoError(err)
	s.Equal(types.FailureTypeOther, record.FailureType)
	s.Equal(types.FailureSeverityLow, record.Severity)
	s.Equal("XX99", record.ReturnCode)

	// Unknown codes never touch the mandate
	gotMandate, err := s.GetStores().MandateRepo.Get(s.GetContext(), s.testData.mandate.ID)
	s.NoError(err)
	s.Equal(types.MandateStatusActive, gotMandate.MandateStatus)
}

func (s *FailureServiceSuite) TestTerminalReturnOnCancelledMandateTolerated() {
	s.NoError(s.mandateService.Cancel(s.GetContext(), s.testData.mandate.ID, "member request"))

	// The second revocation attempt is a no-op, not an error
	_, err := s.service.HandleReturn(s.GetContext(), s.newReturn("MD01"))
	s.NoError(err)
}

func (s *FailureServiceSuite) TestResolveReactivatesSchedule() {
	record, err := s.service.HandleReturn(s.GetContext(), s.newReturn("MD07"))
	s.NoError(err)

	s.NoError(s.service.Resolve(s.GetContext(), record.ID, "spoke to next of kin", true))

	got, err := s.service.GetFailure(s.GetContext(), record.ID)
	s.NoError(err)
	s.Equal(types.FailureRecordStatusResolved, got.RecordStatus)
	s.Equal("spoke to next of kin", *got.ResolutionNotes)
	s.NotNil(got.ResolvedAt)

	gotSched, err := s.GetStores().ScheduleRepo.Get(s.GetContext(), s.testData.schedule.ID)
	s.NoError(err)
	s.Equal(types.ScheduleStatusActive, gotSched.ScheduleStatus)
	s.Equal(0, gotSched.ConsecutiveFailures)

	// Resolution is single-shot
	err = s.service.Resolve(s.GetContext(), record.ID, "again", false)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *FailureServiceSuite) TestIngestReportsOnlyActualTransitions() {
	// One failure below the threshold leaves the schedule active, so the
	// report must not claim a review transition
	report, err := s.service.IngestBankReturns(s.GetContext(), "", []*BankReturn{
		s.newReturn("AM04"),
	})
	s.NoError(err)
	s.Equal(1, report.Processed)
	s.Empty(report.ReviewFlagged)
	s.Empty(report.MandatesRevoked)

	got, err := s.GetStores().ScheduleRepo.Get(s.GetContext(), s.testData.schedule.ID)
	s.NoError(err)
	s.Equal(types.ScheduleStatusActive, got.ScheduleStatus)
	s.Equal(1, got.ConsecutiveFailures)
}

func (s *FailureServiceSuite) TestIngestReportsRevocationOnce() {
	// The first terminal return revokes the mandate and parks the schedule
	report, err := s.service.IngestBankReturns(s.GetContext(), "", []*BankReturn{
		s.newReturn("MD07"),
	})
	s.NoError(err)
	s.Equal([]string{s.testData.mandate.ID}, report.MandatesRevoked)
	s.Equal([]string{s.testData.schedule.ID}, report.ReviewFlagged)

	// A later terminal return finds both transitions already done
	report, err = s.service.IngestBankReturns(s.GetContext(), "", []*BankReturn{
		s.newReturn("MD01"),
	})
	s.NoError(err)
	s.Equal(1, report.Processed)
	s.Empty(report.MandatesRevoked)
	s.Empty(report.ReviewFlagged)
}

func (s *FailureServiceSuite) TestIngestBankReturnsIsolatesFailures() {
	report, err := s.service.IngestBankReturns(s.GetContext(), "", []*BankReturn{
		s.newReturn("AM04"),
		{InvoiceID: "inv_orphan", ReturnCode: "AM04", Amount: decimal.NewFromFloat(10)},
	})
	s.NoError(err)
	s.Equal(1, report.Processed)
	s.Equal(1, report.Failed)
}
