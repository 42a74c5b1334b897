package service

import (
	"testing"
	"time"

	"github.com/duespay/duespay/internal/domain/mandate"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/testutil"
	"github.com/duespay/duespay/internal/types"
	"github.com/stretchr/testify/suite"
)

type MandateServiceSuite struct {
	testutil.BaseServiceTestSuite
	service MandateService
}

func TestMandateService(t *testing.T) {
	suite.Run(t, new(MandateServiceSuite))
}

func (s *MandateServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewMandateService(ServiceParams{
		Logger:         s.GetLogger(),
		Config:         s.GetConfig(),
		DB:             s.GetDB(),
		MandateRepo:    s.GetStores().MandateRepo,
		EventPublisher: s.GetPublisher(),
	})
}

func (s *MandateServiceSuite) newMandate(memberID string, signDate time.Time) *mandate.Mandate {
	return &mandate.Mandate{
		MemberID:      memberID,
		IBAN:          "DE02120300000000202051",
		BIC:           "BYLADEM1001",
		AccountHolder: "Erika Mustermann",
		SignDate:      signDate,
	}
}

func (s *MandateServiceSuite) TestCreateMandateDefaults() {
	m := s.newMandate("member-1", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	s.NoError(s.service.CreateMandate(s.GetContext(), m))
	s.Contains(m.ID, "mndt")
	s.Contains(m.MandateReference, "MND-")
	s.Equal(types.MandateStatusDraft, m.MandateStatus)
}

func (s *MandateServiceSuite) TestLifecycleOrder() {
	m := s.newMandate("member-1", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	s.NoError(s.service.CreateMandate(s.GetContext(), m))

	// Draft cannot skip straight to active
	err := s.service.Activate(s.GetContext(), m.ID)
	s.Error(err)
	s.True(ierr.IsInvalidTransition(err))

	s.NoError(s.service.MarkPending(s.GetContext(), m.ID))
	s.NoError(s.service.Activate(s.GetContext(), m.ID))

	got, err := s.service.GetMandate(s.GetContext(), m.ID)
	s.NoError(err)
	s.Equal(types.MandateStatusActive, got.MandateStatus)
	s.True(got.IsUsable())
}

func (s *MandateServiceSuite) TestOneActiveMandatePerMember() {
	first := s.newMandate("member-1", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	s.NoError(s.service.CreateMandate(s.GetContext(), first))
	s.NoError(s.service.MarkPending(s.GetContext(), first.ID))
	s.NoError(s.service.Activate(s.GetContext(), first.ID))

	second := s.newMandate("member-1", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	s.NoError(s.service.CreateMandate(s.GetContext(), second))
	s.NoError(s.service.MarkPending(s.GetContext(), second.ID))

	err := s.service.Activate(s.GetContext(), second.ID)
	s.Error(err)
	s.True(ierr.IsAlreadyExists(err))

	// Cancelling the first clears the way
	s.NoError(s.service.Cancel(s.GetContext(), first.ID, "account switch"))
	s.NoError(s.service.Activate(s.GetContext(), second.ID))
}

func (s *MandateServiceSuite) TestCancelIsTerminal() {
	m := s.newMandate("member-1", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	s.NoError(s.service.CreateMandate(s.GetContext(), m))
	s.NoError(s.service.Cancel(s.GetContext(), m.ID, "member request"))

	got, err := s.service.GetMandate(s.GetContext(), m.ID)
	s.NoError(err)
	s.Equal(types.MandateStatusCancelled, got.MandateStatus)
	s.Equal("member request", *got.CancelledReason)

	err = s.service.MarkPending(s.GetContext(), m.ID)
	s.Error(err)
	s.True(ierr.IsInvalidTransition(err))

	err = s.service.Cancel(s.GetContext(), m.ID, "again")
	s.Error(err)
	s.True(ierr.IsInvalidTransition(err))
}

func (s *MandateServiceSuite) TestSequenceTypeFlipsAfterFirstUse() {
	// Signed 2025-01-01, never collected: the next collection is FRST
	m := s.newMandate("member-1", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	s.NoError(s.service.CreateMandate(s.GetContext(), m))
	s.NoError(s.service.MarkPending(s.GetContext(), m.ID))
	s.NoError(s.service.Activate(s.GetContext(), m.ID))

	got, err := s.service.GetMandate(s.GetContext(), m.ID)
	s.NoError(err)
	s.Equal(types.SequenceTypeFirst, got.NextSequenceType())

	s.NoError(s.service.RecordSuccessfulUsage(s.GetContext(), m.ID,
		time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)))

	got, err = s.service.GetMandate(s.GetContext(), m.ID)
	s.NoError(err)
	s.Equal(types.SequenceTypeRecurring, got.NextSequenceType())
	s.Equal("2025-02-15", got.LastUsedAt.Format(time.DateOnly))
	s.Equal("2025-02-15", got.FirstPaymentAt.Format(time.DateOnly))
}

func (s *MandateServiceSuite) TestReSignedMandateRevertsToFirst() {
	m := s.newMandate("member-1", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	s.NoError(s.service.CreateMandate(s.GetContext(), m))
	s.NoError(s.service.MarkPending(s.GetContext(), m.ID))
	s.NoError(s.service.Activate(s.GetContext(), m.ID))
	s.NoError(s.service.RecordSuccessfulUsage(s.GetContext(), m.ID,
		time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)))

	// A later sign date invalidates prior usage
	got, err := s.service.GetMandate(s.GetContext(), m.ID)
	s.NoError(err)
	got.SignDate = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s.NoError(s.GetStores().MandateRepo.Update(s.GetContext(), got))

	got, err = s.service.GetMandate(s.GetContext(), m.ID)
	s.NoError(err)
	s.Equal(types.SequenceTypeFirst, got.NextSequenceType())
}

func (s *MandateServiceSuite) TestRecordUsageRequiresActiveMandate() {
	m := s.newMandate("member-1", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	s.NoError(s.service.CreateMandate(s.GetContext(), m))

	err := s.service.RecordSuccessfulUsage(s.GetContext(), m.ID,
		time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC))
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}
