package testutil

import (
	"context"
	"time"

	"github.com/duespay/duespay/internal/config"
	"github.com/duespay/duespay/internal/domain/batch"
	"github.com/duespay/duespay/internal/domain/failure"
	"github.com/duespay/duespay/internal/domain/mandate"
	"github.com/duespay/duespay/internal/domain/notification"
	"github.com/duespay/duespay/internal/domain/schedule"
	"github.com/duespay/duespay/internal/idempotency"
	"github.com/duespay/duespay/internal/logger"
	"github.com/duespay/duespay/internal/postgres"
	"github.com/duespay/duespay/internal/sepa"
	"github.com/duespay/duespay/internal/types"
	webhookPublisher "github.com/duespay/duespay/internal/webhook/publisher"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	ScheduleRepo     schedule.Repository
	InstallmentRepo  schedule.InstallmentRepository
	MandateRepo      mandate.Repository
	BatchRepo        batch.Repository
	FailureRepo      failure.Repository
	NotificationRepo notification.Repository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	ledger    *InMemoryLedger
	parties   *InMemoryPartyStore
	transport *RecordingTransport
	publisher webhookPublisher.EventPublisher
	pubsub    *InMemoryPubSub
	db        postgres.IClient
	logger    *logger.Logger
	config    *config.Configuration
	idempGen  *idempotency.Generator
	sepaGen   *sepa.Generator
	now       time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	cfg := &config.Configuration{
		Logging: config.LoggingConfig{
			Level: types.LogLevelInfo,
		},
		Billing: config.BillingConfig{
			ExecutionDay:           15,
			FrstLeadBusinessDays:   5,
			RcurLeadBusinessDays:   2,
			InvoiceLookaheadDays:   7,
			MaxConsecutiveFailures: 2,
			GracePeriodDays:        14,
			Currency:               "EUR",
		},
		Creditor: config.CreditorConfig{
			Name:       "Test Association e.V.",
			IBAN:       "DE89370400440532013000",
			BIC:        "COBADEFFXXX",
			CreditorID: "DE98ZZZ09999999999",
		},
		Events: config.EventsConfig{
			Topic: "operator_events",
		},
	}

	var err error
	s.config = cfg
	s.logger, err = logger.NewLogger(cfg)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}

	s.idempGen = idempotency.NewGenerator()
	s.sepaGen, err = sepa.NewGenerator(sepa.Creditor{
		Name:       cfg.Creditor.Name,
		IBAN:       cfg.Creditor.IBAN,
		BIC:        cfg.Creditor.BIC,
		CreditorID: cfg.Creditor.CreditorID,
	})
	if err != nil {
		s.T().Fatalf("failed to create sepa generator: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.setupContext()
	s.setupStores()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = context.Background()
	s.ctx = context.WithValue(s.ctx, types.CtxOperatorID, types.DefaultOperatorID)
	s.ctx = context.WithValue(s.ctx, types.CtxRequestID, types.GenerateUUID())
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		ScheduleRepo:     NewInMemoryScheduleStore(),
		InstallmentRepo:  NewInMemoryInstallmentStore(),
		MandateRepo:      NewInMemoryMandateStore(),
		BatchRepo:        NewInMemoryBatchStore(),
		FailureRepo:      NewInMemoryFailureStore(),
		NotificationRepo: NewInMemoryNotificationStore(),
	}

	s.db = NewMockPostgresClient(s.logger)
	s.ledger = NewInMemoryLedger()
	s.parties = NewInMemoryPartyStore()
	s.transport = NewRecordingTransport()
	s.pubsub = NewInMemoryPubSub()

	publisher, err := webhookPublisher.NewPublisher(s.pubsub, s.config, s.logger)
	if err != nil {
		s.T().Fatalf("failed to create event publisher: %v", err)
	}
	s.publisher = publisher
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.ScheduleRepo.(*InMemoryScheduleStore).Clear()
	s.stores.InstallmentRepo.(*InMemoryInstallmentStore).Clear()
	s.stores.MandateRepo.(*InMemoryMandateStore).Clear()
	s.stores.BatchRepo.(*InMemoryBatchStore).Clear()
	s.stores.FailureRepo.(*InMemoryFailureStore).Clear()
	s.stores.NotificationRepo.(*InMemoryNotificationStore).Clear()
	s.ledger.Clear()
	s.parties.Clear()
	s.transport.Clear()
	s.pubsub.ClearMessages()
}

// ClearStores clears all test data between cases inside one test
func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetLedger returns the in-memory ledger collaborator
func (s *BaseServiceTestSuite) GetLedger() *InMemoryLedger {
	return s.ledger
}

// GetParties returns the in-memory party store
func (s *BaseServiceTestSuite) GetParties() *InMemoryPartyStore {
	return s.parties
}

// GetTransport returns the recording notification transport
func (s *BaseServiceTestSuite) GetTransport() *RecordingTransport {
	return s.transport
}

// GetPublisher returns the test event publisher
func (s *BaseServiceTestSuite) GetPublisher() webhookPublisher.EventPublisher {
	return s.publisher
}

// GetPubSub returns the in-memory pubsub backing the publisher
func (s *BaseServiceTestSuite) GetPubSub() *InMemoryPubSub {
	return s.pubsub
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() postgres.IClient {
	return s.db
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetIdempotencyGenerator returns the idempotency key generator
func (s *BaseServiceTestSuite) GetIdempotencyGenerator() *idempotency.Generator {
	return s.idempGen
}

// GetSepaGenerator returns the bank file generator
func (s *BaseServiceTestSuite) GetSepaGenerator() *sepa.Generator {
	return s.sepaGen
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}
