package service

import (
	"github.com/duespay/duespay/internal/config"
	"github.com/duespay/duespay/internal/domain/batch"
	"github.com/duespay/duespay/internal/domain/failure"
	"github.com/duespay/duespay/internal/domain/ledger"
	"github.com/duespay/duespay/internal/domain/mandate"
	"github.com/duespay/duespay/internal/domain/notification"
	"github.com/duespay/duespay/internal/domain/party"
	"github.com/duespay/duespay/internal/domain/schedule"
	"github.com/duespay/duespay/internal/idempotency"
	"github.com/duespay/duespay/internal/logger"
	"github.com/duespay/duespay/internal/postgres"
	"github.com/duespay/duespay/internal/sepa"
	webhookPublisher "github.com/duespay/duespay/internal/webhook/publisher"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient

	// Repositories
	ScheduleRepo     schedule.Repository
	InstallmentRepo  schedule.InstallmentRepository
	MandateRepo      mandate.Repository
	BatchRepo        batch.Repository
	FailureRepo      failure.Repository
	NotificationRepo notification.Repository

	// Collaborators
	Ledger     ledger.Collaborator
	PartyStore party.Store
	Transport  notification.Transport

	// Infrastructure
	IdempGen       *idempotency.Generator
	SepaGenerator  *sepa.Generator
	EventPublisher webhookPublisher.EventPublisher
}

// NewServiceParams assembles the common service dependencies for DI
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	scheduleRepo schedule.Repository,
	installmentRepo schedule.InstallmentRepository,
	mandateRepo mandate.Repository,
	batchRepo batch.Repository,
	failureRepo failure.Repository,
	notificationRepo notification.Repository,
	ledgerCollaborator ledger.Collaborator,
	partyStore party.Store,
	transport notification.Transport,
	idempGen *idempotency.Generator,
	sepaGenerator *sepa.Generator,
	eventPublisher webhookPublisher.EventPublisher,
) ServiceParams {
	return ServiceParams{
		Logger:           logger,
		Config:           config,
		DB:               db,
		ScheduleRepo:     scheduleRepo,
		InstallmentRepo:  installmentRepo,
		MandateRepo:      mandateRepo,
		BatchRepo:        batchRepo,
		FailureRepo:      failureRepo,
		NotificationRepo: notificationRepo,
		Ledger:           ledgerCollaborator,
		PartyStore:       partyStore,
		Transport:        transport,
		IdempGen:         idempGen,
		SepaGenerator:    sepaGenerator,
		EventPublisher:   eventPublisher,
	}
}
