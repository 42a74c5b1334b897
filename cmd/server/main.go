package main

import (
	"context"
	"time"

	"github.com/duespay/duespay/internal/api"
	croncontrol "github.com/duespay/duespay/internal/api/cron"
	v1 "github.com/duespay/duespay/internal/api/v1"
	"github.com/duespay/duespay/internal/cache"
	"github.com/duespay/duespay/internal/config"
	"github.com/duespay/duespay/internal/domain/ledger"
	"github.com/duespay/duespay/internal/domain/party"
	"github.com/duespay/duespay/internal/idempotency"
	ledgerClient "github.com/duespay/duespay/internal/ledger"
	"github.com/duespay/duespay/internal/logger"
	"github.com/duespay/duespay/internal/notifier"
	"github.com/duespay/duespay/internal/postgres"
	pubsubRouter "github.com/duespay/duespay/internal/pubsub/router"
	"github.com/duespay/duespay/internal/repository"
	"github.com/duespay/duespay/internal/sepa"
	"github.com/duespay/duespay/internal/service"
	"github.com/duespay/duespay/internal/webhook"
	"github.com/duespay/duespay/internal/webhook/handler"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

func init() {
	// The whole engine reasons in UTC dates
	time.Local = time.UTC
}

func main() {
	// Optional .env for local development; real deployments configure via
	// environment or config file
	_ = godotenv.Load()

	var opts []fx.Option

	opts = append(opts,
		fx.Provide(
			config.NewConfig,
			logger.NewLogger,

			// Cache
			cache.NewInMemoryCache,

			// Postgres
			postgres.NewDB,
			postgres.NewClient,

			// Repositories
			repository.NewScheduleRepository,
			repository.NewInstallmentRepository,
			repository.NewMandateRepository,
			repository.NewBatchRepository,
			repository.NewFailureRepository,
			repository.NewNotificationRepository,

			// External collaborators
			provideLedgerCollaborator,
			providePartyStore,
			notifier.NewTransport,

			// Infrastructure
			idempotency.NewGenerator,
			provideSepaGenerator,

			// PubSub
			pubsubRouter.NewRouter,
		),
	)

	// Operator event stream (must be initialised before services)
	opts = append(opts, webhook.Module)

	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewDuesScheduleService,
			service.NewMandateService,
			service.NewFailureService,
			service.NewBatchCompositionService,
			service.NewNotificationService,
		),
	)

	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(startServer),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideLedgerCollaborator(cfg *config.Configuration, log *logger.Logger) ledger.Collaborator {
	return ledgerClient.NewClient(cfg, log)
}

func providePartyStore(cfg *config.Configuration, c cache.Cache, log *logger.Logger) party.Store {
	return ledgerClient.NewPartyClient(cfg, c, log)
}

func provideSepaGenerator(cfg *config.Configuration) (*sepa.Generator, error) {
	return sepa.NewGenerator(sepa.Creditor{
		Name:       cfg.Creditor.Name,
		IBAN:       cfg.Creditor.IBAN,
		BIC:        cfg.Creditor.BIC,
		CreditorID: cfg.Creditor.CreditorID,
	})
}

func provideHandlers(
	logger *logger.Logger,
	scheduleService service.DuesScheduleService,
	mandateService service.MandateService,
	batchService service.BatchCompositionService,
	failureService service.FailureService,
	notificationService service.NotificationService,
) api.Handlers {
	return api.Handlers{
		Health:       v1.NewHealthHandler(logger),
		Schedule:     v1.NewScheduleHandler(scheduleService, logger),
		Mandate:      v1.NewMandateHandler(mandateService, logger),
		Batch:        v1.NewBatchHandler(batchService, notificationService, logger),
		Failure:      v1.NewFailureHandler(failureService, logger),
		Notification: v1.NewNotificationHandler(notificationService, logger),

		BillingCron:      croncontrol.NewBillingHandler(scheduleService, batchService, logger),
		NotificationCron: croncontrol.NewNotificationHandler(notificationService, logger),
	}
}

func provideRouter(handlers api.Handlers) *gin.Engine {
	return api.NewRouter(handlers)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	router *pubsubRouter.Router,
	reportHandler handler.Handler,
	log *logger.Logger,
) {
	startAPIServer(lc, r, cfg, log)
	startMessageRouter(lc, router, reportHandler, log)
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting API server...")
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return nil
		},
	})
}

func startMessageRouter(
	lc fx.Lifecycle,
	router *pubsubRouter.Router,
	reportHandler handler.Handler,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting operator report router...")
			reportHandler.RegisterHandler(router)
			go func() {
				if err := router.Run(); err != nil {
					log.Errorf("Failed to run message router: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Stopping operator report router...")
			return router.Close()
		},
	})
}
