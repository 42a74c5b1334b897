package api

import (
	croncontrol "github.com/duespay/duespay/internal/api/cron"
	v1 "github.com/duespay/duespay/internal/api/v1"
	"github.com/duespay/duespay/internal/rest/middleware"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Health       *v1.HealthHandler
	Schedule     *v1.ScheduleHandler
	Mandate      *v1.MandateHandler
	Batch        *v1.BatchHandler
	Failure      *v1.FailureHandler
	Notification *v1.NotificationHandler

	BillingCron      *croncontrol.BillingHandler
	NotificationCron *croncontrol.NotificationHandler
}

func NewRouter(handlers Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.ErrorHandler())

	router.GET("/health", handlers.Health.Health)

	// v1 routes
	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers)

	// cron trigger routes, called by the external scheduler
	cronGroup := router.Group("/cron")
	registerCronRoutes(cronGroup, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	// Schedule routes
	schedules := router.Group("/schedules")
	{
		schedules.POST("", handlers.Schedule.CreateSchedule)
		schedules.GET("", handlers.Schedule.ListSchedules)
		schedules.GET("/:id", handlers.Schedule.GetSchedule)
		schedules.POST("/:id/status", handlers.Schedule.UpdateScheduleStatus)
		schedules.POST("/:id/grace-period", handlers.Schedule.StartGracePeriod)
		schedules.POST("/:id/payment-plan", handlers.Schedule.CreatePaymentPlan)
		schedules.GET("/:id/installments", handlers.Schedule.ListInstallments)
		schedules.GET("/:id/dispatches", handlers.Notification.ListDispatches)
	}

	// Mandate routes
	mandates := router.Group("/mandates")
	{
		mandates.POST("", handlers.Mandate.CreateMandate)
		mandates.GET("", handlers.Mandate.ListMandates)
		mandates.GET("/:id", handlers.Mandate.GetMandate)
		mandates.POST("/:id/mark-pending", handlers.Mandate.MarkPending)
		mandates.POST("/:id/activate", handlers.Mandate.Activate)
		mandates.POST("/:id/cancel", handlers.Mandate.Cancel)
	}

	// Batch routes
	batches := router.Group("/batches")
	{
		batches.POST("", handlers.Batch.BuildBatch)
		batches.GET("", handlers.Batch.ListBatches)
		batches.GET("/:id", handlers.Batch.GetBatch)
		batches.GET("/:id/collection-file", handlers.Batch.GetCollectionFile)
		batches.POST("/:id/submit", handlers.Batch.SubmitBatch)
		batches.POST("/:id/finalize", handlers.Batch.FinalizeBatch)
		batches.POST("/:id/cancel", handlers.Batch.CancelBatch)
		batches.POST("/:id/results", handlers.Batch.ProcessBatchResults)
		batches.POST("/:id/returns", handlers.Failure.IngestBankReturns)
		batches.POST("/:id/pre-notifications", handlers.Batch.SendPreNotifications)
	}

	// Failure routes
	failures := router.Group("/failures")
	{
		failures.GET("", handlers.Failure.ListFailures)
		failures.GET("/:id", handlers.Failure.GetFailure)
		failures.POST("/:id/resolve", handlers.Failure.ResolveFailure)
	}
}

func registerCronRoutes(router *gin.RouterGroup, handlers Handlers) {
	billing := router.Group("/billing")
	{
		billing.POST("/generate-invoices", handlers.BillingCron.GenerateInvoices)
		billing.POST("/generate-installment-invoices", handlers.BillingCron.GenerateInstallmentInvoices)
		billing.POST("/sweep-grace-periods", handlers.BillingCron.SweepGracePeriods)
		billing.POST("/compose-batch", handlers.BillingCron.ComposeBatch)
	}

	notifications := router.Group("/notifications")
	{
		notifications.POST("/run-dues-stages", handlers.NotificationCron.RunDuesStages)
	}
}
