package cron

import (
	"net/http"
	"time"

	"github.com/duespay/duespay/internal/logger"
	"github.com/duespay/duespay/internal/service"
	"github.com/gin-gonic/gin"
)

// BillingHandler handles the invoicing and batch cron jobs. Every job is
// idempotent, so duplicate scheduler invocations are harmless.
type BillingHandler struct {
	scheduleService service.DuesScheduleService
	batchService    service.BatchCompositionService
	logger          *logger.Logger
}

// NewBillingHandler creates a new billing cron handler
func NewBillingHandler(
	scheduleService service.DuesScheduleService,
	batchService service.BatchCompositionService,
	logger *logger.Logger,
) *BillingHandler {
	return &BillingHandler{
		scheduleService: scheduleService,
		batchService:    batchService,
		logger:          logger,
	}
}

// GenerateInvoices runs the daily anniversary-based invoice generation
func (h *BillingHandler) GenerateInvoices(c *gin.Context) {
	h.logger.Infow("starting daily invoice generation cron job")

	report, err := h.scheduleService.RunDailyGeneration(c.Request.Context(), time.Now().UTC())
	if err != nil {
		h.logger.Errorw("failed to run daily invoice generation", "error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed daily invoice generation cron job",
		"generated", report.Generated,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"flagged", report.Flagged,
	)
	c.JSON(http.StatusOK, report)
}

// GenerateInstallmentInvoices invoices due payment-plan installments
func (h *BillingHandler) GenerateInstallmentInvoices(c *gin.Context) {
	h.logger.Infow("starting installment invoicing cron job")

	report, err := h.scheduleService.GenerateInstallmentInvoices(c.Request.Context(), time.Now().UTC())
	if err != nil {
		h.logger.Errorw("failed to run installment invoicing", "error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed installment invoicing cron job",
		"generated", report.Generated,
		"failed", report.Failed,
	)
	c.JSON(http.StatusOK, report)
}

// SweepGracePeriods suspends schedules whose grace period has expired
func (h *BillingHandler) SweepGracePeriods(c *gin.Context) {
	h.logger.Infow("starting grace-period sweep cron job")

	report, err := h.scheduleService.SweepGracePeriods(c.Request.Context(), time.Now().UTC())
	if err != nil {
		h.logger.Errorw("failed to sweep grace periods", "error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed grace-period sweep cron job", "swept", report.Swept)
	c.JSON(http.StatusOK, report)
}

// ComposeBatch builds the next direct-debit collection batch
func (h *BillingHandler) ComposeBatch(c *gin.Context) {
	h.logger.Infow("starting batch composition cron job")

	summary, err := h.batchService.BuildBatch(c.Request.Context(), time.Now().UTC())
	if err != nil {
		h.logger.Errorw("failed to compose batch", "error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed batch composition cron job",
		"batch_id", summary.BatchID,
		"total_amount", summary.TotalAmount,
		"deadline_warning", summary.DeadlineWarning,
	)
	c.JSON(http.StatusOK, summary)
}
