package v1

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/duespay/duespay/internal/api/dto"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/logger"
	"github.com/duespay/duespay/internal/service"
	"github.com/duespay/duespay/internal/types"
	"github.com/gin-gonic/gin"
)

type BatchHandler struct {
	service       service.BatchCompositionService
	notifications service.NotificationService
	log           *logger.Logger
}

func NewBatchHandler(
	service service.BatchCompositionService,
	notifications service.NotificationService,
	log *logger.Logger,
) *BatchHandler {
	return &BatchHandler{service: service, notifications: notifications, log: log}
}

// @Summary Compose a new collection batch
// @Description Select eligible invoices, claim them and emit the collection file
// @Tags Batches
// @Produce json
// @Success 201 {object} service.BatchSummary
// @Failure 404 {object} middleware.ErrorResponse
// @Router /batches [post]
func (h *BatchHandler) BuildBatch(c *gin.Context) {
	summary, err := h.service.BuildBatch(c.Request.Context(), time.Now().UTC())
	if err != nil {
		h.log.Error("Failed to build batch", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, summary)
}

// @Summary Get a batch by ID
// @Description Get a batch with its transactions
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} dto.BatchResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /batches/{id} [get]
func (h *BatchHandler) GetBatch(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Batch ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	b, err := h.service.GetBatch(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Failed to get batch", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, &dto.BatchResponse{Batch: b})
}

// @Summary List batches
// @Description List batches with the specified filter
// @Tags Batches
// @Produce json
// @Param filter query types.BatchFilter false "Filter"
// @Success 200 {object} dto.ListBatchesResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /batches [get]
func (h *BatchHandler) ListBatches(c *gin.Context) {
	var filter types.BatchFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	batches, err := h.service.ListBatches(c.Request.Context(), &filter)
	if err != nil {
		h.log.Error("Failed to list batches", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.ToListBatchesResponse(batches))
}

// @Summary Download a batch's collection file
// @Description Re-emit the deterministic pain.008 file for a stored batch
// @Tags Batches
// @Produce xml
// @Param id path string true "Batch ID"
// @Success 200 {string} string "pain.008.001.08 document"
// @Failure 404 {object} middleware.ErrorResponse
// @Router /batches/{id}/collection-file [get]
func (h *BatchHandler) GetCollectionFile(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Batch ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	file, err := h.service.GetCollectionFile(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Failed to emit collection file", "batch_id", id, "error", err)
		c.Error(err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xml", id))
	c.Data(http.StatusOK, "application/xml", file)
}

// @Summary Submit a batch
// @Description Mark an open batch as handed to the bank
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} dto.BatchResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /batches/{id}/submit [post]
func (h *BatchHandler) SubmitBatch(c *gin.Context) {
	h.transition(c, h.service.SubmitBatch)
}

// @Summary Finalize a batch
// @Description Close a fully processed batch
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} dto.BatchResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /batches/{id}/finalize [post]
func (h *BatchHandler) FinalizeBatch(c *gin.Context) {
	h.transition(c, h.service.FinalizeBatch)
}

// @Summary Cancel a batch
// @Description Abandon an open batch and release its invoice claims
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} dto.BatchResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /batches/{id}/cancel [post]
func (h *BatchHandler) CancelBatch(c *gin.Context) {
	h.transition(c, h.service.CancelBatch)
}

// @Summary Process a batch's execution results
// @Description Apply per-line outcomes: successes advance mandates, failures enter review
// @Tags Batches
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param results body dto.ProcessBatchResultsRequest true "Per-line outcomes"
// @Success 200 {object} service.ReturnIngestionReport
// @Failure 400 {object} middleware.ErrorResponse
// @Router /batches/{id}/results [post]
func (h *BatchHandler) ProcessBatchResults(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Batch ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	var req dto.ProcessBatchResultsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	report, err := h.service.ProcessBatchResults(c.Request.Context(), id, req.Results)
	if err != nil {
		h.log.Error("Failed to process batch results", "batch_id", id, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// @Summary Send a batch's pre-notifications
// @Description Fire the scheme-mandated pre-notification for every batch line
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} service.NotificationRunReport
// @Failure 404 {object} middleware.ErrorResponse
// @Router /batches/{id}/pre-notifications [post]
func (h *BatchHandler) SendPreNotifications(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Batch ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	report, err := h.notifications.SendPreNotifications(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Failed to send pre-notifications", "batch_id", id, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *BatchHandler) transition(c *gin.Context, fn func(ctx context.Context, id string) error) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Batch ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	if err := fn(c.Request.Context(), id); err != nil {
		h.log.Error("Failed to transition batch", "batch_id", id, "error", err)
		c.Error(err)
		return
	}

	b, err := h.service.GetBatch(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, &dto.BatchResponse{Batch: b})
}
