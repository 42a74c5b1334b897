package v1

import (
	"net/http"

	"github.com/duespay/duespay/internal/api/dto"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/logger"
	"github.com/duespay/duespay/internal/service"
	"github.com/duespay/duespay/internal/types"
	"github.com/gin-gonic/gin"
)

type FailureHandler struct {
	service service.FailureService
	log     *logger.Logger
}

func NewFailureHandler(service service.FailureService, log *logger.Logger) *FailureHandler {
	return &FailureHandler{service: service, log: log}
}

// @Summary Ingest bank returns
// @Description Process a bank status report's returns with per-return fault isolation
// @Tags Failures
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param returns body dto.IngestReturnsRequest true "Bank returns"
// @Success 200 {object} service.ReturnIngestionReport
// @Failure 400 {object} middleware.ErrorResponse
// @Router /batches/{id}/returns [post]
func (h *FailureHandler) IngestBankReturns(c *gin.Context) {
	batchID := c.Param("id")
	if batchID == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Batch ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	var req dto.IngestReturnsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Error("Failed to bind JSON", "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	report, err := h.service.IngestBankReturns(c.Request.Context(), batchID, req.Returns)
	if err != nil {
		h.log.Error("Failed to ingest bank returns", "batch_id", batchID, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// @Summary Get a failure record by ID
// @Description Get a failure record by ID
// @Tags Failures
// @Produce json
// @Param id path string true "Failure record ID"
// @Success 200 {object} dto.FailureResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /failures/{id} [get]
func (h *FailureHandler) GetFailure(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Failure record ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	record, err := h.service.GetFailure(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Failed to get failure record", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, &dto.FailureResponse{Record: record})
}

// @Summary List failure records
// @Description List failure records with the specified filter
// @Tags Failures
// @Produce json
// @Param filter query types.FailureFilter false "Filter"
// @Success 200 {object} dto.ListFailuresResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /failures [get]
func (h *FailureHandler) ListFailures(c *gin.Context) {
	var filter types.FailureFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	records, err := h.service.ListFailures(c.Request.Context(), &filter)
	if err != nil {
		h.log.Error("Failed to list failure records", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.ToListFailuresResponse(records))
}

// @Summary Resolve a failure record
// @Description Close a failure after manual review; optionally reactivate the schedule
// @Tags Failures
// @Accept json
// @Produce json
// @Param id path string true "Failure record ID"
// @Param resolution body dto.ResolveFailureRequest true "Resolution"
// @Success 200 {object} dto.FailureResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /failures/{id}/resolve [post]
func (h *FailureHandler) ResolveFailure(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Failure record ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	var req dto.ResolveFailureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	if err := h.service.Resolve(c.Request.Context(), id, req.Notes, req.ReactivateSchedule); err != nil {
		h.log.Error("Failed to resolve failure record", "failure_id", id, "error", err)
		c.Error(err)
		return
	}

	record, err := h.service.GetFailure(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, &dto.FailureResponse{Record: record})
}
