package v1

import (
	"context"
	"net/http"

	"github.com/duespay/duespay/internal/api/dto"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/logger"
	"github.com/duespay/duespay/internal/service"
	"github.com/duespay/duespay/internal/types"
	"github.com/gin-gonic/gin"
)

type MandateHandler struct {
	service service.MandateService
	log     *logger.Logger
}

func NewMandateHandler(service service.MandateService, log *logger.Logger) *MandateHandler {
	return &MandateHandler{service: service, log: log}
}

// @Summary Create a new mandate
// @Description Register a signed direct-debit authorization in DRAFT
// @Tags Mandates
// @Accept json
// @Produce json
// @Param mandate body dto.CreateMandateRequest true "Mandate details"
// @Success 201 {object} dto.MandateResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /mandates [post]
func (h *MandateHandler) CreateMandate(c *gin.Context) {
	var req dto.CreateMandateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Error("Failed to bind JSON", "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	m := req.ToMandate()
	if err := h.service.CreateMandate(c.Request.Context(), m); err != nil {
		h.log.Error("Failed to create mandate", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToMandateResponse(m))
}

// @Summary Get a mandate by ID
// @Description Get a mandate by ID
// @Tags Mandates
// @Produce json
// @Param id path string true "Mandate ID"
// @Success 200 {object} dto.MandateResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /mandates/{id} [get]
func (h *MandateHandler) GetMandate(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Mandate ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	m, err := h.service.GetMandate(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Failed to get mandate", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.ToMandateResponse(m))
}

// @Summary List mandates
// @Description List mandates with the specified filter
// @Tags Mandates
// @Produce json
// @Param filter query types.MandateFilter false "Filter"
// @Success 200 {object} dto.ListMandatesResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /mandates [get]
func (h *MandateHandler) ListMandates(c *gin.Context) {
	var filter types.MandateFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	mandates, err := h.service.ListMandates(c.Request.Context(), &filter)
	if err != nil {
		h.log.Error("Failed to list mandates", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.ToListMandatesResponse(mandates))
}

// @Summary Mark a mandate pending
// @Description Move a draft mandate to PENDING after the member's first out-of-band payment
// @Tags Mandates
// @Produce json
// @Param id path string true "Mandate ID"
// @Success 200 {object} dto.MandateResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /mandates/{id}/mark-pending [post]
func (h *MandateHandler) MarkPending(c *gin.Context) {
	h.transition(c, h.service.MarkPending)
}

// @Summary Activate a mandate
// @Description Move a pending mandate to ACTIVE; at most one active mandate per member
// @Tags Mandates
// @Produce json
// @Param id path string true "Mandate ID"
// @Success 200 {object} dto.MandateResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /mandates/{id}/activate [post]
func (h *MandateHandler) Activate(c *gin.Context) {
	h.transition(c, h.service.Activate)
}

// @Summary Cancel a mandate
// @Description Revoke the mandate; terminal from every state
// @Tags Mandates
// @Accept json
// @Produce json
// @Param id path string true "Mandate ID"
// @Param reason body dto.CancelMandateRequest true "Revocation reason"
// @Success 200 {object} dto.MandateResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /mandates/{id}/cancel [post]
func (h *MandateHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Mandate ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	var req dto.CancelMandateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	if err := h.service.Cancel(c.Request.Context(), id, req.Reason); err != nil {
		h.log.Error("Failed to cancel mandate", "error", err)
		c.Error(err)
		return
	}

	h.respondWithMandate(c, id)
}

func (h *MandateHandler) transition(c *gin.Context, fn func(ctx context.Context, id string) error) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Mandate ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	if err := fn(c.Request.Context(), id); err != nil {
		h.log.Error("Failed to transition mandate", "mandate_id", id, "error", err)
		c.Error(err)
		return
	}

	h.respondWithMandate(c, id)
}

func (h *MandateHandler) respondWithMandate(c *gin.Context, id string) {
	m, err := h.service.GetMandate(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.ToMandateResponse(m))
}
