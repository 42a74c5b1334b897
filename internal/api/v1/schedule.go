package v1

import (
	"net/http"
	"time"

	"github.com/duespay/duespay/internal/api/dto"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/logger"
	"github.com/duespay/duespay/internal/service"
	"github.com/duespay/duespay/internal/types"
	"github.com/gin-gonic/gin"
)

type ScheduleHandler struct {
	service service.DuesScheduleService
	log     *logger.Logger
}

func NewScheduleHandler(service service.DuesScheduleService, log *logger.Logger) *ScheduleHandler {
	return &ScheduleHandler{service: service, log: log}
}

// @Summary Create a new dues schedule
// @Description Create a dues schedule for a member
// @Tags Schedules
// @Accept json
// @Produce json
// @Param schedule body dto.CreateScheduleRequest true "Schedule configuration"
// @Success 201 {object} dto.ScheduleResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /schedules [post]
func (h *ScheduleHandler) CreateSchedule(c *gin.Context) {
	var req dto.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Error("Failed to bind JSON", "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	sched := req.ToSchedule()
	if err := h.service.CreateSchedule(c.Request.Context(), sched); err != nil {
		h.log.Error("Failed to create schedule", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, &dto.ScheduleResponse{DuesSchedule: sched})
}

// @Summary Get a dues schedule by ID
// @Description Get a dues schedule by ID
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} dto.ScheduleResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Schedule ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	sched, err := h.service.GetSchedule(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Failed to get schedule", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, &dto.ScheduleResponse{DuesSchedule: sched})
}

// @Summary List dues schedules
// @Description List dues schedules with the specified filter
// @Tags Schedules
// @Produce json
// @Param filter query types.ScheduleFilter false "Filter"
// @Success 200 {object} dto.ListSchedulesResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /schedules [get]
func (h *ScheduleHandler) ListSchedules(c *gin.Context) {
	var filter types.ScheduleFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	schedules, err := h.service.ListSchedules(c.Request.Context(), &filter)
	if err != nil {
		h.log.Error("Failed to list schedules", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.ToListSchedulesResponse(schedules))
}

// @Summary Update a schedule's status
// @Description Operator-driven status change; the only re-entry from manual review
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param status body dto.UpdateScheduleStatusRequest true "Target status"
// @Success 200 {object} dto.ScheduleResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /schedules/{id}/status [post]
func (h *ScheduleHandler) UpdateScheduleStatus(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Schedule ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	var req dto.UpdateScheduleStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	if err := h.service.UpdateScheduleStatus(c.Request.Context(), id, req.Status, req.Reason); err != nil {
		h.log.Error("Failed to update schedule status", "error", err)
		c.Error(err)
		return
	}

	sched, err := h.service.GetSchedule(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, &dto.ScheduleResponse{DuesSchedule: sched})
}

// @Summary Start a grace period
// @Description Park an active schedule in grace period until today + configured days
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} dto.ScheduleResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /schedules/{id}/grace-period [post]
func (h *ScheduleHandler) StartGracePeriod(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Schedule ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	if err := h.service.StartGracePeriod(c.Request.Context(), id, time.Now().UTC()); err != nil {
		h.log.Error("Failed to start grace period", "error", err)
		c.Error(err)
		return
	}

	sched, err := h.service.GetSchedule(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, &dto.ScheduleResponse{DuesSchedule: sched})
}

// @Summary Create a payment plan
// @Description Park the schedule in PAYMENT_PLAN with the agreed installments
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param plan body dto.CreatePaymentPlanRequest true "Installments"
// @Success 201 {object} dto.ListInstallmentsResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /schedules/{id}/payment-plan [post]
func (h *ScheduleHandler) CreatePaymentPlan(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Schedule ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	var req dto.CreatePaymentPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	installments := req.ToInstallments()
	if err := h.service.CreatePaymentPlan(c.Request.Context(), id, installments); err != nil {
		h.log.Error("Failed to create payment plan", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToListInstallmentsResponse(installments))
}

// @Summary List a schedule's installments
// @Description List the payment-plan installments of a schedule
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} dto.ListInstallmentsResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /schedules/{id}/installments [get]
func (h *ScheduleHandler) ListInstallments(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Schedule ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	installments, err := h.service.ListInstallments(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Failed to list installments", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.ToListInstallmentsResponse(installments))
}
