package v1

import (
	"net/http"

	"github.com/duespay/duespay/internal/api/dto"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/logger"
	"github.com/duespay/duespay/internal/service"
	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	service service.NotificationService
	log     *logger.Logger
}

func NewNotificationHandler(service service.NotificationService, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{service: service, log: log}
}

// @Summary List a schedule's notification dispatches
// @Description List the dispatch log entries of a schedule
// @Tags Notifications
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} dto.ListDispatchesResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /schedules/{id}/dispatches [get]
func (h *NotificationHandler) ListDispatches(c *gin.Context) {
	scheduleID := c.Param("id")
	if scheduleID == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Schedule ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	dispatches, err := h.service.ListDispatches(c.Request.Context(), scheduleID)
	if err != nil {
		h.log.Error("Failed to list dispatches", "schedule_id", scheduleID, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.ToListDispatchesResponse(dispatches))
}
