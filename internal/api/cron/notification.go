package cron

import (
	"net/http"
	"time"

	"github.com/duespay/duespay/internal/logger"
	"github.com/duespay/duespay/internal/service"
	"github.com/gin-gonic/gin"
)

// NotificationHandler handles the staged dues-communication cron job
type NotificationHandler struct {
	notificationService service.NotificationService
	logger              *logger.Logger
}

// NewNotificationHandler creates a new notification cron handler
func NewNotificationHandler(
	notificationService service.NotificationService,
	logger *logger.Logger,
) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		logger:              logger,
	}
}

// RunDuesStages fires every dues stage whose offset lands on today
func (h *NotificationHandler) RunDuesStages(c *gin.Context) {
	h.logger.Infow("starting dues notification stages cron job")

	report, err := h.notificationService.RunDuesStages(c.Request.Context(), time.Now().UTC())
	if err != nil {
		h.logger.Errorw("failed to run dues notification stages", "error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed dues notification stages cron job",
		"dispatched", report.Dispatched,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	c.JSON(http.StatusOK, report)
}
