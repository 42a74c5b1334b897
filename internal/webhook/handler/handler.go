package handler

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/duespay/duespay/internal/config"
	"github.com/duespay/duespay/internal/logger"
	"github.com/duespay/duespay/internal/pubsub"
	pubsubRouter "github.com/duespay/duespay/internal/pubsub/router"
	"github.com/duespay/duespay/internal/types"
)

// Handler consumes the operator event stream and renders it into the
// operator report log
type Handler interface {
	RegisterHandler(router *pubsubRouter.Router)
}

type handler struct {
	pubSub pubsub.PubSub
	config *config.EventsConfig
	logger *logger.Logger
}

// NewHandler creates the operator report consumer
func NewHandler(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	logger *logger.Logger,
) (Handler, error) {
	return &handler{
		pubSub: pubSub,
		config: &cfg.Events,
		logger: logger,
	}, nil
}

func (h *handler) RegisterHandler(router *pubsubRouter.Router) {
	router.AddNoPublishHandler(
		"operator_report_handler",
		h.config.Topic,
		h.pubSub,
		h.processMessage,
	)
}

func (h *handler) processMessage(msg *message.Message) error {
	var event types.OperatorEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		h.logger.Errorw("failed to unmarshal operator event",
			"error", err,
			"message_uuid", msg.UUID,
		)
		// Don't retry on unmarshal errors
		return nil
	}

	h.logger.Infow("operator report",
		"event_id", event.ID,
		"event_name", event.EventName,
		"timestamp", event.Timestamp,
		"payload", string(event.Payload),
	)
	return nil
}
