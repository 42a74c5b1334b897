package publisher

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/duespay/duespay/internal/config"
	"github.com/duespay/duespay/internal/logger"
	"github.com/duespay/duespay/internal/pubsub"
	"github.com/duespay/duespay/internal/types"
)

// EventPublisher produces operator events on the lifecycle stream. Publishing
// is best-effort: a failed publish is logged but never fails the billing
// operation that produced it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *types.OperatorEvent) error
	Close() error
}

type eventPublisher struct {
	pubSub pubsub.PubSub
	config *config.EventsConfig
	logger *logger.Logger
}

// NewPublisher creates a new operator event publisher
func NewPublisher(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	logger *logger.Logger,
) (EventPublisher, error) {
	return &eventPublisher{
		pubSub: pubSub,
		config: &cfg.Events,
		logger: logger,
	}, nil
}

func (p *eventPublisher) PublishEvent(ctx context.Context, event *types.OperatorEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	messageID := event.ID
	if messageID == "" {
		messageID = watermill.NewUUID()
	}

	msg := message.NewMessage(messageID, payload)
	msg.Metadata.Set("event_name", event.EventName)

	if err := p.pubSub.Publish(ctx, p.config.Topic, msg); err != nil {
		p.logger.Errorw("failed to publish operator event",
			"error", err,
			"event_id", event.ID,
			"event_name", event.EventName,
		)
		return err
	}

	p.logger.Debugw("published operator event",
		"event_id", event.ID,
		"event_name", event.EventName,
		"topic", p.config.Topic,
	)
	return nil
}

func (p *eventPublisher) Close() error {
	return p.pubSub.Close()
}
