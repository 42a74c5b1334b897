package webhook

import (
	"github.com/duespay/duespay/internal/config"
	"github.com/duespay/duespay/internal/logger"
	"github.com/duespay/duespay/internal/pubsub"
	"github.com/duespay/duespay/internal/pubsub/memory"
	"github.com/duespay/duespay/internal/webhook/handler"
	"github.com/duespay/duespay/internal/webhook/publisher"
	"go.uber.org/fx"
)

// Module provides the operator event stream dependencies
var Module = fx.Options(
	fx.Provide(
		providePubSub,
		publisher.NewPublisher,
		handler.NewHandler,
	),
)

func providePubSub(cfg *config.Configuration, logger *logger.Logger) pubsub.PubSub {
	return memory.NewPubSub(logger)
}
