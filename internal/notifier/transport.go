package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/duespay/duespay/internal/config"
	"github.com/duespay/duespay/internal/domain/notification"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/httpclient"
	"github.com/duespay/duespay/internal/logger"
)

// HTTPTransport delivers staged notifications through an external delivery
// endpoint. Delivery is single-shot; the dispatch log, not the transport,
// decides whether a stage fires again.
type HTTPTransport struct {
	http   httpclient.Client
	url    string
	logger *logger.Logger
}

// NewTransport creates the configured notification transport. An empty
// transport URL yields a no-op transport that only logs.
func NewTransport(cfg *config.Configuration, log *logger.Logger) notification.Transport {
	if cfg.Notifications.TransportURL == "" {
		return &nopTransport{logger: log}
	}

	timeout := cfg.Notifications.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPTransport{
		http:   httpclient.NewClientWithTimeout(timeout),
		url:    cfg.Notifications.TransportURL,
		logger: log,
	}
}

func (t *HTTPTransport) Dispatch(ctx context.Context, memberID string, stage string, details map[string]string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"member_id": memberID,
		"stage":     stage,
		"details":   details,
	})
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to encode notification").
			Mark(ierr.ErrSystem)
	}

	resp, err := t.http.Send(ctx, &httpclient.Request{
		Method: http.MethodPost,
		URL:    t.url,
		Body:   body,
	})
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Notification delivery failed").
			WithReportableDetails(map[string]any{
				"member_id": memberID,
				"stage":     stage,
			}).
			Mark(ierr.ErrHTTPClient)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", ierr.NewErrorf("notification delivery returned status %d", resp.StatusCode).
			WithHint("The delivery endpoint rejected the notification").
			WithReportableDetails(map[string]any{
				"member_id": memberID,
				"stage":     stage,
			}).
			Mark(ierr.ErrHTTPClient)
	}

	var out struct {
		DeliveryID string `json:"delivery_id"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		// Delivery succeeded even if the receipt is unreadable
		t.logger.Warnw("notification delivered without readable receipt",
			"member_id", memberID,
			"stage", stage,
		)
		return "", nil
	}
	return out.DeliveryID, nil
}

// nopTransport logs the would-be delivery and reports success. Used when no
// transport endpoint is configured, typically in local development.
type nopTransport struct {
	logger *logger.Logger
}

func (t *nopTransport) Dispatch(ctx context.Context, memberID string, stage string, details map[string]string) (string, error) {
	t.logger.Infow("notification transport disabled, skipping delivery",
		"member_id", memberID,
		"stage", stage,
	)
	return "", nil
}
