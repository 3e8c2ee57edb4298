package notification

import (
	"encoding/json"
	"net/http"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/numbrly/portal/internal/config"
	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/httpclient"
	"github.com/numbrly/portal/internal/logger"
	"github.com/numbrly/portal/internal/metrics"
	"github.com/numbrly/portal/internal/pubsub"
	"github.com/numbrly/portal/internal/pubsub/router"
	"github.com/numbrly/portal/internal/types"
)

const handlerName = "lifecycle_notifier"

// Notifier consumes lifecycle events. Every event is logged; when a webhook
// is configured it is also posted there.
type Notifier struct {
	config  *config.NotificationConfig
	client  httpclient.Client
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewNotifier(cfg *config.Configuration, client httpclient.Client, logger *logger.Logger, m *metrics.Metrics) *Notifier {
	return &Notifier{
		config:  &cfg.Notification,
		client:  client,
		logger:  logger,
		metrics: m,
	}
}

// NewWebhookClient builds the retrying client used for webhook delivery
func NewWebhookClient(cfg *config.Configuration, logger *logger.Logger) httpclient.Client {
	return httpclient.NewDefaultClient(httpclient.ClientConfig{
		Timeout:    cfg.Notification.Timeout,
		MaxRetries: cfg.Notification.MaxRetries,
	}, logger)
}

// Register subscribes the notifier to the events topic
func (n *Notifier) Register(r *router.Router, sub pubsub.Subscriber, topic string) {
	r.AddNoPublishHandler(handlerName, topic, sub, n.Handle)
}

func (n *Notifier) Handle(msg *message.Message) error {
	var event types.LifecycleEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		n.metrics.RecordNotification("malformed")
		return ierr.WithError(err).
			WithHint("Lifecycle event payload is not valid JSON").
			WithReportableDetails(map[string]any{"message_uuid": msg.UUID}).
			Mark(ierr.ErrValidation)
	}

	n.logger.Infow("lifecycle event",
		"event_id", event.ID,
		"event_name", event.EventName,
		"user_id", event.UserID,
		"number_id", event.NumberID,
		"timestamp", event.Timestamp,
	)

	if !n.config.Enabled || n.config.WebhookURL == "" {
		n.metrics.RecordNotification("logged")
		return nil
	}

	headers := map[string]string{
		"X-Numbrly-Event":    event.EventName,
		"X-Numbrly-Event-ID": event.ID,
	}
	for k, v := range n.config.Headers {
		headers[k] = v
	}

	_, err := n.client.Send(msg.Context(), &httpclient.Request{
		Method:  http.MethodPost,
		URL:     n.config.WebhookURL,
		Headers: headers,
		Body:    msg.Payload,
	})
	if err != nil {
		n.metrics.RecordNotification("failed")
		return err
	}

	n.metrics.RecordNotification("delivered")
	return nil
}
