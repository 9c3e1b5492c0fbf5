package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Chat tracks the chat protocol's outbound webhook traffic
type Chat struct {
	WebhookAttempts *prometheus.CounterVec
	WebhookRetries  *prometheus.CounterVec
	WebhookFailures *prometheus.CounterVec
	Messages        *prometheus.CounterVec
}

// NewChat registers chat metrics on the default registry
func NewChat() *Chat {
	return &Chat{
		WebhookAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agenthub_webhook_attempts_total",
			Help: "Webhook POST attempts, including retries.",
		}, []string{"agent"}),
		WebhookRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agenthub_webhook_retries_total",
			Help: "Webhook attempts beyond the first for one message.",
		}, []string{"agent"}),
		WebhookFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agenthub_webhook_failures_total",
			Help: "Messages whose delivery failed after all retries.",
		}, []string{"agent"}),
		Messages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agenthub_chat_messages_total",
			Help: "Chat messages appended to conversations.",
		}, []string{"sender"}),
	}
}
