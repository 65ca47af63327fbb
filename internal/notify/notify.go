// Package notify delivers alertable audit events to an external
// webhook. Delivery is strictly fire-and-forget: a failed or slow
// notification never surfaces to the operation that triggered it.
package notify

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/hintze-labs/toolshed/internal/model"
)

const deliveryTimeout = 5 * time.Second

// Notifier posts audit entries to a webhook URL. A nil *Notifier is a
// valid no-op sink.
type Notifier struct {
	client *resty.Client
	url    string
	log    *zap.Logger
}

// New builds a Notifier. An empty url returns nil, which disables
// notifications entirely.
func New(url string, log *zap.Logger) *Notifier {
	if url == "" {
		return nil
	}
	client := resty.New().
		SetTimeout(deliveryTimeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &Notifier{client: client, url: url, log: log}
}

type webhookPayload struct {
	EventType string `json:"event_type"`
	Actor     string `json:"actor"`
	Details   string `json:"details"`
	Timestamp string `json:"timestamp"`
}

// Alert posts one entry. Errors are logged and swallowed; the caller's
// mutation has already committed and must not be disturbed.
func (n *Notifier) Alert(ctx context.Context, entry model.AuditLogEntry) {
	if n == nil {
		return
	}
	payload := webhookPayload{
		EventType: entry.EventType,
		Actor:     entry.Actor,
		Details:   entry.Details,
		Timestamp: entry.Timestamp.UTC().Format(time.RFC3339),
	}
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(n.url)
	if err != nil {
		n.log.Warn("alert delivery failed",
			zap.String("event", entry.EventType), zap.Error(err))
		return
	}
	if resp.IsError() {
		n.log.Warn("alert rejected by webhook",
			zap.String("event", entry.EventType),
			zap.Int("status", resp.StatusCode()))
	}
}
