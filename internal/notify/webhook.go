// Package notify delivers rain alerts to a chat channel webhook and renders
// the alert text. Delivery is a thin POST; everything interesting lives in
// the message builder.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mskaar/rain-alert-bot/internal/observability"
)

// Notifier delivers a rendered message to a channel.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Message is a rendered alert ready for delivery.
type Message struct {
	Title  string
	Body   string
	Footer string
}

// WebhookNotifier posts messages to a channel webhook (Discord-compatible
// embed payload).
type WebhookNotifier struct {
	url      string
	username string
	client   *http.Client
	logger   *zap.Logger
}

// NewWebhookNotifier creates a notifier for the given webhook URL. username
// is the display name used for posts; empty keeps the webhook's default.
func NewWebhookNotifier(url, username string, timeout time.Duration, logger *zap.Logger) (*WebhookNotifier, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:      url,
		username: username,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

type webhookPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []webhookEmbed `json:"embeds"`
}

type webhookEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Footer      *webhookFooter `json:"footer,omitempty"`
}

type webhookFooter struct {
	Text string `json:"text"`
}

// embedColor is the light blue the alerts have always used.
const embedColor = 0x76CCFA

// Send posts the message. Non-2xx responses are errors; the scheduler
// reports them and carries on with the next cycle.
func (n *WebhookNotifier) Send(ctx context.Context, msg Message) error {
	embed := webhookEmbed{
		Title:       msg.Title,
		Description: msg.Body,
		Color:       embedColor,
	}
	if msg.Footer != "" {
		embed.Footer = &webhookFooter{Text: msg.Footer}
	}
	payload := webhookPayload{Username: n.username, Embeds: []webhookEmbed{embed}}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", n.url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		observability.NotificationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observability.NotificationsTotal.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	observability.NotificationsTotal.WithLabelValues("sent").Inc()
	n.logger.Info("notification sent", zap.String("title", msg.Title))
	return nil
}
