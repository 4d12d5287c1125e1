package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/good-yellow-bee/alertflow/internal/models"
)

// WebhookSender posts notifications as JSON to the channel's host URL.
type WebhookSender struct {
	client *http.Client
}

// webhookPayload is the request body posted to the webhook URL.
type webhookPayload struct {
	Sender   string `json:"sender,omitempty"`
	Receiver string `json:"receiver"`
	Message  string `json:"message"`
}

// NewWebhookSender creates a webhook channel sender. A zero timeout means
// 10 seconds.
func NewWebhookSender(timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSender{
		client: &http.Client{Timeout: timeout},
	}
}

// Type returns "webhook".
func (w *WebhookSender) Type() string {
	return "webhook"
}

// Send posts the message to the channel URL. Any non-2xx response is an
// error.
func (w *WebhookSender) Send(ctx context.Context, channel *models.Channel, receiver, message string) error {
	payload, err := json.Marshal(webhookPayload{
		Sender:   channel.Sender,
		Receiver: receiver,
		Message:  message,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, channel.Host, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Close closes idle connections.
func (w *WebhookSender) Close() error {
	w.client.CloseIdleConnections()
	return nil
}
