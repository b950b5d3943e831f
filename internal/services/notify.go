package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/driftguard/driftguard/internal/domain/notification"
	"github.com/driftguard/driftguard/internal/pkg/logger"
)

// WebhookNotifier posts severity threshold notifications as JSON to a
// configured endpoint
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier for the given URL
func NewWebhookNotifier(url string) notification.Notifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify delivers the notification; non-2xx responses are errors
func (n *WebhookNotifier) Notify(ctx context.Context, notif notification.Notification) error {
	body, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}

	return nil
}

// LogNotifier writes notifications to the structured log; used when no
// webhook is configured
type LogNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(log *logger.Logger) notification.Notifier {
	return &LogNotifier{logger: log}
}

// Notify logs the notification
func (n *LogNotifier) Notify(_ context.Context, notif notification.Notification) error {
	n.logger.WithFields(map[string]interface{}{
		"environment_id": notif.EnvironmentID,
		"resource_id":    notif.ResourceID,
		"event_id":       notif.EventID,
		"severity":       notif.SeverityScore,
	}).Warn(notif.Message)
	return nil
}
