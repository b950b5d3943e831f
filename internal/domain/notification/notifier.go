package notification

import (
	"context"
	"time"
)

// Notification is the signal emitted when a drift event's severity score
// crosses the configured critical threshold.
type Notification struct {
	EnvironmentID int64     `json:"environment_id"`
	ResourceID    string    `json:"resource_id"`
	EventID       int64     `json:"event_id"`
	SeverityScore float64   `json:"severity_score"`
	Message       string    `json:"message"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Notifier delivers severity threshold notifications to a collaborator
// (webhook, chat channel). Delivery failures must not fail the scan.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
