package audit

import (
	"context"
	"time"
)

// Event is the record the core emits for every create/resolve/analyze/
// implement action. Storage and retention belong to the consuming
// collaborator, not to this core.
type Event struct {
	ID           string      `json:"id"`
	Actor        string      `json:"actor"`
	Action       string      `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id"`
	Before       interface{} `json:"before,omitempty"`
	After        interface{} `json:"after,omitempty"`
	OccurredAt   time.Time   `json:"occurred_at"`
}

// Actions
const (
	ActionDriftOpened             = "drift.opened"
	ActionDriftRefreshed          = "drift.refreshed"
	ActionDriftResolved           = "drift.resolved"
	ActionDriftAnalyzed           = "drift.analyzed"
	ActionRecommendationCreated   = "recommendation.created"
	ActionRecommendationImplement = "recommendation.implemented"
	ActionRecommendationCancelled = "recommendation.cancelled"
)

// Recorder receives audit events. Implementations must not block scans;
// recording failures are logged and swallowed by callers.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}
