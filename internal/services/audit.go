package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/driftguard/driftguard/internal/domain/audit"
	"github.com/driftguard/driftguard/internal/pkg/logger"
)

// LogRecorder emits audit events as structured log lines for an external
// audit pipeline to pick up. It satisfies the audit contract without owning
// storage or retention.
type LogRecorder struct {
	logger *logger.Logger
}

// NewLogRecorder creates an audit recorder backed by the structured log
func NewLogRecorder(log *logger.Logger) audit.Recorder {
	return &LogRecorder{logger: log}
}

// Record assigns the event an ID and writes it to the audit log stream
func (r *LogRecorder) Record(_ context.Context, event audit.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	r.logger.WithFields(map[string]interface{}{
		"audit_id":      event.ID,
		"actor":         event.Actor,
		"action":        event.Action,
		"resource_type": event.ResourceType,
		"resource_id":   event.ResourceID,
		"occurred_at":   event.OccurredAt.Format(time.RFC3339),
	}).Info("Audit event")

	return nil
}
