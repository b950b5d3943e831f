package services

import (
	"context"
	"fmt"
	"time"

	"github.com/driftguard/driftguard/internal/domain/audit"
	"github.com/driftguard/driftguard/internal/domain/drift"
	"github.com/driftguard/driftguard/internal/pkg/errors"
	"github.com/driftguard/driftguard/internal/pkg/logger"
	"github.com/driftguard/driftguard/internal/pkg/metrics"
)

// DriftService exposes read and resolve operations over drift events
type DriftService struct {
	repo     drift.Repository
	recorder audit.Recorder
	logger   *logger.Logger
	locks    *KeyedMutex
}

// NewDriftService creates a new drift service. locks must be the same
// instance the scan service transitions under, so a resolve cannot race a
// concurrent scan refresh of the same resource.
func NewDriftService(repo drift.Repository, recorder audit.Recorder, log *logger.Logger, locks *KeyedMutex) *DriftService {
	return &DriftService{
		repo:     repo,
		recorder: recorder,
		logger:   log,
		locks:    locks,
	}
}

// GetByID retrieves a drift event by ID
func (s *DriftService) GetByID(ctx context.Context, id int64) (*drift.Event, error) {
	return s.repo.GetByID(ctx, id)
}

// GetChanges retrieves the change set of an event, security critical first
func (s *DriftService) GetChanges(ctx context.Context, eventID int64) ([]*drift.Change, error) {
	if _, err := s.repo.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.repo.ListChanges(ctx, eventID)
}

// List retrieves drift events with filters and pagination
func (s *DriftService) List(ctx context.Context, filter drift.Filter, limit, offset int) ([]*drift.Event, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.List(ctx, filter, limit, offset)
}

// Resolve marks an open drift event resolved. Resolving an event that
// already carries a resolution fails with AlreadyResolved regardless of the
// requested resolution type.
func (s *DriftService) Resolve(ctx context.Context, id int64, resolutionType, notes, actor string) (*drift.Event, error) {
	switch resolutionType {
	case drift.ResolutionAutoRevert, drift.ResolutionCodifyIaC, drift.ResolutionAccepted, drift.ResolutionEscalated:
	default:
		return nil, errors.ValidationError(fmt.Sprintf("unknown resolution type %q", resolutionType), nil)
	}

	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	key := resourceKey(event.EnvironmentID, event.ResourceID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	// Re-read under the lock; a concurrent resolve or scan may have won
	event, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.IsResolved() {
		return nil, errors.AlreadyResolved(fmt.Sprintf("drift event %d was already resolved as %s", id, event.ResolutionType))
	}

	before := *event
	now := time.Now()
	event.ResolvedAt = &now
	event.ResolutionType = resolutionType
	event.ResolutionNotes = notes

	if err := s.repo.Update(ctx, event); err != nil {
		return nil, err
	}

	metrics.RecordDriftTransition("resolved")
	if s.recorder != nil {
		err := s.recorder.Record(ctx, audit.Event{
			Actor:        actor,
			Action:       audit.ActionDriftResolved,
			ResourceType: "drift_event",
			ResourceID:   fmt.Sprintf("%d", id),
			Before:       &before,
			After:        event,
			OccurredAt:   now,
		})
		if err != nil {
			s.logger.WithError(err).Warn("Failed to record audit event")
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"event_id":   id,
		"resolution": resolutionType,
		"actor":      actor,
		"open_for":   event.Duration().String(),
	}).Info("Drift resolved")

	return event, nil
}

// Summary aggregates drift events for an environment; an empty scope yields
// all zeros
func (s *DriftService) Summary(ctx context.Context, environmentID int64) (*drift.Summary, error) {
	return s.repo.Summarize(ctx, environmentID)
}
