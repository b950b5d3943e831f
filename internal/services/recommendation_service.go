package services

import (
	"context"
	"fmt"
	"time"

	"github.com/driftguard/driftguard/internal/domain/analysis"
	"github.com/driftguard/driftguard/internal/domain/audit"
	"github.com/driftguard/driftguard/internal/domain/drift"
	"github.com/driftguard/driftguard/internal/domain/recommendation"
	"github.com/driftguard/driftguard/internal/pkg/errors"
	"github.com/driftguard/driftguard/internal/pkg/logger"
	"github.com/driftguard/driftguard/internal/pkg/metrics"
	"github.com/driftguard/driftguard/internal/recommender"
)

// RecommendationService generates and manages remediation recommendations
type RecommendationService struct {
	recs     recommendation.Repository
	analyses analysis.Repository
	drifts   drift.Repository
	engine   *recommender.Engine
	recorder audit.Recorder
	logger   *logger.Logger
}

// NewRecommendationService creates a new recommendation service
func NewRecommendationService(
	recs recommendation.Repository,
	analyses analysis.Repository,
	drifts drift.Repository,
	engine *recommender.Engine,
	recorder audit.Recorder,
	log *logger.Logger,
) *RecommendationService {
	return &RecommendationService{
		recs:     recs,
		analyses: analyses,
		drifts:   drifts,
		engine:   engine,
		recorder: recorder,
		logger:   log,
	}
}

// Generate creates a recommendation for an analyzed drift event. The event
// must carry a current cause analysis.
func (s *RecommendationService) Generate(ctx context.Context, eventID int64) (*recommendation.Recommendation, error) {
	event, err := s.drifts.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	causeAnalysis, err := s.analyses.GetByEvent(ctx, eventID)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeNotFound) {
			return nil, errors.InvalidState(fmt.Sprintf("drift event %d has no cause analysis to recommend from", eventID))
		}
		return nil, err
	}

	rec := s.engine.Generate(event, causeAnalysis, time.Now())

	id, err := s.recs.Create(ctx, rec)
	if err != nil {
		return nil, err
	}
	rec.ID = id

	metrics.RecordRecommendation(rec.Type, rec.Priority)
	s.record(ctx, rec.RecommendedBy, audit.ActionRecommendationCreated, rec)

	s.logger.WithFields(map[string]interface{}{
		"event_id":          eventID,
		"recommendation_id": id,
		"type":              rec.Type,
		"priority":          rec.Priority,
		"urgency":           rec.UrgencyScore(),
	}).Info("Recommendation generated")

	return rec, nil
}

// GetByID retrieves a recommendation by ID
func (s *RecommendationService) GetByID(ctx context.Context, id int64) (*recommendation.Recommendation, error) {
	return s.recs.GetByID(ctx, id)
}

// List retrieves recommendations ordered by confidence
func (s *RecommendationService) List(ctx context.Context, filter recommendation.Filter, limit, offset int) ([]*recommendation.Recommendation, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.recs.List(ctx, filter, limit, offset)
}

// Implement marks a recommendation implemented with an optional result
// payload. Implementing twice fails with AlreadyImplemented; implementing an
// expired recommendation fails with InvalidState.
func (s *RecommendationService) Implement(ctx context.Context, id int64, actor string, result map[string]interface{}) (*recommendation.Recommendation, error) {
	rec, err := s.recs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if rec.IsImplemented {
		return nil, errors.AlreadyImplemented(fmt.Sprintf("recommendation %d was already implemented", id))
	}
	if rec.IsExpired {
		return nil, errors.InvalidState(fmt.Sprintf("recommendation %d has expired and can no longer be implemented", id))
	}

	now := time.Now()
	rec.IsImplemented = true
	rec.ImplementedAt = &now
	rec.Result = result

	if err := s.recs.Update(ctx, rec); err != nil {
		return nil, err
	}

	s.record(ctx, actor, audit.ActionRecommendationImplement, rec)

	s.logger.WithFields(map[string]interface{}{
		"recommendation_id": id,
		"actor":             actor,
	}).Info("Recommendation implemented")

	return rec, nil
}

// Cancel expires an active recommendation manually
func (s *RecommendationService) Cancel(ctx context.Context, id int64, actor string) error {
	rec, err := s.recs.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !rec.Active() {
		return errors.InvalidState(fmt.Sprintf("recommendation %d is not active", id))
	}

	rec.IsExpired = true
	if err := s.recs.Update(ctx, rec); err != nil {
		return err
	}

	s.record(ctx, actor, audit.ActionRecommendationCancelled, rec)
	return nil
}

// ExpireDue expires recommendations whose time to live has passed and
// returns how many were affected
func (s *RecommendationService) ExpireDue(ctx context.Context) (int64, error) {
	count, err := s.recs.ExpireDue(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	if count > 0 {
		s.logger.WithFields(map[string]interface{}{
			"expired": count,
		}).Info("Expired stale recommendations")
	}

	return count, nil
}

// AddFeedback appends a feedback record to a recommendation
func (s *RecommendationService) AddFeedback(ctx context.Context, fb *recommendation.Feedback) (int64, error) {
	switch fb.FeedbackType {
	case recommendation.FeedbackHelpful, recommendation.FeedbackNotHelpful,
		recommendation.FeedbackImplementedOK, recommendation.FeedbackImplementedWithIssues,
		recommendation.FeedbackWrong, recommendation.FeedbackTooComplex:
	default:
		return 0, errors.ValidationError(fmt.Sprintf("unknown feedback type %q", fb.FeedbackType), nil)
	}
	if fb.Rating != 0 && (fb.Rating < 1 || fb.Rating > 5) {
		return 0, errors.ValidationError("rating must be between 1 and 5", nil)
	}

	if _, err := s.recs.GetByID(ctx, fb.RecommendationID); err != nil {
		return 0, err
	}

	return s.recs.AddFeedback(ctx, fb)
}

// ListFeedback retrieves feedback for a recommendation, newest first
func (s *RecommendationService) ListFeedback(ctx context.Context, recommendationID int64) ([]*recommendation.Feedback, error) {
	return s.recs.ListFeedback(ctx, recommendationID)
}

func (s *RecommendationService) record(ctx context.Context, actor, action string, rec *recommendation.Recommendation) {
	if s.recorder == nil {
		return
	}

	err := s.recorder.Record(ctx, audit.Event{
		Actor:        actor,
		Action:       action,
		ResourceType: "recommendation",
		ResourceID:   fmt.Sprintf("%d", rec.ID),
		After:        rec,
		OccurredAt:   time.Now(),
	})
	if err != nil {
		s.logger.WithError(err).Warn("Failed to record audit event")
	}
}
