package services

import (
	"context"
	"fmt"
	"time"

	"github.com/driftguard/driftguard/internal/classifier"
	"github.com/driftguard/driftguard/internal/domain/analysis"
	"github.com/driftguard/driftguard/internal/domain/audit"
	"github.com/driftguard/driftguard/internal/domain/drift"
	"github.com/driftguard/driftguard/internal/pkg/errors"
	"github.com/driftguard/driftguard/internal/pkg/logger"
	"github.com/driftguard/driftguard/internal/pkg/metrics"
)

// Explainer turns a finished classification into a narrative explanation.
// Implementations may call an external model; failures degrade to the rule
// engine's own explanation.
type Explainer interface {
	Explain(ctx context.Context, event *drift.Event, changes []*drift.Change, a *analysis.CauseAnalysis) (string, error)
}

// AnalyzeInput carries the caller-supplied context for one analysis
type AnalyzeInput struct {
	// Actor attributed to the change, when attribution data exists
	Actor string
	// Whether a deployment event was recorded near the change time
	DeploymentEvent bool
}

// AnalysisService classifies the probable cause of drift events
type AnalysisService struct {
	analyses   analysis.Repository
	drifts     drift.Repository
	classifier classifier.Classifier
	explainer  Explainer
	recorder   audit.Recorder
	logger     *logger.Logger

	maintenanceWindowStart int
	maintenanceWindowEnd   int
	automationActors       []string
}

// NewAnalysisService creates a new analysis service. explainer may be nil.
func NewAnalysisService(
	analyses analysis.Repository,
	drifts drift.Repository,
	cls classifier.Classifier,
	explainer Explainer,
	recorder audit.Recorder,
	log *logger.Logger,
	maintenanceWindowStart, maintenanceWindowEnd int,
	automationActors []string,
) *AnalysisService {
	return &AnalysisService{
		analyses:               analyses,
		drifts:                 drifts,
		classifier:             cls,
		explainer:              explainer,
		recorder:               recorder,
		logger:                 log,
		maintenanceWindowStart: maintenanceWindowStart,
		maintenanceWindowEnd:   maintenanceWindowEnd,
		automationActors:       automationActors,
	}
}

// Analyze classifies the cause of a drift event. An event with a current
// analysis fails with AlreadyAnalyzed; use Reanalyze to supersede it.
func (s *AnalysisService) Analyze(ctx context.Context, eventID int64, input AnalyzeInput) (*analysis.CauseAnalysis, error) {
	if _, err := s.analyses.GetByEvent(ctx, eventID); err == nil {
		return nil, errors.AlreadyAnalyzed(fmt.Sprintf("drift event %d already has a cause analysis", eventID))
	} else if !errors.IsCode(err, errors.ErrCodeNotFound) {
		return nil, err
	}

	return s.classify(ctx, eventID, input)
}

// Reanalyze supersedes the event's current analysis and classifies again.
// Superseded analyses stay queryable through History.
func (s *AnalysisService) Reanalyze(ctx context.Context, eventID int64, input AnalyzeInput) (*analysis.CauseAnalysis, error) {
	if _, err := s.drifts.GetByID(ctx, eventID); err != nil {
		return nil, err
	}

	if err := s.analyses.Supersede(ctx, eventID); err != nil {
		return nil, err
	}

	return s.classify(ctx, eventID, input)
}

// GetByEvent retrieves the current analysis of an event
func (s *AnalysisService) GetByEvent(ctx context.Context, eventID int64) (*analysis.CauseAnalysis, error) {
	return s.analyses.GetByEvent(ctx, eventID)
}

// History retrieves all analyses of an event, newest first, including
// superseded ones
func (s *AnalysisService) History(ctx context.Context, eventID int64) ([]*analysis.CauseAnalysis, error) {
	return s.analyses.ListByEvent(ctx, eventID)
}

func (s *AnalysisService) classify(ctx context.Context, eventID int64, input AnalyzeInput) (*analysis.CauseAnalysis, error) {
	event, err := s.drifts.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	changes, err := s.drifts.ListChanges(ctx, eventID)
	if err != nil {
		return nil, err
	}

	signals := analysis.ContextSignals{
		ChangedAt:              event.DetectedAt,
		Actor:                  input.Actor,
		DeploymentEvent:        input.DeploymentEvent,
		PriorSimilarDrift:      s.hasPriorDrift(ctx, event),
		MaintenanceWindowStart: s.maintenanceWindowStart,
		MaintenanceWindowEnd:   s.maintenanceWindowEnd,
		AutomationActors:       s.automationActors,
	}

	result := s.classifier.Classify(event, changes, signals)
	result.AnalyzedAt = time.Now()

	if s.explainer != nil {
		if explanation, err := s.explainer.Explain(ctx, event, changes, result); err != nil {
			s.logger.WithError(err).Warn("Explainer failed, keeping rule engine explanation")
		} else if explanation != "" {
			result.Explanation = explanation
		}
	}

	id, err := s.analyses.Create(ctx, result)
	if err != nil {
		return nil, err
	}
	result.ID = id

	metrics.RecordCauseAnalysis(result.CauseCategory)
	if s.recorder != nil {
		err := s.recorder.Record(ctx, audit.Event{
			Actor:        result.AnalyzedBy,
			Action:       audit.ActionDriftAnalyzed,
			ResourceType: "drift_event",
			ResourceID:   fmt.Sprintf("%d", eventID),
			After:        result,
			OccurredAt:   result.AnalyzedAt,
		})
		if err != nil {
			s.logger.WithError(err).Warn("Failed to record audit event")
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"event_id":   eventID,
		"category":   result.CauseCategory,
		"confidence": result.ConfidenceScore,
		"factors":    len(result.Factors),
	}).Info("Drift cause analyzed")

	return result, nil
}

// hasPriorDrift reports whether this resource drifted before the current
// event; lookup failures degrade to false rather than failing the analysis
func (s *AnalysisService) hasPriorDrift(ctx context.Context, event *drift.Event) bool {
	_, total, err := s.drifts.List(ctx, drift.Filter{
		EnvironmentID: event.EnvironmentID,
		ResourceID:    event.ResourceID,
	}, 1, 0)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to look up drift history")
		return false
	}
	return total > 1
}
