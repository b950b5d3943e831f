package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftguard/driftguard/internal/domain/analysis"
	"github.com/driftguard/driftguard/internal/domain/drift"
	"github.com/driftguard/driftguard/internal/domain/recommendation"
	"github.com/driftguard/driftguard/internal/pkg/errors"
	"github.com/driftguard/driftguard/internal/pkg/logger"
	"github.com/driftguard/driftguard/internal/recommender"
	"github.com/driftguard/driftguard/internal/testutil"
)

type recFixture struct {
	recs     *testutil.MockRecommendationRepository
	analyses *testutil.MockAnalysisRepository
	drifts   *testutil.MockDriftRepository
	svc      *RecommendationService
}

func newRecFixture(t *testing.T, ttl time.Duration) *recFixture {
	t.Helper()
	recs := testutil.NewMockRecommendationRepository()
	analyses := testutil.NewMockAnalysisRepository()
	drifts := testutil.NewMockDriftRepository()

	svc := NewRecommendationService(
		recs, analyses, drifts,
		recommender.NewEngine(ttl),
		nil,
		logger.New(logger.Config{Level: "error"}),
	)
	return &recFixture{recs: recs, analyses: analyses, drifts: drifts, svc: svc}
}

func (f *recFixture) seedAnalyzedEvent(t *testing.T, category string, confidence float64) *drift.Event {
	t.Helper()
	event := &drift.Event{
		EnvironmentID: 1,
		ResourceID:    "aws_instance.web",
		DriftType:     drift.TypeModified,
		SeverityScore: 0.6,
		DetectedAt:    time.Now().Add(-time.Hour),
	}
	id, err := f.drifts.Create(context.Background(), event, nil)
	require.NoError(t, err)
	event.ID = id

	_, err = f.analyses.Create(context.Background(), &analysis.CauseAnalysis{
		EventID:         id,
		CauseCategory:   category,
		ConfidenceScore: confidence,
		AnalyzedBy:      analysis.AnalyzedByRuleEngine,
		AnalyzedAt:      time.Now(),
	})
	require.NoError(t, err)
	return event
}

func TestGenerateRecommendationFromAnalysis(t *testing.T) {
	f := newRecFixture(t, 0)
	event := f.seedAnalyzedEvent(t, analysis.CauseSecurityResponse, 0.95)

	rec, err := f.svc.Generate(context.Background(), event.ID)
	require.NoError(t, err)

	assert.Equal(t, recommendation.TypeAcceptException, rec.Type)
	assert.Equal(t, recommendation.PriorityCritical, rec.Priority)
	assert.NotEmpty(t, rec.Steps)
	assert.NotZero(t, rec.ID)
	assert.True(t, rec.Active())
}

func TestGenerateWithoutAnalysisFailsInvalidState(t *testing.T) {
	f := newRecFixture(t, 0)

	event := &drift.Event{EnvironmentID: 1, ResourceID: "aws_instance.web", DriftType: drift.TypeModified, DetectedAt: time.Now()}
	id, err := f.drifts.Create(context.Background(), event, nil)
	require.NoError(t, err)

	_, err = f.svc.Generate(context.Background(), id)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidState))
}

func TestGenerateMissingEvent(t *testing.T) {
	f := newRecFixture(t, 0)

	_, err := f.svc.Generate(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}

func TestImplementRecommendation(t *testing.T) {
	f := newRecFixture(t, 0)
	event := f.seedAnalyzedEvent(t, analysis.CauseConfigurationError, 0.8)

	rec, err := f.svc.Generate(context.Background(), event.ID)
	require.NoError(t, err)

	implemented, err := f.svc.Implement(context.Background(), rec.ID, "alice", map[string]interface{}{"pr": "infra/42"})
	require.NoError(t, err)
	assert.True(t, implemented.IsImplemented)
	require.NotNil(t, implemented.ImplementedAt)
	assert.Equal(t, "infra/42", implemented.Result["pr"])

	_, err = f.svc.Implement(context.Background(), rec.ID, "bob", nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAlreadyImplemented))
}

func TestImplementExpiredRecommendationFails(t *testing.T) {
	f := newRecFixture(t, time.Millisecond)
	event := f.seedAnalyzedEvent(t, analysis.CauseEmergencyFix, 0.85)

	rec, err := f.svc.Generate(context.Background(), event.ID)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	expired, err := f.svc.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	_, err = f.svc.Implement(context.Background(), rec.ID, "alice", nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidState))
}

func TestCancelRecommendation(t *testing.T) {
	f := newRecFixture(t, 0)
	event := f.seedAnalyzedEvent(t, analysis.CauseManualTroubleshooting, 0.75)

	rec, err := f.svc.Generate(context.Background(), event.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Cancel(context.Background(), rec.ID, "alice"))

	got, err := f.svc.GetByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.False(t, got.Active())

	err = f.svc.Cancel(context.Background(), rec.ID, "alice")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidState))
}

func TestAddFeedbackValidation(t *testing.T) {
	f := newRecFixture(t, 0)
	event := f.seedAnalyzedEvent(t, analysis.CauseConfigurationError, 0.8)

	rec, err := f.svc.Generate(context.Background(), event.ID)
	require.NoError(t, err)

	_, err = f.svc.AddFeedback(context.Background(), &recommendation.Feedback{
		RecommendationID: rec.ID,
		FeedbackType:     "shrug",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))

	_, err = f.svc.AddFeedback(context.Background(), &recommendation.Feedback{
		RecommendationID: rec.ID,
		FeedbackType:     recommendation.FeedbackHelpful,
		Rating:           6,
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))

	id, err := f.svc.AddFeedback(context.Background(), &recommendation.Feedback{
		RecommendationID: rec.ID,
		FeedbackType:     recommendation.FeedbackHelpful,
		Rating:           5,
		Comments:         "caught it before the audit",
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	feedback, err := f.svc.ListFeedback(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Len(t, feedback, 1)
	assert.Equal(t, 5, feedback[0].Rating)
}

func TestAddFeedbackMissingRecommendation(t *testing.T) {
	f := newRecFixture(t, 0)

	_, err := f.svc.AddFeedback(context.Background(), &recommendation.Feedback{
		RecommendationID: 404,
		FeedbackType:     recommendation.FeedbackHelpful,
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}
