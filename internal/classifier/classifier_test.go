package classifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftguard/driftguard/internal/domain/analysis"
	"github.com/driftguard/driftguard/internal/domain/drift"
)

func testEvent() *drift.Event {
	return &drift.Event{ID: 42, EnvironmentID: 1, ResourceID: "i-0abc"}
}

func changesOf(n, secCritical int) []*drift.Change {
	out := make([]*drift.Change, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &drift.Change{
			EventID:            42,
			PropertyPath:       "prop",
			ChangeType:         drift.ChangeModified,
			IsSecurityCritical: i < secCritical,
		})
	}
	return out
}

func TestClassifySecurityCriticalWinsOverVolume(t *testing.T) {
	c := NewRuleClassifier()

	// Five changes, two security critical, no other strong signal
	result := c.Classify(testEvent(), changesOf(5, 2), analysis.ContextSignals{
		DeploymentEvent:   true,
		PriorSimilarDrift: true,
	})

	assert.Equal(t, analysis.CauseSecurityResponse, result.CauseCategory)
	assert.Greater(t, result.ConfidenceScore, 0.0)
	assert.Equal(t, int64(42), result.EventID)
	assert.Equal(t, analysis.AnalyzedByRuleEngine, result.AnalyzedBy)
}

func TestClassifyNoSignalsIsUnknown(t *testing.T) {
	c := NewRuleClassifier()

	result := c.Classify(testEvent(), nil, analysis.ContextSignals{})

	assert.Equal(t, analysis.CauseUnknown, result.CauseCategory)
	assert.Zero(t, result.ConfidenceScore)
	assert.Empty(t, result.Factors)
	assert.NotEmpty(t, result.Explanation)
}

func TestClassifyAutomationActor(t *testing.T) {
	c := NewRuleClassifier()

	result := c.Classify(testEvent(), changesOf(1, 0), analysis.ContextSignals{
		Actor:             "svc-autoscaler",
		AutomationActors:  []string{"svc-autoscaler", "svc-remediator"},
		DeploymentEvent:   true,
		PriorSimilarDrift: true,
	})

	assert.Equal(t, analysis.CauseAutomatedResponse, result.CauseCategory)
}

func TestClassifySingleChangeConfigurationError(t *testing.T) {
	c := NewRuleClassifier()

	result := c.Classify(testEvent(), changesOf(1, 0), analysis.ContextSignals{
		DeploymentEvent: true,
	})

	assert.Equal(t, analysis.CauseConfigurationError, result.CauseCategory)
}

func TestClassifyManualTroubleshooting(t *testing.T) {
	c := NewRuleClassifier()

	// Three non-critical edits with no deployment, during the window so the
	// emergency signal stays quiet
	changedAt := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	result := c.Classify(testEvent(), changesOf(3, 0), analysis.ContextSignals{
		ChangedAt:              changedAt,
		MaintenanceWindowStart: 22,
		MaintenanceWindowEnd:   6,
		PriorSimilarDrift:      true,
	})

	assert.Equal(t, analysis.CauseManualTroubleshooting, result.CauseCategory)
}

func TestClassifyEmergencyFixOutsideWindow(t *testing.T) {
	c := NewRuleClassifier()

	// Midday burst of changes outside the 22:00-06:00 window
	changedAt := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	result := c.Classify(testEvent(), changesOf(6, 0), analysis.ContextSignals{
		ChangedAt:              changedAt,
		MaintenanceWindowStart: 22,
		MaintenanceWindowEnd:   6,
		DeploymentEvent:        true,
		PriorSimilarDrift:      true,
	})

	assert.Equal(t, analysis.CauseEmergencyFix, result.CauseCategory)
}

func TestClassifyFactorsSortedByWeight(t *testing.T) {
	c := NewRuleClassifier()

	result := c.Classify(testEvent(), changesOf(6, 1), analysis.ContextSignals{
		ChangedAt:              time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
		MaintenanceWindowStart: 22,
		MaintenanceWindowEnd:   6,
	})

	require.NotEmpty(t, result.Factors)
	for i := 1; i < len(result.Factors); i++ {
		assert.GreaterOrEqual(t, result.Factors[i-1].Weight, result.Factors[i].Weight)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := NewRuleClassifier()
	signals := analysis.ContextSignals{
		ChangedAt:              time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
		MaintenanceWindowStart: 22,
		MaintenanceWindowEnd:   6,
	}
	changes := changesOf(4, 2)

	first := c.Classify(testEvent(), changes, signals)
	for i := 0; i < 10; i++ {
		next := c.Classify(testEvent(), changes, signals)
		assert.Equal(t, first.CauseCategory, next.CauseCategory)
		assert.Equal(t, first.ConfidenceScore, next.ConfidenceScore)
		assert.Equal(t, first.Factors, next.Factors)
	}
}

func TestMaintenanceWindowMidnightCrossing(t *testing.T) {
	s := analysis.ContextSignals{
		MaintenanceWindowStart: 22,
		MaintenanceWindowEnd:   6,
	}

	s.ChangedAt = time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	assert.True(t, s.InMaintenanceWindow())

	s.ChangedAt = time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	assert.True(t, s.InMaintenanceWindow())

	s.ChangedAt = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.False(t, s.InMaintenanceWindow())
}
