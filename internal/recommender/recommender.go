package recommender

import (
	"fmt"
	"time"

	"github.com/driftguard/driftguard/internal/domain/analysis"
	"github.com/driftguard/driftguard/internal/domain/drift"
	"github.com/driftguard/driftguard/internal/domain/recommendation"
)

// template binds a cause category to its remediation suggestion. Every
// category maps deterministically; unmapped categories fall back to a
// manual review.
type template struct {
	Type            string
	Priority        string
	ConfidenceScore float64
	Title           string
	Rationale       string
	Steps           []string
	EstimatedEffort string
}

var templates = map[string]template{
	analysis.CauseEmergencyFix: {
		Type:            recommendation.TypeCodifyIaC,
		Priority:        recommendation.PriorityHigh,
		ConfidenceScore: 0.85,
		Title:           "Codify emergency change into IaC",
		Rationale:       "The change looks like an emergency fix made directly in the cloud; folding it into the declared configuration keeps the fix and closes the drift.",
		Steps: []string{
			"Review the changed properties against the incident timeline",
			"Update the IaC definition to match the applied fix",
			"Open a change request and apply through the normal pipeline",
		},
		EstimatedEffort: recommendation.EffortHours,
	},
	analysis.CauseManualTroubleshooting: {
		Type:            recommendation.TypeCodifyIaC,
		Priority:        recommendation.PriorityMedium,
		ConfidenceScore: 0.75,
		Title:           "Codify troubleshooting changes or revert",
		Rationale:       "Scattered manual edits suggest debugging activity; either codify the ones worth keeping or revert the rest.",
		Steps: []string{
			"Identify which of the changed properties should persist",
			"Codify the keepers in IaC and revert the remainder",
		},
		EstimatedEffort: recommendation.EffortHours,
	},
	analysis.CauseSecurityResponse: {
		Type:            recommendation.TypeAcceptException,
		Priority:        recommendation.PriorityCritical,
		ConfidenceScore: 0.95,
		Title:           "Record security exception and update IaC",
		Rationale:       "Security hardening applied in response to a threat must not be reverted; record an exception and bring the declared state up to date.",
		Steps: []string{
			"Confirm the change with the security team",
			"Record a drift exception with the security justification",
			"Update the IaC definition to the hardened configuration",
		},
		EstimatedEffort: recommendation.EffortHours,
	},
	analysis.CauseConfigurationError: {
		Type:            recommendation.TypeAutoRevert,
		Priority:        recommendation.PriorityHigh,
		ConfidenceScore: 0.80,
		Title:           "Revert to declared configuration",
		Rationale:       "The divergence looks like an accidental edit with no supporting context; reverting to the declared state is the safe default.",
		Steps: []string{
			"Verify no workload depends on the changed value",
			"Re-apply the declared configuration",
			"Confirm the next scan reports no drift",
		},
		EstimatedEffort: recommendation.EffortMinutes,
	},
}

// fallback covers automated_response, unknown and any future category
var fallback = template{
	Type:            recommendation.TypeManualReview,
	Priority:        recommendation.PriorityMedium,
	ConfidenceScore: 0.60,
	Title:           "Review drift manually",
	Rationale:       "The cause could not be attributed with enough confidence for an automated suggestion; a human should decide.",
	Steps: []string{
		"Inspect the changed properties and recent activity on the resource",
		"Decide whether to revert, codify or accept the change",
	},
	EstimatedEffort: recommendation.EffortHours,
}

// Engine turns a cause analysis into a remediation recommendation. ttl
// bounds how long a generated recommendation stays actionable; zero means
// no expiry.
type Engine struct {
	ttl time.Duration
}

// NewEngine creates a recommendation engine with the given time to live
func NewEngine(ttl time.Duration) *Engine {
	return &Engine{ttl: ttl}
}

// Generate builds the recommendation for an analyzed drift event. The same
// analysis always yields the same recommendation; there is no failure mode.
func (e *Engine) Generate(event *drift.Event, causeAnalysis *analysis.CauseAnalysis, now time.Time) *recommendation.Recommendation {
	tpl, ok := templates[causeAnalysis.CauseCategory]
	if !ok {
		tpl = fallback
	}

	rec := &recommendation.Recommendation{
		EventID:         event.ID,
		Type:            tpl.Type,
		Priority:        tpl.Priority,
		ConfidenceScore: tpl.ConfidenceScore,
		Title:           tpl.Title,
		Rationale:       fmt.Sprintf("%s (cause: %s, analysis confidence %.2f)", tpl.Rationale, causeAnalysis.CauseCategory, causeAnalysis.ConfidenceScore),
		Steps:           append([]string(nil), tpl.Steps...),
		EstimatedEffort: tpl.EstimatedEffort,
		RecommendedBy:   recommendation.RecommendedByRuleEngine,
		CreatedAt:       now,
	}

	if e.ttl > 0 {
		expires := now.Add(e.ttl)
		rec.ExpiresAt = &expires
	}

	return rec
}
