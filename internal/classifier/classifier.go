package classifier

import (
	"fmt"
	"sort"

	"github.com/driftguard/driftguard/internal/domain/analysis"
	"github.com/driftguard/driftguard/internal/domain/drift"
)

// Classifier assigns a probable cause category to a drift event from
// contextual signals. Implementations must be deterministic for the same
// inputs; a learned model can be swapped in behind this interface.
type Classifier interface {
	Classify(event *drift.Event, changes []*drift.Change, signals analysis.ContextSignals) *analysis.CauseAnalysis
}

// Signal weights. Security critical changes dominate all other signals.
const (
	weightOutsideWindow    = 0.50
	weightHighChangeCount  = 0.40
	weightSmallChanges     = 0.45
	weightNoDeployment     = 0.35
	weightSecurityBase     = 0.55
	weightSecurityPerExtra = 0.25
	weightSingleProperty   = 0.50
	weightNoPriorDrift     = 0.30
	weightAutomationActor  = 0.80

	highChangeCountThreshold = 5
)

// tieBreakOrder fixes which category wins on equal scores
var tieBreakOrder = map[string]int{
	analysis.CauseSecurityResponse:      0,
	analysis.CauseEmergencyFix:          1,
	analysis.CauseConfigurationError:    2,
	analysis.CauseManualTroubleshooting: 3,
	analysis.CauseAutomatedResponse:     4,
	analysis.CauseUnknown:               5,
}

// RuleClassifier is the default rule-weighted classifier. Each cause
// category scores a weighted sum of the contextual signals that fired; the
// highest score wins and the normalized top-two margin becomes the
// confidence.
type RuleClassifier struct{}

// NewRuleClassifier creates the default classifier
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

type firedSignal struct {
	category string
	factor   analysis.Factor
}

// Classify scores every cause category and picks the winner. When no signal
// fires at all the result is unknown with confidence 0; there is no error
// path.
func (c *RuleClassifier) Classify(event *drift.Event, changes []*drift.Change, signals analysis.ContextSignals) *analysis.CauseAnalysis {
	changeCount := len(changes)
	secCount := 0
	for _, ch := range changes {
		if ch.IsSecurityCritical {
			secCount++
		}
	}

	var fired []firedSignal

	// emergency_fix: change made outside the maintenance window, or a burst
	// of many changes at once
	if !signals.ChangedAt.IsZero() && !signals.InMaintenanceWindow() {
		fired = append(fired, firedSignal{analysis.CauseEmergencyFix, analysis.Factor{
			Name:     "outside_maintenance_window",
			Weight:   weightOutsideWindow,
			Evidence: fmt.Sprintf("change at %s falls outside the %02d:00-%02d:00 maintenance window", signals.ChangedAt.Format("15:04"), signals.MaintenanceWindowStart, signals.MaintenanceWindowEnd),
		}})
	}
	if changeCount >= highChangeCountThreshold {
		fired = append(fired, firedSignal{analysis.CauseEmergencyFix, analysis.Factor{
			Name:     "high_change_count",
			Weight:   weightHighChangeCount,
			Evidence: fmt.Sprintf("%d properties changed in a single drift", changeCount),
		}})
	}

	// manual_troubleshooting: a handful of small edits with no deployment
	// to attribute them to
	if changeCount >= 2 && changeCount < highChangeCountThreshold {
		fired = append(fired, firedSignal{analysis.CauseManualTroubleshooting, analysis.Factor{
			Name:     "multiple_small_changes",
			Weight:   weightSmallChanges,
			Evidence: fmt.Sprintf("%d scattered property changes", changeCount),
		}})
	}
	if changeCount > 0 && !signals.DeploymentEvent {
		fired = append(fired, firedSignal{analysis.CauseManualTroubleshooting, analysis.Factor{
			Name:     "no_deployment_event",
			Weight:   weightNoDeployment,
			Evidence: "no deployment event recorded near the change time",
		}})
	}

	// security_response: dominant when security critical changes are present
	if secCount > 0 {
		w := weightSecurityBase + weightSecurityPerExtra*float64(min(secCount, 4)-1)
		fired = append(fired, firedSignal{analysis.CauseSecurityResponse, analysis.Factor{
			Name:     "security_critical_changes",
			Weight:   w,
			Evidence: fmt.Sprintf("%d of %d changes touch security critical properties", secCount, changeCount),
		}})
	}

	// configuration_error: a single edited property with no history of
	// similar drift
	if changeCount == 1 {
		fired = append(fired, firedSignal{analysis.CauseConfigurationError, analysis.Factor{
			Name:     "single_property_changed",
			Weight:   weightSingleProperty,
			Evidence: fmt.Sprintf("only %s changed", changes[0].PropertyPath),
		}})
	}
	if changeCount > 0 && !signals.PriorSimilarDrift {
		fired = append(fired, firedSignal{analysis.CauseConfigurationError, analysis.Factor{
			Name:     "no_prior_similar_drift",
			Weight:   weightNoPriorDrift,
			Evidence: "no similar drift recorded for this resource",
		}})
	}

	// automated_response: attributed to a known automation account
	if signals.IsAutomationActor() {
		fired = append(fired, firedSignal{analysis.CauseAutomatedResponse, analysis.Factor{
			Name:     "automation_actor",
			Weight:   weightAutomationActor,
			Evidence: fmt.Sprintf("change attributed to known automation account %q", signals.Actor),
		}})
	}

	scores := make(map[string]float64)
	for _, f := range fired {
		scores[f.category] += f.factor.Weight
	}

	category, confidence := pickCategory(scores)

	factors := make([]analysis.Factor, 0, len(fired))
	for _, f := range fired {
		factors = append(factors, f.factor)
	}
	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].Weight > factors[j].Weight
	})

	return &analysis.CauseAnalysis{
		EventID:         event.ID,
		CauseCategory:   category,
		ConfidenceScore: confidence,
		Factors:         factors,
		Explanation:     explanationFor(category, changeCount, secCount),
		AnalyzedBy:      analysis.AnalyzedByRuleEngine,
	}
}

// pickCategory selects the top scoring category and derives confidence from
// the normalized margin over the runner-up
func pickCategory(scores map[string]float64) (string, float64) {
	top, second := 0.0, 0.0
	category := analysis.CauseUnknown

	for cat, score := range scores {
		switch {
		case score > top || (score == top && tieBreakOrder[cat] < tieBreakOrder[category]):
			if cat != category {
				second = top
			}
			top = score
			category = cat
		case score > second:
			second = score
		}
	}

	if top == 0 {
		return analysis.CauseUnknown, 0
	}

	confidence := (top - second) / top
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return category, confidence
}

func explanationFor(category string, changeCount, secCount int) string {
	switch category {
	case analysis.CauseEmergencyFix:
		return "Emergency manual change made during incident response"
	case analysis.CauseManualTroubleshooting:
		return fmt.Sprintf("Debugging changes made during issue investigation (%d properties touched)", changeCount)
	case analysis.CauseSecurityResponse:
		return fmt.Sprintf("Security hardening in response to threat detection (%d security critical changes)", secCount)
	case analysis.CauseConfigurationError:
		return "Mistake in IaC or manual configuration"
	case analysis.CauseAutomatedResponse:
		return "Changes made by automated tools or scripts"
	default:
		return "No contextual signal matched a known cause pattern"
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
