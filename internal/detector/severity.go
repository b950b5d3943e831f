package detector

import "github.com/driftguard/driftguard/internal/domain/drift"

// Per-change weights for severity aggregation. Security critical changes
// dominate; removals weigh more than additions because a missing declared
// property usually means lost controls.
const (
	weightSecurityCritical = 0.35
	weightModified         = 0.08
	weightAdded            = 0.10
	weightRemoved          = 0.12

	// Base severity when the whole resource is gone from the cloud
	weightResourceDeleted = 0.60
)

// Assessment carries the scoring outputs for one computed change set
type Assessment struct {
	Severity   float64
	Confidence float64
	Risk       drift.RiskAssessment
}

// Assess derives severity, detection confidence and the risk breakdown from
// a change set. resourceDeleted marks the observed-absent case.
func Assess(changes ChangeSet, resourceDeleted bool) Assessment {
	secCount := changes.SecurityCriticalCount()
	total := len(changes)

	severity := 0.0
	if resourceDeleted {
		severity = weightResourceDeleted
	}
	for _, c := range changes {
		if c.SecurityCritical {
			severity += weightSecurityCritical
			continue
		}
		switch c.ChangeType {
		case ChangeModified:
			severity += weightModified
		case ChangeAdded:
			severity += weightAdded
		case ChangeRemoved:
			severity += weightRemoved
		}
	}

	risk := drift.RiskAssessment{
		Security:    clamp01(0.45 * float64(secCount)),
		Performance: clamp01(0.05 * float64(total)),
		Compliance:  clamp01(0.30*float64(secCount) + 0.02*float64(total)),
		Cost:        clamp01(0.04 * float64(total)),
	}
	if resourceDeleted {
		risk.Security = clamp01(risk.Security + 0.20)
		risk.Compliance = clamp01(risk.Compliance + 0.20)
	}

	if risk.Security > severity {
		severity = risk.Security
	}

	// Exact-equality diffing is high confidence; volume adds a little more
	confidence := 0.6 + 0.05*float64(total)
	if resourceDeleted {
		confidence = 0.9
	}
	if confidence > 0.95 {
		confidence = 0.95
	}

	return Assessment{
		Severity:   clamp01(severity),
		Confidence: clamp01(confidence),
		Risk:       risk,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
