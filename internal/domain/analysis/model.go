package analysis

import "time"

// CauseAnalysis is the root cause classification of a drift event. At most
// one non-superseded analysis exists per event; re-analysis supersedes the
// prior row rather than mutating it.
type CauseAnalysis struct {
	ID              int64     `json:"id"`
	EventID         int64     `json:"event_id"`
	CauseCategory   string    `json:"cause_category"`
	ConfidenceScore float64   `json:"confidence_score"`
	Factors         []Factor  `json:"contributing_factors"`
	Explanation     string    `json:"explanation"`
	AnalyzedBy      string    `json:"analyzed_by"`
	AnalyzedAt      time.Time `json:"analyzed_at"`
	Superseded      bool      `json:"superseded"`
}

// Factor is one contributing signal with its weight and supporting evidence
type Factor struct {
	Name     string  `json:"factor"`
	Weight   float64 `json:"weight"`
	Evidence string  `json:"evidence"`
}

// Cause categories
const (
	CauseEmergencyFix          = "emergency_fix"
	CauseManualTroubleshooting = "manual_troubleshooting"
	CauseSecurityResponse      = "security_response"
	CauseConfigurationError    = "configuration_error"
	CauseAutomatedResponse     = "automated_response"
	CauseUnknown               = "unknown"
)

// Analyzer identities
const (
	AnalyzedByRuleEngine = "rule_engine"
	AnalyzedByAIAgent    = "ai_agent"
	AnalyzedByHuman      = "human"
)

// ContextSignals carries the contextual evidence the classifier scores:
// change timing, actor attribution and change volume.
type ContextSignals struct {
	// When the divergence is believed to have happened
	ChangedAt time.Time `json:"changed_at"`
	// Actor attributed to the change, if attribution data exists
	Actor string `json:"actor,omitempty"`
	// Whether a deployment event was recorded near the change time
	DeploymentEvent bool `json:"deployment_event"`
	// Whether a similar drift was seen before on this resource
	PriorSimilarDrift bool `json:"prior_similar_drift"`
	// Maintenance window in local hours [start, end); crosses midnight when start > end
	MaintenanceWindowStart int `json:"maintenance_window_start"`
	MaintenanceWindowEnd   int `json:"maintenance_window_end"`
	// Service accounts known to make automated changes
	AutomationActors []string `json:"automation_actors,omitempty"`
}

// InMaintenanceWindow reports whether the change time falls inside the window
func (s ContextSignals) InMaintenanceWindow() bool {
	if s.ChangedAt.IsZero() {
		return false
	}
	h := s.ChangedAt.Hour()
	if s.MaintenanceWindowStart == s.MaintenanceWindowEnd {
		return false
	}
	if s.MaintenanceWindowStart < s.MaintenanceWindowEnd {
		return h >= s.MaintenanceWindowStart && h < s.MaintenanceWindowEnd
	}
	return h >= s.MaintenanceWindowStart || h < s.MaintenanceWindowEnd
}

// IsAutomationActor reports whether the attributed actor is a known automation account
func (s ContextSignals) IsAutomationActor() bool {
	if s.Actor == "" {
		return false
	}
	for _, a := range s.AutomationActors {
		if a == s.Actor {
			return true
		}
	}
	return false
}
