package drift

import "time"

// Event represents one detected divergence between a declared resource and
// its observed cloud state. At most one unresolved Event exists per
// (environment, resource identifier) at any time.
type Event struct {
	ID              int64          `json:"id"`
	EnvironmentID   int64          `json:"environment_id"`
	ResourceID      string         `json:"resource_id"`
	DriftType       string         `json:"drift_type"`
	SeverityScore   float64        `json:"severity_score"`
	ConfidenceScore float64        `json:"confidence_score"`
	DetectedAt      time.Time      `json:"detected_at"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
	ResolutionType  string         `json:"resolution_type,omitempty"`
	ResolutionNotes string         `json:"resolution_notes,omitempty"`
	RiskAssessment  RiskAssessment `json:"risk_assessment"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at,omitempty"`
}

// RiskAssessment breaks the drift impact down by dimension, each in [0,1]
type RiskAssessment struct {
	Security    float64 `json:"security"`
	Performance float64 `json:"performance"`
	Compliance  float64 `json:"compliance"`
	Cost        float64 `json:"cost"`
}

// Change is one field-level difference within an Event. Changes are owned by
// their Event and replaced wholesale when the event is refreshed.
type Change struct {
	ID                 int64       `json:"id"`
	EventID            int64       `json:"event_id"`
	PropertyPath       string      `json:"property_path"`
	DeclaredValue      interface{} `json:"declared_value"`
	ActualValue        interface{} `json:"actual_value"`
	ChangeType         string      `json:"change_type"`
	IsSecurityCritical bool        `json:"is_security_critical"`
}

// Drift types
const (
	TypeModified = "modified"
	TypeDeleted  = "deleted"
	TypeAdded    = "added"
	TypeMoved    = "moved"
)

// Change types
const (
	ChangeModified = "modified"
	ChangeAdded    = "added"
	ChangeRemoved  = "removed"
)

// Resolution types
const (
	ResolutionAutoRevert = "auto_revert"
	ResolutionCodifyIaC  = "codify_iac"
	ResolutionAccepted   = "accepted"
	ResolutionEscalated  = "escalated"
)

// Filter contains drift event filtering options
type Filter struct {
	EnvironmentID int64
	ResourceID    string
	DriftType     string
	Unresolved    bool
}

// Summary aggregates drift events over a scope. AvgSeverity covers unresolved
// events only and is 0 when the scope is empty.
type Summary struct {
	Total       int64   `json:"total"`
	Resolved    int64   `json:"resolved"`
	Unresolved  int64   `json:"unresolved"`
	AvgSeverity float64 `json:"avg_severity"`
}

// IsResolved reports whether this event has been resolved
func (e *Event) IsResolved() bool {
	return e.ResolvedAt != nil
}

// Duration returns how long the drift stayed open, or zero if unresolved
func (e *Event) Duration() time.Duration {
	if e.ResolvedAt == nil {
		return 0
	}
	return e.ResolvedAt.Sub(e.DetectedAt)
}
