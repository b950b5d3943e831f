package recommendation

import "time"

// Recommendation is a remediation suggestion derived from a drift event's
// cause analysis. It outlives the analysis cycle for audit purposes.
type Recommendation struct {
	ID              int64                  `json:"id"`
	EventID         int64                  `json:"event_id"`
	Type            string                 `json:"type"`
	Priority        string                 `json:"priority"`
	ConfidenceScore float64                `json:"confidence_score"`
	Title           string                 `json:"title"`
	Rationale       string                 `json:"rationale"`
	Steps           []string               `json:"implementation_steps"`
	EstimatedEffort string                 `json:"estimated_effort,omitempty"`
	RecommendedBy   string                 `json:"recommended_by"`
	CreatedAt       time.Time              `json:"created_at"`
	ExpiresAt       *time.Time             `json:"expires_at,omitempty"`
	ImplementedAt   *time.Time             `json:"implemented_at,omitempty"`
	Result          map[string]interface{} `json:"implementation_result,omitempty"`
	IsImplemented   bool                   `json:"is_implemented"`
	IsExpired       bool                   `json:"is_expired"`
}

// Recommendation types
const (
	TypeAutoRevert      = "auto_revert"
	TypeCodifyIaC       = "codify_iac"
	TypeEscalateReview  = "escalate_review"
	TypeAcceptException = "accept_exception"
	TypeManualReview    = "manual_review"
)

// Priority levels
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// Effort estimates
const (
	EffortMinutes = "minutes"
	EffortHours   = "hours"
	EffortDays    = "days"
)

// Recommenders
const (
	RecommendedByRuleEngine = "rule_engine"
	RecommendedByHuman      = "human"
)

// priorityWeights maps priority tiers to numeric weights for urgency scoring
var priorityWeights = map[string]int{
	PriorityLow:      1,
	PriorityMedium:   2,
	PriorityHigh:     3,
	PriorityCritical: 4,
}

// UrgencyScore ranks the recommendation by combining its priority tier and
// confidence: (weight / 4) * confidence
func (r *Recommendation) UrgencyScore() float64 {
	w, ok := priorityWeights[r.Priority]
	if !ok {
		w = priorityWeights[PriorityMedium]
	}
	return (float64(w) / 4.0) * r.ConfidenceScore
}

// Active reports whether the recommendation is still actionable
func (r *Recommendation) Active() bool {
	return !r.IsImplemented && !r.IsExpired
}

// Feedback is an append-only record of a user reaction to a recommendation
type Feedback struct {
	ID               int64     `json:"id"`
	RecommendationID int64     `json:"recommendation_id"`
	FeedbackType     string    `json:"feedback_type"`
	Rating           int       `json:"rating,omitempty"`
	Comments         string    `json:"comments,omitempty"`
	UserID           int64     `json:"user_id"`
	UserRole         string    `json:"user_role,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Feedback types
const (
	FeedbackHelpful               = "helpful"
	FeedbackNotHelpful            = "not_helpful"
	FeedbackImplementedOK         = "implemented_successfully"
	FeedbackImplementedWithIssues = "implemented_with_issues"
	FeedbackWrong                 = "wrong_recommendation"
	FeedbackTooComplex            = "too_complex"
)

// Filter contains recommendation filtering options
type Filter struct {
	EventID    int64
	Type       string
	Priority   string
	ActiveOnly bool
}
