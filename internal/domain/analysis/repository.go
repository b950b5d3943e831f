package analysis

import "context"

// Repository defines the interface for cause analysis data access
type Repository interface {
	// Create stores a new cause analysis
	Create(ctx context.Context, a *CauseAnalysis) (int64, error)

	// GetByEvent retrieves the current (non-superseded) analysis for a drift
	// event, or NotFound when none exists
	GetByEvent(ctx context.Context, eventID int64) (*CauseAnalysis, error)

	// Supersede marks the current analysis of an event superseded
	Supersede(ctx context.Context, eventID int64) error

	// ListByEvent retrieves all analyses of an event, newest first,
	// including superseded ones
	ListByEvent(ctx context.Context, eventID int64) ([]*CauseAnalysis, error)
}
