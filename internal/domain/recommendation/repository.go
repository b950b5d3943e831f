package recommendation

import (
	"context"
	"time"
)

// Repository defines the interface for recommendation data access
type Repository interface {
	// Create stores a new recommendation
	Create(ctx context.Context, rec *Recommendation) (int64, error)

	// GetByID retrieves a recommendation by ID
	GetByID(ctx context.Context, id int64) (*Recommendation, error)

	// Update updates a recommendation
	Update(ctx context.Context, rec *Recommendation) error

	// List retrieves recommendations with filters, ordered by confidence desc
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Recommendation, int64, error)

	// ExpireDue marks active recommendations whose expires_at has passed as
	// expired and returns how many were affected
	ExpireDue(ctx context.Context, now time.Time) (int64, error)

	// AddFeedback appends a feedback record; feedback is never mutated or deleted
	AddFeedback(ctx context.Context, fb *Feedback) (int64, error)

	// ListFeedback retrieves feedback for a recommendation, newest first
	ListFeedback(ctx context.Context, recommendationID int64) ([]*Feedback, error)
}
