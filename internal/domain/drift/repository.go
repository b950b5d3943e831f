package drift

import "context"

// Repository defines the interface for drift event data access
type Repository interface {
	// Create creates a new drift event together with its changes
	Create(ctx context.Context, event *Event, changes []*Change) (int64, error)

	// GetByID retrieves a drift event by ID
	GetByID(ctx context.Context, id int64) (*Event, error)

	// GetUnresolved retrieves the unresolved event for a resource, or
	// NotFound when the resource has no open drift
	GetUnresolved(ctx context.Context, environmentID int64, resourceID string) (*Event, error)

	// Update updates a drift event
	Update(ctx context.Context, event *Event) error

	// ReplaceChanges deletes the event's change set and inserts a new one
	ReplaceChanges(ctx context.Context, eventID int64, changes []*Change) error

	// ListChanges retrieves the change set of an event, security critical
	// changes first, then by property path
	ListChanges(ctx context.Context, eventID int64) ([]*Change, error)

	// List retrieves drift events with filters and pagination
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Event, int64, error)

	// CountUnresolved counts unresolved events in an environment
	CountUnresolved(ctx context.Context, environmentID int64) (int64, error)

	// Summarize aggregates events for an environment; orgID scoping is the
	// caller's concern via environment membership
	Summarize(ctx context.Context, environmentID int64) (*Summary, error)

	// Delete deletes a drift event and its changes
	Delete(ctx context.Context, id int64) error
}
