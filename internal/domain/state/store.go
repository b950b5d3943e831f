package state

import (
	"context"
	"time"

	"github.com/driftguard/driftguard/internal/domain/iac"
)

// Store provides declared definitions and last-observed snapshots per resource.
// Credential presence is a precondition checked by the caller, not the store.
type Store interface {
	// GetDeclaredResources returns the declared resources of an environment
	GetDeclaredResources(ctx context.Context, environmentID int64) ([]*iac.DeclaredResource, error)

	// GetObservedResource returns the latest snapshot for a resource, or
	// nil when the resource has never been observed (or was observed absent)
	GetObservedResource(ctx context.Context, environmentID int64, resourceID string) (*ObservedResource, error)

	// PutObservedSnapshot replaces any prior snapshot for the resource
	PutObservedSnapshot(ctx context.Context, environmentID int64, resourceID string, doc map[string]interface{}, observedAt time.Time) error

	// DeleteObservedSnapshot removes the snapshot for a resource that is no
	// longer present in the cloud
	DeleteObservedSnapshot(ctx context.Context, environmentID int64, resourceID string) error
}
