package services

import (
	"context"

	"github.com/driftguard/driftguard/internal/domain/environment"
)

// Collector fetches live cloud state for an environment's resources as
// normalized key/value documents keyed by resource identifier. A resource
// absent from the result is treated as deleted in the cloud.
type Collector interface {
	// Provider returns the cloud provider this collector serves (aws, gcp)
	Provider() string

	// Collect fetches observed state documents for the environment
	Collect(ctx context.Context, env *environment.Environment) (map[string]map[string]interface{}, error)
}
