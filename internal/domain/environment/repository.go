package environment

import "context"

// Repository defines the interface for environment data access
type Repository interface {
	// Create creates a new environment
	Create(ctx context.Context, env *Environment) (int64, error)

	// GetByID retrieves an environment by ID
	GetByID(ctx context.Context, id int64) (*Environment, error)

	// GetBySlug retrieves an environment by organization and slug
	GetBySlug(ctx context.Context, orgID int64, slug string) (*Environment, error)

	// Update updates an environment
	Update(ctx context.Context, env *Environment) error

	// Delete deletes an environment
	Delete(ctx context.Context, id int64) error

	// List retrieves environments for an organization
	List(ctx context.Context, orgID int64) ([]*Environment, error)

	// ListActive retrieves all active environments across organizations
	ListActive(ctx context.Context) ([]*Environment, error)
}
