package iac

import "context"

// Repository defines the interface for IaC data access
type Repository interface {
	// CreateSourceRepository creates a new IaC source repository
	CreateSourceRepository(ctx context.Context, repo *SourceRepository) (int64, error)

	// GetSourceRepository retrieves a source repository by ID
	GetSourceRepository(ctx context.Context, id int64) (*SourceRepository, error)

	// ListSourceRepositories retrieves source repositories for an organization
	ListSourceRepositories(ctx context.Context, orgID int64) ([]*SourceRepository, error)

	// UpsertDeclaredResource creates or replaces a declared resource,
	// keyed by (repository, resource identifier)
	UpsertDeclaredResource(ctx context.Context, res *DeclaredResource) error

	// GetDeclaredResource retrieves a declared resource by environment and resource identifier
	GetDeclaredResource(ctx context.Context, environmentID int64, resourceID string) (*DeclaredResource, error)

	// ListDeclaredResources retrieves all declared resources for an environment
	ListDeclaredResources(ctx context.Context, environmentID int64) ([]*DeclaredResource, error)

	// DeleteDeclaredResource removes a declared resource
	DeleteDeclaredResource(ctx context.Context, repositoryID int64, resourceID string) error
}
