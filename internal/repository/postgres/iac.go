package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/driftguard/driftguard/internal/domain/iac"
	"github.com/driftguard/driftguard/internal/pkg/errors"
)

type IaCRepository struct {
	db *sql.DB
}

func NewIaCRepository(db *sql.DB) iac.Repository {
	return &IaCRepository{db: db}
}

func (r *IaCRepository) CreateSourceRepository(ctx context.Context, repo *iac.SourceRepository) (int64, error) {
	now := time.Now()
	repo.CreatedAt = now

	query := `INSERT INTO iac_repositories (org_id, name, platform, url, branch, iac_type, is_active, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query, repo.OrgID, repo.Name, repo.Platform, repo.URL, repo.Branch, repo.IaCType, repo.IsActive, now.Format(time.RFC3339))
	if err != nil {
		return 0, errors.DatabaseError("Failed to create source repository", err)
	}

	return result.LastInsertId()
}

func (r *IaCRepository) GetSourceRepository(ctx context.Context, id int64) (*iac.SourceRepository, error) {
	query := `SELECT id, org_id, name, platform, url, branch, iac_type, is_active, created_at, updated_at FROM iac_repositories WHERE id = ?`

	var repo iac.SourceRepository
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&repo.ID, &repo.OrgID, &repo.Name, &repo.Platform, &repo.URL, &repo.Branch, &repo.IaCType, &repo.IsActive, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Source repository")
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get source repository", err)
	}

	repo.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	repo.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &repo, nil
}

func (r *IaCRepository) ListSourceRepositories(ctx context.Context, orgID int64) ([]*iac.SourceRepository, error) {
	query := `SELECT id, org_id, name, platform, url, branch, iac_type, is_active, created_at, updated_at FROM iac_repositories WHERE org_id = ? ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list source repositories", err)
	}
	defer rows.Close()

	var repos []*iac.SourceRepository
	for rows.Next() {
		var repo iac.SourceRepository
		var createdAt, updatedAt string
		err := rows.Scan(&repo.ID, &repo.OrgID, &repo.Name, &repo.Platform, &repo.URL, &repo.Branch, &repo.IaCType, &repo.IsActive, &createdAt, &updatedAt)
		if err != nil {
			return nil, errors.DatabaseError("Failed to scan source repository", err)
		}
		repo.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		repo.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		repos = append(repos, &repo)
	}

	return repos, rows.Err()
}

func (r *IaCRepository) UpsertDeclaredResource(ctx context.Context, res *iac.DeclaredResource) error {
	now := time.Now()

	state, err := json.Marshal(res.DeclaredState)
	if err != nil {
		return errors.DatabaseError("Failed to encode declared state", err)
	}

	query := `INSERT INTO declared_resources (repository_id, environment_id, resource_type, resource_id, declared_state, source_revision, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (repository_id, resource_id) DO UPDATE SET
			environment_id = excluded.environment_id,
			resource_type = excluded.resource_type,
			declared_state = excluded.declared_state,
			source_revision = excluded.source_revision,
			updated_at = excluded.updated_at`

	_, err = r.db.ExecContext(ctx, query, res.RepositoryID, res.EnvironmentID, res.ResourceType, res.ResourceID, string(state), res.SourceRevision, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return errors.DatabaseError("Failed to upsert declared resource", err)
	}

	return nil
}

func (r *IaCRepository) GetDeclaredResource(ctx context.Context, environmentID int64, resourceID string) (*iac.DeclaredResource, error) {
	query := `SELECT id, repository_id, environment_id, resource_type, resource_id, declared_state, source_revision, created_at, updated_at FROM declared_resources WHERE environment_id = ? AND resource_id = ?`

	res, err := scanDeclaredResource(r.db.QueryRowContext(ctx, query, environmentID, resourceID))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Declared resource")
	}
	return res, err
}

func (r *IaCRepository) ListDeclaredResources(ctx context.Context, environmentID int64) ([]*iac.DeclaredResource, error) {
	query := `SELECT id, repository_id, environment_id, resource_type, resource_id, declared_state, source_revision, created_at, updated_at FROM declared_resources WHERE environment_id = ? ORDER BY resource_id`

	rows, err := r.db.QueryContext(ctx, query, environmentID)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list declared resources", err)
	}
	defer rows.Close()

	var resources []*iac.DeclaredResource
	for rows.Next() {
		res, err := scanDeclaredResource(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, res)
	}

	return resources, rows.Err()
}

func (r *IaCRepository) DeleteDeclaredResource(ctx context.Context, repositoryID int64, resourceID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM declared_resources WHERE repository_id = ? AND resource_id = ?", repositoryID, resourceID)
	if err != nil {
		return errors.DatabaseError("Failed to delete declared resource", err)
	}

	rows, err := result.RowsAffected()
	if err != nil || rows == 0 {
		return errors.NotFound("Declared resource")
	}

	return nil
}

func scanDeclaredResource(row rowScanner) (*iac.DeclaredResource, error) {
	var res iac.DeclaredResource
	var state, createdAt, updatedAt string

	err := row.Scan(&res.ID, &res.RepositoryID, &res.EnvironmentID, &res.ResourceType, &res.ResourceID, &state, &res.SourceRevision, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to scan declared resource", err)
	}

	if err := json.Unmarshal([]byte(state), &res.DeclaredState); err != nil {
		return nil, errors.DatabaseError("Failed to decode declared state", err)
	}
	res.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	res.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &res, nil
}
