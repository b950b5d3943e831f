package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/driftguard/driftguard/internal/domain/environment"
	"github.com/driftguard/driftguard/internal/pkg/errors"
)

type EnvironmentRepository struct {
	db *sql.DB
}

func NewEnvironmentRepository(db *sql.DB) environment.Repository {
	return &EnvironmentRepository{db: db}
}

const environmentColumns = `id, org_id, name, slug, provider, region, account_id, tags, is_active, created_at, updated_at`

func (r *EnvironmentRepository) Create(ctx context.Context, env *environment.Environment) (int64, error) {
	now := time.Now()
	env.CreatedAt = now

	tags, err := json.Marshal(env.Tags)
	if err != nil {
		return 0, errors.DatabaseError("Failed to encode environment tags", err)
	}

	query := `INSERT INTO environments (org_id, name, slug, provider, region, account_id, tags, is_active, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query, env.OrgID, env.Name, env.Slug, env.Provider, env.Region, env.AccountID, string(tags), env.IsActive, now.Format(time.RFC3339))
	if err != nil {
		return 0, errors.DatabaseError("Failed to create environment", err)
	}

	return result.LastInsertId()
}

func (r *EnvironmentRepository) GetByID(ctx context.Context, id int64) (*environment.Environment, error) {
	query := `SELECT ` + environmentColumns + ` FROM environments WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *EnvironmentRepository) GetBySlug(ctx context.Context, orgID int64, slug string) (*environment.Environment, error) {
	query := `SELECT ` + environmentColumns + ` FROM environments WHERE org_id = ? AND slug = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, orgID, slug))
}

func (r *EnvironmentRepository) Update(ctx context.Context, env *environment.Environment) error {
	env.UpdatedAt = time.Now()

	tags, err := json.Marshal(env.Tags)
	if err != nil {
		return errors.DatabaseError("Failed to encode environment tags", err)
	}

	query := `UPDATE environments SET name = ?, slug = ?, provider = ?, region = ?, account_id = ?, tags = ?, is_active = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, env.Name, env.Slug, env.Provider, env.Region, env.AccountID, string(tags), env.IsActive, env.UpdatedAt.Format(time.RFC3339), env.ID)
	if err != nil {
		return errors.DatabaseError("Failed to update environment", err)
	}

	rows, err := result.RowsAffected()
	if err != nil || rows == 0 {
		return errors.NotFound("Environment")
	}

	return nil
}

func (r *EnvironmentRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM environments WHERE id = ?", id)
	if err != nil {
		return errors.DatabaseError("Failed to delete environment", err)
	}

	rows, err := result.RowsAffected()
	if err != nil || rows == 0 {
		return errors.NotFound("Environment")
	}

	return nil
}

func (r *EnvironmentRepository) List(ctx context.Context, orgID int64) ([]*environment.Environment, error) {
	query := `SELECT ` + environmentColumns + ` FROM environments WHERE org_id = ? ORDER BY name`
	return r.scanMany(ctx, query, orgID)
}

func (r *EnvironmentRepository) ListActive(ctx context.Context) ([]*environment.Environment, error) {
	query := `SELECT ` + environmentColumns + ` FROM environments WHERE is_active = 1 ORDER BY id`
	return r.scanMany(ctx, query)
}

func (r *EnvironmentRepository) scanMany(ctx context.Context, query string, args ...interface{}) ([]*environment.Environment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list environments", err)
	}
	defer rows.Close()

	var envs []*environment.Environment
	for rows.Next() {
		env, err := scanEnvironment(rows)
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}

	return envs, rows.Err()
}

func (r *EnvironmentRepository) scanOne(row *sql.Row) (*environment.Environment, error) {
	env, err := scanEnvironment(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Environment")
	}
	if err != nil {
		return nil, err
	}
	return env, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEnvironment(row rowScanner) (*environment.Environment, error) {
	var env environment.Environment
	var tags, createdAt, updatedAt string

	err := row.Scan(&env.ID, &env.OrgID, &env.Name, &env.Slug, &env.Provider, &env.Region, &env.AccountID, &tags, &env.IsActive, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to scan environment", err)
	}

	if tags != "" && tags != "null" {
		if err := json.Unmarshal([]byte(tags), &env.Tags); err != nil {
			return nil, errors.DatabaseError("Failed to decode environment tags", err)
		}
	}
	env.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	env.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &env, nil
}
