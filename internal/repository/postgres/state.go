package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/driftguard/driftguard/internal/domain/iac"
	"github.com/driftguard/driftguard/internal/domain/state"
	"github.com/driftguard/driftguard/internal/pkg/errors"
)

// StateStore backs the declared/observed state store with the declared
// resource table and the observed snapshot table.
type StateStore struct {
	db   *sql.DB
	iacs iac.Repository
}

func NewStateStore(db *sql.DB, iacs iac.Repository) state.Store {
	return &StateStore{db: db, iacs: iacs}
}

func (s *StateStore) GetDeclaredResources(ctx context.Context, environmentID int64) ([]*iac.DeclaredResource, error) {
	return s.iacs.ListDeclaredResources(ctx, environmentID)
}

func (s *StateStore) GetObservedResource(ctx context.Context, environmentID int64, resourceID string) (*state.ObservedResource, error) {
	query := `SELECT environment_id, resource_id, state, observed_at FROM observed_snapshots WHERE environment_id = ? AND resource_id = ?`

	var obs state.ObservedResource
	var doc, observedAt string
	err := s.db.QueryRowContext(ctx, query, environmentID, resourceID).Scan(&obs.EnvironmentID, &obs.ResourceID, &doc, &observedAt)

	// Never observed is not an error; drift handling treats it as absent
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get observed snapshot", err)
	}

	if err := json.Unmarshal([]byte(doc), &obs.State); err != nil {
		return nil, errors.DatabaseError("Failed to decode observed state", err)
	}
	obs.ObservedAt, _ = time.Parse(time.RFC3339, observedAt)

	return &obs, nil
}

func (s *StateStore) PutObservedSnapshot(ctx context.Context, environmentID int64, resourceID string, doc map[string]interface{}, observedAt time.Time) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return errors.DatabaseError("Failed to encode observed state", err)
	}

	query := `INSERT INTO observed_snapshots (environment_id, resource_id, state, observed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (environment_id, resource_id) DO UPDATE SET
			state = excluded.state,
			observed_at = excluded.observed_at`

	_, err = s.db.ExecContext(ctx, query, environmentID, resourceID, string(raw), observedAt.Format(time.RFC3339))
	if err != nil {
		return errors.DatabaseError("Failed to store observed snapshot", err)
	}

	return nil
}

func (s *StateStore) DeleteObservedSnapshot(ctx context.Context, environmentID int64, resourceID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM observed_snapshots WHERE environment_id = ? AND resource_id = ?", environmentID, resourceID)
	if err != nil {
		return errors.DatabaseError("Failed to delete observed snapshot", err)
	}
	return nil
}
