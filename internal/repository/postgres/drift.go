package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/driftguard/driftguard/internal/domain/drift"
	"github.com/driftguard/driftguard/internal/pkg/errors"
)

type DriftRepository struct {
	db *sql.DB
}

func NewDriftRepository(db *sql.DB) drift.Repository {
	return &DriftRepository{db: db}
}

const driftColumns = `id, environment_id, resource_id, drift_type, severity_score, confidence_score, detected_at, resolved_at, resolution_type, resolution_notes, risk_assessment, created_at, updated_at`

func (r *DriftRepository) Create(ctx context.Context, event *drift.Event, changes []*drift.Change) (int64, error) {
	now := time.Now()
	event.CreatedAt = now
	if event.DetectedAt.IsZero() {
		event.DetectedAt = now
	}

	risk, err := json.Marshal(event.RiskAssessment)
	if err != nil {
		return 0, errors.DatabaseError("Failed to encode risk assessment", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.DatabaseError("Failed to start transaction", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO drift_events (environment_id, resource_id, drift_type, severity_score, confidence_score, detected_at, resolution_type, resolution_notes, risk_assessment, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := tx.ExecContext(ctx, query, event.EnvironmentID, event.ResourceID, event.DriftType, event.SeverityScore, event.ConfidenceScore, event.DetectedAt.Format(time.RFC3339), event.ResolutionType, event.ResolutionNotes, string(risk), now.Format(time.RFC3339))
	if err != nil {
		return 0, errors.DatabaseError("Failed to create drift event", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, errors.DatabaseError("Failed to read drift event id", err)
	}

	if err := insertChanges(ctx, tx, id, changes); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.DatabaseError("Failed to commit drift event", err)
	}

	event.ID = id
	return id, nil
}

func (r *DriftRepository) GetByID(ctx context.Context, id int64) (*drift.Event, error) {
	query := `SELECT ` + driftColumns + ` FROM drift_events WHERE id = ?`

	event, err := scanDriftEvent(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Drift event")
	}
	return event, err
}

func (r *DriftRepository) GetUnresolved(ctx context.Context, environmentID int64, resourceID string) (*drift.Event, error) {
	query := `SELECT ` + driftColumns + ` FROM drift_events WHERE environment_id = ? AND resource_id = ? AND resolved_at IS NULL`

	event, err := scanDriftEvent(r.db.QueryRowContext(ctx, query, environmentID, resourceID))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Drift event")
	}
	return event, err
}

func (r *DriftRepository) Update(ctx context.Context, event *drift.Event) error {
	event.UpdatedAt = time.Now()

	risk, err := json.Marshal(event.RiskAssessment)
	if err != nil {
		return errors.DatabaseError("Failed to encode risk assessment", err)
	}

	var resolvedAt interface{}
	if event.ResolvedAt != nil {
		resolvedAt = event.ResolvedAt.Format(time.RFC3339)
	}

	query := `UPDATE drift_events SET drift_type = ?, severity_score = ?, confidence_score = ?, detected_at = ?, resolved_at = ?, resolution_type = ?, resolution_notes = ?, risk_assessment = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, event.DriftType, event.SeverityScore, event.ConfidenceScore, event.DetectedAt.Format(time.RFC3339), resolvedAt, event.ResolutionType, event.ResolutionNotes, string(risk), event.UpdatedAt.Format(time.RFC3339), event.ID)
	if err != nil {
		return errors.DatabaseError("Failed to update drift event", err)
	}

	rows, err := result.RowsAffected()
	if err != nil || rows == 0 {
		return errors.NotFound("Drift event")
	}

	return nil
}

func (r *DriftRepository) ReplaceChanges(ctx context.Context, eventID int64, changes []*drift.Change) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("Failed to start transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM drift_changes WHERE event_id = ?", eventID); err != nil {
		return errors.DatabaseError("Failed to clear drift changes", err)
	}

	if err := insertChanges(ctx, tx, eventID, changes); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("Failed to commit drift changes", err)
	}

	return nil
}

func (r *DriftRepository) ListChanges(ctx context.Context, eventID int64) ([]*drift.Change, error) {
	query := `SELECT id, event_id, property_path, declared_value, actual_value, change_type, is_security_critical FROM drift_changes WHERE event_id = ? ORDER BY is_security_critical DESC, property_path`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list drift changes", err)
	}
	defer rows.Close()

	var changes []*drift.Change
	for rows.Next() {
		var c drift.Change
		var declared, actual sql.NullString
		if err := rows.Scan(&c.ID, &c.EventID, &c.PropertyPath, &declared, &actual, &c.ChangeType, &c.IsSecurityCritical); err != nil {
			return nil, errors.DatabaseError("Failed to scan drift change", err)
		}
		c.DeclaredValue = decodeValue(declared)
		c.ActualValue = decodeValue(actual)
		changes = append(changes, &c)
	}

	return changes, rows.Err()
}

func (r *DriftRepository) List(ctx context.Context, filter drift.Filter, limit, offset int) ([]*drift.Event, int64, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if filter.EnvironmentID != 0 {
		where = append(where, "environment_id = ?")
		args = append(args, filter.EnvironmentID)
	}
	if filter.ResourceID != "" {
		where = append(where, "resource_id = ?")
		args = append(args, filter.ResourceID)
	}
	if filter.DriftType != "" {
		where = append(where, "drift_type = ?")
		args = append(args, filter.DriftType)
	}
	if filter.Unresolved {
		where = append(where, "resolved_at IS NULL")
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	err := r.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM drift_events WHERE %s", whereClause), args...).Scan(&total)
	if err != nil {
		return nil, 0, errors.DatabaseError("Failed to count drift events", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM drift_events WHERE %s ORDER BY severity_score DESC, id DESC LIMIT ? OFFSET ?`, driftColumns, whereClause)

	args = append(args, limit, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.DatabaseError("Failed to list drift events", err)
	}
	defer rows.Close()

	var events []*drift.Event
	for rows.Next() {
		event, err := scanDriftEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, event)
	}

	return events, total, rows.Err()
}

func (r *DriftRepository) CountUnresolved(ctx context.Context, environmentID int64) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM drift_events WHERE environment_id = ? AND resolved_at IS NULL", environmentID).Scan(&count)
	if err != nil {
		return 0, errors.DatabaseError("Failed to count unresolved drift events", err)
	}
	return count, nil
}

func (r *DriftRepository) Summarize(ctx context.Context, environmentID int64) (*drift.Summary, error) {
	query := `SELECT
		COUNT(*),
		COUNT(resolved_at),
		COUNT(*) - COUNT(resolved_at),
		COALESCE(AVG(CASE WHEN resolved_at IS NULL THEN severity_score END), 0)
		FROM drift_events WHERE environment_id = ?`

	var s drift.Summary
	err := r.db.QueryRowContext(ctx, query, environmentID).Scan(&s.Total, &s.Resolved, &s.Unresolved, &s.AvgSeverity)
	if err != nil {
		return nil, errors.DatabaseError("Failed to summarize drift events", err)
	}

	return &s, nil
}

func (r *DriftRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("Failed to start transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM drift_changes WHERE event_id = ?", id); err != nil {
		return errors.DatabaseError("Failed to delete drift changes", err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM drift_events WHERE id = ?", id)
	if err != nil {
		return errors.DatabaseError("Failed to delete drift event", err)
	}

	rows, err := result.RowsAffected()
	if err != nil || rows == 0 {
		return errors.NotFound("Drift event")
	}

	return tx.Commit()
}

func insertChanges(ctx context.Context, tx *sql.Tx, eventID int64, changes []*drift.Change) error {
	query := `INSERT INTO drift_changes (event_id, property_path, declared_value, actual_value, change_type, is_security_critical) VALUES (?, ?, ?, ?, ?, ?)`

	for _, c := range changes {
		declared, err := encodeValue(c.DeclaredValue)
		if err != nil {
			return errors.DatabaseError("Failed to encode declared value", err)
		}
		actual, err := encodeValue(c.ActualValue)
		if err != nil {
			return errors.DatabaseError("Failed to encode actual value", err)
		}

		if _, err := tx.ExecContext(ctx, query, eventID, c.PropertyPath, declared, actual, c.ChangeType, c.IsSecurityCritical); err != nil {
			return errors.DatabaseError("Failed to insert drift change", err)
		}
	}

	return nil
}

func scanDriftEvent(row rowScanner) (*drift.Event, error) {
	var e drift.Event
	var risk, detectedAt, createdAt, updatedAt string
	var resolvedAt sql.NullString

	err := row.Scan(&e.ID, &e.EnvironmentID, &e.ResourceID, &e.DriftType, &e.SeverityScore, &e.ConfidenceScore, &detectedAt, &resolvedAt, &e.ResolutionType, &e.ResolutionNotes, &risk, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to scan drift event", err)
	}

	if err := json.Unmarshal([]byte(risk), &e.RiskAssessment); err != nil {
		return nil, errors.DatabaseError("Failed to decode risk assessment", err)
	}
	e.DetectedAt, _ = time.Parse(time.RFC3339, detectedAt)
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if resolvedAt.Valid {
		t, _ := time.Parse(time.RFC3339, resolvedAt.String)
		e.ResolvedAt = &t
	}

	return &e, nil
}

// encodeValue stores change values as JSON; nil stays NULL so removed and
// added changes round-trip cleanly
func encodeValue(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func decodeValue(s sql.NullString) interface{} {
	if !s.Valid {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal([]byte(s.String), &v); err != nil {
		return s.String
	}
	return v
}
