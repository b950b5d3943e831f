package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/driftguard/driftguard/internal/domain/recommendation"
	"github.com/driftguard/driftguard/internal/pkg/errors"
)

type RecommendationRepository struct {
	db *sql.DB
}

func NewRecommendationRepository(db *sql.DB) recommendation.Repository {
	return &RecommendationRepository{db: db}
}

const recommendationColumns = `id, event_id, type, priority, confidence_score, title, rationale, steps, estimated_effort, recommended_by, created_at, expires_at, implemented_at, result, is_implemented, is_expired`

func (r *RecommendationRepository) Create(ctx context.Context, rec *recommendation.Recommendation) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	steps, err := json.Marshal(rec.Steps)
	if err != nil {
		return 0, errors.DatabaseError("Failed to encode implementation steps", err)
	}

	var expiresAt interface{}
	if rec.ExpiresAt != nil {
		expiresAt = rec.ExpiresAt.Format(time.RFC3339)
	}

	query := `INSERT INTO recommendations (event_id, type, priority, confidence_score, title, rationale, steps, estimated_effort, recommended_by, created_at, expires_at, is_implemented, is_expired) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0)`

	result, err := r.db.ExecContext(ctx, query, rec.EventID, rec.Type, rec.Priority, rec.ConfidenceScore, rec.Title, rec.Rationale, string(steps), rec.EstimatedEffort, rec.RecommendedBy, rec.CreatedAt.Format(time.RFC3339), expiresAt)
	if err != nil {
		return 0, errors.DatabaseError("Failed to create recommendation", err)
	}

	return result.LastInsertId()
}

func (r *RecommendationRepository) GetByID(ctx context.Context, id int64) (*recommendation.Recommendation, error) {
	query := `SELECT ` + recommendationColumns + ` FROM recommendations WHERE id = ?`

	rec, err := scanRecommendation(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Recommendation")
	}
	return rec, err
}

func (r *RecommendationRepository) Update(ctx context.Context, rec *recommendation.Recommendation) error {
	steps, err := json.Marshal(rec.Steps)
	if err != nil {
		return errors.DatabaseError("Failed to encode implementation steps", err)
	}

	var result interface{}
	if rec.Result != nil {
		raw, err := json.Marshal(rec.Result)
		if err != nil {
			return errors.DatabaseError("Failed to encode implementation result", err)
		}
		result = string(raw)
	}

	var expiresAt, implementedAt interface{}
	if rec.ExpiresAt != nil {
		expiresAt = rec.ExpiresAt.Format(time.RFC3339)
	}
	if rec.ImplementedAt != nil {
		implementedAt = rec.ImplementedAt.Format(time.RFC3339)
	}

	query := `UPDATE recommendations SET type = ?, priority = ?, confidence_score = ?, title = ?, rationale = ?, steps = ?, estimated_effort = ?, expires_at = ?, implemented_at = ?, result = ?, is_implemented = ?, is_expired = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query, rec.Type, rec.Priority, rec.ConfidenceScore, rec.Title, rec.Rationale, string(steps), rec.EstimatedEffort, expiresAt, implementedAt, result, rec.IsImplemented, rec.IsExpired, rec.ID)
	if err != nil {
		return errors.DatabaseError("Failed to update recommendation", err)
	}

	rows, err := res.RowsAffected()
	if err != nil || rows == 0 {
		return errors.NotFound("Recommendation")
	}

	return nil
}

func (r *RecommendationRepository) List(ctx context.Context, filter recommendation.Filter, limit, offset int) ([]*recommendation.Recommendation, int64, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if filter.EventID != 0 {
		where = append(where, "event_id = ?")
		args = append(args, filter.EventID)
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, filter.Priority)
	}
	if filter.ActiveOnly {
		where = append(where, "is_implemented = 0 AND is_expired = 0")
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	err := r.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM recommendations WHERE %s", whereClause), args...).Scan(&total)
	if err != nil {
		return nil, 0, errors.DatabaseError("Failed to count recommendations", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM recommendations WHERE %s ORDER BY confidence_score DESC, id DESC LIMIT ? OFFSET ?`, recommendationColumns, whereClause)

	args = append(args, limit, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.DatabaseError("Failed to list recommendations", err)
	}
	defer rows.Close()

	var recs []*recommendation.Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, 0, err
		}
		recs = append(recs, rec)
	}

	return recs, total, rows.Err()
}

func (r *RecommendationRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE recommendations SET is_expired = 1 WHERE is_implemented = 0 AND is_expired = 0 AND expires_at IS NOT NULL AND expires_at <= ?`

	result, err := r.db.ExecContext(ctx, query, now.Format(time.RFC3339))
	if err != nil {
		return 0, errors.DatabaseError("Failed to expire recommendations", err)
	}

	return result.RowsAffected()
}

func (r *RecommendationRepository) AddFeedback(ctx context.Context, fb *recommendation.Feedback) (int64, error) {
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now()
	}

	query := `INSERT INTO recommendation_feedback (recommendation_id, feedback_type, rating, comments, user_id, user_role, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query, fb.RecommendationID, fb.FeedbackType, fb.Rating, fb.Comments, fb.UserID, fb.UserRole, fb.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return 0, errors.DatabaseError("Failed to add recommendation feedback", err)
	}

	return result.LastInsertId()
}

func (r *RecommendationRepository) ListFeedback(ctx context.Context, recommendationID int64) ([]*recommendation.Feedback, error) {
	query := `SELECT id, recommendation_id, feedback_type, rating, comments, user_id, user_role, created_at FROM recommendation_feedback WHERE recommendation_id = ? ORDER BY id DESC`

	rows, err := r.db.QueryContext(ctx, query, recommendationID)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list recommendation feedback", err)
	}
	defer rows.Close()

	var feedback []*recommendation.Feedback
	for rows.Next() {
		var fb recommendation.Feedback
		var createdAt string
		if err := rows.Scan(&fb.ID, &fb.RecommendationID, &fb.FeedbackType, &fb.Rating, &fb.Comments, &fb.UserID, &fb.UserRole, &createdAt); err != nil {
			return nil, errors.DatabaseError("Failed to scan recommendation feedback", err)
		}
		fb.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		feedback = append(feedback, &fb)
	}

	return feedback, rows.Err()
}

func scanRecommendation(row rowScanner) (*recommendation.Recommendation, error) {
	var rec recommendation.Recommendation
	var steps, createdAt string
	var expiresAt, implementedAt, result sql.NullString

	err := row.Scan(&rec.ID, &rec.EventID, &rec.Type, &rec.Priority, &rec.ConfidenceScore, &rec.Title, &rec.Rationale, &steps, &rec.EstimatedEffort, &rec.RecommendedBy, &createdAt, &expiresAt, &implementedAt, &result, &rec.IsImplemented, &rec.IsExpired)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to scan recommendation", err)
	}

	if err := json.Unmarshal([]byte(steps), &rec.Steps); err != nil {
		return nil, errors.DatabaseError("Failed to decode implementation steps", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if expiresAt.Valid {
		t, _ := time.Parse(time.RFC3339, expiresAt.String)
		rec.ExpiresAt = &t
	}
	if implementedAt.Valid {
		t, _ := time.Parse(time.RFC3339, implementedAt.String)
		rec.ImplementedAt = &t
	}
	if result.Valid {
		if err := json.Unmarshal([]byte(result.String), &rec.Result); err != nil {
			return nil, errors.DatabaseError("Failed to decode implementation result", err)
		}
	}

	return &rec, nil
}
