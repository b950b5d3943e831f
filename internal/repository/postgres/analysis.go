package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/driftguard/driftguard/internal/domain/analysis"
	"github.com/driftguard/driftguard/internal/pkg/errors"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) analysis.Repository {
	return &AnalysisRepository{db: db}
}

const analysisColumns = `id, event_id, cause_category, confidence_score, factors, explanation, analyzed_by, analyzed_at, superseded`

func (r *AnalysisRepository) Create(ctx context.Context, a *analysis.CauseAnalysis) (int64, error) {
	if a.AnalyzedAt.IsZero() {
		a.AnalyzedAt = time.Now()
	}

	factors, err := json.Marshal(a.Factors)
	if err != nil {
		return 0, errors.DatabaseError("Failed to encode contributing factors", err)
	}

	query := `INSERT INTO cause_analyses (event_id, cause_category, confidence_score, factors, explanation, analyzed_by, analyzed_at, superseded) VALUES (?, ?, ?, ?, ?, ?, ?, 0)`

	result, err := r.db.ExecContext(ctx, query, a.EventID, a.CauseCategory, a.ConfidenceScore, string(factors), a.Explanation, a.AnalyzedBy, a.AnalyzedAt.Format(time.RFC3339))
	if err != nil {
		return 0, errors.DatabaseError("Failed to create cause analysis", err)
	}

	return result.LastInsertId()
}

func (r *AnalysisRepository) GetByEvent(ctx context.Context, eventID int64) (*analysis.CauseAnalysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM cause_analyses WHERE event_id = ? AND superseded = 0 ORDER BY id DESC LIMIT 1`

	a, err := scanAnalysis(r.db.QueryRowContext(ctx, query, eventID))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Cause analysis")
	}
	return a, err
}

func (r *AnalysisRepository) Supersede(ctx context.Context, eventID int64) error {
	_, err := r.db.ExecContext(ctx, "UPDATE cause_analyses SET superseded = 1 WHERE event_id = ? AND superseded = 0", eventID)
	if err != nil {
		return errors.DatabaseError("Failed to supersede cause analysis", err)
	}
	return nil
}

func (r *AnalysisRepository) ListByEvent(ctx context.Context, eventID int64) ([]*analysis.CauseAnalysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM cause_analyses WHERE event_id = ? ORDER BY id DESC`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list cause analyses", err)
	}
	defer rows.Close()

	var analyses []*analysis.CauseAnalysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}

	return analyses, rows.Err()
}

func scanAnalysis(row rowScanner) (*analysis.CauseAnalysis, error) {
	var a analysis.CauseAnalysis
	var factors, analyzedAt string

	err := row.Scan(&a.ID, &a.EventID, &a.CauseCategory, &a.ConfidenceScore, &factors, &a.Explanation, &a.AnalyzedBy, &analyzedAt, &a.Superseded)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to scan cause analysis", err)
	}

	if err := json.Unmarshal([]byte(factors), &a.Factors); err != nil {
		return nil, errors.DatabaseError("Failed to decode contributing factors", err)
	}
	a.AnalyzedAt, _ = time.Parse(time.RFC3339, analyzedAt)

	return &a, nil
}
