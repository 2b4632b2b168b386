package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/agriquest/agriquest-api/internal/models"
)

// WeaknessRepository persists weakness records.
type WeaknessRepository struct {
	db *sqlx.DB
}

// NewWeaknessRepository constructs the repository.
func NewWeaknessRepository(db *sqlx.DB) *WeaknessRepository {
	return &WeaknessRepository{db: db}
}

// Create inserts a weakness record.
func (r *WeaknessRepository) Create(ctx context.Context, w *models.Weakness) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO weaknesses (id, user_id, subject_id, weakness_type, description, created_at)
		VALUES (:id, :user_id, :subject_id, :weakness_type, :description, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, w); err != nil {
		return fmt.Errorf("create weakness: %w", err)
	}
	return nil
}

// ListByUser returns weaknesses for a student, optionally scoped to a subject.
func (r *WeaknessRepository) ListByUser(ctx context.Context, userID, subjectID string) ([]models.WeaknessDetail, error) {
	query := `
SELECT w.id, w.user_id, w.subject_id, w.weakness_type, w.description, w.created_at,
       s.name AS subject_name
FROM weaknesses w
JOIN subjects s ON s.id = w.subject_id
WHERE w.user_id = $1`
	args := []interface{}{userID}
	if subjectID != "" {
		query += ` AND w.subject_id = $2`
		args = append(args, subjectID)
	}
	query += ` ORDER BY w.created_at DESC`

	var weaknesses []models.WeaknessDetail
	if err := r.db.SelectContext(ctx, &weaknesses, query, args...); err != nil {
		return nil, fmt.Errorf("list user weaknesses: %w", err)
	}
	return weaknesses, nil
}

// ListBySubject returns weaknesses recorded against a subject.
func (r *WeaknessRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.WeaknessDetail, error) {
	const query = `
SELECT w.id, w.user_id, w.subject_id, w.weakness_type, w.description, w.created_at,
       s.name AS subject_name
FROM weaknesses w
JOIN subjects s ON s.id = w.subject_id
WHERE w.subject_id = $1
ORDER BY w.created_at DESC`
	var weaknesses []models.WeaknessDetail
	if err := r.db.SelectContext(ctx, &weaknesses, query, subjectID); err != nil {
		return nil, fmt.Errorf("list subject weaknesses: %w", err)
	}
	return weaknesses, nil
}

// Stats aggregates a student's weaknesses per subject.
func (r *WeaknessRepository) Stats(ctx context.Context, userID string) (*models.WeaknessStats, error) {
	const query = `
SELECT w.subject_id, s.name AS subject_name, COUNT(*) AS count
FROM weaknesses w
JOIN subjects s ON s.id = w.subject_id
WHERE w.user_id = $1
GROUP BY w.subject_id, s.name
ORDER BY count DESC`
	var bySubject []models.WeaknessSubjectCount
	if err := r.db.SelectContext(ctx, &bySubject, query, userID); err != nil {
		return nil, fmt.Errorf("weakness stats: %w", err)
	}
	total := 0
	for _, row := range bySubject {
		total += row.Count
	}
	return &models.WeaknessStats{Total: total, BySubject: bySubject}, nil
}

// Delete removes a weakness record, verifying ownership.
func (r *WeaknessRepository) Delete(ctx context.Context, id, userID string) error {
	const query = `DELETE FROM weaknesses WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete weakness: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted weakness rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
