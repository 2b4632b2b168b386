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

// ResultRepository persists graded quiz submissions.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository constructs the repository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Create inserts a result. The (user_id, quiz_id) uniqueness constraint makes
// a retake surface as ErrDuplicate.
func (r *ResultRepository) Create(ctx context.Context, result *models.Result) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.SubmittedAt.IsZero() {
		result.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO results (id, user_id, quiz_id, score, total_questions, submitted_at)
		VALUES (:id, :user_id, :quiz_id, :score, :total_questions, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, result); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create result: %w", err)
	}
	return nil
}

// FindByUserAndQuiz returns a user's result for a quiz, if any.
func (r *ResultRepository) FindByUserAndQuiz(ctx context.Context, userID, quizID string) (*models.Result, error) {
	const query = `SELECT id, user_id, quiz_id, score, total_questions, submitted_at FROM results WHERE user_id = $1 AND quiz_id = $2`
	var result models.Result
	if err := r.db.GetContext(ctx, &result, query, userID, quizID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find result: %w", err)
	}
	return &result, nil
}

// ListByUser returns a student's results with quiz context, newest first.
func (r *ResultRepository) ListByUser(ctx context.Context, userID string) ([]models.ResultDetail, error) {
	const query = `
SELECT r.id, r.user_id, r.quiz_id, r.score, r.total_questions, r.submitted_at,
       q.title AS quiz_title, s.name AS subject_name
FROM results r
JOIN quizzes q ON q.id = r.quiz_id
JOIN subjects s ON s.id = q.subject_id
WHERE r.user_id = $1
ORDER BY r.submitted_at DESC`
	var results []models.ResultDetail
	if err := r.db.SelectContext(ctx, &results, query, userID); err != nil {
		return nil, fmt.Errorf("list user results: %w", err)
	}
	return results, nil
}

// ListByQuiz returns every submission for a quiz with student names.
func (r *ResultRepository) ListByQuiz(ctx context.Context, quizID string) ([]models.ResultDetail, error) {
	const query = `
SELECT r.id, r.user_id, r.quiz_id, r.score, r.total_questions, r.submitted_at,
       q.title AS quiz_title, s.name AS subject_name, u.full_name AS student_name
FROM results r
JOIN quizzes q ON q.id = r.quiz_id
JOIN subjects s ON s.id = q.subject_id
JOIN users u ON u.id = r.user_id
WHERE r.quiz_id = $1
ORDER BY r.score DESC, r.submitted_at ASC`
	var results []models.ResultDetail
	if err := r.db.SelectContext(ctx, &results, query, quizID); err != nil {
		return nil, fmt.Errorf("list quiz results: %w", err)
	}
	return results, nil
}

// OverallStats aggregates a student's results across all quizzes.
func (r *ResultRepository) OverallStats(ctx context.Context, userID string) (total int, avg, best, worst float64, err error) {
	const query = `
SELECT COUNT(*) AS total,
       COALESCE(AVG(score * 100.0 / NULLIF(total_questions, 0)), 0) AS avg,
       COALESCE(MAX(score * 100.0 / NULLIF(total_questions, 0)), 0) AS best,
       COALESCE(MIN(score * 100.0 / NULLIF(total_questions, 0)), 0) AS worst
FROM results WHERE user_id = $1`
	row := struct {
		Total int     `db:"total"`
		Avg   float64 `db:"avg"`
		Best  float64 `db:"best"`
		Worst float64 `db:"worst"`
	}{}
	if err = r.db.GetContext(ctx, &row, query, userID); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("overall result stats: %w", err)
	}
	return row.Total, row.Avg, row.Best, row.Worst, nil
}

// SubjectStats aggregates a student's results per subject, weakest first.
func (r *ResultRepository) SubjectStats(ctx context.Context, userID string) ([]models.SubjectPerformance, error) {
	const query = `
SELECT s.id AS subject_id, s.name AS subject_name,
       COUNT(*) AS quiz_count,
       AVG(r.score * 100.0 / NULLIF(r.total_questions, 0)) AS average_score
FROM results r
JOIN quizzes q ON q.id = r.quiz_id
JOIN subjects s ON s.id = q.subject_id
WHERE r.user_id = $1
GROUP BY s.id, s.name
ORDER BY average_score ASC`
	var stats []models.SubjectPerformance
	if err := r.db.SelectContext(ctx, &stats, query, userID); err != nil {
		return nil, fmt.Errorf("subject result stats: %w", err)
	}
	return stats, nil
}
