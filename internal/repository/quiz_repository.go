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

// QuizRepository persists quizzes and their questions.
type QuizRepository struct {
	db *sqlx.DB
}

// NewQuizRepository constructs the repository.
func NewQuizRepository(db *sqlx.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// Create inserts a quiz.
func (r *QuizRepository) Create(ctx context.Context, quiz *models.Quiz) error {
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	if quiz.Difficulty == "" {
		quiz.Difficulty = models.QuizDifficultyBeginner
	}
	now := time.Now().UTC()
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = now
	}
	quiz.UpdatedAt = now

	const query = `INSERT INTO quizzes (id, subject_id, creator_id, title, description, difficulty, time_limit, deadline, created_at, updated_at)
		VALUES (:id, :subject_id, :creator_id, :title, :description, :difficulty, :time_limit, :deadline, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, quiz); err != nil {
		return fmt.Errorf("create quiz: %w", err)
	}
	return nil
}

// FindByID returns a quiz by its ID.
func (r *QuizRepository) FindByID(ctx context.Context, id string) (*models.Quiz, error) {
	const query = `SELECT id, subject_id, creator_id, title, description, difficulty, time_limit, deadline, created_at, updated_at
		FROM quizzes WHERE id = $1`
	var quiz models.Quiz
	if err := r.db.GetContext(ctx, &quiz, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find quiz: %w", err)
	}
	return &quiz, nil
}

// ListBySubject returns quizzes for a subject with creator names, newest first.
func (r *QuizRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.QuizDetail, error) {
	const query = `
SELECT q.id, q.subject_id, q.creator_id, q.title, q.description, q.difficulty, q.time_limit, q.deadline, q.created_at, q.updated_at,
       s.name AS subject_name, u.username AS creator_name
FROM quizzes q
JOIN subjects s ON s.id = q.subject_id
JOIN users u ON u.id = q.creator_id
WHERE q.subject_id = $1
ORDER BY q.created_at DESC`
	var quizzes []models.QuizDetail
	if err := r.db.SelectContext(ctx, &quizzes, query, subjectID); err != nil {
		return nil, fmt.Errorf("list subject quizzes: %w", err)
	}
	return quizzes, nil
}

// ListByCreator returns quizzes authored by a teacher, newest first.
func (r *QuizRepository) ListByCreator(ctx context.Context, creatorID string) ([]models.QuizDetail, error) {
	const query = `
SELECT q.id, q.subject_id, q.creator_id, q.title, q.description, q.difficulty, q.time_limit, q.deadline, q.created_at, q.updated_at,
       s.name AS subject_name, u.username AS creator_name
FROM quizzes q
JOIN subjects s ON s.id = q.subject_id
JOIN users u ON u.id = q.creator_id
WHERE q.creator_id = $1
ORDER BY q.created_at DESC`
	var quizzes []models.QuizDetail
	if err := r.db.SelectContext(ctx, &quizzes, query, creatorID); err != nil {
		return nil, fmt.Errorf("list creator quizzes: %w", err)
	}
	return quizzes, nil
}

// Update edits quiz metadata.
func (r *QuizRepository) Update(ctx context.Context, quiz *models.Quiz) error {
	quiz.UpdatedAt = time.Now().UTC()
	const query = `UPDATE quizzes SET title = :title, description = :description, difficulty = :difficulty,
		time_limit = :time_limit, deadline = :deadline, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, quiz)
	if err != nil {
		return fmt.Errorf("update quiz: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check updated quiz rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a quiz; questions and results cascade.
func (r *QuizRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM quizzes WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted quiz rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateQuestion appends a question to a quiz.
func (r *QuizRepository) CreateQuestion(ctx context.Context, question *models.Question) error {
	if question.ID == "" {
		question.ID = uuid.NewString()
	}
	const query = `INSERT INTO questions (id, quiz_id, text, option1, option2, option3, option4, correct_option, explanation, position)
		VALUES (:id, :quiz_id, :text, :option1, :option2, :option3, :option4, :correct_option, :explanation, :position)`
	if _, err := r.db.NamedExecContext(ctx, query, question); err != nil {
		return fmt.Errorf("create question: %w", err)
	}
	return nil
}

// ListQuestions returns a quiz's questions in authoring order.
func (r *QuizRepository) ListQuestions(ctx context.Context, quizID string) ([]models.Question, error) {
	const query = `SELECT id, quiz_id, text, option1, option2, option3, option4, correct_option, explanation, position
		FROM questions WHERE quiz_id = $1 ORDER BY position, id`
	var questions []models.Question
	if err := r.db.SelectContext(ctx, &questions, query, quizID); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return questions, nil
}

// UpdateQuestion edits a question.
func (r *QuizRepository) UpdateQuestion(ctx context.Context, question *models.Question) error {
	const query = `UPDATE questions SET text = :text, option1 = :option1, option2 = :option2, option3 = :option3,
		option4 = :option4, correct_option = :correct_option, explanation = :explanation WHERE id = :id AND quiz_id = :quiz_id`
	result, err := r.db.NamedExecContext(ctx, query, question)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check updated question rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteQuestion removes a question from a quiz.
func (r *QuizRepository) DeleteQuestion(ctx context.Context, id, quizID string) error {
	const query = `DELETE FROM questions WHERE id = $1 AND quiz_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, quizID)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted question rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
