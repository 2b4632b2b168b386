package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/agriquest/agriquest-api/internal/models"
)

// EnrollmentRepository persists student-subject enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ExistsActive checks for a pending or approved enrollment for the pair.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, studentID, subjectID string) (bool, error) {
	const query = `SELECT 1 FROM student_subjects WHERE student_id = $1 AND subject_id = $2 AND status IN ('pending', 'approved') LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, subjectID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// IsApproved reports whether the student holds an approved enrollment on the subject.
func (r *EnrollmentRepository) IsApproved(ctx context.Context, studentID, subjectID string) (bool, error) {
	const query = `SELECT 1 FROM student_subjects WHERE student_id = $1 AND subject_id = $2 AND status = 'approved' LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, subjectID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check approved enrollment: %w", err)
	}
	return true, nil
}

// Create inserts a pending enrollment. A concurrent duplicate loses the
// partial-unique-index race and surfaces as ErrDuplicate.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusPending
	}
	if enrollment.RequestedAt.IsZero() {
		enrollment.RequestedAt = time.Now().UTC()
	}
	const query = `INSERT INTO student_subjects (id, student_id, subject_id, status, requested_at)
		VALUES (:id, :student_id, :subject_id, :status, :requested_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// FindPending returns the pending enrollment for the pair, if any.
func (r *EnrollmentRepository) FindPending(ctx context.Context, studentID, subjectID string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, subject_id, status, requested_at, approved_at
		FROM student_subjects WHERE student_id = $1 AND subject_id = $2 AND status = 'pending'`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, subjectID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find pending enrollment: %w", err)
	}
	return &enrollment, nil
}

// FindActive returns the pending or approved enrollment for the pair, if any.
func (r *EnrollmentRepository) FindActive(ctx context.Context, studentID, subjectID string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, subject_id, status, requested_at, approved_at
		FROM student_subjects WHERE student_id = $1 AND subject_id = $2 AND status IN ('pending', 'approved')`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, subjectID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find active enrollment: %w", err)
	}
	return &enrollment, nil
}

// SetStatus transitions an enrollment out of the expected status. The guard
// in the WHERE clause keeps the transition race-safe. A nil approvedAt leaves
// any existing approval timestamp in place, so a withdrawn enrollment keeps
// the record of when it was approved.
func (r *EnrollmentRepository) SetStatus(ctx context.Context, id string, from []models.EnrollmentStatus, to models.EnrollmentStatus, approvedAt *time.Time) error {
	if len(from) == 0 {
		return fmt.Errorf("set enrollment status: empty source status set")
	}
	placeholders := make([]string, len(from))
	args := []interface{}{to, approvedAt, id}
	for i, status := range from {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, status)
	}
	query := fmt.Sprintf(`UPDATE student_subjects SET status = $1, approved_at = COALESCE($2, approved_at) WHERE id = $3 AND status IN (%s)`,
		strings.Join(placeholders, ", "))
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set enrollment status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check updated enrollment rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListBySubject returns enrollments on a subject with student names.
func (r *EnrollmentRepository) ListBySubject(ctx context.Context, subjectID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error) {
	query := `
SELECT ss.id, ss.student_id, ss.subject_id, ss.status, ss.requested_at, ss.approved_at,
       u.username AS student_name, u.full_name AS student_full_name, s.name AS subject_name
FROM student_subjects ss
JOIN users u ON u.id = ss.student_id
JOIN subjects s ON s.id = ss.subject_id
WHERE ss.subject_id = $1`
	args := []interface{}{subjectID}
	if status != "" {
		query += ` AND ss.status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY ss.status, u.full_name`

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, fmt.Errorf("list subject enrollments: %w", err)
	}
	return enrollments, nil
}

// ListPendingForTeacher returns pending requests across the teacher's accepted subjects.
func (r *EnrollmentRepository) ListPendingForTeacher(ctx context.Context, teacherID string) ([]models.EnrollmentDetail, error) {
	const query = `
SELECT ss.id, ss.student_id, ss.subject_id, ss.status, ss.requested_at, ss.approved_at,
       u.username AS student_name, u.full_name AS student_full_name, s.name AS subject_name
FROM student_subjects ss
JOIN users u ON u.id = ss.student_id
JOIN subjects s ON s.id = ss.subject_id
JOIN subject_teachers st ON st.subject_id = ss.subject_id
WHERE st.teacher_id = $1 AND st.status = 'accepted' AND ss.status = 'pending'
ORDER BY ss.requested_at DESC`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, teacherID); err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return enrollments, nil
}

// ListByStudent returns every enrollment belonging to a student.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	const query = `
SELECT ss.id, ss.student_id, ss.subject_id, ss.status, ss.requested_at, ss.approved_at,
       u.username AS student_name, u.full_name AS student_full_name, s.name AS subject_name
FROM student_subjects ss
JOIN users u ON u.id = ss.student_id
JOIN subjects s ON s.id = ss.subject_id
WHERE ss.student_id = $1
ORDER BY ss.requested_at DESC`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// ListAll returns every enrollment request, newest first, for the admin overview.
func (r *EnrollmentRepository) ListAll(ctx context.Context) ([]models.EnrollmentDetail, error) {
	const query = `
SELECT ss.id, ss.student_id, ss.subject_id, ss.status, ss.requested_at, ss.approved_at,
       u.username AS student_name, u.full_name AS student_full_name, s.name AS subject_name
FROM student_subjects ss
JOIN users u ON u.id = ss.student_id
JOIN subjects s ON s.id = ss.subject_id
ORDER BY ss.requested_at DESC`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query); err != nil {
		return nil, fmt.Errorf("list all enrollments: %w", err)
	}
	return enrollments, nil
}
