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

// InvitationRepository persists subject-teacher invitations.
type InvitationRepository struct {
	db *sqlx.DB
}

// NewInvitationRepository constructs the repository.
func NewInvitationRepository(db *sqlx.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// ExistsLive checks for a pending or accepted invitation for the pair.
func (r *InvitationRepository) ExistsLive(ctx context.Context, subjectID, teacherID string) (bool, error) {
	const query = `SELECT 1 FROM subject_teachers WHERE subject_id = $1 AND teacher_id = $2 AND status IN ('pending', 'accepted') LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, subjectID, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check live invitation: %w", err)
	}
	return true, nil
}

// Create inserts a pending invitation. A concurrent duplicate loses the
// partial-unique-index race and surfaces as ErrDuplicate.
func (r *InvitationRepository) Create(ctx context.Context, invitation *models.Invitation) error {
	if invitation.ID == "" {
		invitation.ID = uuid.NewString()
	}
	if invitation.Status == "" {
		invitation.Status = models.InvitationStatusPending
	}
	if invitation.InvitedAt.IsZero() {
		invitation.InvitedAt = time.Now().UTC()
	}
	const query = `INSERT INTO subject_teachers (id, subject_id, teacher_id, invited_by, status, invited_at)
		VALUES (:id, :subject_id, :teacher_id, :invited_by, :status, :invited_at)`
	if _, err := r.db.NamedExecContext(ctx, query, invitation); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create invitation: %w", err)
	}
	return nil
}

// FindPending returns the pending invitation for the pair, if any.
func (r *InvitationRepository) FindPending(ctx context.Context, subjectID, teacherID string) (*models.Invitation, error) {
	const query = `SELECT id, subject_id, teacher_id, invited_by, status, invited_at, accepted_at
		FROM subject_teachers WHERE subject_id = $1 AND teacher_id = $2 AND status = 'pending'`
	var invitation models.Invitation
	if err := r.db.GetContext(ctx, &invitation, query, subjectID, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find pending invitation: %w", err)
	}
	return &invitation, nil
}

// SetStatus transitions a pending invitation to accepted or rejected. The
// status guard in the WHERE clause makes the transition race-safe: only one
// caller observes an affected row.
func (r *InvitationRepository) SetStatus(ctx context.Context, id string, status models.InvitationStatus, acceptedAt *time.Time) error {
	const query = `UPDATE subject_teachers SET status = $1, accepted_at = $2 WHERE id = $3 AND status = 'pending'`
	result, err := r.db.ExecContext(ctx, query, status, acceptedAt, id)
	if err != nil {
		return fmt.Errorf("set invitation status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check updated invitation rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// HasAccepted reports whether the teacher holds an accepted invitation on the subject.
func (r *InvitationRepository) HasAccepted(ctx context.Context, subjectID, teacherID string) (bool, error) {
	const query = `SELECT 1 FROM subject_teachers WHERE subject_id = $1 AND teacher_id = $2 AND status = 'accepted' LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, subjectID, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check accepted invitation: %w", err)
	}
	return true, nil
}

// ListPendingForTeacher returns pending invitations addressed to the teacher.
func (r *InvitationRepository) ListPendingForTeacher(ctx context.Context, teacherID string) ([]models.InvitationDetail, error) {
	const query = `
SELECT st.id, st.subject_id, st.teacher_id, st.invited_by, st.status, st.invited_at, st.accepted_at,
       s.name AS subject_name, u.username AS teacher_name, u.full_name AS teacher_full_name
FROM subject_teachers st
JOIN subjects s ON s.id = st.subject_id
JOIN users u ON u.id = st.teacher_id
WHERE st.teacher_id = $1 AND st.status = 'pending'
ORDER BY st.invited_at DESC`
	var invitations []models.InvitationDetail
	if err := r.db.SelectContext(ctx, &invitations, query, teacherID); err != nil {
		return nil, fmt.Errorf("list pending invitations: %w", err)
	}
	return invitations, nil
}

// ListBySubject returns every invitation on a subject.
func (r *InvitationRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.InvitationDetail, error) {
	const query = `
SELECT st.id, st.subject_id, st.teacher_id, st.invited_by, st.status, st.invited_at, st.accepted_at,
       s.name AS subject_name, u.username AS teacher_name, u.full_name AS teacher_full_name
FROM subject_teachers st
JOIN subjects s ON s.id = st.subject_id
JOIN users u ON u.id = st.teacher_id
WHERE st.subject_id = $1
ORDER BY st.status, u.full_name`
	var invitations []models.InvitationDetail
	if err := r.db.SelectContext(ctx, &invitations, query, subjectID); err != nil {
		return nil, fmt.Errorf("list subject invitations: %w", err)
	}
	return invitations, nil
}

// ListAll returns every invitation, newest first, for the admin overview.
func (r *InvitationRepository) ListAll(ctx context.Context) ([]models.InvitationDetail, error) {
	const query = `
SELECT st.id, st.subject_id, st.teacher_id, st.invited_by, st.status, st.invited_at, st.accepted_at,
       s.name AS subject_name, u.username AS teacher_name, u.full_name AS teacher_full_name
FROM subject_teachers st
JOIN subjects s ON s.id = st.subject_id
JOIN users u ON u.id = st.teacher_id
ORDER BY st.invited_at DESC`
	var invitations []models.InvitationDetail
	if err := r.db.SelectContext(ctx, &invitations, query); err != nil {
		return nil, fmt.Errorf("list all invitations: %w", err)
	}
	return invitations, nil
}

// ListAcceptedTeacherIDs returns ids of teachers with an accepted invitation on the subject.
func (r *InvitationRepository) ListAcceptedTeacherIDs(ctx context.Context, subjectID string) ([]string, error) {
	const query = `SELECT teacher_id FROM subject_teachers WHERE subject_id = $1 AND status = 'accepted'`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, subjectID); err != nil {
		return nil, fmt.Errorf("list accepted teacher ids: %w", err)
	}
	return ids, nil
}
