package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/agriquest/agriquest-api/internal/models"
	"github.com/agriquest/agriquest-api/internal/repository"
	appErrors "github.com/agriquest/agriquest-api/pkg/errors"
)

type enrollmentRepository interface {
	ExistsActive(ctx context.Context, studentID, subjectID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindPending(ctx context.Context, studentID, subjectID string) (*models.Enrollment, error)
	FindActive(ctx context.Context, studentID, subjectID string) (*models.Enrollment, error)
	SetStatus(ctx context.Context, id string, from []models.EnrollmentStatus, to models.EnrollmentStatus, approvedAt *time.Time) error
	ListBySubject(ctx context.Context, subjectID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error)
	ListPendingForTeacher(ctx context.Context, teacherID string) ([]models.EnrollmentDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	ListAll(ctx context.Context) ([]models.EnrollmentDetail, error)
}

type enrollmentInvitationRepository interface {
	HasAccepted(ctx context.Context, subjectID, teacherID string) (bool, error)
	ListAcceptedTeacherIDs(ctx context.Context, subjectID string) ([]string, error)
}

type enrollmentUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type enrollmentSubjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// EnrollmentService runs the student enrollment workflow.
type EnrollmentService struct {
	enrollments enrollmentRepository
	invitations enrollmentInvitationRepository
	users       enrollmentUserRepository
	subjects    enrollmentSubjectRepository
	notifier    Notifier
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(enrollments enrollmentRepository, invitations enrollmentInvitationRepository, users enrollmentUserRepository, subjects enrollmentSubjectRepository, notifier Notifier, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		enrollments: enrollments,
		invitations: invitations,
		users:       users,
		subjects:    subjects,
		notifier:    notifier,
		validator:   validate,
		logger:      logger,
	}
}

// Request creates a pending enrollment for the acting student.
func (s *EnrollmentService) Request(ctx context.Context, actor models.Actor, subjectID string) (*models.Enrollment, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can request enrollment")
	}
	if subjectID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject id required")
	}

	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	exists, err := s.enrollments.ExistsActive(ctx, actor.ID, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an enrollment for this subject already exists")
	}

	enrollment := &models.Enrollment{
		StudentID: actor.ID,
		SubjectID: subjectID,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an enrollment for this subject already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	studentName := actor.ID
	if student, err := s.users.FindByID(ctx, actor.ID); err == nil {
		studentName = student.FullName
	}
	teacherIDs, err := s.invitations.ListAcceptedTeacherIDs(ctx, subjectID)
	if err != nil {
		s.logger.Warn("failed to list subject teachers for notification",
			zap.String("subject_id", subjectID), zap.Error(err))
	}
	for _, teacherID := range teacherIDs {
		s.notifier.Emit(ctx, teacherID, models.NotificationTypeInfo,
			fmt.Sprintf("Enrollment Request: %s", subject.Name),
			fmt.Sprintf("%s requested enrollment in %s.", studentName, subject.Name))
	}

	s.logger.Info("enrollment requested",
		zap.String("student_id", actor.ID),
		zap.String("subject_id", subjectID))
	return enrollment, nil
}

// DecideRequest is the payload for approving or rejecting an enrollment request.
type DecideRequest struct {
	StudentID string `json:"student_id" validate:"required,uuid4"`
	SubjectID string `json:"subject_id" validate:"required,uuid4"`
	Approve   bool   `json:"approve"`
}

// Decide lets a teacher with an accepted invitation approve or reject a
// pending enrollment request on their subject.
func (s *EnrollmentService) Decide(ctx context.Context, actor models.Actor, req DecideRequest) (*models.Enrollment, error) {
	if actor.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can decide enrollment requests")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	teaches, err := s.invitations.HasAccepted(ctx, req.SubjectID, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject assignment")
	}
	if !teaches {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not teach this subject")
	}

	enrollment, err := s.enrollments.FindPending(ctx, req.StudentID, req.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no pending enrollment request")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	status := models.EnrollmentStatusRejected
	var approvedAt *time.Time
	if req.Approve {
		status = models.EnrollmentStatusApproved
		now := time.Now().UTC()
		approvedAt = &now
	}
	from := []models.EnrollmentStatus{models.EnrollmentStatusPending}
	if err := s.enrollments.SetStatus(ctx, enrollment.ID, from, status, approvedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no pending enrollment request")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}
	enrollment.Status = status
	enrollment.ApprovedAt = approvedAt

	subjectName := req.SubjectID
	if subject, err := s.subjects.FindByID(ctx, req.SubjectID); err == nil {
		subjectName = subject.Name
	}
	if req.Approve {
		s.notifier.Emit(ctx, req.StudentID, models.NotificationTypeSuccess,
			"Enrollment Approved",
			fmt.Sprintf("Your enrollment in %s has been approved.", subjectName))
	} else {
		s.notifier.Emit(ctx, req.StudentID, models.NotificationTypeWarning,
			"Enrollment Rejected",
			fmt.Sprintf("Your enrollment request for %s was rejected.", subjectName))
	}
	return enrollment, nil
}

// Withdraw lets a student leave a subject they have a pending or approved
// enrollment in.
func (s *EnrollmentService) Withdraw(ctx context.Context, actor models.Actor, subjectID string) error {
	if actor.Role != models.RoleStudent {
		return appErrors.Clone(appErrors.ErrForbidden, "only students can withdraw enrollment")
	}
	if subjectID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "subject id required")
	}

	enrollment, err := s.enrollments.FindActive(ctx, actor.ID, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "no enrollment for this subject")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	from := []models.EnrollmentStatus{models.EnrollmentStatusPending, models.EnrollmentStatusApproved}
	if err := s.enrollments.SetStatus(ctx, enrollment.ID, from, models.EnrollmentStatusWithdrawn, nil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "no enrollment for this subject")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw enrollment")
	}
	return nil
}

// RemoveStudent lets a teacher withdraw an approved student from their subject.
func (s *EnrollmentService) RemoveStudent(ctx context.Context, actor models.Actor, studentID, subjectID string) error {
	if actor.Role != models.RoleTeacher {
		return appErrors.Clone(appErrors.ErrForbidden, "only teachers can remove students")
	}
	teaches, err := s.invitations.HasAccepted(ctx, subjectID, actor.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject assignment")
	}
	if !teaches {
		return appErrors.Clone(appErrors.ErrForbidden, "you do not teach this subject")
	}

	enrollment, err := s.enrollments.FindActive(ctx, studentID, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student is not enrolled in this subject")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusApproved {
		return appErrors.Clone(appErrors.ErrNotFound, "student is not enrolled in this subject")
	}

	from := []models.EnrollmentStatus{models.EnrollmentStatusApproved}
	if err := s.enrollments.SetStatus(ctx, enrollment.ID, from, models.EnrollmentStatusWithdrawn, nil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student is not enrolled in this subject")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove student")
	}

	subjectName := subjectID
	if subject, err := s.subjects.FindByID(ctx, subjectID); err == nil {
		subjectName = subject.Name
	}
	s.notifier.Emit(ctx, studentID, models.NotificationTypeWarning,
		"Removed from Subject",
		fmt.Sprintf("You have been removed from %s by the teacher.", subjectName))
	return nil
}

// PendingForTeacher returns pending requests across the teacher's accepted subjects.
func (s *EnrollmentService) PendingForTeacher(ctx context.Context, actor models.Actor) ([]models.EnrollmentDetail, error) {
	if actor.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teacher access required")
	}
	enrollments, err := s.enrollments.ListPendingForTeacher(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollment requests")
	}
	return enrollments, nil
}

// ListForStudent returns the acting student's own enrollments.
func (s *EnrollmentService) ListForStudent(ctx context.Context, actor models.Actor) ([]models.EnrollmentDetail, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student access required")
	}
	enrollments, err := s.enrollments.ListByStudent(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// StudentsForSubject returns approved students on a subject. Teachers must
// hold an accepted invitation; admins see any subject.
func (s *EnrollmentService) StudentsForSubject(ctx context.Context, actor models.Actor, subjectID string) ([]models.EnrollmentDetail, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleTeacher:
		teaches, err := s.invitations.HasAccepted(ctx, subjectID, actor.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject assignment")
		}
		if !teaches {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not teach this subject")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teacher or admin access required")
	}

	students, err := s.enrollments.ListBySubject(ctx, subjectID, models.EnrollmentStatusApproved)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

// ListAll returns every enrollment request for the admin overview.
func (s *EnrollmentService) ListAll(ctx context.Context, actor models.Actor) ([]models.EnrollmentDetail, error) {
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin access required")
	}
	enrollments, err := s.enrollments.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}
