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

type invitationRepository interface {
	ExistsLive(ctx context.Context, subjectID, teacherID string) (bool, error)
	Create(ctx context.Context, invitation *models.Invitation) error
	FindPending(ctx context.Context, subjectID, teacherID string) (*models.Invitation, error)
	SetStatus(ctx context.Context, id string, status models.InvitationStatus, acceptedAt *time.Time) error
	HasAccepted(ctx context.Context, subjectID, teacherID string) (bool, error)
	ListPendingForTeacher(ctx context.Context, teacherID string) ([]models.InvitationDetail, error)
	ListBySubject(ctx context.Context, subjectID string) ([]models.InvitationDetail, error)
	ListAll(ctx context.Context) ([]models.InvitationDetail, error)
}

type invitationUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type invitationSubjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// InvitationService runs the admin-to-teacher invitation workflow.
type InvitationService struct {
	invitations invitationRepository
	users       invitationUserRepository
	subjects    invitationSubjectRepository
	notifier    Notifier
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewInvitationService constructs the invitation service.
func NewInvitationService(invitations invitationRepository, users invitationUserRepository, subjects invitationSubjectRepository, notifier Notifier, validate *validator.Validate, logger *zap.Logger) *InvitationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvitationService{
		invitations: invitations,
		users:       users,
		subjects:    subjects,
		notifier:    notifier,
		validator:   validate,
		logger:      logger,
	}
}

// InviteRequest is the payload for inviting a teacher to a subject.
type InviteRequest struct {
	SubjectID string `json:"subject_id" validate:"required,uuid4"`
	TeacherID string `json:"teacher_id" validate:"required,uuid4"`
}

// Invite creates a pending invitation from an admin to a teacher.
func (s *InvitationService) Invite(ctx context.Context, actor models.Actor, req InviteRequest) (*models.Invitation, error) {
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can invite teachers")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	teacher, err := s.users.FindByID(ctx, req.TeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if teacher.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user is not a teacher")
	}
	if !teacher.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher account is inactive")
	}

	exists, err := s.invitations.ExistsLive(ctx, req.SubjectID, req.TeacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing invitations")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an invitation for this teacher and subject already exists")
	}

	invitedBy := actor.ID
	invitation := &models.Invitation{
		SubjectID: req.SubjectID,
		TeacherID: req.TeacherID,
		InvitedBy: &invitedBy,
	}
	if err := s.invitations.Create(ctx, invitation); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an invitation for this teacher and subject already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invitation")
	}

	s.notifier.Emit(ctx, teacher.ID, models.NotificationTypeInfo,
		fmt.Sprintf("Subject Invitation: %s", subject.Name),
		fmt.Sprintf("You have been invited to teach %s. Accept or decline the invitation from your dashboard.", subject.Name))

	s.logger.Info("teacher invited",
		zap.String("subject_id", subject.ID),
		zap.String("teacher_id", teacher.ID),
		zap.String("invited_by", actor.ID))
	return invitation, nil
}

// RespondRequest is the payload for answering an invitation.
type RespondRequest struct {
	SubjectID string `json:"subject_id" validate:"required,uuid4"`
	Accept    bool   `json:"accept"`
}

// Respond lets the invited teacher accept or reject a pending invitation.
func (s *InvitationService) Respond(ctx context.Context, actor models.Actor, req RespondRequest) (*models.Invitation, error) {
	if actor.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can respond to invitations")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	invitation, err := s.invitations.FindPending(ctx, req.SubjectID, actor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no pending invitation for this subject")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invitation")
	}

	status := models.InvitationStatusRejected
	var acceptedAt *time.Time
	if req.Accept {
		status = models.InvitationStatusAccepted
		now := time.Now().UTC()
		acceptedAt = &now
	}
	if err := s.invitations.SetStatus(ctx, invitation.ID, status, acceptedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// A concurrent response already consumed the pending row.
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no pending invitation for this subject")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update invitation")
	}
	invitation.Status = status
	invitation.AcceptedAt = acceptedAt

	if invitation.InvitedBy != nil {
		subjectName := req.SubjectID
		if subject, err := s.subjects.FindByID(ctx, req.SubjectID); err == nil {
			subjectName = subject.Name
		}
		teacherName := actor.ID
		if teacher, err := s.users.FindByID(ctx, actor.ID); err == nil {
			teacherName = teacher.FullName
		}
		if req.Accept {
			s.notifier.Emit(ctx, *invitation.InvitedBy, models.NotificationTypeSuccess,
				"Invitation Accepted",
				fmt.Sprintf("%s accepted the invitation to teach %s.", teacherName, subjectName))
		} else {
			s.notifier.Emit(ctx, *invitation.InvitedBy, models.NotificationTypeInfo,
				"Invitation Declined",
				fmt.Sprintf("%s declined the invitation to teach %s.", teacherName, subjectName))
		}
	}
	return invitation, nil
}

// PendingForTeacher returns pending invitations addressed to the acting teacher.
func (s *InvitationService) PendingForTeacher(ctx context.Context, actor models.Actor) ([]models.InvitationDetail, error) {
	if actor.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers have invitations")
	}
	invitations, err := s.invitations.ListPendingForTeacher(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invitations")
	}
	return invitations, nil
}

// ListBySubject returns all invitations on a subject, for admins.
func (s *InvitationService) ListBySubject(ctx context.Context, actor models.Actor, subjectID string) ([]models.InvitationDetail, error) {
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin access required")
	}
	invitations, err := s.invitations.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invitations")
	}
	return invitations, nil
}

// ListAll returns every invitation for the admin overview.
func (s *InvitationService) ListAll(ctx context.Context, actor models.Actor) ([]models.InvitationDetail, error) {
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin access required")
	}
	invitations, err := s.invitations.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invitations")
	}
	return invitations, nil
}
