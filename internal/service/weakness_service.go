package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/agriquest/agriquest-api/internal/models"
	appErrors "github.com/agriquest/agriquest-api/pkg/errors"
)

type weaknessRepository interface {
	Create(ctx context.Context, w *models.Weakness) error
	ListByUser(ctx context.Context, userID, subjectID string) ([]models.WeaknessDetail, error)
	ListBySubject(ctx context.Context, subjectID string) ([]models.WeaknessDetail, error)
	Stats(ctx context.Context, userID string) (*models.WeaknessStats, error)
	Delete(ctx context.Context, id, userID string) error
}

type weaknessInvitationRepository interface {
	HasAccepted(ctx context.Context, subjectID, teacherID string) (bool, error)
}

// WeaknessService tracks student weak areas.
type WeaknessService struct {
	repo        weaknessRepository
	invitations weaknessInvitationRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewWeaknessService constructs the weakness service.
func NewWeaknessService(repo weaknessRepository, invitations weaknessInvitationRepository, validate *validator.Validate, logger *zap.Logger) *WeaknessService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeaknessService{repo: repo, invitations: invitations, validator: validate, logger: logger}
}

// WeaknessRequest is the self-report payload.
type WeaknessRequest struct {
	SubjectID    string  `json:"subject_id" validate:"required,uuid4"`
	WeaknessType string  `json:"weakness_type" validate:"required"`
	Description  *string `json:"description" validate:"omitempty,max=1000"`
}

// Report records a self-reported weakness for the acting student.
func (s *WeaknessService) Report(ctx context.Context, actor models.Actor, req WeaknessRequest) (*models.Weakness, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can report weaknesses")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if !models.ValidWeaknessType(req.WeaknessType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown weakness type")
	}

	weakness := &models.Weakness{
		UserID:       actor.ID,
		SubjectID:    req.SubjectID,
		WeaknessType: req.WeaknessType,
		Description:  req.Description,
	}
	if err := s.repo.Create(ctx, weakness); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record weakness")
	}
	return weakness, nil
}

// ListOwn returns the acting student's weaknesses, optionally scoped to a subject.
func (s *WeaknessService) ListOwn(ctx context.Context, actor models.Actor, subjectID string) ([]models.WeaknessDetail, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student access required")
	}
	weaknesses, err := s.repo.ListByUser(ctx, actor.ID, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list weaknesses")
	}
	return weaknesses, nil
}

// ListForSubject returns weaknesses recorded on a subject. Teachers must hold
// an accepted invitation; admins see any subject.
func (s *WeaknessService) ListForSubject(ctx context.Context, actor models.Actor, subjectID string) ([]models.WeaknessDetail, error) {
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

	weaknesses, err := s.repo.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list weaknesses")
	}
	return weaknesses, nil
}

// Stats summarises the acting student's weaknesses per subject.
func (s *WeaknessService) Stats(ctx context.Context, actor models.Actor) (*models.WeaknessStats, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student access required")
	}
	stats, err := s.repo.Stats(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate weaknesses")
	}
	return stats, nil
}

// Delete removes one of the acting student's weaknesses.
func (s *WeaknessService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if actor.Role != models.RoleStudent {
		return appErrors.Clone(appErrors.ErrForbidden, "student access required")
	}
	if err := s.repo.Delete(ctx, id, actor.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "weakness not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete weakness")
	}
	return nil
}

// Types returns the recognised weakness categories.
func (s *WeaknessService) Types() []string {
	return models.WeaknessTypes
}
