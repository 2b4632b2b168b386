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

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.SubjectDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, id, name, description string) error
	Delete(ctx context.Context, id string) error
	CountQuizzes(ctx context.Context, id string) (int, error)
	ListApprovedForStudent(ctx context.Context, studentID string) ([]models.Subject, error)
	ListAcceptedForTeacher(ctx context.Context, teacherID string) ([]models.Subject, error)
}

type subjectListCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

const subjectListCacheKey = "subjects:all"

// SubjectService manages subjects and their role-scoped projections.
type SubjectService struct {
	repo      subjectRepository
	cache     subjectListCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs the subject service. The cache may be nil.
func NewSubjectService(repo subjectRepository, cache subjectListCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &SubjectService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// List returns subjects matching the filter. The unfiltered first page is
// cached; filtered views always hit the database.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.SubjectDetail, *models.Pagination, error) {
	cacheable := s.cache != nil && filter.Search == "" && filter.Page <= 1 && filter.SortBy == ""
	if cacheable {
		var cached struct {
			Subjects []models.SubjectDetail `json:"subjects"`
			Total    int                    `json:"total"`
		}
		if err := s.cache.Get(ctx, subjectListCacheKey, &cached); err == nil {
			return cached.Subjects, &models.Pagination{Page: 1, PageSize: clampPageSize(filter.PageSize), TotalCount: cached.Total}, nil
		} else if !errors.Is(err, repository.ErrCacheMiss) {
			s.logger.Warn("subject list cache read failed", zap.Error(err))
		}
	}

	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}

	if cacheable {
		payload := struct {
			Subjects []models.SubjectDetail `json:"subjects"`
			Total    int                    `json:"total"`
		}{Subjects: subjects, Total: total}
		if err := s.cache.Set(ctx, subjectListCacheKey, payload, s.cacheTTL); err != nil {
			s.logger.Warn("subject list cache write failed", zap.Error(err))
		}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	return subjects, &models.Pagination{Page: page, PageSize: clampPageSize(filter.PageSize), TotalCount: total}, nil
}

func clampPageSize(size int) int {
	if size <= 0 || size > 100 {
		return 20
	}
	return size
}

// Get returns a single subject.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

// SubjectRequest carries subject create/update fields.
type SubjectRequest struct {
	Name        string  `json:"name" validate:"required,min=2,max=100"`
	Code        *string `json:"code" validate:"omitempty,max=20"`
	Description string  `json:"description" validate:"max=1000"`
}

// Create adds a subject, for admins.
func (s *SubjectService) Create(ctx context.Context, actor models.Actor, req SubjectRequest) (*models.Subject, error) {
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin access required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	createdBy := actor.ID
	subject := &models.Subject{
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
		CreatedBy:   &createdBy,
	}
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	s.invalidateList(ctx)
	return subject, nil
}

// Update edits name and description, for admins.
func (s *SubjectService) Update(ctx context.Context, actor models.Actor, id string, req SubjectRequest) (*models.Subject, error) {
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin access required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if err := s.repo.Update(ctx, id, req.Name, req.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	s.invalidateList(ctx)
	return s.Get(ctx, id)
}

// Delete removes a subject, for admins. Blocked while quizzes reference it.
func (s *SubjectService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "admin access required")
	}
	quizzes, err := s.repo.CountQuizzes(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject quizzes")
	}
	if quizzes > 0 {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("subject has %d quizzes and cannot be deleted", quizzes))
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	s.invalidateList(ctx)
	return nil
}

// ForStudent returns subjects the acting student is approved in.
func (s *SubjectService) ForStudent(ctx context.Context, actor models.Actor) ([]models.Subject, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student access required")
	}
	subjects, err := s.repo.ListApprovedForStudent(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}

// ForTeacher returns subjects the acting teacher holds an accepted invitation on.
func (s *SubjectService) ForTeacher(ctx context.Context, actor models.Actor) ([]models.Subject, error) {
	if actor.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teacher access required")
	}
	subjects, err := s.repo.ListAcceptedForTeacher(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}

func (s *SubjectService) invalidateList(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, subjectListCacheKey); err != nil {
		s.logger.Warn("subject list cache invalidation failed", zap.Error(err))
	}
}
