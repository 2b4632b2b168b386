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

type quizRepository interface {
	Create(ctx context.Context, quiz *models.Quiz) error
	FindByID(ctx context.Context, id string) (*models.Quiz, error)
	ListBySubject(ctx context.Context, subjectID string) ([]models.QuizDetail, error)
	ListByCreator(ctx context.Context, creatorID string) ([]models.QuizDetail, error)
	Update(ctx context.Context, quiz *models.Quiz) error
	Delete(ctx context.Context, id string) error
	CreateQuestion(ctx context.Context, question *models.Question) error
	ListQuestions(ctx context.Context, quizID string) ([]models.Question, error)
	UpdateQuestion(ctx context.Context, question *models.Question) error
	DeleteQuestion(ctx context.Context, id, quizID string) error
}

type quizResultRepository interface {
	Create(ctx context.Context, result *models.Result) error
	FindByUserAndQuiz(ctx context.Context, userID, quizID string) (*models.Result, error)
	ListByQuiz(ctx context.Context, quizID string) ([]models.ResultDetail, error)
}

type quizInvitationRepository interface {
	HasAccepted(ctx context.Context, subjectID, teacherID string) (bool, error)
}

type quizEnrollmentRepository interface {
	IsApproved(ctx context.Context, studentID, subjectID string) (bool, error)
}

type quizWeaknessRepository interface {
	Create(ctx context.Context, w *models.Weakness) error
}

// QuizConfig tunes grading behaviour.
type QuizConfig struct {
	// WeaknessThreshold is the percentage below which a submission records
	// a subject weakness.
	WeaknessThreshold float64
}

// QuizService covers quiz authoring, taking and grading.
type QuizService struct {
	quizzes     quizRepository
	results     quizResultRepository
	invitations quizInvitationRepository
	enrollments quizEnrollmentRepository
	weaknesses  quizWeaknessRepository
	notifier    Notifier
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	config      QuizConfig
}

// NewQuizService constructs the quiz service.
func NewQuizService(quizzes quizRepository, results quizResultRepository, invitations quizInvitationRepository, enrollments quizEnrollmentRepository, weaknesses quizWeaknessRepository, notifier Notifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config QuizConfig) *QuizService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.WeaknessThreshold <= 0 {
		config.WeaknessThreshold = 70
	}
	return &QuizService{
		quizzes:     quizzes,
		results:     results,
		invitations: invitations,
		enrollments: enrollments,
		weaknesses:  weaknesses,
		notifier:    notifier,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		config:      config,
	}
}

// QuizRequest carries quiz create/update fields.
type QuizRequest struct {
	SubjectID   string     `json:"subject_id" validate:"required,uuid4"`
	Title       string     `json:"title" validate:"required,min=3,max=200"`
	Description string     `json:"description" validate:"max=1000"`
	Difficulty  string     `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	TimeLimit   int        `json:"time_limit" validate:"min=0,max=600"`
	Deadline    *time.Time `json:"deadline"`
}

// Create lets a teacher with an accepted invitation author a quiz.
func (s *QuizService) Create(ctx context.Context, actor models.Actor, req QuizRequest) (*models.Quiz, error) {
	if actor.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can create quizzes")
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

	quiz := &models.Quiz{
		SubjectID:   req.SubjectID,
		CreatorID:   actor.ID,
		Title:       req.Title,
		Description: req.Description,
		Difficulty:  models.QuizDifficulty(req.Difficulty),
		TimeLimit:   req.TimeLimit,
		Deadline:    req.Deadline,
	}
	if err := s.quizzes.Create(ctx, quiz); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create quiz")
	}
	return quiz, nil
}

// Update edits a quiz. Only the creator may edit.
func (s *QuizService) Update(ctx context.Context, actor models.Actor, quizID string, req QuizRequest) (*models.Quiz, error) {
	quiz, err := s.ownedQuiz(ctx, actor, quizID)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	quiz.Title = req.Title
	quiz.Description = req.Description
	if req.Difficulty != "" {
		quiz.Difficulty = models.QuizDifficulty(req.Difficulty)
	}
	quiz.TimeLimit = req.TimeLimit
	quiz.Deadline = req.Deadline
	if err := s.quizzes.Update(ctx, quiz); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update quiz")
	}
	return quiz, nil
}

// Delete removes a quiz. Only the creator may delete.
func (s *QuizService) Delete(ctx context.Context, actor models.Actor, quizID string) error {
	if _, err := s.ownedQuiz(ctx, actor, quizID); err != nil {
		return err
	}
	if err := s.quizzes.Delete(ctx, quizID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete quiz")
	}
	return nil
}

// QuestionRequest carries question create/update fields.
type QuestionRequest struct {
	Text          string `json:"text" validate:"required,min=3"`
	Option1       string `json:"option1" validate:"required"`
	Option2       string `json:"option2" validate:"required"`
	Option3       string `json:"option3" validate:"required"`
	Option4       string `json:"option4" validate:"required"`
	CorrectOption int    `json:"correct_option" validate:"required,min=1,max=4"`
	Explanation   string `json:"explanation" validate:"max=1000"`
	Position      int    `json:"position" validate:"min=0"`
}

// AddQuestion appends a question to the creator's quiz.
func (s *QuizService) AddQuestion(ctx context.Context, actor models.Actor, quizID string, req QuestionRequest) (*models.Question, error) {
	if _, err := s.ownedQuiz(ctx, actor, quizID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	question := &models.Question{
		QuizID:        quizID,
		Text:          req.Text,
		Option1:       req.Option1,
		Option2:       req.Option2,
		Option3:       req.Option3,
		Option4:       req.Option4,
		CorrectOption: req.CorrectOption,
		Explanation:   req.Explanation,
		Position:      req.Position,
	}
	if err := s.quizzes.CreateQuestion(ctx, question); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create question")
	}
	return question, nil
}

// UpdateQuestion edits a question on the creator's quiz.
func (s *QuizService) UpdateQuestion(ctx context.Context, actor models.Actor, quizID, questionID string, req QuestionRequest) error {
	if _, err := s.ownedQuiz(ctx, actor, quizID); err != nil {
		return err
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	question := &models.Question{
		ID:            questionID,
		QuizID:        quizID,
		Text:          req.Text,
		Option1:       req.Option1,
		Option2:       req.Option2,
		Option3:       req.Option3,
		Option4:       req.Option4,
		CorrectOption: req.CorrectOption,
		Explanation:   req.Explanation,
		Position:      req.Position,
	}
	if err := s.quizzes.UpdateQuestion(ctx, question); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update question")
	}
	return nil
}

// DeleteQuestion removes a question from the creator's quiz.
func (s *QuizService) DeleteQuestion(ctx context.Context, actor models.Actor, quizID, questionID string) error {
	if _, err := s.ownedQuiz(ctx, actor, quizID); err != nil {
		return err
	}
	if err := s.quizzes.DeleteQuestion(ctx, questionID, quizID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete question")
	}
	return nil
}

// ListForSubject returns a subject's quizzes. Students must be approved;
// teachers must hold an accepted invitation; admins see everything.
func (s *QuizService) ListForSubject(ctx context.Context, actor models.Actor, subjectID string) ([]models.QuizDetail, error) {
	if err := s.checkSubjectAccess(ctx, actor, subjectID); err != nil {
		return nil, err
	}
	quizzes, err := s.quizzes.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list quizzes")
	}
	return quizzes, nil
}

// ListForCreator returns quizzes authored by the acting teacher.
func (s *QuizService) ListForCreator(ctx context.Context, actor models.Actor) ([]models.QuizDetail, error) {
	if actor.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teacher access required")
	}
	quizzes, err := s.quizzes.ListByCreator(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list quizzes")
	}
	return quizzes, nil
}

// Take returns a quiz with its questions for an approved student. Correct
// options and explanations are zeroed before the questions leave the service.
func (s *QuizService) Take(ctx context.Context, actor models.Actor, quizID string) (*models.QuizWithQuestions, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can take quizzes")
	}

	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	approved, err := s.enrollments.IsApproved(ctx, actor.ID, quiz.SubjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !approved {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not enrolled in this subject")
	}
	if !quiz.Open(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "the quiz deadline has passed")
	}
	if existing, err := s.results.FindByUserAndQuiz(ctx, actor.ID, quizID); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "you have already taken this quiz")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check previous attempts")
	}

	questions, err := s.quizzes.ListQuestions(ctx, quizID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}
	for i := range questions {
		questions[i].CorrectOption = 0
		questions[i].Explanation = ""
	}
	return &models.QuizWithQuestions{Quiz: *quiz, Questions: questions}, nil
}

// SubmitRequest carries the student's selected option per question id.
type SubmitRequest struct {
	Answers map[string]int `json:"answers" validate:"required,min=1"`
}

// SubmitResponse reports the graded submission.
type SubmitResponse struct {
	Result     models.Result `json:"result"`
	Percentage float64       `json:"percentage"`
	Passed     bool          `json:"passed"`
}

// Submit grades a student's answers, persists the result, and derives a
// subject weakness when the score falls below the threshold. Retakes are
// rejected with a conflict.
func (s *QuizService) Submit(ctx context.Context, actor models.Actor, quizID string, req SubmitRequest) (*SubmitResponse, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can submit quizzes")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	approved, err := s.enrollments.IsApproved(ctx, actor.ID, quiz.SubjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !approved {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not enrolled in this subject")
	}
	if !quiz.Open(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "the quiz deadline has passed")
	}

	questions, err := s.quizzes.ListQuestions(ctx, quizID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}
	if len(questions) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "quiz has no questions")
	}

	score := 0
	for _, q := range questions {
		if selected, ok := req.Answers[q.ID]; ok && selected == q.CorrectOption {
			score++
		}
	}

	result := &models.Result{
		UserID:         actor.ID,
		QuizID:         quizID,
		Score:          score,
		TotalQuestions: len(questions),
	}
	if err := s.results.Create(ctx, result); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "you have already taken this quiz")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save result")
	}

	percentage := result.Percentage()
	passed := percentage >= s.config.WeaknessThreshold
	s.metrics.RecordQuizSubmission(passed)
	if !passed {
		description := fmt.Sprintf("Scored %.0f%% on quiz %q", percentage, quiz.Title)
		weakness := &models.Weakness{
			UserID:       actor.ID,
			SubjectID:    quiz.SubjectID,
			WeaknessType: "conceptual_understanding",
			Description:  &description,
		}
		if err := s.weaknesses.Create(ctx, weakness); err != nil {
			s.logger.Warn("failed to record derived weakness",
				zap.String("user_id", actor.ID),
				zap.String("quiz_id", quizID),
				zap.Error(err))
		}
	}

	s.notifier.Emit(ctx, actor.ID, resultNotificationType(passed),
		fmt.Sprintf("Quiz Completed: %s", quiz.Title),
		fmt.Sprintf("You scored %d out of %d (%.0f%%).", score, len(questions), percentage))

	return &SubmitResponse{Result: *result, Percentage: percentage, Passed: passed}, nil
}

func resultNotificationType(passed bool) models.NotificationType {
	if passed {
		return models.NotificationTypeSuccess
	}
	return models.NotificationTypeWarning
}

// Results returns a quiz's results for its creator or an admin.
func (s *QuizService) Results(ctx context.Context, actor models.Actor, quizID string) ([]models.ResultDetail, error) {
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && quiz.CreatorID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the quiz creator can view its results")
	}
	results, err := s.results.ListByQuiz(ctx, quizID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list results")
	}
	return results, nil
}

// Questions returns a quiz's questions for its creator, including answers.
func (s *QuizService) Questions(ctx context.Context, actor models.Actor, quizID string) ([]models.Question, error) {
	if _, err := s.ownedQuiz(ctx, actor, quizID); err != nil {
		return nil, err
	}
	questions, err := s.quizzes.ListQuestions(ctx, quizID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}
	return questions, nil
}

func (s *QuizService) loadQuiz(ctx context.Context, quizID string) (*models.Quiz, error) {
	quiz, err := s.quizzes.FindByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}
	return quiz, nil
}

func (s *QuizService) ownedQuiz(ctx context.Context, actor models.Actor, quizID string) (*models.Quiz, error) {
	if actor.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teacher access required")
	}
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.CreatorID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the quiz creator can modify it")
	}
	return quiz, nil
}

func (s *QuizService) checkSubjectAccess(ctx context.Context, actor models.Actor, subjectID string) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeacher:
		teaches, err := s.invitations.HasAccepted(ctx, subjectID, actor.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject assignment")
		}
		if !teaches {
			return appErrors.Clone(appErrors.ErrForbidden, "you do not teach this subject")
		}
		return nil
	case models.RoleStudent:
		approved, err := s.enrollments.IsApproved(ctx, actor.ID, subjectID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
		}
		if !approved {
			return appErrors.Clone(appErrors.ErrForbidden, "you are not enrolled in this subject")
		}
		return nil
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "access denied")
	}
}
