package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agriquest/agriquest-api/internal/models"
	"github.com/agriquest/agriquest-api/internal/repository"
	appErrors "github.com/agriquest/agriquest-api/pkg/errors"
)

type mockQuizStore struct {
	store     *memoryStore
	quizzes   map[string]*models.Quiz
	questions map[string][]*models.Question
}

func newMockQuizStore(store *memoryStore) *mockQuizStore {
	return &mockQuizStore{
		store:     store,
		quizzes:   make(map[string]*models.Quiz),
		questions: make(map[string][]*models.Question),
	}
}

func (m *mockQuizStore) Create(_ context.Context, quiz *models.Quiz) error {
	if quiz.ID == "" {
		quiz.ID = m.store.id()
	}
	if quiz.Difficulty == "" {
		quiz.Difficulty = models.QuizDifficultyBeginner
	}
	m.quizzes[quiz.ID] = quiz
	return nil
}

func (m *mockQuizStore) FindByID(_ context.Context, id string) (*models.Quiz, error) {
	if quiz, ok := m.quizzes[id]; ok {
		return quiz, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockQuizStore) ListBySubject(_ context.Context, subjectID string) ([]models.QuizDetail, error) {
	var out []models.QuizDetail
	for _, q := range m.quizzes {
		if q.SubjectID == subjectID {
			out = append(out, models.QuizDetail{Quiz: *q})
		}
	}
	return out, nil
}

func (m *mockQuizStore) ListByCreator(_ context.Context, creatorID string) ([]models.QuizDetail, error) {
	var out []models.QuizDetail
	for _, q := range m.quizzes {
		if q.CreatorID == creatorID {
			out = append(out, models.QuizDetail{Quiz: *q})
		}
	}
	return out, nil
}

func (m *mockQuizStore) Update(_ context.Context, quiz *models.Quiz) error {
	if _, ok := m.quizzes[quiz.ID]; !ok {
		return sql.ErrNoRows
	}
	m.quizzes[quiz.ID] = quiz
	return nil
}

func (m *mockQuizStore) Delete(_ context.Context, id string) error {
	if _, ok := m.quizzes[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.quizzes, id)
	delete(m.questions, id)
	return nil
}

func (m *mockQuizStore) CreateQuestion(_ context.Context, question *models.Question) error {
	if question.ID == "" {
		question.ID = m.store.id()
	}
	m.questions[question.QuizID] = append(m.questions[question.QuizID], question)
	return nil
}

func (m *mockQuizStore) ListQuestions(_ context.Context, quizID string) ([]models.Question, error) {
	var out []models.Question
	for _, q := range m.questions[quizID] {
		out = append(out, *q)
	}
	return out, nil
}

func (m *mockQuizStore) UpdateQuestion(_ context.Context, question *models.Question) error {
	for i, q := range m.questions[question.QuizID] {
		if q.ID == question.ID {
			m.questions[question.QuizID][i] = question
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockQuizStore) DeleteQuestion(_ context.Context, id, quizID string) error {
	for i, q := range m.questions[quizID] {
		if q.ID == id {
			m.questions[quizID] = append(m.questions[quizID][:i], m.questions[quizID][i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

type mockResultStore struct {
	store   *memoryStore
	results []*models.Result
}

func (m *mockResultStore) Create(_ context.Context, result *models.Result) error {
	for _, r := range m.results {
		if r.UserID == result.UserID && r.QuizID == result.QuizID {
			return repository.ErrDuplicate
		}
	}
	if result.ID == "" {
		result.ID = m.store.id()
	}
	result.SubmittedAt = time.Now().UTC()
	m.results = append(m.results, result)
	return nil
}

func (m *mockResultStore) FindByUserAndQuiz(_ context.Context, userID, quizID string) (*models.Result, error) {
	for _, r := range m.results {
		if r.UserID == userID && r.QuizID == quizID {
			return r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockResultStore) ListByQuiz(_ context.Context, quizID string) ([]models.ResultDetail, error) {
	var out []models.ResultDetail
	for _, r := range m.results {
		if r.QuizID == quizID {
			out = append(out, models.ResultDetail{Result: *r})
		}
	}
	return out, nil
}

type mockWeaknessStore struct {
	created []models.Weakness
}

func (m *mockWeaknessStore) Create(_ context.Context, w *models.Weakness) error {
	m.created = append(m.created, *w)
	return nil
}

type quizFixture struct {
	svc        *QuizService
	store      *memoryStore
	quizzes    *mockQuizStore
	results    *mockResultStore
	weaknesses *mockWeaknessStore
	notifier   *recordingNotifier

	teacher *models.User
	student *models.User
	subject *models.Subject
}

func newQuizFixture(t *testing.T) *quizFixture {
	t.Helper()
	store := newMemoryStore()
	quizzes := newMockQuizStore(store)
	results := &mockResultStore{store: store}
	weaknesses := &mockWeaknessStore{}
	notifier := &recordingNotifier{}

	f := &quizFixture{
		store:      store,
		quizzes:    quizzes,
		results:    results,
		weaknesses: weaknesses,
		notifier:   notifier,
		teacher:    store.addUser(models.RoleTeacher, "Taylor Teach"),
		student:    store.addUser(models.RoleStudent, "Sam Student"),
		subject:    store.addSubject("Crop Science"),
	}
	f.svc = NewQuizService(quizzes, results, invitationStore{store}, enrollmentStore{store}, weaknesses, notifier, nil, nil, nil, QuizConfig{WeaknessThreshold: 70})

	acceptInvitation(t, store, f.subject.ID, f.teacher.ID)
	store.enrollments = append(store.enrollments, &models.Enrollment{
		ID: store.id(), StudentID: f.student.ID, SubjectID: f.subject.ID, Status: models.EnrollmentStatusApproved,
	})
	return f
}

func (f *quizFixture) teacherActor() models.Actor { return models.Actor{ID: f.teacher.ID, Role: models.RoleTeacher} }
func (f *quizFixture) studentActor() models.Actor { return models.Actor{ID: f.student.ID, Role: models.RoleStudent} }

func (f *quizFixture) buildQuiz(t *testing.T, questions int, correct int) *models.Quiz {
	t.Helper()
	quiz, err := f.svc.Create(context.Background(), f.teacherActor(), QuizRequest{
		SubjectID: f.subject.ID,
		Title:     "Soil Basics",
	})
	require.NoError(t, err)
	for i := 0; i < questions; i++ {
		_, err := f.svc.AddQuestion(context.Background(), f.teacherActor(), quiz.ID, QuestionRequest{
			Text:          "Which option is correct?",
			Option1:       "A",
			Option2:       "B",
			Option3:       "C",
			Option4:       "D",
			CorrectOption: correct,
			Position:      i,
		})
		require.NoError(t, err)
	}
	return quiz
}

func TestQuizCreateRequiresAcceptedInvitation(t *testing.T) {
	f := newQuizFixture(t)
	other := f.store.addSubject("Animal Husbandry")

	_, err := f.svc.Create(context.Background(), f.teacherActor(), QuizRequest{SubjectID: other.ID, Title: "Herd Health"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSubmitScoresAnswers(t *testing.T) {
	f := newQuizFixture(t)
	quiz := f.buildQuiz(t, 4, 2)
	questions, err := f.svc.Questions(context.Background(), f.teacherActor(), quiz.ID)
	require.NoError(t, err)

	answers := map[string]int{
		questions[0].ID: 2,
		questions[1].ID: 2,
		questions[2].ID: 2,
		questions[3].ID: 1,
	}
	resp, err := f.svc.Submit(context.Background(), f.studentActor(), quiz.ID, SubmitRequest{Answers: answers})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Result.Score)
	assert.Equal(t, 4, resp.Result.TotalQuestions)
	assert.InDelta(t, 75.0, resp.Percentage, 0.01)
	assert.True(t, resp.Passed)
	assert.Empty(t, f.weaknesses.created)

	inbox := f.notifier.forUser(f.student.ID)
	require.NotEmpty(t, inbox)
	assert.Equal(t, models.NotificationTypeSuccess, inbox[len(inbox)-1].Type)
}

func TestSubmitBelowThresholdRecordsWeakness(t *testing.T) {
	f := newQuizFixture(t)
	quiz := f.buildQuiz(t, 4, 2)
	questions, err := f.svc.Questions(context.Background(), f.teacherActor(), quiz.ID)
	require.NoError(t, err)

	answers := map[string]int{questions[0].ID: 2}
	resp, err := f.svc.Submit(context.Background(), f.studentActor(), quiz.ID, SubmitRequest{Answers: answers})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Result.Score)
	assert.False(t, resp.Passed)

	require.Len(t, f.weaknesses.created, 1)
	assert.Equal(t, f.subject.ID, f.weaknesses.created[0].SubjectID)
	assert.Equal(t, f.student.ID, f.weaknesses.created[0].UserID)
}

func TestRetakeConflicts(t *testing.T) {
	f := newQuizFixture(t)
	quiz := f.buildQuiz(t, 2, 1)
	questions, err := f.svc.Questions(context.Background(), f.teacherActor(), quiz.ID)
	require.NoError(t, err)
	answers := map[string]int{questions[0].ID: 1, questions[1].ID: 1}

	_, err = f.svc.Submit(context.Background(), f.studentActor(), quiz.ID, SubmitRequest{Answers: answers})
	require.NoError(t, err)

	_, err = f.svc.Submit(context.Background(), f.studentActor(), quiz.ID, SubmitRequest{Answers: answers})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Take(context.Background(), f.studentActor(), quiz.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSubmitAfterDeadlineConflicts(t *testing.T) {
	f := newQuizFixture(t)
	quiz := f.buildQuiz(t, 2, 1)
	past := time.Now().UTC().Add(-time.Hour)
	quiz.Deadline = &past

	questions := f.quizzes.questions[quiz.ID]
	answers := map[string]int{questions[0].ID: 1, questions[1].ID: 1}
	_, err := f.svc.Submit(context.Background(), f.studentActor(), quiz.ID, SubmitRequest{Answers: answers})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestTakeRequiresApprovedEnrollment(t *testing.T) {
	f := newQuizFixture(t)
	quiz := f.buildQuiz(t, 2, 1)
	outsider := f.store.addUser(models.RoleStudent, "Olive Outsider")

	_, err := f.svc.Take(context.Background(), models.Actor{ID: outsider.ID, Role: models.RoleStudent}, quiz.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestTakeHidesAnswersAndExplanations(t *testing.T) {
	f := newQuizFixture(t)
	quiz := f.buildQuiz(t, 2, 1)

	taken, err := f.svc.Take(context.Background(), f.studentActor(), quiz.ID)
	require.NoError(t, err)
	require.Len(t, taken.Questions, 2)
	for _, q := range taken.Questions {
		assert.Zero(t, q.CorrectOption)
		assert.Empty(t, q.Explanation)
	}

	payload, err := json.Marshal(taken.Questions)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "correct_option")
}

func TestQuestionsReturnAnswerKeyToCreator(t *testing.T) {
	f := newQuizFixture(t)
	quiz := f.buildQuiz(t, 2, 3)

	questions, err := f.svc.Questions(context.Background(), f.teacherActor(), quiz.ID)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	for _, q := range questions {
		assert.Equal(t, 3, q.CorrectOption)
	}

	payload, err := json.Marshal(questions)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"correct_option":3`)
}

func TestResultsVisibleToCreatorOnly(t *testing.T) {
	f := newQuizFixture(t)
	quiz := f.buildQuiz(t, 2, 1)
	otherTeacher := f.store.addUser(models.RoleTeacher, "Terry Other")

	_, err := f.svc.Results(context.Background(), models.Actor{ID: otherTeacher.ID, Role: models.RoleTeacher}, quiz.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Results(context.Background(), f.teacherActor(), quiz.ID)
	require.NoError(t, err)
}

func TestQuizUpdateAndDeleteRequireOwnership(t *testing.T) {
	f := newQuizFixture(t)
	quiz := f.buildQuiz(t, 1, 1)
	other := f.store.addUser(models.RoleTeacher, "Terry Other")
	otherActor := models.Actor{ID: other.ID, Role: models.RoleTeacher}

	_, err := f.svc.Update(context.Background(), otherActor, quiz.ID, QuizRequest{SubjectID: f.subject.ID, Title: "Hijacked"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = f.svc.Delete(context.Background(), otherActor, quiz.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, f.svc.Delete(context.Background(), f.teacherActor(), quiz.ID))
}
