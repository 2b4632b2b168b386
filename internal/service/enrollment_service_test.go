package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agriquest/agriquest-api/internal/models"
	appErrors "github.com/agriquest/agriquest-api/pkg/errors"
)

func newEnrollmentFixture() (*EnrollmentService, *memoryStore, *recordingNotifier) {
	store := newMemoryStore()
	notifier := &recordingNotifier{}
	svc := NewEnrollmentService(enrollmentStore{store}, invitationStore{store}, store, subjectStore{store}, notifier, nil, nil)
	return svc, store, notifier
}

func acceptInvitation(t *testing.T, store *memoryStore, subjectID, teacherID string) {
	t.Helper()
	inv := &models.Invitation{ID: store.id(), SubjectID: subjectID, TeacherID: teacherID, Status: models.InvitationStatusAccepted}
	store.invitations = append(store.invitations, inv)
}

func TestRequestCreatesPendingAndNotifiesTeachers(t *testing.T) {
	svc, store, notifier := newEnrollmentFixture()
	teacher := store.addUser(models.RoleTeacher, "Taylor Teach")
	student := store.addUser(models.RoleStudent, "Sam Student")
	subject := store.addSubject("Crop Science")
	acceptInvitation(t, store, subject.ID, teacher.ID)

	enrollment, err := svc.Request(context.Background(), models.Actor{ID: student.ID, Role: models.RoleStudent}, subject.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)

	emitted := notifier.forUser(teacher.ID)
	require.Len(t, emitted, 1)
	assert.Equal(t, models.NotificationTypeInfo, emitted[0].Type)
	assert.Contains(t, emitted[0].Message, "Sam Student")
}

func TestDuplicateRequestConflicts(t *testing.T) {
	svc, store, _ := newEnrollmentFixture()
	student := store.addUser(models.RoleStudent, "Sam Student")
	subject := store.addSubject("Crop Science")
	actor := models.Actor{ID: student.ID, Role: models.RoleStudent}

	_, err := svc.Request(context.Background(), actor, subject.ID)
	require.NoError(t, err)

	_, err = svc.Request(context.Background(), actor, subject.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestDecideRequiresAcceptedInvitation(t *testing.T) {
	svc, store, _ := newEnrollmentFixture()
	teacher := store.addUser(models.RoleTeacher, "Taylor Teach")
	student := store.addUser(models.RoleStudent, "Sam Student")
	subject := store.addSubject("Crop Science")

	_, err := svc.Request(context.Background(), models.Actor{ID: student.ID, Role: models.RoleStudent}, subject.ID)
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), models.Actor{ID: teacher.ID, Role: models.RoleTeacher},
		DecideRequest{StudentID: student.ID, SubjectID: subject.ID, Approve: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestApproveGrantsSubjectAccess(t *testing.T) {
	svc, store, notifier := newEnrollmentFixture()
	teacher := store.addUser(models.RoleTeacher, "Taylor Teach")
	student := store.addUser(models.RoleStudent, "Sam Student")
	subject := store.addSubject("Crop Science")
	acceptInvitation(t, store, subject.ID, teacher.ID)
	studentActor := models.Actor{ID: student.ID, Role: models.RoleStudent}

	_, err := svc.Request(context.Background(), studentActor, subject.ID)
	require.NoError(t, err)

	enrollment, err := svc.Decide(context.Background(), models.Actor{ID: teacher.ID, Role: models.RoleTeacher},
		DecideRequest{StudentID: student.ID, SubjectID: subject.ID, Approve: true})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusApproved, enrollment.Status)
	require.NotNil(t, enrollment.ApprovedAt)

	emitted := notifier.forUser(student.ID)
	require.NotEmpty(t, emitted)
	assert.Equal(t, models.NotificationTypeSuccess, emitted[len(emitted)-1].Type)

	subjects := NewSubjectService(subjectStore{store}, nil, 0, nil, nil)
	visible, err := subjects.ForStudent(context.Background(), studentActor)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "Crop Science", visible[0].Name)
}

func TestRejectLeavesSubjectInaccessible(t *testing.T) {
	svc, store, notifier := newEnrollmentFixture()
	teacher := store.addUser(models.RoleTeacher, "Taylor Teach")
	student := store.addUser(models.RoleStudent, "Sam Student")
	subject := store.addSubject("Crop Science")
	acceptInvitation(t, store, subject.ID, teacher.ID)
	studentActor := models.Actor{ID: student.ID, Role: models.RoleStudent}

	_, err := svc.Request(context.Background(), studentActor, subject.ID)
	require.NoError(t, err)

	enrollment, err := svc.Decide(context.Background(), models.Actor{ID: teacher.ID, Role: models.RoleTeacher},
		DecideRequest{StudentID: student.ID, SubjectID: subject.ID, Approve: false})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusRejected, enrollment.Status)

	emitted := notifier.forUser(student.ID)
	require.NotEmpty(t, emitted)
	assert.Equal(t, models.NotificationTypeWarning, emitted[len(emitted)-1].Type)

	subjects := NewSubjectService(subjectStore{store}, nil, 0, nil, nil)
	visible, err := subjects.ForStudent(context.Background(), studentActor)
	require.NoError(t, err)
	assert.Empty(t, visible)
}

func TestDecideWithoutPendingRequestReturnsNotFound(t *testing.T) {
	svc, store, _ := newEnrollmentFixture()
	teacher := store.addUser(models.RoleTeacher, "Taylor Teach")
	student := store.addUser(models.RoleStudent, "Sam Student")
	subject := store.addSubject("Crop Science")
	acceptInvitation(t, store, subject.ID, teacher.ID)

	_, err := svc.Decide(context.Background(), models.Actor{ID: teacher.ID, Role: models.RoleTeacher},
		DecideRequest{StudentID: student.ID, SubjectID: subject.ID, Approve: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestWithdrawThenRequestAgain(t *testing.T) {
	svc, store, _ := newEnrollmentFixture()
	student := store.addUser(models.RoleStudent, "Sam Student")
	subject := store.addSubject("Crop Science")
	actor := models.Actor{ID: student.ID, Role: models.RoleStudent}

	_, err := svc.Request(context.Background(), actor, subject.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Withdraw(context.Background(), actor, subject.ID))

	enrollment, err := svc.Request(context.Background(), actor, subject.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
}

func TestWithdrawWithoutEnrollmentReturnsNotFound(t *testing.T) {
	svc, store, _ := newEnrollmentFixture()
	student := store.addUser(models.RoleStudent, "Sam Student")
	subject := store.addSubject("Crop Science")

	err := svc.Withdraw(context.Background(), models.Actor{ID: student.ID, Role: models.RoleStudent}, subject.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRemoveStudentWithdrawsAndNotifies(t *testing.T) {
	svc, store, notifier := newEnrollmentFixture()
	teacher := store.addUser(models.RoleTeacher, "Taylor Teach")
	student := store.addUser(models.RoleStudent, "Sam Student")
	subject := store.addSubject("Crop Science")
	acceptInvitation(t, store, subject.ID, teacher.ID)
	teacherActor := models.Actor{ID: teacher.ID, Role: models.RoleTeacher}

	_, err := svc.Request(context.Background(), models.Actor{ID: student.ID, Role: models.RoleStudent}, subject.ID)
	require.NoError(t, err)
	_, err = svc.Decide(context.Background(), teacherActor,
		DecideRequest{StudentID: student.ID, SubjectID: subject.ID, Approve: true})
	require.NoError(t, err)

	require.NoError(t, svc.RemoveStudent(context.Background(), teacherActor, student.ID, subject.ID))

	emitted := notifier.forUser(student.ID)
	require.NotEmpty(t, emitted)
	assert.Equal(t, "Removed from Subject", emitted[len(emitted)-1].Title)

	students, err := svc.StudentsForSubject(context.Background(), teacherActor, subject.ID)
	require.NoError(t, err)
	assert.Empty(t, students)
}
