package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agriquest/agriquest-api/internal/models"
	appErrors "github.com/agriquest/agriquest-api/pkg/errors"
)

func newInvitationFixture() (*InvitationService, *memoryStore, *recordingNotifier) {
	store := newMemoryStore()
	notifier := &recordingNotifier{}
	svc := NewInvitationService(invitationStore{store}, store, subjectStore{store}, notifier, nil, nil)
	return svc, store, notifier
}

func TestInviteCreatesPendingAndNotifiesTeacher(t *testing.T) {
	svc, store, notifier := newInvitationFixture()
	admin := store.addUser(models.RoleAdmin, "Admin One")
	teacher := store.addUser(models.RoleTeacher, "Taylor Teach")
	subject := store.addSubject("Crop Science")

	invitation, err := svc.Invite(context.Background(), models.Actor{ID: admin.ID, Role: models.RoleAdmin},
		InviteRequest{SubjectID: subject.ID, TeacherID: teacher.ID})
	require.NoError(t, err)
	assert.Equal(t, models.InvitationStatusPending, invitation.Status)
	require.NotNil(t, invitation.InvitedBy)
	assert.Equal(t, admin.ID, *invitation.InvitedBy)

	emitted := notifier.forUser(teacher.ID)
	require.Len(t, emitted, 1)
	assert.Equal(t, models.NotificationTypeInfo, emitted[0].Type)
	assert.Contains(t, emitted[0].Title, "Crop Science")
}

func TestInviteRequiresAdmin(t *testing.T) {
	svc, store, _ := newInvitationFixture()
	teacher := store.addUser(models.RoleTeacher, "Taylor Teach")
	subject := store.addSubject("Crop Science")

	_, err := svc.Invite(context.Background(), models.Actor{ID: teacher.ID, Role: models.RoleTeacher},
		InviteRequest{SubjectID: subject.ID, TeacherID: teacher.ID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestInviteRejectsNonTeacherTarget(t *testing.T) {
	svc, store, _ := newInvitationFixture()
	admin := store.addUser(models.RoleAdmin, "Admin One")
	student := store.addUser(models.RoleStudent, "Sam Student")
	subject := store.addSubject("Crop Science")

	_, err := svc.Invite(context.Background(), models.Actor{ID: admin.ID, Role: models.RoleAdmin},
		InviteRequest{SubjectID: subject.ID, TeacherID: student.ID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDuplicateInviteConflicts(t *testing.T) {
	svc, store, _ := newInvitationFixture()
	admin := store.addUser(models.RoleAdmin, "Admin One")
	teacher := store.addUser(models.RoleTeacher, "Taylor Teach")
	subject := store.addSubject("Crop Science")
	actor := models.Actor{ID: admin.ID, Role: models.RoleAdmin}

	_, err := svc.Invite(context.Background(), actor, InviteRequest{SubjectID: subject.ID, TeacherID: teacher.ID})
	require.NoError(t, err)

	_, err = svc.Invite(context.Background(), actor, InviteRequest{SubjectID: subject.ID, TeacherID: teacher.ID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestReinviteAfterRejectionAllowed(t *testing.T) {
	svc, store, _ := newInvitationFixture()
	admin := store.addUser(models.RoleAdmin, "Admin One")
	teacher := store.addUser(models.RoleTeacher, "Taylor Teach")
	subject := store.addSubject("Crop Science")
	adminActor := models.Actor{ID: admin.ID, Role: models.RoleAdmin}
	teacherActor := models.Actor{ID: teacher.ID, Role: models.RoleTeacher}

	_, err := svc.Invite(context.Background(), adminActor, InviteRequest{SubjectID: subject.ID, TeacherID: teacher.ID})
	require.NoError(t, err)
	_, err = svc.Respond(context.Background(), teacherActor, RespondRequest{SubjectID: subject.ID, Accept: false})
	require.NoError(t, err)

	invitation, err := svc.Invite(context.Background(), adminActor, InviteRequest{SubjectID: subject.ID, TeacherID: teacher.ID})
	require.NoError(t, err)
	assert.Equal(t, models.InvitationStatusPending, invitation.Status)
}

func TestRespondAcceptNotifiesInviter(t *testing.T) {
	svc, store, notifier := newInvitationFixture()
	admin := store.addUser(models.RoleAdmin, "Admin One")
	teacher := store.addUser(models.RoleTeacher, "Taylor Teach")
	subject := store.addSubject("Crop Science")

	_, err := svc.Invite(context.Background(), models.Actor{ID: admin.ID, Role: models.RoleAdmin},
		InviteRequest{SubjectID: subject.ID, TeacherID: teacher.ID})
	require.NoError(t, err)

	invitation, err := svc.Respond(context.Background(), models.Actor{ID: teacher.ID, Role: models.RoleTeacher},
		RespondRequest{SubjectID: subject.ID, Accept: true})
	require.NoError(t, err)
	assert.Equal(t, models.InvitationStatusAccepted, invitation.Status)
	require.NotNil(t, invitation.AcceptedAt)

	emitted := notifier.forUser(admin.ID)
	require.Len(t, emitted, 1)
	assert.Equal(t, models.NotificationTypeSuccess, emitted[0].Type)
}

func TestRespondTwiceReturnsNotFound(t *testing.T) {
	svc, store, _ := newInvitationFixture()
	admin := store.addUser(models.RoleAdmin, "Admin One")
	teacher := store.addUser(models.RoleTeacher, "Taylor Teach")
	subject := store.addSubject("Crop Science")
	teacherActor := models.Actor{ID: teacher.ID, Role: models.RoleTeacher}

	_, err := svc.Invite(context.Background(), models.Actor{ID: admin.ID, Role: models.RoleAdmin},
		InviteRequest{SubjectID: subject.ID, TeacherID: teacher.ID})
	require.NoError(t, err)

	_, err = svc.Respond(context.Background(), teacherActor, RespondRequest{SubjectID: subject.ID, Accept: true})
	require.NoError(t, err)

	_, err = svc.Respond(context.Background(), teacherActor, RespondRequest{SubjectID: subject.ID, Accept: false})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRespondWithoutInvitationReturnsNotFound(t *testing.T) {
	svc, store, _ := newInvitationFixture()
	teacher := store.addUser(models.RoleTeacher, "Taylor Teach")
	subject := store.addSubject("Crop Science")

	_, err := svc.Respond(context.Background(), models.Actor{ID: teacher.ID, Role: models.RoleTeacher},
		RespondRequest{SubjectID: subject.ID, Accept: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
