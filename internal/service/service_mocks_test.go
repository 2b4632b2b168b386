package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/agriquest/agriquest-api/internal/models"
)

// recordingNotifier captures emissions for assertions.
type recordingNotifier struct {
	emitted []models.Notification
}

func (n *recordingNotifier) Emit(_ context.Context, userID string, typ models.NotificationType, title, message string) {
	n.emitted = append(n.emitted, models.Notification{
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
	})
}

func (n *recordingNotifier) forUser(userID string) []models.Notification {
	var out []models.Notification
	for _, e := range n.emitted {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

// memoryStore backs the workflow services with shared in-memory state so
// multi-step scenarios observe each other's writes.
type memoryStore struct {
	users       map[string]*models.User
	subjects    map[string]*models.Subject
	invitations []*models.Invitation
	enrollments []*models.Enrollment
	nextID      int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:    make(map[string]*models.User),
		subjects: make(map[string]*models.Subject),
	}
}

func (m *memoryStore) id() string {
	m.nextID++
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", m.nextID)
}

func (m *memoryStore) addUser(role models.UserRole, fullName string) *models.User {
	user := &models.User{
		ID:       m.id(),
		Username: fmt.Sprintf("user%d", m.nextID),
		Email:    fmt.Sprintf("user%d@agriquest.test", m.nextID),
		FullName: fullName,
		Role:     role,
		Active:   true,
	}
	m.users[user.ID] = user
	return user
}

func (m *memoryStore) addSubject(name string) *models.Subject {
	subject := &models.Subject{ID: m.id(), Name: name}
	m.subjects[subject.ID] = subject
	return subject
}

func (m *memoryStore) FindByID(_ context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

// subjectStore adapts memoryStore to the subject repository interfaces.
type subjectStore struct {
	*memoryStore
}

func (m subjectStore) FindByID(_ context.Context, id string) (*models.Subject, error) {
	if subject, ok := m.subjects[id]; ok {
		return subject, nil
	}
	return nil, sql.ErrNoRows
}

func (m subjectStore) List(_ context.Context, _ models.SubjectFilter) ([]models.SubjectDetail, int, error) {
	var out []models.SubjectDetail
	for _, s := range m.subjects {
		out = append(out, models.SubjectDetail{Subject: *s})
	}
	return out, len(out), nil
}

func (m subjectStore) Create(_ context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = m.id()
	}
	m.subjects[subject.ID] = subject
	return nil
}

func (m subjectStore) Update(_ context.Context, id, name, description string) error {
	subject, ok := m.subjects[id]
	if !ok {
		return sql.ErrNoRows
	}
	subject.Name = name
	subject.Description = description
	return nil
}

func (m subjectStore) Delete(_ context.Context, id string) error {
	if _, ok := m.subjects[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.subjects, id)
	return nil
}

func (m subjectStore) CountQuizzes(_ context.Context, _ string) (int, error) {
	return 0, nil
}

func (m subjectStore) ListApprovedForStudent(_ context.Context, studentID string) ([]models.Subject, error) {
	var out []models.Subject
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.Status == models.EnrollmentStatusApproved {
			if subject, ok := m.subjects[e.SubjectID]; ok {
				out = append(out, *subject)
			}
		}
	}
	return out, nil
}

func (m subjectStore) ListAcceptedForTeacher(_ context.Context, teacherID string) ([]models.Subject, error) {
	var out []models.Subject
	for _, inv := range m.invitations {
		if inv.TeacherID == teacherID && inv.Status == models.InvitationStatusAccepted {
			if subject, ok := m.subjects[inv.SubjectID]; ok {
				out = append(out, *subject)
			}
		}
	}
	return out, nil
}

// invitationStore adapts memoryStore to invitationRepository.
type invitationStore struct {
	*memoryStore
}

func (m invitationStore) ExistsLive(_ context.Context, subjectID, teacherID string) (bool, error) {
	for _, inv := range m.invitations {
		if inv.SubjectID == subjectID && inv.TeacherID == teacherID && inv.Status != models.InvitationStatusRejected {
			return true, nil
		}
	}
	return false, nil
}

func (m invitationStore) Create(_ context.Context, invitation *models.Invitation) error {
	if invitation.ID == "" {
		invitation.ID = m.id()
	}
	if invitation.Status == "" {
		invitation.Status = models.InvitationStatusPending
	}
	m.memoryStore.invitations = append(m.memoryStore.invitations, invitation)
	return nil
}

func (m invitationStore) FindPending(_ context.Context, subjectID, teacherID string) (*models.Invitation, error) {
	for _, inv := range m.invitations {
		if inv.SubjectID == subjectID && inv.TeacherID == teacherID && inv.Status == models.InvitationStatusPending {
			return inv, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m invitationStore) SetStatus(_ context.Context, id string, status models.InvitationStatus, acceptedAt *time.Time) error {
	for _, inv := range m.invitations {
		if inv.ID == id && inv.Status == models.InvitationStatusPending {
			inv.Status = status
			inv.AcceptedAt = acceptedAt
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m invitationStore) HasAccepted(_ context.Context, subjectID, teacherID string) (bool, error) {
	for _, inv := range m.invitations {
		if inv.SubjectID == subjectID && inv.TeacherID == teacherID && inv.Status == models.InvitationStatusAccepted {
			return true, nil
		}
	}
	return false, nil
}

func (m invitationStore) ListPendingForTeacher(_ context.Context, teacherID string) ([]models.InvitationDetail, error) {
	var out []models.InvitationDetail
	for _, inv := range m.invitations {
		if inv.TeacherID == teacherID && inv.Status == models.InvitationStatusPending {
			out = append(out, m.detail(inv))
		}
	}
	return out, nil
}

func (m invitationStore) ListBySubject(_ context.Context, subjectID string) ([]models.InvitationDetail, error) {
	var out []models.InvitationDetail
	for _, inv := range m.invitations {
		if inv.SubjectID == subjectID {
			out = append(out, m.detail(inv))
		}
	}
	return out, nil
}

func (m invitationStore) ListAll(_ context.Context) ([]models.InvitationDetail, error) {
	var out []models.InvitationDetail
	for _, inv := range m.invitations {
		out = append(out, m.detail(inv))
	}
	return out, nil
}

func (m invitationStore) ListAcceptedTeacherIDs(_ context.Context, subjectID string) ([]string, error) {
	var out []string
	for _, inv := range m.invitations {
		if inv.SubjectID == subjectID && inv.Status == models.InvitationStatusAccepted {
			out = append(out, inv.TeacherID)
		}
	}
	return out, nil
}

func (m invitationStore) detail(inv *models.Invitation) models.InvitationDetail {
	detail := models.InvitationDetail{Invitation: *inv}
	if subject, ok := m.subjects[inv.SubjectID]; ok {
		detail.SubjectName = subject.Name
	}
	if teacher, ok := m.users[inv.TeacherID]; ok {
		detail.TeacherName = teacher.Username
		detail.TeacherFullName = teacher.FullName
	}
	return detail
}

// enrollmentStore adapts memoryStore to enrollmentRepository.
type enrollmentStore struct {
	*memoryStore
}

func (m enrollmentStore) ExistsActive(_ context.Context, studentID, subjectID string) (bool, error) {
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.SubjectID == subjectID &&
			(e.Status == models.EnrollmentStatusPending || e.Status == models.EnrollmentStatusApproved) {
			return true, nil
		}
	}
	return false, nil
}

func (m enrollmentStore) IsApproved(_ context.Context, studentID, subjectID string) (bool, error) {
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.SubjectID == subjectID && e.Status == models.EnrollmentStatusApproved {
			return true, nil
		}
	}
	return false, nil
}

func (m enrollmentStore) Create(_ context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = m.id()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusPending
	}
	m.memoryStore.enrollments = append(m.memoryStore.enrollments, enrollment)
	return nil
}

func (m enrollmentStore) FindPending(_ context.Context, studentID, subjectID string) (*models.Enrollment, error) {
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.SubjectID == subjectID && e.Status == models.EnrollmentStatusPending {
			return e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m enrollmentStore) FindActive(_ context.Context, studentID, subjectID string) (*models.Enrollment, error) {
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.SubjectID == subjectID &&
			(e.Status == models.EnrollmentStatusPending || e.Status == models.EnrollmentStatusApproved) {
			return e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m enrollmentStore) SetStatus(_ context.Context, id string, from []models.EnrollmentStatus, to models.EnrollmentStatus, approvedAt *time.Time) error {
	for _, e := range m.enrollments {
		if e.ID != id {
			continue
		}
		for _, status := range from {
			if e.Status == status {
				e.Status = to
				e.ApprovedAt = approvedAt
				return nil
			}
		}
	}
	return sql.ErrNoRows
}

func (m enrollmentStore) ListBySubject(_ context.Context, subjectID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error) {
	var out []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if e.SubjectID == subjectID && (status == "" || e.Status == status) {
			out = append(out, m.detail(e))
		}
	}
	return out, nil
}

func (m enrollmentStore) ListPendingForTeacher(_ context.Context, teacherID string) ([]models.EnrollmentDetail, error) {
	accepted := make(map[string]bool)
	for _, inv := range m.invitations {
		if inv.TeacherID == teacherID && inv.Status == models.InvitationStatusAccepted {
			accepted[inv.SubjectID] = true
		}
	}
	var out []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if accepted[e.SubjectID] && e.Status == models.EnrollmentStatusPending {
			out = append(out, m.detail(e))
		}
	}
	return out, nil
}

func (m enrollmentStore) ListByStudent(_ context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	var out []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if e.StudentID == studentID {
			out = append(out, m.detail(e))
		}
	}
	return out, nil
}

func (m enrollmentStore) ListAll(_ context.Context) ([]models.EnrollmentDetail, error) {
	var out []models.EnrollmentDetail
	for _, e := range m.enrollments {
		out = append(out, m.detail(e))
	}
	return out, nil
}

func (m enrollmentStore) detail(e *models.Enrollment) models.EnrollmentDetail {
	detail := models.EnrollmentDetail{Enrollment: *e}
	if student, ok := m.users[e.StudentID]; ok {
		detail.StudentName = student.Username
		detail.StudentFullName = student.FullName
	}
	if subject, ok := m.subjects[e.SubjectID]; ok {
		detail.SubjectName = subject.Name
	}
	return detail
}
