package models

import "time"

// InvitationStatus represents the lifecycle of a subject-teacher invitation.
type InvitationStatus string

// Terminal states are final; a rejected pair may be re-invited with a new row.
const (
	InvitationStatusPending  InvitationStatus = "pending"
	InvitationStatusAccepted InvitationStatus = "accepted"
	InvitationStatusRejected InvitationStatus = "rejected"
)

// Invitation links a teacher to a subject, created by an admin.
type Invitation struct {
	ID         string           `db:"id" json:"id"`
	SubjectID  string           `db:"subject_id" json:"subject_id"`
	TeacherID  string           `db:"teacher_id" json:"teacher_id"`
	InvitedBy  *string          `db:"invited_by" json:"invited_by,omitempty"`
	Status     InvitationStatus `db:"status" json:"status"`
	InvitedAt  time.Time        `db:"invited_at" json:"invited_at"`
	AcceptedAt *time.Time       `db:"accepted_at" json:"accepted_at,omitempty"`
}

// InvitationDetail enriches Invitation with subject and teacher names.
type InvitationDetail struct {
	Invitation
	SubjectName     string `db:"subject_name" json:"subject_name"`
	TeacherName     string `db:"teacher_name" json:"teacher_name"`
	TeacherFullName string `db:"teacher_full_name" json:"teacher_full_name"`
}
