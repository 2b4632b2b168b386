package models

import "time"

// EnrollmentStatus represents the lifecycle of a student-subject enrollment.
type EnrollmentStatus string

// Pending and approved count as active; a withdrawn or rejected enrollment
// can be re-requested with a fresh row.
const (
	EnrollmentStatusPending   EnrollmentStatus = "pending"
	EnrollmentStatusApproved  EnrollmentStatus = "approved"
	EnrollmentStatusRejected  EnrollmentStatus = "rejected"
	EnrollmentStatusWithdrawn EnrollmentStatus = "withdrawn"
)

// Enrollment links a student to a subject, created by a student request.
type Enrollment struct {
	ID          string           `db:"id" json:"id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	SubjectID   string           `db:"subject_id" json:"subject_id"`
	Status      EnrollmentStatus `db:"status" json:"status"`
	RequestedAt time.Time        `db:"requested_at" json:"requested_at"`
	ApprovedAt  *time.Time       `db:"approved_at" json:"approved_at,omitempty"`
}

// EnrollmentDetail enriches Enrollment with student and subject names.
type EnrollmentDetail struct {
	Enrollment
	StudentName     string `db:"student_name" json:"student_name"`
	StudentFullName string `db:"student_full_name" json:"student_full_name"`
	SubjectName     string `db:"subject_name" json:"subject_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	SubjectID string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
}
