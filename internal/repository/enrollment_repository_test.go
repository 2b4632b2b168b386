package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/agriquest/agriquest-api/internal/models"
)

func TestEnrollmentRepositoryExistsActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM student_subjects WHERE student_id = $1 AND subject_id = $2 AND status IN ('pending', 'approved') LIMIT 1")).
		WithArgs("stu-1", "sub-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsActive(context.Background(), "stu-1", "sub-1")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO student_subjects").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Enrollment{StudentID: "stu-1", SubjectID: "sub-1"})
	require.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositorySetStatusGuarded(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_subjects SET status = $1, approved_at = COALESCE($2, approved_at) WHERE id = $3 AND status IN ($4)")).
		WithArgs(models.EnrollmentStatusApproved, &now, "enr-1", models.EnrollmentStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetStatus(context.Background(), "enr-1", []models.EnrollmentStatus{models.EnrollmentStatusPending}, models.EnrollmentStatusApproved, &now)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositorySetStatusKeepsApprovalOnWithdraw(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	// A nil timestamp must hit the COALESCE form so withdrawing an approved
	// enrollment does not null out approved_at.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_subjects SET status = $1, approved_at = COALESCE($2, approved_at) WHERE id = $3 AND status IN ($4, $5)")).
		WithArgs(models.EnrollmentStatusWithdrawn, nil, "enr-1", models.EnrollmentStatusPending, models.EnrollmentStatusApproved).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetStatus(context.Background(), "enr-1",
		[]models.EnrollmentStatus{models.EnrollmentStatusPending, models.EnrollmentStatusApproved},
		models.EnrollmentStatusWithdrawn, nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositorySetStatusNoMatchingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("UPDATE student_subjects SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetStatus(context.Background(), "enr-1",
		[]models.EnrollmentStatus{models.EnrollmentStatusPending, models.EnrollmentStatusApproved},
		models.EnrollmentStatusWithdrawn, nil)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListPendingForTeacher(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "subject_id", "status", "requested_at", "approved_at", "student_name", "student_full_name", "subject_name"}).
		AddRow("enr-1", "stu-1", "sub-1", models.EnrollmentStatusPending, time.Now(), nil, "jdoe", "Jane Doe", "Crop Science")
	mock.ExpectQuery("FROM student_subjects ss").
		WithArgs("tch-1").
		WillReturnRows(rows)

	requests, err := repo.ListPendingForTeacher(context.Background(), "tch-1")
	require.NoError(t, err)
	require.Len(t, requests, 1)
	require.Equal(t, "Crop Science", requests[0].SubjectName)
	require.NoError(t, mock.ExpectationsWereMet())
}
