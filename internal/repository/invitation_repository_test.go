package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/agriquest/agriquest-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestInvitationRepositoryExistsLive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInvitationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM subject_teachers WHERE subject_id = $1 AND teacher_id = $2 AND status IN ('pending', 'accepted') LIMIT 1")).
		WithArgs("sub-1", "tch-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsLive(context.Background(), "sub-1", "tch-1")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationRepositoryExistsLiveNoRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInvitationRepository(db)

	mock.ExpectQuery("SELECT 1 FROM subject_teachers").
		WithArgs("sub-1", "tch-2").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsLive(context.Background(), "sub-1", "tch-2")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInvitationRepository(db)

	mock.ExpectExec("INSERT INTO subject_teachers").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Invitation{SubjectID: "sub-1", TeacherID: "tch-1"})
	require.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationRepositorySetStatusNoPendingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInvitationRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE subject_teachers SET status = $1, accepted_at = $2 WHERE id = $3 AND status = 'pending'")).
		WithArgs(models.InvitationStatusAccepted, &now, "inv-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetStatus(context.Background(), "inv-1", models.InvitationStatusAccepted, &now)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationRepositoryListAcceptedTeacherIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInvitationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT teacher_id FROM subject_teachers WHERE subject_id = $1 AND status = 'accepted'")).
		WithArgs("sub-1").
		WillReturnRows(sqlmock.NewRows([]string{"teacher_id"}).AddRow("tch-1").AddRow("tch-2"))

	ids, err := repo.ListAcceptedTeacherIDs(context.Background(), "sub-1")
	require.NoError(t, err)
	require.Equal(t, []string{"tch-1", "tch-2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
