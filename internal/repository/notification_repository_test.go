package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/agriquest/agriquest-api/internal/models"
)

func TestNotificationRepositoryMarkReadEnforcesOwnership(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2")).
		WithArgs("ntf-1", "other-user").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkRead(context.Background(), "ntf-1", "other-user")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryMarkAllReadIdempotent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read")).
		WithArgs("usr-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read")).
		WithArgs("usr-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	affected, err := repo.MarkAllRead(context.Background(), "usr-1")
	require.NoError(t, err)
	require.EqualValues(t, 3, affected)

	affected, err = repo.MarkAllRead(context.Background(), "usr-1")
	require.NoError(t, err)
	require.Zero(t, affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryListUndispatched(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	rows := sqlmock.NewRows([]string{"id", "user_id", "title", "message", "type", "is_read", "dispatched_at", "created_at"}).
		AddRow("ntf-1", "usr-1", "Subject Invitation: Crop Science", "You have been invited.", models.NotificationTypeInfo, false, nil, time.Now())
	mock.ExpectQuery("FROM notifications WHERE dispatched_at IS NULL").
		WithArgs(50).
		WillReturnRows(rows)

	notifications, err := repo.ListUndispatched(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	require.Nil(t, notifications[0].DispatchedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}
