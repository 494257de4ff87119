package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portalauth/internal/models"
)

func newUserRepoWithMock(t *testing.T) (UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewUserRepository(db), mock
}

var userCols = []string{
	"id", "first_name", "last_name", "designation", "email", "password_hash",
	"profile_pic", "is_admin", "is_approved", "created_at",
}

func TestUserRepository_Create(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("Ada", "Lovelace", nil, "a@x.com", "hash", nil, false, false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, created))

	u := &models.User{FirstName: "Ada", LastName: "Lovelace", Email: "a@x.com", PasswordHash: "hash"}
	require.NoError(t, repo.Create(context.Background(), u))
	assert.Equal(t, 7, u.ID)
	assert.Equal(t, created, u.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_UniqueViolation(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Create(context.Background(), &models.User{Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUserRepository_Create_DBError(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO users`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.User{Email: "a@x.com"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicate)
	assert.Contains(t, err.Error(), "db down")
}

func TestUserRepository_GetByEmail(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(3, "Ada", "Lovelace", "Engineer", "a@x.com", "hash", nil, true, false, now))

	u, err := repo.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, 3, u.ID)
	require.NotNil(t, u.Designation)
	assert.Equal(t, "Engineer", *u.Designation)
	assert.Nil(t, u.ProfilePic)
	assert.True(t, u.IsAdmin)
	assert.False(t, u.IsApproved)
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(99).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_UpdateApproval(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectExec(`UPDATE users SET is_approved=\$1 WHERE id=\$2`).
		WithArgs(true, 5).
		WillReturnResult(sqlmock.NewResult(0, 0))

	// missing rows are not an error here; callers re-read the row
	assert.NoError(t, repo.UpdateApproval(context.Background(), 5, true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdatePasswordHash(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectExec(`UPDATE users SET password_hash=\$1 WHERE id=\$2`).
		WithArgs("new", 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET password_hash=\$1 WHERE id=\$2`).
		WithArgs("new", 6).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.UpdatePasswordHash(context.Background(), 5, "new"))
	assert.ErrorIs(t, repo.UpdatePasswordHash(context.Background(), 6, "new"), ErrNotFound)
}

func TestUserRepository_Promote(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectExec(`UPDATE users SET is_admin=TRUE, is_approved=TRUE WHERE id=\$1`).
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET is_admin=TRUE, is_approved=TRUE WHERE id=\$1`).
		WithArgs(4).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Promote(context.Background(), 3))
	assert.ErrorIs(t, repo.Promote(context.Background(), 4), ErrNotFound)
}

func TestUserRepository_Delete(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectExec(`DELETE FROM users WHERE id=\$1`).WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM users WHERE id=\$1`).WithArgs(6).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Delete(context.Background(), 5))
	assert.ErrorIs(t, repo.Delete(context.Background(), 6), ErrNotFound)
}

func TestUserRepository_List(t *testing.T) {
	now := time.Now()

	t.Run("pending filter", func(t *testing.T) {
		repo, mock := newUserRepoWithMock(t)
		mock.ExpectQuery(`FROM users WHERE is_approved = FALSE ORDER BY id`).
			WillReturnRows(sqlmock.NewRows(userCols).
				AddRow(1, "A", "B", nil, "a@x.com", "h", nil, false, false, now))

		users, err := repo.List(context.Background(), models.FilterPending)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "a@x.com", users[0].Email)
	})

	t.Run("all", func(t *testing.T) {
		repo, mock := newUserRepoWithMock(t)
		mock.ExpectQuery(`FROM users ORDER BY id`).
			WillReturnRows(sqlmock.NewRows(userCols).
				AddRow(1, "A", "B", nil, "a@x.com", "h", nil, false, false, now).
				AddRow(2, "C", "D", nil, "c@x.com", "h", "/static/uploads/p.png", true, true, now))

		users, err := repo.List(context.Background(), models.FilterAll)
		require.NoError(t, err)
		require.Len(t, users, 2)
		require.NotNil(t, users[1].ProfilePic)
		assert.Equal(t, "/static/uploads/p.png", *users[1].ProfilePic)
	})
}

func TestUserRepository_ListApprovedAdmins(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)
	mock.ExpectQuery(`WHERE is_admin = TRUE AND is_approved = TRUE`).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(4, "Root", "Admin", nil, "root@x.com", "h", nil, true, true, time.Now()))

	admins, err := repo.ListApprovedAdmins(context.Background())
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "root@x.com", admins[0].Email)
}
