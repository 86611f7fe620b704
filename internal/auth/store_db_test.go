package auth

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_CreateDuplicateEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs("u_1", "dup@example.com", sqlmock.AnyArg(), "user").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err = NewPostgresStore(db).Create(context.Background(), "Dup@Example.com", "password123", "user", "u_1")
	assert.ErrorIs(t, err, ErrEmailExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetScansVerifiedAt(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE id = $1`)).
		WithArgs("u_1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "pass_hash", "role", "verified_at"}).
			AddRow("u_1", "a@example.com", []byte("hash"), "user", at))

	u, err := NewPostgresStore(db).Get(context.Background(), "u_1")
	require.NoError(t, err)
	require.True(t, u.Verified())
	assert.True(t, at.Equal(*u.VerifiedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE id = $1`)).
		WithArgs("u_404").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "pass_hash", "role", "verified_at"}))

	_, err = NewPostgresStore(db).Get(context.Background(), "u_404")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPostgresStore_MarkVerifiedUnknownUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users`)).
		WithArgs("u_404", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewPostgresStore(db).MarkVerified(context.Background(), "u_404", time.Now())
	assert.ErrorIs(t, err, ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
