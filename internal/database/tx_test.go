package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/safar/order-engine/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestWithRetry_RetriesSerializationFailure(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE products").WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE products").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	attempts := 0
	err := WithRetry(context.Background(), db, SerializableTxOptions(2), func(tx *sql.Tx) error {
		attempts++
		_, err := tx.Exec("UPDATE products SET stock = 1")
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithRetry_RetriesLockTimeout(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE products").WillReturnError(&pq.Error{Code: "55P03"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE products").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	attempts := 0
	err := WithRetry(context.Background(), db, SerializableTxOptions(1), func(tx *sql.Tx) error {
		attempts++
		_, err := tx.Exec("UPDATE products SET stock = 1")
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithRetry_PermanentErrorReturnsImmediately(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	attempts := 0
	err := WithRetry(context.Background(), db, SerializableTxOptions(3), func(*sql.Tx) error {
		attempts++
		return apperr.EmptyCart(1)
	})

	assert.ErrorIs(t, err, apperr.ErrEmptyCart)
	assert.Equal(t, 1, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithRetry_ExhaustedRetriesConflict(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := WithRetry(context.Background(), db, SerializableTxOptions(0), func(*sql.Tx) error {
		return &pq.Error{Code: "40P01"}
	})

	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Contains(t, err.Error(), "max retries (0) exceeded")
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := WithTransaction(context.Background(), db, DefaultTxOptions(), func(*sql.Tx) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
